package model

import "time"

// Dataset is the complete output of one pipeline run
type Dataset struct {
	RunID    string       `json:"run_id"`
	AsOfDate time.Time    `json:"as_of_date"`
	Pages    []PageResult `json:"pages"`
	Records  []LossRecord `json:"records"`
	Stats    Stats        `json:"stats"`
	Report   Report       `json:"report"`
}

// PageResult summarizes how one document contributed to the dataset
type PageResult struct {
	Source  string `json:"source"`            // URL or file path
	Country string `json:"country,omitempty"` // Empty for combined documents
	Records int    `json:"records"`           // Raw records extracted
	Skipped int    `json:"skipped"`           // Nodes dropped during extraction
}

// Report collects the non-fatal findings of a run
type Report struct {
	Warnings []Warning `json:"warnings"`
}

// Add appends a warning to the report
func (r *Report) Add(w Warning) {
	r.Warnings = append(r.Warnings, w)
}

// Empty reports whether there is nothing to surface
func (r Report) Empty() bool {
	return len(r.Warnings) == 0
}

// WarningType classifies a warning
type WarningType string

const (
	WarningUnmappedFlag WarningType = "unmapped_flag" // Production flag not in the flag map
	WarningUnmappedHost WarningType = "unmapped_host" // Evidence host not in the source table
	WarningHostlessURL  WarningType = "hostless_url"  // Evidence URL unparseable or without a host
	WarningSkippedNodes WarningType = "skipped_nodes" // Markup nodes that could not be parsed
)

// Warning aggregates every occurrence of one kind of lookup miss
type Warning struct {
	Type     WarningType `json:"type"`
	Stage    string      `json:"stage"`
	Message  string      `json:"message"`
	Affected int         `json:"affected"` // Records affected
	Values   []string    `json:"values"`   // Distinct offending values, first-seen order
}

// Stats describes the composition of a normalized record set
type Stats struct {
	Records     int                    `json:"records"`
	Countries   []CountryStats         `json:"countries"`
	Sources     map[EvidenceSource]int `json:"sources"`              // Unknown hosts counted under ""
	Attribution float64                `json:"attribution_coverage"` // Share of records with a production country
	Evidence    float64                `json:"evidence_per_record"`  // Distinct evidence URLs per record
	Duplicates  int                    `json:"duplicate_flagged"`    // Records with inconsistent descriptions
}

// CountryStats counts the records of one country
type CountryStats struct {
	Country    string         `json:"country"`
	Records    int            `json:"records"`
	Categories int            `json:"categories"`
	ByStatus   map[Status]int `json:"by_status"`
}
