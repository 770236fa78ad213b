package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/olekukonko/tablewriter"
	"github.com/ppiankov/lossledger/internal/model"
	"github.com/rotisserie/eris"
)

// Output formats
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Renderer writes datasets
type Renderer struct{}

// NewRenderer creates a renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// csvRow is the flat dataset schema, one boolean column per status.
type csvRow struct {
	Country           string `csv:"country"`
	Category          string `csv:"category"`
	Model             string `csv:"model"`
	URLHash           string `csv:"url_hash"`
	CaseID            int    `csv:"case_id"`
	IsAbandoned       bool   `csv:"is_abandoned"`
	IsCaptured        bool   `csv:"is_captured"`
	IsDamaged         bool   `csv:"is_damaged"`
	IsDestroyed       bool   `csv:"is_destroyed"`
	IsScuttled        bool   `csv:"is_scuttled"`
	IsStripped        bool   `csv:"is_stripped"`
	IsSunk            bool   `csv:"is_sunk"`
	IsRaised          bool   `csv:"is_raised"`
	EvidenceURL       string `csv:"evidence_url"`
	ProductionCountry string `csv:"country_of_production"`
	EvidenceSource    string `csv:"evidence_source"`
	Description       string `csv:"description"`
	NumericID         int    `csv:"numeric_id"`
	ProductionFlagRef string `csv:"country_of_production_flag_url"`
	DuplicateFlag     bool   `csv:"duplicate_flag"`
	AsOfDate          string `csv:"as_of_date"`
}

func toRow(r model.LossRecord) csvRow {
	row := csvRow{
		Country:           r.Country,
		Category:          r.Category,
		Model:             r.Model,
		URLHash:           r.ContentHash.String(),
		CaseID:            r.CaseID,
		IsAbandoned:       r.Status.Has(model.StatusAbandoned),
		IsCaptured:        r.Status.Has(model.StatusCaptured),
		IsDamaged:         r.Status.Has(model.StatusDamaged),
		IsDestroyed:       r.Status.Has(model.StatusDestroyed),
		IsScuttled:        r.Status.Has(model.StatusScuttled),
		IsStripped:        r.Status.Has(model.StatusStripped),
		IsSunk:            r.Status.Has(model.StatusSunk),
		IsRaised:          r.Status.Has(model.StatusRaised),
		EvidenceURL:       r.EvidenceURL,
		EvidenceSource:    string(r.EvidenceSource),
		Description:       r.Description,
		NumericID:         r.NumericID,
		ProductionFlagRef: r.ProductionFlagRef,
		DuplicateFlag:     r.DuplicateFlag,
		AsOfDate:          r.AsOfDate.UTC().Format(time.RFC3339),
	}
	if r.ProductionCountry != nil {
		row.ProductionCountry = *r.ProductionCountry
	}
	return row
}

// WriteJSON writes the whole dataset, report included
func (r *Renderer) WriteJSON(w io.Writer, dataset *model.Dataset) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dataset); err != nil {
		return eris.Wrap(err, "render: encode json")
	}
	return nil
}

// WriteCSV writes the records only
func (r *Renderer) WriteCSV(w io.Writer, records []model.LossRecord) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(csvRow{}); err != nil {
		return eris.Wrap(err, "render: encode csv header")
	}
	for _, rec := range records {
		if err := enc.Encode(toRow(rec)); err != nil {
			return eris.Wrap(err, "render: encode csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "render: flush csv")
}

// WriteReport writes the warning report as JSON
func (r *Renderer) WriteReport(w io.Writer, report model.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(report), "render: encode report")
}

// RenderFile writes the dataset to path in format. "-" means stdout.
func (r *Renderer) RenderFile(dataset *model.Dataset, format, path string) error {
	return writeTo(path, func(w io.Writer) error {
		switch strings.ToLower(format) {
		case FormatJSON, "":
			return r.WriteJSON(w, dataset)
		case FormatCSV:
			return r.WriteCSV(w, dataset.Records)
		default:
			return eris.Errorf("render: unknown format %q", format)
		}
	})
}

// RenderReportFile writes the warning report to path. "-" means stdout.
func (r *Renderer) RenderReportFile(report model.Report, path string) error {
	return writeTo(path, func(w io.Writer) error {
		return r.WriteReport(w, report)
	})
}

// RenderSummary prints per-page counts and the warnings as tables
func (r *Renderer) RenderSummary(w io.Writer, dataset *model.Dataset) {
	fmt.Fprintf(w, "Run %s, as of %s\n\n", dataset.RunID, dataset.AsOfDate.Format(time.RFC3339))

	pages := tablewriter.NewWriter(w)
	pages.SetHeader([]string{"Source", "Country", "Records", "Skipped"})
	for _, p := range dataset.Pages {
		country := p.Country
		if country == "" {
			country = "(combined)"
		}
		pages.Append([]string{p.Source, country, strconv.Itoa(p.Records), strconv.Itoa(p.Skipped)})
	}
	pages.SetFooter([]string{"", "Normalized", strconv.Itoa(len(dataset.Records)), ""})
	pages.Render()

	r.renderStats(w, dataset.Stats)

	if dataset.Report.Empty() {
		fmt.Fprintln(w, "\nNo warnings.")
		return
	}

	fmt.Fprintln(w)
	warnings := tablewriter.NewWriter(w)
	warnings.SetHeader([]string{"Stage", "Warning", "Affected", "Values"})
	warnings.SetAutoWrapText(false)
	for _, wr := range dataset.Report.Warnings {
		warnings.Append([]string{wr.Stage, wr.Message, strconv.Itoa(wr.Affected), summarizeValues(wr.Values, 3)})
	}
	warnings.Render()
}

// renderStats prints status counts per country
func (r *Renderer) renderStats(w io.Writer, s model.Stats) {
	if s.Records == 0 {
		return
	}

	fmt.Fprintln(w)
	header := []string{"Country", "Records", "Categories"}
	for _, st := range model.AllStatuses {
		header = append(header, string(st))
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	for _, c := range s.Countries {
		row := []string{c.Country, strconv.Itoa(c.Records), strconv.Itoa(c.Categories)}
		for _, st := range model.AllStatuses {
			row = append(row, strconv.Itoa(c.ByStatus[st]))
		}
		table.Append(row)
	}
	table.Render()

	fmt.Fprintf(w, "Production country resolved for %.1f%% of records, %.2f evidence links per record, %d duplicate flagged\n",
		s.Attribution*100, s.Evidence, s.Duplicates)
}

func summarizeValues(values []string, n int) string {
	if len(values) <= n {
		return strings.Join(values, ", ")
	}
	return fmt.Sprintf("%s (+%d more)", strings.Join(values[:n], ", "), len(values)-n)
}

func writeTo(path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(os.Stdout)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "render: create %s", dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "render: create %s", path)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "render: close %s", path)
}
