package extract

import (
	"strings"

	"github.com/ppiankov/lossledger/internal/lexical"
	"github.com/ppiankov/lossledger/internal/model"
	"golang.org/x/net/html"
)

// EvidenceExtractor reads the cases documented by one confirmation anchor
type EvidenceExtractor struct{}

// NewEvidenceExtractor creates a new evidence extractor
func NewEvidenceExtractor() *EvidenceExtractor {
	return &EvidenceExtractor{}
}

// Extract returns one record per distinct case number in the anchor text.
//
// Captions look like "(1, 2 and 3, destroyed)", "(26, with 23mm ZU-23,
// destroyed)" or "(4, damaged by Bayraktar TB2)". Every digit run is taken as
// a case number and repeats are dropped by value. This is a concession to the
// caption format, where weapon names and calibers repeat numbers; it is not a
// general numeric extraction rule, and it merges two references to the same
// number within one caption.
func (e *EvidenceExtractor) Extract(a *html.Node) []Result {
	var results []Result
	err := safely(func() error {
		href, ok := attr(a, "href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			results = []Result{skipResult(a, "evidence: missing link target")}
			return nil
		}

		text := strings.Trim(textContent(a), "()")
		ids, overflow := lexical.UniqueInts(text)
		for _, run := range overflow {
			results = append(results, skipResult(a, "evidence: case number %q out of range", run))
		}
		for _, id := range ids {
			results = append(results, recordResult(model.RawLossRecord{
				EvidenceURL: href,
				Description: text,
				NumericID:   id,
			}))
		}
		return nil
	})
	if err != nil {
		return []Result{skipResult(a, "evidence: %v", err)}
	}
	return results
}
