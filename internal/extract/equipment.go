package extract

import (
	"iter"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Models are written like "12 BRM-1K reconnaissance vehicle: (1, destroyed)"
// where the leading number is the entry count for the model. Some entries
// carry no count at all ("  BTR-70").
var modelPattern = regexp.MustCompile(`(?s)^\s*(?:\d*)\s+(?P<model>.+)$`)

// ModelExtractor reads one equipment model entry (an <li>)
type ModelExtractor struct {
	evidence *EvidenceExtractor
}

// NewModelExtractor creates a new model extractor
func NewModelExtractor(evidence *EvidenceExtractor) *ModelExtractor {
	if evidence == nil {
		evidence = NewEvidenceExtractor()
	}
	return &ModelExtractor{evidence: evidence}
}

// ModelName returns the model named by the text before the first colon.
func ModelName(text string) (string, error) {
	head, _, _ := strings.Cut(text, ":")
	m := modelPattern.FindStringSubmatch(head)
	if m == nil {
		return "", eris.Errorf("model: no model name in %q", head)
	}
	return m[modelPattern.SubexpIndex("model")], nil
}

// Extract yields the cases of every confirmation anchor below li, stamped
// with the model name and the production flag reference.
func (m *ModelExtractor) Extract(li *html.Node) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		var name, flag string
		err := safely(func() error {
			var err error
			name, err = ModelName(textContent(li))
			if err != nil {
				return err
			}
			if img := findFirst(li, isElement(atom.Img)); img != nil {
				flag, _ = attr(img, "src")
			}
			return nil
		})
		if err != nil {
			yield(skipResult(li, "%v", err))
			return
		}

		for _, a := range findAll(li, isElement(atom.A)) {
			for _, res := range m.evidence.Extract(a) {
				if res.Record != nil {
					res.Record.Model = name
					res.Record.ProductionFlagRef = flag
				}
				if !yield(res) {
					return
				}
			}
		}
	}
}
