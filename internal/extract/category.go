package extract

import (
	"iter"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	// categoryHeadingPattern decides whether an <h3> is a category heading at all.
	categoryHeadingPattern = regexp.MustCompile(`(?s)^.+\(\d+, .+\)\s*$`)

	// categoryLabelPattern pulls "Tanks" out of "Tanks (3216, of which destroyed: 2179, ...)".
	categoryLabelPattern = regexp.MustCompile(`^(?P<category>.+?)\s\(\d+,.*`)
)

// IsCategoryHeading reports whether heading text has the "Label (N, ...)" shape.
func IsCategoryHeading(text string) bool {
	return categoryHeadingPattern.MatchString(text)
}

// CategoryLabel returns the category label of a heading.
func CategoryLabel(text string) (string, error) {
	text = strings.TrimSpace(text)
	m := categoryLabelPattern.FindStringSubmatch(text)
	if m == nil {
		return "", eris.Errorf("category: no label in %q", text)
	}
	return strings.TrimSpace(m[categoryLabelPattern.SubexpIndex("category")]), nil
}

// CategoryExtractor reads one category: its heading and the model list that
// follows it
type CategoryExtractor struct {
	models *ModelExtractor
}

// NewCategoryExtractor creates a new category extractor
func NewCategoryExtractor(models *ModelExtractor) *CategoryExtractor {
	if models == nil {
		models = NewModelExtractor(nil)
	}
	return &CategoryExtractor{models: models}
}

// Extract yields the cases of every model listed under heading. The model
// list is the first <ul> after the heading within scope.
func (c *CategoryExtractor) Extract(heading, scope *html.Node) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		var label string
		var items []*html.Node
		err := safely(func() error {
			var err error
			label, err = CategoryLabel(textContent(heading))
			if err != nil {
				return err
			}
			ul := findNext(heading, scope, isElement(atom.Ul))
			if ul == nil {
				return eris.Errorf("category: no model list after %q", label)
			}
			items = children(ul, isElement(atom.Li))
			return nil
		})
		if err != nil {
			yield(skipResult(heading, "%v", err))
			return
		}

		for _, li := range items {
			for res := range c.models.Extract(li) {
				if res.Record != nil {
					res.Record.Category = label
				}
				if !yield(res) {
					return
				}
			}
		}
	}
}
