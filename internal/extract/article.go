package extract

import (
	"io"
	"iter"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	// ErrNoArticleBody is returned when the document has no article body element.
	ErrNoArticleBody = eris.New("extract: article body not found")

	// ErrSectionIndex is returned when the data section index is out of range.
	ErrSectionIndex = eris.New("extract: data section index out of range")

	// ErrNoBoundaries is returned when a combined document has no country headings.
	ErrNoBoundaries = eris.New("extract: no country boundary headings found")
)

// Layout describes where the data lives in a report document
type Layout struct {
	BodyClass         string   // Classes of the article body element
	BodyItemprop      string   // itemprop of the article body element
	BoundaryCountries []string // Countries whose headings split combined documents
}

// DefaultLayout matches the published report pages.
func DefaultLayout() Layout {
	return Layout{
		BodyClass:         "post-body entry-content",
		BodyItemprop:      "articleBody",
		BoundaryCountries: []string{"Russia", "Ukraine"},
	}
}

// Parser locates the category sections of a document
type Parser struct {
	layout     Layout
	boundary   *regexp.Regexp
	categories *CategoryExtractor
	logger     *zap.Logger
}

// NewParser creates a parser for the given layout
func NewParser(layout Layout, logger *zap.Logger) (*Parser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(layout.BoundaryCountries) == 0 {
		layout.BoundaryCountries = DefaultLayout().BoundaryCountries
	}

	names := make([]string, len(layout.BoundaryCountries))
	for i, c := range layout.BoundaryCountries {
		names[i] = regexp.QuoteMeta(c)
	}
	// "Russia - 2589, of which: destroyed: 1826, ..."
	boundary, err := regexp.Compile(`(?s)^(` + strings.Join(names, "|") + `) - \d+.+$`)
	if err != nil {
		return nil, eris.Wrap(err, "extract: compile boundary pattern")
	}

	return &Parser{
		layout:     layout,
		boundary:   boundary,
		categories: NewCategoryExtractor(NewModelExtractor(NewEvidenceExtractor())),
		logger:     logger,
	}, nil
}

// Article is a document split into country sections. Sections are fixed at
// construction, so Results can be ranged over more than once.
type Article struct {
	sections   []section
	categories *CategoryExtractor
}

type section struct {
	country  string
	root     *html.Node
	headings []*html.Node
}

// Parse reads markup and splits it. An empty country selects combined mode,
// where sectionIndex is ignored.
func (p *Parser) Parse(r io.Reader, country string, sectionIndex int) (*Article, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, eris.Wrap(err, "extract: parse markup")
	}
	if country == "" {
		return p.SplitCombined(doc)
	}
	return p.SplitSingle(doc, country, sectionIndex)
}

// SplitSingle prepares a single-country document. The data section is the
// sectionIndex-th <div> child of the article body.
func (p *Parser) SplitSingle(doc *html.Node, country string, sectionIndex int) (*Article, error) {
	body := p.body(doc)
	if body == nil {
		return nil, ErrNoArticleBody
	}

	divs := children(body, isElement(atom.Div))
	if sectionIndex < 0 || sectionIndex >= len(divs) {
		return nil, eris.Wrapf(ErrSectionIndex, "index %d, %d sections", sectionIndex, len(divs))
	}

	sec := p.section(country, divs[sectionIndex])
	p.logger.Debug("single-country document split",
		zap.String("country", country),
		zap.Int("section_index", sectionIndex),
		zap.Int("categories", len(sec.headings)))

	return &Article{sections: []section{sec}, categories: p.categories}, nil
}

// SplitCombined prepares a document holding several countries. Each country
// heading starts a section made of its following siblings, up to the next
// country heading. The siblings are moved into a synthetic <div>, so the
// document is modified.
func (p *Parser) SplitCombined(doc *html.Node) (*Article, error) {
	body := p.body(doc)
	if body == nil {
		return nil, ErrNoArticleBody
	}

	type start struct {
		country string
		heading *html.Node
	}
	var starts []start
	isStart := make(map[*html.Node]bool)
	for _, h3 := range findAll(body, isElement(atom.H3)) {
		if m := p.boundary.FindStringSubmatch(textContent(h3)); m != nil {
			starts = append(starts, start{country: m[1], heading: h3})
			isStart[h3] = true
		}
	}
	if len(starts) == 0 {
		return nil, ErrNoBoundaries
	}

	// Collect every slice before moving anything.
	spans := make([][]*html.Node, len(starts))
	for i, s := range starts {
		for sib := s.heading.NextSibling; sib != nil && !isStart[sib]; sib = sib.NextSibling {
			spans[i] = append(spans[i], sib)
		}
	}

	sections := make([]section, len(starts))
	for i, s := range starts {
		root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
		for _, n := range spans[i] {
			if n.Parent != nil {
				n.Parent.RemoveChild(n)
			}
			root.AppendChild(n)
		}
		sections[i] = p.section(s.country, root)
		p.logger.Debug("country section split",
			zap.String("country", s.country),
			zap.Int("nodes", len(spans[i])),
			zap.Int("categories", len(sections[i].headings)))
	}

	return &Article{sections: sections, categories: p.categories}, nil
}

func (p *Parser) body(doc *html.Node) *html.Node {
	return findFirst(doc, func(n *html.Node) bool {
		if !hasClasses(n, p.layout.BodyClass) {
			return false
		}
		if p.layout.BodyItemprop == "" {
			return true
		}
		v, _ := attr(n, "itemprop")
		return v == p.layout.BodyItemprop
	})
}

func (p *Parser) section(country string, root *html.Node) section {
	var headings []*html.Node
	for _, h3 := range findAll(root, isElement(atom.H3)) {
		if IsCategoryHeading(textContent(h3)) {
			headings = append(headings, h3)
		}
	}
	return section{country: country, root: root, headings: headings}
}

// Countries lists the country of each section in document order.
func (a *Article) Countries() []string {
	out := make([]string, len(a.sections))
	for i, s := range a.sections {
		out[i] = s.country
	}
	return out
}

// Results yields every case of every section, each stamped with its country.
func (a *Article) Results() iter.Seq[Result] {
	return func(yield func(Result) bool) {
		for _, sec := range a.sections {
			for _, h3 := range sec.headings {
				for res := range a.categories.Extract(h3, sec.root) {
					if res.Record != nil {
						res.Record.Country = sec.country
					}
					if !yield(res) {
						return
					}
				}
			}
		}
	}
}
