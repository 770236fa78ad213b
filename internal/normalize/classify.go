package normalize

import (
	"net/url"
	"slices"
	"strings"

	"github.com/ppiankov/lossledger/internal/model"
	"github.com/rotisserie/eris"
)

// StatusClassifier tags loss descriptions with statuses
type StatusClassifier struct {
	keywords []statusKeywords
}

type statusKeywords struct {
	status   model.Status
	variants []string
}

// NewStatusClassifier builds a classifier from status name to keyword
// variants. Variants match case-sensitively as substrings, so source typos
// ("damagd") must be listed explicitly.
func NewStatusClassifier(table map[string][]string) (*StatusClassifier, error) {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	slices.Sort(names)

	byStatus := make(map[model.Status][]string, len(table))
	for _, name := range names {
		st, err := model.ParseStatus(name)
		if err != nil {
			return nil, eris.Wrap(err, "normalize: status keywords")
		}
		for _, v := range table[name] {
			if v == "" {
				return nil, eris.Errorf("normalize: empty keyword for status %q", name)
			}
		}
		byStatus[st] = append(byStatus[st], table[name]...)
	}

	classifier := &StatusClassifier{}
	for _, st := range model.AllStatuses {
		classifier.keywords = append(classifier.keywords, statusKeywords{
			status:   st,
			variants: byStatus[st],
		})
	}
	return classifier, nil
}

// Classify returns every status with a keyword in description.
func (c *StatusClassifier) Classify(description string) model.StatusSet {
	set := model.StatusSet{}
	for _, kw := range c.keywords {
		for _, v := range kw.variants {
			if strings.Contains(description, v) {
				set = append(set, kw.status)
				break
			}
		}
	}
	return set
}

// SourceClassifier maps evidence URLs to the site they point at
type SourceClassifier struct {
	hosts map[string]model.EvidenceSource
}

// NewSourceClassifier builds the host table once. A host listed twice with
// different sources is rejected.
func NewSourceClassifier(table []model.HostSource) (*SourceClassifier, error) {
	classifier := &SourceClassifier{
		hosts: make(map[string]model.EvidenceSource, len(table)),
	}

	for _, hs := range table {
		host := strings.ToLower(strings.TrimSpace(hs.Host))
		if host == "" {
			return nil, eris.New("normalize: host source with empty host")
		}
		source, err := model.ParseEvidenceSource(hs.Source)
		if err != nil {
			return nil, eris.Wrapf(err, "normalize: host %q", host)
		}
		if prev, ok := classifier.hosts[host]; ok && prev != source {
			return nil, eris.Errorf("normalize: host %q mapped to both %q and %q", host, prev, source)
		}
		classifier.hosts[host] = source
	}

	return classifier, nil
}

// Classify returns the source for rawURL and the host it looked up. The host
// keeps any port, so "postimg.cc:8080" is not "postimg.cc".
func (c *SourceClassifier) Classify(rawURL string) (model.EvidenceSource, string) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return model.SourceUnknown, ""
	}

	host := strings.ToLower(parsed.Host)
	return c.hosts[host], host
}
