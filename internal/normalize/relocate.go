package normalize

import (
	"strings"

	"github.com/ppiankov/lossledger/internal/model"
	"github.com/rotisserie/eris"
)

// Relocator resolves losses that moved from retired categories to dedicated
// pages.
//
// When the aircraft and naval losses got their own pages, the old "Aircraft"
// and "Naval Ships" sections stayed behind on the main pages. A loss listed in
// both places must only be counted once.
type Relocator struct {
	superseded  map[string]bool
	corrections map[correctionKey]string
}

type correctionKey struct {
	category string
	model    string
}

// NewRelocator builds a relocator. Rules are followed transitively, so a
// chain A->B, B->C rewrites A straight to C; a cycle is an error.
func NewRelocator(superseded []string, rules []model.CorrectionRule) (*Relocator, error) {
	r := &Relocator{
		superseded:  make(map[string]bool, len(superseded)),
		corrections: make(map[correctionKey]string, len(rules)),
	}
	for _, c := range superseded {
		r.superseded[strings.TrimSpace(c)] = true
	}

	direct := make(map[correctionKey]string, len(rules))
	for _, rule := range rules {
		key := correctionKey{
			category: strings.TrimSpace(rule.OldCategory),
			model:    strings.TrimSpace(rule.Model),
		}
		next := strings.TrimSpace(rule.NewCategory)
		if key.category == "" || key.model == "" || next == "" {
			return nil, eris.Errorf("normalize: incomplete correction rule %+v", rule)
		}
		if key.category == next {
			continue
		}
		if prev, ok := direct[key]; ok && prev != next {
			return nil, eris.Errorf("normalize: correction for %q in %q has two targets: %q and %q",
				key.model, key.category, prev, next)
		}
		direct[key] = next
	}

	for key, next := range direct {
		for steps := 0; ; steps++ {
			if steps > len(direct) {
				return nil, eris.Errorf("normalize: correction cycle for %q starting at %q", key.model, key.category)
			}
			further, ok := direct[correctionKey{category: next, model: key.model}]
			if !ok {
				break
			}
			next = further
		}
		r.corrections[key] = next
	}

	return r, nil
}

// Category returns the category a model listed under category belongs to.
func (r *Relocator) Category(category, model string) string {
	if next, ok := r.corrections[correctionKey{category: category, model: model}]; ok {
		return next
	}
	return category
}

// Superseded reports whether category is a retired section.
func (r *Relocator) Superseded(category string) bool {
	return r.superseded[category]
}
