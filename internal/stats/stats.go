// Package stats summarizes the composition of a normalized dataset.
package stats

import (
	"github.com/ppiankov/lossledger/internal/model"
)

// Calculator derives dataset statistics
type Calculator struct{}

// NewCalculator creates a calculator
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Calculate summarizes records. Countries are listed in first-seen order.
func (c *Calculator) Calculate(records []model.LossRecord) model.Stats {
	return model.Stats{
		Records:     len(records),
		Countries:   c.countries(records),
		Sources:     c.sources(records),
		Attribution: c.attribution(records),
		Evidence:    c.evidence(records),
		Duplicates:  c.duplicates(records),
	}
}

// countries counts records, categories and statuses per country
func (c *Calculator) countries(records []model.LossRecord) []model.CountryStats {
	var out []model.CountryStats
	index := make(map[string]int)
	categories := make(map[string]map[string]bool)

	for _, r := range records {
		i, ok := index[r.Country]
		if !ok {
			i = len(out)
			index[r.Country] = i
			out = append(out, model.CountryStats{
				Country:  r.Country,
				ByStatus: make(map[model.Status]int),
			})
			categories[r.Country] = make(map[string]bool)
		}

		out[i].Records++
		for _, st := range r.Status {
			out[i].ByStatus[st]++
		}
		if !categories[r.Country][r.Category] {
			categories[r.Country][r.Category] = true
			out[i].Categories++
		}
	}
	return out
}

// sources counts records per evidence source
func (c *Calculator) sources(records []model.LossRecord) map[model.EvidenceSource]int {
	out := make(map[model.EvidenceSource]int)
	for _, r := range records {
		out[r.EvidenceSource]++
	}
	return out
}

// attribution is the share of records whose production country resolved
func (c *Calculator) attribution(records []model.LossRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	n := 0
	for _, r := range records {
		if r.ProductionCountry != nil {
			n++
		}
	}
	return float64(n) / float64(len(records))
}

// evidence is distinct evidence URLs per record. Below 1 when one piece of
// evidence documents several losses.
func (c *Calculator) evidence(records []model.LossRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	urls := make(map[string]bool)
	for _, r := range records {
		urls[r.EvidenceURL] = true
	}
	return float64(len(urls)) / float64(len(records))
}

func (c *Calculator) duplicates(records []model.LossRecord) int {
	n := 0
	for _, r := range records {
		if r.DuplicateFlag {
			n++
		}
	}
	return n
}
