package normalize

import (
	"strings"

	"github.com/ppiankov/lossledger/internal/model"
	"go.uber.org/zap"
)

// CleanStrings trims the category, model, evidence URL and flag reference.
func (n *Normalizer) CleanStrings(records []model.LossRecord, _ *model.Report) ([]model.LossRecord, error) {
	for i := range records {
		r := &records[i]
		r.Category = strings.TrimSpace(r.Category)
		r.Model = strings.TrimSpace(r.Model)
		r.EvidenceURL = strings.TrimSpace(r.EvidenceURL)
		r.ProductionFlagRef = strings.TrimSpace(r.ProductionFlagRef)
	}
	return records, nil
}

// AssignStatus classifies each description. A record may end up with no
// status or with several ("damaged and captured").
func (n *Normalizer) AssignStatus(records []model.LossRecord, _ *model.Report) ([]model.LossRecord, error) {
	for i := range records {
		records[i].Status = n.statuses.Classify(records[i].Description)
	}
	return records, nil
}

// AssignProductionCountry resolves flag references to alpha-3 codes. Records
// without a flag stay nil silently; unknown flags stay nil and are reported
// once for the whole set.
func (n *Normalizer) AssignProductionCountry(records []model.LossRecord, report *model.Report) ([]model.LossRecord, error) {
	var misses tally
	for i := range records {
		r := &records[i]
		r.ProductionCountry = nil
		if r.ProductionFlagRef == "" {
			continue
		}
		code, ok := n.flags[r.ProductionFlagRef]
		if !ok {
			misses.add(r.ProductionFlagRef)
			continue
		}
		r.ProductionCountry = &code
	}

	misses.report(report, n.logger, model.WarningUnmappedFlag, StageProductionCountry, "unmapped production flags detected")
	return records, nil
}

// AssignEvidenceSource classifies each evidence URL by host. Unknown hosts
// stay SourceUnknown and are reported once for the whole set; URLs without a
// host are reported separately.
func (n *Normalizer) AssignEvidenceSource(records []model.LossRecord, report *model.Report) ([]model.LossRecord, error) {
	var misses, hostless tally
	for i := range records {
		r := &records[i]
		source, host := n.sources.Classify(r.EvidenceURL)
		r.EvidenceSource = source
		switch {
		case source != model.SourceUnknown:
		case host == "":
			hostless.add(r.EvidenceURL)
		default:
			misses.add(host)
		}
	}

	misses.report(report, n.logger, model.WarningUnmappedHost, StageEvidenceSource, "unmapped domains detected")
	hostless.report(report, n.logger, model.WarningHostlessURL, StageEvidenceSource, "evidence URLs without a host")
	return records, nil
}

// HashEvidence sets the SHA-256 of each evidence URL.
func (n *Normalizer) HashEvidence(records []model.LossRecord, _ *model.Report) ([]model.LossRecord, error) {
	for i := range records {
		r := &records[i]
		if r.EvidenceURL == "" {
			return nil, &StageError{Stage: StageHashEvidence, Key: recordKey(*r), Err: ErrBlankURL}
		}
		r.ContentHash = model.HashString(r.EvidenceURL)
	}
	return records, nil
}

type lossKey struct {
	country string
	model   string
	hash    model.Digest
}

// ResolveRelocations drops losses listed under a superseded category when
// the same country, model and evidence also appear under a current category,
// then applies the category corrections to the losses that are left.
// Supersession is judged on the category as extracted. A superseded loss
// without a correction is also dropped when a sibling with the same key is
// corrected out of the superseded section, so a second pass changes nothing.
func (n *Normalizer) ResolveRelocations(records []model.LossRecord, _ *model.Report) ([]model.LossRecord, error) {
	current := make(map[lossKey]bool)
	relocated := make(map[lossKey]bool)
	corrected := make([]string, len(records))
	for i, r := range records {
		if r.Country == "" {
			return nil, &StageError{Stage: StageResolveRelocations, Key: recordKey(r), Err: ErrBlankCountry}
		}
		key := lossKey{country: r.Country, model: r.Model, hash: r.ContentHash}
		corrected[i] = n.relocator.Category(r.Category, r.Model)
		switch {
		case !n.relocator.Superseded(r.Category):
			current[key] = true
		case !n.relocator.Superseded(corrected[i]):
			relocated[key] = true
		}
	}

	out := make([]model.LossRecord, 0, len(records))
	dropped, moved := 0, 0
	for i, r := range records {
		key := lossKey{country: r.Country, model: r.Model, hash: r.ContentHash}
		if n.relocator.Superseded(r.Category) &&
			(current[key] || (n.relocator.Superseded(corrected[i]) && relocated[key])) {
			dropped++
			continue
		}
		if corrected[i] != r.Category {
			r.Category = corrected[i]
			moved++
		}
		out = append(out, r)
	}

	if dropped > 0 || moved > 0 {
		n.logger.Info("relocated losses resolved",
			zap.Int("dropped", dropped),
			zap.Int("recategorized", moved))
	}
	return out, nil
}

type caseKey struct {
	country  string
	category string
	model    string
	hash     model.Digest
}

// AssignCaseIDs numbers the records of each (country, category, model, hash)
// group 1..N in extraction order, separating distinct pieces of equipment
// shown in the same evidence.
func (n *Normalizer) AssignCaseIDs(records []model.LossRecord, _ *model.Report) ([]model.LossRecord, error) {
	counts := make(map[caseKey]int)
	for i := range records {
		r := &records[i]
		if r.Country == "" {
			return nil, &StageError{Stage: StageAssignCaseIDs, Key: recordKey(*r), Err: ErrBlankCountry}
		}
		key := caseKey{country: r.Country, category: r.Category, model: r.Model, hash: r.ContentHash}
		counts[key]++
		r.CaseID = counts[key]
	}
	return records, nil
}

type naturalKey struct {
	country  string
	category string
	model    string
	url      string
	id       int
}

// FlagDuplicateKeys flags every record whose natural key was described in
// more than one way on the source page.
func (n *Normalizer) FlagDuplicateKeys(records []model.LossRecord, _ *model.Report) ([]model.LossRecord, error) {
	descriptions := make(map[naturalKey]map[string]struct{})
	for _, r := range records {
		key := naturalKey{country: r.Country, category: r.Category, model: r.Model, url: r.EvidenceURL, id: r.NumericID}
		if descriptions[key] == nil {
			descriptions[key] = make(map[string]struct{})
		}
		descriptions[key][r.Description] = struct{}{}
	}

	flagged := 0
	for i := range records {
		r := &records[i]
		key := naturalKey{country: r.Country, category: r.Category, model: r.Model, url: r.EvidenceURL, id: r.NumericID}
		r.DuplicateFlag = len(descriptions[key]) > 1
		if r.DuplicateFlag {
			flagged++
		}
	}

	if flagged > 0 {
		n.logger.Warn("inconsistent case descriptions", zap.Int("records", flagged))
	}
	return records, nil
}

// tally aggregates lookup misses into a single warning.
type tally struct {
	affected int
	values   []string
	seen     map[string]bool
}

func (t *tally) add(value string) {
	t.affected++
	if t.seen == nil {
		t.seen = make(map[string]bool)
	}
	if !t.seen[value] {
		t.seen[value] = true
		t.values = append(t.values, value)
	}
}

func (t *tally) report(report *model.Report, logger *zap.Logger, typ model.WarningType, stage, message string) {
	if t.affected == 0 {
		return
	}
	logger.Warn(message,
		zap.String("stage", stage),
		zap.Int("affected", t.affected),
		zap.Strings("values", t.values))
	if report != nil {
		report.Add(model.Warning{
			Type:     typ,
			Stage:    stage,
			Message:  message,
			Affected: t.affected,
			Values:   t.values,
		})
	}
}
