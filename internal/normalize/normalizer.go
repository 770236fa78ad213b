// Package normalize turns extracted loss records into the published record
// set. Stages run in a fixed order over the whole set; each is total and
// either transforms every record or fails the run with a StageError.
package normalize

import (
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/lossledger/internal/model"
	"go.uber.org/zap"
)

// Stage names, in execution order.
const (
	StageCleanStrings       = "clean_strings"
	StageAssignStatus       = "assign_status"
	StageProductionCountry  = "assign_production_country"
	StageEvidenceSource     = "assign_evidence_source"
	StageHashEvidence       = "hash_evidence"
	StageResolveRelocations = "resolve_relocations"
	StageAssignCaseIDs      = "assign_case_ids"
	StageFlagDuplicateKeys  = "flag_duplicate_keys"
)

// Stage is one normalization step. Stages may modify records in place.
type Stage struct {
	Name  string
	Apply func(records []model.LossRecord, report *model.Report) ([]model.LossRecord, error)
}

// Normalizer runs the normalization stages
type Normalizer struct {
	statuses  *StatusClassifier
	sources   *SourceClassifier
	relocator *Relocator
	flags     model.CountryFlagMap
	logger    *zap.Logger
}

// New creates a normalizer from the configured tables and the loaded assets.
func New(cfg model.NormalizeConfig, flags model.CountryFlagMap, rules []model.CorrectionRule, logger *zap.Logger) (*Normalizer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	statuses, err := NewStatusClassifier(cfg.StatusKeywords)
	if err != nil {
		return nil, err
	}
	sources, err := NewSourceClassifier(cfg.HostSources)
	if err != nil {
		return nil, err
	}
	relocator, err := NewRelocator(cfg.SupersededCategories, rules)
	if err != nil {
		return nil, err
	}
	if flags == nil {
		flags = model.CountryFlagMap{}
	}

	return &Normalizer{
		statuses:  statuses,
		sources:   sources,
		relocator: relocator,
		flags:     flags,
		logger:    logger,
	}, nil
}

// Stages returns every stage in execution order.
func (n *Normalizer) Stages() []Stage {
	return []Stage{
		{Name: StageCleanStrings, Apply: n.CleanStrings},
		{Name: StageAssignStatus, Apply: n.AssignStatus},
		{Name: StageProductionCountry, Apply: n.AssignProductionCountry},
		{Name: StageEvidenceSource, Apply: n.AssignEvidenceSource},
		{Name: StageHashEvidence, Apply: n.HashEvidence},
		{Name: StageResolveRelocations, Apply: n.ResolveRelocations},
		{Name: StageAssignCaseIDs, Apply: n.AssignCaseIDs},
		{Name: StageFlagDuplicateKeys, Apply: n.FlagDuplicateKeys},
	}
}

// Run normalizes raw records collected on asOf. The input is not modified.
func (n *Normalizer) Run(raw []model.RawLossRecord, asOf time.Time) ([]model.LossRecord, model.Report, error) {
	var report model.Report
	if len(raw) == 0 {
		return nil, report, &StageError{Stage: "input", Err: ErrNoRecords}
	}

	records := model.FromRaw(raw)
	asOf = asOf.UTC().Truncate(time.Second)
	for i := range records {
		records[i].AsOfDate = asOf
	}

	for _, stage := range n.Stages() {
		var err error
		before := len(records)
		records, err = stage.Apply(records, &report)
		if err != nil {
			var stageErr *StageError
			if !errors.As(err, &stageErr) {
				err = &StageError{Stage: stage.Name, Err: err}
			}
			n.logger.Error("normalization failed", zap.String("stage", stage.Name), zap.Error(err))
			return nil, report, err
		}
		n.logger.Debug("stage complete",
			zap.String("stage", stage.Name),
			zap.Int("records_in", before),
			zap.Int("records_out", len(records)))
	}

	n.logger.Info("normalization complete",
		zap.Int("records", len(records)),
		zap.Int("warnings", len(report.Warnings)))
	return records, report, nil
}

// recordKey identifies a record in error messages.
func recordKey(r model.LossRecord) string {
	return fmt.Sprintf("country=%q category=%q model=%q url=%q id=%d",
		r.Country, r.Category, r.Model, r.EvidenceURL, r.NumericID)
}
