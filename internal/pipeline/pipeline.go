// Package pipeline wires fetching, extraction and normalization into runs.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/lossledger/internal/assets"
	"github.com/ppiankov/lossledger/internal/cache"
	"github.com/ppiankov/lossledger/internal/extract"
	"github.com/ppiankov/lossledger/internal/model"
	"github.com/ppiankov/lossledger/internal/normalize"
	"github.com/ppiankov/lossledger/internal/stats"
	"github.com/ppiankov/lossledger/internal/worker"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// maxSkipsReported caps the skipped node locations listed in a run report
const maxSkipsReported = 20

// Pipeline orchestrates a complete run
type Pipeline struct {
	config     *model.Config
	fetcher    *Fetcher
	parser     *extract.Parser
	normalizer *normalize.Normalizer
	logger     *zap.Logger
}

// NewPipeline creates a pipeline using the loaded lookup tables
func NewPipeline(cfg *model.Config, tables *assets.Assets, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tables == nil {
		tables = &assets.Assets{}
	}

	parser, err := extract.NewParser(extract.Layout{
		BodyClass:         cfg.Parser.BodyClass,
		BodyItemprop:      cfg.Parser.BodyItemprop,
		BoundaryCountries: cfg.Parser.BoundaryCountries,
	}, logger)
	if err != nil {
		return nil, err
	}

	normalizer, err := normalize.New(cfg.Normalize, tables.Flags, tables.Corrections, logger)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		config:     cfg,
		fetcher:    NewFetcher(cfg.HTTP, cache.New(cfg.Cache, logger), worker.NewLimiter(cfg.RateLimiting), logger),
		parser:     parser,
		normalizer: normalizer,
		logger:     logger,
	}, nil
}

// Web returns a page source that fetches pages over HTTP
func (p *Pipeline) Web() worker.PageSource {
	return &webSource{pipeline: p}
}

// Files returns a page source that reads each page URL as a local path
func (p *Pipeline) Files() worker.PageSource {
	return &fileSource{pipeline: p}
}

type webSource struct {
	pipeline *Pipeline
}

func (s *webSource) ParsePage(ctx context.Context, page model.PageConfig) ([]model.RawLossRecord, []extract.Skip, error) {
	res, err := s.pipeline.fetcher.FetchWithRetry(ctx, page.URL)
	if err != nil {
		return nil, nil, err
	}
	return s.pipeline.ParseDocument(bytes.NewReader(res.Body), page)
}

type fileSource struct {
	pipeline *Pipeline
}

func (s *fileSource) ParsePage(_ context.Context, page model.PageConfig) ([]model.RawLossRecord, []extract.Skip, error) {
	f, err := os.Open(page.URL)
	if err != nil {
		return nil, nil, eris.Wrap(err, "open document")
	}
	defer func() { _ = f.Close() }()
	return s.pipeline.ParseDocument(f, page)
}

// ParseDocument extracts the raw records of one document. A page without a
// country is split on its country headings.
func (p *Pipeline) ParseDocument(r io.Reader, page model.PageConfig) ([]model.RawLossRecord, []extract.Skip, error) {
	article, err := p.parser.Parse(r, page.Country, page.SectionIndex)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "parse %s", page.URL)
	}

	log := p.logger.With(zap.String("page", page.URL))
	if page.Combined() {
		log.Debug("combined document split", zap.Strings("countries", article.Countries()))
	}
	records, skips := extract.Collect(article.Results(), log)
	return records, skips, nil
}

// Run parses pages from source concurrently and normalizes the combined
// record set. Any page failure fails the run.
func (p *Pipeline) Run(ctx context.Context, source worker.PageSource, pages []model.PageConfig, asOf time.Time) (*model.Dataset, error) {
	runID := uuid.NewString()
	log := p.logger.With(zap.String("run_id", runID))
	log.Info("run started", zap.Int("pages", len(pages)))

	batch := worker.NewBatchProcessor(source, p.config.Concurrency.Workers, log)
	results, err := batch.ProcessPages(ctx, pages)
	if err != nil {
		return nil, eris.Wrap(err, "run cancelled")
	}

	dataset := &model.Dataset{
		RunID:    runID,
		AsOfDate: asOf.UTC().Truncate(time.Second),
	}

	var raw []model.RawLossRecord
	var skips []extract.Skip
	for _, r := range results {
		if r.Error != nil {
			return nil, eris.Wrapf(r.Error, "page %s", r.Page.URL)
		}
		raw = append(raw, r.Records...)
		skips = append(skips, r.Skips...)
		dataset.Pages = append(dataset.Pages, model.PageResult{
			Source:  r.Page.URL,
			Country: r.Page.Country,
			Records: len(r.Records),
			Skipped: len(r.Skips),
		})
	}

	records, report, err := p.normalizer.Run(raw, asOf)
	if err != nil {
		return nil, err
	}
	if len(skips) > 0 {
		report.Add(skipWarning(skips))
	}

	dataset.Records = records
	dataset.Stats = stats.NewCalculator().Calculate(records)
	dataset.Report = report
	log.Info("run complete",
		zap.Int("raw_records", len(raw)),
		zap.Int("records", len(records)),
		zap.Int("skipped_nodes", len(skips)),
		zap.Int("warnings", len(report.Warnings)))
	return dataset, nil
}

func skipWarning(skips []extract.Skip) model.Warning {
	w := model.Warning{
		Type:     model.WarningSkippedNodes,
		Stage:    "extract",
		Message:  fmt.Sprintf("%d markup nodes could not be parsed", len(skips)),
		Affected: len(skips),
	}
	for i, s := range skips {
		if i == maxSkipsReported {
			break
		}
		w.Values = append(w.Values, s.String())
	}
	return w
}
