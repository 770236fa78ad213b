package worker

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/lossledger/internal/extract"
	"github.com/ppiankov/lossledger/internal/model"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// PageSource fetches and parses one report page
type PageSource interface {
	ParsePage(ctx context.Context, page model.PageConfig) ([]model.RawLossRecord, []extract.Skip, error)
}

// PageJob parses one page
type PageJob struct {
	Page   model.PageConfig
	Source PageSource
}

// Execute parses the page
func (j *PageJob) Execute(ctx context.Context) *PageResult {
	start := time.Now()
	records, skips, err := j.Source.ParsePage(ctx, j.Page)
	return &PageResult{
		Page:     j.Page,
		Records:  records,
		Skips:    skips,
		Error:    err,
		Duration: time.Since(start),
	}
}

// PageResult is the outcome of one page
type PageResult struct {
	Page     model.PageConfig
	Records  []model.RawLossRecord
	Skips    []extract.Skip
	Error    error
	Duration time.Duration
}

// BatchProcessor parses pages concurrently
type BatchProcessor struct {
	source      PageSource
	concurrency int
	logger      *zap.Logger
}

// NewBatchProcessor creates a batch processor
func NewBatchProcessor(source PageSource, concurrency int, logger *zap.Logger) *BatchProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchProcessor{
		source:      source,
		concurrency: concurrency,
		logger:      logger,
	}
}

// ProcessPages parses every page and returns one result per page, in page
// order. Page failures are reported in PageResult.Error; the returned error
// is only set when ctx ends early.
func (b *BatchProcessor) ProcessPages(ctx context.Context, pages []model.PageConfig) ([]*PageResult, error) {
	if len(pages) == 0 {
		return []*PageResult{}, nil
	}

	pool := NewPool[*PageResult](ctx, b.concurrency)
	pool.Start()
	for _, page := range pages {
		pool.Submit(&PageJob{Page: page, Source: b.source})
	}

	results, err := pool.Wait()
	for i, r := range results {
		if r == nil {
			results[i] = &PageResult{Page: pages[i], Error: eris.Wrap(ctx.Err(), "page not processed")}
			continue
		}
		log := b.logger.With(zap.String("page", r.Page.URL))
		if r.Error != nil {
			log.Error("page failed", zap.Error(r.Error))
			continue
		}
		log.Info("page parsed",
			zap.Int("records", len(r.Records)),
			zap.Int("skipped", len(r.Skips)),
			zap.Duration("duration", r.Duration))
	}
	return results, err
}

// ReadPagesFromFile reads a page list, one page per line:
//
//	<url> [<country> <section index>]
//
// Lines without a country describe combined documents. Blank lines and
// lines starting with # are ignored; repeated URLs are dropped.
func ReadPagesFromFile(filePath string) ([]model.PageConfig, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, eris.Wrap(err, "open page list")
	}
	defer func() { _ = file.Close() }()

	var pages []model.PageConfig
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		page, err := parsePageLine(line)
		if err != nil {
			return nil, eris.Wrapf(err, "%s:%d", filePath, lineNo)
		}
		if !seen[page.URL] {
			seen[page.URL] = true
			pages = append(pages, page)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "scan page list")
	}
	return pages, nil
}

func parsePageLine(line string) (model.PageConfig, error) {
	fields := strings.Fields(line)
	switch len(fields) {
	case 1:
		return model.PageConfig{URL: fields[0]}, nil
	case 3:
		idx, err := strconv.Atoi(fields[2])
		if err != nil || idx < 0 {
			return model.PageConfig{}, eris.Errorf("bad section index %q", fields[2])
		}
		return model.PageConfig{URL: fields[0], Country: fields[1], SectionIndex: idx}, nil
	default:
		return model.PageConfig{}, eris.Errorf("want <url> [<country> <section index>], got %q", line)
	}
}
