// Package assets loads the lookup tables used during normalization: the
// production flag map and the category correction rules.
package assets

import (
	"bytes"
	"context"
	"embed"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/ppiankov/lossledger/internal/model"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	flagMapFile     = "data/country_of_production_url_mapping.json"
	correctionsFile = "data/category_corrections.csv"
)

//go:embed data/*
var builtin embed.FS

// Assets holds every lookup table a run needs
type Assets struct {
	Flags       model.CountryFlagMap
	Corrections []model.CorrectionRule
}

// Load reads both tables concurrently. An empty path selects the built-in
// table.
func Load(ctx context.Context, cfg model.AssetsConfig, logger *zap.Logger) (*Assets, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var out Assets
	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		data, err := read(cfg.FlagMapPath, flagMapFile)
		if err != nil {
			return eris.Wrap(err, "assets: read flag map")
		}
		out.Flags, err = ParseFlagMap(bytes.NewReader(data))
		if err != nil {
			return err
		}
		logger.Debug("flag map loaded",
			zap.String("path", describe(cfg.FlagMapPath)),
			zap.Int("flags", len(out.Flags)))
		return nil
	})

	g.Go(func() error {
		data, err := read(cfg.CorrectionsPath, correctionsFile)
		if err != nil {
			return eris.Wrap(err, "assets: read category corrections")
		}
		out.Corrections, err = ParseCorrections(data)
		if err != nil {
			return err
		}
		logger.Debug("category corrections loaded",
			zap.String("path", describe(cfg.CorrectionsPath)),
			zap.Int("rules", len(out.Corrections)))
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

func read(path, fallback string) ([]byte, error) {
	if path == "" {
		return builtin.ReadFile(fallback)
	}
	return os.ReadFile(path)
}

func describe(path string) string {
	if path == "" {
		return "builtin"
	}
	return path
}

// ParseFlagMap decodes {"flag_url": {"Alpha-3": "RUS", ...}, ...}. Only the
// alpha-3 code of each entry is kept.
func ParseFlagMap(r io.Reader) (model.CountryFlagMap, error) {
	var raw map[string]map[string]string
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, eris.Wrap(err, "assets: decode flag map")
	}

	flags := make(model.CountryFlagMap, len(raw))
	for url, lookup := range raw {
		code := strings.TrimSpace(lookup["Alpha-3"])
		if code == "" {
			return nil, eris.Errorf("assets: flag %q has no Alpha-3 code", url)
		}
		flags[strings.TrimSpace(url)] = code
	}
	return flags, nil
}

// ParseCorrections decodes an old_category,model,new_category table. Every
// column must be present in the header.
func ParseCorrections(data []byte) ([]model.CorrectionRule, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(bytes.NewReader(data)))
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "assets: read corrections header")
	}
	dec.DisallowMissingColumns = true

	var rules []model.CorrectionRule
	for {
		var rule model.CorrectionRule
		err := dec.Decode(&rule)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "assets: decode correction on line %d", len(rules)+2)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
