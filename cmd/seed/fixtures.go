package main

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"mail-agent/backend/internal/logging"
	"mail-agent/backend/internal/repository"
	"mail-agent/backend/pkg/models"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

// Fixtures is the seed file layout: optional organization settings plus
// records keyed by collection.
type Fixtures struct {
	Settings    map[string]any             `yaml:"settings"`
	Collections map[string][]models.Record `yaml:"collections"`
}

// SeedReport counts what Apply did.
type SeedReport struct {
	Created  int
	Skipped  int
	Settings bool
}

func loadFixtures(path string) (*Fixtures, error) {
	data := defaultFixtures
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read fixtures: %w", err)
		}
		data = b
	}
	return parseFixtures(data)
}

func parseFixtures(data []byte) (*Fixtures, error) {
	var fx Fixtures
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	for collection, recs := range fx.Collections {
		if err := models.ValidateCollection(collection); err != nil {
			return nil, err
		}
		if collection == models.CollectionSettings {
			return nil, models.Invalid("collections", "settings belong under the top-level settings key")
		}
		for i, rec := range recs {
			if strings.TrimSpace(rec.String("name")) == "" {
				return nil, models.Invalid("name", fmt.Sprintf("%s[%d] has no name", collection, i))
			}
		}
	}
	return &fx, nil
}

// Apply writes the fixtures to store. A record is skipped when its
// collection already holds one with the same name.
func (fx *Fixtures) Apply(ctx context.Context, store repository.RecordStore, logger *logging.Logger) (SeedReport, error) {
	var report SeedReport
	if logger == nil {
		logger = logging.Discard()
	}

	if len(fx.Settings) > 0 {
		if err := repository.SaveSettings(ctx, store, models.Record(fx.Settings)); err != nil {
			return report, err
		}
		report.Settings = true
		logger.Info("Seeded settings", "fields", len(fx.Settings))
	}

	collections := make([]string, 0, len(fx.Collections))
	for c := range fx.Collections {
		collections = append(collections, c)
	}
	sort.Strings(collections)

	for _, collection := range collections {
		for _, rec := range fx.Collections[collection] {
			name := rec.String("name")
			existing, err := store.Query(ctx, collection, map[string]any{"name": name}, 1)
			if err != nil {
				return report, fmt.Errorf("check %s/%s: %w", collection, name, err)
			}
			if len(existing) > 0 {
				logger.Info("Skipping existing record", "collection", collection, "name", name)
				report.Skipped++
				continue
			}
			id, err := store.Create(ctx, collection, rec)
			if err != nil {
				return report, fmt.Errorf("create %s/%s: %w", collection, name, err)
			}
			logger.Info("Seeded record", "collection", collection, "name", name, "id", id)
			report.Created++
		}
	}
	return report, nil
}
