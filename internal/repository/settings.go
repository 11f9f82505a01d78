package repository

import (
	"context"
	"fmt"

	"mail-agent/backend/pkg/models"
)

// GetSettings returns the organization settings merged over the defaults.
func GetSettings(ctx context.Context, store RecordStore) (models.Settings, error) {
	settings := models.DefaultSettings()
	recs, err := store.Query(ctx, models.CollectionSettings,
		map[string]any{"name": models.SettingsDocumentName}, 1)
	if err != nil {
		return settings, fmt.Errorf("load settings: %w", err)
	}
	if len(recs) == 0 {
		return settings, nil
	}
	if err := models.FromRecord(recs[0], &settings); err != nil {
		return models.DefaultSettings(), err
	}
	return settings, nil
}

// SaveSettings creates or patches the organization settings document.
func SaveSettings(ctx context.Context, store RecordStore, patch models.Record) error {
	doc := models.Record{}
	for k, v := range patch {
		doc[k] = v
	}
	doc["name"] = models.SettingsDocumentName
	ok, err := store.Update(ctx, models.CollectionSettings, models.SettingsDocumentName, doc)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	if ok {
		return nil
	}
	if _, err := store.Create(ctx, models.CollectionSettings, doc); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
