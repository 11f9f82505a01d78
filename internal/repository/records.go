package repository

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"mail-agent/backend/pkg/models"
)

// encodeData marshals rec without its "id" key, which the store owns.
func encodeData(rec models.Record) ([]byte, error) {
	data := make(map[string]any, len(rec))
	for k, v := range rec {
		if k == "id" {
			continue
		}
		data[k] = v
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return b, nil
}

// decodeData unmarshals stored JSON and stamps the record id.
func decodeData(id string, b []byte) (models.Record, error) {
	rec := models.Record{}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", id, err)
		}
	}
	rec["id"] = id
	return rec, nil
}

// normalize round-trips v through JSON so Go values compare the way they
// would after being stored (numbers become float64, structs become maps).
func normalize(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

// matches reports whether every filter equals the record's top-level field.
func matches(rec models.Record, filters map[string]any) bool {
	for k, want := range filters {
		got, ok := rec[k]
		if !ok {
			return false
		}
		if !reflect.DeepEqual(normalize(got), normalize(want)) {
			return false
		}
	}
	return true
}

// merge applies patch over rec, ignoring "id".
func merge(rec, patch models.Record) {
	for k, v := range patch {
		if k == "id" {
			continue
		}
		rec[k] = normalize(v)
	}
}

func checkCollection(collection string) error {
	return models.ValidateCollection(collection)
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return models.Invalid("key", "is required")
	}
	return nil
}

func encodeFilters(filters map[string]any) ([]byte, error) {
	if filters == nil {
		filters = map[string]any{}
	}
	b, err := json.Marshal(filters)
	if err != nil {
		return nil, models.Invalid("filters", err.Error())
	}
	return b, nil
}
