package models

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// Record is a schemaless document held in a named collection. The store
// reports the document id under the "id" key.
type Record map[string]any

// Well-known collections.
const (
	CollectionInterns      = "interns"
	CollectionPolicies     = "policies"
	CollectionReports      = "reports"
	CollectionGeneral      = "general"
	CollectionSettings     = "settings"
	CollectionEmailLogs    = "email_logs"
	CollectionWorkflowRuns = "workflow_runs"
)

var collectionPattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollection rejects collection names outside [a-z0-9_]{1,64}.
func ValidateCollection(name string) error {
	if !collectionPattern.MatchString(name) {
		return Invalid("collection", fmt.Sprintf("%q must match [a-z0-9_]{1,64}", name))
	}
	return nil
}

// ID returns the record id or "" when absent.
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

// String returns a top-level string field or "".
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// ToRecord converts a JSON-tagged struct into a Record.
func ToRecord(v any) (Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// FromRecord decodes a Record into a JSON-tagged struct.
func FromRecord(rec Record, v any) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}
