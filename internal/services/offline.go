package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"mail-agent/backend/pkg/models"
)

// OfflineGenerator answers without any model. Its text is deterministic,
// which makes it the generator of choice for local runs and tests.
type OfflineGenerator struct{}

// NewOfflineGenerator creates an OfflineGenerator.
func NewOfflineGenerator() *OfflineGenerator {
	return &OfflineGenerator{}
}

// Complete always fails so model-backed classification falls through to
// the keyword rules.
func (g *OfflineGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	return "", &models.UpstreamCallError{Service: ServiceOffline, Detail: "offline generator has no model"}
}

// Generate echoes the request and summarizes the lookup.
func (g *OfflineGenerator) Generate(ctx context.Context, prompt string, lookup *models.LookupResult) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Response to: %s\n\n", prompt)
	if lookup == nil || !lookup.Success {
		b.WriteString("Generated response based on request (no database access needed).")
		return b.String(), nil
	}
	fmt.Fprintf(&b, "Found %d records in database.\n", lookup.Count)
	if len(lookup.Records) == 0 {
		b.WriteString("Data summary: No data available")
		return b.String(), nil
	}
	sample := lookup.Records
	if len(sample) > 2 {
		sample = sample[:2]
	}
	data, _ := json.Marshal(sample)
	fmt.Fprintf(&b, "Data summary: %s", data)
	return b.String(), nil
}
