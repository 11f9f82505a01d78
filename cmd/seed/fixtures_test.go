package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mail-agent/backend/internal/repository"
	"mail-agent/backend/pkg/models"
)

func TestParseFixtures_Bundled(t *testing.T) {
	fx, err := parseFixtures(defaultFixtures)
	require.NoError(t, err)

	assert.Equal(t, "Example Corp", fx.Settings["company_name"])
	assert.Len(t, fx.Collections[models.CollectionPolicies], 3)
	assert.Len(t, fx.Collections[models.CollectionReports], 1)
	assert.Len(t, fx.Collections[models.CollectionInterns], 1)
}

func TestParseFixtures_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", "collections: [oops\n"},
		{"bad collection", "collections:\n  Bad-Name:\n    - name: x\n"},
		{"settings collection", "collections:\n  settings:\n    - name: organization\n"},
		{"unnamed record", "collections:\n  policies:\n    - content: no name\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFixtures([]byte(tt.body))
			assert.Error(t, err)
		})
	}

	_, err := parseFixtures([]byte("collections:\n  policies:\n    - content: no name\n"))
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestApply_IsRepeatable(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()

	fx, err := parseFixtures(defaultFixtures)
	require.NoError(t, err)

	first, err := fx.Apply(ctx, store, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, first.Created)
	assert.Zero(t, first.Skipped)
	assert.True(t, first.Settings)

	second, err := fx.Apply(ctx, store, nil)
	require.NoError(t, err)
	assert.Zero(t, second.Created)
	assert.Equal(t, 5, second.Skipped)

	policies, err := store.Query(ctx, models.CollectionPolicies, nil, 0)
	require.NoError(t, err)
	assert.Len(t, policies, 3)

	settings, err := repository.GetSettings(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "Example Corp", settings.CompanyName)
	assert.Equal(t, 12, settings.DefaultPasswordLength)
}
