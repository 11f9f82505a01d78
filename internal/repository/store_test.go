package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mail-agent/backend/pkg/models"
)

// runStoreContract exercises the RecordStore behavior every backend shares.
func runStoreContract(t *testing.T, store RecordStore) {
	ctx := context.Background()

	t.Run("Create and Read", func(t *testing.T) {
		id, err := store.Create(ctx, models.CollectionInterns, models.Record{
			"id":         "ignored",
			"name":       "Jane Doe",
			"department": "Engineering",
			"skills":     []string{"go", "sql"},
		})
		require.NoError(t, err)
		require.NotEmpty(t, id)
		assert.NotEqual(t, "ignored", id)

		rec, err := store.Read(ctx, models.CollectionInterns, id)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, id, rec.ID())
		assert.Equal(t, "Jane Doe", rec["name"])
		assert.Equal(t, []any{"go", "sql"}, rec["skills"])
	})

	t.Run("Read missing returns nil", func(t *testing.T) {
		rec, err := store.Read(ctx, models.CollectionInterns, "00000000-0000-0000-0000-000000000000")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("Query filters and limits", func(t *testing.T) {
		for _, name := range []string{"a", "b", "c"} {
			_, err := store.Create(ctx, "query_test", models.Record{"name": name, "status": "pending", "n": 1})
			require.NoError(t, err)
		}
		_, err := store.Create(ctx, "query_test", models.Record{"name": "d", "status": "completed"})
		require.NoError(t, err)

		pending, err := store.Query(ctx, "query_test", map[string]any{"status": "pending"}, 0)
		require.NoError(t, err)
		require.Len(t, pending, 3)
		assert.Equal(t, "a", pending[0]["name"])

		limited, err := store.Query(ctx, "query_test", nil, 2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)

		numeric, err := store.Query(ctx, "query_test", map[string]any{"n": 1}, 0)
		require.NoError(t, err)
		assert.Len(t, numeric, 3)

		_, err = store.Create(ctx, "query_test", models.Record{
			"name": "e", "skills": []any{"go", "sql"}, "profile": map[string]any{"team": "core", "level": 2},
		})
		require.NoError(t, err)

		whole, err := store.Query(ctx, "query_test", map[string]any{"skills": []any{"go", "sql"}}, 0)
		require.NoError(t, err)
		assert.Len(t, whole, 1)

		partialArray, err := store.Query(ctx, "query_test", map[string]any{"skills": []any{"go"}}, 0)
		require.NoError(t, err)
		assert.Empty(t, partialArray)

		partialObject, err := store.Query(ctx, "query_test", map[string]any{"profile": map[string]any{"team": "core"}}, 0)
		require.NoError(t, err)
		assert.Empty(t, partialObject)

		none, err := store.Query(ctx, "empty_collection", nil, 10)
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("Update by id and by name", func(t *testing.T) {
		first, err := store.Create(ctx, "update_test", models.Record{"name": "dup", "status": "pending"})
		require.NoError(t, err)
		second, err := store.Create(ctx, "update_test", models.Record{"name": "dup", "status": "pending"})
		require.NoError(t, err)

		ok, err := store.Update(ctx, "update_test", "dup", models.Record{"status": "processing"})
		require.NoError(t, err)
		assert.True(t, ok)

		rec, err := store.Read(ctx, "update_test", first)
		require.NoError(t, err)
		assert.Equal(t, "processing", rec["status"])
		rec, err = store.Read(ctx, "update_test", second)
		require.NoError(t, err)
		assert.Equal(t, "pending", rec["status"])

		ok, err = store.Update(ctx, "update_test", second, models.Record{"status": "completed", "id": "hijack"})
		require.NoError(t, err)
		assert.True(t, ok)
		rec, err = store.Read(ctx, "update_test", second)
		require.NoError(t, err)
		assert.Equal(t, "completed", rec["status"])
		assert.Equal(t, second, rec.ID())
		assert.Equal(t, "dup", rec["name"])

		ok, err = store.Update(ctx, "update_test", "nobody", models.Record{"status": "completed"})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Update is idempotent", func(t *testing.T) {
		id, err := store.Create(ctx, "idem_test", models.Record{"name": "x", "count": 1})
		require.NoError(t, err)
		patch := models.Record{"status": "completed", "email_sent": true, "company_email": "x@corp.test"}

		_, err = store.Update(ctx, "idem_test", id, patch)
		require.NoError(t, err)
		once, err := store.Read(ctx, "idem_test", id)
		require.NoError(t, err)

		_, err = store.Update(ctx, "idem_test", id, patch)
		require.NoError(t, err)
		twice, err := store.Read(ctx, "idem_test", id)
		require.NoError(t, err)

		assert.Equal(t, once, twice)
		assert.EqualValues(t, 1, twice["count"])
	})

	t.Run("Invalid collection", func(t *testing.T) {
		_, err := store.Create(ctx, "Bad Name", models.Record{})
		assert.True(t, errors.Is(err, models.ErrValidation))
		_, err = store.Query(ctx, "", nil, 0)
		assert.True(t, errors.Is(err, models.ErrValidation))
		_, err = store.Update(ctx, models.CollectionInterns, "", models.Record{})
		assert.True(t, errors.Is(err, models.ErrValidation))
	})

	t.Run("Settings", func(t *testing.T) {
		s, err := GetSettings(ctx, store)
		require.NoError(t, err)
		assert.Equal(t, models.DefaultSettings(), s)

		require.NoError(t, SaveSettings(ctx, store, models.Record{"company_name": "Acme"}))
		require.NoError(t, SaveSettings(ctx, store, models.Record{"default_password_length": 12}))

		s, err = GetSettings(ctx, store)
		require.NoError(t, err)
		assert.Equal(t, "Acme", s.CompanyName)
		assert.Equal(t, 12, s.DefaultPasswordLength)
		assert.Equal(t, "Welcome to {company_name}!", s.EmailTemplate)

		docs, err := store.Query(ctx, models.CollectionSettings, nil, 0)
		require.NoError(t, err)
		assert.Len(t, docs, 1)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestMemoryStore_ReadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	id, err := store.Create(ctx, "copies", models.Record{"name": "a"})
	require.NoError(t, err)

	rec, err := store.Read(ctx, "copies", id)
	require.NoError(t, err)
	rec["name"] = "mutated"

	again, err := store.Read(ctx, "copies", id)
	require.NoError(t, err)
	assert.Equal(t, "a", again["name"])
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Migrate(context.Background()))

	runStoreContract(t, store)
}

func TestSQLiteStore_File(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/nested/agent.db"

	store, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	id, err := store.Create(ctx, models.CollectionInterns, models.Record{"name": "persisted"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()
	require.NoError(t, reopened.Migrate(ctx))

	rec, err := reopened.Read(ctx, models.CollectionInterns, id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "persisted", rec["name"])
}
