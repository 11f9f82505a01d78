package repository

import (
	"context"

	"mail-agent/backend/pkg/models"
)

// RecordStore is CRUD over named collections of schemaless records.
type RecordStore interface {
	// Create stores rec in collection and returns the new record id. Any
	// "id" field in rec is ignored.
	Create(ctx context.Context, collection string, rec models.Record) (string, error)
	// Read returns the record with the given id, or nil when absent.
	Read(ctx context.Context, collection, id string) (models.Record, error)
	// Query returns records whose top-level fields equal every filter,
	// oldest first. A limit of zero or less means no limit.
	Query(ctx context.Context, collection string, filters map[string]any, limit int) ([]models.Record, error)
	// Update shallow-merges patch into the record whose id equals key or,
	// failing that, the oldest record whose name equals key. It reports
	// false when nothing matched.
	Update(ctx context.Context, collection, key string, patch models.Record) (bool, error)
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}

// Store is a RecordStore that owns its connection and schema.
type Store interface {
	RecordStore
	Migrate(ctx context.Context) error
	Close() error
}
