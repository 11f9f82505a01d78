package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"mail-agent/backend/pkg/models"
)

// PostgresStore is a PostgreSQL implementation of RecordStore. Records live
// in a single JSONB table keyed by collection.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresPool opens and pings a connection pool.
func NewPostgresPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Create inserts a record and returns its generated id.
func (s *PostgresStore) Create(ctx context.Context, collection string, rec models.Record) (string, error) {
	if err := checkCollection(collection); err != nil {
		return "", err
	}
	data, err := encodeData(rec)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = s.db.Exec(ctx,
		"INSERT INTO records (id, collection, data) VALUES ($1, $2, $3::jsonb)",
		id, collection, string(data))
	if err != nil {
		return "", fmt.Errorf("insert into %s: %w", collection, err)
	}
	return id, nil
}

// Read retrieves a record by id.
func (s *PostgresStore) Read(ctx context.Context, collection, id string) (models.Record, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.QueryRow(ctx,
		"SELECT data FROM records WHERE collection = $1 AND id::text = $2",
		collection, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", collection, id, err)
	}
	return decodeData(id, data)
}

// Query returns the records whose top-level fields equal every filter,
// oldest first. Each filter is compared whole, so an array filter only
// matches an identical array.
func (s *PostgresStore) Query(ctx context.Context, collection string, filters map[string]any, limit int) ([]models.Record, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	filter, err := encodeFilters(filters)
	if err != nil {
		return nil, err
	}
	var lim any
	if limit > 0 {
		lim = limit
	}

	rows, err := s.db.Query(ctx,
		`SELECT id::text, data FROM records
		 WHERE collection = $1
		   AND NOT EXISTS (
		     SELECT 1 FROM jsonb_each($2::jsonb) f
		     WHERE data -> f.key IS DISTINCT FROM f.value)
		 ORDER BY seq LIMIT $3`,
		collection, string(filter), lim)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	out := []models.Record{}
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		rec, err := decodeData(id, data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Update merges patch into the record matched by id or, failing that, by
// the oldest record with that name.
func (s *PostgresStore) Update(ctx context.Context, collection, key string, patch models.Record) (bool, error) {
	if err := checkCollection(collection); err != nil {
		return false, err
	}
	if err := checkKey(key); err != nil {
		return false, err
	}
	data, err := encodeData(patch)
	if err != nil {
		return false, err
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE records SET data = data || $3::jsonb, updated_at = now()
		 WHERE id = (
		     SELECT id FROM records
		     WHERE collection = $1 AND (id::text = $2 OR data->>'name' = $2)
		     ORDER BY (id::text = $2) DESC, seq
		     LIMIT 1
		 )`,
		collection, key, string(data))
	if err != nil {
		return false, fmt.Errorf("update %s/%s: %w", collection, key, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Ping checks the pool.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Migrate applies the embedded Postgres migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.db)
	defer db.Close()
	return runMigrations(ctx, db, dialectPostgres)
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
