package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"mail-agent/backend/pkg/models"
)

// SQLiteStore is an embedded RecordStore for single-node deployments.
// Filtering and merging happen in Go; SQLite only stores the JSON text.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens the database at path, creating parent directories.
// ":memory:" gives a private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection serializes writers and keeps :memory: shared.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func (s *SQLiteStore) Create(ctx context.Context, collection string, rec models.Record) (string, error) {
	if err := checkCollection(collection); err != nil {
		return "", err
	}
	data, err := encodeData(rec)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	ts := now()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO records (id, collection, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		id, collection, string(data), ts, ts)
	if err != nil {
		return "", fmt.Errorf("insert into %s: %w", collection, err)
	}
	return id, nil
}

func (s *SQLiteStore) Read(ctx context.Context, collection, id string) (models.Record, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM records WHERE collection = ? AND id = ?", collection, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", collection, id, err)
	}
	return decodeData(id, []byte(data))
}

func (s *SQLiteStore) Query(ctx context.Context, collection string, filters map[string]any, limit int) ([]models.Record, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	if _, err := encodeFilters(filters); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, data FROM records WHERE collection = ? ORDER BY seq", collection)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	out := []models.Record{}
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		rec, err := decodeData(id, []byte(data))
		if err != nil {
			return nil, err
		}
		if !matches(rec, filters) {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Update(ctx context.Context, collection, key string, patch models.Record) (bool, error) {
	if err := checkCollection(collection); err != nil {
		return false, err
	}
	if err := checkKey(key); err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var id, data string
	err = tx.QueryRowContext(ctx,
		`SELECT id, data FROM records
		 WHERE collection = ? AND (id = ? OR json_extract(data, '$.name') = ?)
		 ORDER BY (id = ?) DESC, seq
		 LIMIT 1`,
		collection, key, key, key).Scan(&id, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("update %s/%s: %w", collection, key, err)
	}

	rec, err := decodeData(id, []byte(data))
	if err != nil {
		return false, err
	}
	merge(rec, patch)
	merged, err := encodeData(rec)
	if err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE records SET data = ?, updated_at = ? WHERE id = ?", string(merged), now(), id); err != nil {
		return false, fmt.Errorf("update %s/%s: %w", collection, key, err)
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies the embedded SQLite migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db, dialectSQLite)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
