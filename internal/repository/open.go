package repository

import (
	"context"
	"fmt"

	"mail-agent/backend/internal/config"
)

// Open builds the Store selected by cfg.Driver. It does not migrate.
func Open(ctx context.Context, cfg config.DBConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := NewPostgresPool(ctx, cfg.DSN(), cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		return NewPostgresStore(pool), nil
	case "sqlite":
		return OpenSQLite(cfg.Path)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}
}
