//go:build cgo

package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/TheBB/Grevling/pkg/gerr"
)

const driverLibsql = "libsql"

// Open opens (and creates if needed) the result database.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, gerr.Wrap("store.Open", cfg.Path, err)
	}

	db, err := sql.Open(driverLibsql, dsn)
	if err != nil {
		return nil, gerr.Wrap("store.Open", dsn, fmt.Errorf("open result store: %w", err))
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, gerr.Wrap("store.Open", dsn, fmt.Errorf("ping result store: %w", err))
	}
	if err := configureLocalSQLite(ctx, db, dsn); err != nil {
		_ = db.Close()
		return nil, gerr.Wrap("store.Open", dsn, err)
	}
	return db, nil
}
