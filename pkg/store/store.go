// Package store implements Case.Collect's columnar result store: a
// single-file SQLite database whose schema is derived from
// TypeManager.TabularSchema, with one row per downloaded instance keyed
// by g_index.
//
// Grounded directly on the teacher's pkg/indexstore (dual-driver DSN
// selection, WAL mode, single-connection pool) and pkg/reflowstate
// (upsert-by-key schema via ON CONFLICT DO UPDATE).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/TheBB/Grevling/pkg/gerr"
	"github.com/TheBB/Grevling/pkg/gtype"
)

// Config selects where the result database lives.
type Config struct {
	// Path is a local filesystem path to the database file, or
	// ":memory:" for an ephemeral in-process store (used by tests).
	Path string
}

func buildDSN(cfg Config) (string, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return "", fmt.Errorf("store path is required")
	}
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "file:") {
		localPath, err := extractFilePath(path)
		if err != nil {
			return "", err
		}
		if err := ensureDir(localPath); err != nil {
			return "", err
		}
		return path, nil
	}
	if err := ensureDir(path); err != nil {
		return "", err
	}
	return "file:" + filepath.Clean(path), nil
}

func extractFilePath(dsn string) (string, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store path: %w", err)
	}
	if parsed.Path != "" {
		return strings.TrimPrefix(parsed.Path, "//"), nil
	}
	return strings.TrimPrefix(parsed.Opaque, "//"), nil
}

func ensureDir(path string) error {
	if strings.TrimSpace(path) == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(filepath.Clean(path))
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}

func configureLocalSQLite(ctx context.Context, db *sql.DB, dsn string) error {
	if dsn == ":memory:" {
		return nil
	}
	if !strings.HasPrefix(dsn, "file:") {
		return nil
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var journalMode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	var busyTimeout int
	if err := db.QueryRowContext(ctx, "PRAGMA busy_timeout=5000").Scan(&busyTimeout); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	return nil
}

// sqlType maps a gtype dtype name onto a SQLite storage class.
func sqlType(dtype string) string {
	switch dtype {
	case "int64", "bool":
		return "INTEGER"
	case "float64":
		return "REAL"
	default:
		return "TEXT"
	}
}

// quoteIdent double-quotes a SQL identifier, escaping embedded quotes,
// so arbitrary parameter/evaluable/capture names cannot collide with
// keywords or break the statement.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Store wraps the opened database with the Results table's dynamic
// schema (derived once per Case from TypeManager.TabularSchema).
type Store struct {
	db      *sql.DB
	columns []gtype.ColumnSchema
	mgr     *gtype.Manager
}

// New wraps an opened db with mgr's schema, creating the Results table
// if it does not already exist.
func New(ctx context.Context, db *sql.DB, mgr *gtype.Manager) (*Store, error) {
	s := &Store{db: db, columns: mgr.TabularSchema(), mgr: mgr}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	var b strings.Builder
	b.WriteString(`CREATE TABLE IF NOT EXISTS results (g_index INTEGER PRIMARY KEY`)
	for _, col := range s.columns {
		if col.Name == "g_index" {
			continue
		}
		fmt.Fprintf(&b, ", %s %s", quoteIdent(col.Name), sqlType(col.Dtype))
	}
	b.WriteString(")")
	if _, err := s.db.ExecContext(ctx, b.String()); err != nil {
		return gerr.Wrap("store.ensureSchema", "results", err)
	}
	return nil
}

// UpsertRow inserts the row for row["g_index"]; when that g_index is
// already stored, only the declared columns present in row are updated
// and the others keep their stored values (a row holding nothing but
// g_index replaces the stored row). List-typed columns are stored as
// their JSON text via mgr's encoding; every other column stores its
// native SQLite-compatible value.
func (s *Store) UpsertRow(ctx context.Context, row map[string]any) error {
	gIndex, ok := row["g_index"]
	if !ok {
		return gerr.Wrap("store.UpsertRow", "", fmt.Errorf("row is missing g_index"))
	}

	cols := []string{"g_index"}
	placeholders := []string{"?"}
	args := []any{toSQLValue(gIndex)}

	for _, col := range s.columns {
		if col.Name == "g_index" {
			continue
		}
		v, present := row[col.Name]
		if !present {
			continue
		}
		sv, err := s.toColumnValue(col, v)
		if err != nil {
			return gerr.Wrap("store.UpsertRow", col.Name, err)
		}
		cols = append(cols, quoteIdent(col.Name))
		placeholders = append(placeholders, "?")
		args = append(args, sv)
	}

	updates := make([]string, 0, len(cols)-1)
	for _, c := range cols[1:] {
		updates = append(updates, fmt.Sprintf("%s=excluded.%s", c, c))
	}

	query := fmt.Sprintf(
		"INSERT INTO results (%s) VALUES (%s) ON CONFLICT(g_index) DO UPDATE SET %s",
		strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(updates, ", "),
	)
	if len(updates) == 0 {
		query = fmt.Sprintf("INSERT OR REPLACE INTO results (%s) VALUES (%s)", strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return gerr.Wrap("store.UpsertRow", "results", err)
	}
	return nil
}

func (s *Store) toColumnValue(col gtype.ColumnSchema, v any) (any, error) {
	if col.Dtype == "object" {
		typ, _ := s.mgr.TypeOf(col.Name)
		raw, err := typ.EncodeJSON(v)
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	}
	return toSQLValue(v), nil
}

func toSQLValue(v any) any {
	switch x := v.(type) {
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		return x.UTC().Format(gtype.DateTimeLayout)
	default:
		return v
	}
}

// Reset drops and recreates the Results table, used by Collect to give
// repeated runs a deterministic, fully-recomputed snapshot rather than
// layering upserts on top of rows whose instances may have been pruned.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS results"); err != nil {
		return gerr.Wrap("store.Reset", "results", err)
	}
	return s.ensureSchema(ctx)
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Columns returns the store's column schema, in TabularSchema order.
func (s *Store) Columns() []gtype.ColumnSchema {
	return s.columns
}
