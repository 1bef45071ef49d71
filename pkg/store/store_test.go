package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TheBB/Grevling/pkg/gtype"
	"github.com/TheBB/Grevling/pkg/store"
)

func testManager() *gtype.Manager {
	mgr := gtype.NewManager()
	mgr.Declare("g_index", gtype.NewInteger(), gtype.StagePre)
	mgr.Declare("alpha", gtype.NewFloat(), gtype.StagePre)
	mgr.Declare("name", gtype.NewString(), gtype.StagePre)
	mgr.Declare("tags", gtype.NewList(gtype.NewString()), gtype.StagePost)
	mgr.Declare("g_success", gtype.NewBoolean(), gtype.StagePost)
	return mgr
}

func TestUpsertAndReset(t *testing.T) {
	ctx := context.Background()
	mgr := testManager()

	dbPath := filepath.Join(t.TempDir(), "grevling.db")
	db, err := store.Open(ctx, store.Config{Path: dbPath})
	require.NoError(t, err)
	defer db.Close()

	s, err := store.New(ctx, db, mgr)
	require.NoError(t, err)

	require.NoError(t, s.UpsertRow(ctx, map[string]any{
		"g_index":   int64(0),
		"alpha":     1.5,
		"name":      "run-0",
		"tags":      []any{"a", "b"},
		"g_success": true,
	}))
	require.NoError(t, s.UpsertRow(ctx, map[string]any{
		"g_index": int64(0),
		"alpha":   2.5,
	}))

	var alpha float64
	var name string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT "alpha", "name" FROM results WHERE g_index = 0`).Scan(&alpha, &name))
	require.Equal(t, 2.5, alpha)
	require.Equal(t, "run-0", name)

	require.NoError(t, s.Reset(ctx))
	err = db.QueryRowContext(ctx, `SELECT "alpha" FROM results WHERE g_index = 0`).Scan(&alpha)
	require.Error(t, err)
}

func TestColumnsMatchTabularSchema(t *testing.T) {
	mgr := testManager()
	ctx := context.Background()
	db, err := store.Open(ctx, store.Config{Path: ":memory:"})
	require.NoError(t, err)
	defer db.Close()

	s, err := store.New(ctx, db, mgr)
	require.NoError(t, err)
	require.Equal(t, mgr.TabularSchema(), s.Columns())
}
