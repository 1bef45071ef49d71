package grevling

import (
	"context"
	"path/filepath"

	"github.com/TheBB/Grevling/pkg/gerr"
	"github.com/TheBB/Grevling/pkg/instance"
	"github.com/TheBB/Grevling/pkg/store"
)

// dbFileName is the columnar result store's file name at the storage
// root, per the on-disk storage contract.
const dbFileName = "grevling.db"

// Collect walks every instance that has reached Downloaded, loads its
// context and captured.json, and materialises the rows into a
// SQLite-backed columnar table at <storage>/grevling.db, whose schema is
// TypeManager.TabularSchema(). It resets the table before writing, so
// repeated calls over unchanged storage produce the same row set rather
// than layering upserts on top of stale rows (an earlier instance list
// minus ones later pruned from the spec would otherwise linger).
// Returns the number of rows written.
func (c *Case) Collect(ctx context.Context) (int, error) {
	lock, err := acquireLock(c.lockPath(), c.config.LockWait)
	if err != nil {
		return 0, err
	}
	defer func() { _ = lock.Unlock() }()

	db, err := store.Open(ctx, store.Config{Path: filepath.Join(c.spec.StorageDir, dbFileName)})
	if err != nil {
		return 0, gerr.Wrap("grevling.Collect", "", err)
	}
	defer db.Close()

	st, err := store.New(ctx, db, c.mgr)
	if err != nil {
		return 0, gerr.Wrap("grevling.Collect", "", err)
	}
	if err := st.Reset(ctx); err != nil {
		return 0, gerr.Wrap("grevling.Collect", "", err)
	}

	count := 0
	for _, tuple := range c.tuples {
		logdir, _ := tuple["g_logdir"].(string)
		status, ok, err := instance.Peek(c.storageWs, logdir)
		if err != nil {
			return count, gerr.Wrap("grevling.Collect", logdir, err)
		}
		if !ok || status != instance.Downloaded {
			continue
		}

		inst, err := instance.New(c.storageWs, logdir, tuple, c.mgr, c.logger)
		if err != nil {
			return count, gerr.Wrap("grevling.Collect", logdir, err)
		}
		captured, err := inst.ReadCaptured()
		if err != nil {
			return count, gerr.Wrap("grevling.Collect", logdir, err)
		}

		row := make(map[string]any, len(inst.Context)+len(captured))
		for k, v := range inst.Context {
			row[k] = v
		}
		for k, v := range captured {
			row[k] = v
		}

		if err := st.UpsertRow(ctx, row); err != nil {
			return count, gerr.Wrap("grevling.Collect", logdir, err)
		}
		count++
	}

	return count, nil
}
