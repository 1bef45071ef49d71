package grevling

import (
	"context"

	"github.com/TheBB/Grevling/pkg/gerr"
	"github.com/TheBB/Grevling/pkg/instance"
)

// Capture re-runs every downloaded instance's captures against its
// already-persisted book-keeping (the <cmd>.stdout files and
// grevling.txt copied down by a prior Run), without touching the remote
// workspace or rerunning any command. It is safe to invoke repeatedly,
// e.g. after widening a Capture's regex and wanting updated captured.json
// files without re-executing every script. Returns the number of
// instances re-captured.
func (c *Case) Capture(ctx context.Context) (int, error) {
	lock, err := acquireLock(c.lockPath(), c.config.LockWait)
	if err != nil {
		return 0, err
	}
	defer func() { _ = lock.Unlock() }()

	count := 0
	for _, tuple := range c.tuples {
		logdir, _ := tuple["g_logdir"].(string)
		status, ok, err := instance.Peek(c.storageWs, logdir)
		if err != nil {
			return count, gerr.Wrap("grevling.Capture", logdir, err)
		}
		if !ok || status != instance.Downloaded {
			continue
		}

		inst, err := instance.New(c.storageWs, logdir, tuple, c.mgr, c.logger)
		if err != nil {
			return count, gerr.Wrap("grevling.Capture", logdir, err)
		}
		if err := inst.Recapture(c.spec.Script); err != nil {
			return count, gerr.Wrap("grevling.Capture", logdir, err)
		}
		count++
	}

	return count, nil
}
