package grevling

import (
	"context"

	"go.uber.org/zap"

	"github.com/TheBB/Grevling/pkg/gerr"
	"github.com/TheBB/Grevling/pkg/instance"
	"github.com/TheBB/Grevling/pkg/pipeline"
	"github.com/TheBB/Grevling/pkg/workspace"
	"github.com/TheBB/Grevling/pkg/workspace/local"
)

// pipelineItem threads one instance through Prepare -> Run -> Download,
// carrying the remote workspace Prepare allocates so later stages reuse
// it without re-deriving it from the instance's logdir.
type pipelineItem struct {
	inst       *instance.Instance
	remoteWs   workspace.Workspace
	remoteBook workspace.Workspace
}

// Run acquires the storage root lock, builds the Prepare->Run->Download
// pipeline over every instance not already Downloaded, and drains it.
// Instances already at Downloaded are left untouched, so a re-run after
// a crash only re-drives the instances that did not finish.
func (c *Case) Run(ctx context.Context) (pipeline.Result, error) {
	lock, err := acquireLock(c.lockPath(), c.config.LockWait)
	if err != nil {
		return pipeline.Result{}, err
	}
	defer func() { _ = lock.Unlock() }()

	remoteColl, err := local.NewTempCollection("", "grevling-work-")
	if err != nil {
		return pipeline.Result{}, gerr.Wrap("grevling.Run", "", err)
	}
	defer func() { _ = remoteColl.Close() }()

	items := make([]any, 0, len(c.tuples))
	for _, tuple := range c.tuples {
		logdir, _ := tuple["g_logdir"].(string)
		inst, err := instance.New(c.storageWs, logdir, tuple, c.mgr, c.logger)
		if err != nil {
			return pipeline.Result{}, gerr.Wrap("grevling.Run", logdir, err)
		}
		status, err := inst.Status()
		if err != nil {
			return pipeline.Result{}, gerr.Wrap("grevling.Run", logdir, err)
		}
		if status == instance.Downloaded {
			c.logger.Info("grevling: instance already downloaded, skipping", zap.String("logdir", logdir))
			continue
		}
		items = append(items, &pipelineItem{inst: inst})
	}

	stages := []pipeline.Stage{
		{Name: "prepare", Workers: 1, Apply: c.prepareStage(remoteColl)},
		{Name: "run", Workers: c.config.Nprocs, Apply: c.runStage()},
		{Name: "download", Workers: 1, Apply: c.downloadStage()},
	}
	pl := pipeline.New(stages, c.logger)
	return pl.Run(ctx, items)
}

func (c *Case) prepareStage(remoteColl workspace.Collection) func(context.Context, any) (any, error) {
	return func(_ context.Context, item any) (any, error) {
		it := item.(*pipelineItem)
		remoteWs, err := remoteColl.New(it.inst.Logdir)
		if err != nil {
			return nil, gerr.Wrap("grevling.Prepare", it.inst.Logdir, err)
		}
		remoteBook, err := remoteWs.Subspace(".grevling")
		if err != nil {
			return nil, gerr.Wrap("grevling.Prepare", it.inst.Logdir, err)
		}
		it.remoteWs = remoteWs
		it.remoteBook = remoteBook

		if err := it.inst.Prepare(c.spec.Premap, c.storageWs, remoteWs, c.config.IgnoreMissing); err != nil {
			return nil, err
		}
		return it, nil
	}
}

func (c *Case) runStage() func(context.Context, any) (any, error) {
	return func(ctx context.Context, item any) (any, error) {
		it := item.(*pipelineItem)
		if _, err := it.inst.Run(ctx, c.spec.Script, it.remoteWs, it.remoteBook); err != nil {
			return nil, err
		}
		return it, nil
	}
}

func (c *Case) downloadStage() func(context.Context, any) (any, error) {
	return func(_ context.Context, item any) (any, error) {
		it := item.(*pipelineItem)
		if err := it.inst.Download(c.spec.Script, it.remoteWs, it.remoteBook, c.spec.Postmap, c.config.IgnoreMissing); err != nil {
			return nil, err
		}
		if err := it.remoteWs.Destroy(); err != nil {
			c.logger.Warn("grevling: failed to destroy remote workspace", zap.String("logdir", it.inst.Logdir), zap.Error(err))
		}
		return it.inst, nil
	}
}
