// Package pipeline implements the bounded worker-pool, multi-stage
// pipeline runtime that drives instances through Prepare->Run->Download:
// fixed-capacity hand-off channels between stages, N cooperating workers
// per stage, per-stage completion counters, and failure isolation (a
// failing item is dropped and logged; the pipeline keeps running).
//
// Grounded on the teacher's crawler pipeline (pkg/crawler): bounded
// channels, atomic per-stage counters, manual sync.WaitGroup draining
// instead of errgroup, optional x/time/rate throttling between stages.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Stage is one step of a Pipeline: a named, concurrently-replicated
// transform over items flowing through the pipeline.
type Stage struct {
	// Name identifies the stage for logging.
	Name string

	// Workers is the number of concurrent goroutines processing this
	// stage's input channel. Must be >= 1.
	Workers int

	// Apply transforms one item. An error drops the item (it is not
	// forwarded to the next stage) and is logged; it never aborts the
	// pipeline.
	Apply func(ctx context.Context, item any) (any, error)

	// RateLimit, if non-zero, paces this stage's dispatch rate (events
	// per second). Zero means unlimited.
	RateLimit float64
}

// Pipeline is an ordered list of Stages connected by capacity-1
// hand-off channels, providing backpressure so upstream stages cannot
// outpace downstream consumption.
type Pipeline struct {
	stages []Stage
	logger *zap.Logger
}

// New constructs a Pipeline over stages, run in order.
func New(stages []Stage, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{stages: stages, logger: logger}
}

// Result is the outcome of a completed (or cancelled) pipeline run.
type Result struct {
	// Submitted is the number of items pushed onto the source channel.
	Submitted int64

	// Completed is the number of items that survived every stage.
	Completed int64

	// StagePiped records, per stage (in order), how many items it
	// forwarded successfully.
	StagePiped []int64
}

// Success reports whether every submitted item survived every stage.
func (r Result) Success() bool {
	return r.Completed == r.Submitted
}

// Run pushes every item in items through the pipeline, in order of
// Stage declaration. It blocks until every item has drained out of the
// final stage or ctx is cancelled. Cancellation propagates through every
// hand-off channel; workers exit cleanly between items, and a worker
// blocked in Apply is expected to honor ctx itself (e.g. subprocess
// waits via context.Context).
func (p *Pipeline) Run(ctx context.Context, items []any) (Result, error) {
	res := Result{Submitted: int64(len(items)), StagePiped: make([]int64, len(p.stages))}
	if len(items) == 0 || len(p.stages) == 0 {
		return res, nil
	}

	chans := make([]chan any, len(p.stages)+1)
	for i := range chans {
		chans[i] = make(chan any, 1)
	}

	go func() {
		defer close(chans[0])
		for _, item := range items {
			select {
			case <-ctx.Done():
				return
			case chans[0] <- item:
			}
		}
	}()

	counters := make([]atomic.Int64, len(p.stages))

	for i, stage := range p.stages {
		in := chans[i]
		out := chans[i+1]
		counter := &counters[i]

		var limiter *rate.Limiter
		if stage.RateLimit > 0 {
			limiter = rate.NewLimiter(rate.Limit(stage.RateLimit), 1)
		}

		workers := stage.Workers
		if workers < 1 {
			workers = 1
		}

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go p.runWorker(ctx, stage, in, out, counter, limiter, &wg)
		}

		go func(name string, out chan any, wg *sync.WaitGroup, counter *atomic.Int64) {
			wg.Wait()
			close(out)
			p.logger.Info("pipeline stage finished", zap.String("stage", name), zap.Int64("handled", counter.Load()))
		}(stage.Name, out, &wg, counter)
	}

	for range chans[len(chans)-1] {
		res.Completed++
	}

	for i := range counters {
		res.StagePiped[i] = counters[i].Load()
	}

	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	return res, nil
}

func (p *Pipeline) runWorker(ctx context.Context, stage Stage, in <-chan any, out chan<- any, counter *atomic.Int64, limiter *rate.Limiter, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-in:
			if !ok {
				return
			}
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
			}
			result, err := stage.Apply(ctx, item)
			if err != nil {
				p.logger.Error("pipeline stage item failed", zap.String("stage", stage.Name), zap.Error(err))
				continue
			}
			counter.Add(1)
			select {
			case <-ctx.Done():
				return
			case out <- result:
			}
		}
	}
}
