package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/brokerx/pkg/slogx"
	"golang.org/x/sync/errgroup"
)

// TaskGroup runs detached background work (KYC submission, payment
// requests) with a bound on how many run at once. Task errors are logged,
// never returned to whoever started the task.
type TaskGroup struct {
	g       errgroup.Group
	pending sync.WaitGroup
	metrics *Metrics
}

// NewTaskGroup allows at most limit concurrent tasks; limit <= 0 means no
// bound.
func NewTaskGroup(limit int, m *Metrics) *TaskGroup {
	t := &TaskGroup{metrics: m}
	if limit > 0 {
		t.g.SetLimit(limit)
	}
	return t
}

// Go starts fn with a context detached from ctx's cancellation. It never
// blocks: when the group is at its limit the task queues on its own
// goroutine.
func (t *TaskGroup) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	t.pending.Add(1)
	run := func() error {
		defer t.pending.Done()
		t.metrics.taskStarted(name)
		if err := runTask(ctx, name, fn); err != nil {
			t.metrics.taskFailed(name)
		}
		return nil
	}
	if t.g.TryGo(run) {
		return
	}
	go t.g.Go(run)
}

// Wait blocks until every started task has finished.
func (t *TaskGroup) Wait() {
	t.pending.Wait()
	_ = t.g.Wait()
}

// Shutdown waits for running tasks until ctx is done.
func (t *TaskGroup) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func runTask(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx = slogx.Detach(ctx)
	log := slogx.FromContext(ctx).With(slog.String("task", name))

	start := time.Now()
	err := fn(ctx)
	if err != nil {
		log.Error("background task failed", "err", err, "took", time.Since(start))
		return err
	}
	log.Debug("background task finished", "took", time.Since(start))
	return nil
}
