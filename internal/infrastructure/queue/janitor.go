package queue

import (
	"context"
	"time"

	"github.com/orris-inc/subflow/internal/domain/job"
)

const janitorInterval = time.Minute

func (w *Worker) janitor(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		w.Sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep returns jobs with expired locks to their queue and prunes finished
// jobs past their retention.
func (w *Worker) Sweep(ctx context.Context) {
	now := w.now()
	for q, opts := range w.queues {
		if _, err := w.store.RecoverStale(ctx, q, now); err != nil && ctx.Err() == nil {
			w.logger.Errorw("failed to recover stale jobs", "queue", q, "error", err)
		}
		w.prune(ctx, q, job.StatusCompleted, opts.RetentionOnSuccess, now)
		w.prune(ctx, q, job.StatusFailed, opts.RetentionOnFailure, now)
	}
}

func (w *Worker) prune(ctx context.Context, q job.Queue, status job.Status, retention time.Duration, now time.Time) {
	if retention <= 0 {
		return
	}
	n, err := w.store.PruneFinished(ctx, q, status, now.Add(-retention))
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Errorw("failed to prune jobs", "queue", q, "status", status, "error", err)
		}
		return
	}
	if n > 0 {
		w.logger.Infow("pruned finished jobs", "queue", q, "status", status, "count", n)
	}
}
