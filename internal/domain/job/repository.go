package job

import (
	"context"
	"time"
)

// Store persists jobs. Create uses the transaction carried by ctx so jobs can
// be written atomically with the state change that requested them.
type Store interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, id string) (*Job, error)
	// HasActiveSchedule reports whether a pending or running job carries scheduleID.
	HasActiveSchedule(ctx context.Context, scheduleID string) (bool, error)
	// ClaimNext atomically moves the oldest due pending job of queue to running,
	// increments its attempts and locks it until lockedUntil. It returns nil when
	// nothing is due.
	ClaimNext(ctx context.Context, queue Queue, now, lockedUntil time.Time) (*Job, error)
	// Finish persists the outcome of a running job. It returns ErrLostLock when
	// the job is no longer running under the caller's attempt.
	Finish(ctx context.Context, job *Job) error
	// RecoverStale returns running jobs whose lock expired to pending.
	RecoverStale(ctx context.Context, queue Queue, now time.Time) (int64, error)
	PruneFinished(ctx context.Context, queue Queue, status Status, before time.Time) (int64, error)
	CountByStatus(ctx context.Context, queue Queue, status Status) (int64, error)
}
