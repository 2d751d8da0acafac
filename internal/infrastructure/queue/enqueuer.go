package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/orris-inc/subflow/internal/domain/job"
	"github.com/orris-inc/subflow/internal/shared/biztime"
	"github.com/orris-inc/subflow/internal/shared/config"
	"github.com/orris-inc/subflow/internal/shared/db"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

type enqueueOptions struct {
	targetID   *uint
	batchSize  *int
	payload    json.RawMessage
	scheduleID *string
	runAt      time.Time
	err        error
}

// Option adjusts a job before it is stored.
type Option func(*enqueueOptions)

func WithTargetID(id uint) Option {
	return func(o *enqueueOptions) {
		o.targetID = &id
	}
}

func WithBatchSize(n int) Option {
	return func(o *enqueueOptions) {
		o.batchSize = &n
	}
}

// WithPayload stores v as the JSON payload of the job.
func WithPayload(v any) Option {
	return func(o *enqueueOptions) {
		data, err := json.Marshal(v)
		if err != nil {
			o.err = fmt.Errorf("failed to encode job payload: %w", err)
			return
		}
		o.payload = data
	}
}

// WithScheduleID tags the job with the recurring trigger that created it.
// Enqueue skips the job while another job with the same id is pending or running.
func WithScheduleID(id string) Option {
	return func(o *enqueueOptions) {
		o.scheduleID = &id
	}
}

func WithRunAt(t time.Time) Option {
	return func(o *enqueueOptions) {
		o.runAt = t
	}
}

// Enqueuer writes jobs to the store with the retry policy of their queue.
type Enqueuer struct {
	store    job.Store
	policies map[job.Queue]job.RetryPolicy
	signal   Signal
	logger   logger.Interface
}

func NewEnqueuer(store job.Store, policies map[job.Queue]job.RetryPolicy, signal Signal, logger logger.Interface) *Enqueuer {
	return &Enqueuer{
		store:    store,
		policies: policies,
		signal:   signal,
		logger:   logger,
	}
}

// PoliciesFromConfig builds the per-queue retry policies.
func PoliciesFromConfig(cfg config.QueueConfig) map[job.Queue]job.RetryPolicy {
	policy := func(s config.QueueSettings) job.RetryPolicy {
		return job.RetryPolicy{
			MaxAttempts: s.MaxAttempts,
			BackoffBase: s.BackoffBase,
			BackoffCap:  s.BackoffCap,
		}
	}
	return map[job.Queue]job.RetryPolicy{
		job.QueueMaintenance: policy(cfg.Maintenance),
		job.QueueEmail:       policy(cfg.Email),
	}
}

// Enqueue stores a job of type t. Inside a transaction the row commits with
// the caller's state change and the caller signals workers with Notify after
// commit; outside one, workers are signalled immediately. It returns nil
// without error when a schedule id is already active.
func (e *Enqueuer) Enqueue(ctx context.Context, t job.Type, opts ...Option) (*job.Job, error) {
	var o enqueueOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.err != nil {
		return nil, o.err
	}

	q, err := t.Queue()
	if err != nil {
		return nil, err
	}
	policy, ok := e.policies[q]
	if !ok {
		return nil, fmt.Errorf("no retry policy for queue %s", q)
	}

	if o.scheduleID != nil {
		active, err := e.store.HasActiveSchedule(ctx, *o.scheduleID)
		if err != nil {
			return nil, err
		}
		if active {
			e.logger.Infow("previous run still queued, skipping",
				"schedule_id", *o.scheduleID,
				"type", t,
			)
			return nil, nil
		}
	}

	j, err := job.NewJob(job.NewParams{
		Type:       t,
		Policy:     policy,
		TargetID:   o.targetID,
		BatchSize:  o.batchSize,
		Payload:    o.payload,
		ScheduleID: o.scheduleID,
		RunAt:      o.runAt,
	}, biztime.NowUTC())
	if err != nil {
		return nil, err
	}

	if err := e.store.Create(ctx, j); err != nil {
		return nil, err
	}

	e.logger.Debugw("job enqueued",
		"id", j.ID(),
		"queue", q,
		"type", t,
	)

	if !db.InTransaction(ctx) {
		e.Notify(ctx, q)
	}
	return j, nil
}

// Notify wakes workers of the given queues. Signal failures are logged only;
// workers still find the jobs on their next poll.
func (e *Enqueuer) Notify(ctx context.Context, queues ...job.Queue) {
	if e.signal == nil {
		return
	}
	for _, q := range queues {
		if err := e.signal.Notify(ctx, q); err != nil {
			e.logger.Warnw("failed to signal queue", "queue", q, "error", err)
		}
	}
}

// EnqueueEmail queues delivery of an already stored notification. The email
// job type carries the notification kind's name.
func (e *Enqueuer) EnqueueEmail(ctx context.Context, kind string, notificationID uint) error {
	_, err := e.Enqueue(ctx, job.Type(kind),
		WithTargetID(notificationID),
		WithPayload(job.EmailPayload{NotificationID: notificationID, Kind: kind}),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s email: %w", kind, err)
	}
	return nil
}
