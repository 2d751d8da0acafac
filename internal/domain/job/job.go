package job

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/orris-inc/subflow/internal/shared/utils/textutil"
)

const maxErrorLength = 2000

// Job is a durable queue entry. It is created pending, claimed by a worker
// (running), and ends completed or failed once its attempts are exhausted.
// Failed jobs are retained for inspection.
type Job struct {
	id          string
	queue       Queue
	jobType     Type
	targetID    *uint
	batchSize   *int
	payload     json.RawMessage
	status      Status
	attempts    int
	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration
	nextRunAt   time.Time
	lockedUntil *time.Time
	lastError   *string
	scheduleID  *string
	completedAt *time.Time
	failedAt    *time.Time
	createdAt   time.Time
	updatedAt   time.Time
}

// NewParams describes a job to enqueue.
type NewParams struct {
	Type       Type
	Policy     RetryPolicy
	TargetID   *uint
	BatchSize  *int
	Payload    json.RawMessage
	ScheduleID *string
	RunAt      time.Time
}

func NewJob(p NewParams, now time.Time) (*Job, error) {
	queue, err := p.Type.Queue()
	if err != nil {
		return nil, err
	}
	if err := p.Policy.Validate(); err != nil {
		return nil, err
	}
	if p.BatchSize != nil && *p.BatchSize < 1 {
		return nil, fmt.Errorf("batch size must be positive, got %d", *p.BatchSize)
	}
	if len(p.Payload) > 0 && !json.Valid(p.Payload) {
		return nil, fmt.Errorf("job payload is not valid JSON")
	}

	runAt := p.RunAt
	if runAt.IsZero() {
		runAt = now
	}

	return &Job{
		id:          uuid.NewString(),
		queue:       queue,
		jobType:     p.Type,
		targetID:    p.TargetID,
		batchSize:   p.BatchSize,
		payload:     p.Payload,
		status:      StatusPending,
		maxAttempts: p.Policy.MaxAttempts,
		backoffBase: p.Policy.BackoffBase,
		backoffCap:  p.Policy.BackoffCap,
		nextRunAt:   runAt,
		scheduleID:  p.ScheduleID,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

type ReconstructParams struct {
	ID          string
	Queue       Queue
	Type        Type
	TargetID    *uint
	BatchSize   *int
	Payload     json.RawMessage
	Status      Status
	Attempts    int
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	NextRunAt   time.Time
	LockedUntil *time.Time
	LastError   *string
	ScheduleID  *string
	CompletedAt *time.Time
	FailedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func ReconstructJob(p ReconstructParams) (*Job, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("job ID is required")
	}
	if !p.Status.IsValid() {
		return nil, fmt.Errorf("invalid job status: %s", p.Status)
	}
	if !p.Queue.IsValid() {
		return nil, fmt.Errorf("invalid job queue: %s", p.Queue)
	}

	return &Job{
		id:          p.ID,
		queue:       p.Queue,
		jobType:     p.Type,
		targetID:    p.TargetID,
		batchSize:   p.BatchSize,
		payload:     p.Payload,
		status:      p.Status,
		attempts:    p.Attempts,
		maxAttempts: p.MaxAttempts,
		backoffBase: p.BackoffBase,
		backoffCap:  p.BackoffCap,
		nextRunAt:   p.NextRunAt,
		lockedUntil: p.LockedUntil,
		lastError:   p.LastError,
		scheduleID:  p.ScheduleID,
		completedAt: p.CompletedAt,
		failedAt:    p.FailedAt,
		createdAt:   p.CreatedAt,
		updatedAt:   p.UpdatedAt,
	}, nil
}

// Complete marks a running job as done.
func (j *Job) Complete(now time.Time) error {
	if j.status != StatusRunning {
		return fmt.Errorf("%w: status %s", ErrNotRunning, j.status)
	}
	j.status = StatusCompleted
	j.completedAt = &now
	j.lockedUntil = nil
	j.lastError = nil
	j.updatedAt = now
	return nil
}

// Fail records a failed attempt. The job is rescheduled with backoff while
// attempts remain, otherwise it is marked failed. The return value reports
// whether the job is exhausted.
func (j *Job) Fail(cause error, now time.Time, jitter float64) (bool, error) {
	if j.status != StatusRunning {
		return false, fmt.Errorf("%w: status %s", ErrNotRunning, j.status)
	}

	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	msg = textutil.TruncateBytes(msg, maxErrorLength)
	j.lastError = &msg
	j.lockedUntil = nil
	j.updatedAt = now

	if j.attempts >= j.maxAttempts {
		j.status = StatusFailed
		j.failedAt = &now
		return true, nil
	}

	j.status = StatusPending
	j.nextRunAt = now.Add(Backoff(j.backoffBase, j.backoffCap, j.attempts, jitter))
	return false, nil
}

// Abandon fails a running job without further retries. Used for errors that
// a retry cannot fix, such as a missing handler or an unreadable payload.
func (j *Job) Abandon(cause error, now time.Time) error {
	if j.status != StatusRunning {
		return fmt.Errorf("%w: status %s", ErrNotRunning, j.status)
	}
	msg := "abandoned"
	if cause != nil {
		msg = cause.Error()
	}
	msg = textutil.TruncateBytes(msg, maxErrorLength)
	j.lastError = &msg
	j.lockedUntil = nil
	j.status = StatusFailed
	j.failedAt = &now
	j.updatedAt = now
	return nil
}

// DecodePayload decodes the JSON payload into v.
func (j *Job) DecodePayload(v any) error {
	if len(j.payload) == 0 {
		return fmt.Errorf("job %s has no payload", j.id)
	}
	if err := json.Unmarshal(j.payload, v); err != nil {
		return fmt.Errorf("failed to decode payload of job %s: %w", j.id, err)
	}
	return nil
}

func (j *Job) ID() string {
	return j.id
}

func (j *Job) Queue() Queue {
	return j.queue
}

func (j *Job) Type() Type {
	return j.jobType
}

func (j *Job) TargetID() *uint {
	return j.targetID
}

func (j *Job) BatchSize() *int {
	return j.batchSize
}

func (j *Job) Payload() json.RawMessage {
	return j.payload
}

func (j *Job) Status() Status {
	return j.status
}

func (j *Job) Attempts() int {
	return j.attempts
}

func (j *Job) MaxAttempts() int {
	return j.maxAttempts
}

func (j *Job) BackoffBase() time.Duration {
	return j.backoffBase
}

func (j *Job) BackoffCap() time.Duration {
	return j.backoffCap
}

func (j *Job) NextRunAt() time.Time {
	return j.nextRunAt
}

func (j *Job) LockedUntil() *time.Time {
	return j.lockedUntil
}

func (j *Job) LastError() *string {
	return j.lastError
}

func (j *Job) ScheduleID() *string {
	return j.scheduleID
}

func (j *Job) CompletedAt() *time.Time {
	return j.completedAt
}

func (j *Job) FailedAt() *time.Time {
	return j.failedAt
}

func (j *Job) CreatedAt() time.Time {
	return j.createdAt
}

func (j *Job) UpdatedAt() time.Time {
	return j.updatedAt
}
