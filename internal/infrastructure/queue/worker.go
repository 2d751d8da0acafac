package queue

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/orris-inc/subflow/internal/domain/job"
	"github.com/orris-inc/subflow/internal/infrastructure/metrics"
	"github.com/orris-inc/subflow/internal/shared/biztime"
	"github.com/orris-inc/subflow/internal/shared/config"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultLockDuration = 5 * time.Minute
	defaultJobTimeout   = time.Minute
)

// ErrPermanent marks a handler failure that retrying cannot fix. The job is
// failed immediately instead of being rescheduled.
var ErrPermanent = job.ErrPermanent

// Permanent wraps err so the worker stops retrying.
func Permanent(err error) error {
	return job.Permanent(err)
}

// Handler executes one job. A nil return completes it.
type Handler func(ctx context.Context, j *job.Job) error

// QueueOptions are the execution settings of one queue.
type QueueOptions struct {
	Concurrency        int
	JobTimeout         time.Duration
	RetentionOnSuccess time.Duration
	RetentionOnFailure time.Duration
}

// Worker claims due jobs from the store and runs their handlers.
type Worker struct {
	store        job.Store
	signal       Signal
	queues       map[job.Queue]QueueOptions
	pollInterval time.Duration
	lockDuration time.Duration
	observer     metrics.Observer
	logger       logger.Interface

	mu       sync.RWMutex
	handlers map[job.Type]Handler

	now    func() time.Time
	jitter func() float64
}

func NewWorker(store job.Store, signal Signal, cfg config.QueueConfig, observer metrics.Observer, log logger.Interface) *Worker {
	if signal == nil {
		signal = NewLocalSignal()
	}
	if observer == nil {
		observer = metrics.Nop()
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	lockDuration := cfg.LockDuration
	if lockDuration <= 0 {
		lockDuration = defaultLockDuration
	}

	options := func(s config.QueueSettings) QueueOptions {
		return QueueOptions{
			Concurrency:        max(s.Concurrency, 1),
			JobTimeout:         s.JobTimeout,
			RetentionOnSuccess: s.RetentionOnSuccess,
			RetentionOnFailure: s.RetentionOnFailure,
		}
	}

	return &Worker{
		store:  store,
		signal: signal,
		queues: map[job.Queue]QueueOptions{
			job.QueueMaintenance: options(cfg.Maintenance),
			job.QueueEmail:       options(cfg.Email),
		},
		pollInterval: pollInterval,
		lockDuration: lockDuration,
		observer:     observer,
		logger:       log,
		handlers:     make(map[job.Type]Handler),
		now:          biztime.NowUTC,
		jitter:       rand.Float64,
	}
}

// Register binds h to job type t. Registering twice replaces the handler.
func (w *Worker) Register(t job.Type, h Handler) error {
	if _, err := t.Queue(); err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("nil handler for job type %s", t)
	}
	w.mu.Lock()
	w.handlers[t] = h
	w.mu.Unlock()
	return nil
}

func (w *Worker) handler(t job.Type) (Handler, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	h, ok := w.handlers[t]
	return h, ok
}

// Run starts the worker pools and the janitor and blocks until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for q, opts := range w.queues {
		for i := 0; i < opts.Concurrency; i++ {
			q, slot := q, i
			g.Go(func() error {
				w.loop(ctx, q, slot)
				return nil
			})
		}
	}
	g.Go(func() error {
		w.janitor(ctx)
		return nil
	})

	w.logger.Infow("job workers started",
		"maintenance_concurrency", w.queues[job.QueueMaintenance].Concurrency,
		"email_concurrency", w.queues[job.QueueEmail].Concurrency,
		"poll_interval", w.pollInterval,
	)

	err := g.Wait()
	w.logger.Infow("job workers stopped")
	return err
}

func (w *Worker) loop(ctx context.Context, q job.Queue, slot int) {
	log := w.logger.With("queue", q, "slot", slot)
	for ctx.Err() == nil {
		processed, err := w.RunNext(ctx, q)
		if err != nil && ctx.Err() == nil {
			log.Errorw("job loop error", "error", err)
		}
		if processed {
			continue
		}
		if err := w.signal.Wait(ctx, q, w.pollInterval); err != nil && ctx.Err() == nil {
			log.Warnw("wake-up signal unavailable, polling", "error", err)
			sleep(ctx, w.pollInterval)
		}
	}
}

// RunNext claims and executes one due job of q. It reports whether a job was
// processed.
func (w *Worker) RunNext(ctx context.Context, q job.Queue) (bool, error) {
	opts := w.queues[q]
	timeout := opts.JobTimeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	lock := max(w.lockDuration, 2*timeout)

	now := w.now()
	j, err := w.store.ClaimNext(ctx, q, now, now.Add(lock))
	if err != nil {
		return false, fmt.Errorf("failed to claim job: %w", err)
	}
	if j == nil {
		return false, nil
	}

	start := time.Now()
	runErr := w.execute(ctx, j, timeout)
	outcome := w.settle(j, runErr)

	if err := w.store.Finish(context.WithoutCancel(ctx), j); err != nil {
		if errors.Is(err, job.ErrLostLock) {
			w.logger.Warnw("job lock lost before finishing", "id", j.ID(), "type", j.Type())
			return true, nil
		}
		return true, fmt.Errorf("failed to finish job %s: %w", j.ID(), err)
	}

	w.observer.RecordJob(q.String(), j.Type().String(), outcome, time.Since(start))
	return true, nil
}

func (w *Worker) execute(ctx context.Context, j *job.Job, timeout time.Duration) (err error) {
	h, ok := w.handler(j.Type())
	if !ok {
		return Permanent(fmt.Errorf("no handler registered for job type %s", j.Type()))
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			w.logger.Errorw("job handler panicked",
				"id", j.ID(),
				"type", j.Type(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return h(ctx, j)
}

// settle applies the handler result to the job and returns the metric outcome.
func (w *Worker) settle(j *job.Job, runErr error) string {
	now := w.now()

	if runErr == nil {
		if err := j.Complete(now); err != nil {
			w.logger.Errorw("failed to complete job", "id", j.ID(), "error", err)
		}
		w.logger.Debugw("job completed", "id", j.ID(), "type", j.Type(), "attempts", j.Attempts())
		return "completed"
	}

	if errors.Is(runErr, ErrPermanent) {
		_ = j.Abandon(runErr, now)
		w.logger.Errorw("job failed permanently",
			"id", j.ID(),
			"type", j.Type(),
			"error", runErr,
		)
		return "failed"
	}

	exhausted, err := j.Fail(runErr, now, w.jitter())
	if err != nil {
		w.logger.Errorw("failed to record job failure", "id", j.ID(), "error", err)
	}
	if exhausted {
		w.logger.Errorw("job failed after final attempt",
			"id", j.ID(),
			"type", j.Type(),
			"attempts", j.Attempts(),
			"error", runErr,
		)
		return "failed"
	}

	w.logger.Warnw("job attempt failed, retrying",
		"id", j.ID(),
		"type", j.Type(),
		"attempt", j.Attempts(),
		"max_attempts", j.MaxAttempts(),
		"next_run_at", j.NextRunAt(),
		"error", runErr,
	)
	return "retried"
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
