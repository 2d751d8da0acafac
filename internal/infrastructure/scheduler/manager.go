// Package scheduler provides the recurring maintenance triggers using gocron v2.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/orris-inc/subflow/internal/domain/job"
	"github.com/orris-inc/subflow/internal/infrastructure/queue"
	"github.com/orris-inc/subflow/internal/shared/biztime"
	"github.com/orris-inc/subflow/internal/shared/config"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

// Stable trigger names. They double as the schedule id of the jobs they enqueue.
const (
	TriggerCheckExpiry      = "subscription:check_expiry"
	TriggerRenewalReminders = "subscription:renewal_reminders"
	TriggerTrialEnding      = "subscription:trial_ending"
	TriggerCleanupExpired   = "subscription:cleanup_expired"
)

const enqueueTimeout = 30 * time.Second

// JobEnqueuer is the part of the queue the triggers use.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, t job.Type, opts ...queue.Option) (*job.Job, error)
}

// Trigger binds a cron expression to the maintenance job it enqueues.
type Trigger struct {
	Name      string
	Cron      string
	JobType   job.Type
	BatchSize int
}

// DefaultTriggers returns the four maintenance triggers with the configured crontabs.
func DefaultTriggers(cfg config.JobsConfig) []Trigger {
	return []Trigger{
		{Name: TriggerCheckExpiry, Cron: cfg.Cron.CheckExpiry, JobType: job.TypeCheckExpiry, BatchSize: cfg.BatchSize},
		{Name: TriggerRenewalReminders, Cron: cfg.Cron.RenewalReminders, JobType: job.TypeSendRenewalReminders, BatchSize: cfg.BatchSize},
		{Name: TriggerTrialEnding, Cron: cfg.Cron.TrialEnding, JobType: job.TypeProcessTrialEnding, BatchSize: cfg.BatchSize},
		{Name: TriggerCleanupExpired, Cron: cfg.Cron.CleanupExpired, JobType: job.TypeCleanupExpired, BatchSize: cfg.BatchSize},
	}
}

// SchedulerManager owns the gocron scheduler. Triggers only enqueue jobs;
// the queue workers do the actual work with retries.
type SchedulerManager struct {
	scheduler gocron.Scheduler
	enqueuer  JobEnqueuer
	logger    logger.Interface

	// Track whether the scheduler has been started
	started   bool
	startedMu sync.RWMutex
}

// NewSchedulerManager creates a scheduler in the business timezone. A non-nil
// locker makes each trigger fire on one instance only.
func NewSchedulerManager(enqueuer JobEnqueuer, locker gocron.Locker, log logger.Interface) (*SchedulerManager, error) {
	opts := []gocron.SchedulerOption{
		gocron.WithLocation(biztime.Location()),
	}
	if locker != nil {
		opts = append(opts, gocron.WithDistributedLocker(locker))
	}

	scheduler, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, err
	}

	return &SchedulerManager{
		scheduler: scheduler,
		enqueuer:  enqueuer,
		logger:    log,
	}, nil
}

// RegisterTriggers registers one singleton cron job per trigger.
func (m *SchedulerManager) RegisterTriggers(triggers []Trigger) error {
	for _, tr := range triggers {
		if _, err := tr.JobType.Queue(); err != nil {
			return fmt.Errorf("trigger %s: %w", tr.Name, err)
		}

		tr := tr
		_, err := m.scheduler.NewJob(
			gocron.CronJob(tr.Cron, false),
			gocron.NewTask(func() {
				ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
				defer cancel()
				m.fire(ctx, tr)
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithTags("subscription", "maintenance", tr.JobType.String()),
			gocron.WithName(tr.Name),
		)
		if err != nil {
			return fmt.Errorf("failed to register trigger %s (%s): %w", tr.Name, tr.Cron, err)
		}

		m.logger.Infow("registered maintenance trigger",
			"name", tr.Name,
			"cron", tr.Cron,
			"job_type", tr.JobType,
		)
	}
	return nil
}

func (m *SchedulerManager) fire(ctx context.Context, tr Trigger) {
	opts := []queue.Option{queue.WithScheduleID(tr.Name)}
	if tr.BatchSize > 0 {
		opts = append(opts, queue.WithBatchSize(tr.BatchSize))
	}

	j, err := m.enqueuer.Enqueue(ctx, tr.JobType, opts...)
	if err != nil {
		m.logger.Errorw("failed to enqueue maintenance job",
			"trigger", tr.Name,
			"error", err,
		)
		return
	}
	if j != nil {
		m.logger.Debugw("maintenance job enqueued", "trigger", tr.Name, "job_id", j.ID())
	}
}

// ========================================
// Scheduler Lifecycle Methods
// ========================================

// Start starts the scheduler and all registered jobs.
func (m *SchedulerManager) Start() {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if m.started {
		return
	}

	m.scheduler.Start()
	m.started = true
	m.logger.Infow("scheduler manager started", "job_count", len(m.scheduler.Jobs()))
}

// Stop gracefully stops the scheduler.
// It waits for all running jobs to complete before returning.
func (m *SchedulerManager) Stop() error {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if !m.started {
		return nil
	}

	m.logger.Infow("stopping scheduler manager")

	// Shutdown scheduler and wait for running jobs
	err := m.scheduler.Shutdown()
	m.started = false

	if err != nil {
		m.logger.Errorw("scheduler manager shutdown with error", "error", err)
		return err
	}

	m.logger.Infow("scheduler manager stopped")
	return nil
}

// IsStarted returns whether the scheduler is running.
func (m *SchedulerManager) IsStarted() bool {
	m.startedMu.RLock()
	defer m.startedMu.RUnlock()
	return m.started
}

// Jobs returns all registered jobs for inspection.
func (m *SchedulerManager) Jobs() []gocron.Job {
	return m.scheduler.Jobs()
}
