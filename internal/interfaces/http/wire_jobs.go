package http

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/orris-inc/subflow/internal/domain/job"
	"github.com/orris-inc/subflow/internal/infrastructure/pubsub"
	"github.com/orris-inc/subflow/internal/infrastructure/queue"
	"github.com/orris-inc/subflow/internal/infrastructure/scheduler"
	"github.com/orris-inc/subflow/internal/shared/goroutine"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

func newRedisSignal(client *redis.Client, log logger.Interface) queue.Signal {
	return pubsub.NewRedisJobSignal(client, log.Named("jobsignal"))
}

// StartJobs starts the queue workers and the recurring triggers. Any failure,
// including a panic while registering, leaves the process serving webhooks
// with background jobs disabled; it is logged, never returned.
func (c *Container) StartJobs(ctx context.Context) {
	if !c.cfg.Jobs.Enabled {
		c.log.Infow("background jobs disabled", "reason", "jobs.enabled is false")
		return
	}
	if c.redis == nil {
		c.log.Errorw("background jobs disabled", "reason", "redis unreachable")
		return
	}

	if err := c.startJobs(ctx); err != nil {
		c.log.Errorw("background jobs disabled", "error", err)
		return
	}
	c.jobsEnabled.Store(true)
}

func (c *Container) startJobs(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while starting jobs: %v", r)
		}
	}()

	worker := queue.NewWorker(c.repos.jobs, c.signal, c.cfg.Queue, c.observer, c.log.Named("worker"))
	if err := c.registerJobHandlers(worker); err != nil {
		return err
	}

	locker := scheduler.NewRedisLocker(c.redis, c.cfg.Queue.LockDuration)
	manager, err := scheduler.NewSchedulerManager(c.enqueuer, locker, c.log.Named("scheduler"))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	if err := manager.RegisterTriggers(scheduler.DefaultTriggers(c.cfg.Jobs)); err != nil {
		return fmt.Errorf("failed to register triggers: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.worker = worker
	c.workerCancel = cancel
	c.workerDone = done

	goroutine.SafeGo(c.log, "queue-worker", func() {
		defer close(done)
		if err := worker.Run(runCtx); err != nil {
			c.log.Errorw("queue worker stopped with error", "error", err)
		}
	})

	manager.Start()
	c.schedulerManager = manager

	c.log.Infow("background jobs started",
		"maintenance_concurrency", c.cfg.Queue.Maintenance.Concurrency,
		"email_concurrency", c.cfg.Queue.Email.Concurrency,
	)
	return nil
}

func (c *Container) registerJobHandlers(worker *queue.Worker) error {
	maintenance := map[job.Type]queue.Handler{
		job.TypeCheckExpiry:          c.ucs.checkExpiry.HandleJob,
		job.TypeSendRenewalReminders: c.ucs.sendRenewalReminders.HandleJob,
		job.TypeProcessTrialEnding:   c.ucs.processTrialEnding.HandleJob,
		job.TypeCleanupExpired:       c.ucs.cleanupExpired.HandleJob,
	}
	for t, h := range maintenance {
		if err := worker.Register(t, h); err != nil {
			return fmt.Errorf("failed to register %s handler: %w", t, err)
		}
	}

	for _, t := range job.TypesOf(job.QueueEmail) {
		if err := worker.Register(t, c.ucs.dispatchNotification.HandleEmailJob); err != nil {
			return fmt.Errorf("failed to register %s handler: %w", t, err)
		}
	}
	return nil
}
