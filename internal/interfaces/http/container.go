package http

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/orris-inc/subflow/internal/infrastructure/config"
	"github.com/orris-inc/subflow/internal/infrastructure/metrics"
	"github.com/orris-inc/subflow/internal/infrastructure/queue"
	"github.com/orris-inc/subflow/internal/infrastructure/scheduler"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

const redisPingTimeout = 3 * time.Second

// Container holds all infrastructure components, repositories, use cases,
// handlers and background services. It wires everything together and
// provides Shutdown for graceful termination.
type Container struct {
	// Core infrastructure
	engine *gin.Engine
	db     *gorm.DB
	cfg    *config.Config
	log    logger.Interface
	redis  *redis.Client

	// Telemetry
	registry *prometheus.Registry
	observer metrics.Observer

	repos *repositories
	ucs   *allUseCases
	hdlrs *allHandlers

	// Job plumbing
	signal   queue.Signal
	enqueuer *queue.Enqueuer

	// Background services, set by StartJobs
	worker           *queue.Worker
	schedulerManager *scheduler.SchedulerManager
	workerCancel     context.CancelFunc
	workerDone       chan struct{}
	jobsEnabled      atomic.Bool
	shutdownOnce     sync.Once
}

// NewContainer creates a Container with all dependencies wired together.
// A Redis outage is tolerated: webhooks keep being served and jobs still
// land in the database, only the background runners stay off.
func NewContainer(db *gorm.DB, cfg *config.Config, log logger.Interface) (*Container, error) {
	c := &Container{
		engine: gin.New(),
		db:     db,
		cfg:    cfg,
		log:    log,
	}

	// Section 1: Infrastructure - Redis, metrics, repositories, queue
	if err := c.initInfrastructure(); err != nil {
		return nil, err
	}

	// Section 2: Use cases - notification, billing, maintenance
	if err := c.initUseCases(); err != nil {
		return nil, err
	}

	// Section 3: Handlers
	if err := c.initHandlers(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Container) initInfrastructure() error {
	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	observer, err := metrics.NewPrometheusObserver(c.registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	c.observer = observer

	c.redis = c.connectRedis()

	c.repos = newRepositories(c.db, c.log)

	if c.redis != nil {
		c.signal = newRedisSignal(c.redis, c.log)
	} else {
		c.signal = queue.NewLocalSignal()
	}
	c.enqueuer = queue.NewEnqueuer(c.repos.jobs, queue.PoliciesFromConfig(c.cfg.Queue), c.signal, c.log.Named("queue"))
	return nil
}

// connectRedis returns nil when the broker cannot be reached.
func (c *Container) connectRedis() *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     c.cfg.Redis.GetAddr(),
		Password: c.cfg.Redis.Password,
		DB:       c.cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		c.log.Warnw("redis unreachable", "address", c.cfg.Redis.GetAddr(), "error", err)
		_ = client.Close()
		return nil
	}

	c.log.Infow("redis connection established", "address", c.cfg.Redis.GetAddr())
	return client
}

// JobsEnabled reports whether the worker and scheduler run in this process.
func (c *Container) JobsEnabled() bool {
	return c.jobsEnabled.Load()
}

// Shutdown stops the scheduler, drains the workers and closes Redis.
func (c *Container) Shutdown(ctx context.Context) {
	c.shutdownOnce.Do(func() {
		if c.schedulerManager != nil {
			if err := c.schedulerManager.Stop(); err != nil {
				c.log.Errorw("failed to stop scheduler", "error", err)
			}
		}

		if c.workerCancel != nil {
			c.workerCancel()
			select {
			case <-c.workerDone:
			case <-ctx.Done():
				c.log.Warnw("workers did not stop before shutdown deadline")
			}
		}
		c.jobsEnabled.Store(false)

		if c.redis != nil {
			if err := c.redis.Close(); err != nil {
				c.log.Errorw("failed to close redis client", "error", err)
			}
		}
	})
}
