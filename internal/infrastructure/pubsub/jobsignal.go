package pubsub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/orris-inc/subflow/internal/domain/job"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

const (
	jobSignalKeyPrefix = "subflow:jobs:wake:"
	// maxPendingSignals caps the wake-up list; one token per idle worker is enough.
	maxPendingSignals = 64
)

// RedisJobSignal wakes idle workers across instances with a Redis list per
// queue. Producers push a token after committing a job and workers block on
// BLPOP until a token arrives or the poll interval elapses.
type RedisJobSignal struct {
	client *redis.Client
	logger logger.Interface
}

func NewRedisJobSignal(client *redis.Client, logger logger.Interface) *RedisJobSignal {
	return &RedisJobSignal{
		client: client,
		logger: logger,
	}
}

func (s *RedisJobSignal) key(queue job.Queue) string {
	return jobSignalKeyPrefix + queue.String()
}

// Notify pushes one wake-up token for queue.
func (s *RedisJobSignal) Notify(ctx context.Context, queue job.Queue) error {
	key := s.key(queue)

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, time.Now().UnixMilli())
	pipe.LTrim(ctx, key, 0, maxPendingSignals-1)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warnw("failed to publish job wake-up signal",
			"queue", queue,
			"error", err,
		)
		return fmt.Errorf("failed to signal queue %s: %w", queue, err)
	}
	return nil
}

// Wait blocks until a token for queue arrives, timeout elapses or ctx ends.
// A timeout is not an error.
func (s *RedisJobSignal) Wait(ctx context.Context, queue job.Queue, timeout time.Duration) error {
	if timeout < time.Second {
		timeout = time.Second
	}
	err := s.client.BLPop(ctx, timeout, s.key(queue)).Err()
	if err == nil || errors.Is(err, redis.Nil) {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("failed to wait for queue %s: %w", queue, err)
}
