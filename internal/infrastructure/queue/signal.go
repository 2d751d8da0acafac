// Package queue runs durable background jobs stored in the jobs table.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/orris-inc/subflow/internal/domain/job"
)

// Signal wakes idle workers when a job is enqueued. Delivery is best effort;
// workers fall back to polling.
type Signal interface {
	Notify(ctx context.Context, queue job.Queue) error
	// Wait returns when a notification arrives, timeout elapses or ctx ends.
	Wait(ctx context.Context, queue job.Queue, timeout time.Duration) error
}

// LocalSignal is an in-process Signal for single-instance deployments and tests.
type LocalSignal struct {
	mu    sync.Mutex
	chans map[job.Queue]chan struct{}
}

func NewLocalSignal() *LocalSignal {
	return &LocalSignal{chans: make(map[job.Queue]chan struct{})}
}

func (s *LocalSignal) ch(queue job.Queue) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chans[queue]
	if !ok {
		c = make(chan struct{}, 1)
		s.chans[queue] = c
	}
	return c
}

func (s *LocalSignal) Notify(_ context.Context, queue job.Queue) error {
	select {
	case s.ch(queue) <- struct{}{}:
	default:
	}
	return nil
}

func (s *LocalSignal) Wait(ctx context.Context, queue job.Queue, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ch(queue):
		return nil
	case <-timer.C:
		return nil
	}
}
