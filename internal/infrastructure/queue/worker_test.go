package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/subflow/internal/domain/job"
	"github.com/orris-inc/subflow/internal/infrastructure/database/dbtest"
	"github.com/orris-inc/subflow/internal/infrastructure/metrics"
	"github.com/orris-inc/subflow/internal/infrastructure/repository"
	"github.com/orris-inc/subflow/internal/shared/biztime"
	"github.com/orris-inc/subflow/internal/shared/config"
	"github.com/orris-inc/subflow/internal/shared/db"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

func testQueueConfig() config.QueueConfig {
	settings := config.QueueSettings{
		MaxAttempts:        3,
		BackoffBase:        10 * time.Second,
		BackoffCap:         time.Minute,
		RetentionOnSuccess: time.Hour,
		RetentionOnFailure: 24 * time.Hour,
		Concurrency:        1,
		JobTimeout:         5 * time.Second,
	}
	return config.QueueConfig{
		Maintenance:  settings,
		Email:        settings,
		PollInterval: 50 * time.Millisecond,
		LockDuration: time.Minute,
	}
}

type harness struct {
	store    *repository.JobRepositoryImpl
	tm       *db.TransactionManager
	enqueuer *Enqueuer
	worker   *Worker
	clock    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gdb := dbtest.Open(t)
	log := logger.NewNopLogger()
	cfg := testQueueConfig()
	signal := NewLocalSignal()

	h := &harness{
		store: repository.NewJobRepository(gdb, log),
		tm:    db.NewTransactionManager(gdb),
		clock: time.Now().UTC().Truncate(time.Second),
	}
	h.enqueuer = NewEnqueuer(h.store, PoliciesFromConfig(cfg), signal, log)
	h.worker = NewWorker(h.store, signal, cfg, metrics.Nop(), log)
	h.worker.now = func() time.Time { return h.clock }
	h.worker.jitter = func() float64 { return 0.5 }
	return h
}

func (h *harness) advance(d time.Duration) {
	h.clock = h.clock.Add(d)
}

func (h *harness) reload(t *testing.T, id string) *job.Job {
	t.Helper()
	j, err := h.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, j)
	return j
}

func TestWorker_CompletesJob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var seen uint
	require.NoError(t, h.worker.Register(job.TypeEmailWelcome, func(ctx context.Context, j *job.Job) error {
		seen = *j.TargetID()
		return nil
	}))

	j, err := h.enqueuer.Enqueue(ctx, job.TypeEmailWelcome, WithTargetID(12))
	require.NoError(t, err)

	processed, err := h.worker.RunNext(ctx, job.QueueEmail)
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, uint(12), seen)
	assert.Equal(t, job.StatusCompleted, h.reload(t, j.ID()).Status())

	processed, err = h.worker.RunNext(ctx, job.QueueEmail)
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestWorker_RetriesWithBackoffThenRetainsFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var calls int
	require.NoError(t, h.worker.Register(job.TypeEmailPaymentFailed, func(context.Context, *job.Job) error {
		calls++
		return errors.New("smtp: 421 try again later")
	}))

	j, err := h.enqueuer.Enqueue(ctx, job.TypeEmailPaymentFailed)
	require.NoError(t, err)

	_, err = h.worker.RunNext(ctx, job.QueueEmail)
	require.NoError(t, err)
	stored := h.reload(t, j.ID())
	assert.Equal(t, job.StatusPending, stored.Status())
	assert.True(t, h.clock.Add(10*time.Second).Equal(stored.NextRunAt()))

	// not due yet
	processed, err := h.worker.RunNext(ctx, job.QueueEmail)
	require.NoError(t, err)
	assert.False(t, processed)

	h.advance(10 * time.Second)
	_, err = h.worker.RunNext(ctx, job.QueueEmail)
	require.NoError(t, err)
	assert.True(t, h.clock.Add(20*time.Second).Equal(h.reload(t, j.ID()).NextRunAt()))

	h.advance(20 * time.Second)
	_, err = h.worker.RunNext(ctx, job.QueueEmail)
	require.NoError(t, err)

	stored = h.reload(t, j.ID())
	assert.Equal(t, 3, calls)
	assert.Equal(t, job.StatusFailed, stored.Status())
	assert.Equal(t, 3, stored.Attempts())
	require.NotNil(t, stored.LastError())
	assert.Contains(t, *stored.LastError(), "421")
}

func TestWorker_PermanentAndMissingHandler(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.worker.Register(job.TypeEmailTrialEnding, func(context.Context, *job.Job) error {
		return Permanent(errors.New("user has no email"))
	}))

	permanent, err := h.enqueuer.Enqueue(ctx, job.TypeEmailTrialEnding)
	require.NoError(t, err)
	_, err = h.worker.RunNext(ctx, job.QueueEmail)
	require.NoError(t, err)
	stored := h.reload(t, permanent.ID())
	assert.Equal(t, job.StatusFailed, stored.Status())
	assert.Equal(t, 1, stored.Attempts())

	orphan, err := h.enqueuer.Enqueue(ctx, job.TypeCleanupExpired)
	require.NoError(t, err)
	_, err = h.worker.RunNext(ctx, job.QueueMaintenance)
	require.NoError(t, err)
	stored = h.reload(t, orphan.ID())
	assert.Equal(t, job.StatusFailed, stored.Status())
	assert.Contains(t, *stored.LastError(), "no handler")
}

func TestWorker_PanicIsRetried(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.worker.Register(job.TypeCheckExpiry, func(context.Context, *job.Job) error {
		panic("nil map")
	}))

	j, err := h.enqueuer.Enqueue(ctx, job.TypeCheckExpiry)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		_, err = h.worker.RunNext(ctx, job.QueueMaintenance)
	})
	require.NoError(t, err)

	stored := h.reload(t, j.ID())
	assert.Equal(t, job.StatusPending, stored.Status())
	assert.Contains(t, *stored.LastError(), "panic")
}

func TestWorker_RegisterRejectsUnknownType(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.worker.Register(job.Type("reindex"), func(context.Context, *job.Job) error { return nil }), job.ErrUnknownType)
	assert.Error(t, h.worker.Register(job.TypeEmailWelcome, nil))
}

func TestWorker_SweepPrunesByRetention(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.worker.Register(job.TypeCheckExpiry, func(context.Context, *job.Job) error { return nil }))
	j, err := h.enqueuer.Enqueue(ctx, job.TypeCheckExpiry, WithRunAt(h.clock))
	require.NoError(t, err)
	_, err = h.worker.RunNext(ctx, job.QueueMaintenance)
	require.NoError(t, err)

	h.worker.Sweep(ctx)
	assert.Equal(t, job.StatusCompleted, h.reload(t, j.ID()).Status())

	h.advance(2 * time.Hour)
	h.worker.Sweep(ctx)
	gone, err := h.store.GetByID(ctx, j.ID())
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestWorker_RunProcessesSignalledJobs(t *testing.T) {
	h := newHarness(t)
	h.worker.now = biztime.NowUTC

	var done atomic.Int32
	require.NoError(t, h.worker.Register(job.TypeEmailWelcome, func(context.Context, *job.Job) error {
		done.Add(1)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- h.worker.Run(ctx) }()

	for i := 0; i < 3; i++ {
		_, err := h.enqueuer.Enqueue(context.Background(), job.TypeEmailWelcome, WithTargetID(uint(i+1)))
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool { return done.Load() == 3 }, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}
