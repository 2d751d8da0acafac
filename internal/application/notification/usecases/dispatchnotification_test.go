package usecases

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/subflow/internal/domain/job"
	"github.com/orris-inc/subflow/internal/domain/notification"
	vo "github.com/orris-inc/subflow/internal/domain/notification/valueobjects"
	"github.com/orris-inc/subflow/internal/infrastructure/database/dbtest"
	"github.com/orris-inc/subflow/internal/infrastructure/metrics"
	"github.com/orris-inc/subflow/internal/infrastructure/queue"
	"github.com/orris-inc/subflow/internal/infrastructure/repository"
	"github.com/orris-inc/subflow/internal/shared/config"
	"github.com/orris-inc/subflow/internal/shared/db"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

type fakeDeliverer struct {
	mu    sync.Mutex
	calls []vo.Kind
	to    []Recipient
	fail  []error
}

func (f *fakeDeliverer) Deliver(_ context.Context, kind vo.Kind, to Recipient, _ map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, kind)
	f.to = append(f.to, to)
	if len(f.fail) > 0 {
		err := f.fail[0]
		f.fail = f.fail[1:]
		if err != nil {
			return "", err
		}
	}
	return "msg-" + kind.String(), nil
}

type fixture struct {
	notifications *repository.NotificationRepositoryImpl
	users         *repository.UserRepositoryImpl
	jobs          *repository.JobRepositoryImpl
	tm            *db.TransactionManager
	deliverer     *fakeDeliverer
	queue         *QueueNotificationUseCase
	dispatch      *DispatchNotificationUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := dbtest.Open(t)
	log := logger.NewNopLogger()

	settings := config.QueueSettings{MaxAttempts: 3, BackoffBase: time.Second, BackoffCap: time.Minute, Concurrency: 1}
	f := &fixture{
		notifications: repository.NewNotificationRepository(gdb, log),
		users:         repository.NewUserRepository(gdb, log),
		jobs:          repository.NewJobRepository(gdb, log),
		tm:            db.NewTransactionManager(gdb),
		deliverer:     &fakeDeliverer{},
	}
	enqueuer := queue.NewEnqueuer(f.jobs, queue.PoliciesFromConfig(config.QueueConfig{
		Maintenance: settings,
		Email:       settings,
	}), queue.NewLocalSignal(), log)

	f.dispatch = NewDispatchNotificationUseCase(f.notifications, f.users, f.deliverer, metrics.Nop(), log)
	f.queue = NewQueueNotificationUseCase(f.notifications, enqueuer, f.dispatch, log)
	return f
}

func (f *fixture) claim(t *testing.T) *job.Job {
	t.Helper()
	now := time.Now().UTC().Add(time.Second)
	j, err := f.jobs.ClaimNext(context.Background(), job.QueueEmail, now, now.Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, j)
	return j
}

func (f *fixture) reload(t *testing.T, id uint) *notification.Notification {
	t.Helper()
	n, err := f.notifications.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, n)
	return n
}

func TestDispatch_SendRecordsSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID, err := f.users.Create(ctx, "ada@example.com", "Ada")
	require.NoError(t, err)

	result := f.dispatch.Send(ctx, vo.KindWelcome, userID, nil)
	require.NoError(t, result.Error)
	assert.True(t, result.Success)
	assert.Equal(t, "msg-welcome", result.ProviderMessageID)
	assert.Equal(t, []Recipient{{Email: "ada@example.com", Name: "Ada"}}, f.deliverer.to)

	sent, err := f.notifications.CountByStatus(ctx, vo.KindWelcome, vo.StatusSent)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sent)
}

func TestDispatch_SendRecordsFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID, err := f.users.Create(ctx, "ada@example.com", "")
	require.NoError(t, err)
	f.deliverer.fail = []error{errors.New("smtp: 421 try later")}

	result := f.dispatch.Send(ctx, vo.KindPasswordReset, userID, map[string]any{"token": "abc"})
	assert.False(t, result.Success)
	assert.EqualError(t, result.Error, "smtp: 421 try later")
	assert.Empty(t, result.ProviderMessageID)

	failed, err := f.notifications.CountByStatus(ctx, vo.KindPasswordReset, vo.StatusFailed)
	require.NoError(t, err)
	assert.Equal(t, int64(1), failed)
}

func TestDispatch_EmailJobRetriesThenSends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID, err := f.users.Create(ctx, "ada@example.com", "Ada")
	require.NoError(t, err)

	var queued *notification.Notification
	require.NoError(t, f.tm.RunInTransaction(ctx, func(txCtx context.Context) error {
		var err error
		queued, err = f.queue.Execute(txCtx, QueueNotificationCommand{
			UserID:  userID,
			Kind:    vo.KindPaymentFailed,
			Related: &notification.RelatedEntity{Type: notification.RelatedSubscription, ID: 4},
			Context: map[string]any{"amount": "19.99 USD"},
		})
		return err
	}))
	assert.Equal(t, vo.StatusPending, f.reload(t, queued.ID()).Status())

	j := f.claim(t)
	assert.Equal(t, job.TypeEmailPaymentFailed, j.Type())
	require.NotNil(t, j.TargetID())
	assert.Equal(t, queued.ID(), *j.TargetID())

	f.deliverer.fail = []error{errors.New("postmark: 500")}
	err = f.dispatch.HandleEmailJob(ctx, j)
	require.Error(t, err)
	assert.False(t, errors.Is(err, job.ErrPermanent))

	failed := f.reload(t, queued.ID())
	assert.Equal(t, vo.StatusFailed, failed.Status())
	assert.Equal(t, 1, failed.RetryCount())

	require.NoError(t, f.dispatch.HandleEmailJob(ctx, j))
	sent := f.reload(t, queued.ID())
	assert.Equal(t, vo.StatusSent, sent.Status())
	require.NotNil(t, sent.ProviderMessageID())
	assert.Equal(t, "msg-payment_failed", *sent.ProviderMessageID())

	// a redelivered job does not send twice
	require.NoError(t, f.dispatch.HandleEmailJob(ctx, j))
	assert.Len(t, f.deliverer.calls, 2)
}

func TestDispatch_EmailJobPermanentFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.queue.Execute(ctx, QueueNotificationCommand{UserID: 77, Kind: vo.KindTrialEnding})
	require.NoError(t, err)
	err = f.dispatch.HandleEmailJob(ctx, f.claim(t))
	assert.ErrorIs(t, err, job.ErrPermanent)
	assert.Empty(t, f.deliverer.calls)

	missing, err := job.NewJob(job.NewParams{
		Type:    job.TypeEmailWelcome,
		Policy:  job.RetryPolicy{MaxAttempts: 1, BackoffBase: time.Second, BackoffCap: time.Second},
		Payload: []byte(`{"notification_id":999,"kind":"welcome"}`),
	}, time.Now().UTC())
	require.NoError(t, err)
	err = f.dispatch.HandleEmailJob(ctx, missing)
	assert.ErrorIs(t, err, job.ErrPermanent)
	assert.ErrorIs(t, err, ErrNotificationNotFound)

	empty, err := job.NewJob(job.NewParams{
		Type:   job.TypeEmailWelcome,
		Policy: job.RetryPolicy{MaxAttempts: 1, BackoffBase: time.Second, BackoffCap: time.Second},
	}, time.Now().UTC())
	require.NoError(t, err)
	assert.ErrorIs(t, f.dispatch.HandleEmailJob(ctx, empty), job.ErrPermanent)
}

func TestDispatch_OutboxRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boom := errors.New("state write failed")

	err := f.tm.RunInTransaction(ctx, func(txCtx context.Context) error {
		if _, err := f.queue.Execute(txCtx, QueueNotificationCommand{UserID: 1, Kind: vo.KindWelcome}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	pending, err := f.notifications.CountByStatus(ctx, vo.KindWelcome, vo.StatusPending)
	require.NoError(t, err)
	assert.Zero(t, pending)

	pendingJobs, err := f.jobs.CountByStatus(ctx, job.QueueEmail, job.StatusPending)
	require.NoError(t, err)
	assert.Zero(t, pendingJobs)
}

func TestDispatch_RecordInApp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.dispatch.RecordInApp(ctx, vo.KindRenewalReminder, 3,
		&notification.RelatedEntity{Type: notification.RelatedSubscription, ID: 8}, nil)
	require.NoError(t, err)
	assert.Equal(t, vo.ChannelInApp, n.Channel())

	related, err := f.notifications.ListByRelated(ctx, notification.RelatedSubscription, 8)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, vo.StatusDelivered, related[0].Status())
	assert.Empty(t, f.deliverer.calls)
}

func TestQueue_InAppCopyCommitsWithTheEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	related := &notification.RelatedEntity{Type: notification.RelatedSubscription, ID: 11}
	cmd := QueueNotificationCommand{
		UserID:  5,
		Kind:    vo.KindSubscriptionCanceled,
		Related: related,
		InApp:   true,
	}

	rollback := errors.New("state change failed")
	err := f.tm.RunInTransaction(ctx, func(txCtx context.Context) error {
		if _, err := f.queue.Execute(txCtx, cmd); err != nil {
			return err
		}
		return rollback
	})
	require.ErrorIs(t, err, rollback)
	none, err := f.notifications.ListByRelated(ctx, notification.RelatedSubscription, 11)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, f.tm.RunInTransaction(ctx, func(txCtx context.Context) error {
		_, err := f.queue.Execute(txCtx, cmd)
		return err
	}))

	rows, err := f.notifications.ListByRelated(ctx, notification.RelatedSubscription, 11)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	channels := map[vo.Channel]vo.Status{}
	for _, n := range rows {
		channels[n.Channel()] = n.Status()
	}
	assert.Equal(t, map[vo.Channel]vo.Status{
		vo.ChannelEmail: vo.StatusPending,
		vo.ChannelInApp: vo.StatusDelivered,
	}, channels)
	assert.Empty(t, f.deliverer.calls)
}

func TestQueue_EmailOnlyByDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.tm.RunInTransaction(ctx, func(txCtx context.Context) error {
		_, err := f.queue.Execute(txCtx, QueueNotificationCommand{
			UserID:  5,
			Kind:    vo.KindRenewalReminder,
			Related: &notification.RelatedEntity{Type: notification.RelatedSubscription, ID: 12},
		})
		return err
	}))

	rows, err := f.notifications.ListByRelated(ctx, notification.RelatedSubscription, 12)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, vo.ChannelEmail, rows[0].Channel())
}
