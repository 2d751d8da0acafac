package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	notificationusecases "github.com/orris-inc/subflow/internal/application/notification/usecases"
	"github.com/orris-inc/subflow/internal/domain/job"
	vo "github.com/orris-inc/subflow/internal/domain/notification/valueobjects"
	"github.com/orris-inc/subflow/internal/domain/plan"
	"github.com/orris-inc/subflow/internal/domain/subscription"
	"github.com/orris-inc/subflow/internal/shared/biztime"
	"github.com/orris-inc/subflow/internal/shared/db"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

// SendRenewalRemindersUseCase reminds users whose subscription renews within
// the window. A subscription is reminded once per period end.
type SendRenewalRemindersUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	plans            plan.Catalog
	outbox           NotificationOutbox
	notifier         QueueNotifier
	txMgr            *db.TransactionManager
	window           time.Duration
	batchSize        int
	logger           logger.Interface
	now              func() time.Time
}

func NewSendRenewalRemindersUseCase(
	subscriptionRepo subscription.SubscriptionRepository,
	plans plan.Catalog,
	outbox NotificationOutbox,
	notifier QueueNotifier,
	txMgr *db.TransactionManager,
	window time.Duration,
	batchSize int,
	logger logger.Interface,
) *SendRenewalRemindersUseCase {
	return &SendRenewalRemindersUseCase{
		subscriptionRepo: subscriptionRepo,
		plans:            plans,
		outbox:           outbox,
		notifier:         notifier,
		txMgr:            txMgr,
		window:           window,
		batchSize:        batchSize,
		logger:           logger,
		now:              biztime.NowUTC,
	}
}

func (uc *SendRenewalRemindersUseCase) Execute(ctx context.Context, limit int) (int, error) {
	start := time.Now()
	now := uc.now()

	candidates, err := uc.subscriptionRepo.FindRenewalCandidates(ctx, now, now.Add(uc.window), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to find renewal candidates: %w", err)
	}

	var (
		sent int
		errs error
	)
	for _, candidate := range candidates {
		queued, err := uc.remind(ctx, candidate.ID())
		if err != nil {
			uc.logger.Errorw("failed to queue renewal reminder", "subscription_id", candidate.ID(), "error", err)
			errs = errors.Join(errs, err)
			continue
		}
		if queued {
			sent++
		}
	}

	if sent > 0 {
		uc.notifier.Notify(ctx, job.QueueEmail)
		uc.logger.Infow("renewal reminders queued", "count", sent, "duration", since(start))
	}
	return sent, errs
}

func (uc *SendRenewalRemindersUseCase) remind(ctx context.Context, id uint) (bool, error) {
	var queued bool
	err := uc.txMgr.RunInTransaction(ctx, func(ctx context.Context) error {
		sub, err := uc.subscriptionRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if sub == nil || !sub.Status().IsLive() || sub.CancelAtPeriodEnd() || !sub.NeedsRenewalReminder() {
			return nil
		}

		sub.MarkRenewalReminded()
		if err := uc.subscriptionRepo.Update(ctx, sub); err != nil {
			return err
		}
		if _, err := uc.outbox.Execute(ctx, notificationusecases.QueueNotificationCommand{
			UserID:  sub.UserID(),
			Kind:    vo.KindRenewalReminder,
			Related: relatedTo(sub),
			Context: reminderContext(ctx, uc.plans, sub, uc.logger),
		}); err != nil {
			return err
		}
		queued = true
		return nil
	})
	return queued, err
}

func (uc *SendRenewalRemindersUseCase) HandleJob(ctx context.Context, j *job.Job) error {
	_, err := uc.Execute(ctx, batchSize(j, uc.batchSize))
	return err
}
