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
	subscriptionvo "github.com/orris-inc/subflow/internal/domain/subscription/valueobjects"
	"github.com/orris-inc/subflow/internal/shared/biztime"
	"github.com/orris-inc/subflow/internal/shared/db"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

// ProcessTrialEndingUseCase tells trialing users that their trial ends soon.
type ProcessTrialEndingUseCase struct {
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

func NewProcessTrialEndingUseCase(
	subscriptionRepo subscription.SubscriptionRepository,
	plans plan.Catalog,
	outbox NotificationOutbox,
	notifier QueueNotifier,
	txMgr *db.TransactionManager,
	window time.Duration,
	batchSize int,
	logger logger.Interface,
) *ProcessTrialEndingUseCase {
	return &ProcessTrialEndingUseCase{
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

func (uc *ProcessTrialEndingUseCase) Execute(ctx context.Context, limit int) (int, error) {
	now := uc.now()

	candidates, err := uc.subscriptionRepo.FindTrialEndingCandidates(ctx, now, now.Add(uc.window), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to find trial ending candidates: %w", err)
	}

	var (
		sent int
		errs error
	)
	for _, candidate := range candidates {
		queued, err := uc.notify(ctx, candidate.ID())
		if err != nil {
			uc.logger.Errorw("failed to queue trial ending email", "subscription_id", candidate.ID(), "error", err)
			errs = errors.Join(errs, err)
			continue
		}
		if queued {
			sent++
		}
	}

	if sent > 0 {
		uc.notifier.Notify(ctx, job.QueueEmail)
		uc.logger.Infow("trial ending emails queued", "count", sent)
	}
	return sent, errs
}

func (uc *ProcessTrialEndingUseCase) notify(ctx context.Context, id uint) (bool, error) {
	var queued bool
	err := uc.txMgr.RunInTransaction(ctx, func(ctx context.Context) error {
		sub, err := uc.subscriptionRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if sub == nil || sub.Status() != subscriptionvo.StatusTrialing || !sub.NeedsTrialReminder() {
			return nil
		}

		sub.MarkTrialReminded()
		if err := uc.subscriptionRepo.Update(ctx, sub); err != nil {
			return err
		}
		if _, err := uc.outbox.Execute(ctx, notificationusecases.QueueNotificationCommand{
			UserID:  sub.UserID(),
			Kind:    vo.KindTrialEnding,
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

func (uc *ProcessTrialEndingUseCase) HandleJob(ctx context.Context, j *job.Job) error {
	_, err := uc.Execute(ctx, batchSize(j, uc.batchSize))
	return err
}
