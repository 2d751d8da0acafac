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

// CheckExpiryUseCase expires subscriptions whose period ran out while they
// were canceled or set to cancel at period end. Each row is expired in its own
// transaction together with the cancellation email, so a rerun over the same
// window finds nothing left to do.
type CheckExpiryUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	plans            plan.Catalog
	outbox           NotificationOutbox
	notifier         QueueNotifier
	txMgr            *db.TransactionManager
	batchSize        int
	logger           logger.Interface
	now              func() time.Time
}

func NewCheckExpiryUseCase(
	subscriptionRepo subscription.SubscriptionRepository,
	plans plan.Catalog,
	outbox NotificationOutbox,
	notifier QueueNotifier,
	txMgr *db.TransactionManager,
	batchSize int,
	logger logger.Interface,
) *CheckExpiryUseCase {
	return &CheckExpiryUseCase{
		subscriptionRepo: subscriptionRepo,
		plans:            plans,
		outbox:           outbox,
		notifier:         notifier,
		txMgr:            txMgr,
		batchSize:        batchSize,
		logger:           logger,
		now:              biztime.NowUTC,
	}
}

// Execute returns the number of subscriptions it expired. Rows that fail are
// reported in the joined error and retried by the next run.
func (uc *CheckExpiryUseCase) Execute(ctx context.Context, limit int) (int, error) {
	start := time.Now()
	now := uc.now()

	candidates, err := uc.subscriptionRepo.FindExpiryCandidates(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to find expiry candidates: %w", err)
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	var (
		expired int
		errs    error
	)
	for _, candidate := range candidates {
		changed, err := uc.expire(ctx, candidate.ID(), now)
		if err != nil {
			uc.logger.Errorw("failed to expire subscription",
				"subscription_id", candidate.ID(),
				"subscription_sid", candidate.SID(),
				"error", err,
			)
			errs = errors.Join(errs, err)
			continue
		}
		if changed {
			expired++
		}
	}

	if expired > 0 {
		uc.notifier.Notify(ctx, job.QueueEmail)
	}

	uc.logger.Infow("expiry sweep finished",
		"candidates", len(candidates),
		"expired", expired,
		"duration", since(start),
	)
	return expired, errs
}

func (uc *CheckExpiryUseCase) expire(ctx context.Context, id uint, now time.Time) (bool, error) {
	var changed bool
	err := uc.txMgr.RunInTransaction(ctx, func(ctx context.Context) error {
		sub, err := uc.subscriptionRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if sub == nil {
			return nil
		}

		decision, err := sub.Apply(subscription.FactExpirySweep{Now: now}, now)
		if err != nil {
			return err
		}
		if !decision.Changed {
			return nil
		}

		if err := uc.subscriptionRepo.Update(ctx, sub); err != nil {
			return err
		}

		if decision.HasEffect(subscription.EffectCanceled) {
			if _, err := uc.outbox.Execute(ctx, notificationusecases.QueueNotificationCommand{
				UserID:  sub.UserID(),
				Kind:    vo.KindSubscriptionCanceled,
				Related: relatedTo(sub),
				Context: reminderContext(ctx, uc.plans, sub, uc.logger),
				InApp:   true,
			}); err != nil {
				return err
			}
		}

		changed = true
		uc.logger.Debugw("subscription expired",
			"subscription_id", sub.ID(),
			"subscription_sid", sub.SID(),
			"period_end", sub.CurrentPeriodEnd(),
		)
		return nil
	})
	return changed, err
}

// HandleJob runs the sweep for a check_expiry job.
func (uc *CheckExpiryUseCase) HandleJob(ctx context.Context, j *job.Job) error {
	_, err := uc.Execute(ctx, batchSize(j, uc.batchSize))
	return err
}
