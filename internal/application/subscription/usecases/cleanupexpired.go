package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/orris-inc/subflow/internal/domain/billingevent"
	"github.com/orris-inc/subflow/internal/domain/job"
	"github.com/orris-inc/subflow/internal/domain/subscription"
	"github.com/orris-inc/subflow/internal/shared/biztime"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

type CleanupResult struct {
	Archived     int
	PrunedEvents int64
}

// CleanupExpiredUseCase archives subscriptions that ended long ago and prunes
// old ledger rows. Subscriptions are flagged, never deleted.
type CleanupExpiredUseCase struct {
	subscriptionRepo subscription.SubscriptionRepository
	ledger           billingevent.Ledger
	cleanupAfter     time.Duration
	ledgerRetention  time.Duration
	batchSize        int
	logger           logger.Interface
	now              func() time.Time
}

func NewCleanupExpiredUseCase(
	subscriptionRepo subscription.SubscriptionRepository,
	ledger billingevent.Ledger,
	cleanupAfter time.Duration,
	ledgerRetention time.Duration,
	batchSize int,
	logger logger.Interface,
) *CleanupExpiredUseCase {
	return &CleanupExpiredUseCase{
		subscriptionRepo: subscriptionRepo,
		ledger:           ledger,
		cleanupAfter:     cleanupAfter,
		ledgerRetention:  ledgerRetention,
		batchSize:        batchSize,
		logger:           logger,
		now:              biztime.NowUTC,
	}
}

func (uc *CleanupExpiredUseCase) Execute(ctx context.Context, limit int) (CleanupResult, error) {
	var result CleanupResult
	now := uc.now()

	candidates, err := uc.subscriptionRepo.FindArchivalCandidates(ctx, now.Add(-uc.cleanupAfter), limit)
	if err != nil {
		return result, fmt.Errorf("failed to find archival candidates: %w", err)
	}

	var errs error
	for _, sub := range candidates {
		if err := sub.Archive(now); err != nil {
			uc.logger.Warnw("cannot archive subscription", "subscription_id", sub.ID(), "status", sub.Status(), "error", err)
			continue
		}
		if err := uc.subscriptionRepo.Update(ctx, sub); err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		result.Archived++
	}

	if uc.ledgerRetention > 0 {
		pruned, err := uc.ledger.PruneBefore(ctx, now.Add(-uc.ledgerRetention))
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to prune processed events: %w", err))
		}
		result.PrunedEvents = pruned
	}

	if result.Archived > 0 || result.PrunedEvents > 0 {
		uc.logger.Infow("cleanup finished",
			"archived", result.Archived,
			"pruned_events", result.PrunedEvents,
		)
	}
	return result, errs
}

func (uc *CleanupExpiredUseCase) HandleJob(ctx context.Context, j *job.Job) error {
	_, err := uc.Execute(ctx, batchSize(j, uc.batchSize))
	return err
}
