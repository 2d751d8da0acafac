package usecases

import (
	"context"
	"time"

	notificationusecases "github.com/orris-inc/subflow/internal/application/notification/usecases"
	"github.com/orris-inc/subflow/internal/domain/job"
	"github.com/orris-inc/subflow/internal/domain/notification"
	"github.com/orris-inc/subflow/internal/domain/plan"
	"github.com/orris-inc/subflow/internal/domain/subscription"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

const defaultBatchSize = 100

// NotificationOutbox stores a pending notification and its email job through
// the transaction carried by ctx.
type NotificationOutbox interface {
	Execute(ctx context.Context, cmd notificationusecases.QueueNotificationCommand) (*notification.Notification, error)
}

type QueueNotifier interface {
	Notify(ctx context.Context, queues ...job.Queue)
}

// batchSize reads the batch size a trigger attached to j.
func batchSize(j *job.Job, fallback int) int {
	if j != nil && j.BatchSize() != nil && *j.BatchSize() > 0 {
		return *j.BatchSize()
	}
	if fallback > 0 {
		return fallback
	}
	return defaultBatchSize
}

// reminderContext is the template context shared by the subscription emails.
func reminderContext(ctx context.Context, plans plan.Catalog, sub *subscription.Subscription, log logger.Interface) map[string]any {
	data := map[string]any{
		notificationusecases.CtxPeriodEnd: notificationusecases.DateValue(sub.CurrentPeriodEnd()),
	}
	if sub.TrialEnd() != nil {
		data[notificationusecases.CtxTrialEnd] = notificationusecases.DateValue(*sub.TrialEnd())
	}
	pl, err := plans.GetByID(ctx, sub.PlanID())
	if err != nil {
		log.Warnw("plan lookup failed, email goes out without plan name",
			"subscription_id", sub.ID(),
			"plan_id", sub.PlanID(),
			"error", err,
		)
		return data
	}
	data[notificationusecases.CtxPlanName] = pl.Name()
	return data
}

func relatedTo(sub *subscription.Subscription) *notification.RelatedEntity {
	return &notification.RelatedEntity{Type: notification.RelatedSubscription, ID: sub.ID()}
}

func since(start time.Time) time.Duration {
	return time.Since(start).Round(time.Millisecond)
}
