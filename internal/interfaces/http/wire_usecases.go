package http

import (
	"context"
	"fmt"

	billingUsecases "github.com/orris-inc/subflow/internal/application/billing/usecases"
	notificationUsecases "github.com/orris-inc/subflow/internal/application/notification/usecases"
	subscriptionUsecases "github.com/orris-inc/subflow/internal/application/subscription/usecases"
	notificationvo "github.com/orris-inc/subflow/internal/domain/notification/valueobjects"
	"github.com/orris-inc/subflow/internal/infrastructure/adapters"
	"github.com/orris-inc/subflow/internal/infrastructure/billing/stripe"
	"github.com/orris-inc/subflow/internal/infrastructure/cache"
	"github.com/orris-inc/subflow/internal/infrastructure/email"
)

type allUseCases struct {
	// Notification
	queueNotification    *notificationUsecases.QueueNotificationUseCase
	dispatchNotification *notificationUsecases.DispatchNotificationUseCase

	// Billing
	processWebhook *billingUsecases.ProcessWebhookUseCase

	// Maintenance jobs
	checkExpiry          *subscriptionUsecases.CheckExpiryUseCase
	sendRenewalReminders *subscriptionUsecases.SendRenewalRemindersUseCase
	processTrialEnding   *subscriptionUsecases.ProcessTrialEndingUseCase
	cleanupExpired       *subscriptionUsecases.CleanupExpiredUseCase
}

func (c *Container) initUseCases() error {
	r := c.repos
	jobsCfg := c.cfg.Jobs
	ucs := &allUseCases{}

	sender, err := email.NewSender(c.cfg.Email, c.log.Named("email"))
	if err != nil {
		return fmt.Errorf("failed to create email sender: %w", err)
	}
	renderer, err := email.NewRenderer()
	if err != nil {
		return fmt.Errorf("failed to load email templates: %w", err)
	}
	deliverer := adapters.NewEmailDelivererAdapter(renderer, sender, c.cfg.Email.BaseURL)

	ucs.dispatchNotification = notificationUsecases.NewDispatchNotificationUseCase(r.notifications, r.users, deliverer, c.observer, c.log)
	ucs.queueNotification = notificationUsecases.NewQueueNotificationUseCase(r.notifications, c.enqueuer, ucs.dispatchNotification, c.log)

	plans := cache.NewPlanCatalog(r.plans, c.cfg.Plans.CacheSize, c.cfg.Plans.CacheTTL, c.log)
	gateway := stripe.NewGateway(c.cfg.Billing, c.log.Named("stripe"))

	ucs.processWebhook = billingUsecases.NewProcessWebhookUseCase(
		gateway,
		gateway,
		r.ledger,
		r.subscriptions,
		r.payments,
		plans,
		r.users,
		ucs.queueNotification,
		c.enqueuer,
		r.txMgr,
		c.observer,
		c.log.Named("webhook"),
	)

	jobLog := c.log.Named("jobs")
	ucs.checkExpiry = subscriptionUsecases.NewCheckExpiryUseCase(
		r.subscriptions, plans, ucs.queueNotification, c.enqueuer, r.txMgr, jobsCfg.BatchSize, jobLog)
	ucs.sendRenewalReminders = subscriptionUsecases.NewSendRenewalRemindersUseCase(
		r.subscriptions, plans, ucs.queueNotification, c.enqueuer, r.txMgr, jobsCfg.RenewalWindow, jobsCfg.BatchSize, jobLog)
	ucs.processTrialEnding = subscriptionUsecases.NewProcessTrialEndingUseCase(
		r.subscriptions, plans, ucs.queueNotification, c.enqueuer, r.txMgr, jobsCfg.TrialWindow, jobsCfg.BatchSize, jobLog)
	ucs.cleanupExpired = subscriptionUsecases.NewCleanupExpiredUseCase(
		r.subscriptions, r.ledger, jobsCfg.CleanupAfter, jobsCfg.LedgerRetention, jobsCfg.BatchSize, jobLog)

	c.ucs = ucs
	return nil
}

// SendNotification emails kind to userID right away, outside the job queue.
func (c *Container) SendNotification(ctx context.Context, kind notificationvo.Kind, userID uint, data map[string]any) notificationUsecases.SendResult {
	return c.ucs.dispatchNotification.Send(ctx, kind, userID, data)
}
