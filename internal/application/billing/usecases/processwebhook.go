package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/orris-inc/subflow/internal/application/billing/provider"
	notificationusecases "github.com/orris-inc/subflow/internal/application/notification/usecases"
	"github.com/orris-inc/subflow/internal/domain/billingevent"
	"github.com/orris-inc/subflow/internal/domain/job"
	"github.com/orris-inc/subflow/internal/domain/notification"
	"github.com/orris-inc/subflow/internal/domain/payment"
	"github.com/orris-inc/subflow/internal/domain/plan"
	"github.com/orris-inc/subflow/internal/domain/subscription"
	"github.com/orris-inc/subflow/internal/domain/user"
	"github.com/orris-inc/subflow/internal/shared/biztime"
	"github.com/orris-inc/subflow/internal/shared/db"
	apperrors "github.com/orris-inc/subflow/internal/shared/errors"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

// Outcome is what the router reports for one delivery. Every outcome except
// an error is acknowledged to the provider.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeUnhandled Outcome = "unhandled"
	OutcomeReconcile Outcome = "needs_reconciliation"
)

type WebhookResult struct {
	EventID   string
	EventType string
	Outcome   Outcome
}

// NotificationOutbox stores a pending notification and its email job through
// the transaction carried by ctx.
type NotificationOutbox interface {
	Execute(ctx context.Context, cmd notificationusecases.QueueNotificationCommand) (*notification.Notification, error)
}

type QueueNotifier interface {
	Notify(ctx context.Context, queues ...job.Queue)
}

type Observer interface {
	RecordWebhook(eventType, outcome string, duration time.Duration)
}

// ProcessWebhookUseCase authenticates provider deliveries and applies each
// event at most once. The ledger claim, the state change and the outbox rows
// commit in one transaction.
type ProcessWebhookUseCase struct {
	source           provider.EventSource
	fetcher          provider.SubscriptionFetcher
	ledger           billingevent.Ledger
	subscriptionRepo subscription.SubscriptionRepository
	paymentRepo      payment.PaymentRepository
	plans            plan.Catalog
	users            user.Directory
	outbox           NotificationOutbox
	notifier         QueueNotifier
	txMgr            *db.TransactionManager
	observer         Observer
	logger           logger.Interface
	now              func() time.Time
}

func NewProcessWebhookUseCase(
	source provider.EventSource,
	fetcher provider.SubscriptionFetcher,
	ledger billingevent.Ledger,
	subscriptionRepo subscription.SubscriptionRepository,
	paymentRepo payment.PaymentRepository,
	plans plan.Catalog,
	users user.Directory,
	outbox NotificationOutbox,
	notifier QueueNotifier,
	txMgr *db.TransactionManager,
	observer Observer,
	logger logger.Interface,
) *ProcessWebhookUseCase {
	return &ProcessWebhookUseCase{
		source:           source,
		fetcher:          fetcher,
		ledger:           ledger,
		subscriptionRepo: subscriptionRepo,
		paymentRepo:      paymentRepo,
		plans:            plans,
		users:            users,
		outbox:           outbox,
		notifier:         notifier,
		txMgr:            txMgr,
		observer:         observer,
		logger:           logger,
		now:              biztime.NowUTC,
	}
}

// Execute handles one raw delivery. A returned *AppError of validation type
// means the delivery is rejected for good (400); any other error asks the
// provider to redeliver (500).
func (uc *ProcessWebhookUseCase) Execute(ctx context.Context, payload []byte, signatureHeader string) (*WebhookResult, error) {
	start := time.Now()

	event, err := uc.source.Verify(payload, signatureHeader)
	if err != nil {
		uc.logger.Warnw("rejected webhook delivery", "error", err)
		uc.observer.RecordWebhook("unverified", "rejected", time.Since(start))
		return nil, apperrors.NewValidationError("invalid webhook signature", err.Error()).WithCause(err)
	}

	result := &WebhookResult{EventID: event.ID, EventType: event.Type}
	log := uc.logger.With("event_id", event.ID, "event_type", event.Type)

	outcome, err := uc.route(ctx, event, log)
	if err != nil {
		uc.observer.RecordWebhook(event.Type, "error", time.Since(start))
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		log.Errorw("failed to process webhook event", "error", err)
		return nil, apperrors.NewInternalError("failed to process webhook event").WithCause(err)
	}

	result.Outcome = outcome
	uc.observer.RecordWebhook(event.Type, string(outcome), time.Since(start))
	log.Infow("webhook event processed", "outcome", outcome, "duration", time.Since(start))
	return result, nil
}

func (uc *ProcessWebhookUseCase) route(ctx context.Context, event *provider.Event, log logger.Interface) (Outcome, error) {
	seen, err := uc.ledger.Exists(ctx, event.ID)
	if err != nil {
		return "", err
	}
	if seen {
		log.Debugw("event already processed")
		return OutcomeDuplicate, nil
	}

	decoded, err := uc.source.Decode(event)
	if err != nil {
		if errors.Is(err, provider.ErrMalformedPayload) {
			log.Warnw("malformed webhook payload", "error", err)
			return "", apperrors.NewValidationError("malformed webhook payload", err.Error()).WithCause(err)
		}
		return "", err
	}

	switch p := decoded.(type) {
	case provider.CheckoutCompleted:
		return uc.checkoutCompleted(ctx, event, p, log)
	case provider.InvoiceSucceeded:
		return uc.invoiceSucceeded(ctx, event, p, log)
	case provider.InvoiceFailed:
		return uc.invoiceFailed(ctx, event, p, log)
	case provider.SubscriptionUpdated:
		return uc.subscriptionUpdated(ctx, event, p, log)
	case provider.SubscriptionDeleted:
		return uc.subscriptionDeleted(ctx, event, p, log)
	case provider.Unhandled:
		log.Infow("acknowledging unhandled event type")
		return OutcomeUnhandled, nil
	default:
		return "", fmt.Errorf("no handler for payload %T", decoded)
	}
}

// applyResult is what a handler decided inside the transaction.
type applyResult struct {
	outcome billingevent.Outcome
	detail  string
	emails  int
}

func applied() applyResult {
	return applyResult{outcome: billingevent.OutcomeApplied}
}

func ignored(detail string) applyResult {
	return applyResult{outcome: billingevent.OutcomeIgnored, detail: detail}
}

func reconcile(detail string) applyResult {
	return applyResult{outcome: billingevent.OutcomeNeedsReconciliation, detail: detail}
}

// commit claims the event and runs apply in one transaction. Outbox jobs are
// only signalled once the transaction has committed.
func (uc *ProcessWebhookUseCase) commit(ctx context.Context, event *provider.Event, log logger.Interface, apply func(ctx context.Context, res *applyResult) error) (Outcome, error) {
	var (
		res       applyResult
		duplicate bool
	)

	err := uc.txMgr.RunInTransaction(ctx, func(txCtx context.Context) error {
		res = applied()
		claimed, err := uc.ledger.TryClaim(txCtx, event.ID, event.Type)
		if err != nil {
			return err
		}
		if !claimed {
			duplicate = true
			return nil
		}

		if err := apply(txCtx, &res); err != nil {
			return err
		}

		if res.outcome != billingevent.OutcomeApplied || res.detail != "" {
			return uc.ledger.MarkOutcome(txCtx, event.ID, res.outcome, res.detail)
		}
		return nil
	})
	if err != nil {
		if db.IsDuplicateKeyError(err) {
			log.Infow("event claimed concurrently", "error", err)
			return OutcomeDuplicate, nil
		}
		return "", err
	}
	if duplicate {
		log.Debugw("event claimed by another delivery")
		return OutcomeDuplicate, nil
	}

	if res.emails > 0 {
		uc.notifier.Notify(ctx, job.QueueEmail)
	}

	switch res.outcome {
	case billingevent.OutcomeIgnored:
		log.Warnw("event ignored", "detail", res.detail)
		return OutcomeIgnored, nil
	case billingevent.OutcomeNeedsReconciliation:
		log.Errorw("event needs reconciliation", "detail", res.detail)
		return OutcomeReconcile, nil
	default:
		return OutcomeApplied, nil
	}
}

func (uc *ProcessWebhookUseCase) queueEmail(ctx context.Context, res *applyResult, cmd notificationusecases.QueueNotificationCommand) error {
	if _, err := uc.outbox.Execute(ctx, cmd); err != nil {
		return err
	}
	res.emails++
	return nil
}
