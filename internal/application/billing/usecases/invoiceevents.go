package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/orris-inc/subflow/internal/application/billing/provider"
	notificationusecases "github.com/orris-inc/subflow/internal/application/notification/usecases"
	"github.com/orris-inc/subflow/internal/domain/billingevent"
	"github.com/orris-inc/subflow/internal/domain/notification"
	vo "github.com/orris-inc/subflow/internal/domain/notification/valueobjects"
	"github.com/orris-inc/subflow/internal/domain/payment"
	"github.com/orris-inc/subflow/internal/domain/plan"
	"github.com/orris-inc/subflow/internal/domain/subscription"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

const noLocalSubscription = "no local subscription"

// invoiceSucceeded records the payment and moves the subscription back to
// active with the period the provider billed.
func (uc *ProcessWebhookUseCase) invoiceSucceeded(ctx context.Context, event *provider.Event, p provider.InvoiceSucceeded, log logger.Interface) (Outcome, error) {
	log = log.With("provider_subscription_id", p.SubscriptionID, "invoice_id", p.InvoiceID)

	return uc.commit(ctx, event, log, func(ctx context.Context, res *applyResult) error {
		if p.SubscriptionID == "" {
			*res = ignored("invoice is not tied to a subscription")
			return nil
		}
		sub, err := uc.subscriptionRepo.GetByProviderSubscriptionID(ctx, p.SubscriptionID)
		if err != nil {
			return err
		}
		if sub == nil {
			*res = ignored(noLocalSubscription)
			return nil
		}

		now := uc.now()
		if _, err := sub.Apply(subscription.FactInvoicePaid{}, now); err != nil {
			*res = reconcile(err.Error())
			return nil
		}

		if !sub.Status().IsTerminal() {
			if err := sub.SyncPeriod(p.PeriodStart, p.PeriodEnd); err != nil {
				*res = reconcile(err.Error())
				return nil
			}
			if p.ProrationCredit > 0 {
				credit := p.ProrationCredit
				sub.SetProrationCredit(&credit)
			}
			if p.PriceID != "" {
				if detail, err := uc.syncPlan(ctx, sub, p.PriceID); err != nil {
					return err
				} else if detail != "" {
					*res = reconcile(detail)
				}
			}
		}

		saved, err := uc.saveSubscription(ctx, res, sub)
		if err != nil {
			return err
		}

		// the money moved even when the status could not follow
		key := firstNonEmpty(p.PaymentIntentID, p.InvoiceID)
		recorded, err := uc.recordPayment(ctx, res, key, func() (*payment.Payment, error) {
			return payment.NewSucceededPayment(payment.Charge{
				UserID:            sub.UserID(),
				SubscriptionID:    sub.ID(),
				ProviderPaymentID: key,
				ProviderInvoiceID: p.InvoiceID,
				Amount:            p.AmountPaid,
				Currency:          p.Currency,
				ReceiptURL:        p.ReceiptURL,
				InvoiceURL:        p.InvoiceURL,
			}, paidAt(p, now))
		})
		if err != nil {
			return err
		}
		if !recorded && res.outcome == billingevent.OutcomeApplied {
			res.detail = "payment already recorded"
		}
		if !saved {
			return nil
		}

		log.Infow("invoice payment applied",
			"subscription_id", sub.ID(),
			"status", sub.Status(),
			"period_end", sub.CurrentPeriodEnd(),
		)
		return nil
	})
}

// invoiceFailed records the failed attempt and, for a subscription in good
// standing, moves it to past_due and emails the user. Later failures and
// failures on ended subscriptions leave the status alone.
func (uc *ProcessWebhookUseCase) invoiceFailed(ctx context.Context, event *provider.Event, p provider.InvoiceFailed, log logger.Interface) (Outcome, error) {
	log = log.With("provider_subscription_id", p.SubscriptionID, "invoice_id", p.InvoiceID)

	return uc.commit(ctx, event, log, func(ctx context.Context, res *applyResult) error {
		if p.SubscriptionID == "" {
			*res = ignored("invoice is not tied to a subscription")
			return nil
		}
		sub, err := uc.subscriptionRepo.GetByProviderSubscriptionID(ctx, p.SubscriptionID)
		if err != nil {
			return err
		}
		if sub == nil {
			*res = ignored(noLocalSubscription)
			return nil
		}

		decision, err := sub.Apply(subscription.FactInvoiceFailed{}, uc.now())
		if err != nil {
			*res = reconcile(err.Error())
			return nil
		}
		if decision.Changed {
			if err := uc.subscriptionRepo.Update(ctx, sub); err != nil {
				return err
			}
		}

		// every retry of the same intent is its own attempt
		key := fmt.Sprintf("%s#attempt-%d", firstNonEmpty(p.PaymentIntentID, p.InvoiceID), p.AttemptCount)
		if _, err := uc.recordPayment(ctx, res, key, func() (*payment.Payment, error) {
			return payment.NewFailedPayment(payment.Charge{
				UserID:            sub.UserID(),
				SubscriptionID:    sub.ID(),
				ProviderPaymentID: key,
				ProviderInvoiceID: p.InvoiceID,
				Amount:            p.AmountDue,
				Currency:          p.Currency,
				InvoiceURL:        p.InvoiceURL,
			}, p.FailureCode, p.FailureMessage)
		}); err != nil {
			return err
		}

		if decision.HasEffect(subscription.EffectPaymentFailed) {
			if err := uc.queueEmail(ctx, res, notificationusecases.QueueNotificationCommand{
				UserID:  sub.UserID(),
				Kind:    vo.KindPaymentFailed,
				Related: &notification.RelatedEntity{Type: notification.RelatedSubscription, ID: sub.ID()},
				Context: paymentFailedContext(p),
				InApp:   true,
			}); err != nil {
				return err
			}
		}

		log.Infow("invoice failure applied",
			"subscription_id", sub.ID(),
			"status", sub.Status(),
			"attempt", p.AttemptCount,
		)
		return nil
	})
}

// recordPayment stores the payment built by build unless one with key exists.
// It reports whether a new row was written. A charge the domain rejects marks
// the event for reconciliation.
func (uc *ProcessWebhookUseCase) recordPayment(ctx context.Context, res *applyResult, key string, build func() (*payment.Payment, error)) (bool, error) {
	existing, err := uc.paymentRepo.GetByProviderPaymentID(ctx, key)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	p, err := build()
	if err != nil {
		*res = reconcile(fmt.Sprintf("cannot record payment %s: %v", key, err))
		return false, nil
	}
	if err := uc.paymentRepo.Create(ctx, p); err != nil {
		if errors.Is(err, payment.ErrDuplicatePayment) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// syncPlan follows a price change made on the provider side. It returns a
// reconciliation detail when the price is not in the catalog.
func (uc *ProcessWebhookUseCase) syncPlan(ctx context.Context, sub *subscription.Subscription, priceID string) (string, error) {
	pl, err := uc.plans.GetByProviderPriceID(ctx, priceID)
	if errors.Is(err, plan.ErrPlanNotFound) {
		return fmt.Sprintf("unknown price %q", priceID), nil
	}
	if err != nil {
		return "", err
	}
	if pl.ID() == sub.PlanID() {
		return "", nil
	}
	uc.logger.Infow("subscription plan changed by provider",
		"subscription_id", sub.ID(),
		"from_plan_id", sub.PlanID(),
		"to_plan_id", pl.ID(),
	)
	return "", sub.ChangePlan(pl.ID())
}

func paidAt(p provider.InvoiceSucceeded, now time.Time) time.Time {
	if p.PaidAt.IsZero() {
		return now
	}
	return p.PaidAt
}
