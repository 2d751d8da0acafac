package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/orris-inc/subflow/internal/application/billing/provider"
	"github.com/orris-inc/subflow/internal/domain/subscription"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

// subscriptionUpdated mirrors the provider's subscription: status through the
// state machine, everything else copied verbatim.
func (uc *ProcessWebhookUseCase) subscriptionUpdated(ctx context.Context, event *provider.Event, p provider.SubscriptionUpdated, log logger.Interface) (Outcome, error) {
	snap := p.Subscription
	log = log.With("provider_subscription_id", snap.ID)

	return uc.commit(ctx, event, log, func(ctx context.Context, res *applyResult) error {
		sub, err := uc.subscriptionRepo.GetByProviderSubscriptionID(ctx, snap.ID)
		if err != nil {
			return err
		}
		if sub == nil {
			*res = ignored(noLocalSubscription)
			return nil
		}

		previous := sub.Status()
		if _, err := sub.Apply(subscription.FactProviderUpdated{
			Status:            snap.Status,
			CancelAtPeriodEnd: snap.CancelAtPeriodEnd,
		}, uc.now()); err != nil {
			*res = reconcile(err.Error())
			return nil
		}

		if err := sub.SyncPeriod(snap.CurrentPeriodStart, snap.CurrentPeriodEnd); err != nil {
			*res = reconcile(err.Error())
			return nil
		}
		sub.SyncTrial(snap.TrialStart, snap.TrialEnd)
		sub.SetCancelAtPeriodEnd(snap.CancelAtPeriodEnd, optional(snap.CancellationReason))
		sub.SetCanceledAt(snap.CanceledAt)
		sub.UpdatePaymentMethod(paymentMethodOf(snap.Card))

		if snap.PriceID != "" {
			detail, err := uc.syncPlan(ctx, sub, snap.PriceID)
			if err != nil {
				return err
			}
			if detail != "" {
				*res = reconcile(detail)
			}
		}

		saved, err := uc.saveSubscription(ctx, res, sub)
		if err != nil || !saved {
			return err
		}

		log.Infow("subscription synced from provider",
			"subscription_id", sub.ID(),
			"from_status", previous,
			"to_status", sub.Status(),
			"provider_status", snap.Status,
			"provider_previous_status", p.PreviousStatus,
			"cancel_at_period_end", snap.CancelAtPeriodEnd,
		)
		return nil
	})
}

// subscriptionDeleted ends the subscription immediately. No email is sent;
// the provider already told the user.
func (uc *ProcessWebhookUseCase) subscriptionDeleted(ctx context.Context, event *provider.Event, p provider.SubscriptionDeleted, log logger.Interface) (Outcome, error) {
	snap := p.Subscription
	log = log.With("provider_subscription_id", snap.ID)

	return uc.commit(ctx, event, log, func(ctx context.Context, res *applyResult) error {
		sub, err := uc.subscriptionRepo.GetByProviderSubscriptionID(ctx, snap.ID)
		if err != nil {
			return err
		}
		if sub == nil {
			*res = ignored(noLocalSubscription)
			return nil
		}

		decision, err := sub.Apply(subscription.FactProviderDeleted{}, uc.now())
		if err != nil {
			*res = reconcile(err.Error())
			return nil
		}
		if !decision.Changed {
			res.detail = "subscription already expired"
			return nil
		}

		sub.SetCanceledAt(snap.CanceledAt)
		if err := sub.SyncPeriod(snap.CurrentPeriodStart, snap.CurrentPeriodEnd); err != nil {
			log.Warnw("provider sent an invalid final period", "error", err)
		}

		if err := uc.subscriptionRepo.Update(ctx, sub); err != nil {
			return err
		}

		log.Infow("subscription ended by provider", "subscription_id", sub.ID())
		return nil
	})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// saveSubscription writes sub back unless that would give its user a second
// live subscription. The conflict is left for reconciliation and the event
// is acknowledged; the stored row keeps its previous state.
func (uc *ProcessWebhookUseCase) saveSubscription(ctx context.Context, res *applyResult, sub *subscription.Subscription) (bool, error) {
	if sub.Status().IsLive() {
		live, err := uc.subscriptionRepo.GetLiveByUserID(ctx, sub.UserID())
		if err != nil {
			return false, err
		}
		if live != nil && live.ID() != sub.ID() {
			*res = reconcile(fmt.Sprintf("subscription %s cannot become %s: user %d already holds live subscription %s",
				sub.ProviderSubscriptionID(), sub.Status(), sub.UserID(), live.ProviderSubscriptionID()))
			return false, nil
		}
	}

	if err := uc.subscriptionRepo.Update(ctx, sub); err != nil {
		if errors.Is(err, subscription.ErrLiveSubscriptionExists) {
			*res = reconcile(fmt.Sprintf("subscription %s cannot become %s: %v", sub.ProviderSubscriptionID(), sub.Status(), err))
			return false, nil
		}
		return false, err
	}
	return true, nil
}
