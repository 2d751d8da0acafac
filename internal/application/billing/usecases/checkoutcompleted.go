package usecases

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/orris-inc/subflow/internal/application/billing/provider"
	notificationusecases "github.com/orris-inc/subflow/internal/application/notification/usecases"
	"github.com/orris-inc/subflow/internal/domain/notification"
	vo "github.com/orris-inc/subflow/internal/domain/notification/valueobjects"
	"github.com/orris-inc/subflow/internal/domain/plan"
	"github.com/orris-inc/subflow/internal/domain/subscription"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

// checkoutCompleted creates the local subscription. The provider's view of
// the subscription is fetched before the transaction opens.
func (uc *ProcessWebhookUseCase) checkoutCompleted(ctx context.Context, event *provider.Event, p provider.CheckoutCompleted, log logger.Interface) (Outcome, error) {
	log = log.With("provider_subscription_id", p.SubscriptionID)

	if p.SubscriptionID == "" {
		return uc.commit(ctx, event, log, func(_ context.Context, res *applyResult) error {
			*res = ignored(fmt.Sprintf("checkout %s created no subscription", p.SessionID))
			return nil
		})
	}

	snapshot, err := uc.fetcher.FetchSubscription(ctx, p.SubscriptionID)
	if err != nil {
		return "", err
	}

	ref := p.UserRef
	if ref == "" {
		ref = snapshot.UserRef
	}

	return uc.commit(ctx, event, log, func(ctx context.Context, res *applyResult) error {
		userID, err := strconv.ParseUint(ref, 10, 64)
		if err != nil || userID == 0 {
			*res = reconcile(fmt.Sprintf("checkout %s carries no usable user reference %q", p.SessionID, ref))
			return nil
		}
		exists, err := uc.users.Exists(ctx, uint(userID))
		if err != nil {
			return err
		}
		if !exists {
			*res = reconcile(fmt.Sprintf("checkout %s references unknown user %d", p.SessionID, userID))
			return nil
		}

		pl, err := uc.plans.GetByProviderPriceID(ctx, snapshot.PriceID)
		if errors.Is(err, plan.ErrPlanNotFound) {
			*res = reconcile(fmt.Sprintf("unknown price %q", snapshot.PriceID))
			return nil
		}
		if err != nil {
			return err
		}

		existing, err := uc.subscriptionRepo.GetByProviderSubscriptionID(ctx, snapshot.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			if _, err := existing.Apply(subscription.FactCheckoutCompleted{ProviderStatus: snapshot.Status}, uc.now()); err != nil {
				return err
			}
			res.detail = "subscription already recorded"
			return nil
		}

		decision, err := subscription.Decide(subscription.State{}, subscription.FactCheckoutCompleted{ProviderStatus: snapshot.Status})
		if err != nil {
			*res = reconcile(fmt.Sprintf("cannot start subscription in provider status %q: %v", snapshot.Status, err))
			return nil
		}

		sub, err := subscription.NewSubscription(subscription.NewSubscriptionParams{
			UserID:                 uint(userID),
			PlanID:                 pl.ID(),
			ProviderSubscriptionID: snapshot.ID,
			ProviderCustomerID:     firstNonEmpty(snapshot.CustomerID, p.CustomerID),
			Status:                 decision.Next,
			CurrentPeriodStart:     snapshot.CurrentPeriodStart,
			CurrentPeriodEnd:       snapshot.CurrentPeriodEnd,
			TrialStart:             snapshot.TrialStart,
			TrialEnd:               snapshot.TrialEnd,
			CancelAtPeriodEnd:      snapshot.CancelAtPeriodEnd,
		})
		if err != nil {
			*res = reconcile(err.Error())
			return nil
		}
		sub.UpdatePaymentMethod(paymentMethodOf(snapshot.Card))

		if err := uc.subscriptionRepo.Create(ctx, sub); err != nil {
			if errors.Is(err, subscription.ErrLiveSubscriptionExists) {
				*res = reconcile(fmt.Sprintf("user %d already holds a live subscription", userID))
				return nil
			}
			return err
		}

		if decision.HasEffect(subscription.EffectConfirmation) {
			if err := uc.queueEmail(ctx, res, notificationusecases.QueueNotificationCommand{
				UserID:  sub.UserID(),
				Kind:    vo.KindSubscriptionConfirmation,
				Related: &notification.RelatedEntity{Type: notification.RelatedSubscription, ID: sub.ID()},
				Context: confirmationContext(sub, pl),
			}); err != nil {
				return err
			}
		}

		log.Infow("subscription created from checkout",
			"subscription_id", sub.ID(),
			"user_id", sub.UserID(),
			"plan_id", pl.ID(),
			"status", sub.Status(),
		)
		return nil
	})
}

func paymentMethodOf(card *provider.Card) *subscription.PaymentMethod {
	if card == nil {
		return nil
	}
	return &subscription.PaymentMethod{
		Brand:    card.Brand,
		Last4:    card.Last4,
		ExpMonth: card.ExpMonth,
		ExpYear:  card.ExpYear,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
