package subscription

import (
	"fmt"
	"time"

	vo "github.com/orris-inc/subflow/internal/domain/subscription/valueobjects"
)

// Effect is a side effect requested by a lifecycle decision. Effects are
// carried out by the caller after the state change is committed.
type Effect string

const (
	EffectConfirmation  Effect = "subscription_confirmation"
	EffectPaymentFailed Effect = "payment_failed"
	EffectCanceled      Effect = "subscription_canceled"
)

// State is the part of a subscription the state machine decides on.
// A zero State (Exists == false) stands for "no local row".
type State struct {
	Exists            bool
	Status            vo.SubscriptionStatus
	CancelAtPeriodEnd bool
	CurrentPeriodEnd  time.Time
}

// Fact is an incoming lifecycle fact. The set of facts is closed.
type Fact interface {
	factName() string
}

type FactCheckoutCompleted struct {
	ProviderStatus string
}

type FactInvoicePaid struct{}

type FactInvoiceFailed struct{}

type FactProviderUpdated struct {
	Status            string
	CancelAtPeriodEnd bool
}

type FactProviderDeleted struct{}

type FactExpirySweep struct {
	Now time.Time
}

func (FactCheckoutCompleted) factName() string { return "checkout_completed" }
func (FactInvoicePaid) factName() string       { return "invoice_paid" }
func (FactInvoiceFailed) factName() string     { return "invoice_failed" }
func (FactProviderUpdated) factName() string   { return "provider_updated" }
func (FactProviderDeleted) factName() string   { return "provider_deleted" }
func (FactExpirySweep) factName() string       { return "expiry_sweep" }

// Decision is the outcome of Decide.
type Decision struct {
	Next    vo.SubscriptionStatus
	Changed bool
	Effects []Effect
}

func (d Decision) HasEffect(e Effect) bool {
	for _, effect := range d.Effects {
		if effect == e {
			return true
		}
	}
	return false
}

func unchanged(current State) Decision {
	return Decision{Next: current.Status}
}

func moveTo(current State, next vo.SubscriptionStatus, effects ...Effect) (Decision, error) {
	if current.Status == next {
		return Decision{Next: next, Effects: effects}, nil
	}
	if !current.Status.CanTransitionTo(next) {
		return Decision{}, ErrInvalidTransition(current.Status.String(), next.String())
	}
	return Decision{Next: next, Changed: true, Effects: effects}, nil
}

// Decide maps (current state, fact) to the next status and the side effects
// to request. It never performs I/O. Facts that would move a subscription
// backwards (for example a late invoice failure on a canceled subscription)
// leave the status unchanged instead of failing.
func Decide(current State, fact Fact) (Decision, error) {
	if !current.Exists {
		checkout, ok := fact.(FactCheckoutCompleted)
		if !ok {
			return Decision{}, fmt.Errorf("%w: %s requires an existing subscription", ErrSubscriptionNotFound, fact.factName())
		}
		return decideCheckout(checkout)
	}

	switch f := fact.(type) {
	case FactCheckoutCompleted:
		// the row already exists, a redelivered or late checkout changes nothing
		return unchanged(current), nil

	case FactInvoicePaid:
		// a trial opens with a $0 invoice; only the provider's own status
		// update ends the trial
		switch current.Status {
		case vo.StatusActive, vo.StatusPastDue, vo.StatusUnpaid:
			return moveTo(current, vo.StatusActive)
		default:
			return unchanged(current), nil
		}

	case FactInvoiceFailed:
		switch current.Status {
		case vo.StatusTrialing, vo.StatusActive:
			return moveTo(current, vo.StatusPastDue, EffectPaymentFailed)
		default:
			return unchanged(current), nil
		}

	case FactProviderUpdated:
		next, ok := vo.FromProviderStatus(f.Status)
		if !ok || next == current.Status || !current.Status.CanTransitionTo(next) {
			return unchanged(current), nil
		}
		return moveTo(current, next)

	case FactProviderDeleted:
		if current.Status == vo.StatusExpired {
			return unchanged(current), nil
		}
		return moveTo(current, vo.StatusExpired)

	case FactExpirySweep:
		if !periodElapsed(current, f.Now) {
			return unchanged(current), nil
		}
		if current.Status == vo.StatusCanceled || (current.Status.IsLive() && current.CancelAtPeriodEnd) {
			return moveTo(current, vo.StatusExpired, EffectCanceled)
		}
		return unchanged(current), nil

	default:
		return Decision{}, fmt.Errorf("%w: %T", ErrUnknownFact, fact)
	}
}

func decideCheckout(f FactCheckoutCompleted) (Decision, error) {
	switch f.ProviderStatus {
	case "trialing":
		return Decision{Next: vo.StatusTrialing, Changed: true, Effects: []Effect{EffectConfirmation}}, nil
	case "active", "":
		return Decision{Next: vo.StatusActive, Changed: true, Effects: []Effect{EffectConfirmation}}, nil
	default:
		return Decision{}, ErrInvalidTransition("none", f.ProviderStatus)
	}
}

func periodElapsed(current State, now time.Time) bool {
	return !current.CurrentPeriodEnd.IsZero() && !now.Before(current.CurrentPeriodEnd)
}
