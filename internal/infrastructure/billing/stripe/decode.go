package stripe

import (
	"encoding/json"
	"fmt"
	"time"

	stripeapi "github.com/stripe/stripe-go/v78"

	"github.com/orris-inc/subflow/internal/application/billing/provider"
	"github.com/orris-inc/subflow/internal/shared/biztime"
)

// Event types the router acts on.
const (
	EventCheckoutSessionCompleted    = "checkout.session.completed"
	EventInvoicePaid                 = "invoice.paid"
	EventInvoicePaymentSucceeded     = "invoice.payment_succeeded"
	EventInvoicePaymentFailed        = "invoice.payment_failed"
	EventCustomerSubscriptionCreated = "customer.subscription.created"
	EventCustomerSubscriptionUpdated = "customer.subscription.updated"
	EventCustomerSubscriptionDeleted = "customer.subscription.deleted"
)

// userRefMetadataKey is the metadata key carrying the local user id when the
// session has no client reference.
const userRefMetadataKey = "user_id"

func (g *Gateway) Decode(event *provider.Event) (provider.Payload, error) {
	return Decode(event)
}

// Decode maps a verified event to its variant.
func Decode(event *provider.Event) (provider.Payload, error) {
	switch event.Type {
	case EventCheckoutSessionCompleted:
		var session stripeapi.CheckoutSession
		if err := unmarshal(event, &session); err != nil {
			return nil, err
		}
		return checkoutCompleted(&session), nil

	case EventInvoicePaid, EventInvoicePaymentSucceeded:
		var inv stripeapi.Invoice
		if err := unmarshal(event, &inv); err != nil {
			return nil, err
		}
		return invoiceSucceeded(&inv, event.Created), nil

	case EventInvoicePaymentFailed:
		var inv stripeapi.Invoice
		if err := unmarshal(event, &inv); err != nil {
			return nil, err
		}
		return invoiceFailed(&inv), nil

	case EventCustomerSubscriptionCreated, EventCustomerSubscriptionUpdated:
		var sub stripeapi.Subscription
		if err := unmarshal(event, &sub); err != nil {
			return nil, err
		}
		updated := provider.SubscriptionUpdated{Subscription: snapshotOf(&sub)}
		if prev, ok := event.Previous["status"].(string); ok {
			updated.PreviousStatus = prev
		}
		return updated, nil

	case EventCustomerSubscriptionDeleted:
		var sub stripeapi.Subscription
		if err := unmarshal(event, &sub); err != nil {
			return nil, err
		}
		return provider.SubscriptionDeleted{Subscription: snapshotOf(&sub)}, nil

	default:
		return provider.Unhandled{Type: event.Type}, nil
	}
}

func unmarshal(event *provider.Event, v interface{}) error {
	if len(event.Raw) == 0 {
		return fmt.Errorf("%w: %s event %s has no data object", provider.ErrMalformedPayload, event.Type, event.ID)
	}
	if err := json.Unmarshal(event.Raw, v); err != nil {
		return fmt.Errorf("%w: %s event %s: %v", provider.ErrMalformedPayload, event.Type, event.ID, err)
	}
	return nil
}

func checkoutCompleted(s *stripeapi.CheckoutSession) provider.CheckoutCompleted {
	out := provider.CheckoutCompleted{
		SessionID: s.ID,
		UserRef:   s.ClientReferenceID,
	}
	if out.UserRef == "" && s.Metadata != nil {
		out.UserRef = s.Metadata[userRefMetadataKey]
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
	}
	return out
}

func invoiceSucceeded(inv *stripeapi.Invoice, created time.Time) provider.InvoiceSucceeded {
	out := provider.InvoiceSucceeded{
		InvoiceID:      inv.ID,
		SubscriptionID: subscriptionID(inv),
		CustomerID:     customerID(inv),
		AmountPaid:     inv.AmountPaid,
		Currency:       string(inv.Currency),
		BillingReason:  string(inv.BillingReason),
		InvoiceURL:     inv.HostedInvoiceURL,
		PaidAt:         created,
	}
	if inv.PaymentIntent != nil {
		out.PaymentIntentID = inv.PaymentIntent.ID
	}
	if inv.Charge != nil {
		out.ReceiptURL = inv.Charge.ReceiptURL
	}
	if inv.StatusTransitions != nil && inv.StatusTransitions.PaidAt > 0 {
		out.PaidAt = biztime.FromUnix(inv.StatusTransitions.PaidAt)
	}

	if inv.Lines != nil {
		for _, line := range inv.Lines.Data {
			if line == nil {
				continue
			}
			if line.Proration && line.Amount < 0 {
				out.ProrationCredit += -line.Amount
				continue
			}
			// the subscription line carries the period being paid for
			if line.Period != nil && time.Unix(line.Period.End, 0).After(out.PeriodEnd) {
				out.PeriodStart = biztime.FromUnix(line.Period.Start)
				out.PeriodEnd = biztime.FromUnix(line.Period.End)
				if line.Price != nil {
					out.PriceID = line.Price.ID
				}
			}
		}
	}
	return out
}

func invoiceFailed(inv *stripeapi.Invoice) provider.InvoiceFailed {
	out := provider.InvoiceFailed{
		InvoiceID:      inv.ID,
		SubscriptionID: subscriptionID(inv),
		CustomerID:     customerID(inv),
		AmountDue:      inv.AmountDue,
		Currency:       string(inv.Currency),
		AttemptCount:   inv.AttemptCount,
		InvoiceURL:     inv.HostedInvoiceURL,
	}
	if inv.PaymentIntent != nil {
		out.PaymentIntentID = inv.PaymentIntent.ID
		if perr := inv.PaymentIntent.LastPaymentError; perr != nil {
			out.FailureCode = string(perr.Code)
			out.FailureMessage = perr.Msg
		}
	}
	if out.FailureCode == "" && inv.LastFinalizationError != nil {
		out.FailureCode = string(inv.LastFinalizationError.Code)
		out.FailureMessage = inv.LastFinalizationError.Msg
	}
	if inv.NextPaymentAttempt > 0 {
		out.NextPaymentAttempt = biztime.FromUnixPtr(inv.NextPaymentAttempt)
	}
	return out
}

func subscriptionID(inv *stripeapi.Invoice) string {
	if inv.Subscription != nil {
		return inv.Subscription.ID
	}
	return ""
}

func customerID(inv *stripeapi.Invoice) string {
	if inv.Customer != nil {
		return inv.Customer.ID
	}
	return ""
}

func snapshotOf(sub *stripeapi.Subscription) provider.SubscriptionSnapshot {
	out := provider.SubscriptionSnapshot{
		ID:                 sub.ID,
		Status:             string(sub.Status),
		CurrentPeriodStart: biztime.FromUnix(sub.CurrentPeriodStart),
		CurrentPeriodEnd:   biztime.FromUnix(sub.CurrentPeriodEnd),
		TrialStart:         biztime.FromUnixPtr(sub.TrialStart),
		TrialEnd:           biztime.FromUnixPtr(sub.TrialEnd),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CanceledAt:         biztime.FromUnixPtr(sub.CanceledAt),
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Metadata != nil {
		out.UserRef = sub.Metadata[userRefMetadataKey]
	}
	if sub.CancellationDetails != nil {
		out.CancellationReason = string(sub.CancellationDetails.Reason)
		if sub.CancellationDetails.Comment != "" {
			out.CancellationReason = sub.CancellationDetails.Comment
		}
	}
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item != nil && item.Price != nil {
				out.PriceID = item.Price.ID
				break
			}
		}
	}
	if pm := sub.DefaultPaymentMethod; pm != nil && pm.Card != nil {
		out.Card = &provider.Card{
			Brand:    string(pm.Card.Brand),
			Last4:    pm.Card.Last4,
			ExpMonth: int(pm.Card.ExpMonth),
			ExpYear:  int(pm.Card.ExpYear),
		}
	}
	return out
}
