// Package provider is the billing provider port: verified webhook events
// decoded into a closed set of variants, plus the subscription lookup the
// checkout handler needs.
package provider

import (
	"context"
	"errors"
	"time"
)

// ErrMalformedPayload marks an authentic event whose body cannot be decoded.
// Redelivering it will not help.
var ErrMalformedPayload = errors.New("malformed provider payload")

// SignatureError is returned when a webhook fails authentication.
type SignatureError struct {
	Reason string
}

func (e *SignatureError) Error() string {
	return "invalid webhook signature: " + e.Reason
}

// EventSource authenticates raw webhook deliveries and decodes them.
type EventSource interface {
	// Verify checks the signature header against payload and returns the
	// event envelope. It never panics; any failure is a *SignatureError.
	Verify(payload []byte, signatureHeader string) (*Event, error)
	// Decode maps the envelope to one of the Payload variants. Unknown event
	// types decode to Unhandled.
	Decode(event *Event) (Payload, error)
}

// SubscriptionFetcher reads the provider's current view of a subscription.
type SubscriptionFetcher interface {
	FetchSubscription(ctx context.Context, providerSubscriptionID string) (*SubscriptionSnapshot, error)
}

// Event is a verified delivery. Raw holds the provider object for Decode.
type Event struct {
	ID      string
	Type    string
	Created time.Time
	Raw     []byte
	// Previous carries the changed attributes of update events.
	Previous map[string]interface{}
}

// Payload is implemented by the closed set of decoded event variants.
type Payload interface {
	payload()
}

type CheckoutCompleted struct {
	SessionID      string
	CustomerID     string
	SubscriptionID string
	// UserRef is the client reference attached when the session was created.
	UserRef string
}

type InvoiceSucceeded struct {
	InvoiceID       string
	SubscriptionID  string
	CustomerID      string
	PaymentIntentID string
	AmountPaid      int64
	Currency        string
	BillingReason   string
	PriceID         string
	PeriodStart     time.Time
	PeriodEnd       time.Time
	// ProrationCredit is the positive sum of credited proration lines.
	ProrationCredit int64
	ReceiptURL      string
	InvoiceURL      string
	PaidAt          time.Time
}

type InvoiceFailed struct {
	InvoiceID          string
	SubscriptionID     string
	CustomerID         string
	PaymentIntentID    string
	AmountDue          int64
	Currency           string
	AttemptCount       int64
	FailureCode        string
	FailureMessage     string
	NextPaymentAttempt *time.Time
	InvoiceURL         string
}

type SubscriptionUpdated struct {
	Subscription   SubscriptionSnapshot
	PreviousStatus string
}

type SubscriptionDeleted struct {
	Subscription SubscriptionSnapshot
}

// Unhandled is any event type the router acknowledges without acting on it.
type Unhandled struct {
	Type string
}

func (CheckoutCompleted) payload()   {}
func (InvoiceSucceeded) payload()    {}
func (InvoiceFailed) payload()       {}
func (SubscriptionUpdated) payload() {}
func (SubscriptionDeleted) payload() {}
func (Unhandled) payload()           {}

// Card is the display snapshot of the default payment method.
type Card struct {
	Brand    string
	Last4    string
	ExpMonth int
	ExpYear  int
}

// SubscriptionSnapshot is the provider's view of a subscription. Period
// bounds are authoritative and copied verbatim into local state.
type SubscriptionSnapshot struct {
	ID                 string
	CustomerID         string
	Status             string
	PriceID            string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	TrialStart         *time.Time
	TrialEnd           *time.Time
	CancelAtPeriodEnd  bool
	CanceledAt         *time.Time
	CancellationReason string
	UserRef            string
	Card               *Card
}
