// Package stripe adapts the Stripe API and webhooks to the billing provider port.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"time"

	stripeapi "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/subscription"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/orris-inc/subflow/internal/application/billing/provider"
	"github.com/orris-inc/subflow/internal/shared/biztime"
	"github.com/orris-inc/subflow/internal/shared/config"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

const (
	defaultTolerance       = 300 * time.Second
	defaultProviderTimeout = 5 * time.Second
)

// Gateway verifies webhooks with the endpoint secret and reads subscriptions
// through the API client.
type Gateway struct {
	secret    string
	tolerance time.Duration
	timeout   time.Duration
	subs      *subscription.Client
	logger    logger.Interface
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithBackend replaces the API backend, used to point the client at a test server.
func WithBackend(b stripeapi.Backend) Option {
	return func(g *Gateway) {
		g.subs.B = b
	}
}

func NewGateway(cfg config.BillingConfig, log logger.Interface, opts ...Option) *Gateway {
	tolerance := cfg.WebhookTolerance
	if tolerance <= 0 {
		tolerance = defaultTolerance
	}
	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}

	g := &Gateway{
		secret:    cfg.WebhookSecret,
		tolerance: tolerance,
		timeout:   timeout,
		subs: &subscription.Client{
			B:   stripeapi.GetBackend(stripeapi.APIBackend),
			Key: cfg.APIKey,
		},
		logger: log,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var (
	_ provider.EventSource         = (*Gateway)(nil)
	_ provider.SubscriptionFetcher = (*Gateway)(nil)
)

// Verify authenticates the delivery. The provider's API version is not
// enforced because decoding only reads fields stable across versions.
func (g *Gateway) Verify(payload []byte, signatureHeader string) (*provider.Event, error) {
	if g.secret == "" {
		return nil, &provider.SignatureError{Reason: "webhook secret not configured"}
	}
	if signatureHeader == "" {
		return nil, &provider.SignatureError{Reason: "missing signature header"}
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.secret, webhook.ConstructEventOptions{
		Tolerance:                g.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, &provider.SignatureError{Reason: signatureReason(err)}
	}
	if event.ID == "" || event.Type == "" {
		return nil, &provider.SignatureError{Reason: "event id or type missing"}
	}

	out := &provider.Event{
		ID:      event.ID,
		Type:    string(event.Type),
		Created: biztime.FromUnix(event.Created),
	}
	if event.Data != nil {
		out.Raw = event.Data.Raw
		out.Previous = event.Data.PreviousAttributes
	}
	return out, nil
}

func signatureReason(err error) string {
	switch {
	case errors.Is(err, webhook.ErrNotSigned):
		return "no signature in header"
	case errors.Is(err, webhook.ErrInvalidHeader):
		return "malformed signature header"
	case errors.Is(err, webhook.ErrTooOld):
		return "timestamp outside tolerance"
	case errors.Is(err, webhook.ErrNoValidSignature):
		return "signature mismatch"
	default:
		return err.Error()
	}
}

// FetchSubscription loads the subscription with its default payment method
// under the configured provider timeout.
func (g *Gateway) FetchSubscription(ctx context.Context, providerSubscriptionID string) (*provider.SubscriptionSnapshot, error) {
	if providerSubscriptionID == "" {
		return nil, fmt.Errorf("provider subscription ID is required")
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripeapi.SubscriptionParams{}
	params.Context = ctx
	params.AddExpand("default_payment_method")

	sub, err := g.subs.Get(providerSubscriptionID, params)
	if err != nil {
		g.logger.Warnw("failed to fetch subscription from provider",
			"provider_subscription_id", providerSubscriptionID,
			"error", err,
		)
		return nil, fmt.Errorf("failed to fetch subscription %s: %w", providerSubscriptionID, err)
	}

	snapshot := snapshotOf(sub)
	return &snapshot, nil
}
