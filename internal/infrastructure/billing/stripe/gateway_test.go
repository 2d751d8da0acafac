package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripeapi "github.com/stripe/stripe-go/v78"

	"github.com/orris-inc/subflow/internal/application/billing/provider"
	"github.com/orris-inc/subflow/internal/shared/config"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

const testSecret = "whsec_test_secret"

func sign(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", at.Unix(), payload)))
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func newTestGateway(opts ...Option) *Gateway {
	return NewGateway(config.BillingConfig{
		WebhookSecret:    testSecret,
		WebhookTolerance: 5 * time.Minute,
		APIKey:           "sk_test_123",
		ProviderTimeout:  2 * time.Second,
	}, logger.NewNopLogger(), opts...)
}

const checkoutEvent = `{
  "id": "evt_checkout_1",
  "object": "event",
  "type": "checkout.session.completed",
  "created": 1767225600,
  "data": {
    "object": {
      "id": "cs_test_1",
      "object": "checkout.session",
      "client_reference_id": "42",
      "customer": "cus_1",
      "subscription": "sub_1",
      "mode": "subscription"
    }
  }
}`

func TestGateway_Verify(t *testing.T) {
	g := newTestGateway()
	payload := []byte(checkoutEvent)

	t.Run("valid signature", func(t *testing.T) {
		event, err := g.Verify(payload, sign(payload, testSecret, time.Now()))
		require.NoError(t, err)
		assert.Equal(t, "evt_checkout_1", event.ID)
		assert.Equal(t, EventCheckoutSessionCompleted, event.Type)
		assert.NotEmpty(t, event.Raw)
	})

	cases := []struct {
		name    string
		payload []byte
		header  string
	}{
		{"missing header", payload, ""},
		{"garbage header", payload, "not-a-signature"},
		{"wrong secret", payload, sign(payload, "whsec_other", time.Now())},
		{"tampered body", []byte(checkoutEvent + " "), sign(payload, testSecret, time.Now())},
		{"too old", payload, sign(payload, testSecret, time.Now().Add(-time.Hour))},
		{"not json", []byte("{"), sign([]byte("{"), testSecret, time.Now())},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, err := g.Verify(tc.payload, tc.header)
				var sigErr *provider.SignatureError
				assert.True(t, errors.As(err, &sigErr), "got %v", err)
			})
		})
	}

	t.Run("unconfigured secret", func(t *testing.T) {
		bare := NewGateway(config.BillingConfig{}, logger.NewNopLogger())
		_, err := bare.Verify(payload, sign(payload, testSecret, time.Now()))
		var sigErr *provider.SignatureError
		assert.ErrorAs(t, err, &sigErr)
	})
}

func TestGateway_FetchSubscription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/subscriptions/sub_1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "sub_1",
			"object": "subscription",
			"customer": "cus_1",
			"status": "trialing",
			"current_period_start": 1767225600,
			"current_period_end": 1769904000,
			"trial_start": 1767225600,
			"trial_end": 1768435200,
			"cancel_at_period_end": false,
			"metadata": {"user_id": "42"},
			"items": {"object": "list", "data": [{"id": "si_1", "price": {"id": "price_pro"}}]},
			"default_payment_method": {"id": "pm_1", "card": {"brand": "visa", "last4": "4242", "exp_month": 12, "exp_year": 2030}}
		}`))
	}))
	defer srv.Close()

	backend := stripeapi.GetBackendWithConfig(stripeapi.APIBackend, &stripeapi.BackendConfig{
		URL:               stripeapi.String(srv.URL),
		MaxNetworkRetries: stripeapi.Int64(0),
		LeveledLogger:     &stripeapi.LeveledLogger{Level: stripeapi.LevelNull},
	})
	g := newTestGateway(WithBackend(backend))

	snap, err := g.FetchSubscription(context.Background(), "sub_1")
	require.NoError(t, err)
	assert.Equal(t, "trialing", snap.Status)
	assert.Equal(t, "price_pro", snap.PriceID)
	assert.Equal(t, "42", snap.UserRef)
	assert.Equal(t, time.Unix(1769904000, 0).UTC(), snap.CurrentPeriodEnd)
	require.NotNil(t, snap.TrialEnd)
	require.NotNil(t, snap.Card)
	assert.Equal(t, "4242", snap.Card.Last4)

	_, err = g.FetchSubscription(context.Background(), "")
	assert.Error(t, err)
}
