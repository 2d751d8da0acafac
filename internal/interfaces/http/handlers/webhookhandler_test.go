package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/subflow/internal/application/billing/usecases"
	"github.com/orris-inc/subflow/internal/interfaces/http/handlers/testutil"
	apperrors "github.com/orris-inc/subflow/internal/shared/errors"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

type mockWebhookProcessor struct {
	executeFn func(ctx context.Context, payload []byte, signatureHeader string) (*usecases.WebhookResult, error)
}

func (m *mockWebhookProcessor) Execute(ctx context.Context, payload []byte, signatureHeader string) (*usecases.WebhookResult, error) {
	return m.executeFn(ctx, payload, signatureHeader)
}

func TestWebhookHandler_HandleStripe(t *testing.T) {
	t.Run("acknowledges processed events", func(t *testing.T) {
		var gotHeader string
		var gotPayload []byte
		var hasDeadline bool
		h := NewWebhookHandler(&mockWebhookProcessor{
			executeFn: func(ctx context.Context, payload []byte, header string) (*usecases.WebhookResult, error) {
				gotHeader, gotPayload = header, payload
				_, hasDeadline = ctx.Deadline()
				return &usecases.WebhookResult{EventID: "evt_1", EventType: "invoice.paid", Outcome: usecases.OutcomeApplied}, nil
			},
		}, time.Second, logger.NewNopLogger())

		c, w := testutil.NewTestContext(http.MethodPost, "/webhooks/stripe", []byte(`{"id":"evt_1"}`))
		c.Request.Header.Set(StripeSignatureHeader, "t=1,v1=abc")
		h.HandleStripe(c)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "t=1,v1=abc", gotHeader)
		assert.JSONEq(t, `{"id":"evt_1"}`, string(gotPayload))
		assert.True(t, hasDeadline)

		var resp WebhookResponse
		require.NoError(t, testutil.ParseResponse(w, &resp))
		assert.Equal(t, WebhookResponse{Received: true, EventID: "evt_1", Outcome: "applied"}, resp)
	})

	t.Run("duplicates and reconciliations are acknowledged", func(t *testing.T) {
		for _, outcome := range []usecases.Outcome{usecases.OutcomeDuplicate, usecases.OutcomeIgnored, usecases.OutcomeUnhandled, usecases.OutcomeReconcile} {
			h := NewWebhookHandler(&mockWebhookProcessor{
				executeFn: func(context.Context, []byte, string) (*usecases.WebhookResult, error) {
					return &usecases.WebhookResult{EventID: "evt_2", Outcome: outcome}, nil
				},
			}, 0, logger.NewNopLogger())

			c, w := testutil.NewTestContext(http.MethodPost, "/webhooks/stripe", []byte(`{}`))
			h.HandleStripe(c)
			assert.Equal(t, http.StatusOK, w.Code, string(outcome))
		}
	})

	t.Run("signature failure answers 400", func(t *testing.T) {
		h := NewWebhookHandler(&mockWebhookProcessor{
			executeFn: func(context.Context, []byte, string) (*usecases.WebhookResult, error) {
				return nil, apperrors.NewValidationError("invalid webhook signature", "no signatures found")
			},
		}, 0, logger.NewNopLogger())

		c, w := testutil.NewTestContext(http.MethodPost, "/webhooks/stripe", []byte(`{}`))
		h.HandleStripe(c)

		require.Equal(t, http.StatusBadRequest, w.Code)
		var resp testutil.APIResponse
		require.NoError(t, testutil.ParseResponse(w, &resp))
		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, string(apperrors.ErrorTypeValidation), resp.Error.Type)
	})

	t.Run("processing failure answers 500 without details", func(t *testing.T) {
		h := NewWebhookHandler(&mockWebhookProcessor{
			executeFn: func(context.Context, []byte, string) (*usecases.WebhookResult, error) {
				return nil, apperrors.NewInternalError("failed to process webhook event").WithCause(errors.New("deadlock found"))
			},
		}, 0, logger.NewNopLogger())

		c, w := testutil.NewTestContext(http.MethodPost, "/webhooks/stripe", []byte(`{}`))
		h.HandleStripe(c)

		require.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "deadlock")
	})

	t.Run("oversized body is rejected before processing", func(t *testing.T) {
		called := false
		h := NewWebhookHandler(&mockWebhookProcessor{
			executeFn: func(context.Context, []byte, string) (*usecases.WebhookResult, error) {
				called = true
				return &usecases.WebhookResult{}, nil
			},
		}, 0, logger.NewNopLogger())

		body := []byte(`{"pad":"` + strings.Repeat("x", maxWebhookBodyBytes) + `"}`)
		c, w := testutil.NewTestContext(http.MethodPost, "/webhooks/stripe", body)
		h.HandleStripe(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.False(t, called)
	})
}
