package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/subflow/internal/application/billing/usecases"
	apperrors "github.com/orris-inc/subflow/internal/shared/errors"
	"github.com/orris-inc/subflow/internal/shared/logger"
	"github.com/orris-inc/subflow/internal/shared/utils"
)

const (
	// StripeSignatureHeader carries the provider's HMAC signature.
	StripeSignatureHeader = "Stripe-Signature"

	maxWebhookBodyBytes   = 512 * 1024
	defaultWebhookTimeout = 10 * time.Second
)

type webhookProcessor interface {
	Execute(ctx context.Context, payload []byte, signatureHeader string) (*usecases.WebhookResult, error)
}

// WebhookResponse is the acknowledgement body. The provider only looks at the
// status code; the outcome helps when replaying deliveries by hand.
type WebhookResponse struct {
	Received bool   `json:"received"`
	EventID  string `json:"event_id"`
	Outcome  string `json:"outcome"`
}

type WebhookHandler struct {
	processor webhookProcessor
	timeout   time.Duration
	logger    logger.Interface
}

func NewWebhookHandler(processor webhookProcessor, timeout time.Duration, logger logger.Interface) *WebhookHandler {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookHandler{
		processor: processor,
		timeout:   timeout,
		logger:    logger,
	}
}

// HandleStripe verifies, deduplicates and applies one Stripe delivery. It
// answers 200 with a WebhookResponse once the event is recorded, 400 when the
// signature or payload is rejected and 5xx when the provider should retry.
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warnw("webhook body too large", "limit", tooLarge.Limit)
			utils.ErrorResponseWithError(c, apperrors.NewBadRequestError("webhook body too large"))
			return
		}
		h.logger.Warnw("failed to read webhook body", "error", err)
		utils.ErrorResponseWithError(c, apperrors.NewBadRequestError("failed to read request body"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	result, err := h.processor.Execute(ctx, payload, c.GetHeader(StripeSignatureHeader))
	if err != nil {
		_ = c.Error(err)
		utils.ErrorResponseWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, WebhookResponse{
		Received: true,
		EventID:  result.EventID,
		Outcome:  string(result.Outcome),
	})
}
