package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vo "github.com/orris-inc/subflow/internal/domain/payment/valueobjects"
)

func validCharge() Charge {
	return Charge{
		UserID:            1,
		SubscriptionID:    2,
		ProviderPaymentID: "pi_123",
		ProviderInvoiceID: "in_123",
		Amount:            1999,
		Currency:          "USD",
	}
}

func TestNewSucceededPayment(t *testing.T) {
	paidAt := time.Now().UTC()
	p, err := NewSucceededPayment(validCharge(), paidAt)
	require.NoError(t, err)

	assert.Equal(t, vo.PaymentStatusSucceeded, p.Status())
	assert.Equal(t, int64(1999), p.Amount())
	assert.Equal(t, "usd", p.Currency())
	require.NotNil(t, p.ProviderInvoiceID())
	assert.Equal(t, "in_123", *p.ProviderInvoiceID())
	assert.Nil(t, p.ReceiptURL())
	require.NotNil(t, p.PaidAt())
	assert.Equal(t, paidAt, *p.PaidAt())
}

func TestNewPayment_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Charge)
		want   error
	}{
		{"negative amount", func(c *Charge) { c.Amount = -1 }, ErrInvalidAmount},
		{"missing provider id", func(c *Charge) { c.ProviderPaymentID = "" }, ErrProviderIDRequired},
		{"bad currency", func(c *Charge) { c.Currency = "dollars" }, ErrInvalidCurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCharge()
			tt.mutate(&c)
			_, err := NewSucceededPayment(c, time.Now())
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("zero amount is allowed", func(t *testing.T) {
		c := validCharge()
		c.Amount = 0
		_, err := NewSucceededPayment(c, time.Now())
		assert.NoError(t, err)
	})
}

func TestPayment_Refund(t *testing.T) {
	p, err := NewSucceededPayment(validCharge(), time.Now())
	require.NoError(t, err)

	require.NoError(t, p.MarkRefunded(999))
	assert.Equal(t, vo.PaymentStatusSucceeded, p.Status())

	err = p.MarkRefunded(1001)
	assert.ErrorIs(t, err, ErrRefundExceedsAmount)

	require.NoError(t, p.MarkRefunded(1000))
	assert.Equal(t, vo.PaymentStatusRefunded, p.Status())
	assert.Equal(t, int64(1999), p.RefundedAmount())
}

func TestPayment_FailedCannotBeRefundedOrDisputed(t *testing.T) {
	p, err := NewFailedPayment(validCharge(), "card_declined", "Your card was declined.")
	require.NoError(t, err)
	require.NotNil(t, p.FailureCode())
	assert.Equal(t, "card_declined", *p.FailureCode())
	assert.Nil(t, p.PaidAt())

	assert.ErrorIs(t, p.MarkRefunded(1), ErrRefundNotAllowed)
	assert.Error(t, p.MarkDisputed())
}
