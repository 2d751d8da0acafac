package payment

import "errors"

var (
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrInvalidAmount       = errors.New("payment amount must not be negative")
	ErrInvalidCurrency     = errors.New("invalid currency code")
	ErrDuplicatePayment    = errors.New("payment already recorded")
	ErrRefundNotAllowed    = errors.New("refund not allowed")
	ErrRefundExceedsAmount = errors.New("refund exceeds captured amount")
	ErrProviderIDRequired  = errors.New("provider payment ID is required")
)
