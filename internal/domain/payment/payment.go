package payment

import (
	"fmt"
	"strings"
	"time"

	vo "github.com/orris-inc/subflow/internal/domain/payment/valueobjects"
	"github.com/orris-inc/subflow/internal/shared/biztime"
	"github.com/orris-inc/subflow/internal/shared/id"
)

// Payment is one settled or failed charge recorded from an invoice notification.
// After creation only refund and dispute fields change.
type Payment struct {
	id                uint
	sid               string
	userID            uint
	subscriptionID    uint
	providerPaymentID string
	providerInvoiceID *string
	amount            int64
	currency          string
	status            vo.PaymentStatus
	failureCode       *string
	failureMessage    *string
	refundedAmount    int64
	receiptURL        *string
	invoiceURL        *string
	paidAt            *time.Time
	createdAt         time.Time
	updatedAt         time.Time
}

// Charge describes the invoice a payment is recorded from.
type Charge struct {
	UserID            uint
	SubscriptionID    uint
	ProviderPaymentID string
	ProviderInvoiceID string
	Amount            int64
	Currency          string
	ReceiptURL        string
	InvoiceURL        string
}

func (c Charge) validate() error {
	if c.UserID == 0 {
		return fmt.Errorf("user ID is required")
	}
	if c.SubscriptionID == 0 {
		return fmt.Errorf("subscription ID is required")
	}
	if c.ProviderPaymentID == "" {
		return ErrProviderIDRequired
	}
	if c.Amount < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, c.Amount)
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, c.Currency)
	}
	return nil
}

func newPayment(c Charge, status vo.PaymentStatus) (*Payment, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	sid, err := id.NewPaymentSID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate payment SID: %w", err)
	}

	now := biztime.NowUTC()
	return &Payment{
		sid:               sid,
		userID:            c.UserID,
		subscriptionID:    c.SubscriptionID,
		providerPaymentID: c.ProviderPaymentID,
		providerInvoiceID: optional(c.ProviderInvoiceID),
		amount:            c.Amount,
		currency:          strings.ToLower(c.Currency),
		status:            status,
		receiptURL:        optional(c.ReceiptURL),
		invoiceURL:        optional(c.InvoiceURL),
		createdAt:         now,
		updatedAt:         now,
	}, nil
}

// NewSucceededPayment records a settled charge.
func NewSucceededPayment(c Charge, paidAt time.Time) (*Payment, error) {
	p, err := newPayment(c, vo.PaymentStatusSucceeded)
	if err != nil {
		return nil, err
	}
	p.paidAt = &paidAt
	return p, nil
}

// NewFailedPayment records a declined charge attempt.
func NewFailedPayment(c Charge, failureCode, failureMessage string) (*Payment, error) {
	p, err := newPayment(c, vo.PaymentStatusFailed)
	if err != nil {
		return nil, err
	}
	p.failureCode = optional(failureCode)
	p.failureMessage = optional(failureMessage)
	return p, nil
}

// ReconstructPayment reconstructs a payment from persistence
func ReconstructPayment(
	id uint,
	sid string,
	userID, subscriptionID uint,
	providerPaymentID string,
	providerInvoiceID *string,
	amount int64,
	currency string,
	status vo.PaymentStatus,
	failureCode, failureMessage *string,
	refundedAmount int64,
	receiptURL, invoiceURL *string,
	paidAt *time.Time,
	createdAt, updatedAt time.Time,
) (*Payment, error) {
	if id == 0 {
		return nil, fmt.Errorf("payment ID cannot be zero")
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid payment status: %s", status)
	}
	if amount < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}

	return &Payment{
		id:                id,
		sid:               sid,
		userID:            userID,
		subscriptionID:    subscriptionID,
		providerPaymentID: providerPaymentID,
		providerInvoiceID: providerInvoiceID,
		amount:            amount,
		currency:          currency,
		status:            status,
		failureCode:       failureCode,
		failureMessage:    failureMessage,
		refundedAmount:    refundedAmount,
		receiptURL:        receiptURL,
		invoiceURL:        invoiceURL,
		paidAt:            paidAt,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
	}, nil
}

// MarkRefunded records a (partial) refund. The status turns refunded once the
// whole amount has been returned.
func (p *Payment) MarkRefunded(amount int64) error {
	if !p.status.IsSettled() {
		return fmt.Errorf("%w: payment status %s", ErrRefundNotAllowed, p.status)
	}
	if amount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	if p.refundedAmount+amount > p.amount {
		return fmt.Errorf("%w: refunded %d + %d > %d", ErrRefundExceedsAmount, p.refundedAmount, amount, p.amount)
	}

	p.refundedAmount += amount
	if p.refundedAmount == p.amount {
		p.status = vo.PaymentStatusRefunded
	}
	p.updatedAt = biztime.NowUTC()
	return nil
}

// MarkDisputed flags a settled payment as disputed by the card holder.
func (p *Payment) MarkDisputed() error {
	if !p.status.IsSettled() {
		return fmt.Errorf("cannot dispute payment with status %s", p.status)
	}
	p.status = vo.PaymentStatusDisputed
	p.updatedAt = biztime.NowUTC()
	return nil
}

func (p *Payment) SetID(id uint) error {
	if p.id != 0 {
		return fmt.Errorf("payment ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("payment ID cannot be zero")
	}
	p.id = id
	return nil
}

func (p *Payment) ID() uint {
	return p.id
}

func (p *Payment) SID() string {
	return p.sid
}

func (p *Payment) UserID() uint {
	return p.userID
}

func (p *Payment) SubscriptionID() uint {
	return p.subscriptionID
}

func (p *Payment) ProviderPaymentID() string {
	return p.providerPaymentID
}

func (p *Payment) ProviderInvoiceID() *string {
	return p.providerInvoiceID
}

// Amount returns the charged amount in minor currency units
func (p *Payment) Amount() int64 {
	return p.amount
}

func (p *Payment) Currency() string {
	return p.currency
}

func (p *Payment) Status() vo.PaymentStatus {
	return p.status
}

func (p *Payment) FailureCode() *string {
	return p.failureCode
}

func (p *Payment) FailureMessage() *string {
	return p.failureMessage
}

func (p *Payment) RefundedAmount() int64 {
	return p.refundedAmount
}

func (p *Payment) ReceiptURL() *string {
	return p.receiptURL
}

func (p *Payment) InvoiceURL() *string {
	return p.invoiceURL
}

func (p *Payment) PaidAt() *time.Time {
	return p.paidAt
}

func (p *Payment) CreatedAt() time.Time {
	return p.createdAt
}

func (p *Payment) UpdatedAt() time.Time {
	return p.updatedAt
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
