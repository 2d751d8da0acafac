package models

import (
	"time"

	"github.com/orris-inc/subflow/internal/shared/constants"
)

type PaymentModel struct {
	ID                uint    `gorm:"primarykey"`
	SID               string  `gorm:"uniqueIndex;not null;size:50"`
	UserID            uint    `gorm:"not null;index"`
	SubscriptionID    uint    `gorm:"not null;index"`
	ProviderPaymentID string  `gorm:"uniqueIndex;not null;size:120;comment:payment intent id, unique per charge"`
	ProviderInvoiceID *string `gorm:"size:100;index"`
	Amount            int64   `gorm:"not null;comment:minor currency units"`
	Currency          string  `gorm:"not null;size:3"`
	Status            string  `gorm:"not null;size:20;index"`
	FailureCode       *string `gorm:"size:100"`
	FailureMessage    *string `gorm:"size:500"`
	RefundedAmount    int64   `gorm:"not null;default:0"`
	ReceiptURL        *string `gorm:"size:500"`
	InvoiceURL        *string `gorm:"size:500"`
	PaidAt            *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (PaymentModel) TableName() string {
	return constants.TablePayments
}
