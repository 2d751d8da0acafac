package payment

import "context"

type PaymentRepository interface {
	// Create returns ErrDuplicatePayment when the provider payment ID is already recorded.
	Create(ctx context.Context, payment *Payment) error
	Update(ctx context.Context, payment *Payment) error
	GetByID(ctx context.Context, id uint) (*Payment, error)
	GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*Payment, error)
	ListBySubscriptionID(ctx context.Context, subscriptionID uint) ([]*Payment, error)
}
