package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/orris-inc/subflow/internal/domain/payment"
	"github.com/orris-inc/subflow/internal/infrastructure/persistence/mappers"
	"github.com/orris-inc/subflow/internal/infrastructure/persistence/models"
	"github.com/orris-inc/subflow/internal/shared/db"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

type PaymentRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.PaymentMapper
	logger logger.Interface
}

func NewPaymentRepository(db *gorm.DB, logger logger.Interface) *PaymentRepositoryImpl {
	return &PaymentRepositoryImpl{
		db:     db,
		mapper: mappers.NewPaymentMapper(),
		logger: logger,
	}
}

var _ payment.PaymentRepository = (*PaymentRepositoryImpl)(nil)

func (r *PaymentRepositoryImpl) Create(ctx context.Context, paymentEntity *payment.Payment) error {
	model := r.mapper.ToModel(paymentEntity)

	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		if db.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", payment.ErrDuplicatePayment, model.ProviderPaymentID)
		}
		r.logger.Errorw("failed to create payment", "provider_payment_id", model.ProviderPaymentID, "error", err)
		return fmt.Errorf("failed to create payment: %w", err)
	}

	if err := paymentEntity.SetID(model.ID); err != nil {
		return fmt.Errorf("failed to set payment ID: %w", err)
	}

	r.logger.Infow("payment recorded",
		"id", model.ID,
		"subscription_id", model.SubscriptionID,
		"status", model.Status,
		"amount", model.Amount,
		"currency", model.Currency,
	)
	return nil
}

// Update only touches the columns that may change after creation.
func (r *PaymentRepositoryImpl) Update(ctx context.Context, paymentEntity *payment.Payment) error {
	model := r.mapper.ToModel(paymentEntity)

	if err := db.GetTxFromContext(ctx, r.db).
		Model(&models.PaymentModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"status":          model.Status,
			"refunded_amount": model.RefundedAmount,
			"updated_at":      model.UpdatedAt,
		}).Error; err != nil {
		r.logger.Errorw("failed to update payment", "id", model.ID, "error", err)
		return fmt.Errorf("failed to update payment: %w", err)
	}
	return nil
}

func (r *PaymentRepositoryImpl) first(ctx context.Context, query string, args ...interface{}) (*payment.Payment, error) {
	var model models.PaymentModel
	if err := db.GetTxFromContext(ctx, r.db).Where(query, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Errorw("failed to get payment", "query", query, "error", err)
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

func (r *PaymentRepositoryImpl) GetByID(ctx context.Context, id uint) (*payment.Payment, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *PaymentRepositoryImpl) GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*payment.Payment, error) {
	return r.first(ctx, "provider_payment_id = ?", providerPaymentID)
}

func (r *PaymentRepositoryImpl) ListBySubscriptionID(ctx context.Context, subscriptionID uint) ([]*payment.Payment, error) {
	var rows []*models.PaymentModel
	if err := db.GetTxFromContext(ctx, r.db).
		Where("subscription_id = ?", subscriptionID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		r.logger.Errorw("failed to list payments", "subscription_id", subscriptionID, "error", err)
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return r.mapper.ToEntities(rows)
}
