package mappers

import (
	"fmt"

	"github.com/orris-inc/subflow/internal/domain/payment"
	vo "github.com/orris-inc/subflow/internal/domain/payment/valueobjects"
	"github.com/orris-inc/subflow/internal/infrastructure/persistence/models"
	"github.com/orris-inc/subflow/internal/shared/mapper"
)

type PaymentMapper interface {
	ToEntity(model *models.PaymentModel) (*payment.Payment, error)
	ToModel(entity *payment.Payment) *models.PaymentModel
	ToEntities(models []*models.PaymentModel) ([]*payment.Payment, error)
}

type PaymentMapperImpl struct{}

func NewPaymentMapper() PaymentMapper {
	return &PaymentMapperImpl{}
}

func (m *PaymentMapperImpl) ToEntity(model *models.PaymentModel) (*payment.Payment, error) {
	if model == nil {
		return nil, nil
	}

	entity, err := payment.ReconstructPayment(
		model.ID,
		model.SID,
		model.UserID,
		model.SubscriptionID,
		model.ProviderPaymentID,
		model.ProviderInvoiceID,
		model.Amount,
		model.Currency,
		vo.PaymentStatus(model.Status),
		model.FailureCode,
		model.FailureMessage,
		model.RefundedAmount,
		model.ReceiptURL,
		model.InvoiceURL,
		utcPtr(model.PaidAt),
		model.CreatedAt,
		model.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct payment entity: %w", err)
	}
	return entity, nil
}

func (m *PaymentMapperImpl) ToModel(entity *payment.Payment) *models.PaymentModel {
	if entity == nil {
		return nil
	}

	return &models.PaymentModel{
		ID:                entity.ID(),
		SID:               entity.SID(),
		UserID:            entity.UserID(),
		SubscriptionID:    entity.SubscriptionID(),
		ProviderPaymentID: entity.ProviderPaymentID(),
		ProviderInvoiceID: entity.ProviderInvoiceID(),
		Amount:            entity.Amount(),
		Currency:          entity.Currency(),
		Status:            entity.Status().String(),
		FailureCode:       entity.FailureCode(),
		FailureMessage:    entity.FailureMessage(),
		RefundedAmount:    entity.RefundedAmount(),
		ReceiptURL:        entity.ReceiptURL(),
		InvoiceURL:        entity.InvoiceURL(),
		PaidAt:            entity.PaidAt(),
		CreatedAt:         entity.CreatedAt(),
		UpdatedAt:         entity.UpdatedAt(),
	}
}

func (m *PaymentMapperImpl) ToEntities(modelList []*models.PaymentModel) ([]*payment.Payment, error) {
	return mapper.MapSlicePtrWithID(modelList, m.ToEntity, func(model *models.PaymentModel) uint { return model.ID })
}
