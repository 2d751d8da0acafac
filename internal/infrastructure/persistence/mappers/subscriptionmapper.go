package mappers

import (
	"fmt"

	"github.com/orris-inc/subflow/internal/domain/subscription"
	vo "github.com/orris-inc/subflow/internal/domain/subscription/valueobjects"
	"github.com/orris-inc/subflow/internal/infrastructure/persistence/models"
	"github.com/orris-inc/subflow/internal/shared/mapper"
)

type SubscriptionMapper interface {
	ToEntity(model *models.SubscriptionModel) (*subscription.Subscription, error)
	ToModel(entity *subscription.Subscription) (*models.SubscriptionModel, error)
	ToEntities(models []*models.SubscriptionModel) ([]*subscription.Subscription, error)
}

type SubscriptionMapperImpl struct{}

func NewSubscriptionMapper() SubscriptionMapper {
	return &SubscriptionMapperImpl{}
}

func (m *SubscriptionMapperImpl) ToEntity(model *models.SubscriptionModel) (*subscription.Subscription, error) {
	if model == nil {
		return nil, nil
	}

	status := vo.SubscriptionStatus(model.Status)
	if !vo.ValidStatuses[status] {
		return nil, fmt.Errorf("invalid subscription status: %s", model.Status)
	}

	var pm *subscription.PaymentMethod
	if model.PMLast4 != nil {
		pm = &subscription.PaymentMethod{Last4: *model.PMLast4}
		if model.PMBrand != nil {
			pm.Brand = *model.PMBrand
		}
		if model.PMExpMonth != nil {
			pm.ExpMonth = *model.PMExpMonth
		}
		if model.PMExpYear != nil {
			pm.ExpYear = *model.PMExpYear
		}
	}

	entity, err := subscription.ReconstructSubscription(subscription.ReconstructParams{
		ID:                     model.ID,
		SID:                    model.SID,
		UserID:                 model.UserID,
		PlanID:                 model.PlanID,
		ProviderSubscriptionID: model.ProviderSubscriptionID,
		ProviderCustomerID:     model.ProviderCustomerID,
		Status:                 status,
		CurrentPeriodStart:     model.CurrentPeriodStart.UTC(),
		CurrentPeriodEnd:       model.CurrentPeriodEnd.UTC(),
		TrialStart:             utcPtr(model.TrialStart),
		TrialEnd:               utcPtr(model.TrialEnd),
		CancelAtPeriodEnd:      model.CancelAtPeriodEnd,
		CanceledAt:             utcPtr(model.CanceledAt),
		CancelReason:           model.CancelReason,
		PaymentMethod:          pm,
		ProrationCredit:        model.ProrationCredit,
		RenewalRemindedFor:     utcPtr(model.RenewalRemindedFor),
		TrialRemindedFor:       utcPtr(model.TrialRemindedFor),
		ArchivedAt:             utcPtr(model.ArchivedAt),
		Version:                model.Version,
		CreatedAt:              model.CreatedAt,
		UpdatedAt:              model.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct subscription entity: %w", err)
	}

	return entity, nil
}

func (m *SubscriptionMapperImpl) ToModel(entity *subscription.Subscription) (*models.SubscriptionModel, error) {
	if entity == nil {
		return nil, nil
	}

	model := &models.SubscriptionModel{
		ID:                     entity.ID(),
		SID:                    entity.SID(),
		UserID:                 entity.UserID(),
		PlanID:                 entity.PlanID(),
		ProviderSubscriptionID: entity.ProviderSubscriptionID(),
		ProviderCustomerID:     entity.ProviderCustomerID(),
		Status:                 entity.Status().String(),
		CurrentPeriodStart:     entity.CurrentPeriodStart(),
		CurrentPeriodEnd:       entity.CurrentPeriodEnd(),
		TrialStart:             entity.TrialStart(),
		TrialEnd:               entity.TrialEnd(),
		CancelAtPeriodEnd:      entity.CancelAtPeriodEnd(),
		CanceledAt:             entity.CanceledAt(),
		CancelReason:           entity.CancelReason(),
		ProrationCredit:        entity.ProrationCredit(),
		RenewalRemindedFor:     entity.RenewalRemindedFor(),
		TrialRemindedFor:       entity.TrialRemindedFor(),
		ArchivedAt:             entity.ArchivedAt(),
		Version:                entity.Version(),
		CreatedAt:              entity.CreatedAt(),
		UpdatedAt:              entity.UpdatedAt(),
	}

	// live_user_id carries the unique constraint for one live subscription per user
	if entity.Status().IsLive() {
		userID := entity.UserID()
		model.LiveUserID = &userID
	}

	if pm := entity.PaymentMethod(); pm != nil {
		model.PMBrand = &pm.Brand
		model.PMLast4 = &pm.Last4
		model.PMExpMonth = &pm.ExpMonth
		model.PMExpYear = &pm.ExpYear
	}

	return model, nil
}

func (m *SubscriptionMapperImpl) ToEntities(modelList []*models.SubscriptionModel) ([]*subscription.Subscription, error) {
	return mapper.MapSlicePtrWithID(modelList, m.ToEntity, func(model *models.SubscriptionModel) uint { return model.ID })
}
