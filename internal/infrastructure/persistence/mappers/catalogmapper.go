package mappers

import (
	"github.com/orris-inc/subflow/internal/domain/billingevent"
	"github.com/orris-inc/subflow/internal/domain/plan"
	"github.com/orris-inc/subflow/internal/domain/user"
	"github.com/orris-inc/subflow/internal/infrastructure/persistence/models"
)

func PlanToEntity(model *models.PlanModel) (*plan.Plan, error) {
	if model == nil {
		return nil, nil
	}
	return plan.NewPlan(model.ID, model.Name, model.ProviderPriceID, model.TierLevel,
		plan.Interval(model.Interval), model.TrialDays, model.Active)
}

func PlanToModel(entity *plan.Plan) *models.PlanModel {
	return &models.PlanModel{
		ID:              entity.ID(),
		Name:            entity.Name(),
		ProviderPriceID: entity.ProviderPriceID(),
		TierLevel:       entity.TierLevel(),
		Interval:        string(entity.Interval()),
		TrialDays:       entity.TrialDays(),
		Active:          entity.IsActive(),
	}
}

func UserToEntity(model *models.UserModel) (*user.User, error) {
	if model == nil {
		return nil, nil
	}
	return user.NewUser(model.ID, model.Email, model.Name)
}

func ProcessedEventToEntity(model *models.ProcessedEventModel) *billingevent.ProcessedEvent {
	if model == nil {
		return nil
	}
	event := &billingevent.ProcessedEvent{
		EventID:     model.EventID,
		EventType:   model.EventType,
		Outcome:     billingevent.Outcome(model.Outcome),
		ProcessedAt: model.ProcessedAt.UTC(),
	}
	if model.Detail != nil {
		event.Detail = *model.Detail
	}
	return event
}
