package mappers

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/orris-inc/subflow/internal/domain/notification"
	vo "github.com/orris-inc/subflow/internal/domain/notification/valueobjects"
	"github.com/orris-inc/subflow/internal/infrastructure/persistence/models"
)

type NotificationMapper interface {
	ToEntity(model *models.NotificationModel) (*notification.Notification, error)
	ToModel(entity *notification.Notification) (*models.NotificationModel, error)
}

type NotificationMapperImpl struct{}

func NewNotificationMapper() NotificationMapper {
	return &NotificationMapperImpl{}
}

func (m *NotificationMapperImpl) ToEntity(model *models.NotificationModel) (*notification.Notification, error) {
	if model == nil {
		return nil, nil
	}

	var context map[string]any
	if len(model.Context) > 0 {
		if err := json.Unmarshal(model.Context, &context); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification context: %w", err)
		}
	}

	var related *notification.RelatedEntity
	if model.RelatedType != nil && model.RelatedID != nil {
		related = &notification.RelatedEntity{
			Type: notification.RelatedType(*model.RelatedType),
			ID:   *model.RelatedID,
		}
	}

	entity, err := notification.ReconstructNotification(notification.ReconstructParams{
		ID:                model.ID,
		SID:               model.SID,
		UserID:            model.UserID,
		Kind:              vo.Kind(model.Kind),
		Channel:           vo.Channel(model.Channel),
		Status:            vo.Status(model.Status),
		RetryCount:        model.RetryCount,
		ProviderMessageID: model.ProviderMessageID,
		LastError:         model.LastError,
		Related:           related,
		Context:           context,
		SentAt:            utcPtr(model.SentAt),
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct notification entity: %w", err)
	}
	return entity, nil
}

func (m *NotificationMapperImpl) ToModel(entity *notification.Notification) (*models.NotificationModel, error) {
	if entity == nil {
		return nil, nil
	}

	var contextJSON datatypes.JSON
	if ctx := entity.Context(); len(ctx) > 0 {
		data, err := json.Marshal(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal notification context: %w", err)
		}
		contextJSON = data
	}

	model := &models.NotificationModel{
		ID:                entity.ID(),
		SID:               entity.SID(),
		UserID:            entity.UserID(),
		Kind:              entity.Kind().String(),
		Channel:           entity.Channel().String(),
		Status:            entity.Status().String(),
		RetryCount:        entity.RetryCount(),
		ProviderMessageID: entity.ProviderMessageID(),
		LastError:         entity.LastError(),
		Context:           contextJSON,
		SentAt:            entity.SentAt(),
		CreatedAt:         entity.CreatedAt(),
		UpdatedAt:         entity.UpdatedAt(),
	}

	if related := entity.Related(); related != nil {
		relatedType := string(related.Type)
		relatedID := related.ID
		model.RelatedType = &relatedType
		model.RelatedID = &relatedID
	}

	return model, nil
}
