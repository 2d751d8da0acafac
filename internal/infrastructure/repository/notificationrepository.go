package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/orris-inc/subflow/internal/domain/notification"
	vo "github.com/orris-inc/subflow/internal/domain/notification/valueobjects"
	"github.com/orris-inc/subflow/internal/infrastructure/persistence/mappers"
	"github.com/orris-inc/subflow/internal/infrastructure/persistence/models"
	"github.com/orris-inc/subflow/internal/shared/db"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

type NotificationRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.NotificationMapper
	logger logger.Interface
}

func NewNotificationRepository(db *gorm.DB, logger logger.Interface) *NotificationRepositoryImpl {
	return &NotificationRepositoryImpl{
		db:     db,
		mapper: mappers.NewNotificationMapper(),
		logger: logger,
	}
}

var _ notification.NotificationRepository = (*NotificationRepositoryImpl)(nil)

func (r *NotificationRepositoryImpl) Create(ctx context.Context, n *notification.Notification) error {
	model, err := r.mapper.ToModel(n)
	if err != nil {
		return fmt.Errorf("failed to map notification entity: %w", err)
	}

	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		r.logger.Errorw("failed to create notification", "user_id", model.UserID, "kind", model.Kind, "error", err)
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return n.SetID(model.ID)
}

func (r *NotificationRepositoryImpl) Update(ctx context.Context, n *notification.Notification) error {
	model, err := r.mapper.ToModel(n)
	if err != nil {
		return fmt.Errorf("failed to map notification entity: %w", err)
	}

	if err := db.GetTxFromContext(ctx, r.db).
		Model(&models.NotificationModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"status":              model.Status,
			"retry_count":         model.RetryCount,
			"provider_message_id": model.ProviderMessageID,
			"last_error":          model.LastError,
			"sent_at":             model.SentAt,
			"updated_at":          model.UpdatedAt,
		}).Error; err != nil {
		r.logger.Errorw("failed to update notification", "id", model.ID, "error", err)
		return fmt.Errorf("failed to update notification: %w", err)
	}
	return nil
}

func (r *NotificationRepositoryImpl) GetByID(ctx context.Context, id uint) (*notification.Notification, error) {
	var model models.NotificationModel
	if err := db.GetTxFromContext(ctx, r.db).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

func (r *NotificationRepositoryImpl) ListByRelated(ctx context.Context, relatedType notification.RelatedType, relatedID uint) ([]*notification.Notification, error) {
	var rows []*models.NotificationModel
	if err := db.GetTxFromContext(ctx, r.db).
		Where("related_type = ? AND related_id = ?", string(relatedType), relatedID).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	result := make([]*notification.Notification, 0, len(rows))
	for _, row := range rows {
		entity, err := r.mapper.ToEntity(row)
		if err != nil {
			return nil, fmt.Errorf("failed to map notification %d: %w", row.ID, err)
		}
		result = append(result, entity)
	}
	return result, nil
}

func (r *NotificationRepositoryImpl) CountByStatus(ctx context.Context, kind vo.Kind, status vo.Status) (int64, error) {
	var count int64
	if err := db.GetTxFromContext(ctx, r.db).
		Model(&models.NotificationModel{}).
		Where("kind = ? AND status = ?", kind.String(), status.String()).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}
