package notification

import (
	"context"

	vo "github.com/orris-inc/subflow/internal/domain/notification/valueobjects"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *Notification) error
	Update(ctx context.Context, notification *Notification) error
	GetByID(ctx context.Context, id uint) (*Notification, error)
	ListByRelated(ctx context.Context, relatedType RelatedType, relatedID uint) ([]*Notification, error)
	CountByStatus(ctx context.Context, kind vo.Kind, status vo.Status) (int64, error)
}
