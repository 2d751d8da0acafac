package usecases

import (
	"context"
	"errors"

	"github.com/orris-inc/subflow/internal/domain/job"
	"github.com/orris-inc/subflow/internal/domain/notification"
	vo "github.com/orris-inc/subflow/internal/domain/notification/valueobjects"
)

var ErrNotificationNotFound = errors.New("notification not found")

// Recipient is where an email goes.
type Recipient struct {
	Email string
	Name  string
}

// EmailDeliverer renders a notification kind with its context and hands the
// result to the configured email provider. It returns the provider's message id.
type EmailDeliverer interface {
	Deliver(ctx context.Context, kind vo.Kind, to Recipient, data map[string]any) (string, error)
}

// EmailJobQueue writes email jobs through the transaction carried by ctx.
// Notify wakes workers and must only be called after the transaction commits.
type EmailJobQueue interface {
	EnqueueEmail(ctx context.Context, kind string, notificationID uint) error
	Notify(ctx context.Context, queues ...job.Queue)
}

// InAppRecorder stores the in-app copy of a notification.
type InAppRecorder interface {
	RecordInApp(ctx context.Context, kind vo.Kind, userID uint, related *notification.RelatedEntity, data map[string]any) (*notification.Notification, error)
}

type Observer interface {
	RecordNotification(kind, channel string, success bool)
}
