package usecases

import (
	"context"
	"fmt"

	"github.com/orris-inc/subflow/internal/domain/notification"
	vo "github.com/orris-inc/subflow/internal/domain/notification/valueobjects"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

type QueueNotificationCommand struct {
	UserID  uint
	Kind    vo.Kind
	Related *notification.RelatedEntity
	Context map[string]any
	// InApp also stores an in-app copy next to the email.
	InApp bool
}

// QueueNotificationUseCase writes the notification outbox: a pending record
// and the email job that will deliver it. Called inside a transaction both
// rows commit or roll back with the state change that caused them. Without
// an InAppRecorder, InApp commands only send the email.
type QueueNotificationUseCase struct {
	notificationRepo notification.NotificationRepository
	queue            EmailJobQueue
	inApp            InAppRecorder
	logger           logger.Interface
}

func NewQueueNotificationUseCase(
	notificationRepo notification.NotificationRepository,
	queue EmailJobQueue,
	inApp InAppRecorder,
	logger logger.Interface,
) *QueueNotificationUseCase {
	return &QueueNotificationUseCase{
		notificationRepo: notificationRepo,
		queue:            queue,
		inApp:            inApp,
		logger:           logger,
	}
}

func (uc *QueueNotificationUseCase) Execute(ctx context.Context, cmd QueueNotificationCommand) (*notification.Notification, error) {
	n, err := notification.NewNotification(cmd.UserID, cmd.Kind, vo.ChannelEmail, cmd.Related, cmd.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s notification: %w", cmd.Kind, err)
	}

	if err := uc.notificationRepo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to store %s notification: %w", cmd.Kind, err)
	}

	if err := uc.queue.EnqueueEmail(ctx, cmd.Kind.String(), n.ID()); err != nil {
		return nil, err
	}

	if cmd.InApp && uc.inApp != nil {
		if _, err := uc.inApp.RecordInApp(ctx, cmd.Kind, cmd.UserID, cmd.Related, cmd.Context); err != nil {
			return nil, err
		}
	}

	uc.logger.Debugw("notification queued",
		"notification_id", n.ID(),
		"user_id", cmd.UserID,
		"kind", cmd.Kind,
	)
	return n, nil
}
