package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/orris-inc/subflow/internal/domain/job"
	"github.com/orris-inc/subflow/internal/domain/notification"
	vo "github.com/orris-inc/subflow/internal/domain/notification/valueobjects"
	"github.com/orris-inc/subflow/internal/domain/user"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

// SendResult is the outcome of one delivery attempt.
type SendResult struct {
	Success           bool
	ProviderMessageID string
	Error             error
}

// DispatchNotificationUseCase delivers user-facing messages and records every
// attempt on a Notification. It never reads or writes billing state.
type DispatchNotificationUseCase struct {
	notificationRepo notification.NotificationRepository
	users            user.Directory
	deliverer        EmailDeliverer
	observer         Observer
	logger           logger.Interface
}

func NewDispatchNotificationUseCase(
	notificationRepo notification.NotificationRepository,
	users user.Directory,
	deliverer EmailDeliverer,
	observer Observer,
	logger logger.Interface,
) *DispatchNotificationUseCase {
	return &DispatchNotificationUseCase{
		notificationRepo: notificationRepo,
		users:            users,
		deliverer:        deliverer,
		observer:         observer,
		logger:           logger,
	}
}

// Send emails kind to userID right away. The attempt is recorded on a new
// notification record whatever the result.
func (uc *DispatchNotificationUseCase) Send(ctx context.Context, kind vo.Kind, userID uint, data map[string]any) SendResult {
	n, err := notification.NewNotification(userID, kind, vo.ChannelEmail, nil, data)
	if err != nil {
		return SendResult{Error: err}
	}
	if err := uc.notificationRepo.Create(ctx, n); err != nil {
		return SendResult{Error: fmt.Errorf("failed to store %s notification: %w", kind, err)}
	}
	return uc.attempt(ctx, n)
}

// Deliver makes one attempt at a stored notification. A notification that
// already went out is reported as a success without sending it again.
func (uc *DispatchNotificationUseCase) Deliver(ctx context.Context, notificationID uint) SendResult {
	n, err := uc.notificationRepo.GetByID(ctx, notificationID)
	if err != nil {
		return SendResult{Error: err}
	}
	if n == nil {
		return SendResult{Error: fmt.Errorf("%w: %d", ErrNotificationNotFound, notificationID)}
	}

	if !n.Status().CanAttempt() {
		uc.logger.Debugw("notification already delivered",
			"notification_id", n.ID(),
			"status", n.Status(),
		)
		result := SendResult{Success: true}
		if n.ProviderMessageID() != nil {
			result.ProviderMessageID = *n.ProviderMessageID()
		}
		return result
	}

	return uc.attempt(ctx, n)
}

// RecordInApp stores an in-app notification. There is no external delivery,
// so it is recorded as delivered immediately.
func (uc *DispatchNotificationUseCase) RecordInApp(ctx context.Context, kind vo.Kind, userID uint, related *notification.RelatedEntity, data map[string]any) (*notification.Notification, error) {
	n, err := notification.NewNotification(userID, kind, vo.ChannelInApp, related, data)
	if err != nil {
		return nil, err
	}
	if err := n.MarkDelivered(); err != nil {
		return nil, err
	}
	if err := uc.notificationRepo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to store in-app notification: %w", err)
	}
	uc.observer.RecordNotification(kind.String(), vo.ChannelInApp.String(), true)
	return n, nil
}

// HandleEmailJob is the queue handler of every email job type. A failed send
// is returned so the queue retries with backoff; a notification or user that
// does not exist fails the job for good.
func (uc *DispatchNotificationUseCase) HandleEmailJob(ctx context.Context, j *job.Job) error {
	var payload job.EmailPayload
	if err := j.DecodePayload(&payload); err != nil {
		return job.Permanent(err)
	}
	if payload.NotificationID == 0 {
		return job.Permanent(fmt.Errorf("email job %s has no notification id", j.ID()))
	}

	result := uc.Deliver(ctx, payload.NotificationID)
	if result.Success {
		return nil
	}
	if errors.Is(result.Error, ErrNotificationNotFound) || errors.Is(result.Error, user.ErrUserNotFound) {
		return job.Permanent(result.Error)
	}
	return result.Error
}

func (uc *DispatchNotificationUseCase) attempt(ctx context.Context, n *notification.Notification) SendResult {
	log := uc.logger.With(
		"notification_id", n.ID(),
		"user_id", n.UserID(),
		"kind", n.Kind(),
	)

	recipient, err := uc.users.GetByID(ctx, n.UserID())
	if err != nil {
		uc.recordFailure(ctx, n, err)
		return SendResult{Error: err}
	}

	messageID, err := uc.deliverer.Deliver(ctx, n.Kind(), Recipient{
		Email: recipient.Email(),
		Name:  recipient.DisplayName(),
	}, n.Context())
	if err != nil {
		log.Warnw("email delivery failed", "attempt", n.RetryCount()+1, "error", err)
		uc.recordFailure(ctx, n, err)
		return SendResult{Error: err}
	}

	uc.observer.RecordNotification(n.Kind().String(), n.Channel().String(), true)

	if err := n.MarkSent(messageID); err != nil {
		log.Errorw("failed to mark notification sent", "error", err)
		return SendResult{Success: true, ProviderMessageID: messageID}
	}
	// the email is out; a lost status write must not trigger a resend
	if err := uc.notificationRepo.Update(context.WithoutCancel(ctx), n); err != nil {
		log.Errorw("failed to record sent notification", "provider_message_id", messageID, "error", err)
	}

	log.Infow("email sent", "provider_message_id", messageID)
	return SendResult{Success: true, ProviderMessageID: messageID}
}

func (uc *DispatchNotificationUseCase) recordFailure(ctx context.Context, n *notification.Notification, cause error) {
	uc.observer.RecordNotification(n.Kind().String(), n.Channel().String(), false)

	if err := n.MarkFailed(cause.Error()); err != nil {
		uc.logger.Errorw("failed to mark notification failed", "notification_id", n.ID(), "error", err)
		return
	}
	if err := uc.notificationRepo.Update(context.WithoutCancel(ctx), n); err != nil {
		uc.logger.Errorw("failed to record notification failure",
			"notification_id", n.ID(),
			"error", err,
		)
	}
}
