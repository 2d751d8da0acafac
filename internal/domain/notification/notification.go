package notification

import (
	"fmt"
	"time"

	vo "github.com/orris-inc/subflow/internal/domain/notification/valueobjects"
	"github.com/orris-inc/subflow/internal/shared/biztime"
	"github.com/orris-inc/subflow/internal/shared/id"
)

type RelatedType string

const (
	RelatedSubscription RelatedType = "subscription"
	RelatedPayment      RelatedType = "payment"
)

// RelatedEntity is a weak back reference to the record that caused a
// notification. It is kept for audit only.
type RelatedEntity struct {
	Type RelatedType
	ID   uint
}

const maxErrorLength = 1000

// Notification records every delivery attempt of one user-facing message.
type Notification struct {
	id                uint
	sid               string
	userID            uint
	kind              vo.Kind
	channel           vo.Channel
	status            vo.Status
	retryCount        int
	providerMessageID *string
	lastError         *string
	related           *RelatedEntity
	context           map[string]any
	sentAt            *time.Time
	createdAt         time.Time
	updatedAt         time.Time
}

func NewNotification(userID uint, kind vo.Kind, channel vo.Channel, related *RelatedEntity, context map[string]any) (*Notification, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user ID is required")
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKind, kind)
	}
	if !channel.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidChannel, channel)
	}
	if context == nil {
		context = make(map[string]any)
	}

	sid, err := id.NewNotificationSID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate notification SID: %w", err)
	}

	now := biztime.NowUTC()
	return &Notification{
		sid:       sid,
		userID:    userID,
		kind:      kind,
		channel:   channel,
		status:    vo.StatusPending,
		related:   related,
		context:   context,
		createdAt: now,
		updatedAt: now,
	}, nil
}

type ReconstructParams struct {
	ID                uint
	SID               string
	UserID            uint
	Kind              vo.Kind
	Channel           vo.Channel
	Status            vo.Status
	RetryCount        int
	ProviderMessageID *string
	LastError         *string
	Related           *RelatedEntity
	Context           map[string]any
	SentAt            *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func ReconstructNotification(p ReconstructParams) (*Notification, error) {
	if p.ID == 0 {
		return nil, fmt.Errorf("notification ID cannot be zero")
	}
	if !p.Status.IsValid() {
		return nil, fmt.Errorf("invalid notification status: %s", p.Status)
	}
	if p.Context == nil {
		p.Context = make(map[string]any)
	}

	return &Notification{
		id:                p.ID,
		sid:               p.SID,
		userID:            p.UserID,
		kind:              p.Kind,
		channel:           p.Channel,
		status:            p.Status,
		retryCount:        p.RetryCount,
		providerMessageID: p.ProviderMessageID,
		lastError:         p.LastError,
		related:           p.Related,
		context:           p.Context,
		sentAt:            p.SentAt,
		createdAt:         p.CreatedAt,
		updatedAt:         p.UpdatedAt,
	}, nil
}

// MarkSent records a successful hand-off to the email provider.
func (n *Notification) MarkSent(providerMessageID string) error {
	if !n.status.CanAttempt() {
		return fmt.Errorf("%w: status %s", ErrAlreadyDelivered, n.status)
	}
	now := biztime.NowUTC()
	n.status = vo.StatusSent
	if providerMessageID != "" {
		n.providerMessageID = &providerMessageID
	}
	n.lastError = nil
	n.sentAt = &now
	n.updatedAt = now
	return nil
}

// MarkDelivered is used for in-app notifications and delivery receipts.
func (n *Notification) MarkDelivered() error {
	if n.status == vo.StatusDelivered {
		return nil
	}
	now := biztime.NowUTC()
	if n.sentAt == nil {
		n.sentAt = &now
	}
	n.status = vo.StatusDelivered
	n.lastError = nil
	n.updatedAt = now
	return nil
}

// MarkFailed records a failed attempt and bumps the retry counter.
func (n *Notification) MarkFailed(reason string) error {
	if !n.status.CanAttempt() {
		return fmt.Errorf("%w: status %s", ErrAlreadyDelivered, n.status)
	}
	if len(reason) > maxErrorLength {
		reason = reason[:maxErrorLength]
	}
	n.status = vo.StatusFailed
	n.retryCount++
	n.lastError = &reason
	n.updatedAt = biztime.NowUTC()
	return nil
}

func (n *Notification) SetID(id uint) error {
	if n.id != 0 {
		return fmt.Errorf("notification ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("notification ID cannot be zero")
	}
	n.id = id
	return nil
}

func (n *Notification) ID() uint {
	return n.id
}

func (n *Notification) SID() string {
	return n.sid
}

func (n *Notification) UserID() uint {
	return n.userID
}

func (n *Notification) Kind() vo.Kind {
	return n.kind
}

func (n *Notification) Channel() vo.Channel {
	return n.channel
}

func (n *Notification) Status() vo.Status {
	return n.status
}

func (n *Notification) RetryCount() int {
	return n.retryCount
}

func (n *Notification) ProviderMessageID() *string {
	return n.providerMessageID
}

func (n *Notification) LastError() *string {
	return n.lastError
}

func (n *Notification) Related() *RelatedEntity {
	return n.related
}

func (n *Notification) Context() map[string]any {
	return n.context
}

func (n *Notification) SentAt() *time.Time {
	return n.sentAt
}

func (n *Notification) CreatedAt() time.Time {
	return n.createdAt
}

func (n *Notification) UpdatedAt() time.Time {
	return n.updatedAt
}
