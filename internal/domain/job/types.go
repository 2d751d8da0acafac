package job

import "fmt"

type Queue string

const (
	QueueMaintenance Queue = "maintenance"
	QueueEmail       Queue = "email"
)

func (q Queue) String() string {
	return string(q)
}

func (q Queue) IsValid() bool {
	return q == QueueMaintenance || q == QueueEmail
}

// Type is the typed payload discriminator of a job.
type Type string

// Maintenance job types.
const (
	TypeCheckExpiry          Type = "check_expiry"
	TypeSendRenewalReminders Type = "send_renewal_reminders"
	TypeProcessTrialEnding   Type = "process_trial_ending"
	TypeCleanupExpired       Type = "cleanup_expired"
)

// Email job types share their names with notification kinds.
const (
	TypeEmailWelcome                  Type = "welcome"
	TypeEmailPasswordReset            Type = "password_reset"
	TypeEmailSubscriptionConfirmation Type = "subscription_confirmation"
	TypeEmailPaymentFailed            Type = "payment_failed"
	TypeEmailRenewalReminder          Type = "renewal_reminder"
	TypeEmailTrialEnding              Type = "trial_ending"
	TypeEmailSubscriptionCanceled     Type = "subscription_canceled"
)

var queueOf = map[Type]Queue{
	TypeCheckExpiry:                   QueueMaintenance,
	TypeSendRenewalReminders:          QueueMaintenance,
	TypeProcessTrialEnding:            QueueMaintenance,
	TypeCleanupExpired:                QueueMaintenance,
	TypeEmailWelcome:                  QueueEmail,
	TypeEmailPasswordReset:            QueueEmail,
	TypeEmailSubscriptionConfirmation: QueueEmail,
	TypeEmailPaymentFailed:            QueueEmail,
	TypeEmailRenewalReminder:          QueueEmail,
	TypeEmailTrialEnding:              QueueEmail,
	TypeEmailSubscriptionCanceled:     QueueEmail,
}

func (t Type) String() string {
	return string(t)
}

// Queue returns the queue a job type runs on.
func (t Type) Queue() (Queue, error) {
	q, ok := queueOf[t]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownType, t)
	}
	return q, nil
}

// TypesOf lists the job types routed to q.
func TypesOf(q Queue) []Type {
	var types []Type
	for t, tq := range queueOf {
		if tq == q {
			types = append(types, t)
		}
	}
	return types
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}
