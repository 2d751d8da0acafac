package valueobjects

type SubscriptionStatus string

const (
	StatusTrialing SubscriptionStatus = "trialing"
	StatusActive   SubscriptionStatus = "active"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusUnpaid   SubscriptionStatus = "unpaid"
	StatusCanceled SubscriptionStatus = "canceled"
	StatusExpired  SubscriptionStatus = "expired"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsLive reports whether the status counts toward the one-live-subscription-per-user rule.
func (s SubscriptionStatus) IsLive() bool {
	return s == StatusTrialing || s == StatusActive || s == StatusPastDue
}

func (s SubscriptionStatus) IsTerminal() bool {
	return s == StatusCanceled || s == StatusExpired
}

var transitions = map[SubscriptionStatus][]SubscriptionStatus{
	StatusTrialing: {StatusActive, StatusPastDue, StatusUnpaid, StatusCanceled, StatusExpired},
	StatusActive:   {StatusActive, StatusPastDue, StatusUnpaid, StatusCanceled, StatusExpired},
	StatusPastDue:  {StatusActive, StatusUnpaid, StatusCanceled, StatusExpired},
	StatusUnpaid:   {StatusActive, StatusCanceled, StatusExpired},
	StatusCanceled: {StatusExpired},
	StatusExpired:  {},
}

func (s SubscriptionStatus) CanTransitionTo(target SubscriptionStatus) bool {
	allowed, exists := transitions[s]
	if !exists {
		return false
	}

	for _, allowedStatus := range allowed {
		if allowedStatus == target {
			return true
		}
	}
	return false
}

var ValidStatuses = map[SubscriptionStatus]bool{
	StatusTrialing: true,
	StatusActive:   true,
	StatusPastDue:  true,
	StatusUnpaid:   true,
	StatusCanceled: true,
	StatusExpired:  true,
}

// LiveStatuses lists the statuses guarded by the per-user uniqueness constraint.
var LiveStatuses = []SubscriptionStatus{StatusTrialing, StatusActive, StatusPastDue}

// FromProviderStatus maps a billing provider status onto a local status.
// The second return value is false when the provider status carries no
// local status change (incomplete, paused or unknown values).
func FromProviderStatus(providerStatus string) (SubscriptionStatus, bool) {
	switch providerStatus {
	case "trialing":
		return StatusTrialing, true
	case "active":
		return StatusActive, true
	case "past_due":
		return StatusPastDue, true
	case "unpaid":
		return StatusUnpaid, true
	case "canceled":
		return StatusCanceled, true
	case "incomplete_expired":
		return StatusExpired, true
	default:
		return "", false
	}
}
