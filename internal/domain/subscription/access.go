package subscription

import (
	"time"

	vo "github.com/orris-inc/subflow/internal/domain/subscription/valueobjects"
)

// HasAccess is the single access rule shared by every content check:
// a live status grants access, and a canceled subscription keeps access
// until its current period ends (grace period). A pending cancel-at-period-end
// flag does not shorten access.
func (s *Subscription) HasAccess(now time.Time) bool {
	return HasAccess(s.status, s.currentPeriodEnd, now)
}

// HasAccess evaluates the access rule for callers that only hold the raw columns.
func HasAccess(status vo.SubscriptionStatus, currentPeriodEnd, now time.Time) bool {
	if status.IsLive() {
		return true
	}
	return status == vo.StatusCanceled && now.Before(currentPeriodEnd)
}

// InGracePeriod reports whether access is granted only through the grace period.
func (s *Subscription) InGracePeriod(now time.Time) bool {
	return s.status == vo.StatusCanceled && now.Before(s.currentPeriodEnd)
}
