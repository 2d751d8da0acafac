package subscription

import (
	"errors"
	"fmt"
)

var (
	ErrSubscriptionNotFound    = errors.New("subscription not found")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrLiveSubscriptionExists  = errors.New("user already has a live subscription")
	ErrInvalidPeriod           = errors.New("invalid billing period")
	ErrUnknownFact             = errors.New("unknown lifecycle fact")
	ErrConcurrentModification  = errors.New("subscription was modified concurrently")
)

func ErrInvalidTransition(from, to string) error {
	return fmt.Errorf("%w: from %s to %s", ErrInvalidStatusTransition, from, to)
}
