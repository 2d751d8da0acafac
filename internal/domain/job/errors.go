package job

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrUnknownType   = errors.New("unknown job type")
	ErrNotRunning    = errors.New("job is not running")
	ErrLostLock      = errors.New("job lock lost to another worker")
	ErrInvalidPolicy = errors.New("invalid retry policy")
	// ErrPermanent marks a handler failure that no retry can fix.
	ErrPermanent = errors.New("permanent job failure")
)

// Permanent wraps err so the worker fails the job without rescheduling it.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}
