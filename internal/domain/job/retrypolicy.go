package job

import (
	"fmt"
	"time"
)

const jitterFraction = 0.1

// RetryPolicy is the per-queue attempt budget and backoff curve.
type RetryPolicy struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts %d", ErrInvalidPolicy, p.MaxAttempts)
	}
	if p.BackoffBase <= 0 {
		return fmt.Errorf("%w: backoff base %s", ErrInvalidPolicy, p.BackoffBase)
	}
	if p.BackoffCap < p.BackoffBase {
		return fmt.Errorf("%w: backoff cap %s below base %s", ErrInvalidPolicy, p.BackoffCap, p.BackoffBase)
	}
	return nil
}

// Backoff returns min(maxDelay, base*2^(attempt-1)) scaled by a jitter factor.
// jitter is a value in [0,1); 0.5 yields the exact curve, the extremes
// shift it by -10% and +10%.
func Backoff(base, maxDelay time.Duration, attempt int, jitter float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay || delay <= 0 {
			delay = maxDelay
			break
		}
	}
	if delay > maxDelay {
		delay = maxDelay
	}

	factor := 1 + (jitter*2-1)*jitterFraction
	return time.Duration(float64(delay) * factor)
}
