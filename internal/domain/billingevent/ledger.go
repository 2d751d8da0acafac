package billingevent

import (
	"context"
	"time"
)

// Ledger is the dedupe gate for inbound provider events.
//
// TryClaim inserts the ledger row through the transaction carried by ctx, so
// the claim commits or rolls back together with the state change it guards.
// A unique-key violation is reported as claimed == false with a nil error.
type Ledger interface {
	TryClaim(ctx context.Context, eventID, eventType string) (claimed bool, err error)
	Exists(ctx context.Context, eventID string) (bool, error)
	MarkOutcome(ctx context.Context, eventID string, outcome Outcome, detail string) error
	Get(ctx context.Context, eventID string) (*ProcessedEvent, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
