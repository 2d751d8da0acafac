// Package billingevent holds the idempotency ledger of provider events.
package billingevent

import (
	"errors"
	"fmt"
	"time"
)

// Outcome records what handling an event amounted to.
type Outcome string

const (
	OutcomeApplied             Outcome = "applied"
	OutcomeIgnored             Outcome = "ignored"
	OutcomeNeedsReconciliation Outcome = "needs_reconciliation"
)

func (o Outcome) IsValid() bool {
	return o == OutcomeApplied || o == OutcomeIgnored || o == OutcomeNeedsReconciliation
}

var ErrEventIDRequired = errors.New("event ID is required")

// ProcessedEvent is one ledger entry. Its event ID is globally unique.
type ProcessedEvent struct {
	EventID     string
	EventType   string
	Outcome     Outcome
	Detail      string
	ProcessedAt time.Time
}

func NewProcessedEvent(eventID, eventType string, processedAt time.Time) (*ProcessedEvent, error) {
	if eventID == "" {
		return nil, ErrEventIDRequired
	}
	if eventType == "" {
		return nil, fmt.Errorf("event type is required")
	}
	return &ProcessedEvent{
		EventID:     eventID,
		EventType:   eventType,
		Outcome:     OutcomeApplied,
		ProcessedAt: processedAt,
	}, nil
}
