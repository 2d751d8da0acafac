package models

import (
	"time"

	"github.com/orris-inc/subflow/internal/shared/constants"
)

// ProcessedEventModel is the idempotency ledger row. The unique index on
// event_id is the concurrency guard for redelivered provider events.
type ProcessedEventModel struct {
	ID          uint      `gorm:"primarykey"`
	EventID     string    `gorm:"uniqueIndex:uk_event_id;not null;size:255"`
	EventType   string    `gorm:"not null;size:100"`
	Outcome     string    `gorm:"not null;size:30;default:applied"`
	Detail      *string   `gorm:"size:1000"`
	ProcessedAt time.Time `gorm:"not null;index"`
}

func (ProcessedEventModel) TableName() string {
	return constants.TableProcessedEvents
}
