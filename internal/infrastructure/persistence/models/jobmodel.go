package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/orris-inc/subflow/internal/shared/constants"
)

type JobModel struct {
	ID            string `gorm:"primarykey;size:36"`
	Queue         string `gorm:"not null;size:30;index:idx_queue_due,priority:1"`
	Type          string `gorm:"not null;size:50"`
	TargetID      *uint
	BatchSize     *int
	Payload       datatypes.JSON
	Status        string    `gorm:"not null;size:20;index:idx_queue_due,priority:2"`
	Attempts      int       `gorm:"not null;default:0"`
	MaxAttempts   int       `gorm:"not null"`
	BackoffBaseMs int64     `gorm:"not null"`
	BackoffCapMs  int64     `gorm:"not null"`
	NextRunAt     time.Time `gorm:"not null;index:idx_queue_due,priority:3"`
	LockedUntil   *time.Time
	LastError     *string `gorm:"type:text"`
	ScheduleID    *string `gorm:"size:100;index:idx_schedule_status,priority:1"`
	CompletedAt   *time.Time
	FailedAt      *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (JobModel) TableName() string {
	return constants.TableJobs
}
