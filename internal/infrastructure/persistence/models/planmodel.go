package models

import (
	"time"

	"github.com/orris-inc/subflow/internal/shared/constants"
)

type PlanModel struct {
	ID              uint   `gorm:"primarykey"`
	Name            string `gorm:"not null;size:100"`
	ProviderPriceID string `gorm:"uniqueIndex;not null;size:100"`
	TierLevel       int    `gorm:"not null;default:0"`
	Interval        string `gorm:"not null;size:10"`
	TrialDays       int    `gorm:"not null;default:0"`
	Active          bool   `gorm:"not null;default:true"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (PlanModel) TableName() string {
	return constants.TablePlans
}
