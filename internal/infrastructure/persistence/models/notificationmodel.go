package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/orris-inc/subflow/internal/shared/constants"
)

type NotificationModel struct {
	ID                uint    `gorm:"primarykey"`
	SID               string  `gorm:"uniqueIndex;not null;size:50"`
	UserID            uint    `gorm:"not null;index"`
	Kind              string  `gorm:"not null;size:50;index:idx_kind_status,priority:1"`
	Channel           string  `gorm:"not null;size:20"`
	Status            string  `gorm:"not null;size:20;index:idx_kind_status,priority:2"`
	RetryCount        int     `gorm:"not null;default:0"`
	ProviderMessageID *string `gorm:"size:255"`
	LastError         *string `gorm:"type:text"`
	RelatedType       *string `gorm:"size:30;index:idx_related,priority:1"`
	RelatedID         *uint   `gorm:"index:idx_related,priority:2"`
	Context           datatypes.JSON
	SentAt            *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (NotificationModel) TableName() string {
	return constants.TableNotifications
}
