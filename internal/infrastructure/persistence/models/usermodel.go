package models

import (
	"time"

	"github.com/orris-inc/subflow/internal/shared/constants"
)

// UserModel is the subset of the account table the billing core reads.
type UserModel struct {
	ID        uint   `gorm:"primarykey"`
	Email     string `gorm:"uniqueIndex;not null;size:255"`
	Name      string `gorm:"size:100"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (UserModel) TableName() string {
	return constants.TableUsers
}
