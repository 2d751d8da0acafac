package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/orris-inc/subflow/internal/shared/constants"
)

// SubscriptionModel represents the database persistence model for subscriptions
// This is the anti-corruption layer between domain and database
type SubscriptionModel struct {
	ID                     uint      `gorm:"primarykey"`
	SID                    string    `gorm:"uniqueIndex;not null;size:50;comment:Stripe-style ID: subscr_xxx"`
	UserID                 uint      `gorm:"not null;index:idx_user_subscription"`
	LiveUserID             *uint     `gorm:"uniqueIndex:uk_live_user;comment:equals user_id while status is trialing, active or past_due"`
	PlanID                 uint      `gorm:"not null;index:idx_plan_subscription"`
	ProviderSubscriptionID string    `gorm:"uniqueIndex;not null;size:100"`
	ProviderCustomerID     string    `gorm:"size:100;index:idx_provider_customer"`
	Status                 string    `gorm:"not null;size:20;index:idx_status_period,priority:1"`
	CurrentPeriodStart     time.Time `gorm:"not null"`
	CurrentPeriodEnd       time.Time `gorm:"not null;index:idx_status_period,priority:2"`
	TrialStart             *time.Time
	TrialEnd               *time.Time `gorm:"index:idx_trial_end"`
	CancelAtPeriodEnd      bool       `gorm:"not null;default:false"`
	CanceledAt             *time.Time
	CancelReason           *string `gorm:"size:500"`
	PMBrand                *string `gorm:"column:pm_brand;size:30"`
	PMLast4                *string `gorm:"column:pm_last4;size:4"`
	PMExpMonth             *int    `gorm:"column:pm_exp_month"`
	PMExpYear              *int    `gorm:"column:pm_exp_year"`
	ProrationCredit        *int64
	RenewalRemindedFor     *time.Time
	TrialRemindedFor       *time.Time
	ArchivedAt             *time.Time `gorm:"index:idx_archived_at"`
	Version                int        `gorm:"not null;default:1"`
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// TableName specifies the table name for GORM
func (SubscriptionModel) TableName() string {
	return constants.TableSubscriptions
}

// BeforeCreate hook for GORM
func (s *SubscriptionModel) BeforeCreate(tx *gorm.DB) error {
	if s.Version == 0 {
		s.Version = 1
	}
	return nil
}
