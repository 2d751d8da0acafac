package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/orris-inc/subflow/internal/domain/subscription"
	vo "github.com/orris-inc/subflow/internal/domain/subscription/valueobjects"
	"github.com/orris-inc/subflow/internal/infrastructure/database/dbtest"
	"github.com/orris-inc/subflow/internal/shared/db"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

type fixture struct {
	db            *gorm.DB
	tm            *db.TransactionManager
	ledger        *ProcessedEventRepositoryImpl
	subscriptions *SubscriptionRepositoryImpl
	payments      *PaymentRepositoryImpl
	notifications *NotificationRepositoryImpl
	jobs          *JobRepositoryImpl
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := dbtest.Open(t)
	log := logger.NewNopLogger()
	return &fixture{
		db:            gdb,
		tm:            db.NewTransactionManager(gdb),
		ledger:        NewProcessedEventRepository(gdb, log),
		subscriptions: NewSubscriptionRepository(gdb, log),
		payments:      NewPaymentRepository(gdb, log),
		notifications: NewNotificationRepository(gdb, log),
		jobs:          NewJobRepository(gdb, log),
	}
}

func baseTime() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (f *fixture) createSubscription(t *testing.T, userID uint, providerID string, status vo.SubscriptionStatus, periodEnd time.Time) *subscription.Subscription {
	t.Helper()
	sub, err := subscription.NewSubscription(subscription.NewSubscriptionParams{
		UserID:                 userID,
		PlanID:                 1,
		ProviderSubscriptionID: providerID,
		ProviderCustomerID:     "cus_" + providerID,
		Status:                 status,
		CurrentPeriodStart:     periodEnd.AddDate(0, -1, 0),
		CurrentPeriodEnd:       periodEnd,
	})
	require.NoError(t, err)
	require.NoError(t, f.subscriptions.Create(context.Background(), sub))
	return sub
}
