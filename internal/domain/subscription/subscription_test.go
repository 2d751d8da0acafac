package subscription

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vo "github.com/orris-inc/subflow/internal/domain/subscription/valueobjects"
)

// --- helpers ---

func newParams() NewSubscriptionParams {
	start := time.Now().UTC().Truncate(time.Second)
	return NewSubscriptionParams{
		UserID:                 1,
		PlanID:                 2,
		ProviderSubscriptionID: "sub_provider_1",
		ProviderCustomerID:     "cus_1",
		Status:                 vo.StatusActive,
		CurrentPeriodStart:     start,
		CurrentPeriodEnd:       start.AddDate(0, 1, 0),
	}
}

func newActiveSubscription(t *testing.T) *Subscription {
	t.Helper()
	sub, err := NewSubscription(newParams())
	require.NoError(t, err)
	return sub
}

func reconstruct(t *testing.T, status vo.SubscriptionStatus, periodEnd time.Time) *Subscription {
	t.Helper()
	sub, err := ReconstructSubscription(ReconstructParams{
		ID:                     7,
		SID:                    "subscr_test",
		UserID:                 1,
		PlanID:                 2,
		ProviderSubscriptionID: "sub_provider_7",
		Status:                 status,
		CurrentPeriodStart:     periodEnd.AddDate(0, -1, 0),
		CurrentPeriodEnd:       periodEnd,
		Version:                3,
	})
	require.NoError(t, err)
	return sub
}

// --- tests ---

func TestNewSubscription(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		sub := newActiveSubscription(t)
		assert.True(t, strings.HasPrefix(sub.SID(), "subscr_"))
		assert.Equal(t, vo.StatusActive, sub.Status())
		assert.Equal(t, 1, sub.Version())
		assert.Zero(t, sub.ID())
	})

	t.Run("rejects missing references", func(t *testing.T) {
		p := newParams()
		p.UserID = 0
		_, err := NewSubscription(p)
		assert.Error(t, err)

		p = newParams()
		p.ProviderSubscriptionID = ""
		_, err = NewSubscription(p)
		assert.Error(t, err)
	})

	t.Run("rejects non-initial status", func(t *testing.T) {
		p := newParams()
		p.Status = vo.StatusPastDue
		_, err := NewSubscription(p)
		assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	})

	t.Run("rejects inverted period", func(t *testing.T) {
		p := newParams()
		p.CurrentPeriodEnd = p.CurrentPeriodStart.Add(-time.Hour)
		_, err := NewSubscription(p)
		assert.ErrorIs(t, err, ErrInvalidPeriod)
	})
}

func TestReconstructSubscription_InvalidStatus(t *testing.T) {
	_, err := ReconstructSubscription(ReconstructParams{ID: 1, UserID: 1, Status: "cancelled"})
	assert.Error(t, err)
}

func TestSubscription_SyncPeriod(t *testing.T) {
	sub := newActiveSubscription(t)
	start := sub.CurrentPeriodEnd()
	end := start.AddDate(0, 1, 0)

	require.NoError(t, sub.SyncPeriod(start, end))
	assert.Equal(t, end, sub.CurrentPeriodEnd())

	t.Run("zero end keeps the stored period", func(t *testing.T) {
		require.NoError(t, sub.SyncPeriod(time.Time{}, time.Time{}))
		assert.Equal(t, end, sub.CurrentPeriodEnd())
	})

	t.Run("inverted period is rejected", func(t *testing.T) {
		assert.ErrorIs(t, sub.SyncPeriod(end, start), ErrInvalidPeriod)
	})
}

func TestSubscription_Reminders(t *testing.T) {
	sub := newActiveSubscription(t)
	assert.True(t, sub.NeedsRenewalReminder())

	sub.MarkRenewalReminded()
	assert.False(t, sub.NeedsRenewalReminder())

	require.NoError(t, sub.SyncPeriod(sub.CurrentPeriodEnd(), sub.CurrentPeriodEnd().AddDate(0, 1, 0)))
	assert.True(t, sub.NeedsRenewalReminder(), "a new period needs a new reminder")

	assert.False(t, sub.NeedsTrialReminder(), "no trial, no reminder")
	trialEnd := time.Now().UTC().Add(24 * time.Hour)
	sub.SyncTrial(nil, &trialEnd)
	assert.True(t, sub.NeedsTrialReminder())
	sub.MarkTrialReminded()
	assert.False(t, sub.NeedsTrialReminder())
}

func TestSubscription_Archive(t *testing.T) {
	t.Run("live subscription cannot be archived", func(t *testing.T) {
		sub := reconstruct(t, vo.StatusActive, time.Now())
		assert.Error(t, sub.Archive(time.Now()))
	})

	t.Run("expired subscription is archived once", func(t *testing.T) {
		sub := reconstruct(t, vo.StatusExpired, time.Now().AddDate(0, -4, 0))
		first := time.Now().UTC()
		require.NoError(t, sub.Archive(first))
		require.NoError(t, sub.Archive(first.Add(time.Hour)))
		require.NotNil(t, sub.ArchivedAt())
		assert.Equal(t, first, *sub.ArchivedAt())
	})
}

func TestHasAccess(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name      string
		status    vo.SubscriptionStatus
		periodEnd time.Time
		want      bool
	}{
		{"trialing", vo.StatusTrialing, future, true},
		{"active", vo.StatusActive, future, true},
		{"past due keeps access", vo.StatusPastDue, past, true},
		{"unpaid", vo.StatusUnpaid, future, false},
		{"canceled within period", vo.StatusCanceled, future, true},
		{"canceled after period", vo.StatusCanceled, past, false},
		{"expired", vo.StatusExpired, future, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := reconstruct(t, tt.status, tt.periodEnd)
			assert.Equal(t, tt.want, sub.HasAccess(now))
		})
	}

	t.Run("cancel at period end keeps access until the end", func(t *testing.T) {
		sub := reconstruct(t, vo.StatusActive, future)
		sub.SetCancelAtPeriodEnd(true, nil)
		assert.True(t, sub.HasAccess(now))
		assert.False(t, sub.InGracePeriod(now))
	})
}
