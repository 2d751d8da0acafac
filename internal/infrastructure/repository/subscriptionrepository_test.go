package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/subflow/internal/domain/subscription"
	vo "github.com/orris-inc/subflow/internal/domain/subscription/valueobjects"
)

func TestSubscriptionRepository_CreateAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	end := baseTime().AddDate(0, 1, 0)

	sub := f.createSubscription(t, 1, "sub_a", vo.StatusActive, end)
	require.NotZero(t, sub.ID())

	got, err := f.subscriptions.GetByProviderSubscriptionID(ctx, "sub_a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sub.SID(), got.SID())
	assert.Equal(t, vo.StatusActive, got.Status())
	assert.True(t, end.Equal(got.CurrentPeriodEnd()))
	assert.Equal(t, 1, got.Version())

	live, err := f.subscriptions.GetLiveByUserID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, live)
	assert.Equal(t, sub.ID(), live.ID())

	missing, err := f.subscriptions.GetByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSubscriptionRepository_OneLiveSubscriptionPerUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	end := baseTime().AddDate(0, 1, 0)

	f.createSubscription(t, 1, "sub_a", vo.StatusActive, end)

	second, err := subscription.NewSubscription(subscription.NewSubscriptionParams{
		UserID:                 1,
		PlanID:                 1,
		ProviderSubscriptionID: "sub_b",
		Status:                 vo.StatusTrialing,
		CurrentPeriodStart:     baseTime(),
		CurrentPeriodEnd:       end,
	})
	require.NoError(t, err)
	assert.ErrorIs(t, f.subscriptions.Create(ctx, second), subscription.ErrLiveSubscriptionExists)

	dup, err := subscription.NewSubscription(subscription.NewSubscriptionParams{
		UserID:                 2,
		PlanID:                 1,
		ProviderSubscriptionID: "sub_a",
		Status:                 vo.StatusActive,
		CurrentPeriodStart:     baseTime(),
		CurrentPeriodEnd:       end,
	})
	require.NoError(t, err)
	err = f.subscriptions.Create(ctx, dup)
	require.Error(t, err)
	assert.NotErrorIs(t, err, subscription.ErrLiveSubscriptionExists)
}

func TestSubscriptionRepository_TerminalReleasesLiveSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	end := baseTime().AddDate(0, 1, 0)

	first := f.createSubscription(t, 1, "sub_a", vo.StatusActive, end)
	_, err := first.Apply(subscription.FactProviderDeleted{}, baseTime())
	require.NoError(t, err)
	require.NoError(t, f.subscriptions.Update(ctx, first))

	f.createSubscription(t, 1, "sub_b", vo.StatusActive, end)

	live, err := f.subscriptions.GetLiveByUserID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, live)
	assert.Equal(t, "sub_b", live.ProviderSubscriptionID())
}

func TestSubscriptionRepository_OptimisticUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createSubscription(t, 1, "sub_a", vo.StatusActive, baseTime().AddDate(0, 1, 0))

	a, err := f.subscriptions.GetByProviderSubscriptionID(ctx, "sub_a")
	require.NoError(t, err)
	b, err := f.subscriptions.GetByProviderSubscriptionID(ctx, "sub_a")
	require.NoError(t, err)

	_, err = a.Apply(subscription.FactInvoiceFailed{}, baseTime())
	require.NoError(t, err)
	require.NoError(t, f.subscriptions.Update(ctx, a))
	assert.Equal(t, 2, a.Version())

	b.SetCancelAtPeriodEnd(true, nil)
	assert.ErrorIs(t, f.subscriptions.Update(ctx, b), subscription.ErrConcurrentModification)

	stored, err := f.subscriptions.GetByID(ctx, a.ID())
	require.NoError(t, err)
	assert.Equal(t, vo.StatusPastDue, stored.Status())
	assert.False(t, stored.CancelAtPeriodEnd())
}

func TestSubscriptionRepository_FindExpiryCandidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := baseTime()
	past := now.Add(-time.Hour)

	canceled := f.createSubscription(t, 1, "sub_canceled", vo.StatusActive, past)
	_, err := canceled.Apply(subscription.FactProviderUpdated{Status: "canceled"}, now)
	require.NoError(t, err)
	require.NoError(t, f.subscriptions.Update(ctx, canceled))

	cancelling := f.createSubscription(t, 2, "sub_cancelling", vo.StatusActive, past)
	cancelling.SetCancelAtPeriodEnd(true, nil)
	require.NoError(t, f.subscriptions.Update(ctx, cancelling))

	f.createSubscription(t, 3, "sub_renewing", vo.StatusActive, past)

	future := f.createSubscription(t, 4, "sub_future", vo.StatusActive, now.Add(time.Hour))
	future.SetCancelAtPeriodEnd(true, nil)
	require.NoError(t, f.subscriptions.Update(ctx, future))

	candidates, err := f.subscriptions.FindExpiryCandidates(ctx, now, 100)
	require.NoError(t, err)

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ProviderSubscriptionID())
	}
	assert.ElementsMatch(t, []string{"sub_canceled", "sub_cancelling"}, ids)

	limited, err := f.subscriptions.FindExpiryCandidates(ctx, now, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSubscriptionRepository_FindRenewalCandidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := baseTime()

	due := f.createSubscription(t, 1, "sub_due", vo.StatusActive, now.Add(3*24*time.Hour))
	f.createSubscription(t, 2, "sub_later", vo.StatusActive, now.Add(30*24*time.Hour))

	candidates, err := f.subscriptions.FindRenewalCandidates(ctx, now, now.Add(7*24*time.Hour), 100)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, due.ID(), candidates[0].ID())

	due.MarkRenewalReminded()
	require.NoError(t, f.subscriptions.Update(ctx, due))

	candidates, err = f.subscriptions.FindRenewalCandidates(ctx, now, now.Add(7*24*time.Hour), 100)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestSubscriptionRepository_FindArchivalCandidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := baseTime()

	old := f.createSubscription(t, 1, "sub_old", vo.StatusActive, now.AddDate(0, -3, 0))
	_, err := old.Apply(subscription.FactProviderDeleted{}, now)
	require.NoError(t, err)
	require.NoError(t, f.subscriptions.Update(ctx, old))

	f.createSubscription(t, 2, "sub_live", vo.StatusActive, now.AddDate(0, -3, 0))

	candidates, err := f.subscriptions.FindArchivalCandidates(ctx, now.AddDate(0, -1, 0), 100)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	require.NoError(t, candidates[0].Archive(now))
	require.NoError(t, f.subscriptions.Update(ctx, candidates[0]))

	candidates, err = f.subscriptions.FindArchivalCandidates(ctx, now.AddDate(0, -1, 0), 100)
	require.NoError(t, err)
	assert.Empty(t, candidates)

	count, err := f.subscriptions.CountByStatus(ctx, vo.StatusExpired.String())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
