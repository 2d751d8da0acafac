package subscription

import (
	"context"
	"time"
)

type SubscriptionRepository interface {
	// Create returns ErrLiveSubscriptionExists when the user already holds a live subscription.
	Create(ctx context.Context, subscription *Subscription) error
	// Update is optimistic on the version column and returns ErrConcurrentModification on a lost race.
	Update(ctx context.Context, subscription *Subscription) error
	GetByID(ctx context.Context, id uint) (*Subscription, error)
	GetByProviderSubscriptionID(ctx context.Context, providerSubscriptionID string) (*Subscription, error)
	GetLiveByUserID(ctx context.Context, userID uint) (*Subscription, error)

	// FindExpiryCandidates returns rows still in a pre-expiry status whose period ended at or before now.
	FindExpiryCandidates(ctx context.Context, now time.Time, limit int) ([]*Subscription, error)
	FindRenewalCandidates(ctx context.Context, from, to time.Time, limit int) ([]*Subscription, error)
	FindTrialEndingCandidates(ctx context.Context, from, to time.Time, limit int) ([]*Subscription, error)
	FindArchivalCandidates(ctx context.Context, endedBefore time.Time, limit int) ([]*Subscription, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
}
