// Package plan is the catalog of purchasable plans keyed by provider price.
package plan

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrPlanNotFound    = errors.New("plan not found")
	ErrInvalidInterval = errors.New("invalid billing interval")
)

type Interval string

const (
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

func (i Interval) IsValid() bool {
	return i == IntervalMonth || i == IntervalYear
}

// Plan maps a provider price to a content tier.
type Plan struct {
	id              uint
	name            string
	providerPriceID string
	tierLevel       int
	interval        Interval
	trialDays       int
	active          bool
}

func NewPlan(id uint, name, providerPriceID string, tierLevel int, interval Interval, trialDays int, active bool) (*Plan, error) {
	if providerPriceID == "" {
		return nil, fmt.Errorf("provider price ID is required")
	}
	if !interval.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}
	if tierLevel < 0 {
		return nil, fmt.Errorf("tier level must not be negative")
	}
	if trialDays < 0 {
		return nil, fmt.Errorf("trial days must not be negative")
	}
	return &Plan{
		id:              id,
		name:            name,
		providerPriceID: providerPriceID,
		tierLevel:       tierLevel,
		interval:        interval,
		trialDays:       trialDays,
		active:          active,
	}, nil
}

func (p *Plan) ID() uint {
	return p.id
}

func (p *Plan) Name() string {
	return p.name
}

func (p *Plan) ProviderPriceID() string {
	return p.providerPriceID
}

// TierLevel is the ordered content tier; content requiring tier N is open to plans with tier >= N.
func (p *Plan) TierLevel() int {
	return p.tierLevel
}

func (p *Plan) Interval() Interval {
	return p.interval
}

func (p *Plan) TrialDays() int {
	return p.trialDays
}

func (p *Plan) HasTrial() bool {
	return p.trialDays > 0
}

func (p *Plan) IsActive() bool {
	return p.active
}

// GrantsTier reports whether the plan unlocks content requiring minTier.
func (p *Plan) GrantsTier(minTier int) bool {
	return p.tierLevel >= minTier
}

// Catalog resolves provider prices to plans. Lookups return ErrPlanNotFound
// for prices the catalog does not know.
type Catalog interface {
	GetByProviderPriceID(ctx context.Context, priceID string) (*Plan, error)
	GetByID(ctx context.Context, id uint) (*Plan, error)
}
