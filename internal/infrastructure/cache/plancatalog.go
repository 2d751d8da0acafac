package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/orris-inc/subflow/internal/domain/plan"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

const (
	defaultPlanCacheSize = 256
	defaultPlanCacheTTL  = 10 * time.Minute
)

type cachedPlan struct {
	plan     *plan.Plan
	cachedAt time.Time
}

// PlanCatalog caches plan lookups in front of another Catalog. Misses are
// not cached, so a plan created after a failed lookup is found on retry.
type PlanCatalog struct {
	next    plan.Catalog
	byPrice *lru.Cache[string, *cachedPlan]
	byID    *lru.Cache[uint, *cachedPlan]
	ttl     time.Duration
	now     func() time.Time
	logger  logger.Interface
}

var _ plan.Catalog = (*PlanCatalog)(nil)

func NewPlanCatalog(next plan.Catalog, size int, ttl time.Duration, log logger.Interface) *PlanCatalog {
	if size <= 0 {
		size = defaultPlanCacheSize
	}
	if ttl <= 0 {
		ttl = defaultPlanCacheTTL
	}

	byPrice, err := lru.New[string, *cachedPlan](size)
	if err != nil {
		log.Errorw("failed to create plan cache, using fallback", "error", err)
		byPrice, _ = lru.New[string, *cachedPlan](defaultPlanCacheSize)
	}
	byID, err := lru.New[uint, *cachedPlan](size)
	if err != nil {
		log.Errorw("failed to create plan cache, using fallback", "error", err)
		byID, _ = lru.New[uint, *cachedPlan](defaultPlanCacheSize)
	}

	return &PlanCatalog{
		next:    next,
		byPrice: byPrice,
		byID:    byID,
		ttl:     ttl,
		now:     time.Now,
		logger:  log,
	}
}

func (c *PlanCatalog) fresh(entry *cachedPlan) bool {
	return c.now().Sub(entry.cachedAt) < c.ttl
}

func (c *PlanCatalog) store(p *plan.Plan) {
	entry := &cachedPlan{plan: p, cachedAt: c.now()}
	c.byPrice.Add(p.ProviderPriceID(), entry)
	c.byID.Add(p.ID(), entry)
}

func (c *PlanCatalog) GetByProviderPriceID(ctx context.Context, priceID string) (*plan.Plan, error) {
	if entry, ok := c.byPrice.Get(priceID); ok && c.fresh(entry) {
		return entry.plan, nil
	}

	p, err := c.next.GetByProviderPriceID(ctx, priceID)
	if err != nil {
		return nil, err
	}
	c.store(p)
	c.logger.Debugw("plan cached", "plan_id", p.ID(), "price_id", priceID)
	return p, nil
}

func (c *PlanCatalog) GetByID(ctx context.Context, id uint) (*plan.Plan, error) {
	if entry, ok := c.byID.Get(id); ok && c.fresh(entry) {
		return entry.plan, nil
	}

	p, err := c.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(p)
	return p, nil
}

// Purge drops every cached plan.
func (c *PlanCatalog) Purge() {
	c.byPrice.Purge()
	c.byID.Purge()
}
