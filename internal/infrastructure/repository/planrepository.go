package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/orris-inc/subflow/internal/domain/plan"
	"github.com/orris-inc/subflow/internal/infrastructure/persistence/mappers"
	"github.com/orris-inc/subflow/internal/infrastructure/persistence/models"
	"github.com/orris-inc/subflow/internal/shared/db"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

// PlanRepositoryImpl reads the plan catalog.
type PlanRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

func NewPlanRepository(db *gorm.DB, logger logger.Interface) *PlanRepositoryImpl {
	return &PlanRepositoryImpl{
		db:     db,
		logger: logger,
	}
}

var _ plan.Catalog = (*PlanRepositoryImpl)(nil)

func (r *PlanRepositoryImpl) get(ctx context.Context, query string, arg interface{}) (*plan.Plan, error) {
	var model models.PlanModel
	if err := db.GetTxFromContext(ctx, r.db).Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %v", plan.ErrPlanNotFound, arg)
		}
		r.logger.Errorw("failed to get plan", "query", query, "error", err)
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return mappers.PlanToEntity(&model)
}

func (r *PlanRepositoryImpl) GetByProviderPriceID(ctx context.Context, priceID string) (*plan.Plan, error) {
	return r.get(ctx, "provider_price_id = ?", priceID)
}

func (r *PlanRepositoryImpl) GetByID(ctx context.Context, id uint) (*plan.Plan, error) {
	return r.get(ctx, "id = ?", id)
}

// Create is used by seeding and tests.
func (r *PlanRepositoryImpl) Create(ctx context.Context, p *plan.Plan) (uint, error) {
	model := mappers.PlanToModel(p)
	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		return 0, fmt.Errorf("failed to create plan: %w", err)
	}
	return model.ID, nil
}
