package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/orris-inc/subflow/internal/domain/subscription"
	vo "github.com/orris-inc/subflow/internal/domain/subscription/valueobjects"
	"github.com/orris-inc/subflow/internal/infrastructure/persistence/mappers"
	"github.com/orris-inc/subflow/internal/infrastructure/persistence/models"
	"github.com/orris-inc/subflow/internal/shared/db"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

type SubscriptionRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.SubscriptionMapper
	logger logger.Interface
}

func NewSubscriptionRepository(db *gorm.DB, logger logger.Interface) *SubscriptionRepositoryImpl {
	return &SubscriptionRepositoryImpl{
		db:     db,
		mapper: mappers.NewSubscriptionMapper(),
		logger: logger,
	}
}

var _ subscription.SubscriptionRepository = (*SubscriptionRepositoryImpl)(nil)

func liveStatuses() []string {
	statuses := make([]string, 0, len(vo.LiveStatuses))
	for _, s := range vo.LiveStatuses {
		statuses = append(statuses, s.String())
	}
	return statuses
}

func (r *SubscriptionRepositoryImpl) Create(ctx context.Context, subscriptionEntity *subscription.Subscription) error {
	model, err := r.mapper.ToModel(subscriptionEntity)
	if err != nil {
		r.logger.Errorw("failed to map subscription entity to model", "error", err)
		return fmt.Errorf("failed to map subscription entity: %w", err)
	}

	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Create(model).Error; err != nil {
		if db.IsDuplicateKeyError(err) {
			return r.classifyDuplicate(ctx, model, err)
		}
		r.logger.Errorw("failed to create subscription in database", "error", err)
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	if err := subscriptionEntity.SetID(model.ID); err != nil {
		r.logger.Errorw("failed to set subscription ID", "error", err)
		return fmt.Errorf("failed to set subscription ID: %w", err)
	}

	r.logger.Infow("subscription created successfully",
		"id", model.ID,
		"user_id", model.UserID,
		"plan_id", model.PlanID,
		"status", model.Status,
	)
	return nil
}

// classifyDuplicate tells the live-subscription conflict apart from a provider
// subscription that is already stored.
func (r *SubscriptionRepositoryImpl) classifyDuplicate(ctx context.Context, model *models.SubscriptionModel, cause error) error {
	var count int64
	err := db.GetTxFromContext(ctx, r.db).
		Model(&models.SubscriptionModel{}).
		Where("provider_subscription_id = ?", model.ProviderSubscriptionID).
		Count(&count).Error
	if err == nil && count > 0 {
		return fmt.Errorf("subscription %s already stored: %w", model.ProviderSubscriptionID, cause)
	}

	r.logger.Warnw("user already holds a live subscription", "user_id", model.UserID)
	return fmt.Errorf("%w: user %d", subscription.ErrLiveSubscriptionExists, model.UserID)
}

// Update writes the aggregate back if nobody else changed it since it was read.
func (r *SubscriptionRepositoryImpl) Update(ctx context.Context, subscriptionEntity *subscription.Subscription) error {
	model, err := r.mapper.ToModel(subscriptionEntity)
	if err != nil {
		r.logger.Errorw("failed to map subscription entity to model", "id", subscriptionEntity.ID(), "error", err)
		return fmt.Errorf("failed to map subscription entity: %w", err)
	}

	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.SubscriptionModel{}).
		Where("id = ? AND version = ?", model.ID, model.Version).
		Updates(map[string]interface{}{
			"plan_id":              model.PlanID,
			"live_user_id":         model.LiveUserID,
			"status":               model.Status,
			"current_period_start": model.CurrentPeriodStart,
			"current_period_end":   model.CurrentPeriodEnd,
			"trial_start":          model.TrialStart,
			"trial_end":            model.TrialEnd,
			"cancel_at_period_end": model.CancelAtPeriodEnd,
			"canceled_at":          model.CanceledAt,
			"cancel_reason":        model.CancelReason,
			"pm_brand":             model.PMBrand,
			"pm_last4":             model.PMLast4,
			"pm_exp_month":         model.PMExpMonth,
			"pm_exp_year":          model.PMExpYear,
			"proration_credit":     model.ProrationCredit,
			"renewal_reminded_for": model.RenewalRemindedFor,
			"trial_reminded_for":   model.TrialRemindedFor,
			"archived_at":          model.ArchivedAt,
			"version":              gorm.Expr("version + 1"),
			"updated_at":           model.UpdatedAt,
		})

	if result.Error != nil {
		if db.IsDuplicateKeyError(result.Error) {
			return fmt.Errorf("%w: user %d", subscription.ErrLiveSubscriptionExists, model.UserID)
		}
		r.logger.Errorw("failed to update subscription", "id", model.ID, "error", result.Error)
		return fmt.Errorf("failed to update subscription: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		r.logger.Warnw("subscription version conflict", "id", model.ID, "version", model.Version)
		return fmt.Errorf("%w: id %d version %d", subscription.ErrConcurrentModification, model.ID, model.Version)
	}

	subscriptionEntity.IncrementVersion()
	r.logger.Debugw("subscription updated", "id", model.ID, "status", model.Status)
	return nil
}

func (r *SubscriptionRepositoryImpl) first(ctx context.Context, query string, args ...interface{}) (*subscription.Subscription, error) {
	var model models.SubscriptionModel
	if err := db.GetTxFromContext(ctx, r.db).Where(query, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Errorw("failed to get subscription", "query", query, "error", err)
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	entity, err := r.mapper.ToEntity(&model)
	if err != nil {
		r.logger.Errorw("failed to map subscription model to entity", "id", model.ID, "error", err)
		return nil, fmt.Errorf("failed to map subscription: %w", err)
	}
	return entity, nil
}

func (r *SubscriptionRepositoryImpl) GetByID(ctx context.Context, id uint) (*subscription.Subscription, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *SubscriptionRepositoryImpl) GetByProviderSubscriptionID(ctx context.Context, providerSubscriptionID string) (*subscription.Subscription, error) {
	return r.first(ctx, "provider_subscription_id = ?", providerSubscriptionID)
}

func (r *SubscriptionRepositoryImpl) GetLiveByUserID(ctx context.Context, userID uint) (*subscription.Subscription, error) {
	return r.first(ctx, "live_user_id = ?", userID)
}

func (r *SubscriptionRepositoryImpl) find(ctx context.Context, what string, scopes ...func(*gorm.DB) *gorm.DB) ([]*subscription.Subscription, error) {
	var rows []*models.SubscriptionModel
	if err := db.GetTxFromContext(ctx, r.db).
		Model(&models.SubscriptionModel{}).
		Scopes(scopes...).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		r.logger.Errorw("failed to find subscriptions", "query", what, "error", err)
		return nil, fmt.Errorf("failed to find %s subscriptions: %w", what, err)
	}

	entities, err := r.mapper.ToEntities(rows)
	if err != nil {
		r.logger.Errorw("failed to map subscription models to entities", "error", err)
		return nil, fmt.Errorf("failed to map subscriptions: %w", err)
	}
	return entities, nil
}

// FindExpiryCandidates only selects rows still in a pre-expiry status, so a
// repeated sweep over the same window finds nothing left to expire.
func (r *SubscriptionRepositoryImpl) FindExpiryCandidates(ctx context.Context, now time.Time, limit int) ([]*subscription.Subscription, error) {
	return r.find(ctx, "expiry", func(q *gorm.DB) *gorm.DB {
		return q.Where("current_period_end <= ?", now).
			Where(
				r.db.Where("status = ?", vo.StatusCanceled.String()).
					Or("status IN ? AND cancel_at_period_end = ?", liveStatuses(), true),
			)
	}, db.NotArchived(), db.Batch(limit))
}

func (r *SubscriptionRepositoryImpl) FindRenewalCandidates(ctx context.Context, from, to time.Time, limit int) ([]*subscription.Subscription, error) {
	return r.find(ctx, "renewal", func(q *gorm.DB) *gorm.DB {
		return q.Where("status IN ?", []string{vo.StatusActive.String(), vo.StatusPastDue.String()}).
			Where("cancel_at_period_end = ?", false).
			Where("current_period_end > ? AND current_period_end <= ?", from, to).
			Where("renewal_reminded_for IS NULL OR renewal_reminded_for <> current_period_end")
	}, db.Batch(limit))
}

func (r *SubscriptionRepositoryImpl) FindTrialEndingCandidates(ctx context.Context, from, to time.Time, limit int) ([]*subscription.Subscription, error) {
	return r.find(ctx, "trial ending", func(q *gorm.DB) *gorm.DB {
		return q.Where("status = ?", vo.StatusTrialing.String()).
			Where("trial_end > ? AND trial_end <= ?", from, to).
			Where("trial_reminded_for IS NULL OR trial_reminded_for <> trial_end")
	}, db.Batch(limit))
}

func (r *SubscriptionRepositoryImpl) FindArchivalCandidates(ctx context.Context, endedBefore time.Time, limit int) ([]*subscription.Subscription, error) {
	return r.find(ctx, "archival", func(q *gorm.DB) *gorm.DB {
		return q.Where("status IN ?", []string{vo.StatusCanceled.String(), vo.StatusExpired.String()}).
			Where("current_period_end < ?", endedBefore)
	}, db.NotArchived(), db.Batch(limit))
}

func (r *SubscriptionRepositoryImpl) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	if err := db.GetTxFromContext(ctx, r.db).
		Model(&models.SubscriptionModel{}).
		Where("status = ?", status).
		Count(&count).Error; err != nil {
		r.logger.Errorw("failed to count subscriptions by status", "status", status, "error", err)
		return 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	return count, nil
}
