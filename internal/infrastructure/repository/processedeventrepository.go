package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/orris-inc/subflow/internal/domain/billingevent"
	"github.com/orris-inc/subflow/internal/infrastructure/persistence/mappers"
	"github.com/orris-inc/subflow/internal/infrastructure/persistence/models"
	"github.com/orris-inc/subflow/internal/shared/db"
	"github.com/orris-inc/subflow/internal/shared/logger"
	"github.com/orris-inc/subflow/internal/shared/utils/textutil"
)

const maxOutcomeDetail = 1000

// ProcessedEventRepositoryImpl is the gorm-backed idempotency ledger.
type ProcessedEventRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

func NewProcessedEventRepository(db *gorm.DB, logger logger.Interface) *ProcessedEventRepositoryImpl {
	return &ProcessedEventRepositoryImpl{
		db:     db,
		logger: logger,
	}
}

var _ billingevent.Ledger = (*ProcessedEventRepositoryImpl)(nil)

// TryClaim inserts the ledger row with the transaction carried by ctx.
// A unique violation on event_id means another delivery already claimed it.
func (r *ProcessedEventRepositoryImpl) TryClaim(ctx context.Context, eventID, eventType string) (bool, error) {
	event, err := billingevent.NewProcessedEvent(eventID, eventType, time.Now().UTC())
	if err != nil {
		return false, err
	}

	model := &models.ProcessedEventModel{
		EventID:     event.EventID,
		EventType:   event.EventType,
		Outcome:     string(event.Outcome),
		ProcessedAt: event.ProcessedAt,
	}

	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Create(model).Error; err != nil {
		if db.IsDuplicateKeyError(err) {
			r.logger.Debugw("event already claimed", "event_id", eventID)
			return false, nil
		}
		r.logger.Errorw("failed to claim event", "event_id", eventID, "error", err)
		return false, fmt.Errorf("failed to claim event %s: %w", eventID, err)
	}

	return true, nil
}

// Exists is the fast dedupe check; it is meant to run outside any transaction.
func (r *ProcessedEventRepositoryImpl) Exists(ctx context.Context, eventID string) (bool, error) {
	var count int64
	if err := db.GetTxFromContext(ctx, r.db).
		Model(&models.ProcessedEventModel{}).
		Where("event_id = ?", eventID).
		Count(&count).Error; err != nil {
		r.logger.Errorw("failed to look up processed event", "event_id", eventID, "error", err)
		return false, fmt.Errorf("failed to look up processed event: %w", err)
	}
	return count > 0, nil
}

func (r *ProcessedEventRepositoryImpl) MarkOutcome(ctx context.Context, eventID string, outcome billingevent.Outcome, detail string) error {
	if !outcome.IsValid() {
		return fmt.Errorf("invalid ledger outcome: %s", outcome)
	}
	detail = textutil.TruncateBytes(detail, maxOutcomeDetail)

	updates := map[string]interface{}{"outcome": string(outcome)}
	if detail != "" {
		updates["detail"] = detail
	}

	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.ProcessedEventModel{}).
		Where("event_id = ?", eventID).
		Updates(updates)
	if result.Error != nil {
		r.logger.Errorw("failed to mark event outcome", "event_id", eventID, "outcome", outcome, "error", result.Error)
		return fmt.Errorf("failed to mark event outcome: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("processed event %s not found", eventID)
	}
	return nil
}

func (r *ProcessedEventRepositoryImpl) Get(ctx context.Context, eventID string) (*billingevent.ProcessedEvent, error) {
	var model models.ProcessedEventModel
	if err := db.GetTxFromContext(ctx, r.db).Where("event_id = ?", eventID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get processed event: %w", err)
	}
	return mappers.ProcessedEventToEntity(&model), nil
}

// PruneBefore deletes ledger rows older than cutoff. Providers stop redelivering
// long before the retention window ends.
func (r *ProcessedEventRepositoryImpl) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := db.GetTxFromContext(ctx, r.db).
		Where("processed_at < ?", cutoff).
		Delete(&models.ProcessedEventModel{})
	if result.Error != nil {
		r.logger.Errorw("failed to prune processed events", "cutoff", cutoff, "error", result.Error)
		return 0, fmt.Errorf("failed to prune processed events: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		r.logger.Infow("pruned processed events", "count", result.RowsAffected, "cutoff", cutoff)
	}
	return result.RowsAffected, nil
}
