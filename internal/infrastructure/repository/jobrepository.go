package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/orris-inc/subflow/internal/domain/job"
	"github.com/orris-inc/subflow/internal/infrastructure/persistence/mappers"
	"github.com/orris-inc/subflow/internal/infrastructure/persistence/models"
	"github.com/orris-inc/subflow/internal/shared/db"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

// claimRetries bounds how often ClaimNext retries after losing a row to another worker.
const claimRetries = 3

type JobRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.JobMapper
	logger logger.Interface
}

func NewJobRepository(db *gorm.DB, logger logger.Interface) *JobRepositoryImpl {
	return &JobRepositoryImpl{
		db:     db,
		mapper: mappers.NewJobMapper(),
		logger: logger,
	}
}

var _ job.Store = (*JobRepositoryImpl)(nil)

func (r *JobRepositoryImpl) Create(ctx context.Context, j *job.Job) error {
	model := r.mapper.ToModel(j)
	if err := db.GetTxFromContext(ctx, r.db).Create(model).Error; err != nil {
		r.logger.Errorw("failed to create job", "type", model.Type, "error", err)
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (r *JobRepositoryImpl) GetByID(ctx context.Context, id string) (*job.Job, error) {
	var model models.JobModel
	if err := db.GetTxFromContext(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return r.mapper.ToEntity(&model)
}

func (r *JobRepositoryImpl) HasActiveSchedule(ctx context.Context, scheduleID string) (bool, error) {
	var count int64
	if err := db.GetTxFromContext(ctx, r.db).
		Model(&models.JobModel{}).
		Where("schedule_id = ? AND status IN ?", scheduleID, []string{job.StatusPending.String(), job.StatusRunning.String()}).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check schedule %s: %w", scheduleID, err)
	}
	return count > 0, nil
}

// ClaimNext picks the oldest due job and flips it to running with a
// conditional update, so two workers can never claim the same row.
func (r *JobRepositoryImpl) ClaimNext(ctx context.Context, queue job.Queue, now, lockedUntil time.Time) (*job.Job, error) {
	conn := db.GetTxFromContext(ctx, r.db)

	for i := 0; i < claimRetries; i++ {
		var candidate models.JobModel
		err := conn.
			Select("id").
			Where("queue = ? AND status = ? AND next_run_at <= ?", queue.String(), job.StatusPending.String(), now).
			Order("next_run_at ASC, created_at ASC").
			Take(&candidate).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to select due job: %w", err)
		}

		result := conn.Model(&models.JobModel{}).
			Where("id = ? AND status = ?", candidate.ID, job.StatusPending.String()).
			Updates(map[string]interface{}{
				"status":       job.StatusRunning.String(),
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_until": lockedUntil,
				"updated_at":   now,
			})
		if result.Error != nil {
			return nil, fmt.Errorf("failed to claim job %s: %w", candidate.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			// another worker won the row
			continue
		}

		return r.GetByID(ctx, candidate.ID)
	}

	return nil, nil
}

// Finish persists the worker's verdict. The attempts guard rejects a verdict
// from a worker whose lock expired and whose job was claimed again.
func (r *JobRepositoryImpl) Finish(ctx context.Context, j *job.Job) error {
	model := r.mapper.ToModel(j)

	result := db.GetTxFromContext(ctx, r.db).
		Model(&models.JobModel{}).
		Where("id = ? AND status = ? AND attempts = ?", model.ID, job.StatusRunning.String(), model.Attempts).
		Updates(map[string]interface{}{
			"status":       model.Status,
			"next_run_at":  model.NextRunAt,
			"locked_until": model.LockedUntil,
			"last_error":   model.LastError,
			"completed_at": model.CompletedAt,
			"failed_at":    model.FailedAt,
			"updated_at":   model.UpdatedAt,
		})
	if result.Error != nil {
		r.logger.Errorw("failed to finish job", "id", model.ID, "error", result.Error)
		return fmt.Errorf("failed to finish job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", job.ErrLostLock, model.ID)
	}
	return nil
}

// RecoverStale hands jobs whose worker died back to the queue. Jobs that
// already used their last attempt are marked failed instead.
func (r *JobRepositoryImpl) RecoverStale(ctx context.Context, queue job.Queue, now time.Time) (int64, error) {
	conn := db.GetTxFromContext(ctx, r.db)
	stale := conn.Model(&models.JobModel{}).
		Where("queue = ? AND status = ? AND locked_until < ?", queue.String(), job.StatusRunning.String(), now)

	exhausted := stale.Session(&gorm.Session{}).
		Where("attempts >= max_attempts").
		Updates(map[string]interface{}{
			"status":       job.StatusFailed.String(),
			"locked_until": nil,
			"failed_at":    now,
			"last_error":   "worker lock expired on final attempt",
			"updated_at":   now,
		})
	if exhausted.Error != nil {
		return 0, fmt.Errorf("failed to fail exhausted stale jobs: %w", exhausted.Error)
	}

	requeued := stale.Session(&gorm.Session{}).
		Where("attempts < max_attempts").
		Updates(map[string]interface{}{
			"status":       job.StatusPending.String(),
			"locked_until": nil,
			"next_run_at":  now,
			"updated_at":   now,
		})
	if requeued.Error != nil {
		return 0, fmt.Errorf("failed to requeue stale jobs: %w", requeued.Error)
	}

	total := exhausted.RowsAffected + requeued.RowsAffected
	if total > 0 {
		r.logger.Warnw("recovered stale jobs",
			"queue", queue,
			"requeued", requeued.RowsAffected,
			"failed", exhausted.RowsAffected,
		)
	}
	return total, nil
}

func (r *JobRepositoryImpl) PruneFinished(ctx context.Context, queue job.Queue, status job.Status, before time.Time) (int64, error) {
	var column string
	switch status {
	case job.StatusCompleted:
		column = "completed_at"
	case job.StatusFailed:
		column = "failed_at"
	default:
		return 0, fmt.Errorf("cannot prune jobs in status %s", status)
	}

	result := db.GetTxFromContext(ctx, r.db).
		Where("queue = ? AND status = ?", queue.String(), status.String()).
		Where(column+" < ?", before).
		Delete(&models.JobModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune %s jobs: %w", status, result.Error)
	}
	return result.RowsAffected, nil
}

func (r *JobRepositoryImpl) CountByStatus(ctx context.Context, queue job.Queue, status job.Status) (int64, error) {
	var count int64
	if err := db.GetTxFromContext(ctx, r.db).
		Model(&models.JobModel{}).
		Where("queue = ? AND status = ?", queue.String(), status.String()).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return count, nil
}
