package mappers

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/orris-inc/subflow/internal/domain/job"
	"github.com/orris-inc/subflow/internal/infrastructure/persistence/models"
)

type JobMapper interface {
	ToEntity(model *models.JobModel) (*job.Job, error)
	ToModel(entity *job.Job) *models.JobModel
}

type JobMapperImpl struct{}

func NewJobMapper() JobMapper {
	return &JobMapperImpl{}
}

func (m *JobMapperImpl) ToEntity(model *models.JobModel) (*job.Job, error) {
	if model == nil {
		return nil, nil
	}

	var payload json.RawMessage
	if len(model.Payload) > 0 {
		payload = json.RawMessage(model.Payload)
	}

	entity, err := job.ReconstructJob(job.ReconstructParams{
		ID:          model.ID,
		Queue:       job.Queue(model.Queue),
		Type:        job.Type(model.Type),
		TargetID:    model.TargetID,
		BatchSize:   model.BatchSize,
		Payload:     payload,
		Status:      job.Status(model.Status),
		Attempts:    model.Attempts,
		MaxAttempts: model.MaxAttempts,
		BackoffBase: time.Duration(model.BackoffBaseMs) * time.Millisecond,
		BackoffCap:  time.Duration(model.BackoffCapMs) * time.Millisecond,
		NextRunAt:   model.NextRunAt.UTC(),
		LockedUntil: utcPtr(model.LockedUntil),
		LastError:   model.LastError,
		ScheduleID:  model.ScheduleID,
		CompletedAt: utcPtr(model.CompletedAt),
		FailedAt:    utcPtr(model.FailedAt),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct job entity: %w", err)
	}
	return entity, nil
}

func (m *JobMapperImpl) ToModel(entity *job.Job) *models.JobModel {
	if entity == nil {
		return nil
	}

	var payload datatypes.JSON
	if p := entity.Payload(); len(p) > 0 {
		payload = datatypes.JSON(p)
	}

	return &models.JobModel{
		ID:            entity.ID(),
		Queue:         entity.Queue().String(),
		Type:          entity.Type().String(),
		TargetID:      entity.TargetID(),
		BatchSize:     entity.BatchSize(),
		Payload:       payload,
		Status:        entity.Status().String(),
		Attempts:      entity.Attempts(),
		MaxAttempts:   entity.MaxAttempts(),
		BackoffBaseMs: entity.BackoffBase().Milliseconds(),
		BackoffCapMs:  entity.BackoffCap().Milliseconds(),
		NextRunAt:     entity.NextRunAt(),
		LockedUntil:   entity.LockedUntil(),
		LastError:     entity.LastError(),
		ScheduleID:    entity.ScheduleID(),
		CompletedAt:   entity.CompletedAt(),
		FailedAt:      entity.FailedAt(),
		CreatedAt:     entity.CreatedAt(),
		UpdatedAt:     entity.UpdatedAt(),
	}
}
