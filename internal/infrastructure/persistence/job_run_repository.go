package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/saasforge/backend/internal/domain/job"
	"github.com/saasforge/backend/internal/domain/shared"
	"github.com/saasforge/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormJobRunRepository implements job.RunRepository using GORM
type GormJobRunRepository struct {
	db *gorm.DB
}

// NewGormJobRunRepository creates a new GormJobRunRepository
func NewGormJobRunRepository(db *gorm.DB) *GormJobRunRepository {
	return &GormJobRunRepository{db: db}
}

// Save creates or updates a workflow run
func (r *GormJobRunRepository) Save(ctx context.Context, run *job.Run) error {
	var model models.JobRunModel
	model.FromDomain(run)
	return r.db.WithContext(ctx).Save(&model).Error
}

// FindByID finds a run by its ID
func (r *GormJobRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*job.Run, error) {
	var model models.JobRunModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ClaimDue moves due pending runs to running state and returns them. The
// claim is a conditional update on (id, status) so concurrent pollers racing
// for the same rows each win a disjoint subset.
func (r *GormJobRunRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*job.Run, error) {
	if limit <= 0 {
		limit = 20
	}

	var candidates []models.JobRunModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_for <= ?", string(job.RunStatusPending), now).
		Order("scheduled_for ASC").
		Limit(limit).
		Find(&candidates).Error; err != nil {
		return nil, err
	}

	claimed := make([]*job.Run, 0, len(candidates))
	for i := range candidates {
		run := candidates[i].ToDomain()
		if err := run.MarkRunning(); err != nil {
			continue
		}
		result := r.db.WithContext(ctx).
			Model(&models.JobRunModel{}).
			Where("id = ? AND status = ?", run.ID, string(job.RunStatusPending)).
			Updates(map[string]any{
				"status":     string(job.RunStatusRunning),
				"attempts":   run.Attempts,
				"updated_at": run.UpdatedAt,
			})
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			// Another poller claimed it first
			continue
		}
		claimed = append(claimed, run)
	}
	return claimed, nil
}

// FindByStatus returns runs in the given status, oldest first
func (r *GormJobRunRepository) FindByStatus(ctx context.Context, status job.RunStatus, limit int) ([]*job.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	var modelList []models.JobRunModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("created_at ASC").
		Limit(limit).
		Find(&modelList).Error; err != nil {
		return nil, err
	}

	runs := make([]*job.Run, len(modelList))
	for i := range modelList {
		runs[i] = modelList[i].ToDomain()
	}
	return runs, nil
}

// SaveStepResult checkpoints a completed step. Re-checkpointing the same
// step of the same run is a no-op.
func (r *GormJobRunRepository) SaveStepResult(ctx context.Context, result *job.StepResult) error {
	var model models.JobStepResultModel
	model.FromDomain(result)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return err
	}
	return nil
}

// FindStepResults returns a run's checkpoints in completion order
func (r *GormJobRunRepository) FindStepResults(ctx context.Context, runID uuid.UUID) ([]*job.StepResult, error) {
	var modelList []models.JobStepResultModel
	if err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("completed_at ASC").
		Find(&modelList).Error; err != nil {
		return nil, err
	}

	results := make([]*job.StepResult, len(modelList))
	for i := range modelList {
		results[i] = modelList[i].ToDomain()
	}
	return results, nil
}

var _ job.RunRepository = (*GormJobRunRepository)(nil)
