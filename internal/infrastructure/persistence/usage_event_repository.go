package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/saasforge/backend/internal/domain/billing"
	"github.com/saasforge/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormUsageEventRepository implements UsageEventRepository using GORM
type GormUsageEventRepository struct {
	db *gorm.DB
}

// NewGormUsageEventRepository creates a new GormUsageEventRepository
func NewGormUsageEventRepository(db *gorm.DB) *GormUsageEventRepository {
	return &GormUsageEventRepository{db: db}
}

// Save persists a single usage event
func (r *GormUsageEventRepository) Save(ctx context.Context, event *billing.UsageEvent) error {
	var model models.UsageEventModel
	model.FromDomain(event)
	return r.db.WithContext(ctx).Create(&model).Error
}

// SaveBatch persists a batch of usage events in one insert
func (r *GormUsageEventRepository) SaveBatch(ctx context.Context, events []*billing.UsageEvent) error {
	if len(events) == 0 {
		return nil
	}
	modelList := make([]models.UsageEventModel, len(events))
	for i, event := range events {
		modelList[i].FromDomain(event)
	}
	return r.db.WithContext(ctx).CreateInBatches(modelList, 500).Error
}

// CountBySubscriber counts a subscriber's calls within a period
func (r *GormUsageEventRepository) CountBySubscriber(ctx context.Context, subscriberID uuid.UUID, period billing.Period) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.UsageEventModel{}).
		Where("subscriber_id = ? AND recorded_at >= ? AND recorded_at < ?", subscriberID, period.Start, period.End).
		Count(&count).Error
	return count, err
}

// FindBySubscriber returns a subscriber's most recent events within a period
func (r *GormUsageEventRepository) FindBySubscriber(ctx context.Context, subscriberID uuid.UUID, period billing.Period, limit int) ([]*billing.UsageEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var modelList []models.UsageEventModel
	if err := r.db.WithContext(ctx).
		Where("subscriber_id = ? AND recorded_at >= ? AND recorded_at < ?", subscriberID, period.Start, period.End).
		Order("recorded_at DESC").
		Limit(limit).
		Find(&modelList).Error; err != nil {
		return nil, err
	}

	events := make([]*billing.UsageEvent, len(modelList))
	for i := range modelList {
		events[i] = modelList[i].ToDomain()
	}
	return events, nil
}

// DeleteOlderThan removes events recorded before the cutoff and returns the
// number of rows removed. Used by retention cleanup after periods are billed.
func (r *GormUsageEventRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("recorded_at < ?", before).
		Delete(&models.UsageEventModel{})
	return result.RowsAffected, result.Error
}

var _ billing.UsageEventRepository = (*GormUsageEventRepository)(nil)
