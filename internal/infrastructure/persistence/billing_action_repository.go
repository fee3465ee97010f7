package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/saasforge/backend/internal/domain/billing"
	"github.com/saasforge/backend/internal/domain/shared"
	"github.com/saasforge/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormBillingActionRepository implements BillingActionRepository using GORM
type GormBillingActionRepository struct {
	db *gorm.DB
}

// NewGormBillingActionRepository creates a new GormBillingActionRepository
func NewGormBillingActionRepository(db *gorm.DB) *GormBillingActionRepository {
	return &GormBillingActionRepository{db: db}
}

// Save inserts a billing action. The unique (subscriber, period) index makes
// a second insert for the same pair fail, which callers treat as "already
// billed" rather than an error.
func (r *GormBillingActionRepository) Save(ctx context.Context, action *billing.BillingAction) error {
	var model models.BillingActionModel
	model.FromDomain(action)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Update persists changes to an existing action, e.g. the invoice id
func (r *GormBillingActionRepository) Update(ctx context.Context, action *billing.BillingAction) error {
	var model models.BillingActionModel
	model.FromDomain(action)
	return r.db.WithContext(ctx).Save(&model).Error
}

// FindBySubscriberAndPeriod finds the action recorded for one subscriber and period
func (r *GormBillingActionRepository) FindBySubscriberAndPeriod(ctx context.Context, subscriberID uuid.UUID, periodStart time.Time) (*billing.BillingAction, error) {
	var model models.BillingActionModel
	if err := r.db.WithContext(ctx).
		Where("subscriber_id = ? AND period_start = ?", subscriberID, periodStart).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByPeriod returns all actions recorded for a period
func (r *GormBillingActionRepository) FindByPeriod(ctx context.Context, periodStart time.Time) ([]*billing.BillingAction, error) {
	var modelList []models.BillingActionModel
	if err := r.db.WithContext(ctx).
		Where("period_start = ?", periodStart).
		Order("created_at ASC").
		Find(&modelList).Error; err != nil {
		return nil, err
	}

	actions := make([]*billing.BillingAction, len(modelList))
	for i := range modelList {
		actions[i] = modelList[i].ToDomain()
	}
	return actions, nil
}

var _ billing.BillingActionRepository = (*GormBillingActionRepository)(nil)
