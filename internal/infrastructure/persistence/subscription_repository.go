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

// GormSubscriptionRepository implements SubscriptionRepository using GORM
type GormSubscriptionRepository struct {
	db *gorm.DB
}

// NewGormSubscriptionRepository creates a new GormSubscriptionRepository
func NewGormSubscriptionRepository(db *gorm.DB) *GormSubscriptionRepository {
	return &GormSubscriptionRepository{db: db}
}

// Save creates or updates a subscription record
func (r *GormSubscriptionRepository) Save(ctx context.Context, subscription *billing.Subscription) error {
	var model models.SubscriptionModel
	model.FromDomain(subscription)
	return r.db.WithContext(ctx).Save(&model).Error
}

// FindByStripeSubscriptionID finds a subscription by its payment processor id
func (r *GormSubscriptionRepository) FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*billing.Subscription, error) {
	var model models.SubscriptionModel
	if err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", subscriptionID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindCurrentBySubscriber finds the most recent subscription for a subscriber
func (r *GormSubscriptionRepository) FindCurrentBySubscriber(ctx context.Context, subscriberID uuid.UUID) (*billing.Subscription, error) {
	var model models.SubscriptionModel
	if err := r.db.WithContext(ctx).
		Where("subscriber_id = ?", subscriberID).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindTrialsEndingBefore returns trialing subscriptions whose trial ends
// before the cutoff but has not yet ended
func (r *GormSubscriptionRepository) FindTrialsEndingBefore(ctx context.Context, cutoff time.Time) ([]*billing.Subscription, error) {
	var modelList []models.SubscriptionModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(billing.SubscriptionStatusTrialing)).
		Where("trial_end IS NOT NULL AND trial_end > ? AND trial_end < ?", time.Now(), cutoff).
		Order("trial_end ASC").
		Find(&modelList).Error; err != nil {
		return nil, err
	}

	subscriptions := make([]*billing.Subscription, len(modelList))
	for i := range modelList {
		subscriptions[i] = modelList[i].ToDomain()
	}
	return subscriptions, nil
}

var _ billing.SubscriptionRepository = (*GormSubscriptionRepository)(nil)
