package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/saasforge/backend/internal/domain/billing"
	"github.com/saasforge/backend/internal/domain/shared"
	"github.com/saasforge/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormSubscriberRepository implements SubscriberRepository using GORM
type GormSubscriberRepository struct {
	db *gorm.DB
}

// NewGormSubscriberRepository creates a new GormSubscriberRepository
func NewGormSubscriberRepository(db *gorm.DB) *GormSubscriberRepository {
	return &GormSubscriberRepository{db: db}
}

// Save creates or updates a subscriber
func (r *GormSubscriberRepository) Save(ctx context.Context, subscriber *billing.Subscriber) error {
	var model models.SubscriberModel
	model.FromDomain(subscriber)
	return r.db.WithContext(ctx).Save(&model).Error
}

// FindByID finds a subscriber by its ID
func (r *GormSubscriberRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Subscriber, error) {
	var model models.SubscriberModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByEmail finds a subscriber by email
func (r *GormSubscriberRepository) FindByEmail(ctx context.Context, email string) (*billing.Subscriber, error) {
	if email == "" {
		return nil, shared.NewDomainError("INVALID_EMAIL", "Email cannot be empty")
	}
	var model models.SubscriberModel
	if err := r.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(email)).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByStripeCustomerID finds a subscriber by its payment processor customer id
func (r *GormSubscriberRepository) FindByStripeCustomerID(ctx context.Context, customerID string) (*billing.Subscriber, error) {
	var model models.SubscriberModel
	if err := r.db.WithContext(ctx).
		Where("stripe_customer_id = ?", customerID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByStripeSubscriptionID finds a subscriber by its payment processor subscription id
func (r *GormSubscriberRepository) FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*billing.Subscriber, error) {
	var model models.SubscriberModel
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

// FindAll returns all subscribers, optionally filtered by status
func (r *GormSubscriberRepository) FindAll(ctx context.Context, status *billing.SubscriptionStatus) ([]*billing.Subscriber, error) {
	query := r.db.WithContext(ctx).Model(&models.SubscriberModel{})
	if status != nil {
		query = query.Where("subscription_status = ?", string(*status))
	}

	var modelList []models.SubscriberModel
	if err := query.Order("created_at ASC").Find(&modelList).Error; err != nil {
		return nil, err
	}

	subscribers := make([]*billing.Subscriber, len(modelList))
	for i := range modelList {
		subscribers[i] = modelList[i].ToDomain()
	}
	return subscribers, nil
}

var _ billing.SubscriberRepository = (*GormSubscriberRepository)(nil)
