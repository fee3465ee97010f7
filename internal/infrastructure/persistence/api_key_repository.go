package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/saasforge/backend/internal/domain/identity"
	"github.com/saasforge/backend/internal/domain/shared"
	"github.com/saasforge/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormAPIKeyRepository implements APIKeyRepository using GORM
type GormAPIKeyRepository struct {
	db *gorm.DB
}

// NewGormAPIKeyRepository creates a new GormAPIKeyRepository
func NewGormAPIKeyRepository(db *gorm.DB) *GormAPIKeyRepository {
	return &GormAPIKeyRepository{db: db}
}

// Save creates or updates an API key record
func (r *GormAPIKeyRepository) Save(ctx context.Context, key *identity.APIKey) error {
	var model models.APIKeyModel
	model.FromDomain(key)
	if err := r.db.WithContext(ctx).Save(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// FindByHash finds a key by its stored hash
func (r *GormAPIKeyRepository) FindByHash(ctx context.Context, keyHash string) (*identity.APIKey, error) {
	var model models.APIKeyModel
	if err := r.db.WithContext(ctx).
		Where("key_hash = ?", keyHash).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindBySubscriber returns all keys owned by a subscriber
func (r *GormAPIKeyRepository) FindBySubscriber(ctx context.Context, subscriberID uuid.UUID) ([]*identity.APIKey, error) {
	var modelList []models.APIKeyModel
	if err := r.db.WithContext(ctx).
		Where("subscriber_id = ?", subscriberID).
		Order("created_at ASC").
		Find(&modelList).Error; err != nil {
		return nil, err
	}

	keys := make([]*identity.APIKey, len(modelList))
	for i := range modelList {
		keys[i] = modelList[i].ToDomain()
	}
	return keys, nil
}

// Delete removes a key. The subscriber id guards against deleting another
// account's key.
func (r *GormAPIKeyRepository) Delete(ctx context.Context, id uuid.UUID, subscriberID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND subscriber_id = ?", id, subscriberID).
		Delete(&models.APIKeyModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ identity.APIKeyRepository = (*GormAPIKeyRepository)(nil)
