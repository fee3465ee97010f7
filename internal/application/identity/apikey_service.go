package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/saasforge/backend/internal/domain/identity"
	"github.com/saasforge/backend/internal/infrastructure/auth"
	"go.uber.org/zap"
)

// CreatedKey carries the one-time plaintext back to the caller
type CreatedKey struct {
	Key       *identity.APIKey
	Plaintext string
}

// APIKeyService manages API keys and resolves them during authentication
type APIKeyService struct {
	keys   identity.APIKeyRepository
	logger *zap.Logger
}

// NewAPIKeyService creates an API key service
func NewAPIKeyService(keys identity.APIKeyRepository, logger *zap.Logger) *APIKeyService {
	return &APIKeyService{keys: keys, logger: logger}
}

// Create mints a new key for the subscriber. The plaintext in the result is
// shown once and never stored.
func (s *APIKeyService) Create(ctx context.Context, subscriberID uuid.UUID, name string) (*CreatedKey, error) {
	plaintext, err := auth.GenerateAPIKey()
	if err != nil {
		return nil, err
	}

	key, err := identity.NewAPIKey(subscriberID, name, auth.HashAPIKey(plaintext))
	if err != nil {
		return nil, err
	}
	if err := s.keys.Save(ctx, key); err != nil {
		return nil, fmt.Errorf("save api key: %w", err)
	}

	s.logger.Info("created api key",
		zap.String("subscriber_id", subscriberID.String()),
		zap.String("key_id", key.ID.String()),
		zap.String("name", key.Name))
	return &CreatedKey{Key: key, Plaintext: plaintext}, nil
}

// List returns the subscriber's keys
func (s *APIKeyService) List(ctx context.Context, subscriberID uuid.UUID) ([]*identity.APIKey, error) {
	return s.keys.FindBySubscriber(ctx, subscriberID)
}

// Delete revokes a key owned by the subscriber
func (s *APIKeyService) Delete(ctx context.Context, id, subscriberID uuid.UUID) error {
	if err := s.keys.Delete(ctx, id, subscriberID); err != nil {
		return err
	}
	s.logger.Info("deleted api key",
		zap.String("subscriber_id", subscriberID.String()),
		zap.String("key_id", id.String()))
	return nil
}

// Resolve authenticates a plaintext key and returns its owner. The stored
// last-used timestamp is refreshed best-effort.
func (s *APIKeyService) Resolve(ctx context.Context, plaintext string) (*identity.APIKey, error) {
	key, err := s.keys.FindByHash(ctx, auth.HashAPIKey(plaintext))
	if err != nil {
		return nil, err
	}

	key.MarkUsed(time.Now())
	if err := s.keys.Save(ctx, key); err != nil {
		s.logger.Warn("failed to record key usage",
			zap.String("key_id", key.ID.String()),
			zap.Error(err))
	}
	return key, nil
}
