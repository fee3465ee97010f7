package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/saasforge/backend/internal/domain/shared"
)

// APIKey grants programmatic access to a subscriber's account. Only the
// SHA-256 hash of the key is stored; the plaintext is shown exactly once at
// creation time and is never compared directly.
type APIKey struct {
	shared.BaseEntity
	SubscriberID uuid.UUID
	Name         string
	KeyHash      string
	LastUsedAt   *time.Time
}

// NewAPIKey creates a key record from a pre-hashed secret
func NewAPIKey(subscriberID uuid.UUID, name, keyHash string) (*APIKey, error) {
	if subscriberID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SUBSCRIBER", "Subscriber ID cannot be empty")
	}
	if keyHash == "" {
		return nil, shared.NewDomainError("INVALID_KEY", "Key hash cannot be empty")
	}
	if name == "" {
		name = "default"
	}
	return &APIKey{
		BaseEntity:   shared.NewBaseEntity(),
		SubscriberID: subscriberID,
		Name:         name,
		KeyHash:      keyHash,
	}, nil
}

// MarkUsed records the last successful authentication with this key
func (k *APIKey) MarkUsed(at time.Time) {
	k.LastUsedAt = &at
	k.Touch()
}

// APIKeyRepository persists API keys
type APIKeyRepository interface {
	Save(ctx context.Context, key *APIKey) error
	FindByHash(ctx context.Context, keyHash string) (*APIKey, error)
	FindBySubscriber(ctx context.Context, subscriberID uuid.UUID) ([]*APIKey, error)
	Delete(ctx context.Context, id uuid.UUID, subscriberID uuid.UUID) error
}

// SessionVerifier resolves an interactive session token issued by the
// external identity provider to a subscriber id. The token format is opaque
// to the rest of the system.
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (subscriberID uuid.UUID, err error)
}
