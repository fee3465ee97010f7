package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/saasforge/backend/internal/domain/identity"
)

// APIKeyModel is the persistence model for the APIKey domain entity
type APIKeyModel struct {
	BaseModel
	SubscriberID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name         string    `gorm:"type:varchar(255);not null"`
	KeyHash      string    `gorm:"type:char(64);uniqueIndex;not null"`
	LastUsedAt   *time.Time
}

// TableName specifies the table name
func (APIKeyModel) TableName() string {
	return "api_keys"
}

// ToDomain converts the model to a domain entity
func (m *APIKeyModel) ToDomain() *identity.APIKey {
	return &identity.APIKey{
		BaseEntity:   m.BaseModel.ToDomain(),
		SubscriberID: m.SubscriberID,
		Name:         m.Name,
		KeyHash:      m.KeyHash,
		LastUsedAt:   m.LastUsedAt,
	}
}

// FromDomain populates the model from a domain entity
func (m *APIKeyModel) FromDomain(k *identity.APIKey) {
	m.FromDomainBaseEntity(k.BaseEntity)
	m.SubscriberID = k.SubscriberID
	m.Name = k.Name
	m.KeyHash = k.KeyHash
	m.LastUsedAt = k.LastUsedAt
}
