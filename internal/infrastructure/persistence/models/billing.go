package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/saasforge/backend/internal/domain/billing"
	"github.com/shopspring/decimal"
)

// SubscriberModel is the persistence model for the Subscriber domain entity
type SubscriberModel struct {
	BaseModel
	Email                string `gorm:"type:varchar(255);uniqueIndex;not null"`
	Name                 string `gorm:"type:varchar(255)"`
	StripeCustomerID     string `gorm:"type:varchar(255);index"`
	StripeSubscriptionID string `gorm:"type:varchar(255);index"`
	SubscriptionStatus   string `gorm:"type:varchar(32);not null;index"`
	PriceID              string `gorm:"type:varchar(255)"`
}

// TableName specifies the table name
func (SubscriberModel) TableName() string {
	return "subscribers"
}

// ToDomain converts the model to a domain entity
func (m *SubscriberModel) ToDomain() *billing.Subscriber {
	return &billing.Subscriber{
		BaseEntity:           m.BaseModel.ToDomain(),
		Email:                m.Email,
		Name:                 m.Name,
		StripeCustomerID:     m.StripeCustomerID,
		StripeSubscriptionID: m.StripeSubscriptionID,
		SubscriptionStatus:   billing.SubscriptionStatus(m.SubscriptionStatus),
		PriceID:              m.PriceID,
	}
}

// FromDomain populates the model from a domain entity
func (m *SubscriberModel) FromDomain(s *billing.Subscriber) {
	m.FromDomainBaseEntity(s.BaseEntity)
	m.Email = s.Email
	m.Name = s.Name
	m.StripeCustomerID = s.StripeCustomerID
	m.StripeSubscriptionID = s.StripeSubscriptionID
	m.SubscriptionStatus = string(s.SubscriptionStatus)
	m.PriceID = s.PriceID
}

// SubscriptionModel is the persistence model for the Subscription domain entity
type SubscriptionModel struct {
	BaseModel
	SubscriberID         uuid.UUID `gorm:"type:uuid;not null;index"`
	StripeSubscriptionID string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	StripeCustomerID     string    `gorm:"type:varchar(255);index"`
	StripePriceID        string    `gorm:"type:varchar(255)"`
	Status               string    `gorm:"type:varchar(32);not null;index"`
	CurrentPeriodEnd     time.Time
	TrialEnd             *time.Time `gorm:"index"`
	CancelAtPeriodEnd    bool       `gorm:"not null;default:false"`
}

// TableName specifies the table name
func (SubscriptionModel) TableName() string {
	return "subscriptions"
}

// ToDomain converts the model to a domain entity
func (m *SubscriptionModel) ToDomain() *billing.Subscription {
	return &billing.Subscription{
		BaseEntity:           m.BaseModel.ToDomain(),
		SubscriberID:         m.SubscriberID,
		StripeSubscriptionID: m.StripeSubscriptionID,
		StripeCustomerID:     m.StripeCustomerID,
		StripePriceID:        m.StripePriceID,
		Status:               billing.SubscriptionStatus(m.Status),
		CurrentPeriodEnd:     m.CurrentPeriodEnd,
		TrialEnd:             m.TrialEnd,
		CancelAtPeriodEnd:    m.CancelAtPeriodEnd,
	}
}

// FromDomain populates the model from a domain entity
func (m *SubscriptionModel) FromDomain(s *billing.Subscription) {
	m.FromDomainBaseEntity(s.BaseEntity)
	m.SubscriberID = s.SubscriberID
	m.StripeSubscriptionID = s.StripeSubscriptionID
	m.StripeCustomerID = s.StripeCustomerID
	m.StripePriceID = s.StripePriceID
	m.Status = string(s.Status)
	m.CurrentPeriodEnd = s.CurrentPeriodEnd
	m.TrialEnd = s.TrialEnd
	m.CancelAtPeriodEnd = s.CancelAtPeriodEnd
}

// UsageEventModel is the persistence model for the UsageEvent domain entity.
// The (subscriber_id, recorded_at) index serves period count queries.
type UsageEventModel struct {
	BaseModel
	SubscriberID uuid.UUID `gorm:"type:uuid;not null;index:idx_usage_subscriber_recorded,priority:1"`
	Endpoint     string    `gorm:"type:varchar(512);not null"`
	Method       string    `gorm:"type:varchar(16)"`
	StatusCode   int
	LatencyMS    int64
	RecordedAt   time.Time `gorm:"not null;index:idx_usage_subscriber_recorded,priority:2"`
	IPAddress    string    `gorm:"type:varchar(64)"`
	UserAgent    string    `gorm:"type:varchar(512)"`
}

// TableName specifies the table name
func (UsageEventModel) TableName() string {
	return "usage_events"
}

// ToDomain converts the model to a domain entity
func (m *UsageEventModel) ToDomain() *billing.UsageEvent {
	return &billing.UsageEvent{
		BaseEntity:   m.BaseModel.ToDomain(),
		SubscriberID: m.SubscriberID,
		Endpoint:     m.Endpoint,
		Method:       m.Method,
		StatusCode:   m.StatusCode,
		LatencyMS:    m.LatencyMS,
		RecordedAt:   m.RecordedAt,
		IPAddress:    m.IPAddress,
		UserAgent:    m.UserAgent,
	}
}

// FromDomain populates the model from a domain entity
func (m *UsageEventModel) FromDomain(e *billing.UsageEvent) {
	m.FromDomainBaseEntity(e.BaseEntity)
	m.SubscriberID = e.SubscriberID
	m.Endpoint = e.Endpoint
	m.Method = e.Method
	m.StatusCode = e.StatusCode
	m.LatencyMS = e.LatencyMS
	m.RecordedAt = e.RecordedAt
	m.IPAddress = e.IPAddress
	m.UserAgent = e.UserAgent
}

// BillingActionModel is the persistence model for the BillingAction domain
// entity. The unique index on (subscriber_id, period_start) enforces the
// once-per-period billing guarantee at the database level.
type BillingActionModel struct {
	BaseModel
	SubscriberID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_billing_subscriber_period,priority:1"`
	PeriodStart     time.Time       `gorm:"not null;uniqueIndex:idx_billing_subscriber_period,priority:2"`
	PeriodLabel     string          `gorm:"type:varchar(16);not null;index"`
	TotalCalls      int64           `gorm:"not null"`
	OverageUnits    int64           `gorm:"not null"`
	Charge          decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	StripeInvoiceID string          `gorm:"type:varchar(255)"`
}

// TableName specifies the table name
func (BillingActionModel) TableName() string {
	return "billing_actions"
}

// ToDomain converts the model to a domain entity
func (m *BillingActionModel) ToDomain() *billing.BillingAction {
	return &billing.BillingAction{
		BaseEntity:      m.BaseModel.ToDomain(),
		SubscriberID:    m.SubscriberID,
		PeriodStart:     m.PeriodStart,
		PeriodLabel:     m.PeriodLabel,
		TotalCalls:      m.TotalCalls,
		OverageUnits:    m.OverageUnits,
		Charge:          m.Charge,
		StripeInvoiceID: m.StripeInvoiceID,
	}
}

// FromDomain populates the model from a domain entity
func (m *BillingActionModel) FromDomain(a *billing.BillingAction) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.SubscriberID = a.SubscriberID
	m.PeriodStart = a.PeriodStart
	m.PeriodLabel = a.PeriodLabel
	m.TotalCalls = a.TotalCalls
	m.OverageUnits = a.OverageUnits
	m.Charge = a.Charge
	m.StripeInvoiceID = a.StripeInvoiceID
}
