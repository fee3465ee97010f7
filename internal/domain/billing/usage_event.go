package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/saasforge/backend/internal/domain/shared"
)

// UsageEvent is an immutable record of a single completed API call. Events
// are append-only; corrections are made with new events, never updates.
type UsageEvent struct {
	shared.BaseEntity
	SubscriberID uuid.UUID
	Endpoint     string
	Method       string
	StatusCode   int
	LatencyMS    int64
	RecordedAt   time.Time
	IPAddress    string
	UserAgent    string
}

// NewUsageEvent creates a usage event for a completed API call
func NewUsageEvent(subscriberID uuid.UUID, endpoint, method string, statusCode int, latency time.Duration) (*UsageEvent, error) {
	if subscriberID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SUBSCRIBER", "Subscriber ID cannot be empty")
	}
	if endpoint == "" {
		return nil, shared.NewDomainError("INVALID_ENDPOINT", "Endpoint cannot be empty")
	}
	return &UsageEvent{
		BaseEntity:   shared.NewBaseEntity(),
		SubscriberID: subscriberID,
		Endpoint:     endpoint,
		Method:       method,
		StatusCode:   statusCode,
		LatencyMS:    latency.Milliseconds(),
		RecordedAt:   time.Now(),
	}, nil
}

// WithRequestInfo attaches client request details to the event
func (e *UsageEvent) WithRequestInfo(ipAddress, userAgent string) *UsageEvent {
	e.IPAddress = ipAddress
	e.UserAgent = userAgent
	return e
}

// Period represents a half-open billing interval [Start, End)
type Period struct {
	Start time.Time
	End   time.Time
}

// CurrentMonth returns the in-progress calendar-month period
func CurrentMonth(now time.Time) Period {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

// PreviousMonth returns the last full calendar-month period
func PreviousMonth(now time.Time) Period {
	thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return Period{Start: thisMonth.AddDate(0, -1, 0), End: thisMonth}
}

// Contains reports whether t falls inside the period
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Label returns a stable identifier for the period, e.g. "2026-07"
func (p Period) Label() string {
	return p.Start.Format("2006-01")
}
