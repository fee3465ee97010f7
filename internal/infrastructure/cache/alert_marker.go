package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/saasforge/backend/internal/domain/billing"
)

// RedisAlertMarker deduplicates threshold alerts across processes using
// SET NX with a TTL. The TTL bounds the marker to the billing period, so a
// new period starts with a clean slate even if cleanup never runs.
type RedisAlertMarker struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisAlertMarker creates a marker store over the given client
func NewRedisAlertMarker(client redis.UniversalClient) *RedisAlertMarker {
	return &RedisAlertMarker{client: client, prefix: "usage-alert:"}
}

// MarkSent sets the marker and reports whether it was newly set
func (m *RedisAlertMarker) MarkSent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return m.client.SetNX(ctx, m.prefix+key, 1, ttl).Result()
}

// MemoryAlertMarker is a process-local fallback used when Redis is not
// configured. Duplicate suppression then only holds within one process.
type MemoryAlertMarker struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryAlertMarker creates an in-process marker store
func NewMemoryAlertMarker() *MemoryAlertMarker {
	return &MemoryAlertMarker{entries: make(map[string]time.Time), now: time.Now}
}

// MarkSent sets the marker and reports whether it was newly set
func (m *MemoryAlertMarker) MarkSent(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if expiry, ok := m.entries[key]; ok && now.Before(expiry) {
		return false, nil
	}
	m.entries[key] = now.Add(ttl)
	// Opportunistic sweep keeps the map from growing across periods
	for k, exp := range m.entries {
		if now.After(exp) {
			delete(m.entries, k)
		}
	}
	return true, nil
}

var (
	_ billing.AlertMarker = (*RedisAlertMarker)(nil)
	_ billing.AlertMarker = (*MemoryAlertMarker)(nil)
)
