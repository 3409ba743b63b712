package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/invoiceworks/billing-core/internal/models"
)

// memoryCache is a process-local Cache used when Redis is unavailable.
// Sessions do not survive restarts and are not shared between instances, so
// it is only suitable for development and tests.
type memoryCache struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	audit      [][]byte
	sessionTTL time.Duration
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemory returns an in-memory Cache.
func NewMemory(sessionTTL time.Duration) Cache {
	return &memoryCache{
		entries:    make(map[string]memoryEntry),
		sessionTTL: sessionTTL,
	}
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || (!entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt)) {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	return entry.data, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	var data []byte
	switch x := value.(type) {
	case []byte:
		data = x
	case string:
		data = []byte(x)
	default:
		j, err := json.Marshal(x)
		if err != nil {
			return fmt.Errorf("marshal value for key %s: %w", key, err)
		}
		data = j
	}
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = memoryEntry{data: data, expiresAt: expires}
	m.mu.Unlock()
	return nil
}

func (m *memoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *memoryCache) SetSession(ctx context.Context, session *models.UserSession) error {
	session.LastActivity = time.Now()
	return m.Set(ctx, sessionKeyPrefix+session.ID, session, m.sessionTTL)
}

func (m *memoryCache) GetSession(ctx context.Context, sessionID string) (*models.UserSession, error) {
	data, err := m.Get(ctx, sessionKeyPrefix+sessionID)
	if err != nil {
		return nil, err
	}
	var session models.UserSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (m *memoryCache) InvalidateSession(ctx context.Context, sessionID string) error {
	return m.Delete(ctx, sessionKeyPrefix+sessionID)
}

func (m *memoryCache) PushAuditEvent(_ context.Context, payload []byte) error {
	m.mu.Lock()
	m.audit = append(m.audit, payload)
	m.mu.Unlock()
	return nil
}

func (m *memoryCache) HealthCheck(context.Context) error { return nil }

// AuditEvents returns a copy of the appended audit payloads. Test helper.
func (m *memoryCache) AuditEvents() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]byte, len(m.audit))
	copy(out, m.audit)
	return out
}
