// Package cache provides the Redis-backed session store and audit sink.
//
// Sessions are the external token store consumed by the identity resolver;
// the audit list is the append-only destination used by the cache audit
// sink. Both degrade to an in-memory implementation when Redis is
// unreachable (development mode).
package cache

import (
	"context"
	"time"

	"github.com/invoiceworks/billing-core/internal/models"
)

// Cache is the session/audit cache surface used across the service.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	SetSession(ctx context.Context, session *models.UserSession) error
	GetSession(ctx context.Context, sessionID string) (*models.UserSession, error)
	InvalidateSession(ctx context.Context, sessionID string) error

	// PushAuditEvent appends a serialized audit event to the audit list.
	PushAuditEvent(ctx context.Context, payload []byte) error

	HealthCheck(ctx context.Context) error
}

const (
	sessionKeyPrefix = "session:"
	auditListKey     = "audit:events"
)
