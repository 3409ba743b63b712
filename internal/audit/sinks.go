package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invoiceworks/billing-core/pkg/logger"
)

// LogAppender writes audit events to the structured log.
type LogAppender struct {
	log logger.Logger
}

func NewLogAppender(log logger.Logger) *LogAppender {
	return &LogAppender{log: log}
}

func (a *LogAppender) Append(_ context.Context, ev *Event) error {
	a.log.Info("tenant access",
		"user_id", ev.UserID,
		"role", ev.Role,
		"organization_id", ev.OrganizationID,
		"resource", ev.Resource,
		"operation", ev.Operation,
		"result", ev.Result,
		"reason", ev.Reason,
	)
	return nil
}

// ListPusher is the slice of the cache the list sink needs.
type ListPusher interface {
	PushAuditEvent(ctx context.Context, payload []byte) error
}

// CacheAppender appends JSON events to the cache's audit list, for
// deployments that ship the list to an external collector.
type CacheAppender struct {
	pusher ListPusher
}

func NewCacheAppender(pusher ListPusher) *CacheAppender {
	return &CacheAppender{pusher: pusher}
}

func (a *CacheAppender) Append(ctx context.Context, ev *Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	return a.pusher.PushAuditEvent(ctx, payload)
}
