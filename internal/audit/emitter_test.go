package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoiceworks/billing-core/internal/tenant"
	"github.com/invoiceworks/billing-core/pkg/logger"
)

type captureAppender struct {
	mu     sync.Mutex
	events []*Event
	err    error
}

func (a *captureAppender) Append(_ context.Context, ev *Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.events = append(a.events, ev)
	return nil
}

func (a *captureAppender) all() []*Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*Event(nil), a.events...)
}

func TestRecordDeliversEvent(t *testing.T) {
	sink := &captureAppender{}
	e := NewEmitter(sink, logger.NewNop(), Options{Buffer: 16})

	p := &tenant.Principal{UserID: "u1", OrganizationID: "org-1", Role: tenant.RoleAdmin}
	e.Record(p, "org-1", "vendor/v1", "update")
	e.Close()

	events := sink.all()
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, "u1", ev.UserID)
	assert.Equal(t, "admin", ev.Role)
	assert.Equal(t, "org-1", ev.OrganizationID)
	assert.Equal(t, "vendor/v1", ev.Resource)
	assert.Equal(t, "update", ev.Operation)
	assert.Equal(t, "accepted", ev.Result)
	assert.WithinDuration(t, time.Now(), ev.Timestamp, 5*time.Second)
}

func TestDeniedEventsAreGatedByOption(t *testing.T) {
	p := &tenant.Principal{UserID: "u1", OrganizationID: "org-1", Role: tenant.RoleAccountant}

	sink := &captureAppender{}
	e := NewEmitter(sink, logger.NewNop(), Options{Buffer: 16})
	e.RecordDenied(p, "org-1", "invoice", "create", "insufficient_role")
	e.Close()
	assert.Empty(t, sink.all())

	sink = &captureAppender{}
	e = NewEmitter(sink, logger.NewNop(), Options{Buffer: 16, LogDenied: true})
	e.RecordDenied(p, "org-1", "invoice", "create", "insufficient_role")
	e.Close()
	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "denied", events[0].Result)
	assert.Equal(t, "insufficient_role", events[0].Reason)
}

func TestSinkFailureDoesNotPropagate(t *testing.T) {
	sink := &captureAppender{err: errors.New("sink down")}
	e := NewEmitter(sink, logger.NewNop(), Options{Buffer: 16})

	p := &tenant.Principal{UserID: "u1", OrganizationID: "org-1", Role: tenant.RoleAdmin}
	// Must not panic or block the caller.
	e.Record(p, "org-1", "vendor/v1", "delete")
	e.Close()
}

func TestRecordAfterCloseIsDropped(t *testing.T) {
	sink := &captureAppender{}
	e := NewEmitter(sink, logger.NewNop(), Options{Buffer: 16})
	e.Close()

	p := &tenant.Principal{UserID: "u1", OrganizationID: "org-1", Role: tenant.RoleAdmin}
	e.Record(p, "org-1", "vendor/v1", "read")
	assert.Empty(t, sink.all())
}

func TestCloseDrainsBufferedEvents(t *testing.T) {
	sink := &captureAppender{}
	e := NewEmitter(sink, logger.NewNop(), Options{Buffer: 64})

	p := &tenant.Principal{UserID: "u1", OrganizationID: "org-1", Role: tenant.RoleAdmin}
	for i := 0; i < 10; i++ {
		e.Record(p, "org-1", "invoice", "list")
	}
	e.Close()
	assert.Len(t, sink.all(), 10)
}
