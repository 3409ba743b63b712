// Package audit records tenant-scoped access events: who touched what, in
// which organization, through which resource path. It is best-effort by
// contract; a failing or saturated audit pipeline must never fail or roll
// back the operation being audited.
package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/invoiceworks/billing-core/internal/monitoring"
	"github.com/invoiceworks/billing-core/internal/tenant"
	"github.com/invoiceworks/billing-core/pkg/logger"
)

// Event is one append-only access record.
type Event struct {
	Timestamp      time.Time `json:"timestamp"`
	UserID         string    `json:"userId"`
	Role           string    `json:"role"`
	OrganizationID string    `json:"organizationId"`
	Resource       string    `json:"resource"`
	Operation      string    `json:"operation"`
	Result         string    `json:"result"` // accepted | denied
	Reason         string    `json:"reason,omitempty"`
}

// Appender is the outbound audit sink.
type Appender interface {
	Append(ctx context.Context, event *Event) error
}

// Options tune the emitter.
type Options struct {
	// Buffer is the queue size between request handling and the sink writer.
	Buffer int
	// LogDenied additionally records denied attempts.
	LogDenied bool
}

// Emitter forwards events to the sink from a single background goroutine.
// Record never blocks: when the buffer is full the event is dropped and
// counted, because stalling request handling on the audit pipeline would
// invert the best-effort contract.
type Emitter struct {
	sink      Appender
	log       logger.Logger
	events    chan *Event
	logDenied bool

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// NewEmitter starts the background writer.
func NewEmitter(sink Appender, log logger.Logger, opts Options) *Emitter {
	if log == nil {
		log = logger.NewNop()
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 1024
	}
	e := &Emitter{
		sink:      sink,
		log:       log,
		events:    make(chan *Event, opts.Buffer),
		logDenied: opts.LogDenied,
		done:      make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *Emitter) run() {
	defer close(e.done)
	for ev := range e.events {
		if err := e.sink.Append(context.Background(), ev); err != nil {
			// Best-effort: log and move on.
			e.log.Warn("audit append failed", "error", err, "resource", ev.Resource)
		}
	}
}

// Record emits an accepted-operation event.
func (e *Emitter) Record(p *tenant.Principal, organizationID, resource, operation string) {
	e.emit(p, organizationID, resource, operation, "accepted", "")
}

// RecordDenied emits a denial event when denial auditing is enabled.
func (e *Emitter) RecordDenied(p *tenant.Principal, organizationID, resource, operation, reason string) {
	if !e.logDenied {
		return
	}
	e.emit(p, organizationID, resource, operation, "denied", reason)
}

func (e *Emitter) emit(p *tenant.Principal, organizationID, resource, operation, result, reason string) {
	// Shutdown races a concurrent Record; a send on the closed channel is
	// treated as one more dropped event.
	defer func() {
		if recover() != nil {
			monitoring.RecordAuditDrop()
		}
	}()

	ev := &Event{
		Timestamp:      time.Now().UTC(),
		Resource:       resource,
		Operation:      operation,
		OrganizationID: organizationID,
		Result:         result,
		Reason:         reason,
	}
	if p != nil {
		ev.UserID = p.UserID
		ev.Role = p.Role.String()
	}
	if e.closed.Load() {
		monitoring.RecordAuditDrop()
		return
	}
	select {
	case e.events <- ev:
	default:
		monitoring.RecordAuditDrop()
	}
}

// Close drains the queue and stops the writer. Events recorded after Close
// are dropped.
func (e *Emitter) Close() {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		close(e.events)
	})
	<-e.done
}
