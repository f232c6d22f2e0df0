package workforce

import (
	"context"
	"sync"

	"github.com/warp/deploy-engine/generic"
)

// =============================================================================
// EVENTS - Typed notifications published after successful writes
// =============================================================================

type EventKind string

const (
	EventAssignmentCreated   EventKind = "assignment.created"
	EventStatusChanged       EventKind = "assignment.status_changed"
	EventAssignmentRemoved   EventKind = "assignment.removed"
	EventCertificatesUpdated EventKind = "certificates.updated"
	EventRestrictionUpdated  EventKind = "restriction.updated"
)

// Event records what changed. Only the fields relevant to Kind are set.
type Event struct {
	Kind         EventKind
	At           generic.TimePoint
	OperativeID  OperativeID
	SiteID       SiteID
	AssignmentID AssignmentID
	Status       AssignmentStatus
	Forced       bool           // created despite advisory findings
	Payload      map[string]any // kind-specific detail
}

// EventSink receives events. Implementations must not block for long.
type EventSink interface {
	Publish(ctx context.Context, e Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, e Event)

func (f EventSinkFunc) Publish(ctx context.Context, e Event) { f(ctx, e) }

// Bus fans events out to every subscriber in subscription order.
type Bus struct {
	mu   sync.RWMutex
	subs []EventSink
}

func NewBus(sinks ...EventSink) *Bus {
	return &Bus{subs: sinks}
}

func (b *Bus) Subscribe(s EventSink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, s)
}

func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	subs := append([]EventSink(nil), b.subs...)
	b.mu.RUnlock()
	for _, s := range subs {
		s.Publish(ctx, e)
	}
}

// Recorder keeps published events in memory. Used by tests and the CLI.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
