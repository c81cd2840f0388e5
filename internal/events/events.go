// Package events carries domain events out of the service after the
// transaction that produced them has committed.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/beesaferoot/rentals/internal/logging"
)

// Event names.
const (
	ApplicationCreated     = "application.created"
	ApplicationPromoted    = "application.promoted"
	ApplicationApproved    = "application.approved"
	ApplicationRejected    = "application.rejected"
	ApplicationRescheduled = "application.rescheduled"
	ApplicationCancelled   = "application.cancelled"
	ApplicationTerminated  = "application.terminated"

	LeaseStartDateProposed = "lease.start_date_proposed"
	LeaseStartDateApproved = "lease.start_date_approved"
	LeaseCommented         = "lease.commented"
	LeaseApproved          = "lease.approved"
	LeaseChangesRequested  = "lease.changes_requested"
	LeaseDocumentUploaded  = "lease.document_uploaded"
	LeaseSigned            = "lease.signed"

	CalendarUpdated = "calendar.updated"
)

// Event is a fact about a committed state change.
type Event struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	OccurredAt    time.Time         `json:"occurred_at"`
	ActorID       string            `json:"actor_id"`
	ListingID     string            `json:"listing_id,omitempty"`
	ApplicationID string            `json:"application_id,omitempty"`
	Data          map[string]string `json:"data,omitempty"`
}

// New returns an event stamped with a fresh id and the current time.
func New(name, actorID string) Event {
	return Event{
		ID:         uuid.NewString(),
		Name:       name,
		OccurredAt: time.Now().UTC(),
		ActorID:    actorID,
	}
}

// Publisher delivers events to interested parties.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Emit publishes evs in order. Failures are logged and otherwise ignored:
// the state change they describe is already committed.
func Emit(ctx context.Context, p Publisher, log *logging.Logger, evs ...Event) {
	for _, ev := range evs {
		if err := p.Publish(ctx, ev); err != nil {
			log.Error("[events] publish %s (%s) failed: %v", ev.Name, ev.ID, err)
		}
	}
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Names returns the names of recorded events in publish order.
func (r *Recorder) Names() []string {
	evs := r.Events()
	names := make([]string, len(evs))
	for i, ev := range evs {
		names[i] = ev.Name
	}
	return names
}
