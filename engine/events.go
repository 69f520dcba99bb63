/*
events.go - Domain events on state transitions and liability changes

PURPOSE:
  The engine emits events; delivery transport (email/SMS/WhatsApp) is an
  external consumer's problem. Payloads carry the entry id, old/new status,
  and the itemized liability breakdown so downstream channels never have to
  re-derive them.

SEE ALSO:
  - notify.go: Reminder scheduling emits through the same sink
  - generator.go: Emits on transition and liability change
*/
package engine

import (
	"context"
	"log"

	"github.com/google/uuid"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

type EventType string

const (
	EventStatusChanged  EventType = "entry.status_changed"
	EventPenaltyAccrued EventType = "entry.penalty_accrued"
	EventReminderDue    EventType = "entry.reminder_due"
	EventEntryFiled     EventType = "entry.filed"
)

// Event is one domain event.
type Event struct {
	ID         string
	Type       EventType
	EntryID    EntryID
	ClientID   ClientID
	OccurredAt TimePoint

	OldStatus EntryStatus
	NewStatus EntryStatus

	Liability Liability

	// ReminderOffset is set for reminder events: days before due.
	ReminderOffset int
}

// NewEvent builds an event with a fresh id.
func NewEvent(t EventType, entry CalendarEntry, at TimePoint) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		EntryID:    entry.ID,
		ClientID:   entry.ClientID,
		OccurredAt: at,
		NewStatus:  entry.Status,
		Liability: Liability{
			Penalty:  entry.PenaltyAmount,
			Interest: entry.InterestAmount,
			Total:    entry.TotalLiability,
		},
	}
}

// =============================================================================
// EVENT SINK
// =============================================================================

// EventSink receives domain events. Implementations must be safe for
// concurrent use; the pass workers emit in parallel.
type EventSink interface {
	Emit(ctx context.Context, e Event) error
}

// LogSink writes events to the process log. Used by the server.
type LogSink struct{}

func (LogSink) Emit(_ context.Context, e Event) error {
	log.Printf("[Event] %s entry=%s old=%s new=%s total=%s", e.Type, e.EntryID, e.OldStatus, e.NewStatus, e.Liability.Total)
	return nil
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) Emit(context.Context, Event) error { return nil }
