/*
notify.go - Notification scheduling hook

PURPOSE:
  Determines which days-before-due offsets have come due for an entry and
  emits reminder events. Emits events ONLY; delivery transport is out of
  scope. Offsets already emitted are tracked on the entry so a reminder
  fires exactly once even across repeated passes.
*/
package engine

import "context"

// ReminderHook inspects days-to-due on each pass and emits trigger events.
type ReminderHook struct {
	Events EventSink

	// DefaultOffsets applies when a blueprint defines none.
	DefaultOffsets []int
}

func NewReminderHook(events EventSink) *ReminderHook {
	return &ReminderHook{Events: events, DefaultOffsets: []int{30, 14, 7, 1, 0}}
}

// DueOffsets returns the offsets that should fire for the entry at 'now':
// every configured offset whose trigger date (due - offset days) has been
// reached and which has not already been sent. Terminal entries get none.
func (h *ReminderHook) DueOffsets(blueprint Blueprint, entry CalendarEntry, now TimePoint) []int {
	if entry.Status.IsTerminal() {
		return nil
	}

	offsets := blueprint.ReminderOffsets
	if len(offsets) == 0 {
		offsets = h.DefaultOffsets
	}

	due := entry.EffectiveDueDate()
	var fire []int
	for _, offset := range offsets {
		if offset < 0 || entry.ReminderSent(offset) {
			continue
		}
		trigger := due.AddDays(-offset)
		if now.Date().AfterOrEqual(trigger) {
			fire = append(fire, offset)
		}
	}
	return fire
}

// Emit fires reminder events for the given offsets and records them on the
// entry. The caller persists the mutated entry.
func (h *ReminderHook) Emit(ctx context.Context, entry *CalendarEntry, offsets []int, now TimePoint) error {
	for _, offset := range offsets {
		e := NewEvent(EventReminderDue, *entry, now)
		e.OldStatus = entry.Status
		e.ReminderOffset = offset
		if err := h.Events.Emit(ctx, e); err != nil {
			return err
		}
		entry.RemindersSent = append(entry.RemindersSent, offset)
	}
	return nil
}
