package timer

import "time"

// EventKind names a controller notification.
type EventKind string

// Notifications raised towards the presentation layer.
const (
	EventBreakAutoEnded       EventKind = "break_auto_ended"
	EventDayRollover          EventKind = "day_rollover"
	EventAssignmentRegistered EventKind = "assignment_registered"
	EventAssignmentFailed     EventKind = "assignment_failed"
	EventStateRepaired        EventKind = "state_repaired"
)

// Event is a notification. Seconds carries the banked break for EventBreakAutoEnded.
type Event struct {
	Kind    EventKind `json:"kind"`
	At      time.Time `json:"at"`
	TaskID  int64     `json:"taskId,omitempty"`
	Seconds int64     `json:"seconds,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Notifier receives controller events. It is never called with the controller locked,
// but it must not block for long: assignment results arrive on worker goroutines.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

// Notify implements Notifier.
func (f NotifierFunc) Notify(e Event) { f(e) }
