package inter

// Event is something the runtime reports to observers after a block.
type Event interface {
	// Module names the emitting module, e.g. "eth-bridge".
	Module() string
	// Name is the event name, e.g. "ActiveRequestRetried".
	Name() string
}

// EventSink receives the events deposited while an extrinsic runs.
type EventSink interface {
	Deposit(Event)
}

// EventLog collects events in deposit order.
type EventLog struct {
	events []Event
}

func (l *EventLog) Deposit(e Event) {
	l.events = append(l.events, e)
}

// Events returns a copy of the collected events.
func (l *EventLog) Events() []Event {
	cp := make([]Event, len(l.events))
	copy(cp, l.events)
	return cp
}

// Len returns the number of collected events.
func (l *EventLog) Len() int {
	return len(l.events)
}

// Truncate drops the events past n. It undoes the deposits of a failed
// extrinsic.
func (l *EventLog) Truncate(n int) {
	if n < len(l.events) {
		l.events = l.events[:n]
	}
}

// Reset drops every event.
func (l *EventLog) Reset() {
	l.events = nil
}
