package sim

// VTimeInSec defines the time in the simulated space in the unit of second
type VTimeInSec float64

// Priority orders events that happen at the same time. A smaller value runs
// first. The levels mirror the interrupt contexts of a processing core: packet
// arrival preempts transfer completion, which preempts the time-step timer.
type Priority int

// Priority levels used by the spike pathway.
const (
	PriorityPacket Priority = iota
	PriorityTransfer
	PriorityTimer
)

// String returns the context name of the priority level.
func (p Priority) String() string {
	switch p {
	case PriorityPacket:
		return "packet"
	case PriorityTransfer:
		return "transfer"
	case PriorityTimer:
		return "timer"
	default:
		return "unknown"
	}
}

// An Event is something going to happen in the future.
type Event interface {
	// Return the time that the event should happen
	Time() VTimeInSec

	// Returns the handler that can should handle the event
	Handler() Handler

	// Priority tells which context the event runs in. Same-time events are
	// handled in ascending priority order.
	Priority() Priority
}

// EventBase provides the basic fields and getters for other events
type EventBase struct {
	ID       string
	time     VTimeInSec
	handler  Handler
	priority Priority
}

// NewEventBase creates a new EventBase
func NewEventBase(t VTimeInSec, handler Handler, priority Priority) *EventBase {
	e := new(EventBase)
	e.ID = GetIDGenerator().Generate()
	e.time = t
	e.handler = handler
	e.priority = priority

	return e
}

// Time return the time that the event is going to happen
func (e EventBase) Time() VTimeInSec {
	return e.time
}

// Handler returns the handler to handle the event.
func (e EventBase) Handler() Handler {
	return e.handler
}

// Priority returns the context priority of the event.
func (e EventBase) Priority() Priority {
	return e.priority
}

// A Handler defines a domain for the events.
//
// One event is always constraint to one Handler, which means the event can
// only be scheduled by one handler and can only directly modify that handler.
type Handler interface {
	Handle(e Event) error
}

// CallbackEvent is an event that runs a function when handled. It lets
// collaborators that are not handlers themselves, such as a transfer
// completion signal, re-enter the engine in the right context.
type CallbackEvent struct {
	*EventBase
	callback func()
}

// NewCallbackEvent creates an event that runs f at time t.
func NewCallbackEvent(t VTimeInSec, priority Priority, f func()) *CallbackEvent {
	evt := &CallbackEvent{callback: f}
	evt.EventBase = NewEventBase(t, callbackHandler{}, priority)

	return evt
}

type callbackHandler struct{}

func (callbackHandler) Handle(e Event) error {
	e.(*CallbackEvent).callback()
	return nil
}
