package sim

// TimeTeller tells the current virtual time.
type TimeTeller interface {
	CurrentTime() VTimeInSec
}

// EventScheduler accepts events to be handled at a later time.
type EventScheduler interface {
	Schedule(e Event)
}

// A SimulationEndHandler runs once the engine has no more events.
type SimulationEndHandler interface {
	Handle(now VTimeInSec)
}

// An Engine handles scheduled events in time and priority order.
//
// Handlers run one at a time. A handler may schedule new events, including
// events at the current time with a lower priority than its own, which run
// before time moves forward.
type Engine interface {
	Hookable
	TimeTeller
	EventScheduler

	// Run handles events until none are left.
	Run() error

	// RunUntil handles the events that happen no later than t.
	RunUntil(t VTimeInSec) error

	// Pending returns the number of events waiting to be handled.
	Pending() int

	// Pause blocks the engine before its next event until Continue is called.
	Pause()

	// Continue resumes a paused engine.
	Continue()

	// RegisterSimulationEndHandler adds a handler that Finished calls.
	RegisterSimulationEndHandler(handler SimulationEndHandler)

	// Finished invokes the registered SimulationEndHandlers.
	Finished()
}
