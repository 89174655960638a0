package sim

// TimeTeller tells the current simulated time.
type TimeTeller interface {
	CurrentTime() VTime
}

// EventScheduler accepts events to handle at or after the current time.
type EventScheduler interface {
	TimeTeller

	Schedule(e Event)
}

// A SimulationEndHandler is told when a simulation is over.
type SimulationEndHandler interface {
	Handle(now VTime)
}

// An Engine advances simulated time by handling events.
type Engine interface {
	Hookable
	EventScheduler

	// Run handles events until none are left, Stop is called, or a handler
	// fails. The handler error is returned.
	Run() error

	// Stop makes Run return after the event being handled. Queued events
	// stay queued.
	Stop()

	// Pause blocks the engine before the next event until Continue is
	// called.
	Pause()
	Continue()

	RegisterSimulationEndHandler(handler SimulationEndHandler)

	// Finished tells the end handlers that the simulation is over.
	Finished()
}
