package sim

// An Event happens at a point of simulated time and is handled by exactly
// one Handler.
type Event interface {
	Time() VTime
	Handler() Handler

	// IsSecondary tells if the event runs after all primary events of its
	// time step. Signal deposits are secondary so that every write of a step
	// is settled before the step ends.
	IsSecondary() bool
}

// EventBase implements Event for the event types that embed it.
type EventBase struct {
	ID        string
	time      VTime
	handler   Handler
	secondary bool
}

// NewEventBase creates a primary EventBase.
func NewEventBase(t VTime, handler Handler) *EventBase {
	return &EventBase{
		ID:      GetIDGenerator().Generate(),
		time:    t,
		handler: handler,
	}
}

// NewSecondaryEventBase creates a secondary EventBase.
func NewSecondaryEventBase(t VTime, handler Handler) *EventBase {
	e := NewEventBase(t, handler)
	e.secondary = true

	return e
}

// Time returns when the event happens.
func (e EventBase) Time() VTime {
	return e.time
}

// Handler returns the handler of the event.
func (e EventBase) Handler() Handler {
	return e.handler
}

// IsSecondary tells if the event is secondary.
func (e EventBase) IsSecondary() bool {
	return e.secondary
}

// A Handler handles the events scheduled for it. An error stops the engine.
type Handler interface {
	Handle(e Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(e Event) error

// Handle calls f(e).
func (f HandlerFunc) Handle(e Event) error {
	return f(e)
}
