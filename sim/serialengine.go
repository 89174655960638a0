package sim

import (
	"log"
	"reflect"
	"sync"

	"github.com/pkg/errors"
)

// A SerialEngine handles one event at a time. Primary events of a time step
// run before its secondary events, and a primary event scheduled by a
// secondary one still runs before the remaining secondary events.
type SerialEngine struct {
	HookableBase

	lock    sync.Mutex
	now     VTime
	stopped bool

	queue          EventQueue
	secondaryQueue EventQueue

	// gate is held while an event is handled and while the engine is
	// paused.
	gate      sync.Mutex
	pauseLock sync.Mutex
	paused    bool

	running sync.Mutex

	endHandlers []SimulationEndHandler
}

// NewSerialEngine creates a SerialEngine at time 0.
func NewSerialEngine() *SerialEngine {
	return &SerialEngine{
		queue:          NewEventQueue(),
		secondaryQueue: NewEventQueue(),
	}
}

// Schedule queues evt. It panics if evt lies in the past.
func (e *SerialEngine) Schedule(evt Event) {
	if now := e.CurrentTime(); evt.Time() < now {
		log.Panicf("cannot schedule %s @ %s in the past, now %s",
			reflect.TypeOf(evt), evt.Time(), now)
	}

	if evt.IsSecondary() {
		e.secondaryQueue.Push(evt)
	} else {
		e.queue.Push(evt)
	}
}

// CurrentTime returns the time of the event being handled or of the last
// handled event.
func (e *SerialEngine) CurrentTime() VTime {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.now
}

// Run handles events until the queues drain or Stop is called. It returns
// the first error a handler reports.
func (e *SerialEngine) Run() error {
	e.running.Lock()
	defer e.running.Unlock()

	e.setStopped(false)

	for !e.isStopped() {
		evt := e.next()
		if evt == nil {
			return nil
		}

		if err := e.handle(evt); err != nil {
			return errors.Wrapf(err, "handling %s @ %s",
				reflect.TypeOf(evt), evt.Time())
		}
	}

	return nil
}

func (e *SerialEngine) handle(evt Event) error {
	e.gate.Lock()
	defer e.gate.Unlock()

	e.lock.Lock()
	e.now = evt.Time()
	e.lock.Unlock()

	ctx := HookCtx{Domain: e, Pos: HookPosBeforeEvent, Item: evt}
	e.InvokeHook(ctx)

	err := evt.Handler().Handle(evt)

	ctx.Pos = HookPosAfterEvent
	e.InvokeHook(ctx)

	return err
}

// next pops the event to handle next, or returns nil if there is none.
func (e *SerialEngine) next() Event {
	primary, secondary := e.queue.Len() > 0, e.secondaryQueue.Len() > 0

	switch {
	case primary && secondary:
		if e.queue.Peek().Time() <= e.secondaryQueue.Peek().Time() {
			return e.queue.Pop()
		}

		return e.secondaryQueue.Pop()
	case primary:
		return e.queue.Pop()
	case secondary:
		return e.secondaryQueue.Pop()
	default:
		return nil
	}
}

// Stop makes Run return once the current event is handled.
func (e *SerialEngine) Stop() {
	e.setStopped(true)
}

func (e *SerialEngine) setStopped(v bool) {
	e.lock.Lock()
	e.stopped = v
	e.lock.Unlock()
}

func (e *SerialEngine) isStopped() bool {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.stopped
}

// Pause keeps the engine from handling more events. It must not be called
// from an event handler.
func (e *SerialEngine) Pause() {
	e.pauseLock.Lock()
	defer e.pauseLock.Unlock()

	if e.paused {
		return
	}

	e.gate.Lock()
	e.paused = true
}

// Continue lets a paused engine go on.
func (e *SerialEngine) Continue() {
	e.pauseLock.Lock()
	defer e.pauseLock.Unlock()

	if !e.paused {
		return
	}

	e.gate.Unlock()
	e.paused = false
}

// RegisterSimulationEndHandler adds a handler that Finished calls.
func (e *SerialEngine) RegisterSimulationEndHandler(
	handler SimulationEndHandler,
) {
	e.endHandlers = append(e.endHandlers, handler)
}

// Finished calls the end handlers with the current time.
func (e *SerialEngine) Finished() {
	now := e.CurrentTime()
	for _, h := range e.endHandlers {
		h.Handle(now)
	}
}
