package signal

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sarchlab/socbench/sim"
)

// HookPosValueChange is the hook position that triggers after a signal takes
// a new value. The hook item is a Change.
var HookPosValueChange = &sim.HookPos{Name: "ValueChange"}

// Change describes a signal taking a new value.
type Change struct {
	Signal *Signal
	Time   sim.VTime
	Old    Value
	New    Value
}

// IsRising tells if the change is a rising edge: the value becomes 1 from
// anything else. Only 1-bit signals have edges.
func (c Change) IsRising() bool {
	return c.New.Width() == 1 && c.New.Bit(0) == L1 && c.Old.Bit(0) != L1
}

// IsFalling tells if the change is a falling edge: the value becomes 0 from
// anything else.
func (c Change) IsFalling() bool {
	return c.New.Width() == 1 && c.New.Bit(0) == L0 && c.Old.Bit(0) != L0
}

// ErrWidthMismatch is returned when writing a value whose width differs from
// the width of the signal.
var ErrWidthMismatch = errors.New("width mismatch")

type depositEvent struct {
	*sim.EventBase
}

type watcher struct {
	id uint64
	fn func(c Change)
}

// A Signal is a named wire or bus of the DUT.
//
// Writes are deposits. A value written with Set takes effect at the end of
// the current time step, after all primary events of the step run. When a
// signal is written several times in one step, the last write wins.
type Signal struct {
	sim.HookableBase

	name   string
	width  int
	engine sim.EventScheduler

	lock    sync.RWMutex
	value   Value
	pending *Value
	queued  bool

	watchers    []watcher
	nextWatchID uint64
}

// New creates a signal whose initial value has all bits X.
func New(name string, width int, engine sim.EventScheduler) *Signal {
	if name == "" {
		panic("signal name must not be empty")
	}

	widthMustBeValid(width)

	return &Signal{
		name:   name,
		width:  width,
		engine: engine,
		value:  Fill(width, X),
	}
}

// Name returns the name of the signal.
func (s *Signal) Name() string {
	return s.name
}

// Width returns the number of bits of the signal.
func (s *Signal) Width() int {
	return s.width
}

// Engine returns the scheduler that applies the writes of the signal.
func (s *Signal) Engine() sim.EventScheduler {
	return s.engine
}

// Value returns the current value.
func (s *Signal) Value() Value {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.value
}

// Set deposits a new value.
func (s *Signal) Set(v Value) error {
	if v.Width() != s.width {
		return errors.Wrapf(ErrWidthMismatch,
			"writing %d-bit value %s to %d-bit signal %s",
			v.Width(), v, s.width, s.name)
	}

	s.lock.Lock()
	s.pending = &v
	needEvent := !s.queued
	s.queued = true
	s.lock.Unlock()

	if needEvent {
		now := s.engine.CurrentTime()
		s.engine.Schedule(depositEvent{sim.NewSecondaryEventBase(now, s)})
	}

	return nil
}

// SetInt deposits an integer value. It fails if the integer does not fit the
// width of the signal.
func (s *Signal) SetInt(v uint64) error {
	if s.width < 64 && v > mask(s.width) {
		return errors.Errorf("%d does not fit in %d-bit signal %s",
			v, s.width, s.name)
	}

	return s.Set(NewValue(s.width, v))
}

// SetLogic deposits the same state on every bit.
func (s *Signal) SetLogic(l Logic) error {
	return s.Set(Fill(s.width, l))
}

// Handle applies the pending deposit.
func (s *Signal) Handle(e sim.Event) error {
	if _, ok := e.(depositEvent); !ok {
		return errors.Errorf("signal %s cannot handle %T", s.name, e)
	}

	s.lock.Lock()
	s.queued = false
	if s.pending == nil {
		s.lock.Unlock()
		return nil
	}

	old := s.value
	s.value = *s.pending
	s.pending = nil
	watchers := make([]watcher, len(s.watchers))
	copy(watchers, s.watchers)
	s.lock.Unlock()

	if old.Equal(s.value) {
		return nil
	}

	change := Change{
		Signal: s,
		Time:   e.Time(),
		Old:    old,
		New:    s.value,
	}

	s.InvokeHook(sim.HookCtx{
		Domain: s,
		Pos:    HookPosValueChange,
		Item:   change,
	})

	for _, w := range watchers {
		w.fn(change)
	}

	return nil
}

// Watch registers a function to call on every value change. The returned
// function unregisters it.
func (s *Signal) Watch(fn func(c Change)) (cancel func()) {
	s.lock.Lock()
	s.nextWatchID++
	id := s.nextWatchID
	s.watchers = append(s.watchers, watcher{id: id, fn: fn})
	s.lock.Unlock()

	return func() {
		s.lock.Lock()
		defer s.lock.Unlock()

		for i, w := range s.watchers {
			if w.id == id {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				return
			}
		}
	}
}

// NumWatchers returns the number of registered watchers.
func (s *Signal) NumWatchers() int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return len(s.watchers)
}
