package bench

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sarchlab/socbench/signal"
	"github.com/sarchlab/socbench/sim"
)

// A Trigger is something a task can wait for.
type Trigger interface {
	// Prime arms the trigger. The scheduler calls fire when the trigger
	// condition happens. The returned function disarms the trigger.
	Prime(s *Scheduler, fire func()) (cancel func(), err error)

	String() string
}

type edgeKind int

const (
	anyEdge edgeKind = iota
	risingEdge
	fallingEdge
)

type edgeTrigger struct {
	sig  *signal.Signal
	kind edgeKind
}

// RisingEdge fires when the 1-bit signal becomes 1.
func RisingEdge(sig *signal.Signal) Trigger {
	return edgeTrigger{sig: sig, kind: risingEdge}
}

// FallingEdge fires when the 1-bit signal becomes 0.
func FallingEdge(sig *signal.Signal) Trigger {
	return edgeTrigger{sig: sig, kind: fallingEdge}
}

// Edge fires on any value change of the signal.
func Edge(sig *signal.Signal) Trigger {
	return edgeTrigger{sig: sig, kind: anyEdge}
}

func (t edgeTrigger) Prime(_ *Scheduler, fire func()) (func(), error) {
	if t.kind != anyEdge && t.sig.Width() != 1 {
		return nil, errors.Errorf("%s: signal %s is %d bits wide",
			t, t.sig.Name(), t.sig.Width())
	}

	return t.sig.Watch(func(c signal.Change) {
		if t.matches(c) {
			fire()
		}
	}), nil
}

func (t edgeTrigger) matches(c signal.Change) bool {
	switch t.kind {
	case risingEdge:
		return c.IsRising()
	case fallingEdge:
		return c.IsFalling()
	default:
		return true
	}
}

func (t edgeTrigger) String() string {
	switch t.kind {
	case risingEdge:
		return fmt.Sprintf("RisingEdge(%s)", t.sig.Name())
	case fallingEdge:
		return fmt.Sprintf("FallingEdge(%s)", t.sig.Name())
	default:
		return fmt.Sprintf("Edge(%s)", t.sig.Name())
	}
}

type timerEvent struct {
	*sim.EventBase
}

type timerTrigger struct {
	d sim.VTime
}

// Timer fires after d of simulated time.
func Timer(d sim.VTime) Trigger {
	return timerTrigger{d: d}
}

func (t timerTrigger) Prime(s *Scheduler, fire func()) (func(), error) {
	if t.d == 0 {
		return nil, errors.New("timer duration must be positive")
	}

	cancelled := false
	handler := sim.HandlerFunc(func(sim.Event) error {
		if !cancelled {
			fire()
		}

		return nil
	})

	at := s.engine.CurrentTime() + t.d
	s.engine.Schedule(timerEvent{sim.NewEventBase(at, handler)})

	return func() { cancelled = true }, nil
}

func (t timerTrigger) String() string {
	return fmt.Sprintf("Timer(%s)", t.d)
}

type clockCyclesTrigger struct {
	sig *signal.Signal
	n   int
}

// ClockCycles fires on the n-th rising edge of the signal.
func ClockCycles(sig *signal.Signal, n int) Trigger {
	return clockCyclesTrigger{sig: sig, n: n}
}

func (t clockCyclesTrigger) Prime(_ *Scheduler, fire func()) (func(), error) {
	if t.n < 1 {
		return nil, errors.Errorf("%s: cycle count must be at least 1", t)
	}

	if t.sig.Width() != 1 {
		return nil, errors.Errorf("%s: signal %s is %d bits wide",
			t, t.sig.Name(), t.sig.Width())
	}

	count := 0

	return t.sig.Watch(func(c signal.Change) {
		if !c.IsRising() {
			return
		}

		count++
		if count == t.n {
			fire()
		}
	}), nil
}

func (t clockCyclesTrigger) String() string {
	return fmt.Sprintf("ClockCycles(%s, %d)", t.sig.Name(), t.n)
}

type joinTrigger struct {
	task *Task
}

// Join fires when the task returns. It fires right away if the task has
// already returned.
func Join(task *Task) Trigger {
	return joinTrigger{task: task}
}

func (t joinTrigger) Prime(_ *Scheduler, fire func()) (func(), error) {
	if t.task.done {
		fire()
		return func() {}, nil
	}

	j := t.task.addJoiner(fire)

	return func() { j.cancelled = true }, nil
}

func (t joinTrigger) String() string {
	return fmt.Sprintf("Join(%s)", t.task.name)
}

type firstTrigger struct {
	triggers []Trigger
}

// First fires when any of the triggers fires.
func First(triggers ...Trigger) Trigger {
	return firstTrigger{triggers: triggers}
}

func (t firstTrigger) Prime(s *Scheduler, fire func()) (func(), error) {
	if len(t.triggers) == 0 {
		return nil, errors.New("First needs at least one trigger")
	}

	cancels := make([]func(), 0, len(t.triggers))
	cancelAll := func() {
		for _, c := range cancels {
			c()
		}
	}

	for _, trigger := range t.triggers {
		cancel, err := trigger.Prime(s, fire)
		if err != nil {
			cancelAll()
			return nil, err
		}

		cancels = append(cancels, cancel)
	}

	return cancelAll, nil
}

func (t firstTrigger) String() string {
	names := make([]string, len(t.triggers))
	for i, trigger := range t.triggers {
		names[i] = trigger.String()
	}

	return fmt.Sprintf("First(%s)", strings.Join(names, ", "))
}
