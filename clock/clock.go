// Package clock drives periodic clock signals.
package clock

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/sarchlab/socbench/signal"
	"github.com/sarchlab/socbench/sim"
)

// ErrRunning is returned when starting a clock that already runs.
var ErrRunning = errors.New("clock already running")

// A toggleEvent drives the next level of a clock.
type toggleEvent struct {
	*sim.EventBase
	level signal.Logic
	gen   uint64
}

// A Clock toggles a 1-bit signal with a fixed period.
type Clock struct {
	sig    *signal.Signal
	engine sim.EventScheduler
	period sim.VTime
	high   sim.VTime
	low    sim.VTime

	lock    sync.Mutex
	running bool
	gen     uint64
	cycles  uint64
}

// New creates a clock on sig. The high phase lasts half of the period and
// the low phase lasts the rest.
func New(sig *signal.Signal, period float64, unit sim.TimeUnit) (*Clock, error) {
	p, err := sim.Time(period, unit)
	if err != nil {
		return nil, errors.Wrap(err, "clock period")
	}

	return NewWithPeriod(sig, p)
}

// NewWithPeriod creates a clock from a period in VTime.
func NewWithPeriod(sig *signal.Signal, period sim.VTime) (*Clock, error) {
	if sig == nil {
		return nil, errors.New("clock needs a signal")
	}

	if sig.Width() != 1 {
		return nil, errors.Errorf("clock signal %s is %d bits wide",
			sig.Name(), sig.Width())
	}

	if period < 2 {
		return nil, errors.Errorf("clock period %dfs is too short", period)
	}

	high := period / 2

	return &Clock{
		sig:    sig,
		engine: sig.Engine(),
		period: period,
		high:   high,
		low:    period - high,
	}, nil
}

// Name returns the name of the clock.
func (c *Clock) Name() string {
	return fmt.Sprintf("Clock(%s)", c.sig.Name())
}

// Signal returns the driven signal.
func (c *Clock) Signal() *signal.Signal {
	return c.sig
}

// Period returns the clock period.
func (c *Clock) Period() sim.VTime {
	return c.period
}

// HighTime returns how long the clock stays at 1 in each period.
func (c *Clock) HighTime() sim.VTime {
	return c.high
}

// LowTime returns how long the clock stays at 0 in each period.
func (c *Clock) LowTime() sim.VTime {
	return c.low
}

// Running tells if the clock toggles.
func (c *Clock) Running() bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.running
}

// Cycles returns the number of rising edges the clock has driven.
func (c *Clock) Cycles() uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.cycles
}

// Start makes the clock drive its first level at the current time, after
// the events already scheduled for this time, and toggle from then on.
func (c *Clock) Start(startHigh bool) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.running {
		return errors.Wrap(ErrRunning, c.Name())
	}

	c.running = true
	c.gen++

	level := signal.L0
	if startHigh {
		level = signal.L1
	}

	c.schedule(c.engine.CurrentTime(), level)

	return nil
}

// Stop halts the clock. The signal keeps its last level.
func (c *Clock) Stop() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.running = false
	c.gen++
}

func (c *Clock) schedule(t sim.VTime, level signal.Logic) {
	evt := toggleEvent{
		EventBase: sim.NewEventBase(t, c),
		level:     level,
		gen:       c.gen,
	}
	c.engine.Schedule(evt)
}

// Handle drives one level and schedules the next toggle.
func (c *Clock) Handle(e sim.Event) error {
	evt, ok := e.(toggleEvent)
	if !ok {
		return errors.Errorf("%s cannot handle %T", c.Name(), e)
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if !c.running || evt.gen != c.gen {
		return nil
	}

	if err := c.sig.SetLogic(evt.level); err != nil {
		return err
	}

	next := evt.Time() + c.low
	nextLevel := signal.L1

	if evt.level == signal.L1 {
		c.cycles++
		next = evt.Time() + c.high
		nextLevel = signal.L0
	}

	c.schedule(next, nextLevel)

	return nil
}
