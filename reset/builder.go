package reset

import (
	"github.com/sarchlab/socbench/signal"
)

// Builder can build reset sequencers.
type Builder struct {
	reset     *signal.Signal
	clock     *signal.Signal
	activeLow bool
	cycles    int
	progress  Progress
}

// MakeBuilder creates a builder with an active-low reset held for one cycle.
func MakeBuilder() Builder {
	return Builder{
		activeLow: true,
		cycles:    1,
	}
}

// WithReset sets the reset signal to drive.
func (b Builder) WithReset(sig *signal.Signal) Builder {
	b.reset = sig
	return b
}

// WithClock sets the clock whose rising edges are counted.
func (b Builder) WithClock(sig *signal.Signal) Builder {
	b.clock = sig
	return b
}

// WithActiveLow makes the reset asserted at 0.
func (b Builder) WithActiveLow() Builder {
	b.activeLow = true
	return b
}

// WithActiveHigh makes the reset asserted at 1.
func (b Builder) WithActiveHigh() Builder {
	b.activeLow = false
	return b
}

// WithCycles sets the number of rising clock edges the reset is held for.
func (b Builder) WithCycles(n int) Builder {
	b.cycles = n
	return b
}

// WithProgress sets where the sequencer reports the edges it has counted.
func (b Builder) WithProgress(p Progress) Builder {
	b.progress = p
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.reset == nil {
		panic("reset signal is not set")
	}

	if b.clock == nil {
		panic("clock signal is not set")
	}

	if b.reset.Width() != 1 {
		panic("reset signal " + b.reset.Name() + " must be 1 bit wide")
	}

	if b.clock.Width() != 1 {
		panic("clock signal " + b.clock.Name() + " must be 1 bit wide")
	}

	if b.cycles < 1 {
		panic("reset must be held for at least one cycle")
	}
}

// Build creates the sequencer.
func (b Builder) Build() *Sequencer {
	b.parametersMustBeValid()

	s := &Sequencer{
		reset:    b.reset,
		clock:    b.clock,
		cycles:   b.cycles,
		progress: b.progress,
		active:   signal.L1,
		inactive: signal.L0,
	}

	if b.activeLow {
		s.active, s.inactive = signal.L0, signal.L1
	}

	return s
}
