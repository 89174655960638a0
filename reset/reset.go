// Package reset sequences the reset signal of a DUT.
package reset

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sarchlab/socbench/bench"
	"github.com/sarchlab/socbench/signal"
	"github.com/sarchlab/socbench/sim"
)

// Progress receives the number of clock edges counted while reset is held.
type Progress interface {
	IncrementFinished(amount uint64)
}

// A Sequencer asserts a reset, holds it for a number of rising clock edges,
// and releases it.
type Sequencer struct {
	reset    *signal.Signal
	clock    *signal.Signal
	cycles   int
	progress Progress
	active   signal.Logic
	inactive signal.Logic

	released   bool
	releasedAt sim.VTime
}

// Cycles returns the number of rising edges the reset is held for.
func (s *Sequencer) Cycles() int {
	return s.cycles
}

// ActiveLevel returns the level that asserts the reset.
func (s *Sequencer) ActiveLevel() signal.Logic {
	return s.active
}

// ReleasedAt returns when the reset was released, if it was.
func (s *Sequencer) ReleasedAt() (sim.VTime, bool) {
	return s.releasedAt, s.released
}

// Run drives the reset sequence. It must be called from a bench task.
func (s *Sequencer) Run(ctx context.Context) error {
	logger := bench.Logger(ctx)

	if err := s.reset.SetLogic(s.active); err != nil {
		return errors.Wrap(err, "asserting reset")
	}

	logger.Info("reset asserted",
		"signal", s.reset.Name(), "level", s.active.String(), "cycles", s.cycles)

	for i := 0; i < s.cycles; i++ {
		if err := bench.Await(ctx, bench.RisingEdge(s.clock)); err != nil {
			return errors.Wrapf(err, "holding reset, edge %d of %d",
				i+1, s.cycles)
		}

		if s.progress != nil {
			s.progress.IncrementFinished(1)
		}
	}

	if err := s.reset.SetLogic(s.inactive); err != nil {
		return errors.Wrap(err, "releasing reset")
	}

	s.released = true
	s.releasedAt = bench.Now(ctx)

	logger.Info("reset released",
		"signal", s.reset.Name(), "level", s.inactive.String())

	return nil
}
