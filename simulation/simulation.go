// Package simulation assembles the engine, the scheduler, the DUT and the
// optional recorders that one test runs on.
package simulation

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/sarchlab/socbench/bench"
	"github.com/sarchlab/socbench/datarecording"
	"github.com/sarchlab/socbench/dut"
	"github.com/sarchlab/socbench/monitoring"
	"github.com/sarchlab/socbench/sim"
	"github.com/sarchlab/socbench/waves"
)

type ctxKey struct{}

// A Simulation provides the service requires to run one test.
type Simulation struct {
	id       string
	testName string

	engine    *sim.SerialEngine
	scheduler *bench.Scheduler
	dut       *dut.Handle
	logger    *slog.Logger

	dataRecorder datarecording.DataRecorder
	monitor      *monitoring.Monitor
	waves        *waves.VCDWriter

	terminated bool
}

// FromContext returns the simulation that runs the task owning ctx.
func FromContext(ctx context.Context) (*Simulation, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Simulation)
	return s, ok
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// TestName returns the name of the test the simulation runs.
func (s *Simulation) TestName() string {
	return s.testName
}

// Engine returns the engine used in the simulation.
func (s *Simulation) Engine() sim.Engine {
	return s.engine
}

// Scheduler returns the scheduler that runs the tasks of the test.
func (s *Simulation) Scheduler() *bench.Scheduler {
	return s.scheduler
}

// DUT returns the handle of the device under test.
func (s *Simulation) DUT() *dut.Handle {
	return s.dut
}

// Logger returns the logger of the simulation.
func (s *Simulation) Logger() *slog.Logger {
	return s.logger
}

// DataRecorder returns the data recorder used in the simulation, if any.
func (s *Simulation) DataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// Monitor returns the monitor used in the simulation, if any.
func (s *Simulation) Monitor() *monitoring.Monitor {
	return s.monitor
}

// Waves returns the wave writer, if any.
func (s *Simulation) Waves() *waves.VCDWriter {
	return s.waves
}

// Now returns the current simulated time.
func (s *Simulation) Now() sim.VTime {
	return s.engine.CurrentTime()
}

// Run runs fn as the main task of the test. A timeout of zero means no
// timeout.
func (s *Simulation) Run(
	ctx context.Context,
	fn bench.TaskFunc,
	timeout sim.VTime,
) error {
	if s.terminated {
		return errors.New("simulation already terminated")
	}

	name := s.testName
	if name == "" {
		name = "main"
	}

	ctx = context.WithValue(ctx, ctxKey{}, s)

	err := s.scheduler.Run(ctx, name, fn, timeout)

	s.engine.Finished()

	return err
}

// A Progress counts finished work.
type Progress interface {
	IncrementFinished(amount uint64)
}

type noProgress struct{}

func (noProgress) IncrementFinished(uint64) {}

// StartProgress creates a progress bar on the monitor. The returned function
// removes the bar. Without a monitor the progress goes nowhere.
func (s *Simulation) StartProgress(name string, total uint64) (Progress, func()) {
	if s.monitor == nil {
		return noProgress{}, func() {}
	}

	bar := s.monitor.CreateProgressBar(name, total)

	return bar, func() { s.monitor.CompleteProgressBar(bar) }
}

// Terminate flushes the recorders and closes the wave file.
func (s *Simulation) Terminate() error {
	if s.terminated {
		return nil
	}

	s.terminated = true

	if s.dataRecorder != nil {
		s.dataRecorder.Flush()
	}

	if s.waves != nil {
		return s.waves.Close()
	}

	return nil
}
