package simulation

import (
	"log/slog"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/sarchlab/socbench/bench"
	"github.com/sarchlab/socbench/datarecording"
	"github.com/sarchlab/socbench/dut"
	"github.com/sarchlab/socbench/monitoring"
	"github.com/sarchlab/socbench/sim"
	"github.com/sarchlab/socbench/simlog"
	"github.com/sarchlab/socbench/waves"
)

// Builder can be used to build a simulation.
type Builder struct {
	toplevel     string
	ports        []dut.PortSpec
	testName     string
	logger       *slog.Logger
	waveFile     string
	timescale    waves.Timescale
	dataRecorder datarecording.DataRecorder
	monitor      *monitoring.Monitor
	logEvents    bool
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		toplevel:  "top",
		timescale: waves.DefaultTimescale,
	}
}

// WithToplevel sets the name of the DUT.
func (b Builder) WithToplevel(name string) Builder {
	b.toplevel = name
	return b
}

// WithPorts sets the signals of the DUT.
func (b Builder) WithPorts(ports []dut.PortSpec) Builder {
	b.ports = ports
	return b
}

// WithTestName sets the name of the test the simulation runs.
func (b Builder) WithTestName(name string) Builder {
	b.testName = name
	return b
}

// WithLogger sets the logger. Records get the simulated time and the test
// name added.
func (b Builder) WithLogger(logger *slog.Logger) Builder {
	b.logger = logger
	return b
}

// WithWaveFile makes the simulation dump every signal into a VCD file.
func (b Builder) WithWaveFile(path string, ts waves.Timescale) Builder {
	b.waveFile = path
	b.timescale = ts
	return b
}

// WithDataRecorder makes the simulation record every signal change. The
// recorder is shared and is not closed by the simulation.
func (b Builder) WithDataRecorder(r datarecording.DataRecorder) Builder {
	b.dataRecorder = r
	return b
}

// WithMonitor attaches the simulation to a running monitor.
func (b Builder) WithMonitor(m *monitoring.Monitor) Builder {
	b.monitor = m
	return b
}

// WithEventLogging logs every event at the debug level.
func (b Builder) WithEventLogging() Builder {
	b.logEvents = true
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.toplevel == "" {
		panic("toplevel name cannot be empty")
	}

	if len(b.ports) == 0 {
		panic("the DUT has no ports")
	}
}

// Build builds the simulation.
func (b Builder) Build() (*Simulation, error) {
	b.parametersMustBeValid()

	s := &Simulation{
		id:           xid.New().String(),
		testName:     b.testName,
		dataRecorder: b.dataRecorder,
		monitor:      b.monitor,
	}

	s.engine = sim.NewSerialEngine()

	base := b.logger
	if base == nil {
		base = slog.Default()
	}

	s.logger = slog.New(simlog.NewHandler(base.Handler(), s.engine))
	if b.testName != "" {
		s.logger = s.logger.With("test", b.testName)
	}

	if b.logEvents {
		s.engine.AcceptHook(sim.NewEventLogger(s.logger))
	}

	h, err := dut.New(b.toplevel, s.engine, b.ports)
	if err != nil {
		return nil, errors.Wrap(err, "building DUT")
	}

	s.dut = h
	s.scheduler = bench.NewScheduler(s.engine, s.logger)

	if b.waveFile != "" {
		if err := s.startWaves(b.waveFile, b.timescale, b.toplevel); err != nil {
			return nil, err
		}
	}

	if b.dataRecorder != nil {
		recorder := datarecording.NewChangeRecorder(b.dataRecorder, b.testName)
		for _, sig := range h.Signals() {
			sig.AcceptHook(recorder)
		}
	}

	if b.monitor != nil {
		b.monitor.RegisterEngine(s.engine)
		b.monitor.RegisterDUT(b.testName, h)
	}

	return s, nil
}

func (s *Simulation) startWaves(
	path string,
	ts waves.Timescale,
	scope string,
) error {
	w, err := waves.CreateVCD(path, ts)
	if err != nil {
		return err
	}

	w.AddScope(scope, s.dut.Signals())

	if err := w.Start(s.engine.CurrentTime()); err != nil {
		w.Close()
		return err
	}

	s.waves = w

	return nil
}
