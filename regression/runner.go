package regression

import (
	"context"
	"log/slog"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sarchlab/socbench/datarecording"
	"github.com/sarchlab/socbench/sim"
	"github.com/sarchlab/socbench/simulation"
	"github.com/sarchlab/socbench/waves"
)

type randKey struct{}

// Rand returns the random source of the test owning ctx. Each test gets a
// source seeded with its own seed, so reruns with the same seed repeat.
func Rand(ctx context.Context) *rand.Rand {
	if r, ok := ctx.Value(randKey{}).(*rand.Rand); ok {
		return r
	}

	return rand.New(rand.NewSource(0))
}

// RunnerBuilder can build runners.
type RunnerBuilder struct {
	simBuilder   simulation.Builder
	seed         int64
	waveFile     string
	timescale    waves.Timescale
	dataRecorder datarecording.DataRecorder
	logger       *slog.Logger
}

// MakeRunnerBuilder creates a builder whose runner uses seed 0.
func MakeRunnerBuilder() RunnerBuilder {
	return RunnerBuilder{
		simBuilder: simulation.MakeBuilder(),
		timescale:  waves.DefaultTimescale,
	}
}

// WithSimulationBuilder sets how each test's simulation is built.
func (b RunnerBuilder) WithSimulationBuilder(sb simulation.Builder) RunnerBuilder {
	b.simBuilder = sb
	return b
}

// WithSeed sets the base seed. Test i gets seed+i.
func (b RunnerBuilder) WithSeed(seed int64) RunnerBuilder {
	b.seed = seed
	return b
}

// WithWaveFile makes every test dump its waves. When several tests run, the
// test name is added to the file name.
func (b RunnerBuilder) WithWaveFile(path string, ts waves.Timescale) RunnerBuilder {
	b.waveFile = path
	b.timescale = ts
	return b
}

// WithDataRecorder stores signal changes and results in the recorder.
func (b RunnerBuilder) WithDataRecorder(r datarecording.DataRecorder) RunnerBuilder {
	b.dataRecorder = r
	return b
}

// WithLogger sets the logger.
func (b RunnerBuilder) WithLogger(logger *slog.Logger) RunnerBuilder {
	b.logger = logger
	return b
}

// Build creates the runner.
func (b RunnerBuilder) Build() *Runner {
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	sb := b.simBuilder.WithLogger(logger)
	if b.dataRecorder != nil {
		sb = sb.WithDataRecorder(b.dataRecorder)
		datarecording.EnsureTable(b.dataRecorder,
			datarecording.ResultTable, datarecording.ResultEntry{})
	}

	return &Runner{
		simBuilder:   sb,
		seed:         b.seed,
		waveFile:     b.waveFile,
		timescale:    b.timescale,
		dataRecorder: b.dataRecorder,
		logger:       logger,
	}
}

// A Runner runs tests.
type Runner struct {
	simBuilder   simulation.Builder
	seed         int64
	waveFile     string
	timescale    waves.Timescale
	dataRecorder datarecording.DataRecorder
	logger       *slog.Logger
}

// Run runs the tests in order. It stops early if ctx is cancelled and
// returns the results gathered so far together with the context error.
func (r *Runner) Run(ctx context.Context, tests []Test) ([]Result, error) {
	results := make([]Result, 0, len(tests))

	for i, t := range tests {
		if err := ctx.Err(); err != nil {
			return results, errors.Wrap(err, "regression interrupted")
		}

		seed := r.seed + int64(i)
		res := r.runOne(ctx, t, seed, len(tests) > 1)
		results = append(results, res)
		r.record(res)
	}

	return results, nil
}

func (r *Runner) runOne(
	ctx context.Context,
	t Test,
	seed int64,
	several bool,
) Result {
	res := Result{Name: t.Name, Seed: seed}

	if t.Skip {
		res.Status = StatusSkip
		r.logger.Info("skipping test", "test", t.Name)

		return res
	}

	r.logger.Info("running test", "test", t.Name, "seed", seed)

	sb := r.simBuilder.WithTestName(t.Name)
	if r.waveFile != "" {
		sb = sb.WithWaveFile(wavePath(r.waveFile, t.Name, several), r.timescale)
	}

	s, err := sb.Build()
	if err != nil {
		res.Status = StatusFail
		res.Err = errors.Wrap(err, "building simulation")

		return res
	}

	ctx = context.WithValue(ctx, randKey{}, rand.New(rand.NewSource(seed)))

	start := time.Now()
	err = s.Run(ctx, func(ctx context.Context) error {
		return t.Fn(ctx, s.DUT())
	}, t.Timeout)
	res.RealTime = time.Since(start).Seconds()
	res.SimTime = s.Now()

	res.WaveErr = s.Terminate()
	res.Err = err
	res.Status = judge(t, err)

	if t.ExpectFail && err == nil {
		res.Err = errors.New("test was expected to fail but passed")
	}

	level := slog.LevelInfo
	if res.Status == StatusFail {
		level = slog.LevelError
	}

	s.Logger().Log(ctx, level, "test finished",
		"status", string(res.Status),
		"real_time", res.RealTime,
		"error", res.Message())

	if res.WaveErr != nil {
		s.Logger().Warn("waves are incomplete", "error", res.WaveErr)
	}

	return res
}

func judge(t Test, err error) Status {
	failed := err != nil
	if failed == t.ExpectFail {
		return StatusPass
	}

	return StatusFail
}

func wavePath(base, test string, several bool) string {
	if !several {
		return base
	}

	ext := filepath.Ext(base)

	return strings.TrimSuffix(base, ext) + "_" + test + ext
}

func (r *Runner) record(res Result) {
	if r.dataRecorder == nil {
		return
	}

	r.dataRecorder.InsertData(datarecording.ResultTable, datarecording.ResultEntry{
		TestName:    res.Name,
		Status:      string(res.Status),
		SimTimeNS:   res.SimTime.In(sim.NS),
		RealTimeSec: res.RealTime,
		Seed:        res.Seed,
		Message:     res.Message(),
	})
}
