package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/sarchlab/socbench/config"
	"github.com/sarchlab/socbench/datarecording"
	"github.com/sarchlab/socbench/monitoring"
	"github.com/sarchlab/socbench/regression"
	"github.com/sarchlab/socbench/simulation"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the tests of the toplevel.",
	Long: "`run` runs the selected tests, writes a JUnit report and prints " +
		"a summary. It fails when any test fails.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		logEvents, _ := cmd.Flags().GetBool("log-events")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		return runTests(ctx, cmd, cfg, logEvents)
	},
}

func init() {
	flags := runCmd.Flags()
	flags.String("testcase", "", "comma separated test names or patterns (TESTCASE)")
	flags.Int64("seed", 0, "base random seed, 0 picks one (RANDOM_SEED)")
	flags.Bool("waves", false, "dump a VCD file (WAVES)")
	flags.String("wave-file", "", "path of the VCD file (WAVE_FILE)")
	flags.String("timescale", "", "timescale of the VCD file (TIMESCALE)")
	flags.String("results", "", "path of the JUnit report (RESULTS_FILE)")
	flags.String("record", "", "record into this SQLite database (RECORD_DB)")
	flags.Bool("monitor", false, "serve the web monitor (MONITOR)")
	flags.Int("monitor-port", 0, "port of the web monitor (MONITOR_PORT)")
	flags.Bool("open-browser", false, "open the web monitor in a browser")
	flags.Bool("log-events", false, "log every engine event at debug level")

	rootCmd.AddCommand(runCmd)
}

func runTests(
	ctx context.Context,
	cmd *cobra.Command,
	cfg config.Config,
	logEvents bool,
) error {
	top, reg, err := lookupToplevel(cfg.Toplevel)
	if err != nil {
		return err
	}

	tests, err := reg.Select(cfg.TestCase)
	if err != nil {
		return err
	}

	if cfg.Waves {
		ts := cfg.ParsedTimescale()
		if _, err := ts.Ticks(top.resolution()); err != nil {
			return errors.Wrapf(err, "timescale too coarse for toplevel %q",
				cfg.Toplevel)
		}
	}

	logger := newLogger(cfg)

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	logger.Info("running tests",
		"toplevel", cfg.Toplevel, "tests", len(tests), "seed", seed)

	sb := simulation.MakeBuilder().
		WithToplevel(cfg.Toplevel).
		WithPorts(top.ports())
	if logEvents {
		sb = sb.WithEventLogging()
	}

	if cfg.Monitor {
		m, err := startMonitor(cfg, logger)
		if err != nil {
			return err
		}

		defer func() {
			_ = m.StopServer(context.Background())
		}()

		sb = sb.WithMonitor(m)
	}

	rb := regression.MakeRunnerBuilder().
		WithSimulationBuilder(sb).
		WithSeed(seed).
		WithLogger(logger)

	if cfg.Waves {
		rb = rb.WithWaveFile(cfg.WaveFile, cfg.ParsedTimescale())
	}

	if cfg.RecordDB != "" {
		rec := datarecording.New(cfg.RecordDB)
		defer rec.Close()

		recordSession(rec, cfg.Toplevel)
		rb = rb.WithDataRecorder(rec)
	}

	results, runErr := rb.Build().Run(ctx, tests)

	if cfg.ResultsFile != "" {
		err := regression.WriteJUnitFile(cfg.ResultsFile, cfg.Toplevel, results)
		if err != nil {
			return err
		}
	}

	if err := regression.Summarize(cmd.OutOrStdout(), results); err != nil {
		return err
	}

	if runErr != nil {
		return runErr
	}

	if _, fail, _ := regression.Tally(results); fail > 0 {
		return errors.Errorf("%d of %d tests failed", fail, len(results))
	}

	return nil
}

func startMonitor(
	cfg config.Config,
	logger *slog.Logger,
) (*monitoring.Monitor, error) {
	m := monitoring.NewMonitor()
	if cfg.MonitorPort != 0 {
		m = m.WithPortNumber(cfg.MonitorPort)
	}

	if _, err := m.StartServer(); err != nil {
		return nil, err
	}

	if cfg.OpenBrowser {
		if err := m.OpenBrowser(); err != nil {
			logger.Warn("cannot open browser", "url", m.URL(), "error", err)
		}
	}

	return m, nil
}

func recordSession(rec datarecording.DataRecorder, toplevel string) {
	datarecording.EnsureTable(rec,
		datarecording.SessionTable, datarecording.SessionEntry{})
	rec.InsertData(datarecording.SessionTable, datarecording.SessionEntry{
		ID:        xid.New().String(),
		Toplevel:  toplevel,
		StartedAt: time.Now().Format(time.RFC3339),
	})
}
