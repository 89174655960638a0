// Package cmd provides the command-line interface of socbench.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/sarchlab/socbench/config"
	"github.com/sarchlab/socbench/dut"
	"github.com/sarchlab/socbench/regression"
	"github.com/sarchlab/socbench/sim"
	"github.com/sarchlab/socbench/simlog"
	"github.com/sarchlab/socbench/soc"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "socbench",
	Short: "socbench drives clock and reset into a simulated SoC.",
	Long: `socbench hosts the signal boundary of a simulated SoC and runs ` +
		`registered tests against it. Settings come from a YAML file, a ` +
		`.env file, the environment and the flags, in increasing priority.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "YAML file with the run settings")
	flags.String("env-file", ".env", "file with environment variables")
	flags.String("toplevel", "", "name of the DUT (TOPLEVEL)")
	flags.String("log-level", "", "debug, info, warn or error (LOG_LEVEL)")
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

// A toplevel is a DUT the tool knows how to build and test.
type toplevel struct {
	ports      func() []dut.PortSpec
	register   func(*regression.Registry) error
	resolution func() sim.VTime
}

var toplevels = map[string]toplevel{
	soc.Toplevel: {
		ports:      soc.Ports,
		register:   soc.Register,
		resolution: soc.Resolution,
	},
}

func lookupToplevel(name string) (toplevel, *regression.Registry, error) {
	t, ok := toplevels[name]
	if !ok {
		return toplevel{}, nil, errors.Errorf("unknown toplevel %q", name)
	}

	reg := regression.NewRegistry()
	if err := t.register(reg); err != nil {
		return toplevel{}, nil, err
	}

	return t, reg, nil
}

// loadConfig reads the settings and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()

	path, _ := flags.GetString("config")
	envFile, _ := flags.GetString("env-file")

	cfg, err := config.Load(path, envFile)
	if err != nil {
		return cfg, err
	}

	setString := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}

	setBool := func(name string, dst *bool) {
		if flags.Changed(name) {
			*dst, _ = flags.GetBool(name)
		}
	}

	setString("toplevel", &cfg.Toplevel)
	setString("log-level", &cfg.LogLevel)
	setString("testcase", &cfg.TestCase)
	setString("wave-file", &cfg.WaveFile)
	setString("timescale", &cfg.Timescale)
	setString("results", &cfg.ResultsFile)
	setString("record", &cfg.RecordDB)
	setBool("waves", &cfg.Waves)
	setBool("monitor", &cfg.Monitor)
	setBool("open-browser", &cfg.OpenBrowser)

	if flags.Changed("seed") {
		cfg.Seed, _ = flags.GetInt64("seed")
	}

	if flags.Changed("monitor-port") {
		cfg.MonitorPort, _ = flags.GetInt("monitor-port")
	}

	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config) *slog.Logger {
	level, err := simlog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: level}))
}
