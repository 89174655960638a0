// Package config collects the settings of a testbench run from a YAML file,
// a .env file and the environment.
//
// Later sources override earlier ones: defaults, the YAML file, the .env
// file, the environment. Command line flags are applied on top by the
// caller.
package config

import (
	"bytes"
	_ "embed"
	"io"
	"os"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sarchlab/socbench/simlog"
	"github.com/sarchlab/socbench/waves"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Config holds the settings of a run.
type Config struct {
	Toplevel    string `yaml:"toplevel"`
	TestCase    string `yaml:"testcase"`
	Seed        int64  `yaml:"seed"`
	Waves       bool   `yaml:"waves"`
	WaveFile    string `yaml:"wave_file"`
	Timescale   string `yaml:"timescale"`
	ResultsFile string `yaml:"results_file"`
	RecordDB    string `yaml:"record_db"`
	LogLevel    string `yaml:"log_level"`
	Monitor     bool   `yaml:"monitor"`
	MonitorPort int    `yaml:"monitor_port"`
	OpenBrowser bool   `yaml:"open_browser"`
}

// Default returns the settings used when nothing else is given. A zero seed
// asks the caller to pick one from the wall clock.
func Default() Config {
	return Config{
		Toplevel:    "soc",
		WaveFile:    "dump.vcd",
		Timescale:   "1ns",
		ResultsFile: "results.xml",
		LogLevel:    "info",
	}
}

// Load builds a Config from the defaults, the YAML file at path (skipped
// when path is empty), the .env file at envFile (skipped when it does not
// exist) and the process environment.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrap(err, "reading config")
		}

		if err := cfg.MergeYAML(data); err != nil {
			return cfg, errors.Wrapf(err, "config %s", path)
		}
	}

	dotenv, err := readDotEnv(envFile)
	if err != nil {
		return cfg, err
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}

		v, ok := dotenv[key]

		return v, ok
	}

	if err := cfg.ApplyEnv(lookup); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func readDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	env, err := godotenv.Read(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	return env, nil
}

// MergeYAML checks a YAML document against the schema and copies the
// fields it sets into the Config.
func (c *Config) MergeYAML(data []byte) error {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return errors.Wrap(err, "parsing YAML")
	}

	if err := validateDocument(doc); err != nil {
		return err
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return errors.Wrap(err, "decoding YAML")
	}

	return nil
}

func validateDocument(doc map[string]any) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource).
		LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return errors.Wrap(err, "compiling config schema")
	}

	if doc == nil {
		doc = map[string]any{}
	}

	value := schema.Unify(ctx.Encode(doc))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return errors.Wrap(err, "invalid config")
	}

	return nil
}

// ApplyEnv overrides the Config with the variables lookup knows about.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	str("TOPLEVEL", &c.Toplevel)
	str("TESTCASE", &c.TestCase)
	str("WAVE_FILE", &c.WaveFile)
	str("TIMESCALE", &c.Timescale)
	str("RESULTS_FILE", &c.ResultsFile)
	str("RECORD_DB", &c.RecordDB)
	str("LOG_LEVEL", &c.LogLevel)

	if v, ok := lookup("RANDOM_SEED"); ok {
		seed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return errors.Wrap(err, "RANDOM_SEED")
		}

		c.Seed = seed
	}

	if v, ok := lookup("MONITOR_PORT"); ok {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrap(err, "MONITOR_PORT")
		}

		c.MonitorPort = port
	}

	for key, dst := range map[string]*bool{
		"WAVES":   &c.Waves,
		"MONITOR": &c.Monitor,
	} {
		v, ok := lookup(key)
		if !ok {
			continue
		}

		b, err := parseBool(v)
		if err != nil {
			return errors.Wrap(err, key)
		}

		*dst = b
	}

	return nil
}

func parseBool(s string) (bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return false, nil
	}

	return strconv.ParseBool(s)
}

// Validate checks the fields that the environment can break.
func (c Config) Validate() error {
	if c.Toplevel == "" {
		return errors.New("toplevel must not be empty")
	}

	if _, err := waves.ParseTimescale(c.Timescale); err != nil {
		return err
	}

	if _, err := simlog.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	if c.MonitorPort != 0 && (c.MonitorPort < 1000 || c.MonitorPort > 65535) {
		return errors.Errorf("monitor port %d is out of range", c.MonitorPort)
	}

	return nil
}

// ParsedTimescale returns the wave timescale.
func (c Config) ParsedTimescale() waves.Timescale {
	ts, err := waves.ParseTimescale(c.Timescale)
	if err != nil {
		return waves.DefaultTimescale
	}

	return ts
}
