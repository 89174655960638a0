package waves

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sarchlab/socbench/sim"
)

// A Timescale is the time step of a waveform file, such as 10ns.
type Timescale struct {
	Magnitude int
	Unit      sim.TimeUnit
}

// DefaultTimescale is one nanosecond.
var DefaultTimescale = Timescale{Magnitude: 1, Unit: sim.NS}

// ParseTimescale parses a timescale such as "1ns", "10 ps" or "100us".
func ParseTimescale(s string) (Timescale, error) {
	s = strings.TrimSpace(s)

	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}

	if i == 0 {
		return Timescale{}, errors.Errorf("timescale %q has no magnitude", s)
	}

	mag, err := strconv.Atoi(s[:i])
	if err != nil {
		return Timescale{}, errors.Wrapf(err, "timescale %q", s)
	}

	unit, err := sim.ParseTimeUnit(s[i:])
	if err != nil {
		return Timescale{}, errors.Wrapf(err, "timescale %q", s)
	}

	ts := Timescale{Magnitude: mag, Unit: unit}
	if err := ts.Validate(); err != nil {
		return Timescale{}, err
	}

	return ts, nil
}

// Validate checks that the magnitude is 1, 10 or 100.
func (ts Timescale) Validate() error {
	switch ts.Magnitude {
	case 1, 10, 100:
		return nil
	}

	return errors.Errorf("timescale magnitude must be 1, 10 or 100, got %d",
		ts.Magnitude)
}

// Step returns the length of one time step.
func (ts Timescale) Step() sim.VTime {
	return sim.VTime(ts.Magnitude) * sim.VTime(ts.Unit)
}

// Ticks converts t into a number of time steps. It fails if t does not land
// on a step.
func (ts Timescale) Ticks(t sim.VTime) (uint64, error) {
	step := ts.Step()
	if t%step != 0 {
		return 0, errors.Errorf("time %s is not a multiple of timescale %s",
			t, ts)
	}

	return uint64(t / step), nil
}

func (ts Timescale) String() string {
	return fmt.Sprintf("%d%s", ts.Magnitude, ts.Unit)
}
