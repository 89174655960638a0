package sim

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// VTime defines the time in the simulated space in the unit of femtosecond.
//
// Integer time keeps edge arithmetic exact. A 100ns clock never drifts, no
// matter how many periods the simulation runs.
type VTime uint64

// TimeUnit is the number of femtoseconds in one unit.
type TimeUnit VTime

// Defines the units of simulated time.
const (
	FS  TimeUnit = 1
	PS  TimeUnit = 1e3
	NS  TimeUnit = 1e6
	US  TimeUnit = 1e9
	MS  TimeUnit = 1e12
	SEC TimeUnit = 1e15
)

var unitNames = map[TimeUnit]string{
	FS:  "fs",
	PS:  "ps",
	NS:  "ns",
	US:  "us",
	MS:  "ms",
	SEC: "s",
}

// ParseTimeUnit converts a unit name such as "ns" into a TimeUnit. The name
// "step" refers to the smallest representable time.
func ParseTimeUnit(name string) (TimeUnit, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "fs", "step":
		return FS, nil
	case "ps":
		return PS, nil
	case "ns":
		return NS, nil
	case "us":
		return US, nil
	case "ms":
		return MS, nil
	case "s", "sec":
		return SEC, nil
	}

	return 0, errors.Errorf("unknown time unit %q", name)
}

// String returns the short name of the unit.
func (u TimeUnit) String() string {
	if n, ok := unitNames[u]; ok {
		return n
	}

	return fmt.Sprintf("%dfs", VTime(u))
}

// Time converts a value in the given unit to VTime. It fails if the value is
// negative or does not land on a whole femtosecond.
func Time(v float64, unit TimeUnit) (VTime, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Errorf("invalid time %v%s", v, unit)
	}

	if v < 0 {
		return 0, errors.Errorf("negative time %v%s", v, unit)
	}

	fs := v * float64(unit)
	rounded := math.Round(fs)
	if math.Abs(fs-rounded) > 1e-6*math.Max(1, rounded) {
		return 0, errors.Errorf(
			"time %v%s is not a whole number of femtoseconds", v, unit)
	}

	if rounded >= math.MaxUint64 {
		return 0, errors.Errorf("time %v%s overflows", v, unit)
	}

	return VTime(rounded), nil
}

// MustTime is like Time but panics on error.
func MustTime(v float64, unit TimeUnit) VTime {
	t, err := Time(v, unit)
	if err != nil {
		panic(err)
	}

	return t
}

// In returns the time expressed in the given unit.
func (t VTime) In(unit TimeUnit) float64 {
	return float64(t) / float64(unit)
}

// String formats the time in nanoseconds.
func (t VTime) String() string {
	return fmt.Sprintf("%.2fns", t.In(NS))
}
