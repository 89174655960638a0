package regression

import (
	"github.com/sarchlab/socbench/bench"
	"github.com/sarchlab/socbench/sim"
)

// ErrTimeout marks a test that ran out of simulated time.
var ErrTimeout = bench.ErrTimeout

// ErrStalled marks a test whose simulation ran out of events.
var ErrStalled = bench.ErrStalled

// Status is the outcome of a test.
type Status string

// Defines the outcomes of a test.
const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
	StatusSkip Status = "SKIP"
)

// A Result records how a test went.
type Result struct {
	Name     string
	Status   Status
	SimTime  sim.VTime
	RealTime float64
	Seed     int64
	Err      error

	// WaveErr is set when the wave file could not be written. It does not
	// change the status.
	WaveErr error
}

// Message returns the error text of the result, or an empty string.
func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}

	return r.Err.Error()
}

// Tally counts results by status.
func Tally(results []Result) (pass, fail, skip int) {
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			pass++
		case StatusFail:
			fail++
		case StatusSkip:
			skip++
		}
	}

	return pass, fail, skip
}
