// Package regression registers testbench tests and runs them one after
// another, each on a fresh simulation.
package regression

import (
	"context"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/sarchlab/socbench/dut"
	"github.com/sarchlab/socbench/sim"
)

// TestFunc is the body of a test. It runs as the main task of the
// simulation.
type TestFunc func(ctx context.Context, d *dut.Handle) error

// A Test is a registered test.
type Test struct {
	Name string
	Fn   TestFunc

	// Timeout is the simulated time after which the test fails. Zero means
	// no timeout.
	Timeout sim.VTime

	Skip       bool
	ExpectFail bool
}

// A Registry holds tests in registration order.
type Registry struct {
	tests []Test
	index map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register adds a test.
func (r *Registry) Register(t Test) error {
	if t.Name == "" {
		return errors.New("test name cannot be empty")
	}

	if t.Fn == nil {
		return errors.Errorf("test %s has no body", t.Name)
	}

	if _, found := r.index[t.Name]; found {
		return errors.Errorf("test %s already registered", t.Name)
	}

	r.index[t.Name] = len(r.tests)
	r.tests = append(r.tests, t)

	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(t Test) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Tests returns all tests.
func (r *Registry) Tests() []Test {
	out := make([]Test, len(r.tests))
	copy(out, r.tests)

	return out
}

// Lookup returns the test with the given name.
func (r *Registry) Lookup(name string) (Test, bool) {
	i, found := r.index[name]
	if !found {
		return Test{}, false
	}

	return r.tests[i], true
}

// Select returns the tests that a filter names. The filter is a comma
// separated list of test names or regular expressions that match whole
// names. An empty filter selects every test. Tests keep registration order.
func (r *Registry) Select(filter string) ([]Test, error) {
	if strings.TrimSpace(filter) == "" {
		return r.Tests(), nil
	}

	chosen := make(map[string]bool)

	for _, item := range strings.Split(filter, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		if _, found := r.index[item]; found {
			chosen[item] = true
			continue
		}

		re, err := regexp.Compile("^(?:" + item + ")$")
		if err != nil {
			return nil, errors.Wrapf(err, "test filter %q", item)
		}

		matched := false
		for _, t := range r.tests {
			if re.MatchString(t.Name) {
				chosen[t.Name] = true
				matched = true
			}
		}

		if !matched {
			return nil, errors.Errorf("no test matches %q", item)
		}
	}

	var out []Test
	for _, t := range r.tests {
		if chosen[t.Name] {
			out = append(out, t)
		}
	}

	return out, nil
}
