// Package dut provides the handle through which tests reach the signals of
// the device under test.
package dut

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sarchlab/socbench/signal"
	"github.com/sarchlab/socbench/sim"
)

// Direction tells which side drives a port.
type Direction int

// Port directions, seen from the DUT.
const (
	Input Direction = iota
	Output
	InOut
)

var directionNames = map[Direction]string{
	Input:  "input",
	Output: "output",
	InOut:  "inout",
}

func (d Direction) String() string {
	if n, ok := directionNames[d]; ok {
		return n
	}

	return fmt.Sprintf("Direction(%d)", int(d))
}

// ParseDirection converts "input", "output" or "inout" into a Direction.
func ParseDirection(s string) (Direction, error) {
	for d, n := range directionNames {
		if strings.EqualFold(n, s) {
			return d, nil
		}
	}

	return Input, errors.Errorf("unknown port direction %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(text []byte) error {
	v, err := ParseDirection(string(text))
	if err != nil {
		return err
	}

	*d = v

	return nil
}

// PortSpec declares one top-level port of the DUT.
type PortSpec struct {
	Name      string    `yaml:"name" json:"name"`
	Width     int       `yaml:"width" json:"width"`
	Direction Direction `yaml:"direction" json:"direction"`
}

// ErrNoSuchSignal is returned when looking up a signal that the DUT does not
// have.
var ErrNoSuchSignal = errors.New("no such signal")

// Handle is the test's view of the DUT: a named set of signals.
type Handle struct {
	name    string
	specs   []PortSpec
	signals []*signal.Signal
	index   map[string]int
}

// New creates the handle of a DUT with the given ports. The signals apply
// their writes through the engine.
func New(
	name string,
	engine sim.EventScheduler,
	ports []PortSpec,
) (*Handle, error) {
	if name == "" {
		return nil, errors.New("DUT name must not be empty")
	}

	h := &Handle{
		name:  name,
		index: make(map[string]int),
	}

	for _, p := range ports {
		if err := portMustBeValid(p); err != nil {
			return nil, errors.Wrapf(err, "DUT %s", name)
		}

		if _, dup := h.index[p.Name]; dup {
			return nil, errors.Errorf("DUT %s: port %s declared twice",
				name, p.Name)
		}

		h.index[p.Name] = len(h.signals)
		h.specs = append(h.specs, p)
		h.signals = append(h.signals, signal.New(p.Name, p.Width, engine))
	}

	return h, nil
}

func portMustBeValid(p PortSpec) error {
	if p.Name == "" {
		return errors.New("port name must not be empty")
	}

	if strings.ContainsAny(p.Name, " \t\n.") {
		return errors.Errorf("port name %q must not contain spaces or dots",
			p.Name)
	}

	if p.Width < 1 || p.Width > signal.MaxWidth {
		return errors.Errorf("port %s: width %d out of range 1..%d",
			p.Name, p.Width, signal.MaxWidth)
	}

	return nil
}

// Name returns the name of the top-level module.
func (h *Handle) Name() string {
	return h.name
}

// Signal returns the signal with the given name.
func (h *Handle) Signal(name string) (*signal.Signal, error) {
	i, ok := h.index[name]
	if !ok {
		return nil, errors.Wrapf(ErrNoSuchSignal, "%s.%s", h.name, name)
	}

	return h.signals[i], nil
}

// MustSignal is like Signal but panics if the signal does not exist.
func (h *Handle) MustSignal(name string) *signal.Signal {
	s, err := h.Signal(name)
	if err != nil {
		panic(err)
	}

	return s
}

// Signals returns all the signals in declaration order.
func (h *Handle) Signals() []*signal.Signal {
	out := make([]*signal.Signal, len(h.signals))
	copy(out, h.signals)

	return out
}

// Ports returns the port declarations in declaration order.
func (h *Handle) Ports() []PortSpec {
	out := make([]PortSpec, len(h.specs))
	copy(out, h.specs)

	return out
}
