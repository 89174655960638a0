// Package soc holds the testbench of the SoC with the UART peripheral on its
// AXI4 bus.
package soc

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sarchlab/socbench/clock"
	"github.com/sarchlab/socbench/dut"
	"github.com/sarchlab/socbench/regression"
	"github.com/sarchlab/socbench/reset"
	"github.com/sarchlab/socbench/sim"
	"github.com/sarchlab/socbench/simulation"
)

// Toplevel is the name of the DUT.
const Toplevel = "soc"

// Clock and reset parameters.
const (
	ClockPeriodNS = 100
	ResetCycles   = 400
)

// Resolution is the finest time step between two changes the testbench
// drives, which is half a clock period.
func Resolution() sim.VTime {
	return sim.MustTime(ClockPeriodNS/2, sim.NS)
}

// Ports returns the signals the testbench drives.
func Ports() []dut.PortSpec {
	return []dut.PortSpec{
		{Name: "CLK", Width: 1, Direction: dut.Input},
		{Name: "RST_N", Width: 1, Direction: dut.Input},
	}
}

// Register adds the SoC tests to the registry.
func Register(r *regression.Registry) error {
	return r.Register(regression.Test{
		Name:    "test_peripherals",
		Fn:      TestPeripherals,
		Timeout: sim.MustTime(1, sim.MS),
	})
}

// TestPeripherals starts the clock, then holds RST_N low for ResetCycles
// rising edges of CLK and releases it.
//
// The peripheral checks that should follow the reset are not written yet.
func TestPeripherals(ctx context.Context, d *dut.Handle) error {
	clk, err := d.Signal("CLK")
	if err != nil {
		return err
	}

	rstN, err := d.Signal("RST_N")
	if err != nil {
		return err
	}

	c, err := clock.New(clk, ClockPeriodNS, sim.NS)
	if err != nil {
		return err
	}

	if err := c.Start(false); err != nil {
		return errors.Wrap(err, "starting CLK")
	}

	b := reset.MakeBuilder().
		WithReset(rstN).
		WithClock(clk).
		WithActiveLow().
		WithCycles(ResetCycles)

	if s, ok := simulation.FromContext(ctx); ok {
		progress, done := s.StartProgress("RST_N", ResetCycles)
		defer done()

		b = b.WithProgress(progress)
	}

	return b.Build().Run(ctx)
}
