package soc

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/socbench/dut"
	"github.com/sarchlab/socbench/monitoring"
	"github.com/sarchlab/socbench/regression"
	"github.com/sarchlab/socbench/signal"
	"github.com/sarchlab/socbench/sim"
	"github.com/sarchlab/socbench/simulation"
)

var _ = Describe("test_peripherals", func() {
	It("should release RST_N after 400 rising edges of CLK", func() {
		s, err := simulation.MakeBuilder().
			WithToplevel(Toplevel).
			WithPorts(Ports()).
			WithTestName("test_peripherals").
			Build()
		Expect(err).NotTo(HaveOccurred())

		clk := s.DUT().MustSignal("CLK")
		rstN := s.DUT().MustSignal("RST_N")

		risingBeforeRelease := 0
		released := false
		var rstChanges []signal.Change

		offGrid := 0
		clk.Watch(func(c signal.Change) {
			if c.Time%Resolution() != 0 {
				offGrid++
			}

			if c.IsRising() && !released {
				risingBeforeRelease++
			}
		})
		rstN.Watch(func(c signal.Change) {
			rstChanges = append(rstChanges, c)
			if c.IsRising() {
				released = true
			}
		})

		err = s.Run(context.Background(), func(ctx context.Context) error {
			return TestPeripherals(ctx, s.DUT())
		}, 0)
		Expect(err).NotTo(HaveOccurred())

		Expect(rstChanges).To(HaveLen(2))
		Expect(rstChanges[0].Time).To(Equal(sim.VTime(0)))
		Expect(rstChanges[0].New.String()).To(Equal("0"))
		Expect(rstChanges[1].Time).To(Equal(sim.MustTime(39950, sim.NS)))
		Expect(rstChanges[1].IsRising()).To(BeTrue())
		Expect(risingBeforeRelease).To(Equal(ResetCycles))
		Expect(offGrid).To(BeZero())
		Expect(rstN.Value().String()).To(Equal("1"))
		Expect(s.Now()).To(Equal(sim.MustTime(39950, sim.NS)))
	})

	It("should report reset progress to the monitor", func() {
		m := monitoring.NewMonitor()
		s, err := simulation.MakeBuilder().
			WithToplevel(Toplevel).
			WithPorts(Ports()).
			WithMonitor(m).
			Build()
		Expect(err).NotTo(HaveOccurred())

		err = s.Run(context.Background(), func(ctx context.Context) error {
			return TestPeripherals(ctx, s.DUT())
		}, 0)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should fail on a DUT without the reset port", func() {
		h, err := dut.New("bad", sim.NewSerialEngine(), []dut.PortSpec{
			{Name: "CLK", Width: 1},
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(TestPeripherals(context.Background(), h)).
			To(MatchError(dut.ErrNoSuchSignal))
	})

	It("should pass through the regression runner", func() {
		reg := regression.NewRegistry()
		Expect(Register(reg)).To(Succeed())

		tests, err := reg.Select("test_peripherals")
		Expect(err).NotTo(HaveOccurred())

		sb := simulation.MakeBuilder().WithToplevel(Toplevel).WithPorts(Ports())
		results, err := regression.MakeRunnerBuilder().
			WithSimulationBuilder(sb).
			Build().
			Run(context.Background(), tests)

		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(1))
		Expect(results[0].Status).To(Equal(regression.StatusPass))
		Expect(results[0].SimTime).To(Equal(sim.MustTime(39950, sim.NS)))
	})
})
