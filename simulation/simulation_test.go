package simulation

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/socbench/bench"
	"github.com/sarchlab/socbench/datarecording"
	"github.com/sarchlab/socbench/dut"
	"github.com/sarchlab/socbench/monitoring"
	"github.com/sarchlab/socbench/sim"
	"github.com/sarchlab/socbench/waves"
)

var _ = Describe("Simulation", func() {
	var (
		dir   string
		ports []dut.PortSpec
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		ports = []dut.PortSpec{
			{Name: "CLK", Width: 1, Direction: dut.Input},
			{Name: "RST_N", Width: 1, Direction: dut.Input},
		}
	})

	It("should panic without ports", func() {
		Expect(func() { _, _ = MakeBuilder().Build() }).To(Panic())
		Expect(func() {
			_, _ = MakeBuilder().WithToplevel("").WithPorts(ports).Build()
		}).To(Panic())
	})

	It("should fail on bad ports", func() {
		_, err := MakeBuilder().
			WithPorts([]dut.PortSpec{{Name: "A", Width: 0}}).
			Build()
		Expect(err).To(HaveOccurred())
	})

	It("should run a test on the DUT", func() {
		s, err := MakeBuilder().
			WithToplevel("soc").
			WithPorts(ports).
			WithTestName("t1").
			WithEventLogging().
			Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(s.ID()).NotTo(BeEmpty())
		Expect(s.DUT().Name()).To(Equal("soc"))

		err = s.Run(context.Background(), func(ctx context.Context) error {
			found, ok := FromContext(ctx)
			Expect(ok).To(BeTrue())
			Expect(found).To(BeIdenticalTo(s))

			if err := s.DUT().MustSignal("RST_N").SetInt(0); err != nil {
				return err
			}

			return bench.Await(ctx, bench.Timer(sim.MustTime(10, sim.NS)))
		}, 0)

		Expect(err).NotTo(HaveOccurred())
		Expect(s.Now()).To(Equal(sim.MustTime(10, sim.NS)))
		Expect(s.DUT().MustSignal("RST_N").Value().String()).To(Equal("0"))
		Expect(s.Terminate()).To(Succeed())
		Expect(s.Run(context.Background(), nil, 0)).To(HaveOccurred())
	})

	It("should dump waves and record changes", func() {
		recorder := datarecording.New(filepath.Join(dir, "rec"))
		defer recorder.Close()

		waveFile := filepath.Join(dir, "dump.vcd")

		s, err := MakeBuilder().
			WithToplevel("soc").
			WithPorts(ports).
			WithTestName("t1").
			WithWaveFile(waveFile, waves.DefaultTimescale).
			WithDataRecorder(recorder).
			Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Waves()).NotTo(BeNil())
		Expect(s.DataRecorder()).To(Equal(recorder))

		err = s.Run(context.Background(), func(ctx context.Context) error {
			return s.DUT().MustSignal("CLK").SetInt(1)
		}, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Terminate()).To(Succeed())

		content, err := os.ReadFile(waveFile)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(content)).To(ContainSubstring("$var wire 1 ! CLK $end"))
		Expect(string(content)).To(ContainSubstring("$scope module soc $end"))
		Expect(recorder.ListTables()).To(ContainElement(datarecording.ChangeTable))
	})

	It("should report progress to the monitor", func() {
		s, err := MakeBuilder().WithPorts(ports).Build()
		Expect(err).NotTo(HaveOccurred())

		p, done := s.StartProgress("reset", 10)
		p.IncrementFinished(1)
		done()

		m := monitoring.NewMonitor()
		s, err = MakeBuilder().WithPorts(ports).WithMonitor(m).Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Monitor()).To(BeIdenticalTo(m))

		p, done = s.StartProgress("reset", 10)
		p.IncrementFinished(3)
		Expect(p.(*monitoring.ProgressBar).Finished).To(Equal(uint64(3)))
		done()
	})
})
