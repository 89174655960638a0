package dut

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/socbench/sim"
	"gopkg.in/yaml.v3"
)

var _ = Describe("Handle", func() {
	var engine *sim.SerialEngine

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
	})

	It("should expose the declared signals", func() {
		h, err := New("mkSoc", engine, []PortSpec{
			{Name: "CLK", Width: 1},
			{Name: "RST_N", Width: 1},
			{Name: "DATA", Width: 32, Direction: Output},
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(h.Name()).To(Equal("mkSoc"))
		Expect(h.MustSignal("DATA").Width()).To(Equal(32))
		Expect(h.Signals()).To(HaveLen(3))
		Expect(h.Signals()[1].Name()).To(Equal("RST_N"))
		Expect(h.Ports()[2].Direction).To(Equal(Output))
	})

	It("should fail on unknown signals", func() {
		h, err := New("top", engine, []PortSpec{{Name: "CLK", Width: 1}})
		Expect(err).NotTo(HaveOccurred())

		_, err = h.Signal("clk")
		Expect(err).To(MatchError(ErrNoSuchSignal))
		Expect(func() { h.MustSignal("RST") }).To(Panic())
	})

	DescribeTable("should reject invalid ports",
		func(ports []PortSpec) {
			_, err := New("top", engine, ports)
			Expect(err).To(HaveOccurred())
		},
		Entry("duplicate", []PortSpec{
			{Name: "CLK", Width: 1}, {Name: "CLK", Width: 1}}),
		Entry("empty name", []PortSpec{{Name: "", Width: 1}}),
		Entry("dotted name", []PortSpec{{Name: "a.b", Width: 1}}),
		Entry("zero width", []PortSpec{{Name: "A", Width: 0}}),
		Entry("too wide", []PortSpec{{Name: "A", Width: 65}}),
	)

	It("should decode port directions from YAML", func() {
		var ports []PortSpec
		err := yaml.Unmarshal([]byte(`
- name: CLK
  width: 1
  direction: input
- name: TXD
  width: 1
  direction: output
`), &ports)
		Expect(err).NotTo(HaveOccurred())
		Expect(ports[1].Direction).To(Equal(Output))

		err = yaml.Unmarshal([]byte(`[{name: A, width: 1, direction: sideways}]`),
			&ports)
		Expect(err).To(HaveOccurred())
	})
})
