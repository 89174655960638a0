package bench

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	"github.com/sarchlab/socbench/clock"
	"github.com/sarchlab/socbench/signal"
	"github.com/sarchlab/socbench/sim"
)

var _ = Describe("Scheduler", func() {
	var (
		engine *sim.SerialEngine
		sched  *Scheduler
		clk    *signal.Signal
		ns     = func(v float64) sim.VTime { return sim.MustTime(v, sim.NS) }
	)

	startClock := func() {
		c, err := clock.New(clk, 100, sim.NS)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Start(false)).To(Succeed())
	}

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
		sched = NewScheduler(engine, nil)
		clk = signal.New("CLK", 1, engine)
	})

	It("should run the main task", func() {
		ran := false

		err := sched.Run(context.Background(), "main",
			func(ctx context.Context) error {
				ran = true
				Expect(CurrentTask(ctx).Name()).To(Equal("main"))
				return nil
			}, 0)

		Expect(err).NotTo(HaveOccurred())
		Expect(ran).To(BeTrue())
	})

	It("should return the error of the main task", func() {
		boom := errors.New("boom")

		err := sched.Run(context.Background(), "main",
			func(ctx context.Context) error { return boom }, 0)

		Expect(err).To(MatchError(boom))
	})

	It("should apply the last writes of the main task", func() {
		rst := signal.New("RST_N", 1, engine)

		err := sched.Run(context.Background(), "main",
			func(ctx context.Context) error {
				startClock()

				if err := Await(ctx, RisingEdge(clk)); err != nil {
					return err
				}

				return rst.SetInt(1)
			}, 0)

		Expect(err).NotTo(HaveOccurred())
		Expect(rst.Value().String()).To(Equal("1"))
		Expect(engine.CurrentTime()).To(Equal(ns(50)))
	})

	It("should not start tasks after the main task returns", func() {
		var late *Task

		err := sched.Run(context.Background(), "main",
			func(ctx context.Context) error {
				var err error
				late, err = StartSoon(ctx, "late",
					func(ctx context.Context) error { return nil })

				return err
			}, 0)

		Expect(err).NotTo(HaveOccurred())
		Expect(late.Done()).To(BeTrue())
		Expect(late.Err()).To(MatchError(context.Canceled))
	})

	It("should advance time with timers", func() {
		var seen []sim.VTime

		err := sched.Run(context.Background(), "main",
			func(ctx context.Context) error {
				seen = append(seen, Now(ctx))
				if err := Await(ctx, Timer(ns(10))); err != nil {
					return err
				}

				seen = append(seen, Now(ctx))
				if err := Await(ctx, Timer(ns(5))); err != nil {
					return err
				}

				seen = append(seen, Now(ctx))

				return nil
			}, 0)

		Expect(err).NotTo(HaveOccurred())
		Expect(seen).To(Equal([]sim.VTime{0, ns(10), ns(15)}))
	})

	It("should wake on rising edges of a running clock", func() {
		var seen []sim.VTime

		err := sched.Run(context.Background(), "main",
			func(ctx context.Context) error {
				startClock()

				for i := 0; i < 3; i++ {
					if err := Await(ctx, RisingEdge(clk)); err != nil {
						return err
					}

					seen = append(seen, Now(ctx))
				}

				return nil
			}, 0)

		Expect(err).NotTo(HaveOccurred())
		Expect(seen).To(Equal([]sim.VTime{ns(50), ns(150), ns(250)}))
	})

	It("should wake on falling edges and on any edge", func() {
		var falling, anyAt sim.VTime

		err := sched.Run(context.Background(), "main",
			func(ctx context.Context) error {
				startClock()

				if err := Await(ctx, Edge(clk)); err != nil {
					return err
				}

				anyAt = Now(ctx)

				if err := Await(ctx, FallingEdge(clk)); err != nil {
					return err
				}

				falling = Now(ctx)

				return nil
			}, 0)

		Expect(err).NotTo(HaveOccurred())
		Expect(anyAt).To(Equal(sim.VTime(0)))
		Expect(falling).To(Equal(ns(100)))
	})

	It("should count clock cycles", func() {
		var at sim.VTime

		err := sched.Run(context.Background(), "main",
			func(ctx context.Context) error {
				startClock()

				if err := Await(ctx, ClockCycles(clk, 4)); err != nil {
					return err
				}

				at = Now(ctx)

				return nil
			}, 0)

		Expect(err).NotTo(HaveOccurred())
		Expect(at).To(Equal(ns(350)))
	})

	It("should reject edge triggers on buses", func() {
		bus := signal.New("BUS", 4, engine)

		err := sched.Run(context.Background(), "main",
			func(ctx context.Context) error {
				return Await(ctx, RisingEdge(bus))
			}, 0)

		Expect(err).To(HaveOccurred())
	})

	It("should join a background task", func() {
		var joinedAt sim.VTime

		err := sched.Run(context.Background(), "main",
			func(ctx context.Context) error {
				child, err := StartSoon(ctx, "child",
					func(ctx context.Context) error {
						return Await(ctx, Timer(ns(30)))
					})
				if err != nil {
					return err
				}

				if err := Await(ctx, Join(child)); err != nil {
					return err
				}

				joinedAt = Now(ctx)
				Expect(child.Done()).To(BeTrue())
				Expect(child.Err()).NotTo(HaveOccurred())

				return Await(ctx, Join(child))
			}, 0)

		Expect(err).NotTo(HaveOccurred())
		Expect(joinedAt).To(Equal(ns(30)))
	})

	It("should fire First on the earliest trigger", func() {
		var at sim.VTime

		err := sched.Run(context.Background(), "main",
			func(ctx context.Context) error {
				startClock()

				err := Await(ctx, First(Timer(ns(20)), RisingEdge(clk)))
				at = Now(ctx)

				return err
			}, 0)

		Expect(err).NotTo(HaveOccurred())
		Expect(at).To(Equal(ns(20)))
		Expect(clk.NumWatchers()).To(Equal(0))
	})

	It("should fail the run when a background task fails", func() {
		boom := errors.New("boom")

		err := sched.Run(context.Background(), "main",
			func(ctx context.Context) error {
				_, err := StartSoon(ctx, "bad",
					func(ctx context.Context) error { return boom })
				if err != nil {
					return err
				}

				return Await(ctx, Timer(ns(100)))
			}, 0)

		Expect(err).To(MatchError(boom))
		Expect(err.Error()).To(ContainSubstring("task bad failed"))
	})

	It("should turn a panic into an error", func() {
		err := sched.Run(context.Background(), "main",
			func(ctx context.Context) error { panic("oops") }, 0)

		Expect(err).To(MatchError(ContainSubstring("panicked: oops")))
	})

	It("should cancel background tasks when the main task returns", func() {
		var waitErr error

		err := sched.Run(context.Background(), "main",
			func(ctx context.Context) error {
				startClock()

				_, err := StartSoon(ctx, "watcher",
					func(ctx context.Context) error {
						for {
							waitErr = Await(ctx, RisingEdge(clk))
							if waitErr != nil {
								return waitErr
							}
						}
					})
				if err != nil {
					return err
				}

				return Await(ctx, ClockCycles(clk, 2))
			}, 0)

		Expect(err).NotTo(HaveOccurred())
		Expect(waitErr).To(MatchError(context.Canceled))
		Expect(clk.NumWatchers()).To(Equal(0))

		for _, t := range sched.Tasks() {
			Expect(t.Done()).To(BeTrue())
		}
	})

	It("should time out", func() {
		err := sched.Run(context.Background(), "main",
			func(ctx context.Context) error {
				startClock()
				return Await(ctx, ClockCycles(clk, 1000))
			}, ns(1000))

		Expect(err).To(MatchError(ErrTimeout))
		Expect(engine.CurrentTime()).To(Equal(ns(1000)))
	})

	It("should detect a stalled test", func() {
		err := sched.Run(context.Background(), "main",
			func(ctx context.Context) error {
				return Await(ctx, RisingEdge(clk))
			}, 0)

		Expect(err).To(MatchError(ErrStalled))
	})

	It("should stop when the run context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())

		err := sched.Run(ctx, "main",
			func(ctx context.Context) error {
				cancel()
				return Await(ctx, Timer(ns(10)))
			}, 0)

		Expect(err).To(MatchError(context.Canceled))
	})

	It("should refuse to await outside of a task", func() {
		Expect(Await(context.Background(), Timer(ns(1)))).
			To(MatchError(ErrNotInTask))

		_, err := StartSoon(context.Background(), "x", nil)
		Expect(err).To(MatchError(ErrNotInTask))
	})
})
