package sim

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"
)

func mockEventAt(
	ctrl *gomock.Controller,
	t VTime,
	handler Handler,
	secondary bool,
) *MockEvent {
	evt := NewMockEvent(ctrl)
	evt.EXPECT().Time().Return(t).AnyTimes()
	evt.EXPECT().Handler().Return(handler).AnyTimes()
	evt.EXPECT().IsSecondary().Return(secondary).AnyTimes()

	return evt
}

var _ = Describe("SerialEngine", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *SerialEngine
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = NewSerialEngine()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should schedule events", func() {
		handler1 := NewMockHandler(mockCtrl)
		handler2 := NewMockHandler(mockCtrl)
		evt1 := mockEventAt(mockCtrl, 4, handler1, false)
		evt2 := mockEventAt(mockCtrl, 2, handler2, false)
		evt3 := mockEventAt(mockCtrl, 3, handler1, false)
		evt4 := mockEventAt(mockCtrl, 5, handler1, false)

		handleEvt2 := handler2.EXPECT().Handle(evt2).Do(func(e Event) {
			engine.Schedule(evt3)
			engine.Schedule(evt4)
		})
		handleEvt3 := handler1.EXPECT().Handle(evt3).After(handleEvt2)
		handleEvt1 := handler1.EXPECT().Handle(evt1).After(handleEvt3)
		handler1.EXPECT().Handle(evt4).After(handleEvt1)

		engine.Schedule(evt1)
		engine.Schedule(evt2)

		Expect(engine.Run()).To(Succeed())
		Expect(engine.CurrentTime()).To(Equal(VTime(5)))
	})

	It("should consider secondary events", func() {
		handler1 := NewMockHandler(mockCtrl)
		handler2 := NewMockHandler(mockCtrl)
		handler3 := NewMockHandler(mockCtrl)
		evt1 := mockEventAt(mockCtrl, 2, handler1, true)
		evt2 := mockEventAt(mockCtrl, 2, handler2, false)
		evt3 := mockEventAt(mockCtrl, 2, handler3, false)

		handleEvt2 := handler2.EXPECT().Handle(evt2)
		handleEvt3 := handler3.EXPECT().Handle(evt3)
		handler1.EXPECT().Handle(evt1).After(handleEvt2).After(handleEvt3)

		engine.Schedule(evt1)
		engine.Schedule(evt2)
		engine.Schedule(evt3)

		Expect(engine.Run()).To(Succeed())
	})

	It("should run same-time events in scheduling order", func() {
		handler := NewMockHandler(mockCtrl)
		var order []int

		for i := 0; i < 10; i++ {
			i := i
			evt := mockEventAt(mockCtrl, 7, handler, false)
			handler.EXPECT().Handle(evt).Do(func(e Event) {
				order = append(order, i)
			})
			engine.Schedule(evt)
		}

		Expect(engine.Run()).To(Succeed())
		Expect(order).To(Equal([]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}))
	})

	It("should run primary events scheduled by a secondary event first", func() {
		handler := NewMockHandler(mockCtrl)
		secondary1 := mockEventAt(mockCtrl, 3, handler, true)
		secondary2 := mockEventAt(mockCtrl, 3, handler, true)
		primary := mockEventAt(mockCtrl, 3, handler, false)

		first := handler.EXPECT().Handle(secondary1).Do(func(e Event) {
			engine.Schedule(primary)
		})
		second := handler.EXPECT().Handle(primary).After(first)
		handler.EXPECT().Handle(secondary2).After(second)

		engine.Schedule(secondary1)
		engine.Schedule(secondary2)

		Expect(engine.Run()).To(Succeed())
	})

	It("should stop running when a handler fails", func() {
		handler := NewMockHandler(mockCtrl)
		evt1 := mockEventAt(mockCtrl, 1, handler, false)
		evt2 := mockEventAt(mockCtrl, 2, handler, false)

		handler.EXPECT().Handle(evt1).Return(errors.New("boom"))

		engine.Schedule(evt1)
		engine.Schedule(evt2)

		err := engine.Run()
		Expect(err).To(MatchError(ContainSubstring("boom")))
		Expect(engine.CurrentTime()).To(Equal(VTime(1)))
	})

	It("should stop when asked to", func() {
		handler := NewMockHandler(mockCtrl)
		evt1 := mockEventAt(mockCtrl, 1, handler, false)
		evt2 := mockEventAt(mockCtrl, 2, handler, false)

		handler.EXPECT().Handle(evt1).Do(func(e Event) {
			engine.Stop()
		})

		engine.Schedule(evt1)
		engine.Schedule(evt2)

		Expect(engine.Run()).To(Succeed())
		Expect(engine.CurrentTime()).To(Equal(VTime(1)))
		Expect(engine.queue.Len()).To(Equal(1))
	})

	It("should panic when scheduling into the past", func() {
		handler := NewMockHandler(mockCtrl)
		evt1 := mockEventAt(mockCtrl, 10, handler, false)
		evt2 := mockEventAt(mockCtrl, 5, handler, false)

		handler.EXPECT().Handle(evt1).Do(func(e Event) {
			Expect(func() { engine.Schedule(evt2) }).To(Panic())
		})

		engine.Schedule(evt1)
		Expect(engine.Run()).To(Succeed())
	})

	It("should invoke hooks around each event", func() {
		handler := NewMockHandler(mockCtrl)
		hook := NewMockHook(mockCtrl)
		evt := mockEventAt(mockCtrl, 1, handler, false)
		engine.AcceptHook(hook)

		before := hook.EXPECT().Func(gomock.Any()).Do(func(ctx HookCtx) {
			Expect(ctx.Pos).To(BeIdenticalTo(HookPosBeforeEvent))
			Expect(ctx.Item).To(BeIdenticalTo(evt))
		})
		handle := handler.EXPECT().Handle(evt).After(before)
		hook.EXPECT().Func(gomock.Any()).Do(func(ctx HookCtx) {
			Expect(ctx.Pos).To(BeIdenticalTo(HookPosAfterEvent))
		}).After(handle)

		engine.Schedule(evt)
		Expect(engine.Run()).To(Succeed())
	})

	It("should hold events while paused", func() {
		handler := NewMockHandler(mockCtrl)
		evt := mockEventAt(mockCtrl, 1, handler, false)
		handled := make(chan struct{})
		handler.EXPECT().Handle(evt).Do(func(e Event) { close(handled) })

		engine.Schedule(evt)
		engine.Pause()
		engine.Pause()

		done := make(chan error)
		go func() { done <- engine.Run() }()

		Consistently(handled, "50ms").ShouldNot(BeClosed())

		engine.Continue()
		engine.Continue()

		Eventually(done).Should(Receive(BeNil()))
		Expect(handled).To(BeClosed())
	})

	It("should call simulation end handlers with the final time", func() {
		handler := NewMockHandler(mockCtrl)
		evt := mockEventAt(mockCtrl, 42, handler, false)
		handler.EXPECT().Handle(evt)

		var endTime VTime
		engine.RegisterSimulationEndHandler(endHandlerFunc(func(now VTime) {
			endTime = now
		}))

		engine.Schedule(evt)
		Expect(engine.Run()).To(Succeed())
		engine.Finished()

		Expect(endTime).To(Equal(VTime(42)))
	})
})

type endHandlerFunc func(now VTime)

func (f endHandlerFunc) Handle(now VTime) {
	f(now)
}
