package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"
)

func expectEvent(
	mockCtrl *gomock.Controller,
	t VTime,
	seq SeqID,
	handler Handler,
) *MockEvent {
	evt := NewMockEvent(mockCtrl)
	evt.EXPECT().Time().Return(t).AnyTimes()
	evt.EXPECT().Seq().Return(seq).AnyTimes()
	evt.EXPECT().Handler().Return(handler).AnyTimes()
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

	It("should start idle and drain on an empty queue", func() {
		Expect(engine.State()).To(Equal(StateIdle))

		outcome, err := engine.Step()

		Expect(err).ToNot(HaveOccurred())
		Expect(outcome).To(Equal(StepDrained))
		Expect(engine.State()).To(Equal(StateDrained))
	})

	It("should dispatch events in time order", func() {
		handler1 := NewMockHandler(mockCtrl)
		handler2 := NewMockHandler(mockCtrl)
		evt1 := expectEvent(mockCtrl, 4, 0, handler1)
		evt2 := expectEvent(mockCtrl, 2, 1, handler2)
		evt3 := expectEvent(mockCtrl, 3, 2, handler1)
		evt4 := expectEvent(mockCtrl, 5, 3, handler1)

		handleEvt2 := handler2.EXPECT().Handle(evt2).
			DoAndReturn(func(e Event) error {
				engine.Schedule(evt3)
				engine.Schedule(evt4)
				return nil
			})
		handleEvt3 := handler1.EXPECT().
			Handle(evt3).Return(nil).After(handleEvt2)
		handleEvt1 := handler1.EXPECT().
			Handle(evt1).Return(nil).After(handleEvt3)
		handler1.EXPECT().
			Handle(evt4).Return(nil).After(handleEvt1)

		engine.Schedule(evt1)
		engine.Schedule(evt2)

		Expect(engine.Run()).To(Succeed())
		Expect(engine.State()).To(Equal(StateDrained))
		Expect(engine.CurrentTime()).To(Equal(VTime(5)))
		Expect(engine.Delivered()).To(Equal(uint64(4)))
	})

	It("should break equal-time events by sequence number", func() {
		handler := NewMockHandler(mockCtrl)
		evt1 := expectEvent(mockCtrl, 7, 2, handler)
		evt2 := expectEvent(mockCtrl, 7, 0, handler)
		evt3 := expectEvent(mockCtrl, 7, 1, handler)

		handleEvt2 := handler.EXPECT().Handle(evt2).Return(nil)
		handleEvt3 := handler.EXPECT().
			Handle(evt3).Return(nil).After(handleEvt2)
		handler.EXPECT().
			Handle(evt1).Return(nil).After(handleEvt3)

		engine.Schedule(evt1)
		engine.Schedule(evt2)
		engine.Schedule(evt3)

		Expect(engine.Run()).To(Succeed())
	})

	It("should fault when scheduling in the past", func() {
		handler := NewMockHandler(mockCtrl)
		evt1 := expectEvent(mockCtrl, 10, 0, handler)
		evtPast := expectEvent(mockCtrl, 3, 1, handler)

		handler.EXPECT().Handle(evt1).
			DoAndReturn(func(e Event) error {
				engine.Schedule(evtPast)
				return nil
			})

		engine.Schedule(evt1)

		err := engine.Run()

		Expect(err).To(HaveOccurred())
		Expect(engine.State()).To(Equal(StateFaulted))
		Expect(engine.Fault().Time).To(Equal(VTime(3)))
	})

	It("should fault when a handler reports an invariant violation", func() {
		handler := NewMockHandler(mockCtrl)
		evt := expectEvent(mockCtrl, 1, 0, handler)

		handler.EXPECT().Handle(evt).
			Return(&FaultError{Reason: "event delivered twice", Time: 1})

		engine.Schedule(evt)

		err := engine.Run()

		Expect(err).To(HaveOccurred())
		Expect(engine.State()).To(Equal(StateFaulted))

		// Terminal: stepping again surfaces the same fault.
		_, err2 := engine.Step()
		Expect(err2).To(BeIdenticalTo(err))
	})

	It("should fault when scheduling after the run has drained", func() {
		handler := NewMockHandler(mockCtrl)
		evt := expectEvent(mockCtrl, 1, 0, handler)
		late := expectEvent(mockCtrl, 2, 1, handler)

		handler.EXPECT().Handle(evt).Return(nil)

		engine.Schedule(evt)
		Expect(engine.Run()).To(Succeed())
		Expect(engine.State()).To(Equal(StateDrained))

		engine.Schedule(late)

		Expect(engine.State()).To(Equal(StateFaulted))
		Expect(engine.Pending()).To(Equal(0))

		_, err := engine.Step()
		Expect(err).To(HaveOccurred())
		Expect(err).To(BeIdenticalTo(engine.Fault()))
		Expect(engine.Fault().Time).To(Equal(VTime(2)))
	})

	It("should suspend on a step budget and resume", func() {
		handler := NewMockHandler(mockCtrl)
		evt1 := expectEvent(mockCtrl, 1, 0, handler)
		evt2 := expectEvent(mockCtrl, 2, 1, handler)
		evt3 := expectEvent(mockCtrl, 3, 2, handler)

		handler.EXPECT().Handle(evt1).Return(nil)
		handler.EXPECT().Handle(evt2).Return(nil)
		handler.EXPECT().Handle(evt3).Return(nil)

		engine.Schedule(evt1)
		engine.Schedule(evt2)
		engine.Schedule(evt3)

		Expect(engine.RunSteps(2)).To(Succeed())
		Expect(engine.State()).To(Equal(StateSuspended))
		Expect(engine.CurrentTime()).To(Equal(VTime(2)))
		Expect(engine.Pending()).To(Equal(1))

		Expect(engine.Run()).To(Succeed())
		Expect(engine.State()).To(Equal(StateDrained))
	})

	It("should suspend on a time budget without advancing past it", func() {
		handler := NewMockHandler(mockCtrl)
		evt1 := expectEvent(mockCtrl, 5, 0, handler)
		evt2 := expectEvent(mockCtrl, 20, 1, handler)

		handler.EXPECT().Handle(evt1).Return(nil)

		engine.Schedule(evt1)
		engine.Schedule(evt2)

		Expect(engine.RunUpTo(10)).To(Succeed())
		Expect(engine.State()).To(Equal(StateSuspended))
		Expect(engine.CurrentTime()).To(Equal(VTime(5)))
		Expect(engine.Pending()).To(Equal(1))
	})

	It("should invoke hooks around each event", func() {
		handler := NewMockHandler(mockCtrl)
		evt := expectEvent(mockCtrl, 1, 0, handler)
		handler.EXPECT().Handle(evt).Return(nil)

		var positions []*HookPos
		engine.AcceptHook(hookFunc(func(ctx HookCtx) {
			positions = append(positions, ctx.Pos)
		}))

		engine.Schedule(evt)
		Expect(engine.Run()).To(Succeed())

		Expect(positions).To(Equal(
			[]*HookPos{HookPosBeforeEvent, HookPosAfterEvent}))
	})
})

type hookFunc func(ctx HookCtx)

func (f hookFunc) Func(ctx HookCtx) {
	f(ctx)
}
