package sim

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"
)

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

	newEvent := func(
		t VTimeInSec,
		p Priority,
		h Handler,
	) *MockEvent {
		evt := NewMockEvent(mockCtrl)
		evt.EXPECT().Time().Return(t).AnyTimes()
		evt.EXPECT().Priority().Return(p).AnyTimes()
		evt.EXPECT().Handler().Return(h).AnyTimes()

		return evt
	}

	It("should schedule events", func() {
		handler1 := NewMockHandler(mockCtrl)
		handler2 := NewMockHandler(mockCtrl)
		evt1 := newEvent(4.0, PriorityTimer, handler1)
		evt2 := newEvent(2.0, PriorityTimer, handler2)
		evt3 := newEvent(3.0, PriorityTimer, handler1)
		evt4 := newEvent(5.0, PriorityTimer, handler1)

		handleEvt2 := handler2.EXPECT().Handle(evt2).DoAndReturn(func(e Event) error {
			engine.Schedule(evt3)
			engine.Schedule(evt4)
			return nil
		})
		handleEvt3 := handler1.EXPECT().Handle(evt3).Return(nil).After(handleEvt2)
		handleEvt1 := handler1.EXPECT().Handle(evt1).Return(nil).After(handleEvt3)
		handler1.EXPECT().Handle(evt4).Return(nil).After(handleEvt1)

		engine.Schedule(evt1)
		engine.Schedule(evt2)

		Expect(engine.Run()).To(Succeed())
		Expect(engine.CurrentTime()).To(Equal(VTimeInSec(5.0)))
	})

	It("should run packet events before transfer and timer events", func() {
		handler := NewMockHandler(mockCtrl)
		timer := newEvent(2.0, PriorityTimer, handler)
		transfer := newEvent(2.0, PriorityTransfer, handler)
		packet := newEvent(2.0, PriorityPacket, handler)

		first := handler.EXPECT().Handle(packet).Return(nil)
		second := handler.EXPECT().Handle(transfer).Return(nil).After(first)
		handler.EXPECT().Handle(timer).Return(nil).After(second)

		engine.Schedule(timer)
		engine.Schedule(transfer)
		engine.Schedule(packet)

		Expect(engine.Run()).To(Succeed())
	})

	It("should stop at the first handler error", func() {
		handler := NewMockHandler(mockCtrl)
		evt1 := newEvent(1.0, PriorityTimer, handler)
		evt2 := newEvent(2.0, PriorityTimer, handler)

		handler.EXPECT().Handle(evt1).Return(errors.New("halt"))

		engine.Schedule(evt1)
		engine.Schedule(evt2)

		err := engine.Run()

		Expect(err).To(MatchError(ContainSubstring("halt")))
		Expect(engine.Pending()).To(Equal(1))
	})

	It("should run until a given time", func() {
		handler := NewMockHandler(mockCtrl)
		evt1 := newEvent(1.0, PriorityTimer, handler)
		evt2 := newEvent(3.0, PriorityTimer, handler)

		handler.EXPECT().Handle(evt1).Return(nil)

		engine.Schedule(evt1)
		engine.Schedule(evt2)

		Expect(engine.RunUntil(2.0)).To(Succeed())
		Expect(engine.CurrentTime()).To(Equal(VTimeInSec(1.0)))
		Expect(engine.Pending()).To(Equal(1))
	})

	It("should panic when scheduling in the past", func() {
		handler := NewMockHandler(mockCtrl)
		evt1 := newEvent(2.0, PriorityTimer, handler)
		evt2 := newEvent(1.0, PriorityTimer, handler)

		handler.EXPECT().Handle(evt1).DoAndReturn(func(Event) error {
			Expect(func() { engine.Schedule(evt2) }).To(Panic())
			return nil
		})

		engine.Schedule(evt1)

		Expect(engine.Run()).To(Succeed())
	})

	It("should invoke hooks around events", func() {
		handler := NewMockHandler(mockCtrl)
		evt := newEvent(1.0, PriorityTimer, handler)
		handler.EXPECT().Handle(evt).Return(nil)

		var positions []*HookPos
		engine.AcceptHook(HookFunc(func(ctx HookCtx) {
			positions = append(positions, ctx.Pos)
		}))

		engine.Schedule(evt)
		Expect(engine.Run()).To(Succeed())

		Expect(positions).To(Equal(
			[]*HookPos{HookPosBeforeEvent, HookPosAfterEvent}))
	})
})
