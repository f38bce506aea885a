package sim

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"
)

var _ = Describe("EventQueueImpl", func() {
	var (
		mockCtrl *gomock.Controller
		queue    *EventQueueImpl
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		queue = NewEventQueue()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should pop in time order", func() {
		numEvents := 100
		r := rand.New(rand.NewSource(17))
		for i := 0; i < numEvents; i++ {
			event := NewMockEvent(mockCtrl)
			event.EXPECT().Time().Return(VTime(r.Int63n(1000))).AnyTimes()
			event.EXPECT().Seq().Return(SeqID(i)).AnyTimes()
			queue.Push(event)
		}

		now := VTime(-1)
		for i := 0; i < numEvents; i++ {
			event := queue.Pop()
			Expect(event.Time() >= now).To(BeTrue())
			now = event.Time()
		}
	})

	It("should break time ties by sequence number", func() {
		seqs := []SeqID{4, 1, 3, 0, 2}
		for _, s := range seqs {
			event := NewMockEvent(mockCtrl)
			event.EXPECT().Time().Return(VTime(10)).AnyTimes()
			event.EXPECT().Seq().Return(s).AnyTimes()
			queue.Push(event)
		}

		for i := 0; i < len(seqs); i++ {
			Expect(queue.Pop().Seq()).To(Equal(SeqID(i)))
		}
	})

	It("should peek without removing", func() {
		event := NewMockEvent(mockCtrl)
		event.EXPECT().Time().Return(VTime(5)).AnyTimes()
		event.EXPECT().Seq().Return(SeqID(0)).AnyTimes()

		queue.Push(event)

		Expect(queue.Peek()).To(BeIdenticalTo(event))
		Expect(queue.Len()).To(Equal(1))
	})
})
