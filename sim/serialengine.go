package sim

import (
	"fmt"
	"math"
	"sync"
)

// A SerialEngine is an Engine that always runs events one after another. A
// reaction completes fully before the next event is dispatched, so a run has
// no concurrency at all. Running many engines in parallel is safe because
// engines share no state.
//
// The clock is guarded by a read lock only so that an attached monitor can
// observe it from another goroutine; nothing inside a run ever contends for
// it.
type SerialEngine struct {
	HookableBase

	timeLock  sync.RWMutex
	time      VTime
	queue     EventQueue
	state     State
	fault     *FaultError
	delivered uint64
}

// NewSerialEngine creates a SerialEngine.
func NewSerialEngine() *SerialEngine {
	e := new(SerialEngine)
	e.queue = NewEventQueue()
	return e
}

// Schedule registers an event to happen in the future. Drained is terminal,
// so scheduling after the queue has drained is an invariant violation: the
// event could never be delivered.
func (e *SerialEngine) Schedule(evt Event) {
	switch e.state {
	case StateFaulted:
		return
	case StateDrained:
		e.fail(&FaultError{
			Reason: "scheduling an event after the run has drained",
			Time:   evt.Time(),
			Seq:    evt.Seq(),
		})
		return
	}

	now := e.readNow()
	if evt.Time() < now {
		e.fail(&FaultError{
			Reason: fmt.Sprintf(
				"scheduling an event earlier than current time %d", now),
			Time: evt.Time(),
			Seq:  evt.Seq(),
		})
		return
	}

	e.queue.Push(evt)
}

// Step pops and dispatches exactly one event.
func (e *SerialEngine) Step() (StepOutcome, error) {
	switch e.state {
	case StateFaulted:
		return StepDrained, e.fault
	case StateDrained:
		return StepDrained, nil
	}

	if e.queue.Len() == 0 {
		e.state = StateDrained
		return StepDrained, nil
	}

	e.state = StateRunning

	evt := e.queue.Pop()
	now := e.readNow()
	if evt.Time() < now {
		e.fail(&FaultError{
			Reason: fmt.Sprintf(
				"cannot run event in the past, now %d", now),
			Time: evt.Time(),
			Seq:  evt.Seq(),
		})
		return StepDrained, e.fault
	}
	e.writeNow(evt.Time())

	hookCtx := HookCtx{
		Domain: e,
		Pos:    HookPosBeforeEvent,
		Item:   evt,
	}
	e.InvokeHook(hookCtx)

	if err := evt.Handler().Handle(evt); err != nil {
		fault, ok := err.(*FaultError)
		if !ok {
			fault = &FaultError{
				Reason: err.Error(),
				Time:   evt.Time(),
				Seq:    evt.Seq(),
			}
		}
		e.fail(fault)
		return StepDrained, e.fault
	}
	e.delivered++

	hookCtx.Pos = HookPosAfterEvent
	e.InvokeHook(hookCtx)

	return StepDelivered, nil
}

// Run processes all the events scheduled in the SerialEngine until the queue
// drains.
func (e *SerialEngine) Run() error {
	return e.RunSteps(math.MaxUint64)
}

// RunUpTo processes all events scheduled at or before horizon, then
// suspends. The clock stays at the last delivered event; it is never
// advanced past work that has not happened.
func (e *SerialEngine) RunUpTo(horizon VTime) error {
	for {
		if e.state == StateFaulted {
			return e.fault
		}

		if e.queue.Len() == 0 {
			e.state = StateDrained
			return nil
		}

		if e.queue.Peek().Time() > horizon {
			e.state = StateSuspended
			return nil
		}

		outcome, err := e.Step()
		if err != nil {
			return err
		}
		if outcome == StepDrained {
			return nil
		}
	}
}

// RunSteps processes at most n events, then suspends.
func (e *SerialEngine) RunSteps(n uint64) error {
	for i := uint64(0); i < n; i++ {
		outcome, err := e.Step()
		if err != nil {
			return err
		}
		if outcome == StepDrained {
			return nil
		}
	}

	if e.state == StateRunning {
		e.state = StateSuspended
	}
	return nil
}

// CurrentTime returns the current time at which the engine is at.
// Specifically, the run time of the current event.
func (e *SerialEngine) CurrentTime() VTime {
	return e.readNow()
}

func (e *SerialEngine) readNow() VTime {
	e.timeLock.RLock()
	t := e.time
	e.timeLock.RUnlock()
	return t
}

func (e *SerialEngine) writeNow(t VTime) {
	e.timeLock.Lock()
	e.time = t
	e.timeLock.Unlock()
}

// State returns the life-cycle state of the engine.
func (e *SerialEngine) State() State {
	return e.state
}

// Pending returns the number of scheduled-but-undelivered events.
func (e *SerialEngine) Pending() int {
	return e.queue.Len()
}

// Delivered returns the number of events dispatched so far.
func (e *SerialEngine) Delivered() uint64 {
	return e.delivered
}

// Fault returns the invariant violation that terminated the run, or nil.
func (e *SerialEngine) Fault() *FaultError {
	return e.fault
}

func (e *SerialEngine) fail(fault *FaultError) {
	if e.state == StateFaulted {
		return
	}
	e.state = StateFaulted
	e.fault = fault
}
