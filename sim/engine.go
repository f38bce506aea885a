package sim

// State is the life-cycle state of an engine.
type State int

// The engine starts Idle, turns Running on the first step, and ends in one
// of the terminal states Drained (ran out of work) or Faulted (an invariant
// violation). Suspended means a step or time budget was exhausted; a
// Suspended engine is resumable.
const (
	StateIdle State = iota
	StateRunning
	StateSuspended
	StateDrained
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateDrained:
		return "drained"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// StepOutcome reports what a single engine step did.
type StepOutcome int

const (
	// StepDelivered means one event was popped and dispatched.
	StepDelivered StepOutcome = iota

	// StepDrained means the queue was empty; the run is complete.
	StepDrained
)

// An Engine keeps a discrete event simulation running. It owns the virtual
// clock and the event queue and is the only component allowed to advance
// time.
type Engine interface {
	Hookable

	// Schedule registers an event to happen in the future. Scheduling an
	// event earlier than the current time faults the engine.
	Schedule(e Event)

	// Step processes exactly one event. On a Faulted engine it returns the
	// fault.
	Step() (StepOutcome, error)

	// Run processes all the events until the queue drains.
	Run() error

	// RunUpTo processes events up to and including the given time, then
	// suspends.
	RunUpTo(horizon VTime) error

	// RunSteps processes at most n events, then suspends.
	RunSteps(n uint64) error

	// CurrentTime returns the time of the run, specifically the time of the
	// most recently delivered event.
	CurrentTime() VTime

	// State returns the life-cycle state of the engine.
	State() State

	// Pending returns the number of scheduled-but-undelivered events.
	Pending() int

	// Fault returns the invariant violation that terminated the run, or nil.
	Fault() *FaultError
}
