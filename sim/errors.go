package sim

import "fmt"

// A FaultError reports an engine-level invariant violation, such as time
// moving backward, an event delivered twice, or a message addressed to an
// unknown node. A FaultError terminates the run. It carries enough context
// to diagnose which event broke the guarantee.
type FaultError struct {
	Reason string
	Time   VTime
	Seq    SeqID
	Node   NodeID
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("engine fault: %s (time %d, seq %d, node %d)",
		e.Reason, e.Time, e.Seq, e.Node)
}

// A ProtocolError records that a node's reaction rejected an event in its
// current state. Protocol errors do not terminate the run; they accumulate
// on the network for the caller to assert against.
type ProtocolError struct {
	Node NodeID
	Seq  SeqID
	Time VTime
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error at node %d (time %d, seq %d): %v",
		e.Node, e.Time, e.Seq, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
