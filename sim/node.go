package sim

import "fmt"

// NodeID names a participant for the lifetime of a run. IDs are dense
// integers assigned at AddNode time and are never reused or reassigned.
type NodeID int

// Broadcast is the destination that addresses a message to every node except
// the sender.
const Broadcast NodeID = -1

// A Node is a participant of the simulated network. Node variants differ
// only in their reaction logic and local state shape; the engine is agnostic
// to both.
type Node interface {
	// Name returns a human-readable name for logging and inspection.
	Name() string

	// setID is called once when the node joins a network.
	setID(id NodeID)

	// ID returns the identifier assigned when the node joined the network.
	ID() NodeID

	// React consumes one delivered event and returns the messages it emits.
	// React must be pure with respect to anything outside the node's own
	// state and the delivery: no wall-clock time, no ambient randomness, no
	// other node's state.
	//
	// A non-nil error is a protocol-level error. It is recorded against the
	// node and the event, and the run continues.
	React(now VTime, d *Delivery) ([]Message, error)
}

// A Snapshotter is a node that can expose a read-only snapshot of its local
// state for inspection. Nodes that do not implement it are inspected
// structurally instead.
type Snapshotter interface {
	Snapshot() interface{}
}

// NodeBase provides the identity bookkeeping that all node variants share.
type NodeBase struct {
	name string
	id   NodeID
}

// NewNodeBase creates a NodeBase with the given name.
func NewNodeBase(name string) NodeBase {
	return NodeBase{name: name}
}

// Name returns the name of the node.
func (n *NodeBase) Name() string {
	return n.name
}

func (n *NodeBase) setID(id NodeID) {
	n.id = id
}

// ID returns the identifier of the node within its network.
func (n *NodeBase) ID() NodeID {
	return n.id
}

// A Delivery is one event handed to one node: the unit the delivery log is
// made of. It is immutable once enqueued.
type Delivery struct {
	Seq     SeqID
	Time    VTime
	Src     NodeID
	Dst     NodeID
	Payload interface{}
}

func (d Delivery) String() string {
	return fmt.Sprintf("seq %d @%d: %d -> %d %v",
		d.Seq, d.Time, d.Src, d.Dst, d.Payload)
}

// A Message is a payload a node emits from a reaction. The network later
// translates it into a scheduled event.
type Message struct {
	// To is the recipient, or Broadcast for every node but the sender.
	To NodeID

	// Payload is opaque to the engine.
	Payload interface{}

	// Delay specifies when the message arrives relative to now. The zero
	// value uses the network-wide default delay.
	Delay Latency
}

// Latency specifies a message delay: the network default, a fixed tick
// count, or a draw from a window of the run's deterministic random source.
type Latency struct {
	kind     latencyKind
	min, max VTime
}

type latencyKind int

const (
	latencyDefault latencyKind = iota
	latencyFixed
	latencyUniform
)

// FixedLatency is a delay of exactly t ticks. Zero is legal and means
// same-tick delivery, still ordered by sequence number.
func FixedLatency(t VTime) Latency {
	if t < 0 {
		panic("latency must not be negative")
	}
	return Latency{kind: latencyFixed, min: t, max: t}
}

// UniformLatency is a delay drawn uniformly from [min, max]. The draw comes
// from the run's seeded Rng, so it is reproducible; which delays overlapping
// windows resolve to is the only way seeds influence the interleaving of
// causally-independent messages.
func UniformLatency(min, max VTime) Latency {
	if min < 0 || max < min {
		panic("invalid latency window")
	}
	return Latency{kind: latencyUniform, min: min, max: max}
}

// resolve fixes the delay of one message.
func (l Latency) resolve(rng *Rng, networkDefault VTime) VTime {
	switch l.kind {
	case latencyFixed:
		return l.min
	case latencyUniform:
		if l.min == l.max {
			return l.min
		}
		return l.min + VTime(rng.Stream(StreamDelay).Int63n(int64(l.max-l.min)+1))
	default:
		return networkDefault
	}
}
