package sim

import "fmt"

// deliveryEvent wraps a Delivery as an engine event handled by the Network.
type deliveryEvent struct {
	EventBase

	network   *Network
	delivery  Delivery
	delivered bool
}

// A Network owns the set of nodes of a run and routes emitted messages into
// scheduled events. It is the Handler of every delivery event, so all
// cross-node communication is mediated here: nodes never touch each other's
// state directly.
type Network struct {
	HookableBase

	name         string
	engine       Engine
	rng          *Rng
	seq          Sequencer
	defaultDelay VTime

	nodes        []Node
	log          []Delivery
	protocolErrs []*ProtocolError
}

// NewNetwork creates a network backed by the given engine and random source.
// defaultDelay applies to messages that do not specify their own latency.
func NewNetwork(name string, engine Engine, rng *Rng, defaultDelay VTime) *Network {
	if defaultDelay < 0 {
		panic("default delay must not be negative")
	}

	return &Network{
		name:         name,
		engine:       engine,
		rng:          rng,
		defaultDelay: defaultDelay,
	}
}

// Name returns the name of the network.
func (n *Network) Name() string {
	return n.name
}

// AddNode registers a node and assigns its NodeID. Nodes can only be added
// before the run starts.
func (n *Network) AddNode(node Node) NodeID {
	if n.engine.State() != StateIdle {
		panic("cannot add a node once the run has started")
	}

	for _, existing := range n.nodes {
		if existing == node {
			panic("node " + node.Name() + " is already registered")
		}
	}

	id := NodeID(len(n.nodes))
	node.setID(id)
	n.nodes = append(n.nodes, node)

	return id
}

// NumNodes returns the number of nodes in the network.
func (n *Network) NumNodes() int {
	return len(n.nodes)
}

// Node returns the node with the given ID, or nil.
func (n *Network) Node(id NodeID) Node {
	if id < 0 || int(id) >= len(n.nodes) {
		return nil
	}
	return n.nodes[id]
}

// Send translates a message into a scheduled event: it fixes the delay,
// computes the arrival time from the current clock value, assigns the next
// sequence number, and enqueues the event. Because the arrival time is
// computed from the clock at the moment of sending, an effect can never be
// scheduled before its cause.
func (n *Network) Send(from NodeID, msg Message) error {
	if msg.To == Broadcast {
		return n.broadcast(from, msg)
	}

	if n.Node(msg.To) == nil {
		return &FaultError{
			Reason: fmt.Sprintf("message addressed to unknown node %d", msg.To),
			Time:   n.engine.CurrentTime(),
			Node:   msg.To,
		}
	}

	delay := msg.Delay.resolve(n.rng, n.defaultDelay)
	evt := &deliveryEvent{
		network: n,
		delivery: Delivery{
			Time:    n.engine.CurrentTime() + delay,
			Src:     from,
			Dst:     msg.To,
			Payload: msg.Payload,
		},
	}
	evt.delivery.Seq = n.seq.NextSeq()
	evt.EventBase = NewEventBase(evt.delivery.Time, evt.delivery.Seq, n)

	n.InvokeHook(HookCtx{
		Domain: n,
		Pos:    HookPosNetSend,
		Item:   evt.delivery,
	})

	n.engine.Schedule(evt)

	return nil
}

// broadcast sends a copy of the message to every node except the sender.
// Each copy gets its own delay draw and sequence number.
func (n *Network) broadcast(from NodeID, msg Message) error {
	for id := range n.nodes {
		if NodeID(id) == from {
			continue
		}

		copied := msg
		copied.To = NodeID(id)
		if err := n.Send(from, copied); err != nil {
			return err
		}
	}

	return nil
}

// Handle delivers one event to its target node and routes the messages the
// reaction emits. A reaction error is recorded as a protocol error and the
// run continues; only invariant violations are returned.
func (n *Network) Handle(e Event) error {
	evt, ok := e.(*deliveryEvent)
	if !ok {
		return &FaultError{
			Reason: fmt.Sprintf("network cannot handle event of type %T", e),
			Time:   e.Time(),
			Seq:    e.Seq(),
		}
	}

	if evt.delivered {
		return &FaultError{
			Reason: "event delivered twice",
			Time:   evt.delivery.Time,
			Seq:    evt.delivery.Seq,
			Node:   evt.delivery.Dst,
		}
	}
	evt.delivered = true

	node := n.Node(evt.delivery.Dst)
	if node == nil {
		return &FaultError{
			Reason: "event targets unknown node",
			Time:   evt.delivery.Time,
			Seq:    evt.delivery.Seq,
			Node:   evt.delivery.Dst,
		}
	}

	n.log = append(n.log, evt.delivery)

	n.InvokeHook(HookCtx{
		Domain: n,
		Pos:    HookPosNetDeliver,
		Item:   evt.delivery,
	})

	out, err := node.React(evt.delivery.Time, &evt.delivery)
	if err != nil {
		n.protocolErrs = append(n.protocolErrs, &ProtocolError{
			Node: evt.delivery.Dst,
			Seq:  evt.delivery.Seq,
			Time: evt.delivery.Time,
			Err:  err,
		})
		return nil
	}

	for _, msg := range out {
		if err := n.Send(evt.delivery.Dst, msg); err != nil {
			return err
		}
	}

	return nil
}

// DeliveryLog returns the ordered log of delivered events. The returned
// slice is the network's own record; callers must not modify it.
func (n *Network) DeliveryLog() []Delivery {
	return n.log
}

// ProtocolErrors returns the protocol errors recorded so far, in delivery
// order.
func (n *Network) ProtocolErrors() []*ProtocolError {
	return n.protocolErrs
}
