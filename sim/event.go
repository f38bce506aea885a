package sim

// VTime is a logical timestamp in the simulated space, counted in ticks. It
// has no relation to wall-clock time.
type VTime int64

// SeqID is a globally unique, monotonically increasing number assigned to an
// event when it is created. Events that share a VTime are ordered by SeqID,
// which makes the delivery order a total order.
type SeqID uint64

// An Event is something going to happen in the future.
type Event interface {
	// Time returns the virtual time at which the event should happen.
	Time() VTime

	// Seq returns the sequence number assigned when the event was created.
	Seq() SeqID

	// Handler returns the handler that should handle the event.
	Handler() Handler
}

// EventBase provides the basic fields and getters for other events.
type EventBase struct {
	time    VTime
	seq     SeqID
	handler Handler
}

// NewEventBase creates a new EventBase.
func NewEventBase(t VTime, seq SeqID, handler Handler) EventBase {
	return EventBase{
		time:    t,
		seq:     seq,
		handler: handler,
	}
}

// Time returns the time that the event is going to happen.
func (e EventBase) Time() VTime {
	return e.time
}

// Seq returns the sequence number of the event.
func (e EventBase) Seq() SeqID {
	return e.seq
}

// Handler returns the handler to handle the event.
func (e EventBase) Handler() Handler {
	return e.handler
}

// A Handler defines a domain for the events. An event can only be scheduled
// by its handler and can only directly modify that handler.
//
// A non-nil error returned from Handle is an engine-level invariant
// violation and faults the run. Protocol-level errors must be recorded by
// the handler itself and not returned.
type Handler interface {
	Handle(e Event) error
}

// A Sequencer hands out SeqIDs. All events of a run must draw from the same
// Sequencer so that equal-time events still have a total order.
type Sequencer struct {
	next SeqID
}

// NextSeq returns the next sequence number.
func (s *Sequencer) NextSeq() SeqID {
	seq := s.next
	s.next++
	return seq
}

// Issued returns the number of sequence numbers issued so far.
func (s *Sequencer) Issued() uint64 {
	return uint64(s.next)
}
