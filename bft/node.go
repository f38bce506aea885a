package bft

import (
	"fmt"

	"github.com/sarchlab/detnet/sim"
)

// StartRound kicks the proposer into a round. The first one is scheduled by
// the driver as a self-message; later ones the proposer sends to itself.
type StartRound struct {
	Round int
}

func (s StartRound) String() string { return fmt.Sprintf("StartRound(%d)", s.Round) }

// Propose announces the proposal for a round to all validators.
type Propose struct {
	Round int
}

func (p Propose) String() string { return fmt.Sprintf("Propose(%d)", p.Round) }

// Vote carries a validator's signature back to the proposer.
type Vote struct {
	Round int
	Voter int
}

func (v Vote) String() string { return fmt.Sprintf("Vote(%d, %d)", v.Round, v.Voter) }

// Commit announces a notarized proposal, carrying the signer set so every
// replica can seal the same block.
type Commit struct {
	Round   int
	Signers []int
}

func (c Commit) String() string { return fmt.Sprintf("Commit(%d, %v)", c.Round, c.Signers) }

// A Replica participates in the notarization protocol. Exactly one replica
// acts as the proposer; the others validate. Every replica maintains its own
// copy of the chain, which ends identical across replicas once a run drains.
type Replica struct {
	sim.NodeBase

	n, t      int
	proposer  bool
	rounds    int
	voteDelay sim.Latency

	round   int
	pending *Proposal
	commits map[int]Commit
	last    Base
	Chain   []*Block
}

// NewReplica creates a replica for a cluster of n participants. rounds is
// only meaningful on the proposer; it is the number of rounds the proposer
// drives before going quiet.
func NewReplica(name string, n int, proposer bool, rounds int) *Replica {
	return &Replica{
		NodeBase: sim.NewNodeBase(name),
		n:        n,
		t:        Threshold(n),
		proposer: proposer,
		rounds:   rounds,
		commits:  make(map[int]Commit),
		last:     NewGenesis(n, Threshold(n)),
	}
}

// WithVoteDelay overrides the latency the replica uses for the messages it
// sends. The zero value follows the network default delay.
func (r *Replica) WithVoteDelay(l sim.Latency) *Replica {
	r.voteDelay = l
	return r
}

// Last returns the tip of the replica's chain.
func (r *Replica) Last() Base {
	return r.last
}

// Snapshot exposes the replica's progress for monitoring.
func (r *Replica) Snapshot() interface{} {
	return map[string]interface{}{
		"round":  r.round,
		"height": len(r.Chain),
	}
}

func (r *Replica) React(now sim.VTime, d *sim.Delivery) ([]sim.Message, error) {
	switch payload := d.Payload.(type) {
	case StartRound:
		return r.startRound(payload)
	case Propose:
		return r.vote(payload, d.Src)
	case Vote:
		return r.collect(payload)
	case Commit:
		return nil, r.seal(payload)
	default:
		return nil, fmt.Errorf("unexpected payload %v", d.Payload)
	}
}

func (r *Replica) startRound(msg StartRound) ([]sim.Message, error) {
	if !r.proposer {
		return nil, fmt.Errorf("round start sent to a validator")
	}
	if msg.Round != r.round {
		return nil, fmt.Errorf("round start for round %d in round %d",
			msg.Round, r.round)
	}

	r.pending = NewProposal(r.last)
	if err := r.pending.AddSignature(int(r.ID())); err != nil {
		return nil, err
	}

	return []sim.Message{{
		To:      sim.Broadcast,
		Payload: Propose{Round: r.round},
		Delay:   r.voteDelay,
	}}, nil
}

// vote signs the proposal unconditionally. Validators in this skeleton trust
// the proposer, so they do not need to have sealed earlier rounds before
// voting.
func (r *Replica) vote(msg Propose, src sim.NodeID) ([]sim.Message, error) {
	return []sim.Message{{
		To:      src,
		Payload: Vote{Round: msg.Round, Voter: int(r.ID())},
		Delay:   r.voteDelay,
	}}, nil
}

func (r *Replica) collect(msg Vote) ([]sim.Message, error) {
	if msg.Round != r.round {
		// Votes beyond the threshold arrive after the round is sealed.
		return nil, nil
	}
	if r.pending == nil {
		return nil, fmt.Errorf("vote without a pending proposal")
	}

	if err := r.pending.AddSignature(msg.Voter); err != nil {
		return nil, err
	}
	if !r.pending.IsNotarized() {
		return nil, nil
	}

	commit := Commit{Round: r.round, Signers: r.pending.Signers()}
	if err := r.seal(commit); err != nil {
		return nil, err
	}

	msgs := []sim.Message{{
		To:      sim.Broadcast,
		Payload: commit,
		Delay:   r.voteDelay,
	}}
	if r.round < r.rounds {
		msgs = append(msgs, sim.Message{
			To:      r.ID(),
			Payload: StartRound{Round: r.round},
			Delay:   r.voteDelay,
		})
	}

	return msgs, nil
}

// seal appends the block for a commit. Commits can overtake each other under
// random delays, so future rounds are buffered and applied in order.
func (r *Replica) seal(msg Commit) error {
	if msg.Round < r.round {
		return fmt.Errorf("commit for sealed round %d in round %d",
			msg.Round, r.round)
	}
	r.commits[msg.Round] = msg

	for {
		next, ok := r.commits[r.round]
		if !ok {
			return nil
		}
		delete(r.commits, r.round)

		proposal := NewProposal(r.last)
		for _, s := range next.Signers {
			if err := proposal.AddSignature(s); err != nil {
				return err
			}
		}

		block, err := NewBlock(proposal)
		if err != nil {
			return err
		}

		r.Chain = append(r.Chain, block)
		r.last = block
		r.round++
		r.pending = nil
	}
}
