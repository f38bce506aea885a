// Package bft contains a permissioned-BFT notarization skeleton: proposals
// collect signatures until they reach the two-thirds threshold, notarized
// proposals become blocks, and blocks chain back to a genesis. The types are
// pure data; replica behavior on top of the simulator lives in node.go.
package bft

import (
	"errors"
	"sort"
)

// Threshold returns the notarization threshold used in most permissioned
// BFT protocols: ceil(n * 2/3).
func Threshold(n int) int {
	return (n*2 + 2) / 3
}

var (
	// ErrTooManySignatures reports more signers than participants.
	ErrTooManySignatures = errors.New("too many signatures")

	// ErrNotEnoughSignatures reports a proposal below the notarization
	// threshold.
	ErrNotEnoughSignatures = errors.New("not enough signatures")
)

// Base is the common interface of blocks and proposals in a chain.
type Base interface {
	// N returns the number of participants.
	N() int

	// T returns the notarization threshold.
	T() int

	// Parent returns the predecessor in the chain, or nil for genesis.
	Parent() Base

	// LastFinal returns the last finalized ancestor.
	LastFinal() Base
}

// Genesis is the root of every chain.
type Genesis struct {
	n, t int
}

// NewGenesis creates a genesis for n participants with threshold t.
func NewGenesis(n, t int) *Genesis {
	return &Genesis{n: n, t: t}
}

func (g *Genesis) N() int          { return g.n }
func (g *Genesis) T() int          { return g.t }
func (g *Genesis) Parent() Base    { return nil }
func (g *Genesis) LastFinal() Base { return g }

// A Proposal extends a parent and collects signatures until it is
// notarized.
type Proposal struct {
	n, t    int
	parent  Base
	signers map[int]struct{}
}

// NewProposal creates a proposal extending the given parent.
func NewProposal(parent Base) *Proposal {
	return &Proposal{
		n:       parent.N(),
		t:       parent.T(),
		parent:  parent,
		signers: make(map[int]struct{}),
	}
}

func (p *Proposal) N() int       { return p.n }
func (p *Proposal) T() int       { return p.t }
func (p *Proposal) Parent() Base { return p.parent }

// LastFinal walks to the last finalized ancestor.
func (p *Proposal) LastFinal() Base {
	return p.parent.LastFinal()
}

// AddSignature records the signature of a participant. Signing twice is a
// no-op.
func (p *Proposal) AddSignature(index int) error {
	p.signers[index] = struct{}{}
	if len(p.signers) > p.n {
		return ErrTooManySignatures
	}
	return nil
}

// Signers returns the signer indices in ascending order.
func (p *Proposal) Signers() []int {
	signers := make([]int, 0, len(p.signers))
	for s := range p.signers {
		signers = append(signers, s)
	}
	sort.Ints(signers)

	return signers
}

// AssertValid returns an error if the proposal is malformed.
func (p *Proposal) AssertValid() error {
	if len(p.signers) > p.n {
		return ErrTooManySignatures
	}
	return nil
}

// IsValid returns true if the proposal is well-formed.
func (p *Proposal) IsValid() bool {
	return p.AssertValid() == nil
}

// AssertNotarized returns an error unless the proposal is valid and has
// reached the threshold.
func (p *Proposal) AssertNotarized() error {
	if err := p.AssertValid(); err != nil {
		return err
	}
	if len(p.signers) < p.t {
		return ErrNotEnoughSignatures
	}
	return nil
}

// IsNotarized returns true if the proposal has enough signatures.
func (p *Proposal) IsNotarized() bool {
	return p.AssertNotarized() == nil
}

// A Block is a notarized proposal.
type Block struct {
	n, t     int
	proposal *Proposal
}

// NewBlock seals a notarized proposal into a block.
func NewBlock(proposal *Proposal) (*Block, error) {
	if err := proposal.AssertNotarized(); err != nil {
		return nil, err
	}

	return &Block{
		n:        proposal.N(),
		t:        proposal.T(),
		proposal: proposal,
	}, nil
}

func (b *Block) N() int       { return b.n }
func (b *Block) T() int       { return b.t }
func (b *Block) Parent() Base { return b.proposal.parent }

// LastFinal walks to the last finalized ancestor.
func (b *Block) LastFinal() Base {
	parent := b.Parent()
	if parent == nil {
		return b
	}
	return parent.LastFinal()
}
