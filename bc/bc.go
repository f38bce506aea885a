// Package bc models a minimal blockchain ledger: transactions that move
// value between transparent outputs and shielded notes, a context that
// tracks which of them are spendable, and scored blocks chaining back to a
// genesis. Like bft, the types are pure data with no dependency on the
// engine.
package bc

import "sync/atomic"

var (
	blockHashCounter atomic.Uint64
	noteCounter      atomic.Uint64
	txCounter        atomic.Uint64
)

// BlockHash identifies a block. Hashes are process-unique counters, not
// cryptographic digests.
type BlockHash uint64

// NewBlockHash issues the next block hash.
func NewBlockHash() BlockHash {
	return BlockHash(blockHashCounter.Add(1) - 1)
}

// A TXO is a transparent transaction output.
type TXO struct {
	TxID  uint64
	Index int
	Value uint64
}

// A Note is a shielded output. Spending a note never reveals which output
// it came from, so notes carry their own identity.
type Note struct {
	ID    uint64
	Value uint64
}

// NewNote creates a note holding the given value.
func NewNote(value uint64) Note {
	return Note{
		ID:    noteCounter.Add(1) - 1,
		Value: value,
	}
}

// A Transaction consumes transparent outputs and shielded notes and
// produces new ones. The value consumed must equal the value produced plus
// the fee.
type Transaction struct {
	TransparentInputs  []TXO
	TransparentOutputs []TXO
	ShieldedInputs     []Note
	ShieldedOutputs    []Note
	Fee                int64
	Anchor             *Context
	Issuance           uint64

	id uint64
}

// NewTransaction creates a balanced transaction. Output values are given as
// plain amounts; the transaction mints the TXOs and notes holding them.
// Construction panics on an unbalanced or malformed transaction, since the
// caller is the test or protocol driver and a bad transaction is a bug
// there.
func NewTransaction(
	transparentInputs []TXO,
	transparentOutputValues []uint64,
	shieldedInputs []Note,
	shieldedOutputValues []uint64,
	fee int64,
	anchor *Context,
	issuance uint64,
) Transaction {
	id := txCounter.Add(1) - 1

	transparentOutputs := make([]TXO, 0, len(transparentOutputValues))
	for i, v := range transparentOutputValues {
		transparentOutputs = append(transparentOutputs, TXO{
			TxID:  id,
			Index: i,
			Value: v,
		})
	}

	shieldedOutputs := make([]Note, 0, len(shieldedOutputValues))
	for _, v := range shieldedOutputValues {
		shieldedOutputs = append(shieldedOutputs, NewNote(v))
	}

	isCoinbase := len(transparentInputs) == 0 && len(shieldedInputs) == 0
	if fee < 0 && !isCoinbase {
		panic("only a coinbase transaction can have a negative fee")
	}
	if issuance != 0 && !isCoinbase {
		panic("only a coinbase transaction can issue value")
	}

	totalIn := issuance
	for _, txo := range transparentInputs {
		totalIn += txo.Value
	}
	for _, note := range shieldedInputs {
		totalIn += note.Value
	}

	var totalOut uint64
	for _, v := range transparentOutputValues {
		totalOut += v
	}
	for _, v := range shieldedOutputValues {
		totalOut += v
	}
	if fee >= 0 {
		totalOut += uint64(fee)
	}

	if totalIn != totalOut {
		panic("transaction does not balance")
	}

	return Transaction{
		TransparentInputs:  transparentInputs,
		TransparentOutputs: transparentOutputs,
		ShieldedInputs:     shieldedInputs,
		ShieldedOutputs:    shieldedOutputs,
		Fee:                fee,
		Anchor:             anchor,
		Issuance:           issuance,
		id:                 id,
	}
}

// IsCoinbase reports whether the transaction creates value out of nothing.
func (t *Transaction) IsCoinbase() bool {
	return len(t.TransparentInputs) == 0 && len(t.ShieldedInputs) == 0
}

// ID returns the transaction's process-unique identifier.
func (t *Transaction) ID() uint64 {
	return t.id
}

type spentness int

const (
	unspent spentness = iota
	spent
)

type noteEntry struct {
	note   Note
	status spentness
}

// A Context tracks the spendable state of a chain: the UTXO set, every note
// ever created with its spentness, and the total issued value.
type Context struct {
	transactions  []Transaction
	utxoSet       map[TXO]struct{}
	notes         []noteEntry
	totalIssuance uint64
}

// NewContext creates an empty context.
func NewContext() *Context {
	return &Context{
		utxoSet: make(map[TXO]struct{}),
	}
}

// CanSpend reports whether every given note exists and is unspent.
func (c *Context) CanSpend(toSpend []Note) bool {
	for _, note := range toSpend {
		found := false
		for _, entry := range c.notes {
			if entry.note == note {
				found = entry.status == unspent
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

// IsValid reports whether the transaction only spends outputs and notes
// that are currently spendable.
func (c *Context) IsValid(tx *Transaction) bool {
	for _, input := range tx.TransparentInputs {
		if _, ok := c.utxoSet[input]; !ok {
			return false
		}
	}

	return c.CanSpend(tx.ShieldedInputs)
}

// AddIfValid applies the transaction to the context if it is valid and
// reports whether it was applied.
func (c *Context) AddIfValid(tx Transaction) bool {
	if !c.IsValid(&tx) {
		return false
	}

	for _, input := range tx.TransparentInputs {
		delete(c.utxoSet, input)
	}
	for _, output := range tx.TransparentOutputs {
		c.utxoSet[output] = struct{}{}
	}

	for _, input := range tx.ShieldedInputs {
		for i := range c.notes {
			if c.notes[i].note == input {
				c.notes[i].status = spent
				break
			}
		}
	}
	for _, output := range tx.ShieldedOutputs {
		c.notes = append(c.notes, noteEntry{note: output})
	}

	c.totalIssuance += tx.Issuance
	c.transactions = append(c.transactions, tx)

	return true
}

// TotalIssuance returns the value issued by all applied transactions.
func (c *Context) TotalIssuance() uint64 {
	return c.totalIssuance
}

// NumTransactions returns the number of applied transactions.
func (c *Context) NumTransactions() int {
	return len(c.transactions)
}

// A Block carries transactions and accumulates a chain score through its
// parent.
type Block struct {
	parent       *Block
	score        int64
	transactions []Transaction
	hash         BlockHash
}

// NewBlock creates a block extending parent (nil for genesis). Unless
// allowInvalid is set, construction panics if the block is not
// non-contextually valid.
func NewBlock(
	parent *Block,
	addedScore int64,
	transactions []Transaction,
	allowInvalid bool,
) *Block {
	score := addedScore
	if parent != nil {
		score = parent.score + addedScore
	}

	block := &Block{
		parent:       parent,
		score:        score,
		transactions: transactions,
		hash:         NewBlockHash(),
	}

	if !allowInvalid {
		block.assertNoncontextuallyValid()
	}

	return block
}

// assertNoncontextuallyValid checks the properties a block must hold on its
// own: a single leading coinbase and fees that balance to zero.
func (b *Block) assertNoncontextuallyValid() {
	if len(b.transactions) == 0 {
		panic("a block must carry at least one transaction")
	}
	if !b.transactions[0].IsCoinbase() {
		panic("the first transaction of a block must be a coinbase")
	}

	var feeSum int64
	for i := range b.transactions {
		if i > 0 && b.transactions[i].IsCoinbase() {
			panic("only the first transaction of a block may be a coinbase")
		}
		feeSum += b.transactions[i].Fee
	}
	if feeSum != 0 {
		panic("block fees do not balance")
	}
}

// Parent returns the predecessor block, or nil for genesis.
func (b *Block) Parent() *Block {
	return b.parent
}

// Score returns the accumulated chain score up to this block.
func (b *Block) Score() int64 {
	return b.score
}

// Hash returns the block's identifier.
func (b *Block) Hash() BlockHash {
	return b.hash
}
