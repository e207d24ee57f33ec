package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/vocdoni/zk-rollup-sequencer/crypto"
	"github.com/vocdoni/zk-rollup-sequencer/merkle"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var txTreePrefix = []byte("t/")

// TxTreeDB returns the view of database that holds the transaction tree of
// batch number.
func TxTreeDB(database db.Database, number uint64) db.Database {
	prefix := binary.BigEndian.AppendUint64(append([]byte{}, txTreePrefix...), number)
	return prefixeddb.NewPrefixedDatabase(database, append(prefix, '/'))
}

// Step is the account tree evidence of one side of a transfer: the path of
// the updated leaf, truncated to the active height, after the update.
type Step struct {
	Siblings []*big.Int
	SideBits []bool
}

func newStep(p *merkle.Proof) Step {
	return Step{Siblings: crypto.CopyFields(p.Siblings), SideBits: append([]bool{}, p.SideBits...)}
}

// BatchLedger is the batch being built: its transaction tree, the applied
// transactions and the per-transfer proof accumulators.
//
// After k transfers RootChain holds 1+2k account sub-roots: the starting one
// followed, for every transfer, by the sub-root after the source update and
// the one after the destination update.
type BatchLedger struct {
	number       uint64
	tree         *merkle.Tree
	activeHeight int
	txs          []*Transaction
	positions    map[string]uint64
	rootChain    []*big.Int
	src          []Step
	dst          []Step
}

// NewBatchLedger opens the ledger of batch number over tree, which must be
// empty.
func NewBatchLedger(number uint64, tree *merkle.Tree) (*BatchLedger, error) {
	if tree.Size() != 0 {
		return nil, fmt.Errorf("transaction tree of batch %d is not empty", number)
	}
	return &BatchLedger{
		number:    number,
		tree:      tree,
		positions: make(map[string]uint64),
	}, nil
}

// Seed resets the root chain to a single starting root at the given height.
// It is only valid while no transfer has been recorded.
func (b *BatchLedger) Seed(root *big.Int, activeHeight int) error {
	if len(b.txs) != 0 {
		return fmt.Errorf("cannot reseed batch %d with %d transfers", b.number, len(b.txs))
	}
	b.activeHeight = activeHeight
	b.rootChain = []*big.Int{new(big.Int).Set(root)}
	return nil
}

// Number returns the sequence number of the batch.
func (b *BatchLedger) Number() uint64 {
	return b.number
}

// Tree returns the transaction tree.
func (b *BatchLedger) Tree() *merkle.Tree {
	return b.tree
}

// ActiveHeight returns the account tree height proofs are truncated to.
func (b *BatchLedger) ActiveHeight() int {
	return b.activeHeight
}

// Len returns the number of recorded transfers.
func (b *BatchLedger) Len() int {
	return len(b.txs)
}

// Full reports whether the transaction tree reached its capacity.
func (b *BatchLedger) Full() bool {
	return b.tree.Full()
}

// LastRoot returns the last root of the chain, or nil if unseeded.
func (b *BatchLedger) LastRoot() *big.Int {
	if len(b.rootChain) == 0 {
		return nil
	}
	return b.rootChain[len(b.rootChain)-1]
}

// RootChain returns the chain of account sub-roots.
func (b *BatchLedger) RootChain() []*big.Int {
	return b.rootChain
}

// Transactions returns the recorded transfers in order.
func (b *BatchLedger) Transactions() []*Transaction {
	return b.txs
}

// SrcSteps returns the source side evidence of every transfer.
func (b *BatchLedger) SrcSteps() []Step {
	return b.src
}

// DstSteps returns the destination side evidence of every transfer.
func (b *BatchLedger) DstSteps() []Step {
	return b.dst
}

// Position returns the position of the transaction with the given hash.
func (b *BatchLedger) Position(txHash *big.Int) (uint64, bool) {
	pos, ok := b.positions[txHash.String()]
	return pos, ok
}

// TxHashes returns the transaction hashes in tree order.
func (b *BatchLedger) TxHashes() []*big.Int {
	hashes := make([]*big.Int, len(b.txs))
	for i, tx := range b.txs {
		hashes[i] = tx.Hash
	}
	return hashes
}

// Record appends tx to the transaction tree and stores the evidence of both
// account updates. srcProof and dstProof are the truncated proofs taken right
// after the source and the destination updates.
func (b *BatchLedger) Record(tx *Transaction, srcProof, dstProof *merkle.Proof) (uint64, error) {
	if len(b.rootChain) == 0 {
		return 0, fmt.Errorf("batch %d has no starting root", b.number)
	}
	position, err := b.tree.Append(tx.Hash)
	if err != nil {
		return 0, err
	}
	if _, ok := b.positions[tx.Hash.String()]; !ok {
		b.positions[tx.Hash.String()] = position
	}
	b.txs = append(b.txs, tx)
	b.rootChain = append(b.rootChain, crypto.CopyField(srcProof.Root), crypto.CopyField(dstProof.Root))
	b.src = append(b.src, newStep(srcProof))
	b.dst = append(b.dst, newStep(dstProof))
	return position, nil
}
