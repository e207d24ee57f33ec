package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/vocdoni/zk-rollup-sequencer/crypto"
	"github.com/vocdoni/zk-rollup-sequencer/crypto/hash"
	"github.com/vocdoni/zk-rollup-sequencer/merkle"
	"github.com/vocdoni/zk-rollup-sequencer/storage"
	"github.com/vocdoni/zk-rollup-sequencer/types"
)

var (
	// ErrUnknownBatch is returned for a transaction root never committed.
	ErrUnknownBatch = errors.New("unknown batch")
	// ErrUnknownTransaction is returned for a transaction hash that is not
	// part of the requested batch.
	ErrUnknownTransaction = errors.New("unknown transaction")
)

// History is the set of committed batches, indexed by transaction tree root.
// Committed trees are never modified; their nodes stay where the batch
// ledger wrote them and are reopened on demand.
type History struct {
	stg      *storage.Storage
	hasher   hash.Hasher
	zeroLeaf *big.Int
}

// NewHistory returns the history kept in stg. Transaction trees are read
// from the database of stg.
func NewHistory(stg *storage.Storage, hasher hash.Hasher) (*History, error) {
	zero, err := ZeroLeaf(hasher)
	if err != nil {
		return nil, err
	}
	return &History{stg: stg, hasher: hasher, zeroLeaf: zero}, nil
}

// Commit records the full batch b, whose account sub-root went from oldRoot
// to newRoot, and returns its transaction root.
func (h *History) Commit(b *BatchLedger, oldRoot, newRoot *big.Int) (*big.Int, error) {
	if !b.Full() {
		return nil, fmt.Errorf("batch %d is not full", b.Number())
	}
	txRoot, err := b.Tree().Root()
	if err != nil {
		return nil, err
	}
	record := &storage.Batch{
		Number:       b.Number(),
		TxRoot:       types.FromBig(txRoot),
		OldRoot:      types.FromBig(oldRoot),
		NewRoot:      types.FromBig(newRoot),
		ActiveHeight: b.ActiveHeight(),
		TxLevels:     b.Tree().Levels(),
		TxHashes:     types.BigIntSlice(b.TxHashes()),
	}
	if err := h.stg.SetBatch(record); err != nil {
		return nil, fmt.Errorf("commit batch %d: %w", b.Number(), err)
	}
	return txRoot, nil
}

// Batch returns the record of the batch committed with txRoot.
func (h *History) Batch(txRoot *big.Int) (*storage.Batch, error) {
	if !crypto.IsInField(txRoot) {
		return nil, fmt.Errorf("%w: root %v is not a field element", ErrUnknownBatch, txRoot)
	}
	record, err := h.stg.Batch(txRoot)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: root %s", ErrUnknownBatch, txRoot)
	}
	return record, err
}

// Tree reopens the transaction tree committed with txRoot.
func (h *History) Tree(txRoot *big.Int) (*merkle.Tree, error) {
	record, err := h.Batch(txRoot)
	if err != nil {
		return nil, err
	}
	tree, err := merkle.New(TxTreeDB(h.stg.DB(), record.Number), record.TxLevels, h.hasher, h.zeroLeaf)
	if err != nil {
		return nil, fmt.Errorf("open batch %d: %w", record.Number, err)
	}
	return tree, nil
}

// Proof returns the full depth inclusion proof of txHash under txRoot. The
// proof is checked against txRoot before being returned.
func (h *History) Proof(txRoot, txHash *big.Int) (*merkle.Proof, error) {
	tree, err := h.Tree(txRoot)
	if err != nil {
		return nil, err
	}
	if !crypto.IsInField(txHash) {
		return nil, fmt.Errorf("%w: %v is not a field element", ErrUnknownTransaction, txHash)
	}
	position, err := h.stg.TxPosition(txRoot, txHash)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s in batch %s", ErrUnknownTransaction, txHash, txRoot)
	}
	if err != nil {
		return nil, err
	}
	proof, err := tree.Proof(position)
	if err != nil {
		return nil, err
	}
	if proof.Root.Cmp(txRoot) != 0 || proof.Leaf.Cmp(txHash) != 0 {
		return nil, fmt.Errorf("committed tree of root %s does not match its record", txRoot)
	}
	return proof, nil
}

// Len returns the number of committed batches.
func (h *History) Len() (int, error) {
	numbers, err := h.stg.ListBatches()
	if err != nil {
		return 0, err
	}
	return len(numbers), nil
}
