// Package state holds the bookkeeping structures the sequencer keeps in lock
// step with its Merkle trees: the account book, the ledger of the batch being
// built and the history of committed batches.
package state

import (
	"fmt"
	"math/big"

	"github.com/vocdoni/zk-rollup-sequencer/crypto/eddsa"
	"github.com/vocdoni/zk-rollup-sequencer/crypto/hash"
)

// ZeroLeaf returns the value of a never written slot: the hash of the
// all-zero account tuple. Both the account and the transaction trees use it.
func ZeroLeaf(h hash.Hasher) (*big.Int, error) {
	zero := big.NewInt(0)
	leaf, err := h.Hash3(zero, zero, zero)
	if err != nil {
		return nil, fmt.Errorf("zero leaf: %w", err)
	}
	return leaf, nil
}

// AccountLeaf returns H3(x, y, balance), the account tree leaf of an account.
func AccountLeaf(h hash.Hasher, pk eddsa.PublicKey, balance *big.Int) (*big.Int, error) {
	leaf, err := h.Hash3(pk.X, pk.Y, balance)
	if err != nil {
		return nil, fmt.Errorf("account leaf: %w", err)
	}
	return leaf, nil
}

// AccountKey returns H2(x, y), the identifier of an account in the book.
func AccountKey(h hash.Hasher, pk eddsa.PublicKey) (*big.Int, error) {
	key, err := h.Hash2(pk.X, pk.Y)
	if err != nil {
		return nil, fmt.Errorf("account key: %w", err)
	}
	return key, nil
}

// TransactionHash returns H5(src.x, src.y, dst.x, dst.y, amount). It is both
// the message signed by the source account and the transaction tree leaf.
func TransactionHash(h hash.Hasher, src, dst eddsa.PublicKey, amount *big.Int) (*big.Int, error) {
	txHash, err := h.Hash5(src.X, src.Y, dst.X, dst.Y, amount)
	if err != nil {
		return nil, fmt.Errorf("transaction hash: %w", err)
	}
	return txHash, nil
}
