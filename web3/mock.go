package web3

import (
	"context"
	"fmt"
	"math/big"
	"math/bits"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/arbo/memdb"
	"github.com/vocdoni/zk-rollup-sequencer/crypto/eddsa"
	"github.com/vocdoni/zk-rollup-sequencer/crypto/hash"
	"github.com/vocdoni/zk-rollup-sequencer/log"
	"github.com/vocdoni/zk-rollup-sequencer/merkle"
	"github.com/vocdoni/zk-rollup-sequencer/state"
)

// MockLedger is an in-process Ledger with the rollup contract rules. Proofs
// are not verified. Every accepted call is kept as packed calldata.
type MockLedger struct {
	mu        sync.Mutex
	hasher    hash.Hasher
	accounts  *merkle.Tree
	pending   int
	updated   bool
	height    int
	root      *big.Int
	txRoots   map[string]bool
	withdrawn map[string]bool
	payouts   map[common.Address]*big.Int
	calls     [][]byte
}

var _ Ledger = (*MockLedger)(nil)

// NewMockLedger returns a ledger whose account tree has the given depth and
// already holds the null account, like the sequencer one.
func NewMockLedger(accountLevels int, h hash.Hasher) (*MockLedger, error) {
	zero, err := state.ZeroLeaf(h)
	if err != nil {
		return nil, err
	}
	tree, err := merkle.New(memdb.New(), accountLevels, h, zero)
	if err != nil {
		return nil, err
	}
	m := &MockLedger{
		hasher:    h,
		accounts:  tree,
		txRoots:   make(map[string]bool),
		withdrawn: make(map[string]bool),
		payouts:   make(map[common.Address]*big.Int),
	}
	leaf, err := state.AccountLeaf(h, eddsa.NullPublicKey(), big.NewInt(0))
	if err != nil {
		return nil, err
	}
	if _, err := tree.Append(leaf); err != nil {
		return nil, err
	}
	m.pending = 1
	m.root = zero
	return m, nil
}

func (m *MockLedger) Deposit(_ context.Context, pk eddsa.PublicKey, amount *big.Int) error {
	calldata, err := PackDeposit(pk, amount)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	leaf, err := state.AccountLeaf(m.hasher, pk, amount)
	if err != nil {
		return err
	}
	if _, err := m.accounts.Append(leaf); err != nil {
		return fmt.Errorf("deposit: %w", err)
	}
	m.pending++
	m.calls = append(m.calls, calldata)
	return nil
}

// ProcessPendingDeposits publishes the account tree node at height
// floor(log2(accounts)) as the ledger root. Once a root was proved, the
// leaves below it are only known through that root: it is hashed up with the
// subtrees of the newer deposits, which no transfer has touched yet.
func (m *MockLedger) ProcessPendingDeposits(_ context.Context) error {
	calldata, err := PackProcessPendingDeposits()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == 0 {
		m.calls = append(m.calls, calldata)
		return nil
	}
	height := bits.Len64(m.accounts.Size()) - 1
	var root *big.Int
	switch {
	case !m.updated:
		if root, err = m.accounts.NodeAt(height, 0); err != nil {
			return err
		}
	case height == m.height:
		root = m.root
	default:
		proof, err := m.accounts.ProofUpTo(0, height)
		if err != nil {
			return err
		}
		root, err = merkle.ComputeRoot(m.hasher, m.root, proof.Siblings[m.height:], proof.SideBits[m.height:])
		if err != nil {
			return err
		}
	}
	m.root = root
	m.height = height
	m.pending = 0
	m.calls = append(m.calls, calldata)
	log.Debugw("mock ledger deposits processed", "root", root.String(), "height", height)
	return nil
}

func (m *MockLedger) Update(_ context.Context, proof *Groth16Proof, txRoot, oldRoot, newRoot *big.Int) error {
	calldata, err := PackUpdate(proof, txRoot, oldRoot, newRoot)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if oldRoot.Cmp(m.root) != 0 {
		return fmt.Errorf("%w: %s, ledger %s", ErrRootMismatch, oldRoot, m.root)
	}
	m.root = new(big.Int).Set(newRoot)
	m.updated = true
	m.txRoots[txRoot.String()] = true
	m.calls = append(m.calls, calldata)
	return nil
}

func (m *MockLedger) Withdraw(_ context.Context, proof *Groth16Proof, recipient common.Address, amount, tx, txRoot *big.Int) error {
	calldata, err := PackWithdraw(proof, recipient, amount, tx, txRoot)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.txRoots[txRoot.String()] {
		return fmt.Errorf("%w: %s", ErrUnknownTxRoot, txRoot)
	}
	key := txRoot.String() + "/" + tx.String()
	if m.withdrawn[key] {
		return ErrAlreadyWithdrawn
	}
	m.withdrawn[key] = true
	paid, ok := m.payouts[recipient]
	if !ok {
		paid = new(big.Int)
	}
	m.payouts[recipient] = paid.Add(paid, amount)
	m.calls = append(m.calls, calldata)
	return nil
}

// Root returns the current ledger root.
func (m *MockLedger) Root() *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.root)
}

// Payout returns the total amount withdrawn to recipient.
func (m *MockLedger) Payout(recipient common.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if paid, ok := m.payouts[recipient]; ok {
		return new(big.Int).Set(paid)
	}
	return new(big.Int)
}

// Calls returns the calldata of every accepted call, in order.
func (m *MockLedger) Calls() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.calls...)
}
