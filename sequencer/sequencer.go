// Package sequencer implements the off-chain half of a token-transfer
// rollup: it keeps the account tree, groups signed transfers into fixed-size
// batches and assembles the witness bundles an external prover consumes.
package sequencer

import (
	"fmt"
	"math/big"
	"math/bits"

	"github.com/vocdoni/arbo/memdb"
	"github.com/vocdoni/zk-rollup-sequencer/crypto/eddsa"
	"github.com/vocdoni/zk-rollup-sequencer/crypto/hash"
	"github.com/vocdoni/zk-rollup-sequencer/log"
	"github.com/vocdoni/zk-rollup-sequencer/merkle"
	"github.com/vocdoni/zk-rollup-sequencer/state"
	"github.com/vocdoni/zk-rollup-sequencer/storage"
	"github.com/vocdoni/zk-rollup-sequencer/types"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var accountTreePrefix = []byte("a/")

// Phase is the position of the sequencer in the batch lifecycle.
type Phase int

const (
	// AwaitingDeposits accepts deposits; transfers need the deposits to be
	// processed first.
	AwaitingDeposits Phase = iota
	// BatchOpen accepts transfers until the transaction tree is full.
	BatchOpen
	// BatchFull waits for the update proof to be produced.
	BatchFull
	// BatchProved waits for the batch to be committed.
	BatchProved
)

func (p Phase) String() string {
	switch p {
	case AwaitingDeposits:
		return "awaitingDeposits"
	case BatchOpen:
		return "batchOpen"
	case BatchFull:
		return "batchFull"
	case BatchProved:
		return "batchProved"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Config holds the construction parameters of a Sequencer.
type Config struct {
	// AccountLevels is the depth of the account tree.
	AccountLevels int
	// TxLevels is the depth of the transaction tree; a batch holds exactly
	// 2^TxLevels transfers.
	TxLevels int
	Hasher   hash.Hasher
	Signer   eddsa.Signer
	// Database stores tree nodes and committed batches. An in-memory
	// database is used when nil.
	Database db.Database
}

// Sequencer is the rollup state machine. It is not safe for concurrent use:
// callers sharing it must serialize every call.
type Sequencer struct {
	hasher   hash.Hasher
	signer   eddsa.Signer
	zeroLeaf *big.Int
	txLevels int

	db       db.Database
	stg      *storage.Storage
	accounts *merkle.Tree
	book     *state.AccountBook
	batch    *state.BatchLedger
	history  *state.History

	phase        Phase
	activeHeight int
	// halted is set once an invariant is broken.
	halted error
}

// New creates a sequencer with an empty account tree and deposits the null
// account (0, 0) with balance 0 at position 0.
func New(conf *Config) (*Sequencer, error) {
	if conf == nil {
		return nil, fmt.Errorf("nil config")
	}
	if conf.Hasher == nil || conf.Signer == nil {
		return nil, fmt.Errorf("hasher and signer are required")
	}
	if conf.TxLevels < 1 || conf.TxLevels > conf.AccountLevels || conf.AccountLevels > types.MaxTreeLevels {
		return nil, fmt.Errorf("invalid tree levels: accounts %d, transactions %d", conf.AccountLevels, conf.TxLevels)
	}
	database := conf.Database
	if database == nil {
		database = memdb.New()
	}
	zero, err := state.ZeroLeaf(conf.Hasher)
	if err != nil {
		return nil, err
	}
	accounts, err := merkle.New(prefixeddb.NewPrefixedDatabase(database, accountTreePrefix),
		conf.AccountLevels, conf.Hasher, zero)
	if err != nil {
		return nil, fmt.Errorf("open account tree: %w", err)
	}
	if accounts.Size() != 0 {
		return nil, fmt.Errorf("database already holds %d accounts", accounts.Size())
	}
	stg := storage.New(database)
	history, err := state.NewHistory(stg, conf.Hasher)
	if err != nil {
		return nil, err
	}
	s := &Sequencer{
		hasher:   conf.Hasher,
		signer:   conf.Signer,
		zeroLeaf: zero,
		txLevels: conf.TxLevels,
		db:       database,
		stg:      stg,
		accounts: accounts,
		book:     state.NewAccountBook(),
		history:  history,
		phase:    AwaitingDeposits,
	}
	if s.batch, err = s.newBatch(0); err != nil {
		return nil, err
	}
	if _, err := s.Deposit(eddsa.NullPublicKey(), big.NewInt(0)); err != nil {
		return nil, fmt.Errorf("deposit null account: %w", err)
	}
	log.Debugw("sequencer initialized",
		"accountLevels", conf.AccountLevels,
		"txLevels", conf.TxLevels,
		"hash", conf.Hasher.Name(),
		"signer", conf.Signer.Name(),
	)
	return s, nil
}

func (s *Sequencer) newBatch(number uint64) (*state.BatchLedger, error) {
	tree, err := merkle.New(state.TxTreeDB(s.db, number), s.txLevels, s.hasher, s.zeroLeaf)
	if err != nil {
		return nil, fmt.Errorf("open transaction tree %d: %w", number, err)
	}
	return state.NewBatchLedger(number, tree)
}

// Close closes the underlying database.
func (s *Sequencer) Close() {
	s.stg.Close()
}

// halt records an invariant violation. Every later call fails with it.
func (s *Sequencer) halt(format string, args ...any) error {
	s.halted = fmt.Errorf("%w: %s", ErrInvariantViolation, fmt.Sprintf(format, args...))
	log.Errorw(s.halted, "sequencer halted", "batch", s.batch.Number(), "phase", s.phase.String())
	return s.halted
}

// Halted returns the invariant violation that stopped the sequencer, if any.
func (s *Sequencer) Halted() error {
	return s.halted
}

// Phase returns the current lifecycle phase.
func (s *Sequencer) Phase() Phase {
	return s.phase
}

// ActiveHeight returns the number of account tree levels proofs cover in the
// current batch.
func (s *Sequencer) ActiveHeight() int {
	return s.activeHeight
}

// TxLevels returns the depth of the transaction tree.
func (s *Sequencer) TxLevels() int {
	return s.txLevels
}

// Hasher returns the hash function of the trees.
func (s *Sequencer) Hasher() hash.Hasher {
	return s.hasher
}

// AccountCount returns the number of deposited leaves, null account included.
func (s *Sequencer) AccountCount() int {
	return s.book.Len()
}

// TotalBalance returns the sum of all account balances.
func (s *Sequencer) TotalBalance() *big.Int {
	return s.book.TotalBalance()
}

// Account returns a copy of the account registered with pk.
func (s *Sequencer) Account(pk eddsa.PublicKey) (*state.Account, error) {
	acc, err := s.lookup(pk)
	if err != nil {
		return nil, err
	}
	return acc.Copy(), nil
}

// AccountRoot returns the account tree node at the active height, the root
// the current batch is proved against.
func (s *Sequencer) AccountRoot() (*big.Int, error) {
	return s.accounts.NodeAt(s.activeHeight, 0)
}

// AccountProof returns the full depth proof of the account registered with
// pk.
func (s *Sequencer) AccountProof(pk eddsa.PublicKey) (*merkle.Proof, error) {
	acc, err := s.lookup(pk)
	if err != nil {
		return nil, err
	}
	return s.accounts.Proof(acc.Position)
}

// RootChain returns a copy of the account sub-roots of the open batch.
func (s *Sequencer) RootChain() []*big.Int {
	chain := make([]*big.Int, len(s.batch.RootChain()))
	for i, r := range s.batch.RootChain() {
		chain[i] = new(big.Int).Set(r)
	}
	return chain
}

// PendingTransactions returns the number of transfers in the open batch.
func (s *Sequencer) PendingTransactions() int {
	return s.batch.Len()
}

// BatchNumber returns the sequence number of the open batch.
func (s *Sequencer) BatchNumber() uint64 {
	return s.batch.Number()
}

// CommittedBatch returns the record of the batch committed with txRoot.
func (s *Sequencer) CommittedBatch(txRoot *big.Int) (*storage.Batch, error) {
	return s.history.Batch(txRoot)
}

// CommittedBatches returns the records of every committed batch in commit
// order.
func (s *Sequencer) CommittedBatches() ([]*storage.Batch, error) {
	numbers, err := s.stg.ListBatches()
	if err != nil {
		return nil, err
	}
	batches := make([]*storage.Batch, 0, len(numbers))
	for _, n := range numbers {
		b, err := s.stg.BatchByNumber(n)
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", n, err)
		}
		batches = append(batches, b)
	}
	return batches, nil
}

func (s *Sequencer) lookup(pk eddsa.PublicKey) (*state.Account, error) {
	if !pk.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, pk)
	}
	key, err := state.AccountKey(s.hasher, pk)
	if err != nil {
		return nil, err
	}
	acc, ok := s.book.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownAccount, pk)
	}
	return acc, nil
}

// activeHeightOf returns floor(log2(size)).
func activeHeightOf(size uint64) int {
	if size == 0 {
		return 0
	}
	return bits.Len64(size) - 1
}
