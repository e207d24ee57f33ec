package sequencer

import (
	"fmt"
	"math/big"

	"github.com/vocdoni/zk-rollup-sequencer/crypto"
	"github.com/vocdoni/zk-rollup-sequencer/crypto/eddsa"
	"github.com/vocdoni/zk-rollup-sequencer/log"
	"github.com/vocdoni/zk-rollup-sequencer/state"
)

// Deposit appends the account (pk, balance) to the account tree and returns
// its position. Deposits are trusted: the settlement layer reconciles the
// funds. They are accepted while awaiting deposits, or with an open batch
// that has no transfer yet, in which case the deposits must be processed
// again before transferring.
func (s *Sequencer) Deposit(pk eddsa.PublicKey, balance *big.Int) (uint64, error) {
	if s.halted != nil {
		return 0, s.halted
	}
	switch {
	case s.phase == AwaitingDeposits:
	case s.phase == BatchOpen && s.batch.Len() == 0:
	default:
		return 0, fmt.Errorf("%w: deposit in phase %s with %d transfers", ErrBatchInProgress, s.phase, s.batch.Len())
	}
	if !pk.Valid() {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPublicKey, pk)
	}
	if err := crypto.CheckInField(balance); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	leaf, err := state.AccountLeaf(s.hasher, pk, balance)
	if err != nil {
		return 0, err
	}
	key, err := state.AccountKey(s.hasher, pk)
	if err != nil {
		return 0, err
	}
	position, err := s.accounts.Append(leaf)
	if err != nil {
		return 0, fmt.Errorf("deposit: %w", err)
	}
	if _, err := s.book.Add(key, pk, balance, position); err != nil {
		return 0, s.halt("account book out of sync with tree: %v", err)
	}
	s.phase = AwaitingDeposits
	log.Debugw("deposit", "position", position, "pubKey", pk.String(), "balance", balance.String())
	return position, nil
}

// ProcessPendingDeposits opens the batch: it fixes the active height to
// floor(log2(accounts)) and seeds the root chain with the account tree node
// at that height. It can be called again as long as no transfer was applied.
func (s *Sequencer) ProcessPendingDeposits() (*big.Int, error) {
	if s.halted != nil {
		return nil, s.halted
	}
	if s.phase != AwaitingDeposits && !(s.phase == BatchOpen && s.batch.Len() == 0) {
		return nil, fmt.Errorf("%w: process deposits in phase %s", ErrBatchInProgress, s.phase)
	}
	height := activeHeightOf(s.accounts.Size())
	root, err := s.accounts.NodeAt(height, 0)
	if err != nil {
		return nil, err
	}
	if err := s.batch.Seed(root, height); err != nil {
		return nil, err
	}
	s.activeHeight = height
	s.phase = BatchOpen
	log.Infow("batch open",
		"batch", s.batch.Number(),
		"accounts", s.accounts.Size(),
		"activeHeight", height,
		"root", root.String(),
	)
	return new(big.Int).Set(root), nil
}
