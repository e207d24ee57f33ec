package sequencer

import (
	"fmt"
	"math/big"

	"github.com/vocdoni/zk-rollup-sequencer/crypto"
	"github.com/vocdoni/zk-rollup-sequencer/crypto/eddsa"
	"github.com/vocdoni/zk-rollup-sequencer/log"
	"github.com/vocdoni/zk-rollup-sequencer/state"
)

// HashTransaction returns the hash of the transfer of amount from src to
// dst. It is the message the source signs and the transaction tree leaf.
func (s *Sequencer) HashTransaction(src, dst eddsa.PublicKey, amount *big.Int) (*big.Int, error) {
	return state.TransactionHash(s.hasher, src, dst, amount)
}

// HashSignTransfer hashes the transfer, signs it with key and applies it.
// It returns the transaction hash, the signature and the position of the
// transaction in the batch.
func (s *Sequencer) HashSignTransfer(key eddsa.PrivateKey, dst eddsa.PublicKey, amount *big.Int) (*big.Int, *eddsa.Signature, uint64, error) {
	src := key.Public()
	txHash, err := s.HashTransaction(src, dst, amount)
	if err != nil {
		return nil, nil, 0, err
	}
	sig, err := s.signer.Sign(key, txHash)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("sign transfer: %w", err)
	}
	position, err := s.Transfer(sig, txHash, src, dst, amount)
	if err != nil {
		return nil, nil, 0, err
	}
	return txHash, sig, position, nil
}

// Transfer applies a signed transfer of amount from src to dst to the open
// batch and returns its position in the transaction tree. A rejected
// transfer leaves the state untouched.
//
// The account tree is updated in two steps, source then destination, and the
// node at the active height is recorded after each one, so that the batch
// proof can check every single leaf update.
func (s *Sequencer) Transfer(sig *eddsa.Signature, txHash *big.Int, src, dst eddsa.PublicKey, amount *big.Int) (uint64, error) {
	if s.halted != nil {
		return 0, s.halted
	}
	switch s.phase {
	case BatchOpen:
	case BatchFull, BatchProved:
		return 0, ErrBatchFull
	default:
		return 0, ErrBatchNotOpen
	}
	if s.batch.Full() {
		return 0, ErrBatchFull
	}
	if err := crypto.CheckInField(amount); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	srcAcc, err := s.lookup(src)
	if err != nil {
		return 0, fmt.Errorf("source: %w", err)
	}
	dstAcc, err := s.lookup(dst)
	if err != nil {
		return 0, fmt.Errorf("destination: %w", err)
	}
	if srcAcc.Position == dstAcc.Position {
		return 0, ErrSelfTransfer
	}
	activeSize := uint64(1) << s.activeHeight
	for _, acc := range []*state.Account{srcAcc, dstAcc} {
		if acc.Position >= activeSize {
			return 0, fmt.Errorf("%w: position %d, active height %d", ErrAccountOutsideActiveTree, acc.Position, s.activeHeight)
		}
	}
	expected, err := s.HashTransaction(src, dst, amount)
	if err != nil {
		return 0, err
	}
	if txHash == nil || expected.Cmp(txHash) != 0 {
		return 0, ErrTxHashMismatch
	}
	if !s.signer.Verify(src, txHash, sig) {
		return 0, ErrInvalidSignature
	}
	if amount.Cmp(srcAcc.Balance) > 0 {
		return 0, fmt.Errorf("%w: balance %s, amount %s", ErrInsufficientBalance, srcAcc.Balance, amount)
	}
	srcBalance := new(big.Int).Sub(srcAcc.Balance, amount)
	dstBalance := new(big.Int).Add(dstAcc.Balance, amount)
	if !crypto.IsInField(dstBalance) {
		return 0, fmt.Errorf("%w: destination balance overflows the field", ErrInvalidAmount)
	}
	srcLeaf, err := state.AccountLeaf(s.hasher, srcAcc.PublicKey, srcBalance)
	if err != nil {
		return 0, err
	}
	dstLeaf, err := state.AccountLeaf(s.hasher, dstAcc.PublicKey, dstBalance)
	if err != nil {
		return 0, err
	}

	before, err := s.accounts.ProofUpTo(srcAcc.Position, s.activeHeight)
	if err != nil {
		return 0, err
	}
	if before.Root.Cmp(s.batch.LastRoot()) != 0 {
		return 0, s.halt("account root %s does not match root chain tail %s", before.Root, s.batch.LastRoot())
	}

	// from here on a failure leaves the tree ahead of the book
	if err := s.accounts.Update(srcAcc.Position, srcLeaf); err != nil {
		return 0, s.halt("update source leaf %d: %v", srcAcc.Position, err)
	}
	srcProof, err := s.accounts.ProofUpTo(srcAcc.Position, s.activeHeight)
	if err != nil {
		return 0, s.halt("source proof %d: %v", srcAcc.Position, err)
	}
	if err := s.accounts.Update(dstAcc.Position, dstLeaf); err != nil {
		return 0, s.halt("update destination leaf %d: %v", dstAcc.Position, err)
	}
	dstProof, err := s.accounts.ProofUpTo(dstAcc.Position, s.activeHeight)
	if err != nil {
		return 0, s.halt("destination proof %d: %v", dstAcc.Position, err)
	}
	tx := &state.Transaction{
		Hash:       new(big.Int).Set(txHash),
		Signature:  sig.Copy(),
		Src:        srcAcc.PublicKey.Copy(),
		SrcBalance: new(big.Int).Set(srcAcc.Balance),
		Dst:        dstAcc.PublicKey.Copy(),
		DstBalance: new(big.Int).Set(dstAcc.Balance),
		Amount:     new(big.Int).Set(amount),
	}
	position, err := s.batch.Record(tx, srcProof, dstProof)
	if err != nil {
		return 0, s.halt("record transaction: %v", err)
	}
	srcAcc.Balance = srcBalance
	dstAcc.Balance = dstBalance
	if s.batch.Full() {
		s.phase = BatchFull
	}
	log.Debugw("transfer",
		"batch", s.batch.Number(),
		"position", position,
		"src", srcAcc.Position,
		"dst", dstAcc.Position,
		"amount", amount.String(),
	)
	if s.phase == BatchFull {
		log.Infow("batch full", "batch", s.batch.Number(), "transactions", s.batch.Len())
	}
	return position, nil
}
