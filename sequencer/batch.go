package sequencer

import (
	"fmt"
	"math/big"

	"github.com/vocdoni/zk-rollup-sequencer/crypto"
	"github.com/vocdoni/zk-rollup-sequencer/crypto/eddsa"
	"github.com/vocdoni/zk-rollup-sequencer/crypto/hash"
	"github.com/vocdoni/zk-rollup-sequencer/log"
	"github.com/vocdoni/zk-rollup-sequencer/merkle"
	"github.com/vocdoni/zk-rollup-sequencer/state"
)

// UpdateProof is the witness of a full batch: everything the batch circuit
// needs to check the account tree transition from OldRoot to NewRoot, in
// transaction order.
type UpdateProof struct {
	TxRoot       *big.Int
	TxSiblings   [][]*big.Int
	TxSideBits   [][]bool
	SignatureR8  [][2]*big.Int
	SignatureS   []*big.Int
	PubKeySrc    []eddsa.PublicKey
	BalanceSrc   []*big.Int
	PubKeyDst    []eddsa.PublicKey
	BalanceDst   []*big.Int
	SrcSiblings  [][]*big.Int
	SrcSideBits  [][]bool
	DstSiblings  [][]*big.Int
	DstSideBits  [][]bool
	Amounts      []*big.Int
	RootChain    []*big.Int
	OldRoot      *big.Int
	NewRoot      *big.Int
	ActiveHeight int
}

// Len returns the number of transactions in the proof.
func (p *UpdateProof) Len() int {
	return len(p.Amounts)
}

// Verify recomputes every step of the proof with h: each transaction leaf
// must be included under TxRoot, and each account update must move the
// root chain one step forward.
func (p *UpdateProof) Verify(h hash.Hasher) error {
	n := p.Len()
	for _, l := range []int{
		len(p.TxSiblings), len(p.TxSideBits), len(p.SignatureR8), len(p.SignatureS),
		len(p.PubKeySrc), len(p.BalanceSrc), len(p.PubKeyDst), len(p.BalanceDst),
		len(p.SrcSiblings), len(p.SrcSideBits), len(p.DstSiblings), len(p.DstSideBits),
	} {
		if l != n {
			return fmt.Errorf("inconsistent proof: %d entries for %d transactions", l, n)
		}
	}
	if len(p.RootChain) != 2*n+1 {
		return fmt.Errorf("root chain has %d roots for %d transactions", len(p.RootChain), n)
	}
	if p.OldRoot.Cmp(p.RootChain[0]) != 0 || p.NewRoot.Cmp(p.RootChain[2*n]) != 0 {
		return fmt.Errorf("old or new root do not match the root chain")
	}
	for i := 0; i < n; i++ {
		txHash, err := state.TransactionHash(h, p.PubKeySrc[i], p.PubKeyDst[i], p.Amounts[i])
		if err != nil {
			return err
		}
		if ok, err := merkle.VerifyProof(h, p.TxRoot, txHash, p.TxSiblings[i], p.TxSideBits[i]); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("transaction %d not included in %s", i, p.TxRoot)
		}
		srcNew := new(big.Int).Sub(p.BalanceSrc[i], p.Amounts[i])
		dstNew := new(big.Int).Add(p.BalanceDst[i], p.Amounts[i])
		steps := []struct {
			pk        eddsa.PublicKey
			balance   *big.Int
			siblings  []*big.Int
			sideBits  []bool
			root      *big.Int
			side, tag string
		}{
			{p.PubKeySrc[i], p.BalanceSrc[i], p.SrcSiblings[i], p.SrcSideBits[i], p.RootChain[2*i], "source", "old"},
			{p.PubKeySrc[i], srcNew, p.SrcSiblings[i], p.SrcSideBits[i], p.RootChain[2*i+1], "source", "new"},
			{p.PubKeyDst[i], p.BalanceDst[i], p.DstSiblings[i], p.DstSideBits[i], p.RootChain[2*i+1], "destination", "old"},
			{p.PubKeyDst[i], dstNew, p.DstSiblings[i], p.DstSideBits[i], p.RootChain[2*i+2], "destination", "new"},
		}
		for _, st := range steps {
			if len(st.siblings) != p.ActiveHeight {
				return fmt.Errorf("transaction %d: %s path has %d levels, expected %d", i, st.side, len(st.siblings), p.ActiveHeight)
			}
			leaf, err := state.AccountLeaf(h, st.pk, st.balance)
			if err != nil {
				return err
			}
			ok, err := merkle.VerifyProof(h, st.root, leaf, st.siblings, st.sideBits)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("transaction %d: %s %s leaf does not match the root chain", i, st.tag, st.side)
			}
		}
	}
	return nil
}

// UpdateProof assembles the witness of the open batch. The proof shares no
// memory with the sequencer. The transaction tree
// must be exactly full. The batch then waits to be committed with Restart.
func (s *Sequencer) UpdateProof() (*UpdateProof, error) {
	if s.halted != nil {
		return nil, s.halted
	}
	if s.phase != BatchFull && s.phase != BatchProved {
		return nil, fmt.Errorf("%w: %d of %d transactions", ErrBatchNotFull, s.batch.Len(), s.batch.Tree().Capacity())
	}
	txTree := s.batch.Tree()
	txRoot, err := txTree.Root()
	if err != nil {
		return nil, err
	}
	txs := s.batch.Transactions()
	chain := s.RootChain()
	p := &UpdateProof{
		TxRoot:       txRoot,
		RootChain:    chain,
		OldRoot:      new(big.Int).Set(chain[0]),
		NewRoot:      new(big.Int).Set(chain[len(chain)-1]),
		ActiveHeight: s.batch.ActiveHeight(),
	}
	for i, tx := range txs {
		txProof, err := txTree.Proof(uint64(i))
		if err != nil {
			return nil, err
		}
		src, dst := s.batch.SrcSteps()[i], s.batch.DstSteps()[i]
		p.TxSiblings = append(p.TxSiblings, txProof.Siblings)
		p.TxSideBits = append(p.TxSideBits, txProof.SideBits)
		p.SignatureR8 = append(p.SignatureR8, [2]*big.Int{crypto.CopyField(tx.Signature.R8X), crypto.CopyField(tx.Signature.R8Y)})
		p.SignatureS = append(p.SignatureS, crypto.CopyField(tx.Signature.S))
		p.PubKeySrc = append(p.PubKeySrc, tx.Src.Copy())
		p.BalanceSrc = append(p.BalanceSrc, crypto.CopyField(tx.SrcBalance))
		p.PubKeyDst = append(p.PubKeyDst, tx.Dst.Copy())
		p.BalanceDst = append(p.BalanceDst, crypto.CopyField(tx.DstBalance))
		p.SrcSiblings = append(p.SrcSiblings, crypto.CopyFields(src.Siblings))
		p.SrcSideBits = append(p.SrcSideBits, append([]bool{}, src.SideBits...))
		p.DstSiblings = append(p.DstSiblings, crypto.CopyFields(dst.Siblings))
		p.DstSideBits = append(p.DstSideBits, append([]bool{}, dst.SideBits...))
		p.Amounts = append(p.Amounts, crypto.CopyField(tx.Amount))
	}
	s.phase = BatchProved
	log.Debugw("update proof ready", "batch", s.batch.Number(), "txRoot", txRoot.String())
	return p, nil
}

// Restart commits the proved batch to the history and opens the next one.
// The new batch keeps the active height and starts from the current account
// tree node at that height. It returns the committed transaction root.
func (s *Sequencer) Restart() (*big.Int, error) {
	if s.halted != nil {
		return nil, s.halted
	}
	switch s.phase {
	case BatchProved:
	case BatchFull:
		return nil, ErrBatchNotProved
	default:
		return nil, fmt.Errorf("%w: %d of %d transactions", ErrBatchNotFull, s.batch.Len(), s.batch.Tree().Capacity())
	}
	chain := s.batch.RootChain()
	txRoot, err := s.history.Commit(s.batch, chain[0], chain[len(chain)-1])
	if err != nil {
		return nil, err
	}
	next, err := s.newBatch(s.batch.Number() + 1)
	if err != nil {
		return nil, s.halt("open batch %d: %v", s.batch.Number()+1, err)
	}
	root, err := s.accounts.NodeAt(s.activeHeight, 0)
	if err != nil {
		return nil, s.halt("read account root: %v", err)
	}
	if err := next.Seed(root, s.activeHeight); err != nil {
		return nil, s.halt("seed batch %d: %v", next.Number(), err)
	}
	log.Infow("batch committed",
		"batch", s.batch.Number(),
		"txRoot", txRoot.String(),
		"oldRoot", chain[0].String(),
		"newRoot", chain[len(chain)-1].String(),
	)
	s.batch = next
	s.phase = BatchOpen
	return txRoot, nil
}

// WithdrawProof is the inclusion proof of a committed transaction.
type WithdrawProof struct {
	TxRoot   *big.Int
	TxHash   *big.Int
	Position uint64
	Siblings []*big.Int
	SideBits []bool
}

// WithdrawProof returns the full depth proof of txHash in the batch
// committed with txRoot.
func (s *Sequencer) WithdrawProof(txHash, txRoot *big.Int) (*WithdrawProof, error) {
	if txHash == nil || txRoot == nil {
		return nil, fmt.Errorf("%w: nil root or hash", ErrUnknownTransaction)
	}
	proof, err := s.history.Proof(txRoot, txHash)
	if err != nil {
		return nil, err
	}
	ok, err := proof.Verify(s.hasher)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: committed proof of %s does not verify", ErrInvariantViolation, txHash)
	}
	return &WithdrawProof{
		TxRoot:   new(big.Int).Set(txRoot),
		TxHash:   new(big.Int).Set(txHash),
		Position: proof.Position,
		Siblings: proof.Siblings,
		SideBits: proof.SideBits,
	}, nil
}
