package sequencer

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/zk-rollup-sequencer/crypto"
	"github.com/vocdoni/zk-rollup-sequencer/crypto/eddsa"
	"github.com/vocdoni/zk-rollup-sequencer/crypto/hash"
	"github.com/vocdoni/zk-rollup-sequencer/crypto/hash/mimc7"
	"github.com/vocdoni/zk-rollup-sequencer/crypto/hash/poseidon"
	"github.com/vocdoni/zk-rollup-sequencer/merkle"
	"go.vocdoni.io/dvote/db/metadb"
)

// newFundedSequencer returns a sequencer over a depth 8 account tree holding
// the null account and nine accounts with balances 0, 10, ..., 80. Key i is
// at position i+1.
func newFundedSequencer(c *qt.C, txLevels int, h hash.Hasher, signer eddsa.Signer) (*Sequencer, []eddsa.PrivateKey) {
	s, err := New(&Config{
		AccountLevels: 8,
		TxLevels:      txLevels,
		Hasher:        h,
		Signer:        signer,
		Database:      metadb.NewTest(c.TB),
	})
	c.Assert(err, qt.IsNil)
	c.Assert(s.AccountCount(), qt.Equals, 1)

	keys := make([]eddsa.PrivateKey, 9)
	for i := range keys {
		keys[i] = eddsa.GenerateKey()
		pos, err := s.Deposit(keys[i].Public(), big.NewInt(int64(10*i)))
		c.Assert(err, qt.IsNil)
		c.Assert(pos, qt.Equals, uint64(i+1))
	}
	return s, keys
}

func balanceOf(c *qt.C, s *Sequencer, key eddsa.PrivateKey) int64 {
	acc, err := s.Account(key.Public())
	c.Assert(err, qt.IsNil)
	return acc.Balance.Int64()
}

func TestTransferScenario(t *testing.T) {
	c := qt.New(t)
	s, keys := newFundedSequencer(c, 2, poseidon.Hasher{}, eddsa.PoseidonSigner{})

	_, _, _, err := s.HashSignTransfer(keys[4], keys[2].Public(), big.NewInt(5))
	c.Assert(err, qt.ErrorIs, ErrBatchNotOpen)

	root, err := s.ProcessPendingDeposits()
	c.Assert(err, qt.IsNil)
	c.Assert(s.ActiveHeight(), qt.Equals, 3)
	c.Assert(s.Phase(), qt.Equals, BatchOpen)
	chain := s.RootChain()
	c.Assert(chain, qt.HasLen, 1)
	c.Assert(chain[0].Cmp(root), qt.Equals, 0)

	// the balance 0 account cannot send anything
	accountRoot, err := s.AccountRoot()
	c.Assert(err, qt.IsNil)
	_, _, _, err = s.HashSignTransfer(keys[0], keys[1].Public(), big.NewInt(2))
	c.Assert(err, qt.ErrorIs, ErrInsufficientBalance)
	c.Assert(balanceOf(c, s, keys[0]), qt.Equals, int64(0))
	c.Assert(balanceOf(c, s, keys[1]), qt.Equals, int64(10))
	c.Assert(s.RootChain(), qt.HasLen, 1)
	c.Assert(s.PendingTransactions(), qt.Equals, 0)
	afterRoot, err := s.AccountRoot()
	c.Assert(err, qt.IsNil)
	c.Assert(afterRoot.Cmp(accountRoot), qt.Equals, 0)

	total := s.TotalBalance()
	txHash, sig, pos, err := s.HashSignTransfer(keys[4], keys[2].Public(), big.NewInt(5))
	c.Assert(err, qt.IsNil)
	c.Assert(pos, qt.Equals, uint64(0))
	c.Assert(sig, qt.IsNotNil)
	c.Assert(balanceOf(c, s, keys[4]), qt.Equals, int64(35))
	c.Assert(balanceOf(c, s, keys[2]), qt.Equals, int64(25))
	c.Assert(s.RootChain(), qt.HasLen, 3)
	c.Assert(s.TotalBalance().Cmp(total), qt.Equals, 0)

	expected, err := s.HashTransaction(keys[4].Public(), keys[2].Public(), big.NewInt(5))
	c.Assert(err, qt.IsNil)
	c.Assert(txHash.Cmp(expected), qt.Equals, 0)

	// the chain tail is the current account tree node at the active height
	chain = s.RootChain()
	current, err := s.AccountRoot()
	c.Assert(err, qt.IsNil)
	c.Assert(chain[2].Cmp(current), qt.Equals, 0)
}

func TestTransferRejections(t *testing.T) {
	c := qt.New(t)
	s, keys := newFundedSequencer(c, 2, poseidon.Hasher{}, eddsa.PoseidonSigner{})
	_, err := s.ProcessPendingDeposits()
	c.Assert(err, qt.IsNil)

	signed := func(key eddsa.PrivateKey, dst eddsa.PublicKey, amount int64) (*eddsa.Signature, *big.Int) {
		txHash, err := s.HashTransaction(key.Public(), dst, big.NewInt(amount))
		c.Assert(err, qt.IsNil)
		sig, err := eddsa.PoseidonSigner{}.Sign(key, txHash)
		c.Assert(err, qt.IsNil)
		return sig, txHash
	}

	// positions 8 and 9 are beyond 2^3
	_, _, _, err = s.HashSignTransfer(keys[7], keys[1].Public(), big.NewInt(1))
	c.Assert(err, qt.ErrorIs, ErrAccountOutsideActiveTree)
	_, _, _, err = s.HashSignTransfer(keys[1], keys[8].Public(), big.NewInt(1))
	c.Assert(err, qt.ErrorIs, ErrAccountOutsideActiveTree)

	_, _, _, err = s.HashSignTransfer(keys[3], keys[3].Public(), big.NewInt(1))
	c.Assert(err, qt.ErrorIs, ErrSelfTransfer)

	stranger := eddsa.GenerateKey()
	_, _, _, err = s.HashSignTransfer(keys[3], stranger.Public(), big.NewInt(1))
	c.Assert(err, qt.ErrorIs, ErrUnknownAccount)
	_, _, _, err = s.HashSignTransfer(stranger, keys[3].Public(), big.NewInt(1))
	c.Assert(err, qt.ErrorIs, ErrUnknownAccount)

	sig, txHash := signed(keys[3], keys[1].Public(), 1)
	_, err = s.Transfer(sig, txHash, keys[3].Public(), keys[1].Public(), big.NewInt(2))
	c.Assert(err, qt.ErrorIs, ErrTxHashMismatch)

	// signed by someone else
	_, forged := signed(keys[3], keys[1].Public(), 1)
	badSig, _ := signed(keys[5], keys[1].Public(), 1)
	_, err = s.Transfer(badSig, forged, keys[3].Public(), keys[1].Public(), big.NewInt(1))
	c.Assert(err, qt.ErrorIs, ErrInvalidSignature)

	_, err = s.Transfer(sig, txHash, keys[3].Public(), keys[1].Public(), crypto.FieldModulus())
	c.Assert(err, qt.ErrorIs, ErrInvalidAmount)

	c.Assert(s.RootChain(), qt.HasLen, 1)
	c.Assert(s.PendingTransactions(), qt.Equals, 0)

	_, err = s.Transfer(sig, txHash, keys[3].Public(), keys[1].Public(), big.NewInt(1))
	c.Assert(err, qt.IsNil)
	_, err = s.Deposit(eddsa.GenerateKey().Public(), big.NewInt(1))
	c.Assert(err, qt.ErrorIs, ErrBatchInProgress)
	_, err = s.ProcessPendingDeposits()
	c.Assert(err, qt.ErrorIs, ErrBatchInProgress)
}

func TestDepositReopensBatch(t *testing.T) {
	c := qt.New(t)
	s, keys := newFundedSequencer(c, 2, poseidon.Hasher{}, eddsa.PoseidonSigner{})
	_, err := s.ProcessPendingDeposits()
	c.Assert(err, qt.IsNil)
	c.Assert(s.ActiveHeight(), qt.Equals, 3)

	// six more accounts bring the tree to 16 leaves
	for i := 0; i < 6; i++ {
		_, err := s.Deposit(eddsa.GenerateKey().Public(), big.NewInt(1))
		c.Assert(err, qt.IsNil)
	}
	c.Assert(s.Phase(), qt.Equals, AwaitingDeposits)
	_, _, _, err = s.HashSignTransfer(keys[8], keys[1].Public(), big.NewInt(1))
	c.Assert(err, qt.ErrorIs, ErrBatchNotOpen)

	_, err = s.ProcessPendingDeposits()
	c.Assert(err, qt.IsNil)
	c.Assert(s.ActiveHeight(), qt.Equals, 4)
	_, _, _, err = s.HashSignTransfer(keys[8], keys[1].Public(), big.NewInt(1))
	c.Assert(err, qt.IsNil)

	_, err = s.Deposit(eddsa.PublicKey{X: crypto.FieldModulus(), Y: big.NewInt(1)}, big.NewInt(1))
	c.Assert(err, qt.ErrorIs, ErrBatchInProgress)
}

func TestInvalidDeposits(t *testing.T) {
	c := qt.New(t)
	s, _ := newFundedSequencer(c, 1, poseidon.Hasher{}, eddsa.PoseidonSigner{})
	_, err := s.Deposit(eddsa.PublicKey{X: crypto.FieldModulus(), Y: big.NewInt(1)}, big.NewInt(1))
	c.Assert(err, qt.ErrorIs, ErrInvalidPublicKey)
	_, err = s.Deposit(eddsa.GenerateKey().Public(), big.NewInt(-1))
	c.Assert(err, qt.ErrorIs, ErrInvalidAmount)
	c.Assert(s.AccountCount(), qt.Equals, 10)

	_, err = New(&Config{AccountLevels: 2, TxLevels: 3, Hasher: poseidon.Hasher{}, Signer: eddsa.PoseidonSigner{}})
	c.Assert(err, qt.ErrorMatches, "invalid tree levels.*")

	small, err := New(&Config{AccountLevels: 1, TxLevels: 1, Hasher: poseidon.Hasher{}, Signer: eddsa.PoseidonSigner{}})
	c.Assert(err, qt.IsNil)
	_, err = small.Deposit(eddsa.GenerateKey().Public(), big.NewInt(1))
	c.Assert(err, qt.IsNil)
	_, err = small.Deposit(eddsa.GenerateKey().Public(), big.NewInt(1))
	c.Assert(err, qt.ErrorIs, merkle.ErrCapacityExceeded)
}

// fillBatch sends transfers of 1 between accounts 1..4 until the batch is
// full and returns the transaction hashes.
func fillBatch(c *qt.C, s *Sequencer, keys []eddsa.PrivateKey) []*big.Int {
	var hashes []*big.Int
	for i := 0; s.Phase() == BatchOpen; i++ {
		src := keys[1+i%4]
		dst := keys[1+(i+1)%4]
		txHash, _, pos, err := s.HashSignTransfer(src, dst.Public(), big.NewInt(1))
		c.Assert(err, qt.IsNil)
		c.Assert(pos, qt.Equals, uint64(i))
		hashes = append(hashes, txHash)
	}
	return hashes
}

func TestBatchLifecycle(t *testing.T) {
	for _, tc := range []struct {
		name   string
		hasher hash.Hasher
		signer eddsa.Signer
	}{
		{"poseidon", poseidon.Hasher{}, eddsa.PoseidonSigner{}},
		{"mimc7", mimc7.Hasher{}, eddsa.MiMC7Signer{}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := qt.New(t)
			s, keys := newFundedSequencer(c, 2, tc.hasher, tc.signer)
			_, err := s.ProcessPendingDeposits()
			c.Assert(err, qt.IsNil)
			total := s.TotalBalance()

			_, err = s.UpdateProof()
			c.Assert(err, qt.ErrorIs, ErrBatchNotFull)
			_, err = s.Restart()
			c.Assert(err, qt.ErrorIs, ErrBatchNotFull)

			hashes := fillBatch(c, s, keys)
			c.Assert(hashes, qt.HasLen, 4)
			c.Assert(s.Phase(), qt.Equals, BatchFull)
			c.Assert(s.RootChain(), qt.HasLen, 9)
			c.Assert(s.TotalBalance().Cmp(total), qt.Equals, 0)

			_, _, _, err = s.HashSignTransfer(keys[1], keys[2].Public(), big.NewInt(1))
			c.Assert(err, qt.ErrorIs, ErrBatchFull)
			_, err = s.Restart()
			c.Assert(err, qt.ErrorIs, ErrBatchNotProved)

			proof, err := s.UpdateProof()
			c.Assert(err, qt.IsNil)
			c.Assert(proof.Len(), qt.Equals, 4)
			c.Assert(proof.ActiveHeight, qt.Equals, 3)
			c.Assert(proof.TxSiblings[0], qt.HasLen, 2)
			c.Assert(proof.SrcSiblings[0], qt.HasLen, 3)
			c.Assert(proof.Verify(tc.hasher), qt.IsNil)
			c.Assert(s.Phase(), qt.Equals, BatchProved)

			tampered := *proof
			tampered.Amounts = append([]*big.Int{big.NewInt(2)}, proof.Amounts[1:]...)
			c.Assert(tampered.Verify(tc.hasher), qt.IsNotNil)

			txRoot, err := s.Restart()
			c.Assert(err, qt.IsNil)
			c.Assert(txRoot.Cmp(proof.TxRoot), qt.Equals, 0)
			c.Assert(s.Phase(), qt.Equals, BatchOpen)
			c.Assert(s.BatchNumber(), qt.Equals, uint64(1))
			chain := s.RootChain()
			c.Assert(chain, qt.HasLen, 1)
			c.Assert(chain[0].Cmp(proof.NewRoot), qt.Equals, 0)

			for i, h := range hashes {
				wp, err := s.WithdrawProof(h, txRoot)
				c.Assert(err, qt.IsNil)
				c.Assert(wp.Position, qt.Equals, uint64(i))
				ok, err := merkle.VerifyProof(tc.hasher, txRoot, h, wp.Siblings, wp.SideBits)
				c.Assert(err, qt.IsNil)
				c.Assert(ok, qt.IsTrue)
			}
			_, err = s.WithdrawProof(hashes[0], big.NewInt(12345))
			c.Assert(err, qt.ErrorIs, ErrUnknownBatch)
			_, err = s.WithdrawProof(big.NewInt(12345), txRoot)
			c.Assert(err, qt.ErrorIs, ErrUnknownTransaction)

			// the same transfers again give the same transaction root
			fillBatch(c, s, keys)
			_, err = s.UpdateProof()
			c.Assert(err, qt.IsNil)
			second, err := s.Restart()
			c.Assert(err, qt.IsNil)
			c.Assert(second.Cmp(txRoot), qt.Equals, 0)
			_, err = s.WithdrawProof(hashes[3], second)
			c.Assert(err, qt.IsNil)
			batches, err := s.CommittedBatches()
			c.Assert(err, qt.IsNil)
			c.Assert(batches, qt.HasLen, 2)
			c.Assert(batches[1].OldRoot.MathBigInt().Cmp(proof.NewRoot), qt.Equals, 0)
			c.Assert(s.TotalBalance().Cmp(total), qt.Equals, 0)
		})
	}
}

func TestCommittedLookupsOutsideField(t *testing.T) {
	c := qt.New(t)
	s, keys := newFundedSequencer(c, 1, poseidon.Hasher{}, eddsa.PoseidonSigner{})
	_, err := s.ProcessPendingDeposits()
	c.Assert(err, qt.IsNil)
	hashes := fillBatch(c, s, keys)
	_, err = s.UpdateProof()
	c.Assert(err, qt.IsNil)
	txRoot, err := s.Restart()
	c.Assert(err, qt.IsNil)

	// values that serialize to the same 32 bytes as a committed one
	wrap := new(big.Int).Lsh(big.NewInt(1), 256)
	aliases := []*big.Int{new(big.Int).Add(txRoot, wrap), new(big.Int).Neg(txRoot)}
	for _, root := range aliases {
		_, err = s.WithdrawProof(hashes[0], root)
		c.Assert(err, qt.ErrorIs, ErrUnknownBatch)
		_, err = s.CommittedBatch(root)
		c.Assert(err, qt.ErrorIs, ErrUnknownBatch)
	}
	_, err = s.WithdrawProof(new(big.Int).Add(hashes[0], wrap), txRoot)
	c.Assert(err, qt.ErrorIs, ErrUnknownTransaction)
	_, err = s.WithdrawProof(new(big.Int).Neg(hashes[1]), txRoot)
	c.Assert(err, qt.ErrorIs, ErrUnknownTransaction)

	b, err := s.CommittedBatch(txRoot)
	c.Assert(err, qt.IsNil)
	c.Assert(b.Number, qt.Equals, uint64(0))
}

func TestUpdateProofIsDetached(t *testing.T) {
	c := qt.New(t)
	s, keys := newFundedSequencer(c, 1, poseidon.Hasher{}, eddsa.PoseidonSigner{})
	_, err := s.ProcessPendingDeposits()
	c.Assert(err, qt.IsNil)
	fillBatch(c, s, keys)

	first, err := s.UpdateProof()
	c.Assert(err, qt.IsNil)
	src := keys[1].Public()
	first.PubKeySrc[0].X.SetInt64(7)
	first.PubKeyDst[0].Y.SetInt64(7)
	first.SrcSiblings[0][0].SetInt64(7)
	first.DstSideBits[0][0] = !first.DstSideBits[0][0]
	first.TxSiblings[0][0].SetInt64(7)
	first.Amounts[0].SetInt64(7)
	first.BalanceSrc[0].SetInt64(7)
	first.SignatureS[0].SetInt64(7)
	first.RootChain[1].SetInt64(7)
	first.OldRoot.SetInt64(7)

	second, err := s.UpdateProof()
	c.Assert(err, qt.IsNil)
	c.Assert(second.Verify(poseidon.Hasher{}), qt.IsNil)
	c.Assert(second.PubKeySrc[0].Equal(src), qt.IsTrue)
	c.Assert(second.Amounts[0].Int64(), qt.Equals, int64(1))

	acc, err := s.Account(src)
	c.Assert(err, qt.IsNil)
	c.Assert(acc.Position, qt.Equals, uint64(2))
	_, err = s.Restart()
	c.Assert(err, qt.IsNil)
}

func TestInvariantViolationHalts(t *testing.T) {
	c := qt.New(t)
	s, keys := newFundedSequencer(c, 2, poseidon.Hasher{}, eddsa.PoseidonSigner{})
	_, err := s.ProcessPendingDeposits()
	c.Assert(err, qt.IsNil)

	s.batch.RootChain()[0].SetInt64(1)
	_, _, _, err = s.HashSignTransfer(keys[4], keys[2].Public(), big.NewInt(5))
	c.Assert(err, qt.ErrorIs, ErrInvariantViolation)
	c.Assert(s.Halted(), qt.ErrorIs, ErrInvariantViolation)
	c.Assert(balanceOf(c, s, keys[4]), qt.Equals, int64(40))

	_, err = s.Deposit(eddsa.GenerateKey().Public(), big.NewInt(1))
	c.Assert(err, qt.ErrorIs, ErrInvariantViolation)
	_, err = s.UpdateProof()
	c.Assert(err, qt.ErrorIs, ErrInvariantViolation)
}

func TestPhaseString(t *testing.T) {
	c := qt.New(t)
	c.Assert(BatchProved.String(), qt.Equals, "batchProved")
	c.Assert(Phase(9).String(), qt.Equals, "phase(9)")
}
