package web3

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/zk-rollup-sequencer/crypto/eddsa"
	"github.com/vocdoni/zk-rollup-sequencer/crypto/hash/poseidon"
	"github.com/vocdoni/zk-rollup-sequencer/sequencer"
)

func testProof() *Groth16Proof {
	return &Groth16Proof{
		A: [2]*big.Int{big.NewInt(1), big.NewInt(2)},
		B: [2][2]*big.Int{{big.NewInt(3), big.NewInt(4)}, {big.NewInt(5), big.NewInt(6)}},
		C: [2]*big.Int{big.NewInt(7), big.NewInt(8)},
	}
}

func TestPackCalls(t *testing.T) {
	c := qt.New(t)
	pk := eddsa.GenerateKey().Public()

	data, err := PackDeposit(pk, big.NewInt(40))
	c.Assert(err, qt.IsNil)
	method := RollupABI.Methods[MethodDeposit]
	c.Assert(bytes.Equal(data[:4], method.ID), qt.IsTrue)
	args, err := method.Inputs.Unpack(data[4:])
	c.Assert(err, qt.IsNil)
	pubkey := args[0].([2]*big.Int)
	c.Assert(pubkey[0].Cmp(pk.X), qt.Equals, 0)
	c.Assert(pubkey[1].Cmp(pk.Y), qt.Equals, 0)
	c.Assert(args[1].(*big.Int).Int64(), qt.Equals, int64(40))

	data, err = PackProcessPendingDeposits()
	c.Assert(err, qt.IsNil)
	c.Assert(data, qt.HasLen, 4)

	data, err = PackUpdate(testProof(), big.NewInt(10), big.NewInt(11), big.NewInt(12))
	c.Assert(err, qt.IsNil)
	args, err = RollupABI.Methods[MethodUpdate].Inputs.Unpack(data[4:])
	c.Assert(err, qt.IsNil)
	c.Assert(args, qt.HasLen, 6)
	b := args[1].([2][2]*big.Int)
	c.Assert(b[1][0].Int64(), qt.Equals, int64(5))
	c.Assert(args[5].(*big.Int).Int64(), qt.Equals, int64(12))

	recipient := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	data, err = PackWithdraw(testProof(), recipient, big.NewInt(4), big.NewInt(99), big.NewInt(10))
	c.Assert(err, qt.IsNil)
	args, err = RollupABI.Methods[MethodWithdraw].Inputs.Unpack(data[4:])
	c.Assert(err, qt.IsNil)
	c.Assert(args[3].(common.Address), qt.Equals, recipient)
	c.Assert(args[5].(*big.Int).Int64(), qt.Equals, int64(99))

	_, err = PackUpdate(&Groth16Proof{}, big.NewInt(1), big.NewInt(1), big.NewInt(1))
	c.Assert(err, qt.ErrorMatches, "incomplete proof")
}

func TestProofEncoding(t *testing.T) {
	c := qt.New(t)
	snark := []byte(`{
		"pi_a": ["1", "2", "1"],
		"pi_b": [["3", "4"], ["5", "6"], ["1", "0"]],
		"pi_c": ["7", "8", "1"],
		"protocol": "groth16"
	}`)
	p, err := ParseSnarkJSProof(snark)
	c.Assert(err, qt.IsNil)
	c.Assert(p.B[0][0].Int64(), qt.Equals, int64(4))
	c.Assert(p.B[0][1].Int64(), qt.Equals, int64(3))
	c.Assert(p.B[1][0].Int64(), qt.Equals, int64(6))
	c.Assert(p.C[1].Int64(), qt.Equals, int64(8))

	_, err = ParseSnarkJSProof([]byte(`{"pi_a": ["1"]}`))
	c.Assert(err, qt.ErrorMatches, "incomplete snarkjs proof")

	data, err := json.Marshal(testProof())
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, `{"a":["1","2"],"b":[["3","4"],["5","6"]],"c":["7","8"]}`)
	var decoded Groth16Proof
	c.Assert(json.Unmarshal(data, &decoded), qt.IsNil)
	c.Assert(decoded.B[1][1].Int64(), qt.Equals, int64(6))
	c.Assert(json.Unmarshal([]byte(`{"a":["1","2"]}`), &decoded), qt.ErrorMatches, "incomplete proof")
}

func TestMockLedgerFollowsSequencer(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	h := poseidon.Hasher{}
	seq, err := sequencer.New(&sequencer.Config{
		AccountLevels: 6,
		TxLevels:      1,
		Hasher:        h,
		Signer:        eddsa.PoseidonSigner{},
	})
	c.Assert(err, qt.IsNil)
	ledger, err := NewMockLedger(6, h)
	c.Assert(err, qt.IsNil)

	keys := []eddsa.PrivateKey{eddsa.GenerateKey(), eddsa.GenerateKey(), eddsa.GenerateKey()}
	for i, k := range keys {
		amount := big.NewInt(int64(10 * (i + 1)))
		_, err := seq.Deposit(k.Public(), amount)
		c.Assert(err, qt.IsNil)
		c.Assert(ledger.Deposit(ctx, k.Public(), amount), qt.IsNil)
	}
	root, err := seq.ProcessPendingDeposits()
	c.Assert(err, qt.IsNil)
	c.Assert(ledger.ProcessPendingDeposits(ctx), qt.IsNil)
	c.Assert(ledger.Root().Cmp(root), qt.Equals, 0)

	_, _, _, err = seq.HashSignTransfer(keys[0], keys[1].Public(), big.NewInt(3))
	c.Assert(err, qt.IsNil)
	txHash, _, _, err := seq.HashSignTransfer(keys[2], eddsa.NullPublicKey(), big.NewInt(4))
	c.Assert(err, qt.IsNil)
	proof, err := seq.UpdateProof()
	c.Assert(err, qt.IsNil)

	recipient := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	err = ledger.Withdraw(ctx, testProof(), recipient, big.NewInt(4), txHash, proof.TxRoot)
	c.Assert(err, qt.ErrorIs, ErrUnknownTxRoot)

	c.Assert(ledger.Update(ctx, testProof(), proof.TxRoot, proof.OldRoot, proof.NewRoot), qt.IsNil)
	c.Assert(ledger.Root().Cmp(proof.NewRoot), qt.Equals, 0)
	err = ledger.Update(ctx, testProof(), proof.TxRoot, proof.OldRoot, proof.NewRoot)
	c.Assert(err, qt.ErrorIs, ErrRootMismatch)
	_, err = seq.Restart()
	c.Assert(err, qt.IsNil)

	c.Assert(ledger.Withdraw(ctx, testProof(), recipient, big.NewInt(4), txHash, proof.TxRoot), qt.IsNil)
	err = ledger.Withdraw(ctx, testProof(), recipient, big.NewInt(4), txHash, proof.TxRoot)
	c.Assert(err, qt.ErrorIs, ErrAlreadyWithdrawn)
	c.Assert(ledger.Payout(recipient).Int64(), qt.Equals, int64(4))

	// 3 deposits, process, update and withdraw
	calls := ledger.Calls()
	c.Assert(calls, qt.HasLen, 6)
	c.Assert(bytes.Equal(calls[5][:4], RollupABI.Methods[MethodWithdraw].ID), qt.IsTrue)

	// four more accounts raise the active height to 3
	for i := 0; i < 4; i++ {
		k := eddsa.GenerateKey()
		_, err := seq.Deposit(k.Public(), big.NewInt(5))
		c.Assert(err, qt.IsNil)
		c.Assert(ledger.Deposit(ctx, k.Public(), big.NewInt(5)), qt.IsNil)
		keys = append(keys, k)
	}
	root, err = seq.ProcessPendingDeposits()
	c.Assert(err, qt.IsNil)
	c.Assert(seq.ActiveHeight(), qt.Equals, 3)
	c.Assert(ledger.ProcessPendingDeposits(ctx), qt.IsNil)
	c.Assert(ledger.Root().Cmp(root), qt.Equals, 0)

	_, _, _, err = seq.HashSignTransfer(keys[5], keys[0].Public(), big.NewInt(2))
	c.Assert(err, qt.IsNil)
	_, _, _, err = seq.HashSignTransfer(keys[1], keys[6].Public(), big.NewInt(1))
	c.Assert(err, qt.IsNil)
	proof, err = seq.UpdateProof()
	c.Assert(err, qt.IsNil)
	c.Assert(ledger.Update(ctx, testProof(), proof.TxRoot, proof.OldRoot, proof.NewRoot), qt.IsNil)
	_, err = seq.Restart()
	c.Assert(err, qt.IsNil)

	// a deposit that keeps the height leaves the root alone
	k := eddsa.GenerateKey()
	_, err = seq.Deposit(k.Public(), big.NewInt(1))
	c.Assert(err, qt.IsNil)
	c.Assert(ledger.Deposit(ctx, k.Public(), big.NewInt(1)), qt.IsNil)
	root, err = seq.ProcessPendingDeposits()
	c.Assert(err, qt.IsNil)
	c.Assert(ledger.ProcessPendingDeposits(ctx), qt.IsNil)
	c.Assert(ledger.Root().Cmp(root), qt.Equals, 0)
	c.Assert(root.Cmp(proof.NewRoot), qt.Equals, 0)
}
