package circuits

import (
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/zk-rollup-sequencer/crypto/eddsa"
	"github.com/vocdoni/zk-rollup-sequencer/crypto/hash/poseidon"
	"github.com/vocdoni/zk-rollup-sequencer/sequencer"
)

func TestBatchAndWithdrawInputs(t *testing.T) {
	c := qt.New(t)
	seq, err := sequencer.New(&sequencer.Config{
		AccountLevels: 4,
		TxLevels:      1,
		Hasher:        poseidon.Hasher{},
		Signer:        eddsa.PoseidonSigner{},
	})
	c.Assert(err, qt.IsNil)
	alice, bob := eddsa.GenerateKey(), eddsa.GenerateKey()
	_, err = seq.Deposit(alice.Public(), big.NewInt(50))
	c.Assert(err, qt.IsNil)
	_, err = seq.Deposit(bob.Public(), big.NewInt(10))
	c.Assert(err, qt.IsNil)
	_, err = seq.Deposit(eddsa.GenerateKey().Public(), big.NewInt(0))
	c.Assert(err, qt.IsNil)
	_, err = seq.ProcessPendingDeposits()
	c.Assert(err, qt.IsNil)

	_, _, _, err = seq.HashSignTransfer(alice, bob.Public(), big.NewInt(7))
	c.Assert(err, qt.IsNil)
	// a transfer to the null account is a withdrawal
	txHash, sig, _, err := seq.HashSignTransfer(bob, eddsa.NullPublicKey(), big.NewInt(4))
	c.Assert(err, qt.IsNil)

	proof, err := seq.UpdateProof()
	c.Assert(err, qt.IsNil)
	inputs, err := BatchInputs(proof)
	c.Assert(err, qt.IsNil)
	data, err := json.Marshal(inputs)
	c.Assert(err, qt.IsNil)

	var doc struct {
		TxRoot      string     `json:"txRoot"`
		SiblingsTx  [][]string `json:"siblingsTx"`
		IsLeftTx    [][]string `json:"isLeftTx"`
		BalanceSrc  []string   `json:"balance_src"`
		BalanceDst  []string   `json:"balance_dst"`
		Amounts     []string   `json:"transfer_amount"`
		PubkeyDst   [][]string `json:"pubkey_dst"`
		Roots       []string   `json:"roots"`
		SiblingsSrc [][]string `json:"siblingsSrc"`
		NLevelsUsed string     `json:"nLevelsUsed"`
	}
	c.Assert(json.Unmarshal(data, &doc), qt.IsNil)
	c.Assert(doc.TxRoot, qt.Equals, proof.TxRoot.String())
	c.Assert(doc.SiblingsTx, qt.HasLen, 2)
	c.Assert(doc.IsLeftTx, qt.DeepEquals, [][]string{{"1"}, {"0"}})
	c.Assert(doc.BalanceSrc, qt.DeepEquals, []string{"50", "17"})
	c.Assert(doc.BalanceDst, qt.DeepEquals, []string{"10", "0"})
	c.Assert(doc.Amounts, qt.DeepEquals, []string{"7", "4"})
	c.Assert(doc.PubkeyDst[1], qt.DeepEquals, []string{"0", "0"})
	c.Assert(doc.Roots, qt.HasLen, 5)
	c.Assert(doc.SiblingsSrc[0], qt.HasLen, 2)
	c.Assert(doc.NLevelsUsed, qt.Equals, "2")

	txRoot, err := seq.Restart()
	c.Assert(err, qt.IsNil)
	wp, err := seq.WithdrawProof(txHash, txRoot)
	c.Assert(err, qt.IsNil)
	winputs, err := WithdrawInputs(wp, sig, bob.Public(), eddsa.NullPublicKey(), big.NewInt(4))
	c.Assert(err, qt.IsNil)
	c.Assert(winputs["tx"], qt.Equals, txHash.String())
	c.Assert(winputs["isLeftTx"], qt.DeepEquals, []string{"0"})
	c.Assert(winputs["transfer_amount"], qt.Equals, "4")

	_, err = WithdrawInputs(wp, nil, bob.Public(), eddsa.NullPublicKey(), big.NewInt(4))
	c.Assert(err, qt.IsNotNil)

	path := filepath.Join(t.TempDir(), "withdraw.json")
	c.Assert(StoreInputs(winputs, path), qt.IsNil)
	stored, err := os.ReadFile(path)
	c.Assert(err, qt.IsNil)
	c.Assert(string(stored), qt.Contains, `"txRoot": "`+txRoot.String()+`"`)
}

func TestHelpers(t *testing.T) {
	c := qt.New(t)
	c.Assert(BigIntArrayToStringArray([]*big.Int{big.NewInt(3)}, 3), qt.DeepEquals, []string{"3", "0", "0"})
	c.Assert(BoolArrayToStringArray([]bool{true, false}), qt.DeepEquals, []string{"1", "0"})
	_, err := BatchInputs(nil)
	c.Assert(err, qt.ErrorMatches, "empty update proof")
}
