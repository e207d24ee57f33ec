package service

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/zk-rollup-sequencer/api"
	"github.com/vocdoni/zk-rollup-sequencer/api/client"
	"github.com/vocdoni/zk-rollup-sequencer/crypto/eddsa"
	"github.com/vocdoni/zk-rollup-sequencer/sequencer"
	"github.com/vocdoni/zk-rollup-sequencer/types"
)

func TestBatchMonitor(t *testing.T) {
	c := qt.New(t)
	seq := newTestSequencer(c, 1)
	a, err := api.New(&api.APIConfig{Host: "127.0.0.1", Port: 0, Sequencer: seq})
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = a.Shutdown(ctx)
	})
	srv := httptest.NewServer(a.Router())
	c.Cleanup(srv.Close)
	cli, err := client.New(srv.URL)
	c.Assert(err, qt.IsNil)

	alice := eddsa.GenerateKey()
	_, err = cli.Deposit(alice.Public(), big.NewInt(10))
	c.Assert(err, qt.IsNil)
	_, err = cli.ProcessDeposits()
	c.Assert(err, qt.IsNil)

	bm := NewBatchMonitor(cli, c.TempDir(), 20*time.Millisecond)

	// nothing to export while the batch is open
	c.Assert(bm.poll(), qt.IsNil)
	_, err = os.Stat(bm.InputsPath(0))
	c.Assert(os.IsNotExist(err), qt.IsTrue)

	c.Assert(bm.Start(context.Background()), qt.IsNil)
	defer bm.Stop()
	c.Assert(bm.Start(context.Background()), qt.ErrorMatches, "service already running")

	for _, amount := range []int64{1, 2} {
		_, err := cli.Transfer(withdrawal(c, seq, alice, amount))
		c.Assert(err, qt.IsNil)
	}

	var data []byte
	for i := 0; i < 100; i++ {
		if data, err = os.ReadFile(bm.InputsPath(0)); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	c.Assert(err, qt.IsNil)
	inputs := map[string]any{}
	c.Assert(json.Unmarshal(data, &inputs), qt.IsNil)
	c.Assert(inputs["nLevelsUsed"], qt.Equals, "1")
	c.Assert(inputs["transfer_amount"], qt.DeepEquals, []any{"1", "2"})

	st, err := cli.State()
	c.Assert(err, qt.IsNil)
	c.Assert(st.Phase, qt.Equals, "batchProved")
}

// withdrawal builds the transfer of amount from key to the null account.
func withdrawal(c *qt.C, seq *sequencer.Sequencer, key eddsa.PrivateKey, amount int64) *api.Transfer {
	txHash, err := seq.HashTransaction(key.Public(), eddsa.NullPublicKey(), big.NewInt(amount))
	c.Assert(err, qt.IsNil)
	sig, err := eddsa.PoseidonSigner{}.Sign(key, txHash)
	c.Assert(err, qt.IsNil)
	return &api.Transfer{
		Signature: sig,
		TxHash:    types.FromBig(txHash),
		PubKeySrc: key.Public(),
		PubKeyDst: eddsa.NullPublicKey(),
		Amount:    types.NewInt(amount),
	}
}
