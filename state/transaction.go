package state

import (
	"math/big"

	"github.com/vocdoni/zk-rollup-sequencer/crypto/eddsa"
)

// Transaction is an applied transfer as the batch circuit needs it: both
// balances are the values before the transfer.
type Transaction struct {
	Hash       *big.Int
	Signature  *eddsa.Signature
	Src        eddsa.PublicKey
	SrcBalance *big.Int
	Dst        eddsa.PublicKey
	DstBalance *big.Int
	Amount     *big.Int
}
