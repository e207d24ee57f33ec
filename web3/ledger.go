package web3

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/zk-rollup-sequencer/crypto/eddsa"
)

var (
	// ErrRootMismatch is returned by update when the old root is not the
	// current ledger root.
	ErrRootMismatch = errors.New("old root does not match the ledger root")
	// ErrUnknownTxRoot is returned by withdraw for a transaction root the
	// ledger never accepted.
	ErrUnknownTxRoot = errors.New("transaction root not accepted")
	// ErrAlreadyWithdrawn is returned when a transaction is withdrawn twice.
	ErrAlreadyWithdrawn = errors.New("transaction already withdrawn")
)

// Ledger is the settlement side of the rollup. Deposits and the account
// root transitions proved by the sequencer are published there, and
// withdrawals of committed transactions are paid out from there.
type Ledger interface {
	Deposit(ctx context.Context, pk eddsa.PublicKey, amount *big.Int) error
	ProcessPendingDeposits(ctx context.Context) error
	Update(ctx context.Context, proof *Groth16Proof, txRoot, oldRoot, newRoot *big.Int) error
	Withdraw(ctx context.Context, proof *Groth16Proof, recipient common.Address, amount, tx, txRoot *big.Int) error
}
