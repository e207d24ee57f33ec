package api

import (
	"encoding/json"

	"github.com/vocdoni/zk-rollup-sequencer/crypto/eddsa"
	"github.com/vocdoni/zk-rollup-sequencer/storage"
	"github.com/vocdoni/zk-rollup-sequencer/types"
	"github.com/vocdoni/zk-rollup-sequencer/web3"
)

// State is the response to a sequencer status request.
type State struct {
	Phase               string        `json:"phase"`
	Halted              string        `json:"halted,omitempty"`
	Batch               uint64        `json:"batch"`
	Accounts            int           `json:"accounts"`
	ActiveHeight        int           `json:"activeHeight"`
	TxLevels            int           `json:"txLevels"`
	AccountRoot         *types.BigInt `json:"accountRoot"`
	PendingTransactions int           `json:"pendingTransactions"`
	TotalBalance        *types.BigInt `json:"totalBalance"`
	Hasher              string        `json:"hasher"`
}

// Deposit is the request to register a new account with its balance.
type Deposit struct {
	PubKey  eddsa.PublicKey `json:"pubKey"`
	Balance *types.BigInt   `json:"balance"`
}

// DepositResponse is the response to a deposit request.
type DepositResponse struct {
	Position uint64 `json:"position"`
}

// ProcessDepositsResponse is the response to a process deposits request.
type ProcessDepositsResponse struct {
	Root         *types.BigInt `json:"root"`
	ActiveHeight int           `json:"activeHeight"`
}

// Account is the response to an account request.
type Account struct {
	PubKey   eddsa.PublicKey `json:"pubKey"`
	Position uint64          `json:"position"`
	Balance  *types.BigInt   `json:"balance"`
	Siblings []*types.BigInt `json:"siblings"`
	SideBits []bool          `json:"sideBits"`
}

// Transfer is a signed transfer between two deposited accounts.
type Transfer struct {
	Signature *eddsa.Signature `json:"signature"`
	TxHash    *types.BigInt    `json:"txHash"`
	PubKeySrc eddsa.PublicKey  `json:"pubKeySrc"`
	PubKeyDst eddsa.PublicKey  `json:"pubKeyDst"`
	Amount    *types.BigInt    `json:"amount"`
}

// TransferResponse is the response to an accepted transfer.
type TransferResponse struct {
	Position uint64 `json:"position"`
	Pending  int    `json:"pending"`
	Full     bool   `json:"full"`
}

// Commit is the optional body of a batch commit request. When the sequencer
// publishes to a settlement ledger one of the two proof encodings is
// required.
type Commit struct {
	Proof        *web3.Groth16Proof `json:"proof,omitempty"`
	SnarkJSProof json.RawMessage    `json:"snarkjsProof,omitempty"`
}

// CommitResponse is the response to a batch commit request.
type CommitResponse struct {
	Batch   uint64        `json:"batch"`
	TxRoot  *types.BigInt `json:"txRoot"`
	OldRoot *types.BigInt `json:"oldRoot"`
	NewRoot *types.BigInt `json:"newRoot"`
}

// Batches is the list of committed batches.
type Batches struct {
	Batches []*storage.Batch `json:"batches"`
}

// Withdrawal is the inclusion proof of a committed transaction.
type Withdrawal struct {
	TxRoot   *types.BigInt   `json:"txRoot"`
	TxHash   *types.BigInt   `json:"txHash"`
	Position uint64          `json:"position"`
	Siblings []*types.BigInt `json:"siblings"`
	SideBits []bool          `json:"sideBits"`
}
