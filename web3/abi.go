// Package web3 talks to the settlement ledger of the rollup: it packs the
// rollup contract calls and provides an RPC backed ledger and an in-process
// mock with the same contract semantics.
package web3

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/zk-rollup-sequencer/crypto/eddsa"
	"github.com/vocdoni/zk-rollup-sequencer/types"
)

const (
	MethodDeposit                = "deposit"
	MethodProcessPendingDeposits = "processPendingDeposits"
	MethodUpdate                 = "update"
	MethodWithdraw               = "withdraw"
)

// RollupABIJSON is the interface of the rollup contract used by the
// sequencer.
const RollupABIJSON = `[
  {"type":"function","name":"deposit","stateMutability":"nonpayable","outputs":[],
   "inputs":[{"name":"pubkey","type":"uint256[2]"},{"name":"amount","type":"uint256"}]},
  {"type":"function","name":"processPendingDeposits","stateMutability":"nonpayable","outputs":[],"inputs":[]},
  {"type":"function","name":"update","stateMutability":"nonpayable","outputs":[],
   "inputs":[{"name":"a","type":"uint256[2]"},{"name":"b","type":"uint256[2][2]"},{"name":"c","type":"uint256[2]"},
             {"name":"txRoot","type":"uint256"},{"name":"oldRoot","type":"uint256"},{"name":"newRoot","type":"uint256"}]},
  {"type":"function","name":"withdraw","stateMutability":"nonpayable","outputs":[],
   "inputs":[{"name":"a","type":"uint256[2]"},{"name":"b","type":"uint256[2][2]"},{"name":"c","type":"uint256[2]"},
             {"name":"recipient","type":"address"},{"name":"amount","type":"uint256"},
             {"name":"tx","type":"uint256"},{"name":"txRoot","type":"uint256"}]}
]`

// RollupABI is the parsed RollupABIJSON.
var RollupABI = mustParseABI(RollupABIJSON)

func mustParseABI(data string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(data))
	if err != nil {
		panic(fmt.Sprintf("invalid rollup ABI: %v", err))
	}
	return parsed
}

// Groth16Proof is a Groth16 proof in the layout the verifier contract
// expects.
type Groth16Proof struct {
	A [2]*big.Int
	B [2][2]*big.Int
	C [2]*big.Int
}

type groth16ProofJSON struct {
	A [2]*types.BigInt    `json:"a"`
	B [2][2]*types.BigInt `json:"b"`
	C [2]*types.BigInt    `json:"c"`
}

// MarshalJSON encodes the proof with decimal string coordinates.
func (p Groth16Proof) MarshalJSON() ([]byte, error) {
	return json.Marshal(groth16ProofJSON{
		A: [2]*types.BigInt{types.FromBig(p.A[0]), types.FromBig(p.A[1])},
		B: [2][2]*types.BigInt{
			{types.FromBig(p.B[0][0]), types.FromBig(p.B[0][1])},
			{types.FromBig(p.B[1][0]), types.FromBig(p.B[1][1])},
		},
		C: [2]*types.BigInt{types.FromBig(p.C[0]), types.FromBig(p.C[1])},
	})
}

// UnmarshalJSON decodes a proof encoded by MarshalJSON.
func (p *Groth16Proof) UnmarshalJSON(data []byte) error {
	var pj groth16ProofJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return err
	}
	for i := 0; i < 2; i++ {
		p.A[i], p.C[i] = pj.A[i].MathBigInt(), pj.C[i].MathBigInt()
		for j := 0; j < 2; j++ {
			p.B[i][j] = pj.B[i][j].MathBigInt()
		}
	}
	if !p.complete() {
		return fmt.Errorf("incomplete proof")
	}
	return nil
}

// snarkJSProof is the proof.json document produced by snarkjs.
type snarkJSProof struct {
	PiA []*types.BigInt   `json:"pi_a"`
	PiB [][]*types.BigInt `json:"pi_b"`
	PiC []*types.BigInt   `json:"pi_c"`
}

// ParseSnarkJSProof decodes a snarkjs proof. The coordinates of each element
// of pi_b are swapped, as the pairing precompile expects them.
func ParseSnarkJSProof(data []byte) (*Groth16Proof, error) {
	var sp snarkJSProof
	if err := json.Unmarshal(data, &sp); err != nil {
		return nil, fmt.Errorf("decode snarkjs proof: %w", err)
	}
	if len(sp.PiA) < 2 || len(sp.PiB) < 2 || len(sp.PiB[0]) < 2 || len(sp.PiB[1]) < 2 || len(sp.PiC) < 2 {
		return nil, fmt.Errorf("incomplete snarkjs proof")
	}
	return &Groth16Proof{
		A: [2]*big.Int{sp.PiA[0].MathBigInt(), sp.PiA[1].MathBigInt()},
		B: [2][2]*big.Int{
			{sp.PiB[0][1].MathBigInt(), sp.PiB[0][0].MathBigInt()},
			{sp.PiB[1][1].MathBigInt(), sp.PiB[1][0].MathBigInt()},
		},
		C: [2]*big.Int{sp.PiC[0].MathBigInt(), sp.PiC[1].MathBigInt()},
	}, nil
}

func (p *Groth16Proof) complete() bool {
	if p == nil {
		return false
	}
	for _, v := range []*big.Int{p.A[0], p.A[1], p.B[0][0], p.B[0][1], p.B[1][0], p.B[1][1], p.C[0], p.C[1]} {
		if v == nil {
			return false
		}
	}
	return true
}

// PackDeposit returns the calldata of deposit(pubkey, amount).
func PackDeposit(pk eddsa.PublicKey, amount *big.Int) ([]byte, error) {
	return RollupABI.Pack(MethodDeposit, [2]*big.Int{pk.X, pk.Y}, amount)
}

// PackProcessPendingDeposits returns the calldata of processPendingDeposits().
func PackProcessPendingDeposits() ([]byte, error) {
	return RollupABI.Pack(MethodProcessPendingDeposits)
}

// PackUpdate returns the calldata of update(a, b, c, txRoot, oldRoot, newRoot).
func PackUpdate(proof *Groth16Proof, txRoot, oldRoot, newRoot *big.Int) ([]byte, error) {
	if !proof.complete() {
		return nil, fmt.Errorf("incomplete proof")
	}
	return RollupABI.Pack(MethodUpdate, proof.A, proof.B, proof.C, txRoot, oldRoot, newRoot)
}

// PackWithdraw returns the calldata of
// withdraw(a, b, c, recipient, amount, tx, txRoot).
func PackWithdraw(proof *Groth16Proof, recipient common.Address, amount, tx, txRoot *big.Int) ([]byte, error) {
	if !proof.complete() {
		return nil, fmt.Errorf("incomplete proof")
	}
	return RollupABI.Pack(MethodWithdraw, proof.A, proof.B, proof.C, recipient, amount, tx, txRoot)
}
