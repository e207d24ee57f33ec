package api

import (
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/zk-rollup-sequencer/circuits"
	"github.com/vocdoni/zk-rollup-sequencer/crypto/eddsa"
	"github.com/vocdoni/zk-rollup-sequencer/log"
	"github.com/vocdoni/zk-rollup-sequencer/sequencer"
	"github.com/vocdoni/zk-rollup-sequencer/types"
	"github.com/vocdoni/zk-rollup-sequencer/web3"
)

// state returns the sequencer status.
// GET /state
func (a *API) state(w http.ResponseWriter, r *http.Request) {
	a.seqLock.Lock()
	defer a.seqLock.Unlock()
	resp := &State{
		Phase:               a.seq.Phase().String(),
		Batch:               a.seq.BatchNumber(),
		Accounts:            a.seq.AccountCount(),
		ActiveHeight:        a.seq.ActiveHeight(),
		TxLevels:            a.seq.TxLevels(),
		PendingTransactions: a.seq.PendingTransactions(),
		TotalBalance:        types.FromBig(a.seq.TotalBalance()),
		Hasher:              a.seq.Hasher().Name(),
	}
	if err := a.seq.Halted(); err != nil {
		resp.Halted = err.Error()
	}
	root, err := a.seq.AccountRoot()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	resp.AccountRoot = types.FromBig(root)
	httpWriteJSON(w, resp)
}

// deposit registers a new account and mirrors it to the settlement ledger.
// POST /deposits
func (a *API) deposit(w http.ResponseWriter, r *http.Request) {
	req := &Deposit{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	if req.Balance == nil {
		ErrInvalidAmount.With("missing balance").Write(w)
		return
	}
	a.seqLock.Lock()
	defer a.seqLock.Unlock()
	position, err := a.seq.Deposit(req.PubKey, req.Balance.MathBigInt())
	if err != nil {
		sequencerError(err).Write(w)
		return
	}
	if a.ledger != nil {
		if err := a.ledger.Deposit(r.Context(), req.PubKey, req.Balance.MathBigInt()); err != nil {
			log.Errorw(err, "deposit accepted but not published", "position", position)
			ErrLedgerFailed.WithErr(err).Write(w)
			return
		}
	}
	httpWriteJSON(w, &DepositResponse{Position: position})
}

// processDeposits opens the batch with the deposited accounts.
// POST /deposits/process
func (a *API) processDeposits(w http.ResponseWriter, r *http.Request) {
	a.seqLock.Lock()
	defer a.seqLock.Unlock()
	root, err := a.seq.ProcessPendingDeposits()
	if err != nil {
		sequencerError(err).Write(w)
		return
	}
	if a.ledger != nil {
		if err := a.ledger.ProcessPendingDeposits(r.Context()); err != nil {
			ErrLedgerFailed.WithErr(err).Write(w)
			return
		}
	}
	httpWriteJSON(w, &ProcessDepositsResponse{
		Root:         types.FromBig(root),
		ActiveHeight: a.seq.ActiveHeight(),
	})
}

// account returns an account and its full depth proof.
// GET /accounts/{x}/{y}
func (a *API) account(w http.ResponseWriter, r *http.Request) {
	x, err := fieldParam(r, AccountXURLParam)
	if err != nil {
		ErrMalformedFieldElement.WithErr(err).Write(w)
		return
	}
	y, err := fieldParam(r, AccountYURLParam)
	if err != nil {
		ErrMalformedFieldElement.WithErr(err).Write(w)
		return
	}
	pk := eddsa.PublicKey{X: x, Y: y}
	a.seqLock.Lock()
	defer a.seqLock.Unlock()
	acc, err := a.seq.Account(pk)
	if err != nil {
		sequencerError(err).Write(w)
		return
	}
	proof, err := a.seq.AccountProof(pk)
	if err != nil {
		sequencerError(err).Write(w)
		return
	}
	httpWriteJSON(w, &Account{
		PubKey:   acc.PublicKey,
		Position: acc.Position,
		Balance:  types.FromBig(acc.Balance),
		Siblings: types.BigIntSlice(proof.Siblings),
		SideBits: proof.SideBits,
	})
}

// transfer applies a signed transfer to the open batch.
// POST /transfers
func (a *API) transfer(w http.ResponseWriter, r *http.Request) {
	req := &Transfer{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	if req.Signature == nil {
		ErrInvalidSignature.With("missing signature").Write(w)
		return
	}
	if req.TxHash == nil || req.Amount == nil {
		ErrMalformedBody.With("missing txHash or amount").Write(w)
		return
	}
	a.seqLock.Lock()
	defer a.seqLock.Unlock()
	position, err := a.seq.Transfer(req.Signature, req.TxHash.MathBigInt(),
		req.PubKeySrc, req.PubKeyDst, req.Amount.MathBigInt())
	if err != nil {
		sequencerError(err).Write(w)
		return
	}
	httpWriteJSON(w, &TransferResponse{
		Position: position,
		Pending:  a.seq.PendingTransactions(),
		Full:     a.seq.Phase() == sequencer.BatchFull,
	})
}

// batchProof returns the circuit inputs of the full batch. The batch then
// waits for its proof to be committed.
// GET /batch/proof
func (a *API) batchProof(w http.ResponseWriter, r *http.Request) {
	a.seqLock.Lock()
	defer a.seqLock.Unlock()
	proof, err := a.seq.UpdateProof()
	if err != nil {
		sequencerError(err).Write(w)
		return
	}
	inputs, err := circuits.BatchInputs(proof)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, inputs)
}

// commitBatch publishes the proved batch to the settlement ledger, if any,
// and opens the next batch.
// POST /batch/commit
func (a *API) commitBatch(w http.ResponseWriter, r *http.Request) {
	req := &Commit{}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, req); err != nil {
			ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
			return
		}
	}
	proof := req.Proof
	if proof == nil && len(req.SnarkJSProof) > 0 {
		if proof, err = web3.ParseSnarkJSProof(req.SnarkJSProof); err != nil {
			ErrMalformedBody.WithErr(err).Write(w)
			return
		}
	}

	a.seqLock.Lock()
	defer a.seqLock.Unlock()
	number := a.seq.BatchNumber()
	if a.ledger != nil && a.seq.Phase() == sequencer.BatchProved {
		if proof == nil {
			ErrMissingProof.Write(w)
			return
		}
		update, err := a.seq.UpdateProof()
		if err != nil {
			sequencerError(err).Write(w)
			return
		}
		if err := a.ledger.Update(r.Context(), proof, update.TxRoot, update.OldRoot, update.NewRoot); err != nil {
			ErrLedgerFailed.WithErr(err).Write(w)
			return
		}
	}
	chain := a.seq.RootChain()
	txRoot, err := a.seq.Restart()
	if err != nil {
		sequencerError(err).Write(w)
		return
	}
	httpWriteJSON(w, &CommitResponse{
		Batch:   number,
		TxRoot:  types.FromBig(txRoot),
		OldRoot: types.FromBig(chain[0]),
		NewRoot: types.FromBig(chain[len(chain)-1]),
	})
}

// batches lists the committed batches.
// GET /batches
func (a *API) batches(w http.ResponseWriter, r *http.Request) {
	a.seqLock.Lock()
	defer a.seqLock.Unlock()
	list, err := a.seq.CommittedBatches()
	if err != nil {
		sequencerError(err).Write(w)
		return
	}
	httpWriteJSON(w, &Batches{Batches: list})
}

// batch returns the committed batch with the given transaction root.
// GET /batches/{txRoot}
func (a *API) batch(w http.ResponseWriter, r *http.Request) {
	txRoot, err := fieldParam(r, TxRootURLParam)
	if err != nil {
		ErrMalformedFieldElement.WithErr(err).Write(w)
		return
	}
	a.seqLock.Lock()
	defer a.seqLock.Unlock()
	b, err := a.seq.CommittedBatch(txRoot)
	if err != nil {
		sequencerError(err).Write(w)
		return
	}
	httpWriteJSON(w, b)
}

// withdrawal returns the inclusion proof of a committed transaction.
// GET /withdrawals/{txRoot}/{txHash}
func (a *API) withdrawal(w http.ResponseWriter, r *http.Request) {
	txRoot, err := fieldParam(r, TxRootURLParam)
	if err != nil {
		ErrMalformedFieldElement.WithErr(err).Write(w)
		return
	}
	txHash, err := fieldParam(r, TxHashURLParam)
	if err != nil {
		ErrMalformedFieldElement.WithErr(err).Write(w)
		return
	}
	a.seqLock.Lock()
	defer a.seqLock.Unlock()
	wp, err := a.seq.WithdrawProof(txHash, txRoot)
	if err != nil {
		sequencerError(err).Write(w)
		return
	}
	httpWriteJSON(w, &Withdrawal{
		TxRoot:   types.FromBig(wp.TxRoot),
		TxHash:   types.FromBig(wp.TxHash),
		Position: wp.Position,
		Siblings: types.BigIntSlice(wp.Siblings),
		SideBits: wp.SideBits,
	})
}

// fieldParam parses the decimal or 0x-prefixed URL parameter name.
func fieldParam(r *http.Request, name string) (*big.Int, error) {
	s := chi.URLParam(r, name)
	if s == "" {
		return nil, errors.New("missing " + name)
	}
	v, err := new(types.BigInt).SetString(s)
	if err != nil {
		return nil, err
	}
	return v.MathBigInt(), nil
}
