//nolint:lll
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/vocdoni/zk-rollup-sequencer/merkle"
	"github.com/vocdoni/zk-rollup-sequencer/sequencer"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the user's fault,
// and they return HTTP Status 400, 404 or 409, whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500, 502 or 503, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after the current last 4XXX or 5XXX.
// There's no correlation between Code and HTTP Status.
var (
	ErrResourceNotFound         = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody            = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrInvalidSignature         = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid signature")}
	ErrMalformedFieldElement    = Error{Code: 40006, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed field element")}
	ErrUnknownAccount           = Error{Code: 40007, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("unknown account")}
	ErrInsufficientBalance      = Error{Code: 40008, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("insufficient balance")}
	ErrInvalidAmount            = Error{Code: 40009, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid amount")}
	ErrInvalidPublicKey         = Error{Code: 40010, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid public key")}
	ErrSelfTransfer             = Error{Code: 40011, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("self transfer")}
	ErrAccountOutsideActiveTree = Error{Code: 40012, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("account outside the active tree")}
	ErrTxHashMismatch           = Error{Code: 40013, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("transaction hash mismatch")}
	ErrBatchNotOpen             = Error{Code: 40014, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("batch not open")}
	ErrBatchFull                = Error{Code: 40015, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("batch full")}
	ErrBatchNotFull             = Error{Code: 40016, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("batch not full")}
	ErrBatchNotProved           = Error{Code: 40017, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("batch not proved")}
	ErrBatchInProgress          = Error{Code: 40018, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("batch in progress")}
	ErrUnknownBatch             = Error{Code: 40019, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("unknown batch")}
	ErrUnknownTransaction       = Error{Code: 40020, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("unknown transaction")}
	ErrAccountTreeFull          = Error{Code: 40021, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("account tree full")}
	ErrMissingProof             = Error{Code: 40022, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("missing batch proof")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
	ErrSequencerHalted            = Error{Code: 50003, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("sequencer halted")}
	ErrLedgerFailed               = Error{Code: 50004, HTTPstatus: http.StatusBadGateway, Err: fmt.Errorf("settlement ledger call failed")}
)

// sequencerErrors maps the sequencer errors to API errors, in match order.
var sequencerErrors = []struct {
	err    error
	apiErr Error
}{
	{sequencer.ErrInvariantViolation, ErrSequencerHalted},
	{sequencer.ErrBatchNotOpen, ErrBatchNotOpen},
	{sequencer.ErrBatchFull, ErrBatchFull},
	{sequencer.ErrBatchNotFull, ErrBatchNotFull},
	{sequencer.ErrBatchNotProved, ErrBatchNotProved},
	{sequencer.ErrBatchInProgress, ErrBatchInProgress},
	{sequencer.ErrUnknownAccount, ErrUnknownAccount},
	{sequencer.ErrInsufficientBalance, ErrInsufficientBalance},
	{sequencer.ErrInvalidAmount, ErrInvalidAmount},
	{sequencer.ErrInvalidPublicKey, ErrInvalidPublicKey},
	{sequencer.ErrSelfTransfer, ErrSelfTransfer},
	{sequencer.ErrAccountOutsideActiveTree, ErrAccountOutsideActiveTree},
	{sequencer.ErrInvalidSignature, ErrInvalidSignature},
	{sequencer.ErrTxHashMismatch, ErrTxHashMismatch},
	{sequencer.ErrUnknownBatch, ErrUnknownBatch},
	{sequencer.ErrUnknownTransaction, ErrUnknownTransaction},
	{merkle.ErrCapacityExceeded, ErrAccountTreeFull},
}

// sequencerError returns the API error matching err.
func sequencerError(err error) Error {
	for _, m := range sequencerErrors {
		if errors.Is(err, m.err) {
			return m.apiErr.WithErr(err)
		}
	}
	return ErrGenericInternalServerError.WithErr(err)
}
