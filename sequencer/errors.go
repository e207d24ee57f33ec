package sequencer

import (
	"errors"

	"github.com/vocdoni/zk-rollup-sequencer/state"
)

var (
	ErrBatchNotOpen             = errors.New("batch not open, pending deposits must be processed first")
	ErrBatchFull                = errors.New("batch is full")
	ErrBatchNotFull             = errors.New("batch is not full")
	ErrBatchNotProved           = errors.New("batch update proof not produced")
	ErrBatchInProgress          = errors.New("batch in progress")
	ErrUnknownAccount           = errors.New("unknown account")
	ErrInsufficientBalance      = errors.New("insufficient balance")
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrInvalidPublicKey         = errors.New("invalid public key")
	ErrSelfTransfer             = errors.New("source and destination are the same account")
	ErrAccountOutsideActiveTree = errors.New("account outside the active tree")
	ErrInvalidSignature         = errors.New("invalid signature")
	ErrTxHashMismatch           = errors.New("transaction hash mismatch")
	ErrUnknownBatch             = state.ErrUnknownBatch
	ErrUnknownTransaction       = state.ErrUnknownTransaction

	// ErrInvariantViolation means the trees and the batch evidence diverged.
	// The sequencer refuses every operation after raising it.
	ErrInvariantViolation = errors.New("invariant violation")
)
