package client

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"

	"github.com/vocdoni/zk-rollup-sequencer/api"
	"github.com/vocdoni/zk-rollup-sequencer/crypto/eddsa"
	"github.com/vocdoni/zk-rollup-sequencer/storage"
	"github.com/vocdoni/zk-rollup-sequencer/types"
)

// Error is an error response of the API.
type Error struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %d (code %d: %s)", errCodeNot200, e.Status, e.Code, e.Message)
}

// call performs the request and decodes a successful response into out,
// which can be nil. Non 200 responses are returned as *Error.
func (c *HTTPclient) call(method string, body, out any, urlPath ...string) error {
	data, status, err := c.Request(method, body, urlPath...)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		apiErr := &Error{Status: status}
		if err := json.Unmarshal(data, apiErr); err != nil {
			apiErr.Message = string(data)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// State returns the sequencer status.
func (c *HTTPclient) State() (*api.State, error) {
	st := &api.State{}
	if err := c.call(http.MethodGet, nil, st, api.StateEndpoint); err != nil {
		return nil, err
	}
	return st, nil
}

// Deposit registers the account pk with balance and returns its position.
func (c *HTTPclient) Deposit(pk eddsa.PublicKey, balance *big.Int) (uint64, error) {
	resp := &api.DepositResponse{}
	req := &api.Deposit{PubKey: pk, Balance: types.FromBig(balance)}
	if err := c.call(http.MethodPost, req, resp, api.DepositsEndpoint); err != nil {
		return 0, err
	}
	return resp.Position, nil
}

// ProcessDeposits opens the batch and returns the starting account root.
func (c *HTTPclient) ProcessDeposits() (*api.ProcessDepositsResponse, error) {
	resp := &api.ProcessDepositsResponse{}
	if err := c.call(http.MethodPost, nil, resp, api.ProcessDepositsEndpoint); err != nil {
		return nil, err
	}
	return resp, nil
}

// Account returns the account of pk.
func (c *HTTPclient) Account(pk eddsa.PublicKey) (*api.Account, error) {
	acc := &api.Account{}
	if err := c.call(http.MethodGet, nil, acc, "accounts", pk.X.String(), pk.Y.String()); err != nil {
		return nil, err
	}
	return acc, nil
}

// Transfer submits a signed transfer.
func (c *HTTPclient) Transfer(t *api.Transfer) (*api.TransferResponse, error) {
	resp := &api.TransferResponse{}
	if err := c.call(http.MethodPost, t, resp, api.TransfersEndpoint); err != nil {
		return nil, err
	}
	return resp, nil
}

// BatchInputs returns the circuit inputs of the full batch.
func (c *HTTPclient) BatchInputs() (map[string]any, error) {
	inputs := map[string]any{}
	if err := c.call(http.MethodGet, nil, &inputs, api.BatchProofEndpoint); err != nil {
		return nil, err
	}
	return inputs, nil
}

// CommitBatch commits the proved batch. The body can be nil when the
// sequencer has no settlement ledger.
func (c *HTTPclient) CommitBatch(commit *api.Commit) (*api.CommitResponse, error) {
	resp := &api.CommitResponse{}
	var body any
	if commit != nil {
		body = commit
	}
	if err := c.call(http.MethodPost, body, resp, api.BatchCommitEndpoint); err != nil {
		return nil, err
	}
	return resp, nil
}

// Batches lists the committed batches.
func (c *HTTPclient) Batches() ([]*storage.Batch, error) {
	resp := &api.Batches{}
	if err := c.call(http.MethodGet, nil, resp, api.BatchesEndpoint); err != nil {
		return nil, err
	}
	return resp.Batches, nil
}

// Withdrawal returns the inclusion proof of txHash in the batch committed
// with txRoot.
func (c *HTTPclient) Withdrawal(txRoot, txHash *big.Int) (*api.Withdrawal, error) {
	wd := &api.Withdrawal{}
	if err := c.call(http.MethodGet, nil, wd, "withdrawals", txRoot.String(), txHash.String()); err != nil {
		return nil, err
	}
	return wd, nil
}
