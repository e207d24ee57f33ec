package api

const (
	// PingEndpoint is the endpoint for checking the API status
	PingEndpoint = "/ping"
	// StateEndpoint is the endpoint to get the sequencer status
	StateEndpoint = "/state"
	// DepositsEndpoint is the endpoint for depositing a new account
	DepositsEndpoint = "/deposits"
	// ProcessDepositsEndpoint opens the batch with the deposited accounts
	ProcessDepositsEndpoint = "/deposits/process"
	// AccountEndpoint is the endpoint to get an account by public key
	AccountXURLParam = "x"
	AccountYURLParam = "y"
	AccountEndpoint  = "/accounts/{" + AccountXURLParam + "}/{" + AccountYURLParam + "}"
	// TransfersEndpoint is the endpoint for submitting a signed transfer
	TransfersEndpoint = "/transfers"
	// BatchProofEndpoint returns the batch circuit inputs of the full batch
	BatchProofEndpoint = "/batch/proof"
	// BatchCommitEndpoint commits the proved batch and opens the next one
	BatchCommitEndpoint = "/batch/commit"
	// BatchesEndpoint lists the committed batches
	BatchesEndpoint = "/batches"
	// BatchEndpoint is the endpoint to get a committed batch by root
	TxRootURLParam = "txRoot"
	BatchEndpoint  = "/batches/{" + TxRootURLParam + "}"
	// WithdrawalEndpoint returns the inclusion proof of a committed transaction
	TxHashURLParam     = "txHash"
	WithdrawalEndpoint = "/withdrawals/{" + TxRootURLParam + "}/{" + TxHashURLParam + "}"
)
