package web3

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/vocdoni/zk-rollup-sequencer/crypto/eddsa"
	"github.com/vocdoni/zk-rollup-sequencer/log"
	"github.com/vocdoni/zk-rollup-sequencer/util"
)

const (
	// DefaultMaxWeb3ClientRetries is the number of attempts to dial the web3
	// endpoint.
	DefaultMaxWeb3ClientRetries = 5
	// DefaultGasLimit is the gas limit of every rollup transaction.
	DefaultGasLimit = 1000000
	// nonceTimeout bounds the calls needed to build the transact options.
	nonceTimeout = 10 * time.Second
)

// RollupContract is a Ledger backed by the rollup contract deployed at an
// EVM chain reachable through a web3 endpoint.
type RollupContract struct {
	address  common.Address
	cli      *ethclient.Client
	contract *bind.BoundContract
	chainID  *big.Int
	privKey  *ecdsa.PrivateKey
	from     common.Address
}

var _ Ledger = (*RollupContract)(nil)

// DialRollup connects to web3rpc and binds the rollup contract at address.
// Transactions are signed with hexPrivKey.
func DialRollup(ctx context.Context, web3rpc string, address common.Address, hexPrivKey string) (*RollupContract, error) {
	cli, err := connect(ctx, web3rpc)
	if err != nil {
		return nil, err
	}
	chainID, err := cli.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}
	privKey, err := crypto.HexToECDSA(util.TrimHex(hexPrivKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	r := &RollupContract{
		address:  address,
		cli:      cli,
		contract: bind.NewBoundContract(address, RollupABI, cli, cli, cli),
		chainID:  chainID,
		privKey:  privKey,
		from:     crypto.PubkeyToAddress(privKey.PublicKey),
	}
	log.Infow("rollup contract bound", "address", address.Hex(), "chainID", chainID.String(), "account", r.from.Hex())
	return r, nil
}

// connect returns a client for uri, retrying up to
// DefaultMaxWeb3ClientRetries times.
func connect(ctx context.Context, uri string) (client *ethclient.Client, err error) {
	for i := 0; i < DefaultMaxWeb3ClientRetries; i++ {
		if client, err = ethclient.DialContext(ctx, uri); err != nil {
			continue
		}
		return
	}
	return nil, fmt.Errorf("error dialing web3 provider uri '%s': %w", uri, err)
}

// AccountAddress returns the address of the account used to sign transactions.
func (r *RollupContract) AccountAddress() common.Address {
	return r.from
}

// Close closes the web3 client.
func (r *RollupContract) Close() {
	r.cli.Close()
}

// authTransactOpts creates the transact options with the configured key,
// the pending nonce, the suggested gas tip cap and DefaultGasLimit.
func (r *RollupContract) authTransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(r.privKey, r.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	tctx, cancel := context.WithTimeout(ctx, nonceTimeout)
	defer cancel()
	nonce, err := r.cli.PendingNonceAt(tctx, r.from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	auth.Nonce = new(big.Int).SetUint64(nonce)
	if auth.GasTipCap, err = r.cli.SuggestGasTipCap(tctx); err != nil {
		return nil, fmt.Errorf("failed to get gas tip cap: %w", err)
	}
	auth.GasLimit = DefaultGasLimit
	auth.Context = ctx
	return auth, nil
}

// transact sends a call to method and waits until it is mined.
func (r *RollupContract) transact(ctx context.Context, method string, args ...any) error {
	opts, err := r.authTransactOpts(ctx)
	if err != nil {
		return fmt.Errorf("failed to create transact options: %w", err)
	}
	tx, err := r.contract.Transact(opts, method, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	log.Debugw("rollup transaction sent", "method", method, "hash", tx.Hash().Hex(), "nonce", tx.Nonce())
	receipt, err := bind.WaitMined(ctx, r.cli, tx)
	if err != nil {
		return fmt.Errorf("%s: wait for %s: %w", method, tx.Hash().Hex(), err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return fmt.Errorf("%s: transaction %s reverted", method, tx.Hash().Hex())
	}
	return nil
}

func (r *RollupContract) Deposit(ctx context.Context, pk eddsa.PublicKey, amount *big.Int) error {
	return r.transact(ctx, MethodDeposit, [2]*big.Int{pk.X, pk.Y}, amount)
}

func (r *RollupContract) ProcessPendingDeposits(ctx context.Context) error {
	return r.transact(ctx, MethodProcessPendingDeposits)
}

func (r *RollupContract) Update(ctx context.Context, proof *Groth16Proof, txRoot, oldRoot, newRoot *big.Int) error {
	if !proof.complete() {
		return fmt.Errorf("incomplete proof")
	}
	return r.transact(ctx, MethodUpdate, proof.A, proof.B, proof.C, txRoot, oldRoot, newRoot)
}

func (r *RollupContract) Withdraw(ctx context.Context, proof *Groth16Proof, recipient common.Address, amount, tx, txRoot *big.Int) error {
	if !proof.complete() {
		return fmt.Errorf("incomplete proof")
	}
	return r.transact(ctx, MethodWithdraw, proof.A, proof.B, proof.C, recipient, amount, tx, txRoot)
}
