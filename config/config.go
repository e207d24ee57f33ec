// Package config holds the runtime configuration of the sequencer binary.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/arbo/memdb"
	"github.com/vocdoni/zk-rollup-sequencer/crypto/eddsa"
	"github.com/vocdoni/zk-rollup-sequencer/crypto/hash"
	_ "github.com/vocdoni/zk-rollup-sequencer/crypto/hash/mimc7"    // register
	_ "github.com/vocdoni/zk-rollup-sequencer/crypto/hash/poseidon" // register
	"github.com/vocdoni/zk-rollup-sequencer/log"
	"github.com/vocdoni/zk-rollup-sequencer/types"
	"github.com/vocdoni/zk-rollup-sequencer/util"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
)

const (
	StorageMemory = "memory"
	StoragePebble = db.TypePebble

	LedgerNone = "none"
	LedgerMock = "mock"
	LedgerRPC  = "rpc"
)

// Config is the complete sequencer configuration.
type Config struct {
	Tree    TreeConfig
	Crypto  CryptoConfig
	Storage StorageConfig
	API     APIConfig
	Log     LogConfig
	Web3    Web3Config
	Prover  ProverConfig
}

// TreeConfig sets the depth of the account tree and of each batch
// transaction tree.
type TreeConfig struct {
	AccountLevels int
	TxLevels      int
}

// CryptoConfig selects the hash function. The signature scheme follows it.
type CryptoConfig struct {
	Hash string
}

// StorageConfig selects the key-value store of the trees and batch records.
type StorageConfig struct {
	Type string
	Dir  string
}

type APIConfig struct {
	Host string
	Port int
}

type LogConfig struct {
	Level  string
	Output string
}

// Web3Config selects the settlement ledger deposits and batch updates are
// published to. The rpc ledger needs the endpoint, the rollup contract
// address and the hex private key of the sending account.
type Web3Config struct {
	Ledger     string
	RPC        string
	Contract   string
	PrivateKey string
}

// ProverConfig enables the export of full batch inputs to Dir, polled every
// PollInterval. An empty Dir disables it.
type ProverConfig struct {
	Dir          string
	PollInterval time.Duration
}

// Default returns the configuration of a local in-memory sequencer.
func Default() *Config {
	return &Config{
		Tree:    TreeConfig{AccountLevels: 8, TxLevels: 2},
		Crypto:  CryptoConfig{Hash: hash.PoseidonName},
		Storage: StorageConfig{Type: StorageMemory},
		API:     APIConfig{Host: "127.0.0.1", Port: 9090},
		Log:     LogConfig{Level: log.LogLevelInfo, Output: "stdout"},
		Web3:    Web3Config{Ledger: LedgerNone},
		Prover:  ProverConfig{PollInterval: 2 * time.Second},
	}
}

// Validate checks the configuration is consistent.
func (c *Config) Validate() error {
	if c.Tree.TxLevels < 1 || c.Tree.TxLevels > c.Tree.AccountLevels || c.Tree.AccountLevels > types.MaxTreeLevels {
		return fmt.Errorf("tree levels must satisfy 1 <= tx (%d) <= accounts (%d) <= %d",
			c.Tree.TxLevels, c.Tree.AccountLevels, types.MaxTreeLevels)
	}
	if _, err := hash.ByName(c.Crypto.Hash); err != nil {
		return err
	}
	switch c.Storage.Type {
	case StorageMemory:
	case StoragePebble:
		if c.Storage.Dir == "" {
			return fmt.Errorf("pebble storage needs a directory")
		}
		// the sequencer starts from an empty account tree on every run
		entries, err := os.ReadDir(c.Storage.Dir)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("pebble directory: %w", err)
		}
		if len(entries) > 0 {
			return fmt.Errorf("pebble directory %s is not empty, previous runs cannot be resumed", c.Storage.Dir)
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("invalid API port %d", c.API.Port)
	}
	switch c.Log.Level {
	case log.LogLevelDebug, log.LogLevelInfo, log.LogLevelWarn, log.LogLevelError:
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	switch c.Web3.Ledger {
	case LedgerNone, LedgerMock:
	case LedgerRPC:
		if c.Web3.RPC == "" {
			return fmt.Errorf("rpc ledger needs an endpoint")
		}
		if !common.IsHexAddress(c.Web3.Contract) {
			return fmt.Errorf("invalid rollup contract address %q", c.Web3.Contract)
		}
		if _, err := ethcrypto.HexToECDSA(util.TrimHex(c.Web3.PrivateKey)); err != nil {
			return fmt.Errorf("invalid web3 private key: %w", err)
		}
	default:
		return fmt.Errorf("unknown ledger %q", c.Web3.Ledger)
	}
	if c.Prover.Dir != "" {
		if c.Prover.PollInterval <= 0 {
			return fmt.Errorf("prover poll interval must be positive")
		}
		if c.API.Port == 0 {
			return fmt.Errorf("batch inputs export needs a fixed API port")
		}
	}
	return nil
}

// Hasher returns the configured hash function.
func (c *Config) Hasher() (hash.Hasher, error) {
	return hash.ByName(c.Crypto.Hash)
}

// Signer returns the signature scheme matching the configured hash.
func (c *Config) Signer() (eddsa.Signer, error) {
	return eddsa.SignerByName(c.Crypto.Hash)
}

// OpenDatabase opens the configured key-value store.
func (c *Config) OpenDatabase() (db.Database, error) {
	if c.Storage.Type == StorageMemory {
		return memdb.New(), nil
	}
	return metadb.New(c.Storage.Type, c.Storage.Dir)
}
