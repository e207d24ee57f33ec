package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/zk-rollup-sequencer/api/client"
	"github.com/vocdoni/zk-rollup-sequencer/config"
	"github.com/vocdoni/zk-rollup-sequencer/log"
	"github.com/vocdoni/zk-rollup-sequencer/sequencer"
	"github.com/vocdoni/zk-rollup-sequencer/service"
	"github.com/vocdoni/zk-rollup-sequencer/web3"
)

func main() {
	conf := config.Default()
	flag.IntVar(&conf.Tree.AccountLevels, "accountLevels", conf.Tree.AccountLevels, "depth of the account tree")
	flag.IntVar(&conf.Tree.TxLevels, "txLevels", conf.Tree.TxLevels, "depth of the transaction tree, a batch holds 2^txLevels transfers")
	flag.StringVar(&conf.Crypto.Hash, "hash", conf.Crypto.Hash, "hash function and signature scheme (poseidon or mimc7)")
	flag.StringVar(&conf.Storage.Type, "storage", conf.Storage.Type, "key-value store (memory or pebble)")
	flag.StringVar(&conf.Storage.Dir, "dataDir", conf.Storage.Dir, "pebble data directory")
	flag.StringVar(&conf.API.Host, "host", conf.API.Host, "API listen host")
	flag.IntVar(&conf.API.Port, "port", conf.API.Port, "API listen port")
	flag.StringVar(&conf.Log.Level, "logLevel", conf.Log.Level, "log level (debug, info, warn or error)")
	flag.StringVar(&conf.Log.Output, "logOutput", conf.Log.Output, "log output (stdout, stderr or a file path)")
	flag.StringVar(&conf.Web3.Ledger, "ledger", conf.Web3.Ledger, "settlement ledger (none, mock or rpc)")
	flag.StringVar(&conf.Web3.RPC, "w3rpc", conf.Web3.RPC, "web3 rpc endpoint of the rpc ledger")
	flag.StringVar(&conf.Web3.Contract, "contract", conf.Web3.Contract, "rollup contract address of the rpc ledger")
	flag.StringVar(&conf.Web3.PrivateKey, "privkey", conf.Web3.PrivateKey, "private key of the account sending rollup transactions")
	flag.StringVar(&conf.Prover.Dir, "inputsDir", conf.Prover.Dir, "directory where full batch circuit inputs are exported")
	flag.DurationVar(&conf.Prover.PollInterval, "inputsPoll", conf.Prover.PollInterval, "poll interval of the batch inputs export")
	flag.Parse()

	if err := conf.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		flag.Usage()
		os.Exit(2)
	}
	log.Init(conf.Log.Level, conf.Log.Output, nil)

	if err := run(conf); err != nil {
		log.Fatal(err)
	}
}

// run serves the sequencer until an interrupt or a termination signal. Every
// opened resource is released before it returns.
func run(conf *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	hasher, err := conf.Hasher()
	if err != nil {
		return err
	}
	signer, err := conf.Signer()
	if err != nil {
		return err
	}
	database, err := conf.OpenDatabase()
	if err != nil {
		return fmt.Errorf("failed to open %s storage: %w", conf.Storage.Type, err)
	}
	seq, err := sequencer.New(&sequencer.Config{
		AccountLevels: conf.Tree.AccountLevels,
		TxLevels:      conf.Tree.TxLevels,
		Hasher:        hasher,
		Signer:        signer,
		Database:      database,
	})
	if err != nil {
		database.Close()
		return err
	}
	defer seq.Close()

	var ledger web3.Ledger
	switch conf.Web3.Ledger {
	case config.LedgerMock:
		if ledger, err = web3.NewMockLedger(conf.Tree.AccountLevels, hasher); err != nil {
			return err
		}
	case config.LedgerRPC:
		rollup, err := web3.DialRollup(ctx, conf.Web3.RPC, common.HexToAddress(conf.Web3.Contract), conf.Web3.PrivateKey)
		if err != nil {
			return err
		}
		defer rollup.Close()
		log.Infow("rollup contract bound", "contract", conf.Web3.Contract, "account", rollup.AccountAddress().Hex())
		ledger = rollup
	}

	apiService := service.NewAPI(seq, ledger, conf.API.Host, conf.API.Port)
	if err := apiService.Start(ctx); err != nil {
		return err
	}
	defer apiService.Stop()
	log.Infow("sequencer ready",
		"accountLevels", conf.Tree.AccountLevels,
		"txLevels", conf.Tree.TxLevels,
		"hash", hasher.Name(),
		"storage", conf.Storage.Type,
		"ledger", conf.Web3.Ledger,
	)

	if conf.Prover.Dir != "" {
		host := conf.API.Host
		if host == "0.0.0.0" || host == "" {
			host = "127.0.0.1"
		}
		cli, err := client.New(fmt.Sprintf("http://%s:%d", host, conf.API.Port))
		if err != nil {
			return fmt.Errorf("batch monitor cannot reach the API: %w", err)
		}
		monitor := service.NewBatchMonitor(cli, conf.Prover.Dir, conf.Prover.PollInterval)
		if err := monitor.Start(ctx); err != nil {
			return err
		}
		defer monitor.Stop()
	}

	<-ctx.Done()
	// no request runs once the server is down
	apiService.Stop()
	log.Infow("shutting down", "batch", seq.BatchNumber(), "phase", seq.Phase().String())
	return nil
}
