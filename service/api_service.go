package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vocdoni/zk-rollup-sequencer/api"
	"github.com/vocdoni/zk-rollup-sequencer/log"
	"github.com/vocdoni/zk-rollup-sequencer/sequencer"
	"github.com/vocdoni/zk-rollup-sequencer/web3"
)

// shutdownTimeout bounds the wait for running requests on Stop.
const shutdownTimeout = 5 * time.Second

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	sequencer *sequencer.Sequencer
	ledger    web3.Ledger
	api       *api.API
	mu        sync.Mutex
	cancel    context.CancelFunc
	host      string
	port      int
}

// NewAPI creates a new APIService instance serving seq. The ledger is
// optional.
func NewAPI(seq *sequencer.Sequencer, ledger web3.Ledger, host string, port int) *APIService {
	return &APIService{
		sequencer: seq,
		ledger:    ledger,
		host:      host,
		port:      port,
	}
}

// Start begins the API server. It returns an error if the service
// is already running or if it fails to start.
func (as *APIService) Start(ctx context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		return fmt.Errorf("service already running")
	}

	_, as.cancel = context.WithCancel(ctx)

	var err error
	as.api, err = api.New(&api.APIConfig{
		Host:      as.host,
		Port:      as.port,
		Sequencer: as.sequencer,
		Ledger:    as.ledger,
	})
	if err != nil {
		as.cancel = nil
		return fmt.Errorf("failed to start API server: %w", err)
	}

	return nil
}

// Stop halts the API server. The sequencer stays open.
func (as *APIService) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		as.cancel()
		as.cancel = nil
	}
	if as.api != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := as.api.Shutdown(ctx); err != nil {
			log.Warnw("API server shutdown", "error", err)
		}
		as.api = nil
	}
}

// HostPort returns the host and port of the API server.
func (as *APIService) HostPort() (string, int) {
	return as.host, as.port
}
