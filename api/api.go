package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/vocdoni/zk-rollup-sequencer/log"
	"github.com/vocdoni/zk-rollup-sequencer/sequencer"
	"github.com/vocdoni/zk-rollup-sequencer/web3"
)

// APIConfig type represents the configuration for the API HTTP server.
// It includes the host, port, the sequencer to serve and optionally the
// settlement ledger where deposits and batch updates are published.
type APIConfig struct {
	Host      string
	Port      int
	Sequencer *sequencer.Sequencer
	Ledger    web3.Ledger // Optional: publish deposits and updates
}

// API type represents the API HTTP server of the sequencer.
type API struct {
	router *chi.Mux
	server *http.Server
	// seqLock serializes every call into the sequencer, which is not safe
	// for concurrent use.
	seqLock sync.Mutex
	seq     *sequencer.Sequencer
	ledger  web3.Ledger
}

// New creates a new API instance with the given configuration and starts
// the HTTP server.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Sequencer == nil {
		return nil, fmt.Errorf("missing sequencer instance")
	}
	a := &API{
		seq:    conf.Sequencer,
		ledger: conf.Ledger,
	}

	// Initialize router
	a.initRouter()
	a.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infow("Starting API server", "host", conf.Host, "port", conf.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// Shutdown stops the HTTP server, waiting for the running requests up to
// the context deadline.
func (a *API) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

// registerHandlers registers all the API handlers.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	log.Infow("register handler", "endpoint", StateEndpoint, "method", "GET")
	a.router.Get(StateEndpoint, a.state)
	log.Infow("register handler", "endpoint", DepositsEndpoint, "method", "POST")
	a.router.Post(DepositsEndpoint, a.deposit)
	log.Infow("register handler", "endpoint", ProcessDepositsEndpoint, "method", "POST")
	a.router.Post(ProcessDepositsEndpoint, a.processDeposits)
	log.Infow("register handler", "endpoint", AccountEndpoint, "method", "GET")
	a.router.Get(AccountEndpoint, a.account)
	log.Infow("register handler", "endpoint", TransfersEndpoint, "method", "POST")
	a.router.Post(TransfersEndpoint, a.transfer)
	log.Infow("register handler", "endpoint", BatchProofEndpoint, "method", "GET")
	a.router.Get(BatchProofEndpoint, a.batchProof)
	log.Infow("register handler", "endpoint", BatchCommitEndpoint, "method", "POST")
	a.router.Post(BatchCommitEndpoint, a.commitBatch)
	log.Infow("register handler", "endpoint", BatchesEndpoint, "method", "GET")
	a.router.Get(BatchesEndpoint, a.batches)
	log.Infow("register handler", "endpoint", BatchEndpoint, "method", "GET")
	a.router.Get(BatchEndpoint, a.batch)
	log.Infow("register handler", "endpoint", WithdrawalEndpoint, "method", "GET")
	a.router.Get(WithdrawalEndpoint, a.withdrawal)
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	// Create the router with a basic middleware stack
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	// Register the API handlers
	a.registerHandlers()
}
