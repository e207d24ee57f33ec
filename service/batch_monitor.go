package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vocdoni/zk-rollup-sequencer/api"
	"github.com/vocdoni/zk-rollup-sequencer/circuits"
	"github.com/vocdoni/zk-rollup-sequencer/log"
	"github.com/vocdoni/zk-rollup-sequencer/sequencer"
)

// SequencerAPI is the part of the sequencer API the batch monitor polls.
type SequencerAPI interface {
	State() (*api.State, error)
	BatchInputs() (map[string]any, error)
}

// BatchMonitor represents a service that watches the sequencer for full
// batches and exports their circuit inputs to a directory, where the prover
// picks them up.
type BatchMonitor struct {
	api      SequencerAPI
	dir      string
	interval time.Duration
	mu       sync.Mutex
	cancel   context.CancelFunc
	exported map[uint64]bool
}

// NewBatchMonitor creates a new BatchMonitor writing the inputs of batch n
// to dir/batch-n.json.
func NewBatchMonitor(seqAPI SequencerAPI, dir string, interval time.Duration) *BatchMonitor {
	return &BatchMonitor{
		api:      seqAPI,
		dir:      dir,
		interval: interval,
		exported: make(map[uint64]bool),
	}
}

// InputsPath returns the file the inputs of batch number are written to.
func (bm *BatchMonitor) InputsPath(number uint64) string {
	return filepath.Join(bm.dir, fmt.Sprintf("batch-%d.json", number))
}

// Start begins monitoring the sequencer. It returns an error if the service
// is already running or the output directory cannot be created.
func (bm *BatchMonitor) Start(ctx context.Context) error {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if bm.cancel != nil {
		return fmt.Errorf("service already running")
	}
	if err := os.MkdirAll(bm.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create inputs directory: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	bm.cancel = cancel
	go bm.monitorBatches(ctx)
	return nil
}

// Stop halts the monitoring service.
func (bm *BatchMonitor) Stop() {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if bm.cancel != nil {
		bm.cancel()
		bm.cancel = nil
	}
}

func (bm *BatchMonitor) monitorBatches(ctx context.Context) {
	ticker := time.NewTicker(bm.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := bm.poll(); err != nil {
				log.Warnw("batch monitor poll failed", "error", err.Error())
			}
		}
	}
}

// poll exports the inputs of the current batch once it is full. Batches
// already proved by someone else are exported too, their inputs do not
// change.
func (bm *BatchMonitor) poll() error {
	st, err := bm.api.State()
	if err != nil {
		return err
	}
	if st.Halted != "" {
		return fmt.Errorf("sequencer halted: %s", st.Halted)
	}
	full := st.Phase == sequencer.BatchFull.String() || st.Phase == sequencer.BatchProved.String()
	if !full || bm.exported[st.Batch] {
		return nil
	}
	inputs, err := bm.api.BatchInputs()
	if err != nil {
		return err
	}
	if err := circuits.StoreInputs(inputs, bm.InputsPath(st.Batch)); err != nil {
		return err
	}
	bm.exported[st.Batch] = true
	log.Infow("batch inputs exported", "batch", st.Batch, "path", bm.InputsPath(st.Batch))
	return nil
}
