// Package storage keeps the index of committed batches in a key-value
// database. The following prefixes are used:
//   - 'n/' for batch records, keyed by batch number
//   - 'b/' for the transaction tree root to batch number mapping
//   - 'x/' for transaction positions, keyed by root and transaction hash
//
// Records are encoded with deterministic CBOR.
package storage

import (
	"errors"
	"sync"

	"github.com/vocdoni/zk-rollup-sequencer/log"
	"go.vocdoni.io/dvote/db"
)

var (
	// Prefixes for the keys in the database.
	batchPrefix   = []byte("b/")
	txIndexPrefix = []byte("x/")
	numberPrefix  = []byte("n/")
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Storage wraps the database holding the committed batch index.
type Storage struct {
	db         db.Database
	globalLock sync.Mutex
}

// New creates a new Storage instance over db.
func New(db db.Database) *Storage {
	return &Storage{db: db}
}

// DB returns the underlying database.
func (s *Storage) DB() db.Database {
	return s.db
}

// Close closes the storage.
func (s *Storage) Close() {
	if err := s.db.Close(); err != nil {
		log.Warnw("failed to close storage", "error", err)
	}
}
