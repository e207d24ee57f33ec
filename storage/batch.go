package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/vocdoni/zk-rollup-sequencer/crypto"
	"github.com/vocdoni/zk-rollup-sequencer/types"
	"go.vocdoni.io/dvote/db"
)

// Batch is the record of a committed batch.
type Batch struct {
	Number       uint64          `cbor:"1,keyasint" json:"number"`
	TxRoot       *types.BigInt   `cbor:"2,keyasint" json:"txRoot"`
	OldRoot      *types.BigInt   `cbor:"3,keyasint" json:"oldRoot"`
	NewRoot      *types.BigInt   `cbor:"4,keyasint" json:"newRoot"`
	ActiveHeight int             `cbor:"5,keyasint" json:"activeHeight"`
	TxLevels     int             `cbor:"6,keyasint" json:"txLevels"`
	TxHashes     []*types.BigInt `cbor:"7,keyasint" json:"txHashes"`
}

// SetBatch stores a committed batch together with the position index of its
// transactions, in a single write transaction. Records are immutable:
// storing a batch number twice fails. Two batches with the same transactions
// share their root, which then resolves to the first of them.
func (s *Storage) SetBatch(b *Batch) error {
	if b == nil || b.TxRoot == nil {
		return fmt.Errorf("nil batch")
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	numberKey := binary.BigEndian.AppendUint64(nil, b.Number)
	if _, err := s.db.Get(prefixed(numberPrefix, numberKey)); err == nil {
		return fmt.Errorf("batch %d already committed", b.Number)
	} else if !errors.Is(err, db.ErrKeyNotFound) {
		return err
	}
	rootKey := crypto.FieldToBytes(b.TxRoot.MathBigInt())
	_, err := s.db.Get(prefixed(batchPrefix, rootKey))
	knownRoot := err == nil
	if err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		return err
	}
	val, err := encodeArtifact(b)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if err := wTx.Set(prefixed(numberPrefix, numberKey), val); err != nil {
		return err
	}
	if !knownRoot {
		if err := wTx.Set(prefixed(batchPrefix, rootKey), numberKey); err != nil {
			return err
		}
		seen := make(map[string]bool, len(b.TxHashes))
		for i, h := range b.TxHashes {
			key := prefixed(txIndexPrefix, rootKey, crypto.FieldToBytes(h.MathBigInt()))
			// a repeated transaction resolves to its first position
			if seen[string(key)] {
				continue
			}
			seen[string(key)] = true
			if err := wTx.Set(key, binary.BigEndian.AppendUint64(nil, uint64(i))); err != nil {
				return err
			}
		}
	}
	return wTx.Commit()
}

// Batch returns the first committed batch with the given transaction root,
// or ErrNotFound.
func (s *Storage) Batch(txRoot *big.Int) (*Batch, error) {
	numberKey, err := s.db.Get(prefixed(batchPrefix, crypto.FieldToBytes(txRoot)))
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.BatchByNumber(binary.BigEndian.Uint64(numberKey))
}

// BatchByNumber returns the committed batch with the given sequence number,
// or ErrNotFound.
func (s *Storage) BatchByNumber(number uint64) (*Batch, error) {
	b := &Batch{}
	if err := s.getArtifact(numberPrefix, binary.BigEndian.AppendUint64(nil, number), b); err != nil {
		return nil, err
	}
	return b, nil
}

// TxPosition returns the position of txHash inside the batch committed with
// txRoot, or ErrNotFound.
func (s *Storage) TxPosition(txRoot, txHash *big.Int) (uint64, error) {
	data, err := s.db.Get(prefixed(txIndexPrefix, crypto.FieldToBytes(txRoot), crypto.FieldToBytes(txHash)))
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(data), nil
}

// ListBatches returns the numbers of every committed batch in ascending
// order.
func (s *Storage) ListBatches() ([]uint64, error) {
	keys, err := s.listArtifacts(numberPrefix)
	if err != nil {
		return nil, err
	}
	numbers := make([]uint64, 0, len(keys))
	for _, k := range keys {
		numbers = append(numbers, binary.BigEndian.Uint64(k))
	}
	return numbers, nil
}

func prefixed(prefix []byte, parts ...[]byte) []byte {
	key := append([]byte{}, prefix...)
	for _, p := range parts {
		key = append(key, p...)
	}
	return key
}
