// Package merkle implements a fixed-depth, append-only binary Merkle
// accumulator whose nodes live in a key-value database.
//
// Level 0 holds the leaves and level Levels() holds the root. Slots that were
// never written hash as a zero sentinel: the caller supplied zero leaf at
// level 0 and H2(zero[l], zero[l]) at level l+1. Every write recomputes the
// path from the leaf up to the root, so any node can be read in O(1).
package merkle

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/vocdoni/zk-rollup-sequencer/crypto"
	"github.com/vocdoni/zk-rollup-sequencer/crypto/hash"
	"github.com/vocdoni/zk-rollup-sequencer/types"
	"go.vocdoni.io/dvote/db"
)

var (
	// ErrCapacityExceeded is returned when appending to a full tree.
	ErrCapacityExceeded = errors.New("tree capacity exceeded")
	// ErrOutOfRange is returned when a position or node index does not exist.
	ErrOutOfRange = errors.New("position out of range")
	// ErrInvalidLevel is returned for levels outside [0, Levels()].
	ErrInvalidLevel = errors.New("invalid tree level")
)

var (
	sizeKey    = []byte("s")
	nodePrefix = byte('n')
)

// Tree is a fixed-depth Merkle accumulator. It is not safe for concurrent use.
type Tree struct {
	db     db.Database
	levels int
	hasher hash.Hasher
	zeros  []*big.Int
	size   uint64
}

// New opens the tree stored in database, or creates an empty one. The
// database should be dedicated to the tree (usually a prefixed view).
func New(database db.Database, levels int, hasher hash.Hasher, zeroLeaf *big.Int) (*Tree, error) {
	if levels < 1 || levels > types.MaxTreeLevels {
		return nil, fmt.Errorf("%w: depth %d not in [1, %d]", ErrInvalidLevel, levels, types.MaxTreeLevels)
	}
	if err := crypto.CheckInField(zeroLeaf); err != nil {
		return nil, fmt.Errorf("invalid zero leaf: %w", err)
	}
	zeros := make([]*big.Int, levels+1)
	zeros[0] = new(big.Int).Set(zeroLeaf)
	for l := 0; l < levels; l++ {
		z, err := hasher.Hash2(zeros[l], zeros[l])
		if err != nil {
			return nil, fmt.Errorf("compute empty node at level %d: %w", l+1, err)
		}
		zeros[l+1] = z
	}
	t := &Tree{
		db:     database,
		levels: levels,
		hasher: hasher,
		zeros:  zeros,
	}
	data, err := database.Get(sizeKey)
	switch {
	case err == nil:
		t.size = binary.BigEndian.Uint64(data)
		if t.size > t.Capacity() {
			return nil, fmt.Errorf("stored size %d exceeds capacity %d", t.size, t.Capacity())
		}
	case errors.Is(err, db.ErrKeyNotFound):
	default:
		return nil, fmt.Errorf("read tree size: %w", err)
	}
	return t, nil
}

// Levels returns the depth D of the tree.
func (t *Tree) Levels() int {
	return t.levels
}

// Capacity returns the number of leaf slots, 2^D.
func (t *Tree) Capacity() uint64 {
	return uint64(1) << t.levels
}

// Size returns the number of appended leaves.
func (t *Tree) Size() uint64 {
	return t.size
}

// Full reports whether every leaf slot has been appended.
func (t *Tree) Full() bool {
	return t.size == t.Capacity()
}

// ZeroNode returns the value of an empty subtree rooted at level.
func (t *Tree) ZeroNode(level int) *big.Int {
	return new(big.Int).Set(t.zeros[level])
}

// Root returns the node at level D, index 0.
func (t *Tree) Root() (*big.Int, error) {
	return t.NodeAt(t.levels, 0)
}

// Leaf returns the value stored at position.
func (t *Tree) Leaf(position uint64) (*big.Int, error) {
	if position >= t.size {
		return nil, fmt.Errorf("%w: leaf %d, size %d", ErrOutOfRange, position, t.size)
	}
	return t.NodeAt(0, position)
}

// NodeAt returns the node at the given level and index within that level.
func (t *Tree) NodeAt(level int, index uint64) (*big.Int, error) {
	if level < 0 || level > t.levels {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}
	if index >= uint64(1)<<(t.levels-level) {
		return nil, fmt.Errorf("%w: index %d at level %d", ErrOutOfRange, index, level)
	}
	return t.node(t.db, level, index)
}

// Append writes leaf into the next free slot and returns its position.
func (t *Tree) Append(leaf *big.Int) (uint64, error) {
	if t.Full() {
		return 0, fmt.Errorf("%w: %d leaves", ErrCapacityExceeded, t.Capacity())
	}
	position := t.size
	if err := t.write(position, leaf, position+1); err != nil {
		return 0, err
	}
	t.size++
	return position, nil
}

// Update overwrites the leaf at an already appended position.
func (t *Tree) Update(position uint64, leaf *big.Int) error {
	if position >= t.size {
		return fmt.Errorf("%w: leaf %d, size %d", ErrOutOfRange, position, t.size)
	}
	return t.write(position, leaf, t.size)
}

// write stores leaf and all its ancestors in a single transaction, together
// with the resulting size.
func (t *Tree) write(position uint64, leaf *big.Int, size uint64) error {
	if err := crypto.CheckInField(leaf); err != nil {
		return fmt.Errorf("invalid leaf: %w", err)
	}
	wTx := t.db.WriteTx()
	defer wTx.Discard()

	node := new(big.Int).Set(leaf)
	index := position
	if err := wTx.Set(nodeKey(0, index), crypto.FieldToBytes(node)); err != nil {
		return err
	}
	for level := 0; level < t.levels; level++ {
		// siblings are never on the path being written, so the committed
		// state is the right place to read them from
		sibling, err := t.node(t.db, level, index^1)
		if err != nil {
			return err
		}
		left, right := node, sibling
		if index&1 == 1 {
			left, right = sibling, node
		}
		if node, err = t.hasher.Hash2(left, right); err != nil {
			return fmt.Errorf("hash level %d: %w", level+1, err)
		}
		index >>= 1
		if err := wTx.Set(nodeKey(level+1, index), crypto.FieldToBytes(node)); err != nil {
			return err
		}
	}
	if err := wTx.Set(sizeKey, binary.BigEndian.AppendUint64(nil, size)); err != nil {
		return err
	}
	return wTx.Commit()
}

func (t *Tree) node(r db.Reader, level int, index uint64) (*big.Int, error) {
	data, err := r.Get(nodeKey(level, index))
	if errors.Is(err, db.ErrKeyNotFound) {
		return t.ZeroNode(level), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read node %d/%d: %w", level, index, err)
	}
	return crypto.BytesToField(data), nil
}

func nodeKey(level int, index uint64) []byte {
	key := make([]byte, 0, 10)
	key = append(key, nodePrefix, byte(level))
	return binary.BigEndian.AppendUint64(key, index)
}
