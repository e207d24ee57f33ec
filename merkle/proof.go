package merkle

import (
	"fmt"
	"math/big"

	"github.com/vocdoni/zk-rollup-sequencer/crypto/hash"
)

// Proof is an inclusion proof of the leaf at Position up to some height h.
// Siblings[i] and SideBits[i] describe level i of the path; SideBits[i] is
// true when the path node is the left child, so its sibling is on the right.
// Root is the node reached at height h, the actual root when h equals the
// depth of the tree.
type Proof struct {
	Position uint64
	Leaf     *big.Int
	Root     *big.Int
	Siblings []*big.Int
	SideBits []bool
}

// Height returns the number of levels covered by the proof.
func (p *Proof) Height() int {
	return len(p.Siblings)
}

// ProofUpTo returns the proof of position truncated to the lowest levels.
func (t *Tree) ProofUpTo(position uint64, levels int) (*Proof, error) {
	if levels < 0 || levels > t.levels {
		return nil, fmt.Errorf("%w: proof height %d, depth %d", ErrInvalidLevel, levels, t.levels)
	}
	if position >= t.Capacity() {
		return nil, fmt.Errorf("%w: leaf %d, capacity %d", ErrOutOfRange, position, t.Capacity())
	}
	leaf, err := t.node(t.db, 0, position)
	if err != nil {
		return nil, err
	}
	p := &Proof{
		Position: position,
		Leaf:     leaf,
		Siblings: make([]*big.Int, levels),
		SideBits: make([]bool, levels),
	}
	for level := 0; level < levels; level++ {
		index := position >> level
		if p.Siblings[level], err = t.node(t.db, level, index^1); err != nil {
			return nil, err
		}
		p.SideBits[level] = index&1 == 0
	}
	if p.Root, err = t.node(t.db, levels, position>>levels); err != nil {
		return nil, err
	}
	return p, nil
}

// Proof returns the full depth proof of position.
func (t *Tree) Proof(position uint64) (*Proof, error) {
	return t.ProofUpTo(position, t.levels)
}

// ComputeRoot hashes leaf up through siblings, returning the node reached.
func ComputeRoot(h hash.Hasher, leaf *big.Int, siblings []*big.Int, sideBits []bool) (*big.Int, error) {
	if len(siblings) != len(sideBits) {
		return nil, fmt.Errorf("%d siblings but %d side bits", len(siblings), len(sideBits))
	}
	node := leaf
	for i, sibling := range siblings {
		var err error
		if sideBits[i] {
			node, err = h.Hash2(node, sibling)
		} else {
			node, err = h.Hash2(sibling, node)
		}
		if err != nil {
			return nil, fmt.Errorf("hash level %d: %w", i+1, err)
		}
	}
	return node, nil
}

// VerifyProof reports whether leaf with the given path hashes up to root.
func VerifyProof(h hash.Hasher, root, leaf *big.Int, siblings []*big.Int, sideBits []bool) (bool, error) {
	computed, err := ComputeRoot(h, leaf, siblings, sideBits)
	if err != nil {
		return false, err
	}
	return computed.Cmp(root) == 0, nil
}

// Verify checks the proof against its own Leaf and Root.
func (p *Proof) Verify(h hash.Hasher) (bool, error) {
	return VerifyProof(h, p.Root, p.Leaf, p.Siblings, p.SideBits)
}
