// Package poseidon provides the circomlib compatible Poseidon hasher.
package poseidon

import (
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"
	"github.com/vocdoni/zk-rollup-sequencer/crypto/hash"
)

func init() {
	hash.Register(hash.PoseidonName, func() hash.Hasher { return Hasher{} })
}

// Hasher implements hash.Hasher with the iden3 Poseidon permutation.
type Hasher struct{}

var _ hash.Hasher = Hasher{}

func (Hasher) Name() string { return hash.PoseidonName }

func (Hasher) Hash2(a, b *big.Int) (*big.Int, error) {
	return sum(a, b)
}

func (Hasher) Hash3(a, b, c *big.Int) (*big.Int, error) {
	return sum(a, b, c)
}

func (Hasher) Hash5(a, b, c, d, e *big.Int) (*big.Int, error) {
	return sum(a, b, c, d, e)
}

func sum(inputs ...*big.Int) (*big.Int, error) {
	for i, in := range inputs {
		if in == nil {
			return nil, fmt.Errorf("poseidon: nil input %d", i)
		}
	}
	h, err := poseidon.Hash(inputs)
	if err != nil {
		return nil, fmt.Errorf("poseidon: %w", err)
	}
	return h, nil
}
