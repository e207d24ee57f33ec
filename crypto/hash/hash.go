// Package hash defines the arithmetic hash capability the rollup trees and
// transaction identifiers are built on. Every arity is its own method, so a
// caller cannot hash a tuple of the wrong size by accident.
package hash

import (
	"fmt"
	"math/big"
	"strings"
)

// Hasher is a deterministic hash over field elements with the three arities
// used by the rollup: tree nodes (2), account leaves (3) and transactions (5).
type Hasher interface {
	Hash2(a, b *big.Int) (*big.Int, error)
	Hash3(a, b, c *big.Int) (*big.Int, error)
	Hash5(a, b, c, d, e *big.Int) (*big.Int, error)
	// Name identifies the hash function, e.g. in configuration files.
	Name() string
}

const (
	PoseidonName = "poseidon"
	MiMC7Name    = "mimc7"
)

var registry = map[string]func() Hasher{}

// Register makes a Hasher constructor available through ByName. It is
// called from the init function of each implementation package.
func Register(name string, constructor func() Hasher) {
	if _, ok := registry[name]; ok {
		panic(fmt.Sprintf("hasher %q registered twice", name))
	}
	registry[name] = constructor
}

// ByName returns a new instance of the hasher registered as name.
func ByName(name string) (Hasher, error) {
	constructor, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown hash function %q", name)
	}
	return constructor(), nil
}
