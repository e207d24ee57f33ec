// Package crypto holds the finite field every hash, key coordinate and
// balance of the rollup lives in: the scalar field of BN254, which is also
// the base field of BabyJubJub.
package crypto

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/arbo"
)

const SerializedFieldSize = 32 // bytes

// FieldModulus returns the prime p of the field.
func FieldModulus() *big.Int {
	return fr.Modulus()
}

// IsInField reports whether x is a canonical field element, i.e. 0 <= x < p.
func IsInField(x *big.Int) bool {
	return x != nil && x.Sign() >= 0 && x.Cmp(fr.Modulus()) < 0
}

// CheckInField returns an error naming the first value outside the field.
func CheckInField(values ...*big.Int) error {
	for i, v := range values {
		if !IsInField(v) {
			return fmt.Errorf("value %d (%v) is not a field element", i, v)
		}
	}
	return nil
}

// CopyField returns a copy of x, or nil.
func CopyField(x *big.Int) *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).Set(x)
}

// CopyFields returns a deep copy of xs.
func CopyFields(xs []*big.Int) []*big.Int {
	if xs == nil {
		return nil
	}
	out := make([]*big.Int, len(xs))
	for i, x := range xs {
		out[i] = CopyField(x)
	}
	return out
}

// BigToFF returns the field representation of iv using the Euclidean
// modulus.
func BigToFF(iv *big.Int) *big.Int {
	if IsInField(iv) {
		return iv
	}
	return new(big.Int).Mod(iv, fr.Modulus())
}

// FieldToBytes serializes a field element as 32 little-endian bytes, the
// encoding used for tree nodes in the key-value store.
func FieldToBytes(x *big.Int) []byte {
	return arbo.BigIntToBytes(SerializedFieldSize, x)
}

// BytesToField is the inverse of FieldToBytes.
func BytesToField(b []byte) *big.Int {
	return arbo.BytesToBigInt(b)
}
