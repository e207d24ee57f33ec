package crypto

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestFieldRange(t *testing.T) {
	c := qt.New(t)
	p := FieldModulus()
	c.Assert(p.String(), qt.Equals,
		"21888242871839275222246405745257275088548364400416034343698204186575808495617")

	c.Assert(IsInField(big.NewInt(0)), qt.IsTrue)
	c.Assert(IsInField(new(big.Int).Sub(p, big.NewInt(1))), qt.IsTrue)
	c.Assert(IsInField(p), qt.IsFalse)
	c.Assert(IsInField(big.NewInt(-1)), qt.IsFalse)
	c.Assert(IsInField(nil), qt.IsFalse)

	c.Assert(CheckInField(big.NewInt(1), big.NewInt(2)), qt.IsNil)
	c.Assert(CheckInField(big.NewInt(1), p), qt.ErrorMatches, "value 1 .* is not a field element")
}

func TestBigToFF(t *testing.T) {
	c := qt.New(t)
	p := FieldModulus()
	c.Assert(BigToFF(p).Sign(), qt.Equals, 0)
	c.Assert(BigToFF(new(big.Int).Add(p, big.NewInt(5))).Int64(), qt.Equals, int64(5))
	c.Assert(BigToFF(big.NewInt(-1)).Cmp(new(big.Int).Sub(p, big.NewInt(1))), qt.Equals, 0)
}

func TestFieldBytes(t *testing.T) {
	c := qt.New(t)
	x, _ := new(big.Int).SetString("1234567890123456789012345678901234567890", 10)
	b := FieldToBytes(x)
	c.Assert(b, qt.HasLen, SerializedFieldSize)
	c.Assert(BytesToField(b).Cmp(x), qt.Equals, 0)
}
