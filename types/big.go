package types

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// BigInt is a big.Int that travels as a decimal string in JSON and CBOR, the
// representation circuit inputs and the HTTP API use for field elements.
type BigInt big.Int

// NewInt returns a BigInt holding x.
func NewInt(x int64) *BigInt {
	return (*BigInt)(big.NewInt(x))
}

// FromBig wraps a *big.Int. A nil input yields zero.
func FromBig(x *big.Int) *BigInt {
	if x == nil {
		return new(BigInt)
	}
	return (*BigInt)(new(big.Int).Set(x))
}

// BigIntSlice wraps each element of xs.
func BigIntSlice(xs []*big.Int) []*BigInt {
	out := make([]*BigInt, len(xs))
	for i, x := range xs {
		out[i] = FromBig(x)
	}
	return out
}

// MathBigInt returns a copy as *big.Int.
func (i *BigInt) MathBigInt() *big.Int {
	if i == nil {
		return nil
	}
	return new(big.Int).Set((*big.Int)(i))
}

func (i *BigInt) String() string {
	return (*big.Int)(i).String()
}

// SetString parses a decimal or 0x-prefixed hexadecimal string.
func (i *BigInt) SetString(s string) (*BigInt, error) {
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	if _, ok := (*big.Int)(i).SetString(s, base); !ok {
		return nil, fmt.Errorf("invalid big number %q", s)
	}
	return i, nil
}

func (i *BigInt) Equal(j *BigInt) bool {
	return (*big.Int)(i).Cmp((*big.Int)(j)) == 0
}

func (i BigInt) MarshalText() ([]byte, error) {
	return []byte((*big.Int)(&i).String()), nil
}

func (i *BigInt) UnmarshalText(data []byte) error {
	s := strings.Trim(string(data), "\"")
	if s == "" {
		(*big.Int)(i).SetInt64(0)
		return nil
	}
	_, err := i.SetString(s)
	return err
}

func (i *BigInt) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal((*big.Int)(i).String())
}

func (i *BigInt) UnmarshalCBOR(data []byte) error {
	var s string
	if err := cbor.Unmarshal(data, &s); err != nil {
		return err
	}
	return i.UnmarshalText([]byte(s))
}
