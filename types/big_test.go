package types

import (
	"encoding/json"
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/fxamacker/cbor/v2"
)

func TestBigMarshalUnmarshalJSON(t *testing.T) {
	c := qt.New(t)
	bi := (*BigInt)(big.NewInt(1234567890))
	jsonBigInt := map[string]*BigInt{
		"bi": bi,
	}
	bBigInt, err := json.Marshal(jsonBigInt)
	c.Assert(err, qt.IsNil)

	var unmarshaled map[string]*BigInt
	c.Assert(json.Unmarshal(bBigInt, &unmarshaled), qt.IsNil)
	c.Assert(unmarshaled["bi"], qt.DeepEquals, bi)
}

func TestBigMarshalUnmarshalCBOR(t *testing.T) {
	c := qt.New(t)
	bi := (*BigInt)(big.NewInt(1234567890))
	cborBigInt := map[string]*BigInt{
		"bi": bi,
	}
	bBigInt, err := cbor.Marshal(cborBigInt)
	c.Assert(err, qt.IsNil)

	var unmarshaled map[string]*BigInt
	c.Assert(cbor.Unmarshal(bBigInt, &unmarshaled), qt.IsNil)
	c.Assert(unmarshaled["bi"], qt.DeepEquals, bi)
}

func TestBigSetString(t *testing.T) {
	c := qt.New(t)
	bi, err := new(BigInt).SetString("0x10")
	c.Assert(err, qt.IsNil)
	c.Assert(bi.MathBigInt().Int64(), qt.Equals, int64(16))

	_, err = new(BigInt).SetString("not a number")
	c.Assert(err, qt.IsNotNil)

	var decoded struct {
		Amount *BigInt `json:"amount"`
	}
	c.Assert(json.Unmarshal([]byte(`{"amount":"40"}`), &decoded), qt.IsNil)
	c.Assert(decoded.Amount.Equal(NewInt(40)), qt.IsTrue)
}

func TestHexBytesJSON(t *testing.T) {
	c := qt.New(t)
	b := HexBytes{0xca, 0xfe}
	data, err := json.Marshal(b)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, `"0xcafe"`)

	var out HexBytes
	c.Assert(json.Unmarshal(data, &out), qt.IsNil)
	c.Assert(out, qt.DeepEquals, b)
}
