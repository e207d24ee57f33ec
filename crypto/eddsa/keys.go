// Package eddsa implements the field native signature capability of the
// rollup: EdDSA over BabyJubJub, with the message digest computed either with
// Poseidon or with MiMC7.
package eddsa

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/babyjub"
	"github.com/vocdoni/zk-rollup-sequencer/crypto"
	"github.com/vocdoni/zk-rollup-sequencer/types"
	"github.com/vocdoni/zk-rollup-sequencer/util"
)

// PublicKey is an account identity, the affine coordinates of a BabyJubJub
// point. The all-zero key identifies the null account.
type PublicKey struct {
	X *big.Int
	Y *big.Int
}

// NullPublicKey returns the (0, 0) key of the null account.
func NullPublicKey() PublicKey {
	return PublicKey{X: big.NewInt(0), Y: big.NewInt(0)}
}

// NewPublicKey builds a PublicKey from its coordinates, which must be field
// elements.
func NewPublicKey(x, y *big.Int) (PublicKey, error) {
	if err := crypto.CheckInField(x, y); err != nil {
		return PublicKey{}, fmt.Errorf("invalid public key: %w", err)
	}
	return PublicKey{X: new(big.Int).Set(x), Y: new(big.Int).Set(y)}, nil
}

// IsNull reports whether pk is the null account key.
func (pk PublicKey) IsNull() bool {
	return pk.X != nil && pk.Y != nil && pk.X.Sign() == 0 && pk.Y.Sign() == 0
}

// Valid reports whether both coordinates are field elements.
func (pk PublicKey) Valid() bool {
	return crypto.IsInField(pk.X) && crypto.IsInField(pk.Y)
}

// Copy returns a key that shares no memory with pk.
func (pk PublicKey) Copy() PublicKey {
	return PublicKey{X: crypto.CopyField(pk.X), Y: crypto.CopyField(pk.Y)}
}

func (pk PublicKey) Equal(other PublicKey) bool {
	return pk.X.Cmp(other.X) == 0 && pk.Y.Cmp(other.Y) == 0
}

func (pk PublicKey) String() string {
	return fmt.Sprintf("(%s, %s)", util.PrettyField(pk.X), util.PrettyField(pk.Y))
}

// MarshalJSON encodes the key as ["x", "y"].
func (pk PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]*types.BigInt{types.FromBig(pk.X), types.FromBig(pk.Y)})
}

func (pk *PublicKey) UnmarshalJSON(data []byte) error {
	var coords [2]*types.BigInt
	if err := json.Unmarshal(data, &coords); err != nil {
		return err
	}
	if coords[0] == nil || coords[1] == nil {
		return fmt.Errorf("public key needs two coordinates")
	}
	pk.X, pk.Y = coords[0].MathBigInt(), coords[1].MathBigInt()
	return nil
}

func (pk PublicKey) point() *babyjub.PublicKey {
	return &babyjub.PublicKey{X: pk.X, Y: pk.Y}
}

// PrivateKey is a BabyJubJub EdDSA secret.
type PrivateKey babyjub.PrivateKey

// GenerateKey returns a new random private key.
func GenerateKey() PrivateKey {
	return PrivateKey(babyjub.NewRandPrivKey())
}

// PrivateKeyFromHex decodes a 32 byte hex encoded private key.
func PrivateKeyFromHex(s string) (PrivateKey, error) {
	var k PrivateKey
	b, err := hex.DecodeString(util.TrimHex(s))
	if err != nil {
		return k, fmt.Errorf("invalid private key: %w", err)
	}
	if len(b) != len(k) {
		return k, fmt.Errorf("invalid private key length %d", len(b))
	}
	copy(k[:], b)
	return k, nil
}

func (k PrivateKey) Hex() string {
	return hex.EncodeToString(k[:])
}

// Public derives the public key.
func (k PrivateKey) Public() PublicKey {
	bk := babyjub.PrivateKey(k)
	p := bk.Public()
	return PublicKey{X: p.X, Y: p.Y}
}
