package eddsa

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/iden3/go-iden3-crypto/babyjub"
	"github.com/vocdoni/zk-rollup-sequencer/crypto"
	"github.com/vocdoni/zk-rollup-sequencer/crypto/hash"
	"github.com/vocdoni/zk-rollup-sequencer/types"
)

// Signature is an EdDSA signature: the point R8 and the scalar S.
type Signature struct {
	R8X *big.Int
	R8Y *big.Int
	S   *big.Int
}

type signatureJSON struct {
	R8 [2]*types.BigInt `json:"r8"`
	S  *types.BigInt    `json:"s"`
}

func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(signatureJSON{
		R8: [2]*types.BigInt{types.FromBig(s.R8X), types.FromBig(s.R8Y)},
		S:  types.FromBig(s.S),
	})
}

func (s *Signature) UnmarshalJSON(data []byte) error {
	var sj signatureJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return err
	}
	if sj.R8[0] == nil || sj.R8[1] == nil || sj.S == nil {
		return fmt.Errorf("incomplete signature")
	}
	s.R8X, s.R8Y, s.S = sj.R8[0].MathBigInt(), sj.R8[1].MathBigInt(), sj.S.MathBigInt()
	return nil
}

// Copy returns a deep copy of the signature, or nil.
func (s *Signature) Copy() *Signature {
	if s == nil {
		return nil
	}
	return &Signature{R8X: crypto.CopyField(s.R8X), R8Y: crypto.CopyField(s.R8Y), S: crypto.CopyField(s.S)}
}

func (s *Signature) wellFormed() bool {
	return s != nil && crypto.IsInField(s.R8X) && crypto.IsInField(s.R8Y) &&
		s.S != nil && s.S.Sign() >= 0 && s.S.Cmp(babyjub.SubOrder) < 0
}

func (s *Signature) babyjub() *babyjub.Signature {
	return &babyjub.Signature{R8: &babyjub.Point{X: s.R8X, Y: s.R8Y}, S: s.S}
}

func fromBabyjub(sig *babyjub.Signature) *Signature {
	return &Signature{R8X: sig.R8.X, R8Y: sig.R8.Y, S: sig.S}
}

// Signer is the signature capability: it signs a single field element and
// verifies such signatures.
type Signer interface {
	Sign(key PrivateKey, msg *big.Int) (*Signature, error)
	Verify(pub PublicKey, msg *big.Int, sig *Signature) bool
	Name() string
}

// PoseidonSigner signs with a Poseidon message digest.
type PoseidonSigner struct{}

// MiMC7Signer signs with a MiMC7 message digest.
type MiMC7Signer struct{}

var (
	_ Signer = PoseidonSigner{}
	_ Signer = MiMC7Signer{}
)

func (PoseidonSigner) Name() string { return hash.PoseidonName }

func (PoseidonSigner) Sign(key PrivateKey, msg *big.Int) (*Signature, error) {
	if !crypto.IsInField(msg) {
		return nil, fmt.Errorf("message is not a field element")
	}
	bk := babyjub.PrivateKey(key)
	return fromBabyjub(bk.SignPoseidon(msg)), nil
}

func (PoseidonSigner) Verify(pub PublicKey, msg *big.Int, sig *Signature) bool {
	if !pub.Valid() || pub.IsNull() || !sig.wellFormed() || !crypto.IsInField(msg) {
		return false
	}
	return pub.point().VerifyPoseidon(msg, sig.babyjub())
}

func (MiMC7Signer) Name() string { return hash.MiMC7Name }

func (MiMC7Signer) Sign(key PrivateKey, msg *big.Int) (*Signature, error) {
	if !crypto.IsInField(msg) {
		return nil, fmt.Errorf("message is not a field element")
	}
	bk := babyjub.PrivateKey(key)
	return fromBabyjub(bk.SignMimc7(msg)), nil
}

func (MiMC7Signer) Verify(pub PublicKey, msg *big.Int, sig *Signature) bool {
	if !pub.Valid() || pub.IsNull() || !sig.wellFormed() || !crypto.IsInField(msg) {
		return false
	}
	return pub.point().VerifyMimc7(msg, sig.babyjub())
}

// SignerByName returns the signer whose digest matches the named hash
// function.
func SignerByName(name string) (Signer, error) {
	switch strings.ToLower(name) {
	case hash.PoseidonName:
		return PoseidonSigner{}, nil
	case hash.MiMC7Name:
		return MiMC7Signer{}, nil
	default:
		return nil, fmt.Errorf("unknown signature scheme %q", name)
	}
}
