// Package circuits renders the sequencer witness bundles as the input
// documents of the batch and withdraw circuits. Field elements are decimal
// strings and path side bits are "1" (left) or "0" (right).
package circuits

import (
	"fmt"
	"math/big"

	"github.com/vocdoni/zk-rollup-sequencer/crypto/eddsa"
	"github.com/vocdoni/zk-rollup-sequencer/sequencer"
)

func pubKeyStrings(pk eddsa.PublicKey) []string {
	return []string{pk.X.String(), pk.Y.String()}
}

func pathStrings(siblings [][]*big.Int, sideBits [][]bool) ([][]string, [][]string) {
	s := make([][]string, len(siblings))
	b := make([][]string, len(sideBits))
	for i := range siblings {
		s[i] = BigIntArrayToStringArray(siblings[i], len(siblings[i]))
	}
	for i := range sideBits {
		b[i] = BoolArrayToStringArray(sideBits[i])
	}
	return s, b
}

// BatchInputs returns the input document of the batch circuit for p, with
// one entry per transaction in every array.
func BatchInputs(p *sequencer.UpdateProof) (map[string]any, error) {
	if p == nil || p.TxRoot == nil {
		return nil, fmt.Errorf("empty update proof")
	}
	n := p.Len()
	if len(p.RootChain) != 2*n+1 {
		return nil, fmt.Errorf("root chain has %d roots for %d transactions", len(p.RootChain), n)
	}
	siblingsTx, isLeftTx := pathStrings(p.TxSiblings, p.TxSideBits)
	siblingsSrc, isLeftSrc := pathStrings(p.SrcSiblings, p.SrcSideBits)
	siblingsDst, isLeftDst := pathStrings(p.DstSiblings, p.DstSideBits)
	signatureR8 := make([][]string, n)
	pubkeySrc := make([][]string, n)
	pubkeyDst := make([][]string, n)
	for i := 0; i < n; i++ {
		signatureR8[i] = []string{p.SignatureR8[i][0].String(), p.SignatureR8[i][1].String()}
		pubkeySrc[i] = pubKeyStrings(p.PubKeySrc[i])
		pubkeyDst[i] = pubKeyStrings(p.PubKeyDst[i])
	}
	return map[string]any{
		"txRoot":          p.TxRoot.String(),
		"siblingsTx":      siblingsTx,
		"isLeftTx":        isLeftTx,
		"signature_R8":    signatureR8,
		"signature_S":     BigIntArrayToStringArray(p.SignatureS, n),
		"pubkey_src":      pubkeySrc,
		"balance_src":     BigIntArrayToStringArray(p.BalanceSrc, n),
		"pubkey_dst":      pubkeyDst,
		"balance_dst":     BigIntArrayToStringArray(p.BalanceDst, n),
		"siblingsSrc":     siblingsSrc,
		"isLeftSrc":       isLeftSrc,
		"siblingsDst":     siblingsDst,
		"isLeftDst":       isLeftDst,
		"transfer_amount": BigIntArrayToStringArray(p.Amounts, n),
		"roots":           BigIntArrayToStringArray(p.RootChain, len(p.RootChain)),
		"oldRoot":         p.OldRoot.String(),
		"newRoot":         p.NewRoot.String(),
		"nLevelsUsed":     fmt.Sprint(p.ActiveHeight),
	}, nil
}

// WithdrawInputs returns the input document of the withdraw circuit: the
// committed transaction of amount from src to dst, signed with sig, and
// its inclusion proof wp.
func WithdrawInputs(wp *sequencer.WithdrawProof, sig *eddsa.Signature, src, dst eddsa.PublicKey, amount *big.Int) (map[string]any, error) {
	if wp == nil || sig == nil || amount == nil {
		return nil, fmt.Errorf("incomplete withdraw inputs")
	}
	if !src.Valid() || !dst.Valid() {
		return nil, fmt.Errorf("invalid public key")
	}
	return map[string]any{
		"tx":              wp.TxHash.String(),
		"txRoot":          wp.TxRoot.String(),
		"siblingsTx":      BigIntArrayToStringArray(wp.Siblings, len(wp.Siblings)),
		"isLeftTx":        BoolArrayToStringArray(wp.SideBits),
		"signature_R8":    []string{sig.R8X.String(), sig.R8Y.String()},
		"signature_S":     sig.S.String(),
		"pubkey_src":      pubKeyStrings(src),
		"pubkey_dst":      pubKeyStrings(dst),
		"transfer_amount": amount.String(),
	}, nil
}
