package types

import (
	"encoding/hex"
	"strings"
)

// HexBytes is a byte slice encoded as a 0x-prefixed hex string in JSON.
type HexBytes []byte

func (b HexBytes) String() string {
	return "0x" + hex.EncodeToString(b)
}

func (b HexBytes) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *HexBytes) UnmarshalText(data []byte) error {
	s := strings.TrimPrefix(strings.TrimPrefix(string(data), "0x"), "0X")
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*b = decoded
	return nil
}
