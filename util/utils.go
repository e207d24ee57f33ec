package util

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// RandomBytes generates a random byte slice of length n.
func RandomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// RandomInt generates a random integer in [min, max).
func RandomInt(min, max int) int {
	num, err := rand.Int(rand.Reader, big.NewInt(int64(max-min)))
	if err != nil {
		panic(err)
	}
	return int(num.Int64()) + min
}

// TrimHex trims the '0x' prefix from a hex string.
func TrimHex(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// PrettyField returns a short representation of a field element for logs:
// the first and last hex digits of its value.
func PrettyField(x *big.Int) string {
	if x == nil {
		return "<nil>"
	}
	h := x.Text(16)
	if len(h) <= 12 {
		return "0x" + h
	}
	return fmt.Sprintf("0x%s..%s", h[:6], h[len(h)-6:])
}
