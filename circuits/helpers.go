package circuits

import (
	"encoding/json"
	"math/big"
	"os"

	"github.com/vocdoni/zk-rollup-sequencer/log"
)

// BigIntArrayToN pads the big.Int array to n elements, if needed,
// with zeros.
func BigIntArrayToN(arr []*big.Int, n int) []*big.Int {
	bigArr := make([]*big.Int, n)
	for i := 0; i < n; i++ {
		if i < len(arr) {
			bigArr[i] = arr[i]
		} else {
			bigArr[i] = big.NewInt(0)
		}
	}
	return bigArr
}

// BigIntArrayToStringArray converts the big.Int array to a string array.
func BigIntArrayToStringArray(arr []*big.Int, n int) []string {
	strArr := []string{}
	for _, b := range BigIntArrayToN(arr, n) {
		strArr = append(strArr, b.String())
	}
	return strArr
}

// BoolToBigInt returns 1 when b is true or 0 otherwise
func BoolToBigInt(b bool) *big.Int {
	if b {
		return big.NewInt(1)
	}
	return big.NewInt(0)
}

// BoolArrayToStringArray converts the side bits of a path into "1" and "0"
// signals.
func BoolArrayToStringArray(arr []bool) []string {
	strArr := make([]string, len(arr))
	for i, b := range arr {
		strArr[i] = BoolToBigInt(b).String()
	}
	return strArr
}

// StoreInputs writes the circuit inputs as JSON to a file.
func StoreInputs(inputs map[string]any, filepath string) error {
	data, err := json.MarshalIndent(inputs, "", "  ")
	if err != nil {
		return err
	}
	// readers never see a partial document
	tmp := filepath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, filepath); err != nil {
		return err
	}
	log.Debugw("circuit inputs written", "path", filepath)
	return nil
}
