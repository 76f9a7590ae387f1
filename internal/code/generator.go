package code

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Generate draws a code of the given length uniformly over the 62-character
// alphabet using the system CSPRNG.
func Generate(length int) (string, error) {
	out := make([]byte, length)
	max := big.NewInt(int64(len(Alphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("draw code character: %w", err)
		}
		out[i] = Alphabet[n.Int64()]
	}
	return string(out), nil
}
