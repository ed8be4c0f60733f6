package cryptox

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
)

// GenerateNumericCode returns a zero-padded decimal code with the given number
// of digits drawn from r. A nil reader means crypto/rand.
func GenerateNumericCode(r io.Reader, digits int) (string, error) {
	if digits <= 0 || digits > 18 {
		return "", fmt.Errorf("cryptox: code length must be 1..18, got %d", digits)
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := RandomInt(r, limit)
	if err != nil {
		return "", err
	}
	s := n.String()
	return strings.Repeat("0", digits-len(s)) + s, nil
}

// RandomIntRange returns a uniform integer in [lo, hi] drawn from r.
func RandomIntRange(r io.Reader, lo, hi int64) (int64, error) {
	if hi < lo {
		return 0, fmt.Errorf("cryptox: empty range [%d, %d]", lo, hi)
	}
	n, err := RandomInt(r, big.NewInt(hi-lo+1))
	if err != nil {
		return 0, err
	}
	return lo + n.Int64(), nil
}

// RandomInt returns a uniform value in [0, limit).
func RandomInt(r io.Reader, limit *big.Int) (*big.Int, error) {
	if r == nil {
		r = rand.Reader
	}
	n, err := rand.Int(r, limit)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to draw random number: %w", err)
	}
	return n, nil
}
