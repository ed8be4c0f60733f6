package service

import (
	"fmt"
	"io"

	"github.com/aussiebroadwan/brokerx/pkg/cryptox"
)

// newCode draws a numeric one-time code and hashes it. Only the hash is
// ever stored.
func newCode(r io.Reader) (plain, hash string, err error) {
	plain, err = cryptox.GenerateNumericCode(r, OTPDigits)
	if err != nil {
		return "", "", fmt.Errorf("generate code: %w", err)
	}
	hash, err = cryptox.HashPassword(plain)
	if err != nil {
		return "", "", fmt.Errorf("hash code: %w", err)
	}
	return plain, hash, nil
}
