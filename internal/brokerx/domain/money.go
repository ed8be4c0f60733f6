package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when an account is opened without one.
const DefaultCurrency = "USD"

// NormalizeCurrency trims and upper-cases s. It must be exactly three ASCII
// letters.
func NormalizeCurrency(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) != 3 {
		return "", ErrInvalidCurrency
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return "", ErrInvalidCurrency
		}
	}
	return strings.ToUpper(s), nil
}

// RequirePositive fails unless amount > 0.
func RequirePositive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}
