package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is the single-currency cash balance of an account. The balance
// never goes negative.
type Wallet struct {
	ID        string
	AccountID string
	Currency  string
	Balance   decimal.Decimal
	Version   int64
	UpdatedAt time.Time
}

// NewWallet opens an empty wallet in currency.
func NewWallet(id, accountID, currency string, now time.Time) (Wallet, error) {
	cur, err := NormalizeCurrency(currency)
	if err != nil {
		return Wallet{}, err
	}
	return Wallet{
		ID:        id,
		AccountID: accountID,
		Currency:  cur,
		Balance:   decimal.Zero,
		UpdatedAt: now.UTC(),
	}, nil
}

func (w *Wallet) checkMovement(amount decimal.Decimal, currency string) error {
	if err := RequirePositive(amount); err != nil {
		return err
	}
	cur, err := NormalizeCurrency(currency)
	if err != nil {
		return err
	}
	if cur != w.Currency {
		return ErrCurrencyMismatch
	}
	return nil
}

// Credit adds amount to the balance.
func (w *Wallet) Credit(amount decimal.Decimal, currency string, now time.Time) error {
	if err := w.checkMovement(amount, currency); err != nil {
		return err
	}
	w.Balance = w.Balance.Add(amount)
	w.UpdatedAt = now.UTC()
	return nil
}

// Debit removes amount, failing if the balance would go negative.
func (w *Wallet) Debit(amount decimal.Decimal, currency string, now time.Time) error {
	if err := w.checkMovement(amount, currency); err != nil {
		return err
	}
	if w.Balance.LessThan(amount) {
		return ErrInsufficientBalance
	}
	w.Balance = w.Balance.Sub(amount)
	w.UpdatedAt = now.UTC()
	return nil
}
