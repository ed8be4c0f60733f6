package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type EntryKind string

const (
	EntryDeposit    EntryKind = "DEPOSIT"
	EntryTradeFill  EntryKind = "TRADE_FILL"
	EntryFee        EntryKind = "FEE"
	EntryAdjustment EntryKind = "ADJUSTMENT"
)

type RefType string

const (
	RefPaymentTx RefType = "PAYMENT_TX"
	RefExecution RefType = "EXECUTION"
	RefOrder     RefType = "ORDER"
	RefOther     RefType = "OTHER"
)

// LedgerEntry is an immutable journal line. Positive amounts credit the
// account, negative ones debit it.
type LedgerEntry struct {
	ID        string
	AccountID string
	Amount    decimal.Decimal
	Currency  string
	Kind      EntryKind
	RefType   RefType
	RefID     string
	Memo      string
	CreatedAt time.Time
}

// NewLedgerEntryParams describe an entry to append.
type NewLedgerEntryParams struct {
	ID        string
	AccountID string
	Amount    decimal.Decimal
	Currency  string
	Kind      EntryKind
	RefType   RefType
	RefID     string
	Memo      string
	Now       time.Time
}

// NewLedgerEntry validates p. Zero amounts are rejected.
func NewLedgerEntry(p NewLedgerEntryParams) (LedgerEntry, error) {
	if p.Amount.IsZero() {
		return LedgerEntry{}, ErrZeroLedgerAmount
	}
	cur, err := NormalizeCurrency(p.Currency)
	if err != nil {
		return LedgerEntry{}, err
	}
	return LedgerEntry{
		ID:        p.ID,
		AccountID: p.AccountID,
		Amount:    p.Amount,
		Currency:  cur,
		Kind:      p.Kind,
		RefType:   p.RefType,
		RefID:     p.RefID,
		Memo:      p.Memo,
		CreatedAt: p.Now.UTC(),
	}, nil
}

// DepositEntry is the DEPOSIT line posted when tx settles.
func DepositEntry(id string, tx PayTx, now time.Time) (LedgerEntry, error) {
	return NewLedgerEntry(NewLedgerEntryParams{
		ID:        id,
		AccountID: tx.AccountID,
		Amount:    tx.Amount,
		Currency:  tx.Currency,
		Kind:      EntryDeposit,
		RefType:   RefPaymentTx,
		RefID:     tx.ID,
		Now:       now,
	})
}
