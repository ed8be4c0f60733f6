package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PayTxStatus string

const (
	PayTxPending PayTxStatus = "Pending"
	PayTxSettled PayTxStatus = "Settled"
	PayTxFailed  PayTxStatus = "Failed"
)

// Failure reasons recorded on a PayTx.
const (
	FailureUnknown              = "unknown"
	FailureProviderDeclined     = "provider_declined"
	FailureProcessorUnavailable = "processor_unavailable"
)

// PayTx tracks one deposit request from Pending to a terminal state.
type PayTx struct {
	ID             string
	AccountID      string
	Amount         decimal.Decimal
	Currency       string
	IdempotencyKey string
	Status         PayTxStatus
	CreatedAt      time.Time
	SettledAt      *time.Time
	FailureReason  string
}

// NewPayTxParams are the validated inputs to a deposit request.
type NewPayTxParams struct {
	ID             string
	AccountID      string
	Amount         decimal.Decimal
	Currency       string
	IdempotencyKey string
	Now            time.Time
}

// NewPayTx returns a Pending transaction.
func NewPayTx(p NewPayTxParams) (PayTx, error) {
	if err := RequirePositive(p.Amount); err != nil {
		return PayTx{}, err
	}
	cur, err := NormalizeCurrency(p.Currency)
	if err != nil {
		return PayTx{}, err
	}
	key := strings.TrimSpace(p.IdempotencyKey)
	if key == "" {
		return PayTx{}, ErrIdempotencyKeyRequired
	}
	return PayTx{
		ID:             p.ID,
		AccountID:      p.AccountID,
		Amount:         p.Amount,
		Currency:       cur,
		IdempotencyKey: key,
		Status:         PayTxPending,
		CreatedAt:      p.Now.UTC(),
	}, nil
}

// MarkSettled moves Pending to Settled. Already Settled is a no-op
// (changed=false); a Failed transaction can't settle.
func (t *PayTx) MarkSettled(now time.Time) (changed bool, err error) {
	switch t.Status {
	case PayTxSettled:
		return false, nil
	case PayTxFailed:
		return false, ErrAlreadyFailed
	}
	at := now.UTC()
	t.Status = PayTxSettled
	t.SettledAt = &at
	return true, nil
}

// MarkFailed moves Pending to Failed. Already Failed is a no-op; a Settled
// transaction can't fail.
func (t *PayTx) MarkFailed(reason string, now time.Time) (changed bool, err error) {
	switch t.Status {
	case PayTxFailed:
		return false, nil
	case PayTxSettled:
		return false, ErrAlreadySettled
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = FailureUnknown
	}
	at := now.UTC()
	t.Status = PayTxFailed
	t.FailureReason = reason
	t.SettledAt = &at
	return true, nil
}

// IsSettledStatus reports whether a callback status means Settled. Any
// other non-empty status is treated as a failure.
func IsSettledStatus(s string) bool {
	return equalFoldTrim(s, string(PayTxSettled))
}
