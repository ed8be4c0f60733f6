package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	"github.com/shopspring/decimal"
)

type ledgerRepo struct {
	q querier
}

type ledgerRow struct {
	ID        string          `db:"id"`
	AccountID string          `db:"account_id"`
	Amount    decimal.Decimal `db:"amount"`
	Currency  string          `db:"currency"`
	Kind      string          `db:"kind"`
	RefType   string          `db:"ref_type"`
	RefID     string          `db:"ref_id"`
	Memo      string          `db:"memo"`
	CreatedAt time.Time       `db:"created_at"`
}

func (r *ledgerRepo) AppendEntry(ctx context.Context, e domain.LedgerEntry) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, account_id, amount, currency, kind, ref_type, ref_id, memo, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.AccountID, e.Amount.String(), e.Currency, string(e.Kind), string(e.RefType),
		e.RefID, e.Memo, e.CreatedAt.UTC())
	return mapUnique(err)
}

func (r *ledgerRepo) ListEntries(ctx context.Context, accountID string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	var rows []ledgerRow
	err := r.q.SelectContext(ctx, &rows, `
		SELECT id, account_id, amount, currency, kind, ref_type, ref_id, memo, created_at
		FROM ledger_entries WHERE account_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, err
	}

	out := make([]domain.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.LedgerEntry{
			ID:        row.ID,
			AccountID: row.AccountID,
			Amount:    row.Amount,
			Currency:  row.Currency,
			Kind:      domain.EntryKind(row.Kind),
			RefType:   domain.RefType(row.RefType),
			RefID:     row.RefID,
			Memo:      row.Memo,
			CreatedAt: row.CreatedAt.UTC(),
		})
	}
	return out, nil
}

func (r *ledgerRepo) CountByRef(ctx context.Context, refType domain.RefType, refID string) (int, error) {
	var n int
	err := r.q.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM ledger_entries WHERE ref_type = ? AND ref_id = ?`, string(refType), refID)
	return n, err
}
