package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	"github.com/shopspring/decimal"
)

type paymentsRepo struct {
	q querier
}

type payTxRow struct {
	ID             string          `db:"id"`
	AccountID      string          `db:"account_id"`
	Amount         decimal.Decimal `db:"amount"`
	Currency       string          `db:"currency"`
	IdempotencyKey string          `db:"idempotency_key"`
	Status         string          `db:"status"`
	CreatedAt      time.Time       `db:"created_at"`
	SettledAt      sql.NullTime    `db:"settled_at"`
	FailureReason  string          `db:"failure_reason"`
}

const payTxColumns = `id, account_id, amount, currency, idempotency_key, status, created_at, settled_at, failure_reason`

func (r *paymentsRepo) CreatePayTx(ctx context.Context, tx domain.PayTx) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO payment_txs (`+payTxColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.AccountID, tx.Amount.String(), tx.Currency, tx.IdempotencyKey, string(tx.Status),
		tx.CreatedAt.UTC(), mapOptionalTime(tx.SettledAt), tx.FailureReason)
	return mapUnique(err)
}

func (r *paymentsRepo) GetPayTx(ctx context.Context, id string) (domain.PayTx, error) {
	return r.get(ctx, `SELECT `+payTxColumns+` FROM payment_txs WHERE id = ?`, id)
}

func (r *paymentsRepo) GetPayTxByIdempotencyKey(ctx context.Context, key string) (domain.PayTx, error) {
	return r.get(ctx, `SELECT `+payTxColumns+` FROM payment_txs WHERE idempotency_key = ?`, key)
}

func (r *paymentsRepo) TransitionPayTx(ctx context.Context, tx domain.PayTx, from domain.PayTxStatus) (bool, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE payment_txs SET status = ?, settled_at = ?, failure_reason = ?
		WHERE id = ? AND status = ?`,
		string(tx.Status), mapOptionalTime(tx.SettledAt), tx.FailureReason, tx.ID, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *paymentsRepo) get(ctx context.Context, query string, arg any) (domain.PayTx, error) {
	var row payTxRow
	if err := r.q.GetContext(ctx, &row, query, arg); err != nil {
		return domain.PayTx{}, mapNotFound(err)
	}
	return domain.PayTx{
		ID:             row.ID,
		AccountID:      row.AccountID,
		Amount:         row.Amount,
		Currency:       row.Currency,
		IdempotencyKey: row.IdempotencyKey,
		Status:         domain.PayTxStatus(row.Status),
		CreatedAt:      row.CreatedAt.UTC(),
		SettledAt:      mapNullTimePtr(row.SettledAt),
		FailureReason:  row.FailureReason,
	}, nil
}
