package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/store"
	"github.com/shopspring/decimal"
)

type accountsRepo struct {
	q querier
}

type accountRow struct {
	ID        string    `db:"id"`
	ClientID  string    `db:"client_id"`
	Number    string    `db:"number"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (row accountRow) toDomain() domain.Account {
	return domain.Account{
		ID:        row.ID,
		ClientID:  row.ClientID,
		Number:    row.Number,
		Status:    domain.AccountStatus(row.Status),
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO accounts (id, client_id, number, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.ClientID, a.Number, string(a.Status), a.CreatedAt.UTC(), a.UpdatedAt.UTC())
	return mapUnique(err)
}

func (r *accountsRepo) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	var row accountRow
	err := r.q.GetContext(ctx, &row,
		`SELECT id, client_id, number, status, created_at, updated_at FROM accounts WHERE id = ?`, id)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	return row.toDomain(), nil
}

func (r *accountsRepo) ListAccountsByClient(ctx context.Context, clientID string) ([]domain.Account, error) {
	var rows []accountRow
	err := r.q.SelectContext(ctx, &rows, `
		SELECT id, client_id, number, status, created_at, updated_at
		FROM accounts WHERE client_id = ? ORDER BY created_at, id`, clientID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Account, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *accountsRepo) UpdateAccountStatus(ctx context.Context, a domain.Account) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE accounts SET status = ?, updated_at = ? WHERE id = ?`,
		string(a.Status), a.UpdatedAt.UTC(), a.ID)
	return requireOne(res, err, store.ErrNotFound)
}

type walletsRepo struct {
	q querier
}

type walletRow struct {
	ID        string          `db:"id"`
	AccountID string          `db:"account_id"`
	Currency  string          `db:"currency"`
	Balance   decimal.Decimal `db:"balance"`
	Version   int64           `db:"version"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func (r *walletsRepo) CreateWallet(ctx context.Context, w domain.Wallet) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO wallets (id, account_id, currency, balance, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		w.ID, w.AccountID, w.Currency, w.Balance.String(), w.Version, w.UpdatedAt.UTC())
	return mapUnique(err)
}

func (r *walletsRepo) GetWalletByAccount(ctx context.Context, accountID string) (domain.Wallet, error) {
	var row walletRow
	err := r.q.GetContext(ctx, &row, `
		SELECT id, account_id, currency, balance, version, updated_at
		FROM wallets WHERE account_id = ?`, accountID)
	if err != nil {
		return domain.Wallet{}, mapNotFound(err)
	}
	return domain.Wallet{
		ID:        row.ID,
		AccountID: row.AccountID,
		Currency:  row.Currency,
		Balance:   row.Balance,
		Version:   row.Version,
		UpdatedAt: row.UpdatedAt.UTC(),
	}, nil
}

func (r *walletsRepo) SaveWallet(ctx context.Context, w *domain.Wallet) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE wallets SET balance = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		w.Balance.String(), w.UpdatedAt.UTC(), w.ID, w.Version)
	if err := requireOne(res, err, store.ErrConflict); err != nil {
		return err
	}
	w.Version++
	return nil
}
