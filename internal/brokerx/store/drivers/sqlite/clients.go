package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/store"
)

type clientsRepo struct {
	q querier
}

type clientRow struct {
	ID           string       `db:"id"`
	Email        string       `db:"email"`
	Phone        string       `db:"phone"`
	FullName     string       `db:"full_name"`
	BirthDate    sql.NullTime `db:"birth_date"`
	PasswordHash string       `db:"password_hash"`
	Status       string       `db:"status"`
	Version      int64        `db:"version"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
}

type kycRow struct {
	ID        string    `db:"id"`
	ClientID  string    `db:"client_id"`
	Level     string    `db:"level"`
	Status    string    `db:"status"`
	UpdatedAt time.Time `db:"updated_at"`
}

type codeRow struct {
	ID         string       `db:"id"`
	ClientID   string       `db:"client_id"`
	Channel    string       `db:"channel"`
	Status     string       `db:"status"`
	CodeHash   string       `db:"code_hash"`
	Attempts   int          `db:"attempts"`
	ExpiresAt  time.Time    `db:"expires_at"`
	CreatedAt  time.Time    `db:"created_at"`
	VerifiedAt sql.NullTime `db:"verified_at"`
}

const clientColumns = `id, email, phone, full_name, birth_date, password_hash, status, version, created_at, updated_at`

// CreateClient inserts the client with its KYC case and codes in one
// transaction.
func (r *clientsRepo) CreateClient(ctx context.Context, c *domain.Client) error {
	rec := c.Record()
	return atomically(ctx, r.q, func(q querier) error {
		_, err := q.NamedExecContext(ctx, `
			INSERT INTO clients (`+clientColumns+`)
			VALUES (:id, :email, :phone, :full_name, :birth_date, :password_hash, :status, :version, :created_at, :updated_at)`,
			toClientRow(rec))
		if err != nil {
			return mapUnique(err)
		}
		return saveChildren(ctx, q, c)
	})
}

func (r *clientsRepo) GetClientByID(ctx context.Context, id string) (*domain.Client, error) {
	return r.load(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id)
}

func (r *clientsRepo) GetClientByEmail(ctx context.Context, email string) (*domain.Client, error) {
	return r.load(ctx, `SELECT `+clientColumns+` FROM clients WHERE email = ?`, email)
}

// SaveClient writes the client row and its children as one unit. Status
// never lands without the codes and KYC case that justify it.
func (r *clientsRepo) SaveClient(ctx context.Context, c *domain.Client) error {
	rec := c.Record()
	err := atomically(ctx, r.q, func(q querier) error {
		res, err := q.ExecContext(ctx, `
			UPDATE clients
			SET phone = ?, full_name = ?, status = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND version = ?`,
			rec.Phone, rec.FullName, string(rec.Status), rec.UpdatedAt.UTC(), rec.ID, rec.Version)
		if err := requireOne(res, err, store.ErrConflict); err != nil {
			return err
		}
		return saveChildren(ctx, q, c)
	})
	if err != nil {
		return err
	}
	c.SetVersion(rec.Version + 1)
	return nil
}

func (r *clientsRepo) ExpireStaleCodes(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE contact_codes SET status = 'Expired' WHERE status = 'Pending' AND expires_at <= ?`,
		now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// saveChildren upserts the KYC case and every contact code.
func saveChildren(ctx context.Context, q querier, c *domain.Client) error {
	if kyc, ok := c.KYC(); ok {
		_, err := q.ExecContext(ctx, `
			INSERT INTO kyc_cases (id, client_id, level, status, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET level = excluded.level, status = excluded.status, updated_at = excluded.updated_at`,
			kyc.ID, c.ID(), kyc.Level, string(kyc.Status), kyc.UpdatedAt.UTC())
		if err != nil {
			return err
		}
	}

	for _, code := range c.Codes() {
		_, err := q.ExecContext(ctx, `
			INSERT INTO contact_codes (id, client_id, channel, status, code_hash, attempts, expires_at, created_at, verified_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET status = excluded.status, attempts = excluded.attempts, verified_at = excluded.verified_at`,
			code.ID, c.ID(), string(code.Channel), string(code.Status), code.CodeHash, code.Attempts,
			code.ExpiresAt.UTC(), code.CreatedAt.UTC(), mapOptionalTime(code.VerifiedAt))
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *clientsRepo) load(ctx context.Context, query string, arg any) (*domain.Client, error) {
	var row clientRow
	if err := r.q.GetContext(ctx, &row, query, arg); err != nil {
		return nil, mapNotFound(err)
	}

	var kyc *domain.KYCCase
	var kr kycRow
	err := r.q.GetContext(ctx, &kr, `SELECT id, client_id, level, status, updated_at FROM kyc_cases WHERE client_id = ?`, row.ID)
	switch {
	case err == nil:
		kyc = &domain.KYCCase{
			ID:        kr.ID,
			ClientID:  kr.ClientID,
			Level:     kr.Level,
			Status:    domain.KYCStatus(kr.Status),
			UpdatedAt: kr.UpdatedAt.UTC(),
		}
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}

	var codeRows []codeRow
	if err := r.q.SelectContext(ctx, &codeRows, `
		SELECT id, client_id, channel, status, code_hash, attempts, expires_at, created_at, verified_at
		FROM contact_codes WHERE client_id = ? ORDER BY created_at, id`, row.ID); err != nil {
		return nil, err
	}
	codes := make([]domain.ContactCode, 0, len(codeRows))
	for _, cr := range codeRows {
		codes = append(codes, domain.ContactCode{
			ID:         cr.ID,
			ClientID:   cr.ClientID,
			Channel:    domain.Channel(cr.Channel),
			Status:     domain.CodeStatus(cr.Status),
			CodeHash:   cr.CodeHash,
			Attempts:   cr.Attempts,
			ExpiresAt:  cr.ExpiresAt.UTC(),
			CreatedAt:  cr.CreatedAt.UTC(),
			VerifiedAt: mapNullTimePtr(cr.VerifiedAt),
		})
	}

	var accountIDs []string
	if err := r.q.SelectContext(ctx, &accountIDs,
		`SELECT id FROM accounts WHERE client_id = ? ORDER BY created_at, id`, row.ID); err != nil {
		return nil, err
	}

	return domain.ClientFromRecord(fromClientRow(row), kyc, codes, accountIDs), nil
}

func toClientRow(rec domain.ClientRecord) clientRow {
	return clientRow{
		ID:           rec.ID,
		Email:        rec.Email,
		Phone:        rec.Phone,
		FullName:     rec.FullName,
		BirthDate:    mapOptionalTime(rec.BirthDate),
		PasswordHash: rec.PasswordHash,
		Status:       string(rec.Status),
		Version:      rec.Version,
		CreatedAt:    rec.CreatedAt.UTC(),
		UpdatedAt:    rec.UpdatedAt.UTC(),
	}
}

func fromClientRow(row clientRow) domain.ClientRecord {
	return domain.ClientRecord{
		ID:           row.ID,
		Email:        row.Email,
		Phone:        row.Phone,
		FullName:     row.FullName,
		BirthDate:    mapNullTimePtr(row.BirthDate),
		PasswordHash: row.PasswordHash,
		Status:       domain.ClientStatus(row.Status),
		Version:      row.Version,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}
