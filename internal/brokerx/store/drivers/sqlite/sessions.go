package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/store"
)

type sessionsRepo struct {
	q querier
}

type sessionRow struct {
	ID        string       `db:"id"`
	ClientID  string       `db:"client_id"`
	TokenType string       `db:"token_type"`
	TokenHash string       `db:"token_hash"`
	AMR       string       `db:"amr"`
	IP        string       `db:"ip"`
	Device    string       `db:"device"`
	IssuedAt  time.Time    `db:"issued_at"`
	ExpiresAt time.Time    `db:"expires_at"`
	Revoked   bool         `db:"revoked"`
	RevokedAt sql.NullTime `db:"revoked_at"`
}

const sessionColumns = `id, client_id, token_type, token_hash, amr, ip, device, issued_at, expires_at, revoked, revoked_at`

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.ClientID, string(s.TokenType), s.TokenHash, strings.Join(s.AMR, " "),
		s.IP, s.Device, s.IssuedAt.UTC(), s.ExpiresAt.UTC(), s.Revoked, mapOptionalTime(s.RevokedAt))
	return mapUnique(err)
}

func (r *sessionsRepo) GetSession(ctx context.Context, id string) (domain.Session, error) {
	return r.get(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
}

func (r *sessionsRepo) GetSessionByTokenHash(ctx context.Context, hash string) (domain.Session, error) {
	if hash == "" {
		return domain.Session{}, store.ErrNotFound
	}
	return r.get(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token_hash = ?`, hash)
}

func (r *sessionsRepo) UpdateSession(ctx context.Context, s domain.Session) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE sessions SET token_hash = ?, expires_at = ?, revoked = ?, revoked_at = ? WHERE id = ?`,
		s.TokenHash, s.ExpiresAt.UTC(), s.Revoked, mapOptionalTime(s.RevokedAt), s.ID)
	return requireOne(res, err, store.ErrNotFound)
}

func (r *sessionsRepo) DeleteDeadSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE (revoked = 1 AND revoked_at < ?) OR expires_at < ?`, cutoff.UTC(), cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *sessionsRepo) get(ctx context.Context, query string, arg any) (domain.Session, error) {
	var row sessionRow
	if err := r.q.GetContext(ctx, &row, query, arg); err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return domain.Session{
		ID:        row.ID,
		ClientID:  row.ClientID,
		TokenType: domain.TokenType(row.TokenType),
		TokenHash: row.TokenHash,
		AMR:       splitFields(row.AMR),
		IP:        row.IP,
		Device:    row.Device,
		IssuedAt:  row.IssuedAt.UTC(),
		ExpiresAt: row.ExpiresAt.UTC(),
		Revoked:   row.Revoked,
		RevokedAt: mapNullTimePtr(row.RevokedAt),
	}, nil
}
