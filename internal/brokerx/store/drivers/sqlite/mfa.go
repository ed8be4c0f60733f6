package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/store"
)

type mfaRepo struct {
	q querier
}

type policyRow struct {
	ID        string    `db:"id"`
	ClientID  string    `db:"client_id"`
	Type      string    `db:"type"`
	Active    bool      `db:"active"`
	Secret    string    `db:"secret"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type challengeRow struct {
	ID          string       `db:"id"`
	ClientID    string       `db:"client_id"`
	Type        string       `db:"type"`
	Status      string       `db:"status"`
	CodeHash    string       `db:"code_hash"`
	Attempts    int          `db:"attempts"`
	IP          string       `db:"ip"`
	Device      string       `db:"device"`
	CreatedAt   time.Time    `db:"created_at"`
	ExpiresAt   time.Time    `db:"expires_at"`
	CompletedAt sql.NullTime `db:"completed_at"`
}

func (r *mfaRepo) GetPolicy(ctx context.Context, clientID string) (domain.MFAPolicy, error) {
	var row policyRow
	err := r.q.GetContext(ctx, &row, `
		SELECT id, client_id, type, active, secret, created_at, updated_at
		FROM mfa_policies WHERE client_id = ?`, clientID)
	if err != nil {
		return domain.MFAPolicy{}, mapNotFound(err)
	}
	return domain.MFAPolicy{
		ID:        row.ID,
		ClientID:  row.ClientID,
		Type:      domain.MFAType(row.Type),
		Active:    row.Active,
		Secret:    row.Secret,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}, nil
}

func (r *mfaRepo) UpsertPolicy(ctx context.Context, p domain.MFAPolicy) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO mfa_policies (id, client_id, type, active, secret, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET
			type = excluded.type,
			active = excluded.active,
			secret = excluded.secret,
			updated_at = excluded.updated_at`,
		p.ID, p.ClientID, string(p.Type), p.Active, p.Secret, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	return err
}

func (r *mfaRepo) DeletePolicy(ctx context.Context, clientID string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM mfa_policies WHERE client_id = ?`, clientID)
	return requireOne(res, err, store.ErrNotFound)
}

func (r *mfaRepo) CreateChallenge(ctx context.Context, ch domain.MFAChallenge) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO mfa_challenges (id, client_id, type, status, code_hash, attempts, ip, device, created_at, expires_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ch.ID, ch.ClientID, string(ch.Type), string(ch.Status), ch.CodeHash, ch.Attempts,
		ch.IP, ch.Device, ch.CreatedAt.UTC(), ch.ExpiresAt.UTC(), mapOptionalTime(ch.CompletedAt))
	return mapUnique(err)
}

func (r *mfaRepo) GetChallenge(ctx context.Context, id string) (domain.MFAChallenge, error) {
	var row challengeRow
	err := r.q.GetContext(ctx, &row, `
		SELECT id, client_id, type, status, code_hash, attempts, ip, device, created_at, expires_at, completed_at
		FROM mfa_challenges WHERE id = ?`, id)
	if err != nil {
		return domain.MFAChallenge{}, mapNotFound(err)
	}
	return domain.MFAChallenge{
		ID:          row.ID,
		ClientID:    row.ClientID,
		Type:        domain.MFAType(row.Type),
		Status:      domain.ChallengeStatus(row.Status),
		CodeHash:    row.CodeHash,
		Attempts:    row.Attempts,
		IP:          row.IP,
		Device:      row.Device,
		CreatedAt:   row.CreatedAt.UTC(),
		ExpiresAt:   row.ExpiresAt.UTC(),
		CompletedAt: mapNullTimePtr(row.CompletedAt),
	}, nil
}

func (r *mfaRepo) UpdateChallenge(ctx context.Context, ch domain.MFAChallenge) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE mfa_challenges SET status = ?, attempts = ?, completed_at = ? WHERE id = ?`,
		string(ch.Status), ch.Attempts, mapOptionalTime(ch.CompletedAt), ch.ID)
	return requireOne(res, err, store.ErrNotFound)
}

func (r *mfaRepo) ExpireStaleChallenges(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE mfa_challenges SET status = 'Expired', completed_at = ?
		WHERE status = 'Pending' AND expires_at <= ?`, now.UTC(), now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
