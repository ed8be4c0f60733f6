package sqlite

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/aussiebroadwan/brokerx/internal/brokerx/domain"
	"github.com/aussiebroadwan/brokerx/internal/brokerx/store"
)

type auditRepo struct {
	q querier
}

type auditRow struct {
	ID        string    `db:"id"`
	Type      string    `db:"type"`
	Actor     string    `db:"actor"`
	AccountID string    `db:"account_id"`
	Payload   string    `db:"payload"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *auditRepo) AppendEvent(ctx context.Context, e domain.AuditEvent) error {
	payload := string(e.Payload)
	if payload == "" {
		payload = "{}"
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO audit_events (id, type, actor, account_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Type, e.Actor, e.AccountID, payload, e.CreatedAt.UTC())
	return mapUnique(err)
}

func (r *auditRepo) ListEvents(ctx context.Context, f store.AuditFilter) ([]domain.AuditEvent, error) {
	var (
		where []string
		args  []any
	)
	if f.AccountID != "" {
		where = append(where, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}

	query := `SELECT id, type, actor, account_id, payload, created_at FROM audit_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit)

	var rows []auditRow
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	out := make([]domain.AuditEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.AuditEvent{
			ID:        row.ID,
			Type:      row.Type,
			Actor:     row.Actor,
			AccountID: row.AccountID,
			Payload:   json.RawMessage(row.Payload),
			CreatedAt: row.CreatedAt.UTC(),
		})
	}
	return out, nil
}
