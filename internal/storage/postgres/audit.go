package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"bullion/internal/audit"
)

const auditColumns = `id, occurred_at, actor, request_id, subject, action, detail, attributes, published_at`

// auditLog writes events to the audit_outbox table in the caller's
// transaction. The outbox relay publishes and marks them.
type auditLog struct {
	q querier
}

func (r *auditLog) Append(ctx context.Context, e audit.Event) error {
	var attrs any
	if len(e.Attributes) > 0 {
		raw, err := json.Marshal(e.Attributes)
		if err != nil {
			return fmt.Errorf("marshal audit attributes: %w", err)
		}
		attrs = string(raw)
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO audit_outbox (`+auditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.Timestamp, e.Actor, e.RequestID, e.Subject, string(e.Action), e.Detail, attrs,
		nullTimePtr(e.PublishedAt),
	)
	return translate(err, "insert audit event")
}

func (r *auditLog) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	return r.list(ctx, `SELECT `+auditColumns+` FROM audit_outbox WHERE subject = $1 ORDER BY seq`, subject)
}

func (r *auditLog) Pending(ctx context.Context, limit int) ([]audit.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.list(ctx, `SELECT `+auditColumns+` FROM audit_outbox
		WHERE published_at IS NULL ORDER BY seq LIMIT $1`, limit)
}

func (r *auditLog) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.q.ExecContext(ctx, `UPDATE audit_outbox SET published_at = $2 WHERE id = ANY($1::uuid[])`,
		pq.Array(ids), at)
	if err != nil {
		return fmt.Errorf("mark audit events published: %w", err)
	}
	return nil
}

func (r *auditLog) list(ctx context.Context, query string, args ...any) ([]audit.Event, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var (
			e         audit.Event
			action    string
			attrs     []byte
			published sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Actor, &e.RequestID, &e.Subject, &action,
			&e.Detail, &attrs, &published); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Action = audit.Action(action)
		e.PublishedAt = timePtr(published)
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &e.Attributes); err != nil {
				return nil, fmt.Errorf("decode audit attributes: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
