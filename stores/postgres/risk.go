package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/veriden/idcore"
)

type riskRepo struct{ s *Store }

func (r *riskRepo) Create(ctx context.Context, event *idcore.RiskEvent) error {
	_, err := r.s.pool.Exec(ctx, `
		INSERT INTO risk_events
			(id, identity_id, event_type, score, level, source_ip, detail, resolved, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		event.ID, event.IdentityID, event.Type, event.Score, event.Level,
		event.SourceIP, event.Detail, event.Resolved, event.CreatedAt,
	)
	return err
}

func (r *riskRepo) UnresolvedSince(ctx context.Context, identityID uuid.UUID, cutoff time.Time) ([]*idcore.RiskEvent, error) {
	rows, err := r.s.pool.Query(ctx, `
		SELECT id, identity_id, event_type, score, level, source_ip, detail, resolved, created_at
		FROM risk_events
		WHERE identity_id = $1 AND NOT resolved AND created_at >= $2
		ORDER BY created_at DESC`,
		identityID, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*idcore.RiskEvent
	for rows.Next() {
		var e idcore.RiskEvent
		if err := rows.Scan(&e.ID, &e.IdentityID, &e.Type, &e.Score, &e.Level,
			&e.SourceIP, &e.Detail, &e.Resolved, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *riskRepo) CountByTypeSince(ctx context.Context, identityID uuid.UUID, eventType idcore.RiskEventType, cutoff time.Time) (int, error) {
	var count int
	err := r.s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM risk_events
		WHERE identity_id = $1 AND event_type = $2 AND created_at >= $3`,
		identityID, eventType, cutoff).Scan(&count)
	return count, err
}

func (r *riskRepo) Resolve(ctx context.Context, id uuid.UUID) error {
	tag, err := r.s.pool.Exec(ctx,
		`UPDATE risk_events SET resolved = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return idcore.ErrIdentityNotFound
	}
	return nil
}
