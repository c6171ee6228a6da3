package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/veriden/idcore"
)

type auditRepo struct{ s *Store }

const auditColumns = `id, sequence, event_type, identity_id, request_id,
	source_ip, detail, prev_hash, chain_hash, created_at`

func scanAudit(row interface{ Scan(...any) error }) (*idcore.AuditEntry, error) {
	var e idcore.AuditEntry
	err := row.Scan(&e.ID, &e.Sequence, &e.EventType, &e.IdentityID,
		&e.RequestID, &e.SourceIP, &e.Detail, &e.PrevHash, &e.ChainHash,
		&e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *auditRepo) Append(ctx context.Context, entry *idcore.AuditEntry) error {
	_, err := r.s.pool.Exec(ctx, `
		INSERT INTO audit_log (`+auditColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		entry.ID, entry.Sequence, entry.EventType, entry.IdentityID,
		entry.RequestID, entry.SourceIP, entry.Detail, entry.PrevHash,
		entry.ChainHash, entry.CreatedAt,
	)
	return err
}

func (r *auditRepo) Latest(ctx context.Context) (*idcore.AuditEntry, error) {
	row := r.s.pool.QueryRow(ctx, `
		SELECT `+auditColumns+` FROM audit_log
		ORDER BY sequence DESC LIMIT 1`)
	entry, err := scanAudit(row)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return entry, nil
}

func (r *auditRepo) Page(ctx context.Context, afterSequence int64, limit int) ([]*idcore.AuditEntry, error) {
	rows, err := r.s.pool.Query(ctx, `
		SELECT `+auditColumns+` FROM audit_log
		WHERE sequence > $1
		ORDER BY sequence
		LIMIT $2`, afterSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*idcore.AuditEntry
	for rows.Next() {
		entry, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (r *auditRepo) ByIdentity(ctx context.Context, identityID uuid.UUID, limit int) ([]*idcore.AuditEntry, error) {
	rows, err := r.s.pool.Query(ctx, `
		SELECT `+auditColumns+` FROM audit_log
		WHERE identity_id = $1
		ORDER BY sequence DESC
		LIMIT $2`, identityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*idcore.AuditEntry
	for rows.Next() {
		entry, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
