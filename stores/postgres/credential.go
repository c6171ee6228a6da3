package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/veriden/idcore"
)

type credentialRepo struct{ s *Store }

func (r *credentialRepo) ByIdentity(ctx context.Context, identityID uuid.UUID) (*idcore.Credential, error) {
	row := r.s.pool.QueryRow(ctx, `
		SELECT id, identity_id, pin_hash, set_at, rotated_at
		FROM credentials WHERE identity_id = $1`, identityID)

	var c idcore.Credential
	if err := row.Scan(&c.ID, &c.IdentityID, &c.PinHash, &c.SetAt, &c.RotatedAt); err != nil {
		if noRows(err) {
			return nil, idcore.ErrPinNotSet
		}
		return nil, err
	}
	return &c, nil
}

func (r *credentialRepo) Create(ctx context.Context, credential *idcore.Credential) error {
	tag, err := r.s.pool.Exec(ctx, `
		INSERT INTO credentials (id, identity_id, pin_hash, set_at, rotated_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (identity_id) DO NOTHING`,
		credential.ID, credential.IdentityID, credential.PinHash,
		credential.SetAt, nullableTime(credential.RotatedAt),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return idcore.ErrPinAlreadySet
	}
	return nil
}

func (r *credentialRepo) Rotate(ctx context.Context, identityID uuid.UUID, newHash string, now time.Time) error {
	tag, err := r.s.pool.Exec(ctx, `
		UPDATE credentials SET pin_hash = $2, rotated_at = $3
		WHERE identity_id = $1`,
		identityID, newHash, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return idcore.ErrPinNotSet
	}
	return nil
}
