package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/veriden/idcore"
)

type challengeRepo struct{ s *Store }

func (r *challengeRepo) Create(ctx context.Context, challenge *idcore.OtpChallenge) error {
	_, err := r.s.pool.Exec(ctx, `
		INSERT INTO otp_challenges
			(id, identity_id, channel, code_hash, attempts, max_attempts, consumed, expires_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		challenge.ID, challenge.IdentityID, challenge.Channel, challenge.CodeHash,
		challenge.Attempts, challenge.MaxAttempts, challenge.Consumed,
		challenge.ExpiresAt, challenge.CreatedAt,
	)
	return err
}

func (r *challengeRepo) ActiveByIdentity(ctx context.Context, identityID uuid.UUID, channel idcore.OtpChannel) (*idcore.OtpChallenge, error) {
	row := r.s.pool.QueryRow(ctx, `
		SELECT id, identity_id, channel, code_hash, attempts, max_attempts, consumed, expires_at, created_at
		FROM otp_challenges
		WHERE identity_id = $1 AND channel = $2 AND NOT consumed
		ORDER BY created_at DESC
		LIMIT 1`,
		identityID, channel)

	var c idcore.OtpChallenge
	err := row.Scan(&c.ID, &c.IdentityID, &c.Channel, &c.CodeHash,
		&c.Attempts, &c.MaxAttempts, &c.Consumed, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		if noRows(err) {
			return nil, idcore.ErrOtpNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *challengeRepo) LatestByIdentity(ctx context.Context, identityID uuid.UUID, channel idcore.OtpChannel) (*idcore.OtpChallenge, error) {
	row := r.s.pool.QueryRow(ctx, `
		SELECT id, identity_id, channel, code_hash, attempts, max_attempts, consumed, expires_at, created_at
		FROM otp_challenges
		WHERE identity_id = $1 AND channel = $2
		ORDER BY created_at DESC
		LIMIT 1`,
		identityID, channel)

	var c idcore.OtpChallenge
	err := row.Scan(&c.ID, &c.IdentityID, &c.Channel, &c.CodeHash,
		&c.Attempts, &c.MaxAttempts, &c.Consumed, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		if noRows(err) {
			return nil, idcore.ErrOtpNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *challengeRepo) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	row := r.s.pool.QueryRow(ctx, `
		UPDATE otp_challenges SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts`, id)

	var attempts int
	if err := row.Scan(&attempts); err != nil {
		if noRows(err) {
			return 0, idcore.ErrOtpNotFound
		}
		return 0, err
	}
	return attempts, nil
}

func (r *challengeRepo) MarkConsumed(ctx context.Context, id uuid.UUID) error {
	tag, err := r.s.pool.Exec(ctx,
		`UPDATE otp_challenges SET consumed = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return idcore.ErrOtpNotFound
	}
	return nil
}
