package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/veriden/idcore"
)

type identityRepo struct{ s *Store }

const identityColumns = `id, national_id_lookup, national_id_enc, email_lookup, email_enc,
	phone_lookup, phone_enc, display_name_enc, status, account_level,
	failed_otp_cycles, created_at, updated_at`

func scanIdentity(row interface{ Scan(...any) error }) (*idcore.Identity, error) {
	var identity idcore.Identity
	err := row.Scan(
		&identity.ID, &identity.NationalIDLookup, &identity.NationalIDEnc,
		&identity.EmailLookup, &identity.EmailEnc,
		&identity.PhoneLookup, &identity.PhoneEnc,
		&identity.DisplayNameEnc, &identity.Status, &identity.AccountLevel,
		&identity.FailedOtpCycles, &identity.CreatedAt, &identity.UpdatedAt,
	)
	if err != nil {
		if noRows(err) {
			return nil, idcore.ErrIdentityNotFound
		}
		return nil, err
	}
	return &identity, nil
}

func (r *identityRepo) Create(ctx context.Context, identity *idcore.Identity) error {
	_, err := r.s.pool.Exec(ctx, `
		INSERT INTO identities (`+identityColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		identity.ID, identity.NationalIDLookup, identity.NationalIDEnc,
		identity.EmailLookup, identity.EmailEnc,
		identity.PhoneLookup, identity.PhoneEnc,
		identity.DisplayNameEnc, identity.Status, identity.AccountLevel,
		identity.FailedOtpCycles, identity.CreatedAt, identity.UpdatedAt,
	)
	return err
}

func (r *identityRepo) ByID(ctx context.Context, id uuid.UUID) (*idcore.Identity, error) {
	row := r.s.pool.QueryRow(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = $1`, id)
	return scanIdentity(row)
}

func (r *identityRepo) ByLookupHash(ctx context.Context, lookupHash string) (*idcore.Identity, error) {
	row := r.s.pool.QueryRow(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE national_id_lookup = $1`, lookupHash)
	return scanIdentity(row)
}

func (r *identityRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status idcore.IdentityStatus, now time.Time) error {
	tag, err := r.s.pool.Exec(ctx,
		`UPDATE identities SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return idcore.ErrIdentityNotFound
	}
	return nil
}

func (r *identityRepo) IncrementFailedOtpCycles(ctx context.Context, id uuid.UUID, windowStart, now time.Time) (int, error) {
	// Cycles outside the window restart the count; last_cycle_at carries
	// the window anchor.
	row := r.s.pool.QueryRow(ctx, `
		UPDATE identities
		SET failed_otp_cycles = CASE
				WHEN last_cycle_at IS NULL OR last_cycle_at < $2 THEN 1
				ELSE failed_otp_cycles + 1
			END,
			last_cycle_at = $3,
			updated_at = $3
		WHERE id = $1
		RETURNING failed_otp_cycles`,
		id, windowStart, now)

	var cycles int
	if err := row.Scan(&cycles); err != nil {
		if noRows(err) {
			return 0, idcore.ErrIdentityNotFound
		}
		return 0, err
	}
	return cycles, nil
}

func (r *identityRepo) ResetFailedOtpCycles(ctx context.Context, id uuid.UUID, now time.Time) error {
	tag, err := r.s.pool.Exec(ctx, `
		UPDATE identities
		SET failed_otp_cycles = 0, last_cycle_at = NULL, updated_at = $2
		WHERE id = $1`,
		id, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return idcore.ErrIdentityNotFound
	}
	return nil
}

func (r *identityRepo) UpdateAccountLevel(ctx context.Context, id uuid.UUID, level idcore.AccountLevel, now time.Time) error {
	tag, err := r.s.pool.Exec(ctx,
		`UPDATE identities SET account_level = $2, updated_at = $3 WHERE id = $1`,
		id, level, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return idcore.ErrIdentityNotFound
	}
	return nil
}
