package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/veriden/idcore"
)

type deviceRepo struct{ s *Store }

const deviceColumns = `id, identity_id, fingerprint_hash, user_agent, last_ip,
	trust_level, login_count, revoked, first_seen_at, last_seen_at`

func scanDevice(row interface{ Scan(...any) error }) (*idcore.DeviceSession, error) {
	var d idcore.DeviceSession
	err := row.Scan(&d.ID, &d.IdentityID, &d.FingerprintHash, &d.UserAgent,
		&d.LastIP, &d.TrustLevel, &d.LoginCount, &d.Revoked,
		&d.FirstSeenAt, &d.LastSeenAt)
	if err != nil {
		if noRows(err) {
			return nil, idcore.ErrDeviceNotFound
		}
		return nil, err
	}
	return &d, nil
}

// Touch relies on the (identity_id, fingerprint_hash) unique constraint so
// create-or-bump is a single atomic statement under concurrent logins.
func (r *deviceRepo) Touch(ctx context.Context, identityID uuid.UUID, fingerprintHash, userAgent, ip string, now time.Time) (*idcore.DeviceSession, bool, error) {
	row := r.s.pool.QueryRow(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,1,FALSE,$7,$7)
		ON CONFLICT (identity_id, fingerprint_hash) DO UPDATE SET
			login_count = devices.login_count + 1,
			last_seen_at = EXCLUDED.last_seen_at,
			last_ip = EXCLUDED.last_ip,
			user_agent = EXCLUDED.user_agent
		RETURNING `+deviceColumns+`, (xmax = 0) AS inserted`,
		uuid.New(), identityID, fingerprintHash, userAgent, ip, idcore.TrustLow, now)

	var d idcore.DeviceSession
	var inserted bool
	err := row.Scan(&d.ID, &d.IdentityID, &d.FingerprintHash, &d.UserAgent,
		&d.LastIP, &d.TrustLevel, &d.LoginCount, &d.Revoked,
		&d.FirstSeenAt, &d.LastSeenAt, &inserted)
	if err != nil {
		return nil, false, err
	}
	return &d, inserted, nil
}

func (r *deviceRepo) ByIdentity(ctx context.Context, identityID uuid.UUID) ([]*idcore.DeviceSession, error) {
	rows, err := r.s.pool.Query(ctx, `
		SELECT `+deviceColumns+` FROM devices
		WHERE identity_id = $1
		ORDER BY first_seen_at`, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*idcore.DeviceSession
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *deviceRepo) ByFingerprint(ctx context.Context, identityID uuid.UUID, fingerprintHash string) (*idcore.DeviceSession, error) {
	row := r.s.pool.QueryRow(ctx, `
		SELECT `+deviceColumns+` FROM devices
		WHERE identity_id = $1 AND fingerprint_hash = $2`,
		identityID, fingerprintHash)
	return scanDevice(row)
}

func (r *deviceRepo) UpdateTrust(ctx context.Context, id uuid.UUID, level idcore.TrustLevel) error {
	tag, err := r.s.pool.Exec(ctx,
		`UPDATE devices SET trust_level = $2 WHERE id = $1`, id, level)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return idcore.ErrDeviceNotFound
	}
	return nil
}

func (r *deviceRepo) Revoke(ctx context.Context, id uuid.UUID, now time.Time) error {
	tag, err := r.s.pool.Exec(ctx,
		`UPDATE devices SET revoked = TRUE, last_seen_at = $2 WHERE id = $1`, id, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return idcore.ErrDeviceNotFound
	}
	return nil
}
