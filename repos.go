package idcore

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// IdentityRepository defines a public type used by idcore APIs.
//
// Implementations must be safe for concurrent use. Repository methods
// return ErrIdentityNotFound (or the matching not-found sentinel) rather
// than a nil entity with a nil error.
type IdentityRepository interface {
	Create(ctx context.Context, identity *Identity) error
	ByID(ctx context.Context, id uuid.UUID) (*Identity, error)
	ByLookupHash(ctx context.Context, lookupHash string) (*Identity, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status IdentityStatus, now time.Time) error
	// IncrementFailedOtpCycles bumps the failed-cycle counter, restarting
	// from 1 when the previous cycle predates windowStart, and returns the
	// new count.
	IncrementFailedOtpCycles(ctx context.Context, id uuid.UUID, windowStart, now time.Time) (int, error)
	ResetFailedOtpCycles(ctx context.Context, id uuid.UUID, now time.Time) error
	UpdateAccountLevel(ctx context.Context, id uuid.UUID, level AccountLevel, now time.Time) error
}

// OtpChallengeRepository defines a public type used by idcore APIs.
//
// Implementations must be safe for concurrent use.
type OtpChallengeRepository interface {
	Create(ctx context.Context, challenge *OtpChallenge) error
	// ActiveByIdentity returns the most recent non-consumed challenge for
	// the identity and channel regardless of expiry, or ErrOtpNotFound.
	ActiveByIdentity(ctx context.Context, identityID uuid.UUID, channel OtpChannel) (*OtpChallenge, error)
	// LatestByIdentity returns the most recent challenge for the identity
	// and channel, consumed or not, or ErrOtpNotFound. The resend cooldown
	// is measured against it.
	LatestByIdentity(ctx context.Context, identityID uuid.UUID, channel OtpChannel) (*OtpChallenge, error)
	IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error)
	MarkConsumed(ctx context.Context, id uuid.UUID) error
}

// CredentialRepository defines a public type used by idcore APIs.
//
// Implementations must be safe for concurrent use.
type CredentialRepository interface {
	ByIdentity(ctx context.Context, identityID uuid.UUID) (*Credential, error)
	Create(ctx context.Context, credential *Credential) error
	Rotate(ctx context.Context, identityID uuid.UUID, newHash string, now time.Time) error
}

// DeviceRepository defines a public type used by idcore APIs.
//
// Implementations must be safe for concurrent use.
type DeviceRepository interface {
	// Touch atomically creates the device row on first sight or bumps its
	// login count and last-seen fields on a repeat sighting. It reports
	// whether the row was created by this call.
	Touch(ctx context.Context, identityID uuid.UUID, fingerprintHash, userAgent, ip string, now time.Time) (*DeviceSession, bool, error)
	ByIdentity(ctx context.Context, identityID uuid.UUID) ([]*DeviceSession, error)
	ByFingerprint(ctx context.Context, identityID uuid.UUID, fingerprintHash string) (*DeviceSession, error)
	UpdateTrust(ctx context.Context, id uuid.UUID, level TrustLevel) error
	Revoke(ctx context.Context, id uuid.UUID, now time.Time) error
}

// RiskEventRepository defines a public type used by idcore APIs.
//
// Implementations must be safe for concurrent use.
type RiskEventRepository interface {
	Create(ctx context.Context, event *RiskEvent) error
	// UnresolvedSince returns unresolved events for the identity created
	// at or after the cutoff, newest first.
	UnresolvedSince(ctx context.Context, identityID uuid.UUID, cutoff time.Time) ([]*RiskEvent, error)
	CountByTypeSince(ctx context.Context, identityID uuid.UUID, eventType RiskEventType, cutoff time.Time) (int, error)
	Resolve(ctx context.Context, id uuid.UUID) error
}

// AuditLogRepository defines a public type used by idcore APIs.
//
// Implementations must be safe for concurrent use. Append is called from a
// single dispatcher goroutine, so sequence assignment needs no cross-writer
// coordination.
type AuditLogRepository interface {
	Append(ctx context.Context, entry *AuditEntry) error
	// Latest returns the most recently appended entry, or (nil, nil) when
	// the log is empty.
	Latest(ctx context.Context) (*AuditEntry, error)
	// Page returns entries ordered by ascending sequence, starting after
	// the given sequence, at most limit rows.
	Page(ctx context.Context, afterSequence int64, limit int) ([]*AuditEntry, error)
	ByIdentity(ctx context.Context, identityID uuid.UUID, limit int) ([]*AuditEntry, error)
}

// TokenIssuer defines a public type used by idcore APIs.
//
// TokenIssuer is the boundary to the external token service; the engine
// hands it a verified identity and receives opaque token strings back.
type TokenIssuer interface {
	Issue(ctx context.Context, identityID string) (access, refresh, refreshID string, expiresAt time.Time, err error)
	// VerifyRefresh checks a presented refresh token and returns its
	// subject, jti, and expiry so the engine can apply the replay guard.
	VerifyRefresh(ctx context.Context, refreshToken string) (identityID, jti string, expiresAt time.Time, err error)
	RefreshTTL() time.Duration
}

// CodeSender defines a public type used by idcore APIs.
//
// CodeSender delivers a plaintext one-time code out of band. Implementations
// must never log the code.
type CodeSender interface {
	Send(ctx context.Context, channel OtpChannel, destination, code string) error
}

// Clock defines a public type used by idcore APIs.
//
// Clock instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
