package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/veriden/idcore"
)

// The store exposes one typed view per repository interface; the views
// share the underlying maps and mutex.

// Identities describes the identities operation and its observable behavior.
func (s *Store) Identities() idcore.IdentityRepository { return identityRepo{s} }

// Challenges describes the challenges operation and its observable behavior.
func (s *Store) Challenges() idcore.OtpChallengeRepository { return challengeRepo{s} }

// Credentials describes the credentials operation and its observable behavior.
func (s *Store) Credentials() idcore.CredentialRepository { return credentialRepo{s} }

// Devices describes the devices operation and its observable behavior.
func (s *Store) Devices() idcore.DeviceRepository { return deviceRepo{s} }

// RiskEvents describes the risk events operation and its observable behavior.
func (s *Store) RiskEvents() idcore.RiskEventRepository { return riskRepo{s} }

// AuditLog describes the audit log operation and its observable behavior.
func (s *Store) AuditLog() idcore.AuditLogRepository { return auditRepo{s} }

type identityRepo struct{ s *Store }

func (r identityRepo) Create(ctx context.Context, identity *idcore.Identity) error {
	return r.s.Create(ctx, identity)
}

func (r identityRepo) ByID(ctx context.Context, id uuid.UUID) (*idcore.Identity, error) {
	return r.s.ByID(ctx, id)
}

func (r identityRepo) ByLookupHash(ctx context.Context, lookupHash string) (*idcore.Identity, error) {
	return r.s.ByLookupHash(ctx, lookupHash)
}

func (r identityRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status idcore.IdentityStatus, now time.Time) error {
	return r.s.UpdateStatus(ctx, id, status, now)
}

func (r identityRepo) IncrementFailedOtpCycles(ctx context.Context, id uuid.UUID, windowStart, now time.Time) (int, error) {
	return r.s.IncrementFailedOtpCycles(ctx, id, windowStart, now)
}

func (r identityRepo) ResetFailedOtpCycles(ctx context.Context, id uuid.UUID, now time.Time) error {
	return r.s.ResetFailedOtpCycles(ctx, id, now)
}

func (r identityRepo) UpdateAccountLevel(ctx context.Context, id uuid.UUID, level idcore.AccountLevel, now time.Time) error {
	return r.s.UpdateAccountLevel(ctx, id, level, now)
}

type challengeRepo struct{ s *Store }

func (r challengeRepo) Create(ctx context.Context, challenge *idcore.OtpChallenge) error {
	return r.s.CreateChallenge(ctx, challenge)
}

func (r challengeRepo) ActiveByIdentity(ctx context.Context, identityID uuid.UUID, channel idcore.OtpChannel) (*idcore.OtpChallenge, error) {
	return r.s.ActiveByIdentity(ctx, identityID, channel)
}

func (r challengeRepo) LatestByIdentity(ctx context.Context, identityID uuid.UUID, channel idcore.OtpChannel) (*idcore.OtpChallenge, error) {
	return r.s.LatestByIdentity(ctx, identityID, channel)
}

func (r challengeRepo) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	return r.s.IncrementAttempts(ctx, id)
}

func (r challengeRepo) MarkConsumed(ctx context.Context, id uuid.UUID) error {
	return r.s.MarkConsumed(ctx, id)
}

type credentialRepo struct{ s *Store }

func (r credentialRepo) ByIdentity(ctx context.Context, identityID uuid.UUID) (*idcore.Credential, error) {
	return r.s.ByIdentity(ctx, identityID)
}

func (r credentialRepo) Create(ctx context.Context, credential *idcore.Credential) error {
	return r.s.CreateCredential(ctx, credential)
}

func (r credentialRepo) Rotate(ctx context.Context, identityID uuid.UUID, newHash string, now time.Time) error {
	return r.s.Rotate(ctx, identityID, newHash, now)
}

type deviceRepo struct{ s *Store }

func (r deviceRepo) Touch(ctx context.Context, identityID uuid.UUID, fingerprintHash, userAgent, ip string, now time.Time) (*idcore.DeviceSession, bool, error) {
	return r.s.Touch(ctx, identityID, fingerprintHash, userAgent, ip, now)
}

func (r deviceRepo) ByIdentity(ctx context.Context, identityID uuid.UUID) ([]*idcore.DeviceSession, error) {
	return r.s.DevicesByIdentity(ctx, identityID)
}

func (r deviceRepo) ByFingerprint(ctx context.Context, identityID uuid.UUID, fingerprintHash string) (*idcore.DeviceSession, error) {
	return r.s.ByFingerprint(ctx, identityID, fingerprintHash)
}

func (r deviceRepo) UpdateTrust(ctx context.Context, id uuid.UUID, level idcore.TrustLevel) error {
	return r.s.UpdateTrust(ctx, id, level)
}

func (r deviceRepo) Revoke(ctx context.Context, id uuid.UUID, now time.Time) error {
	return r.s.Revoke(ctx, id, now)
}

type riskRepo struct{ s *Store }

func (r riskRepo) Create(ctx context.Context, event *idcore.RiskEvent) error {
	return r.s.CreateRiskEvent(ctx, event)
}

func (r riskRepo) UnresolvedSince(ctx context.Context, identityID uuid.UUID, cutoff time.Time) ([]*idcore.RiskEvent, error) {
	return r.s.UnresolvedSince(ctx, identityID, cutoff)
}

func (r riskRepo) CountByTypeSince(ctx context.Context, identityID uuid.UUID, eventType idcore.RiskEventType, cutoff time.Time) (int, error) {
	return r.s.CountByTypeSince(ctx, identityID, eventType, cutoff)
}

func (r riskRepo) Resolve(ctx context.Context, id uuid.UUID) error {
	return r.s.Resolve(ctx, id)
}

type auditRepo struct{ s *Store }

func (r auditRepo) Append(ctx context.Context, entry *idcore.AuditEntry) error {
	return r.s.Append(ctx, entry)
}

func (r auditRepo) Latest(ctx context.Context) (*idcore.AuditEntry, error) {
	return r.s.Latest(ctx)
}

func (r auditRepo) Page(ctx context.Context, afterSequence int64, limit int) ([]*idcore.AuditEntry, error) {
	return r.s.Page(ctx, afterSequence, limit)
}

func (r auditRepo) ByIdentity(ctx context.Context, identityID uuid.UUID, limit int) ([]*idcore.AuditEntry, error) {
	return r.s.AuditByIdentity(ctx, identityID, limit)
}
