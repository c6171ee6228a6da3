// Package memory provides in-process repository implementations backed by
// maps and a mutex. It serves development mode and integration tests; the
// postgres package is the production store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veriden/idcore"
)

// Store defines a public type used by idcore APIs.
//
// Store instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Store struct {
	mu sync.RWMutex

	identities  map[uuid.UUID]*idcore.Identity
	byLookup    map[string]uuid.UUID
	challenges  map[uuid.UUID]*idcore.OtpChallenge
	credentials map[uuid.UUID]*idcore.Credential // keyed by identity id
	devices     map[uuid.UUID]*idcore.DeviceSession
	riskEvents  map[uuid.UUID]*idcore.RiskEvent
	auditLog    []*idcore.AuditEntry

	cycleTimes map[uuid.UUID]time.Time
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Store {
	return &Store{
		identities:  make(map[uuid.UUID]*idcore.Identity),
		byLookup:    make(map[string]uuid.UUID),
		challenges:  make(map[uuid.UUID]*idcore.OtpChallenge),
		credentials: make(map[uuid.UUID]*idcore.Credential),
		devices:     make(map[uuid.UUID]*idcore.DeviceSession),
		riskEvents:  make(map[uuid.UUID]*idcore.RiskEvent),
		cycleTimes:  make(map[uuid.UUID]time.Time),
	}
}

// --- idcore.IdentityRepository ---

// Create describes the create operation and its observable behavior.
//
// Create may return an error when input validation, dependency calls, or security checks fail.
func (s *Store) Create(ctx context.Context, identity *idcore.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byLookup[identity.NationalIDLookup]; ok {
		return idcore.ErrIdentityExists
	}
	cp := *identity
	s.identities[identity.ID] = &cp
	s.byLookup[identity.NationalIDLookup] = identity.ID
	return nil
}

// ByID describes the by i d operation and its observable behavior.
//
// ByID may return an error when input validation, dependency calls, or security checks fail.
func (s *Store) ByID(ctx context.Context, id uuid.UUID) (*idcore.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.identities[id]
	if !ok {
		return nil, idcore.ErrIdentityNotFound
	}
	cp := *identity
	return &cp, nil
}

// ByLookupHash describes the by lookup hash operation and its observable behavior.
//
// ByLookupHash may return an error when input validation, dependency calls, or security checks fail.
func (s *Store) ByLookupHash(ctx context.Context, lookupHash string) (*idcore.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byLookup[lookupHash]
	if !ok {
		return nil, idcore.ErrIdentityNotFound
	}
	cp := *s.identities[id]
	return &cp, nil
}

// UpdateStatus describes the update status operation and its observable behavior.
//
// UpdateStatus may return an error when input validation, dependency calls, or security checks fail.
func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, status idcore.IdentityStatus, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.identities[id]
	if !ok {
		return idcore.ErrIdentityNotFound
	}
	identity.Status = status
	identity.UpdatedAt = now
	return nil
}

// IncrementFailedOtpCycles describes the increment failed otp cycles operation and its observable behavior.
//
// IncrementFailedOtpCycles may return an error when input validation, dependency calls, or security checks fail.
func (s *Store) IncrementFailedOtpCycles(ctx context.Context, id uuid.UUID, windowStart, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.identities[id]
	if !ok {
		return 0, idcore.ErrIdentityNotFound
	}
	if last, ok := s.cycleTimes[id]; !ok || last.Before(windowStart) {
		identity.FailedOtpCycles = 0
	}
	identity.FailedOtpCycles++
	identity.UpdatedAt = now
	s.cycleTimes[id] = now
	return identity.FailedOtpCycles, nil
}

// ResetFailedOtpCycles describes the reset failed otp cycles operation and its observable behavior.
//
// ResetFailedOtpCycles may return an error when input validation, dependency calls, or security checks fail.
func (s *Store) ResetFailedOtpCycles(ctx context.Context, id uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.identities[id]
	if !ok {
		return idcore.ErrIdentityNotFound
	}
	identity.FailedOtpCycles = 0
	identity.UpdatedAt = now
	delete(s.cycleTimes, id)
	return nil
}

// UpdateAccountLevel describes the update account level operation and its observable behavior.
//
// UpdateAccountLevel may return an error when input validation, dependency calls, or security checks fail.
func (s *Store) UpdateAccountLevel(ctx context.Context, id uuid.UUID, level idcore.AccountLevel, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.identities[id]
	if !ok {
		return idcore.ErrIdentityNotFound
	}
	identity.AccountLevel = level
	identity.UpdatedAt = now
	return nil
}

// --- idcore.OtpChallengeRepository ---

// CreateChallenge describes the create challenge operation and its observable behavior.
//
// CreateChallenge may return an error when input validation, dependency calls, or security checks fail.
func (s *Store) CreateChallenge(ctx context.Context, challenge *idcore.OtpChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *challenge
	s.challenges[challenge.ID] = &cp
	return nil
}

// ActiveByIdentity describes the active by identity operation and its observable behavior.
//
// ActiveByIdentity may return an error when input validation, dependency calls, or security checks fail.
func (s *Store) ActiveByIdentity(ctx context.Context, identityID uuid.UUID, channel idcore.OtpChannel) (*idcore.OtpChallenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *idcore.OtpChallenge
	for _, c := range s.challenges {
		if c.IdentityID != identityID || c.Channel != channel || c.Consumed {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, idcore.ErrOtpNotFound
	}
	cp := *latest
	return &cp, nil
}

// LatestByIdentity describes the latest by identity operation and its observable behavior.
//
// LatestByIdentity may return an error when input validation, dependency calls, or security checks fail.
func (s *Store) LatestByIdentity(ctx context.Context, identityID uuid.UUID, channel idcore.OtpChannel) (*idcore.OtpChallenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *idcore.OtpChallenge
	for _, c := range s.challenges {
		if c.IdentityID != identityID || c.Channel != channel {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, idcore.ErrOtpNotFound
	}
	cp := *latest
	return &cp, nil
}

// IncrementAttempts describes the increment attempts operation and its observable behavior.
//
// IncrementAttempts may return an error when input validation, dependency calls, or security checks fail.
func (s *Store) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[id]
	if !ok {
		return 0, idcore.ErrOtpNotFound
	}
	c.Attempts++
	return c.Attempts, nil
}

// MarkConsumed describes the mark consumed operation and its observable behavior.
//
// MarkConsumed may return an error when input validation, dependency calls, or security checks fail.
func (s *Store) MarkConsumed(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[id]
	if !ok {
		return idcore.ErrOtpNotFound
	}
	c.Consumed = true
	return nil
}

// --- idcore.CredentialRepository ---

// ByIdentity describes the by identity operation and its observable behavior.
//
// ByIdentity may return an error when input validation, dependency calls, or security checks fail.
func (s *Store) ByIdentity(ctx context.Context, identityID uuid.UUID) (*idcore.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	credential, ok := s.credentials[identityID]
	if !ok {
		return nil, idcore.ErrPinNotSet
	}
	cp := *credential
	return &cp, nil
}

// CreateCredential describes the create credential operation and its observable behavior.
//
// CreateCredential may return an error when input validation, dependency calls, or security checks fail.
func (s *Store) CreateCredential(ctx context.Context, credential *idcore.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.credentials[credential.IdentityID]; ok {
		return idcore.ErrPinAlreadySet
	}
	cp := *credential
	s.credentials[credential.IdentityID] = &cp
	return nil
}

// Rotate describes the rotate operation and its observable behavior.
//
// Rotate may return an error when input validation, dependency calls, or security checks fail.
func (s *Store) Rotate(ctx context.Context, identityID uuid.UUID, newHash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	credential, ok := s.credentials[identityID]
	if !ok {
		return idcore.ErrPinNotSet
	}
	credential.PinHash = newHash
	rotated := now
	credential.RotatedAt = &rotated
	return nil
}

// --- idcore.DeviceRepository ---

// Touch describes the touch operation and its observable behavior.
//
// Touch may return an error when input validation, dependency calls, or security checks fail.
func (s *Store) Touch(ctx context.Context, identityID uuid.UUID, fingerprintHash, userAgent, ip string, now time.Time) (*idcore.DeviceSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.devices {
		if d.IdentityID == identityID && d.FingerprintHash == fingerprintHash {
			d.LoginCount++
			d.LastSeenAt = now
			d.LastIP = ip
			d.UserAgent = userAgent
			cp := *d
			return &cp, false, nil
		}
	}
	device := &idcore.DeviceSession{
		ID:              uuid.New(),
		IdentityID:      identityID,
		FingerprintHash: fingerprintHash,
		UserAgent:       userAgent,
		LastIP:          ip,
		TrustLevel:      idcore.TrustLow,
		LoginCount:      1,
		FirstSeenAt:     now,
		LastSeenAt:      now,
	}
	s.devices[device.ID] = device
	cp := *device
	return &cp, true, nil
}

// DevicesByIdentity describes the devices by identity operation and its observable behavior.
//
// DevicesByIdentity may return an error when input validation, dependency calls, or security checks fail.
func (s *Store) DevicesByIdentity(ctx context.Context, identityID uuid.UUID) ([]*idcore.DeviceSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*idcore.DeviceSession
	for _, d := range s.devices {
		if d.IdentityID == identityID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FirstSeenAt.Before(out[j].FirstSeenAt) })
	return out, nil
}

// ByFingerprint describes the by fingerprint operation and its observable behavior.
//
// ByFingerprint may return an error when input validation, dependency calls, or security checks fail.
func (s *Store) ByFingerprint(ctx context.Context, identityID uuid.UUID, fingerprintHash string) (*idcore.DeviceSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.devices {
		if d.IdentityID == identityID && d.FingerprintHash == fingerprintHash {
			cp := *d
			return &cp, nil
		}
	}
	return nil, idcore.ErrDeviceNotFound
}

// UpdateTrust describes the update trust operation and its observable behavior.
//
// UpdateTrust may return an error when input validation, dependency calls, or security checks fail.
func (s *Store) UpdateTrust(ctx context.Context, id uuid.UUID, level idcore.TrustLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return idcore.ErrDeviceNotFound
	}
	d.TrustLevel = level
	return nil
}

// Revoke describes the revoke operation and its observable behavior.
//
// Revoke may return an error when input validation, dependency calls, or security checks fail.
func (s *Store) Revoke(ctx context.Context, id uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return idcore.ErrDeviceNotFound
	}
	d.Revoked = true
	d.LastSeenAt = now
	return nil
}

// --- idcore.RiskEventRepository ---

// CreateRiskEvent describes the create risk event operation and its observable behavior.
//
// CreateRiskEvent may return an error when input validation, dependency calls, or security checks fail.
func (s *Store) CreateRiskEvent(ctx context.Context, event *idcore.RiskEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *event
	s.riskEvents[event.ID] = &cp
	return nil
}

// UnresolvedSince describes the unresolved since operation and its observable behavior.
//
// UnresolvedSince may return an error when input validation, dependency calls, or security checks fail.
func (s *Store) UnresolvedSince(ctx context.Context, identityID uuid.UUID, cutoff time.Time) ([]*idcore.RiskEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*idcore.RiskEvent
	for _, event := range s.riskEvents {
		if event.Resolved || event.IdentityID == nil || *event.IdentityID != identityID {
			continue
		}
		if event.CreatedAt.Before(cutoff) {
			continue
		}
		cp := *event
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// CountByTypeSince describes the count by type since operation and its observable behavior.
//
// CountByTypeSince may return an error when input validation, dependency calls, or security checks fail.
func (s *Store) CountByTypeSince(ctx context.Context, identityID uuid.UUID, eventType idcore.RiskEventType, cutoff time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, event := range s.riskEvents {
		if event.IdentityID == nil || *event.IdentityID != identityID {
			continue
		}
		if event.Type == eventType && !event.CreatedAt.Before(cutoff) {
			count++
		}
	}
	return count, nil
}

// Resolve describes the resolve operation and its observable behavior.
//
// Resolve may return an error when input validation, dependency calls, or security checks fail.
func (s *Store) Resolve(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.riskEvents[id]
	if !ok {
		return idcore.ErrIdentityNotFound
	}
	event.Resolved = true
	return nil
}

// --- idcore.AuditLogRepository ---

// Append describes the append operation and its observable behavior.
//
// Append may return an error when input validation, dependency calls, or security checks fail.
func (s *Store) Append(ctx context.Context, entry *idcore.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	s.auditLog = append(s.auditLog, &cp)
	return nil
}

// Latest describes the latest operation and its observable behavior.
//
// Latest may return an error when input validation, dependency calls, or security checks fail.
func (s *Store) Latest(ctx context.Context) (*idcore.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.auditLog) == 0 {
		return nil, nil
	}
	cp := *s.auditLog[len(s.auditLog)-1]
	return &cp, nil
}

// Page describes the page operation and its observable behavior.
//
// Page may return an error when input validation, dependency calls, or security checks fail.
func (s *Store) Page(ctx context.Context, afterSequence int64, limit int) ([]*idcore.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*idcore.AuditEntry
	for _, entry := range s.auditLog {
		if entry.Sequence <= afterSequence {
			continue
		}
		cp := *entry
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// AuditByIdentity describes the audit by identity operation and its observable behavior.
//
// AuditByIdentity may return an error when input validation, dependency calls, or security checks fail.
func (s *Store) AuditByIdentity(ctx context.Context, identityID uuid.UUID, limit int) ([]*idcore.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*idcore.AuditEntry
	for i := len(s.auditLog) - 1; i >= 0 && len(out) < limit; i-- {
		entry := s.auditLog[i]
		if entry.IdentityID != nil && *entry.IdentityID == identityID {
			cp := *entry
			out = append(out, &cp)
		}
	}
	return out, nil
}
