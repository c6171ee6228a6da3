package idcore

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/veriden/idcore/crypto"
)

// --- in-test repositories ---

type memIdentities struct {
	mu         sync.Mutex
	byID       map[uuid.UUID]*Identity
	byLookup   map[string]uuid.UUID
	cycleTimes map[uuid.UUID]time.Time
}

func newMemIdentities() *memIdentities {
	return &memIdentities{
		byID:       make(map[uuid.UUID]*Identity),
		byLookup:   make(map[string]uuid.UUID),
		cycleTimes: make(map[uuid.UUID]time.Time),
	}
}

func (m *memIdentities) Create(ctx context.Context, identity *Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byLookup[identity.NationalIDLookup]; ok {
		return ErrIdentityExists
	}
	cp := *identity
	m.byID[identity.ID] = &cp
	m.byLookup[identity.NationalIDLookup] = identity.ID
	return nil
}

func (m *memIdentities) ByID(ctx context.Context, id uuid.UUID) (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.byID[id]
	if !ok {
		return nil, ErrIdentityNotFound
	}
	cp := *identity
	return &cp, nil
}

func (m *memIdentities) ByLookupHash(ctx context.Context, lookupHash string) (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byLookup[lookupHash]
	if !ok {
		return nil, ErrIdentityNotFound
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *memIdentities) UpdateStatus(ctx context.Context, id uuid.UUID, status IdentityStatus, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.byID[id]
	if !ok {
		return ErrIdentityNotFound
	}
	identity.Status = status
	identity.UpdatedAt = now
	return nil
}

func (m *memIdentities) IncrementFailedOtpCycles(ctx context.Context, id uuid.UUID, windowStart, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.byID[id]
	if !ok {
		return 0, ErrIdentityNotFound
	}
	if last, ok := m.cycleTimes[id]; !ok || last.Before(windowStart) {
		identity.FailedOtpCycles = 0
	}
	identity.FailedOtpCycles++
	m.cycleTimes[id] = now
	return identity.FailedOtpCycles, nil
}

func (m *memIdentities) ResetFailedOtpCycles(ctx context.Context, id uuid.UUID, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.byID[id]
	if !ok {
		return ErrIdentityNotFound
	}
	identity.FailedOtpCycles = 0
	delete(m.cycleTimes, id)
	return nil
}

func (m *memIdentities) UpdateAccountLevel(ctx context.Context, id uuid.UUID, level AccountLevel, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.byID[id]
	if !ok {
		return ErrIdentityNotFound
	}
	identity.AccountLevel = level
	return nil
}

type memChallenges struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*OtpChallenge
}

func newMemChallenges() *memChallenges {
	return &memChallenges{rows: make(map[uuid.UUID]*OtpChallenge)}
}

func (m *memChallenges) Create(ctx context.Context, challenge *OtpChallenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *challenge
	m.rows[challenge.ID] = &cp
	return nil
}

func (m *memChallenges) ActiveByIdentity(ctx context.Context, identityID uuid.UUID, channel OtpChannel) (*OtpChallenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *OtpChallenge
	for _, c := range m.rows {
		if c.IdentityID != identityID || c.Channel != channel || c.Consumed {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, ErrOtpNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *memChallenges) LatestByIdentity(ctx context.Context, identityID uuid.UUID, channel OtpChannel) (*OtpChallenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *OtpChallenge
	for _, c := range m.rows {
		if c.IdentityID != identityID || c.Channel != channel {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, ErrOtpNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *memChallenges) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return 0, ErrOtpNotFound
	}
	c.Attempts++
	return c.Attempts, nil
}

func (m *memChallenges) MarkConsumed(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return ErrOtpNotFound
	}
	c.Consumed = true
	return nil
}

type memCredentials struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*Credential
}

func newMemCredentials() *memCredentials {
	return &memCredentials{rows: make(map[uuid.UUID]*Credential)}
}

func (m *memCredentials) ByIdentity(ctx context.Context, identityID uuid.UUID) (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	credential, ok := m.rows[identityID]
	if !ok {
		return nil, ErrPinNotSet
	}
	cp := *credential
	return &cp, nil
}

func (m *memCredentials) Create(ctx context.Context, credential *Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[credential.IdentityID]; ok {
		return ErrPinAlreadySet
	}
	cp := *credential
	m.rows[credential.IdentityID] = &cp
	return nil
}

func (m *memCredentials) Rotate(ctx context.Context, identityID uuid.UUID, newHash string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	credential, ok := m.rows[identityID]
	if !ok {
		return ErrPinNotSet
	}
	credential.PinHash = newHash
	rotated := now
	credential.RotatedAt = &rotated
	return nil
}

type memDevices struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*DeviceSession
}

func newMemDevices() *memDevices {
	return &memDevices{rows: make(map[uuid.UUID]*DeviceSession)}
}

func (m *memDevices) Touch(ctx context.Context, identityID uuid.UUID, fingerprintHash, userAgent, ip string, now time.Time) (*DeviceSession, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.rows {
		if d.IdentityID == identityID && d.FingerprintHash == fingerprintHash {
			d.LoginCount++
			d.LastSeenAt = now
			d.LastIP = ip
			cp := *d
			return &cp, false, nil
		}
	}
	device := &DeviceSession{
		ID:              uuid.New(),
		IdentityID:      identityID,
		FingerprintHash: fingerprintHash,
		UserAgent:       userAgent,
		LastIP:          ip,
		TrustLevel:      TrustLow,
		LoginCount:      1,
		FirstSeenAt:     now,
		LastSeenAt:      now,
	}
	m.rows[device.ID] = device
	cp := *device
	return &cp, true, nil
}

func (m *memDevices) ByIdentity(ctx context.Context, identityID uuid.UUID) ([]*DeviceSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*DeviceSession
	for _, d := range m.rows {
		if d.IdentityID == identityID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FirstSeenAt.Before(out[j].FirstSeenAt) })
	return out, nil
}

func (m *memDevices) ByFingerprint(ctx context.Context, identityID uuid.UUID, fingerprintHash string) (*DeviceSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.rows {
		if d.IdentityID == identityID && d.FingerprintHash == fingerprintHash {
			cp := *d
			return &cp, nil
		}
	}
	return nil, ErrDeviceNotFound
}

func (m *memDevices) UpdateTrust(ctx context.Context, id uuid.UUID, level TrustLevel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.rows[id]
	if !ok {
		return ErrDeviceNotFound
	}
	d.TrustLevel = level
	return nil
}

func (m *memDevices) Revoke(ctx context.Context, id uuid.UUID, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.rows[id]
	if !ok {
		return ErrDeviceNotFound
	}
	d.Revoked = true
	return nil
}

type memRiskEvents struct {
	mu   sync.Mutex
	rows []*RiskEvent
}

func newMemRiskEvents() *memRiskEvents { return &memRiskEvents{} }

func (m *memRiskEvents) Create(ctx context.Context, event *RiskEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *event
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memRiskEvents) UnresolvedSince(ctx context.Context, identityID uuid.UUID, cutoff time.Time) ([]*RiskEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*RiskEvent
	for _, event := range m.rows {
		if event.Resolved || event.IdentityID == nil || *event.IdentityID != identityID {
			continue
		}
		if event.CreatedAt.Before(cutoff) {
			continue
		}
		cp := *event
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memRiskEvents) CountByTypeSince(ctx context.Context, identityID uuid.UUID, eventType RiskEventType, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, event := range m.rows {
		if event.IdentityID == nil || *event.IdentityID != identityID {
			continue
		}
		if event.Type == eventType && !event.CreatedAt.Before(cutoff) {
			count++
		}
	}
	return count, nil
}

func (m *memRiskEvents) Resolve(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, event := range m.rows {
		if event.ID == id {
			event.Resolved = true
			return nil
		}
	}
	return ErrIdentityNotFound
}

type memAuditLog struct {
	mu   sync.Mutex
	rows []*AuditEntry
}

func newMemAuditLog() *memAuditLog { return &memAuditLog{} }

func (m *memAuditLog) Append(ctx context.Context, entry *AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memAuditLog) Latest(ctx context.Context) (*AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rows) == 0 {
		return nil, nil
	}
	cp := *m.rows[len(m.rows)-1]
	return &cp, nil
}

func (m *memAuditLog) Page(ctx context.Context, afterSequence int64, limit int) ([]*AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*AuditEntry
	for _, entry := range m.rows {
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

func (m *memAuditLog) ByIdentity(ctx context.Context, identityID uuid.UUID, limit int) ([]*AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*AuditEntry
	for i := len(m.rows) - 1; i >= 0 && len(out) < limit; i-- {
		entry := m.rows[i]
		if entry.IdentityID != nil && *entry.IdentityID == identityID {
			cp := *entry
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memAuditLog) entries() []*AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*AuditEntry, len(m.rows))
	copy(out, m.rows)
	return out
}

// --- collaborator fakes ---

type fakeIssuer struct {
	mu     sync.Mutex
	issued int
}

func (f *fakeIssuer) Issue(ctx context.Context, identityID string) (string, string, string, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued++
	jti := uuid.NewString()
	return "access-" + identityID, "refresh:" + identityID + ":" + jti, jti,
		time.Now().Add(15 * time.Minute), nil
}

func (f *fakeIssuer) VerifyRefresh(ctx context.Context, refreshToken string) (string, string, time.Time, error) {
	var identityID, jti string
	// Tokens issued by this fake look like refresh:<identity>:<jti>.
	parts := splitN(refreshToken, ':', 3)
	if len(parts) != 3 || parts[0] != "refresh" {
		return "", "", time.Time{}, ErrInvalidInput
	}
	identityID, jti = parts[1], parts[2]
	return identityID, jti, time.Now().Add(time.Hour), nil
}

func (f *fakeIssuer) RefreshTTL() time.Duration { return time.Hour }

func splitN(s string, sep byte, n int) []string {
	var out []string
	start := 0
	for i := 0; i < len(s) && len(out) < n-1; i++ {
		if s[i] == sep {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}

type fakeSender struct {
	mu    sync.Mutex
	codes []string
	fail  bool
}

func (f *fakeSender) Send(ctx context.Context, channel OtpChannel, destination, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return ErrInvalidInput
	}
	f.codes = append(f.codes, code)
	return nil
}

func (f *fakeSender) lastCode(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.codes) == 0 {
		t.Fatal("no otp code was sent")
	}
	return f.codes[len(f.codes)-1]
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// --- harness ---

type testFixture struct {
	engine     *Engine
	identities *memIdentities
	challenges *memChallenges
	devices    *memDevices
	riskEvents *memRiskEvents
	auditLog   *memAuditLog
	sender     *fakeSender
	clock      *fakeClock
	redis      *miniredis.Miniredis
}

var testAESKey = []byte("0123456789abcdef0123456789abcdef")

func newTestEngine(t *testing.T) *testFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := DefaultConfig()
	cfg.Pin.Pepper = "test-pepper"
	// Reduced argon2id cost keeps the suite fast; production values live
	// in DefaultConfig.
	cfg.Pin.Memory = 8 * 1024
	cfg.Pin.Time = 1
	cfg.Audit.ChainKey = []byte("test-chain-key")

	f := &testFixture{
		identities: newMemIdentities(),
		challenges: newMemChallenges(),
		devices:    newMemDevices(),
		riskEvents: newMemRiskEvents(),
		auditLog:   newMemAuditLog(),
		sender:     &fakeSender{},
		clock:      &fakeClock{t: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)},
		redis:      mr,
	}

	engine, err := NewBuilder().
		WithConfig(cfg).
		WithClock(f.clock).
		WithIdentityRepository(f.identities).
		WithOtpChallengeRepository(f.challenges).
		WithCredentialRepository(newMemCredentials()).
		WithDeviceRepository(f.devices).
		WithRiskEventRepository(f.riskEvents).
		WithAuditLogRepository(f.auditLog).
		WithRedis(client).
		WithCrypto(crypto.Config{LookupSalt: "test-salt", AESKey: testAESKey}).
		WithTokenIssuer(&fakeIssuer{}).
		WithCodeSender(f.sender).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	f.engine = engine
	return f
}

// register runs a full registration and returns the identity id.
func (f *testFixture) register(t *testing.T, nationalID string) uuid.UUID {
	t.Helper()
	result, err := f.engine.Register(context.Background(), RegistrationInput{
		NationalID: nationalID,
		Phone:      "+971501235678",
		Channel:    ChannelSMS,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return result.IdentityID
}

// activate walks an identity through OTP verification and PIN setup.
func (f *testFixture) activate(t *testing.T, identityID uuid.UUID, pinCode string) {
	t.Helper()
	ctx := context.Background()
	if err := f.engine.VerifyOtp(ctx, identityID, ChannelSMS, f.sender.lastCode(t)); err != nil {
		t.Fatalf("VerifyOtp: %v", err)
	}
	if err := f.engine.SetPin(ctx, identityID, pinCode); err != nil {
		t.Fatalf("SetPin: %v", err)
	}
}

func (f *testFixture) status(t *testing.T, identityID uuid.UUID) IdentityStatus {
	t.Helper()
	identity, err := f.identities.ByID(context.Background(), identityID)
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	return identity.Status
}

func TestBuilderRequiresWiring(t *testing.T) {
	if _, err := NewBuilder().Build(); err == nil {
		t.Fatal("expected build failure without configuration")
	}
}

func TestEngineClosed(t *testing.T) {
	f := newTestEngine(t)
	f.engine.Close()

	if _, err := f.engine.Register(context.Background(), RegistrationInput{
		NationalID: "784-1990-1234567-0",
		Phone:      "+971501235678",
		Channel:    ChannelSMS,
	}); err != ErrEngineClosed {
		t.Fatalf("err = %v, want ErrEngineClosed", err)
	}
}
