package idcore

import (
	"time"

	"github.com/google/uuid"
)

// IdentityStatus defines a public type used by idcore APIs.
//
// IdentityStatus instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type IdentityStatus string

const (
	// StatusPending is an exported constant or variable used by the identity engine.
	StatusPending IdentityStatus = "PENDING"
	// StatusOtpSent is an exported constant or variable used by the identity engine.
	StatusOtpSent IdentityStatus = "OTP_SENT"
	// StatusOtpVerified is an exported constant or variable used by the identity engine.
	StatusOtpVerified IdentityStatus = "OTP_VERIFIED"
	// StatusActive is an exported constant or variable used by the identity engine.
	StatusActive IdentityStatus = "ACTIVE"
	// StatusLocked is an exported constant or variable used by the identity engine.
	StatusLocked IdentityStatus = "LOCKED"
	// StatusSuspended is an exported constant or variable used by the identity engine.
	StatusSuspended IdentityStatus = "SUSPENDED"
)

// CanTransitionTo reports whether the status lifecycle permits moving from s
// to next. LOCKED and SUSPENDED are administrative states reachable from any
// status; recovery from them goes back to ACTIVE.
func (s IdentityStatus) CanTransitionTo(next IdentityStatus) bool {
	if next == StatusLocked || next == StatusSuspended {
		return true
	}
	switch s {
	case StatusPending:
		return next == StatusOtpSent
	case StatusOtpSent:
		return next == StatusOtpVerified || next == StatusOtpSent
	case StatusOtpVerified:
		return next == StatusActive
	case StatusLocked, StatusSuspended:
		return next == StatusActive
	default:
		return false
	}
}

// AccountLevel defines a public type used by idcore APIs.
//
// AccountLevel instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AccountLevel string

const (
	// LevelSOP1 is an exported constant or variable used by the identity engine.
	LevelSOP1 AccountLevel = "SOP1"
	// LevelSOP2 is an exported constant or variable used by the identity engine.
	LevelSOP2 AccountLevel = "SOP2"
	// LevelSOP3 is an exported constant or variable used by the identity engine.
	LevelSOP3 AccountLevel = "SOP3"
)

// OtpChannel defines a public type used by idcore APIs.
//
// OtpChannel instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OtpChannel string

const (
	// ChannelSMS is an exported constant or variable used by the identity engine.
	ChannelSMS OtpChannel = "SMS"
	// ChannelEmail is an exported constant or variable used by the identity engine.
	ChannelEmail OtpChannel = "EMAIL"
)

// TrustLevel defines a public type used by idcore APIs.
//
// TrustLevel instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TrustLevel string

const (
	// TrustLow is an exported constant or variable used by the identity engine.
	TrustLow TrustLevel = "LOW"
	// TrustMedium is an exported constant or variable used by the identity engine.
	TrustMedium TrustLevel = "MEDIUM"
	// TrustHigh is an exported constant or variable used by the identity engine.
	TrustHigh TrustLevel = "HIGH"
)

// RiskLevel defines a public type used by idcore APIs.
//
// RiskLevel instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RiskLevel string

const (
	// RiskLow is an exported constant or variable used by the identity engine.
	RiskLow RiskLevel = "LOW"
	// RiskMedium is an exported constant or variable used by the identity engine.
	RiskMedium RiskLevel = "MEDIUM"
	// RiskHigh is an exported constant or variable used by the identity engine.
	RiskHigh RiskLevel = "HIGH"
)

// RiskEventType defines a public type used by idcore APIs.
//
// RiskEventType instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RiskEventType string

const (
	// RiskBruteForce is an exported constant or variable used by the identity engine.
	RiskBruteForce RiskEventType = "BRUTE_FORCE"
	// RiskNewDevice is an exported constant or variable used by the identity engine.
	RiskNewDevice RiskEventType = "NEW_DEVICE"
	// RiskUnusualIP is an exported constant or variable used by the identity engine.
	RiskUnusualIP RiskEventType = "UNUSUAL_IP"
	// RiskVelocityAnomaly is an exported constant or variable used by the identity engine.
	RiskVelocityAnomaly RiskEventType = "VELOCITY_ANOMALY"
	// RiskSessionHijack is an exported constant or variable used by the identity engine.
	RiskSessionHijack RiskEventType = "SESSION_HIJACK"
	// RiskTokenReplay is an exported constant or variable used by the identity engine.
	RiskTokenReplay RiskEventType = "TOKEN_REPLAY"
	// RiskOtpAbuse is an exported constant or variable used by the identity engine.
	RiskOtpAbuse RiskEventType = "OTP_ABUSE"
	// RiskPinLockout is an exported constant or variable used by the identity engine.
	RiskPinLockout RiskEventType = "PIN_LOCKOUT"
	// RiskAccountTakeoverAttempt is an exported constant or variable used by the identity engine.
	RiskAccountTakeoverAttempt RiskEventType = "ACCOUNT_TAKEOVER_ATTEMPT"
	// RiskGeoAnomaly is an exported constant or variable used by the identity engine.
	RiskGeoAnomaly RiskEventType = "GEO_ANOMALY"
)

// AuditEventType defines a public type used by idcore APIs.
//
// AuditEventType instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditEventType string

const (
	// AuditRegistrationStarted is an exported constant or variable used by the identity engine.
	AuditRegistrationStarted AuditEventType = "REGISTRATION_STARTED"
	// AuditRegistrationCompleted is an exported constant or variable used by the identity engine.
	AuditRegistrationCompleted AuditEventType = "REGISTRATION_COMPLETED"
	// AuditOtpSent is an exported constant or variable used by the identity engine.
	AuditOtpSent AuditEventType = "OTP_SENT"
	// AuditOtpVerified is an exported constant or variable used by the identity engine.
	AuditOtpVerified AuditEventType = "OTP_VERIFIED"
	// AuditOtpFailed is an exported constant or variable used by the identity engine.
	AuditOtpFailed AuditEventType = "OTP_FAILED"
	// AuditOtpLockout is an exported constant or variable used by the identity engine.
	AuditOtpLockout AuditEventType = "OTP_LOCKOUT"
	// AuditPinSet is an exported constant or variable used by the identity engine.
	AuditPinSet AuditEventType = "PIN_SET"
	// AuditPinChanged is an exported constant or variable used by the identity engine.
	AuditPinChanged AuditEventType = "PIN_CHANGED"
	// AuditPinVerified is an exported constant or variable used by the identity engine.
	AuditPinVerified AuditEventType = "PIN_VERIFIED"
	// AuditPinFailed is an exported constant or variable used by the identity engine.
	AuditPinFailed AuditEventType = "PIN_FAILED"
	// AuditPinLockout is an exported constant or variable used by the identity engine.
	AuditPinLockout AuditEventType = "PIN_LOCKOUT"
	// AuditLoginSucceeded is an exported constant or variable used by the identity engine.
	AuditLoginSucceeded AuditEventType = "LOGIN_SUCCEEDED"
	// AuditLoginBlocked is an exported constant or variable used by the identity engine.
	AuditLoginBlocked AuditEventType = "LOGIN_BLOCKED"
	// AuditLoginChallenged is an exported constant or variable used by the identity engine.
	AuditLoginChallenged AuditEventType = "LOGIN_CHALLENGED"
	// AuditDeviceObserved is an exported constant or variable used by the identity engine.
	AuditDeviceObserved AuditEventType = "DEVICE_OBSERVED"
	// AuditDeviceRevoked is an exported constant or variable used by the identity engine.
	AuditDeviceRevoked AuditEventType = "DEVICE_REVOKED"
	// AuditRiskRecorded is an exported constant or variable used by the identity engine.
	AuditRiskRecorded AuditEventType = "RISK_RECORDED"
	// AuditStatusChanged is an exported constant or variable used by the identity engine.
	AuditStatusChanged AuditEventType = "STATUS_CHANGED"
	// AuditTokenReplayDetected is an exported constant or variable used by the identity engine.
	AuditTokenReplayDetected AuditEventType = "TOKEN_REPLAY_DETECTED"
	// AuditRateLimited is an exported constant or variable used by the identity engine.
	AuditRateLimited AuditEventType = "RATE_LIMITED"
)

// Identity defines a public type used by idcore APIs.
//
// Identity instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Identity struct {
	ID               uuid.UUID
	NationalIDLookup string // lookup hash, never the plaintext national id
	NationalIDEnc    string // AES-GCM envelope
	EmailLookup      string
	EmailEnc         string
	PhoneLookup      string
	PhoneEnc         string
	DisplayNameEnc   string
	Status           IdentityStatus
	AccountLevel     AccountLevel
	FailedOtpCycles  int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// OtpChallenge defines a public type used by idcore APIs.
//
// OtpChallenge instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OtpChallenge struct {
	ID          uuid.UUID
	IdentityID  uuid.UUID
	Channel     OtpChannel
	CodeHash    string // unsalted ephemeral hash, plaintext is never stored
	Attempts    int
	MaxAttempts int
	Consumed    bool
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Expired reports whether the challenge window has closed at now.
func (c *OtpChallenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Exhausted reports whether the challenge has no attempts left.
func (c *OtpChallenge) Exhausted() bool {
	return c.Attempts >= c.MaxAttempts
}

// Credential defines a public type used by idcore APIs.
//
// Credential instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Credential struct {
	ID         uuid.UUID
	IdentityID uuid.UUID
	PinHash    string // $argon2id$<salt>$<digest>
	SetAt      time.Time
	RotatedAt  *time.Time
}

// DeviceSession defines a public type used by idcore APIs.
//
// DeviceSession instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type DeviceSession struct {
	ID              uuid.UUID
	IdentityID      uuid.UUID
	FingerprintHash string
	UserAgent       string
	LastIP          string
	TrustLevel      TrustLevel
	LoginCount      int
	Revoked         bool
	FirstSeenAt     time.Time
	LastSeenAt      time.Time
}

// RiskEvent defines a public type used by idcore APIs.
//
// RiskEvent instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RiskEvent struct {
	ID         uuid.UUID
	IdentityID *uuid.UUID // nil when the event is not tied to a known identity
	Type       RiskEventType
	Score      int
	Level      RiskLevel
	SourceIP   string
	Detail     string
	Resolved   bool
	CreatedAt  time.Time
}

// AuditEntry defines a public type used by idcore APIs.
//
// AuditEntry instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditEntry struct {
	ID         uuid.UUID
	Sequence   int64
	EventType  AuditEventType
	IdentityID *uuid.UUID
	RequestID  *string
	SourceIP   string
	Detail     string
	PrevHash   string
	ChainHash  string
	CreatedAt  time.Time
}

// RequestSignals defines a public type used by idcore APIs.
//
// RequestSignals instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RequestSignals struct {
	UserAgent        string
	AcceptLanguage   string
	ScreenResolution string
	Timezone         string
}

// OtpDelivery defines a public type used by idcore APIs.
//
// OtpDelivery instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OtpDelivery struct {
	ChallengeID uuid.UUID
	Channel     OtpChannel
	ExpiresAt   time.Time
	ResendAfter time.Time
}

// TokenPair defines a public type used by idcore APIs.
//
// TokenPair instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// LoginResult defines a public type used by idcore APIs.
//
// LoginResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LoginResult struct {
	IdentityID uuid.UUID
	Tokens     TokenPair
	Device     *DeviceSession
	RiskScore  int
	RiskLevel  RiskLevel
	NewDevice  bool
	TrustLevel TrustLevel
	// StepUpRequired is set when the live risk level demands an extra OTP
	// round before tokens are issued; Tokens is empty and StepUp carries
	// the issued challenge.
	StepUpRequired bool
	StepUp         *OtpDelivery
	CompletedAt    time.Time
}

// RegistrationResult defines a public type used by idcore APIs.
//
// RegistrationResult instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RegistrationResult struct {
	IdentityID uuid.UUID
	Status     IdentityStatus
	Otp        OtpDelivery
}

// MaskedAuditEntry defines a public type used by idcore APIs.
//
// MaskedAuditEntry instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MaskedAuditEntry struct {
	Sequence   int64          `json:"sequence"`
	EventType  AuditEventType `json:"event_type"`
	IdentityID string         `json:"identity_id,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	SourceIP   string         `json:"source_ip,omitempty"`
	Detail     string         `json:"detail,omitempty"`
	ChainHash  string         `json:"chain_hash"`
	CreatedAt  time.Time      `json:"created_at"`
}

// RiskAssessment defines a public type used by idcore APIs.
//
// RiskAssessment instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RiskAssessment struct {
	Score     int
	Level     RiskLevel
	NewDevice bool
	Factors   []string
}
