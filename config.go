package idcore

import (
	"errors"
	"time"
)

// Named policy constants. These are the defaults the national-identity
// profile ships with; Config fields exist so deployments can tune them.
const (
	defaultOtpLength        = 6
	defaultOtpTTL           = 180 * time.Second
	defaultOtpMaxAttempts   = 5
	defaultOtpResendGap     = 60 * time.Second
	defaultOtpMaxCycles     = 3
	defaultOtpCycleWindow   = time.Hour
	defaultOtpCounterTTL    = 10 * time.Minute
	defaultOtpCounterCeil   = 10
	defaultPinCounterTTL    = 15 * time.Minute
	defaultPinCounterCeil   = 5
	defaultLockoutTTL       = 30 * time.Minute
	defaultAnomalyTTL       = time.Hour
	defaultRiskWindow       = time.Hour
	defaultRiskEventWindow  = 24 * time.Hour
	defaultRiskMediumFloor  = 30
	defaultRiskHighFloor    = 70
	defaultRiskBlockAverage = 70
	defaultTrustMediumAt    = 5
	defaultTrustHighAt      = 20
	defaultAuditBuffer      = 1024
	defaultAuditPageLimit   = 100
	defaultRateWindow       = 60 * time.Second
)

// Risk score weights. Scores clamp to [0, 100].
const (
	riskScoreUnknownDevice  = 30
	riskScoreLowTrustDevice = 10
	riskPerBruteForce       = 15
	riskBruteForceCap       = 45
	riskPerOtpAbuse         = 10
	riskOtpAbuseCap         = 30
	riskScoreLockout        = 50
	riskScoreOtpVelocity    = 25
	riskOtpVelocityFloor    = 5
	riskScoreMax            = 100
)

// OtpConfig defines a public type used by idcore APIs.
//
// OtpConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OtpConfig struct {
	CodeLength     int
	TTL            time.Duration
	MaxAttempts    int
	ResendCooldown time.Duration
	// MaxFailedCycles locks the identity after this many fully exhausted
	// challenges inside CycleWindow.
	MaxFailedCycles int
	CycleWindow     time.Duration
}

// PinConfig defines a public type used by idcore APIs.
//
// PinConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PinConfig struct {
	Pepper      string
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// SecurityStateConfig defines a public type used by idcore APIs.
//
// SecurityStateConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecurityStateConfig struct {
	KeyPrefix        string
	OtpCounterTTL    time.Duration
	OtpCounterMax    int
	PinCounterTTL    time.Duration
	PinCounterMax    int
	LockoutTTL       time.Duration
	AnomalyTTL       time.Duration
	OperationTimeout time.Duration
}

// RateLimitConfig defines a public type used by idcore APIs.
//
// RateLimitConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RateLimitConfig struct {
	Window time.Duration
	// PerIP maps a rate group to its per-IP ceiling inside Window.
	// Groups absent from the map fall back to DefaultPerIP.
	PerIP map[RateGroup]int
	// PerIdentity maps a rate group to its per-identity ceiling.
	PerIdentity        map[RateGroup]int
	DefaultPerIP       int
	DefaultPerIdentity int
}

// RiskConfig defines a public type used by idcore APIs.
//
// RiskConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RiskConfig struct {
	// Window bounds the unresolved-event average used for blocking.
	Window time.Duration
	// EventWindow bounds how far back scoring counts prior risk events.
	EventWindow  time.Duration
	MediumFloor  int
	HighFloor    int
	BlockAverage int
}

// DeviceConfig defines a public type used by idcore APIs.
//
// DeviceConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type DeviceConfig struct {
	// TrustMediumAt and TrustHighAt are the login counts at which a
	// device escalates from LOW to MEDIUM and from MEDIUM to HIGH.
	TrustMediumAt int
	TrustHighAt   int
}

// AuditConfig defines a public type used by idcore APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	// ChainKey is the HMAC key for the hash chain. Required.
	ChainKey []byte
	// BufferSize is the dispatcher queue depth; events beyond it are
	// dropped and counted, never blocked on.
	BufferSize int
	// PageLimit caps a single masked export page.
	PageLimit int
}

// Config defines a public type used by idcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Otp           OtpConfig
	Pin           PinConfig
	SecurityState SecurityStateConfig
	RateLimit     RateLimitConfig
	Risk          RiskConfig
	Device        DeviceConfig
	Audit         AuditConfig
}

// DefaultConfig returns the national-identity policy profile. Callers
// overlay secrets (pepper, chain key) before building an engine.
//
// DefaultConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func DefaultConfig() Config {
	return Config{
		Otp: OtpConfig{
			CodeLength:      defaultOtpLength,
			TTL:             defaultOtpTTL,
			MaxAttempts:     defaultOtpMaxAttempts,
			ResendCooldown:  defaultOtpResendGap,
			MaxFailedCycles: defaultOtpMaxCycles,
			CycleWindow:     defaultOtpCycleWindow,
		},
		Pin: PinConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   32,
		},
		SecurityState: SecurityStateConfig{
			KeyPrefix:        "sec:",
			OtpCounterTTL:    defaultOtpCounterTTL,
			OtpCounterMax:    defaultOtpCounterCeil,
			PinCounterTTL:    defaultPinCounterTTL,
			PinCounterMax:    defaultPinCounterCeil,
			LockoutTTL:       defaultLockoutTTL,
			AnomalyTTL:       defaultAnomalyTTL,
			OperationTimeout: 2 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Window: defaultRateWindow,
			PerIP: map[RateGroup]int{
				GroupAuthorize:    30,
				GroupToken:        20,
				GroupOtp:          10,
				GroupRegistration: 5,
				GroupPin:          10,
				GroupSessions:     10,
			},
			PerIdentity: map[RateGroup]int{
				GroupOtp:      3,
				GroupPin:      3,
				GroupToken:    5,
				GroupSessions: 10,
			},
			DefaultPerIP:       60,
			DefaultPerIdentity: 10,
		},
		Risk: RiskConfig{
			Window:       defaultRiskWindow,
			EventWindow:  defaultRiskEventWindow,
			MediumFloor:  defaultRiskMediumFloor,
			HighFloor:    defaultRiskHighFloor,
			BlockAverage: defaultRiskBlockAverage,
		},
		Device: DeviceConfig{
			TrustMediumAt: defaultTrustMediumAt,
			TrustHighAt:   defaultTrustHighAt,
		},
		Audit: AuditConfig{
			BufferSize: defaultAuditBuffer,
			PageLimit:  defaultAuditPageLimit,
		},
	}
}

// Validate checks the configuration for values the engine cannot run with.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c Config) Validate() error {
	if c.Otp.CodeLength < 4 || c.Otp.CodeLength > 10 {
		return errors.New("otp code length must be between 4 and 10")
	}
	if c.Otp.TTL <= 0 || c.Otp.MaxAttempts <= 0 {
		return errors.New("otp ttl and max attempts must be positive")
	}
	if c.Otp.ResendCooldown < 0 || c.Otp.MaxFailedCycles <= 0 || c.Otp.CycleWindow <= 0 {
		return errors.New("invalid otp cycle configuration")
	}
	if c.Pin.Pepper == "" {
		return errors.New("pin pepper is required")
	}
	if c.SecurityState.OtpCounterMax <= 0 || c.SecurityState.PinCounterMax <= 0 {
		return errors.New("security counters must have positive ceilings")
	}
	if c.SecurityState.LockoutTTL <= 0 {
		return errors.New("lockout ttl must be positive")
	}
	if c.RateLimit.Window <= 0 || c.RateLimit.DefaultPerIP <= 0 || c.RateLimit.DefaultPerIdentity <= 0 {
		return errors.New("invalid rate limit configuration")
	}
	if c.Risk.MediumFloor <= 0 || c.Risk.HighFloor <= c.Risk.MediumFloor {
		return errors.New("risk floors must satisfy 0 < medium < high")
	}
	if c.Device.TrustMediumAt <= 0 || c.Device.TrustHighAt <= c.Device.TrustMediumAt {
		return errors.New("trust thresholds must satisfy 0 < medium < high")
	}
	if len(c.Audit.ChainKey) == 0 {
		return errors.New("audit chain key is required")
	}
	if c.Audit.BufferSize <= 0 {
		return errors.New("audit buffer size must be positive")
	}
	if c.Audit.PageLimit <= 0 {
		return errors.New("audit page limit must be positive")
	}
	return nil
}
