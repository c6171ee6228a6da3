package idcore

import "errors"

var (
	// ErrIdentityNotFound is an exported constant or variable used by the identity engine.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrIdentityExists is an exported constant or variable used by the identity engine.
	ErrIdentityExists = errors.New("identity already registered")
	// ErrIdentityLocked is an exported constant or variable used by the identity engine.
	ErrIdentityLocked = errors.New("identity locked")
	// ErrIdentitySuspended is an exported constant or variable used by the identity engine.
	ErrIdentitySuspended = errors.New("identity suspended")
	// ErrIdentityNotActive is an exported constant or variable used by the identity engine.
	ErrIdentityNotActive = errors.New("identity not active")
	// ErrInvalidStatusTransition is an exported constant or variable used by the identity engine.
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	// ErrOtpNotFound is an exported constant or variable used by the identity engine.
	ErrOtpNotFound = errors.New("no active otp challenge")
	// ErrOtpExpired is an exported constant or variable used by the identity engine.
	ErrOtpExpired = errors.New("otp challenge expired")
	// ErrOtpMismatch is an exported constant or variable used by the identity engine.
	ErrOtpMismatch = errors.New("otp code mismatch")
	// ErrOtpExhausted is an exported constant or variable used by the identity engine.
	ErrOtpExhausted = errors.New("otp attempts exhausted")
	// ErrOtpCooldown is an exported constant or variable used by the identity engine.
	ErrOtpCooldown = errors.New("otp resend cooldown active")

	// ErrPinNotSet is an exported constant or variable used by the identity engine.
	ErrPinNotSet = errors.New("pin credential not set")
	// ErrPinAlreadySet is an exported constant or variable used by the identity engine.
	ErrPinAlreadySet = errors.New("pin credential already set")
	// ErrPinMismatch is an exported constant or variable used by the identity engine.
	ErrPinMismatch = errors.New("pin mismatch")
	// ErrPinReuse is an exported constant or variable used by the identity engine.
	ErrPinReuse = errors.New("new pin must differ from current pin")

	// ErrLockoutActive is an exported constant or variable used by the identity engine.
	ErrLockoutActive = errors.New("temporary lockout active")
	// ErrRateLimited is an exported constant or variable used by the identity engine.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrSecurityStateUnavailable is an exported constant or variable used by the identity engine.
	ErrSecurityStateUnavailable = errors.New("security state unavailable")
	// ErrTokenReplayed is an exported constant or variable used by the identity engine.
	ErrTokenReplayed = errors.New("refresh token already used")
	// ErrHighRisk is an exported constant or variable used by the identity engine.
	ErrHighRisk = errors.New("request blocked by risk policy")

	// ErrDeviceNotFound is an exported constant or variable used by the identity engine.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrDeviceRevoked is an exported constant or variable used by the identity engine.
	ErrDeviceRevoked = errors.New("device revoked")

	// ErrAuditChainBroken is an exported constant or variable used by the identity engine.
	ErrAuditChainBroken = errors.New("audit chain verification failed")

	// ErrInvalidInput is an exported constant or variable used by the identity engine.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEngineClosed is an exported constant or variable used by the identity engine.
	ErrEngineClosed = errors.New("engine closed")
)
