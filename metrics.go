package idcore

import "sync/atomic"

// Metrics defines a public type used by idcore APIs.
//
// Metrics instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Metrics struct {
	RegistrationsStarted   atomic.Int64
	RegistrationsCompleted atomic.Int64
	OtpIssued              atomic.Int64
	OtpVerified            atomic.Int64
	OtpFailed              atomic.Int64
	PinVerified            atomic.Int64
	PinFailed              atomic.Int64
	Lockouts               atomic.Int64
	LoginsSucceeded        atomic.Int64
	LoginsBlocked          atomic.Int64
	LoginsChallenged       atomic.Int64
	RateLimited            atomic.Int64
	RiskEventsRecorded     atomic.Int64
	TokenReplays           atomic.Int64
}

// MetricsSnapshot defines a public type used by idcore APIs.
//
// MetricsSnapshot instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsSnapshot struct {
	RegistrationsStarted   int64 `json:"registrations_started"`
	RegistrationsCompleted int64 `json:"registrations_completed"`
	OtpIssued              int64 `json:"otp_issued"`
	OtpVerified            int64 `json:"otp_verified"`
	OtpFailed              int64 `json:"otp_failed"`
	PinVerified            int64 `json:"pin_verified"`
	PinFailed              int64 `json:"pin_failed"`
	Lockouts               int64 `json:"lockouts"`
	LoginsSucceeded        int64 `json:"logins_succeeded"`
	LoginsBlocked          int64 `json:"logins_blocked"`
	LoginsChallenged       int64 `json:"logins_challenged"`
	RateLimited            int64 `json:"rate_limited"`
	RiskEventsRecorded     int64 `json:"risk_events_recorded"`
	TokenReplays           int64 `json:"token_replays"`
	AuditDropped           int64 `json:"audit_dropped"`
}

// Snapshot describes the snapshot operation and its observable behavior.
//
// Snapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		RegistrationsStarted:   e.metrics.RegistrationsStarted.Load(),
		RegistrationsCompleted: e.metrics.RegistrationsCompleted.Load(),
		OtpIssued:              e.metrics.OtpIssued.Load(),
		OtpVerified:            e.metrics.OtpVerified.Load(),
		OtpFailed:              e.metrics.OtpFailed.Load(),
		PinVerified:            e.metrics.PinVerified.Load(),
		PinFailed:              e.metrics.PinFailed.Load(),
		Lockouts:               e.metrics.Lockouts.Load(),
		LoginsSucceeded:        e.metrics.LoginsSucceeded.Load(),
		LoginsBlocked:          e.metrics.LoginsBlocked.Load(),
		LoginsChallenged:       e.metrics.LoginsChallenged.Load(),
		RateLimited:            e.metrics.RateLimited.Load(),
		RiskEventsRecorded:     e.metrics.RiskEventsRecorded.Load(),
		TokenReplays:           e.metrics.TokenReplays.Load(),
		AuditDropped:           e.audit.Dropped(),
	}
}
