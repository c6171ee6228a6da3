package idcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veriden/idcore/internal"
)

// assessRisk scores a login attempt from the identity's recent history and
// the device observation. Factors are additive and the total clamps to 100.
func (e *Engine) assessRisk(ctx context.Context, identity *Identity, device *DeviceSession, newDevice bool) (RiskAssessment, error) {
	now := e.now()
	eventCutoff := now.Add(-e.config.Risk.EventWindow)

	assessment := RiskAssessment{NewDevice: newDevice}
	add := func(points int, factor string) {
		assessment.Score += points
		assessment.Factors = append(assessment.Factors, factor)
	}

	// Device factors are exclusive: an unknown device already implies the
	// lowest trust.
	switch {
	case newDevice:
		add(riskScoreUnknownDevice, "unknown_device")
	case device != nil && device.TrustLevel == TrustLow:
		add(riskScoreLowTrustDevice, "low_trust_device")
	}

	bruteForce, err := e.riskEvents.CountByTypeSince(ctx, identity.ID, RiskBruteForce, eventCutoff)
	if err != nil {
		return assessment, err
	}
	if bruteForce > 0 {
		points := bruteForce * riskPerBruteForce
		if points > riskBruteForceCap {
			points = riskBruteForceCap
		}
		add(points, fmt.Sprintf("brute_force_events=%d", bruteForce))
	}

	otpAbuse, err := e.riskEvents.CountByTypeSince(ctx, identity.ID, RiskOtpAbuse, eventCutoff)
	if err != nil {
		return assessment, err
	}
	if otpAbuse > 0 {
		points := otpAbuse * riskPerOtpAbuse
		if points > riskOtpAbuseCap {
			points = riskOtpAbuseCap
		}
		add(points, fmt.Sprintf("otp_abuse_events=%d", otpAbuse))
	}

	locked, err := e.security.LockedOut(ctx, identity.ID.String())
	if err != nil {
		return assessment, err
	}
	if locked {
		add(riskScoreLockout, "active_lockout")
	}

	// The live counter is advisory: an outage degrades the score instead of
	// failing the assessment, but never silently.
	live, err := e.security.LiveOtpFailures(ctx, identity.ID.String())
	if err != nil {
		e.logger.Warn("live otp failure counter unavailable, velocity factor skipped",
			zap.Error(err))
	} else if live > riskOtpVelocityFloor {
		add(riskScoreOtpVelocity, fmt.Sprintf("otp_velocity=%d", live))
	}

	if assessment.Score > riskScoreMax {
		assessment.Score = riskScoreMax
	}
	assessment.Level = e.riskLevel(assessment.Score)
	return assessment, nil
}

// ScoreLoginRisk computes the live risk assessment for a prospective login
// from the device signals and client IP carried on the context. It is a
// read-only probe: no device sighting is recorded and no risk event written.
//
// ScoreLoginRisk may return an error when input validation, dependency calls, or security checks fail.
// ScoreLoginRisk does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ScoreLoginRisk(ctx context.Context, identityID uuid.UUID) (RiskAssessment, error) {
	if e.isClosed() {
		return RiskAssessment{}, ErrEngineClosed
	}
	identity, err := e.loadIdentity(ctx, identityID)
	if err != nil {
		return RiskAssessment{}, err
	}

	signals, _ := DeviceSignalsFromContext(ctx)
	fingerprint := internal.Fingerprint(
		signals.UserAgent,
		signals.AcceptLanguage,
		signals.ScreenResolution,
		signals.Timezone,
	)

	device, err := e.devices.ByFingerprint(ctx, identityID, fingerprint)
	newDevice := false
	switch {
	case errors.Is(err, ErrDeviceNotFound):
		newDevice = true
		device = nil
	case err != nil:
		return RiskAssessment{}, err
	}

	return e.assessRisk(ctx, identity, device, newDevice)
}

// EvaluateRiskLevel maps a score onto the configured level tiers.
//
// EvaluateRiskLevel does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) EvaluateRiskLevel(score int) RiskLevel {
	return e.riskLevel(score)
}

func (e *Engine) riskLevel(score int) RiskLevel {
	switch {
	case score >= e.config.Risk.HighFloor:
		return RiskHigh
	case score >= e.config.Risk.MediumFloor:
		return RiskMedium
	default:
		return RiskLow
	}
}

// recordRisk persists a risk event with a score derived from its type. It
// fails open: risk accounting must never abort the security decision that
// triggered it, so persistence errors are logged and dropped.
func (e *Engine) recordRisk(ctx context.Context, identityID *uuid.UUID, eventType RiskEventType, detail string) {
	score := riskEventScore(eventType)
	event := &RiskEvent{
		ID:         uuid.New(),
		IdentityID: identityID,
		Type:       eventType,
		Score:      score,
		Level:      e.riskLevel(score),
		SourceIP:   ClientIPFromContext(ctx),
		Detail:     detail,
		CreatedAt:  e.now(),
	}
	if err := e.riskEvents.Create(ctx, event); err != nil {
		e.logger.Warn("risk event not recorded",
			zap.String("type", string(eventType)), zap.Error(err))
		return
	}
	e.metrics.RiskEventsRecorded.Add(1)
	e.record(ctx, AuditRiskRecorded, identityID, string(eventType))
	if identityID != nil {
		e.security.NoteAnomaly(ctx, identityID.String())
	}
}

// riskEventScore maps an event type to its standalone severity.
func riskEventScore(eventType RiskEventType) int {
	switch eventType {
	case RiskBruteForce, RiskOtpAbuse:
		return 40
	case RiskNewDevice, RiskUnusualIP, RiskGeoAnomaly:
		return 30
	case RiskVelocityAnomaly:
		return 50
	case RiskPinLockout:
		return 60
	case RiskSessionHijack, RiskTokenReplay, RiskAccountTakeoverAttempt:
		return 80
	default:
		return 20
	}
}

// RecordRiskEvent persists an externally detected risk signal, for callers
// such as the session layer reporting hijack indicators.
//
// RecordRiskEvent may return an error when input validation, dependency calls, or security checks fail.
// RecordRiskEvent does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RecordRiskEvent(ctx context.Context, identityID *uuid.UUID, eventType RiskEventType, detail string) error {
	if e.isClosed() {
		return ErrEngineClosed
	}
	e.recordRisk(ctx, identityID, eventType, detail)
	return nil
}

// ShouldBlock reports whether the identity's unresolved risk inside the
// window averages at or above the blocking threshold.
//
// ShouldBlock may return an error when input validation, dependency calls, or security checks fail.
// ShouldBlock does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ShouldBlock(ctx context.Context, identityID uuid.UUID) (bool, error) {
	if e.isClosed() {
		return false, ErrEngineClosed
	}
	events, err := e.riskEvents.UnresolvedSince(ctx, identityID, e.now().Add(-e.config.Risk.Window))
	if err != nil {
		return false, err
	}
	if len(events) == 0 {
		return false, nil
	}
	total := 0
	for _, event := range events {
		total += event.Score
	}
	return total/len(events) >= e.config.Risk.BlockAverage, nil
}

// ResolveRiskEvent marks an investigated event as resolved so it stops
// feeding the blocking average.
//
// ResolveRiskEvent may return an error when input validation, dependency calls, or security checks fail.
// ResolveRiskEvent does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ResolveRiskEvent(ctx context.Context, eventID uuid.UUID) error {
	if e.isClosed() {
		return ErrEngineClosed
	}
	return e.riskEvents.Resolve(ctx, eventID)
}

// RiskHistory returns the identity's unresolved events inside the scoring
// window, newest first.
//
// RiskHistory may return an error when input validation, dependency calls, or security checks fail.
// RiskHistory does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RiskHistory(ctx context.Context, identityID uuid.UUID) ([]*RiskEvent, error) {
	if e.isClosed() {
		return nil, ErrEngineClosed
	}
	return e.riskEvents.UnresolvedSince(ctx, identityID, e.now().Add(-e.config.Risk.Window))
}
