package idcore

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Login runs the full risk-aware authentication pipeline: identity lookup
// by national id, PIN verification with failure accounting, device
// observation, risk assessment, the blocking decision, and token issuance.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Login(ctx context.Context, nationalID, submittedPin string) (*LoginResult, error) {
	if e.isClosed() {
		return nil, ErrEngineClosed
	}

	identity, err := e.identities.ByLookupHash(ctx, e.crypto.HashLookup(nationalID))
	if err != nil {
		return nil, err
	}
	switch identity.Status {
	case StatusLocked:
		return nil, ErrIdentityLocked
	case StatusSuspended:
		return nil, ErrIdentitySuspended
	case StatusActive:
	default:
		return nil, ErrIdentityNotActive
	}

	if _, err := e.verifyPin(ctx, identity, submittedPin); err != nil {
		return nil, err
	}

	device, newDevice, err := e.observeDevice(ctx, identity.ID)
	if err != nil {
		return nil, err
	}

	assessment, err := e.assessRisk(ctx, identity, device, newDevice)
	if err != nil {
		return nil, err
	}

	block, err := e.ShouldBlock(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	if block {
		e.metrics.LoginsBlocked.Add(1)
		e.recordRisk(ctx, &identity.ID, RiskAccountTakeoverAttempt, "login blocked by risk policy")
		e.record(ctx, AuditLoginBlocked, &identity.ID, "risk="+string(assessment.Level))
		return nil, ErrHighRisk
	}
	if assessment.Level == RiskHigh {
		// A high live score without a blocking history demands a fresh OTP
		// round instead of tokens.
		delivery, err := e.issueChallenge(ctx, identity, e.stepUpChannel(identity))
		if err != nil {
			return nil, err
		}
		e.metrics.LoginsChallenged.Add(1)
		e.record(ctx, AuditLoginChallenged, &identity.ID, "risk="+string(assessment.Level))
		return &LoginResult{
			IdentityID:     identity.ID,
			Device:         device,
			RiskScore:      assessment.Score,
			RiskLevel:      assessment.Level,
			NewDevice:      newDevice,
			TrustLevel:     device.TrustLevel,
			StepUpRequired: true,
			StepUp:         delivery,
			CompletedAt:    e.now(),
		}, nil
	}

	access, refresh, _, expiresAt, err := e.tokens.Issue(ctx, identity.ID.String())
	if err != nil {
		return nil, err
	}

	now := e.now()
	e.metrics.LoginsSucceeded.Add(1)
	e.record(ctx, AuditLoginSucceeded, &identity.ID, "risk="+string(assessment.Level))

	return &LoginResult{
		IdentityID: identity.ID,
		Tokens: TokenPair{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresAt:    expiresAt,
		},
		Device:      device,
		RiskScore:   assessment.Score,
		RiskLevel:   assessment.Level,
		NewDevice:   newDevice,
		TrustLevel:  device.TrustLevel,
		CompletedAt: now,
	}, nil
}

func (e *Engine) stepUpChannel(identity *Identity) OtpChannel {
	if identity.PhoneEnc != "" {
		return ChannelSMS
	}
	return ChannelEmail
}

// Refresh exchanges a refresh token for a new pair. Each refresh token is
// single use: its jti is marked in the security state for the token's
// lifetime, and a second presentation is treated as replay.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e.isClosed() {
		return nil, ErrEngineClosed
	}

	identityIDStr, jti, _, err := e.tokens.VerifyRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	identityID, err := uuid.Parse(identityIDStr)
	if err != nil {
		return nil, errBadSubject
	}

	replayed, err := e.security.MarkTokenUsed(ctx, jti, e.tokens.RefreshTTL())
	if err != nil {
		return nil, err
	}
	if replayed {
		e.metrics.TokenReplays.Add(1)
		e.recordRisk(ctx, &identityID, RiskTokenReplay, "refresh token presented twice")
		e.record(ctx, AuditTokenReplayDetected, &identityID, "jti="+jti)
		return nil, ErrTokenReplayed
	}

	identity, err := e.identities.ByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if identity.Status != StatusActive {
		if identity.Status == StatusLocked {
			return nil, ErrIdentityLocked
		}
		if identity.Status == StatusSuspended {
			return nil, ErrIdentitySuspended
		}
		return nil, ErrIdentityNotActive
	}

	access, refresh, _, expiresAt, err := e.tokens.Issue(ctx, identity.ID.String())
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}, nil
}

var errBadSubject = errors.New("token subject is not a uuid")
