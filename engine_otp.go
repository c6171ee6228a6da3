package idcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/veriden/idcore/crypto"
	"github.com/veriden/idcore/internal"
)

// issueChallenge creates and delivers a fresh OTP challenge. The plaintext
// code exists only on the stack between generation and delivery; storage
// keeps the ephemeral hash.
func (e *Engine) issueChallenge(ctx context.Context, identity *Identity, channel OtpChannel) (*OtpDelivery, error) {
	now := e.now()

	// The cooldown measures from the most recent challenge even when it was
	// already consumed, so a fresh verification does not unlock an
	// immediate re-issue.
	if prev, err := e.challenges.LatestByIdentity(ctx, identity.ID, channel); err == nil {
		if now.Sub(prev.CreatedAt) < e.config.Otp.ResendCooldown {
			return nil, ErrOtpCooldown
		}
	} else if !errors.Is(err, ErrOtpNotFound) {
		return nil, err
	}

	destination, err := e.challengeDestination(identity, channel)
	if err != nil {
		return nil, err
	}

	code, err := crypto.GenerateNumericCode(e.config.Otp.CodeLength)
	if err != nil {
		return nil, err
	}

	challenge := &OtpChallenge{
		ID:          uuid.New(),
		IdentityID:  identity.ID,
		Channel:     channel,
		CodeHash:    e.crypto.HashEphemeral(code),
		MaxAttempts: e.config.Otp.MaxAttempts,
		ExpiresAt:   now.Add(e.config.Otp.TTL),
		CreatedAt:   now,
	}
	if err := e.challenges.Create(ctx, challenge); err != nil {
		return nil, err
	}

	if err := e.sender.Send(ctx, channel, destination, code); err != nil {
		return nil, fmt.Errorf("otp delivery: %w", err)
	}

	e.metrics.OtpIssued.Add(1)
	e.record(ctx, AuditOtpSent, &identity.ID,
		"channel="+string(channel)+" dest="+maskDestination(channel, destination))

	return &OtpDelivery{
		ChallengeID: challenge.ID,
		Channel:     channel,
		ExpiresAt:   challenge.ExpiresAt,
		ResendAfter: now.Add(e.config.Otp.ResendCooldown),
	}, nil
}

func (e *Engine) challengeDestination(identity *Identity, channel OtpChannel) (string, error) {
	var enc string
	switch channel {
	case ChannelSMS:
		enc = identity.PhoneEnc
	case ChannelEmail:
		enc = identity.EmailEnc
	default:
		return "", errors.New("unsupported otp channel")
	}
	if enc == "" {
		return "", errors.New("identity has no destination for channel " + string(channel))
	}
	return e.crypto.Decrypt(enc)
}

func maskDestination(channel OtpChannel, destination string) string {
	if channel == ChannelEmail {
		return internal.MaskEmail(destination)
	}
	return internal.MaskPhone(destination)
}

// ResendOtp issues a replacement challenge for an identity still inside the
// OTP phase, subject to the resend cooldown.
//
// ResendOtp may return an error when input validation, dependency calls, or security checks fail.
// ResendOtp does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ResendOtp(ctx context.Context, identityID uuid.UUID, channel OtpChannel) (*OtpDelivery, error) {
	if e.isClosed() {
		return nil, ErrEngineClosed
	}
	identity, err := e.loadIdentity(ctx, identityID)
	if err != nil {
		return nil, err
	}
	locked, err := e.security.LockedOut(ctx, identityID.String())
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, ErrLockoutActive
	}

	delivery, err := e.issueChallenge(ctx, identity, channel)
	if err != nil {
		return nil, err
	}
	if identity.Status == StatusPending || identity.Status == StatusOtpSent {
		if err := e.transition(ctx, identity, StatusOtpSent); err != nil {
			return nil, err
		}
	}
	return delivery, nil
}

// VerifyOtp checks a submitted code against the identity's active challenge.
// Failures bump both the per-challenge attempt row and the Redis failure
// counter; a fully exhausted challenge counts as a failed cycle, and too
// many failed cycles inside the cycle window lock the identity.
//
// VerifyOtp may return an error when input validation, dependency calls, or security checks fail.
// VerifyOtp does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) VerifyOtp(ctx context.Context, identityID uuid.UUID, channel OtpChannel, code string) error {
	if e.isClosed() {
		return ErrEngineClosed
	}
	identity, err := e.loadIdentity(ctx, identityID)
	if err != nil {
		return err
	}

	locked, err := e.security.LockedOut(ctx, identityID.String())
	if err != nil {
		return err
	}
	if locked {
		return ErrLockoutActive
	}

	challenge, err := e.challenges.ActiveByIdentity(ctx, identityID, channel)
	if err != nil {
		return err
	}
	if challenge.Exhausted() {
		return ErrOtpExhausted
	}
	if challenge.Expired(e.now()) {
		return ErrOtpExpired
	}

	if e.crypto.HashEphemeral(code) != challenge.CodeHash {
		return e.otpFailed(ctx, identity, challenge)
	}

	// Every comparison consumes an attempt, matches included.
	if _, err := e.challenges.IncrementAttempts(ctx, challenge.ID); err != nil {
		return err
	}
	if err := e.challenges.MarkConsumed(ctx, challenge.ID); err != nil {
		return err
	}
	if err := e.security.ClearFailures(ctx, identityID.String()); err != nil {
		return err
	}
	if err := e.identities.ResetFailedOtpCycles(ctx, identityID, e.now()); err != nil {
		return err
	}

	e.metrics.OtpVerified.Add(1)
	e.record(ctx, AuditOtpVerified, &identityID, "channel="+string(channel))

	// Only the registration flow advances status here; an ACTIVE identity
	// verifying a step-up OTP stays ACTIVE.
	if identity.Status == StatusOtpSent {
		return e.transition(ctx, identity, StatusOtpVerified)
	}
	return nil
}

func (e *Engine) otpFailed(ctx context.Context, identity *Identity, challenge *OtpChallenge) error {
	attempts, err := e.challenges.IncrementAttempts(ctx, challenge.ID)
	if err != nil {
		return err
	}

	_, exceeded, err := e.security.RecordOtpFailure(ctx, identity.ID.String())
	if err != nil {
		return err
	}

	e.metrics.OtpFailed.Add(1)
	e.record(ctx, AuditOtpFailed, &identity.ID,
		fmt.Sprintf("attempt=%d/%d", attempts, challenge.MaxAttempts))

	if attempts >= challenge.MaxAttempts {
		if err := e.otpCycleExhausted(ctx, identity); err != nil {
			return err
		}
		return ErrOtpExhausted
	}
	if exceeded {
		e.recordRisk(ctx, &identity.ID, RiskOtpAbuse, "otp failure ceiling reached")
	}
	return ErrOtpMismatch
}

// otpCycleExhausted records a failed challenge cycle and locks the identity
// once the cycle ceiling is reached inside the window.
func (e *Engine) otpCycleExhausted(ctx context.Context, identity *Identity) error {
	now := e.now()
	cycles, err := e.identities.IncrementFailedOtpCycles(ctx, identity.ID, now.Add(-e.config.Otp.CycleWindow), now)
	if err != nil {
		return err
	}
	e.recordRisk(ctx, &identity.ID, RiskOtpAbuse, fmt.Sprintf("challenge exhausted, cycle %d", cycles))

	if cycles >= e.config.Otp.MaxFailedCycles {
		if err := e.security.Lockout(ctx, identity.ID.String()); err != nil {
			return err
		}
		if err := e.transition(ctx, identity, StatusLocked); err != nil {
			return err
		}
		e.metrics.Lockouts.Add(1)
		e.record(ctx, AuditOtpLockout, &identity.ID, fmt.Sprintf("cycles=%d", cycles))
	}
	return nil
}
