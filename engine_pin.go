package idcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/veriden/idcore/pin"
)

// SetPin establishes the first PIN credential for an OTP_VERIFIED identity
// and completes registration by activating the account.
//
// SetPin may return an error when input validation, dependency calls, or security checks fail.
// SetPin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) SetPin(ctx context.Context, identityID uuid.UUID, newPin string) error {
	if e.isClosed() {
		return ErrEngineClosed
	}
	if err := pin.ValidatePolicy(newPin); err != nil {
		return err
	}

	identity, err := e.loadIdentity(ctx, identityID)
	if err != nil {
		return err
	}
	if identity.Status != StatusOtpVerified {
		return ErrIdentityNotActive
	}

	if _, err := e.credentials.ByIdentity(ctx, identityID); err == nil {
		return ErrPinAlreadySet
	} else if !errors.Is(err, ErrPinNotSet) {
		return err
	}

	hash, err := e.pinHasher.Hash(newPin)
	if err != nil {
		return err
	}
	if err := e.credentials.Create(ctx, &Credential{
		ID:         uuid.New(),
		IdentityID: identityID,
		PinHash:    hash,
		SetAt:      e.now(),
	}); err != nil {
		return err
	}
	e.record(ctx, AuditPinSet, &identityID, "")

	if err := e.transition(ctx, identity, StatusActive); err != nil {
		return err
	}
	e.metrics.RegistrationsCompleted.Add(1)
	e.record(ctx, AuditRegistrationCompleted, &identityID, "level="+string(identity.AccountLevel))
	return nil
}

// ChangePin rotates the PIN of an ACTIVE identity after verifying the
// current one. The new PIN must satisfy policy and differ from the old.
//
// ChangePin may return an error when input validation, dependency calls, or security checks fail.
// ChangePin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ChangePin(ctx context.Context, identityID uuid.UUID, currentPin, newPin string) error {
	if e.isClosed() {
		return ErrEngineClosed
	}
	if err := pin.ValidatePolicy(newPin); err != nil {
		return err
	}

	identity, err := e.loadIdentity(ctx, identityID)
	if err != nil {
		return err
	}
	if identity.Status != StatusActive {
		return ErrIdentityNotActive
	}

	credential, err := e.verifyPin(ctx, identity, currentPin)
	if err != nil {
		return err
	}

	same, err := e.pinHasher.Verify(newPin, credential.PinHash)
	if err != nil {
		return err
	}
	if same {
		return ErrPinReuse
	}

	hash, err := e.pinHasher.Hash(newPin)
	if err != nil {
		return err
	}
	if err := e.credentials.Rotate(ctx, identityID, hash, e.now()); err != nil {
		return err
	}
	e.record(ctx, AuditPinChanged, &identityID, "")
	return nil
}

// VerifyPin checks the submitted PIN for an ACTIVE identity without running
// the full login pipeline. Step-up confirmation flows use it.
//
// VerifyPin may return an error when input validation, dependency calls, or security checks fail.
// VerifyPin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) VerifyPin(ctx context.Context, identityID uuid.UUID, submittedPin string) error {
	if e.isClosed() {
		return ErrEngineClosed
	}
	identity, err := e.loadIdentity(ctx, identityID)
	if err != nil {
		return err
	}
	if identity.Status != StatusActive {
		return ErrIdentityNotActive
	}
	_, err = e.verifyPin(ctx, identity, submittedPin)
	return err
}

// verifyPin is the shared PIN gate: lockout check, constant-time hash
// comparison, failure accounting, and counter reset on success.
func (e *Engine) verifyPin(ctx context.Context, identity *Identity, submittedPin string) (*Credential, error) {
	locked, err := e.security.LockedOut(ctx, identity.ID.String())
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, ErrLockoutActive
	}

	credential, err := e.credentials.ByIdentity(ctx, identity.ID)
	if err != nil {
		return nil, err
	}

	ok, err := e.pinHasher.Verify(submittedPin, credential.PinHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, e.pinFailed(ctx, identity)
	}

	if err := e.security.ClearFailures(ctx, identity.ID.String()); err != nil {
		return nil, err
	}
	e.metrics.PinVerified.Add(1)
	e.record(ctx, AuditPinVerified, &identity.ID, "")
	return credential, nil
}

func (e *Engine) pinFailed(ctx context.Context, identity *Identity) error {
	count, exceeded, err := e.security.RecordPinFailure(ctx, identity.ID.String())
	if err != nil {
		return err
	}

	e.metrics.PinFailed.Add(1)
	e.record(ctx, AuditPinFailed, &identity.ID,
		fmt.Sprintf("failures=%d/%d", count, e.config.SecurityState.PinCounterMax))
	e.recordRisk(ctx, &identity.ID, RiskBruteForce, fmt.Sprintf("pin failure %d", count))

	if exceeded {
		if err := e.security.Lockout(ctx, identity.ID.String()); err != nil {
			return err
		}
		e.metrics.Lockouts.Add(1)
		e.recordRisk(ctx, &identity.ID, RiskPinLockout, "pin failure ceiling reached")
		e.record(ctx, AuditPinLockout, &identity.ID, fmt.Sprintf("failures=%d", count))
		return ErrLockoutActive
	}
	return ErrPinMismatch
}
