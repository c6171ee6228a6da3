package idcore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// RegistrationInput defines a public type used by idcore APIs.
//
// RegistrationInput instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RegistrationInput struct {
	NationalID  string
	Email       string
	Phone       string
	DisplayName string
	Channel     OtpChannel
}

func (in RegistrationInput) validate() error {
	if strings.TrimSpace(in.NationalID) == "" {
		return fmt.Errorf("%w: national id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Email) == "" && strings.TrimSpace(in.Phone) == "" {
		return fmt.Errorf("%w: at least one contact channel is required", ErrInvalidInput)
	}
	switch in.Channel {
	case ChannelSMS:
		if strings.TrimSpace(in.Phone) == "" {
			return fmt.Errorf("%w: sms channel requires a phone number", ErrInvalidInput)
		}
	case ChannelEmail:
		if strings.TrimSpace(in.Email) == "" {
			return fmt.Errorf("%w: email channel requires an email address", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unsupported otp channel", ErrInvalidInput)
	}
	return nil
}

// Register creates a PENDING identity with encrypted PII and immediately
// issues the first OTP challenge, moving the identity to OTP_SENT.
// Duplicate registrations are detected via the deterministic lookup hash.
//
// Register may return an error when input validation, dependency calls, or security checks fail.
// Register does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Register(ctx context.Context, in RegistrationInput) (*RegistrationResult, error) {
	if e.isClosed() {
		return nil, ErrEngineClosed
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	lookup := e.crypto.HashLookup(in.NationalID)
	if _, err := e.identities.ByLookupHash(ctx, lookup); err == nil {
		return nil, ErrIdentityExists
	} else if !errors.Is(err, ErrIdentityNotFound) {
		return nil, err
	}

	identity := &Identity{
		ID:               uuid.New(),
		NationalIDLookup: lookup,
		Status:           StatusPending,
		AccountLevel:     LevelSOP1,
		CreatedAt:        e.now(),
		UpdatedAt:        e.now(),
	}

	var err error
	if identity.NationalIDEnc, err = e.crypto.Encrypt(in.NationalID); err != nil {
		return nil, err
	}
	if in.Email != "" {
		identity.EmailLookup = e.crypto.HashLookup(in.Email)
		if identity.EmailEnc, err = e.crypto.Encrypt(in.Email); err != nil {
			return nil, err
		}
	}
	if in.Phone != "" {
		identity.PhoneLookup = e.crypto.HashLookup(in.Phone)
		if identity.PhoneEnc, err = e.crypto.Encrypt(in.Phone); err != nil {
			return nil, err
		}
	}
	if in.DisplayName != "" {
		if identity.DisplayNameEnc, err = e.crypto.Encrypt(in.DisplayName); err != nil {
			return nil, err
		}
	}

	if err := e.identities.Create(ctx, identity); err != nil {
		return nil, err
	}
	e.metrics.RegistrationsStarted.Add(1)
	e.record(ctx, AuditRegistrationStarted, &identity.ID, "level="+string(identity.AccountLevel))

	delivery, err := e.issueChallenge(ctx, identity, in.Channel)
	if err != nil {
		return nil, err
	}
	if err := e.transition(ctx, identity, StatusOtpSent); err != nil {
		return nil, err
	}

	return &RegistrationResult{
		IdentityID: identity.ID,
		Status:     identity.Status,
		Otp:        *delivery,
	}, nil
}

// UpdateAccountLevel raises or lowers the verification tier of an ACTIVE
// identity.
//
// UpdateAccountLevel may return an error when input validation, dependency calls, or security checks fail.
// UpdateAccountLevel does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) UpdateAccountLevel(ctx context.Context, identityID uuid.UUID, level AccountLevel) error {
	if e.isClosed() {
		return ErrEngineClosed
	}
	switch level {
	case LevelSOP1, LevelSOP2, LevelSOP3:
	default:
		return fmt.Errorf("%w: unknown account level", ErrInvalidInput)
	}

	identity, err := e.loadIdentity(ctx, identityID)
	if err != nil {
		return err
	}
	if identity.Status != StatusActive {
		return ErrIdentityNotActive
	}
	if err := e.identities.UpdateAccountLevel(ctx, identityID, level, e.now()); err != nil {
		return err
	}
	e.record(ctx, AuditStatusChanged, &identityID, "account_level="+string(level))
	return nil
}

// SetIdentityStatus applies an administrative status change (lock, suspend,
// reactivate) with lifecycle enforcement.
//
// SetIdentityStatus may return an error when input validation, dependency calls, or security checks fail.
// SetIdentityStatus does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) SetIdentityStatus(ctx context.Context, identityID uuid.UUID, status IdentityStatus) error {
	if e.isClosed() {
		return ErrEngineClosed
	}
	identity, err := e.identities.ByID(ctx, identityID)
	if err != nil {
		return err
	}
	if err := e.transition(ctx, identity, status); err != nil {
		return err
	}
	if status == StatusActive {
		// Reactivation clears the short-lived enforcement state too.
		if err := e.security.ClearLockout(ctx, identityID.String()); err != nil {
			return err
		}
		if err := e.security.ClearFailures(ctx, identityID.String()); err != nil {
			return err
		}
	}
	return nil
}

// RegistrationStatus reports where an identity sits in the onboarding
// lifecycle together with its account level.
//
// RegistrationStatus may return an error when input validation, dependency calls, or security checks fail.
// RegistrationStatus does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RegistrationStatus(ctx context.Context, identityID uuid.UUID) (IdentityStatus, AccountLevel, error) {
	if e.isClosed() {
		return "", "", ErrEngineClosed
	}
	identity, err := e.identities.ByID(ctx, identityID)
	if err != nil {
		return "", "", err
	}
	return identity.Status, identity.AccountLevel, nil
}

// DisplayName decrypts the stored display name for presentation surfaces.
//
// DisplayName may return an error when input validation, dependency calls, or security checks fail.
// DisplayName does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) DisplayName(ctx context.Context, identityID uuid.UUID) (string, error) {
	if e.isClosed() {
		return "", ErrEngineClosed
	}
	identity, err := e.identities.ByID(ctx, identityID)
	if err != nil {
		return "", err
	}
	if identity.DisplayNameEnc == "" {
		return "", nil
	}
	return e.crypto.Decrypt(identity.DisplayNameEnc)
}
