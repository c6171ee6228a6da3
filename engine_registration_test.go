package idcore

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestRegisterCreatesIdentityAndSendsOtp(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()

	result, err := f.engine.Register(ctx, RegistrationInput{
		NationalID:  "784-1990-1234567-0",
		Phone:       "+971501235678",
		Email:       "user@example.com",
		DisplayName: "Test User",
		Channel:     ChannelSMS,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if result.Status != StatusOtpSent {
		t.Errorf("status = %s, want OTP_SENT", result.Status)
	}

	code := f.sender.lastCode(t)
	if len(code) != 6 {
		t.Errorf("code length = %d, want 6", len(code))
	}

	identity, err := f.identities.ByID(ctx, result.IdentityID)
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if identity.AccountLevel != LevelSOP1 {
		t.Errorf("account level = %s, want SOP1", identity.AccountLevel)
	}
	if identity.NationalIDEnc == "" || identity.NationalIDEnc == "784-1990-1234567-0" {
		t.Error("national id must be stored encrypted")
	}
	if identity.PhoneEnc == "" || identity.PhoneEnc == "+971501235678" {
		t.Error("phone must be stored encrypted")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	f := newTestEngine(t)
	f.register(t, "784-1990-1234567-0")

	_, err := f.engine.Register(context.Background(), RegistrationInput{
		NationalID: "784-1990-1234567-0",
		Phone:      "+971509990000",
		Channel:    ChannelSMS,
	})
	if !errors.Is(err, ErrIdentityExists) {
		t.Fatalf("err = %v, want ErrIdentityExists", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()

	cases := []RegistrationInput{
		{Phone: "+971501235678", Channel: ChannelSMS},                        // no national id
		{NationalID: "784-1990-1234567-0", Channel: ChannelSMS},              // no contact
		{NationalID: "784-1990-1234567-0", Phone: "+9715", Channel: "PIGEON"}, // bad channel
		{NationalID: "784-1990-1234567-0", Phone: "+9715", Channel: ChannelEmail},
	}
	for i, in := range cases {
		if _, err := f.engine.Register(ctx, in); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("case %d: err = %v, want ErrInvalidInput", i, err)
		}
	}
}

func TestUpdateAccountLevel(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()
	id := f.register(t, "784-1990-1234567-0")

	// Not active yet.
	if err := f.engine.UpdateAccountLevel(ctx, id, LevelSOP2); !errors.Is(err, ErrIdentityNotActive) {
		t.Fatalf("err = %v, want ErrIdentityNotActive", err)
	}

	f.activate(t, id, "284917")
	if err := f.engine.UpdateAccountLevel(ctx, id, LevelSOP2); err != nil {
		t.Fatalf("UpdateAccountLevel: %v", err)
	}
	identity, _ := f.identities.ByID(ctx, id)
	if identity.AccountLevel != LevelSOP2 {
		t.Errorf("level = %s, want SOP2", identity.AccountLevel)
	}
}

func TestSetIdentityStatusLifecycle(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()
	id := f.register(t, "784-1990-1234567-0")
	f.activate(t, id, "284917")

	if err := f.engine.SetIdentityStatus(ctx, id, StatusSuspended); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if got := f.status(t, id); got != StatusSuspended {
		t.Fatalf("status = %s, want SUSPENDED", got)
	}

	// Suspended recovers only to ACTIVE.
	if err := f.engine.SetIdentityStatus(ctx, id, StatusOtpVerified); !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("err = %v, want ErrInvalidStatusTransition", err)
	}
	if err := f.engine.SetIdentityStatus(ctx, id, StatusActive); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
}

func TestRegistrationStatus(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()
	id := f.register(t, "784-1990-1234567-0")

	status, level, err := f.engine.RegistrationStatus(ctx, id)
	if err != nil {
		t.Fatalf("RegistrationStatus: %v", err)
	}
	if status != StatusOtpSent {
		t.Errorf("status = %s, want OTP_SENT", status)
	}
	if level != LevelSOP1 {
		t.Errorf("level = %s, want SOP1", level)
	}

	f.activate(t, id, "284917")
	status, _, err = f.engine.RegistrationStatus(ctx, id)
	if err != nil {
		t.Fatalf("RegistrationStatus: %v", err)
	}
	if status != StatusActive {
		t.Errorf("status = %s, want ACTIVE", status)
	}

	if _, _, err := f.engine.RegistrationStatus(ctx, uuid.New()); !errors.Is(err, ErrIdentityNotFound) {
		t.Fatalf("err = %v, want ErrIdentityNotFound", err)
	}
}

func TestDisplayNameRoundTrip(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()

	result, err := f.engine.Register(ctx, RegistrationInput{
		NationalID:  "784-1990-1234567-0",
		Phone:       "+971501235678",
		DisplayName: "Fatima Al Mansouri",
		Channel:     ChannelSMS,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	name, err := f.engine.DisplayName(ctx, result.IdentityID)
	if err != nil {
		t.Fatalf("DisplayName: %v", err)
	}
	if name != "Fatima Al Mansouri" {
		t.Errorf("name = %q", name)
	}
}
