package idcore

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestDeviceTrustEscalation(t *testing.T) {
	f := newTestEngine(t)
	id := f.register(t, "784-1990-1234567-0")
	f.activate(t, id, "284917")
	ctx := signalsCtx("Mozilla/5.0")

	var last *LoginResult
	for i := 0; i < 4; i++ {
		result, err := f.engine.Login(ctx, "784-1990-1234567-0", "284917")
		if err != nil {
			t.Fatalf("login %d: %v", i+1, err)
		}
		last = result
	}
	if last.TrustLevel != TrustLow {
		t.Fatalf("trust after 4 logins = %s, want LOW", last.TrustLevel)
	}

	// The fifth sighting reaches the MEDIUM threshold.
	result, err := f.engine.Login(ctx, "784-1990-1234567-0", "284917")
	if err != nil {
		t.Fatalf("fifth login: %v", err)
	}
	if result.TrustLevel != TrustMedium {
		t.Fatalf("trust after 5 logins = %s, want MEDIUM", result.TrustLevel)
	}

	for i := 0; i < 15; i++ {
		if result, err = f.engine.Login(ctx, "784-1990-1234567-0", "284917"); err != nil {
			t.Fatalf("login: %v", err)
		}
	}
	if result.TrustLevel != TrustHigh {
		t.Fatalf("trust after 20 logins = %s, want HIGH", result.TrustLevel)
	}
}

func TestDistinctSignalsCreateDistinctDevices(t *testing.T) {
	f := newTestEngine(t)
	id := f.register(t, "784-1990-1234567-0")
	f.activate(t, id, "284917")

	if _, err := f.engine.Login(signalsCtx("Mozilla/5.0"), "784-1990-1234567-0", "284917"); err != nil {
		t.Fatalf("login: %v", err)
	}
	result, err := f.engine.Login(signalsCtx("Safari/17.0"), "784-1990-1234567-0", "284917")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !result.NewDevice {
		t.Fatal("different user agent should fingerprint as a new device")
	}

	devices, err := f.engine.Devices(signalsCtx("Mozilla/5.0"), id)
	if err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("devices = %d, want 2", len(devices))
	}
}

func TestRevokeDeviceUnknownID(t *testing.T) {
	f := newTestEngine(t)
	id := f.register(t, "784-1990-1234567-0")
	f.activate(t, id, "284917")

	err := f.engine.RevokeDevice(signalsCtx("Mozilla/5.0"), id, uuid.New())
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("err = %v, want ErrDeviceNotFound", err)
	}
}

func TestDevicesUnknownIdentity(t *testing.T) {
	f := newTestEngine(t)
	_, err := f.engine.Devices(signalsCtx("Mozilla/5.0"), uuid.New())
	if !errors.Is(err, ErrIdentityNotFound) {
		t.Fatalf("err = %v, want ErrIdentityNotFound", err)
	}
}
