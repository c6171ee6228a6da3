package idcore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/veriden/idcore/internal"
)

// observeDevice fingerprints the request and atomically records the device
// sighting. Trust escalates from the returned login count; the escalation
// write is separate from the sighting but trust only ever moves upward, so
// a concurrent duplicate write is harmless.
func (e *Engine) observeDevice(ctx context.Context, identityID uuid.UUID) (*DeviceSession, bool, error) {
	signals, _ := DeviceSignalsFromContext(ctx)
	fingerprint := internal.Fingerprint(
		signals.UserAgent,
		signals.AcceptLanguage,
		signals.ScreenResolution,
		signals.Timezone,
	)

	device, created, err := e.devices.Touch(ctx, identityID, fingerprint,
		internal.TruncateUserAgent(signals.UserAgent),
		ClientIPFromContext(ctx), e.now())
	if err != nil {
		return nil, false, err
	}
	if device.Revoked {
		return nil, false, ErrDeviceRevoked
	}

	if next := e.trustFor(device.LoginCount); next != device.TrustLevel && trustRank(next) > trustRank(device.TrustLevel) {
		if err := e.devices.UpdateTrust(ctx, device.ID, next); err != nil {
			return nil, false, err
		}
		device.TrustLevel = next
	}

	e.record(ctx, AuditDeviceObserved, &identityID,
		fmt.Sprintf("fp=%s created=%t logins=%d", internal.Mask(fingerprint, 8), created, device.LoginCount))
	if created {
		e.recordRisk(ctx, &identityID, RiskNewDevice, "first sighting of device "+internal.Mask(fingerprint, 8))
	}
	return device, created, nil
}

func (e *Engine) trustFor(loginCount int) TrustLevel {
	switch {
	case loginCount >= e.config.Device.TrustHighAt:
		return TrustHigh
	case loginCount >= e.config.Device.TrustMediumAt:
		return TrustMedium
	default:
		return TrustLow
	}
}

func trustRank(level TrustLevel) int {
	switch level {
	case TrustHigh:
		return 2
	case TrustMedium:
		return 1
	default:
		return 0
	}
}

// Devices lists the identity's known devices, revoked ones included.
//
// Devices may return an error when input validation, dependency calls, or security checks fail.
// Devices does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Devices(ctx context.Context, identityID uuid.UUID) ([]*DeviceSession, error) {
	if e.isClosed() {
		return nil, ErrEngineClosed
	}
	if _, err := e.identities.ByID(ctx, identityID); err != nil {
		return nil, err
	}
	return e.devices.ByIdentity(ctx, identityID)
}

// RevokeDevice permanently bars a device from logging in. Revocation does
// not reverse; a revoked fingerprint stays revoked.
//
// RevokeDevice may return an error when input validation, dependency calls, or security checks fail.
// RevokeDevice does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RevokeDevice(ctx context.Context, identityID, deviceID uuid.UUID) error {
	if e.isClosed() {
		return ErrEngineClosed
	}
	devices, err := e.devices.ByIdentity(ctx, identityID)
	if err != nil {
		return err
	}
	for _, device := range devices {
		if device.ID == deviceID {
			if err := e.devices.Revoke(ctx, deviceID, e.now()); err != nil {
				return err
			}
			e.record(ctx, AuditDeviceRevoked, &identityID, "device="+deviceID.String())
			return nil
		}
	}
	return ErrDeviceNotFound
}
