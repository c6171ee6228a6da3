package idcore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// securityState holds the short-lived enforcement counters in Redis:
// per-identity OTP and PIN failure counters, temporary lockout flags,
// refresh-token replay marks, and advisory anomaly counters.
//
// Every enforcement read and write fails CLOSED: when Redis is unreachable
// the caller receives ErrSecurityStateUnavailable and must deny the
// operation. Only the anomaly counters are advisory and fail open.
type securityState struct {
	client redis.UniversalClient
	cfg    SecurityStateConfig
	logger *zap.Logger
}

func newSecurityState(client redis.UniversalClient, cfg SecurityStateConfig, logger *zap.Logger) *securityState {
	return &securityState{client: client, cfg: cfg, logger: logger}
}

func (s *securityState) key(kind, id string) string {
	return s.cfg.KeyPrefix + kind + ":" + id
}

func (s *securityState) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.OperationTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.cfg.OperationTimeout)
}

// bump increments a fixed-window counter, arming the window TTL on the
// first hit, and returns the post-increment count.
func (s *securityState) bump(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSecurityStateUnavailable, err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrSecurityStateUnavailable, err)
		}
	}
	return count, nil
}

func (s *securityState) clear(ctx context.Context, keys ...string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSecurityStateUnavailable, err)
	}
	return nil
}

// RecordOtpFailure bumps the identity's OTP failure counter and reports
// whether the window ceiling has been reached.
func (s *securityState) RecordOtpFailure(ctx context.Context, identityID string) (count int64, exceeded bool, err error) {
	count, err = s.bump(ctx, s.key("otp", identityID), s.cfg.OtpCounterTTL)
	if err != nil {
		return 0, false, err
	}
	return count, count >= int64(s.cfg.OtpCounterMax), nil
}

// RecordPinFailure bumps the identity's PIN failure counter and reports
// whether the window ceiling has been reached.
func (s *securityState) RecordPinFailure(ctx context.Context, identityID string) (count int64, exceeded bool, err error) {
	count, err = s.bump(ctx, s.key("pin", identityID), s.cfg.PinCounterTTL)
	if err != nil {
		return 0, false, err
	}
	return count, count >= int64(s.cfg.PinCounterMax), nil
}

// ClearFailures removes both failure counters after a successful
// verification.
func (s *securityState) ClearFailures(ctx context.Context, identityID string) error {
	return s.clear(ctx, s.key("otp", identityID), s.key("pin", identityID))
}

// LiveOtpFailures reads the current OTP failure count without bumping it.
func (s *securityState) LiveOtpFailures(ctx context.Context, identityID string) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	count, err := s.client.Get(ctx, s.key("otp", identityID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSecurityStateUnavailable, err)
	}
	return count, nil
}

// Lockout arms the temporary lockout flag for the identity.
func (s *securityState) Lockout(ctx context.Context, identityID string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if err := s.client.Set(ctx, s.key("lock", identityID), "1", s.cfg.LockoutTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSecurityStateUnavailable, err)
	}
	return nil
}

// LockedOut reports whether the identity is inside a lockout window.
func (s *securityState) LockedOut(ctx context.Context, identityID string) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	n, err := s.client.Exists(ctx, s.key("lock", identityID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrSecurityStateUnavailable, err)
	}
	return n > 0, nil
}

// ClearLockout removes the lockout flag, used by administrative unlock.
func (s *securityState) ClearLockout(ctx context.Context, identityID string) error {
	return s.clear(ctx, s.key("lock", identityID))
}

// MarkTokenUsed records a refresh-token jti for the token's remaining
// lifetime and reports whether it was already present. A replay mark that
// already exists means the token was used before.
func (s *securityState) MarkTokenUsed(ctx context.Context, jti string, ttl time.Duration) (replayed bool, err error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	set, err := s.client.SetNX(ctx, s.key("jti", jti), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrSecurityStateUnavailable, err)
	}
	return !set, nil
}

// NoteAnomaly bumps the advisory anomaly counter. It fails open: a Redis
// error is logged and swallowed because anomaly counts only feed risk
// scoring, never enforcement.
func (s *securityState) NoteAnomaly(ctx context.Context, identityID string) {
	if _, err := s.bump(ctx, s.key("anom", identityID), s.cfg.AnomalyTTL); err != nil {
		s.logger.Warn("anomaly counter unavailable", zap.Error(err))
	}
}

// Anomalies reads the advisory anomaly counter, returning 0 on any error.
func (s *securityState) Anomalies(ctx context.Context, identityID string) int64 {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	count, err := s.client.Get(ctx, s.key("anom", identityID)).Int64()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("anomaly counter unavailable", zap.Error(err))
		}
		return 0
	}
	return count
}
