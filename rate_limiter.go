package idcore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateGroup defines a public type used by idcore APIs.
//
// RateGroup instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RateGroup string

const (
	// GroupAuthorize is an exported constant or variable used by the identity engine.
	GroupAuthorize RateGroup = "authorize"
	// GroupToken is an exported constant or variable used by the identity engine.
	GroupToken RateGroup = "token"
	// GroupOtp is an exported constant or variable used by the identity engine.
	GroupOtp RateGroup = "otp"
	// GroupRegistration is an exported constant or variable used by the identity engine.
	GroupRegistration RateGroup = "registration"
	// GroupPin is an exported constant or variable used by the identity engine.
	GroupPin RateGroup = "pin"
	// GroupSessions is an exported constant or variable used by the identity engine.
	GroupSessions RateGroup = "sessions"
)

// RateDecision defines a public type used by idcore APIs.
//
// RateDecision instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RateDecision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter defines a public type used by idcore APIs.
//
// RateLimiter enforces fixed-window counters in Redis: one keyed by source
// IP, one keyed by identity. Both gates must pass. It fails closed like the
// rest of the security state.
type RateLimiter struct {
	client redis.UniversalClient
	cfg    RateLimitConfig
}

// NewRateLimiter describes the new rate limiter operation and its observable behavior.
//
// NewRateLimiter does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewRateLimiter(client redis.UniversalClient, cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{client: client, cfg: cfg}
}

func (l *RateLimiter) ipLimit(group RateGroup) int {
	// PIN endpoints share the OTP per-IP ceiling.
	if group == GroupPin {
		group = GroupOtp
	}
	if limit, ok := l.cfg.PerIP[group]; ok {
		return limit
	}
	return l.cfg.DefaultPerIP
}

func (l *RateLimiter) identityLimit(group RateGroup) int {
	if limit, ok := l.cfg.PerIdentity[group]; ok {
		return limit
	}
	return l.cfg.DefaultPerIdentity
}

// Allow checks both gates for the request. identityID may be empty for
// pre-authentication endpoints; the identity gate is skipped then.
//
// Allow may return an error when input validation, dependency calls, or security checks fail.
// Allow does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (l *RateLimiter) Allow(ctx context.Context, group RateGroup, sourceIP, identityID string) (RateDecision, error) {
	if sourceIP != "" {
		dec, err := l.consume(ctx, "rl:ip:"+string(group)+":"+sourceIP, l.ipLimit(group))
		if err != nil {
			return RateDecision{}, err
		}
		if !dec.Allowed {
			return dec, nil
		}
	}
	if identityID != "" {
		return l.consume(ctx, "rl:id:"+string(group)+":"+identityID, l.identityLimit(group))
	}
	return RateDecision{Allowed: true, Limit: l.ipLimit(group)}, nil
}

func (l *RateLimiter) consume(ctx context.Context, key string, limit int) (RateDecision, error) {
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return RateDecision{}, fmt.Errorf("%w: %v", ErrSecurityStateUnavailable, err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.cfg.Window).Err(); err != nil {
			return RateDecision{}, fmt.Errorf("%w: %v", ErrSecurityStateUnavailable, err)
		}
	}

	if count > int64(limit) {
		// The retry hint is always the full window. Echoing the key's
		// remaining TTL would let a caller probe how far into the window
		// the counter is.
		return RateDecision{Allowed: false, Limit: limit, Remaining: 0, RetryAfter: l.cfg.Window}, nil
	}
	return RateDecision{Allowed: true, Limit: limit, Remaining: limit - int(count)}, nil
}
