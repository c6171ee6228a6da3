package idcore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veriden/idcore/crypto"
	"github.com/veriden/idcore/pin"
)

// Engine defines a public type used by idcore APIs.
//
// Engine is the identity lifecycle and risk-aware authentication core. All
// state lives behind the injected repositories and the Redis security
// state; the engine itself is safe for concurrent use.
type Engine struct {
	config Config
	logger *zap.Logger
	clock  Clock

	identities  IdentityRepository
	challenges  OtpChallengeRepository
	credentials CredentialRepository
	devices     DeviceRepository
	riskEvents  RiskEventRepository

	crypto    *crypto.Service
	pinHasher *pin.Hasher
	security  *securityState
	limiter   *RateLimiter
	tokens    TokenIssuer
	sender    CodeSender
	audit     *auditDispatcher
	metrics   Metrics

	closeOnce sync.Once
	closed    chan struct{}
}

// Close drains the audit dispatcher and stops the engine. Operations called
// after Close return ErrEngineClosed.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		close(e.closed)
		e.audit.close()
	})
	return nil
}

func (e *Engine) isClosed() bool {
	select {
	case <-e.closed:
		return true
	default:
		return false
	}
}

// RateLimit exposes the dual-gate limiter decision for transport
// middleware. identityID may be empty before authentication.
//
// RateLimit may return an error when input validation, dependency calls, or security checks fail.
// RateLimit does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RateLimit(ctx context.Context, group RateGroup, identityID string) (RateDecision, error) {
	dec, err := e.limiter.Allow(ctx, group, ClientIPFromContext(ctx), identityID)
	if err != nil {
		return RateDecision{}, err
	}
	if !dec.Allowed {
		e.metrics.RateLimited.Add(1)
		e.record(ctx, AuditRateLimited, nil, "group="+string(group))
	}
	return dec, nil
}

// record enqueues an audit event carrying the request context's IP and
// request id. It never blocks the calling operation.
func (e *Engine) record(ctx context.Context, eventType AuditEventType, identityID *uuid.UUID, detail string) {
	var requestID *string
	if rid := RequestIDFromContext(ctx); rid != "" {
		requestID = &rid
	}
	e.audit.enqueue(auditRecord{
		eventType:  eventType,
		identityID: identityID,
		requestID:  requestID,
		sourceIP:   ClientIPFromContext(ctx),
		detail:     detail,
		occurredAt: e.clock.Now(),
	})
}

func (e *Engine) now() time.Time {
	return e.clock.Now()
}

// loadIdentity fetches the identity and rejects terminal statuses up front.
func (e *Engine) loadIdentity(ctx context.Context, id uuid.UUID) (*Identity, error) {
	identity, err := e.identities.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch identity.Status {
	case StatusLocked:
		return nil, ErrIdentityLocked
	case StatusSuspended:
		return nil, ErrIdentitySuspended
	}
	return identity, nil
}

// transition applies a status change, enforcing the lifecycle graph.
func (e *Engine) transition(ctx context.Context, identity *Identity, next IdentityStatus) error {
	if identity.Status == next {
		return nil
	}
	if !identity.Status.CanTransitionTo(next) {
		return ErrInvalidStatusTransition
	}
	if err := e.identities.UpdateStatus(ctx, identity.ID, next, e.now()); err != nil {
		return err
	}
	e.record(ctx, AuditStatusChanged, &identity.ID, string(identity.Status)+"->"+string(next))
	identity.Status = next
	return nil
}
