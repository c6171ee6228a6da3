package idcore

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/veriden/idcore/crypto"
	"github.com/veriden/idcore/pin"
)

// Builder defines a public type used by idcore APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	logger *zap.Logger
	clock  Clock

	identities  IdentityRepository
	challenges  OtpChallengeRepository
	credentials CredentialRepository
	devices     DeviceRepository
	riskEvents  RiskEventRepository
	auditLog    AuditLogRepository

	redisClient redis.UniversalClient
	cryptoCfg   crypto.Config
	tokens      TokenIssuer
	sender      CodeSender
	auditSink   AuditSink
}

// NewBuilder describes the new builder operation and its observable behavior.
//
// NewBuilder does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewBuilder() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig describes the with config operation and its observable behavior.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithLogger describes the with logger operation and its observable behavior.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock describes the with clock operation and its observable behavior.
func (b *Builder) WithClock(clock Clock) *Builder {
	b.clock = clock
	return b
}

// WithIdentityRepository describes the with identity repository operation and its observable behavior.
func (b *Builder) WithIdentityRepository(repo IdentityRepository) *Builder {
	b.identities = repo
	return b
}

// WithOtpChallengeRepository describes the with otp challenge repository operation and its observable behavior.
func (b *Builder) WithOtpChallengeRepository(repo OtpChallengeRepository) *Builder {
	b.challenges = repo
	return b
}

// WithCredentialRepository describes the with credential repository operation and its observable behavior.
func (b *Builder) WithCredentialRepository(repo CredentialRepository) *Builder {
	b.credentials = repo
	return b
}

// WithDeviceRepository describes the with device repository operation and its observable behavior.
func (b *Builder) WithDeviceRepository(repo DeviceRepository) *Builder {
	b.devices = repo
	return b
}

// WithRiskEventRepository describes the with risk event repository operation and its observable behavior.
func (b *Builder) WithRiskEventRepository(repo RiskEventRepository) *Builder {
	b.riskEvents = repo
	return b
}

// WithAuditLogRepository describes the with audit log repository operation and its observable behavior.
func (b *Builder) WithAuditLogRepository(repo AuditLogRepository) *Builder {
	b.auditLog = repo
	return b
}

// WithRedis describes the with redis operation and its observable behavior.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redisClient = client
	return b
}

// WithCrypto describes the with crypto operation and its observable behavior.
func (b *Builder) WithCrypto(cfg crypto.Config) *Builder {
	b.cryptoCfg = cfg
	return b
}

// WithTokenIssuer describes the with token issuer operation and its observable behavior.
func (b *Builder) WithTokenIssuer(issuer TokenIssuer) *Builder {
	b.tokens = issuer
	return b
}

// WithCodeSender describes the with code sender operation and its observable behavior.
func (b *Builder) WithCodeSender(sender CodeSender) *Builder {
	b.sender = sender
	return b
}

// WithAuditSink describes the with audit sink operation and its observable behavior.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// Build validates the wiring and returns a running Engine. The returned
// engine owns the audit dispatcher goroutine; callers must Close it.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if b.identities == nil || b.challenges == nil || b.credentials == nil ||
		b.devices == nil || b.riskEvents == nil || b.auditLog == nil {
		return nil, errors.New("all repositories are required")
	}
	if b.redisClient == nil {
		return nil, errors.New("redis client is required")
	}
	if b.tokens == nil {
		return nil, errors.New("token issuer is required")
	}
	if b.sender == nil {
		return nil, errors.New("code sender is required")
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.clock == nil {
		b.clock = systemClock{}
	}

	cryptoSvc, err := crypto.New(b.cryptoCfg)
	if err != nil {
		return nil, err
	}
	pinHasher, err := pin.NewHasher(pin.Config{
		Pepper:      b.config.Pin.Pepper,
		Memory:      b.config.Pin.Memory,
		Time:        b.config.Pin.Time,
		Parallelism: b.config.Pin.Parallelism,
		SaltLength:  b.config.Pin.SaltLength,
		KeyLength:   b.config.Pin.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	dispatcher, err := newAuditDispatcher(b.auditLog, b.auditSink, b.config.Audit, b.logger)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:      b.config,
		logger:      b.logger,
		clock:       b.clock,
		identities:  b.identities,
		challenges:  b.challenges,
		credentials: b.credentials,
		devices:     b.devices,
		riskEvents:  b.riskEvents,
		crypto:      cryptoSvc,
		pinHasher:   pinHasher,
		security:    newSecurityState(b.redisClient, b.config.SecurityState, b.logger),
		limiter:     NewRateLimiter(b.redisClient, b.config.RateLimit),
		tokens:      b.tokens,
		sender:      b.sender,
		audit:       dispatcher,
		closed:      make(chan struct{}),
	}
	return e, nil
}
