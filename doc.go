// Package idcore is the identity lifecycle and risk-aware authentication
// core of the Veriden national digital-identity platform.
//
// The engine owns the sensitive half of authentication: registration with
// encrypted PII at rest, the OTP challenge state machine, the argon2id PIN
// credential engine, device fingerprinting and trust, additive risk scoring
// with a blocking policy, Redis-backed fail-closed enforcement counters and
// rate limits, and a tamper-evident hash-chained audit log.
//
// It deliberately does NOT render tokens, serve HTTP, or manage sessions;
// those live at the transport layer and the external token service, wired
// in through the TokenIssuer and CodeSender boundaries.
//
// Build an engine with the Builder:
//
//	engine, err := idcore.NewBuilder().
//		WithIdentityRepository(identities).
//		WithOtpChallengeRepository(challenges).
//		WithCredentialRepository(credentials).
//		WithDeviceRepository(devices).
//		WithRiskEventRepository(riskEvents).
//		WithAuditLogRepository(auditLog).
//		WithRedis(redisClient).
//		WithCrypto(cryptoCfg).
//		WithTokenIssuer(issuer).
//		WithCodeSender(sender).
//		Build()
//
// All engine methods are safe for concurrent use. Request metadata (client
// IP, request id, device signals) travels on the context via WithClientIP,
// WithRequestID, and WithDeviceSignals.
package idcore
