// Package postgres implements the idcore repositories on PostgreSQL via
// pgx. One Store wraps a shared connection pool; typed views expose the
// per-repository interfaces.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/veriden/idcore"
)

// Store defines a public type used by idcore APIs.
//
// Store instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close describes the close operation and its observable behavior.
func (s *Store) Close() {
	s.pool.Close()
}

// Identities describes the identities operation and its observable behavior.
func (s *Store) Identities() idcore.IdentityRepository { return &identityRepo{s} }

// Challenges describes the challenges operation and its observable behavior.
func (s *Store) Challenges() idcore.OtpChallengeRepository { return &challengeRepo{s} }

// Credentials describes the credentials operation and its observable behavior.
func (s *Store) Credentials() idcore.CredentialRepository { return &credentialRepo{s} }

// Devices describes the devices operation and its observable behavior.
func (s *Store) Devices() idcore.DeviceRepository { return &deviceRepo{s} }

// RiskEvents describes the risk events operation and its observable behavior.
func (s *Store) RiskEvents() idcore.RiskEventRepository { return &riskRepo{s} }

// AuditLog describes the audit log operation and its observable behavior.
func (s *Store) AuditLog() idcore.AuditLogRepository { return &auditRepo{s} }

func noRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
