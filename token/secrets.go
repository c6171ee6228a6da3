package token

import "errors"

// SecretsProvider defines a public type used by idcore APIs.
//
// SecretsProvider is the boundary to the operator's secrets infrastructure:
// it hands out signing key material and the audit chain MAC key. Material is
// read once at startup; rotation replaces the backing secret and restarts
// the process, with RotationDue flagging keys ahead of time.
type SecretsProvider interface {
	// SigningKey returns the private key and, for asymmetric methods, the
	// matching public key. Symmetric methods return a nil public key.
	SigningKey() (private, public []byte, err error)
	AuditChainKey() ([]byte, error)
}

// StaticSecrets defines a public type used by idcore APIs.
//
// StaticSecrets serves fixed key material decoded from configuration at
// startup. It satisfies SecretsProvider for deployments without a vault.
type StaticSecrets struct {
	Private []byte
	Public  []byte
	Chain   []byte
}

// SigningKey may return an error when input validation, dependency calls, or security checks fail.
// SigningKey does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s StaticSecrets) SigningKey() ([]byte, []byte, error) {
	if len(s.Private) == 0 {
		return nil, nil, errors.New("no signing key configured")
	}
	return s.Private, s.Public, nil
}

// AuditChainKey may return an error when input validation, dependency calls, or security checks fail.
// AuditChainKey does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s StaticSecrets) AuditChainKey() ([]byte, error) {
	if len(s.Chain) == 0 {
		return nil, errors.New("no audit chain key configured")
	}
	return s.Chain, nil
}
