package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
)

const (
	aesKeyLength = 32
	gcmIVLength  = 12
)

var (
	// ErrInvalidKeyLength is an exported constant or variable used by the identity engine.
	ErrInvalidKeyLength = errors.New("aes key must be exactly 32 bytes")
	// ErrMissingLookupSalt is an exported constant or variable used by the identity engine.
	ErrMissingLookupSalt = errors.New("lookup salt must not be empty")
	// ErrDecryptFailed is an exported constant or variable used by the identity engine.
	ErrDecryptFailed = errors.New("decryption failed")
	// ErrMalformedEnvelope is an exported constant or variable used by the identity engine.
	ErrMalformedEnvelope = errors.New("malformed ciphertext envelope")
	// ErrInvalidCodeLength is an exported constant or variable used by the identity engine.
	ErrInvalidCodeLength = errors.New("code length must be positive")
)

// Config defines a public type used by idcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	// LookupSalt is the server-wide salt mixed into HashLookup digests.
	LookupSalt string
	// AESKey is the 32-byte AES-256-GCM key for reversible PII.
	AESKey []byte
}

// Service defines a public type used by idcore APIs.
//
// Service instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Service struct {
	lookupSalt string
	aead       cipher.AEAD
}

// New validates the key material and returns a ready Service.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New(cfg Config) (*Service, error) {
	if strings.TrimSpace(cfg.LookupSalt) == "" {
		return nil, ErrMissingLookupSalt
	}
	if len(cfg.AESKey) != aesKeyLength {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKeyLength, len(cfg.AESKey))
	}

	block, err := aes.NewCipher(cfg.AESKey)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Service{
		lookupSalt: cfg.LookupSalt,
		aead:       aead,
	}, nil
}

// HashLookup returns the salted SHA-256 hex digest of plaintext. The salt is
// a fixed server secret, so equal inputs always map to equal digests and
// duplicates can be detected without ever storing the plaintext.
func (s *Service) HashLookup(plaintext string) string {
	sum := sha256.Sum256([]byte(s.lookupSalt + ":" + plaintext))
	return hex.EncodeToString(sum[:])
}

// HashEphemeral returns the unsalted SHA-256 hex digest of plaintext. Only
// for short-lived single-use secrets (one-time codes) where attempt limits,
// not salt, mitigate the narrow keyspace.
func (s *Service) HashEphemeral(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// Encrypt seals plaintext with AES-256-GCM and returns
// base64(IV || ciphertext || tag). The IV is freshly random per call, so
// encrypting the same plaintext twice yields distinct envelopes.
//
// Encrypt may return an error when input validation, dependency calls, or security checks fail.
// Encrypt does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, gcmIVLength)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	sealed := s.aead.Seal(nil, iv, []byte(plaintext), nil)

	envelope := make([]byte, 0, len(iv)+len(sealed))
	envelope = append(envelope, iv...)
	envelope = append(envelope, sealed...)

	return base64.StdEncoding.EncodeToString(envelope), nil
}

// Decrypt opens a base64(IV || ciphertext || tag) envelope produced by
// Encrypt. A truncated envelope or a tag mismatch yields ErrDecryptFailed
// or ErrMalformedEnvelope; no partial plaintext is ever returned.
//
// Decrypt may return an error when input validation, dependency calls, or security checks fail.
// Decrypt does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Service) Decrypt(envelope string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if len(raw) < gcmIVLength+s.aead.Overhead() {
		return "", ErrMalformedEnvelope
	}

	iv := raw[:gcmIVLength]
	sealed := raw[gcmIVLength:]

	plaintext, err := s.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}

	return string(plaintext), nil
}

// GenerateNumericCode returns a cryptographically secure random digit string
// of the given length.
//
// GenerateNumericCode may return an error when input validation, dependency calls, or security checks fail.
// GenerateNumericCode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func GenerateNumericCode(length int) (string, error) {
	if length <= 0 {
		return "", ErrInvalidCodeLength
	}

	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	return b.String(), nil
}
