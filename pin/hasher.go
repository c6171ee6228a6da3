package pin

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	algorithmID = "argon2id"

	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
)

var (
	// ErrHashFormat is an exported constant or variable used by the identity engine.
	ErrHashFormat = errors.New("invalid pin hash format")
	// ErrMissingPepper is an exported constant or variable used by the identity engine.
	ErrMissingPepper = errors.New("server pepper must not be empty")
)

// Config defines a public type used by idcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	// Pepper is the server-wide secret appended to the PIN before hashing.
	Pepper      string
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Hasher defines a public type used by idcore APIs.
//
// Hasher instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Hasher struct {
	config Config
}

// NewHasher validates the argon2id parameters and returns a Hasher.
//
// NewHasher may return an error when input validation, dependency calls, or security checks fail.
// NewHasher does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewHasher(cfg Config) (*Hasher, error) {
	if cfg.Pepper == "" {
		return nil, ErrMissingPepper
	}
	if cfg.Memory < minMemoryKB {
		return nil, errors.New("pin memory must be >= 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return nil, errors.New("pin time cost must be >= 1")
	}
	if cfg.Parallelism < minParallelism {
		return nil, errors.New("pin parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength {
		return nil, errors.New("pin salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return nil, errors.New("pin key length must be >= 16")
	}

	return &Hasher{config: cfg}, nil
}

// Hash derives an argon2id digest of pin+pepper with a fresh random salt and
// returns the self-describing "$argon2id$<salt-b64>$<digest-b64>" string.
//
// Hash may return an error when input validation, dependency calls, or security checks fail.
// Hash does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (h *Hasher) Hash(pin string) (string, error) {
	if err := ValidatePolicy(pin); err != nil {
		return "", err
	}

	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	digest := argon2.IDKey(
		[]byte(pin+h.config.Pepper),
		salt,
		h.config.Time,
		h.config.Memory,
		h.config.Parallelism,
		h.config.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$%s$%s",
		algorithmID,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(digest),
	), nil
}

// Verify recomputes the digest with the stored salt and compares in constant
// time. A wrong PIN is (false, nil); only an undecodable stored hash is an
// error.
//
// Verify may return an error when input validation, dependency calls, or security checks fail.
// Verify does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (h *Hasher) Verify(pin, stored string) (bool, error) {
	salt, expected, err := parseStoredHash(stored)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		[]byte(pin+h.config.Pepper),
		salt,
		h.config.Time,
		h.config.Memory,
		h.config.Parallelism,
		uint32(len(expected)),
	)

	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

func parseStoredHash(stored string) (salt, digest []byte, err error) {
	parts := strings.Split(stored, "$")
	if len(parts) != 4 || parts[0] != "" {
		return nil, nil, ErrHashFormat
	}
	if parts[1] != algorithmID {
		return nil, nil, fmt.Errorf("%w: unsupported algorithm %q", ErrHashFormat, parts[1])
	}

	salt, err = base64.StdEncoding.DecodeString(parts[2])
	if err != nil || len(salt) < int(minSaltLength) {
		return nil, nil, ErrHashFormat
	}

	digest, err = base64.StdEncoding.DecodeString(parts[3])
	if err != nil || len(digest) == 0 {
		return nil, nil, ErrHashFormat
	}

	return salt, digest, nil
}
