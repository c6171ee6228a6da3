// Package token adapts the external OAuth2/OIDC issuer boundary: it signs
// access and refresh tokens for an already-verified identity and exposes the
// key-rotation contract. The identity engine never formats tokens itself; it
// only hands this package a verified identity id and records refresh jti
// replay marks.
package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod defines a public type used by idcore APIs.
//
// SigningMethod instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SigningMethod string

const (
	// MethodEd25519 is an exported constant or variable used by the identity engine.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 is an exported constant or variable used by the identity engine.
	MethodHS256 SigningMethod = "hs256"
)

var (
	// ErrTokenInvalid is an exported constant or variable used by the identity engine.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is an exported constant or variable used by the identity engine.
	ErrTokenExpired = errors.New("token expired")
)

// Config defines a public type used by idcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	KeyID         string

	// KeyNotAfter maps key ids to the end of their validity window; used
	// only by RotationDue to alert operators, never to refuse signing.
	KeyNotAfter map[string]time.Time
	// RotationWarning is how far ahead of KeyNotAfter a key is reported
	// as due for rotation. Defaults to 30 days.
	RotationWarning time.Duration
}

// Claims defines a public type used by idcore APIs.
//
// Claims instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Claims struct {
	TokenUse string `json:"use"` // "access" or "refresh"
	jwt.RegisteredClaims
}

// Pair defines a public type used by idcore APIs.
//
// Pair instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Pair struct {
	AccessToken  string
	RefreshToken string
	RefreshID    string // jti of the refresh token, for replay marks
	AccessExpiry time.Time
}

// Issuer defines a public type used by idcore APIs.
//
// Issuer instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Issuer struct {
	config Config
}

// NewIssuer validates the signing configuration and returns an Issuer.
//
// NewIssuer may return an error when input validation, dependency calls, or security checks fail.
// NewIssuer does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewIssuer(cfg Config) (*Issuer, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL must be >= access TTL")
	}
	if cfg.RotationWarning <= 0 {
		cfg.RotationWarning = 30 * 24 * time.Hour
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires a private key")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) != ed25519.PrivateKeySize {
			return nil, errors.New("ed25519 requires a 64-byte private key")
		}
		if len(cfg.PublicKey) != ed25519.PublicKeySize {
			return nil, errors.New("ed25519 requires a 32-byte public key")
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Issuer{config: cfg}, nil
}

// Issue signs an access/refresh pair for the verified identity id.
//
// Issue may return an error when input validation, dependency calls, or security checks fail.
// Issue does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (i *Issuer) Issue(identityID string) (*Pair, error) {
	if strings.TrimSpace(identityID) == "" {
		return nil, errors.New("identity id must not be empty")
	}

	now := time.Now()
	accessExpiry := now.Add(i.config.AccessTTL)

	access, err := i.sign(Claims{
		TokenUse: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID,
			Issuer:    i.config.Issuer,
			Audience:  i.audience(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExpiry),
		},
	})
	if err != nil {
		return nil, err
	}

	refreshID := uuid.NewString()
	refresh, err := i.sign(Claims{
		TokenUse: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID,
			Issuer:    i.config.Issuer,
			Audience:  i.audience(),
			ID:        refreshID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.config.RefreshTTL)),
		},
	})
	if err != nil {
		return nil, err
	}

	return &Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		RefreshID:    refreshID,
		AccessExpiry: accessExpiry,
	}, nil
}

// RefreshTTL reports the configured refresh lifetime; the engine uses it as
// the TTL of replay marks.
func (i *Issuer) RefreshTTL() time.Duration {
	return i.config.RefreshTTL
}

// Parse verifies a token string and returns its claims.
//
// Parse may return an error when input validation, dependency calls, or security checks fail.
// Parse does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (i *Issuer) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(tokenStr, claims, i.verifyKey,
		jwt.WithValidMethods(i.validMethods()),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// RotationDue returns the key ids whose validity window ends within the
// rotation warning horizon of now. It is a notification contract only; key
// replacement happens in the operator's secrets infrastructure.
func (i *Issuer) RotationDue(now time.Time) []string {
	var due []string
	horizon := now.Add(i.config.RotationWarning)
	for kid, notAfter := range i.config.KeyNotAfter {
		if !notAfter.After(horizon) {
			due = append(due, kid)
		}
	}
	return due
}

func (i *Issuer) sign(claims Claims) (string, error) {
	var t *jwt.Token

	switch i.config.SigningMethod {
	case MethodHS256:
		t = jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	case MethodEd25519:
		t = jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	default:
		return "", errors.New("unsupported signing method")
	}
	if i.config.KeyID != "" {
		t.Header["kid"] = i.config.KeyID
	}

	switch i.config.SigningMethod {
	case MethodHS256:
		return t.SignedString(i.config.PrivateKey)
	default:
		return t.SignedString(ed25519.PrivateKey(i.config.PrivateKey))
	}
}

func (i *Issuer) verifyKey(t *jwt.Token) (interface{}, error) {
	switch i.config.SigningMethod {
	case MethodHS256:
		return i.config.PrivateKey, nil
	case MethodEd25519:
		return ed25519.PublicKey(i.config.PublicKey), nil
	default:
		return nil, errors.New("unsupported signing method")
	}
}

func (i *Issuer) validMethods() []string {
	if i.config.SigningMethod == MethodHS256 {
		return []string{"HS256"}
	}
	return []string{"EdDSA"}
}

func (i *Issuer) audience() jwt.ClaimStrings {
	if i.config.Audience == "" {
		return nil
	}
	return jwt.ClaimStrings{i.config.Audience}
}
