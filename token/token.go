// Package token wraps opaque session ids in signed, short-lived JWTs so a
// cookie binding can reject tampered values before they reach the store.
//
// The token is transport armor only: the session id inside it stays the single
// source of truth, and verification here never replaces the store lookup.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken reports a token that failed signature, structure, or
	// time validation.
	ErrInvalidToken = errors.New("invalid session token")
)

const minSecretLen = 32

// Config configures a Binder.
type Config struct {
	// Secret is the HS256 key. At least 32 bytes.
	Secret []byte

	// TTL bounds the wrapper's own validity. It should be at least the
	// session TTL; a shorter wrapper would expire cookies for sessions the
	// store still considers live.
	TTL time.Duration

	// Issuer is stamped into and required from every token.
	Issuer string

	// Leeway tolerates clock skew during validation. Capped at 2 minutes.
	Leeway time.Duration
}

// Binder mints and verifies signed session tokens.
type Binder struct {
	cfg Config
}

type sessionClaims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

// NewBinder validates cfg and returns a Binder.
func NewBinder(cfg Config) (*Binder, error) {
	if len(cfg.Secret) < minSecretLen {
		return nil, errors.New("token secret must be at least 32 bytes")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("token TTL must be positive")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	if cfg.Issuer == "" {
		cfg.Issuer = "sessionkit"
	}

	return &Binder{cfg: cfg}, nil
}

// Mint signs sessionID into a compact token.
func (b *Binder) Mint(sessionID string) (string, error) {
	if sessionID == "" {
		return "", errors.New("session id required")
	}

	now := time.Now()
	claims := sessionClaims{
		SID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    b.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(b.cfg.TTL)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.cfg.Secret)
}

// Verify checks the signature, issuer, and validity window, and returns the
// embedded session id.
func (b *Binder) Verify(tokenString string) (string, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(
		tokenString,
		&claims,
		func(t *jwt.Token) (any, error) {
			return b.cfg.Secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(b.cfg.Issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(b.cfg.Leeway),
	)
	if err != nil {
		return "", errors.Join(ErrInvalidToken, err)
	}
	if claims.SID == "" {
		return "", ErrInvalidToken
	}

	return claims.SID, nil
}
