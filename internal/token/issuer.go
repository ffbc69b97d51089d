// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package token issues and verifies signed session tokens.
package token

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// MinSigningKeyLength is the shortest HMAC key accepted, in bytes.
const MinSigningKeyLength = 32

// DefaultClockSkew is the leeway applied to exp/iat checks.
const DefaultClockSkew = 30 * time.Second

var (
	// ErrInvalidToken is returned for malformed, tampered, or foreign tokens.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned when a well-formed token is past its expiry.
	ErrExpiredToken = errors.New("token expired")

	// ErrSigning is returned when a token cannot be produced.
	ErrSigning = errors.New("token signing failed")
)

// Config holds the issuer settings. SigningKey is copied on construction and
// never changes afterwards.
type Config struct {
	SigningKey []byte
	TTL        time.Duration
	Issuer     string
	ClockSkew  time.Duration
}

// Claims are the verified contents of a session token.
type Claims struct {
	Username  string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer signs and verifies HS256 session tokens.
type Issuer struct {
	key       []byte
	ttl       time.Duration
	issuer    string
	clockSkew time.Duration
	now       func() time.Time
	newID     func() string
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// NewIssuer validates cfg and returns an Issuer.
func NewIssuer(cfg Config, opts ...Option) (*Issuer, error) {
	if len(cfg.SigningKey) < MinSigningKeyLength {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").
			With("min_length", MinSigningKeyLength).
			Errorf("signing key must be at least %d bytes", MinSigningKeyLength)
	}
	if cfg.TTL <= 0 {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").
			With("ttl", cfg.TTL.String()).
			Errorf("token ttl must be positive")
	}
	if cfg.ClockSkew < 0 {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").
			With("clock_skew", cfg.ClockSkew.String()).
			Errorf("clock skew cannot be negative")
	}

	key := make([]byte, len(cfg.SigningKey))
	copy(key, cfg.SigningKey)

	i := &Issuer{
		key:       key,
		ttl:       cfg.TTL,
		issuer:    cfg.Issuer,
		clockSkew: cfg.ClockSkew,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// TTL returns how long issued tokens stay valid.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue returns a signed token identifying username.
func (i *Issuer) Issue(ctx context.Context, username string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").
			With("username", username).
			Wrap(errors.Join(ErrSigning, err))
	}
	if username == "" {
		return "", oops.Code("TOKEN_SIGN_FAILED").Wrapf(ErrSigning, "subject cannot be empty")
	}

	now := i.now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		Issuer:    i.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		ID:        i.newID(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").
			With("username", username).
			With("signing_method", jwt.SigningMethodHS256.Name).
			Wrap(errors.Join(ErrSigning, err))
	}
	return signed, nil
}

// Verify checks the token's signature, algorithm, issuer, and expiry and
// returns its claims. It returns ErrExpiredToken or ErrInvalidToken.
func (i *Issuer) Verify(_ context.Context, tokenString string) (*Claims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(i.clockSkew),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		// reject non-canonical base64 so every altered byte invalidates the token
		jwt.WithStrictDecoding(),
	}
	if i.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(i.issuer))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, oops.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.key, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, oops.Code("TOKEN_EXPIRED").Wrap(ErrExpiredToken)
		}
		return nil, oops.Code("TOKEN_INVALID").With("reason", err.Error()).Wrap(ErrInvalidToken)
	}

	if claims.Subject == "" {
		return nil, oops.Code("TOKEN_INVALID").With("reason", "missing subject").Wrap(ErrInvalidToken)
	}

	out := &Claims{
		Username: claims.Subject,
		TokenID:  claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
