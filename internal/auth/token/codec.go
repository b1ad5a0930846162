// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

// Package token encodes and decodes signed, expiring bearer tokens.
//
// Tokens are HS256 JWTs. Decode verifies in a fixed order: signature first,
// then expiry, then type. DecodeUnverified skips all three and exists only for
// introspection tooling; its output must never be used to grant access.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Type tags a token with the single operation allowed to consume it.
type Type string

// Token types.
const (
	TypeAccess        Type = "access"
	TypeRefresh       Type = "refresh"
	TypePasswordReset Type = "password_reset"
)

// Default lifetimes.
const (
	DefaultAccessTTL        = 30 * time.Minute
	DefaultRefreshTTL       = 7 * 24 * time.Hour
	DefaultPasswordResetTTL = time.Hour
)

// MinSecretLength is the minimum accepted signing key length in bytes.
const MinSecretLength = 32

// Error codes returned by Decode and DecodeUnverified.
const (
	CodeInvalidSignature = "TOKEN_INVALID_SIGNATURE"
	CodeExpired          = "TOKEN_EXPIRED"
	CodeWrongType        = "TOKEN_WRONG_TYPE"
	CodeMalformed        = "TOKEN_MALFORMED"
	CodeEncodeFailed     = "TOKEN_ENCODE_FAILED"
)

// Claims is the signed payload. Registered claims carry sub (username),
// exp, iat and jti.
type Claims struct {
	Type   Type   `json:"type"`
	UserID int64  `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// AccessClaims builds the claim set of an access token.
func AccessClaims(userID int64, username, email string) Claims {
	return Claims{
		UserID:           userID,
		Email:            email,
		RegisteredClaims: jwt.RegisteredClaims{Subject: username},
	}
}

// RefreshClaims builds the claim set of a refresh token with a fresh jti.
func RefreshClaims(userID int64) Claims {
	return Claims{
		UserID:           userID,
		RegisteredClaims: jwt.RegisteredClaims{ID: ulid.Make().String()},
	}
}

// PasswordResetClaims builds the claim set of a password reset token with a fresh jti.
func PasswordResetClaims(userID int64, email string) Claims {
	return Claims{
		UserID:           userID,
		Email:            email,
		RegisteredClaims: jwt.RegisteredClaims{ID: ulid.Make().String()},
	}
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for iat, exp and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// Codec signs and verifies tokens with a shared secret. It holds no mutable
// state and is safe for concurrent use.
type Codec struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

// NewCodec creates a Codec. The secret is copied and must be at least
// MinSecretLength bytes.
func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, oops.Code("TOKEN_SECRET_INVALID").
			With("min", MinSecretLength).
			Errorf("token secret must be at least %d bytes", MinSecretLength)
	}

	c := &Codec{
		secret: append([]byte(nil), secret...),
		method: jwt.SigningMethodHS256,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewInspector creates a Codec without a secret for tooling that only reads
// tokens. It supports DecodeUnverified and Expired; Encode and Decode fail.
func NewInspector(opts ...Option) *Codec {
	c := &Codec{method: jwt.SigningMethodHS256, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encode stamps iat, exp and type into claims and signs them.
func (c *Codec) Encode(claims Claims, ttl time.Duration, typ Type) (string, error) {
	if len(c.secret) == 0 {
		return "", oops.Code(CodeEncodeFailed).With("type", string(typ)).Errorf("codec has no signing secret")
	}
	now := c.now()
	claims.Type = typ
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", oops.Code(CodeEncodeFailed).With("type", string(typ)).Wrap(err)
	}
	return signed, nil
}

// Decode verifies the signature, then expiry, then that the token has the
// expected type. Any parse or signature failure is reported as
// TOKEN_INVALID_SIGNATURE.
func (c *Codec) Decode(signed string, expected Type) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(signed, claims, c.key,
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, oops.Code(CodeInvalidSignature).Wrap(err)
	}

	if c.Expired(claims) {
		return nil, oops.Code(CodeExpired).
			With("type", string(claims.Type)).
			Errorf("token has expired")
	}

	if claims.Type != expected {
		return nil, oops.Code(CodeWrongType).
			With("expected", string(expected)).
			With("actual", string(claims.Type)).
			Errorf("token type mismatch")
	}

	return claims, nil
}

// DecodeUnverified parses the payload without checking the signature,
// expiry or type. Use only for introspection.
func (c *Codec) DecodeUnverified(signed string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(signed, claims); err != nil {
		return nil, oops.Code(CodeMalformed).Wrap(err)
	}
	return claims, nil
}

// Expired reports whether claims carry no expiry or an expiry at or before now.
func (c *Codec) Expired(claims *Claims) bool {
	return claims.ExpiresAt == nil || !c.now().Before(claims.ExpiresAt.Time)
}

func (c *Codec) key(*jwt.Token) (any, error) {
	if len(c.secret) == 0 {
		return nil, jwt.ErrInvalidKey
	}
	return c.secret, nil
}
