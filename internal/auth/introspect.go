// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package auth

import (
	"time"

	"github.com/samber/oops"

	"github.com/tollgate/tollgate/internal/auth/token"
)

// TokenInfo describes the unverified contents of a token. It is support
// tooling output and must never be used to identify a caller.
type TokenInfo struct {
	Type      token.Type `json:"type" yaml:"type"`
	UserID    int64      `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Username  string     `json:"username,omitempty" yaml:"username,omitempty"`
	Email     string     `json:"email,omitempty" yaml:"email,omitempty"`
	TokenID   string     `json:"jti,omitempty" yaml:"jti,omitempty"`
	IssuedAt  *time.Time `json:"issued_at,omitempty" yaml:"issued_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	Expired   bool       `json:"expired" yaml:"expired"`
}

// InspectToken decodes signed without verifying its signature.
func InspectToken(codec TokenCodec, signed string) (*TokenInfo, error) {
	claims, err := codec.DecodeUnverified(signed)
	if err != nil {
		return nil, oops.Code(CodeMalformedToken).Errorf("unable to decode token")
	}

	info := &TokenInfo{
		Type:     claims.Type,
		UserID:   claims.UserID,
		Username: claims.Subject,
		Email:    claims.Email,
		TokenID:  claims.ID,
		Expired:  codec.Expired(claims),
	}
	if claims.IssuedAt != nil {
		t := claims.IssuedAt.UTC()
		info.IssuedAt = &t
	}
	if claims.ExpiresAt != nil {
		t := claims.ExpiresAt.UTC()
		info.ExpiresAt = &t
	}
	return info, nil
}

// TokenInfo reports the unverified contents of a token. Expired is set by
// IsTokenExpired, so a token that fails verification reads as expired.
func (s *Service) TokenInfo(signed string) (*TokenInfo, error) {
	info, err := InspectToken(s.codec, signed)
	if err != nil {
		return nil, err
	}
	info.Expired = s.IsTokenExpired(signed)
	return info, nil
}

// IsTokenExpired reports whether a token is unusable: past its expiry, or
// failing signature verification or decoding.
func (s *Service) IsTokenExpired(signed string) bool {
	claims, err := s.codec.DecodeUnverified(signed)
	if err != nil {
		return true
	}
	_, err = s.codec.Decode(signed, claims.Type)
	return err != nil
}
