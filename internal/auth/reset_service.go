// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/tollgate/tollgate/internal/auth/token"
)

// RequestPasswordReset issues a password reset token for the account with
// the given email. It returns an AUTH_NOT_FOUND error for unknown emails;
// transports must hide that distinction from clients.
// Delivering the token (e.g. by email) is NOT this service's job.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (_ string, err error) {
	ctx, span := tracer.Start(ctx, "auth.RequestPasswordReset")
	defer func() { finishSpan(span, err) }()

	account, err := s.accounts.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", oops.Code(CodeNotFound).Errorf("account not found")
		}
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}

	claims := token.PasswordResetClaims(account.ID, account.Email)
	resetToken, err := s.codec.Encode(claims, s.ttls.PasswordReset, token.TypePasswordReset)
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "issue reset token").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "password reset requested", "account", account, "jti", claims.ID)
	return resetToken, nil
}

// ResetPassword sets a new password using a password reset token. The token
// stays bound to the email it was issued for; it is rejected once the
// account's email changes.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.ResetPassword")
	defer func() { finishSpan(span, err) }()

	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	claims, err := s.codec.Decode(resetToken, token.TypePasswordReset)
	if err != nil {
		return invalidResetToken(ErrorCode(err))
	}

	account, err := s.accounts.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return notFound(claims.UserID)
		}
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "get account by id").
			Wrap(err)
	}

	if claims.Email != "" && claims.Email != account.Email {
		return invalidResetToken("email changed")
	}

	if err := s.storePassword(ctx, account.ID, newPassword); err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").With("account_id", account.ID).Wrap(err)
	}

	s.logger.InfoContext(ctx, "password reset completed", "account", account, "jti", claims.ID)
	return nil
}

func invalidResetToken(reason string) error {
	return oops.Code(CodeInvalidResetToken).
		With("reason", reason).
		Errorf("invalid or expired reset token")
}
