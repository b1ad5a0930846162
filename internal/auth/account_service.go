// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// ProfileUpdate is a partial profile change. Nil fields are left unchanged.
type ProfileUpdate struct {
	Email     *string
	Username  *string
	FullName  *string
	Bio       *string
	AvatarURL *string
}

// AccountService handles account lifecycle and profile management.
type AccountService struct {
	accounts AccountRepository
	logger   *slog.Logger
}

// NewAccountService creates a new AccountService.
func NewAccountService(accounts AccountRepository, logger *slog.Logger) (*AccountService, error) {
	if accounts == nil {
		return nil, oops.Errorf("accounts repository is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &AccountService{accounts: accounts, logger: logger}, nil
}

// Deactivate blocks the account from logging in and from using its tokens.
// The record is kept for historical lookups.
func (s *AccountService) Deactivate(ctx context.Context, id int64) (*Account, error) {
	return s.setStatus(ctx, id, StatusDeactivated)
}

// Activate reverses Deactivate.
func (s *AccountService) Activate(ctx context.Context, id int64) (*Account, error) {
	return s.setStatus(ctx, id, StatusActive)
}

func (s *AccountService) setStatus(ctx context.Context, id int64, status AccountStatus) (*Account, error) {
	account, err := s.update(ctx, id, AccountUpdate{Status: &status})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "account status changed", "account", account)
	return account, nil
}

// MarkVerified records that the account's email has been verified.
func (s *AccountService) MarkVerified(ctx context.Context, id int64) (*Account, error) {
	verified := true
	return s.update(ctx, id, AccountUpdate{Verified: &verified})
}

// UpdateProfile validates and applies a profile change. Email and username
// changes are normalized and must not collide with another account.
func (s *AccountService) UpdateProfile(ctx context.Context, id int64, in ProfileUpdate) (*Account, error) {
	update := AccountUpdate{
		FullName:  in.FullName,
		Bio:       in.Bio,
		AvatarURL: in.AvatarURL,
	}
	if err := validateProfileFields(in.FullName, in.Bio, in.AvatarURL); err != nil {
		return nil, err
	}

	if in.Email != nil {
		email := NormalizeEmail(*in.Email)
		if err := ValidateEmail(email); err != nil {
			return nil, err
		}
		if err := s.ensureFree(ctx, id, "email", email, s.accounts.GetByEmail); err != nil {
			return nil, err
		}
		update.Email = &email
	}

	if in.Username != nil {
		username := NormalizeUsername(*in.Username)
		if err := ValidateUsername(username); err != nil {
			return nil, err
		}
		if err := s.ensureFree(ctx, id, "username", username, s.accounts.GetByUsername); err != nil {
			return nil, err
		}
		update.Username = &username
	}

	if update.IsEmpty() {
		return s.get(ctx, id)
	}
	return s.update(ctx, id, update)
}

// PublicProfile returns the public view of an active account.
func (s *AccountService) PublicProfile(ctx context.Context, username string) (*PublicAccount, error) {
	account, err := s.accounts.GetByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeNotFound).Errorf("account not found")
		}
		return nil, oops.Code("ACCOUNT_PROFILE_FAILED").With("operation", "get account by username").Wrap(err)
	}
	if !account.IsActive() {
		return nil, oops.Code(CodeNotFound).Errorf("account not found")
	}
	public := account.Public()
	return &public, nil
}

// ensureFree fails when value is held by an account other than id.
func (s *AccountService) ensureFree(
	ctx context.Context,
	id int64,
	field, value string,
	lookup func(context.Context, string) (*Account, error),
) error {
	existing, err := lookup(ctx, value)
	switch {
	case err == nil && existing.ID != id:
		return oops.Code(CodeAlreadyExists).
			With("field", field).
			Errorf("%s is already registered", field)
	case err == nil, errors.Is(err, ErrNotFound):
		return nil
	default:
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "get account by "+field).
			Wrap(err)
	}
}

func (s *AccountService) get(ctx context.Context, id int64) (*Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound(id)
		}
		return nil, oops.Code("ACCOUNT_GET_FAILED").With("account_id", id).Wrap(err)
	}
	return account, nil
}

func (s *AccountService) update(ctx context.Context, id int64, update AccountUpdate) (*Account, error) {
	account, err := s.accounts.UpdateFields(ctx, id, update)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, notFound(id)
		case errors.Is(err, ErrAlreadyExists):
			return nil, oops.Code(CodeAlreadyExists).Errorf("email or username is already registered")
		default:
			return nil, oops.Code("ACCOUNT_UPDATE_FAILED").With("account_id", id).Wrap(err)
		}
	}
	return account, nil
}
