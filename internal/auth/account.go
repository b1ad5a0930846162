// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

// Account lifecycle states.
const (
	StatusActive      AccountStatus = "active"
	StatusDeactivated AccountStatus = "deactivated"
)

// Valid reports whether s is a known status.
func (s AccountStatus) Valid() bool {
	return s == StatusActive || s == StatusDeactivated
}

// Profile holds the optional descriptive fields of an account.
type Profile struct {
	FullName  string
	Bio       string
	AvatarURL string
}

// Account is an identity record. Email and Username are always stored lowercase.
type Account struct {
	ID           int64
	Email        string
	Username     string
	PasswordHash string
	Profile      Profile
	Status       AccountStatus
	Verified     bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewAccount builds an active, unverified account from validated input.
// The ID is assigned by the repository on Create.
func NewAccount(email, username, passwordHash string, profile Profile) *Account {
	now := time.Now().UTC()
	return &Account{
		Email:        NormalizeEmail(email),
		Username:     NormalizeUsername(username),
		PasswordHash: passwordHash,
		Profile:      profile,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsActive reports whether the account may authenticate.
func (a *Account) IsActive() bool {
	return a.Status == StatusActive
}

// LogValue keeps credential material out of structured logs.
func (a *Account) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("id", a.ID),
		slog.String("username", a.Username),
		slog.String("status", string(a.Status)),
	)
}

// PublicAccount is the caller-facing view of an account.
type PublicAccount struct {
	ID         int64      `json:"id"`
	Email      string     `json:"email"`
	Username   string     `json:"username"`
	FullName   string     `json:"full_name,omitempty"`
	Bio        string     `json:"bio,omitempty"`
	AvatarURL  string     `json:"avatar_url,omitempty"`
	IsActive   bool       `json:"is_active"`
	IsVerified bool       `json:"is_verified"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	LastLogin  *time.Time `json:"last_login"`
}

// Public returns the view of the account that may be returned to callers.
func (a *Account) Public() PublicAccount {
	return PublicAccount{
		ID:         a.ID,
		Email:      a.Email,
		Username:   a.Username,
		FullName:   a.Profile.FullName,
		Bio:        a.Profile.Bio,
		AvatarURL:  a.Profile.AvatarURL,
		IsActive:   a.IsActive(),
		IsVerified: a.Verified,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
		LastLogin:  a.LastLoginAt,
	}
}

// AccountUpdate is a partial update. Nil fields are left unchanged.
type AccountUpdate struct {
	Email        *string
	Username     *string
	PasswordHash *string
	FullName     *string
	Bio          *string
	AvatarURL    *string
	Status       *AccountStatus
	Verified     *bool
	LastLoginAt  *time.Time
}

// IsEmpty reports whether the update changes nothing.
func (u AccountUpdate) IsEmpty() bool {
	return u.Email == nil && u.Username == nil && u.PasswordHash == nil &&
		u.FullName == nil && u.Bio == nil && u.AvatarURL == nil &&
		u.Status == nil && u.Verified == nil && u.LastLoginAt == nil
}

// Apply copies the set fields onto a, normalizing email and username,
// and bumps UpdatedAt.
func (u AccountUpdate) Apply(a *Account, now time.Time) {
	if u.Email != nil {
		a.Email = NormalizeEmail(*u.Email)
	}
	if u.Username != nil {
		a.Username = NormalizeUsername(*u.Username)
	}
	if u.PasswordHash != nil {
		a.PasswordHash = *u.PasswordHash
	}
	if u.FullName != nil {
		a.Profile.FullName = *u.FullName
	}
	if u.Bio != nil {
		a.Profile.Bio = *u.Bio
	}
	if u.AvatarURL != nil {
		a.Profile.AvatarURL = *u.AvatarURL
	}
	if u.Status != nil {
		a.Status = *u.Status
	}
	if u.Verified != nil {
		a.Verified = *u.Verified
	}
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		a.LastLoginAt = &t
	}
	a.UpdatedAt = now
}

// NormalizeEmail returns the canonical stored form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeUsername returns the canonical stored form of a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// AccountRepository persists accounts. Email and username lookups are
// case-insensitive. Lookups that match nothing return an error wrapping
// ErrNotFound; unique-key conflicts return an error wrapping ErrAlreadyExists.
type AccountRepository interface {
	// Create stores a new account and assigns its ID.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id int64) (*Account, error)

	// GetByEmail retrieves an account by email.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// GetByUsername retrieves an account by username.
	GetByUsername(ctx context.Context, username string) (*Account, error)

	// UpdateFields applies a partial update and returns the stored result.
	UpdateFields(ctx context.Context, id int64, update AccountUpdate) (*Account, error)
}
