// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

// Package memory provides an in-process AccountRepository for tests and
// single-node development servers. Data is lost on restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/tollgate/tollgate/internal/auth"
)

// AccountRepository implements auth.AccountRepository with maps guarded by a
// mutex. Records are copied on the way in and out.
type AccountRepository struct {
	mu         sync.RWMutex
	nextID     int64
	byID       map[int64]*auth.Account
	byEmail    map[string]int64
	byUsername map[string]int64
	now        func() time.Time
}

// NewAccountRepository creates an empty repository.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		byID:       make(map[int64]*auth.Account),
		byEmail:    make(map[string]int64),
		byUsername: make(map[string]int64),
		now:        time.Now,
	}
}

// Create stores a new account and assigns its ID.
func (r *AccountRepository) Create(_ context.Context, account *auth.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := auth.NormalizeEmail(account.Email)
	username := auth.NormalizeUsername(account.Username)
	if _, taken := r.byEmail[email]; taken {
		return oops.Code("ACCOUNT_CREATE_FAILED").With("email", email).Wrap(auth.ErrAlreadyExists)
	}
	if _, taken := r.byUsername[username]; taken {
		return oops.Code("ACCOUNT_CREATE_FAILED").With("username", username).Wrap(auth.ErrAlreadyExists)
	}

	r.nextID++
	account.ID = r.nextID
	account.Email = email
	account.Username = username
	if account.Status == "" {
		account.Status = auth.StatusActive
	}
	now := r.now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = account.CreatedAt

	stored := *account
	r.byID[stored.ID] = &stored
	r.byEmail[email] = stored.ID
	r.byUsername[username] = stored.ID
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(_ context.Context, id int64) (*auth.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(id, "id", id)
}

// GetByEmail retrieves an account by email (case-insensitive).
func (r *AccountRepository) GetByEmail(_ context.Context, email string) (*auth.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	email = auth.NormalizeEmail(email)
	return r.lookup(r.byEmail[email], "email", email)
}

// GetByUsername retrieves an account by username (case-insensitive).
func (r *AccountRepository) GetByUsername(_ context.Context, username string) (*auth.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	username = auth.NormalizeUsername(username)
	return r.lookup(r.byUsername[username], "username", username)
}

// UpdateFields applies a partial update and returns the stored result.
func (r *AccountRepository) UpdateFields(_ context.Context, id int64, update auth.AccountUpdate) (*auth.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}

	next := *current
	update.Apply(&next, r.now().UTC())

	if owner, taken := r.byEmail[next.Email]; taken && owner != id {
		return nil, oops.Code("ACCOUNT_UPDATE_FAILED").With("email", next.Email).Wrap(auth.ErrAlreadyExists)
	}
	if owner, taken := r.byUsername[next.Username]; taken && owner != id {
		return nil, oops.Code("ACCOUNT_UPDATE_FAILED").With("username", next.Username).Wrap(auth.ErrAlreadyExists)
	}

	delete(r.byEmail, current.Email)
	delete(r.byUsername, current.Username)
	r.byEmail[next.Email] = id
	r.byUsername[next.Username] = id
	r.byID[id] = &next

	out := next
	return &out, nil
}

// lookup must be called with the lock held.
func (r *AccountRepository) lookup(id int64, field string, value any) (*auth.Account, error) {
	account, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With(field, value).Wrap(auth.ErrNotFound)
	}
	out := *account
	return &out, nil
}

var _ auth.AccountRepository = (*AccountRepository)(nil)
