// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

// Package postgres implements auth.AccountRepository on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/tollgate/tollgate/internal/auth"
)

// poolIface is the subset of *pgxpool.Pool used by the repository.
type poolIface interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const accountColumns = `id, email, username, password_hash, full_name, bio, avatar_url,
	status, verified, last_login_at, created_at, updated_at`

// AccountRepository implements auth.AccountRepository using PostgreSQL.
// Emails and usernames are compared with LOWER() on both sides so rows
// written by other tools still match case-insensitively.
type AccountRepository struct {
	pool poolIface
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool poolIface) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create inserts account and fills in its ID and timestamps.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) error {
	status := account.Status
	if status == "" {
		status = auth.StatusActive
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (
			email, username, password_hash, full_name, bio, avatar_url,
			status, verified, last_login_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`,
		auth.NormalizeEmail(account.Email),
		auth.NormalizeUsername(account.Username),
		account.PasswordHash,
		account.Profile.FullName,
		account.Profile.Bio,
		account.Profile.AvatarURL,
		string(status),
		account.Verified,
		account.LastLoginAt,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			return oops.Code("ACCOUNT_CONFLICT").
				With("constraint", constraint).
				Wrap(auth.ErrAlreadyExists)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("username", account.Username).
			Wrap(err)
	}
	account.Email = auth.NormalizeEmail(account.Email)
	account.Username = auth.NormalizeUsername(account.Username)
	account.Status = status
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return r.get(row, "id", id)
}

// GetByEmail retrieves an account by email (case-insensitive).
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE LOWER(email) = LOWER($1)`, email)
	return r.get(row, "email", email)
}

// GetByUsername retrieves an account by username (case-insensitive).
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*auth.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE LOWER(username) = LOWER($1)`, username)
	return r.get(row, "username", username)
}

func (r *AccountRepository) get(row pgx.Row, field string, value any) (*auth.Account, error) {
	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With(field, value).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account by "+field).
			With(field, value).
			Wrap(err)
	}
	return account, nil
}

// UpdateFields applies the non-nil fields of update in a single statement
// and returns the stored row.
func (r *AccountRepository) UpdateFields(ctx context.Context, id int64, update auth.AccountUpdate) (*auth.Account, error) {
	query, args := buildUpdate(id, update)

	account, err := scanAccount(r.pool.QueryRow(ctx, query, args...))
	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	default:
		if constraint, ok := uniqueViolation(err); ok {
			return nil, oops.Code("ACCOUNT_CONFLICT").
				With("id", id).
				With("constraint", constraint).
				Wrap(auth.ErrAlreadyExists)
		}
		return nil, oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update account").
			With("id", id).
			Wrap(err)
	}
}

// buildUpdate renders the UPDATE statement for update. $1 is always the id.
func buildUpdate(id int64, update auth.AccountUpdate) (string, []any) {
	args := []any{id}
	var sets []string
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Email != nil {
		set("email", auth.NormalizeEmail(*update.Email))
	}
	if update.Username != nil {
		set("username", auth.NormalizeUsername(*update.Username))
	}
	if update.PasswordHash != nil {
		set("password_hash", *update.PasswordHash)
	}
	if update.FullName != nil {
		set("full_name", *update.FullName)
	}
	if update.Bio != nil {
		set("bio", *update.Bio)
	}
	if update.AvatarURL != nil {
		set("avatar_url", *update.AvatarURL)
	}
	if update.Status != nil {
		set("status", string(*update.Status))
	}
	if update.Verified != nil {
		set("verified", *update.Verified)
	}
	if update.LastLoginAt != nil {
		set("last_login_at", *update.LastLoginAt)
	}
	sets = append(sets, "updated_at = NOW()")

	query := "UPDATE accounts SET " + strings.Join(sets, ", ") +
		" WHERE id = $1 RETURNING " + accountColumns
	return query, args
}

// scanAccount scans a single row into an Account.
// Callers are responsible for handling pgx.ErrNoRows.
func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		a           auth.Account
		status      string
		lastLoginAt *time.Time
	)
	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.Username,
		&a.PasswordHash,
		&a.Profile.FullName,
		&a.Profile.Bio,
		&a.Profile.AvatarURL,
		&status,
		&a.Verified,
		&lastLoginAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with lookup context
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").With("operation", "scan account").Wrap(err)
	}

	a.Status = auth.AccountStatus(status)
	if !a.Status.Valid() {
		return nil, oops.Code("ACCOUNT_INVALID_STATUS").
			With("id", a.ID).
			With("status", status).
			Errorf("unknown account status %q", status)
	}
	a.LastLoginAt = lastLoginAt
	return &a, nil
}

func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

var _ auth.AccountRepository = (*AccountRepository)(nil)
