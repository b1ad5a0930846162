// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

// Package authtest provides test helpers for authentication.
package authtest

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tollgate/tollgate/internal/auth"
	"github.com/tollgate/tollgate/internal/auth/memory"
	"github.com/tollgate/tollgate/internal/auth/token"
)

// Secret is a signing key long enough for token.NewCodec.
var Secret = []byte("authtest-signing-secret-0123456789abcdef")

// FastParams keeps argon2id cheap enough for unit tests.
var FastParams = auth.Argon2idParams{Time: 1, Memory: 1024, Threads: 1, SaltLen: 16, KeyLen: 32}

// Clock is a settable time source shared by the codec and the service.
type Clock struct {
	Now time.Time
}

// NewClock returns a clock stopped at a fixed instant.
func NewClock() *Clock {
	return &Clock{Now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
}

// Time returns the current clock value.
func (c *Clock) Time() time.Time { return c.Now }

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) { c.Now = c.Now.Add(d) }

// Env is a Service wired over an in-memory repository.
type Env struct {
	Service  *auth.Service
	Accounts *auth.AccountService
	Repo     *memory.AccountRepository
	Hasher   *auth.Argon2idHasher
	Codec    *token.Codec
	Clock    *Clock
}

// NewEnv builds an Env. The logger discards output unless one is passed in opts.
func NewEnv(t testing.TB, opts ...auth.ServiceOption) *Env {
	t.Helper()

	clock := NewClock()
	codec, err := token.NewCodec(Secret, token.WithClock(clock.Time))
	require.NoError(t, err)

	repo := memory.NewAccountRepository()
	hasher := auth.NewArgon2idHasherWithParams(FastParams)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	base := []auth.ServiceOption{auth.WithLogger(logger), auth.WithClock(clock.Time)}
	svc, err := auth.NewService(repo, hasher, codec, append(base, opts...)...)
	require.NoError(t, err)

	accounts, err := auth.NewAccountService(repo, logger)
	require.NoError(t, err)

	return &Env{
		Service:  svc,
		Accounts: accounts,
		Repo:     repo,
		Hasher:   hasher,
		Codec:    codec,
		Clock:    clock,
	}
}

// Register creates an account with a valid password and fails the test on error.
func (e *Env) Register(t testing.TB, email, username, password string) *auth.AuthResult {
	t.Helper()
	result, err := e.Service.Register(t.Context(), auth.RegisterInput{
		Email:    email,
		Username: username,
		Password: password,
	})
	require.NoError(t, err)
	return result
}
