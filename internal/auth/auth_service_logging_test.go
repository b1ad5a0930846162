// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package auth_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tollgate/tollgate/internal/auth"
	"github.com/tollgate/tollgate/internal/auth/authtest"
	"github.com/tollgate/tollgate/internal/auth/mocks"
)

type logEntry struct {
	Level  string `json:"level"`
	Msg    string `json:"msg"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

func decodeLogs(t *testing.T, buf *bytes.Buffer) []logEntry {
	t.Helper()
	var entries []logEntry
	scanner := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for scanner.Scan() {
		var entry logEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestService_LogsNeverContainCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	env := authtest.NewEnv(t, auth.WithLogger(logger))

	registered := env.Register(t, "a@x.com", "alice", "Passw0rd")
	_, err := env.Service.Login(t.Context(), "alice", "Wr0ngPassword")
	require.Error(t, err)
	_, err = env.Service.Login(t.Context(), "alice", "Passw0rd")
	require.NoError(t, err)
	require.NoError(t, env.Service.ChangePassword(t.Context(), registered.Account.ID, "Passw0rd", "N3wPassword"))
	resetToken, err := env.Service.RequestPasswordReset(t.Context(), "a@x.com")
	require.NoError(t, err)
	require.NoError(t, env.Service.ResetPassword(t.Context(), resetToken, "Th1rdPassword"))
	require.NoError(t, env.Service.Logout(t.Context(), registered.AccessToken))

	out := buf.String()
	require.NotEmpty(t, out)
	for _, secret := range []string{
		"Passw0rd", "Wr0ngPassword", "N3wPassword", "Th1rdPassword",
		"$argon2id$", registered.AccessToken, registered.RefreshToken, resetToken,
	} {
		assert.NotContains(t, out, secret)
	}

	var msgs []string
	for _, entry := range decodeLogs(t, &buf) {
		msgs = append(msgs, entry.Msg)
	}
	assert.Contains(t, msgs, "account registered")
	assert.Contains(t, msgs, "login failed")
	assert.Contains(t, msgs, "login succeeded")
	assert.Contains(t, msgs, "password changed")
	assert.Contains(t, msgs, "password reset requested")
	assert.Contains(t, msgs, "password reset completed")
	assert.Contains(t, msgs, "logout")
}

func TestService_Login_LogsLastLoginFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	accounts := mocks.NewMockAccountRepository(t)
	hasher := mocks.NewMockPasswordHasher(t)
	svc, err := auth.NewService(accounts, hasher, newCodec(t), auth.WithLogger(logger))
	require.NoError(t, err)

	account := auth.NewAccount("a@x.com", "alice", "hash", auth.Profile{})
	account.ID = 1
	accounts.On("GetByUsername", mock.Anything, "alice").Return(account, nil)
	hasher.On("Verify", "Passw0rd", "hash").Return(true)
	hasher.On("NeedsUpgrade", "hash").Return(false)
	accounts.On("UpdateFields", mock.Anything, int64(1), mock.AnythingOfType("auth.AccountUpdate")).
		Return(nil, errors.New("database timeout"))

	_, err = svc.Login(context.Background(), "alice", "Passw0rd")
	require.NoError(t, err)

	entries := decodeLogs(t, &buf)
	require.NotEmpty(t, entries)
	assert.Equal(t, "WARN", entries[0].Level)
	assert.Equal(t, "failed to record login", entries[0].Msg)
	assert.Contains(t, entries[0].Error, "database timeout")
}

func TestService_Login_LogsFailureReason(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	env := authtest.NewEnv(t, auth.WithLogger(logger))

	_, err := env.Service.Login(t.Context(), "ghost", "Passw0rd")
	require.Error(t, err)

	entries := decodeLogs(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "INFO", entries[0].Level)
	assert.Equal(t, "unknown identifier", entries[0].Reason)
}
