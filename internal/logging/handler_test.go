// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/tollgate/tollgate/pkg/errutil"
)

func setupJSON(t *testing.T, level string) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := Setup(Options{Service: "tollgate", Version: "1.0.0", Format: FormatJSON, Level: level, Writer: &buf})
	require.NoError(t, err)
	return logger, &buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "failed to parse JSON: %s", buf.String())
	return entry
}

func TestSetup_JSONFormat(t *testing.T) {
	logger, buf := setupJSON(t, "")

	logger.Info("account registered", "account_id", 7)

	entry := decode(t, buf)
	assert.Equal(t, "account registered", entry["msg"])
	assert.Equal(t, "tollgate", entry["service"])
	assert.Equal(t, "1.0.0", entry["version"])
	assert.InDelta(t, 7, entry["account_id"], 0)
	assert.Contains(t, entry, "time")
	assert.Contains(t, entry, "level")
}

func TestSetup_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(Options{Service: "tollgate", Format: FormatText, Writer: &buf})
	require.NoError(t, err)

	logger.Info("login succeeded")

	assert.Contains(t, buf.String(), "login succeeded")
	assert.Contains(t, buf.String(), "service=tollgate")
}

func TestSetup_DefaultFormatIsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(Options{Service: "tollgate", Writer: &buf})
	require.NoError(t, err)

	logger.Info("hello")
	decode(t, &buf)
}

func TestSetup_InvalidOptions(t *testing.T) {
	_, err := Setup(Options{Format: "xml"})
	errutil.AssertErrorCode(t, err, "LOG_FORMAT_INVALID")
	errutil.AssertErrorContext(t, err, "format", "xml")

	_, err = Setup(Options{Level: "loud"})
	errutil.AssertErrorCode(t, err, "LOG_LEVEL_INVALID")
}

func TestSetup_LevelFilters(t *testing.T) {
	logger, buf := setupJSON(t, "warn")

	logger.Info("dropped")
	assert.Empty(t, buf.String())

	logger.Warn("kept")
	assert.Equal(t, "kept", decode(t, buf)["msg"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetup_RedactsCredentialKeys(t *testing.T) {
	logger, buf := setupJSON(t, "")

	logger.Info("sensitive",
		"password", "Hunter2!x",
		"refresh_token", "eyJhbGciOi",
		"password_hash", "$argon2id$v=19$",
		"api_key", "k",
		"username", "alice",
		"token_secret_set", true,
	)

	entry := decode(t, buf)
	assert.Equal(t, Redacted, entry["password"])
	assert.Equal(t, Redacted, entry["refresh_token"])
	assert.Equal(t, Redacted, entry["password_hash"])
	assert.Equal(t, Redacted, entry["api_key"])
	assert.Equal(t, "alice", entry["username"])
	assert.Equal(t, true, entry["token_secret_set"])
	assert.NotContains(t, buf.String(), "Hunter2!x")
	assert.NotContains(t, buf.String(), "eyJhbGciOi")
}

func TestHandler_TraceContext(t *testing.T) {
	logger, buf := setupJSON(t, "")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	logger.InfoContext(ctx, "traced")

	entry := decode(t, buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
}

func TestHandler_NoTraceContext(t *testing.T) {
	logger, buf := setupJSON(t, "")

	logger.Info("untraced")

	entry := decode(t, buf)
	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, "span_id")
}

func TestHandler_WithAttrsAndGroup(t *testing.T) {
	logger, buf := setupJSON(t, "")

	logger.With("component", "http").WithGroup("req").Info("handled", "route", "/login")

	entry := decode(t, buf)
	assert.Equal(t, "http", entry["component"])
	req, ok := entry["req"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/login", req["route"])
}

func TestSetDefault(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	logger, err := SetDefault(Options{Service: "tollgate", Version: "2.0.0", Writer: &bytes.Buffer{}})
	require.NoError(t, err)
	assert.Same(t, logger, slog.Default())

	_, err = SetDefault(Options{Format: "xml"})
	require.Error(t, err)
	assert.Same(t, logger, slog.Default())
}
