// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package httpapi

import (
	"context"
	"log/slog"
)

// ResetNotifier delivers a password reset token to the account owner.
// The token never appears in an HTTP response.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, email, resetToken string) error
}

// LogNotifier records that a reset was requested without delivering it.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// SendPasswordReset logs the request. The token itself is not logged.
func (n *LogNotifier) SendPasswordReset(ctx context.Context, email, _ string) error {
	n.logger.InfoContext(ctx, "password reset delivery skipped: no mail transport configured", "email", email)
	return nil
}
