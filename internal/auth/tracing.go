// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package auth

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/tollgate/tollgate/internal/auth")

// finishSpan records err on span, if any, and ends it. Only the error code is
// attached; messages may echo user input.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		code := ErrorCode(err)
		if code == "" {
			code = "UNKNOWN"
		}
		span.SetStatus(codes.Error, code)
	}
	span.End()
}
