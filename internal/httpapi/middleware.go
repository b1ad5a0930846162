// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package httpapi

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tollgate/tollgate/internal/observability"
)

// APIKeyHeader carries the shared client key when one is configured.
const APIKeyHeader = "X-API-Key"

const bearerPrefix = "bearer "

// bearerToken returns the token from an "Authorization: Bearer <token>"
// header, or "" when the header is missing or uses another scheme.
func bearerToken(c *gin.Context) string {
	return parseBearer(c.GetHeader("Authorization"))
}

func parseBearer(header string) string {
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}

// requireAPIKey rejects requests whose X-API-Key does not match key.
func requireAPIKey(key string) gin.HandlerFunc {
	want := []byte(key)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader(APIKeyHeader))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			fail(c, http.StatusForbidden, CodeInvalidAPIKey, "invalid or missing API key", nil)
			return
		}
		c.Next()
	}
}

// requestLog logs each request and counts it by route template.
func requestLog(logger *slog.Logger, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		status := c.Writer.Status()
		metrics.RecordRequest(route, status)

		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "request",
			slog.String("method", c.Request.Method),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		)
	}
}

// recovery turns a handler panic into a 500 envelope.
func recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(c.Request.Context(), "panic serving request",
					slog.Any("panic", r),
					slog.String("path", c.Request.URL.Path),
				)
				fail(c, http.StatusInternalServerError, CodeInternal, internalMessage, nil)
			}
		}()
		c.Next()
	}
}
