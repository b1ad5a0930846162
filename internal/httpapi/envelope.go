// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tollgate/tollgate/internal/auth"
	"github.com/tollgate/tollgate/pkg/errutil"
)

// Codes used for failures that do not come from the auth engine.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInvalidAPIKey  = "INVALID_API_KEY"
	CodeRouteNotFound  = "ROUTE_NOT_FOUND"
	CodeInternal       = "INTERNAL_ERROR"
)

const internalMessage = "internal server error"

// Response is the envelope every endpoint answers with.
type Response struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	Details   any    `json:"details,omitempty"`
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Response{Success: true, Message: message, Data: data})
}

func fail(c *gin.Context, status int, code, message string, details any) {
	c.AbortWithStatusJSON(status, Response{Message: message, ErrorCode: code, Details: details})
}

// StatusFor maps an error kind code to an HTTP status. Unknown codes,
// including the empty code of infrastructure failures, map to 500.
func StatusFor(kind string) int {
	switch kind {
	case auth.CodeAlreadyExists:
		return http.StatusConflict
	case auth.CodeInvalidCredentials, auth.CodeInvalidRefreshToken, auth.CodeUnauthorized:
		return http.StatusUnauthorized
	case auth.CodeAccountDeactivated:
		return http.StatusForbidden
	case auth.CodeWeakPassword, auth.CodeInvalidUsername, auth.CodeInvalidEmail, auth.CodeInvalidProfile:
		return http.StatusUnprocessableEntity
	case auth.CodeIncorrectPassword, auth.CodeInvalidResetToken, auth.CodeMalformedToken:
		return http.StatusBadRequest
	case auth.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err to the client. Error kinds are reported verbatim;
// anything else is logged and hidden behind a generic message.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	kind := auth.ErrorKind(err)
	if kind == "" {
		errutil.LogErrorContext(c.Request.Context(), logger, "request failed", err)
		fail(c, http.StatusInternalServerError, CodeInternal, internalMessage, nil)
		return
	}
	fail(c, StatusFor(kind), kind, err.Error(), nil)
}
