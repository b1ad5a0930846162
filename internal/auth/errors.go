// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned by repositories when a requested account does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned by repositories when a unique key is already taken.
var ErrAlreadyExists = errors.New("already exists")

// Error kind codes. Every failure the engine reports to callers carries exactly
// one of these as its oops code; anything else is an infrastructure failure.
const (
	CodeAlreadyExists       = "AUTH_ALREADY_EXISTS"
	CodeInvalidCredentials  = "AUTH_INVALID_CREDENTIALS"
	CodeAccountDeactivated  = "AUTH_ACCOUNT_DEACTIVATED"
	CodeInvalidRefreshToken = "AUTH_INVALID_REFRESH_TOKEN"
	CodeInvalidResetToken   = "AUTH_INVALID_RESET_TOKEN"
	CodeIncorrectPassword   = "AUTH_INCORRECT_PASSWORD"
	CodeWeakPassword        = "AUTH_WEAK_PASSWORD"
	CodeUnauthorized        = "AUTH_UNAUTHORIZED"
	CodeNotFound            = "AUTH_NOT_FOUND"
	CodeMalformedToken      = "AUTH_MALFORMED_TOKEN"

	CodeInvalidUsername = "AUTH_INVALID_USERNAME"
	CodeInvalidEmail    = "AUTH_INVALID_EMAIL"
	CodeInvalidProfile  = "AUTH_INVALID_PROFILE"
)

var kindCodes = map[string]struct{}{
	CodeAlreadyExists:       {},
	CodeInvalidCredentials:  {},
	CodeAccountDeactivated:  {},
	CodeInvalidRefreshToken: {},
	CodeInvalidResetToken:   {},
	CodeIncorrectPassword:   {},
	CodeWeakPassword:        {},
	CodeUnauthorized:        {},
	CodeNotFound:            {},
	CodeMalformedToken:      {},
	CodeInvalidUsername:     {},
	CodeInvalidEmail:        {},
	CodeInvalidProfile:      {},
}

// ErrorCode returns the oops code carried by err, or "" if there is none.
func ErrorCode(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}

// ErrorKind returns the error kind code of err, or "" when err is an
// infrastructure failure that callers should treat as internal.
func ErrorKind(err error) string {
	code := ErrorCode(err)
	if _, ok := kindCodes[code]; ok {
		return code
	}
	return ""
}

// IsValidationError reports whether err is an input validation failure.
func IsValidationError(err error) bool {
	switch ErrorCode(err) {
	case CodeWeakPassword, CodeInvalidUsername, CodeInvalidEmail, CodeInvalidProfile:
		return true
	default:
		return false
	}
}
