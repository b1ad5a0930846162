// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

// Package auth provides bearer-credential authentication for Tollgate.
//
// # Domain Types
//
// An Account is created with NewAccount, which normalizes email and username
// to lowercase. Repository implementations receive records built this way and
// must compare emails and usernames case-insensitively.
//
// Account status is an explicit state (StatusActive, StatusDeactivated).
// Deactivated accounts cannot log in and their tokens stop resolving, but the
// record stays available for historical lookups.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - register, login, refresh, validate, password change and reset, logout
//   - AccountService - activation toggles, verification and profile updates
//
// Services are created with New*Service constructors that validate dependencies.
//
// # Errors
//
// Every failure reported to callers is an oops error whose code is one of the
// Code* constants. ErrorKind returns that code, or "" for infrastructure
// failures that should be reported as internal errors.
package auth
