// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package auth

import (
	"net/mail"
	"regexp"
	"unicode"
	"unicode/utf8"

	"github.com/samber/oops"
)

// Input constraints.
const (
	MinPasswordLength = 8
	MinUsernameLength = 3
	MaxUsernameLength = 100
	MaxEmailLength    = 255
	MaxFullNameLength = 200
	MaxBioLength      = 1000
	MaxAvatarURLength = 500
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidatePassword enforces the password strength policy: at least
// MinPasswordLength characters with one digit and one uppercase letter.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return oops.Code(CodeWeakPassword).
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters long", MinPasswordLength)
	}

	var hasDigit, hasUpper bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsUpper(r):
			hasUpper = true
		}
	}
	if !hasDigit {
		return oops.Code(CodeWeakPassword).Errorf("password must contain at least one digit")
	}
	if !hasUpper {
		return oops.Code(CodeWeakPassword).Errorf("password must contain at least one uppercase letter")
	}
	return nil
}

// ValidateUsername checks length and the allowed character set
// (letters, digits, underscore, hyphen).
func ValidateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < MinUsernameLength {
		return oops.Code(CodeInvalidUsername).
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if n > MaxUsernameLength {
		return oops.Code(CodeInvalidUsername).
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code(CodeInvalidUsername).
			Errorf("username may contain only letters, numbers, underscores, and hyphens")
	}
	return nil
}

// ValidateEmail checks that email is a single bare address.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code(CodeInvalidEmail).Errorf("email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return oops.Code(CodeInvalidEmail).
			With("max", MaxEmailLength).
			Errorf("email must be at most %d characters", MaxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return oops.Code(CodeInvalidEmail).Errorf("email address is not valid")
	}
	return nil
}

// ValidateProfile checks the length limits of the descriptive fields.
func ValidateProfile(p Profile) error {
	return validateProfileFields(&p.FullName, &p.Bio, &p.AvatarURL)
}

func validateProfileFields(fullName, bio, avatarURL *string) error {
	checks := []struct {
		field string
		value *string
		max   int
	}{
		{"full_name", fullName, MaxFullNameLength},
		{"bio", bio, MaxBioLength},
		{"avatar_url", avatarURL, MaxAvatarURLength},
	}
	for _, c := range checks {
		if c.value == nil {
			continue
		}
		if utf8.RuneCountInString(*c.value) > c.max {
			return oops.Code(CodeInvalidProfile).
				With("field", c.field).
				With("max", c.max).
				Errorf("%s must be at most %d characters", c.field, c.max)
		}
	}
	return nil
}
