// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/tollgate/tollgate/internal/auth/token"
)

// TokenCodec signs and verifies bearer tokens. *token.Codec implements it.
type TokenCodec interface {
	Encode(claims token.Claims, ttl time.Duration, typ token.Type) (string, error)
	Decode(signed string, expected token.Type) (*token.Claims, error)
	DecodeUnverified(signed string) (*token.Claims, error)
	Expired(claims *token.Claims) bool
}

// TokenTTLs are the lifetimes of issued tokens.
type TokenTTLs struct {
	Access        time.Duration
	Refresh       time.Duration
	PasswordReset time.Duration
}

// DefaultTokenTTLs returns 30 minutes, 7 days and 1 hour.
func DefaultTokenTTLs() TokenTTLs {
	return TokenTTLs{
		Access:        token.DefaultAccessTTL,
		Refresh:       token.DefaultRefreshTTL,
		PasswordReset: token.DefaultPasswordResetTTL,
	}
}

// BearerTokenType is the token_type reported alongside issued tokens.
const BearerTokenType = "bearer"

// TokenPair is the set of tokens returned to a client. RefreshToken is empty
// when only an access token was issued.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	TokenPair
	Account PublicAccount `json:"user"`
}

// ValidationResult reports whether an access token identifies an active account.
type ValidationResult struct {
	Valid   bool           `json:"valid"`
	Account *PublicAccount `json:"user,omitempty"`
	Reason  string         `json:"error,omitempty"`
}

// RegisterInput is the data needed to create an account.
type RegisterInput struct {
	Email    string
	Username string
	Password string
	Profile  Profile
}

// Validate applies the input policy. It runs before any hashing or store access.
func (in RegisterInput) Validate() error {
	if err := ValidateEmail(NormalizeEmail(in.Email)); err != nil {
		return err
	}
	if err := ValidateUsername(NormalizeUsername(in.Username)); err != nil {
		return err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return err
	}
	return ValidateProfile(in.Profile)
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger used for audit and failure logging.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTokenTTLs overrides the token lifetimes.
func WithTokenTTLs(ttls TokenTTLs) ServiceOption {
	return func(s *Service) {
		s.ttls = ttls
	}
}

// WithClock overrides the time source used for last-login timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// Service is the authentication engine: registration, login, token refresh
// and validation, and the password change and reset flows. It keeps no
// per-request state and is safe for concurrent use.
type Service struct {
	accounts AccountRepository
	hasher   PasswordHasher
	codec    TokenCodec
	logger   *slog.Logger
	ttls     TokenTTLs
	now      func() time.Time
}

// NewService creates a new Service.
func NewService(accounts AccountRepository, hasher PasswordHasher, codec TokenCodec, opts ...ServiceOption) (*Service, error) {
	if accounts == nil {
		return nil, oops.Errorf("accounts repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if codec == nil {
		return nil, oops.Errorf("token codec is required")
	}

	s := &Service{
		accounts: accounts,
		hasher:   hasher,
		codec:    codec,
		logger:   slog.Default(),
		ttls:     DefaultTokenTTLs(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	if s.ttls.Access <= 0 || s.ttls.Refresh <= 0 || s.ttls.PasswordReset <= 0 {
		return nil, oops.With("ttls", s.ttls).Errorf("token lifetimes must be positive")
	}
	return s, nil
}

// dummyPasswordHash is used when an identifier matches no account so that
// the response time does not reveal whether the account exists.
// This is NOT a real credential and never matches any password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Register creates an active, unverified account and issues an access and
// refresh token for it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (_ *AuthResult, err error) {
	ctx, span := tracer.Start(ctx, "auth.Register")
	defer func() { finishSpan(span, err) }()

	if err := in.Validate(); err != nil {
		return nil, err
	}

	email := NormalizeEmail(in.Email)
	username := NormalizeUsername(in.Username)

	if err := s.ensureAvailable(ctx, "email", email, s.accounts.GetByEmail); err != nil {
		return nil, err
	}
	if err := s.ensureAvailable(ctx, "username", username, s.accounts.GetByUsername); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "hash password").Wrap(err)
	}

	account := NewAccount(email, username, hash, in.Profile)
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, oops.Code(CodeAlreadyExists).Errorf("email or username is already registered")
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "create account").Wrap(err)
	}

	pair, err := s.issuePair(account)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "issue tokens").Wrap(err)
	}

	s.logger.InfoContext(ctx, "account registered", "account", account)
	return &AuthResult{TokenPair: *pair, Account: account.Public()}, nil
}

func (s *Service) ensureAvailable(
	ctx context.Context,
	field, value string,
	lookup func(context.Context, string) (*Account, error),
) error {
	_, err := lookup(ctx, value)
	switch {
	case err == nil:
		return oops.Code(CodeAlreadyExists).
			With("field", field).
			Errorf("%s is already registered", field)
	case errors.Is(err, ErrNotFound):
		return nil
	default:
		return oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "get account by "+field).
			Wrap(err)
	}
}

// Login authenticates identifier (username or email) and password and issues
// a fresh token pair. The deactivation check runs after identity resolution
// and before password comparison.
func (s *Service) Login(ctx context.Context, identifier, password string) (_ *AuthResult, err error) {
	ctx, span := tracer.Start(ctx, "auth.Login")
	defer func() { finishSpan(span, err) }()

	account, err := s.resolveIdentifier(ctx, identifier)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "resolve identifier").
				Wrap(err)
		}
		// Burn the same hashing cost as a real verification.
		_ = s.hasher.Verify(password, dummyPasswordHash)
		s.logger.InfoContext(ctx, "login failed", "reason", "unknown identifier")
		return nil, invalidCredentials()
	}

	if !account.IsActive() {
		s.logger.InfoContext(ctx, "login failed", "reason", "account deactivated", "account", account)
		return nil, oops.Code(CodeAccountDeactivated).
			With("account_id", account.ID).
			Errorf("account is deactivated")
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		s.logger.InfoContext(ctx, "login failed", "reason", "password mismatch", "account", account)
		return nil, invalidCredentials()
	}

	now := s.now().UTC()
	update := AccountUpdate{LastLoginAt: &now}
	if s.hasher.NeedsUpgrade(account.PasswordHash) {
		if upgraded, hashErr := s.hasher.Hash(password); hashErr == nil {
			update.PasswordHash = &upgraded
		}
	}

	if updated, updateErr := s.accounts.UpdateFields(ctx, account.ID, update); updateErr != nil {
		// Login succeeds even if the bookkeeping write fails.
		s.logger.WarnContext(ctx, "failed to record login",
			"account", account,
			"error", updateErr)
		update.Apply(account, now)
	} else {
		account = updated
	}

	pair, err := s.issuePair(account)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "issue tokens").Wrap(err)
	}

	s.logger.InfoContext(ctx, "login succeeded", "account", account)
	return &AuthResult{TokenPair: *pair, Account: account.Public()}, nil
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("invalid username or password")
}

// resolveIdentifier matches identifier against usernames first, then emails.
func (s *Service) resolveIdentifier(ctx context.Context, identifier string) (*Account, error) {
	normalized := NormalizeUsername(identifier)
	if normalized == "" {
		return nil, ErrNotFound
	}

	account, err := s.accounts.GetByUsername(ctx, normalized)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return s.accounts.GetByEmail(ctx, normalized)
}

// Refresh exchanges a refresh token for a new access token. The refresh token
// is not rotated and stays usable until it expires.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (_ *TokenPair, err error) {
	ctx, span := tracer.Start(ctx, "auth.Refresh")
	defer func() { finishSpan(span, err) }()

	claims, err := s.codec.Decode(refreshToken, token.TypeRefresh)
	if err != nil {
		return nil, oops.Code(CodeInvalidRefreshToken).
			With("reason", ErrorCode(err)).
			Errorf("invalid refresh token")
	}

	account, err := s.accounts.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound(claims.UserID)
		}
		return nil, oops.Code("AUTH_REFRESH_FAILED").With("operation", "get account by id").Wrap(err)
	}
	if !account.IsActive() {
		return nil, oops.Code(CodeAccountDeactivated).
			With("account_id", account.ID).
			Errorf("account is deactivated")
	}

	access, err := s.issueAccess(account)
	if err != nil {
		return nil, oops.Code("AUTH_REFRESH_FAILED").With("operation", "issue access token").Wrap(err)
	}

	return &TokenPair{
		AccessToken: access,
		TokenType:   BearerTokenType,
		ExpiresIn:   int64(s.ttls.Access / time.Second),
	}, nil
}

// Validate reports whether accessToken identifies an active account. It
// never returns an error; failures are described by Reason.
func (s *Service) Validate(ctx context.Context, accessToken string) ValidationResult {
	account, err := s.CurrentAccount(ctx, accessToken)
	if err != nil {
		if ErrorKind(err) != CodeUnauthorized {
			s.logger.ErrorContext(ctx, "token validation failed", "error", err)
			return ValidationResult{Reason: "unable to validate token"}
		}
		return ValidationResult{Reason: err.Error()}
	}

	public := account.Public()
	return ValidationResult{Valid: true, Account: &public}
}

// CurrentAccount returns the active account identified by accessToken, or an
// AUTH_UNAUTHORIZED error.
func (s *Service) CurrentAccount(ctx context.Context, accessToken string) (_ *Account, err error) {
	ctx, span := tracer.Start(ctx, "auth.CurrentAccount")
	defer func() { finishSpan(span, err) }()

	if accessToken == "" {
		return nil, unauthorized("missing token", "token is required")
	}

	claims, err := s.codec.Decode(accessToken, token.TypeAccess)
	if err != nil {
		switch ErrorCode(err) {
		case token.CodeExpired:
			return nil, unauthorized("expired", "token has expired")
		case token.CodeWrongType:
			return nil, unauthorized("wrong type", "invalid token type")
		default:
			return nil, unauthorized("invalid", "invalid token")
		}
	}

	var account *Account
	if claims.UserID != 0 {
		account, err = s.accounts.GetByID(ctx, claims.UserID)
	} else {
		account, err = s.accounts.GetByUsername(ctx, claims.Subject)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, unauthorized("account missing", "account not found")
		}
		return nil, oops.Code("AUTH_VALIDATE_FAILED").With("operation", "get account").Wrap(err)
	}

	if !account.IsActive() {
		return nil, unauthorized("account deactivated", "account is deactivated")
	}
	return account, nil
}

func unauthorized(reason, msg string) error {
	return oops.Code(CodeUnauthorized).With("reason", reason).Errorf("%s", msg)
}

func notFound(id int64) error {
	return oops.Code(CodeNotFound).With("account_id", id).Errorf("account not found")
}

// ChangePassword replaces the password of accountID after verifying the
// current one. Tokens issued before the change stay valid until they expire.
func (s *Service) ChangePassword(ctx context.Context, accountID int64, currentPassword, newPassword string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.ChangePassword")
	defer func() { finishSpan(span, err) }()

	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return notFound(accountID)
		}
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("operation", "get account by id").Wrap(err)
	}

	if !s.hasher.Verify(currentPassword, account.PasswordHash) {
		return oops.Code(CodeIncorrectPassword).
			With("account_id", accountID).
			Errorf("current password is incorrect")
	}

	if err := s.storePassword(ctx, accountID, newPassword); err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("account_id", accountID).Wrap(err)
	}

	s.logger.InfoContext(ctx, "password changed", "account", account)
	return nil
}

func (s *Service) storePassword(ctx context.Context, accountID int64, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return oops.With("operation", "hash password").Wrap(err)
	}
	if _, err := s.accounts.UpdateFields(ctx, accountID, AccountUpdate{PasswordHash: &hash}); err != nil {
		return oops.With("operation", "update password hash").Wrap(err)
	}
	return nil
}

// Logout resolves the account behind accessToken for the audit log and
// always succeeds. There is no server-side session to end.
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	account, err := s.CurrentAccount(ctx, accessToken)
	if err != nil {
		s.logger.DebugContext(ctx, "logout with unresolved token", "reason", err.Error())
		return nil
	}
	s.logger.InfoContext(ctx, "logout", "account", account)
	return nil
}

func (s *Service) issuePair(account *Account) (*TokenPair, error) {
	access, err := s.issueAccess(account)
	if err != nil {
		return nil, err
	}
	refresh, err := s.codec.Encode(token.RefreshClaims(account.ID), s.ttls.Refresh, token.TypeRefresh)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    BearerTokenType,
		ExpiresIn:    int64(s.ttls.Access / time.Second),
	}, nil
}

func (s *Service) issueAccess(account *Account) (string, error) {
	claims := token.AccessClaims(account.ID, account.Username, account.Email)
	return s.codec.Encode(claims, s.ttls.Access, token.TypeAccess)
}
