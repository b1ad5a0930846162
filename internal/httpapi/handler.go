// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/tollgate/tollgate/internal/auth"
	"github.com/tollgate/tollgate/internal/observability"
)

// ResetRequestedMessage is returned by forgot-password whether or not the
// email belongs to an account.
const ResetRequestedMessage = "If the email exists, a password reset link has been sent"

// AuthService is the engine behind the auth routes. *auth.Service implements it.
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.AuthResult, error)
	Login(ctx context.Context, identifier, password string) (*auth.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	Validate(ctx context.Context, accessToken string) auth.ValidationResult
	CurrentAccount(ctx context.Context, accessToken string) (*auth.Account, error)
	ChangePassword(ctx context.Context, accountID int64, currentPassword, newPassword string) error
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, resetToken, newPassword string) error
	Logout(ctx context.Context, accessToken string) error
	TokenInfo(signed string) (*auth.TokenInfo, error)
}

// AccountService serves profile routes. *auth.AccountService implements it.
type AccountService interface {
	UpdateProfile(ctx context.Context, id int64, in auth.ProfileUpdate) (*auth.Account, error)
	PublicProfile(ctx context.Context, username string) (*auth.PublicAccount, error)
}

// Handler serves the REST routes.
type Handler struct {
	auth     AuthService
	accounts AccountService
	notifier ResetNotifier
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithResetNotifier replaces the default log-only notifier.
func WithResetNotifier(n ResetNotifier) HandlerOption {
	return func(h *Handler) {
		h.notifier = n
	}
}

// WithMetrics records auth outcomes into m.
func WithMetrics(m *observability.Metrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = m
	}
}

// NewHandler creates a Handler.
func NewHandler(authSvc AuthService, accounts AccountService, logger *slog.Logger, opts ...HandlerOption) (*Handler, error) {
	if authSvc == nil {
		return nil, oops.Errorf("auth service is required")
	}
	if accounts == nil {
		return nil, oops.Errorf("account service is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	h := &Handler{
		auth:     authSvc,
		accounts: accounts,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.notifier == nil {
		h.notifier = NewLogNotifier(logger)
	}
	return h, nil
}

// RegisterRoutes mounts the auth and profile routes on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	a := r.Group("/auth")
	a.POST("/register", h.register)
	a.POST("/login", h.login)
	a.POST("/refresh", h.refresh)
	a.GET("/validate", h.validate)
	a.GET("/me", h.me)
	a.PATCH("/me", h.updateMe)
	a.POST("/change-password", h.changePassword)
	a.POST("/forgot-password", h.forgotPassword)
	a.POST("/reset-password", h.resetPassword)
	a.POST("/logout", h.logout)
	a.GET("/token-info", h.tokenInfo)

	r.GET("/users/:username", h.publicProfile)
}

type registerRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FullName  string `json:"full_name"`
	Bio       string `json:"bio"`
	AvatarURL string `json:"avatar_url"`
}

// loginRequest.Username accepts a username or an email address.
type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type updateProfileRequest struct {
	Email     *string `json:"email"`
	Username  *string `json:"username"`
	FullName  *string `json:"full_name"`
	Bio       *string `json:"bio"`
	AvatarURL *string `json:"avatar_url"`
}

func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, http.StatusBadRequest, CodeInvalidRequest, "invalid request body", nil)
		return false
	}
	return true
}

func (h *Handler) record(operation string, err error) {
	h.metrics.RecordAuthOutcome(operation, err)
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if !h.bind(c, &req) {
		return
	}
	result, err := h.auth.Register(c.Request.Context(), auth.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Profile:  auth.Profile{FullName: req.FullName, Bio: req.Bio, AvatarURL: req.AvatarURL},
	})
	h.record("register", err)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, "User registered successfully", result)
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}
	result, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	h.record("login", err)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Login successful", result)
}

func (h *Handler) refresh(c *gin.Context) {
	var req refreshRequest
	if !h.bind(c, &req) {
		return
	}
	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	h.record("refresh", err)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Token refreshed successfully", pair)
}

func (h *Handler) validate(c *gin.Context) {
	result := h.auth.Validate(c.Request.Context(), bearerToken(c))
	if !result.Valid {
		h.record("validate", oops.Code(auth.CodeUnauthorized).Errorf("%s", result.Reason))
		fail(c, http.StatusUnauthorized, auth.CodeUnauthorized, "Token is invalid", gin.H{"error": result.Reason})
		return
	}
	h.record("validate", nil)
	respond(c, http.StatusOK, "Token is valid", result)
}

func (h *Handler) me(c *gin.Context) {
	account, err := h.auth.CurrentAccount(c.Request.Context(), bearerToken(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Current user retrieved successfully", account.Public())
}

func (h *Handler) updateMe(c *gin.Context) {
	account, err := h.auth.CurrentAccount(c.Request.Context(), bearerToken(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	var req updateProfileRequest
	if !h.bind(c, &req) {
		return
	}
	updated, err := h.accounts.UpdateProfile(c.Request.Context(), account.ID, auth.ProfileUpdate{
		Email:     req.Email,
		Username:  req.Username,
		FullName:  req.FullName,
		Bio:       req.Bio,
		AvatarURL: req.AvatarURL,
	})
	h.record("update_profile", err)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Profile updated successfully", updated.Public())
}

func (h *Handler) changePassword(c *gin.Context) {
	account, err := h.auth.CurrentAccount(c.Request.Context(), bearerToken(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	var req changePasswordRequest
	if !h.bind(c, &req) {
		return
	}
	err = h.auth.ChangePassword(c.Request.Context(), account.ID, req.CurrentPassword, req.NewPassword)
	h.record("change_password", err)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Password changed successfully", nil)
}

func (h *Handler) forgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !h.bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	resetToken, err := h.auth.RequestPasswordReset(ctx, req.Email)
	h.record("forgot_password", err)
	switch {
	case auth.ErrorKind(err) == auth.CodeNotFound:
	case err != nil:
		writeError(c, h.logger, err)
		return
	default:
		if sendErr := h.notifier.SendPasswordReset(ctx, auth.NormalizeEmail(req.Email), resetToken); sendErr != nil {
			h.logger.ErrorContext(ctx, "failed to deliver password reset", "error", sendErr)
		}
	}
	respond(c, http.StatusOK, ResetRequestedMessage, nil)
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !h.bind(c, &req) {
		return
	}
	err := h.auth.ResetPassword(c.Request.Context(), req.Token, req.NewPassword)
	h.record("reset_password", err)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Password reset successfully", nil)
}

func (h *Handler) logout(c *gin.Context) {
	// Logout never fails from the caller's point of view.
	_ = h.auth.Logout(c.Request.Context(), bearerToken(c))
	h.record("logout", nil)
	respond(c, http.StatusOK, "Logged out successfully", nil)
}

func (h *Handler) tokenInfo(c *gin.Context) {
	signed := bearerToken(c)
	if signed == "" {
		signed = c.Query("token")
	}
	info, err := h.auth.TokenInfo(signed)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Token decoded", info)
}

func (h *Handler) publicProfile(c *gin.Context) {
	profile, err := h.accounts.PublicProfile(c.Request.Context(), c.Param("username"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "User retrieved successfully", profile)
}
