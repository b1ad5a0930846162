// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tollgate Contributors

//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/prometheus/client_golang/prometheus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tollgate/tollgate/internal/auth"
	authpg "github.com/tollgate/tollgate/internal/auth/postgres"
	"github.com/tollgate/tollgate/internal/auth/token"
	"github.com/tollgate/tollgate/internal/httpapi"
	"github.com/tollgate/tollgate/internal/observability"
	"github.com/tollgate/tollgate/internal/store"
)

const (
	tokenSecret = "integration-secret-0123456789abcdef"
	apiKey      = "integration-api-key"
)

// testEnv holds the resources shared by the end-to-end specs.
type testEnv struct {
	ctx       context.Context
	cancel    context.CancelFunc
	container *postgres.PostgresContainer
	pool      *pgxpool.Pool
	server    *httpapi.Server
	baseURL   string
	resets    *capturedResets
}

// capturedResets records reset tokens instead of mailing them.
type capturedResets struct {
	tokens map[string]string
}

func (c *capturedResets) SendPasswordReset(_ context.Context, email, resetToken string) error {
	c.tokens[email] = resetToken
	return nil
}

func setupTestEnv() (*testEnv, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	env := &testEnv{ctx: ctx, cancel: cancel, resets: &capturedResets{tokens: map[string]string{}}}

	var err error
	env.container, err = postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("tollgate_e2e"),
		postgres.WithUsername("tollgate"),
		postgres.WithPassword("tollgate"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		env.cleanup()
		return nil, err
	}

	connStr, err := env.container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		env.cleanup()
		return nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		env.cleanup()
		return nil, err
	}
	upErr := migrator.Up()
	closeErr := migrator.Close()
	if upErr != nil || closeErr != nil {
		env.cleanup()
		if upErr != nil {
			return nil, upErr
		}
		return nil, closeErr
	}

	env.pool, err = store.Connect(ctx, connStr, store.ConnectOptions{Timeout: 10 * time.Second})
	if err != nil {
		env.cleanup()
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	accounts := authpg.NewAccountRepository(env.pool)
	codec, err := token.NewCodec([]byte(tokenSecret))
	if err != nil {
		env.cleanup()
		return nil, err
	}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	svc, err := auth.NewService(accounts, observability.InstrumentHasher(auth.NewArgon2idHasher(), metrics), codec,
		auth.WithLogger(logger))
	if err != nil {
		env.cleanup()
		return nil, err
	}
	accountSvc, err := auth.NewAccountService(accounts, logger)
	if err != nil {
		env.cleanup()
		return nil, err
	}
	handler, err := httpapi.NewHandler(svc, accountSvc, logger,
		httpapi.WithResetNotifier(env.resets),
		httpapi.WithMetrics(metrics),
	)
	if err != nil {
		env.cleanup()
		return nil, err
	}

	gin.SetMode(gin.TestMode)
	router := httpapi.NewRouter(handler, httpapi.RouterConfig{APIKey: apiKey, Logger: logger, Metrics: metrics})
	env.server = httpapi.NewServer("127.0.0.1:0", router)
	if _, err := env.server.Start(); err != nil {
		env.cleanup()
		return nil, err
	}
	env.baseURL = "http://" + env.server.Addr() + httpapi.BasePath
	return env, nil
}

func (e *testEnv) cleanup() {
	if e.server != nil {
		_ = e.server.Stop(context.Background())
	}
	if e.pool != nil {
		e.pool.Close()
	}
	if e.container != nil {
		_ = e.container.Terminate(context.Background())
	}
	e.cancel()
}

// call sends a JSON request and decodes the envelope.
func (e *testEnv) call(method, path, bearer string, body any) (int, httpapi.Response, map[string]any) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(e.ctx, method, e.baseURL+path, reader)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(httpapi.APIKeyHeader, apiKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	var envelope httpapi.Response
	Expect(json.NewDecoder(resp.Body).Decode(&envelope)).To(Succeed())
	data, _ := envelope.Data.(map[string]any)
	return resp.StatusCode, envelope, data
}

var _ = Describe("Account lifecycle over HTTP with PostgreSQL", Ordered, func() {
	var env *testEnv

	BeforeAll(func() {
		var err error
		env, err = setupTestEnv()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if env != nil {
			env.cleanup()
		}
	})

	var access, refresh string

	It("registers an account and issues tokens", func() {
		status, resp, data := env.call(http.MethodPost, "/auth/register", "", map[string]string{
			"email":     "Alice@Example.com",
			"username":  "Alice",
			"password":  "Sup3rSecret",
			"full_name": "Alice Liddell",
		})
		Expect(status).To(Equal(http.StatusCreated))
		Expect(resp.Success).To(BeTrue())
		Expect(data["access_token"]).NotTo(BeEmpty())
		user := data["user"].(map[string]any)
		Expect(user["email"]).To(Equal("alice@example.com"))
		Expect(user["username"]).To(Equal("alice"))
	})

	It("rejects a second registration with the same email in another case", func() {
		status, resp, _ := env.call(http.MethodPost, "/auth/register", "", map[string]string{
			"email": "ALICE@example.com", "username": "alice2", "password": "Sup3rSecret",
		})
		Expect(status).To(Equal(http.StatusConflict))
		Expect(resp.ErrorCode).To(Equal(auth.CodeAlreadyExists))
	})

	It("logs in by email and records the login time", func() {
		status, _, data := env.call(http.MethodPost, "/auth/login", "", map[string]string{
			"username": "alice@example.com", "password": "Sup3rSecret",
		})
		Expect(status).To(Equal(http.StatusOK))
		access = data["access_token"].(string)
		refresh = data["refresh_token"].(string)
		Expect(refresh).NotTo(BeEmpty())

		status, _, me := env.call(http.MethodGet, "/auth/me", access, nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(me["last_login"]).NotTo(BeNil())
		Expect(me["full_name"]).To(Equal("Alice Liddell"))
	})

	It("refreshes the access token without a new refresh token", func() {
		status, _, data := env.call(http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": refresh})
		Expect(status).To(Equal(http.StatusOK))
		Expect(data["access_token"]).NotTo(BeEmpty())
		Expect(data).NotTo(HaveKey("refresh_token"))
	})

	It("does not accept an access token as a refresh token", func() {
		status, resp, _ := env.call(http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": access})
		Expect(status).To(Equal(http.StatusUnauthorized))
		Expect(resp.ErrorCode).To(Equal(auth.CodeInvalidRefreshToken))
	})

	It("changes the password", func() {
		status, _, _ := env.call(http.MethodPost, "/auth/change-password", access, map[string]string{
			"current_password": "Sup3rSecret", "new_password": "N3wPassword",
		})
		Expect(status).To(Equal(http.StatusOK))

		status, _, _ = env.call(http.MethodPost, "/auth/login", "", map[string]string{
			"username": "alice", "password": "Sup3rSecret",
		})
		Expect(status).To(Equal(http.StatusUnauthorized))
	})

	It("resets a forgotten password with a single-purpose token", func() {
		status, resp, _ := env.call(http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "alice@example.com"})
		Expect(status).To(Equal(http.StatusOK))
		Expect(resp.Message).To(Equal(httpapi.ResetRequestedMessage))
		resetToken := env.resets.tokens["alice@example.com"]
		Expect(resetToken).NotTo(BeEmpty())

		status, _, _ = env.call(http.MethodGet, "/auth/me", resetToken, nil)
		Expect(status).To(Equal(http.StatusUnauthorized))

		status, _, _ = env.call(http.MethodPost, "/auth/reset-password", "", map[string]string{
			"token": resetToken, "new_password": "R3setPassword",
		})
		Expect(status).To(Equal(http.StatusOK))

		status, _, _ = env.call(http.MethodPost, "/auth/login", "", map[string]string{
			"username": "alice", "password": "R3setPassword",
		})
		Expect(status).To(Equal(http.StatusOK))
	})

	It("answers forgot-password identically for unknown emails", func() {
		status, resp, _ := env.call(http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "nobody@example.com"})
		Expect(status).To(Equal(http.StatusOK))
		Expect(resp.Message).To(Equal(httpapi.ResetRequestedMessage))
		Expect(env.resets.tokens).NotTo(HaveKey("nobody@example.com"))
	})

	It("looks up a public profile case-insensitively", func() {
		status, _, data := env.call(http.MethodGet, "/users/ALICE", "", nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(data["username"]).To(Equal("alice"))
		Expect(data["is_active"]).To(BeTrue())
	})

	It("rejects requests without the API key", func() {
		resp, err := http.Get(env.baseURL + "/users/alice")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
	})
})
