// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/holoauth/internal/auth"
)

// AuthService is the orchestrator the API drives. *auth.Service implements it.
type AuthService interface {
	Signup(ctx context.Context, email, password string, requires2FA bool) (*auth.User, error)
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	Verify2FA(ctx context.Context, email, attemptID, code string) (string, error)
	Logout(ctx context.Context, token string) error
	VerifyToken(ctx context.Context, token string) (auth.Email, error)
}

// RequestObserver records finished requests. *observability.Metrics
// implements it.
type RequestObserver interface {
	ObserveRequest(flow string, status int, elapsed time.Duration)
}

// Flow names used as metric labels.
const (
	FlowSignup      = "signup"
	FlowLogin       = "login"
	FlowVerify2FA   = "verify_2fa"
	FlowLogout      = "logout"
	FlowVerifyToken = "verify_token"
)

// Config configures an API.
type Config struct {
	Service        AuthService
	Cookie         CookieConfig
	AllowedOrigins []string
	// Metrics is optional.
	Metrics RequestObserver
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// API holds the HTTP handlers for the auth flows.
type API struct {
	svc     AuthService
	cookie  CookieConfig
	cors    *CORS
	schemas *schemaSet
	metrics RequestObserver
	logger  *slog.Logger
}

// NewAPI validates cfg and compiles the request schemas.
func NewAPI(cfg Config) (*API, error) {
	if cfg.Service == nil {
		return nil, oops.Code("WEB_CONFIG_INVALID").Errorf("auth service is required")
	}
	cors, err := NewCORS(cfg.AllowedOrigins)
	if err != nil {
		return nil, err
	}
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		svc:     cfg.Service,
		cookie:  cfg.Cookie,
		cors:    cors,
		schemas: schemas,
		metrics: cfg.Metrics,
		logger:  logger,
	}, nil
}

// Handler returns the routed API with CORS applied.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /signup", a.instrument(FlowSignup, a.handleSignup))
	mux.Handle("POST /login", a.instrument(FlowLogin, a.handleLogin))
	mux.Handle("POST /verify-2fa", a.instrument(FlowVerify2FA, a.handleVerify2FA))
	mux.Handle("POST /logout", a.instrument(FlowLogout, a.handleLogout))
	mux.Handle("POST /verify-token", a.instrument(FlowVerifyToken, a.handleVerifyToken))
	return a.cors.Wrap(mux)
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := a.schemas.decode(w, r, schemaSignup, &req); err != nil {
		writeError(w, r, a.logger, err)
		return
	}

	if _, err := a.svc.Signup(r.Context(), req.Email, req.Password, req.Requires2FA); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: "User created successfully!"})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := a.schemas.decode(w, r, schemaLogin, &req); err != nil {
		writeError(w, r, a.logger, err)
		return
	}

	result, err := a.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}

	if result.Requires2FA {
		writeJSON(w, http.StatusPartialContent, twoFactorResponse{
			Message:        "2FA required",
			LoginAttemptID: result.LoginAttemptID.String(),
		})
		return
	}

	http.SetCookie(w, a.cookie.session(result.Token))
	w.WriteHeader(http.StatusOK)
}

func (a *API) handleVerify2FA(w http.ResponseWriter, r *http.Request) {
	var req verify2FARequest
	if err := a.schemas.decode(w, r, schemaVerify2FA, &req); err != nil {
		writeError(w, r, a.logger, err)
		return
	}

	token, err := a.svc.Verify2FA(r.Context(), req.Email, req.LoginAttemptID, req.TwoFACode)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}

	http.SetCookie(w, a.cookie.session(token))
	w.WriteHeader(http.StatusOK)
}

// handleLogout bans the cookie's token. The cookie is cleared only on
// success; a rejected cookie is left for the client to discard.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Logout(r.Context(), a.cookie.token(r)); err != nil {
		// Clients expect a 401 without Set-Cookie here. Do not clear the cookie.
		writeError(w, r, a.logger, err)
		return
	}

	http.SetCookie(w, a.cookie.cleared())
	w.WriteHeader(http.StatusOK)
}

func (a *API) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	var req verifyTokenRequest
	if err := a.schemas.decode(w, r, schemaVerifyToken, &req); err != nil {
		writeError(w, r, a.logger, err)
		return
	}

	if _, err := a.svc.VerifyToken(r.Context(), req.Token); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	//nolint:wrapcheck // ResponseWriter passthrough
	return w.ResponseWriter.Write(b)
}

// instrument records status and latency for flow.
func (a *API) instrument(flow string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		h(sw, r)

		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		if a.metrics != nil {
			a.metrics.ObserveRequest(flow, status, elapsed)
		}
		a.logger.DebugContext(r.Context(), "request handled",
			"flow", flow,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
		)
	})
}
