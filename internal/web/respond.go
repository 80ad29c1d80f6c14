// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/pkg/errutil"
)

// Client-facing error messages.
const (
	msgUnprocessable        = "Unprocessable entity"
	msgInvalidCredentials   = "Invalid credentials"
	msgUserExists           = "User already exists"
	msgIncorrectCredentials = "Incorrect credentials"
	msgMissingToken         = "Missing token"
	msgInvalidToken         = "Invalid token"
	msgUnexpected           = "Unexpected error"
)

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type twoFactorResponse struct {
	Message        string `json:"message"`
	LoginAttemptID string `json:"loginAttemptId"`
}

// statusFor maps an error chain onto an HTTP status and client message.
// The first matching sentinel wins.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errUnprocessable):
		return http.StatusUnprocessableEntity, msgUnprocessable
	case errors.Is(err, auth.ErrValidation):
		return http.StatusBadRequest, msgInvalidCredentials
	case errors.Is(err, auth.ErrUserExists):
		return http.StatusConflict, msgUserExists
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, msgIncorrectCredentials
	case errors.Is(err, auth.ErrMissingToken):
		return http.StatusBadRequest, msgMissingToken
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, msgInvalidToken
	default:
		return http.StatusInternalServerError, msgUnexpected
	}
}

// writeError responds with the status for err. Server faults are logged with
// their full context; client faults only at debug.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		errutil.LogErrorContext(r.Context(), logger, "request failed", err)
	} else {
		logger.DebugContext(r.Context(), "request rejected",
			"path", r.URL.Path,
			"status", status,
			"code", errutil.CodeOf(err),
		)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client may disconnect
	json.NewEncoder(w).Encode(body)
}
