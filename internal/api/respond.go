// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/holomush/accountd/internal/account"
	"github.com/holomush/accountd/internal/auth"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Client-facing messages. None of them carry infrastructure detail.
const (
	msgMalformedBody = "malformed request body"
	msgInvalidInput  = "invalid input"
	msgUnauthorized  = "unauthorized"
	msgUnavailable   = "service unavailable"
	msgInternal      = "internal error"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// decode reads a JSON body into v. It answers 400 and returns false when the
// body cannot be decoded.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.fail(w, http.StatusBadRequest, msgMalformedBody)
		return false
	}
	return true
}

// respond writes a success body, mapping the status through the policy.
func (h *Handler) respond(w http.ResponseWriter, status int, body any) {
	writeJSON(w, h.status(status), body)
}

// fail writes an error body, mapping the status through the policy.
func (h *Handler) fail(w http.ResponseWriter, status int, msg string) {
	writeError(w, h.status(status), msg)
}

// failErr maps a service error onto a status and message.
func (h *Handler) failErr(w http.ResponseWriter, err error) {
	status, msg := errorStatus(err)
	h.fail(w, status, msg)
}

func (h *Handler) status(semantic int) int {
	if h.policy != PolicyCompat {
		return semantic
	}
	if semantic < http.StatusBadRequest {
		return http.StatusCreated
	}
	return http.StatusInternalServerError
}

// errorStatus translates the auth error taxonomy into a semantic status code
// and client message.
func errorStatus(err error) (int, string) {
	var ve *account.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error()
	case errors.Is(err, auth.ErrInvalidInput):
		return http.StatusBadRequest, msgInvalidInput
	case errors.Is(err, auth.ErrAccountExists):
		if field := auth.ConflictField(err); field != "" {
			return http.StatusConflict, field + " already exists"
		}
		return http.StatusConflict, auth.ErrAccountExists.Error()
	case errors.Is(err, auth.ErrAuthenticationFailed):
		return http.StatusUnauthorized, auth.ErrAuthenticationFailed.Error()
	case errors.Is(err, auth.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, msgUnavailable
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "required" {
			return fe.Field() + " is required"
		}
		return fe.Field() + " is invalid"
	}
	return msgInvalidInput
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
