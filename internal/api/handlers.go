// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// RegisterRequest is the body of POST /api/v1/accounts.
type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest is the body of POST /api/v1/sessions. Empty fields are left to
// the service so they fail exactly like wrong credentials.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AccountResponse names the account an operation applied to.
type AccountResponse struct {
	Username string `json:"username"`
}

// LoginResponse carries a freshly issued session token.
type LoginResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in,omitempty"`
}

// SessionResponse describes the session behind a bearer token.
type SessionResponse struct {
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Register handles POST /api/v1/accounts.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.failRegister(w, req.Username, http.StatusBadRequest, validationMessage(err))
		return
	}

	username, err := h.svc.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		status, msg := errorStatus(err)
		h.failRegister(w, req.Username, status, msg)
		return
	}
	h.respond(w, http.StatusCreated, AccountResponse{Username: username})
}

// failRegister reports a rejected registration. Under the compat policy the
// body is the requested username, as the legacy endpoint answered.
func (h *Handler) failRegister(w http.ResponseWriter, username string, status int, msg string) {
	if h.policy == PolicyCompat {
		writeJSON(w, http.StatusInternalServerError, AccountResponse{Username: username})
		return
	}
	h.fail(w, status, msg)
}

// DeleteAccount handles DELETE /api/v1/accounts/{username}. Deleting an
// account that does not exist succeeds.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	username, err := h.svc.Delete(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		h.failErr(w, err)
		return
	}
	h.respond(w, http.StatusOK, AccountResponse{Username: username})
}

// Login handles POST /api/v1/sessions.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	tok, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.failErr(w, err)
		return
	}
	h.respond(w, http.StatusOK, LoginResponse{
		Token:     tok,
		TokenType: "Bearer",
		ExpiresIn: int64(h.tokenTTL / time.Second),
	})
}

// CurrentSession handles GET /api/v1/sessions/current.
func (h *Handler) CurrentSession(w http.ResponseWriter, r *http.Request) {
	tok, ok := bearerToken(r)
	if !ok {
		h.unauthorized(w)
		return
	}
	claims, err := h.svc.VerifyToken(r.Context(), tok)
	if err != nil {
		h.unauthorized(w)
		return
	}
	h.respond(w, http.StatusOK, SessionResponse{
		Username:  claims.Username,
		ExpiresAt: claims.ExpiresAt.UTC(),
	})
}

func (h *Handler) unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="accountd"`)
	h.fail(w, http.StatusUnauthorized, msgUnauthorized)
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, tok, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}
