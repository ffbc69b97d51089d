// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package api exposes the authentication service over HTTP/JSON.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"

	"github.com/holomush/accountd/internal/observability"
	"github.com/holomush/accountd/internal/token"
)

// StatusPolicy selects how service outcomes map to HTTP status codes.
type StatusPolicy string

// Status policies.
const (
	// PolicySemantic uses 200/201 for success and 400/401/409/500/503 for
	// failures.
	PolicySemantic StatusPolicy = "semantic"
	// PolicyCompat answers every success with 201 and every failure with 500.
	// A rejected registration echoes {"username"}; the other endpoints keep
	// the {"error"} body.
	PolicyCompat StatusPolicy = "compat"
)

// DefaultRequestTimeout bounds each request when no timeout is configured.
const DefaultRequestTimeout = 10 * time.Second

// Service is the subset of auth.Service the handlers call.
type Service interface {
	Register(ctx context.Context, username, email, credential string) (string, error)
	Delete(ctx context.Context, username string) (string, error)
	Login(ctx context.Context, username, credential string) (string, error)
	VerifyToken(ctx context.Context, tok string) (*token.Claims, error)
}

// Handler serves the account and session endpoints.
type Handler struct {
	svc      Service
	logger   *slog.Logger
	metrics  *observability.Metrics
	policy   StatusPolicy
	tokenTTL time.Duration
	timeout  time.Duration
	validate *validator.Validate
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics counts requests by route and status.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithStatusPolicy selects the status code mapping. The default is
// PolicySemantic.
func WithStatusPolicy(p StatusPolicy) Option {
	return func(h *Handler) {
		h.policy = p
	}
}

// WithTokenTTL sets the expires_in value reported by the login endpoint.
func WithTokenTTL(ttl time.Duration) Option {
	return func(h *Handler) {
		h.tokenTTL = ttl
	}
}

// WithRequestTimeout bounds each request.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// NewHandler validates its dependencies and returns a Handler.
func NewHandler(svc Service, opts ...Option) (*Handler, error) {
	if svc == nil {
		return nil, oops.Code("API_INVALID").Errorf("auth service is required")
	}
	h := &Handler{
		svc:      svc,
		logger:   slog.Default(),
		policy:   PolicySemantic,
		timeout:  DefaultRequestTimeout,
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(h)
	}
	switch h.policy {
	case PolicySemantic, PolicyCompat:
	default:
		return nil, oops.Code("API_INVALID").
			With("status_policy", string(h.policy)).
			Errorf("unknown status policy %q", h.policy)
	}
	return h, nil
}

// Routes returns the chi router with middleware and every endpoint mounted.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.observe)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(h.timeout))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/accounts", h.Register)
		r.Delete("/accounts/{username}", h.DeleteAccount)
		r.Post("/sessions", h.Login)
		r.Get("/sessions/current", h.CurrentSession)
	})

	return r
}

// NewRouter is shorthand for NewHandler followed by Routes.
func NewRouter(svc Service, opts ...Option) (http.Handler, error) {
	h, err := NewHandler(svc, opts...)
	if err != nil {
		return nil, err
	}
	return h.Routes(), nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
