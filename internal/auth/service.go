// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/accountd/internal/account"
	"github.com/holomush/accountd/internal/observability"
	"github.com/holomush/accountd/internal/token"
)

// tracerName identifies spans started by Service.
const tracerName = "github.com/holomush/accountd/internal/auth"

// DefaultOperationTimeout bounds each Service call when no timeout is set.
const DefaultOperationTimeout = 5 * time.Second

// AccountStore persists accounts and checks credentials.
type AccountStore interface {
	Create(ctx context.Context, username, email, credential string) (*account.Account, error)
	Delete(ctx context.Context, username string) error
	FindByCredentials(ctx context.Context, username, credential string) (ulid.ULID, bool, error)
}

// TokenIssuer signs and verifies session tokens.
type TokenIssuer interface {
	Issue(ctx context.Context, username string) (string, error)
	Verify(ctx context.Context, token string) (*token.Claims, error)
}

// Service provides account and authentication operations.
type Service struct {
	store   AccountStore
	issuer  TokenIssuer
	logger  *slog.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
	timeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger for operation outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records each operation outcome on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracerProvider sets where operation spans are sent. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithOperationTimeout bounds every call. Zero disables the bound.
func WithOperationTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.timeout = d
		}
	}
}

// NewService creates a Service. Both store and issuer are required.
func NewService(store AccountStore, issuer TokenIssuer, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("account store is required")
	}
	if issuer == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("token issuer is required")
	}
	s := &Service{
		store:   store,
		issuer:  issuer,
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
		timeout: DefaultOperationTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates an account and returns its username.
func (s *Service) Register(ctx context.Context, username, email, credential string) (string, error) {
	ctx, span := s.start(ctx, OpRegister, username)
	defer span.End()
	ctx, cancel := s.bound(ctx)
	defer cancel()

	_, err := s.store.Create(ctx, username, email, credential)
	if err != nil {
		err = s.classifyRegister(err, username)
	}
	s.finish(ctx, OpRegister, username, err)
	if err != nil {
		return "", err
	}
	return username, nil
}

func (s *Service) classifyRegister(err error, username string) error {
	switch {
	case errors.Is(err, account.ErrInvalidInput):
		return invalidInput(err, OpRegister, username)
	case errors.Is(err, account.ErrConflict):
		return oops.Code("AUTH_ACCOUNT_EXISTS").
			With("operation", OpRegister).
			With("username", username).
			With("field", ConflictField(err)).
			Wrap(ErrAccountExists)
	default:
		return unavailable(err, OpRegister, username)
	}
}

// Delete removes the account with the given username and returns the
// username. A username with no account is still a success.
func (s *Service) Delete(ctx context.Context, username string) (string, error) {
	ctx, span := s.start(ctx, OpDelete, username)
	defer span.End()
	ctx, cancel := s.bound(ctx)
	defer cancel()

	err := s.store.Delete(ctx, username)
	if err != nil {
		if errors.Is(err, account.ErrInvalidInput) {
			err = invalidInput(err, OpDelete, username)
		} else {
			err = unavailable(err, OpDelete, username)
		}
	}
	s.finish(ctx, OpDelete, username, err)
	if err != nil {
		return "", err
	}
	return username, nil
}

// Login verifies the credential and returns a signed session token.
// An unknown username and a wrong credential produce the same error.
func (s *Service) Login(ctx context.Context, username, credential string) (string, error) {
	ctx, span := s.start(ctx, OpLogin, username)
	defer span.End()
	ctx, cancel := s.bound(ctx)
	defer cancel()

	signed, err := s.login(ctx, username, credential)
	s.finish(ctx, OpLogin, username, err)
	if err != nil {
		return "", err
	}
	return signed, nil
}

func (s *Service) login(ctx context.Context, username, credential string) (string, error) {
	if username == "" || credential == "" {
		return "", authFailed(OpLogin, username)
	}

	_, found, err := s.store.FindByCredentials(ctx, username, credential)
	switch {
	case err != nil && errors.Is(err, account.ErrIntegrity):
		return "", oops.Code("AUTH_INTEGRITY_FAULT").
			With("operation", OpLogin).
			With("username", username).
			With("cause", err.Error()).
			Wrap(ErrIntegrityFault)
	case err != nil:
		return "", unavailable(err, OpLogin, username)
	case !found:
		return "", authFailed(OpLogin, username)
	}

	signed, err := s.issuer.Issue(ctx, username)
	if err != nil {
		return "", unavailable(err, OpLogin, username)
	}
	return signed, nil
}

// VerifyToken checks a session token and returns its claims. Expired and
// invalid tokens both yield ErrAuthenticationFailed.
func (s *Service) VerifyToken(ctx context.Context, tok string) (*token.Claims, error) {
	ctx, span := s.start(ctx, OpVerify, "")
	defer span.End()

	claims, err := s.issuer.Verify(ctx, tok)
	if err != nil {
		err = oops.Code("AUTH_INVALID_TOKEN").
			With("operation", OpVerify).
			With("cause", err.Error()).
			Wrap(ErrAuthenticationFailed)
		s.finish(ctx, OpVerify, "", err)
		return nil, err
	}
	s.finish(ctx, OpVerify, claims.Username, nil)
	return claims, nil
}

func (s *Service) start(ctx context.Context, op, username string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("auth.operation", op)}
	if username != "" {
		attrs = append(attrs, attribute.String("auth.username", username))
	}
	return s.tracer.Start(ctx, "auth."+op, trace.WithAttributes(attrs...))
}

func (s *Service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// finish logs, counts and annotates the span with the outcome of one
// operation.
func (s *Service) finish(ctx context.Context, op, username string, err error) {
	outcome := Outcome(err)
	s.metrics.RecordAuth(op, outcome)

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("auth.outcome", outcome))
	if outcome == OutcomeIntegrity || outcome == OutcomeUnavailable {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}

	attrs := []any{"operation", op, "outcome", outcome}
	if username != "" {
		attrs = append(attrs, "username", username)
	}

	switch outcome {
	case OutcomeSuccess:
		s.logger.InfoContext(ctx, "auth operation succeeded", attrs...)
	case OutcomeIntegrity:
		s.logger.ErrorContext(ctx, "auth operation hit an integrity fault", append(attrs, "error", err)...)
	case OutcomeUnavailable:
		s.logger.WarnContext(ctx, "auth operation could not complete", append(attrs, "error", err)...)
	default:
		s.logger.InfoContext(ctx, "auth operation rejected", attrs...)
	}
}

// The helpers below never chain to the store or issuer error. The cause is
// kept as a string in the oops context for logging.

func invalidInput(err error, op, username string) error {
	reason := error(ErrInvalidInput)
	var ve *account.ValidationError
	if errors.As(err, &ve) {
		reason = ve
	}
	return oops.Code("AUTH_INVALID_INPUT").
		With("operation", op).
		With("username", username).
		Wrap(reason)
}

func authFailed(op, username string) error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").
		With("operation", op).
		With("username", username).
		Wrap(ErrAuthenticationFailed)
}

func unavailable(err error, op, username string) error {
	return oops.Code("AUTH_SERVICE_UNAVAILABLE").
		With("operation", op).
		With("username", username).
		With("cause", err.Error()).
		Wrap(ErrServiceUnavailable)
}

// ConflictField returns which field collided for a conflict error, or "" if
// it is unknown. It reads the "field" oops context.
func ConflictField(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if field, ok := oopsErr.Context()["field"].(string); ok {
			return field
		}
	}
	return ""
}
