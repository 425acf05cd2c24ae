package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/custodia-labs/authcore/internal/core/domain"
	"github.com/custodia-labs/authcore/internal/core/ports/driven"
)

// DefaultCollaboratorTimeout bounds directory, cache and notifier calls
const DefaultCollaboratorTimeout = 5 * time.Second

var tracer = otel.Tracer("github.com/custodia-labs/authcore/internal/core/services")

// withTimeout runs fn under a deadline. A zero timeout leaves ctx unchanged.
func withTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx)
}

// unavailable wraps a collaborator failure so that errors.Is(err, domain.ErrUnavailable) holds
// while the log line keeps the collaborator, operation and cause.
func unavailable(collaborator, op string, err error) error {
	return oops.
		In(collaborator).
		Code("UNAVAILABLE").
		With("op", op).
		Wrap(fmt.Errorf("%w: %w", domain.ErrUnavailable, err))
}

// directoryErr passes through the directory's domain answers and turns
// everything else (deadline, driver error) into ErrUnavailable.
func directoryErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrAlreadyExists) {
		return err
	}
	return unavailable("directory", op, err)
}

// endSpan marks the span failed when err is set and ends it
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome(err))
	}
	span.End()
}

// outcome maps an error to a low-cardinality metric label
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrAlreadyExists):
		return "conflict"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrInvalidOrExpiredToken), domain.IsTokenFailure(err):
		return "invalid_token"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

type noopMetrics struct{}

func (noopMetrics) FlowCompleted(string, string)  {}
func (noopMetrics) TokenVerified(string, string)  {}
func (noopMetrics) CacheOperation(string, string) {}

func metricsOrNoop(m driven.AuthMetrics) driven.AuthMetrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
