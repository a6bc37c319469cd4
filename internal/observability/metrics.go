package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName identifies this service's meters and tracers
const InstrumentationName = "github.com/thermostatter/thermostatter-api"

// Outcome labels recorded on the auth counters
const (
	OutcomeSuccess            = "success"
	OutcomeUnauthorized       = "unauthorized"
	OutcomeInvalidToken       = "invalid_token"
	OutcomeForbidden          = "forbidden"
	OutcomeRegistrationFailed = "registration_failed"
	OutcomeError              = "error"
)

// AuthMetrics holds the counters for authentication and authorization outcomes.
// A nil *AuthMetrics records nothing.
type AuthMetrics struct {
	loginAttempts  metric.Int64Counter
	registrations  metric.Int64Counter
	authorizations metric.Int64Counter
}

// NewAuthMetrics creates the auth instruments on the given meter
func NewAuthMetrics(meter metric.Meter) (*AuthMetrics, error) {
	loginAttempts, err := meter.Int64Counter("auth.login.attempts",
		metric.WithDescription("Password authentication attempts by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating auth.login.attempts counter: %w", err)
	}

	registrations, err := meter.Int64Counter("auth.registrations",
		metric.WithDescription("Account registrations by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating auth.registrations counter: %w", err)
	}

	authorizations, err := meter.Int64Counter("auth.authorizations",
		metric.WithDescription("Bearer token resolutions by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating auth.authorizations counter: %w", err)
	}

	return &AuthMetrics{
		loginAttempts:  loginAttempts,
		registrations:  registrations,
		authorizations: authorizations,
	}, nil
}

// NewGlobalAuthMetrics creates the auth instruments on the global meter provider
func NewGlobalAuthMetrics() (*AuthMetrics, error) {
	return NewAuthMetrics(otel.Meter(InstrumentationName))
}

// RecordLogin counts one authentication attempt
func (m *AuthMetrics) RecordLogin(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.loginAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordRegistration counts one registration attempt
func (m *AuthMetrics) RecordRegistration(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.registrations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordAuthorization counts one bearer token resolution
func (m *AuthMetrics) RecordAuthorization(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.authorizations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
