package services

import (
	"context"
	"fmt"

	"github.com/thermostatter/thermostatter-api/internal/auth"
	"github.com/thermostatter/thermostatter-api/internal/observability"
	"github.com/thermostatter/thermostatter-api/models"
	"github.com/thermostatter/thermostatter-api/repositories"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Authorizer resolves a bearer token to a live user record.
// Each stage can be called on its own; Resolve chains them.
type Authorizer struct {
	users   repositories.UserRepository
	codec   *auth.Codec
	metrics *observability.AuthMetrics
	logger  *zap.Logger
}

// NewAuthorizer creates a new Authorizer instance
func NewAuthorizer(users repositories.UserRepository, codec *auth.Codec, metrics *observability.AuthMetrics, logger *zap.Logger) *Authorizer {
	return &Authorizer{
		users:   users,
		codec:   codec,
		metrics: metrics,
		logger:  logger,
	}
}

// ClaimsFromToken validates the token and returns its claims.
// Every failure, including a panic inside decoding, is an invalid token.
func (a *Authorizer) ClaimsFromToken(token string) (claims *auth.Claims, err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("token decoding panicked", zap.Any("panic", r))
			claims, err = nil, invalidToken(fmt.Errorf("panic: %v", r))
		}
	}()

	claims, err = a.codec.Decode(token)
	if err != nil {
		return nil, invalidToken(err)
	}
	return claims, nil
}

// UsernameFromClaims returns the account name the token was issued to
func (a *Authorizer) UsernameFromClaims(claims *auth.Claims) string {
	return claims.Subject
}

// CurrentUser loads the user named by a validated token.
// A missing row or a store failure are both unauthorized.
func (a *Authorizer) CurrentUser(ctx context.Context, username string) (*models.User, error) {
	user, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		a.logger.Debug("token subject not resolvable", zap.String("username", username), zap.Error(err))
		return nil, unauthorized(err)
	}
	return user, nil
}

// RequireActive rejects inactive users
func (a *Authorizer) RequireActive(user *models.User) error {
	if !user.Active {
		return ErrForbidden
	}
	return nil
}

// Resolve runs the whole chain: token, claims, username, user and, when
// requireActive is set, the activity guard
func (a *Authorizer) Resolve(ctx context.Context, token string, requireActive bool) (*models.User, error) {
	ctx, span := observability.Tracer().Start(ctx, "Authorizer.Resolve")
	defer span.End()
	span.SetAttributes(attribute.Bool("auth.require_active", requireActive))

	user, err := a.resolve(ctx, token, requireActive)
	if err != nil {
		observability.RecordError(span, string(GetErrorType(err)))
	}
	a.RecordOutcome(ctx, err)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// RecordOutcome counts one authorization attempt labelled by its error type
func (a *Authorizer) RecordOutcome(ctx context.Context, err error) {
	if err == nil {
		a.metrics.RecordAuthorization(ctx, observability.OutcomeSuccess)
		return
	}
	outcome := string(GetErrorType(err))
	if outcome == "" {
		outcome = observability.OutcomeError
	}
	a.metrics.RecordAuthorization(ctx, outcome)
}

func (a *Authorizer) resolve(ctx context.Context, token string, requireActive bool) (*models.User, error) {
	claims, err := a.ClaimsFromToken(token)
	if err != nil {
		return nil, err
	}

	user, err := a.CurrentUser(ctx, a.UsernameFromClaims(claims))
	if err != nil {
		return nil, err
	}

	if requireActive {
		if err := a.RequireActive(user); err != nil {
			return nil, err
		}
	}
	return user, nil
}
