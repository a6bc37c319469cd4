package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/thermostatter/thermostatter-api/internal/auth"
	"github.com/thermostatter/thermostatter-api/internal/observability"
	"github.com/thermostatter/thermostatter-api/models"
	"github.com/thermostatter/thermostatter-api/repositories"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// AuthService authenticates users and registers new accounts
type AuthService struct {
	users     repositories.UserRepository
	hasher    auth.Hasher
	codec     *auth.Codec
	tokenTTL  time.Duration
	dummyHash string
	metrics   *observability.AuthMetrics
	logger    *zap.Logger
}

// NewAuthService creates a new AuthService instance
func NewAuthService(
	users repositories.UserRepository,
	hasher auth.Hasher,
	codec *auth.Codec,
	tokenTTL time.Duration,
	metrics *observability.AuthMetrics,
	logger *zap.Logger,
) (*AuthService, error) {
	if tokenTTL <= 0 {
		return nil, fmt.Errorf("token TTL must be positive, got %s", tokenTTL)
	}

	// Unknown usernames are still checked against this hash
	dummyHash, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("failed to derive dummy hash: %w", err)
	}

	return &AuthService{
		users:     users,
		hasher:    hasher,
		codec:     codec,
		tokenTTL:  tokenTTL,
		dummyHash: dummyHash,
		metrics:   metrics,
		logger:    logger,
	}, nil
}

// Authenticate verifies username and password and issues a bearer token.
// Unknown, inactive and mismatched accounts are indistinguishable to the caller.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*models.Token, error) {
	ctx, span := observability.Tracer().Start(ctx, "AuthService.Authenticate")
	defer span.End()

	hash, err := s.users.GetHashedPassword(ctx, username)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			s.logger.Warn("credential lookup failed", zap.Error(err))
		}
		s.hasher.Verify(password, s.dummyHash)
		return nil, s.rejectLogin(ctx, span, err)
	}

	if !s.hasher.Verify(password, hash) {
		return nil, s.rejectLogin(ctx, span, nil)
	}

	token, err := s.issueToken(username)
	if err != nil {
		observability.RecordError(span, string(ErrorTypeInternal))
		s.metrics.RecordLogin(ctx, observability.OutcomeError)
		return nil, err
	}

	s.metrics.RecordLogin(ctx, observability.OutcomeSuccess)
	s.logger.Debug("user authenticated", zap.String("username", username))
	return token, nil
}

func (s *AuthService) rejectLogin(ctx context.Context, span trace.Span, cause error) error {
	observability.RecordError(span, string(ErrorTypeUnauthorized))
	s.metrics.RecordLogin(ctx, observability.OutcomeUnauthorized)
	return unauthorized(cause)
}

// Register creates an account and issues a token for it.
// Existence is never pre-checked; the store's uniqueness rules decide.
func (s *AuthService) Register(ctx context.Context, req *models.RegisterRequest) (*models.Token, error) {
	ctx, span := observability.Tracer().Start(ctx, "AuthService.Register")
	defer span.End()

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		observability.RecordError(span, string(ErrorTypeValidation))
		s.metrics.RecordRegistration(ctx, observability.OutcomeError)
		if errors.Is(err, auth.ErrMalformedPassword) || errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, NewDomainError(ErrorTypeValidation, "invalid password", err).
				WithDetail("password", err.Error())
		}
		return nil, WrapInternal("failed to hash password", err)
	}

	user, err := s.users.Create(ctx, models.NewCredentialRecord(req.Username, req.Email, hash))
	if err != nil {
		observability.RecordError(span, string(ErrorTypeRegistrationFailed))
		s.metrics.RecordRegistration(ctx, observability.OutcomeRegistrationFailed)
		if errors.Is(err, repositories.ErrConflict) {
			s.logger.Debug("registration conflict", zap.Error(err))
		} else {
			s.logger.Warn("registration insert failed", zap.Error(err))
		}
		return nil, registrationFailed(err)
	}

	// A cancelled caller never receives a token, even if the row was written
	if err := ctx.Err(); err != nil {
		s.metrics.RecordRegistration(ctx, observability.OutcomeError)
		return nil, err
	}

	token, err := s.issueToken(user.Username)
	if err != nil {
		observability.RecordError(span, string(ErrorTypeInternal))
		s.metrics.RecordRegistration(ctx, observability.OutcomeError)
		return nil, err
	}

	span.SetAttributes(attribute.Bool("auth.registered", true))
	s.metrics.RecordRegistration(ctx, observability.OutcomeSuccess)
	s.logger.Info("user registered", zap.String("username", user.Username))
	return token, nil
}

// issueToken mints a bearer token for username expiring tokenTTL from now
func (s *AuthService) issueToken(username string) (*models.Token, error) {
	claims := auth.NewClaims(username, s.codec.Now(), s.tokenTTL)

	accessToken, err := s.codec.Encode(claims)
	if err != nil {
		return nil, WrapInternal("failed to issue token", err)
	}

	return &models.Token{
		AccessToken: accessToken,
		TokenType:   auth.TokenTypeBearer,
	}, nil
}
