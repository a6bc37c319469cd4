package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/thermostatter/thermostatter-api/internal/auth"
	"github.com/thermostatter/thermostatter-api/internal/observability"
	"github.com/thermostatter/thermostatter-api/models"
	"github.com/thermostatter/thermostatter-api/services"
	"github.com/thermostatter/thermostatter-api/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// authorizeSpanName names the span covering one run of the authorization chain
const authorizeSpanName = "AuthMiddleware.Authorize"

// UserAuthorizer defines the authorization stages the middleware runs
type UserAuthorizer interface {
	ClaimsFromToken(token string) (*auth.Claims, error)
	UsernameFromClaims(claims *auth.Claims) string
	CurrentUser(ctx context.Context, username string) (*models.User, error)
	RequireActive(user *models.User) error
	RecordOutcome(ctx context.Context, err error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	authorizer UserAuthorizer
	logger     *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(authorizer UserAuthorizer, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authorizer: authorizer,
		logger:     logger,
	}
}

// RequireAuth requires a valid bearer token and stores its claims and
// subject on the request context
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token := extractBearerToken(r)
		if token == "" {
			m.logger.Debug("missing bearer token",
				zap.String("request_id", GetRequestIDFromContext(ctx)))
			m.reject(w, r, services.ErrUnauthorized)
			return
		}

		claims, err := m.authorizer.ClaimsFromToken(token)
		if err != nil {
			m.reject(w, r, err)
			return
		}

		ctx = WithClaims(ctx, claims)
		ctx = WithUsername(ctx, m.authorizer.UsernameFromClaims(claims))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser loads the user named by the token.
// This should be called after RequireAuth.
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if GetClaimsFromContext(ctx) == nil {
			m.logger.Error("claims not found in context",
				zap.String("request_id", GetRequestIDFromContext(ctx)))
			m.reject(w, r, services.ErrUnauthorized)
			return
		}

		user, err := m.authorizer.CurrentUser(ctx, GetUsernameFromContext(ctx))
		if err != nil {
			m.reject(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(ctx, user)))
	})
}

// RequireActive rejects users whose account is disabled.
// This should be called after RequireUser.
func (m *AuthMiddleware) RequireActive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		user := GetUserFromContext(ctx)
		if user == nil {
			m.logger.Error("user not found in context",
				zap.String("request_id", GetRequestIDFromContext(ctx)))
			m.reject(w, r, services.ErrUnauthorized)
			return
		}

		if err := m.authorizer.RequireActive(user); err != nil {
			m.reject(w, r, err)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Authenticated chains RequireAuth and RequireUser, adding RequireActive
// when requireActive is set. The chain runs inside one span and records
// exactly one authorization outcome.
func (m *AuthMiddleware) Authenticated(requireActive bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		chain := m.authorized(next)
		if requireActive {
			chain = m.RequireActive(chain)
		}
		chain = m.RequireAuth(m.RequireUser(chain))

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := observability.Tracer().Start(r.Context(), authorizeSpanName,
				trace.WithAttributes(attribute.Bool("auth.require_active", requireActive)))
			defer span.End()

			chain.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authorized runs after the last guard: it counts the success and closes the
// authorization span before the protected handler runs
func (m *AuthMiddleware) authorized(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		m.authorizer.RecordOutcome(ctx, nil)

		trace.SpanFromContext(ctx).End()

		next.ServeHTTP(w, r)
	})
}

// reject writes the uniform auth failure response.
// Forbidden is the only failure distinguishable by the client.
func (m *AuthMiddleware) reject(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	m.authorizer.RecordOutcome(ctx, err)
	observability.RecordError(trace.SpanFromContext(ctx), errorType(err))

	if services.IsForbiddenError(err) {
		m.logger.Info("inactive user rejected",
			zap.String("request_id", GetRequestIDFromContext(ctx)),
			zap.String("username", GetUsernameFromContext(ctx)))
		_ = utils.WriteForbidden(w, services.MsgUserNotActive)
		return
	}

	m.logger.Debug("authorization failed",
		zap.String("request_id", GetRequestIDFromContext(ctx)),
		zap.Error(err))
	_ = utils.WriteUnauthorized(w, services.MsgInvalidCredentials)
}

func errorType(err error) string {
	if errType := services.GetErrorType(err); errType != "" {
		return string(errType)
	}
	return observability.OutcomeError
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
