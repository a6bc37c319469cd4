package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/thermostatter/thermostatter-api/app"
	"github.com/thermostatter/thermostatter-api/handlers"
	"github.com/thermostatter/thermostatter-api/utils"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// serverSpanName names server spans until the route is known
const serverSpanName = "thermostatter-api"

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(routeSpanName)
	if timeout := deps.Config.Server.RequestTimeout; timeout > 0 {
		r.Use(middleware.Timeout(timeout))
	}

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.Config.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"WWW-Authenticate", "X-Request-ID"},
		MaxAge:         300,
	}))

	authHandler := handlers.NewAuthHandler(deps.AuthService, deps.Logger)
	healthHandler := handlers.NewHealthHandler(deps.HealthChecker, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", healthHandler.HandleHealth)
	r.Get("/readyz", healthHandler.HandleReadiness)

	r.Get("/hello-world", handlers.HandleHelloWorld)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/token", authHandler.HandleToken)
		r.Post("/register", authHandler.HandleRegister)

		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMiddleware.Authenticated(deps.Config.Auth.UserInfoRequiresActive))
			r.Get("/userinfo", authHandler.HandleUserInfo)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteMethodNotAllowed(w)
	})

	// Server spans continue the caller's trace from the incoming headers
	return otelhttp.NewHandler(r, serverSpanName)
}

// routeSpanName renames the server span after the matched route pattern
func routeSpanName(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			return
		}
		span := trace.SpanFromContext(r.Context())
		span.SetName(r.Method + " " + pattern)
		span.SetAttributes(attribute.String("http.route", pattern))
	})
}
