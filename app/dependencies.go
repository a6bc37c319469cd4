package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/thermostatter/thermostatter-api/config"
	"github.com/thermostatter/thermostatter-api/internal/auth"
	"github.com/thermostatter/thermostatter-api/internal/observability"
	"github.com/thermostatter/thermostatter-api/middleware"
	"github.com/thermostatter/thermostatter-api/repositories"
	"github.com/thermostatter/thermostatter-api/repositories/memory"
	"github.com/thermostatter/thermostatter-api/repositories/postgres"
	"github.com/thermostatter/thermostatter-api/services"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Credential store
	Users         repositories.UserRepository
	HealthChecker repositories.HealthChecker

	// Auth
	Hasher         auth.Hasher
	Codec          *auth.Codec
	Metrics        *observability.AuthMetrics
	AuthService    *services.AuthService
	Authorizer     *services.Authorizer
	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initStore(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initAuth(cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	logger.Info("all dependencies initialized successfully",
		zap.String("driver", cfg.Database.Driver))
	return deps, nil
}

// initStore opens the credential store selected by DB_DRIVER
func (d *Dependencies) initStore(ctx context.Context, cfg *config.Config) error {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		factory, err := postgres.NewRepositoryFactory(ctx, cfg.Database, d.Logger)
		if err != nil {
			return fmt.Errorf("failed to create repository factory: %w", err)
		}

		d.RepoFactory = factory
		d.DB = factory.GetDB()
		d.HealthChecker = d.DB
		d.Users = factory.NewRepositories().Users

	case config.DriverMemory:
		d.Logger.Warn("using in-memory credential store, accounts are lost on restart")
		d.Users = memory.NewUserRepository()

	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	d.Logger.Info("credential store initialized",
		zap.String("connection", cfg.Database.LogString()))
	return nil
}

// initAuth builds the hasher, codec, services and middleware
func (d *Dependencies) initAuth(cfg *config.Config) error {
	codec, err := auth.NewCodec([]byte(cfg.Auth.SecretKey), cfg.Auth.Algorithm)
	if err != nil {
		return err
	}

	metrics, err := observability.NewGlobalAuthMetrics()
	if err != nil {
		return err
	}

	d.Hasher = auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	d.Codec = codec
	d.Metrics = metrics

	d.AuthService, err = services.NewAuthService(d.Users, d.Hasher, d.Codec, cfg.Auth.TokenTTL, d.Metrics, d.Logger)
	if err != nil {
		return err
	}

	d.Authorizer = services.NewAuthorizer(d.Users, d.Codec, d.Metrics, d.Logger)
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Authorizer, d.Logger)

	d.Logger.Info("auth initialized",
		zap.String("algorithm", codec.Algorithm()),
		zap.Duration("token_ttl", cfg.Auth.TokenTTL))
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.RepoFactory = nil
	}

	_ = d.Logger.Sync()

	return errors.Join(errs...)
}
