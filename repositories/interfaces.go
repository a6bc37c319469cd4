package repositories

import (
	"context"
	"errors"

	"github.com/thermostatter/thermostatter-api/models"
)

var (
	// ErrNotFound is returned when no matching record exists
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a write violates a uniqueness constraint
	ErrConflict = errors.New("record conflicts with an existing one")
)

// UserRepository is the credential store gateway
type UserRepository interface {
	// GetHashedPassword returns the stored hash for an active account.
	// Inactive and unknown accounts both yield ErrNotFound.
	GetHashedPassword(ctx context.Context, username string) (string, error)

	// GetByUsername retrieves a user regardless of its active flag
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// Create inserts the record and returns the stored row in one atomic step.
	// A taken username or email yields ErrConflict.
	Create(ctx context.Context, record *models.CredentialRecord) (*models.User, error)
}

// HealthChecker reports whether the backing store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Users UserRepository
}
