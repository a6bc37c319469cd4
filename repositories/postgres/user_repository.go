package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/thermostatter/thermostatter-api/models"
	"github.com/thermostatter/thermostatter-api/repositories"
	"go.uber.org/zap"
)

// uniqueViolation is the SQLSTATE raised when a unique constraint is violated
const uniqueViolation pq.ErrorCode = "23505"

var (
	selectHashedPasswordQuery = fmt.Sprintf(`
		SELECT hashed_password
		FROM %s
		WHERE username = $1 AND active = TRUE
	`, models.UsersTable)

	selectUserQuery = fmt.Sprintf(`
		SELECT username, email, active, created_at
		FROM %s
		WHERE username = $1
	`, models.UsersTable)

	insertUserQuery = fmt.Sprintf(`
		INSERT INTO %s (username, email, hashed_password)
		VALUES ($1, $2, $3)
		RETURNING username, email, active, created_at
	`, models.UsersTable)
)

// UserRepository implements the repositories.UserRepository interface
type UserRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB, logger *zap.Logger) repositories.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// GetHashedPassword returns the password hash of an active user
func (r *UserRepository) GetHashedPassword(ctx context.Context, username string) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx, selectHashedPasswordQuery, username).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", repositories.ErrNotFound
		}
		return "", fmt.Errorf("failed to get hashed password: %w", err)
	}

	return hash, nil
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, selectUserQuery, username).Scan(
		&user.Username,
		&user.Email,
		&user.Active,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// Create inserts a credential record and returns the stored user
func (r *UserRepository) Create(ctx context.Context, record *models.CredentialRecord) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, insertUserQuery,
		record.Username,
		record.Email,
		record.HashedPassword,
	).Scan(
		&user.Username,
		&user.Email,
		&user.Active,
		&user.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			r.logger.Debug("user already exists", zap.String("constraint", pqErr.Constraint))
			return nil, fmt.Errorf("%w: %s", repositories.ErrConflict, pqErr.Constraint)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.Debug("user created", zap.String("username", user.Username))
	return user, nil
}
