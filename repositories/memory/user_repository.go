// Package memory provides an in-process credential store for development and tests.
// Not intended for production use (no persistence).
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/thermostatter/thermostatter-api/models"
	"github.com/thermostatter/thermostatter-api/repositories"
)

type userRow struct {
	user           models.User
	hashedPassword string
}

// UserRepository is an in-memory repositories.UserRepository.
// Usernames and emails share the uniqueness rules of the SQL schema.
type UserRepository struct {
	mu      sync.RWMutex
	users   map[string]*userRow
	byEmail map[string]string
	now     func() time.Time
}

// NewUserRepository creates an empty in-memory store
func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:   make(map[string]*userRow),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

// GetHashedPassword returns the hash of an active user
func (r *UserRepository) GetHashedPassword(ctx context.Context, username string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.users[username]
	if !ok || !row.user.Active {
		return "", repositories.ErrNotFound
	}
	return row.hashedPassword, nil
}

// GetByUsername returns a copy of the stored user
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.users[username]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	user := row.user
	return &user, nil
}

// Create inserts the record under a single lock so concurrent registrations of
// the same username or email leave exactly one row
func (r *UserRepository) Create(ctx context.Context, record *models.CredentialRecord) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.users[record.Username]; taken {
		return nil, fmt.Errorf("%w: username", repositories.ErrConflict)
	}
	if _, taken := r.byEmail[record.Email]; taken {
		return nil, fmt.Errorf("%w: email", repositories.ErrConflict)
	}

	row := &userRow{
		user: models.User{
			Username:  record.Username,
			Email:     record.Email,
			Active:    true,
			CreatedAt: r.now().UTC(),
		},
		hashedPassword: record.HashedPassword,
	}
	r.users[record.Username] = row
	r.byEmail[record.Email] = record.Username

	user := row.user
	return &user, nil
}

// SetActive flips the active flag of an existing user
func (r *UserRepository) SetActive(username string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.users[username]
	if !ok {
		return repositories.ErrNotFound
	}
	row.user.Active = active
	return nil
}

// Len returns the number of stored users
func (r *UserRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// compile-time interface check
var _ repositories.UserRepository = (*UserRepository)(nil)
