package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/thermostatter/thermostatter-api/internal/auth"
	"github.com/thermostatter/thermostatter-api/models"
	"golang.org/x/crypto/bcrypt"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetHashedPassword(ctx context.Context, username string) (string, error) {
	args := m.Called(ctx, username)
	return args.String(0), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if user := args.Get(0); user != nil {
		return user.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, record *models.CredentialRecord) (*models.User, error) {
	args := m.Called(ctx, record)
	if user := args.Get(0); user != nil {
		return user.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

// countingHasher wraps a real hasher and counts Verify calls
type countingHasher struct {
	auth.Hasher
	verifies atomic.Int32
}

func (h *countingHasher) Verify(password, hash string) bool {
	h.verifies.Add(1)
	return h.Hasher.Verify(password, hash)
}

// testClock is a settable time source
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

var testSecret = []byte("services-test-secret")

func newTestCodec(t *testing.T) (*auth.Codec, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)}
	codec, err := auth.NewCodec(testSecret, auth.DefaultAlgorithm, auth.WithClock(clock.Now))
	require.NoError(t, err)
	return codec, clock
}

func newTestHasher() *countingHasher {
	return &countingHasher{Hasher: auth.NewBcryptHasher(bcrypt.MinCost)}
}
