package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/thermostatter/thermostatter-api/internal/auth"
	"github.com/thermostatter/thermostatter-api/models"
	"github.com/thermostatter/thermostatter-api/repositories"
	"github.com/thermostatter/thermostatter-api/repositories/memory"
	"go.uber.org/zap"
)

type authorizerFixture struct {
	users      *memory.UserRepository
	authorizer *Authorizer
	codec      *auth.Codec
	clock      *testClock
	alice      string
	bob        string
}

func newAuthorizerFixture(t *testing.T) *authorizerFixture {
	t.Helper()
	ctx := context.Background()
	users := memory.NewUserRepository()
	svc, _, codec, clock := newTestAuthService(t, users)

	alice, err := svc.Register(ctx, &models.RegisterRequest{Username: "alice", Email: "a@x.com", Password: "secret123"})
	require.NoError(t, err)
	bob, err := svc.Register(ctx, &models.RegisterRequest{Username: "bob", Email: "b@x.com", Password: "hunter22"})
	require.NoError(t, err)
	require.NoError(t, users.SetActive("bob", false))

	return &authorizerFixture{
		users:      users,
		authorizer: NewAuthorizer(users, codec, nil, zap.NewNop()),
		codec:      codec,
		clock:      clock,
		alice:      alice.AccessToken,
		bob:        bob.AccessToken,
	}
}

func TestAuthorizer_Stages(t *testing.T) {
	f := newAuthorizerFixture(t)
	ctx := context.Background()

	claims, err := f.authorizer.ClaimsFromToken(f.alice)
	require.NoError(t, err)

	username := f.authorizer.UsernameFromClaims(claims)
	assert.Equal(t, "alice", username)

	user, err := f.authorizer.CurrentUser(ctx, username)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "a@x.com", user.Email)
	assert.True(t, user.Active)

	assert.NoError(t, f.authorizer.RequireActive(user))
}

func TestAuthorizer_Resolve(t *testing.T) {
	f := newAuthorizerFixture(t)
	ctx := context.Background()

	tests := []struct {
		name          string
		token         string
		requireActive bool
		wantUser      string
		wantType      ErrorType
	}{
		{name: "active user", token: f.alice, requireActive: true, wantUser: "alice"},
		{name: "inactive user without guard", token: f.bob, requireActive: false, wantUser: "bob"},
		{name: "inactive user with guard", token: f.bob, requireActive: true, wantType: ErrorTypeForbidden},
		{name: "garbage token", token: "garbage", requireActive: false, wantType: ErrorTypeInvalidToken},
		{name: "empty token", token: "", requireActive: true, wantType: ErrorTypeInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := f.authorizer.Resolve(ctx, tt.token, tt.requireActive)
			if tt.wantType != "" {
				assert.Nil(t, user)
				assert.Equal(t, tt.wantType, GetErrorType(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, user.Username)
		})
	}
}

func TestAuthorizer_TamperedToken(t *testing.T) {
	f := newAuthorizerFixture(t)

	parts := strings.Split(f.alice, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err := f.authorizer.ClaimsFromToken(tampered)
	assert.True(t, IsInvalidTokenError(err))
}

func TestAuthorizer_ForeignSecret(t *testing.T) {
	f := newAuthorizerFixture(t)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(f.clock.Now().Add(time.Hour)),
	}).SignedString([]byte("attacker-secret"))
	require.NoError(t, err)

	_, err = f.authorizer.Resolve(context.Background(), forged, false)
	assert.True(t, IsInvalidTokenError(err))
}

func TestAuthorizer_ExpiredToken(t *testing.T) {
	f := newAuthorizerFixture(t)
	f.clock.now = f.clock.now.Add(30 * time.Minute)

	_, err := f.authorizer.ClaimsFromToken(f.alice)
	assert.True(t, IsInvalidTokenError(err))
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestAuthorizer_DeletedUser(t *testing.T) {
	codec, clock := newTestCodec(t)
	token, err := codec.Encode(auth.NewClaims("ghost", clock.Now(), time.Minute))
	require.NoError(t, err)

	authorizer := NewAuthorizer(memory.NewUserRepository(), codec, nil, zap.NewNop())
	_, err = authorizer.Resolve(context.Background(), token, false)
	assert.True(t, IsUnauthorizedError(err))
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestAuthorizer_StoreFailure(t *testing.T) {
	codec, clock := newTestCodec(t)
	token, err := codec.Encode(auth.NewClaims("alice", clock.Now(), time.Minute))
	require.NoError(t, err)

	users := new(MockUserRepository)
	users.On("GetByUsername", mock.Anything, "alice").Return(nil, errors.New("connection refused"))

	authorizer := NewAuthorizer(users, codec, nil, zap.NewNop())
	_, err = authorizer.Resolve(context.Background(), token, true)
	assert.True(t, IsUnauthorizedError(err))
	users.AssertExpectations(t)
}

func TestAuthorizer_RecoversFromDecoderPanic(t *testing.T) {
	authorizer := NewAuthorizer(memory.NewUserRepository(), nil, nil, zap.NewNop())

	var claims *auth.Claims
	var err error
	assert.NotPanics(t, func() {
		claims, err = authorizer.ClaimsFromToken("anything")
	})
	assert.Nil(t, claims)
	assert.True(t, IsInvalidTokenError(err))
}

func TestAuthorizer_RequireActive(t *testing.T) {
	authorizer := NewAuthorizer(nil, nil, nil, zap.NewNop())

	assert.NoError(t, authorizer.RequireActive(&models.User{Username: "alice", Active: true}))

	err := authorizer.RequireActive(&models.User{Username: "bob", Active: false})
	assert.True(t, IsForbiddenError(err))
	assert.ErrorIs(t, err, ErrForbidden)
}
