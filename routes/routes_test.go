package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thermostatter/thermostatter-api/app"
	"github.com/thermostatter/thermostatter-api/config"
	"github.com/thermostatter/thermostatter-api/models"
	"github.com/thermostatter/thermostatter-api/repositories/memory"
	"github.com/thermostatter/thermostatter-api/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const unauthorizedBody = `{"error":"unauthorized","message":"Invalid authentication credentials"}`

func newTestServer(t *testing.T, requireActive bool) (*httptest.Server, *app.Dependencies) {
	t.Helper()
	cfg := &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			RequestTimeout: 10 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		Database: config.DatabaseConfig{Driver: config.DriverMemory},
		Auth: config.AuthConfig{
			SecretKey:              "routes-test-secret",
			Algorithm:              "HS256",
			TokenTTL:               config.TokenTTL,
			BcryptCost:             bcrypt.MinCost,
			UserInfoRequiresActive: requireActive,
		},
	}

	deps, err := app.NewDependencies(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	server := httptest.NewServer(SetupRoutes(deps))
	t.Cleanup(func() {
		server.Close()
		_ = deps.Close(context.Background())
	})
	return server, deps
}

func register(t *testing.T, server *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(server.URL+"/auth/register", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func login(t *testing.T, server *httptest.Server, username, password string) *http.Response {
	t.Helper()
	resp, err := http.PostForm(server.URL+"/auth/token", url.Values{
		"username":   {username},
		"password":   {password},
		"grant_type": {"password"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func userInfo(t *testing.T, server *httptest.Server, authorization string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, server.URL+"/auth/userinfo", nil)
	require.NoError(t, err)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeToken(t *testing.T, resp *http.Response) models.Token {
	t.Helper()
	var token models.Token
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&token))
	return token
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	var raw json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	return string(raw)
}

func TestAuthFlow(t *testing.T) {
	server, _ := newTestServer(t, false)

	resp := register(t, server, `{"username":"alice","email":"a@x.com","password":"secret123"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	registered := decodeToken(t, resp)
	assert.NotEmpty(t, registered.AccessToken)
	assert.Equal(t, "bearer", registered.TokenType)

	resp = login(t, server, "alice", "secret123")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	issued := decodeToken(t, resp)
	assert.Equal(t, "bearer", issued.TokenType)

	resp = userInfo(t, server, "Bearer "+issued.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var user models.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&user))
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "a@x.com", user.Email)
	assert.True(t, user.Active)
	assert.False(t, user.CreatedAt.IsZero())

	resp = userInfo(t, server, "Bearer "+registered.AccessToken)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthFlow_Failures(t *testing.T) {
	server, _ := newTestServer(t, false)

	resp := register(t, server, `{"username":"alice","email":"a@x.com","password":"secret123"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	t.Run("duplicate registration", func(t *testing.T) {
		resp := register(t, server, `{"username":"alice","email":"other@x.com","password":"different"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body utils.ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Contains(t, body.Message, "already taken")
	})

	t.Run("wrong password and unknown user look the same", func(t *testing.T) {
		wrong := login(t, server, "alice", "wrong")
		unknown := login(t, server, "nobody", "secret123")

		assert.Equal(t, http.StatusUnauthorized, wrong.StatusCode)
		assert.Equal(t, http.StatusUnauthorized, unknown.StatusCode)
		assert.Equal(t, "Bearer", wrong.Header.Get("WWW-Authenticate"))
		assert.JSONEq(t, unauthorizedBody, readBody(t, wrong))
		assert.JSONEq(t, unauthorizedBody, readBody(t, unknown))
	})

	t.Run("missing password looks like a wrong one", func(t *testing.T) {
		resp, err := http.PostForm(server.URL+"/auth/token", url.Values{"username": {"alice"}})
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))
		assert.JSONEq(t, unauthorizedBody, readBody(t, resp))
	})

	t.Run("missing and garbage tokens look the same", func(t *testing.T) {
		for _, header := range []string{"", "Bearer garbage", "Basic YWxpY2U6c2VjcmV0MTIz"} {
			resp := userInfo(t, server, header)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))
			assert.JSONEq(t, unauthorizedBody, readBody(t, resp))
		}
	})
}

func TestUserInfo_InactiveUser(t *testing.T) {
	tests := []struct {
		name          string
		requireActive bool
		wantStatus    int
	}{
		{name: "guard disabled", requireActive: false, wantStatus: http.StatusOK},
		{name: "guard enabled", requireActive: true, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, deps := newTestServer(t, tt.requireActive)

			resp := register(t, server, `{"username":"bob","email":"b@x.com","password":"hunter22"}`)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			token := decodeToken(t, resp)

			users, ok := deps.Users.(*memory.UserRepository)
			require.True(t, ok)
			require.NoError(t, users.SetActive("bob", false))

			resp = userInfo(t, server, "Bearer "+token.AccessToken)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus == http.StatusForbidden {
				assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))
				assert.JSONEq(t, `{"error":"forbidden","message":"User is not active"}`, readBody(t, resp))
			}

			// Inactive users can no longer obtain tokens
			resp = login(t, server, "bob", "hunter22")
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestAuxiliaryRoutes(t *testing.T) {
	server, _ := newTestServer(t, false)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{name: "hello world", method: http.MethodGet, path: "/hello-world", wantStatus: http.StatusOK},
		{name: "liveness", method: http.MethodGet, path: "/healthz", wantStatus: http.StatusOK},
		{name: "readiness", method: http.MethodGet, path: "/readyz", wantStatus: http.StatusOK},
		{name: "unknown path", method: http.MethodGet, path: "/nope", wantStatus: http.StatusNotFound},
		{name: "wrong method", method: http.MethodGet, path: "/auth/token", wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, server.URL+tt.path, nil)
			require.NoError(t, err)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		})
	}
}

// useTracing installs a recording tracer provider and the W3C propagator
// until the test ends
func useTracing(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	previousProvider := otel.GetTracerProvider()
	previousPropagator := otel.GetTextMapPropagator()
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(previousProvider)
		otel.SetTextMapPropagator(previousPropagator)
		_ = provider.Shutdown(context.Background())
	})
	return recorder
}

func spanNamed(spans []sdktrace.ReadOnlySpan, name string) sdktrace.ReadOnlySpan {
	for _, span := range spans {
		if span.Name() == name {
			return span
		}
	}
	return nil
}

func TestTracing_UserInfo(t *testing.T) {
	const (
		traceID      = "4bf92f3577b34da6a3ce929d0e0e4736"
		parentSpanID = "00f067aa0ba902b7"
	)

	tests := []struct {
		name          string
		username      string
		deactivate    bool
		wantStatus    int
		wantAuthError string
	}{
		{name: "authorized request", username: "alice", wantStatus: http.StatusOK},
		{name: "inactive user", username: "bob", deactivate: true, wantStatus: http.StatusForbidden, wantAuthError: "forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := useTracing(t)
			server, deps := newTestServer(t, true)

			resp := register(t, server, `{"username":"`+tt.username+`","email":"`+tt.username+`@x.com","password":"secret123"}`)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			token := decodeToken(t, resp)
			if tt.deactivate {
				users, ok := deps.Users.(*memory.UserRepository)
				require.True(t, ok)
				require.NoError(t, users.SetActive(tt.username, false))
			}

			req, err := http.NewRequest(http.MethodGet, server.URL+"/auth/userinfo", nil)
			require.NoError(t, err)
			req.Header.Set("Authorization", "Bearer "+token.AccessToken)
			req.Header.Set("traceparent", "00-"+traceID+"-"+parentSpanID+"-01")
			resp, err = http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, tt.wantStatus, resp.StatusCode)

			// The server span ends after the response is written
			require.Eventually(t, func() bool {
				return spanNamed(recorder.Ended(), "GET /auth/userinfo") != nil
			}, time.Second, 10*time.Millisecond)
			spans := recorder.Ended()

			serverSpan := spanNamed(spans, "GET /auth/userinfo")
			assert.Equal(t, trace.SpanKindServer, serverSpan.SpanKind())
			assert.Equal(t, traceID, serverSpan.SpanContext().TraceID().String())
			assert.Equal(t, parentSpanID, serverSpan.Parent().SpanID().String())
			assert.True(t, serverSpan.Parent().IsRemote())

			authSpan := spanNamed(spans, "AuthMiddleware.Authorize")
			require.NotNil(t, authSpan)
			assert.Equal(t, traceID, authSpan.SpanContext().TraceID().String())
			assert.Equal(t, serverSpan.SpanContext().SpanID(), authSpan.Parent().SpanID())
			if tt.wantAuthError != "" {
				assert.Equal(t, codes.Error, authSpan.Status().Code)
				assert.Equal(t, tt.wantAuthError, authSpan.Status().Description)
			} else {
				assert.Equal(t, codes.Unset, authSpan.Status().Code)
			}
		})
	}
}
