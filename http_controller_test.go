package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-service"
)

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(context.Context) error { return f.err }

func newTestApp(t *testing.T, users auth.UserStore, roles auth.RoleStore, store auth.Pinger) *fiber.App {
	t.Helper()

	auther := auth.NewAuthenticator(users, roles, newTestConfig()).
		WithLogger(quietLogger{})

	app := fiber.New()
	controller := auth.NewHTTPController(auther,
		auth.WithControllerLogger(quietLogger{}),
		auth.WithControllerStore(store),
	)
	controller.RegisterRoutes(app)

	return app
}

func aliceStore() *MockUserStore {
	users := &MockUserStore{}
	users.On("FindByUsername", mock.Anything, "alice").Return(&auth.User{
		ID:           int64Ptr(7),
		Username:     "alice",
		PasswordHash: &secretHash,
		Role:         strPtr("admin"),
		IsActive:     boolPtr(true),
	}, nil)
	return users
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func loginRequest(username, password string) *http.Request {
	payload, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(string(payload)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func loginToken(t *testing.T, app *fiber.App, username, password string) string {
	t.Helper()
	resp, err := app.Test(loginRequest(username, password))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestHTTPBannerAndHealth(t *testing.T) {
	t.Run("banner", func(t *testing.T) {
		app := newTestApp(t, &MockUserStore{}, &MockRoleStore{}, fakePinger{})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Contains(t, body["message"], "running")
	})

	t.Run("health with reachable store", func(t *testing.T) {
		app := newTestApp(t, &MockUserStore{}, &MockRoleStore{}, fakePinger{})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, "connected", body["database"])
	})

	t.Run("health with unreachable store", func(t *testing.T) {
		app := newTestApp(t, &MockUserStore{}, &MockRoleStore{}, fakePinger{err: errors.New("no route to host")})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "unhealthy", body["status"])
		assert.Equal(t, "disconnected", body["database"])
	})
}

func TestHTTPLogin(t *testing.T) {
	t.Run("successful login returns token and user summary", func(t *testing.T) {
		app := newTestApp(t, aliceStore(), &MockRoleStore{}, fakePinger{})

		resp, err := app.Test(loginRequest("alice", "secret"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "Login successful", body["message"])
		assert.Equal(t, "bearer", body["token_type"])
		assert.NotEmpty(t, body["access_token"])

		user, ok := body["user"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "alice", user["username"])
		assert.Equal(t, float64(7), user["id"])
		assert.Equal(t, true, user["is_admin"])
		assert.NotContains(t, user, "password")
		assert.NotContains(t, user, "password_hash")
	})

	t.Run("bad credentials return 401 with the uniform envelope", func(t *testing.T) {
		app := newTestApp(t, aliceStore(), &MockRoleStore{}, fakePinger{})

		resp, err := app.Test(loginRequest("alice", "wrong"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "Invalid username or password", body["message"])
		assert.Nil(t, body["access_token"])
		assert.Nil(t, body["user"])
	})

	t.Run("unknown username returns the same envelope as bad password", func(t *testing.T) {
		users := &MockUserStore{}
		users.On("FindByUsername", mock.Anything, "ghost").Return(nil, storeNotFound("user not found"))
		users.On("FindByEmail", mock.Anything, "ghost").Return(nil, storeNotFound("user not found"))

		app := newTestApp(t, users, &MockRoleStore{}, fakePinger{})

		resp, err := app.Test(loginRequest("ghost", "whatever"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "Invalid username or password", body["message"])
	})

	t.Run("disabled account returns 403", func(t *testing.T) {
		users := &MockUserStore{}
		users.On("FindByUsername", mock.Anything, "bob").Return(&auth.User{
			Username: "bob",
			Password: strPtr("plaintextpw"),
			IsActive: boolPtr(false),
		}, nil)

		app := newTestApp(t, users, &MockRoleStore{}, fakePinger{})

		resp, err := app.Test(loginRequest("bob", "plaintextpw"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "User account is disabled", body["message"])
	})

	t.Run("missing fields return 400", func(t *testing.T) {
		app := newTestApp(t, &MockUserStore{}, &MockRoleStore{}, fakePinger{})

		resp, err := app.Test(loginRequest("", ""))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("store fault returns a generic 500", func(t *testing.T) {
		users := &MockUserStore{}
		users.On("FindByUsername", mock.Anything, "alice").Return(nil, errors.New("connection reset"))

		app := newTestApp(t, users, &MockRoleStore{}, fakePinger{})

		resp, err := app.Test(loginRequest("alice", "secret"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "An unexpected error occurred", body["message"])
		assert.NotContains(t, body["message"], "connection reset")
	})
}

func TestHTTPVerify(t *testing.T) {
	t.Run("valid token returns claims without store access", func(t *testing.T) {
		app := newTestApp(t, aliceStore(), &MockRoleStore{}, fakePinger{})
		token := loginToken(t, app, "alice", "secret")

		req := httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, true, body["valid"])

		user, ok := body["user"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "alice", user["username"])
		assert.Equal(t, "7", user["user_id"])
		assert.Equal(t, "admin", user["role"])
	})

	t.Run("missing token returns 401", func(t *testing.T) {
		app := newTestApp(t, &MockUserStore{}, &MockRoleStore{}, fakePinger{})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "Invalid or expired token", body["message"])
	})

	t.Run("garbage token returns 401 with the same message", func(t *testing.T) {
		app := newTestApp(t, &MockUserStore{}, &MockRoleStore{}, fakePinger{})

		req := httptest.NewRequest(http.MethodGet, "/api/auth/verify", nil)
		req.Header.Set("Authorization", "Bearer garbage")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "Invalid or expired token", body["message"])
	})
}

func TestHTTPMe(t *testing.T) {
	t.Run("returns the refreshed user summary", func(t *testing.T) {
		app := newTestApp(t, aliceStore(), &MockRoleStore{}, fakePinger{})
		token := loginToken(t, app, "alice", "secret")

		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "alice", body["username"])
		assert.Equal(t, float64(7), body["id"])
		assert.Equal(t, "admin", body["role"])
		assert.Equal(t, true, body["is_admin"])
	})

	t.Run("vanished subject returns 401", func(t *testing.T) {
		users := &MockUserStore{}
		users.On("FindByUsername", mock.Anything, "alice").Return(&auth.User{
			ID:           int64Ptr(7),
			Username:     "alice",
			PasswordHash: &secretHash,
		}, nil).Once()
		users.On("FindByUsername", mock.Anything, "alice").Return(nil, storeNotFound("user not found"))

		app := newTestApp(t, users, &MockRoleStore{}, fakePinger{})
		token := loginToken(t, app, "alice", "secret")

		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestHTTPProtectedSample(t *testing.T) {
	t.Run("requires a bearer token", func(t *testing.T) {
		app := newTestApp(t, &MockUserStore{}, &MockRoleStore{}, fakePinger{})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/test", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("answers with a valid token", func(t *testing.T) {
		app := newTestApp(t, aliceStore(), &MockRoleStore{}, fakePinger{})
		token := loginToken(t, app, "alice", "secret")

		req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "API is working correctly", body["message"])
	})
}
