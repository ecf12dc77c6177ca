// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlayerGate Contributors

package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/playergate/playergate/internal/api"
	"github.com/playergate/playergate/internal/auth"
)

type mockAuthService struct {
	mock.Mock
}

func (m *mockAuthService) Register(ctx context.Context, params auth.RegisterParams) (*auth.User, string, error) {
	args := m.Called(ctx, params)
	user, _ := args.Get(0).(*auth.User)
	return user, args.String(1), args.Error(2)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (string, error) {
	args := m.Called(ctx, email, password)
	return args.String(0), args.Error(1)
}

func (m *mockAuthService) ResolveProfile(ctx context.Context, token string) (auth.Profile, error) {
	args := m.Called(ctx, token)
	profile, _ := args.Get(0).(auth.Profile)
	return profile, args.Error(1)
}

func newTestServer(t *testing.T) (*mockAuthService, http.Handler) {
	t.Helper()
	svc := &mockAuthService{}
	srv, err := api.NewServer("127.0.0.1:0", svc)
	require.NoError(t, err)
	return svc, srv.Handler()
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, rec)
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok, "response has no error object: %s", rec.Body.String())
	code, _ := errObj["code"].(string)
	return code
}

func TestNewServer_RequiresAuthService(t *testing.T) {
	_, err := api.NewServer("127.0.0.1:0", nil)
	assert.Error(t, err)
}

func TestHandleBanner(t *testing.T) {
	_, handler := newTestServer(t)

	rec := doJSON(t, handler, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decodeBody(t, rec)
	assert.Equal(t, "playergate", body["service"])
	assert.Equal(t, "ok", body["status"])
}

func TestHandleRegister(t *testing.T) {
	t.Run("creates account and returns token", func(t *testing.T) {
		svc, handler := newTestServer(t)
		svc.On("Register", mock.Anything, auth.RegisterParams{
			Email:    "new@example.com",
			Password: "password123",
			Nickname: "newbie",
		}).Return(&auth.User{Email: "new@example.com"}, "signed.token", nil).Once()

		rec := doJSON(t, handler, http.MethodPost, "/auth/register",
			`{"email":"new@example.com","password":"password123","nickname":"newbie"}`)

		assert.Equal(t, http.StatusCreated, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "signed.token", body["access_token"])
		assert.Equal(t, "bearer", body["token_type"])
		svc.AssertExpectations(t)
	})

	t.Run("duplicate email maps to 400", func(t *testing.T) {
		svc, handler := newTestServer(t)
		svc.On("Register", mock.Anything, mock.Anything).
			Return(nil, "", oops.Code(auth.CodeDuplicateEmail).Wrap(auth.ErrDuplicateEmail)).Once()

		rec := doJSON(t, handler, http.MethodPost, "/auth/register",
			`{"email":"dup@example.com","password":"password123","nickname":"dupuser"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, auth.CodeDuplicateEmail, errorCode(t, rec))
	})

	t.Run("validation failure maps to 422", func(t *testing.T) {
		svc, handler := newTestServer(t)
		svc.On("Register", mock.Anything, mock.Anything).
			Return(nil, "", oops.Code(auth.CodeInvalidArgument).Errorf("nickname: the length must be between 3 and 32")).Once()

		rec := doJSON(t, handler, http.MethodPost, "/auth/register",
			`{"email":"a@example.com","password":"pw","nickname":"ab"}`)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, auth.CodeInvalidArgument, errorCode(t, rec))
	})

	t.Run("malformed JSON maps to 400 without touching the service", func(t *testing.T) {
		svc, handler := newTestServer(t)

		rec := doJSON(t, handler, http.MethodPost, "/auth/register", `{"email": `)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Register")
	})

	t.Run("store failure maps to 503 with canned message", func(t *testing.T) {
		svc, handler := newTestServer(t)
		svc.On("Register", mock.Anything, mock.Anything).
			Return(nil, "", oops.Code(auth.CodeStoreUnavailable).
				With("operation", "create user").
				Errorf("connection refused to db-host-internal:5432")).Once()

		rec := doJSON(t, handler, http.MethodPost, "/auth/register",
			`{"email":"a@example.com","password":"password123","nickname":"alice"}`)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, auth.CodeStoreUnavailable, errorCode(t, rec))
		// Internal detail must not leak into the response body.
		assert.NotContains(t, rec.Body.String(), "db-host-internal")
	})
}

func TestHandleLogin(t *testing.T) {
	t.Run("returns token on success", func(t *testing.T) {
		svc, handler := newTestServer(t)
		svc.On("Login", mock.Anything, "alice@example.com", "password123").
			Return("signed.token", nil).Once()

		rec := doJSON(t, handler, http.MethodPost, "/auth/login",
			`{"email":"alice@example.com","password":"password123"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "signed.token", body["access_token"])
		assert.Equal(t, "bearer", body["token_type"])
		svc.AssertExpectations(t)
	})

	t.Run("invalid credentials map to 401", func(t *testing.T) {
		svc, handler := newTestServer(t)
		svc.On("Login", mock.Anything, mock.Anything, mock.Anything).
			Return("", oops.Code(auth.CodeInvalidCredentials).Errorf("invalid email or password")).Once()

		rec := doJSON(t, handler, http.MethodPost, "/auth/login",
			`{"email":"alice@example.com","password":"wrong"}`)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, auth.CodeInvalidCredentials, errorCode(t, rec))
	})

	t.Run("malformed JSON maps to 400", func(t *testing.T) {
		svc, handler := newTestServer(t)

		rec := doJSON(t, handler, http.MethodPost, "/auth/login", `not json`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Login")
	})
}

func TestHandleMe(t *testing.T) {
	t.Run("returns profile without password hash", func(t *testing.T) {
		svc, handler := newTestServer(t)
		svc.On("ResolveProfile", mock.Anything, "signed.token").
			Return(auth.Profile{
				ID:       "01JX0000000000000000000000",
				Email:    "alice@example.com",
				Nickname: "alice",
				Roles:    []string{"player"},
			}, nil).Once()

		rec := doJSON(t, handler, http.MethodPost, "/me", `{"token":"signed.token"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "alice@example.com", body["email"])
		assert.Equal(t, "alice", body["nickname"])
		assert.Equal(t, []any{"player"}, body["roles"])
		assert.NotContains(t, rec.Body.String(), "password")
		svc.AssertExpectations(t)
	})

	t.Run("invalid token maps to 401", func(t *testing.T) {
		svc, handler := newTestServer(t)
		svc.On("ResolveProfile", mock.Anything, mock.Anything).
			Return(auth.Profile{}, oops.Code(auth.CodeInvalidToken).Errorf("token signature mismatch")).Once()

		rec := doJSON(t, handler, http.MethodPost, "/me", `{"token":"tampered"}`)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, auth.CodeInvalidToken, errorCode(t, rec))
	})

	t.Run("vanished user maps to 404", func(t *testing.T) {
		svc, handler := newTestServer(t)
		svc.On("ResolveProfile", mock.Anything, mock.Anything).
			Return(auth.Profile{}, oops.Code(auth.CodeUserNotFound).Errorf("user no longer exists")).Once()

		rec := doJSON(t, handler, http.MethodPost, "/me", `{"token":"orphaned"}`)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, auth.CodeUserNotFound, errorCode(t, rec))
	})

	t.Run("uncoded error maps to 500 with generic body", func(t *testing.T) {
		svc, handler := newTestServer(t)
		svc.On("ResolveProfile", mock.Anything, mock.Anything).
			Return(auth.Profile{}, assertableInternalError{}).Once()

		rec := doJSON(t, handler, http.MethodPost, "/me", `{"token":"whatever"}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "secret detail")
	})

	t.Run("codeless oops error maps to 500 with generic body", func(t *testing.T) {
		svc, handler := newTestServer(t)
		svc.On("ResolveProfile", mock.Anything, mock.Anything).
			Return(auth.Profile{}, oops.Wrap(assertableInternalError{})).Once()

		rec := doJSON(t, handler, http.MethodPost, "/me", `{"token":"whatever"}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "AUTH_INTERNAL", errorCode(t, rec))
		assert.NotContains(t, rec.Body.String(), "secret detail")
	})
}

type assertableInternalError struct{}

func (assertableInternalError) Error() string { return "secret detail" }

func TestCORSHeaders(t *testing.T) {
	_, handler := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
	req.Header.Set("Origin", "https://game.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
