package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/voice-membership/internal/auth"
	"github.com/BradenHooton/voice-membership/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsers struct {
	users map[string]*models.User
}

func (s *stubUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, models.ErrNotFound
}

type stubRevocation struct {
	revoked map[string]bool
	err     error
}

func (s *stubRevocation) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	return s.revoked[jti], s.err
}

func newFixture(t *testing.T) (*auth.TokenManager, *stubUsers, *models.User) {
	t.Helper()
	user := &models.User{ID: "user-1", Email: "riley@voice.local", Role: models.RoleUser, TokenKey: "key-1"}
	users := &stubUsers{users: map[string]*models.User{user.ID: user}}
	tm := auth.NewTokenManager("a-test-secret-that-is-long-enough", 15*time.Minute, time.Hour, users)
	return tm, users, user
}

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := auth.GetUserFromContext(r)
		require.NotNil(t, claims)
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestTokenManager_IssueAndValidate(t *testing.T) {
	tm, _, user := newFixture(t)

	pair, err := tm.Issue(user)
	require.NoError(t, err)

	claims, err := tm.Validate(context.Background(), pair.AccessToken, models.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleUser, claims.Role)

	_, err = tm.Validate(context.Background(), pair.RefreshToken, models.TokenTypeAccess)
	assert.ErrorIs(t, err, models.ErrInvalidToken)

	_, err = tm.Validate(context.Background(), pair.RefreshToken, models.TokenTypeRefresh)
	assert.NoError(t, err)
}

func TestTokenManager_RotatedKeyInvalidatesTokens(t *testing.T) {
	tm, _, user := newFixture(t)

	pair, err := tm.Issue(user)
	require.NoError(t, err)

	user.TokenKey = "rotated"

	_, err = tm.Validate(context.Background(), pair.AccessToken, models.TokenTypeAccess)
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestMiddleware_BearerAndCookie(t *testing.T) {
	tm, _, user := newFixture(t)
	pair, err := tm.Issue(user)
	require.NoError(t, err)

	handler := auth.Middleware(tm, nil)(okHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.AddCookie(&http.Cookie{Name: auth.AccessTokenCookie, Value: pair.AccessToken})
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestMiddleware_MissingToken(t *testing.T) {
	tm, _, _ := newFixture(t)
	handler := auth.Middleware(tm, nil)(okHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Accept", "text/html")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestMiddleware_RevokedToken(t *testing.T) {
	tm, _, user := newFixture(t)
	pair, err := tm.Issue(user)
	require.NoError(t, err)

	claims, err := tm.Validate(context.Background(), pair.AccessToken, models.TokenTypeAccess)
	require.NoError(t, err)

	revocation := &stubRevocation{revoked: map[string]bool{claims.ID: true}}
	handler := auth.Middleware(tm, revocation)(okHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	revocation = &stubRevocation{err: errors.New("db down")}
	handler = auth.Middleware(tm, revocation)(okHandler(t))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOptionalMiddleware(t *testing.T) {
	tm, _, _ := newFixture(t)

	var sawClaims bool
	handler := auth.OptionalMiddleware(tm, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawClaims = auth.GetUserFromContext(r) != nil
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/landing-page/data", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, sawClaims)
}

func TestRequireRole(t *testing.T) {
	_, users, user := newFixture(t)
	admin := &models.User{ID: "admin-1", Role: models.RoleAdmin}
	users.users[admin.ID] = admin

	handler := auth.RequireRole(users, models.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		claims *models.TokenClaims
		want   int
	}{
		{"no claims", nil, http.StatusUnauthorized},
		{"regular user", &models.TokenClaims{UserID: user.ID}, http.StatusForbidden},
		{"admin", &models.TokenClaims{UserID: admin.ID}, http.StatusOK},
		{"deleted user", &models.TokenClaims{UserID: "gone"}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
			if tt.claims != nil {
				req = auth.WithClaims(req, tt.claims)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestCSRFTokensMatch(t *testing.T) {
	token, err := auth.GenerateCSRFToken()
	require.NoError(t, err)
	assert.Len(t, token, 64)

	assert.True(t, auth.CSRFTokensMatch(token, token))
	assert.False(t, auth.CSRFTokensMatch(token, "other"))
	assert.False(t, auth.CSRFTokensMatch(token, ""))
	assert.False(t, auth.CSRFTokensMatch("", ""))
}
