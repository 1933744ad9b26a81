package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/foliumhq/folium/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passthroughHandler(t *testing.T, sawClaims **models.TokenClaims) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*sawClaims = GetClaimsFromContext(r)
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_ValidToken(t *testing.T) {
	tm := NewTokenManager(testSigningSecret, time.Hour)
	token, err := tm.IssueSession("cred-1", models.RoleUser)
	require.NoError(t, err)

	var claims *models.TokenClaims
	handler := Middleware(tm)(passthroughHandler(t, &claims))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, claims)
	assert.Equal(t, "cred-1", claims.Subject)
}

func TestMiddleware_MissingOrMalformedHeader(t *testing.T) {
	tm := NewTokenManager(testSigningSecret, time.Hour)

	var claims *models.TokenClaims
	handler := Middleware(tm)(passthroughHandler(t, &claims))

	cases := map[string]string{
		"missing":      "",
		"no scheme":    "some-token",
		"wrong scheme": "Basic dXNlcjpwYXNz",
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestMiddleware_ExpiredToken(t *testing.T) {
	expired := NewTokenManager(testSigningSecret, -time.Minute)
	token, err := expired.IssueSession("cred-1", models.RoleUser)
	require.NoError(t, err)

	var claims *models.TokenClaims
	handler := Middleware(NewTokenManager(testSigningSecret, time.Hour))(passthroughHandler(t, &claims))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, claims)
}

type staticFetcher struct {
	cred *models.Credential
	err  error
}

func (f staticFetcher) GetByID(ctx context.Context, id string) (*models.Credential, error) {
	return f.cred, f.err
}

func TestRequireRole_ChecksCurrentRole(t *testing.T) {
	tm := NewTokenManager(testSigningSecret, time.Hour)
	// Token says admin, store says user: store wins.
	token, err := tm.IssueSession("cred-1", models.RoleAdmin)
	require.NoError(t, err)

	fetcher := staticFetcher{cred: &models.Credential{ID: "cred-1", Role: models.RoleUser, Active: true}}

	var claims *models.TokenClaims
	handler := Middleware(tm)(RequireRole(fetcher, models.RoleAdmin)(passthroughHandler(t, &claims)))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRole_InactiveCredential(t *testing.T) {
	tm := NewTokenManager(testSigningSecret, time.Hour)
	token, err := tm.IssueSession("cred-1", models.RoleAdmin)
	require.NoError(t, err)

	fetcher := staticFetcher{cred: &models.Credential{ID: "cred-1", Role: models.RoleAdmin, Active: false}}

	var claims *models.TokenClaims
	handler := Middleware(tm)(RequireRole(fetcher, models.RoleAdmin)(passthroughHandler(t, &claims)))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
