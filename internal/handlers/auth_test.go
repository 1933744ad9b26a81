package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/foliumhq/folium/internal/models"
	"github.com/foliumhq/folium/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doJSON(t *testing.T, handler http.HandlerFunc, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestLoginHandler_Success(t *testing.T) {
	login := &mockLoginProvider{
		LoginFunc: func(ctx context.Context, email, password, clientIP string) (*services.LoginResult, error) {
			assert.Equal(t, "user@example.com", email)
			return &services.LoginResult{Token: "session-token"}, nil
		},
	}
	h := NewAuthHandler(login)

	rec := doJSON(t, h.Login, http.MethodPost, "/auth/login",
		`{"email":"user@example.com","password":"Correct-Horse1"}`)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "session-token", resp.Token)
	assert.False(t, resp.RequiresTwoFactor)
	assert.Empty(t, resp.PendingRef)
}

func TestLoginHandler_TwoFactorRequired(t *testing.T) {
	expires := time.Now().Add(5 * time.Minute)
	login := &mockLoginProvider{
		LoginFunc: func(ctx context.Context, email, password, clientIP string) (*services.LoginResult, error) {
			return &services.LoginResult{
				RequiresTwoFactor: true,
				PendingRef:        "opaque-ref",
				PendingExpiresAt:  expires,
			}, nil
		},
	}
	h := NewAuthHandler(login)

	rec := doJSON(t, h.Login, http.MethodPost, "/auth/login",
		`{"email":"user@example.com","password":"Correct-Horse1"}`)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.RequiresTwoFactor)
	assert.Equal(t, "opaque-ref", resp.PendingRef)
	assert.Empty(t, resp.Token)
	require.NotNil(t, resp.PendingExpiresAt)
}

func TestLoginHandler_RejectionBodiesAreIdentical(t *testing.T) {
	// Unknown identity and wrong password must be indistinguishable on the
	// wire, down to the bytes.
	h := NewAuthHandler(&mockLoginProvider{
		LoginFunc: func(ctx context.Context, email, password, clientIP string) (*services.LoginResult, error) {
			return nil, models.ErrInvalidCredentials
		},
	})

	unknown := doJSON(t, h.Login, http.MethodPost, "/auth/login",
		`{"email":"nobody@example.com","password":"whatever1A"}`)
	wrongPassword := doJSON(t, h.Login, http.MethodPost, "/auth/login",
		`{"email":"user@example.com","password":"wrong1A"}`)

	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, unknown.Body.String(), wrongPassword.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(unknown.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_CREDENTIALS", resp["error"])
}

func TestLoginHandler_MalformedBodyGetsSameRejection(t *testing.T) {
	h := NewAuthHandler(&mockLoginProvider{
		LoginFunc: func(ctx context.Context, email, password, clientIP string) (*services.LoginResult, error) {
			t.Fatal("service must not be called for malformed input")
			return nil, nil
		},
	})

	missingEmail := doJSON(t, h.Login, http.MethodPost, "/auth/login", `{"password":"x"}`)
	badJSON := doJSON(t, h.Login, http.MethodPost, "/auth/login", `{not json`)

	assert.Equal(t, http.StatusUnauthorized, missingEmail.Code)
	assert.Equal(t, http.StatusUnauthorized, badJSON.Code)
}

func TestLoginHandler_AccountLocked(t *testing.T) {
	h := NewAuthHandler(&mockLoginProvider{
		LoginFunc: func(ctx context.Context, email, password, clientIP string) (*services.LoginResult, error) {
			return nil, &models.AccountLockedError{RetryAfter: 90 * time.Second}
		},
	})

	rec := doJSON(t, h.Login, http.MethodPost, "/auth/login",
		`{"email":"user@example.com","password":"Correct-Horse1"}`)

	assert.Equal(t, http.StatusLocked, rec.Code)
	assert.Equal(t, "90", rec.Header().Get("Retry-After"))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ACCOUNT_LOCKED", resp["error"])
	assert.Equal(t, float64(90), resp["retry_after_seconds"])
}

func TestVerifyTwoFactorHandler_Success(t *testing.T) {
	h := NewAuthHandler(&mockLoginProvider{
		VerifyTwoFactorFunc: func(ctx context.Context, pendingRef, code, clientIP string) (*services.LoginResult, error) {
			assert.Equal(t, "opaque-ref", pendingRef)
			assert.Equal(t, "123456", code)
			return &services.LoginResult{Token: "session-token"}, nil
		},
	})

	rec := doJSON(t, h.VerifyTwoFactor, http.MethodPost, "/auth/login/verify-2fa",
		`{"pending_ref":"opaque-ref","code":"123456"}`)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "session-token", resp.Token)
}

func TestVerifyTwoFactorHandler_InvalidCode(t *testing.T) {
	h := NewAuthHandler(&mockLoginProvider{
		VerifyTwoFactorFunc: func(ctx context.Context, pendingRef, code, clientIP string) (*services.LoginResult, error) {
			return nil, models.ErrInvalidCode
		},
	})

	rec := doJSON(t, h.VerifyTwoFactor, http.MethodPost, "/auth/login/verify-2fa",
		`{"pending_ref":"opaque-ref","code":"000000"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_CODE", resp["error"])
}

func TestVerifyTwoFactorHandler_SessionExpired(t *testing.T) {
	h := NewAuthHandler(&mockLoginProvider{
		VerifyTwoFactorFunc: func(ctx context.Context, pendingRef, code, clientIP string) (*services.LoginResult, error) {
			return nil, models.ErrSessionExpired
		},
	})

	rec := doJSON(t, h.VerifyTwoFactor, http.MethodPost, "/auth/login/verify-2fa",
		`{"pending_ref":"stale-ref","code":"123456"}`)

	assert.Equal(t, http.StatusGone, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "SESSION_EXPIRED", resp["error"])
}

func TestVerifyTwoFactorHandler_CodeFormatValidated(t *testing.T) {
	h := NewAuthHandler(&mockLoginProvider{
		VerifyTwoFactorFunc: func(ctx context.Context, pendingRef, code, clientIP string) (*services.LoginResult, error) {
			t.Fatal("service must not see malformed codes")
			return nil, nil
		},
	})

	tooShort := doJSON(t, h.VerifyTwoFactor, http.MethodPost, "/auth/login/verify-2fa",
		`{"pending_ref":"ref","code":"123"}`)
	notDigits := doJSON(t, h.VerifyTwoFactor, http.MethodPost, "/auth/login/verify-2fa",
		`{"pending_ref":"ref","code":"12345a"}`)

	assert.Equal(t, http.StatusBadRequest, tooShort.Code)
	assert.Equal(t, http.StatusBadRequest, notDigits.Code)
}

func TestRegisterHandler_Success(t *testing.T) {
	h := NewAuthHandler(&mockLoginProvider{
		RegisterFunc: func(ctx context.Context, email, password string) (*models.Credential, error) {
			return &models.Credential{
				ID:    "cred-new",
				Email: email,
				Role:  models.RoleUser,
			}, nil
		},
	})

	rec := doJSON(t, h.Register, http.MethodPost, "/auth/register",
		`{"email":"new@example.com","password":"Correct-Horse1"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp CredentialResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cred-new", resp.ID)
	assert.Equal(t, "new@example.com", resp.Email)
}

func TestRegisterHandler_Conflict(t *testing.T) {
	h := NewAuthHandler(&mockLoginProvider{
		RegisterFunc: func(ctx context.Context, email, password string) (*models.Credential, error) {
			return nil, models.ErrConflict
		},
	})

	rec := doJSON(t, h.Register, http.MethodPost, "/auth/register",
		`{"email":"taken@example.com","password":"Correct-Horse1"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMeHandler_ReturnsCredentialWithoutSecrets(t *testing.T) {
	h := NewAuthHandler(&mockLoginProvider{
		GetCredentialFunc: func(ctx context.Context, id string) (*models.Credential, error) {
			return &models.Credential{
				ID:               id,
				Email:            "user@example.com",
				Role:             models.RoleUser,
				PasswordHash:     "$2a$12$secret",
				TwoFactorEnabled: true,
				TwoFactorSecret:  "TOTPSECRET",
			}, nil
		},
	})

	req := withClaims(httptest.NewRequest(http.MethodGet, "/auth/me", nil), "cred-1", models.RoleUser)
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "TOTPSECRET")
	assert.NotContains(t, rec.Body.String(), "$2a$12$")

	var resp CredentialResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cred-1", resp.ID)
	assert.True(t, resp.TwoFactorEnabled)
}

func TestMeHandler_NoClaims(t *testing.T) {
	h := NewAuthHandler(&mockLoginProvider{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
