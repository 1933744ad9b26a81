package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	internalauth "github.com/foliumhq/folium/internal/auth"
	"github.com/foliumhq/folium/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doAuthedJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/2fa", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = withClaims(req, "cred-1", models.RoleUser)
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestTwoFactorSetupHandler_ReturnsEnrollment(t *testing.T) {
	h := NewTwoFactorHandler(&mockTwoFactorProvider{
		SetupFunc: func(ctx context.Context, credentialID string) (*internalauth.Enrollment, error) {
			assert.Equal(t, "cred-1", credentialID)
			return &internalauth.Enrollment{
				Secret:     "NEWSECRET",
				OtpauthURL: "otpauth://totp/Folium:user@example.com",
				QRDataURL:  "data:image/png;base64,abc",
			}, nil
		},
	})

	req := withClaims(httptest.NewRequest(http.MethodPost, "/auth/2fa/setup", nil), "cred-1", models.RoleUser)
	rec := httptest.NewRecorder()
	h.Setup(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp SetupTwoFactorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "NEWSECRET", resp.Secret)
	assert.Contains(t, resp.OtpauthURL, "otpauth://")
}

func TestTwoFactorSetupHandler_AlreadyEnabled(t *testing.T) {
	h := NewTwoFactorHandler(&mockTwoFactorProvider{
		SetupFunc: func(ctx context.Context, credentialID string) (*internalauth.Enrollment, error) {
			return nil, models.ErrConflict
		},
	})

	req := withClaims(httptest.NewRequest(http.MethodPost, "/auth/2fa/setup", nil), "cred-1", models.RoleUser)
	rec := httptest.NewRecorder()
	h.Setup(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTwoFactorActivateHandler_WrongCode(t *testing.T) {
	h := NewTwoFactorHandler(&mockTwoFactorProvider{
		ActivateFunc: func(ctx context.Context, credentialID, code string) error {
			return models.ErrInvalidCode
		},
	})

	rec := doAuthedJSON(t, h.Activate, `{"code":"000000"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_CODE", resp["error"])
}

func TestTwoFactorActivateHandler_Success(t *testing.T) {
	h := NewTwoFactorHandler(&mockTwoFactorProvider{})

	rec := doAuthedJSON(t, h.Activate, `{"code":"123456"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"two_factor_enabled":true`)
}

func TestTwoFactorDisableHandler_WrongPassword(t *testing.T) {
	h := NewTwoFactorHandler(&mockTwoFactorProvider{
		DisableFunc: func(ctx context.Context, credentialID, password string) error {
			return models.ErrUnauthorized
		},
	})

	rec := doAuthedJSON(t, h.Disable, `{"password":"wrong"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTwoFactorHandlers_RequireSession(t *testing.T) {
	h := NewTwoFactorHandler(&mockTwoFactorProvider{})

	req := httptest.NewRequest(http.MethodPost, "/auth/2fa/setup", nil)
	rec := httptest.NewRecorder()
	h.Setup(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
