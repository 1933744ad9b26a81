package handlers

import (
	"context"
	"net/http"

	internalauth "github.com/foliumhq/folium/internal/auth"
	"github.com/foliumhq/folium/internal/models"
	"github.com/foliumhq/folium/internal/services"
)

// mockLoginProvider implements LoginProvider with overridable behavior
type mockLoginProvider struct {
	LoginFunc           func(ctx context.Context, email, password, clientIP string) (*services.LoginResult, error)
	VerifyTwoFactorFunc func(ctx context.Context, pendingRef, code, clientIP string) (*services.LoginResult, error)
	RegisterFunc        func(ctx context.Context, email, password string) (*models.Credential, error)
	GetCredentialFunc   func(ctx context.Context, id string) (*models.Credential, error)
}

func (m *mockLoginProvider) Login(ctx context.Context, email, password, clientIP string) (*services.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password, clientIP)
	}
	return nil, models.ErrInvalidCredentials
}

func (m *mockLoginProvider) VerifyTwoFactor(ctx context.Context, pendingRef, code, clientIP string) (*services.LoginResult, error) {
	if m.VerifyTwoFactorFunc != nil {
		return m.VerifyTwoFactorFunc(ctx, pendingRef, code, clientIP)
	}
	return nil, models.ErrSessionExpired
}

func (m *mockLoginProvider) Register(ctx context.Context, email, password string) (*models.Credential, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, email, password)
	}
	return nil, models.ErrInternalServer
}

func (m *mockLoginProvider) GetCredential(ctx context.Context, id string) (*models.Credential, error) {
	if m.GetCredentialFunc != nil {
		return m.GetCredentialFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

// mockTwoFactorProvider implements TwoFactorProvider with overridable behavior
type mockTwoFactorProvider struct {
	SetupFunc    func(ctx context.Context, credentialID string) (*internalauth.Enrollment, error)
	ActivateFunc func(ctx context.Context, credentialID, code string) error
	DisableFunc  func(ctx context.Context, credentialID, password string) error
}

func (m *mockTwoFactorProvider) Setup(ctx context.Context, credentialID string) (*internalauth.Enrollment, error) {
	if m.SetupFunc != nil {
		return m.SetupFunc(ctx, credentialID)
	}
	return &internalauth.Enrollment{Secret: "S", OtpauthURL: "otpauth://totp/x", QRDataURL: "data:image/png;base64,x"}, nil
}

func (m *mockTwoFactorProvider) Activate(ctx context.Context, credentialID, code string) error {
	if m.ActivateFunc != nil {
		return m.ActivateFunc(ctx, credentialID, code)
	}
	return nil
}

func (m *mockTwoFactorProvider) Disable(ctx context.Context, credentialID, password string) error {
	if m.DisableFunc != nil {
		return m.DisableFunc(ctx, credentialID, password)
	}
	return nil
}

// withClaims attaches session claims to a request, as the middleware would.
func withClaims(r *http.Request, credentialID, role string) *http.Request {
	claims := &models.TokenClaims{Purpose: models.TokenPurposeSession, Role: role}
	claims.Subject = credentialID
	ctx := context.WithValue(r.Context(), internalauth.ClaimsContextKey, claims)
	return r.WithContext(ctx)
}
