package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/foliumhq/folium/internal/auth"
	"github.com/foliumhq/folium/internal/config"
	"github.com/foliumhq/folium/internal/models"
	"github.com/foliumhq/folium/pkg/logger"
)

// mockCredentialStore implements CredentialStore with overridable behavior
type mockCredentialStore struct {
	GetByEmailFunc              func(ctx context.Context, email string) (*models.Credential, error)
	GetByIDFunc                 func(ctx context.Context, id string) (*models.Credential, error)
	CreateFunc                  func(ctx context.Context, cred *models.Credential) (*models.Credential, error)
	IncrementFailedAttemptsFunc func(ctx context.Context, email string, maxAttempts int, lockedUntil time.Time) (*models.Credential, error)
	ResetFailedAttemptsFunc     func(ctx context.Context, id string) error
	AdvanceTOTPStepFunc         func(ctx context.Context, id string, step int64) (bool, error)
	UpdateTwoFactorFunc         func(ctx context.Context, id string, enabled bool, secret string) error
}

func (m *mockCredentialStore) GetByEmail(ctx context.Context, email string) (*models.Credential, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *mockCredentialStore) GetByID(ctx context.Context, id string) (*models.Credential, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *mockCredentialStore) Create(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, cred)
	}
	return cred, nil
}

func (m *mockCredentialStore) IncrementFailedAttempts(ctx context.Context, email string, maxAttempts int, lockedUntil time.Time) (*models.Credential, error) {
	if m.IncrementFailedAttemptsFunc != nil {
		return m.IncrementFailedAttemptsFunc(ctx, email, maxAttempts, lockedUntil)
	}
	return nil, models.ErrNotFound
}

func (m *mockCredentialStore) ResetFailedAttempts(ctx context.Context, id string) error {
	if m.ResetFailedAttemptsFunc != nil {
		return m.ResetFailedAttemptsFunc(ctx, id)
	}
	return nil
}

func (m *mockCredentialStore) AdvanceTOTPStep(ctx context.Context, id string, step int64) (bool, error) {
	if m.AdvanceTOTPStepFunc != nil {
		return m.AdvanceTOTPStepFunc(ctx, id, step)
	}
	return true, nil
}

func (m *mockCredentialStore) UpdateTwoFactor(ctx context.Context, id string, enabled bool, secret string) error {
	if m.UpdateTwoFactorFunc != nil {
		return m.UpdateTwoFactorFunc(ctx, id, enabled, secret)
	}
	return nil
}

// mockChallengeStore implements ChallengeStore with overridable behavior
type mockChallengeStore struct {
	CreateFunc        func(ctx context.Context, challenge *models.LoginChallenge) error
	GetByRefHashFunc  func(ctx context.Context, refHash string) (*models.LoginChallenge, error)
	ConsumeFunc       func(ctx context.Context, id string) (bool, error)
	RecordFailureFunc func(ctx context.Context, id string, maxAttempts int) (bool, error)
}

func (m *mockChallengeStore) Create(ctx context.Context, challenge *models.LoginChallenge) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, challenge)
	}
	return nil
}

func (m *mockChallengeStore) GetByRefHash(ctx context.Context, refHash string) (*models.LoginChallenge, error) {
	if m.GetByRefHashFunc != nil {
		return m.GetByRefHashFunc(ctx, refHash)
	}
	return nil, models.ErrNotFound
}

func (m *mockChallengeStore) Consume(ctx context.Context, id string) (bool, error) {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, id)
	}
	return true, nil
}

func (m *mockChallengeStore) RecordFailure(ctx context.Context, id string, maxAttempts int) (bool, error) {
	if m.RecordFailureFunc != nil {
		return m.RecordFailureFunc(ctx, id, maxAttempts)
	}
	return false, nil
}

// mockTokenIssuer returns a fixed token unless overridden
type mockTokenIssuer struct {
	IssueSessionFunc func(credentialID, role string) (string, error)
}

func (m *mockTokenIssuer) IssueSession(credentialID, role string) (string, error) {
	if m.IssueSessionFunc != nil {
		return m.IssueSessionFunc(credentialID, role)
	}
	return "test-session-token", nil
}

// mockCodeVerifier accepts a single configured code
type mockCodeVerifier struct {
	VerifyFunc func(secret, code string, at time.Time) (bool, int64)
}

func (m *mockCodeVerifier) Verify(secret, code string, at time.Time) (bool, int64) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(secret, code, at)
	}
	return false, 0
}

func (m *mockCodeVerifier) GenerateEnrollment(accountEmail string) (*auth.Enrollment, error) {
	return &auth.Enrollment{
		Secret:     "TESTSECRET",
		OtpauthURL: "otpauth://totp/test",
		QRDataURL:  "data:image/png;base64,dGVzdA==",
	}, nil
}

// noDelay skips the failure-path timing pad in tests
type noDelay struct{}

func (noDelay) Wait() {}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:           "test-secret-at-least-16",
		SessionTokenExpiry:  7 * 24 * time.Hour,
		MaxFailedAttempts:   5,
		LockoutWindow:       time.Hour,
		PendingExpiry:       5 * time.Minute,
		MaxTwoFactorRetries: 5,
		TOTPIssuer:          "Folium",
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLoginService(creds *mockCredentialStore, challenges *mockChallengeStore, tokens *mockTokenIssuer, codes *mockCodeVerifier) *LoginService {
	log := testLogger()
	return NewLoginService(creds, challenges, tokens, codes, noDelay{}, logger.NewAuditLogger(log), log, testAuthConfig())
}
