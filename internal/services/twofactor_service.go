package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/foliumhq/folium/internal/auth"
	"github.com/foliumhq/folium/internal/models"
	"github.com/foliumhq/folium/pkg/logger"

	pkgauth "github.com/foliumhq/folium/pkg/auth"
)

// Enroller provisions TOTP secrets and verifies codes during activation.
type Enroller interface {
	GenerateEnrollment(accountEmail string) (*auth.Enrollment, error)
	Verify(secret, code string, at time.Time) (bool, int64)
}

// TwoFactorService manages TOTP enrollment for an authenticated credential.
// Setup provisions a secret without enabling it; Activate proves the client
// holds a working authenticator and flips the flag; Disable removes both.
type TwoFactorService struct {
	credentials CredentialStore
	enroller    Enroller
	audit       *logger.AuditLogger
	logger      *slog.Logger
	now         func() time.Time
}

func NewTwoFactorService(credentials CredentialStore, enroller Enroller, audit *logger.AuditLogger, log *slog.Logger) *TwoFactorService {
	return &TwoFactorService{
		credentials: credentials,
		enroller:    enroller,
		audit:       audit,
		logger:      log,
		now:         time.Now,
	}
}

// Setup generates a fresh secret and stores it disabled. Running Setup again
// before activation replaces the pending secret; running it while 2FA is
// already enabled is rejected so an active factor cannot be silently swapped.
func (s *TwoFactorService) Setup(ctx context.Context, credentialID string) (*auth.Enrollment, error) {
	cred, err := s.credentials.GetByID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("credential lookup failed", "error", err, "credential_id", credentialID)
		return nil, models.ErrInternalServer
	}

	if cred.TwoFactorEnabled {
		return nil, models.ErrConflict
	}

	enrollment, err := s.enroller.GenerateEnrollment(cred.Email)
	if err != nil {
		s.logger.Error("failed to generate enrollment", "error", err, "credential_id", credentialID)
		return nil, models.ErrInternalServer
	}

	if err := s.credentials.UpdateTwoFactor(ctx, credentialID, false, enrollment.Secret); err != nil {
		s.logger.Error("failed to store pending secret", "error", err, "credential_id", credentialID)
		return nil, models.ErrInternalServer
	}

	return enrollment, nil
}

// Activate verifies a code against the pending secret and enables 2FA.
func (s *TwoFactorService) Activate(ctx context.Context, credentialID, code string) error {
	cred, err := s.credentials.GetByID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("credential lookup failed", "error", err, "credential_id", credentialID)
		return models.ErrInternalServer
	}

	if cred.TwoFactorEnabled {
		return models.ErrConflict
	}
	if cred.TwoFactorSecret == "" {
		return models.ErrBadRequest
	}

	ok, step := s.enroller.Verify(cred.TwoFactorSecret, code, s.now())
	if !ok {
		s.audit.Log(logger.AuditEvent{
			EventType:     logger.EventTwoFactorFailed,
			CredentialID:  credentialID,
			Success:       false,
			FailureReason: "activation_wrong_code",
		})
		return models.ErrInvalidCode
	}

	if err := s.credentials.UpdateTwoFactor(ctx, credentialID, true, cred.TwoFactorSecret); err != nil {
		s.logger.Error("failed to enable 2FA", "error", err, "credential_id", credentialID)
		return models.ErrInternalServer
	}

	// Burn the activation code so the first login cannot replay it.
	if _, err := s.credentials.AdvanceTOTPStep(ctx, credentialID, step); err != nil {
		s.logger.Error("failed to record activation step", "error", err, "credential_id", credentialID)
		return models.ErrInternalServer
	}

	s.audit.Log(logger.AuditEvent{
		EventType:    logger.EventTwoFactorEnabled,
		CredentialID: credentialID,
		Success:      true,
	})

	return nil
}

// Disable turns 2FA off after re-verifying the password. The secret is
// destroyed, not kept around disabled.
func (s *TwoFactorService) Disable(ctx context.Context, credentialID, password string) error {
	cred, err := s.credentials.GetByID(ctx, credentialID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("credential lookup failed", "error", err, "credential_id", credentialID)
		return models.ErrInternalServer
	}

	if !pkgauth.VerifyPassword(password, cred.PasswordHash) {
		return models.ErrUnauthorized
	}

	if !cred.TwoFactorEnabled && cred.TwoFactorSecret == "" {
		return nil
	}

	if err := s.credentials.UpdateTwoFactor(ctx, credentialID, false, ""); err != nil {
		s.logger.Error("failed to disable 2FA", "error", err, "credential_id", credentialID)
		return models.ErrInternalServer
	}

	s.audit.Log(logger.AuditEvent{
		EventType:    logger.EventTwoFactorDisabled,
		CredentialID: credentialID,
		Success:      true,
	})

	return nil
}
