package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/foliumhq/folium/internal/config"
	"github.com/foliumhq/folium/internal/models"
	"github.com/google/uuid"

	pkgauth "github.com/foliumhq/folium/pkg/auth"
	"github.com/foliumhq/folium/pkg/logger"
)

// CredentialStore is the persistence port the login protocol runs against.
// failed_attempt_count and locked_until are mutated only through the two
// atomic operations here; the service never does read-modify-write on them.
type CredentialStore interface {
	GetByEmail(ctx context.Context, email string) (*models.Credential, error)
	GetByID(ctx context.Context, id string) (*models.Credential, error)
	Create(ctx context.Context, cred *models.Credential) (*models.Credential, error)
	IncrementFailedAttempts(ctx context.Context, email string, maxAttempts int, lockedUntil time.Time) (*models.Credential, error)
	ResetFailedAttempts(ctx context.Context, id string) error
	AdvanceTOTPStep(ctx context.Context, id string, step int64) (bool, error)
	UpdateTwoFactor(ctx context.Context, id string, enabled bool, secret string) error
}

// ChallengeStore persists pending-2FA markers between the password step and
// the code step.
type ChallengeStore interface {
	Create(ctx context.Context, challenge *models.LoginChallenge) error
	GetByRefHash(ctx context.Context, refHash string) (*models.LoginChallenge, error)
	Consume(ctx context.Context, id string) (bool, error)
	RecordFailure(ctx context.Context, id string, maxAttempts int) (bool, error)
}

// TokenIssuer mints session tokens once a login fully completes.
type TokenIssuer interface {
	IssueSession(credentialID, role string) (string, error)
}

// CodeVerifier checks a TOTP code and reports the matched time step.
type CodeVerifier interface {
	Verify(secret, code string, at time.Time) (bool, int64)
}

// FailureDelayer pads failure responses against timing probes.
type FailureDelayer interface {
	Wait()
}

// LoginResult is the outcome of a successful password step. Exactly one of
// Token or PendingRef is set: a full token when no second factor is required,
// otherwise an opaque ref the client must echo back with a code.
type LoginResult struct {
	RequiresTwoFactor bool
	Token             string
	PendingRef        string
	PendingExpiresAt  time.Time
	Credential        *models.Credential
}

// LoginService drives the login protocol: password verification, lockout
// policy, the pending-2FA handoff, and final token issuance.
type LoginService struct {
	credentials CredentialStore
	challenges  ChallengeStore
	tokens      TokenIssuer
	codes       CodeVerifier
	delay       FailureDelayer
	audit       *logger.AuditLogger
	logger      *slog.Logger
	cfg         config.AuthConfig
	now         func() time.Time
}

func NewLoginService(
	credentials CredentialStore,
	challenges ChallengeStore,
	tokens TokenIssuer,
	codes CodeVerifier,
	delay FailureDelayer,
	audit *logger.AuditLogger,
	log *slog.Logger,
	cfg config.AuthConfig,
) *LoginService {
	return &LoginService{
		credentials: credentials,
		challenges:  challenges,
		tokens:      tokens,
		codes:       codes,
		delay:       delay,
		audit:       audit,
		logger:      log,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Login runs the password step of the protocol.
//
// The lockout check happens before the password is verified: a locked account
// rejects immediately without touching the hash, so probing a locked account
// neither extends the lock nor reveals whether the password was right.
// Unknown identity, wrong password, and inactive account all collapse into
// models.ErrInvalidCredentials.
func (s *LoginService) Login(ctx context.Context, email, password, clientIP string) (*LoginResult, error) {
	email = normalizeEmail(email)
	now := s.now()

	cred, err := s.credentials.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.auditFailure(logger.EventLoginFailed, "", clientIP, "unknown_identity")
			s.delay.Wait()
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("credential lookup failed", "error", err, "email", logger.SanitizedEmail(email))
		return nil, models.ErrInternalServer
	}

	// An inactive account answers exactly like a wrong password; the failure
	// delay pads the skipped hash work.
	if !cred.Active {
		s.auditFailure(logger.EventLoginFailed, cred.ID, clientIP, "inactive")
		s.delay.Wait()
		return nil, models.ErrInvalidCredentials
	}

	if cred.Locked(now) {
		s.auditFailure(logger.EventAccountLocked, cred.ID, clientIP, "locked")
		return nil, &models.AccountLockedError{RetryAfter: cred.LockedUntil.Sub(now)}
	}

	if !pkgauth.VerifyPassword(password, cred.PasswordHash) {
		if _, incErr := s.credentials.IncrementFailedAttempts(ctx, email, s.cfg.MaxFailedAttempts, now.Add(s.cfg.LockoutWindow)); incErr != nil {
			s.logger.Error("failed to record login failure", "error", incErr, "credential_id", cred.ID)
			return nil, models.ErrInternalServer
		}
		s.auditFailure(logger.EventLoginFailed, cred.ID, clientIP, "wrong_password")
		s.delay.Wait()
		return nil, models.ErrInvalidCredentials
	}

	if cred.TwoFactorEnabled {
		return s.beginTwoFactor(ctx, cred, clientIP, now)
	}

	return s.completeLogin(ctx, cred, clientIP)
}

// VerifyTwoFactor runs the code step. The ref identifies the pending login;
// a missing, expired, consumed, or attempt-exhausted challenge all report
// models.ErrSessionExpired, sending the client back to the password step.
func (s *LoginService) VerifyTwoFactor(ctx context.Context, pendingRef, code, clientIP string) (*LoginResult, error) {
	now := s.now()

	challenge, err := s.challenges.GetByRefHash(ctx, hashRef(pendingRef))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.auditFailure(logger.EventChallengeExpired, "", clientIP, "unknown_ref")
			s.delay.Wait()
			return nil, models.ErrSessionExpired
		}
		s.logger.Error("challenge lookup failed", "error", err)
		return nil, models.ErrInternalServer
	}

	if !challenge.Usable(now) {
		s.auditFailure(logger.EventChallengeExpired, challenge.CredentialID, clientIP, "expired_or_consumed")
		s.delay.Wait()
		return nil, models.ErrSessionExpired
	}

	cred, err := s.credentials.GetByID(ctx, challenge.CredentialID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrSessionExpired
		}
		s.logger.Error("credential lookup failed", "error", err, "credential_id", challenge.CredentialID)
		return nil, models.ErrInternalServer
	}

	if !cred.TwoFactorEnabled || cred.TwoFactorSecret == "" {
		// 2FA was disabled between the two steps; the challenge is dead.
		return nil, models.ErrSessionExpired
	}

	ok, step := s.codes.Verify(cred.TwoFactorSecret, code, now)
	if !ok {
		exceeded, recErr := s.challenges.RecordFailure(ctx, challenge.ID, s.cfg.MaxTwoFactorRetries)
		if recErr != nil && !errors.Is(recErr, models.ErrNotFound) {
			s.logger.Error("failed to record code failure", "error", recErr, "challenge_id", challenge.ID)
			return nil, models.ErrInternalServer
		}
		s.auditFailure(logger.EventTwoFactorFailed, cred.ID, clientIP, "wrong_code")
		s.delay.Wait()
		if exceeded {
			return nil, models.ErrSessionExpired
		}
		return nil, models.ErrInvalidCode
	}

	// A code only counts once. Advancing the stored step atomically rejects
	// replays of this code and of any older still-in-window code.
	advanced, err := s.credentials.AdvanceTOTPStep(ctx, cred.ID, step)
	if err != nil {
		s.logger.Error("failed to advance TOTP step", "error", err, "credential_id", cred.ID)
		return nil, models.ErrInternalServer
	}
	if !advanced {
		s.auditFailure(logger.EventTwoFactorFailed, cred.ID, clientIP, "code_replayed")
		s.delay.Wait()
		return nil, models.ErrInvalidCode
	}

	consumed, err := s.challenges.Consume(ctx, challenge.ID)
	if err != nil {
		s.logger.Error("failed to consume challenge", "error", err, "challenge_id", challenge.ID)
		return nil, models.ErrInternalServer
	}
	if !consumed {
		// Lost the race to a concurrent verification of the same ref.
		return nil, models.ErrSessionExpired
	}

	return s.completeLogin(ctx, cred, clientIP)
}

// Register creates a new credential with a hashed password.
func (s *LoginService) Register(ctx context.Context, email, password string) (*models.Credential, error) {
	email = normalizeEmail(email)

	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrBadRequest, err.Error())
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		return nil, models.ErrInternalServer
	}

	cred, err := s.credentials.Create(ctx, &models.Credential{
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleUser,
		Active:       true,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create credential", "error", err)
		return nil, models.ErrInternalServer
	}

	s.audit.Log(logger.AuditEvent{
		EventType:    logger.EventRegistered,
		CredentialID: cred.ID,
		Success:      true,
	})

	return cred, nil
}

// GetCredential fetches a credential by ID for the authenticated surface.
func (s *LoginService) GetCredential(ctx context.Context, id string) (*models.Credential, error) {
	cred, err := s.credentials.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("credential lookup failed", "error", err, "credential_id", id)
		return nil, models.ErrInternalServer
	}
	return cred, nil
}

// beginTwoFactor parks a password-verified login behind a challenge. The
// client receives the raw ref; only its hash is stored, so a leaked challenge
// table cannot complete anyone's login.
func (s *LoginService) beginTwoFactor(ctx context.Context, cred *models.Credential, clientIP string, now time.Time) (*LoginResult, error) {
	ref, err := generateRef()
	if err != nil {
		s.logger.Error("failed to generate challenge ref", "error", err)
		return nil, models.ErrInternalServer
	}

	expiresAt := now.Add(s.cfg.PendingExpiry)
	challenge := &models.LoginChallenge{
		ID:           uuid.New().String(),
		CredentialID: cred.ID,
		RefHash:      hashRef(ref),
		ExpiresAt:    expiresAt,
	}

	if err := s.challenges.Create(ctx, challenge); err != nil {
		s.logger.Error("failed to create challenge", "error", err, "credential_id", cred.ID)
		return nil, models.ErrInternalServer
	}

	s.audit.Log(logger.AuditEvent{
		EventType:    logger.EventTwoFactorRequired,
		CredentialID: cred.ID,
		IPAddress:    clientIP,
		Success:      true,
	})

	return &LoginResult{
		RequiresTwoFactor: true,
		PendingRef:        ref,
		PendingExpiresAt:  expiresAt,
		Credential:        cred,
	}, nil
}

// completeLogin is the single exit for both protocol paths: reset the lockout
// counters, mint the session token, audit.
func (s *LoginService) completeLogin(ctx context.Context, cred *models.Credential, clientIP string) (*LoginResult, error) {
	if err := s.credentials.ResetFailedAttempts(ctx, cred.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to reset attempt counter", "error", err, "credential_id", cred.ID)
		return nil, models.ErrInternalServer
	}

	token, err := s.tokens.IssueSession(cred.ID, cred.Role)
	if err != nil {
		s.logger.Error("failed to issue session token", "error", err, "credential_id", cred.ID)
		return nil, models.ErrInternalServer
	}

	event := logger.EventLoginSuccess
	if cred.TwoFactorEnabled {
		event = logger.EventTwoFactorSuccess
	}
	s.audit.Log(logger.AuditEvent{
		EventType:    event,
		CredentialID: cred.ID,
		IPAddress:    clientIP,
		Success:      true,
	})

	return &LoginResult{Token: token, Credential: cred}, nil
}

func (s *LoginService) auditFailure(eventType, credentialID, clientIP, reason string) {
	s.audit.Log(logger.AuditEvent{
		EventType:     eventType,
		CredentialID:  credentialID,
		IPAddress:     clientIP,
		Success:       false,
		FailureReason: reason,
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// generateRef returns 256 bits of randomness, URL-safe encoded.
func generateRef() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// hashRef maps a raw ref to its storage form.
func hashRef(ref string) string {
	sum := sha256.Sum256([]byte(ref))
	return hex.EncodeToString(sum[:])
}
