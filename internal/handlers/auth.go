package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/foliumhq/folium/internal/auth"
	"github.com/foliumhq/folium/internal/models"
	"github.com/foliumhq/folium/internal/services"

	pkghttp "github.com/foliumhq/folium/pkg/http"
)

// LoginProvider is the service surface the auth handlers depend on.
type LoginProvider interface {
	Login(ctx context.Context, email, password, clientIP string) (*services.LoginResult, error)
	VerifyTwoFactor(ctx context.Context, pendingRef, code, clientIP string) (*services.LoginResult, error)
	Register(ctx context.Context, email, password string) (*models.Credential, error)
	GetCredential(ctx context.Context, id string) (*models.Credential, error)
}

// AuthHandler exposes the login protocol over HTTP.
type AuthHandler struct {
	login LoginProvider
}

func NewAuthHandler(login LoginProvider) *AuthHandler {
	return &AuthHandler{login: login}
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type VerifyTwoFactorRequest struct {
	PendingRef string `json:"pending_ref" validate:"required"`
	Code       string `json:"code" validate:"required,len=6,numeric"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse covers both outcomes of the password step. A 2FA-enabled
// login carries pending_ref instead of token; the expiry tells the client how
// long it has to finish.
type LoginResponse struct {
	Token             string              `json:"token,omitempty"`
	User              *CredentialResponse `json:"user,omitempty"`
	RequiresTwoFactor bool                `json:"requires_two_factor"`
	PendingRef        string              `json:"pending_ref,omitempty"`
	PendingExpiresAt  *time.Time          `json:"pending_expires_at,omitempty"`
}

type CredentialResponse struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Role             string    `json:"role"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	CreatedAt        time.Time `json:"created_at"`
}

func toCredentialResponse(cred *models.Credential) CredentialResponse {
	return CredentialResponse{
		ID:               cred.ID,
		Email:            cred.Email,
		Role:             cred.Role,
		TwoFactorEnabled: cred.TwoFactorEnabled,
		CreatedAt:        cred.CreatedAt,
	}
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		// A malformed login gets the same rejection as a wrong one; a
		// validation message would confirm which field was the problem.
		pkghttp.WriteInvalidCredentials(w)
		return
	}

	result, err := h.login.Login(r.Context(), req.Email, req.Password, pkghttp.ExtractClientIP(r))
	if err != nil {
		writeLoginError(w, err)
		return
	}

	resp := LoginResponse{
		Token:             result.Token,
		RequiresTwoFactor: result.RequiresTwoFactor,
		PendingRef:        result.PendingRef,
	}
	if result.RequiresTwoFactor {
		resp.PendingExpiresAt = &result.PendingExpiresAt
	} else if result.Credential != nil {
		user := toCredentialResponse(result.Credential)
		resp.User = &user
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// VerifyTwoFactor handles POST /auth/login/verify-2fa
func (h *AuthHandler) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req VerifyTwoFactorRequest
	if err := decodeAndValidate(r, &req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	result, err := h.login.VerifyTwoFactor(r.Context(), req.PendingRef, req.Code, pkghttp.ExtractClientIP(r))
	if err != nil {
		writeLoginError(w, err)
		return
	}

	resp := LoginResponse{Token: result.Token}
	if result.Credential != nil {
		user := toCredentialResponse(result.Credential)
		resp.User = &user
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeAndValidate(r, &req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	cred, err := h.login.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "email already registered")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteValidationError(w, err.Error())
		default:
			pkghttp.WriteInternalError(w)
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, toCredentialResponse(cred))
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w)
		return
	}

	cred, err := h.login.GetCredential(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteUnauthorized(w)
			return
		}
		pkghttp.WriteInternalError(w)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toCredentialResponse(cred))
}

// writeLoginError maps protocol errors onto the wire vocabulary. All three
// login failure shapes funnel through the shared writers so the bodies stay
// stable across handlers.
func writeLoginError(w http.ResponseWriter, err error) {
	var lockErr *models.AccountLockedError

	switch {
	case errors.As(err, &lockErr):
		pkghttp.WriteAccountLocked(w, lockErr.RetryAfter)
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteInvalidCredentials(w)
	case errors.Is(err, models.ErrInvalidCode):
		pkghttp.WriteInvalidCode(w)
	case errors.Is(err, models.ErrSessionExpired):
		pkghttp.WriteSessionExpired(w)
	default:
		pkghttp.WriteInternalError(w)
	}
}
