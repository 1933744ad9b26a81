package handlers

import (
	"context"
	"errors"
	"net/http"

	internalauth "github.com/foliumhq/folium/internal/auth"
	"github.com/foliumhq/folium/internal/models"

	pkghttp "github.com/foliumhq/folium/pkg/http"
)

// TwoFactorProvider is the service surface the enrollment handlers depend on.
type TwoFactorProvider interface {
	Setup(ctx context.Context, credentialID string) (*internalauth.Enrollment, error)
	Activate(ctx context.Context, credentialID, code string) error
	Disable(ctx context.Context, credentialID, password string) error
}

// TwoFactorHandler exposes TOTP enrollment for authenticated credentials.
type TwoFactorHandler struct {
	twoFactor TwoFactorProvider
}

func NewTwoFactorHandler(twoFactor TwoFactorProvider) *TwoFactorHandler {
	return &TwoFactorHandler{twoFactor: twoFactor}
}

type ActivateTwoFactorRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

type DisableTwoFactorRequest struct {
	Password string `json:"password" validate:"required"`
}

type SetupTwoFactorResponse struct {
	Secret     string `json:"secret"`
	OtpauthURL string `json:"otpauth_url"`
	QRCode     string `json:"qr_code"`
}

// Setup handles POST /auth/2fa/setup
func (h *TwoFactorHandler) Setup(w http.ResponseWriter, r *http.Request) {
	claims := internalauth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w)
		return
	}

	enrollment, err := h.twoFactor.Setup(r.Context(), claims.Subject)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "two-factor authentication is already enabled")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteUnauthorized(w)
		default:
			pkghttp.WriteInternalError(w)
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, SetupTwoFactorResponse{
		Secret:     enrollment.Secret,
		OtpauthURL: enrollment.OtpauthURL,
		QRCode:     enrollment.QRDataURL,
	})
}

// Activate handles POST /auth/2fa/activate
func (h *TwoFactorHandler) Activate(w http.ResponseWriter, r *http.Request) {
	claims := internalauth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w)
		return
	}

	var req ActivateTwoFactorRequest
	if err := decodeAndValidate(r, &req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	if err := h.twoFactor.Activate(r.Context(), claims.Subject, req.Code); err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidCode):
			pkghttp.WriteInvalidCode(w)
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "two-factor authentication is already enabled")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteValidationError(w, "no pending two-factor setup")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteUnauthorized(w)
		default:
			pkghttp.WriteInternalError(w)
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]bool{"two_factor_enabled": true})
}

// Disable handles POST /auth/2fa/disable
func (h *TwoFactorHandler) Disable(w http.ResponseWriter, r *http.Request) {
	claims := internalauth.GetClaimsFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w)
		return
	}

	var req DisableTwoFactorRequest
	if err := decodeAndValidate(r, &req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	if err := h.twoFactor.Disable(r.Context(), claims.Subject, req.Password); err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteError(w, http.StatusUnauthorized, pkghttp.ErrorResponse{
				Error:   "UNAUTHORIZED",
				Message: "password verification failed",
			})
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteUnauthorized(w)
		default:
			pkghttp.WriteInternalError(w)
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]bool{"two_factor_enabled": false})
}
