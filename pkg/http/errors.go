package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// ErrorResponse is the wire shape for every error the API emits.
type ErrorResponse struct {
	Error             string `json:"error"`
	Message           string `json:"message,omitempty"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, status int, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// WriteInvalidCredentials is the single source of the 401 login failure. Every
// login rejection, unknown identity or wrong password or inactive account,
// goes through here so the bodies stay byte-identical.
func WriteInvalidCredentials(w http.ResponseWriter) {
	WriteError(w, http.StatusUnauthorized, ErrorResponse{
		Error:   "INVALID_CREDENTIALS",
		Message: "invalid email or password",
	})
}

// WriteAccountLocked reports a locked account with the remaining lockout
// duration, rounded up so a client that sleeps exactly that long always
// lands past the lock.
func WriteAccountLocked(w http.ResponseWriter, retryAfter time.Duration) {
	seconds := int(retryAfter.Seconds())
	if retryAfter > time.Duration(seconds)*time.Second {
		seconds++
	}
	if seconds < 1 {
		seconds = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	WriteError(w, http.StatusLocked, ErrorResponse{
		Error:             "ACCOUNT_LOCKED",
		Message:           "account temporarily locked due to repeated failures",
		RetryAfterSeconds: seconds,
	})
}

// WriteInvalidCode reports a wrong two-factor code on a still-usable challenge.
func WriteInvalidCode(w http.ResponseWriter) {
	WriteError(w, http.StatusBadRequest, ErrorResponse{
		Error:   "INVALID_CODE",
		Message: "invalid verification code",
	})
}

// WriteSessionExpired reports a pending login that can no longer be completed:
// expired, already consumed, or out of attempts.
func WriteSessionExpired(w http.ResponseWriter) {
	WriteError(w, http.StatusGone, ErrorResponse{
		Error:   "SESSION_EXPIRED",
		Message: "login session expired, start over",
	})
}

// WriteValidationError reports a malformed request body
func WriteValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, ErrorResponse{
		Error:   "VALIDATION_ERROR",
		Message: message,
	})
}

// WriteConflict reports a uniqueness violation
func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, ErrorResponse{
		Error:   "CONFLICT",
		Message: message,
	})
}

// WriteUnauthorized reports a missing or invalid session token
func WriteUnauthorized(w http.ResponseWriter) {
	WriteError(w, http.StatusUnauthorized, ErrorResponse{
		Error:   "UNAUTHORIZED",
		Message: "authentication required",
	})
}

// WriteInternalError reports a server-side failure without leaking detail
func WriteInternalError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "INTERNAL_ERROR",
		Message: "internal server error",
	})
}

// WriteJSON writes a success response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
