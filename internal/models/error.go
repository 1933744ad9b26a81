package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Login protocol errors. Handlers translate these to the fixed response
	// vocabulary; no other error detail crosses the HTTP boundary.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrInvalidCode        = errors.New("invalid two-factor code")
	ErrSessionExpired     = errors.New("login session expired")
)

// AccountLockedError carries how long the caller has to wait before the
// lockout window elapses. It matches ErrAccountLocked under errors.Is.
type AccountLockedError struct {
	RetryAfter time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account temporarily locked, retry after %s", e.RetryAfter)
}

func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}
