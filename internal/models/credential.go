package models

import (
	"time"
)

// Roles embedded in session tokens.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleUser    = "user"
)

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleUser:
		return true
	}
	return false
}

// Credential is the persisted authentication record for one identity.
// Email is stored lowercase and is globally unique. PasswordHash never
// appears in any read path response or log line.
type Credential struct {
	ID                 string
	Email              string
	PasswordHash       string
	Role               string
	Active             bool
	FailedAttemptCount int
	LockedUntil        *time.Time // non-nil and in the future means locked
	TwoFactorEnabled   bool
	TwoFactorSecret    string // base32 TOTP secret, empty unless enrolled
	LastTOTPStep       int64  // last accepted TOTP time step, replay guard
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Locked reports whether the credential is inside an active lockout window.
func (c *Credential) Locked(now time.Time) bool {
	return c.LockedUntil != nil && now.Before(*c.LockedUntil)
}
