package models

import "time"

// LoginChallenge is the pending-2FA marker: proof that password verification
// succeeded for a credential, waiting for a TOTP code. The client holds the
// random ref; only its SHA-256 hash is stored. A challenge alone never
// authorizes access to anything.
type LoginChallenge struct {
	ID           string
	CredentialID string
	RefHash      string
	Attempts     int
	ExpiresAt    time.Time
	ConsumedAt   *time.Time
	CreatedAt    time.Time
}

// Usable reports whether the challenge can still be redeemed. An expired or
// consumed challenge is treated exactly like a missing one.
func (c *LoginChallenge) Usable(now time.Time) bool {
	return c.ConsumedAt == nil && now.Before(c.ExpiresAt)
}
