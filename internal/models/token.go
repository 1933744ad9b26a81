package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenPurposeSession is the only purpose that authorizes API access.
const TokenPurposeSession = "session"

// TokenClaims are the claims carried by a signed session token. Subject holds
// the credential ID; validity is determined entirely by signature and expiry,
// there is no server-side session record.
type TokenClaims struct {
	Purpose string `json:"purpose"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}
