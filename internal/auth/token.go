package auth

import (
	"fmt"
	"time"

	"github.com/foliumhq/folium/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenManager mints and verifies signed session tokens. The signing key is
// loaded once at startup; rotating it invalidates every outstanding token,
// which is the accepted failure mode since no revocation list exists.
type TokenManager struct {
	secret        []byte
	sessionExpiry time.Duration
}

func NewTokenManager(secret string, sessionExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:        []byte(secret),
		sessionExpiry: sessionExpiry,
	}
}

// IssueSession creates a session token bound to a credential and its role.
func (tm *TokenManager) IssueSession(credentialID, role string) (string, error) {
	now := time.Now()

	claims := &models.TokenClaims{
		Purpose: models.TokenPurposeSession,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   credentialID,
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.sessionExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return tokenString, nil
}

// Verify checks signature and expiry and returns the claims. Fails closed:
// any parse, signature, or expiry problem yields an error, never partial
// claims.
func (tm *TokenManager) Verify(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.Purpose != models.TokenPurposeSession {
		return nil, models.ErrUnauthorized
	}
	if claims.Subject == "" {
		return nil, models.ErrUnauthorized
	}

	return claims, nil
}
