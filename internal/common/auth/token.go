// Package auth checks the signed-in user's token before protected calls.
// Signatures are verified by the auth service, never locally.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the subset of the auth service's claims the client reads.
type TokenClaims struct {
	Subject   string
	Role      string
	UserID    int64
	ExpiresAt *time.Time
}

// ParseClaims decodes a JWT without verifying its signature.
func ParseClaims(token string) (*TokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	out := &TokenClaims{}
	out.Subject, _ = claims.GetSubject()
	if role, ok := claims["role"].(string); ok {
		out.Role = role
	}
	switch id := claims["user_id"].(type) {
	case float64:
		out.UserID = int64(id)
	case string:
		_, _ = fmt.Sscan(id, &out.UserID)
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		out.ExpiresAt = &t
	}
	return out, nil
}

// TokenExpired reports whether token carries an exp claim at or before now.
// Opaque or unparsable tokens are left to the server to judge.
func TokenExpired(token string, now time.Time) bool {
	claims, err := ParseClaims(token)
	if err != nil || claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(*claims.ExpiresAt)
}
