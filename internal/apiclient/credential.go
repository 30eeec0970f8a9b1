package apiclient

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry reads the expiry claim out of a bearer token without verifying
// its signature. The client has no signing key; verification is the server's
// job. This exists so tooling can refuse an obviously stale credential before
// opening an exam session.
func TokenExpiry(token string) (time.Time, error) {
	parser := jwt.NewParser()
	claims := jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("parse token: no expiry claim")
	}
	return claims.ExpiresAt.Time, nil
}

// TokenExpired reports whether the token's expiry claim is in the past. A
// token that cannot be parsed counts as expired.
func TokenExpired(token string, now time.Time) bool {
	exp, err := TokenExpiry(token)
	if err != nil {
		return true
	}
	return !exp.After(now)
}
