package domain

import "time"

// TokenClaims is the payload of an API bearer token
type TokenClaims struct {
	Subject   string    `json:"sub"`
	TokenID   string    `json:"jti"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// IsExpired reports whether the claims are past their expiry.
// A zero ExpiresAt never expires.
func (c *TokenClaims) IsExpired(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt)
}
