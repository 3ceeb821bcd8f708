package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/custodia-labs/faqbot/internal/core/domain"
	"github.com/custodia-labs/faqbot/internal/core/ports/driven"
)

// Ensure Adapter implements AuthAdapter
var _ driven.AuthAdapter = (*Adapter)(nil)

// Issuer is stamped into every API token
const Issuer = "faqbot"

// Adapter signs and verifies HS256 API tokens
type Adapter struct {
	jwtSecret []byte
	now       func() time.Time
}

// NewAdapter creates a new auth adapter with the given JWT secret
func NewAdapter(jwtSecret string) *Adapter {
	return &Adapter{
		jwtSecret: []byte(jwtSecret),
		now:       time.Now,
	}
}

// IssueToken creates claims for subject valid for ttl and signs them.
// A ttl of zero issues a token that never expires.
func (a *Adapter) IssueToken(subject string, ttl time.Duration) (string, *domain.TokenClaims, error) {
	now := a.now().UTC().Truncate(time.Second)
	claims := &domain.TokenClaims{
		Subject:  subject,
		TokenID:  uuid.NewString(),
		IssuedAt: now,
	}
	if ttl > 0 {
		claims.ExpiresAt = now.Add(ttl)
	}

	token, err := a.GenerateToken(claims)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// GenerateToken creates a signed JWT from domain claims
func (a *Adapter) GenerateToken(claims *domain.TokenClaims) (string, error) {
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token subject is required", domain.ErrInvalidInput)
	}

	rc := jwt.RegisteredClaims{
		Issuer:   Issuer,
		Subject:  claims.Subject,
		ID:       claims.TokenID,
		IssuedAt: jwt.NewNumericDate(claims.IssuedAt),
	}
	if !claims.ExpiresAt.IsZero() {
		rc.ExpiresAt = jwt.NewNumericDate(claims.ExpiresAt)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, rc)
	return token.SignedString(a.jwtSecret)
}

// ParseToken validates a JWT and extracts domain claims.
// Expired tokens return ErrTokenExpired, anything else unusable ErrTokenInvalid.
func (a *Adapter) ParseToken(tokenString string) (*domain.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	},
		jwt.WithIssuer(Issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", domain.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}

	rc, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || rc.Subject == "" {
		return nil, fmt.Errorf("%w: invalid token claims", domain.ErrTokenInvalid)
	}

	claims := &domain.TokenClaims{
		Subject: rc.Subject,
		TokenID: rc.ID,
	}
	if rc.IssuedAt != nil {
		claims.IssuedAt = rc.IssuedAt.Time.UTC()
	}
	if rc.ExpiresAt != nil {
		claims.ExpiresAt = rc.ExpiresAt.Time.UTC()
	}
	if claims.IsExpired(a.now()) {
		return nil, fmt.Errorf("%w: token expired at %s", domain.ErrTokenExpired, claims.ExpiresAt)
	}
	return claims, nil
}
