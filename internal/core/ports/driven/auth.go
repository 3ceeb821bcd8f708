package driven

import "github.com/custodia-labs/faqbot/internal/core/domain"

// AuthAdapter handles API token cryptographic operations.
// Tokens are stateless; nothing is persisted.
type AuthAdapter interface {
	GenerateToken(claims *domain.TokenClaims) (string, error)
	ParseToken(token string) (*domain.TokenClaims, error)
}
