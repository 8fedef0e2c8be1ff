package driven

import "github.com/custodia-labs/askrichie/internal/core/domain"

// AuthAdapter handles bearer token cryptographic operations.
// Tokens are issued by the external identity provider; GenerateToken exists
// for local development and tests.
type AuthAdapter interface {
	GenerateToken(claims *domain.TokenClaims) (string, error)
	ParseToken(token string) (*domain.TokenClaims, error)
}
