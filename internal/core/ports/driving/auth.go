package driving

import (
	"context"

	"github.com/custodia-labs/askrichie/internal/core/domain"
)

// AuthService resolves bearer tokens to users
type AuthService interface {
	// ValidateToken validates a JWT token and returns the auth context
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)
}
