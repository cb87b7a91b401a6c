package ports

import (
	"context"
	"time"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// TokenIssuer mints and verifies signed tokens.
type TokenIssuer interface {
	// IssuePair returns a fresh access/refresh pair whose claims snapshot user.
	IssuePair(user *domain.User) (domain.TokenPair, error)
	// IssueAccess returns a fresh access token for user.
	IssueAccess(user *domain.User) (string, error)
	// Verify parses token and checks its signature, expiry and type.
	// Any failure is reported as domain.ErrTokenInvalid.
	Verify(token string, want domain.TokenType) (*domain.VerifiedToken, error)
}

// PasswordHasher hashes secrets and checks them against stored hashes.
type PasswordHasher interface {
	Hash(secret string) (string, error)
	// Compare returns domain.ErrInvalidCredentials on mismatch.
	Compare(hash, secret string) error
}

// TokenDenylist records revoked refresh tokens until they expire.
type TokenDenylist interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
