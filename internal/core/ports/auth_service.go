package ports

import (
	"context"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// LoginResult is returned by both login flows.
type LoginResult struct {
	Tokens domain.TokenPair
	User   *domain.User
}

// SimpleLoginInput carries the recognised simple-login fields. Anything else
// the client sends is dropped before it reaches the service.
type SimpleLoginInput struct {
	Email string
	Role  domain.Role
	Name  string // optional display name
}

// SignupInput carries the fields for creating a credentialed account.
type SignupInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type AuthService interface {
	Login(ctx context.Context, identifier, secret string) (*LoginResult, error)
	SimpleLogin(ctx context.Context, in SimpleLoginInput) (*LoginResult, error)
	Signup(ctx context.Context, in SignupInput) (*domain.User, error)
	Me(ctx context.Context, principal domain.Principal) (*domain.User, error)
	ListUsers(ctx context.Context, principal domain.Principal) ([]*domain.User, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, refreshToken string) error
}
