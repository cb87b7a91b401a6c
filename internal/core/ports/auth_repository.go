package ports

import (
	"context"
	"time"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// UserRepository defines the persistence operations the identity service
// relies on. Lookups return domain.ErrUserNotFound when nothing matches.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	// FindByEmail returns a single user whose email matches exactly. Email is
	// not unique; when several users share it the earliest joined one wins.
	FindByEmail(ctx context.Context, email string) (*domain.User, error)

	// Create inserts a new user. Returns domain.ErrUserExists when the
	// username is already taken.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)

	// FindOrCreateByUsername returns the user whose username equals
	// defaults.Username, inserting defaults when no such user exists. The
	// operation is atomic with respect to the unique username index; created
	// reports whether this call inserted the record.
	FindOrCreateByUsername(ctx context.Context, defaults *domain.User) (user *domain.User, created bool, err error)

	// SetCredentialIfUnusable stores passwordHash only if the user currently
	// has no usable credential. It reports whether the write took effect;
	// false means another writer set a credential first.
	SetCredentialIfUnusable(ctx context.Context, id, passwordHash string) (bool, error)

	TouchLastLogin(ctx context.Context, id string, at time.Time) error

	// Save persists the profile fields of user (email, names, last login).
	// It never writes the credential and never clears is_staff.
	Save(ctx context.Context, user *domain.User) error

	// List returns all users, most recent login first, then most recently joined.
	List(ctx context.Context) ([]*domain.User, error)
}
