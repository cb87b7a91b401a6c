package ports

import (
	"context"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// AuthEventRepository persists the authentication audit trail.
type AuthEventRepository interface {
	// InsertEvent persists an event to the auth_events audit collection.
	InsertEvent(ctx context.Context, event *domain.AuthEvent) error
}
