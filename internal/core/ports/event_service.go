package ports

import (
	"context"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// AuditService processes authentication audit events.
type AuditService interface {
	Process(ctx context.Context, event domain.AuthEvent) error
}

// ActivityRecorder accepts audit events without blocking the caller.
type ActivityRecorder interface {
	Record(event domain.AuthEvent)
}
