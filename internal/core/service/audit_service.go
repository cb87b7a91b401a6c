package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/pkg/metrics"
)

type auditService struct {
	repo ports.AuthEventRepository
	log  zerolog.Logger
}

// NewAuditService returns an AuditService implementation.
func NewAuditService(repo ports.AuthEventRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: log}
}

// Process persists a single audit event.
func (s *auditService) Process(ctx context.Context, event domain.AuthEvent) error {
	if event.Kind == "" {
		return fmt.Errorf("process audit event: %w: missing kind", domain.ErrValidation)
	}

	if err := s.repo.InsertEvent(ctx, &event); err != nil {
		metrics.AuditEventsTotal.WithLabelValues(string(event.Kind), "error").Inc()
		return fmt.Errorf("process audit event: %w", err)
	}

	metrics.AuditEventsTotal.WithLabelValues(string(event.Kind), "stored").Inc()
	s.log.Debug().
		Str("kind", string(event.Kind)).
		Str("username", event.Username).
		Msg("audit event stored")

	return nil
}
