package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/pkg/apperrors"
	"github.com/hodlisma/hodlisma-engine/pkg/database"
	"github.com/hodlisma/hodlisma-engine/pkg/models"
	"github.com/hodlisma/hodlisma-engine/pkg/repositories"
)

// AuditService records mutations and serves the activity history.
// Record is best-effort: a failed audit write is logged and reported through
// the returned flag, never as an error on the mutation path.
type AuditService interface {
	// Record appends an entry and returns its id. ok is false when the entry
	// was rejected or could not be stored.
	Record(ctx context.Context, input *models.AuditLogInput) (id uuid.UUID, ok bool)

	// ListRecent returns entries newest first, optionally filtered by module.
	ListRecent(ctx context.Context, filter models.AuditLogFilter) ([]*models.AuditLogEntry, error)

	// History returns all entries for one entity, newest first.
	History(ctx context.Context, entityType string, entityID uuid.UUID) ([]*models.AuditLogEntry, error)

	// GetByID returns one entry, or apperrors.ErrNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLogEntry, error)
}

type auditService struct {
	repo   repositories.AuditRepository
	logger *zap.Logger
}

// NewAuditService creates a new AuditService.
func NewAuditService(repo repositories.AuditRepository, logger *zap.Logger) AuditService {
	return &auditService{
		repo:   repo,
		logger: logger.Named("audit-service"),
	}
}

var _ AuditService = (*auditService)(nil)

func (s *auditService) Record(ctx context.Context, input *models.AuditLogInput) (uuid.UUID, bool) {
	if input == nil {
		s.logger.Error("Refusing to record nil audit input")
		return uuid.Nil, false
	}

	trigger := input.TriggeredBy
	if trigger == "" {
		trigger = models.TriggerFromContext(ctx)
	}

	fields := []zap.Field{
		zap.String("module", string(input.Module)),
		zap.String("action", input.Action),
		zap.String("entity_type", input.EntityType),
	}
	if input.EntityID != nil {
		fields = append(fields, zap.String("entity_id", input.EntityID.String()))
	}

	if !input.Module.IsValid() {
		s.logger.Error("Rejected audit entry with unknown module", fields...)
		return uuid.Nil, false
	}
	if !trigger.IsValid() {
		s.logger.Error("Rejected audit entry with unknown trigger",
			append(fields, zap.String("triggered_by", string(trigger)))...)
		return uuid.Nil, false
	}

	entry := &models.AuditLogEntry{
		Module:      input.Module,
		Action:      input.Action,
		EntityType:  input.EntityType,
		EntityID:    input.EntityID,
		OldData:     input.OldData,
		NewData:     input.NewData,
		TriggeredBy: trigger,
		Description: input.Description,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to create audit log entry", append(fields, zap.Error(err))...)
		return uuid.Nil, false
	}

	s.logger.Debug("Recorded audit entry", append(fields, zap.String("audit_id", entry.ID.String()))...)
	return entry.ID, true
}

func (s *auditService) ListRecent(ctx context.Context, filter models.AuditLogFilter) ([]*models.AuditLogEntry, error) {
	if filter.Module != nil && !filter.Module.IsValid() {
		return nil, fmt.Errorf("%w: unknown audit module %q", apperrors.ErrInvalidInput, *filter.Module)
	}
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list audit log: %w", err)
	}
	return entries, nil
}

func (s *auditService) History(ctx context.Context, entityType string, entityID uuid.UUID) ([]*models.AuditLogEntry, error) {
	entries, err := s.repo.GetByEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("get entity audit history: %w", err)
	}
	return entries, nil
}

func (s *auditService) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLogEntry, error) {
	return s.repo.GetByID(ctx, id)
}

// errAuditNotSaved aborts a transactional mutation whose audit entry failed.
var errAuditNotSaved = errors.New("audit entry could not be recorded")

// recordMutation records input after a successful write. Outside a transaction
// the write is best-effort; inside one a failed write is returned so the
// mutation rolls back with it.
func recordMutation(ctx context.Context, audit AuditService, input *models.AuditLogInput) error {
	if _, ok := audit.Record(ctx, input); !ok {
		if _, inTx := database.GetTx(ctx); inTx {
			return errAuditNotSaved
		}
	}
	return nil
}
