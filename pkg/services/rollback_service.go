package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/pkg/apperrors"
	"github.com/hodlisma/hodlisma-engine/pkg/database"
	"github.com/hodlisma/hodlisma-engine/pkg/logging"
	"github.com/hodlisma/hodlisma-engine/pkg/models"
	"github.com/hodlisma/hodlisma-engine/pkg/repositories"
)

// Rollback failure messages. Each failure mode has its own message so an
// operator can tell a missing row from a missing snapshot.
const (
	MsgAuditEntryNotFound = "audit log entry not found"
	MsgNoPriorData        = "no prior data to restore"
	MsgMissingEntityID    = "missing entity id"
	MsgTargetNotFound     = "target row not found"
	MsgRowChanged         = "row changed since audit entry"
)

var (
	errTargetMissing = errors.New(MsgTargetNotFound)
	errRowChanged    = fmt.Errorf("%w: %s", apperrors.ErrConflict, MsgRowChanged)
)

// RollbackResult is the outcome of one rollback request.
type RollbackResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RollbackConfig tunes rollback safety checks.
type RollbackConfig struct {
	// RequireUnchanged restores an update only while the row still holds the
	// entry's after-state. A row edited since then is reported as a conflict.
	RequireUnchanged bool
}

// RollbackService reverses a past mutation from its audit entry.
type RollbackService interface {
	Rollback(ctx context.Context, auditLogID uuid.UUID) RollbackResult
}

type rollbackService struct {
	audit  AuditService
	store  repositories.CollectionStore
	tx     database.TxRunner
	cfg    RollbackConfig
	logger *zap.Logger
}

// NewRollbackService creates a new RollbackService.
func NewRollbackService(
	audit AuditService,
	store repositories.CollectionStore,
	tx database.TxRunner,
	cfg RollbackConfig,
	logger *zap.Logger,
) RollbackService {
	if tx == nil {
		tx = database.NoTx{}
	}
	return &rollbackService{
		audit:  audit,
		store:  store,
		tx:     tx,
		cfg:    cfg,
		logger: logger.Named("rollback-service"),
	}
}

var _ RollbackService = (*rollbackService)(nil)

// Rollback deletes the row a creation entry describes, or patches the routed
// row back to the entry's before-state. Entries produced by a rollback are
// accepted too, so a rollback can itself be undone.
func (s *rollbackService) Rollback(ctx context.Context, auditLogID uuid.UUID) RollbackResult {
	entry, err := s.audit.GetByID(ctx, auditLogID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return RollbackResult{Message: MsgAuditEntryNotFound}
		}
		s.logger.Error("Failed to load audit entry",
			zap.String("audit_id", auditLogID.String()),
			zap.Error(err))
		return RollbackResult{Message: "failed to load audit entry: " + logging.SanitizeError(err)}
	}

	coll := RouteCollection(entry.Module, entry.EntityType)

	switch {
	case entry.OldData == nil && models.IsCreationAction(entry.Action) && entry.EntityID != nil:
		return s.apply(ctx, entry, coll, s.undoCreation)
	case entry.OldData == nil:
		return RollbackResult{Message: MsgNoPriorData}
	case entry.EntityID == nil:
		return RollbackResult{Message: MsgMissingEntityID}
	default:
		return s.apply(ctx, entry, coll, s.restoreSnapshot)
	}
}

type rollbackStep func(ctx context.Context, entry *models.AuditLogEntry, coll models.Collection) (string, error)

func (s *rollbackService) apply(ctx context.Context, entry *models.AuditLogEntry, coll models.Collection, step rollbackStep) RollbackResult {
	var message string
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		message, err = step(ctx, entry, coll)
		return err
	})

	fields := []zap.Field{
		zap.String("audit_id", entry.ID.String()),
		zap.String("action", entry.Action),
		zap.String("collection", coll.String()),
	}

	switch {
	case err == nil:
		s.logger.Info("Rolled back audit entry", fields...)
		return RollbackResult{Success: true, Message: message}
	case errors.Is(err, errTargetMissing):
		s.logger.Warn("Rollback target row not found", fields...)
		return RollbackResult{Message: MsgTargetNotFound}
	case errors.Is(err, errRowChanged):
		s.logger.Warn("Rollback refused, row changed since audit entry", fields...)
		return RollbackResult{Message: MsgRowChanged}
	default:
		s.logger.Error("Rollback failed", append(fields, zap.Error(err))...)
		return RollbackResult{Message: "rollback failed: " + logging.SanitizeError(err)}
	}
}

func (s *rollbackService) undoCreation(ctx context.Context, entry *models.AuditLogEntry, coll models.Collection) (string, error) {
	n, err := s.store.Delete(ctx, coll, *entry.EntityID)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", errTargetMissing
	}

	if err := s.recordRollback(ctx, entry, models.AuditActionRollbackDelete, entry.NewData.Clone(), nil); err != nil {
		return "", err
	}
	return fmt.Sprintf("Deleted %s created by %s", entry.EntityType, entry.Action), nil
}

func (s *rollbackService) restoreSnapshot(ctx context.Context, entry *models.AuditLogEntry, coll models.Collection) (string, error) {
	id := *entry.EntityID

	var expect models.Snapshot
	if s.cfg.RequireUnchanged && entry.NewData != nil {
		expect = entry.NewData
	}

	n, err := s.store.Patch(ctx, coll, id, entry.OldData, expect)
	if err != nil {
		return "", err
	}

	if n == 0 {
		switch {
		case entry.NewData == nil:
			// The entry recorded a deletion; bring the row back under its old id.
			n, err = s.store.Insert(ctx, coll, id, entry.OldData)
			if err != nil {
				return "", err
			}
			if n == 0 {
				return "", errTargetMissing
			}
		case expect != nil:
			exists, err := s.store.Exists(ctx, coll, id)
			if err != nil {
				return "", err
			}
			if exists {
				return "", errRowChanged
			}
			return "", errTargetMissing
		default:
			return "", errTargetMissing
		}
	}

	if err := s.recordRollback(ctx, entry, models.AuditActionRollback, entry.NewData.Clone(), entry.OldData.Clone()); err != nil {
		return "", err
	}
	return fmt.Sprintf("Restored %s to its state before %s", entry.EntityType, entry.Action), nil
}

// recordRollback appends the trailing entry describing the rollback itself.
func (s *rollbackService) recordRollback(ctx context.Context, entry *models.AuditLogEntry, action string, oldData, newData models.Snapshot) error {
	description := "Rolled back " + entry.Action
	if entry.Description != nil && *entry.Description != "" {
		description += ": " + *entry.Description
	}

	return recordMutation(ctx, s.audit, &models.AuditLogInput{
		Module:      entry.Module,
		Action:      action,
		EntityType:  entry.EntityType,
		EntityID:    entry.EntityID,
		OldData:     oldData,
		NewData:     newData,
		TriggeredBy: models.TriggerUserManual,
		Description: &description,
	})
}
