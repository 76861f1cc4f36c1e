package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hodlisma/hodlisma-engine/pkg/apperrors"
	"github.com/hodlisma/hodlisma-engine/pkg/database"
	"github.com/hodlisma/hodlisma-engine/pkg/models"
)

// AuditRepository provides data access for the append-only audit log.
type AuditRepository interface {
	// Create inserts a new audit log entry. ID and CreatedAt are assigned here.
	Create(ctx context.Context, entry *models.AuditLogEntry) error

	// GetByID returns one entry, or apperrors.ErrNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLogEntry, error)

	// List returns entries newest first, optionally filtered by module.
	List(ctx context.Context, filter models.AuditLogFilter) ([]*models.AuditLogEntry, error)

	// GetByEntity returns all entries for one entity, newest first.
	GetByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*models.AuditLogEntry, error)
}

type auditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *database.DB) AuditRepository {
	return &auditRepository{db: db}
}

var _ AuditRepository = (*auditRepository)(nil)

const auditLogColumns = `id, module, action, entity_type, entity_id, old_data, new_data, triggered_by, description, created_at`

func (r *auditRepository) Create(ctx context.Context, entry *models.AuditLogEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	oldJSON, err := marshalSnapshot(entry.OldData)
	if err != nil {
		return fmt.Errorf("failed to marshal old_data: %w", err)
	}
	newJSON, err := marshalSnapshot(entry.NewData)
	if err != nil {
		return fmt.Errorf("failed to marshal new_data: %w", err)
	}

	query := `
		INSERT INTO audit_logs (
			id, module, action, entity_type, entity_id, old_data, new_data, triggered_by, description
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`

	err = r.db.Conn(ctx).QueryRow(ctx, query,
		entry.ID,
		string(entry.Module),
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		oldJSON,
		newJSON,
		string(entry.TriggeredBy),
		entry.Description,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create audit log entry: %w", err)
	}

	return nil
}

func (r *auditRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLogEntry, error) {
	query := `SELECT ` + auditLogColumns + ` FROM audit_logs WHERE id = $1`

	entry, err := scanAuditLogEntry(r.db.Conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return entry, nil
}

func (r *auditRepository) List(ctx context.Context, filter models.AuditLogFilter) ([]*models.AuditLogEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = models.DefaultAuditPageSize
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var module *string
	if filter.Module != nil {
		m := string(*filter.Module)
		module = &m
	}

	query := `
		SELECT ` + auditLogColumns + `
		FROM audit_logs
		WHERE ($1::text IS NULL OR module = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Conn(ctx).Query(ctx, query, module, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	return collectAuditLogEntries(rows)
}

func (r *auditRepository) GetByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*models.AuditLogEntry, error) {
	query := `
		SELECT ` + auditLogColumns + `
		FROM audit_logs
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Conn(ctx).Query(ctx, query, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log by entity: %w", err)
	}
	return collectAuditLogEntries(rows)
}

func collectAuditLogEntries(rows pgx.Rows) ([]*models.AuditLogEntry, error) {
	defer rows.Close()

	entries := make([]*models.AuditLogEntry, 0)
	for rows.Next() {
		entry, err := scanAuditLogEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log entries: %w", err)
	}

	return entries, nil
}

func scanAuditLogEntry(row pgx.Row) (*models.AuditLogEntry, error) {
	var entry models.AuditLogEntry
	var module, trigger string
	var oldJSON, newJSON []byte
	var createdAt time.Time

	err := row.Scan(
		&entry.ID,
		&module,
		&entry.Action,
		&entry.EntityType,
		&entry.EntityID,
		&oldJSON,
		&newJSON,
		&trigger,
		&entry.Description,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan audit log entry: %w", err)
	}

	entry.Module = models.AuditModule(module)
	entry.TriggeredBy = models.AuditTrigger(trigger)
	entry.CreatedAt = createdAt

	if entry.OldData, err = unmarshalSnapshot(oldJSON); err != nil {
		return nil, fmt.Errorf("failed to unmarshal old_data: %w", err)
	}
	if entry.NewData, err = unmarshalSnapshot(newJSON); err != nil {
		return nil, fmt.Errorf("failed to unmarshal new_data: %w", err)
	}

	return &entry, nil
}

// marshalSnapshot encodes a snapshot for a JSONB column; nil stays SQL NULL.
func marshalSnapshot(s models.Snapshot) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func unmarshalSnapshot(data []byte) (models.Snapshot, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var s models.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s, nil
}
