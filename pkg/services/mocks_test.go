package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hodlisma/hodlisma-engine/pkg/apperrors"
	"github.com/hodlisma/hodlisma-engine/pkg/database"
	"github.com/hodlisma/hodlisma-engine/pkg/models"
)

var errStorage = errors.New("connection reset by peer")

// fakeTx stands in for an open pgx transaction. Only its presence in the
// context matters to the services.
type fakeTx struct{ pgx.Tx }

// fakeTxRunner marks the context as transactional and records the outcome.
type fakeTxRunner struct {
	calls int
	err   error
}

func (r *fakeTxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.calls++
	r.err = fn(database.WithTx(ctx, fakeTx{}))
	return r.err
}

// mockAuditRepository is an in-memory AuditRepository. Entries are kept in
// insertion order; reads return them newest first.
type mockAuditRepository struct {
	entries   []*models.AuditLogEntry
	createErr error
	clock     time.Time
}

func (m *mockAuditRepository) Create(ctx context.Context, entry *models.AuditLogEntry) error {
	if m.createErr != nil {
		return m.createErr
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if m.clock.IsZero() {
		m.clock = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	m.clock = m.clock.Add(time.Second)
	entry.CreatedAt = m.clock
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditLogEntry, error) {
	for _, e := range m.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockAuditRepository) List(ctx context.Context, filter models.AuditLogFilter) ([]*models.AuditLogEntry, error) {
	var result []*models.AuditLogEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if filter.Module != nil && e.Module != *filter.Module {
			continue
		}
		result = append(result, e)
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return nil, nil
		}
		result = result[filter.Offset:]
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = models.DefaultAuditPageSize
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockAuditRepository) GetByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*models.AuditLogEntry, error) {
	var result []*models.AuditLogEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.EntityType == entityType && e.EntityID != nil && *e.EntityID == entityID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockAuditRepository) last() *models.AuditLogEntry {
	if len(m.entries) == 0 {
		return nil
	}
	return m.entries[len(m.entries)-1]
}

// storeCall records one CollectionStore invocation.
type storeCall struct {
	op   string
	coll models.Collection
	id   uuid.UUID
}

// mockCollectionStore keeps rows per collection and records every call.
type mockCollectionStore struct {
	rows  map[models.Collection]map[uuid.UUID]models.Snapshot
	calls []storeCall
	err   error
}

func newMockCollectionStore() *mockCollectionStore {
	return &mockCollectionStore{rows: make(map[models.Collection]map[uuid.UUID]models.Snapshot)}
}

func (m *mockCollectionStore) put(coll models.Collection, id uuid.UUID, row models.Snapshot) {
	if m.rows[coll] == nil {
		m.rows[coll] = make(map[uuid.UUID]models.Snapshot)
	}
	m.rows[coll][id] = row
}

func (m *mockCollectionStore) get(coll models.Collection, id uuid.UUID) models.Snapshot {
	return m.rows[coll][id]
}

func (m *mockCollectionStore) Delete(ctx context.Context, coll models.Collection, id uuid.UUID) (int64, error) {
	m.calls = append(m.calls, storeCall{op: "delete", coll: coll, id: id})
	if m.err != nil {
		return 0, m.err
	}
	if _, ok := m.rows[coll][id]; !ok {
		return 0, nil
	}
	delete(m.rows[coll], id)
	return 1, nil
}

func (m *mockCollectionStore) Patch(ctx context.Context, coll models.Collection, id uuid.UUID, patch, expect models.Snapshot) (int64, error) {
	m.calls = append(m.calls, storeCall{op: "patch", coll: coll, id: id})
	if m.err != nil {
		return 0, m.err
	}
	for k := range patch {
		if !coll.HasColumn(k) {
			return 0, apperrors.ErrUnknownField
		}
	}
	row, ok := m.rows[coll][id]
	if !ok {
		return 0, nil
	}
	for k, v := range expect {
		if row[k] != v {
			return 0, nil
		}
	}
	for k, v := range patch {
		row[k] = v
	}
	return 1, nil
}

func (m *mockCollectionStore) Insert(ctx context.Context, coll models.Collection, id uuid.UUID, values models.Snapshot) (int64, error) {
	m.calls = append(m.calls, storeCall{op: "insert", coll: coll, id: id})
	if m.err != nil {
		return 0, m.err
	}
	if _, ok := m.rows[coll][id]; ok {
		return 0, nil
	}
	m.put(coll, id, values.Clone())
	return 1, nil
}

func (m *mockCollectionStore) Exists(ctx context.Context, coll models.Collection, id uuid.UUID) (bool, error) {
	m.calls = append(m.calls, storeCall{op: "exists", coll: coll, id: id})
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.rows[coll][id]
	return ok, nil
}

func (m *mockCollectionStore) mutations() []storeCall {
	var out []storeCall
	for _, c := range m.calls {
		if c.op != "exists" {
			out = append(out, c)
		}
	}
	return out
}
