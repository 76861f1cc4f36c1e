package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hodlisma/hodlisma-engine/pkg/apperrors"
	"github.com/hodlisma/hodlisma-engine/pkg/database"
	"github.com/hodlisma/hodlisma-engine/pkg/models"
)

// CollectionStore is the narrow, table-agnostic write surface the rollback
// engine replays snapshots through. Every method returns the number of rows
// affected so callers can tell a missing row from a successful write.
type CollectionStore interface {
	// Delete removes the row with the given id.
	Delete(ctx context.Context, coll models.Collection, id uuid.UUID) (int64, error)

	// Patch overwrites exactly the fields in patch on the row with the given id.
	// When expect is non-nil the row is only written if every field in expect
	// still holds the expected value.
	Patch(ctx context.Context, coll models.Collection, id uuid.UUID, patch, expect models.Snapshot) (int64, error)

	// Insert creates a row with the given id from values. Existing rows are left untouched.
	Insert(ctx context.Context, coll models.Collection, id uuid.UUID, values models.Snapshot) (int64, error)

	// Exists reports whether a row with the given id is present.
	Exists(ctx context.Context, coll models.Collection, id uuid.UUID) (bool, error)
}

type collectionStore struct {
	db *database.DB
}

// NewCollectionStore creates a CollectionStore backed by Postgres.
func NewCollectionStore(db *database.DB) CollectionStore {
	return &collectionStore{db: db}
}

var _ CollectionStore = (*collectionStore)(nil)

func (s *collectionStore) Delete(ctx context.Context, coll models.Collection, id uuid.UUID) (int64, error) {
	if err := checkCollection(coll); err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, pgx.Identifier{coll.String()}.Sanitize())
	tag, err := s.db.Conn(ctx).Exec(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", coll, err)
	}
	return tag.RowsAffected(), nil
}

func (s *collectionStore) Patch(ctx context.Context, coll models.Collection, id uuid.UUID, patch, expect models.Snapshot) (int64, error) {
	if err := checkCollection(coll); err != nil {
		return 0, err
	}
	if len(patch) == 0 {
		return 0, fmt.Errorf("%w: empty patch", apperrors.ErrInvalidInput)
	}

	query, args, err := buildPatchQuery(coll, id, patch, expect)
	if err != nil {
		return 0, err
	}

	tag, err := s.db.Conn(ctx).Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update %s: %w", coll, err)
	}
	return tag.RowsAffected(), nil
}

func (s *collectionStore) Insert(ctx context.Context, coll models.Collection, id uuid.UUID, values models.Snapshot) (int64, error) {
	if err := checkCollection(coll); err != nil {
		return 0, err
	}

	query, args, err := buildInsertQuery(coll, id, values)
	if err != nil {
		return 0, err
	}

	tag, err := s.db.Conn(ctx).Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", coll, err)
	}
	return tag.RowsAffected(), nil
}

func (s *collectionStore) Exists(ctx context.Context, coll models.Collection, id uuid.UUID) (bool, error) {
	if err := checkCollection(coll); err != nil {
		return false, err
	}

	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, pgx.Identifier{coll.String()}.Sanitize())
	var exists bool
	if err := s.db.Conn(ctx).QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check %s row: %w", coll, err)
	}
	return exists, nil
}

func checkCollection(coll models.Collection) error {
	if len(coll.Columns()) == 0 {
		return fmt.Errorf("%w: unknown collection %q", apperrors.ErrInvalidInput, coll)
	}
	return nil
}

// sortedColumns validates snapshot keys against the collection whitelist and
// returns them in a stable order so generated SQL is deterministic.
func sortedColumns(coll models.Collection, s models.Snapshot) ([]string, error) {
	cols := make([]string, 0, len(s))
	for k := range s {
		if !coll.HasColumn(k) {
			return nil, fmt.Errorf("%w: %q is not a column of %s", apperrors.ErrUnknownField, k, coll)
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols, nil
}

func buildPatchQuery(coll models.Collection, id uuid.UUID, patch, expect models.Snapshot) (string, []any, error) {
	setCols, err := sortedColumns(coll, patch)
	if err != nil {
		return "", nil, err
	}
	expectCols, err := sortedColumns(coll, expect)
	if err != nil {
		return "", nil, err
	}

	args := []any{id}
	sets := make([]string, 0, len(setCols))
	for _, col := range setCols {
		args = append(args, patch[col])
		sets = append(sets, fmt.Sprintf("%s = $%d", pgx.Identifier{col}.Sanitize(), len(args)))
	}

	where := []string{"id = $1"}
	for _, col := range expectCols {
		args = append(args, expect[col])
		where = append(where, fmt.Sprintf("%s IS NOT DISTINCT FROM $%d", pgx.Identifier{col}.Sanitize(), len(args)))
	}

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE %s`,
		pgx.Identifier{coll.String()}.Sanitize(),
		strings.Join(sets, ", "),
		strings.Join(where, " AND "))
	return query, args, nil
}

func buildInsertQuery(coll models.Collection, id uuid.UUID, values models.Snapshot) (string, []any, error) {
	cols, err := sortedColumns(coll, values)
	if err != nil {
		return "", nil, err
	}

	names := []string{"id"}
	placeholders := []string{"$1"}
	args := []any{id}
	for _, col := range cols {
		args = append(args, values[col])
		names = append(names, pgx.Identifier{col}.Sanitize())
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO NOTHING`,
		pgx.Identifier{coll.String()}.Sanitize(),
		strings.Join(names, ", "),
		strings.Join(placeholders, ", "))
	return query, args, nil
}
