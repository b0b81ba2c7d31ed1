package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"transport-ledger/internal/records"
)

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// DocumentStore persists records as JSONB documents in a per-collection table:
//
//	id TEXT PRIMARY KEY, seq BIGSERIAL, created_at, updated_at, data JSONB
//
// Indexed lookups use data->>field, so field names are the record's JSON names.
type DocumentStore[T records.Record[T]] struct {
	db    *sql.DB
	table string
	newFn func() T
	now   func() time.Time
}

// NewDocumentStore constructs a store for table; newFn returns an empty record to decode into.
func NewDocumentStore[T records.Record[T]](db *sql.DB, table string, newFn func() T) (*DocumentStore[T], error) {
	if db == nil {
		return nil, errors.New("document store: nil db")
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("document store: invalid table %q", table)
	}
	if newFn == nil {
		return nil, errors.New("document store: nil constructor")
	}
	return &DocumentStore[T]{
		db:    db,
		table: table,
		newFn: newFn,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// List returns all records ordered by sequence.
func (s *DocumentStore[T]) List(ctx context.Context) ([]T, error) {
	query := fmt.Sprintf(`
SELECT id, seq, created_at, updated_at, data
FROM %s
ORDER BY seq ASC`, s.table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.scanAll(rows)
}

// ListBy returns records whose JSON field equals value.
func (s *DocumentStore[T]) ListBy(ctx context.Context, field, value string) ([]T, error) {
	query := fmt.Sprintf(`
SELECT id, seq, created_at, updated_at, data
FROM %s
WHERE data->>$1 = $2
ORDER BY seq ASC`, s.table)
	rows, err := s.db.QueryContext(ctx, query, field, value)
	if err != nil {
		return nil, err
	}
	return s.scanAll(rows)
}

// Get loads a record by id.
func (s *DocumentStore[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	if id == "" {
		return zero, records.ErrEmptyID
	}
	query := fmt.Sprintf(`
SELECT id, seq, created_at, updated_at, data
FROM %s
WHERE id = $1`, s.table)
	record, err := s.scan(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return zero, records.ErrNotFound
	}
	return record, err
}

// Create inserts a record and assigns its sequence.
func (s *DocumentStore[T]) Create(ctx context.Context, record T) error {
	if records.IsNil(record) {
		return records.ErrNilRecord
	}
	meta := record.Metadata()
	records.Stamp(meta, s.now())
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, created_at, updated_at, data)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO NOTHING
RETURNING seq`, s.table)
	err = s.db.QueryRowContext(ctx, query, meta.ID, meta.CreatedAt, meta.UpdatedAt, data).Scan(&meta.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return records.ErrDuplicateID
	}
	return err
}

// Update overwrites the document of an existing record.
func (s *DocumentStore[T]) Update(ctx context.Context, record T) error {
	if records.IsNil(record) {
		return records.ErrNilRecord
	}
	meta := record.Metadata()
	if meta.ID == "" {
		return records.ErrEmptyID
	}
	meta.UpdatedAt = s.now()
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
UPDATE %s
SET data = $1, updated_at = $2
WHERE id = $3
RETURNING seq, created_at`, s.table)
	err = s.db.QueryRowContext(ctx, query, data, meta.UpdatedAt, meta.ID).Scan(&meta.Seq, &meta.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return records.ErrNotFound
	}
	meta.CreatedAt = meta.CreatedAt.UTC()
	return err
}

// Delete removes a record.
func (s *DocumentStore[T]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return records.ErrEmptyID
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table)
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return records.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *DocumentStore[T]) scan(row rowScanner) (T, error) {
	var (
		zero      T
		id        string
		seq       int64
		createdAt time.Time
		updatedAt time.Time
		data      []byte
	)
	if err := row.Scan(&id, &seq, &createdAt, &updatedAt, &data); err != nil {
		return zero, err
	}
	record := s.newFn()
	if err := json.Unmarshal(data, record); err != nil {
		return zero, fmt.Errorf("document store: decode %s/%s: %w", s.table, id, err)
	}
	meta := record.Metadata()
	meta.ID = id
	meta.Seq = seq
	meta.CreatedAt = createdAt.UTC()
	meta.UpdatedAt = updatedAt.UTC()
	return record, nil
}

func (s *DocumentStore[T]) scanAll(rows *sql.Rows) ([]T, error) {
	defer rows.Close()
	var result []T
	for rows.Next() {
		record, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
