package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"transport-ledger/internal/records"
)

// Store is an in-memory collection store for demo/testing.
type Store[T records.Record[T]] struct {
	mu   sync.RWMutex
	seq  int64
	data map[string]T
	now  func() time.Time
}

// NewStore constructs a store.
func NewStore[T records.Record[T]]() *Store[T] {
	return &Store[T]{
		data: make(map[string]T),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// List returns all records ordered by creation sequence.
func (s *Store[T]) List(ctx context.Context) ([]T, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]T, 0, len(s.data))
	for _, record := range s.data {
		result = append(result, record.Clone())
	}
	sortBySeq(result)
	return result, nil
}

// ListBy returns records whose indexed field equals value.
func (s *Store[T]) ListBy(ctx context.Context, field, value string) ([]T, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []T
	for _, record := range s.data {
		if record.Field(field) == value {
			result = append(result, record.Clone())
		}
	}
	sortBySeq(result)
	return result, nil
}

// Get loads a record by id.
func (s *Store[T]) Get(ctx context.Context, id string) (T, error) {
	_ = ctx
	var zero T
	if id == "" {
		return zero, records.ErrEmptyID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.data[id]
	if !ok {
		return zero, records.ErrNotFound
	}
	return record.Clone(), nil
}

// Create inserts a record, assigning id, sequence and timestamps.
func (s *Store[T]) Create(ctx context.Context, record T) error {
	_ = ctx
	if records.IsNil(record) {
		return records.ErrNilRecord
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	meta := record.Metadata()
	records.Stamp(meta, s.now())
	if _, exists := s.data[meta.ID]; exists {
		return records.ErrDuplicateID
	}
	s.seq++
	meta.Seq = s.seq
	s.data[meta.ID] = record.Clone()
	return nil
}

// Update overwrites an existing record, keeping its creation metadata.
func (s *Store[T]) Update(ctx context.Context, record T) error {
	_ = ctx
	if records.IsNil(record) {
		return records.ErrNilRecord
	}
	meta := record.Metadata()
	if meta.ID == "" {
		return records.ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.data[meta.ID]
	if !ok {
		return records.ErrNotFound
	}
	prev := existing.Metadata()
	meta.Seq = prev.Seq
	meta.CreatedAt = prev.CreatedAt
	meta.UpdatedAt = s.now()
	s.data[meta.ID] = record.Clone()
	return nil
}

// Delete removes a record.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	_ = ctx
	if id == "" {
		return records.ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; !ok {
		return records.ErrNotFound
	}
	delete(s.data, id)
	return nil
}

func sortBySeq[T records.Record[T]](items []T) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].Metadata().Seq < items[j].Metadata().Seq
	})
}
