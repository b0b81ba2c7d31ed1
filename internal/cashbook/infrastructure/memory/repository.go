package memory

import (
	"context"
	"sync"
	"time"

	cashbook "transport-ledger/internal/cashbook/domain"
	"transport-ledger/internal/records"
)

// Repository is an in-memory cashbook repository.
type Repository struct {
	mu      sync.Mutex
	seq     int64
	entries map[string]*cashbook.Entry
	now     func() time.Time
}

// NewRepository constructs a repository.
func NewRepository() *Repository {
	return &Repository{
		entries: make(map[string]*cashbook.Entry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Append derives the running balance from the latest entry and stores e.
func (r *Repository) Append(ctx context.Context, e *cashbook.Entry) error {
	_ = ctx
	if e == nil {
		return cashbook.ErrNilEntry
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	records.Stamp(&e.Meta, r.now())
	if _, exists := r.entries[e.ID]; exists {
		return records.ErrDuplicateID
	}
	e.RunningBalance = cashbook.NextBalance(cashbook.Latest(r.snapshot()), e)
	r.seq++
	e.Seq = r.seq
	r.entries[e.ID] = e.Clone()
	return nil
}

// List returns entries in chronological order.
func (r *Repository) List(ctx context.Context) ([]*cashbook.Entry, error) {
	_ = ctx
	r.mu.Lock()
	result := r.snapshot()
	r.mu.Unlock()
	cashbook.SortAscending(result)
	return result, nil
}

// ListBy returns entries whose indexed field equals value.
func (r *Repository) ListBy(ctx context.Context, field, value string) ([]*cashbook.Entry, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var result []*cashbook.Entry
	for _, e := range all {
		if e.Field(field) == value {
			result = append(result, e)
		}
	}
	return result, nil
}

// Get loads an entry.
func (r *Repository) Get(ctx context.Context, id string) (*cashbook.Entry, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, records.ErrNotFound
	}
	return e.Clone(), nil
}

// Update overwrites an entry.
func (r *Repository) Update(ctx context.Context, e *cashbook.Entry) error {
	_ = ctx
	if e == nil {
		return cashbook.ErrNilEntry
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.entries[e.ID]
	if !ok {
		return records.ErrNotFound
	}
	e.Seq = existing.Seq
	e.CreatedAt = existing.CreatedAt
	e.UpdatedAt = r.now()
	r.entries[e.ID] = e.Clone()
	return nil
}

// Delete removes an entry.
func (r *Repository) Delete(ctx context.Context, id string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return records.ErrNotFound
	}
	delete(r.entries, id)
	return nil
}

// SetBalances rewrites running balances.
func (r *Repository) SetBalances(ctx context.Context, entries []*cashbook.Entry) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		stored, ok := r.entries[e.ID]
		if !ok {
			return records.ErrNotFound
		}
		stored.RunningBalance = e.RunningBalance
	}
	return nil
}

func (r *Repository) snapshot() []*cashbook.Entry {
	result := make([]*cashbook.Entry, 0, len(r.entries))
	for _, e := range r.entries {
		result = append(result, e.Clone())
	}
	return result
}
