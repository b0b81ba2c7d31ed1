package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	ledger "transport-ledger/internal/ledger/domain"
	"transport-ledger/internal/records"
)

// Repository is an in-memory ledger entry repository.
type Repository struct {
	mu      sync.RWMutex
	seq     int64
	entries map[string]*ledger.Entry
	now     func() time.Time
}

// NewRepository constructs a repository.
func NewRepository() *Repository {
	return &Repository{
		entries: make(map[string]*ledger.Entry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Append posts e after the latest entry of its scope.
func (r *Repository) Append(ctx context.Context, e *ledger.Entry) error {
	_ = ctx
	if e == nil {
		return ledger.ErrNilEntry
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	records.Stamp(&e.Meta, r.now())
	if _, exists := r.entries[e.ID]; exists {
		return records.ErrDuplicateID
	}
	all := make([]*ledger.Entry, 0, len(r.entries))
	for _, existing := range r.entries {
		all = append(all, existing)
	}
	e.Balance = ledger.NextBalance(ledger.LatestInScope(all, e.Scope()), e)
	r.seq++
	e.Seq = r.seq
	r.entries[e.ID] = e.Clone()
	return nil
}

// List returns entries ordered by (date, created_at, seq).
func (r *Repository) List(ctx context.Context) ([]*ledger.Entry, error) {
	_ = ctx
	r.mu.RLock()
	result := make([]*ledger.Entry, 0, len(r.entries))
	for _, e := range r.entries {
		result = append(result, e.Clone())
	}
	r.mu.RUnlock()
	sort.SliceStable(result, func(i, j int) bool { return ledger.EntryBefore(result[i], result[j]) })
	return result, nil
}

// ListBy filters entries by an indexed field.
func (r *Repository) ListBy(ctx context.Context, field, value string) ([]*ledger.Entry, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var result []*ledger.Entry
	for _, e := range all {
		if e.Field(field) == value {
			result = append(result, e)
		}
	}
	return result, nil
}

// Get loads an entry.
func (r *Repository) Get(ctx context.Context, id string) (*ledger.Entry, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, records.ErrNotFound
	}
	return e.Clone(), nil
}
