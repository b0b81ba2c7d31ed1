package cashbook

import "context"

// Repository persists cashbook entries.
type Repository interface {
	// Append stores e with its running balance derived from the latest stored
	// entry; the read of the predecessor and the insert happen atomically.
	Append(ctx context.Context, e *Entry) error
	List(ctx context.Context) ([]*Entry, error)
	ListBy(ctx context.Context, field, value string) ([]*Entry, error)
	Get(ctx context.Context, id string) (*Entry, error)
	// Update overwrites an entry as-is, including its running balance.
	Update(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, id string) error
	// SetBalances rewrites running balances in one transaction.
	SetBalances(ctx context.Context, entries []*Entry) error
}
