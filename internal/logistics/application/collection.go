package application

import (
	"context"
	"errors"
	"log"
	"slices"
	"time"

	"transport-ledger/internal/changefeed"
	"transport-ledger/internal/observability/metrics"
	"transport-ledger/internal/records"
)

// Hooks customize a collection's write path. Prepare runs before every create
// and update; it normalizes, computes derived fields and validates.
type Hooks[T records.Record[T]] struct {
	Prepare      func(record T) error
	BeforeCreate func(ctx context.Context, record T) error
	BeforeUpdate func(ctx context.Context, current, next T) error
	BeforeDelete func(ctx context.Context, current T) error
	AfterWrite   func(ctx context.Context, op string, before, after T) error
	// LockKey returns the scope serialized around the write, or "" for none.
	LockKey func(record T) string
}

// Collection is the write boundary of one entity store.
type Collection[T records.Record[T]] struct {
	name     string
	store    records.Store[T]
	hooks    Hooks[T]
	locks    *records.ScopeLocks
	notifier changefeed.Notifier
	logger   *log.Logger
}

func newCollection[T records.Record[T]](name string, store records.Store[T], hooks Hooks[T], deps *deps) (*Collection[T], error) {
	if store == nil {
		return nil, errors.New("logistics service: nil store for " + name)
	}
	return &Collection[T]{
		name:     name,
		store:    store,
		hooks:    hooks,
		locks:    deps.locks,
		notifier: deps.notifier,
		logger:   deps.logger,
	}, nil
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// List returns every record in creation order.
func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	return c.store.List(ctx)
}

// ListBy filters records by an indexed field.
func (c *Collection[T]) ListBy(ctx context.Context, field, value string) ([]T, error) {
	return c.store.ListBy(ctx, field, value)
}

// Get loads a record.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	return c.store.Get(ctx, id)
}

// Create computes derived fields and stores a new record.
func (c *Collection[T]) Create(ctx context.Context, record T) (T, error) {
	var zero T
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveMutation(c.name, changefeed.OpCreate, result, time.Since(start))
	}()

	if records.IsNil(record) {
		result = metrics.ResultError
		return zero, records.ErrNilRecord
	}
	if err := c.prepare(record); err != nil {
		result = metrics.ResultError
		return zero, err
	}
	defer c.lock(record)()
	if c.hooks.BeforeCreate != nil {
		if err := c.hooks.BeforeCreate(ctx, record); err != nil {
			result = metrics.ResultError
			return zero, err
		}
	}
	if err := c.store.Create(ctx, record); err != nil {
		result = metrics.ResultError
		return zero, err
	}
	if c.hooks.AfterWrite != nil {
		if err := c.hooks.AfterWrite(ctx, changefeed.OpCreate, zero, record); err != nil {
			result = metrics.ResultError
			return zero, err
		}
	}
	c.notify(ctx, changefeed.OpCreate, record.Metadata().ID)
	return record, nil
}

// Update recomputes derived fields and overwrites an existing record.
func (c *Collection[T]) Update(ctx context.Context, record T) (T, error) {
	var zero T
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveMutation(c.name, changefeed.OpUpdate, result, time.Since(start))
	}()

	if records.IsNil(record) {
		result = metrics.ResultError
		return zero, records.ErrNilRecord
	}
	id := record.Metadata().ID
	if id == "" {
		result = metrics.ResultError
		return zero, records.ErrEmptyID
	}
	if err := c.prepare(record); err != nil {
		result = metrics.ResultError
		return zero, err
	}
	current, err := c.store.Get(ctx, id)
	if err != nil {
		result = metrics.ResultError
		return zero, err
	}
	defer c.lock(current, record)()
	if c.hooks.BeforeUpdate != nil {
		if err := c.hooks.BeforeUpdate(ctx, current, record); err != nil {
			result = metrics.ResultError
			return zero, err
		}
	}
	if err := c.store.Update(ctx, record); err != nil {
		result = metrics.ResultError
		return zero, err
	}
	if c.hooks.AfterWrite != nil {
		if err := c.hooks.AfterWrite(ctx, changefeed.OpUpdate, current, record); err != nil {
			result = metrics.ResultError
			return zero, err
		}
	}
	c.notify(ctx, changefeed.OpUpdate, id)
	return record, nil
}

// Delete removes a record.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	var zero T
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveMutation(c.name, changefeed.OpDelete, result, time.Since(start))
	}()

	if id == "" {
		result = metrics.ResultError
		return records.ErrEmptyID
	}
	current, err := c.store.Get(ctx, id)
	if err != nil {
		result = metrics.ResultError
		return err
	}
	defer c.lock(current)()
	if c.hooks.BeforeDelete != nil {
		if err := c.hooks.BeforeDelete(ctx, current); err != nil {
			result = metrics.ResultError
			return err
		}
	}
	if err := c.store.Delete(ctx, id); err != nil {
		result = metrics.ResultError
		return err
	}
	if c.hooks.AfterWrite != nil {
		if err := c.hooks.AfterWrite(ctx, changefeed.OpDelete, current, zero); err != nil {
			result = metrics.ResultError
			return err
		}
	}
	c.notify(ctx, changefeed.OpDelete, id)
	return nil
}

func (c *Collection[T]) prepare(record T) error {
	if c.hooks.Prepare == nil {
		return nil
	}
	return c.hooks.Prepare(record)
}

// lock takes the scope locks of every given record in a stable order and
// returns a func releasing them.
func (c *Collection[T]) lock(recs ...T) func() {
	if c.hooks.LockKey == nil || c.locks == nil {
		return func() {}
	}
	keys := make([]string, 0, len(recs))
	for _, r := range recs {
		if key := c.hooks.LockKey(r); key != "" && !slices.Contains(keys, key) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	unlocks := make([]func(), 0, len(keys))
	for _, key := range keys {
		unlocks = append(unlocks, c.locks.Lock(key))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

func (c *Collection[T]) notify(ctx context.Context, op, id string) {
	c.logger.Printf("logistics %s: collection=%s id=%s", op, c.name, id)
	c.notifier.Notify(ctx, changefeed.DataChange(c.name, op, id))
}
