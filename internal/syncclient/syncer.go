package syncclient

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"transport-ledger/internal/changefeed"
)

const (
	defaultPollInterval   = 30 * time.Second
	defaultReconnectDelay = 3 * time.Second
	defaultFetchLimit     = 4
	errorBuffer           = 16
)

// ErrSyncSuperseded is returned by Sync when a local mutation landed while the
// fetch was in flight. The cache keeps the mutation.
var ErrSyncSuperseded = errors.New("syncclient: sync superseded by local mutation")

// MutationError is published on the error channel when a create, update or
// delete fails. The same error is returned to the caller.
type MutationError struct {
	Op         string
	Collection string
	ID         string
	Err        error
}

func (e *MutationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("syncclient: %s %s/%s: %v", e.Op, e.Collection, e.ID, e.Err)
	}
	return fmt.Sprintf("syncclient: %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// Option configures a Syncer.
type Option func(*Syncer)

// WithPollInterval sets the periodic re-sync interval; <= 0 disables polling.
func WithPollInterval(d time.Duration) Option {
	return func(s *Syncer) { s.pollInterval = d }
}

// WithReconnectDelay sets the fixed delay before reopening a dropped change stream.
func WithReconnectDelay(d time.Duration) Option {
	return func(s *Syncer) {
		if d > 0 {
			s.reconnectDelay = d
		}
	}
}

// WithFetchLimit bounds how many collections are fetched in parallel.
func WithFetchLimit(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.fetchLimit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Syncer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Syncer keeps a local cache of backend collections. Full fetches replace the
// cache atomically with a new generation; change events and polling trigger
// re-syncs, and concurrent triggers coalesce into one pending sync.
type Syncer struct {
	client         *Client
	collections    []string
	pollInterval   time.Duration
	reconnectDelay time.Duration
	fetchLimit     int
	logger         *log.Logger

	cache      atomic.Pointer[Snapshot]
	generation atomic.Uint64
	writeMu    sync.Mutex
	syncMu     sync.Mutex
	trigger    chan struct{}
	errs       chan error
	synced     chan uint64
}

// NewSyncer constructs a syncer for the given collections.
func NewSyncer(client *Client, collections []string, opts ...Option) (*Syncer, error) {
	if client == nil {
		return nil, errors.New("syncclient: nil client")
	}
	if len(collections) == 0 {
		return nil, errors.New("syncclient: no collections")
	}
	s := &Syncer{
		client:         client,
		collections:    append([]string(nil), collections...),
		pollInterval:   defaultPollInterval,
		reconnectDelay: defaultReconnectDelay,
		fetchLimit:     defaultFetchLimit,
		logger:         log.Default(),
		trigger:        make(chan struct{}, 1),
		errs:           make(chan error, errorBuffer),
		synced:         make(chan uint64, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cache.Store(&Snapshot{Collections: map[string][]json.RawMessage{}})
	return s, nil
}

// Snapshot returns the current cache generation.
func (s *Syncer) Snapshot() *Snapshot {
	return s.cache.Load()
}

// Errors delivers mutation failures. Errors are dropped when nobody drains the channel.
func (s *Syncer) Errors() <-chan error {
	return s.errs
}

// Synced delivers the generation of the latest successful full sync. Only
// the most recent value is kept.
func (s *Syncer) Synced() <-chan uint64 {
	return s.synced
}

// RequestSync schedules a sync without waiting. Requests made while one is
// already pending collapse into it.
func (s *Syncer) RequestSync() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Sync fetches every collection and replaces the cache. Only one sync runs at
// a time; on failure the previous generation stays in place. A fetch that
// overlapped a local mutation is discarded with ErrSyncSuperseded, and the
// sync requested by that mutation fetches again.
func (s *Syncer) Sync(ctx context.Context) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	start := time.Now()
	base := s.generation.Load()
	fetched := make([][]json.RawMessage, len(s.collections))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fetchLimit)
	for i, name := range s.collections {
		g.Go(func() error {
			records, err := s.client.List(gctx, name)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", name, err)
			}
			fetched[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	collections := make(map[string][]json.RawMessage, len(s.collections))
	for i, name := range s.collections {
		collections[name] = fetched[i]
	}
	s.writeMu.Lock()
	if current := s.generation.Load(); current != base {
		s.writeMu.Unlock()
		s.logger.Printf("sync discarded: started_at=%d current=%d", base, current)
		s.RequestSync()
		return ErrSyncSuperseded
	}
	next := &Snapshot{
		Generation:  s.generation.Add(1),
		FetchedAt:   time.Now().UTC(),
		Collections: collections,
	}
	s.cache.Store(next)
	s.writeMu.Unlock()

	select {
	case <-s.synced:
	default:
	}
	s.synced <- next.Generation
	s.logger.Printf("sync complete: generation=%d collections=%d duration=%s", next.Generation, len(collections), time.Since(start))
	return nil
}

// Run performs an initial sync, then re-syncs on change events, on the poll
// interval and on RequestSync until ctx is cancelled. Sync failures are
// logged and retried on the next trigger.
func (s *Syncer) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.listen(gctx)
		return nil
	})
	if s.pollInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(s.pollInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					s.RequestSync()
				}
			}
		})
	}
	g.Go(func() error {
		s.RequestSync()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-s.trigger:
				if err := s.Sync(gctx); err != nil && gctx.Err() == nil && !errors.Is(err, ErrSyncSuperseded) {
					s.logger.Printf("sync error: %v", err)
				}
			}
		}
	})
	return g.Wait()
}

// listen follows the change stream, reconnecting after a fixed delay.
func (s *Syncer) listen(ctx context.Context) {
	for {
		err := s.follow(ctx)
		if ctx.Err() != nil {
			return
		}
		s.logger.Printf("change stream closed: err=%v retry_in=%s", err, s.reconnectDelay)
		timer := time.NewTimer(s.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *Syncer) follow(ctx context.Context) error {
	body, err := s.client.openStream(ctx)
	if err != nil {
		return err
	}
	defer body.Close()

	scanner := bufio.NewScanner(body)
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			s.dispatch(event, data)
			event, data = "", ""
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return errors.New("stream ended")
}

func (s *Syncer) dispatch(event, data string) {
	switch event {
	case "ready":
		// Changes made while disconnected were never delivered.
		s.RequestSync()
	case changefeed.TypeDataChange:
		var change changefeed.Event
		if err := json.Unmarshal([]byte(data), &change); err != nil {
			s.logger.Printf("change stream decode error: %v", err)
			return
		}
		if s.tracks(change.Collection) {
			s.RequestSync()
		}
	}
}

func (s *Syncer) tracks(collection string) bool {
	for _, name := range s.collections {
		if name == collection {
			return true
		}
	}
	return false
}

// Create posts a record, applies the stored version to the cache and requests a re-sync.
func (s *Syncer) Create(ctx context.Context, collection string, record any) (json.RawMessage, error) {
	stored, err := s.client.Create(ctx, collection, record)
	if err != nil {
		return nil, s.fail("create", collection, "", err)
	}
	s.apply(collection, func(items []json.RawMessage) []json.RawMessage { return upsert(items, stored) })
	return stored, nil
}

// Update replaces a record, applies the stored version to the cache and requests a re-sync.
func (s *Syncer) Update(ctx context.Context, collection, id string, record any) (json.RawMessage, error) {
	stored, err := s.client.Update(ctx, collection, id, record)
	if err != nil {
		return nil, s.fail("update", collection, id, err)
	}
	s.apply(collection, func(items []json.RawMessage) []json.RawMessage { return upsert(items, stored) })
	return stored, nil
}

// Delete removes a record, drops it from the cache and requests a re-sync.
func (s *Syncer) Delete(ctx context.Context, collection, id string) error {
	if err := s.client.Delete(ctx, collection, id); err != nil {
		return s.fail("delete", collection, id, err)
	}
	s.apply(collection, func(items []json.RawMessage) []json.RawMessage { return remove(items, id) })
	return nil
}

// apply publishes a new generation with one collection changed. Derived
// records elsewhere (balances, ledgers) are refreshed by the re-sync.
func (s *Syncer) apply(collection string, change func([]json.RawMessage) []json.RawMessage) {
	s.writeMu.Lock()
	current := s.cache.Load()
	s.cache.Store(current.with(s.generation.Add(1), collection, change(current.Records(collection))))
	s.writeMu.Unlock()
	s.RequestSync()
}

func (s *Syncer) fail(op, collection, id string, err error) error {
	merr := &MutationError{Op: op, Collection: collection, ID: id, Err: err}
	select {
	case s.errs <- merr:
	default:
		s.logger.Printf("syncclient error dropped: %v", merr)
	}
	return merr
}
