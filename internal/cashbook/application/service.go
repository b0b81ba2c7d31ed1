package application

import (
	"context"
	"errors"
	"log"
	"time"

	cashbook "transport-ledger/internal/cashbook/domain"
	"transport-ledger/internal/changefeed"
	logistics "transport-ledger/internal/logistics/domain"
	"transport-ledger/internal/observability/metrics"
	"transport-ledger/internal/records"
)

// Recompute triggers.
const (
	TriggerManual   = "manual"
	TriggerBackdate = "backdate"
	TriggerUpdate   = "update"
	TriggerDelete   = "delete"
)

// Service owns cashbook writes. Balance-affecting writes hold the cashbook
// scope lock for the whole read-latest-then-insert sequence.
type Service struct {
	repo                cashbook.Repository
	locks               *records.ScopeLocks
	notifier            changefeed.Notifier
	logger              *log.Logger
	recomputeOnBackdate bool
}

// Option configures the service.
type Option func(*Service)

// WithNotifier sets the change notifier.
func WithNotifier(notifier changefeed.Notifier) Option {
	return func(s *Service) {
		if notifier != nil {
			s.notifier = notifier
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLocks shares a lock set with other services.
func WithLocks(locks *records.ScopeLocks) Option {
	return func(s *Service) {
		if locks != nil {
			s.locks = locks
		}
	}
}

// WithRecomputeOnBackdate rewrites running balances after back-dated inserts,
// updates and deletes instead of leaving them append-only.
func WithRecomputeOnBackdate(enabled bool) Option {
	return func(s *Service) {
		s.recomputeOnBackdate = enabled
	}
}

// NewService constructs a cashbook service.
func NewService(repo cashbook.Repository, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("cashbook service: nil repo")
	}
	s := &Service{
		repo:     repo,
		locks:    records.NewScopeLocks(),
		notifier: changefeed.Nop{},
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create validates e and appends it with a running balance derived from the
// current latest entry.
func (s *Service) Create(ctx context.Context, e *cashbook.Entry) (*cashbook.Entry, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveMutation(logistics.CollectionCashbookEntries, changefeed.OpCreate, result, time.Since(start))
	}()

	if err := s.prepare(e); err != nil {
		result = metrics.ResultError
		return nil, err
	}

	unlock := s.locks.Lock(cashbook.Scope)
	existing, err := s.repo.List(ctx)
	if err != nil {
		unlock()
		result = metrics.ResultError
		return nil, err
	}
	backdated := cashbook.IsBackdated(cashbook.Latest(existing), e)
	if err := s.repo.Append(ctx, e); err != nil {
		unlock()
		result = metrics.ResultError
		return nil, err
	}
	if backdated {
		if s.recomputeOnBackdate {
			if _, err := s.recomputeLocked(ctx, TriggerBackdate); err != nil {
				unlock()
				result = metrics.ResultError
				return nil, err
			}
			if stored, err := s.repo.Get(ctx, e.ID); err == nil {
				e = stored
			}
		} else {
			s.logger.Printf("cashbook create: back-dated entry id=%s date=%s, later balances left as recorded", e.ID, e.Date.Format(time.DateOnly))
		}
	}
	unlock()

	s.notify(ctx, changefeed.OpCreate, e.ID)
	return e, nil
}

// Update rewrites an entry's fields. The stored running balance is kept unless
// recompute-on-backdate is enabled, in which case the whole chain is rebuilt.
func (s *Service) Update(ctx context.Context, e *cashbook.Entry) (*cashbook.Entry, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveMutation(logistics.CollectionCashbookEntries, changefeed.OpUpdate, result, time.Since(start))
	}()

	if err := s.prepare(e); err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if e.ID == "" {
		result = metrics.ResultError
		return nil, records.ErrEmptyID
	}

	unlock := s.locks.Lock(cashbook.Scope)
	defer unlock()

	current, err := s.repo.Get(ctx, e.ID)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	e.RunningBalance = current.RunningBalance
	if err := s.repo.Update(ctx, e); err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if s.recomputeOnBackdate {
		if _, err := s.recomputeLocked(ctx, TriggerUpdate); err != nil {
			result = metrics.ResultError
			return nil, err
		}
		if stored, err := s.repo.Get(ctx, e.ID); err == nil {
			e = stored
		}
	}
	s.notify(ctx, changefeed.OpUpdate, e.ID)
	return e, nil
}

// Delete removes an entry.
func (s *Service) Delete(ctx context.Context, id string) error {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveMutation(logistics.CollectionCashbookEntries, changefeed.OpDelete, result, time.Since(start))
	}()

	if id == "" {
		result = metrics.ResultError
		return records.ErrEmptyID
	}
	unlock := s.locks.Lock(cashbook.Scope)
	defer unlock()

	if err := s.repo.Delete(ctx, id); err != nil {
		result = metrics.ResultError
		return err
	}
	if s.recomputeOnBackdate {
		if _, err := s.recomputeLocked(ctx, TriggerDelete); err != nil {
			result = metrics.ResultError
			return err
		}
	}
	s.notify(ctx, changefeed.OpDelete, id)
	return nil
}

// Get loads an entry.
func (s *Service) Get(ctx context.Context, id string) (*cashbook.Entry, error) {
	return s.repo.Get(ctx, id)
}

// List returns entries in chronological order.
func (s *Service) List(ctx context.Context) ([]*cashbook.Entry, error) {
	return s.repo.List(ctx)
}

// ListBy filters entries by an indexed field.
func (s *Service) ListBy(ctx context.Context, field, value string) ([]*cashbook.Entry, error) {
	return s.repo.ListBy(ctx, field, value)
}

// Recompute rebuilds every running balance in chronological order and returns
// the number of entries that changed.
func (s *Service) Recompute(ctx context.Context) (int, error) {
	unlock := s.locks.Lock(cashbook.Scope)
	defer unlock()
	changed, err := s.recomputeLocked(ctx, TriggerManual)
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// Verify reports running-balance breaks without modifying anything.
func (s *Service) Verify(ctx context.Context) ([]cashbook.BalanceBreak, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	breaks := cashbook.Verify(entries)
	metrics.SetCashbookBalanceBreaks(len(breaks))
	if len(breaks) > 0 {
		s.logger.Printf("cashbook verify: breaks=%d first=%s", len(breaks), breaks[0].EntryID)
	}
	return breaks, nil
}

func (s *Service) recomputeLocked(ctx context.Context, trigger string) (int, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}
	changed := cashbook.Recompute(entries)
	metrics.IncCashbookRecompute(trigger)
	if len(changed) == 0 {
		return 0, nil
	}
	if err := s.repo.SetBalances(ctx, changed); err != nil {
		return 0, err
	}
	s.logger.Printf("cashbook recompute: trigger=%s changed=%d", trigger, len(changed))
	s.notify(ctx, changefeed.OpRecompute, "")
	return len(changed), nil
}

func (s *Service) prepare(e *cashbook.Entry) error {
	if e == nil {
		return cashbook.ErrNilEntry
	}
	e.VehicleNo = logistics.CanonicalVehicleNo(e.VehicleNo)
	return cashbook.Validate(e)
}

func (s *Service) notify(ctx context.Context, op, id string) {
	s.notifier.Notify(ctx, changefeed.DataChange(logistics.CollectionCashbookEntries, op, id))
}
