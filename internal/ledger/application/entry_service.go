package application

import (
	"context"
	"errors"
	"log"
	"time"

	"transport-ledger/internal/changefeed"
	ledger "transport-ledger/internal/ledger/domain"
	logistics "transport-ledger/internal/logistics/domain"
	"transport-ledger/internal/observability/metrics"
	"transport-ledger/internal/records"
)

// EntryService posts manual ledger entries. Posts to the same scope are
// serialized so every balance chains off its true predecessor.
type EntryService struct {
	repo     ledger.Repository
	locks    *records.ScopeLocks
	notifier changefeed.Notifier
	logger   *log.Logger
}

// NewEntryService constructs a service.
func NewEntryService(repo ledger.Repository, locks *records.ScopeLocks, notifier changefeed.Notifier, logger *log.Logger) (*EntryService, error) {
	if repo == nil {
		return nil, errors.New("ledger entry service: nil repo")
	}
	if locks == nil {
		locks = records.NewScopeLocks()
	}
	if notifier == nil {
		notifier = changefeed.Nop{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &EntryService{repo: repo, locks: locks, notifier: notifier, logger: logger}, nil
}

// Post validates and appends an entry.
func (s *EntryService) Post(ctx context.Context, e *ledger.Entry) (*ledger.Entry, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveMutation(logistics.CollectionLedgerEntries, changefeed.OpCreate, result, time.Since(start))
	}()

	if e == nil {
		result = metrics.ResultError
		return nil, ledger.ErrNilEntry
	}
	e.VehicleNo = logistics.CanonicalVehicleNo(e.VehicleNo)
	if err := ledger.Validate(e); err != nil {
		result = metrics.ResultError
		return nil, err
	}

	unlock := s.locks.Lock("ledger:" + e.Scope())
	err := s.repo.Append(ctx, e)
	unlock()
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	s.logger.Printf("ledger post: id=%s scope=%s balance=%s", e.ID, e.Scope(), e.Balance.StringFixed(2))
	s.notifier.Notify(ctx, changefeed.DataChange(logistics.CollectionLedgerEntries, changefeed.OpCreate, e.ID))
	return e, nil
}

// Get loads an entry.
func (s *EntryService) Get(ctx context.Context, id string) (*ledger.Entry, error) {
	return s.repo.Get(ctx, id)
}

// List returns every entry.
func (s *EntryService) List(ctx context.Context) ([]*ledger.Entry, error) {
	return s.repo.List(ctx)
}

// ListBy filters entries by an indexed field.
func (s *EntryService) ListBy(ctx context.Context, field, value string) ([]*ledger.Entry, error) {
	return s.repo.ListBy(ctx, field, value)
}
