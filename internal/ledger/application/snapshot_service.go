package application

import (
	"context"
	"errors"
	"log"
	"time"

	ledger "transport-ledger/internal/ledger/domain"
	"transport-ledger/internal/observability/metrics"
)

// ScopeData is everything a movement source knows about one scope.
type ScopeData struct {
	Title     string
	Movements []ledger.Movement
}

// MovementSource collects the movements of a scope across collections.
type MovementSource interface {
	Collect(ctx context.Context, scope ledger.Scope) (ScopeData, error)
}

// Clock provides time for snapshot stamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SnapshotService builds ledger snapshots.
type SnapshotService struct {
	source MovementSource
	clock  Clock
	logger *log.Logger
}

// NewSnapshotService constructs a service.
func NewSnapshotService(source MovementSource, clock Clock, logger *log.Logger) (*SnapshotService, error) {
	if source == nil {
		return nil, errors.New("ledger snapshot service: nil source")
	}
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &SnapshotService{source: source, clock: clock, logger: logger}, nil
}

// Build returns the snapshot of scope over period.
func (s *SnapshotService) Build(ctx context.Context, scope ledger.Scope, period ledger.Period) (*ledger.Snapshot, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveSnapshot(string(scope.Kind), result, time.Since(start))
	}()

	if !period.From.IsZero() && !period.To.IsZero() && period.To.Before(period.From) {
		result = metrics.ResultError
		return nil, ErrInvalidPeriod
	}
	data, err := s.source.Collect(ctx, scope)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	snapshot := ledger.BuildSnapshot(scope, period, data.Movements, s.clock.Now())
	snapshot.Title = data.Title
	return &snapshot, nil
}

// ErrInvalidPeriod is returned when to precedes from.
var ErrInvalidPeriod = errors.New("ledger snapshot service: period end before start")
