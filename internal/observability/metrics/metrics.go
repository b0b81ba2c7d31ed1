package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "transport_ledger_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	mutationTotal   *prometheus.CounterVec
	mutationLatency *prometheus.HistogramVec

	snapshotTotal   *prometheus.CounterVec
	snapshotLatency *prometheus.HistogramVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	cashbookRecomputeTotal *prometheus.CounterVec
	cashbookBalanceBreaks  prometheus.Gauge

	changeSubscribers prometheus.Gauge
	changeDropped     *prometheus.CounterVec
	changePublished   *prometheus.CounterVec
)

// Init registers ledger metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		mutationTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "mutations_total",
				Help: "Total entity mutations by collection, operation and result",
			},
			[]string{"collection", "op", "result"},
		)
		mutationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "mutation_latency_seconds",
				Help:    "Entity mutation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"collection", "op"},
		)

		snapshotTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ledger_snapshot_total",
				Help: "Total ledger snapshot builds by scope kind and result",
			},
			[]string{"kind", "result"},
		)
		snapshotLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ledger_snapshot_latency_seconds",
				Help:    "Ledger snapshot build latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total document exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Document export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		cashbookRecomputeTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "cashbook_recompute_total",
				Help: "Total cashbook running balance recomputations by trigger",
			},
			[]string{"trigger"},
		)
		cashbookBalanceBreaks = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "cashbook_balance_breaks",
				Help: "Running balance breaks found by the last cashbook verification",
			},
		)

		changeSubscribers = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "change_stream_subscribers",
				Help: "Connected change stream subscribers",
			},
		)
		changeDropped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "change_events_dropped_total",
				Help: "Change events dropped for slow subscribers by collection",
			},
			[]string{"collection"},
		)
		changePublished = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "change_events_published_total",
				Help: "Change events published by sink and result",
			},
			[]string{"sink", "result"},
		)

		prometheus.MustRegister(
			mutationTotal,
			mutationLatency,
			snapshotTotal,
			snapshotLatency,
			exportTotal,
			exportLatency,
			cashbookRecomputeTotal,
			cashbookBalanceBreaks,
			changeSubscribers,
			changeDropped,
			changePublished,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveMutation records an entity write.
func ObserveMutation(collection, op, result string, duration time.Duration) {
	if collection == "" {
		collection = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if mutationTotal != nil {
		mutationTotal.WithLabelValues(collection, op, result).Inc()
	}
	if mutationLatency != nil {
		mutationLatency.WithLabelValues(collection, op).Observe(duration.Seconds())
	}
}

// ObserveSnapshot records a ledger snapshot build.
func ObserveSnapshot(kind, result string, duration time.Duration) {
	if kind == "" {
		kind = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if snapshotTotal != nil {
		snapshotTotal.WithLabelValues(kind, result).Inc()
	}
	if snapshotLatency != nil {
		snapshotLatency.WithLabelValues(kind).Observe(duration.Seconds())
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncCashbookRecompute counts a recompute pass.
func IncCashbookRecompute(trigger string) {
	if trigger == "" {
		trigger = "manual"
	}
	if cashbookRecomputeTotal != nil {
		cashbookRecomputeTotal.WithLabelValues(trigger).Inc()
	}
}

// SetCashbookBalanceBreaks records the outcome of a verification.
func SetCashbookBalanceBreaks(count int) {
	if cashbookBalanceBreaks != nil {
		cashbookBalanceBreaks.Set(float64(count))
	}
}

// SetChangeSubscribers sets the connected subscriber gauge.
func SetChangeSubscribers(count int) {
	if changeSubscribers != nil {
		changeSubscribers.Set(float64(count))
	}
}

// IncChangeDropped counts an event dropped for a slow subscriber.
func IncChangeDropped(collection string) {
	if collection == "" {
		collection = "unknown"
	}
	if changeDropped != nil {
		changeDropped.WithLabelValues(collection).Inc()
	}
}

// IncChangePublished counts a publish attempt.
func IncChangePublished(sink, result string) {
	if result == "" {
		result = resultSuccess
	}
	if changePublished != nil {
		changePublished.WithLabelValues(sink, result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
