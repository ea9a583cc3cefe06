package sqlite

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "pagevault"

var (
	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "sqlite",
		Name:      "query_duration_seconds",
		Help:      "Duration of statements issued to the database, by statement kind.",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"kind"})

	slowQueries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "sqlite",
		Name:      "slow_queries_total",
		Help:      "Statements that took at least the configured slow query threshold.",
	})

	bootstrapAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "bootstrap",
		Name:      "attempts_total",
		Help:      "Bootstrap pipeline attempts, by outcome.",
	}, []string{"outcome"})

	quarantines = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "bootstrap",
		Name:      "quarantines_total",
		Help:      "Database files moved aside after severe corruption, by result.",
	}, []string{"result"})

	driftColumns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "migrate",
		Name:      "columns_total",
		Help:      "Columns handled by additive migration, by result.",
	}, []string{"result"})

	ledgerMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "ledger",
		Name:      "mutations_total",
		Help:      "Currency mutations, by transaction type and result.",
	}, []string{"type", "result"})

	duplicateChapters = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "chapters",
		Name:      "duplicates_total",
		Help:      "Chapter inserts rejected because the (series, number) pair already exists.",
	})
)

// Bootstrap outcome labels.
const (
	outcomeReady      = "ready"
	outcomeRetry      = "retry"
	outcomeQuarantine = "quarantine"
	outcomeFatal      = "fatal"
)
