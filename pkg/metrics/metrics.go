// Package metrics exposes genforge's Prometheus collectors. The queue
// updates QueueDepth (under the processing label, once per running
// coordinator) and ItemDuration as items finish; RetryAttempts,
// LedgerTransactions and CooldownEntities are registered but nothing in
// genforge updates them. This is
// a supplement over the distilled spec (which describes no metrics
// surface), grounded on kubernaut's prometheus/client_golang dependency,
// since an operator running this system needs the same visibility an
// azcopy job log gives a single-run CLI tool but across many concurrent
// jobs.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	QueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "genforge",
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Number of batch jobs currently pending or processing, by status.",
	}, []string{"status"})

	ItemDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "genforge",
		Subsystem: "queue",
		Name:      "item_duration_seconds",
		Help:      "Duration of a single batch job item's generation call.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"model_type", "outcome"})

	RetryAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "genforge",
		Subsystem: "retry",
		Name:      "attempts_total",
		Help:      "Count of retry attempts, by operation and error class.",
	}, []string{"operation", "error_type"})

	LedgerTransactions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "genforge",
		Subsystem: "ledger",
		Name:      "transactions_total",
		Help:      "Count of credit ledger transactions, by source.",
	}, []string{"source"})

	CooldownEntities = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "genforge",
		Subsystem: "cooldown",
		Name:      "entities_in_cooldown",
		Help:      "Number of entities currently in cooldown, by cooldown manager name.",
	}, []string{"manager"})
)

// MustRegister registers every collector on reg in a single call at
// startup, mirroring how a cobra PersistentPreRunE wires up one-time
// process state before any command runs.
func MustRegister(reg *prometheus.Registry) {
	reg.MustRegister(QueueDepth, ItemDuration, RetryAttempts, LedgerTransactions, CooldownEntities)
}
