// Package metrics registers Prometheus collectors for batch processing and
// storage activity. Handlers expose them via promhttp on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	FulfilledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerq_fulfilled_total",
			Help: "Obligations fulfilled, per ledger.",
		},
		[]string{"ledger"},
	)
	SkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerq_skipped_total",
			Help: "Stale slots skipped during batch runs, per ledger.",
		},
		[]string{"ledger"},
	)
	RequeuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerq_requeued_total",
			Help: "Obligations re-appended at the tail, per ledger.",
		},
		[]string{"ledger"},
	)
	CompactedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerq_compacted_slots_total",
			Help: "Stale slots removed by compaction, per ledger.",
		},
		[]string{"ledger"},
	)
	BatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledgerq_batch_duration_seconds",
			Help:    "Wall time of a single batch run.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"ledger"},
	)
	BatchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerq_batch_failures_total",
			Help: "Batch runs ended by a fulfillment failure, per ledger.",
		},
		[]string{"ledger"},
	)

	storageWriteBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledgerq_storage_write_bytes_total",
		Help: "Bytes written through the storage wrapper.",
	})
	storageReadBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledgerq_storage_read_bytes_total",
		Help: "Bytes read through the storage wrapper.",
	})
	storageCommitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledgerq_storage_commit_duration_seconds",
		Help:    "Latency of batch commits.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})
	storageCommitOps = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledgerq_storage_commit_ops_total",
		Help: "Operations committed across all batches.",
	})
)

func init() {
	prometheus.MustRegister(FulfilledTotal)
	prometheus.MustRegister(SkippedTotal)
	prometheus.MustRegister(RequeuedTotal)
	prometheus.MustRegister(CompactedTotal)
	prometheus.MustRegister(BatchDuration)
	prometheus.MustRegister(BatchFailures)
	prometheus.MustRegister(storageWriteBytes)
	prometheus.MustRegister(storageReadBytes)
	prometheus.MustRegister(storageCommitDuration)
	prometheus.MustRegister(storageCommitOps)
}

// StoreHook feeds storage wrapper observations into the Prometheus collectors.
type StoreHook struct{}

func (StoreHook) ObserveWrite(_ time.Duration, bytes int) {
	storageWriteBytes.Add(float64(bytes))
}

func (StoreHook) ObserveRead(_ time.Duration, bytes int) {
	storageReadBytes.Add(float64(bytes))
}

func (StoreHook) ObserveBatchCommit(elapsed time.Duration, numOps int, _ int) {
	storageCommitDuration.Observe(elapsed.Seconds())
	storageCommitOps.Add(float64(numOps))
}
