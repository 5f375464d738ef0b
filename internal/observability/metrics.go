package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	httpDurationHistogram    *prometheus.HistogramVec
	postingDurationHistogram prometheus.Histogram
	ledgerImbalanceCounter   prometheus.Counter
	insufficientFundsCounter prometheus.Counter
	idempotentReplayCounter  prometheus.Counter
	integrityFailureCounter  prometheus.Counter
	idempotencyCounter       *prometheus.CounterVec
	workerRunCounter         *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		postingDurationHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_posting_duration_seconds",
			Help:    "Latency of atomic ledger postings",
			Buckets: prometheus.DefBuckets,
		})

		ledgerImbalanceCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_imbalance_total",
			Help: "Number of times a wallet's running balance diverged from its entries",
		})

		insufficientFundsCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_insufficient_funds_total",
			Help: "Postings rejected for insufficient balance",
		})

		idempotentReplayCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_idempotent_replay_total",
			Help: "Postings served from an existing reference instead of re-applied",
		})

		integrityFailureCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "commission_integrity_failures_total",
			Help: "Settlements aborted by rate or hierarchy integrity violations",
		})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			postingDurationHistogram,
			ledgerImbalanceCounter,
			insufficientFundsCounter,
			idempotentReplayCounter,
			integrityFailureCounter,
			idempotencyCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func ObservePosting(duration time.Duration) {
	if postingDurationHistogram == nil {
		return
	}
	postingDurationHistogram.Observe(duration.Seconds())
}

func IncrementLedgerImbalance() {
	if ledgerImbalanceCounter == nil {
		return
	}
	ledgerImbalanceCounter.Inc()
}

func IncrementInsufficientFunds() {
	if insufficientFundsCounter == nil {
		return
	}
	insufficientFundsCounter.Inc()
}

func IncrementIdempotentReplay() {
	if idempotentReplayCounter == nil {
		return
	}
	idempotentReplayCounter.Inc()
}

func IncrementIntegrityFailure() {
	if integrityFailureCounter == nil {
		return
	}
	integrityFailureCounter.Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
