package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PurchasesProcessed counts purchase attempts by final outcome
// (complete, partial_success, not_found, invalid_request, invariant_violation, persistence_failure)
var PurchasesProcessed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "greenestate_purchases_processed_total",
		Help: "Total number of purchases processed by the reconciliation coordinator",
	},
	[]string{"outcome"},
)

// UnitsTransferred counts units moved from sellers to buyers
var UnitsTransferred = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "greenestate_units_transferred_total",
		Help: "Total number of asset units transferred by purchases",
	},
)

// PurchaseLatency records end-to-end purchase latency
var PurchaseLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "greenestate_purchase_latency_seconds",
		Help:    "Latency in seconds from purchase receipt to completion or failure",
		Buckets: prometheus.DefBuckets,
	},
)

// Ledger locking and concurrency metrics
var (
	LockWaitTime = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "greenestate_asset_lock_wait_seconds",
			Help:    "Time spent waiting for a per-asset lock",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		},
		[]string{"backend"},
	)

	LockAcquisitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenestate_asset_lock_acquisitions_total",
			Help: "Per-asset lock acquisitions by backend and status",
		},
		[]string{"backend", "status"},
	)

	OptimisticRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenestate_ledger_optimistic_retries_total",
			Help: "Ledger writes retried after a version conflict",
		},
		[]string{"operation"},
	)
)

// Holdings index metrics
var (
	IndexWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenestate_holdings_index_writes_total",
			Help: "Holdings index writes by operation and status",
		},
		[]string{"operation", "status"},
	)

	PendingIndexRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenestate_holdings_index_reconciled_total",
			Help: "Purchases whose index step was retried by the reconciler or settled by a repair",
		},
		[]string{"status"},
	)
)

// Database connection pool metrics
var (
	DBOpenConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "greenestate_db_open_connections",
			Help: "Number of open connections in the DB pool",
		},
		[]string{"db"},
	)

	DBIdleConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "greenestate_db_idle_connections",
			Help: "Number of idle connections in the DB pool",
		},
		[]string{"db"},
	)

	DBInUseConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "greenestate_db_in_use_connections",
			Help: "Number of in-use connections in the DB pool",
		},
		[]string{"db"},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greenestate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "greenestate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

func init() {
	prometheus.MustRegister(PurchasesProcessed, UnitsTransferred, PurchaseLatency)
	prometheus.MustRegister(LockWaitTime, LockAcquisitions, OptimisticRetries)
	prometheus.MustRegister(IndexWrites, PendingIndexRetries)
	prometheus.MustRegister(DBOpenConns, DBIdleConns, DBInUseConns)
	prometheus.MustRegister(HTTPRequestsTotal, HTTPRequestDuration)
}
