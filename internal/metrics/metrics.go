package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ScannerMetrics holds the Prometheus collectors shared across a scanner
// process: scan-cycle counters, price-cache hit rate, position counts,
// backtest throughput.
type ScannerMetrics struct {
	ScanCyclesTotal    prometheus.Counter
	ScanCycleDuration  prometheus.Histogram
	SignalsFoundTotal  prometheus.Counter
	TradesExecutedTotal prometheus.Counter
	OpenPositions      prometheus.Gauge
	PendingOrders      prometheus.Gauge

	PriceCacheHits    prometheus.Counter
	PriceCacheMisses  prometheus.Counter
	PriceCacheAPICalls prometheus.Counter
	PriceCacheBatched prometheus.Counter

	CircuitBreakerTrips *prometheus.CounterVec
	LeadershipChanges   prometheus.Counter

	BacktestCoinsProcessed prometheus.Counter
	BacktestCoinsFailed    prometheus.Counter
	BacktestCombinations   prometheus.Gauge
}

var (
	scannerMetricsInstance *ScannerMetrics
	scannerMetricsOnce     sync.Once
)

// GetOrCreateScannerMetrics returns the process-wide singleton metrics
// instance, registering collectors with the default Prometheus registry
// exactly once regardless of how many times it is called.
func GetOrCreateScannerMetrics() *ScannerMetrics {
	scannerMetricsOnce.Do(func() {
		scannerMetricsInstance = &ScannerMetrics{
			ScanCyclesTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "cryptofunk_scan_cycles_total",
				Help: "Total number of scan cycles completed",
			}),
			ScanCycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "cryptofunk_scan_cycle_duration_seconds",
				Help:    "Duration of a single scan cycle",
				Buckets: prometheus.DefBuckets,
			}),
			SignalsFoundTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "cryptofunk_signals_found_total",
				Help: "Total number of strategy signal matches found",
			}),
			TradesExecutedTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "cryptofunk_trades_executed_total",
				Help: "Total number of trades executed (positions opened)",
			}),
			OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "cryptofunk_open_positions",
				Help: "Number of currently open positions",
			}),
			PendingOrders: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "cryptofunk_pending_orders",
				Help: "Number of orders currently being tracked by PendingOrderManager",
			}),
			PriceCacheHits: promauto.NewCounter(prometheus.CounterOpts{
				Name: "cryptofunk_pricecache_hits_total",
				Help: "Total price cache hits",
			}),
			PriceCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
				Name: "cryptofunk_pricecache_misses_total",
				Help: "Total price cache misses",
			}),
			PriceCacheAPICalls: promauto.NewCounter(prometheus.CounterOpts{
				Name: "cryptofunk_pricecache_api_calls_total",
				Help: "Total network calls issued by the price cache (post-coalescing)",
			}),
			PriceCacheBatched: promauto.NewCounter(prometheus.CounterOpts{
				Name: "cryptofunk_pricecache_batched_requests_total",
				Help: "Total requests served by a batch fetch",
			}),
			CircuitBreakerTrips: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "cryptofunk_circuit_breaker_trips_total",
				Help: "Total circuit breaker state transitions to open, by breaker name",
			}, []string{"breaker"}),
			LeadershipChanges: promauto.NewCounter(prometheus.CounterOpts{
				Name: "cryptofunk_leadership_changes_total",
				Help: "Total number of times this instance acquired scanner leadership",
			}),
			BacktestCoinsProcessed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "cryptofunk_backtest_coins_processed_total",
				Help: "Total coins successfully processed by the backtest runner",
			}),
			BacktestCoinsFailed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "cryptofunk_backtest_coins_failed_total",
				Help: "Total coins that failed during backtest fetch/compute",
			}),
			BacktestCombinations: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "cryptofunk_backtest_combinations",
				Help: "Number of combinations surviving the last aggregation run",
			}),
		}
	})
	return scannerMetricsInstance
}

var (
	apiRequestsTotal    *prometheus.CounterVec
	apiRequestDuration  *prometheus.HistogramVec
	apiMetricsOnce      sync.Once
)

func getOrCreateAPIMetrics() (*prometheus.CounterVec, *prometheus.HistogramVec) {
	apiMetricsOnce.Do(func() {
		apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptofunk_admin_api_requests_total",
			Help: "Total admin HTTP requests by method, path and status code",
		}, []string{"method", "path", "status"})
		apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cryptofunk_admin_api_request_duration_ms",
			Help:    "Admin HTTP request duration in milliseconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"})
	})
	return apiRequestsTotal, apiRequestDuration
}

// RecordAPIRequest records one admin HTTP request's outcome and latency.
func RecordAPIRequest(method, path, status string, durationMs float64) {
	counter, histogram := getOrCreateAPIMetrics()
	counter.WithLabelValues(method, path, status).Inc()
	histogram.WithLabelValues(method, path).Observe(durationMs)
}
