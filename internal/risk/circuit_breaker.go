// Package risk provides circuit breakers guarding external collaborators
// (ExchangeClient, Store) and ATR/Kelly position-sizing helpers.
package risk

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"

	"github.com/ajitpratap0/cryptofunk/internal/metrics"
)

// Circuit breaker states, for the state gauge.
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half_open"

	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Default circuit breaker thresholds, one tier per external collaborator.
const (
	ExchangeMinRequests     = 5
	ExchangeFailureRatio    = 0.6
	ExchangeOpenTimeout     = 30 * time.Second
	ExchangeHalfOpenMaxReqs = 3
	ExchangeCountInterval   = 10 * time.Second

	StoreMinRequests     = 10
	StoreFailureRatio    = 0.6
	StoreOpenTimeout     = 15 * time.Second
	StoreHalfOpenMaxReqs = 5
	StoreCountInterval   = 10 * time.Second
)

// CircuitBreakerManager manages one breaker per external collaborator the
// scanner depends on: ExchangeClient and Store.
type CircuitBreakerManager struct {
	exchange *gobreaker.CircuitBreaker
	store    *gobreaker.CircuitBreaker
	metrics  *CircuitBreakerMetrics
}

// CircuitBreakerMetrics holds the Prometheus collectors shared by every
// CircuitBreakerManager instance.
type CircuitBreakerMetrics struct {
	state    *prometheus.GaugeVec
	requests *prometheus.CounterVec
	failures *prometheus.CounterVec
}

var (
	globalMetrics *CircuitBreakerMetrics
	metricsOnce   sync.Once
)

func initMetrics() {
	metricsOnce.Do(func() {
		globalMetrics = &CircuitBreakerMetrics{
			state: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half_open)",
			}, []string{"service"}),
			requests: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "circuit_breaker_requests_total",
				Help: "Total number of requests through circuit breaker",
			}, []string{"service", "result"}),
			failures: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "circuit_breaker_failures_total",
				Help: "Total number of failures tracked by circuit breaker",
			}, []string{"service"}),
		}
	})
}

// ServiceSettings holds circuit breaker configuration for a single service.
type ServiceSettings struct {
	MinRequests     uint32
	FailureRatio    float64
	OpenTimeout     time.Duration
	HalfOpenMaxReqs uint32
	CountInterval   time.Duration
}

// ParseDuration parses a duration string, falling back to defaultValue on
// empty input or parse failure.
func ParseDuration(durationStr string, defaultValue time.Duration) time.Duration {
	if durationStr == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return defaultValue
	}
	return d
}

// NewCircuitBreakerManager creates a manager with default settings for both
// breakers.
func NewCircuitBreakerManager() *CircuitBreakerManager {
	return NewCircuitBreakerManagerWithSettings(nil, nil)
}

// NewCircuitBreakerManagerWithSettings creates a manager, falling back to
// the package defaults for any nil settings.
func NewCircuitBreakerManagerWithSettings(exchangeSettings, storeSettings *ServiceSettings) *CircuitBreakerManager {
	initMetrics()

	manager := &CircuitBreakerManager{metrics: globalMetrics}

	if exchangeSettings == nil {
		exchangeSettings = &ServiceSettings{
			MinRequests:     ExchangeMinRequests,
			FailureRatio:    ExchangeFailureRatio,
			OpenTimeout:     ExchangeOpenTimeout,
			HalfOpenMaxReqs: ExchangeHalfOpenMaxReqs,
			CountInterval:   ExchangeCountInterval,
		}
	}
	if storeSettings == nil {
		storeSettings = &ServiceSettings{
			MinRequests:     StoreMinRequests,
			FailureRatio:    StoreFailureRatio,
			OpenTimeout:     StoreOpenTimeout,
			HalfOpenMaxReqs: StoreHalfOpenMaxReqs,
			CountInterval:   StoreCountInterval,
		}
	}

	manager.exchange = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "exchange",
		MaxRequests: exchangeSettings.HalfOpenMaxReqs,
		Interval:    exchangeSettings.CountInterval,
		Timeout:     exchangeSettings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= exchangeSettings.MinRequests && failureRatio >= exchangeSettings.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			manager.updateMetrics("exchange", to)
		},
	})

	manager.store = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "store",
		MaxRequests: storeSettings.HalfOpenMaxReqs,
		Interval:    storeSettings.CountInterval,
		Timeout:     storeSettings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= storeSettings.MinRequests && failureRatio >= storeSettings.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			manager.updateMetrics("store", to)
		},
	})

	manager.updateMetrics("exchange", manager.exchange.State())
	manager.updateMetrics("store", manager.store.State())

	return manager
}

// NewPassthroughCircuitBreakerManager creates a manager whose breakers never
// trip, for tests that exercise other components without circuit breaker
// interference.
func NewPassthroughCircuitBreakerManager() *CircuitBreakerManager {
	initMetrics()

	manager := &CircuitBreakerManager{metrics: globalMetrics}
	neverTrip := func(counts gobreaker.Counts) bool { return false }

	manager.exchange = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "exchange_passthrough", MaxRequests: 1000, Timeout: time.Millisecond, ReadyToTrip: neverTrip,
	})
	manager.store = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "store_passthrough", MaxRequests: 1000, Timeout: time.Millisecond, ReadyToTrip: neverTrip,
	})

	return manager
}

// Exchange returns the breaker wrapping ExchangeClient calls.
func (m *CircuitBreakerManager) Exchange() *gobreaker.CircuitBreaker { return m.exchange }

// Store returns the breaker wrapping Store calls.
func (m *CircuitBreakerManager) Store() *gobreaker.CircuitBreaker { return m.store }

func (m *CircuitBreakerManager) updateMetrics(service string, state gobreaker.State) {
	var stateValue float64
	switch state {
	case gobreaker.StateClosed:
		stateValue = 0
	case gobreaker.StateOpen:
		stateValue = 1
	case gobreaker.StateHalfOpen:
		stateValue = 2
	}
	m.metrics.state.WithLabelValues(service).Set(stateValue)
	if state == gobreaker.StateOpen {
		metrics.GetOrCreateScannerMetrics().CircuitBreakerTrips.WithLabelValues(service).Inc()
	}
}

// RecordRequest records a request outcome for the request/failure counters.
func (m *CircuitBreakerMetrics) RecordRequest(service string, success bool) {
	result := ResultSuccess
	if !success {
		result = ResultFailure
		m.failures.WithLabelValues(service).Inc()
	}
	m.requests.WithLabelValues(service, result).Inc()
}

// Metrics returns the shared metrics instance for manual recording.
func (m *CircuitBreakerManager) Metrics() *CircuitBreakerMetrics { return m.metrics }
