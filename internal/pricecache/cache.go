// Package pricecache implements PriceCache: a process-wide coalescing cache
// of spot prices and 24h tickers, backed by Redis so multiple scanner
// instances share the same staleness window instead of each holding its own
// in-memory copy.
package pricecache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
	"github.com/ajitpratap0/cryptofunk/internal/exchange"
	"github.com/ajitpratap0/cryptofunk/internal/metrics"
)

// Default tunables.
const (
	DefaultStaleness  = 30 * time.Second
	DefaultBatchDelay = 100 * time.Millisecond
	ErrorTTL          = 5 * time.Second
)

// Metrics is the snapshot returned by Cache.Metrics.
type Metrics struct {
	Hits             int64
	Misses           int64
	APICalls         int64
	BatchedRequests  int64
}

// HitRate returns Hits / (Hits+Misses), or 0 if nothing has been requested.
func (m Metrics) HitRate() float64 {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0
	}
	return float64(m.Hits) / float64(total)
}

type entry struct {
	value     float64
	ticker    exchange.Ticker24h
	hasTicker bool
	err       error
	timestamp time.Time
}

func (e entry) valid(staleness time.Duration) bool {
	return time.Since(e.timestamp) < staleness
}

// kind distinguishes the two cached shapes a (coin,mode) key can hold.
type kind string

const (
	kindPrice  kind = "price"
	kindTicker kind = "ticker24h"
)

type cacheKey struct {
	coin string
	mode domain.TradingMode
	kind kind
}

// Cache is the coalescing, batching price/ticker cache.
type Cache struct {
	exchange exchange.Client
	redis    *redis.Client
	log      zerolog.Logger

	staleness  time.Duration
	batchDelay time.Duration
	limiter    *rate.Limiter

	mu    sync.RWMutex
	local map[cacheKey]entry

	group singleflight.Group

	batchMu sync.Mutex
	pending map[batchKey]*pendingBatch

	globalBatchLock sync.Mutex

	metricsMu sync.Mutex
	metrics   Metrics

	subMu       sync.Mutex
	subscribers map[int]func() []string
	nextSubID   int
}

type batchKey struct {
	mode domain.TradingMode
	kind kind
}

// pendingBatch is the in-flight coalesced batch for one (mode,kind): callers
// needing an uncached symbol add it to wanted and block on done until the
// batch dispatches.
type pendingBatch struct {
	mu     sync.Mutex
	wanted map[string]bool
	timer  *time.Timer
	done   chan struct{}
}

// New builds a Cache. redisClient may be nil, in which case the cache
// operates purely in-process (still coalesces and batches; just doesn't
// share staleness across instances). Redis is an implementation detail of
// serving within the staleness window, not a hard requirement to share
// across processes.
func New(exchangeClient exchange.Client, redisClient *redis.Client, log zerolog.Logger) *Cache {
	return &Cache{
		exchange:    exchangeClient,
		redis:       redisClient,
		log:         log.With().Str("component", "pricecache").Logger(),
		staleness:   DefaultStaleness,
		batchDelay:  DefaultBatchDelay,
		limiter:     rate.NewLimiter(rate.Every(DefaultBatchDelay), 1),
		local:       make(map[cacheKey]entry),
		pending:     make(map[batchKey]*pendingBatch),
		subscribers: make(map[int]func() []string),
	}
}

// WithStaleness overrides the default 30s staleness window (tests).
func (c *Cache) WithStaleness(d time.Duration) *Cache {
	c.staleness = d
	return c
}

// WithBatchDelay overrides the default 100ms batch collection window (tests).
func (c *Cache) WithBatchDelay(d time.Duration) *Cache {
	c.batchDelay = d
	c.limiter = rate.NewLimiter(rate.Every(d), 1)
	return c
}

func redisKey(k cacheKey) string {
	return fmt.Sprintf("cryptofunk:pricecache:%s:%s:%s", k.kind, k.mode, k.coin)
}

// GetPrice returns coin's last traded price, fresh within the staleness
// window, else fetches.
func (c *Cache) GetPrice(ctx context.Context, coin string, mode domain.TradingMode) (float64, error) {
	key := cacheKey{coin: coin, mode: mode, kind: kindPrice}
	if e, ok := c.readLocal(key); ok {
		c.recordHit()
		return e.value, e.err
	}
	if e, ok := c.readRedis(ctx, key); ok {
		c.writeLocal(key, e)
		c.recordHit()
		return e.value, e.err
	}
	c.recordMiss()
	return c.coalescedFetchSingle(ctx, coin, mode, kindPrice)
}

// GetTicker24h returns the 24h rolling ticker for coin.
func (c *Cache) GetTicker24h(ctx context.Context, coin string, mode domain.TradingMode) (exchange.Ticker24h, error) {
	key := cacheKey{coin: coin, mode: mode, kind: kindTicker}
	if e, ok := c.readLocal(key); ok {
		c.recordHit()
		return e.ticker, e.err
	}
	if e, ok := c.readRedis(ctx, key); ok {
		c.writeLocal(key, e)
		c.recordHit()
		return e.ticker, e.err
	}
	c.recordMiss()
	_, err := c.coalescedFetchSingle(ctx, coin, mode, kindTicker)
	if err != nil {
		return exchange.Ticker24h{}, err
	}
	e, _ := c.readLocal(key)
	return e.ticker, e.err
}

// coalescedFetchSingle is the request-coalescing path, implemented with
// singleflight.Group keyed on (coin,mode,kind).
func (c *Cache) coalescedFetchSingle(ctx context.Context, coin string, mode domain.TradingMode, k kind) (float64, error) {
	sfKey := fmt.Sprintf("%s|%s|%s", coin, mode, k)
	v, err, _ := c.group.Do(sfKey, func() (interface{}, error) {
		c.incAPICalls()
		key := cacheKey{coin: coin, mode: mode, kind: k}
		switch k {
		case kindPrice:
			price, fetchErr := c.exchange.GetTickerPrice(ctx, coin, mode)
			e := entry{value: price, err: fetchErr, timestamp: time.Now()}
			c.writeLocal(key, e)
			c.writeRedis(ctx, key, e)
			if fetchErr != nil {
				return 0.0, fetchErr
			}
			return price, nil
		default:
			ticker, fetchErr := c.exchange.GetTicker24h(ctx, coin, mode)
			e := entry{ticker: ticker, hasTicker: true, err: fetchErr, timestamp: time.Now()}
			c.writeLocal(key, e)
			c.writeRedis(ctx, key, e)
			if fetchErr != nil {
				return 0.0, fetchErr
			}
			return ticker.LastPrice, nil
		}
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (c *Cache) readLocal(key cacheKey) (entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.local[key]
	if !ok || !e.valid(c.staleness) {
		return entry{}, false
	}
	return e, true
}

func (c *Cache) writeLocal(key cacheKey, e entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local[key] = e
}

func (c *Cache) readRedis(ctx context.Context, key cacheKey) (entry, bool) {
	if c.redis == nil {
		return entry{}, false
	}
	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	raw, err := c.redis.Get(cacheCtx, redisKey(key)).Result()
	if err != nil {
		return entry{}, false
	}
	var wire wireEntry
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return entry{}, false
	}
	e := entry{value: wire.Value, ticker: wire.Ticker, hasTicker: wire.HasTicker, timestamp: wire.Timestamp}
	if !e.valid(c.staleness) {
		return entry{}, false
	}
	return e, true
}

type wireEntry struct {
	Value     float64            `json:"value"`
	Ticker    exchange.Ticker24h `json:"ticker"`
	HasTicker bool               `json:"has_ticker"`
	Timestamp time.Time          `json:"timestamp"`
}

func (c *Cache) writeRedis(ctx context.Context, key cacheKey, e entry) {
	if c.redis == nil || e.err != nil {
		return
	}
	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	data, err := json.Marshal(wireEntry{Value: e.value, Ticker: e.ticker, HasTicker: e.hasTicker, Timestamp: e.timestamp})
	if err != nil {
		return
	}
	if err := c.redis.Set(cacheCtx, redisKey(key), data, c.staleness).Err(); err != nil {
		c.log.Debug().Err(err).Str("key", redisKey(key)).Msg("redis set failed, continuing with local cache only")
	}
}

func (c *Cache) recordHit() {
	c.metricsMu.Lock()
	c.metrics.Hits++
	c.metricsMu.Unlock()
	metrics.GetOrCreateScannerMetrics().PriceCacheHits.Inc()
}

func (c *Cache) recordMiss() {
	c.metricsMu.Lock()
	c.metrics.Misses++
	c.metricsMu.Unlock()
	metrics.GetOrCreateScannerMetrics().PriceCacheMisses.Inc()
}

func (c *Cache) incAPICalls() {
	c.metricsMu.Lock()
	c.metrics.APICalls++
	c.metricsMu.Unlock()
	metrics.GetOrCreateScannerMetrics().PriceCacheAPICalls.Inc()
}

// Metrics returns a snapshot of cache hit/miss/call counters.
func (c *Cache) Metrics() Metrics {
	c.metricsMu.Lock()
	defer c.metricsMu.Unlock()
	return c.metrics
}
