package pricecache

import (
	"context"
	"sync"
	"time"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
	"github.com/ajitpratap0/cryptofunk/internal/exchange"
	"github.com/ajitpratap0/cryptofunk/internal/metrics"
)

// GetBatchPrices returns the latest price for every coin in coins, serving
// whatever is already fresh from cache and coalescing the rest into one
// batched dispatch collected over batchDelay.
func (c *Cache) GetBatchPrices(ctx context.Context, coins []string, mode domain.TradingMode) (map[string]float64, error) {
	out := make(map[string]float64, len(coins))
	var missing []string
	for _, coin := range coins {
		key := cacheKey{coin: coin, mode: mode, kind: kindPrice}
		if e, ok := c.readLocal(key); ok {
			c.recordHit()
			if e.err == nil {
				out[coin] = e.value
			}
			continue
		}
		if e, ok := c.readRedis(ctx, key); ok {
			c.writeLocal(key, e)
			c.recordHit()
			if e.err == nil {
				out[coin] = e.value
			}
			continue
		}
		c.recordMiss()
		missing = append(missing, coin)
	}
	if len(missing) == 0 {
		return out, nil
	}

	if err := c.dispatchBatch(ctx, mode, kindPrice, missing); err != nil {
		c.log.Warn().Err(err).Msg("batch price fetch failed, falling back to per-symbol requests")
	}

	for _, coin := range missing {
		key := cacheKey{coin: coin, mode: mode, kind: kindPrice}
		if e, ok := c.readLocal(key); ok && e.err == nil {
			out[coin] = e.value
		}
	}
	return out, nil
}

// GetTicker24hBatch is GetBatchPrices's ticker counterpart.
func (c *Cache) GetTicker24hBatch(ctx context.Context, coins []string, mode domain.TradingMode) (map[string]exchange.Ticker24h, error) {
	out := make(map[string]exchange.Ticker24h, len(coins))
	var missing []string
	for _, coin := range coins {
		key := cacheKey{coin: coin, mode: mode, kind: kindTicker}
		if e, ok := c.readLocal(key); ok {
			c.recordHit()
			if e.err == nil {
				out[coin] = e.ticker
			}
			continue
		}
		if e, ok := c.readRedis(ctx, key); ok {
			c.writeLocal(key, e)
			c.recordHit()
			if e.err == nil {
				out[coin] = e.ticker
			}
			continue
		}
		c.recordMiss()
		missing = append(missing, coin)
	}
	if len(missing) == 0 {
		return out, nil
	}

	if err := c.dispatchBatch(ctx, mode, kindTicker, missing); err != nil {
		c.log.Warn().Err(err).Msg("batch ticker fetch failed, falling back to per-symbol requests")
	}

	for _, coin := range missing {
		key := cacheKey{coin: coin, mode: mode, kind: kindTicker}
		if e, ok := c.readLocal(key); ok && e.err == nil {
			out[coin] = e.ticker
		}
	}
	return out, nil
}

// dispatchBatch is the global batch lock: a single lock serializes batch
// creation across (mode,kind) so two callers building the same batch window
// don't double-dispatch; coalesced callers for an in-flight batch simply
// wait on its done channel.
func (c *Cache) dispatchBatch(ctx context.Context, mode domain.TradingMode, k kind, coins []string) error {
	bk := batchKey{mode: mode, kind: k}

	c.batchMu.Lock()
	pb, exists := c.pending[bk]
	if !exists {
		pb = &pendingBatch{wanted: make(map[string]bool), done: make(chan struct{})}
		c.pending[bk] = pb
		pb.timer = time.AfterFunc(c.batchDelay, func() { c.flushBatch(bk) })
	}
	c.batchMu.Unlock()

	pb.mu.Lock()
	for _, coin := range coins {
		pb.wanted[coin] = true
	}
	done := pb.done
	pb.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Cache) flushBatch(bk batchKey) {
	c.globalBatchLock.Lock()
	defer c.globalBatchLock.Unlock()

	c.batchMu.Lock()
	pb, ok := c.pending[bk]
	if ok {
		delete(c.pending, bk)
	}
	c.batchMu.Unlock()
	if !ok {
		return
	}

	pb.mu.Lock()
	coins := make([]string, 0, len(pb.wanted))
	for coin := range pb.wanted {
		coins = append(coins, coin)
	}
	pb.mu.Unlock()
	defer close(pb.done)

	if len(coins) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Paces dispatch to the batch-delay cadence so a burst of unrelated
	// cache misses can't fire dispatches back-to-back faster than one per
	// window.
	_ = c.limiter.Wait(ctx)

	c.incAPICalls()
	c.metricsMu.Lock()
	c.metrics.BatchedRequests++
	c.metricsMu.Unlock()
	metrics.GetOrCreateScannerMetrics().PriceCacheBatched.Inc()

	switch bk.kind {
	case kindPrice:
		prices, err := c.exchange.GetTickerPriceBatch(ctx, coins, bk.mode)
		if err != nil {
			c.fallbackPerSymbol(ctx, coins, bk.mode, bk.kind)
			return
		}
		now := time.Now()
		for _, coin := range coins {
			key := cacheKey{coin: coin, mode: bk.mode, kind: kindPrice}
			price, found := prices[coin]
			if !found {
				e := entry{err: errMissingInBatch(coin), timestamp: now}
				c.writeLocal(key, e)
				continue
			}
			e := entry{value: price, timestamp: now}
			c.writeLocal(key, e)
			c.writeRedis(ctx, key, e)
		}
	case kindTicker:
		tickers, err := c.exchange.GetTicker24hBatch(ctx, coins, bk.mode)
		if err != nil {
			c.fallbackPerSymbol(ctx, coins, bk.mode, bk.kind)
			return
		}
		now := time.Now()
		for _, coin := range coins {
			key := cacheKey{coin: coin, mode: bk.mode, kind: kindTicker}
			t, found := tickers[coin]
			if !found {
				e := entry{err: errMissingInBatch(coin), timestamp: now}
				c.writeLocal(key, e)
				continue
			}
			e := entry{ticker: t, hasTicker: true, timestamp: now}
			c.writeLocal(key, e)
			c.writeRedis(ctx, key, e)
		}
	}
}

// fallbackPerSymbol issues parallel per-symbol requests when the batch
// endpoint itself fails, tolerating individual failures. Each symbol's error or value is stored as its own cache entry
// so the caller sees a per-item result rather than a total outage.
func (c *Cache) fallbackPerSymbol(ctx context.Context, coins []string, mode domain.TradingMode, k kind) {
	var wg sync.WaitGroup
	for _, coin := range coins {
		wg.Add(1)
		go func(coin string) {
			defer wg.Done()
			now := time.Now()
			switch k {
			case kindPrice:
				price, err := c.exchange.GetTickerPrice(ctx, coin, mode)
				c.writeLocal(cacheKey{coin: coin, mode: mode, kind: kindPrice}, entry{value: price, err: err, timestamp: now})
			case kindTicker:
				t, err := c.exchange.GetTicker24h(ctx, coin, mode)
				c.writeLocal(cacheKey{coin: coin, mode: mode, kind: kindTicker}, entry{ticker: t, hasTicker: true, err: err, timestamp: now})
			}
		}(coin)
	}
	wg.Wait()
}

func errMissingInBatch(coin string) error {
	return &missingSymbolError{coin: coin}
}

type missingSymbolError struct{ coin string }

func (e *missingSymbolError) Error() string { return "pricecache: no batch result for " + e.coin }
