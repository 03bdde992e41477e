package pricecache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
	"github.com/ajitpratap0/cryptofunk/internal/exchange"
)

type fakeExchange struct {
	mu            sync.Mutex
	priceCalls    int64
	batchCalls    int64
	tickerCalls   int64
	price         float64
	batchFail     bool
	missingSymbol string
}

func (f *fakeExchange) GetKlines(ctx context.Context, coin, timeframe string, limit int) ([]domain.Candle, error) {
	return nil, nil
}

func (f *fakeExchange) GetTickerPrice(ctx context.Context, coin string, mode domain.TradingMode) (float64, error) {
	atomic.AddInt64(&f.priceCalls, 1)
	return f.price, nil
}

func (f *fakeExchange) GetTickerPriceBatch(ctx context.Context, coins []string, mode domain.TradingMode) (map[string]float64, error) {
	atomic.AddInt64(&f.batchCalls, 1)
	if f.batchFail {
		return nil, fmt.Errorf("batch endpoint down")
	}
	out := make(map[string]float64)
	for _, c := range coins {
		if c == f.missingSymbol {
			continue
		}
		out[c] = f.price
	}
	return out, nil
}

func (f *fakeExchange) GetTicker24h(ctx context.Context, coin string, mode domain.TradingMode) (exchange.Ticker24h, error) {
	atomic.AddInt64(&f.tickerCalls, 1)
	return exchange.Ticker24h{Coin: coin, LastPrice: f.price}, nil
}

func (f *fakeExchange) GetTicker24hBatch(ctx context.Context, coins []string, mode domain.TradingMode) (map[string]exchange.Ticker24h, error) {
	out := make(map[string]exchange.Ticker24h)
	for _, c := range coins {
		out[c] = exchange.Ticker24h{Coin: c, LastPrice: f.price}
	}
	return out, nil
}

func (f *fakeExchange) CreateOrder(ctx context.Context, mode domain.TradingMode, coin string, side domain.OrderSide, orderType exchange.OrderType, quantity, price float64) (exchange.OrderAck, error) {
	return exchange.OrderAck{}, nil
}

func (f *fakeExchange) GetOrder(ctx context.Context, mode domain.TradingMode, coin string, orderID exchange.OrderID) (exchange.OrderStatusReport, error) {
	return exchange.OrderStatusReport{}, nil
}

func (f *fakeExchange) GetWallet(ctx context.Context, mode domain.TradingMode) (exchange.Wallet, error) {
	return exchange.Wallet{}, nil
}

func (f *fakeExchange) TestKeys(ctx context.Context, mode domain.TradingMode) (exchange.KeyTestResult, error) {
	return exchange.KeyTestResult{OK: true}, nil
}

func newTestCache(t *testing.T, fx *fakeExchange) *Cache {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(fx, client, zerolog.Nop())
}

// TestGetPriceCoalescesConcurrentCallers checks that 50 concurrent callers
// requesting a cold key trigger exactly one exchange call.
func TestGetPriceCoalescesConcurrentCallers(t *testing.T) {
	fx := &fakeExchange{price: 42000}
	cache := newTestCache(t, fx)

	var wg sync.WaitGroup
	results := make([]float64, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			price, err := cache.GetPrice(context.Background(), "BTCUSDT", domain.ModeTestnet)
			require.NoError(t, err)
			results[i] = price
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		require.Equal(t, 42000.0, r)
	}
	require.Equal(t, int64(1), atomic.LoadInt64(&fx.priceCalls))

	m := cache.Metrics()
	require.Equal(t, int64(1), m.APICalls)
	require.Equal(t, int64(50), m.Misses)
}

func TestGetPriceServesFromCacheWithinStaleness(t *testing.T) {
	fx := &fakeExchange{price: 100}
	cache := newTestCache(t, fx)

	_, err := cache.GetPrice(context.Background(), "ETHUSDT", domain.ModeTestnet)
	require.NoError(t, err)
	_, err = cache.GetPrice(context.Background(), "ETHUSDT", domain.ModeTestnet)
	require.NoError(t, err)

	require.Equal(t, int64(1), atomic.LoadInt64(&fx.priceCalls))
	require.Equal(t, 0.5, cache.Metrics().HitRate()-0) // first call was a miss, second call was a hit
}

func TestGetPriceRefetchesAfterStaleness(t *testing.T) {
	fx := &fakeExchange{price: 100}
	cache := newTestCache(t, fx).WithStaleness(10 * time.Millisecond)

	_, err := cache.GetPrice(context.Background(), "ETHUSDT", domain.ModeTestnet)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = cache.GetPrice(context.Background(), "ETHUSDT", domain.ModeTestnet)
	require.NoError(t, err)

	require.Equal(t, int64(2), atomic.LoadInt64(&fx.priceCalls))
}

func TestGetBatchPricesUsesBatchEndpoint(t *testing.T) {
	fx := &fakeExchange{price: 5}
	cache := newTestCache(t, fx).WithBatchDelay(5 * time.Millisecond)

	prices, err := cache.GetBatchPrices(context.Background(), []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}, domain.ModeTestnet)
	require.NoError(t, err)
	require.Len(t, prices, 3)
	require.Equal(t, int64(1), atomic.LoadInt64(&fx.batchCalls))
	require.Equal(t, int64(0), atomic.LoadInt64(&fx.priceCalls))
}

// TestGetBatchPricesFallsBackOnBatchFailure exercises the fallback: batch
// endpoint fails -> per-symbol parallel requests, individual failures
// tolerated.
func TestGetBatchPricesFallsBackOnBatchFailure(t *testing.T) {
	fx := &fakeExchange{price: 7, batchFail: true}
	cache := newTestCache(t, fx).WithBatchDelay(5 * time.Millisecond)

	prices, err := cache.GetBatchPrices(context.Background(), []string{"BTCUSDT", "ETHUSDT"}, domain.ModeTestnet)
	require.NoError(t, err)
	require.Len(t, prices, 2)
	require.GreaterOrEqual(t, atomic.LoadInt64(&fx.priceCalls), int64(2))
}

func TestGetBatchPricesOmitsMissingSymbol(t *testing.T) {
	fx := &fakeExchange{price: 9, missingSymbol: "DOGEUSDT"}
	cache := newTestCache(t, fx).WithBatchDelay(5 * time.Millisecond)

	prices, err := cache.GetBatchPrices(context.Background(), []string{"BTCUSDT", "DOGEUSDT"}, domain.ModeTestnet)
	require.NoError(t, err)
	_, hasMissing := prices["DOGEUSDT"]
	require.False(t, hasMissing)
	require.Contains(t, prices, "BTCUSDT")
}

func TestSubscribeGlobalUpdatesUnsubscribe(t *testing.T) {
	fx := &fakeExchange{price: 1}
	cache := newTestCache(t, fx)

	called := false
	unsub := cache.SubscribeGlobalUpdates(func() []string {
		called = true
		return []string{"BTCUSDT"}
	})
	require.ElementsMatch(t, []string{"BTCUSDT"}, cache.unionSubscribedCoins())
	require.True(t, called)

	unsub()
	require.Empty(t, cache.unionSubscribedCoins())
}
