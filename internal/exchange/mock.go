package exchange

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
)

// MockClient is a deterministic paper-trading substitute for Client, used
// in either trading mode when cmd/scanner is started with -mock-exchange.
// Grounded on internal/exchange/binance.go's shape (same interface, real
// network calls) with klines/prices replaced by a seeded random walk so
// backtests and scanner dry-runs are reproducible without external network
// access.
type MockClient struct {
	log zerolog.Logger

	mu      sync.Mutex
	prices  map[string]float64
	rng     *rand.Rand
	orders  map[OrderID]*mockOrder
	wallet  Wallet
	fillAge time.Duration // orders FILL after this much wall-clock time
}

type mockOrder struct {
	coin      string
	side      domain.OrderSide
	quantity  float64
	price     float64
	createdAt time.Time
}

// NewMockClient builds a MockClient seeded for reproducibility.
func NewMockClient(seed int64, log zerolog.Logger) *MockClient {
	return &MockClient{
		log:     log.With().Str("component", "mock_exchange").Logger(),
		prices:  make(map[string]float64),
		rng:     rand.New(rand.NewSource(seed)),
		orders:  make(map[OrderID]*mockOrder),
		fillAge: 2 * time.Second,
		wallet: Wallet{
			AvailableBalance: 10000,
			Balances:         []Balance{{Asset: "USDT", Free: 10000}},
		},
	}
}

func (m *MockClient) priceFor(coin string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prices[coin]
	if !ok {
		p = 100 + m.rng.Float64()*900
		m.prices[coin] = p
		return p
	}
	move := (m.rng.Float64() - 0.5) * 0.004 * p
	p += move
	if p < 0.01 {
		p = 0.01
	}
	m.prices[coin] = p
	return p
}

// GetKlines synthesizes a candle series ending at the current walk price.
func (m *MockClient) GetKlines(ctx context.Context, coin, timeframe string, limit int) ([]domain.Candle, error) {
	now := time.Now().UnixMilli()
	interval := intervalMs(timeframe)
	out := make([]domain.Candle, limit)
	price := m.priceFor(coin)
	for i := limit - 1; i >= 0; i-- {
		open := price
		high := open * (1 + m.rng.Float64()*0.01)
		low := open * (1 - m.rng.Float64()*0.01)
		close := low + m.rng.Float64()*(high-low)
		out[i] = domain.Candle{
			Time:   now - int64(limit-1-i)*interval,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: 1000 + m.rng.Float64()*5000,
		}
		price = close
	}
	return out, nil
}

func intervalMs(timeframe string) int64 {
	switch timeframe {
	case "1m":
		return 60_000
	case "5m":
		return 300_000
	case "15m":
		return 900_000
	case "1h":
		return 3_600_000
	case "4h":
		return 14_400_000
	case "1d":
		return 86_400_000
	default:
		return 3_600_000
	}
}

func (m *MockClient) GetTickerPrice(ctx context.Context, coin string, mode domain.TradingMode) (float64, error) {
	return m.priceFor(coin), nil
}

func (m *MockClient) GetTickerPriceBatch(ctx context.Context, coins []string, mode domain.TradingMode) (map[string]float64, error) {
	out := make(map[string]float64, len(coins))
	for _, c := range coins {
		out[c] = m.priceFor(c)
	}
	return out, nil
}

func (m *MockClient) GetTicker24h(ctx context.Context, coin string, mode domain.TradingMode) (Ticker24h, error) {
	last := m.priceFor(coin)
	return Ticker24h{
		Coin:               coin,
		LastPrice:          last,
		PriceChangePercent: (m.rng.Float64() - 0.5) * 10,
		Volume:             1_000_000 + m.rng.Float64()*5_000_000,
		QuoteVolume:        last * 1_000_000,
		High:               last * 1.02,
		Low:                last * 0.98,
	}, nil
}

func (m *MockClient) GetTicker24hBatch(ctx context.Context, coins []string, mode domain.TradingMode) (map[string]Ticker24h, error) {
	out := make(map[string]Ticker24h, len(coins))
	for _, c := range coins {
		t, _ := m.GetTicker24h(ctx, c, mode)
		out[c] = t
	}
	return out, nil
}

func (m *MockClient) CreateOrder(ctx context.Context, mode domain.TradingMode, coin string, side domain.OrderSide, orderType OrderType, quantity float64, price float64) (OrderAck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fillPrice := price
	if orderType == OrderTypeMarket || fillPrice == 0 {
		p, ok := m.prices[coin]
		if !ok {
			p = 100
		}
		fillPrice = p
	}

	id := OrderID(uuid.New().String())
	m.orders[id] = &mockOrder{coin: coin, side: side, quantity: quantity, price: fillPrice, createdAt: time.Now()}

	m.log.Debug().Str("order_id", string(id)).Str("coin", coin).Str("side", string(side)).
		Float64("quantity", quantity).Msg("mock order submitted")
	return OrderAck{OrderID: id}, nil
}

// GetOrder reports a submitted order FILLED once fillAge has elapsed,
// matching a testnet order's near-instant market fill without a real
// network round trip.
func (m *MockClient) GetOrder(ctx context.Context, mode domain.TradingMode, coin string, orderID OrderID) (OrderStatusReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return OrderStatusReport{}, fmt.Errorf("exchange: mock order not found: %s", orderID)
	}
	if time.Since(order.createdAt) < m.fillAge {
		return OrderStatusReport{Status: domain.OrderStatusNew}, nil
	}
	return OrderStatusReport{
		Status:              domain.OrderStatusFilled,
		ExecutedQty:         order.quantity,
		AvgPrice:            order.price,
		CummulativeQuoteQty: order.quantity * order.price,
	}, nil
}

func (m *MockClient) GetWallet(ctx context.Context, mode domain.TradingMode) (Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wallet, nil
}

func (m *MockClient) TestKeys(ctx context.Context, mode domain.TradingMode) (KeyTestResult, error) {
	return KeyTestResult{OK: true, Message: "mock keys always valid"}, nil
}
