package orders

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
	"github.com/ajitpratap0/cryptofunk/internal/exchange"
)

type fakeExchange struct {
	mu       sync.Mutex
	nextID   int
	statuses map[exchange.OrderID]domain.OrderStatus
	fills    map[exchange.OrderID]exchange.OrderStatusReport
	getErr   map[exchange.OrderID]error
	created  []exchange.OrderID
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		statuses: make(map[exchange.OrderID]domain.OrderStatus),
		fills:    make(map[exchange.OrderID]exchange.OrderStatusReport),
		getErr:   make(map[exchange.OrderID]error),
	}
}

func (f *fakeExchange) CreateOrder(ctx context.Context, mode domain.TradingMode, coin string, side domain.OrderSide, orderType exchange.OrderType, quantity, price float64) (exchange.OrderAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := exchange.OrderID(fmt.Sprintf("order-%d", f.nextID))
	f.statuses[id] = domain.OrderStatusNew
	f.created = append(f.created, id)
	return exchange.OrderAck{OrderID: id}, nil
}

func (f *fakeExchange) setStatus(id exchange.OrderID, status domain.OrderStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
}

func (f *fakeExchange) setFill(id exchange.OrderID, report exchange.OrderStatusReport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	report.Status = domain.OrderStatusFilled
	f.fills[id] = report
	f.statuses[id] = domain.OrderStatusFilled
}

func (f *fakeExchange) GetOrder(ctx context.Context, mode domain.TradingMode, coin string, orderID exchange.OrderID) (exchange.OrderStatusReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.getErr[orderID]; ok {
		return exchange.OrderStatusReport{}, err
	}
	if report, ok := f.fills[orderID]; ok {
		return report, nil
	}
	return exchange.OrderStatusReport{Status: f.statuses[orderID]}, nil
}

func (f *fakeExchange) GetKlines(ctx context.Context, coin, timeframe string, limit int) ([]domain.Candle, error) {
	return nil, nil
}
func (f *fakeExchange) GetTickerPrice(ctx context.Context, coin string, mode domain.TradingMode) (float64, error) {
	return 0, nil
}
func (f *fakeExchange) GetTickerPriceBatch(ctx context.Context, coins []string, mode domain.TradingMode) (map[string]float64, error) {
	return nil, nil
}
func (f *fakeExchange) GetTicker24h(ctx context.Context, coin string, mode domain.TradingMode) (exchange.Ticker24h, error) {
	return exchange.Ticker24h{}, nil
}
func (f *fakeExchange) GetTicker24hBatch(ctx context.Context, coins []string, mode domain.TradingMode) (map[string]exchange.Ticker24h, error) {
	return nil, nil
}
func (f *fakeExchange) GetWallet(ctx context.Context, mode domain.TradingMode) (exchange.Wallet, error) {
	return exchange.Wallet{}, nil
}
func (f *fakeExchange) TestKeys(ctx context.Context, mode domain.TradingMode) (exchange.KeyTestResult, error) {
	return exchange.KeyTestResult{}, nil
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestSubmitTracksOrderAsPending(t *testing.T) {
	ex := newFakeExchange()
	mgr := NewManager(ex, FillHandlers{}, testLogger())

	order, err := mgr.Submit(context.Background(), domain.ModeTestnet, "BTC", domain.SideBuy, exchange.OrderTypeMarket, 1, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.PendingStatePending, order.Status)
	assert.Len(t, mgr.Pending(), 1)

	mgr.Stop()
}

func TestCheckOnceTransitionsToFilledAndInvokesHandler(t *testing.T) {
	ex := newFakeExchange()
	var gotFill Fill
	called := make(chan struct{}, 1)
	handlers := FillHandlers{
		OnBuyFilled: func(ctx context.Context, meta map[string]any, fill Fill) error {
			gotFill = fill
			called <- struct{}{}
			return nil
		},
	}
	mgr := NewManager(ex, handlers, testLogger())

	order, err := mgr.Submit(context.Background(), domain.ModeTestnet, "BTC", domain.SideBuy, exchange.OrderTypeMarket, 1, 0, map[string]any{"k": "v"})
	require.NoError(t, err)
	mgr.Stop()

	ex.setFill(exchange.OrderID(order.OrderID), exchange.OrderStatusReport{ExecutedQty: 1, AvgPrice: 100})
	mgr.CheckOnce(context.Background())

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}
	assert.Equal(t, 100.0, gotFill.AvgPrice)
	assert.Empty(t, mgr.Pending())
}

func TestCheckOnceRetriesFailedBuyOrder(t *testing.T) {
	ex := newFakeExchange()
	mgr := NewManager(ex, FillHandlers{}, testLogger())

	order, err := mgr.Submit(context.Background(), domain.ModeTestnet, "ETH", domain.SideBuy, exchange.OrderTypeMarket, 2, 0, map[string]any{"k": "v"})
	require.NoError(t, err)
	mgr.Stop()

	ex.setStatus(exchange.OrderID(order.OrderID), domain.OrderStatusRejected)
	mgr.CheckOnce(context.Background())
	mgr.Stop()

	assert.Len(t, mgr.Failed(), 1)
	// the failed order should have been resubmitted as a new pending order
	assert.Len(t, mgr.Pending(), 1)
}

func TestCheckOnceDoesNotRetrySellOrders(t *testing.T) {
	ex := newFakeExchange()
	mgr := NewManager(ex, FillHandlers{}, testLogger())

	order, err := mgr.Submit(context.Background(), domain.ModeTestnet, "ETH", domain.SideSell, exchange.OrderTypeMarket, 2, 0, nil)
	require.NoError(t, err)
	mgr.Stop()

	ex.setStatus(exchange.OrderID(order.OrderID), domain.OrderStatusCanceled)
	mgr.CheckOnce(context.Background())

	assert.Len(t, mgr.Failed(), 1)
	assert.Empty(t, mgr.Pending())
}
