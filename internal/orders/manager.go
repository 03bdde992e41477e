// Package orders implements PendingOrderManager: track
// submitted exchange orders from submission to a terminal state, retry
// failed BUY orders, and convert fills into domain events via caller-
// supplied handlers. Polling runs in a single goroutine gated on "is there
// anything to do": it starts on the first Submit and exits once no order is
// pending, rather than being left running idle. Orders are kept in explicit
// pending and failed buckets.
package orders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
	"github.com/ajitpratap0/cryptofunk/internal/exchange"
	"github.com/ajitpratap0/cryptofunk/internal/metrics"
)

const (
	pollInterval   = 10 * time.Second
	maxRetries     = 3
	maxPendingTime = 300 * time.Second
)

// Fill is the terminal exchange execution report passed to a FillHandler,
// a trimmed view of exchange.OrderStatusReport.
type Fill struct {
	ExecutedQty         float64
	AvgPrice            float64
	CummulativeQuoteQty float64
}

// FillHandlers are supplied by PositionManager so this package never
// imports internal/positions: a BUY fill creates a position, a SELL fill
// closes one. Both receive the PendingOrder's metadata verbatim.
type FillHandlers struct {
	OnBuyFilled  func(ctx context.Context, meta map[string]any, fill Fill) error
	OnSellFilled func(ctx context.Context, meta map[string]any, fill Fill) error
}

// Manager tracks PendingOrders in memory only and polls the exchange until each reaches a terminal state.
type Manager struct {
	exchange exchange.Client
	handlers FillHandlers
	log      zerolog.Logger

	mu      sync.Mutex
	pending map[exchange.OrderID]*domain.PendingOrder
	failed  map[exchange.OrderID]*domain.PendingOrder

	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// NewManager builds a Manager. handlers may be set later with SetHandlers
// if PositionManager isn't constructed yet (they share a cyclic wiring
// dependency resolved at composition-root time).
func NewManager(client exchange.Client, handlers FillHandlers, log zerolog.Logger) *Manager {
	return &Manager{
		exchange: client,
		handlers: handlers,
		log:      log.With().Str("component", "pending_order_manager").Logger(),
		pending:  make(map[exchange.OrderID]*domain.PendingOrder),
		failed:   make(map[exchange.OrderID]*domain.PendingOrder),
	}
}

// SetHandlers wires the fill callbacks after construction.
func (m *Manager) SetHandlers(h FillHandlers) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = h
}

// Submit places a new order and begins tracking it to a terminal state.
func (m *Manager) Submit(ctx context.Context, mode domain.TradingMode, coin string, side domain.OrderSide, orderType exchange.OrderType, quantity, price float64, metadata map[string]any) (*domain.PendingOrder, error) {
	ack, err := m.exchange.CreateOrder(ctx, mode, coin, side, orderType, quantity, price)
	if err != nil {
		return nil, fmt.Errorf("orders: submit %s %s: %w", side, coin, err)
	}

	order := &domain.PendingOrder{
		OrderID:     string(ack.OrderID),
		Coin:        coin,
		Side:        side,
		Quantity:    quantity,
		Price:       price,
		TradingMode: mode,
		SubmittedAt: time.Now(),
		Status:      domain.PendingStatePending,
		Metadata:    metadata,
	}

	m.mu.Lock()
	m.pending[ack.OrderID] = order
	shouldStart := m.loopCancel == nil
	pendingCount := len(m.pending)
	m.mu.Unlock()
	metrics.GetOrCreateScannerMetrics().PendingOrders.Set(float64(pendingCount))

	m.log.Info().Str("order_id", order.OrderID).Str("coin", coin).Str("side", string(side)).
		Float64("quantity", quantity).Msg("order submitted")

	if shouldStart {
		m.startLoop(ctx)
	}
	return order, nil
}

// Pending returns a snapshot of every currently-tracked order.
func (m *Manager) Pending() []*domain.PendingOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.PendingOrder, 0, len(m.pending))
	for _, o := range m.pending {
		out = append(out, o)
	}
	return out
}

// Failed returns every order that reached a terminal failure and was not
// (or could not be) retried.
func (m *Manager) Failed() []*domain.PendingOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.PendingOrder, 0, len(m.failed))
	for _, o := range m.failed {
		out = append(out, o)
	}
	return out
}

// startLoop launches the single polling goroutine; it exits once the
// pending map drains.
func (m *Manager) startLoop(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	m.mu.Lock()
	m.loopCancel = cancel
	m.loopDone = done
	m.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				m.checkOnce(loopCtx)
				m.mu.Lock()
				empty := len(m.pending) == 0
				if empty {
					m.loopCancel = nil
					m.loopDone = nil
				}
				m.mu.Unlock()
				if empty {
					return
				}
			}
		}
	}()
}

// Stop cancels the polling loop, if running, without waiting for it.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.loopCancel
	m.loopCancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// CheckOnce polls every tracked order exactly once; exported so Scanner can
// use a cycle as a nudge independent of the loop's own
// 10 s cadence.
func (m *Manager) CheckOnce(ctx context.Context) {
	m.checkOnce(ctx)
}

func (m *Manager) checkOnce(ctx context.Context) {
	m.mu.Lock()
	orderIDs := make([]exchange.OrderID, 0, len(m.pending))
	for id := range m.pending {
		orderIDs = append(orderIDs, id)
	}
	m.mu.Unlock()

	for _, id := range orderIDs {
		m.pollOne(ctx, id)
	}
}

func (m *Manager) pollOne(ctx context.Context, id exchange.OrderID) {
	m.mu.Lock()
	order, ok := m.pending[id]
	m.mu.Unlock()
	if !ok {
		return
	}

	if time.Since(order.SubmittedAt) > maxPendingTime {
		m.fail(ctx, id, order, "expired: exceeded max pending time")
		return
	}

	report, err := m.exchange.GetOrder(ctx, order.TradingMode, order.Coin, id)
	now := time.Now()
	if err != nil {
		m.mu.Lock()
		order.RetryCount++
		order.LastChecked = now
		order.Checks = append(order.Checks, domain.StatusSnapshot{CheckedAt: now, Message: err.Error()})
		retries := order.RetryCount
		m.mu.Unlock()

		m.log.Warn().Err(err).Str("order_id", order.OrderID).Int("retry", retries).Msg("poll failed")
		if retries >= maxRetries {
			m.fail(ctx, id, order, "exceeded max poll retries")
		}
		return
	}

	m.mu.Lock()
	order.LastChecked = now
	order.Checks = append(order.Checks, domain.StatusSnapshot{CheckedAt: now, Status: report.Status})
	m.mu.Unlock()

	switch report.Status {
	case domain.OrderStatusNew, domain.OrderStatusPendingNew:
		// stays PENDING
	case domain.OrderStatusPartiallyFilled:
		m.mu.Lock()
		order.Status = domain.PendingStatePartial
		m.mu.Unlock()
		m.log.Info().Str("order_id", order.OrderID).Msg("order partially filled")
	case domain.OrderStatusFilled:
		m.onFilled(ctx, id, order, report)
	case domain.OrderStatusCanceled, domain.OrderStatusRejected, domain.OrderStatusExpired:
		m.fail(ctx, id, order, fmt.Sprintf("terminal exchange status %s", report.Status))
	}
}

func (m *Manager) onFilled(ctx context.Context, id exchange.OrderID, order *domain.PendingOrder, report exchange.OrderStatusReport) {
	m.mu.Lock()
	order.Status = domain.PendingStateFilled
	delete(m.pending, id)
	pendingCount := len(m.pending)
	handlers := m.handlers
	m.mu.Unlock()
	metrics.GetOrCreateScannerMetrics().PendingOrders.Set(float64(pendingCount))

	fill := Fill{ExecutedQty: report.ExecutedQty, AvgPrice: report.AvgPrice, CummulativeQuoteQty: report.CummulativeQuoteQty}

	var err error
	switch order.Side {
	case domain.SideBuy:
		if handlers.OnBuyFilled != nil {
			err = handlers.OnBuyFilled(ctx, order.Metadata, fill)
		}
	case domain.SideSell:
		if handlers.OnSellFilled != nil {
			err = handlers.OnSellFilled(ctx, order.Metadata, fill)
		}
	}
	if err != nil {
		m.log.Error().Err(err).Str("order_id", order.OrderID).Msg("fill handler failed")
	}
	m.log.Info().Str("order_id", order.OrderID).Str("side", string(order.Side)).
		Float64("avg_price", fill.AvgPrice).Msg("order filled")
}

// fail moves an order to failedOrders and, for BUY orders under the retry
// budget, resubmits it with the same parameters.
func (m *Manager) fail(ctx context.Context, id exchange.OrderID, order *domain.PendingOrder, reason string) {
	m.mu.Lock()
	order.Status = domain.PendingStateFailed
	delete(m.pending, id)
	m.failed[id] = order
	pendingCount := len(m.pending)
	m.mu.Unlock()
	metrics.GetOrCreateScannerMetrics().PendingOrders.Set(float64(pendingCount))

	m.log.Warn().Str("order_id", order.OrderID).Str("reason", reason).Msg("order failed")

	if order.Side != domain.SideBuy || order.RetryCount >= maxRetries {
		return
	}

	retryCount := order.RetryCount + 1
	resubmitted, err := m.Submit(ctx, order.TradingMode, order.Coin, order.Side, exchange.OrderTypeMarket, order.Quantity, order.Price, order.Metadata)
	if err != nil {
		m.log.Error().Err(err).Str("coin", order.Coin).Msg("retry resubmit failed")
		return
	}
	resubmitted.RetryCount = retryCount
	m.log.Info().Str("order_id", resubmitted.OrderID).Int("retry_count", retryCount).Msg("order resubmitted after failure")
}
