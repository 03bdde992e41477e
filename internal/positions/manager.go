// Package positions implements PositionManager: convert
// SignalDetectionEngine matches into submitted BUY orders, monitor open
// positions for stop-loss/take-profit/time-exit, and submit SELL orders on
// exit. Grounded on internal/risk/sizing.go (the ATR/Kelly formulas it
// calls) and internal/store's JSON-body persistence pattern for
// LivePosition/Trade; the order-submission plumbing reuses
// internal/orders.Manager rather than talking to the exchange directly.
package positions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
	"github.com/ajitpratap0/cryptofunk/internal/exchange"
	"github.com/ajitpratap0/cryptofunk/internal/orders"
	"github.com/ajitpratap0/cryptofunk/internal/risk"
)

// minimumTradeValue is the exchange's practical minimum notional per order;
// guarding against it avoids submitting orders the exchange will reject for
// being too small.
const minimumTradeValue = 10.0

// defaultKellyFraction is quarter-Kelly, the conservative scaling
// risk.SizeKelly's own doc comment recommends.
const defaultKellyFraction = 0.25

const (
	metaKeyPositionID   = "positionId"
	metaKeyStrategyName = "strategyName"
	metaKeyCoin         = "coin"
	metaKeyDirection    = "direction"
	metaKeyAtr          = "atr"
	metaKeyWalletID     = "walletId"
	metaKeyMode         = "mode"
	metaKeySignals      = "signals"
	metaKeyConviction   = "convictionScore"
	metaKeyRegime       = "regime"
	metaKeyStopLoss     = "stopLossPrice"
	metaKeyTakeProfit   = "takeProfitPrice"
	metaKeyEntryTime    = "entryTime"
	metaKeyExitReason   = "exitReason"
)

// PriceSource is the narrow contract Manager needs on PriceCache.
type PriceSource interface {
	GetPrice(ctx context.Context, coin string, mode domain.TradingMode) (float64, error)
}

// OrderSubmitter is the narrow contract Manager needs on orders.Manager.
type OrderSubmitter interface {
	Submit(ctx context.Context, mode domain.TradingMode, coin string, side domain.OrderSide, orderType exchange.OrderType, quantity, price float64, metadata map[string]any) (*domain.PendingOrder, error)
}

// Store is the narrow persistence contract Manager needs.
type Store interface {
	SaveLivePosition(ctx context.Context, pos *domain.LivePosition) error
	DeleteLivePosition(ctx context.Context, positionID string) error
	SaveTrade(ctx context.Context, trade *domain.Trade) error
	ListTradesForStrategy(ctx context.Context, strategyName string, limit int) ([]domain.Trade, error)
}

// Manager is spec §4.7's PositionManager. The positions map is the single
// mutable source of truth for open positions.
type Manager struct {
	store  Store
	orders OrderSubmitter
	prices PriceSource
	log    zerolog.Logger

	mu          sync.Mutex
	positions   map[string]*domain.LivePosition
	outstanding map[string]bool // positionId -> an order is in flight for it
}

// NewManager builds a Manager.
func NewManager(store Store, orderMgr OrderSubmitter, prices PriceSource, log zerolog.Logger) *Manager {
	return &Manager{
		store:       store,
		orders:      orderMgr,
		prices:      prices,
		log:         log.With().Str("component", "position_manager").Logger(),
		positions:   make(map[string]*domain.LivePosition),
		outstanding: make(map[string]bool),
	}
}

// FillHandlers returns the callbacks orders.Manager invokes on terminal
// fills, wiring BUY fills to position creation and SELL fills to trade
// finalization.
func (m *Manager) FillHandlers() orders.FillHandlers {
	return orders.FillHandlers{
		OnBuyFilled:  m.onBuyFilled,
		OnSellFilled: m.onSellFilled,
	}
}

// LoadOpen seeds the in-memory map from persisted state, used on scanner
// start/restart.
func (m *Manager) LoadOpen(positions []*domain.LivePosition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range positions {
		m.positions[p.PositionID] = p
	}
}

// Open implements spec §4.7's open path for one signal match.
func (m *Manager) Open(ctx context.Context, match domain.SignalMatch, strategy *domain.Strategy, atr float64, wallet exchange.Wallet, settings domain.Settings, mode domain.TradingMode) error {
	m.mu.Lock()
	openCount := 0
	for _, p := range m.positions {
		if p.Status == domain.PositionOpen || p.Status == domain.PositionPending {
			openCount++
		}
	}
	m.mu.Unlock()

	minRequired := settings.DefaultPositionSize
	if minimumTradeValue > minRequired {
		minRequired = minimumTradeValue
	}
	if wallet.AvailableBalance < minRequired {
		return fmt.Errorf("positions: insufficient wallet balance %.2f (need %.2f)", wallet.AvailableBalance, minRequired)
	}
	if openCount >= settings.MaxPositions {
		return fmt.Errorf("positions: at max open positions (%d)", settings.MaxPositions)
	}

	var quantity, positionValue float64
	if settings.UseWinStrategySize {
		sizing, err := m.sizeForStrategy(ctx, strategy, wallet.AvailableBalance, atr, match.Price)
		if err != nil {
			return err
		}
		quantity = sizing.Quantity
		positionValue = sizing.PositionValue
	} else {
		quantity = settings.DefaultPositionSize / match.Price
		positionValue = settings.DefaultPositionSize
	}
	if quantity <= 0 {
		return fmt.Errorf("positions: computed non-positive quantity for %s", match.Coin)
	}

	stopLossPrice, takeProfitPrice := stopTakeLevels(match.Direction, match.Price, atr, strategy.StopLossAtrMultiplier, strategy.TakeProfitAtrMultiplier)

	positionID := uuid.New().String()
	metadata := map[string]any{
		metaKeyPositionID:   positionID,
		metaKeyStrategyName: strategy.ID,
		metaKeyCoin:         match.Coin,
		metaKeyDirection:    string(match.Direction),
		metaKeyAtr:          atr,
		metaKeyWalletID:     "default",
		metaKeyMode:         string(mode),
		metaKeySignals:      match.Signals,
		metaKeyConviction:   match.CombinedStrength,
		metaKeyRegime:       string(match.MarketRegime),
		metaKeyStopLoss:     stopLossPrice,
		metaKeyTakeProfit:   takeProfitPrice,
		metaKeyEntryTime:    time.Now(),
	}

	m.mu.Lock()
	m.positions[positionID] = &domain.LivePosition{
		PositionID:      positionID,
		StrategyName:    strategy.ID,
		Coin:            match.Coin,
		Direction:       match.Direction,
		EntryPrice:      match.Price,
		CurrentPrice:    match.Price,
		Quantity:        quantity,
		EntryValue:      positionValue,
		EntryTime:       time.Now(),
		Status:          domain.PositionPending,
		AtrAtEntry:      atr,
		StopLossPrice:   stopLossPrice,
		TakeProfitPrice: takeProfitPrice,
		MaxPriceSeen:    match.Price,
		ConvictionScore: match.CombinedStrength,
		MarketRegime:    match.MarketRegime,
		TriggerSignals:  signalSpecsOf(match.Signals),
		LastPriceUpdate: time.Now(),
	}
	m.outstanding[positionID] = true
	m.mu.Unlock()

	_, err := m.orders.Submit(ctx, mode, match.Coin, domain.SideBuy, exchange.OrderTypeMarket, quantity, 0, metadata)
	if err != nil {
		m.mu.Lock()
		delete(m.positions, positionID)
		delete(m.outstanding, positionID)
		m.mu.Unlock()
		return fmt.Errorf("positions: submit buy order: %w", err)
	}
	return nil
}

func (m *Manager) sizeForStrategy(ctx context.Context, strategy *domain.Strategy, capital, atr, price float64) (risk.SizingResult, error) {
	if strategy.SizingMethod == domain.SizingKelly {
		trades, err := m.store.ListTradesForStrategy(ctx, strategy.ID, 200)
		if err != nil {
			return risk.SizingResult{}, fmt.Errorf("positions: loading trade history for kelly sizing: %w", err)
		}
		stats := risk.KellyStatsFromTrades(trades)
		positionValue, _ := risk.SizeKelly(stats, capital, defaultKellyFraction)
		quantity := 0.0
		if price > 0 {
			quantity = positionValue / price
		}
		return risk.SizingResult{Quantity: quantity, PositionValue: positionValue}, nil
	}

	return risk.SizeATR(risk.ATRSizingInput{
		WalletBalance:           capital,
		RiskPercentage:          strategy.RiskPercentage,
		StopLossAtrMultiplier:   strategy.StopLossAtrMultiplier,
		TakeProfitAtrMultiplier: strategy.TakeProfitAtrMultiplier,
		ATR:                     atr,
		Price:                   price,
	}), nil
}

// onBuyFilled finalizes a position once its entry order fills.
func (m *Manager) onBuyFilled(ctx context.Context, meta map[string]any, fill orders.Fill) error {
	positionID, _ := meta[metaKeyPositionID].(string)

	m.mu.Lock()
	pos, ok := m.positions[positionID]
	if ok {
		pos.Status = domain.PositionOpen
		if fill.AvgPrice > 0 {
			pos.EntryPrice = fill.AvgPrice
			pos.CurrentPrice = fill.AvgPrice
			pos.MaxPriceSeen = fill.AvgPrice
		}
		if fill.ExecutedQty > 0 {
			pos.Quantity = fill.ExecutedQty
		}
		delete(m.outstanding, positionID)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("positions: buy fill for unknown position %s", positionID)
	}
	if err := m.store.SaveLivePosition(ctx, pos); err != nil {
		return fmt.Errorf("positions: persist opened position: %w", err)
	}
	m.log.Info().Str("position_id", positionID).Str("coin", pos.Coin).
		Float64("entry_price", pos.EntryPrice).Msg("position opened")
	return nil
}

// onSellFilled closes a position once its exit order fills.
func (m *Manager) onSellFilled(ctx context.Context, meta map[string]any, fill orders.Fill) error {
	positionID, _ := meta[metaKeyPositionID].(string)
	exitReason, _ := meta[metaKeyExitReason].(string)

	m.mu.Lock()
	pos, ok := m.positions[positionID]
	if ok {
		delete(m.positions, positionID)
		delete(m.outstanding, positionID)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("positions: sell fill for unknown position %s", positionID)
	}

	exitPrice := fill.AvgPrice
	if exitPrice == 0 {
		exitPrice = pos.CurrentPrice
	}
	pnl := (exitPrice - pos.EntryPrice) * pos.Quantity
	pnlPercentage := 0.0
	if pos.EntryValue > 0 {
		pnlPercentage = pnl / pos.EntryValue * 100
	}

	trade := &domain.Trade{
		TradeID:         uuid.New().String(),
		PositionID:      positionID,
		StrategyName:    pos.StrategyName,
		Coin:            pos.Coin,
		Direction:       pos.Direction,
		EntryPrice:      pos.EntryPrice,
		ExitPrice:       exitPrice,
		Quantity:        pos.Quantity,
		PNL:             pnl,
		PNLPercentage:   pnlPercentage,
		EntryTime:       pos.EntryTime,
		ExitTime:        time.Now(),
		ExitReason:      domain.ExitReason(exitReason),
		TriggerSignals:  pos.TriggerSignals,
		ConvictionScore: pos.ConvictionScore,
		MarketRegime:    pos.MarketRegime,
	}

	if err := m.store.SaveTrade(ctx, trade); err != nil {
		return fmt.Errorf("positions: persist trade: %w", err)
	}
	if err := m.store.DeleteLivePosition(ctx, positionID); err != nil {
		return fmt.Errorf("positions: delete closed position: %w", err)
	}
	m.log.Info().Str("position_id", positionID).Str("exit_reason", exitReason).
		Float64("pnl", pnl).Msg("position closed")
	return nil
}

// MonitorAll implements spec §4.7's monitor path: refresh current price,
// advance trailing stops, check exit conditions, submit SELL orders on
// exit.
func (m *Manager) MonitorAll(ctx context.Context, strategies map[string]*domain.Strategy, mode domain.TradingMode) {
	m.mu.Lock()
	var open []*domain.LivePosition
	for _, p := range m.positions {
		if p.Status == domain.PositionOpen && !m.outstanding[p.PositionID] {
			open = append(open, p)
		}
	}
	m.mu.Unlock()

	for _, pos := range open {
		m.monitorOne(ctx, pos, strategies[pos.StrategyName], mode)
	}
}

func (m *Manager) monitorOne(ctx context.Context, pos *domain.LivePosition, strategy *domain.Strategy, mode domain.TradingMode) {
	price, err := m.prices.GetPrice(ctx, pos.Coin, mode)
	if err != nil {
		m.log.Warn().Err(err).Str("position_id", pos.PositionID).Msg("price refresh failed, skipping this cycle")
		return
	}

	isShort := pos.Direction == domain.DirectionShort

	m.mu.Lock()
	pos.CurrentPrice = price
	pos.LastPriceUpdate = time.Now()
	// MaxPriceSeen tracks the most favorable price reached: the high-water
	// mark for long, the low-water mark for short.
	if isShort {
		if price < pos.MaxPriceSeen {
			pos.MaxPriceSeen = price
		}
	} else if price > pos.MaxPriceSeen {
		pos.MaxPriceSeen = price
	}
	if strategy != nil && strategy.EnableTrailingTakeProfit {
		if isShort {
			trailing := pos.MaxPriceSeen * (1 + strategy.TrailingStopPercentage/100)
			if trailing < pos.StopLossPrice {
				pos.StopLossPrice = trailing
			}
		} else {
			trailing := pos.MaxPriceSeen * (1 - strategy.TrailingStopPercentage/100)
			if trailing > pos.StopLossPrice {
				pos.StopLossPrice = trailing
			}
		}
	}
	currentPrice := pos.CurrentPrice
	stopLoss := pos.StopLossPrice
	takeProfit := pos.TakeProfitPrice
	entryTime := pos.EntryTime
	m.mu.Unlock()

	var reason domain.ExitReason
	switch {
	case isShort && currentPrice >= stopLoss:
		reason = domain.ExitStopLoss
	case isShort && currentPrice <= takeProfit:
		reason = domain.ExitTakeProfit
	case !isShort && currentPrice <= stopLoss:
		reason = domain.ExitStopLoss
	case !isShort && currentPrice >= takeProfit:
		reason = domain.ExitTakeProfit
	case strategy != nil && time.Since(entryTime) >= time.Duration(strategy.EstimatedExitTimeMinutes)*time.Minute:
		reason = domain.ExitTimeExit
	default:
		return
	}

	m.closePosition(ctx, pos, reason, mode)
}

func (m *Manager) closePosition(ctx context.Context, pos *domain.LivePosition, reason domain.ExitReason, mode domain.TradingMode) {
	m.mu.Lock()
	if m.outstanding[pos.PositionID] {
		m.mu.Unlock()
		return
	}
	pos.Status = domain.PositionClosing
	m.outstanding[pos.PositionID] = true
	quantity := pos.Quantity
	coin := pos.Coin
	m.mu.Unlock()

	metadata := map[string]any{
		metaKeyPositionID: pos.PositionID,
		metaKeyExitReason: string(reason),
	}

	if _, err := m.orders.Submit(ctx, mode, coin, domain.SideSell, exchange.OrderTypeMarket, quantity, 0, metadata); err != nil {
		m.log.Error().Err(err).Str("position_id", pos.PositionID).Msg("submit exit order failed")
		m.mu.Lock()
		pos.Status = domain.PositionOpen
		delete(m.outstanding, pos.PositionID)
		m.mu.Unlock()
		return
	}
	m.log.Info().Str("position_id", pos.PositionID).Str("exit_reason", string(reason)).Msg("exit order submitted")
}

// Snapshot returns every tracked position regardless of status.
func (m *Manager) Snapshot() []*domain.LivePosition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.LivePosition, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, p)
	}
	return out
}

// stopTakeLevels implements spec §3's invariant that stopLossPrice <
// entryPrice < takeProfitPrice for long, inverted for short.
func stopTakeLevels(direction domain.Direction, entryPrice, atr, stopMultiplier, takeMultiplier float64) (stopLoss, takeProfit float64) {
	if direction == domain.DirectionShort {
		return entryPrice + atr*stopMultiplier, entryPrice - atr*takeMultiplier
	}
	return entryPrice - atr*stopMultiplier, entryPrice + atr*takeMultiplier
}

func signalSpecsOf(matched []domain.MatchedSignal) []domain.SignalSpec {
	out := make([]domain.SignalSpec, len(matched))
	for i, m := range matched {
		out[i] = m.SignalSpec
	}
	return out
}
