// Package exchange provides a coin/mode/kline-centric ExchangeClient against
// a real exchange (BinanceClient) and a deterministic paper-trading
// substitute (MockClient) that ignores the trading mode.
package exchange

import (
	"context"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
)

// Client is the ExchangeClient contract: every call the Scanner,
// PositionManager and PendingOrderManager make to the outside world.
type Client interface {
	// GetKlines returns up to limit candles for coin/timeframe, oldest first.
	GetKlines(ctx context.Context, coin, timeframe string, limit int) ([]domain.Candle, error)

	// GetTickerPrice returns coin's last traded price.
	GetTickerPrice(ctx context.Context, coin string, mode domain.TradingMode) (float64, error)

	// GetTickerPriceBatch returns last traded price for every coin in coins,
	// keyed by coin. A coin the exchange has no ticker for is omitted.
	GetTickerPriceBatch(ctx context.Context, coins []string, mode domain.TradingMode) (map[string]float64, error)

	// GetTicker24h returns the 24h rolling window ticker for coin.
	GetTicker24h(ctx context.Context, coin string, mode domain.TradingMode) (Ticker24h, error)

	// GetTicker24hBatch is GetTicker24h batched across coins.
	GetTicker24hBatch(ctx context.Context, coins []string, mode domain.TradingMode) (map[string]Ticker24h, error)

	// CreateOrder submits a new order. price is ignored for market orders.
	CreateOrder(ctx context.Context, mode domain.TradingMode, coin string, side domain.OrderSide, orderType OrderType, quantity float64, price float64) (OrderAck, error)

	// GetOrder polls an order's current state.
	GetOrder(ctx context.Context, mode domain.TradingMode, coin string, orderID OrderID) (OrderStatusReport, error)

	// GetWallet returns the account's current balances.
	GetWallet(ctx context.Context, mode domain.TradingMode) (Wallet, error)

	// TestKeys validates that the configured credentials for mode are live.
	TestKeys(ctx context.Context, mode domain.TradingMode) (KeyTestResult, error)
}

// OrderType distinguishes market and limit orders.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)
