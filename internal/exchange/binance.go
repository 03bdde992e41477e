package exchange

import (
	"context"
	"fmt"
	"strconv"

	binance "github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog"

	"github.com/ajitpratap0/cryptofunk/internal/config"
	"github.com/ajitpratap0/cryptofunk/internal/domain"
)

// BinanceClient implements Client against the real Binance REST API, built
// with binance.NewClient and NewListPricesService/
// NewListPriceChangeStatsService for ticker reads. Every call here takes an
// explicit mode, so rather than toggling a single package-level
// binance.UseTestnet flag this holds one *binance.Client per mode and
// selects between them, letting a scanner process hold live and testnet
// credentials side by side rather than only one at a time.
type BinanceClient struct {
	testnet *binance.Client
	live    *binance.Client
	log     zerolog.Logger
}

// NewBinanceClient builds a dual-mode Binance client from exchange config.
func NewBinanceClient(cfg config.ExchangeConfig, log zerolog.Logger) *BinanceClient {
	testnetClient := binance.NewClient(cfg.TestnetAPIKey, cfg.TestnetSecret)
	testnetClient.BaseURL = "https://testnet.binance.vision"

	liveClient := binance.NewClient(cfg.APIKey, cfg.SecretKey)

	return &BinanceClient{
		testnet: testnetClient,
		live:    liveClient,
		log:     log.With().Str("component", "binance_client").Logger(),
	}
}

func (b *BinanceClient) clientFor(mode domain.TradingMode) *binance.Client {
	if mode == domain.ModeLive {
		return b.live
	}
	return b.testnet
}

func symbol(coin string) string { return coin }

// GetKlines takes no trading mode: candle history is market data,
// read from the live feed regardless of whether orders route to testnet or
// live, since Binance's testnet order book does not track real prices.
func (b *BinanceClient) GetKlines(ctx context.Context, coin, timeframe string, limit int) ([]domain.Candle, error) {
	raw, err := b.live.NewKlinesService().
		Symbol(symbol(coin)).
		Interval(timeframe).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("exchange: get klines %s/%s: %w", coin, timeframe, err)
	}
	out := make([]domain.Candle, len(raw))
	for i, k := range raw {
		out[i] = domain.Candle{
			Time:   k.OpenTime,
			Open:   parseFloat(k.Open),
			High:   parseFloat(k.High),
			Low:    parseFloat(k.Low),
			Close:  parseFloat(k.Close),
			Volume: parseFloat(k.Volume),
		}
	}
	return out, nil
}

func (b *BinanceClient) GetTickerPrice(ctx context.Context, coin string, mode domain.TradingMode) (float64, error) {
	prices, err := b.clientFor(mode).NewListPricesService().Symbol(symbol(coin)).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("exchange: get ticker price %s: %w", coin, err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("exchange: no price for %s", coin)
	}
	return parseFloat(prices[0].Price), nil
}

func (b *BinanceClient) GetTickerPriceBatch(ctx context.Context, coins []string, mode domain.TradingMode) (map[string]float64, error) {
	prices, err := b.clientFor(mode).NewListPricesService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("exchange: get ticker price batch: %w", err)
	}
	want := make(map[string]bool, len(coins))
	for _, c := range coins {
		want[c] = true
	}
	out := make(map[string]float64, len(coins))
	for _, p := range prices {
		if want[p.Symbol] {
			out[p.Symbol] = parseFloat(p.Price)
		}
	}
	return out, nil
}

func (b *BinanceClient) GetTicker24h(ctx context.Context, coin string, mode domain.TradingMode) (Ticker24h, error) {
	stats, err := b.clientFor(mode).NewListPriceChangeStatsService().Symbol(symbol(coin)).Do(ctx)
	if err != nil {
		return Ticker24h{}, fmt.Errorf("exchange: get ticker24h %s: %w", coin, err)
	}
	if len(stats) == 0 {
		return Ticker24h{}, fmt.Errorf("exchange: no 24h ticker for %s", coin)
	}
	return ticker24hFromStats(stats[0]), nil
}

func (b *BinanceClient) GetTicker24hBatch(ctx context.Context, coins []string, mode domain.TradingMode) (map[string]Ticker24h, error) {
	stats, err := b.clientFor(mode).NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("exchange: get ticker24h batch: %w", err)
	}
	want := make(map[string]bool, len(coins))
	for _, c := range coins {
		want[c] = true
	}
	out := make(map[string]Ticker24h, len(coins))
	for _, s := range stats {
		if want[s.Symbol] {
			out[s.Symbol] = ticker24hFromStats(s)
		}
	}
	return out, nil
}

func ticker24hFromStats(s *binance.PriceChangeStats) Ticker24h {
	return Ticker24h{
		Coin:               s.Symbol,
		LastPrice:          parseFloat(s.LastPrice),
		PriceChangePercent: parseFloat(s.PriceChangePercent),
		Volume:             parseFloat(s.Volume),
		QuoteVolume:        parseFloat(s.QuoteVolume),
		High:               parseFloat(s.HighPrice),
		Low:                parseFloat(s.LowPrice),
	}
}

func (b *BinanceClient) CreateOrder(ctx context.Context, mode domain.TradingMode, coin string, side domain.OrderSide, orderType OrderType, quantity float64, price float64) (OrderAck, error) {
	binanceSide := binance.SideTypeBuy
	if side == domain.SideSell {
		binanceSide = binance.SideTypeSell
	}

	svc := b.clientFor(mode).NewCreateOrderService().
		Symbol(symbol(coin)).
		Side(binanceSide).
		Quantity(strconv.FormatFloat(quantity, 'f', -1, 64))

	switch orderType {
	case OrderTypeLimit:
		svc = svc.Type(binance.OrderTypeLimit).
			TimeInForce(binance.TimeInForceTypeGTC).
			Price(strconv.FormatFloat(price, 'f', -1, 64))
	default:
		svc = svc.Type(binance.OrderTypeMarket)
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return OrderAck{}, fmt.Errorf("exchange: create order %s: %w", coin, err)
	}
	return OrderAck{OrderID: OrderID(strconv.FormatInt(resp.OrderID, 10))}, nil
}

func (b *BinanceClient) GetOrder(ctx context.Context, mode domain.TradingMode, coin string, orderID OrderID) (OrderStatusReport, error) {
	id, err := strconv.ParseInt(string(orderID), 10, 64)
	if err != nil {
		return OrderStatusReport{}, fmt.Errorf("exchange: invalid order id %q: %w", orderID, err)
	}
	order, err := b.clientFor(mode).NewGetOrderService().Symbol(symbol(coin)).OrderID(id).Do(ctx)
	if err != nil {
		return OrderStatusReport{}, fmt.Errorf("exchange: get order %s/%s: %w", coin, orderID, err)
	}
	return OrderStatusReport{
		Status:              mapBinanceStatus(order.Status),
		ExecutedQty:         parseFloat(order.ExecutedQuantity),
		AvgPrice:            avgPrice(order),
		CummulativeQuoteQty: parseFloat(order.CummulativeQuoteQuantity),
	}, nil
}

func avgPrice(order *binance.Order) float64 {
	executed := parseFloat(order.ExecutedQuantity)
	if executed == 0 {
		return 0
	}
	return parseFloat(order.CummulativeQuoteQuantity) / executed
}

// mapBinanceStatus translates Binance's order status strings to
// domain.OrderStatus (NEW, PENDING_NEW, PARTIALLY_FILLED, FILLED, CANCELED,
// REJECTED, EXPIRED).
func mapBinanceStatus(s binance.OrderStatusType) domain.OrderStatus {
	switch s {
	case binance.OrderStatusTypeNew:
		return domain.OrderStatusNew
	case binance.OrderStatusTypePendingNew:
		return domain.OrderStatusPendingNew
	case binance.OrderStatusTypePartiallyFilled:
		return domain.OrderStatusPartiallyFilled
	case binance.OrderStatusTypeFilled:
		return domain.OrderStatusFilled
	case binance.OrderStatusTypeCanceled:
		return domain.OrderStatusCanceled
	case binance.OrderStatusTypeRejected:
		return domain.OrderStatusRejected
	case binance.OrderStatusTypeExpired:
		return domain.OrderStatusExpired
	default:
		return domain.OrderStatusNew
	}
}

func (b *BinanceClient) GetWallet(ctx context.Context, mode domain.TradingMode) (Wallet, error) {
	account, err := b.clientFor(mode).NewGetAccountService().Do(ctx)
	if err != nil {
		return Wallet{}, fmt.Errorf("exchange: get wallet: %w", err)
	}
	balances := make([]Balance, 0, len(account.Balances))
	available := 0.0
	for _, bal := range account.Balances {
		free := parseFloat(bal.Free)
		balances = append(balances, Balance{Asset: bal.Asset, Free: free, Locked: parseFloat(bal.Locked)})
		if bal.Asset == "USDT" {
			available = free
		}
	}
	return Wallet{AvailableBalance: available, Balances: balances}, nil
}

func (b *BinanceClient) TestKeys(ctx context.Context, mode domain.TradingMode) (KeyTestResult, error) {
	_, err := b.clientFor(mode).NewGetAccountService().Do(ctx)
	if err != nil {
		return KeyTestResult{OK: false, Message: err.Error()}, nil
	}
	return KeyTestResult{OK: true, Message: "keys valid"}, nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
