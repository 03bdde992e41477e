package exchange

import "github.com/ajitpratap0/cryptofunk/internal/domain"

// OrderID identifies an order at the exchange. Binance returns int64 order
// IDs; they're carried as strings end to end so PendingOrder/Store never
// need to know the underlying exchange's ID type.
type OrderID string

// OrderAck is createOrder's return value.
type OrderAck struct {
	OrderID OrderID
}

// OrderStatusReport is getOrder's return value.
type OrderStatusReport struct {
	Status               domain.OrderStatus
	ExecutedQty          float64
	AvgPrice             float64
	CummulativeQuoteQty  float64
}

// Ticker24h is the 24h ticker window returned by getTicker24h.
type Ticker24h struct {
	Coin               string
	LastPrice          float64
	PriceChangePercent float64
	Volume             float64
	QuoteVolume        float64
	High               float64
	Low                float64
}

// Balance is one asset line of a wallet snapshot.
type Balance struct {
	Asset  string
	Free   float64
	Locked float64
}

// Wallet is getWallet's return value.
type Wallet struct {
	AvailableBalance float64
	Balances         []Balance
}

// KeyTestResult is testKeys's return value.
type KeyTestResult struct {
	OK      bool
	Message string
}
