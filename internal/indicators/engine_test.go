package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
)

func sampleCandles(n int, start float64, step float64) []domain.Candle {
	out := make([]domain.Candle, n)
	price := start
	for i := 0; i < n; i++ {
		price += step
		out[i] = domain.Candle{
			Time:   time.Now().Add(time.Duration(i) * time.Minute).UnixMilli(),
			Open:   price - step,
			High:   price + math.Abs(step)/2 + 0.5,
			Low:    price - math.Abs(step)/2 - 0.5,
			Close:  price,
			Volume: 100 + float64(i),
		}
	}
	return out
}

func TestEngineComputeRSI(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	candles := sampleCandles(40, 44.0, 0.5)
	specs := []domain.SignalSpec{{Type: domain.IndicatorRSI, Value: "oversold_entry"}}

	series, err := e.Compute(candles, specs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rsi, ok := series[domain.IndicatorRSI]
	if !ok {
		t.Fatal("expected rsi series")
	}
	if len(rsi.Primary) != len(candles) {
		t.Fatalf("expected series aligned with candles: got %d want %d", len(rsi.Primary), len(candles))
	}
	last := rsi.Primary[len(rsi.Primary)-1]
	if math.IsNaN(last) {
		t.Fatal("expected non-NaN RSI after warmup")
	}
	if last < 0 || last > 100 {
		t.Fatalf("RSI out of range: %v", last)
	}
	// Uptrending series should read overbought, not oversold.
	if last < 50 {
		t.Fatalf("expected RSI above midpoint for uptrend, got %v", last)
	}
}

func TestEngineComputeMACDCrossover(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	candles := sampleCandles(60, 100, 1.0)
	specs := []domain.SignalSpec{{Type: domain.IndicatorMACD, Value: "bullish_cross"}}

	series, err := e.Compute(candles, specs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	macd := series[domain.IndicatorMACD]
	if macd.Aux["signal"] == nil || macd.Aux["histogram"] == nil {
		t.Fatal("expected signal and histogram aux lines")
	}
}

func TestEngineComputeUnknownKind(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	candles := sampleCandles(10, 1, 1)
	_, err := e.Compute(candles, []domain.SignalSpec{{Type: "not_a_kind"}})
	if err == nil {
		t.Fatal("expected error for unknown indicator kind")
	}
}

func TestEngineComputeEmptyCandles(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	_, err := e.Compute(nil, []domain.SignalSpec{{Type: domain.IndicatorRSI}})
	if err == nil {
		t.Fatal("expected error for empty candle set")
	}
}

func TestMaxWarmup(t *testing.T) {
	specs := []domain.SignalSpec{
		{Type: domain.IndicatorRSI, Parameters: map[string]any{"period": 14}},
		{Type: domain.IndicatorMACD, Parameters: map[string]any{"slow_period": 26, "signal_period": 9}},
	}
	got := MaxWarmup(specs)
	if got != 36 {
		t.Fatalf("expected macd warmup (26+9+1=36) to dominate, got %d", got)
	}
}

func TestBollingerBandWidening(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	candles := sampleCandles(50, 100, 0.1)
	series, err := e.Compute(candles, []domain.SignalSpec{{Type: domain.IndicatorBollinger}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bb := series[domain.IndicatorBollinger]
	last := len(bb.Primary) - 1
	if bb.Aux["upper"][last] <= bb.Primary[last] {
		t.Fatal("expected upper band above middle")
	}
	if bb.Aux["lower"][last] >= bb.Primary[last] {
		t.Fatal("expected lower band below middle")
	}
}

func TestCdlEngulfingFlagsBullishEngulfing(t *testing.T) {
	candles := []domain.Candle{
		{Open: 10, High: 10.2, Low: 9.8, Close: 9.9},
		{Open: 9.9, High: 10.5, Low: 9.7, Close: 10.4}, // bullish engulfing vs prior
	}
	series := cdlEngulfingSeries(candles)
	if series.Primary[1] != 1 {
		t.Fatalf("expected engulfing pattern detected, got %v", series.Primary[1])
	}
	if series.Primary[0] != 0 && !math.IsNaN(series.Primary[0]) {
		t.Fatalf("expected first bar unflagged, got %v", series.Primary[0])
	}
}
