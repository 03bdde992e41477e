package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
)

func candlesWithCloses(closes []float64) []domain.Candle {
	candles := make([]domain.Candle, len(closes))
	base := time.Now().Add(-time.Duration(len(closes)) * 24 * time.Hour).UnixMilli()
	for i, c := range closes {
		candles[i] = domain.Candle{Time: base + int64(i)*86400000, Close: c}
	}
	return candles
}

func TestHistoricalDataFromCandles(t *testing.T) {
	candles := candlesWithCloses([]float64{100, 105, 110, 115})
	hist := HistoricalDataFromCandles(candles)

	assert.Len(t, hist.Prices, 4)
	assert.Len(t, hist.Returns, 3)
	assert.Equal(t, 100.0, hist.Prices[0])
	assert.InDelta(t, 0.05, hist.Returns[0], 0.001)
}

func TestWinRateFromTrades(t *testing.T) {
	trades := []domain.Trade{
		{PNL: 250.0},
		{PNL: 250.0},
		{PNL: -100.0},
	}

	data := WinRateFromTrades(trades)
	assert.Equal(t, int64(3), data.TotalTrades)
	assert.Equal(t, int64(2), data.WinningTrades)
	assert.Equal(t, int64(1), data.LosingTrades)
	assert.InDelta(t, 2.0/3.0, data.WinRate, 0.001)
	assert.Equal(t, 250.0, data.AvgWin)
	assert.Equal(t, 100.0, data.AvgLoss)
}

func TestWinRateFromTradesEmpty(t *testing.T) {
	data := WinRateFromTrades(nil)
	assert.Equal(t, int64(0), data.TotalTrades)
	assert.Equal(t, 0.0, data.WinRate)
}

func TestCalculateSharpeRatio(t *testing.T) {
	calculator := NewCalculator()
	returns := []float64{0.01, 0.02, -0.01, 0.015, 0.005, -0.005, 0.02, 0.01}

	sharpe, err := calculator.CalculateSharpeRatio(returns, 0.03)
	require.NoError(t, err)
	assert.Greater(t, sharpe, 0.0)
}

func TestCalculateSharpeRatioEmpty(t *testing.T) {
	calculator := NewCalculator()
	_, err := calculator.CalculateSharpeRatio(nil, 0.03)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "returns array is empty")
}

func TestCalculateSharpeRatioZeroStdDev(t *testing.T) {
	calculator := NewCalculator()
	returns := []float64{0.01, 0.01, 0.01, 0.01}
	_, err := calculator.CalculateSharpeRatio(returns, 0.03)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "standard deviation is zero")
}

func TestDetectMarketRegimeUptrend(t *testing.T) {
	calculator := NewCalculator()

	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 40000.0 + float64(i*500)
	}

	regime, err := calculator.DetectMarketRegime(candlesWithCloses(closes))
	require.NoError(t, err)
	assert.Equal(t, domain.RegimeUptrend, regime.Regime)
	assert.Greater(t, regime.ShortMA, 0.0)
	assert.Greater(t, regime.LongMA, 0.0)
	assert.Greater(t, regime.TrendStrength, 0.0)
}

func TestDetectMarketRegimeInsufficientData(t *testing.T) {
	calculator := NewCalculator()
	_, err := calculator.DetectMarketRegime(candlesWithCloses([]float64{50000.0}))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient data")
}

func TestCalculateVaR(t *testing.T) {
	calculator := NewCalculator()
	returns := []float64{
		0.02, 0.01, -0.03, 0.015, -0.02, 0.01, -0.01, 0.02,
		-0.04, 0.01, 0.005, -0.015, 0.02, -0.005, 0.03,
	}

	varValue, cvarValue, err := calculator.CalculateVaR(returns, 0.95)
	require.NoError(t, err)
	assert.Greater(t, varValue, 0.0)
	assert.GreaterOrEqual(t, cvarValue, varValue)
}

func TestCalculateVaREmpty(t *testing.T) {
	calculator := NewCalculator()
	_, _, err := calculator.CalculateVaR(nil, 0.95)
	assert.Error(t, err)
}

func TestCalculateVaRInvalidConfidence(t *testing.T) {
	calculator := NewCalculator()
	returns := []float64{0.01, 0.02, -0.01}

	_, _, err := calculator.CalculateVaR(returns, 1.5)
	assert.Error(t, err)

	_, _, err = calculator.CalculateVaR(returns, 0.0)
	assert.Error(t, err)
}

func TestCalculateDrawdown(t *testing.T) {
	calculator := NewCalculator()
	equityCurve := []float64{10000, 11000, 12000, 11000, 10500, 11500, 12500, 11800}

	currentDD, maxDD, peakEquity := calculator.CalculateDrawdown(equityCurve)

	assert.Equal(t, 12500.0, peakEquity)
	assert.Greater(t, maxDD, 0.10)
	assert.InDelta(t, 0.056, currentDD, 0.01)
}

func TestCalculateDrawdownEmpty(t *testing.T) {
	calculator := NewCalculator()
	currentDD, maxDD, peakEquity := calculator.CalculateDrawdown(nil)
	assert.Equal(t, 0.0, currentDD)
	assert.Equal(t, 0.0, maxDD)
	assert.Equal(t, 0.0, peakEquity)
}

func TestCalculateDrawdownNoDrawdown(t *testing.T) {
	calculator := NewCalculator()
	equityCurve := []float64{10000, 11000, 12000, 13000, 14000}

	currentDD, maxDD, peakEquity := calculator.CalculateDrawdown(equityCurve)
	assert.Equal(t, 0.0, currentDD)
	assert.Equal(t, 0.0, maxDD)
	assert.Equal(t, 14000.0, peakEquity)
}

func TestCalculateStdDev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 2.138, calculateStdDev(values), 0.001)
}

func TestCalculateStdDevEmpty(t *testing.T) {
	assert.Equal(t, 0.0, calculateStdDev(nil))
}

func TestCalculateMovingAverage(t *testing.T) {
	values := []float64{10, 12, 14, 16, 18, 20, 22, 24}
	assert.Equal(t, 22.0, calculateMovingAverage(values, 3))
}

func TestCalculateMovingAverageInsufficientData(t *testing.T) {
	assert.Equal(t, 0.0, calculateMovingAverage([]float64{10, 12}, 5))
}
