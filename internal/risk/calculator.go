package risk

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
)

// HistoricalData holds historical market data for risk calculations.
type HistoricalData struct {
	Prices  []float64
	Returns []float64
	Times   []time.Time
}

// PerformanceData holds portfolio performance data.
type PerformanceData struct {
	EquityCurve []float64
	Returns     []float64
	PeakEquity  float64
	Timestamps  []time.Time
}

// WinRateData holds win rate statistics.
type WinRateData struct {
	WinRate       float64
	WinningTrades int64
	LosingTrades  int64
	TotalTrades   int64
	AvgWin        float64
	AvgLoss       float64
}

// MarketRegimeData holds market regime information derived from candles.
type MarketRegimeData struct {
	Regime        domain.MarketRegime
	Volatility    float64
	ShortMA       float64
	LongMA        float64
	TrendStrength float64
}

// Calculator provides portfolio and market statistics. It operates on data
// already retrieved through Store/PriceCache rather than querying a database
// directly, so it has no external dependency of its own.
type Calculator struct{}

// NewCalculator creates a risk calculator.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// HistoricalDataFromCandles builds HistoricalData (prices, returns) from a
// candle series, the shape IndicatorEngine and PriceCache both produce.
func HistoricalDataFromCandles(candles []domain.Candle) *HistoricalData {
	prices := make([]float64, len(candles))
	times := make([]time.Time, len(candles))
	for i, c := range candles {
		prices[i] = c.Close
		times[i] = time.UnixMilli(c.Time)
	}
	return &HistoricalData{
		Prices:  prices,
		Returns: returnsFromPrices(prices),
		Times:   times,
	}
}

func returnsFromPrices(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] > 0 {
			returns = append(returns, (prices[i]-prices[i-1])/prices[i-1])
		}
	}
	return returns
}

// WinRateFromTrades aggregates realized trade P&L into win-rate statistics.
func WinRateFromTrades(trades []domain.Trade) *WinRateData {
	data := &WinRateData{}
	var winSum, lossSum float64

	for _, t := range trades {
		data.TotalTrades++
		switch {
		case t.PNL > 0:
			data.WinningTrades++
			winSum += t.PNL
		case t.PNL < 0:
			data.LosingTrades++
			lossSum += -t.PNL
		}
	}

	if data.TotalTrades > 0 {
		data.WinRate = float64(data.WinningTrades) / float64(data.TotalTrades)
	}
	if data.WinningTrades > 0 {
		data.AvgWin = winSum / float64(data.WinningTrades)
	}
	if data.LosingTrades > 0 {
		data.AvgLoss = lossSum / float64(data.LosingTrades)
	}

	return data
}

// ============================================================================
// SHARPE RATIO
// ============================================================================

// CalculateSharpeRatio computes the annualized Sharpe ratio from a return
// series, assuming daily sampling (252 trading days per year).
func (c *Calculator) CalculateSharpeRatio(returns []float64, riskFreeRate float64) (float64, error) {
	if len(returns) == 0 {
		return 0, fmt.Errorf("returns array is empty")
	}

	meanReturn := mean(returns)
	stdDev := calculateStdDev(returns)
	if stdDev == 0 {
		return 0, fmt.Errorf("standard deviation is zero")
	}

	annualizedReturn := meanReturn * 252.0
	annualizedStdDev := stdDev * math.Sqrt(252.0)
	sharpe := (annualizedReturn - riskFreeRate) / annualizedStdDev

	log.Debug().
		Float64("mean_return", meanReturn).
		Float64("std_dev", stdDev).
		Float64("sharpe_ratio", sharpe).
		Msg("sharpe ratio calculated")

	return sharpe, nil
}

// ============================================================================
// MARKET REGIME DETECTION
// ============================================================================

// DetectMarketRegime classifies the trend/volatility of a candle series into
// a MarketRegime, using 10/20-period moving averages the same way the
// backtest runner tags SignalMatch.MarketRegime.
func (c *Calculator) DetectMarketRegime(candles []domain.Candle) (*MarketRegimeData, error) {
	if len(candles) < 20 {
		return nil, fmt.Errorf("insufficient data for regime detection (need 20+, got %d)", len(candles))
	}

	hist := HistoricalDataFromCandles(candles)
	volatility := calculateStdDev(hist.Returns)
	shortMA := calculateMovingAverage(hist.Prices, 10)
	longMA := calculateMovingAverage(hist.Prices, 20)

	currentPrice := hist.Prices[len(hist.Prices)-1]
	startPrice := hist.Prices[0]

	priceTrend := 0.0
	if startPrice > 0 {
		priceTrend = (currentPrice - startPrice) / startPrice
	}
	maTrend := 0.0
	if longMA > 0 {
		maTrend = (shortMA - longMA) / longMA
	}
	trendStrength := (priceTrend + maTrend) / 2.0

	regime := domain.RegimeRanging
	switch {
	case maTrend > 0.02 && priceTrend > 0:
		regime = domain.RegimeUptrend
	case maTrend < -0.02 && priceTrend < 0:
		regime = domain.RegimeDowntrend
	}

	return &MarketRegimeData{
		Regime:        regime,
		Volatility:    volatility,
		ShortMA:       shortMA,
		LongMA:        longMA,
		TrendStrength: trendStrength,
	}, nil
}

// ============================================================================
// VALUE AT RISK
// ============================================================================

// CalculateVaR computes historical-simulation VaR and CVaR at the given
// confidence level (e.g. 0.95 for 95%).
func (c *Calculator) CalculateVaR(returns []float64, confidenceLevel float64) (varValue, cvarValue float64, err error) {
	if len(returns) == 0 {
		return 0, 0, fmt.Errorf("returns array is empty")
	}
	if confidenceLevel <= 0 || confidenceLevel >= 1 {
		return 0, 0, fmt.Errorf("confidence level must be between 0 and 1")
	}

	sorted := slices.Clone(returns)
	slices.Sort(sorted)

	percentile := 1 - confidenceLevel
	index := int(float64(len(sorted)) * percentile)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	varValue = -sorted[index]

	var cvarSum float64
	for i := 0; i <= index; i++ {
		cvarSum += sorted[i]
	}
	cvarValue = -cvarSum / float64(index+1)

	return varValue, cvarValue, nil
}

// ============================================================================
// DRAWDOWN
// ============================================================================

// CalculateDrawdown returns the current and maximum drawdown of an equity
// curve along with the running peak.
func (c *Calculator) CalculateDrawdown(equityCurve []float64) (currentDD, maxDD, peakEquity float64) {
	if len(equityCurve) == 0 {
		return 0, 0, 0
	}

	peak := equityCurve[0]
	for _, equity := range equityCurve {
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			if dd := (peak - equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}

	currentEquity := equityCurve[len(equityCurve)-1]
	if currentEquity < peak && peak > 0 {
		currentDD = (peak - currentEquity) / peak
	}

	return currentDD, maxDD, peak
}

// ============================================================================
// HELPERS
// ============================================================================

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func calculateStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	variance := 0.0
	for _, v := range values {
		diff := v - m
		variance += diff * diff
	}
	if len(values) > 1 {
		variance /= float64(len(values) - 1)
	} else {
		variance /= float64(len(values))
	}
	return math.Sqrt(variance)
}

func calculateMovingAverage(values []float64, period int) float64 {
	if len(values) < period || period <= 0 {
		return 0
	}
	sum := 0.0
	start := len(values) - period
	for i := start; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period)
}
