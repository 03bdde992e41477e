package indicators

import (
	"math"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
)

// Candlestick pattern series are boolean-as-float (1 = pattern present at
// bar i, 0 = absent, NaN during the single-bar warmup). These are event
// signals: SignalEvaluator treats a 1 at bar i as the pattern
// having just completed.

func body(c domain.Candle) float64   { return math.Abs(c.Close - c.Open) }
func upperWick(c domain.Candle) float64 {
	if c.Close >= c.Open {
		return c.High - c.Close
	}
	return c.High - c.Open
}
func lowerWick(c domain.Candle) float64 {
	if c.Close >= c.Open {
		return c.Open - c.Low
	}
	return c.Close - c.Low
}
func isBullish(c domain.Candle) bool { return c.Close > c.Open }
func isBearish(c domain.Candle) bool { return c.Close < c.Open }

func cdlEngulfingSeries(candles []domain.Candle) domain.IndicatorSeries {
	n := len(candles)
	out := nanSeries(n)
	for i := 1; i < n; i++ {
		prev, cur := candles[i-1], candles[i]
		bullish := isBearish(prev) && isBullish(cur) && cur.Open <= prev.Close && cur.Close >= prev.Open
		bearish := isBullish(prev) && isBearish(cur) && cur.Open >= prev.Close && cur.Close <= prev.Open
		if bullish || bearish {
			out[i] = 1
		} else {
			out[i] = 0
		}
	}
	return domain.IndicatorSeries{Kind: domain.IndicatorCDLEngulfing, Primary: out}
}

func cdlHammerSeries(candles []domain.Candle) domain.IndicatorSeries {
	n := len(candles)
	out := nanSeries(n)
	for i := 1; i < n; i++ {
		c := candles[i]
		b := body(c)
		if b == 0 {
			out[i] = 0
			continue
		}
		lw := lowerWick(c)
		uw := upperWick(c)
		if lw >= 2*b && uw <= b*0.5 {
			out[i] = 1
		} else {
			out[i] = 0
		}
	}
	return domain.IndicatorSeries{Kind: domain.IndicatorCDLHammer, Primary: out}
}

func cdlDojiSeries(candles []domain.Candle) domain.IndicatorSeries {
	n := len(candles)
	out := nanSeries(n)
	for i := 1; i < n; i++ {
		c := candles[i]
		rng := c.High - c.Low
		if rng == 0 {
			out[i] = 0
			continue
		}
		if body(c)/rng <= 0.1 {
			out[i] = 1
		} else {
			out[i] = 0
		}
	}
	return domain.IndicatorSeries{Kind: domain.IndicatorCDLDoji, Primary: out}
}
