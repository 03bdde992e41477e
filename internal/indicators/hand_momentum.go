package indicators

import (
	"math"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
)

func stochasticSeries(candles []domain.Candle, period, smooth int) domain.IndicatorSeries {
	n := len(candles)
	rawK := nanSeries(n)
	for i := period - 1; i < n; i++ {
		hi, lo := candles[i].High, candles[i].Low
		for j := i - period + 1; j <= i; j++ {
			if candles[j].High > hi {
				hi = candles[j].High
			}
			if candles[j].Low < lo {
				lo = candles[j].Low
			}
		}
		if hi == lo {
			rawK[i] = 50
			continue
		}
		rawK[i] = (candles[i].Close - lo) / (hi - lo) * 100
	}
	k := smaSeriesRaw(rawK, smooth)
	d := smaSeriesRaw(k, smooth)
	return domain.IndicatorSeries{Kind: domain.IndicatorStochastic, Primary: k, Aux: map[string][]float64{"d": d}}
}

func smaSeriesRaw(values []float64, period int) []float64 {
	n := len(values)
	out := nanSeries(n)
	for i := period - 1; i < n; i++ {
		sum := 0.0
		valid := true
		for j := i - period + 1; j <= i; j++ {
			if isNaN(values[j]) {
				valid = false
				break
			}
			sum += values[j]
		}
		if valid {
			out[i] = sum / float64(period)
		}
	}
	return out
}

func cciSeries(candles []domain.Candle, period int) domain.IndicatorSeries {
	n := len(candles)
	tp := make([]float64, n)
	for i, c := range candles {
		tp[i] = (c.High + c.Low + c.Close) / 3
	}
	out := nanSeries(n)
	for i := period - 1; i < n; i++ {
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += tp[j]
		}
		mean := sum / float64(period)
		devSum := 0.0
		for j := i - period + 1; j <= i; j++ {
			devSum += math.Abs(tp[j] - mean)
		}
		meanDev := devSum / float64(period)
		if meanDev == 0 {
			out[i] = 0
			continue
		}
		out[i] = (tp[i] - mean) / (0.015 * meanDev)
	}
	return domain.IndicatorSeries{Kind: domain.IndicatorCCI, Primary: out}
}

func williamsRSeries(candles []domain.Candle, period int) domain.IndicatorSeries {
	n := len(candles)
	out := nanSeries(n)
	for i := period - 1; i < n; i++ {
		hi, lo := candles[i].High, candles[i].Low
		for j := i - period + 1; j <= i; j++ {
			if candles[j].High > hi {
				hi = candles[j].High
			}
			if candles[j].Low < lo {
				lo = candles[j].Low
			}
		}
		if hi == lo {
			out[i] = -50
			continue
		}
		out[i] = (hi - candles[i].Close) / (hi - lo) * -100
	}
	return domain.IndicatorSeries{Kind: domain.IndicatorWilliamsR, Primary: out}
}

func rocSeries(candles []domain.Candle, period int) domain.IndicatorSeries {
	c := closes(candles)
	n := len(c)
	out := nanSeries(n)
	for i := period; i < n; i++ {
		if c[i-period] == 0 {
			continue
		}
		out[i] = (c[i] - c[i-period]) / c[i-period] * 100
	}
	return domain.IndicatorSeries{Kind: domain.IndicatorROC, Primary: out}
}

func cmoSeries(candles []domain.Candle, period int) domain.IndicatorSeries {
	c := closes(candles)
	n := len(c)
	out := nanSeries(n)
	for i := period; i < n; i++ {
		up, down := 0.0, 0.0
		for j := i - period + 1; j <= i; j++ {
			diff := c[j] - c[j-1]
			if diff > 0 {
				up += diff
			} else {
				down -= diff
			}
		}
		if up+down == 0 {
			out[i] = 0
			continue
		}
		out[i] = (up - down) / (up + down) * 100
	}
	return domain.IndicatorSeries{Kind: domain.IndicatorCMO, Primary: out}
}

// awesomeOscillatorSeries is the classic 5/34 SMA-of-midpoint oscillator.
func awesomeOscillatorSeries(candles []domain.Candle) domain.IndicatorSeries {
	n := len(candles)
	mid := make([]float64, n)
	for i, c := range candles {
		mid[i] = (c.High + c.Low) / 2
	}
	fast := smaSeriesRaw(mid, 5)
	slow := smaSeriesRaw(mid, 34)
	out := nanSeries(n)
	for i := 0; i < n; i++ {
		if !isNaN(fast[i]) && !isNaN(slow[i]) {
			out[i] = fast[i] - slow[i]
		}
	}
	return domain.IndicatorSeries{Kind: domain.IndicatorAwesomeOscillator, Primary: out}
}
