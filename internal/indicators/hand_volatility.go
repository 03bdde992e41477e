package indicators

import (
	"math"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
)

// smoothWilder and adxSeries are adapted directly from
// internal/indicators/adx.go's calculateADXManual/smoothWilder, generalized
// from "latest value" to a full series.
func smoothWilder(data []float64, period int) []float64 {
	n := len(data)
	result := make([]float64, n)
	if n < period {
		return result
	}
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += data[i]
	}
	result[period-1] = sum / float64(period)
	for i := period; i < n; i++ {
		result[i] = (result[i-1]*float64(period-1) + data[i]) / float64(period)
	}
	return result
}

func trueRangeSeries(candles []domain.Candle) []float64 {
	n := len(candles)
	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		h, l, pc := candles[i].High, candles[i].Low, candles[i-1].Close
		tr[i] = math.Max(h-l, math.Max(math.Abs(h-pc), math.Abs(l-pc)))
	}
	if n > 0 {
		tr[0] = candles[0].High - candles[0].Low
	}
	return tr
}

func adxSeries(candles []domain.Candle, period int) domain.IndicatorSeries {
	n := len(candles)
	if n < period*2 {
		return domain.IndicatorSeries{Kind: domain.IndicatorADX, Primary: nanSeries(n)}
	}

	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		h, l, pc := candles[i].High, candles[i].Low, candles[i-1].Close
		tr[i] = math.Max(h-l, math.Max(math.Abs(h-pc), math.Abs(l-pc)))
		upMove := h - candles[i-1].High
		downMove := candles[i-1].Low - l
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
	}

	smoothTR := smoothWilder(tr, period)
	smoothPlusDM := smoothWilder(plusDM, period)
	smoothMinusDM := smoothWilder(minusDM, period)

	plusDI := make([]float64, n)
	minusDI := make([]float64, n)
	dx := make([]float64, n)
	for i := period; i < n; i++ {
		if smoothTR[i] != 0 {
			plusDI[i] = 100 * smoothPlusDM[i] / smoothTR[i]
			minusDI[i] = 100 * smoothMinusDM[i] / smoothTR[i]
			diSum := plusDI[i] + minusDI[i]
			if diSum != 0 {
				dx[i] = 100 * math.Abs(plusDI[i]-minusDI[i]) / diSum
			}
		}
	}

	adxVals := smoothWilder(dx, period)
	out := nanSeries(n)
	for i := period*2 - 1; i < n; i++ {
		out[i] = adxVals[i]
	}
	return domain.IndicatorSeries{
		Kind:    domain.IndicatorADX,
		Primary: out,
		Aux:     map[string][]float64{"plus_di": plusDI, "minus_di": minusDI},
	}
}

func atrSeries(candles []domain.Candle, period int) domain.IndicatorSeries {
	n := len(candles)
	tr := trueRangeSeries(candles)
	out := nanSeries(n)
	if n < period {
		return domain.IndicatorSeries{Kind: domain.IndicatorATR, Primary: out}
	}
	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	prev := sum / float64(period)
	out[period] = prev
	for i := period + 1; i < n; i++ {
		prev = (prev*float64(period-1) + tr[i]) / float64(period)
		out[i] = prev
	}
	return domain.IndicatorSeries{Kind: domain.IndicatorATR, Primary: out}
}

func keltnerSeries(candles []domain.Candle, period int, atrMultiplier float64) domain.IndicatorSeries {
	c := closes(candles)
	middle := emaRaw(c, period)
	atr := atrSeries(candles, period).Primary
	n := len(c)
	upper := nanSeries(n)
	lower := nanSeries(n)
	for i := range c {
		if !isNaN(middle[i]) && !isNaN(atr[i]) {
			upper[i] = middle[i] + atr[i]*atrMultiplier
			lower[i] = middle[i] - atr[i]*atrMultiplier
		}
	}
	return domain.IndicatorSeries{Kind: domain.IndicatorKeltner, Primary: middle, Aux: map[string][]float64{"upper": upper, "lower": lower}}
}

func donchianSeries(candles []domain.Candle, period int) domain.IndicatorSeries {
	n := len(candles)
	upper := nanSeries(n)
	lower := nanSeries(n)
	mid := nanSeries(n)
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
		upper[i] = hi
		lower[i] = lo
		mid[i] = (hi + lo) / 2
	}
	return domain.IndicatorSeries{Kind: domain.IndicatorDonchian, Primary: mid, Aux: map[string][]float64{"upper": upper, "lower": lower}}
}

func bbwSeries(candles []domain.Candle, period int, stdDev float64) domain.IndicatorSeries {
	bb := bollingerSeries(candles, period, stdDev)
	n := len(bb.Primary)
	out := nanSeries(n)
	upper := bb.Aux["upper"]
	lower := bb.Aux["lower"]
	for i := 0; i < n; i++ {
		if !isNaN(upper[i]) && !isNaN(lower[i]) && bb.Primary[i] != 0 {
			out[i] = (upper[i] - lower[i]) / bb.Primary[i] * 100
		}
	}
	return domain.IndicatorSeries{Kind: domain.IndicatorBBW, Primary: out}
}

// ttmSqueezeSeries fires (primary = 1) when Bollinger Bands sit inside
// Keltner Channels (volatility compression), the standard TTM Squeeze
// definition; 0 otherwise, NaN during warmup.
func ttmSqueezeSeries(candles []domain.Candle) domain.IndicatorSeries {
	bb := bollingerSeries(candles, 20, 2.0)
	kc := keltnerSeries(candles, 20, 1.5)
	n := len(candles)
	out := nanSeries(n)
	for i := 0; i < n; i++ {
		bu, bl := bb.Aux["upper"][i], bb.Aux["lower"][i]
		ku, kl := kc.Aux["upper"][i], kc.Aux["lower"][i]
		if isNaN(bu) || isNaN(bl) || isNaN(ku) || isNaN(kl) {
			continue
		}
		if bu < ku && bl > kl {
			out[i] = 1
		} else {
			out[i] = 0
		}
	}
	return domain.IndicatorSeries{Kind: domain.IndicatorTTMSqueeze, Primary: out}
}

// psarSeries implements Wilder's Parabolic SAR.
func psarSeries(candles []domain.Candle, step, max float64) domain.IndicatorSeries {
	n := len(candles)
	out := nanSeries(n)
	if n < 2 {
		return domain.IndicatorSeries{Kind: domain.IndicatorPSAR, Primary: out}
	}

	uptrend := candles[1].Close >= candles[0].Close
	af := step
	var sar, ep float64
	if uptrend {
		sar = candles[0].Low
		ep = candles[0].High
	} else {
		sar = candles[0].High
		ep = candles[0].Low
	}
	out[0] = sar

	for i := 1; i < n; i++ {
		sar = sar + af*(ep-sar)
		if uptrend {
			if candles[i].Low < sar {
				uptrend = false
				sar = ep
				ep = candles[i].Low
				af = step
			} else {
				if candles[i].High > ep {
					ep = candles[i].High
					af = math.Min(af+step, max)
				}
			}
		} else {
			if candles[i].High > sar {
				uptrend = true
				sar = ep
				ep = candles[i].High
				af = step
			} else {
				if candles[i].Low < ep {
					ep = candles[i].Low
					af = math.Min(af+step, max)
				}
			}
		}
		out[i] = sar
	}
	return domain.IndicatorSeries{Kind: domain.IndicatorPSAR, Primary: out}
}

// ichimokuSeries computes the classic 9/26/52 Ichimoku lines.
func ichimokuSeries(candles []domain.Candle) domain.IndicatorSeries {
	n := len(candles)
	tenkan := nanSeries(n)
	kijun := nanSeries(n)
	senkouA := nanSeries(n)
	senkouB := nanSeries(n)

	midHighLow := func(period, i int) float64 {
		hi, lo := candles[i].High, candles[i].Low
		for j := i - period + 1; j <= i; j++ {
			if candles[j].High > hi {
				hi = candles[j].High
			}
			if candles[j].Low < lo {
				lo = candles[j].Low
			}
		}
		return (hi + lo) / 2
	}

	for i := 8; i < n; i++ {
		tenkan[i] = midHighLow(9, i)
	}
	for i := 25; i < n; i++ {
		kijun[i] = midHighLow(26, i)
	}
	for i := 25; i < n; i++ {
		if !isNaN(tenkan[i]) && !isNaN(kijun[i]) {
			senkouA[i] = (tenkan[i] + kijun[i]) / 2
		}
	}
	for i := 51; i < n; i++ {
		senkouB[i] = midHighLow(52, i)
	}

	return domain.IndicatorSeries{
		Kind:    domain.IndicatorIchimoku,
		Primary: tenkan,
		Aux: map[string][]float64{
			"kijun":    kijun,
			"senkou_a": senkouA,
			"senkou_b": senkouB,
		},
	}
}
