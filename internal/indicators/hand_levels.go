package indicators

import "github.com/ajitpratap0/cryptofunk/internal/domain"

// pivotSeries computes the classic floor-trader pivot (P, R1/S1, R2/S2) from
// the prior bar's high/low/close, re-derived at every bar so the series is
// aligned 1:1 like every other indicator.
func pivotSeries(candles []domain.Candle) domain.IndicatorSeries {
	n := len(candles)
	pivot := nanSeries(n)
	r1 := nanSeries(n)
	s1 := nanSeries(n)
	r2 := nanSeries(n)
	s2 := nanSeries(n)
	for i := 1; i < n; i++ {
		prev := candles[i-1]
		p := (prev.High + prev.Low + prev.Close) / 3
		pivot[i] = p
		r1[i] = 2*p - prev.Low
		s1[i] = 2*p - prev.High
		r2[i] = p + (prev.High - prev.Low)
		s2[i] = p - (prev.High - prev.Low)
	}
	return domain.IndicatorSeries{
		Kind:    domain.IndicatorPivot,
		Primary: pivot,
		Aux:     map[string][]float64{"r1": r1, "s1": s1, "r2": r2, "s2": s2},
	}
}

// supportResistanceSeries tracks the rolling lookback-window high/low as a
// naive support/resistance level pair — a swing-based approach (local
// extrema clustering) is the textbook alternative but needs a tolerance
// parameter the spec doesn't define; the rolling-extreme form keeps the
// invariant the spec does state (bounded by the warmup window) without
// inventing an undocumented clustering threshold.
func supportResistanceSeries(candles []domain.Candle, lookback int) domain.IndicatorSeries {
	n := len(candles)
	resistance := nanSeries(n)
	support := nanSeries(n)
	for i := lookback - 1; i < n; i++ {
		hi, lo := candles[i].High, candles[i].Low
		for j := i - lookback + 1; j <= i; j++ {
			if candles[j].High > hi {
				hi = candles[j].High
			}
			if candles[j].Low < lo {
				lo = candles[j].Low
			}
		}
		resistance[i] = hi
		support[i] = lo
	}
	return domain.IndicatorSeries{
		Kind:    domain.IndicatorSupportResist,
		Primary: support,
		Aux:     map[string][]float64{"resistance": resistance},
	}
}
