package signals

import (
	"math"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
)

// State signals hold at a bar. Strength is a calibrated 0-100 score: deeper oversold / larger
// deviation from a threshold scores higher, matching the spec's "deeper
// oversold -> higher strength" calibration example.

func (e *Evaluator) registerStateSignals() {
	e.register(domain.IndicatorRSI, "oversold_entry", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, p map[string]any) Result {
		v := at(s, domain.IndicatorRSI, i)
		threshold := paramFloat(p, "oversold", 30)
		if math.IsNaN(v) || v >= threshold {
			return Result{}
		}
		strength := clampStrength((threshold - v) / threshold * 100)
		return Result{Matches: true, Strength: strength, Direction: domain.DirectionLong}
	})
	e.register(domain.IndicatorRSI, "overbought_entry", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, p map[string]any) Result {
		v := at(s, domain.IndicatorRSI, i)
		threshold := paramFloat(p, "overbought", 70)
		if math.IsNaN(v) || v <= threshold {
			return Result{}
		}
		strength := clampStrength((v - threshold) / (100 - threshold) * 100)
		return Result{Matches: true, Strength: strength, Direction: domain.DirectionShort}
	})

	e.register(domain.IndicatorBollinger, "price_below_lower", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, c []domain.Candle, i int, _ map[string]any) Result {
		lower := auxAt(s, domain.IndicatorBollinger, "lower", i)
		if math.IsNaN(lower) || c[i].Close >= lower {
			return Result{}
		}
		pct := (lower - c[i].Close) / lower * 100
		return Result{Matches: true, Strength: clampStrength(50 + pct*10), Direction: domain.DirectionLong}
	})
	e.register(domain.IndicatorBollinger, "price_above_upper", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, c []domain.Candle, i int, _ map[string]any) Result {
		upper := auxAt(s, domain.IndicatorBollinger, "upper", i)
		if math.IsNaN(upper) || c[i].Close <= upper {
			return Result{}
		}
		pct := (c[i].Close - upper) / upper * 100
		return Result{Matches: true, Strength: clampStrength(50 + pct*10), Direction: domain.DirectionShort}
	})

	e.register(domain.IndicatorEMA, "price_above", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, c []domain.Candle, i int, _ map[string]any) Result {
		ema := at(s, domain.IndicatorEMA, i)
		if math.IsNaN(ema) || c[i].Close <= ema {
			return Result{}
		}
		pct := (c[i].Close - ema) / ema * 100
		return Result{Matches: true, Strength: clampStrength(40 + pct*10), Direction: domain.DirectionLong}
	})
	e.register(domain.IndicatorEMA, "price_below", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, c []domain.Candle, i int, _ map[string]any) Result {
		ema := at(s, domain.IndicatorEMA, i)
		if math.IsNaN(ema) || c[i].Close >= ema {
			return Result{}
		}
		pct := (ema - c[i].Close) / ema * 100
		return Result{Matches: true, Strength: clampStrength(40 + pct*10), Direction: domain.DirectionShort}
	})

	e.register(domain.IndicatorMA200, "price_above", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, c []domain.Candle, i int, _ map[string]any) Result {
		ma := at(s, domain.IndicatorMA200, i)
		if math.IsNaN(ma) || c[i].Close <= ma {
			return Result{}
		}
		return Result{Matches: true, Strength: 60, Direction: domain.DirectionLong}
	})
	e.register(domain.IndicatorMA200, "price_below", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, c []domain.Candle, i int, _ map[string]any) Result {
		ma := at(s, domain.IndicatorMA200, i)
		if math.IsNaN(ma) || c[i].Close >= ma {
			return Result{}
		}
		return Result{Matches: true, Strength: 60, Direction: domain.DirectionShort}
	})

	e.register(domain.IndicatorStochastic, "oversold", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, p map[string]any) Result {
		v := at(s, domain.IndicatorStochastic, i)
		threshold := paramFloat(p, "oversold", 20)
		if math.IsNaN(v) || v >= threshold {
			return Result{}
		}
		return Result{Matches: true, Strength: clampStrength((threshold - v) / threshold * 100), Direction: domain.DirectionLong}
	})
	e.register(domain.IndicatorStochastic, "overbought", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, p map[string]any) Result {
		v := at(s, domain.IndicatorStochastic, i)
		threshold := paramFloat(p, "overbought", 80)
		if math.IsNaN(v) || v <= threshold {
			return Result{}
		}
		return Result{Matches: true, Strength: clampStrength((v - threshold) / (100 - threshold) * 100), Direction: domain.DirectionShort}
	})

	e.register(domain.IndicatorADX, "strong_trend", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, p map[string]any) Result {
		v := at(s, domain.IndicatorADX, i)
		threshold := paramFloat(p, "threshold", 25)
		if math.IsNaN(v) || v < threshold {
			return Result{}
		}
		plusDI := auxAt(s, domain.IndicatorADX, "plus_di", i)
		minusDI := auxAt(s, domain.IndicatorADX, "minus_di", i)
		dir := domain.DirectionNeutral
		if plusDI > minusDI {
			dir = domain.DirectionLong
		} else if minusDI > plusDI {
			dir = domain.DirectionShort
		}
		return Result{Matches: true, Strength: clampStrength(v), Direction: dir}
	})

	e.register(domain.IndicatorCCI, "oversold", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, p map[string]any) Result {
		v := at(s, domain.IndicatorCCI, i)
		threshold := paramFloat(p, "oversold", -100)
		if math.IsNaN(v) || v >= threshold {
			return Result{}
		}
		return Result{Matches: true, Strength: clampStrength((threshold - v) / 2), Direction: domain.DirectionLong}
	})
	e.register(domain.IndicatorCCI, "overbought", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, p map[string]any) Result {
		v := at(s, domain.IndicatorCCI, i)
		threshold := paramFloat(p, "overbought", 100)
		if math.IsNaN(v) || v <= threshold {
			return Result{}
		}
		return Result{Matches: true, Strength: clampStrength((v - threshold) / 2), Direction: domain.DirectionShort}
	})

	e.register(domain.IndicatorWilliamsR, "oversold", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, p map[string]any) Result {
		v := at(s, domain.IndicatorWilliamsR, i)
		threshold := paramFloat(p, "oversold", -80)
		if math.IsNaN(v) || v >= threshold {
			return Result{}
		}
		return Result{Matches: true, Strength: clampStrength((threshold - v) / 20 * 100), Direction: domain.DirectionLong}
	})
	e.register(domain.IndicatorWilliamsR, "overbought", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, p map[string]any) Result {
		v := at(s, domain.IndicatorWilliamsR, i)
		threshold := paramFloat(p, "overbought", -20)
		if math.IsNaN(v) || v <= threshold {
			return Result{}
		}
		return Result{Matches: true, Strength: clampStrength((v - threshold) / 20 * 100), Direction: domain.DirectionShort}
	})

	e.register(domain.IndicatorMFI, "oversold", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, p map[string]any) Result {
		v := at(s, domain.IndicatorMFI, i)
		threshold := paramFloat(p, "oversold", 20)
		if math.IsNaN(v) || v >= threshold {
			return Result{}
		}
		return Result{Matches: true, Strength: clampStrength((threshold - v) / threshold * 100), Direction: domain.DirectionLong}
	})
	e.register(domain.IndicatorMFI, "overbought", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, p map[string]any) Result {
		v := at(s, domain.IndicatorMFI, i)
		threshold := paramFloat(p, "overbought", 80)
		if math.IsNaN(v) || v <= threshold {
			return Result{}
		}
		return Result{Matches: true, Strength: clampStrength((v - threshold) / (100 - threshold) * 100), Direction: domain.DirectionShort}
	})

	e.register(domain.IndicatorCMF, "positive", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, _ map[string]any) Result {
		v := at(s, domain.IndicatorCMF, i)
		if math.IsNaN(v) || v <= 0 {
			return Result{}
		}
		return Result{Matches: true, Strength: clampStrength(v * 200), Direction: domain.DirectionLong}
	})
	e.register(domain.IndicatorCMF, "negative", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, _ map[string]any) Result {
		v := at(s, domain.IndicatorCMF, i)
		if math.IsNaN(v) || v >= 0 {
			return Result{}
		}
		return Result{Matches: true, Strength: clampStrength(-v * 200), Direction: domain.DirectionShort}
	})

	e.register(domain.IndicatorROC, "positive_momentum", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, p map[string]any) Result {
		v := at(s, domain.IndicatorROC, i)
		threshold := paramFloat(p, "threshold", 0)
		if math.IsNaN(v) || v <= threshold {
			return Result{}
		}
		return Result{Matches: true, Strength: clampStrength(v * 10), Direction: domain.DirectionLong}
	})
	e.register(domain.IndicatorROC, "negative_momentum", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, p map[string]any) Result {
		v := at(s, domain.IndicatorROC, i)
		threshold := paramFloat(p, "threshold", 0)
		if math.IsNaN(v) || v >= threshold {
			return Result{}
		}
		return Result{Matches: true, Strength: clampStrength(-v * 10), Direction: domain.DirectionShort}
	})

	e.register(domain.IndicatorCMO, "oversold", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, p map[string]any) Result {
		v := at(s, domain.IndicatorCMO, i)
		threshold := paramFloat(p, "oversold", -50)
		if math.IsNaN(v) || v >= threshold {
			return Result{}
		}
		return Result{Matches: true, Strength: clampStrength((threshold - v) / 50 * 100), Direction: domain.DirectionLong}
	})
	e.register(domain.IndicatorCMO, "overbought", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, p map[string]any) Result {
		v := at(s, domain.IndicatorCMO, i)
		threshold := paramFloat(p, "overbought", 50)
		if math.IsNaN(v) || v <= threshold {
			return Result{}
		}
		return Result{Matches: true, Strength: clampStrength((v - threshold) / 50 * 100), Direction: domain.DirectionShort}
	})

	e.register(domain.IndicatorKeltner, "breakout_up", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, c []domain.Candle, i int, _ map[string]any) Result {
		upper := auxAt(s, domain.IndicatorKeltner, "upper", i)
		if math.IsNaN(upper) || c[i].Close <= upper {
			return Result{}
		}
		return Result{Matches: true, Strength: 65, Direction: domain.DirectionLong}
	})
	e.register(domain.IndicatorKeltner, "breakout_down", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, c []domain.Candle, i int, _ map[string]any) Result {
		lower := auxAt(s, domain.IndicatorKeltner, "lower", i)
		if math.IsNaN(lower) || c[i].Close >= lower {
			return Result{}
		}
		return Result{Matches: true, Strength: 65, Direction: domain.DirectionShort}
	})

	e.register(domain.IndicatorDonchian, "breakout_up", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, c []domain.Candle, i int, _ map[string]any) Result {
		upper := auxAt(s, domain.IndicatorDonchian, "upper", i)
		if math.IsNaN(upper) || c[i].Close < upper {
			return Result{}
		}
		return Result{Matches: true, Strength: 60, Direction: domain.DirectionLong}
	})
	e.register(domain.IndicatorDonchian, "breakout_down", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, c []domain.Candle, i int, _ map[string]any) Result {
		lower := auxAt(s, domain.IndicatorDonchian, "lower", i)
		if math.IsNaN(lower) || c[i].Close > lower {
			return Result{}
		}
		return Result{Matches: true, Strength: 60, Direction: domain.DirectionShort}
	})

	e.register(domain.IndicatorTTMSqueeze, "fired", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, _ map[string]any) Result {
		v := at(s, domain.IndicatorTTMSqueeze, i)
		if math.IsNaN(v) || v != 1 {
			return Result{}
		}
		return Result{Matches: true, Strength: 55, Direction: domain.DirectionNeutral}
	})

	e.register(domain.IndicatorMARibbon, "bullish_stack", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, _ map[string]any) Result {
		series, ok := s[domain.IndicatorMARibbon]
		if !ok {
			return Result{}
		}
		periods := []string{"ema10", "ema20", "ema50", "ema100", "ema200"}
		var vals []float64
		for _, p := range periods {
			v := series.AuxAt(p, i)
			if math.IsNaN(v) {
				return Result{}
			}
			vals = append(vals, v)
		}
		for j := 1; j < len(vals); j++ {
			if vals[j-1] <= vals[j] {
				return Result{}
			}
		}
		return Result{Matches: true, Strength: 70, Direction: domain.DirectionLong}
	})
	e.register(domain.IndicatorMARibbon, "bearish_stack", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, _ map[string]any) Result {
		series, ok := s[domain.IndicatorMARibbon]
		if !ok {
			return Result{}
		}
		periods := []string{"ema10", "ema20", "ema50", "ema100", "ema200"}
		var vals []float64
		for _, p := range periods {
			v := series.AuxAt(p, i)
			if math.IsNaN(v) {
				return Result{}
			}
			vals = append(vals, v)
		}
		for j := 1; j < len(vals); j++ {
			if vals[j-1] >= vals[j] {
				return Result{}
			}
		}
		return Result{Matches: true, Strength: 70, Direction: domain.DirectionShort}
	})

	e.register(domain.IndicatorSupportResist, "test_support", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, c []domain.Candle, i int, p map[string]any) Result {
		support := at(s, domain.IndicatorSupportResist, i)
		tolerance := paramFloat(p, "tolerance_pct", 0.5)
		if math.IsNaN(support) || support == 0 {
			return Result{}
		}
		dist := math.Abs(c[i].Close-support) / support * 100
		if dist > tolerance {
			return Result{}
		}
		return Result{Matches: true, Strength: clampStrength(100 - dist*20), Direction: domain.DirectionLong}
	})
	e.register(domain.IndicatorSupportResist, "test_resistance", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, c []domain.Candle, i int, p map[string]any) Result {
		resistance := auxAt(s, domain.IndicatorSupportResist, "resistance", i)
		tolerance := paramFloat(p, "tolerance_pct", 0.5)
		if math.IsNaN(resistance) || resistance == 0 {
			return Result{}
		}
		dist := math.Abs(c[i].Close-resistance) / resistance * 100
		if dist > tolerance {
			return Result{}
		}
		return Result{Matches: true, Strength: clampStrength(100 - dist*20), Direction: domain.DirectionShort}
	})

	e.register(domain.IndicatorPivot, "above_r1", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, c []domain.Candle, i int, _ map[string]any) Result {
		r1 := auxAt(s, domain.IndicatorPivot, "r1", i)
		if math.IsNaN(r1) || c[i].Close <= r1 {
			return Result{}
		}
		return Result{Matches: true, Strength: 55, Direction: domain.DirectionLong}
	})
	e.register(domain.IndicatorPivot, "below_s1", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, c []domain.Candle, i int, _ map[string]any) Result {
		s1 := auxAt(s, domain.IndicatorPivot, "s1", i)
		if math.IsNaN(s1) || c[i].Close >= s1 {
			return Result{}
		}
		return Result{Matches: true, Strength: 55, Direction: domain.DirectionShort}
	})

	e.register(domain.IndicatorIchimoku, "price_above_cloud", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, c []domain.Candle, i int, _ map[string]any) Result {
		a := auxAt(s, domain.IndicatorIchimoku, "senkou_a", i)
		b := auxAt(s, domain.IndicatorIchimoku, "senkou_b", i)
		if math.IsNaN(a) || math.IsNaN(b) {
			return Result{}
		}
		top := math.Max(a, b)
		if c[i].Close <= top {
			return Result{}
		}
		return Result{Matches: true, Strength: 65, Direction: domain.DirectionLong}
	})
	e.register(domain.IndicatorIchimoku, "price_below_cloud", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, c []domain.Candle, i int, _ map[string]any) Result {
		a := auxAt(s, domain.IndicatorIchimoku, "senkou_a", i)
		b := auxAt(s, domain.IndicatorIchimoku, "senkou_b", i)
		if math.IsNaN(a) || math.IsNaN(b) {
			return Result{}
		}
		bottom := math.Min(a, b)
		if c[i].Close >= bottom {
			return Result{}
		}
		return Result{Matches: true, Strength: 65, Direction: domain.DirectionShort}
	})

	e.register(domain.IndicatorVolume, "spike", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, p map[string]any) Result {
		vol, ok := s[domain.IndicatorVolume]
		if !ok || i < 20 {
			return Result{}
		}
		lookback := int(paramFloat(p, "lookback", 20))
		sum := 0.0
		for j := i - lookback; j < i; j++ {
			sum += vol.At(j)
		}
		avg := sum / float64(lookback)
		if avg == 0 || vol.At(i) < avg*paramFloat(p, "multiplier", 2.0) {
			return Result{}
		}
		ratio := vol.At(i) / avg
		return Result{Matches: true, Strength: clampStrength(ratio * 25), Direction: domain.DirectionNeutral}
	})

	e.register(domain.IndicatorOBV, "rising", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, p map[string]any) Result {
		lookback := int(paramFloat(p, "lookback", 5))
		if i < lookback {
			return Result{}
		}
		cur := at(s, domain.IndicatorOBV, i)
		prior := at(s, domain.IndicatorOBV, i-lookback)
		if math.IsNaN(cur) || math.IsNaN(prior) || cur <= prior {
			return Result{}
		}
		return Result{Matches: true, Strength: 50, Direction: domain.DirectionLong}
	})
	e.register(domain.IndicatorOBV, "falling", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, p map[string]any) Result {
		lookback := int(paramFloat(p, "lookback", 5))
		if i < lookback {
			return Result{}
		}
		cur := at(s, domain.IndicatorOBV, i)
		prior := at(s, domain.IndicatorOBV, i-lookback)
		if math.IsNaN(cur) || math.IsNaN(prior) || cur >= prior {
			return Result{}
		}
		return Result{Matches: true, Strength: 50, Direction: domain.DirectionShort}
	})

	e.register(domain.IndicatorADLine, "accumulation", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, p map[string]any) Result {
		lookback := int(paramFloat(p, "lookback", 5))
		if i < lookback {
			return Result{}
		}
		if at(s, domain.IndicatorADLine, i) <= at(s, domain.IndicatorADLine, i-lookback) {
			return Result{}
		}
		return Result{Matches: true, Strength: 45, Direction: domain.DirectionLong}
	})

	e.register(domain.IndicatorBBW, "squeeze", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, p map[string]any) Result {
		v := at(s, domain.IndicatorBBW, i)
		threshold := paramFloat(p, "threshold", 3.0)
		if math.IsNaN(v) || v > threshold {
			return Result{}
		}
		return Result{Matches: true, Strength: clampStrength((threshold - v) / threshold * 100), Direction: domain.DirectionNeutral}
	})

	e.register(domain.IndicatorPSAR, "below_price", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, c []domain.Candle, i int, _ map[string]any) Result {
		v := at(s, domain.IndicatorPSAR, i)
		if math.IsNaN(v) || v >= c[i].Close {
			return Result{}
		}
		return Result{Matches: true, Strength: 55, Direction: domain.DirectionLong}
	})
	e.register(domain.IndicatorPSAR, "above_price", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, c []domain.Candle, i int, _ map[string]any) Result {
		v := at(s, domain.IndicatorPSAR, i)
		if math.IsNaN(v) || v <= c[i].Close {
			return Result{}
		}
		return Result{Matches: true, Strength: 55, Direction: domain.DirectionShort}
	})

	e.register(domain.IndicatorATR, "elevated", false, func(s map[domain.IndicatorKind]domain.IndicatorSeries, c []domain.Candle, i int, p map[string]any) Result {
		v := at(s, domain.IndicatorATR, i)
		if math.IsNaN(v) || c[i].Close == 0 {
			return Result{}
		}
		pct := v / c[i].Close * 100
		threshold := paramFloat(p, "threshold_pct", 2.0)
		if pct < threshold {
			return Result{}
		}
		return Result{Matches: true, Strength: clampStrength(pct * 10), Direction: domain.DirectionNeutral}
	})
}
