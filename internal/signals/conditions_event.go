package signals

import (
	"math"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
)

// Event signals fire only on the bar a transition occurs.

func (e *Evaluator) registerEventSignals() {
	e.register(domain.IndicatorMACD, "bullish_cross", true, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, _ map[string]any) Result {
		macd := at(s, domain.IndicatorMACD, i)
		macdPrev := at(s, domain.IndicatorMACD, i-1)
		sig := auxAt(s, domain.IndicatorMACD, "signal", i)
		sigPrev := auxAt(s, domain.IndicatorMACD, "signal", i-1)
		if anyNaN(macd, macdPrev, sig, sigPrev) {
			return Result{}
		}
		if !(macdPrev < sigPrev && macd >= sig) {
			return Result{}
		}
		return Result{Matches: true, Strength: clampStrength(50 + (macd-sig)*20), Direction: domain.DirectionLong}
	})
	e.register(domain.IndicatorMACD, "bearish_cross", true, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, _ map[string]any) Result {
		macd := at(s, domain.IndicatorMACD, i)
		macdPrev := at(s, domain.IndicatorMACD, i-1)
		sig := auxAt(s, domain.IndicatorMACD, "signal", i)
		sigPrev := auxAt(s, domain.IndicatorMACD, "signal", i-1)
		if anyNaN(macd, macdPrev, sig, sigPrev) {
			return Result{}
		}
		if !(macdPrev > sigPrev && macd <= sig) {
			return Result{}
		}
		return Result{Matches: true, Strength: clampStrength(50 + (sig-macd)*20), Direction: domain.DirectionShort}
	})

	e.register(domain.IndicatorStochastic, "bullish_cross", true, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, _ map[string]any) Result {
		k := at(s, domain.IndicatorStochastic, i)
		kPrev := at(s, domain.IndicatorStochastic, i-1)
		d := auxAt(s, domain.IndicatorStochastic, "d", i)
		dPrev := auxAt(s, domain.IndicatorStochastic, "d", i-1)
		if anyNaN(k, kPrev, d, dPrev) {
			return Result{}
		}
		if !(kPrev < dPrev && k >= d) {
			return Result{}
		}
		return Result{Matches: true, Strength: 55, Direction: domain.DirectionLong}
	})
	e.register(domain.IndicatorStochastic, "bearish_cross", true, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, _ map[string]any) Result {
		k := at(s, domain.IndicatorStochastic, i)
		kPrev := at(s, domain.IndicatorStochastic, i-1)
		d := auxAt(s, domain.IndicatorStochastic, "d", i)
		dPrev := auxAt(s, domain.IndicatorStochastic, "d", i-1)
		if anyNaN(k, kPrev, d, dPrev) {
			return Result{}
		}
		if !(kPrev > dPrev && k <= d) {
			return Result{}
		}
		return Result{Matches: true, Strength: 55, Direction: domain.DirectionShort}
	})

	e.register(domain.IndicatorEMA, "golden_cross_price", true, func(s map[domain.IndicatorKind]domain.IndicatorSeries, c []domain.Candle, i int, _ map[string]any) Result {
		ema := at(s, domain.IndicatorEMA, i)
		emaPrev := at(s, domain.IndicatorEMA, i-1)
		if anyNaN(ema, emaPrev) {
			return Result{}
		}
		if !(c[i-1].Close <= emaPrev && c[i].Close > ema) {
			return Result{}
		}
		return Result{Matches: true, Strength: 50, Direction: domain.DirectionLong}
	})
	e.register(domain.IndicatorEMA, "death_cross_price", true, func(s map[domain.IndicatorKind]domain.IndicatorSeries, c []domain.Candle, i int, _ map[string]any) Result {
		ema := at(s, domain.IndicatorEMA, i)
		emaPrev := at(s, domain.IndicatorEMA, i-1)
		if anyNaN(ema, emaPrev) {
			return Result{}
		}
		if !(c[i-1].Close >= emaPrev && c[i].Close < ema) {
			return Result{}
		}
		return Result{Matches: true, Strength: 50, Direction: domain.DirectionShort}
	})

	e.register(domain.IndicatorPSAR, "flip_bullish", true, func(s map[domain.IndicatorKind]domain.IndicatorSeries, c []domain.Candle, i int, _ map[string]any) Result {
		sar := at(s, domain.IndicatorPSAR, i)
		sarPrev := at(s, domain.IndicatorPSAR, i-1)
		if anyNaN(sar, sarPrev) {
			return Result{}
		}
		if !(sarPrev >= c[i-1].Close && sar < c[i].Close) {
			return Result{}
		}
		return Result{Matches: true, Strength: 60, Direction: domain.DirectionLong}
	})
	e.register(domain.IndicatorPSAR, "flip_bearish", true, func(s map[domain.IndicatorKind]domain.IndicatorSeries, c []domain.Candle, i int, _ map[string]any) Result {
		sar := at(s, domain.IndicatorPSAR, i)
		sarPrev := at(s, domain.IndicatorPSAR, i-1)
		if anyNaN(sar, sarPrev) {
			return Result{}
		}
		if !(sarPrev <= c[i-1].Close && sar > c[i].Close) {
			return Result{}
		}
		return Result{Matches: true, Strength: 60, Direction: domain.DirectionShort}
	})

	e.register(domain.IndicatorTTMSqueeze, "fires", true, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, _ map[string]any) Result {
		cur := at(s, domain.IndicatorTTMSqueeze, i)
		prev := at(s, domain.IndicatorTTMSqueeze, i-1)
		if anyNaN(cur, prev) {
			return Result{}
		}
		if !(prev == 1 && cur == 0) {
			return Result{}
		}
		return Result{Matches: true, Strength: 65, Direction: domain.DirectionNeutral}
	})

	e.register(domain.IndicatorCDLEngulfing, "bullish", true, func(s map[domain.IndicatorKind]domain.IndicatorSeries, c []domain.Candle, i int, _ map[string]any) Result {
		if at(s, domain.IndicatorCDLEngulfing, i) != 1 {
			return Result{}
		}
		if !(c[i].Close > c[i].Open) {
			return Result{}
		}
		return Result{Matches: true, Strength: 60, Direction: domain.DirectionLong}
	})
	e.register(domain.IndicatorCDLEngulfing, "bearish", true, func(s map[domain.IndicatorKind]domain.IndicatorSeries, c []domain.Candle, i int, _ map[string]any) Result {
		if at(s, domain.IndicatorCDLEngulfing, i) != 1 {
			return Result{}
		}
		if !(c[i].Close < c[i].Open) {
			return Result{}
		}
		return Result{Matches: true, Strength: 60, Direction: domain.DirectionShort}
	})

	e.register(domain.IndicatorCDLHammer, "bullish", true, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, _ map[string]any) Result {
		if at(s, domain.IndicatorCDLHammer, i) != 1 {
			return Result{}
		}
		return Result{Matches: true, Strength: 55, Direction: domain.DirectionLong}
	})

	e.register(domain.IndicatorCDLDoji, "indecision", true, func(s map[domain.IndicatorKind]domain.IndicatorSeries, _ []domain.Candle, i int, _ map[string]any) Result {
		if at(s, domain.IndicatorCDLDoji, i) != 1 {
			return Result{}
		}
		return Result{Matches: true, Strength: 35, Direction: domain.DirectionNeutral}
	})

	e.register(domain.IndicatorKeltner, "squeeze_breakout_up", true, func(s map[domain.IndicatorKind]domain.IndicatorSeries, c []domain.Candle, i int, _ map[string]any) Result {
		upper := auxAt(s, domain.IndicatorKeltner, "upper", i)
		upperPrev := auxAt(s, domain.IndicatorKeltner, "upper", i-1)
		if anyNaN(upper, upperPrev) {
			return Result{}
		}
		if !(c[i-1].Close <= upperPrev && c[i].Close > upper) {
			return Result{}
		}
		return Result{Matches: true, Strength: 60, Direction: domain.DirectionLong}
	})
}

func anyNaN(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func (e *Evaluator) registerAll() {
	e.registerStateSignals()
	e.registerEventSignals()
}
