// Package indicators computes streaming indicator series over a candle
// window. The Engine is a stateless pure
// function: given a candle slice and the set of indicator kinds a strategy's
// signals reference, it returns one domain.IndicatorSeries per kind, aligned
// 1:1 with the candles (leading NaN for warmup bars). It never reads or
// writes global state, matching the teacher's indicators.Service shape in
// internal/indicators/service.go but restructured around whole-series output
// instead of a single latest-value result, since SignalEvaluator needs to
// look back at bar i-1 for event signals.
package indicators

import (
	"fmt"
	"math"

	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
	"github.com/rs/zerolog"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
)

// Engine computes indicator series over a candle window.
type Engine struct {
	log zerolog.Logger
}

// NewEngine constructs an Engine with the given component logger.
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{log: log.With().Str("component", "indicators").Logger()}
}

// intParam reads an int parameter override with a default.
func intParam(params map[string]any, key string, def int) int {
	if params == nil {
		return def
	}
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return def
	}
}

// floatParam reads a float parameter override with a default.
func floatParam(params map[string]any, key string, def float64) float64 {
	if params == nil {
		return def
	}
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return def
	}
}

// Compute returns one IndicatorSeries per distinct indicator kind referenced
// by specs. When more than one spec references the same kind, the first
// spec's Parameters win — a strategy using two different parameterizations
// of the same indicator kind must be expressed as two strategies (documented
// in DESIGN.md as an Open Question resolution; the spec's map[kind]Series
// shape has no room for per-signal parameter sets sharing a kind).
func (e *Engine) Compute(candles []domain.Candle, specs []domain.SignalSpec) (map[domain.IndicatorKind]domain.IndicatorSeries, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("indicators: empty candle set")
	}

	seen := make(map[domain.IndicatorKind]map[string]any)
	var order []domain.IndicatorKind
	for _, s := range specs {
		if _, ok := seen[s.Type]; ok {
			continue
		}
		seen[s.Type] = s.Parameters
		order = append(order, s.Type)
	}

	out := make(map[domain.IndicatorKind]domain.IndicatorSeries, len(order))
	for _, kind := range order {
		series, err := e.computeOne(candles, kind, seen[kind])
		if err != nil {
			return nil, fmt.Errorf("indicators: compute %s: %w", kind, err)
		}
		out[kind] = series
	}
	return out, nil
}

// MaxWarmup returns the largest warmup window any of the given specs needs,
// used by BacktestRunner to decide whether a candle
// window is long enough to bother computing at all.
func MaxWarmup(specs []domain.SignalSpec) int {
	max := 0
	for _, s := range specs {
		if w := warmupFor(s.Type, s.Parameters); w > max {
			max = w
		}
	}
	return max
}

func warmupFor(kind domain.IndicatorKind, params map[string]any) int {
	switch kind {
	case domain.IndicatorRSI:
		return intParam(params, "period", 14) + 1
	case domain.IndicatorMACD:
		slow := intParam(params, "slow_period", 26)
		sig := intParam(params, "signal_period", 9)
		return slow + sig + 1
	case domain.IndicatorBollinger:
		return intParam(params, "period", 20) + 1
	case domain.IndicatorEMA:
		return intParam(params, "period", 20) + 1
	case domain.IndicatorMA200:
		return intParam(params, "period", 200) + 1
	case domain.IndicatorStochastic:
		return intParam(params, "period", 14) + intParam(params, "smooth", 3)
	case domain.IndicatorADX:
		return intParam(params, "period", 14)*2 + 1
	case domain.IndicatorATR:
		return intParam(params, "period", 14) + 1
	case domain.IndicatorKeltner:
		return intParam(params, "period", 20) + 1
	case domain.IndicatorDonchian:
		return intParam(params, "period", 20) + 1
	case domain.IndicatorCCI:
		return intParam(params, "period", 20) + 1
	case domain.IndicatorWilliamsR:
		return intParam(params, "period", 14) + 1
	case domain.IndicatorROC:
		return intParam(params, "period", 12) + 1
	case domain.IndicatorCMO:
		return intParam(params, "period", 14) + 1
	case domain.IndicatorTEMA:
		return intParam(params, "period", 20)*3 + 1
	case domain.IndicatorDEMA:
		return intParam(params, "period", 20)*2 + 1
	case domain.IndicatorHMA:
		return intParam(params, "period", 20) + 1
	case domain.IndicatorWMA:
		return intParam(params, "period", 20) + 1
	case domain.IndicatorAwesomeOscillator:
		return 34 + 1
	case domain.IndicatorMFI:
		return intParam(params, "period", 14) + 1
	case domain.IndicatorCMF:
		return intParam(params, "period", 20) + 1
	case domain.IndicatorBBW:
		return intParam(params, "period", 20) + 1
	case domain.IndicatorTTMSqueeze:
		return 20 + 1
	case domain.IndicatorMARibbon:
		return 200 + 1
	case domain.IndicatorPivot, domain.IndicatorSupportResist:
		return intParam(params, "lookback", 20) + 1
	case domain.IndicatorPSAR, domain.IndicatorIchimoku:
		return 52 + 1
	case domain.IndicatorVolume, domain.IndicatorOBV, domain.IndicatorADLine:
		return 2
	default:
		if isCandlestick(kind) {
			return 3
		}
		return 1
	}
}

func isCandlestick(kind domain.IndicatorKind) bool {
	switch kind {
	case domain.IndicatorCDLEngulfing, domain.IndicatorCDLHammer, domain.IndicatorCDLDoji:
		return true
	default:
		return false
	}
}

func (e *Engine) computeOne(candles []domain.Candle, kind domain.IndicatorKind, params map[string]any) (domain.IndicatorSeries, error) {
	switch kind {
	case domain.IndicatorRSI:
		return rsiSeries(candles, intParam(params, "period", 14)), nil
	case domain.IndicatorMACD:
		return macdSeries(candles,
			intParam(params, "fast_period", 12),
			intParam(params, "slow_period", 26),
			intParam(params, "signal_period", 9)), nil
	case domain.IndicatorBollinger:
		return bollingerSeries(candles, intParam(params, "period", 20), floatParam(params, "std_dev", 2.0)), nil
	case domain.IndicatorEMA:
		return emaSeries(candles, intParam(params, "period", 20)), nil
	case domain.IndicatorMA200:
		return smaSeries(candles, intParam(params, "period", 200)), nil
	case domain.IndicatorStochastic:
		return stochasticSeries(candles, intParam(params, "period", 14), intParam(params, "smooth", 3)), nil
	case domain.IndicatorADX:
		return adxSeries(candles, intParam(params, "period", 14)), nil
	case domain.IndicatorATR:
		return atrSeries(candles, intParam(params, "period", 14)), nil
	case domain.IndicatorKeltner:
		return keltnerSeries(candles, intParam(params, "period", 20), floatParam(params, "atr_multiplier", 2.0)), nil
	case domain.IndicatorDonchian:
		return donchianSeries(candles, intParam(params, "period", 20)), nil
	case domain.IndicatorCCI:
		return cciSeries(candles, intParam(params, "period", 20)), nil
	case domain.IndicatorWilliamsR:
		return williamsRSeries(candles, intParam(params, "period", 14)), nil
	case domain.IndicatorROC:
		return rocSeries(candles, intParam(params, "period", 12)), nil
	case domain.IndicatorCMO:
		return cmoSeries(candles, intParam(params, "period", 14)), nil
	case domain.IndicatorTEMA:
		return temaSeries(candles, intParam(params, "period", 20)), nil
	case domain.IndicatorDEMA:
		return demaSeries(candles, intParam(params, "period", 20)), nil
	case domain.IndicatorHMA:
		return hmaSeries(candles, intParam(params, "period", 20)), nil
	case domain.IndicatorWMA:
		return wmaSeries(candles, intParam(params, "period", 20)), nil
	case domain.IndicatorAwesomeOscillator:
		return awesomeOscillatorSeries(candles), nil
	case domain.IndicatorVolume:
		return volumeSeries(candles), nil
	case domain.IndicatorOBV:
		return obvSeries(candles), nil
	case domain.IndicatorMFI:
		return mfiSeries(candles, intParam(params, "period", 14)), nil
	case domain.IndicatorCMF:
		return cmfSeries(candles, intParam(params, "period", 20)), nil
	case domain.IndicatorADLine:
		return adLineSeries(candles), nil
	case domain.IndicatorBBW:
		return bbwSeries(candles, intParam(params, "period", 20), floatParam(params, "std_dev", 2.0)), nil
	case domain.IndicatorTTMSqueeze:
		return ttmSqueezeSeries(candles), nil
	case domain.IndicatorMARibbon:
		return maRibbonSeries(candles), nil
	case domain.IndicatorSupportResist:
		return supportResistanceSeries(candles, intParam(params, "lookback", 20)), nil
	case domain.IndicatorPivot:
		return pivotSeries(candles), nil
	case domain.IndicatorPSAR:
		return psarSeries(candles, floatParam(params, "af_step", 0.02), floatParam(params, "af_max", 0.2)), nil
	case domain.IndicatorIchimoku:
		return ichimokuSeries(candles), nil
	case domain.IndicatorCDLEngulfing:
		return cdlEngulfingSeries(candles), nil
	case domain.IndicatorCDLHammer:
		return cdlHammerSeries(candles), nil
	case domain.IndicatorCDLDoji:
		return cdlDojiSeries(candles), nil
	default:
		return domain.IndicatorSeries{}, fmt.Errorf("unknown indicator kind %q", kind)
	}
}

func closes(candles []domain.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func nanSeries(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

// drainChan collects a cinar/indicator channel-based Compute() result into a
// slice, right-aligning it against n input bars (cinar indicators drop their
// warmup prefix rather than emitting NaN, so the leading gap is padded here
// per spec §3's "leading NaN/null for warmup").
func drainChan(ch <-chan float64, n int) []float64 {
	var vals []float64
	for v := range ch {
		vals = append(vals, v)
	}
	out := nanSeries(n)
	offset := n - len(vals)
	if offset < 0 {
		offset = 0
		vals = vals[len(vals)-n:]
	}
	for i, v := range vals {
		out[offset+i] = v
	}
	return out
}

func toChan(values []float64) chan float64 {
	ch := make(chan float64, len(values))
	for _, v := range values {
		ch <- v
	}
	close(ch)
	return ch
}

// rsiSeries is grounded on internal/indicators/rsi.go's cinar/indicator/v2
// momentum.Rsi usage, extended from "latest value" to a full aligned series.
func rsiSeries(candles []domain.Candle, period int) domain.IndicatorSeries {
	prices := closes(candles)
	if period < 1 || period >= len(prices) {
		return domain.IndicatorSeries{Kind: domain.IndicatorRSI, Primary: nanSeries(len(prices))}
	}
	rsi := momentum.NewRsiWithPeriod[float64](period)
	out := drainChan(rsi.Compute(toChan(prices)), len(prices))
	return domain.IndicatorSeries{Kind: domain.IndicatorRSI, Primary: out}
}

// macdSeries is grounded on internal/indicators/macd.go's trend.Macd usage.
func macdSeries(candles []domain.Candle, fast, slow, sig int) domain.IndicatorSeries {
	prices := closes(candles)
	n := len(prices)
	if fast < 1 || slow <= fast || n < slow+sig {
		return domain.IndicatorSeries{Kind: domain.IndicatorMACD, Primary: nanSeries(n), Aux: map[string][]float64{"signal": nanSeries(n), "histogram": nanSeries(n)}}
	}
	macd := trend.NewMacdWithPeriod[float64](fast, slow, sig)
	macdCh, sigCh := macd.Compute(toChan(prices))

	var macdVals, sigVals []float64
	for {
		m, mok := <-macdCh
		s, sok := <-sigCh
		if !mok || !sok {
			break
		}
		macdVals = append(macdVals, m)
		sigVals = append(sigVals, s)
	}
	offset := n - len(macdVals)
	if offset < 0 {
		offset = 0
	}
	macdLine := nanSeries(n)
	sigLine := nanSeries(n)
	histLine := nanSeries(n)
	for i := range macdVals {
		macdLine[offset+i] = macdVals[i]
		sigLine[offset+i] = sigVals[i]
		histLine[offset+i] = macdVals[i] - sigVals[i]
	}
	return domain.IndicatorSeries{
		Kind:    domain.IndicatorMACD,
		Primary: macdLine,
		Aux:     map[string][]float64{"signal": sigLine, "histogram": histLine},
	}
}

// bollingerSeries is grounded on internal/indicators/bollinger.go's
// volatility.BollingerBands usage.
func bollingerSeries(candles []domain.Candle, period int, stdDev float64) domain.IndicatorSeries {
	prices := closes(candles)
	n := len(prices)
	if period < 2 || period >= n {
		nan := nanSeries(n)
		return domain.IndicatorSeries{Kind: domain.IndicatorBollinger, Primary: nan, Aux: map[string][]float64{"upper": nanSeries(n), "lower": nanSeries(n)}}
	}
	bb := volatility.NewBollingerBandsWithPeriod[float64](period)
	lowerCh, middleCh, upperCh := bb.Compute(toChan(prices))

	var lower, middle, upper []float64
	for {
		l, lok := <-lowerCh
		m, mok := <-middleCh
		u, uok := <-upperCh
		if !lok || !mok || !uok {
			break
		}
		lower = append(lower, l)
		middle = append(middle, m)
		upper = append(upper, u)
	}
	offset := n - len(middle)
	if offset < 0 {
		offset = 0
	}
	midLine := nanSeries(n)
	lowLine := nanSeries(n)
	upLine := nanSeries(n)
	for i := range middle {
		// cinar fixes 2 std dev; rescale the band width to the requested
		// stdDev multiplier around the shared middle line.
		halfWidth := (upper[i] - middle[i]) * (stdDev / 2.0)
		midLine[offset+i] = middle[i]
		upLine[offset+i] = middle[i] + halfWidth
		lowLine[offset+i] = middle[i] - halfWidth
	}
	return domain.IndicatorSeries{
		Kind:    domain.IndicatorBollinger,
		Primary: midLine,
		Aux:     map[string][]float64{"upper": upLine, "lower": lowLine},
	}
}

// emaSeries is grounded on internal/indicators/ema.go's trend.Ema usage.
func emaSeries(candles []domain.Candle, period int) domain.IndicatorSeries {
	prices := closes(candles)
	n := len(prices)
	if period < 1 || period > n {
		return domain.IndicatorSeries{Kind: domain.IndicatorEMA, Primary: nanSeries(n)}
	}
	ema := trend.NewEmaWithPeriod[float64](period)
	out := drainChan(ema.Compute(toChan(prices)), n)
	return domain.IndicatorSeries{Kind: domain.IndicatorEMA, Primary: out}
}
