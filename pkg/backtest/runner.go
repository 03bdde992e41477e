// Package backtest implements spec §4.3 BacktestRunner and §4.4
// BacktestAggregator: streaming indicator computation over historical
// candles, signal detection at each bar, combination aggregation, and
// profit-factor/profit-move ranking used to admit strategies into the live
// scanner. Grounded on the teacher's pkg/backtest (per-coin candle
// pipeline, parallel batch processing, progress reporting shape) and on
// internal/indicators / internal/signals for the per-bar evaluation it
// drives.
package backtest

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
	"github.com/ajitpratap0/cryptofunk/internal/indicators"
	"github.com/ajitpratap0/cryptofunk/internal/metrics"
	"github.com/ajitpratap0/cryptofunk/internal/risk"
	"github.com/ajitpratap0/cryptofunk/internal/scanerrors"
	"github.com/ajitpratap0/cryptofunk/internal/signals"
)

// CandleSource fetches historical candles for one coin/timeframe/period, the
// only external collaborator BacktestRunner needs.
type CandleSource interface {
	GetKlines(ctx context.Context, coin, timeframe string, limit int) ([]domain.Candle, error)
}

// RegimeClassifier classifies the market regime at a bar. Implemented by internal/risk's Calculator.DetectMarketRegime
// over a trailing window ending at i.
type RegimeClassifier interface {
	Classify(candles []domain.Candle, i int) (domain.MarketRegime, float64)
}

// regimeClassifier adapts risk.Calculator to the RegimeClassifier contract,
// using a trailing 20-bar window ending at i (Calculator.DetectMarketRegime's
// minimum).
type regimeClassifier struct {
	calc *risk.Calculator
}

// NewRegimeClassifier builds the default RegimeClassifier.
func NewRegimeClassifier() RegimeClassifier {
	return &regimeClassifier{calc: risk.NewCalculator()}
}

func (r *regimeClassifier) Classify(candles []domain.Candle, i int) (domain.MarketRegime, float64) {
	const window = 20
	start := i + 1 - window
	if start < 0 {
		return domain.RegimeUnknown, 0
	}
	data, err := r.calc.DetectMarketRegime(candles[start : i+1])
	if err != nil {
		return domain.RegimeUnknown, 0
	}
	confidence := math.Min(1, math.Abs(data.TrendStrength)*5)
	return data.Regime, confidence
}

// Config is BacktestRunner's selection parameters.
type Config struct {
	EnabledSignals   []domain.SignalSpec
	TargetGain       float64 // percent, e.g. 1.0 for 1%
	FutureWindow     int     // candles to walk forward
	RequiredSignals  int     // [1,10]
	MaxSignals       int     // [requiredSignals,10]
	MinCombinedStrength float64
	RegimeAware      bool
	BatchSize        int // coins processed per parallel batch, default 3
}

// Validate enforces the ConfigError boundary conditions spec §8 names.
func (c Config) Validate() error {
	if c.RequiredSignals < 1 || c.RequiredSignals > 10 {
		return scanerrors.ConfigError("backtest.Config.Validate", "requiredSignals must be in [1,10]", nil)
	}
	if c.MaxSignals < c.RequiredSignals || c.MaxSignals > 10 {
		return scanerrors.ConfigError("backtest.Config.Validate", "requiredSignals > maxSignals", nil)
	}
	if c.FutureWindow <= 0 {
		return scanerrors.ConfigError("backtest.Config.Validate", "futureWindow shorter than timeframe", nil)
	}
	return nil
}

// ProgressFunc receives a coarse percent-complete update; slow consumers
// should drop older values rather than block the runner.
type ProgressFunc func(coin string, percent float64)

// CoinResult is one coin's raw output from the per-coin pipeline.
type CoinResult struct {
	Coin         string
	Timeframe    string
	Matches      []domain.SignalMatch
	SignalCounts map[string]int
}

// Report is BacktestRunner's overall output across every coin in a run.
type Report struct {
	Results      []CoinResult
	FailedCoins  map[string]string // coin -> error message
}

// Runner drives IndicatorEngine + SignalEvaluator over historical candles
// for a batch of coins.
type Runner struct {
	candles   CandleSource
	engine    *indicators.Engine
	evaluator *signals.Evaluator
	regime    RegimeClassifier
	log       Logger
}

// Logger is the minimal logging surface Runner needs, satisfied by
// *zerolog.Logger (kept narrow so tests can pass a no-op implementation
// without importing zerolog).
type Logger interface {
	Printf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Printf(string, ...any) {}

// NewRunner builds a Runner. log may be nil, in which case a no-op logger is
// used.
func NewRunner(candles CandleSource, engine *indicators.Engine, evaluator *signals.Evaluator, regime RegimeClassifier, log Logger) *Runner {
	if log == nil {
		log = noopLogger{}
	}
	if regime == nil {
		regime = NewRegimeClassifier()
	}
	return &Runner{candles: candles, engine: engine, evaluator: evaluator, regime: regime, log: log}
}

// Run executes the per-coin pipeline over coins in parallel
// batches of cfg.BatchSize (default 3), returning a Report. Any coin that
// errors during fetch/compute is recorded in FailedCoins and the run
// continues; zero successful coins yields a terminal error.
func (r *Runner) Run(ctx context.Context, coins []string, timeframe string, period int, cfg Config, progress ProgressFunc) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 3
	}

	report := &Report{FailedCoins: make(map[string]string)}
	resultCh := make(chan CoinResult, len(coins))
	errCh := make(chan struct {
		coin string
		err  error
	}, len(coins))

	for start := 0; start < len(coins); start += batchSize {
		end := start + batchSize
		if end > len(coins) {
			end = len(coins)
		}
		batch := coins[start:end]

		g, gctx := errgroup.WithContext(ctx)
		for _, coin := range batch {
			coin := coin
			g.Go(func() error {
				result, err := r.runOneCoin(gctx, coin, timeframe, period, cfg)
				if err != nil {
					errCh <- struct {
						coin string
						err  error
					}{coin, err}
					return nil // don't abort the batch; other coins still run
				}
				resultCh <- result
				if progress != nil {
					progress(coin, 100)
				}
				return nil
			})
		}
		// Per-batch completion is a synchronization point.
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("backtest: batch %d-%d: %w", start, end, err)
		}
	}
	close(resultCh)
	close(errCh)

	sm := metrics.GetOrCreateScannerMetrics()
	for result := range resultCh {
		report.Results = append(report.Results, result)
		sm.BacktestCoinsProcessed.Inc()
	}
	for e := range errCh {
		report.FailedCoins[e.coin] = e.err.Error()
		sm.BacktestCoinsFailed.Inc()
	}

	if len(report.Results) == 0 {
		return nil, fmt.Errorf("backtest: all %d coins failed: %v", len(coins), report.FailedCoins)
	}
	return report, nil
}

func (r *Runner) runOneCoin(ctx context.Context, coin, timeframe string, period int, cfg Config) (CoinResult, error) {
	warmup := indicators.MaxWarmup(cfg.EnabledSignals)

	candles, err := r.candles.GetKlines(ctx, coin, timeframe, period)
	if err != nil {
		return CoinResult{}, fmt.Errorf("fetch klines: %w", err)
	}
	if len(candles) < warmup {
		return CoinResult{}, fmt.Errorf("insufficient candles: have %d, need warmup %d", len(candles), warmup)
	}

	series, err := r.engine.Compute(candles, cfg.EnabledSignals)
	if err != nil {
		return CoinResult{}, fmt.Errorf("compute indicators: %w", err)
	}

	result := CoinResult{Coin: coin, Timeframe: timeframe, SignalCounts: make(map[string]int)}

	for i := warmup; i < len(candles); i++ {
		matched := r.evaluateBar(series, candles, i, cfg)
		for _, m := range matched {
			result.SignalCounts[string(m.Type)+"."+m.Value]++
		}
		if len(matched) < cfg.RequiredSignals {
			continue
		}

		regime, confidence := domain.RegimeUnknown, 0.0
		if cfg.RegimeAware {
			regime, confidence = r.regime.Classify(candles, i)
			matched = filterByRegime(matched, regime)
			if len(matched) < cfg.RequiredSignals {
				continue
			}
		} else {
			regime, confidence = r.regime.Classify(candles, i)
		}
		_ = confidence

		// A bar can admit more than one qualifying signal combination (e.g.
		// a 2-signal and a 3-signal subset both clearing minCombined); emit
		// a candidate SignalMatch for each so the aggregator's
		// best-at-trigger step can choose the one with the highest profit
		// factor, per spec §8 scenario 2, rather than this loop
		// pre-deciding by combined strength alone.
		candidates := candidateSubsets(matched, cfg.RequiredSignals, cfg.MaxSignals, cfg.MinCombinedStrength)
		for _, subset := range candidates {
			match := r.buildMatch(coin, timeframe, candles, i, subset, regime, cfg)
			result.Matches = append(result.Matches, match)
		}
	}

	return result, nil
}

// evaluateBar evaluates every enabled (indicator,condition) pair at bar i
// and collects the matched signals with strength.
func (r *Runner) evaluateBar(series map[domain.IndicatorKind]domain.IndicatorSeries, candles []domain.Candle, i int, cfg Config) []domain.MatchedSignal {
	var out []domain.MatchedSignal
	for _, spec := range cfg.EnabledSignals {
		res, err := r.evaluator.Evaluate(spec, series, candles, i)
		if err != nil || !res.Matches {
			continue
		}
		out = append(out, domain.MatchedSignal{SignalSpec: spec, Strength: res.Strength, Direction: res.Direction})
	}
	return out
}

func filterByRegime(matched []domain.MatchedSignal, regime domain.MarketRegime) []domain.MatchedSignal {
	// Regime admissibility: downtrend bars admit only short-direction (or
	// neutral) signals, uptrend bars admit only long-direction (or neutral)
	// signals; ranging/unknown admit everything. This is the concrete rule
	// behind spec §4.3 step c's "admissible in the bar's market regime",
	// since the RegimeClassifier contract itself is external/abstract.
	var out []domain.MatchedSignal
	for _, m := range matched {
		switch regime {
		case domain.RegimeDowntrend:
			if m.Direction == domain.DirectionLong {
				continue
			}
		case domain.RegimeUptrend:
			if m.Direction == domain.DirectionShort {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

// candidateSubsets considers subsets of matched of size [required,
// min(max,len(matched))] and returns every one whose combined strength
// clears minCombined, in increasing size order. Signals are pre-sorted by
// strength descending, so each size-K subset considered is the greedy best
// for that K (its top-K signals); distinct K therefore give distinct
// candidate combinations rather than one runner-picked "best" one, letting a
// downstream aggregation step choose among them by a different criterion
// (profit factor) than the one used here (combined strength).
func candidateSubsets(matched []domain.MatchedSignal, required, max int, minCombined float64) [][]domain.MatchedSignal {
	sorted := append([]domain.MatchedSignal(nil), matched...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Strength > sorted[j-1].Strength; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	upper := max
	if upper > len(sorted) {
		upper = len(sorted)
	}
	if upper < required {
		return nil
	}

	var out [][]domain.MatchedSignal
	running := 0.0
	for k := 1; k <= upper; k++ {
		running += sorted[k-1].Strength
		if k < required {
			continue
		}
		if running >= minCombined {
			out = append(out, append([]domain.MatchedSignal(nil), sorted[:k]...))
		}
	}
	return out
}

// bestSubset returns the single candidateSubsets entry with the highest
// combined strength, kept for callers that only want one subset per bar.
func bestSubset(matched []domain.MatchedSignal, required, max int, minCombined float64) []domain.MatchedSignal {
	var best []domain.MatchedSignal
	bestStrength := -1.0
	for _, subset := range candidateSubsets(matched, required, max, minCombined) {
		strength := 0.0
		for _, m := range subset {
			strength += m.Strength
		}
		if strength > bestStrength {
			bestStrength = strength
			best = subset
		}
	}
	return best
}

// buildMatch walks forward up to cfg.FutureWindow candles to fill the
// forward-looking fields.
func (r *Runner) buildMatch(coin, timeframe string, candles []domain.Candle, i int, matched []domain.MatchedSignal, regime domain.MarketRegime, cfg Config) domain.SignalMatch {
	entry := candles[i].Close
	direction := dominantDirection(matched)

	end := i + cfg.FutureWindow
	if end >= len(candles) {
		end = len(candles) - 1
	}

	maxHigh, minLow := entry, entry
	var winDuration *float64
	var peakTime int64

	for j := i + 1; j <= end; j++ {
		if candles[j].High > maxHigh {
			maxHigh = candles[j].High
			peakTime = candles[j].Time
		}
		if candles[j].Low < minLow {
			minLow = candles[j].Low
		}
		moveSoFar := (candles[j].High - entry) / entry * 100
		if winDuration == nil && moveSoFar >= cfg.TargetGain {
			minutes := float64(candles[j].Time-candles[i].Time) / 60000
			winDuration = &minutes
		}
	}

	futureMove := (maxHigh - entry) / entry * 100
	futureDrawdown := (minLow - entry) / entry * 100
	successful := futureMove >= cfg.TargetGain

	var timeToPeak *int64
	if peakTime > 0 {
		delta := peakTime - candles[i].Time
		timeToPeak = &delta
	}

	return domain.SignalMatch{
		Coin:               coin,
		Timeframe:          timeframe,
		CandleTime:         candles[i].Time,
		Price:              entry,
		Signals:            matched,
		CombinedStrength:   signals.CombinedStrength(matched),
		MarketRegime:       regime,
		Direction:          direction,
		FuturePriceMove:    &futureMove,
		FutureMaxDrawdown:  &futureDrawdown,
		Successful:         &successful,
		TimeToPeak:         timeToPeak,
		WinDurationMinutes: winDuration,
	}
}

func dominantDirection(matched []domain.MatchedSignal) domain.Direction {
	longs, shorts := 0, 0
	for _, m := range matched {
		switch m.Direction {
		case domain.DirectionLong:
			longs++
		case domain.DirectionShort:
			shorts++
		}
	}
	if longs >= shorts {
		return domain.DirectionLong
	}
	return domain.DirectionShort
}
