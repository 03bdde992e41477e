// Package detection implements SignalDetectionEngine: each scan
// cycle, for every active strategy, fetch candles, compute indicators,
// evaluate its declared signals against the most recent closed bar and
// decide admission. Grounded on pkg/backtest/runner.go's per-coin pipeline
// (fetch → IndicatorEngine.Compute → Evaluator.Evaluate → aggregate) reused
// here for the live, single-bar case instead of a full historical walk, plus
// internal/risk/calculator.go's DetectMarketRegime for the regime filter.
package detection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
	"github.com/ajitpratap0/cryptofunk/internal/indicators"
	"github.com/ajitpratap0/cryptofunk/internal/risk"
	"github.com/ajitpratap0/cryptofunk/internal/signals"
)

// candleWindowBuffer is added on top of the strategy's own warmup
// requirement so a freshly-closed bar is always present without an
// off-by-one refetch.
const candleWindowBuffer = 50

// CandleSource fetches candles, satisfied by internal/exchange.Client.
type CandleSource interface {
	GetKlines(ctx context.Context, coin, timeframe string, limit int) ([]domain.Candle, error)
}

// Match is one admitted signal match plus the ATR value at the same bar,
// which PositionManager needs for sizing and stop/take-profit placement
// but which domain.SignalMatch itself doesn't carry.
type Match struct {
	StrategyID  string
	SignalMatch domain.SignalMatch
	ATR         float64
}

type cacheEntry struct {
	candles   []domain.Candle
	lastFetch time.Time
}

// Engine is spec §4.9's SignalDetectionEngine.
type Engine struct {
	candles  CandleSource
	compute  *indicators.Engine
	evaluate *signals.Evaluator
	regime   *risk.Calculator
	log      zerolog.Logger

	mu    sync.Mutex
	cache map[string]*cacheEntry // key: coin|timeframe
}

// NewEngine builds an Engine.
func NewEngine(candles CandleSource, compute *indicators.Engine, evaluate *signals.Evaluator, log zerolog.Logger) *Engine {
	return &Engine{
		candles:  candles,
		compute:  compute,
		evaluate: evaluate,
		regime:   risk.NewCalculator(),
		log:      log.With().Str("component", "signal_detection_engine").Logger(),
		cache:    make(map[string]*cacheEntry),
	}
}

// Scan implements spec §4.9: evaluate every active strategy against its
// current candle window and return the admitted matches.
func (e *Engine) Scan(ctx context.Context, strategies []*domain.Strategy, settings domain.Settings) []Match {
	var matches []Match
	for _, strat := range strategies {
		m, ok, err := e.evaluateStrategy(ctx, strat, settings)
		if err != nil {
			e.log.Warn().Err(err).Str("strategy", strat.ID).Msg("signal detection failed for strategy")
			continue
		}
		if ok {
			matches = append(matches, m)
		}
	}
	return matches
}

func (e *Engine) evaluateStrategy(ctx context.Context, strat *domain.Strategy, settings domain.Settings) (Match, bool, error) {
	warmup := indicators.MaxWarmup(strat.Signals) + candleWindowBuffer
	candles, err := e.windowFor(ctx, strat.Coin, strat.Timeframe, warmup)
	if err != nil {
		return Match{}, false, fmt.Errorf("detection: fetch candles for %s/%s: %w", strat.Coin, strat.Timeframe, err)
	}
	if len(candles) <= indicators.MaxWarmup(strat.Signals) {
		return Match{}, false, nil // not enough history yet
	}

	specs := append(append([]domain.SignalSpec(nil), strat.Signals...), domain.SignalSpec{Type: domain.IndicatorATR})
	series, err := e.compute.Compute(candles, specs)
	if err != nil {
		return Match{}, false, fmt.Errorf("detection: compute indicators: %w", err)
	}

	i := len(candles) - 1
	var matched []domain.MatchedSignal
	var combinedStrength float64
	var direction domain.Direction
	for _, spec := range strat.Signals {
		result, err := e.evaluate.Evaluate(spec, series, candles, i)
		if err != nil {
			return Match{}, false, fmt.Errorf("detection: evaluate %s/%s: %w", spec.Type, spec.Value, err)
		}
		if !result.Matches {
			continue
		}
		matched = append(matched, domain.MatchedSignal{SignalSpec: spec, Strength: result.Strength, Direction: result.Direction})
		combinedStrength += result.Strength
		direction = result.Direction
	}

	atr := series[domain.IndicatorATR].At(i)

	regimeData, err := e.regime.DetectMarketRegime(candles)
	var marketRegime domain.MarketRegime
	if err != nil {
		marketRegime = domain.RegimeUnknown
	} else {
		marketRegime = regimeData.Regime
	}

	if !e.admit(strat, matched, combinedStrength, marketRegime, settings) {
		return Match{}, false, nil
	}

	match := domain.SignalMatch{
		Coin:             strat.Coin,
		Timeframe:        strat.Timeframe,
		CandleTime:       candles[i].Time,
		Price:            candles[i].Close,
		Signals:          matched,
		CombinedStrength: combinedStrength,
		MarketRegime:     marketRegime,
		Direction:        direction,
	}
	return Match{StrategyID: strat.ID, SignalMatch: match, ATR: atr}, true, nil
}

// admit implements spec §4.9 step 4's admission rules, applied in order.
func (e *Engine) admit(strat *domain.Strategy, matched []domain.MatchedSignal, combinedStrength float64, regime domain.MarketRegime, settings domain.Settings) bool {
	if len(matched) == 0 || len(matched) < len(strat.Signals) {
		return false
	}
	if combinedStrength < settings.MinimumCombinedStrength {
		return false
	}
	if settings.BlockTradingInDowntrend && regime == domain.RegimeDowntrend {
		return false
	}

	// Conviction score is a per-cycle proxy: no external momentum feed is
	// wired into this scan path, so combinedStrength itself stands in for
	// it, consistent with internal/positions using the same value as
	// LivePosition.ConvictionScore.
	convictionScore := combinedStrength
	if settings.MinimumConvictionScore > 0 && convictionScore < settings.MinimumConvictionScore {
		return false
	}

	switch settings.SignalMatchingMode {
	case domain.MatchingEvent:
		return anyEvent(e.evaluate, matched)
	case domain.MatchingState:
		return !anyEvent(e.evaluate, matched)
	case domain.MatchingConvictionBased:
		const convictionWeight = 1.0
		return convictionScore*convictionWeight >= settings.MinimumCombinedStrength
	case domain.MatchingBoth:
		return true
	default:
		return true
	}
}

func anyEvent(evaluator *signals.Evaluator, matched []domain.MatchedSignal) bool {
	for _, m := range matched {
		isEvent, err := evaluator.IsEvent(m.Type, m.Value)
		if err == nil && isEvent {
			return true
		}
	}
	return false
}

// windowFor returns a sliding-window candle cache entry for (coin,
// timeframe), refetching only when the cached window no longer covers
// warmup bars or has gone stale.
func (e *Engine) windowFor(ctx context.Context, coin, timeframe string, warmup int) ([]domain.Candle, error) {
	key := coin + "|" + timeframe

	e.mu.Lock()
	entry, ok := e.cache[key]
	e.mu.Unlock()

	if ok && len(entry.candles) >= warmup && time.Since(entry.lastFetch) < staleAfter(timeframe) {
		return entry.candles, nil
	}

	candles, err := e.candles.GetKlines(ctx, coin, timeframe, warmup)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[key] = &cacheEntry{candles: candles, lastFetch: time.Now()}
	e.mu.Unlock()

	return candles, nil
}

// staleAfter bounds how long a cached window is reused before refetching;
// it's set to between a half and a sixth of one bar's duration so a new
// closed candle is always picked up promptly.
func staleAfter(timeframe string) time.Duration {
	switch timeframe {
	case "1m":
		return 30 * time.Second
	case "5m":
		return 2 * time.Minute
	case "15m":
		return 5 * time.Minute
	case "1h":
		return 20 * time.Minute
	case "4h":
		return time.Hour
	case "1d":
		return 4 * time.Hour
	default:
		return time.Minute
	}
}
