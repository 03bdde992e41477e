package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
	"github.com/ajitpratap0/cryptofunk/internal/signals"
)

func strategyWithSignals(n int) *domain.Strategy {
	specs := make([]domain.SignalSpec, n)
	for i := range specs {
		specs[i] = domain.SignalSpec{Type: domain.IndicatorRSI, Value: "oversold_entry"}
	}
	return &domain.Strategy{Combination: domain.Combination{Signals: specs}}
}

func matchedFor(strat *domain.Strategy) []domain.MatchedSignal {
	out := make([]domain.MatchedSignal, len(strat.Signals))
	for i, s := range strat.Signals {
		out[i] = domain.MatchedSignal{SignalSpec: s, Strength: 50}
	}
	return out
}

func newTestEngine() *Engine {
	return &Engine{evaluate: signals.NewEvaluator()}
}

func TestAdmitRejectsWhenFewerMatchesThanDeclaredSignals(t *testing.T) {
	e := newTestEngine()
	strat := strategyWithSignals(2)
	matched := matchedFor(strat)[:1]

	ok := e.admit(strat, matched, 50, domain.RegimeRanging, domain.Settings{})
	assert.False(t, ok)
}

func TestAdmitRejectsBelowMinimumCombinedStrength(t *testing.T) {
	e := newTestEngine()
	strat := strategyWithSignals(1)
	matched := matchedFor(strat)

	ok := e.admit(strat, matched, 10, domain.RegimeRanging, domain.Settings{MinimumCombinedStrength: 50})
	assert.False(t, ok)
}

func TestAdmitBlocksDowntrendWhenConfigured(t *testing.T) {
	e := newTestEngine()
	strat := strategyWithSignals(1)
	matched := matchedFor(strat)

	ok := e.admit(strat, matched, 50, domain.RegimeDowntrend, domain.Settings{BlockTradingInDowntrend: true})
	assert.False(t, ok)
}

func TestAdmitAllowsDowntrendWhenNotBlocked(t *testing.T) {
	e := newTestEngine()
	strat := strategyWithSignals(1)
	matched := matchedFor(strat)

	ok := e.admit(strat, matched, 50, domain.RegimeDowntrend, domain.Settings{BlockTradingInDowntrend: false})
	assert.True(t, ok)
}

func TestAdmitRejectsBelowMinimumConvictionScore(t *testing.T) {
	e := newTestEngine()
	strat := strategyWithSignals(1)
	matched := matchedFor(strat)

	ok := e.admit(strat, matched, 30, domain.RegimeRanging, domain.Settings{MinimumConvictionScore: 60})
	assert.False(t, ok)
}

func TestAdmitStateModeRejectsWhenAnyEventSignalMatched(t *testing.T) {
	e := newTestEngine()
	strat := &domain.Strategy{Combination: domain.Combination{
		Signals: []domain.SignalSpec{{Type: domain.IndicatorMACD, Value: "bullish_cross"}},
	}}
	matched := []domain.MatchedSignal{{SignalSpec: strat.Signals[0], Strength: 50}}

	ok := e.admit(strat, matched, 50, domain.RegimeRanging, domain.Settings{SignalMatchingMode: domain.MatchingState})
	assert.False(t, ok)
}

func TestAdmitEventModeRequiresAtLeastOneEventSignal(t *testing.T) {
	e := newTestEngine()
	strat := &domain.Strategy{Combination: domain.Combination{
		Signals: []domain.SignalSpec{{Type: domain.IndicatorRSI, Value: "oversold_entry"}},
	}}
	matched := []domain.MatchedSignal{{SignalSpec: strat.Signals[0], Strength: 50}}

	ok := e.admit(strat, matched, 50, domain.RegimeRanging, domain.Settings{SignalMatchingMode: domain.MatchingEvent})
	assert.False(t, ok)
}

func TestStaleAfterVariesByTimeframe(t *testing.T) {
	assert.Less(t, staleAfter("1m"), staleAfter("1h"))
	assert.Less(t, staleAfter("1h"), staleAfter("4h"))
	assert.Less(t, staleAfter("4h"), staleAfter("1d"))
}
