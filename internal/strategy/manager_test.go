package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
)

type fakeStore struct {
	strategies []*domain.Strategy
	err        error
}

func (f *fakeStore) ListActiveStrategies(ctx context.Context) ([]*domain.Strategy, error) {
	return f.strategies, f.err
}

func baseStrategy(id string) *domain.Strategy {
	return &domain.Strategy{
		ID:                id,
		IncludedInScanner: true,
		Combination: domain.Combination{
			Coin:             "BTC",
			Signals:          []domain.SignalSpec{{Type: domain.IndicatorRSI, Value: "oversold"}},
			CombinedStrength: 10,
		},
	}
}

func TestFilterRejectsOptedOutGlobally(t *testing.T) {
	s := baseStrategy("a")
	s.OptedOutGlobally = true

	active, rejected := Filter([]*domain.Strategy{s}, FilterParams{})
	assert.Empty(t, active)
	assert.Equal(t, 1, rejected.OptedOut)
}

func TestFilterRejectsOptedOutForCoin(t *testing.T) {
	s := baseStrategy("a")
	s.OptedOutForCoin = map[string]bool{"BTC": true}

	active, rejected := Filter([]*domain.Strategy{s}, FilterParams{})
	assert.Empty(t, active)
	assert.Equal(t, 1, rejected.OptedOut)
}

func TestFilterRejectsEmptySignals(t *testing.T) {
	s := baseStrategy("a")
	s.Signals = nil

	active, rejected := Filter([]*domain.Strategy{s}, FilterParams{})
	assert.Empty(t, active)
	assert.Equal(t, 1, rejected.NoSignals)
}

func TestFilterRejectsBelowMinimumCombinedStrength(t *testing.T) {
	s := baseStrategy("a")
	s.CombinedStrength = 5

	active, rejected := Filter([]*domain.Strategy{s}, FilterParams{MinimumCombinedStrength: 10})
	assert.Empty(t, active)
	assert.Equal(t, 1, rejected.BelowStrength)
}

func TestFilterRejectsUnderperforming(t *testing.T) {
	s := baseStrategy("a")
	s.RealTradeCount = 5
	s.RealProfitFactor = 0.5
	s.RealSuccessRate = 50

	active, rejected := Filter([]*domain.Strategy{s}, FilterParams{})
	assert.Empty(t, active)
	assert.Equal(t, 1, rejected.Underperforming)
}

func TestFilterDoesNotRejectUnderperformingBelowTradeThreshold(t *testing.T) {
	s := baseStrategy("a")
	s.RealTradeCount = 4
	s.RealProfitFactor = 0.1
	s.RealSuccessRate = 1

	active, rejected := Filter([]*domain.Strategy{s}, FilterParams{})
	assert.Len(t, active, 1)
	assert.Equal(t, 0, rejected.Underperforming)
}

func TestFilterRejectsNotIncluded(t *testing.T) {
	s := baseStrategy("a")
	s.IncludedInScanner = false

	active, rejected := Filter([]*domain.Strategy{s}, FilterParams{})
	assert.Empty(t, active)
	assert.Equal(t, 1, rejected.NotIncluded)
}

func TestFilterAcceptsHealthyStrategy(t *testing.T) {
	s := baseStrategy("a")

	active, rejected := Filter([]*domain.Strategy{s}, FilterParams{MinimumCombinedStrength: 1})
	assert.Len(t, active, 1)
	assert.Equal(t, 0, rejected.Total())
}

func TestProfitabilityScoreTiersUseDistinctWeights(t *testing.T) {
	established := baseStrategy("a")
	established.RealTradeCount = 10
	established.RealProfitFactor = 2
	established.RealSuccessRate = 60
	established.ProfitFactor = 1.5
	established.SuccessRate = 55
	established.CombinedStrength = 20

	emerging := baseStrategy("b")
	emerging.RealTradeCount = 5
	emerging.RealProfitFactor = 2
	emerging.RealSuccessRate = 60
	emerging.ProfitFactor = 1.5
	emerging.SuccessRate = 55
	emerging.CombinedStrength = 20

	untested := baseStrategy("c")
	untested.ProfitFactor = 1.5
	untested.SuccessRate = 55
	untested.CombinedStrength = 20

	assert.NotEqual(t, ProfitabilityScore(established), ProfitabilityScore(emerging))
	assert.Greater(t, ProfitabilityScore(untested), 0.0)
}

func TestRankSortsDescendingByScore(t *testing.T) {
	low := baseStrategy("low")
	low.ProfitFactor = 0.5

	high := baseStrategy("high")
	high.ProfitFactor = 5

	strategies := []*domain.Strategy{low, high}
	Rank(strategies)

	require.Len(t, strategies, 2)
	assert.Equal(t, "high", strategies[0].ID)
	assert.Equal(t, "low", strategies[1].ID)
}

func TestManagerRefreshPublishesToSubscribers(t *testing.T) {
	store := &fakeStore{strategies: []*domain.Strategy{baseStrategy("a")}}
	mgr := NewManager(store, testLogger())

	ch, unsub := mgr.Subscribe()
	defer unsub()

	snap, err := mgr.Refresh(context.Background(), domain.ModeLive, FilterParams{})
	require.NoError(t, err)
	assert.Len(t, snap.Active, 1)
	assert.InDelta(t, 10, snap.AverageSignalStrength, 1e-9)

	select {
	case got := <-ch:
		assert.Len(t, got.Active, 1)
	default:
		t.Fatal("expected a snapshot to be published to the subscriber")
	}

	assert.Equal(t, snap, mgr.Current())
}

func TestManagerRefreshPropagatesStoreError(t *testing.T) {
	store := &fakeStore{err: assert.AnError}
	mgr := NewManager(store, testLogger())

	_, err := mgr.Refresh(context.Background(), domain.ModeLive, FilterParams{})
	assert.Error(t, err)
}
