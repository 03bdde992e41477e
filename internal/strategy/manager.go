package strategy

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
)

// Store is the narrow persistence contract Manager needs, satisfied by
// *internal/store.Store.
type Store interface {
	ListActiveStrategies(ctx context.Context) ([]*domain.Strategy, error)
}

// RejectCounters tallies how many strategies were dropped by each filter
// rule in one Refresh.
type RejectCounters struct {
	OptedOut         int
	NoSignals        int
	BelowStrength    int
	Underperforming  int
	NotIncluded      int
}

// Total sums every rejection counter.
func (c RejectCounters) Total() int {
	return c.OptedOut + c.NoSignals + c.BelowStrength + c.Underperforming + c.NotIncluded
}

// Snapshot is what Manager.Refresh publishes to subscribers: the freshly
// filtered/ranked active set plus the rejection breakdown and the updated
// average-signal-strength stat.
type Snapshot struct {
	Active                []*domain.Strategy
	Rejected               RejectCounters
	AverageSignalStrength float64
}

// Unsubscribe drops a subscription registered with Subscribe, mirroring
// internal/pricecache's Unsubscribe handle.
type Unsubscribe func()

// Manager loads, filters, and ranks active strategies, with a
// minimumCombinedStrength threshold supplied per refresh (it comes from the
// scanner's persisted Settings).
type Manager struct {
	store Store
	log   zerolog.Logger

	mu       sync.RWMutex
	current  Snapshot

	subMu       sync.Mutex
	subscribers map[int]chan Snapshot
	nextSubID   int
}

// NewManager builds a Manager.
func NewManager(store Store, log zerolog.Logger) *Manager {
	return &Manager{
		store:       store,
		log:         log.With().Str("component", "strategy_manager").Logger(),
		subscribers: make(map[int]chan Snapshot),
	}
}

// FilterParams are the per-refresh thresholds the scanner's Settings supply.
type FilterParams struct {
	MinimumCombinedStrength float64
}

// LoadActive reads every strategy with includedInScanner=true from the
// store — the store query itself already applies that filter rule — then
// runs the remaining filter pipeline over them.
func (m *Manager) LoadActive(ctx context.Context, mode domain.TradingMode, params FilterParams) ([]*domain.Strategy, RejectCounters, error) {
	all, err := m.store.ListActiveStrategies(ctx)
	if err != nil {
		return nil, RejectCounters{}, fmt.Errorf("strategy: load active: %w", err)
	}
	active, rejected := Filter(all, params)
	Rank(active)
	return active, rejected, nil
}

// Filter applies the ordered rejection rules. Each strategy is checked
// against every rule in order; the first rule it fails determines which
// counter increments.
func Filter(strategies []*domain.Strategy, params FilterParams) ([]*domain.Strategy, RejectCounters) {
	var out []*domain.Strategy
	var rejected RejectCounters

	for _, s := range strategies {
		if s.OptedOutGlobally || (s.OptedOutForCoin != nil && s.OptedOutForCoin[s.Coin]) {
			rejected.OptedOut++
			continue
		}
		if len(s.Signals) == 0 {
			rejected.NoSignals++
			continue
		}
		if s.CombinedStrength < params.MinimumCombinedStrength {
			rejected.BelowStrength++
			continue
		}
		if isUnderperforming(s) {
			rejected.Underperforming++
			continue
		}
		if !s.IncludedInScanner {
			rejected.NotIncluded++
			continue
		}
		out = append(out, s)
	}
	return out, rejected
}

// isUnderperforming flags a strategy with enough live trades to judge and a
// poor real-money track record: realTradeCount >= 5 and either
// realProfitFactor < 0.8 or realSuccessRate < 25.
func isUnderperforming(s *domain.Strategy) bool {
	return s.RealTradeCount >= 5 && (s.RealProfitFactor < 0.8 || s.RealSuccessRate < 25)
}

// Rank computes each strategy's ProfitabilityScore and sorts descending in place. Sorting, not gating, is this
// function's only effect on the slice's membership.
func Rank(strategies []*domain.Strategy) {
	for _, s := range strategies {
		s.ProfitabilityScore = ProfitabilityScore(s)
	}
	sort.SliceStable(strategies, func(i, j int) bool {
		return strategies[i].ProfitabilityScore > strategies[j].ProfitabilityScore
	})
}

// ProfitabilityScore computes a three-tier weighted formula (weighted more
// toward live results as realTradeCount grows), used only for sort
// ordering, never as a gate.
func ProfitabilityScore(s *domain.Strategy) float64 {
	rPF, rSR, bPF, bSR, cs := s.RealProfitFactor, s.RealSuccessRate, s.ProfitFactor, s.SuccessRate, s.CombinedStrength

	switch {
	case s.RealTradeCount >= 10:
		return 0.4*rPF + 0.003*rSR + 0.2*bPF + 0.001*bSR + 0.001*cs
	case s.RealTradeCount >= 5:
		return 0.3*rPF + 0.002*rSR + 0.3*bPF + 0.002*bSR + 0.001*cs
	default:
		score := 0.4*bPF + 0.003*bSR + 0.002*cs
		if s.RealTradeCount == 0 {
			score += 0.5
		} else {
			score -= 0.2
		}
		if s.RealTradeCount == 0 && cs > 0 {
			score += cs / 1000
		}
		return score
	}
}

// Refresh rebuilds the active list, recomputes the average-signal-strength
// stat and notifies every subscriber.
func (m *Manager) Refresh(ctx context.Context, mode domain.TradingMode, params FilterParams) (Snapshot, error) {
	active, rejected, err := m.LoadActive(ctx, mode, params)
	if err != nil {
		return Snapshot{}, err
	}

	var sum float64
	for _, s := range active {
		sum += s.CombinedStrength
	}
	avg := 0.0
	if len(active) > 0 {
		avg = sum / float64(len(active))
	}

	snap := Snapshot{Active: active, Rejected: rejected, AverageSignalStrength: avg}

	m.mu.Lock()
	m.current = snap
	m.mu.Unlock()

	m.log.Info().Int("active", len(active)).Int("rejected", rejected.Total()).
		Float64("avg_strength", avg).Msg("strategy list refreshed")

	m.broadcast(snap)
	return snap, nil
}

// Current returns the most recently refreshed snapshot without touching the
// store.
func (m *Manager) Current() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Subscribe registers a channel that receives every future Refresh result.
// The channel is buffered (size 1, latest-value semantics) so a slow
// subscriber drops stale snapshots rather than blocking Refresh.
func (m *Manager) Subscribe() (<-chan Snapshot, Unsubscribe) {
	ch := make(chan Snapshot, 1)

	m.subMu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = ch
	m.subMu.Unlock()

	return ch, func() {
		m.subMu.Lock()
		delete(m.subscribers, id)
		m.subMu.Unlock()
	}
}

func (m *Manager) broadcast(snap Snapshot) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subscribers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
