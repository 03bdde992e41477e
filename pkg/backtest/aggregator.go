package backtest

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
	"github.com/ajitpratap0/cryptofunk/internal/metrics"
)

// Signature computes the canonical de-duplication key for a (timeframe,
// signals) pair: `TF:{T}|` followed by each signal rendered as
// `{type}:{value}[{k=v,...}]` (parameters sorted by key), the signals
// themselves sorted, and joined by `+!`.
func Signature(timeframe string, specs []domain.SignalSpec) string {
	rendered := make([]string, 0, len(specs))
	for _, s := range specs {
		rendered = append(rendered, renderSignal(s))
	}
	sort.Strings(rendered)
	return fmt.Sprintf("TF:%s|%s", timeframe, strings.Join(rendered, "+!"))
}

func renderSignal(s domain.SignalSpec) string {
	var b strings.Builder
	b.WriteString(string(s.Type))
	b.WriteString(":")
	b.WriteString(s.Value)

	if len(s.Parameters) > 0 {
		keys := make([]string, 0, len(s.Parameters))
		for k := range s.Parameters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, fmt.Sprintf("%s=%v", k, s.Parameters[k]))
		}
		b.WriteString("[")
		b.WriteString(strings.Join(pairs, ","))
		b.WriteString("]")
	}
	return b.String()
}

// AggregateConfig gates which combinations survive aggregation.
type AggregateConfig struct {
	MinOccurrences     int
	MinProfitFactor    float64
	MinAveragePriceMove float64
}

// AggregateResult is BacktestAggregator's output: surviving combinations and
// the subset of raw matches attributed to one of them.
type AggregateResult struct {
	Combinations []domain.Combination
	KeptMatches  []domain.SignalMatch
	Discarded    int
}

// Aggregate groups raw matches by (timeframe, signature), computes each
// group's statistics, discards groups failing cfg's thresholds, then applies
// the best-at-trigger filter across the survivors.
func Aggregate(matches []domain.SignalMatch, cfg AggregateConfig) AggregateResult {
	groups := make(map[string][]domain.SignalMatch)
	sigOf := make(map[string]string) // group key -> signature (same value, kept for clarity)
	for _, m := range matches {
		sig := Signature(m.Timeframe, signalSpecsOf(m.Signals))
		key := m.Timeframe + "|" + sig
		groups[key] = append(groups[key], m)
		sigOf[key] = sig
	}

	combosByKey := make(map[string]domain.Combination, len(groups))
	discarded := 0
	for key, group := range groups {
		combo := summarize(sigOf[key], group)
		if combo.Occurrences < cfg.MinOccurrences ||
			combo.ProfitFactor < cfg.MinProfitFactor ||
			combo.NetAveragePriceMove < cfg.MinAveragePriceMove {
			discarded++
			continue
		}
		combosByKey[key] = combo
	}

	kept := bestAtTrigger(matches, combosByKey)

	combos := make([]domain.Combination, 0, len(combosByKey))
	for _, c := range combosByKey {
		combos = append(combos, c)
	}
	sort.Slice(combos, func(i, j int) bool { return combos[i].ProfitFactor > combos[j].ProfitFactor })
	metrics.GetOrCreateScannerMetrics().BacktestCombinations.Set(float64(len(combos)))

	return AggregateResult{Combinations: combos, KeptMatches: kept, Discarded: discarded}
}

func signalSpecsOf(matched []domain.MatchedSignal) []domain.SignalSpec {
	out := make([]domain.SignalSpec, len(matched))
	for i, m := range matched {
		out[i] = m.SignalSpec
	}
	return out
}

// summarize computes one group's Combination statistics.
func summarize(signature string, group []domain.SignalMatch) domain.Combination {
	first := group[0]
	combo := domain.Combination{
		Signature:                signature,
		CombinationName:          combinationName(first.Signals),
		Coin:                     first.Coin,
		Timeframe:                first.Timeframe,
		Signals:                  signalSpecsOf(first.Signals),
		Occurrences:              len(group),
		MarketRegimeDistribution: make(map[domain.MarketRegime]domain.RegimeStat),
	}

	var successCount int
	var sumMove, sumCombined float64
	var winDurationSum float64
	var winDurationCount int
	var grossProfit, grossLoss float64
	var drawdowns []float64

	regimeAgg := make(map[domain.MarketRegime]*domain.RegimeStat)

	for _, m := range group {
		sumCombined += m.CombinedStrength
		move := 0.0
		if m.FuturePriceMove != nil {
			move = *m.FuturePriceMove
		}
		sumMove += move
		if move >= 0 {
			grossProfit += move
		} else {
			grossLoss += -move
		}

		successful := m.Successful != nil && *m.Successful
		if successful {
			successCount++
			if m.WinDurationMinutes != nil {
				winDurationSum += *m.WinDurationMinutes
				winDurationCount++
			}
		}
		if m.FutureMaxDrawdown != nil {
			drawdowns = append(drawdowns, *m.FutureMaxDrawdown)
		}

		rs, ok := regimeAgg[m.MarketRegime]
		if !ok {
			rs = &domain.RegimeStat{}
			regimeAgg[m.MarketRegime] = rs
		}
		rs.Occurrences++
		if successful {
			rs.Successful++
		}
		if move >= 0 {
			rs.GrossProfit += move
		} else {
			rs.GrossLoss += -move
		}
		rs.AvgPriceMove += move
	}

	combo.SuccessRate = percent(successCount, len(group))
	combo.NetAveragePriceMove = sumMove / float64(len(group))
	combo.CombinedStrength = sumCombined / float64(len(group))
	combo.ProfitFactor = profitFactor(grossProfit, grossLoss, successCount, len(group))
	if winDurationCount > 0 {
		combo.AvgWinDurationMinutes = winDurationSum / float64(winDurationCount)
	}
	combo.MedianLowestLowDuringBacktest = median(drawdowns)

	var dominant domain.MarketRegime
	maxOccurrences := -1
	for regime, rs := range regimeAgg {
		rs.SuccessRate = percent(rs.Successful, rs.Occurrences)
		rs.ProfitFactor = profitFactor(rs.GrossProfit, rs.GrossLoss, rs.Successful, rs.Occurrences)
		rs.AvgPriceMove /= float64(rs.Occurrences)
		combo.MarketRegimeDistribution[regime] = *rs
		if rs.Occurrences > maxOccurrences {
			maxOccurrences = rs.Occurrences
			dominant = regime
		}
	}
	combo.DominantMarketRegime = dominant

	return combo
}

func combinationName(matched []domain.MatchedSignal) string {
	parts := make([]string, len(matched))
	for i, m := range matched {
		parts[i] = string(m.Type) + "." + m.Value
	}
	sort.Strings(parts)
	return strings.Join(parts, "+")
}

func percent(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}

// profitFactor implements spec §4.4's special-case table for grossLoss==0.
func profitFactor(grossProfit, grossLoss float64, successful, total int) float64 {
	if grossLoss == 0 {
		switch {
		case total > 0 && successful == total:
			return 999.99
		case grossProfit > 0:
			return 100.0
		default:
			return 1.0
		}
	}
	pf := grossProfit / grossLoss
	if pf > 999.99 {
		return 999.99
	}
	return pf
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// bestAtTrigger implements spec §8 scenario 2: when a single bar (coin,
// timeframe, candleTime) admits more than one surviving combination -
// BacktestRunner can emit one candidate SignalMatch per qualifying signal
// subset at that bar, see runner.go's candidateSubsets - only the candidate
// whose combination has the highest profit factor is attributed to that
// trigger; the rest are dropped so a single bar never counts toward more
// than one combination's statistics.
func bestAtTrigger(matches []domain.SignalMatch, survivors map[string]domain.Combination) []domain.SignalMatch {
	type trigger struct {
		coin       string
		timeframe  string
		candleTime int64
	}

	bestMatch := make(map[trigger]domain.SignalMatch)
	bestPF := make(map[trigger]float64)

	for _, m := range matches {
		sig := Signature(m.Timeframe, signalSpecsOf(m.Signals))
		key := m.Timeframe + "|" + sig
		combo, ok := survivors[key]
		if !ok {
			continue
		}

		t := trigger{m.Coin, m.Timeframe, m.CandleTime}
		if pf, seen := bestPF[t]; !seen || combo.ProfitFactor > pf {
			bestPF[t] = combo.ProfitFactor
			bestMatch[t] = m
		}
	}

	kept := make([]domain.SignalMatch, 0, len(bestMatch))
	for _, m := range bestMatch {
		kept = append(kept, m)
	}
	return kept
}

// AdmitResult reports how many strategies were admitted vs. skipped as
// duplicates.
type AdmitResult struct {
	Admitted  int
	Duplicate int
}

// ExistingSignatures is the narrow persistence contract Admit needs: check
// whether a signature is already a stored Strategy. Satisfied by *internal/store.Store.
type ExistingSignatures interface {
	HasSignature(ctx context.Context, signature string) (bool, error)
	SaveStrategy(ctx context.Context, strat *domain.Strategy) error
}

// Admit persists combos as Strategy entries with includedInScanner=true,
// skipping any whose signature already exists.
func Admit(ctx context.Context, store ExistingSignatures, combos []domain.Combination) (AdmitResult, error) {
	var result AdmitResult
	for _, c := range combos {
		exists, err := store.HasSignature(ctx, c.Signature)
		if err != nil {
			return result, fmt.Errorf("aggregator: checking signature %q: %w", c.Signature, err)
		}
		if exists {
			result.Duplicate++
			continue
		}
		strategy := &domain.Strategy{Combination: c, IncludedInScanner: true}
		if err := store.SaveStrategy(ctx, strategy); err != nil {
			return result, fmt.Errorf("aggregator: saving strategy %q: %w", c.Signature, err)
		}
		result.Admitted++
	}
	return result, nil
}
