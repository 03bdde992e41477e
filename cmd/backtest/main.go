// Command backtest runs the BacktestRunner+Aggregator pipeline against
// historical candles for a set of coins and prints the surviving
// combinations. It is the offline counterpart to the admin
// API's /api/v1/backtest/run endpoint, driving the same pkg/backtest code
// directly rather than through a Postgres-backed job queue.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ajitpratap0/cryptofunk/internal/config"
	"github.com/ajitpratap0/cryptofunk/internal/domain"
	"github.com/ajitpratap0/cryptofunk/internal/exchange"
	"github.com/ajitpratap0/cryptofunk/internal/indicators"
	"github.com/ajitpratap0/cryptofunk/internal/signals"
	"github.com/ajitpratap0/cryptofunk/internal/store"
	btrun "github.com/ajitpratap0/cryptofunk/pkg/backtest"
)

func main() {
	var (
		configPath      = flag.String("config", "", "path to config file (optional, env vars used otherwise)")
		coinsFlag       = flag.String("coins", "", "comma-separated list of coins, e.g. BTCUSDT,ETHUSDT")
		timeframe       = flag.String("timeframe", "1h", "candle timeframe")
		period          = flag.Int("period", 1000, "number of historical candles to fetch per coin")
		signalsPath     = flag.String("signals", "", "path to a JSON file listing enabled signal specs")
		targetGain      = flag.Float64("target-gain", 1.0, "target percentage move that counts as a win")
		futureWindow    = flag.Int("future-window", 20, "bars to walk forward when scoring a match")
		requiredSignals = flag.Int("required-signals", 1, "minimum signals that must fire together")
		maxSignals      = flag.Int("max-signals", 3, "maximum signals considered in a combination")
		minCombined     = flag.Float64("min-combined-strength", 0, "minimum combined strength for a subset to count")
		regimeAware     = flag.Bool("regime-aware", true, "filter matches against the bar's market regime")
		batchSize       = flag.Int("batch-size", 3, "number of coins processed in parallel")
		minOccurrences  = flag.Int("min-occurrences", 5, "discard combinations below this occurrence count")
		minProfitFactor = flag.Float64("min-profit-factor", 1.0, "discard combinations below this profit factor")
		minAvgMove      = flag.Float64("min-average-price-move", 0, "discard combinations below this average move")
		admit           = flag.Bool("admit", false, "persist surviving combinations as live strategies")
	)
	flag.Parse()

	log := config.NewLogger("backtest-cli")

	if *coinsFlag == "" {
		log.Fatal().Msg("--coins is required")
	}
	coins := strings.Split(*coinsFlag, ",")
	for i, c := range coins {
		coins[i] = strings.TrimSpace(c)
	}

	specs, err := loadSignalSpecs(*signalsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load signal specs")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()

	client := exchange.NewBinanceClient(cfg.Exchange, log)
	engine := indicators.NewEngine(log)
	evaluator := signals.NewEvaluator()
	classifier := btrun.NewRegimeClassifier()

	runner := btrun.NewRunner(client, engine, evaluator, classifier, &log)

	runnerCfg := btrun.Config{
		EnabledSignals:      specs,
		TargetGain:          *targetGain,
		FutureWindow:        *futureWindow,
		RequiredSignals:     *requiredSignals,
		MaxSignals:          *maxSignals,
		MinCombinedStrength: *minCombined,
		RegimeAware:         *regimeAware,
		BatchSize:           *batchSize,
	}

	report, err := runner.Run(ctx, coins, *timeframe, *period, runnerCfg, func(coin string, pct float64) {
		log.Info().Str("coin", coin).Float64("percent", pct).Msg("backtest progress")
	})
	if err != nil {
		log.Fatal().Err(err).Msg("backtest run failed")
	}

	for coin, reason := range report.FailedCoins {
		log.Warn().Str("coin", coin).Str("reason", reason).Msg("coin failed during backtest")
	}

	var allMatches []domain.SignalMatch
	for _, r := range report.Results {
		allMatches = append(allMatches, r.Matches...)
	}

	aggCfg := btrun.AggregateConfig{
		MinOccurrences:      *minOccurrences,
		MinProfitFactor:     *minProfitFactor,
		MinAveragePriceMove: *minAvgMove,
	}
	agg := btrun.Aggregate(allMatches, aggCfg)

	printCombinations(agg)

	if *admit {
		dsn := cfg.Database.GetDSN()
		st, err := store.New(ctx, dsn)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database for --admit")
		}
		defer st.Close()

		result, err := btrun.Admit(ctx, st, agg.Combinations)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to admit combinations")
		}
		log.Info().Int("admitted", result.Admitted).Int("duplicate", result.Duplicate).Msg("admission complete")
	}
}

func loadSignalSpecs(path string) ([]domain.SignalSpec, error) {
	if path == "" {
		return nil, fmt.Errorf("--signals is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signals file: %w", err)
	}
	var specs []domain.SignalSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("parse signals file: %w", err)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("signals file %q contains no signal specs", path)
	}
	return specs, nil
}

func printCombinations(agg btrun.AggregateResult) {
	fmt.Printf("%d matches kept, %d combinations discarded\n", len(agg.KeptMatches), agg.Discarded)
	for _, c := range agg.Combinations {
		fmt.Printf("%-60s occ=%-5d success=%-6.2f%% pf=%-8.2f netMove=%-7.2f regime=%s\n",
			c.Signature, c.Occurrences, c.SuccessRate, c.ProfitFactor, c.NetAveragePriceMove, c.DominantMarketRegime)
	}
}
