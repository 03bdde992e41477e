// Command scanner is the composition root for spec §4.10's Scanner core: it
// loads configuration, constructs every collaborator in dependency order
// (Store, ExchangeClient, PriceCache, IndicatorEngine, SignalEvaluator,
// StrategyManager, PendingOrderManager, PositionManager,
// SignalDetectionEngine, ActivityLog, Notifier), wires them into
// internal/scanner.Deps, starts the admin HTTP surface, and runs until an
// OS signal arrives. Grounded on cmd/orchestrator/main.go's
// config-load / construct / signal-wait shape.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/cryptofunk/internal/activitylog"
	"github.com/ajitpratap0/cryptofunk/internal/api"
	"github.com/ajitpratap0/cryptofunk/internal/config"
	"github.com/ajitpratap0/cryptofunk/internal/detection"
	"github.com/ajitpratap0/cryptofunk/internal/domain"
	"github.com/ajitpratap0/cryptofunk/internal/exchange"
	"github.com/ajitpratap0/cryptofunk/internal/indicators"
	"github.com/ajitpratap0/cryptofunk/internal/metrics"
	"github.com/ajitpratap0/cryptofunk/internal/notify"
	"github.com/ajitpratap0/cryptofunk/internal/orders"
	"github.com/ajitpratap0/cryptofunk/internal/positions"
	"github.com/ajitpratap0/cryptofunk/internal/pricecache"
	"github.com/ajitpratap0/cryptofunk/internal/scanner"
	"github.com/ajitpratap0/cryptofunk/internal/signals"
	"github.com/ajitpratap0/cryptofunk/internal/store"
	"github.com/ajitpratap0/cryptofunk/internal/strategy"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional, env vars used otherwise)")
	mockExchange := flag.Bool("mock-exchange", false, "use the deterministic paper-trading exchange instead of Binance")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	baseLog := log.With().Str("app", cfg.App.Name).Str("version", cfg.App.Version).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := store.Migrate(ctx, cfg.Database.GetDSN()); err != nil {
		baseLog.Fatal().Err(err).Msg("apply database migrations")
	}

	pool, err := pgxpool.New(ctx, cfg.Database.GetDSN())
	if err != nil {
		baseLog.Fatal().Err(err).Msg("open database pool")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		baseLog.Fatal().Err(err).Msg("ping database")
	}
	st := store.NewWithPool(pool, nil)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	var exchangeClient exchange.Client
	if *mockExchange {
		exchangeClient = exchange.NewMockClient(time.Now().UnixNano(), config.NewLogger("exchange"))
	} else {
		exchangeClient = exchange.NewBinanceClient(cfg.Exchange, config.NewLogger("exchange"))
	}

	prices := pricecache.New(exchangeClient, redisClient, config.NewLogger("pricecache")).
		WithStaleness(time.Duration(cfg.Scanner.StalenessWindowMs) * time.Millisecond).
		WithBatchDelay(time.Duration(cfg.Scanner.BatchDelayMs) * time.Millisecond)

	indicatorEngine := indicators.NewEngine(config.NewLogger("indicators"))
	evaluator := signals.NewEvaluator()

	strategyMgr := strategy.NewManager(st, config.NewLogger("strategy"))

	orderMgr := orders.NewManager(exchangeClient, orders.FillHandlers{}, config.NewLogger("orders"))
	positionMgr := positions.NewManager(st, orderMgr, prices, config.NewLogger("positions"))
	orderMgr.SetHandlers(positionMgr.FillHandlers())

	mode := domain.ModeTestnet
	if cfg.Exchange.DefaultMode == string(domain.ModeLive) {
		mode = domain.ModeLive
	}
	if open, err := st.ListOpenPositions(ctx, mode); err != nil {
		baseLog.Warn().Err(err).Msg("load open positions on startup")
	} else {
		positionMgr.LoadOpen(open)
	}

	detectionEngine := detection.NewEngine(exchangeClient, indicatorEngine, evaluator, config.NewLogger("detection"))

	activity := activitylog.New()

	// The admin websocket hub is built before the notifier so it can be
	// registered as a notify.Sink: every activity entry the scanner
	// emits fans out to connected admin clients in real time, alongside
	// NATS/Telegram.
	wsHub := api.NewHub(config.NewLogger("api"))
	go wsHub.Run()

	var sinks []notify.Sink
	sinks = append(sinks, wsHub)
	if cfg.NATS.URL != "" {
		if natsSink, err := notify.NewNATSSink(cfg.NATS.URL, cfg.NATS.ActivitySubject); err != nil {
			baseLog.Warn().Err(err).Msg("connect notify NATS sink, continuing without it")
		} else {
			sinks = append(sinks, natsSink)
		}
	}
	if cfg.Telegram.Enabled {
		if tgSink, err := notify.NewTelegramSink(cfg.Telegram.Token, []int64{cfg.Telegram.ChatID}); err != nil {
			baseLog.Warn().Err(err).Msg("connect notify Telegram sink, continuing without it")
		} else {
			sinks = append(sinks, tgSink)
		}
	}
	notifier := notify.New(config.NewLogger("notify"), sinks...)

	deps := scanner.Deps{
		Sessions:   st,
		Settings:   st,
		Strategies: strategyMgr,
		Prices:     prices,
		Detection:  detectionEngine,
		Positions:  positionMgr,
		Orders:     orderMgr,
		Wallet:     exchangeClient,
		Notifier:   notifier,
		Activity:   activity,
		Log:        config.NewLogger("scanner"),
	}
	sc := scanner.New(deps, mode)

	started, err := sc.Start(ctx)
	if err != nil {
		baseLog.Fatal().Err(err).Msg("start scanner")
	}
	if !started {
		baseLog.Error().Msg("another instance already holds scanner leadership, exiting")
		os.Exit(2)
	}

	adminServer := api.NewServer(api.Config{
		Host:        cfg.Admin.Host,
		Port:        cfg.Admin.Port,
		Scanner:     sc,
		Activity:    activity,
		DB:          pool,
		AuthEnabled: false,
		Hub:         wsHub,
		Log:         config.NewLogger("api"),
	})
	go func() {
		if err := adminServer.Start(); err != nil {
			baseLog.Error().Err(err).Msg("admin server stopped")
		}
	}()

	metricsServer := metrics.NewServer(cfg.Metrics.Port, config.NewLogger("metrics"))
	if err := metricsServer.Start(); err != nil {
		baseLog.Error().Err(err).Msg("metrics server stopped")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	baseLog.Info().Msg("shutdown requested")
	sc.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := adminServer.Stop(shutdownCtx); err != nil {
		baseLog.Warn().Err(err).Msg("admin server shutdown")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		baseLog.Warn().Err(err).Msg("metrics server shutdown")
	}
}
