// Package scanner implements the single-leader scan-cycle core: leader
// election across instances, periodic scan cycles fanning out to
// StrategyManager/PriceCache/SignalDetectionEngine/PositionManager/
// PendingOrderManager, cancellation and restart. The run loop follows a
// Run/healthCheckLoop/Shutdown lifecycle shape (one instance per process)
// with a periodic-ticker heartbeat publisher (stop channel plus an atomic
// running flag), backed here by a Postgres leader-election CAS rather than
// presence on a message bus.
package scanner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ajitpratap0/cryptofunk/internal/detection"
	"github.com/ajitpratap0/cryptofunk/internal/domain"
	"github.com/ajitpratap0/cryptofunk/internal/exchange"
	"github.com/ajitpratap0/cryptofunk/internal/metrics"
	"github.com/ajitpratap0/cryptofunk/internal/notify"
	"github.com/ajitpratap0/cryptofunk/internal/scanerrors"
	"github.com/ajitpratap0/cryptofunk/internal/strategy"
)

const (
	minScanFrequency = 100 * time.Millisecond
	maxScanFrequency = 5 * time.Minute

	defaultSessionTimeout     = 30 * time.Second
	defaultHeartbeatInterval  = 10 * time.Second
)

// SessionStore is the narrow leadership contract Scanner needs on
// internal/store.Store.
type SessionStore interface {
	TryAcquireLeadership(ctx context.Context, sessionID string, staleAfter time.Duration) (bool, error)
	Heartbeat(ctx context.Context, sessionID string) (bool, error)
	ReleaseLeadership(ctx context.Context, sessionID string) error
}

// SettingsStore is the narrow settings contract Scanner needs.
type SettingsStore interface {
	GetSettings(ctx context.Context) (*domain.Settings, error)
	UpsertScannerStats(ctx context.Context, stats *domain.ScannerStats) error
}

// StrategyLoader is the narrow contract Scanner needs on
// internal/strategy.Manager.
type StrategyLoader interface {
	Refresh(ctx context.Context, mode domain.TradingMode, params strategy.FilterParams) (strategy.Snapshot, error)
	Current() strategy.Snapshot
}

// PriceSource is the narrow contract Scanner needs on internal/pricecache.Cache.
type PriceSource interface {
	GetBatchPrices(ctx context.Context, coins []string, mode domain.TradingMode) (map[string]float64, error)
}

// DetectionEngine is the narrow contract Scanner needs on
// internal/detection.Engine.
type DetectionEngine interface {
	Scan(ctx context.Context, strategies []*domain.Strategy, settings domain.Settings) []detection.Match
}

// PositionManager is the narrow contract Scanner needs on
// internal/positions.Manager.
type PositionManager interface {
	Open(ctx context.Context, match domain.SignalMatch, strat *domain.Strategy, atr float64, wallet exchange.Wallet, settings domain.Settings, mode domain.TradingMode) error
	MonitorAll(ctx context.Context, strategies map[string]*domain.Strategy, mode domain.TradingMode)
	Snapshot() []*domain.LivePosition
}

// OrderChecker is the narrow contract Scanner needs on internal/orders.Manager.
type OrderChecker interface {
	CheckOnce(ctx context.Context)
}

// WalletSource is the narrow contract Scanner needs on internal/exchange.Client.
type WalletSource interface {
	GetWallet(ctx context.Context, mode domain.TradingMode) (exchange.Wallet, error)
}

// ActivityRecorder is the narrow contract Scanner needs on
// internal/activitylog.Log.
type ActivityRecorder interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Trade(message string, data map[string]any)
	Cycle(message string, data map[string]any)
}

// Deps bundles every collaborator the Scanner's composition root wires
// together.
type Deps struct {
	Sessions   SessionStore
	Settings   SettingsStore
	Strategies StrategyLoader
	Prices     PriceSource
	Detection  DetectionEngine
	Positions  PositionManager
	Orders     OrderChecker
	Wallet     WalletSource
	Notifier   *notify.Notifier
	Activity   ActivityRecorder
	Log        zerolog.Logger
}

// Stats is a thread-safe read view of the running per-mode scan statistics.
type Stats struct {
	TotalScanCycles                int64
	TotalScans                     int64
	SignalsFound                   int64
	TradesExecuted                 int64
	AverageScanTimeMs              float64
	LastScanTimeMs                 float64
	AverageSignalStrength          float64
	LastCycleAverageSignalStrength float64
}

// Scanner is the session leader / scan-cycle scheduler.
type Scanner struct {
	sessionID string
	deps      Deps
	log       zerolog.Logger

	sessionTimeout    time.Duration
	heartbeatInterval time.Duration

	mu      sync.Mutex
	mode    domain.TradingMode
	running bool
	leader  atomic.Bool

	cancel   context.CancelFunc
	loopDone chan struct{}

	statsMu sync.Mutex
	stats   Stats
}

// New builds a Scanner with a random session ID (one per process).
func New(deps Deps, mode domain.TradingMode) *Scanner {
	return &Scanner{
		sessionID:         uuid.New().String(),
		deps:              deps,
		log:               deps.Log.With().Str("component", "scanner").Logger(),
		sessionTimeout:    defaultSessionTimeout,
		heartbeatInterval: defaultHeartbeatInterval,
		mode:              mode,
	}
}

// WithLeadershipTimings overrides the default 30s session timeout / 10s
// heartbeat interval.
func (s *Scanner) WithLeadershipTimings(sessionTimeout, heartbeatInterval time.Duration) *Scanner {
	s.sessionTimeout = sessionTimeout
	s.heartbeatInterval = heartbeatInterval
	return s
}

// Start attempts leader election and, on success, launches the scan-cycle
// and heartbeat loops. Returns false (no error) if another instance already
// holds leadership.
func (s *Scanner) Start(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return true, nil
	}
	s.mu.Unlock()

	acquired, err := s.deps.Sessions.TryAcquireLeadership(ctx, s.sessionID, s.sessionTimeout)
	if err != nil {
		return false, fmt.Errorf("scanner: acquire leadership: %w", err)
	}
	if !acquired {
		s.log.Warn().Msg("another session is already leader")
		return false, nil
	}
	s.leader.Store(true)
	metrics.GetOrCreateScannerMetrics().LeadershipChanges.Inc()

	loopCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.loopDone = make(chan struct{})
	s.running = true
	s.mu.Unlock()

	s.deps.Activity.Infof("scanner became leader (session %s)", s.sessionID)
	go s.run(loopCtx)
	return true, nil
}

// Stop requests cancellation, waits for the in-flight cycle to finish its
// current phase, and releases leadership best-effort.
func (s *Scanner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.loopDone
	s.running = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	s.leader.Store(false)
	releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer releaseCancel()
	if err := s.deps.Sessions.ReleaseLeadership(releaseCtx, s.sessionID); err != nil {
		s.log.Warn().Err(err).Msg("failed to release leadership on stop")
	}
	s.deps.Activity.Infof("scanner stopped")
}

// Restart stops then starts the scan loop.
func (s *Scanner) Restart(ctx context.Context) (bool, error) {
	s.Stop()
	return s.Start(ctx)
}

// HardReset stops the loop, resets per-mode stats (PositionManager already
// persists on every mutation, so there is nothing further to flush), and
// restarts, reloading strategies fresh.
func (s *Scanner) HardReset(ctx context.Context) (bool, error) {
	s.Stop()

	s.statsMu.Lock()
	s.stats = Stats{}
	s.statsMu.Unlock()

	s.deps.Activity.Infof("scanner hard reset")
	return s.Start(ctx)
}

// SwitchMode changes the trading mode the next scan cycle targets.
// Switching mode while running restarts the scan loop: stop, update, start.
func (s *Scanner) SwitchMode(ctx context.Context, mode domain.TradingMode) (bool, error) {
	s.mu.Lock()
	wasRunning := s.running
	s.mu.Unlock()

	if wasRunning {
		s.Stop()
	}

	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()

	s.deps.Activity.Infof("scanner switched to %s mode", mode)

	if !wasRunning {
		return true, nil
	}
	return s.Start(ctx)
}

// ReloadStrategies forces an immediate StrategyManager refresh outside the
// normal per-cycle staleness check.
func (s *Scanner) ReloadStrategies(ctx context.Context) error {
	settings, err := s.deps.Settings.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("scanner: load settings for reload: %w", err)
	}
	_, err = s.deps.Strategies.Refresh(ctx, s.currentMode(), strategy.FilterParams{MinimumCombinedStrength: settings.MinimumCombinedStrength})
	return err
}

// Stats returns a snapshot of the running per-mode metrics.
func (s *Scanner) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// IsLeader reports whether this instance currently holds leadership.
func (s *Scanner) IsLeader() bool {
	return s.leader.Load()
}

func (s *Scanner) currentMode() domain.TradingMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// run is the scan-cycle loop plus the leader heartbeat, both cancelable
// via loopCtx.
func (s *Scanner) run(loopCtx context.Context) {
	defer close(s.loopDone)

	heartbeat := time.NewTicker(s.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		if err := s.runCycle(loopCtx); err != nil {
			if scanerrors.Is(err, scanerrors.KindLeadershipLost) {
				s.deps.Activity.Errorf("leadership lost: %v", err)
				s.log.Error().Err(err).Msg("leadership lost, stopping")
				go s.Stop()
				return
			}
			s.deps.Activity.Errorf("scan cycle failed: %v", err)
			s.log.Error().Err(err).Msg("scan cycle failed")
		}

		sleepFor := clampFrequency(time.Second)
		if settings, err := s.deps.Settings.GetSettings(loopCtx); err == nil {
			sleepFor = clampFrequency(time.Duration(settings.ScanFrequencyMs) * time.Millisecond)
		}

		timer := time.NewTimer(sleepFor)
		select {
		case <-loopCtx.Done():
			timer.Stop()
			return
		case <-heartbeat.C:
			timer.Stop()
			s.sendHeartbeat(loopCtx)
		case <-timer.C:
		}
	}
}

func (s *Scanner) sendHeartbeat(ctx context.Context) {
	stillLeader, err := s.deps.Sessions.Heartbeat(ctx, s.sessionID)
	if err != nil {
		s.log.Warn().Err(err).Msg("heartbeat failed")
		return
	}
	if !stillLeader {
		s.leader.Store(false)
		s.log.Warn().Msg("heartbeat reports leadership lost")
	}
}

// clampFrequency enforces a 100ms minimum up to a 5 minute bound.
func clampFrequency(d time.Duration) time.Duration {
	if d < minScanFrequency {
		return minScanFrequency
	}
	if d > maxScanFrequency {
		return maxScanFrequency
	}
	return d
}

// runCycle runs one scan cycle: refresh strategies, batch-fetch prices,
// detect signals, size and submit trades, poll pending orders, persist
// stats, and notify.
func (s *Scanner) runCycle(ctx context.Context) error {
	if !s.leader.Load() {
		return scanerrors.LeadershipLostError("scanner.runCycle", "no longer the recorded leader", nil)
	}

	cycleStart := time.Now()
	mode := s.currentMode()

	settings, err := s.deps.Settings.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("scanner: load settings: %w", err)
	}

	// Step 1: refresh active strategies.
	snap, err := s.deps.Strategies.Refresh(ctx, mode, strategy.FilterParams{MinimumCombinedStrength: settings.MinimumCombinedStrength})
	if err != nil {
		return fmt.Errorf("scanner: refresh strategies: %w", err)
	}

	byID := make(map[string]*domain.Strategy, len(snap.Active))
	coinSet := make(map[string]struct{})
	for _, strat := range snap.Active {
		byID[strat.ID] = strat
		coinSet[strat.Coin] = struct{}{}
	}
	coins := make([]string, 0, len(coinSet))
	for coin := range coinSet {
		coins = append(coins, coin)
	}

	// Step 2: batch-fetch prices for the union of coins (consumed
	// downstream by PositionManager's monitor path via PriceCache directly;
	// this fetch warms the cache so the monitor loop doesn't refetch).
	if len(coins) > 0 {
		if _, err := s.deps.Prices.GetBatchPrices(ctx, coins, mode); err != nil {
			s.log.Warn().Err(err).Msg("batch price fetch failed")
		}
	}

	// Step 3: monitor existing open positions.
	s.deps.Positions.MonitorAll(ctx, byID, mode)

	// Step 4: detect new signal matches.
	matches := s.deps.Detection.Scan(ctx, snap.Active, *settings)

	// Step 5: open positions for admitted matches.
	var opened int
	var strengthSum float64
	if len(matches) > 0 {
		wallet, err := s.deps.Wallet.GetWallet(ctx, mode)
		if err != nil {
			s.log.Warn().Err(err).Msg("wallet fetch failed, skipping position opens this cycle")
		} else {
			for _, m := range matches {
				strengthSum += m.SignalMatch.CombinedStrength
				strat, ok := byID[m.StrategyID]
				if !ok {
					continue
				}
				if err := s.deps.Positions.Open(ctx, m.SignalMatch, strat, m.ATR, wallet, *settings, mode); err != nil {
					s.log.Warn().Err(err).Str("coin", m.SignalMatch.Coin).Msg("open position failed")
					continue
				}
				opened++
				s.deps.Activity.Trade("position opened", map[string]any{"coin": m.SignalMatch.Coin, "strategy": strat.ID})
			}
		}
	}

	// Step 6: nudge pending-order polling.
	s.deps.Orders.CheckOnce(ctx)

	// Step 7: update and persist per-cycle stats.
	elapsed := float64(time.Since(cycleStart).Milliseconds())
	avgStrength := 0.0
	if len(matches) > 0 {
		avgStrength = strengthSum / float64(len(matches))
	}
	s.recordCycle(elapsed, len(matches), opened, avgStrength)

	stats := s.Stats()
	if err := s.deps.Settings.UpsertScannerStats(ctx, &domain.ScannerStats{
		Mode:                           mode,
		TotalScanCycles:                stats.TotalScanCycles,
		TotalScans:                     stats.TotalScans,
		SignalsFound:                   stats.SignalsFound,
		TradesExecuted:                 stats.TradesExecuted,
		AverageScanTimeMs:              stats.AverageScanTimeMs,
		LastScanTimeMs:                 stats.LastScanTimeMs,
		AverageSignalStrength:          stats.AverageSignalStrength,
		LastCycleAverageSignalStrength: stats.LastCycleAverageSignalStrength,
		LastUpdated:                    time.Now(),
	}); err != nil {
		s.log.Warn().Err(err).Msg("failed to persist scanner stats")
	}

	s.deps.Activity.Cycle("scan cycle complete", map[string]any{
		"signals_found":   len(matches),
		"positions_opened": opened,
		"cycle_time_ms":   elapsed,
	})

	return nil
}

func (s *Scanner) recordCycle(cycleMs float64, signalsFound, tradesExecuted int, avgStrength float64) {
	sm := metrics.GetOrCreateScannerMetrics()
	sm.ScanCyclesTotal.Inc()
	sm.ScanCycleDuration.Observe(cycleMs / 1000)
	sm.SignalsFoundTotal.Add(float64(signalsFound))
	sm.TradesExecutedTotal.Add(float64(tradesExecuted))
	sm.OpenPositions.Set(float64(len(s.deps.Positions.Snapshot())))

	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	s.stats.TotalScanCycles++
	s.stats.TotalScans++
	s.stats.SignalsFound += int64(signalsFound)
	s.stats.TradesExecuted += int64(tradesExecuted)
	s.stats.LastScanTimeMs = cycleMs

	n := float64(s.stats.TotalScanCycles)
	s.stats.AverageScanTimeMs += (cycleMs - s.stats.AverageScanTimeMs) / n
	if signalsFound > 0 {
		s.stats.LastCycleAverageSignalStrength = avgStrength
		s.stats.AverageSignalStrength += (avgStrength - s.stats.AverageSignalStrength) / n
	}
}
