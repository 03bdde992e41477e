package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
)

// GetSettings loads the persisted scanner configuration.
func (s *Store) GetSettings(ctx context.Context) (*domain.Settings, error) {
	const query = `SELECT body FROM settings WHERE id = 1`

	body, err := withBreaker(s, func() ([]byte, error) {
		var body []byte
		err := s.pool.QueryRow(ctx, query).Scan(&body)
		return body, err
	})
	if err != nil {
		if err == pgx.ErrNoRows {
			return defaultSettings(), nil
		}
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	var settings domain.Settings
	if err := json.Unmarshal(body, &settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return &settings, nil
}

// SaveSettings persists the scanner configuration.
func (s *Store) SaveSettings(ctx context.Context, settings *domain.Settings) error {
	body, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	const query = `
		INSERT INTO settings (id, body) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body
	`
	_, err = withBreaker(s, func() (bool, error) {
		_, execErr := s.pool.Exec(ctx, query, body)
		return true, execErr
	})
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// UpsertScannerStats writes the per-mode cycle metrics record.
func (s *Store) UpsertScannerStats(ctx context.Context, stats *domain.ScannerStats) error {
	body, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal scanner stats: %w", err)
	}

	const query = `
		INSERT INTO scanner_stats (mode, body, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (mode) DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()
	`
	_, err = withBreaker(s, func() (bool, error) {
		_, execErr := s.pool.Exec(ctx, query, stats.Mode, body)
		return true, execErr
	})
	if err != nil {
		return fmt.Errorf("failed to upsert scanner stats: %w", err)
	}
	return nil
}

func defaultSettings() *domain.Settings {
	return &domain.Settings{
		ScanFrequencyMs:         1000,
		MinimumCombinedStrength: 50,
		MaxPositions:            5,
		RiskPerTrade:            1.0,
		PortfolioHeatMax:        10.0,
		DefaultPositionSize:     100,
		MinimumRegimeConfidence: 0.5,
		MinimumConvictionScore:  50,
		SignalMatchingMode:      domain.MatchingBoth,
	}
}
