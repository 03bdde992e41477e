package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
)

// SaveStrategy inserts or updates a strategy, identified by ID.
func (s *Store) SaveStrategy(ctx context.Context, strat *domain.Strategy) error {
	if strat.ID == "" {
		strat.ID = uuid.New().String()
	}
	body, err := json.Marshal(strat)
	if err != nil {
		return fmt.Errorf("failed to marshal strategy: %w", err)
	}

	const query = `
		INSERT INTO strategies (id, signature, coin, timeframe, included_in_scanner, body, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			signature = EXCLUDED.signature,
			coin = EXCLUDED.coin,
			timeframe = EXCLUDED.timeframe,
			included_in_scanner = EXCLUDED.included_in_scanner,
			body = EXCLUDED.body,
			updated_at = EXCLUDED.updated_at
	`
	_, err = withBreaker(s, func() (pgconn.CommandTag, error) {
		return s.pool.Exec(ctx, query, strat.ID, strat.Signature, strat.Coin, strat.Timeframe,
			strat.IncludedInScanner, body, time.Now())
	})
	if err != nil {
		return fmt.Errorf("failed to save strategy: %w", err)
	}

	log.Debug().Str("strategy_id", strat.ID).Str("signature", strat.Signature).Msg("strategy saved")
	return nil
}

// GetStrategy retrieves a strategy by ID.
func (s *Store) GetStrategy(ctx context.Context, id string) (*domain.Strategy, error) {
	const query = `SELECT body FROM strategies WHERE id = $1`

	body, err := withBreaker(s, func() ([]byte, error) {
		var body []byte
		err := s.pool.QueryRow(ctx, query, id).Scan(&body)
		return body, err
	})
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("strategy not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get strategy: %w", err)
	}

	var strat domain.Strategy
	if err := json.Unmarshal(body, &strat); err != nil {
		return nil, fmt.Errorf("failed to unmarshal strategy: %w", err)
	}
	return &strat, nil
}

// HasSignature reports whether a strategy with the given canonical
// combination signature already exists, the uniqueness check
// BacktestAggregator's admission step relies on.
func (s *Store) HasSignature(ctx context.Context, signature string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM strategies WHERE signature = $1)`

	exists, err := withBreaker(s, func() (bool, error) {
		var exists bool
		err := s.pool.QueryRow(ctx, query, signature).Scan(&exists)
		return exists, err
	})
	if err != nil {
		return false, fmt.Errorf("failed to check strategy signature: %w", err)
	}
	return exists, nil
}

// ListActiveStrategies returns every strategy with IncludedInScanner = true,
// the set StrategyManager loads and filters on each refresh.
func (s *Store) ListActiveStrategies(ctx context.Context) ([]*domain.Strategy, error) {
	const query = `SELECT body FROM strategies WHERE included_in_scanner = TRUE ORDER BY updated_at DESC`

	rows, err := withBreaker(s, func() (pgx.Rows, error) {
		return s.pool.Query(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list active strategies: %w", err)
	}
	defer rows.Close()

	var out []*domain.Strategy
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan strategy: %w", err)
		}
		var strat domain.Strategy
		if err := json.Unmarshal(body, &strat); err != nil {
			return nil, fmt.Errorf("failed to unmarshal strategy: %w", err)
		}
		out = append(out, &strat)
	}
	return out, rows.Err()
}

// SetStrategyIncluded flips a strategy's inclusion in the live scanner.
func (s *Store) SetStrategyIncluded(ctx context.Context, id string, included bool) error {
	const query = `UPDATE strategies SET included_in_scanner = $2, updated_at = NOW() WHERE id = $1`

	tag, err := withBreaker(s, func() (pgconn.CommandTag, error) {
		return s.pool.Exec(ctx, query, id, included)
	})
	if err != nil {
		return fmt.Errorf("failed to update strategy inclusion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("strategy not found: %s", id)
	}
	return nil
}

// DeleteStrategy removes a strategy.
func (s *Store) DeleteStrategy(ctx context.Context, id string) error {
	const query = `DELETE FROM strategies WHERE id = $1`

	tag, err := withBreaker(s, func() (pgconn.CommandTag, error) {
		return s.pool.Exec(ctx, query, id)
	})
	if err != nil {
		return fmt.Errorf("failed to delete strategy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("strategy not found: %s", id)
	}
	return nil
}
