package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
)

// SaveTrade persists the terminal record of a closed position.
func (s *Store) SaveTrade(ctx context.Context, trade *domain.Trade) error {
	if trade.TradeID == "" {
		trade.TradeID = uuid.New().String()
	}
	body, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("failed to marshal trade: %w", err)
	}

	const query = `
		INSERT INTO trades (trade_id, position_id, strategy_name, coin, pnl, exit_time, body)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = withBreaker(s, func() (pgconn.CommandTag, error) {
		return s.pool.Exec(ctx, query, trade.TradeID, trade.PositionID, trade.StrategyName,
			trade.Coin, trade.PNL, trade.ExitTime, body)
	})
	if err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}
	return nil
}

// ListTradesForStrategy returns closed trades for a strategy, most recent
// first, used by PositionManager to feed risk.KellyStatsFromTrades.
func (s *Store) ListTradesForStrategy(ctx context.Context, strategyName string, limit int) ([]domain.Trade, error) {
	if limit <= 0 {
		limit = 500
	}
	const query = `
		SELECT body FROM trades WHERE strategy_name = $1 ORDER BY exit_time DESC LIMIT $2
	`

	rows, err := withBreaker(s, func() (pgx.Rows, error) {
		return s.pool.Query(ctx, query, strategyName, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		var trade domain.Trade
		if err := json.Unmarshal(body, &trade); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trade: %w", err)
		}
		out = append(out, trade)
	}
	return out, rows.Err()
}
