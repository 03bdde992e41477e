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

// SaveLivePosition inserts or updates an open/transitioning position.
func (s *Store) SaveLivePosition(ctx context.Context, pos *domain.LivePosition) error {
	if pos.PositionID == "" {
		pos.PositionID = uuid.New().String()
	}
	body, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("failed to marshal position: %w", err)
	}

	const query = `
		INSERT INTO positions (position_id, coin, status, trading_mode, body, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (position_id) DO UPDATE SET
			status = EXCLUDED.status,
			body = EXCLUDED.body,
			updated_at = EXCLUDED.updated_at
	`
	_, err = withBreaker(s, func() (pgconn.CommandTag, error) {
		return s.pool.Exec(ctx, query, pos.PositionID, pos.Coin, pos.Status, pos.TradingMode, body)
	})
	if err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}
	return nil
}

// ListOpenPositions returns every position whose status is not "closed", for
// the given trading mode.
func (s *Store) ListOpenPositions(ctx context.Context, mode domain.TradingMode) ([]*domain.LivePosition, error) {
	const query = `SELECT body FROM positions WHERE trading_mode = $1 AND status != $2`

	rows, err := withBreaker(s, func() (pgx.Rows, error) {
		return s.pool.Query(ctx, query, mode, domain.PositionClosed)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list open positions: %w", err)
	}
	defer rows.Close()

	var out []*domain.LivePosition
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		var pos domain.LivePosition
		if err := json.Unmarshal(body, &pos); err != nil {
			return nil, fmt.Errorf("failed to unmarshal position: %w", err)
		}
		out = append(out, &pos)
	}
	return out, rows.Err()
}

// DeleteLivePosition removes a position row, called once its terminal Trade
// has been persisted.
func (s *Store) DeleteLivePosition(ctx context.Context, positionID string) error {
	const query = `DELETE FROM positions WHERE position_id = $1`

	_, err := withBreaker(s, func() (pgconn.CommandTag, error) {
		return s.pool.Exec(ctx, query, positionID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}
	return nil
}
