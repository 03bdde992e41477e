package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
)

// GetSession reads the single shared leader-election row.
func (s *Store) GetSession(ctx context.Context) (*domain.Session, error) {
	const query = `SELECT leader_session_id, last_heartbeat, is_globally_active FROM session WHERE id = 1`

	sess, err := withBreaker(s, func() (domain.Session, error) {
		var sess domain.Session
		err := s.pool.QueryRow(ctx, query).Scan(&sess.LeaderSessionID, &sess.LastHeartbeat, &sess.IsGloballyActive)
		return sess, err
	})
	if err != nil {
		if err == pgx.ErrNoRows {
			return &domain.Session{}, nil
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	return &sess, nil
}

// TryAcquireLeadership performs the compare-and-swap for session leadership:
// it claims leadership only if the current row is stale (heartbeat older
// than staleAfter) or not globally active. Returns true if this sessionID
// became leader.
func (s *Store) TryAcquireLeadership(ctx context.Context, sessionID string, staleAfter time.Duration) (bool, error) {
	const upsert = `
		INSERT INTO session (id, leader_session_id, last_heartbeat, is_globally_active)
		VALUES (1, $1, NOW(), TRUE)
		ON CONFLICT (id) DO UPDATE SET
			leader_session_id = EXCLUDED.leader_session_id,
			last_heartbeat = EXCLUDED.last_heartbeat,
			is_globally_active = TRUE
		WHERE session.is_globally_active = FALSE
			OR session.last_heartbeat < NOW() - $2::interval
	`

	acquired, err := withBreaker(s, func() (bool, error) {
		tag, execErr := s.pool.Exec(ctx, upsert, sessionID, staleAfter.String())
		if execErr != nil {
			return false, execErr
		}
		return tag.RowsAffected() > 0, nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to acquire leadership: %w", err)
	}
	return acquired, nil
}

// Heartbeat refreshes last_heartbeat for the current leader. Returns false
// (without error) if sessionID is no longer the recorded leader, so the
// caller can step down.
func (s *Store) Heartbeat(ctx context.Context, sessionID string) (bool, error) {
	const query = `
		UPDATE session SET last_heartbeat = NOW()
		WHERE id = 1 AND leader_session_id = $1 AND is_globally_active = TRUE
	`

	stillLeader, err := withBreaker(s, func() (bool, error) {
		tag, execErr := s.pool.Exec(ctx, query, sessionID)
		if execErr != nil {
			return false, execErr
		}
		return tag.RowsAffected() > 0, nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to send heartbeat: %w", err)
	}
	return stillLeader, nil
}

// ReleaseLeadership clears leadership for sessionID, best-effort.
func (s *Store) ReleaseLeadership(ctx context.Context, sessionID string) error {
	const query = `
		UPDATE session SET is_globally_active = FALSE, leader_session_id = ''
		WHERE id = 1 AND leader_session_id = $1
	`
	_, err := withBreaker(s, func() (bool, error) {
		_, execErr := s.pool.Exec(ctx, query, sessionID)
		return true, execErr
	})
	if err != nil {
		return fmt.Errorf("failed to release leadership: %w", err)
	}
	return nil
}
