// Package store is the typed persistence layer for strategies, positions,
// trades, sessions and settings. It wraps a pgx connection pool behind the
// Store circuit breaker so a Postgres outage degrades to fast failures
// instead of hanging callers.
package store

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/ajitpratap0/cryptofunk/internal/risk"
)

// Store persists the scanner's typed entities in Postgres.
type Store struct {
	pool           PgxIface
	circuitBreaker *risk.CircuitBreakerManager
}

// PgxIface is the subset of *pgxpool.Pool the store package depends on, so
// tests can substitute pgxmock.PgxPoolIface.
type PgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// New opens a connection pool against DATABASE_URL (or the given dsn if
// non-empty) and wraps it with a Store circuit breaker.
func New(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL not set")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("store connection pool established")

	return &Store{
		pool:           pool,
		circuitBreaker: risk.NewCircuitBreakerManager(),
	}, nil
}

// NewWithPool wraps an already-open pool (or a pgxmock stand-in implementing
// PgxIface), used by tests and by callers that manage the pool's lifecycle
// themselves.
func NewWithPool(pool PgxIface, cb *risk.CircuitBreakerManager) *Store {
	if cb == nil {
		cb = risk.NewCircuitBreakerManager()
	}
	return &Store{pool: pool, circuitBreaker: cb}
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CircuitBreaker exposes the shared manager so other collaborators (e.g.
// exchange) can reuse the same Prometheus registration.
func (s *Store) CircuitBreaker() *risk.CircuitBreakerManager {
	return s.circuitBreaker
}

// withBreaker runs op through the Store circuit breaker, translating an open
// breaker into a typed error the caller can retry around.
func withBreaker[T any](s *Store, op func() (T, error)) (T, error) {
	var zero T
	result, err := s.circuitBreaker.Store().Execute(func() (interface{}, error) {
		return op()
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			s.circuitBreaker.Metrics().RecordRequest("store", false)
			return zero, fmt.Errorf("store circuit breaker open: %w", err)
		}
		s.circuitBreaker.Metrics().RecordRequest("store", false)
		return zero, err
	}
	s.circuitBreaker.Metrics().RecordRequest("store", true)
	return result.(T), nil
}
