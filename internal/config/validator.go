package config

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ValidatorOptions controls which startup checks Validator performs.
type ValidatorOptions struct {
	VerifyConnectivity bool // check database/Redis connectivity
	VerifyAPIKeys      bool // ping the exchange with the configured keys
	Timeout            time.Duration
}

// DefaultValidatorOptions returns connectivity checks on, exchange key
// verification off, and a 5s per-check timeout.
func DefaultValidatorOptions() ValidatorOptions {
	return ValidatorOptions{
		VerifyConnectivity: true,
		VerifyAPIKeys:      false,
		Timeout:            5 * time.Second,
	}
}

// Validator performs startup validation beyond struct-level Validate():
// live connectivity checks against Database/Redis/Exchange. A failure here
// is a ConfigError and must prevent scanner start.
type Validator struct {
	config  *Config
	options ValidatorOptions
}

// NewValidator creates a startup Validator for cfg.
func NewValidator(cfg *Config, options ValidatorOptions) *Validator {
	return &Validator{config: cfg, options: options}
}

// ValidateStartup runs struct validation plus, if enabled, live connectivity
// checks. cmd/scanner does not call it; it calls Config.Validate via Load.
func (v *Validator) ValidateStartup(ctx context.Context) error {
	if err := v.config.Validate(); err != nil {
		return err
	}

	if v.options.VerifyConnectivity {
		if err := v.checkDatabaseConnectivity(ctx); err != nil {
			return fmt.Errorf("database connectivity check: %w", err)
		}
		if err := v.checkRedisConnectivity(ctx); err != nil {
			return fmt.Errorf("redis connectivity check: %w", err)
		}
	}

	if v.options.VerifyAPIKeys && v.config.Exchange.DefaultMode == "live" {
		if err := v.verifyExchangeReachable(ctx); err != nil {
			return fmt.Errorf("exchange key verification: %w", err)
		}
	}

	log.Info().Msg("configuration validation completed successfully")
	return nil
}

func (v *Validator) checkDatabaseConnectivity(ctx context.Context) error {
	connCtx, cancel := context.WithTimeout(ctx, v.options.Timeout)
	defer cancel()

	pool, err := pgxpool.New(connCtx, v.config.Database.GetDSN())
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(connCtx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	log.Info().Str("host", v.config.Database.Host).Int("port", v.config.Database.Port).Msg("database connectivity check passed")
	return nil
}

func (v *Validator) checkRedisConnectivity(ctx context.Context) error {
	connCtx, cancel := context.WithTimeout(ctx, v.options.Timeout)
	defer cancel()

	client := redis.NewClient(&redis.Options{
		Addr:     v.config.Redis.GetRedisAddr(),
		Password: v.config.Redis.Password,
		DB:       v.config.Redis.DB,
	})
	defer client.Close()

	if err := client.Ping(connCtx).Err(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	log.Info().Str("addr", v.config.Redis.GetRedisAddr()).Msg("redis connectivity check passed")
	return nil
}

// verifyExchangeReachable pings the exchange's unauthenticated ping endpoint
// to confirm network reachability before live trading starts.
func (v *Validator) verifyExchangeReachable(ctx context.Context) error {
	baseURL := "https://api.binance.com"
	if v.config.Exchange.DefaultMode == "testnet" {
		baseURL = "https://testnet.binance.vision"
	}

	reqCtx, cancel := context.WithTimeout(ctx, v.options.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, baseURL+"/api/v3/ping", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("ping exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("exchange ping returned status %d", resp.StatusCode)
	}

	log.Info().Str("base_url", baseURL).Msg("exchange connectivity verified")
	return nil
}

// isPlaceholderValue reports whether a secret-shaped value is a likely
// placeholder rather than a real credential.
func isPlaceholderValue(value string) bool {
	lower := strings.ToLower(value)
	for _, placeholder := range []string{"your_api_key", "your_secret", "changeme", "placeholder", "example", "sample"} {
		if strings.Contains(lower, placeholder) {
			return true
		}
	}
	return false
}
