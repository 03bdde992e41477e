package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a single configuration validation failure.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors; it implements error.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d error(s):\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// Validate performs comprehensive configuration validation. A non-nil
// return is a ConfigError per spec §7 and must prevent scanner start.
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, c.validateApp()...)
	errs = append(errs, c.validateDatabase()...)
	errs = append(errs, c.validateRedis()...)
	errs = append(errs, c.validateExchange()...)
	errs = append(errs, c.validateScanner()...)
	errs = append(errs, c.validateRisk()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Config) validateApp() ValidationErrors {
	var errs ValidationErrors
	if c.App.Name == "" {
		errs = append(errs, ValidationError{"app.name", "application name is required"})
	}
	validEnvs := map[string]bool{"development": true, "staging": true, "production": true}
	if !validEnvs[c.App.Environment] {
		errs = append(errs, ValidationError{"app.environment", fmt.Sprintf("invalid environment %q, must be development/staging/production", c.App.Environment)})
	}
	if c.App.LogLevel == "" {
		errs = append(errs, ValidationError{"app.log_level", "log level is required (debug, info, warn, error)"})
	}
	return errs
}

func (c *Config) validateDatabase() ValidationErrors {
	var errs ValidationErrors
	if c.Database.Host == "" {
		errs = append(errs, ValidationError{"database.host", "database host is required"})
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, ValidationError{"database.port", "database port must be between 1 and 65535"})
	}
	if c.Database.Database == "" {
		errs = append(errs, ValidationError{"database.database", "database name is required"})
	}
	if c.Database.PoolSize <= 0 {
		errs = append(errs, ValidationError{"database.pool_size", "pool_size must be positive"})
	}
	return errs
}

func (c *Config) validateRedis() ValidationErrors {
	var errs ValidationErrors
	if c.Redis.Host == "" {
		errs = append(errs, ValidationError{"redis.host", "redis host is required"})
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, ValidationError{"redis.port", "redis port must be between 1 and 65535"})
	}
	return errs
}

func (c *Config) validateExchange() ValidationErrors {
	var errs ValidationErrors
	if c.Exchange.DefaultMode != "testnet" && c.Exchange.DefaultMode != "live" {
		errs = append(errs, ValidationError{"exchange.default_mode", "must be testnet or live"})
	}
	if c.Exchange.DefaultMode == "live" && (c.Exchange.APIKey == "" || c.Exchange.SecretKey == "") {
		errs = append(errs, ValidationError{"exchange.api_key", "live mode requires api_key and secret_key"})
	}
	if c.Exchange.CallTimeoutMs <= 0 {
		errs = append(errs, ValidationError{"exchange.call_timeout_ms", "must be positive"})
	}
	return errs
}

func (c *Config) validateScanner() ValidationErrors {
	var errs ValidationErrors
	if c.Scanner.ScanFrequencyMs < 100 || c.Scanner.ScanFrequencyMs > 5*60*1000 {
		errs = append(errs, ValidationError{"scanner.scan_frequency_ms", "must be between 100ms and 5min"})
	}
	if c.Scanner.SessionTimeoutMs <= 0 {
		errs = append(errs, ValidationError{"scanner.session_timeout_ms", "must be positive"})
	}
	if c.Scanner.HeartbeatIntervalMs >= c.Scanner.SessionTimeoutMs {
		errs = append(errs, ValidationError{"scanner.heartbeat_interval_ms", "must be smaller than session_timeout_ms"})
	}
	if c.Scanner.BatchSize <= 0 {
		errs = append(errs, ValidationError{"scanner.batch_size", "must be positive"})
	}
	if c.Scanner.MaxOrderRetries < 0 {
		errs = append(errs, ValidationError{"scanner.max_order_retries", "must not be negative"})
	}
	return errs
}

func (c *Config) validateRisk() ValidationErrors {
	var errs ValidationErrors
	if c.Risk.DefaultRiskPercentage <= 0 || c.Risk.DefaultRiskPercentage > 100 {
		errs = append(errs, ValidationError{"risk.default_risk_percentage", "must be in (0, 100]"})
	}
	if c.Risk.DefaultStopAtrMult <= 0 {
		errs = append(errs, ValidationError{"risk.default_stop_atr_multiplier", "must be positive"})
	}
	if c.Risk.DefaultTakeProfitAtrMult <= 0 {
		errs = append(errs, ValidationError{"risk.default_take_profit_atr_multiplier", "must be positive"})
	}
	return errs
}
