package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getValidConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "cryptofunk-scanner",
			Version:     "1.0.0",
			Environment: "development",
			LogLevel:    "info",
			LogFormat:   "console",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Database: "cryptofunk",
			SSLMode:  "disable",
			PoolSize: 10,
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		NATS: NATSConfig{
			URL:             "nats://localhost:4222",
			ActivitySubject: "cryptofunk.activity",
		},
		Exchange: ExchangeConfig{
			DefaultMode:   "testnet",
			CallTimeoutMs: 30000,
		},
		Scanner: ScannerConfig{
			ScanFrequencyMs:     60000,
			SessionTimeoutMs:    30000,
			HeartbeatIntervalMs: 10000,
			BatchSize:           3,
			MaxOrderRetries:     3,
		},
		Risk: RiskConfig{
			DefaultRiskPercentage:    1.0,
			DefaultStopAtrMult:       1.5,
			DefaultTakeProfitAtrMult: 3.0,
		},
	}
}

func TestValidateValidConfig(t *testing.T) {
	cfg := getValidConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidateApp(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError string
	}{
		{"missing app name", func(c *Config) { c.App.Name = "" }, "app.name"},
		{"missing environment", func(c *Config) { c.App.Environment = "" }, "app.environment"},
		{"invalid environment", func(c *Config) { c.App.Environment = "invalid_env" }, "invalid environment"},
		{"missing log level", func(c *Config) { c.App.LogLevel = "" }, "app.log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestValidateDatabase(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError string
	}{
		{"missing host", func(c *Config) { c.Database.Host = "" }, "database.host"},
		{"invalid port too high", func(c *Config) { c.Database.Port = 70000 }, "database.port"},
		{"negative port", func(c *Config) { c.Database.Port = -1 }, "database.port"},
		{"missing database name", func(c *Config) { c.Database.Database = "" }, "database.database"},
		{"invalid pool size", func(c *Config) { c.Database.PoolSize = 0 }, "database.pool_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestValidateExchange(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError string
	}{
		{"invalid mode", func(c *Config) { c.Exchange.DefaultMode = "paper" }, "exchange.default_mode"},
		{"live mode without keys", func(c *Config) {
			c.Exchange.DefaultMode = "live"
		}, "exchange.api_key"},
		{"non-positive timeout", func(c *Config) { c.Exchange.CallTimeoutMs = 0 }, "exchange.call_timeout_ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestValidateScanner(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError string
	}{
		{"frequency too low", func(c *Config) { c.Scanner.ScanFrequencyMs = 50 }, "scanner.scan_frequency_ms"},
		{"frequency too high", func(c *Config) { c.Scanner.ScanFrequencyMs = 6 * 60 * 1000 }, "scanner.scan_frequency_ms"},
		{"heartbeat not below timeout", func(c *Config) {
			c.Scanner.HeartbeatIntervalMs = c.Scanner.SessionTimeoutMs
		}, "scanner.heartbeat_interval_ms"},
		{"zero batch size", func(c *Config) { c.Scanner.BatchSize = 0 }, "scanner.batch_size"},
		{"negative retries", func(c *Config) { c.Scanner.MaxOrderRetries = -1 }, "scanner.max_order_retries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestValidateRisk(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError string
	}{
		{"zero risk percentage", func(c *Config) { c.Risk.DefaultRiskPercentage = 0 }, "risk.default_risk_percentage"},
		{"risk percentage over 100", func(c *Config) { c.Risk.DefaultRiskPercentage = 150 }, "risk.default_risk_percentage"},
		{"zero stop multiplier", func(c *Config) { c.Risk.DefaultStopAtrMult = 0 }, "risk.default_stop_atr_multiplier"},
		{"zero take profit multiplier", func(c *Config) { c.Risk.DefaultTakeProfitAtrMult = 0 }, "risk.default_take_profit_atr_multiplier"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getValidConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestValidationErrorsAggregate(t *testing.T) {
	cfg := getValidConfig()
	cfg.App.Name = ""
	cfg.Database.Host = ""

	err := cfg.Validate()
	require.Error(t, err)

	verrs, ok := err.(ValidationErrors)
	require.True(t, ok)
	assert.Len(t, verrs, 2)
}
