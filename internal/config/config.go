package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all scanner configuration, one struct per concern.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Scanner  ScannerConfig  `mapstructure:"scanner"`
	Risk     RiskConfig     `mapstructure:"risk"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // "json" or "console"
}

// DatabaseConfig contains Postgres settings for internal/store.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int    `mapstructure:"pool_size"`
}

// RedisConfig contains Redis settings for internal/pricecache.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NATSConfig contains NATS messaging settings for internal/notify.
type NATSConfig struct {
	URL             string `mapstructure:"url"`
	EnableJetStream bool   `mapstructure:"enable_jetstream"`
	ActivitySubject string `mapstructure:"activity_subject"`
}

// ExchangeConfig contains exchange credentials/settings for internal/exchange.
type ExchangeConfig struct {
	APIKey        string `mapstructure:"api_key"`
	SecretKey     string `mapstructure:"secret_key"`
	TestnetAPIKey string `mapstructure:"testnet_api_key"`
	TestnetSecret string `mapstructure:"testnet_secret"`
	DefaultMode   string `mapstructure:"default_mode"` // "testnet" or "live"
	CallTimeoutMs int    `mapstructure:"call_timeout_ms"`
	RateLimitMs   int    `mapstructure:"rate_limit_ms"`
}

// ScannerConfig contains scan-cycle and leadership settings.
type ScannerConfig struct {
	ScanFrequencyMs     int64 `mapstructure:"scan_frequency_ms"`
	SessionTimeoutMs    int64 `mapstructure:"session_timeout_ms"`
	HeartbeatIntervalMs int64 `mapstructure:"heartbeat_interval_ms"`
	StalenessWindowMs   int64 `mapstructure:"staleness_window_ms"`
	BatchDelayMs        int64 `mapstructure:"batch_delay_ms"`
	BatchSize           int   `mapstructure:"batch_size"`
	OrderPollIntervalMs int64 `mapstructure:"order_poll_interval_ms"`
	MaxPendingTimeMs    int64 `mapstructure:"max_pending_time_ms"`
	MaxOrderRetries     int   `mapstructure:"max_order_retries"`
}

// RiskConfig contains position-sizing defaults.
type RiskConfig struct {
	DefaultRiskPercentage    float64 `mapstructure:"default_risk_percentage"`
	MinimumTradeValue        float64 `mapstructure:"minimum_trade_value"`
	DefaultStopAtrMult       float64 `mapstructure:"default_stop_atr_multiplier"`
	DefaultTakeProfitAtrMult float64 `mapstructure:"default_take_profit_atr_multiplier"`
}

// TelegramConfig configures the Telegram notify sink.
type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	ChatID  int64  `mapstructure:"chat_id"`
}

// AdminConfig configures the gin-based admin HTTP surface.
type AdminConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// MetricsConfig configures the Prometheus /metrics HTTP endpoint.
type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

// Load reads configuration from file and environment variables, applies
// defaults, and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("CRYPTOFUNK")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "cryptofunk-scanner")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "console")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "cryptofunk")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 10)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enable_jetstream", false)
	v.SetDefault("nats.activity_subject", "cryptofunk.activity")

	v.SetDefault("exchange.default_mode", "testnet")
	v.SetDefault("exchange.call_timeout_ms", 30000)
	v.SetDefault("exchange.rate_limit_ms", 100)

	v.SetDefault("scanner.scan_frequency_ms", 60000)
	v.SetDefault("scanner.session_timeout_ms", 30000)
	v.SetDefault("scanner.heartbeat_interval_ms", 10000)
	v.SetDefault("scanner.staleness_window_ms", 30000)
	v.SetDefault("scanner.batch_delay_ms", 100)
	v.SetDefault("scanner.batch_size", 3)
	v.SetDefault("scanner.order_poll_interval_ms", 10000)
	v.SetDefault("scanner.max_pending_time_ms", 300000)
	v.SetDefault("scanner.max_order_retries", 3)

	v.SetDefault("risk.default_risk_percentage", 1.0)
	v.SetDefault("risk.minimum_trade_value", 10.0)
	v.SetDefault("risk.default_stop_atr_multiplier", 1.5)
	v.SetDefault("risk.default_take_profit_atr_multiplier", 3.0)

	v.SetDefault("telegram.enabled", false)

	v.SetDefault("admin.host", "0.0.0.0")
	v.SetDefault("admin.port", 8090)

	v.SetDefault("metrics.port", 9090)
}

// GetDSN returns the PostgreSQL connection string for pgxpool.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode, c.PoolSize,
	)
}

// GetRedisAddr returns the Redis address.
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAdminAddr returns the admin HTTP listen address.
func (c *AdminConfig) GetAdminAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
