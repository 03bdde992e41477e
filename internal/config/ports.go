// Package config provides configuration management for the scanner engine.
// This file centralizes default port constants to avoid duplication.
package config

// Default ports for services the scanner composition root wires up.
const (
	// AdminServerPort is the default port for the gin admin HTTP surface.
	AdminServerPort = 8090

	// PostgresPort is the default port for PostgreSQL.
	PostgresPort = 5432

	// RedisPort is the default port for Redis.
	RedisPort = 6379

	// NATSPort is the default port for NATS messaging.
	NATSPort = 4222

	// MetricsPort is the default port for the Prometheus /metrics endpoint.
	MetricsPort = 9090
)
