// Package middleware provides HTTP middleware components for the Reserva API.
package middleware

import (
	"time"

	"github.com/reserva-io/reserva/internal/config"
)

const (
	burstMultiplier        = 2
	defaultGlobalRPS       = 100
	defaultClientRPS       = 25
	defaultMaxClients      = 1000
	defaultCleanupInterval = 5 * time.Minute
	defaultIdleTimeout     = time.Hour
)

// RateLimitConfig holds token-bucket rate limiter settings.
type RateLimitConfig struct {
	GlobalRPS       int
	ClientRPS       int
	MaxClients      int
	CleanupInterval time.Duration
	IdleTimeout     time.Duration
}

// LoadRateLimitConfig loads rate limiter configuration from environment
// variables with fallback to defaults.
func LoadRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		GlobalRPS:       config.GetEnvInt("RATE_LIMIT_GLOBAL_RPS", defaultGlobalRPS),
		ClientRPS:       config.GetEnvInt("RATE_LIMIT_CLIENT_RPS", defaultClientRPS),
		MaxClients:      config.GetEnvInt("RATE_LIMIT_MAX_CLIENTS", defaultMaxClients),
		CleanupInterval: config.GetEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", defaultCleanupInterval),
		IdleTimeout:     config.GetEnvDuration("RATE_LIMIT_IDLE_TIMEOUT", defaultIdleTimeout),
	}
}
