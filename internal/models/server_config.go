package models

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port           string `json:"port,omitzero" yaml:"port"`
	AllowedOrigins string `json:"allowed_origins,omitzero" yaml:"allowed_origins"`
	Environment    string `json:"environment,omitzero" yaml:"environment"`
	LogLevel       string `json:"log_level,omitzero" yaml:"log_level"`
}

// RateLimitConfig configures the per-client HTTP limiter middleware.
type RateLimitConfig struct {
	Max        int
	Expiration time.Duration
	KeyFunc    func(*fiber.Ctx) string
}

// TimeoutConfig configures the per-request HTTP timeout middleware.
type TimeoutConfig struct {
	Timeout time.Duration
}
