package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"     validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"   validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth"       validate:"required"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" validate:"required"`
	Realtime  RealtimeConfig  `mapstructure:"realtime"   validate:"required"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port            int    `mapstructure:"port"             validate:"required,gt=0,lt=65536"`
	LogLevel        string `mapstructure:"log_level"        validate:"required,oneof=debug info warn error"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" validate:"gte=0"` // seconds
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// RateLimitConfig controls the per-identity admission limiter applied to
// every API request.
type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"   validate:"required,gt=0"`
	WindowSeconds int `mapstructure:"window_seconds" validate:"required,gt=0"`
}

// RealtimeConfig controls the WebSocket hub.
type RealtimeConfig struct {
	// AuthTimeoutSeconds closes connections that have not completed the
	// auth handshake within this many seconds. Zero disables the deadline.
	AuthTimeoutSeconds int `mapstructure:"auth_timeout_seconds" validate:"gte=0"`

	// SendBufferSize is the per-connection outbound queue length. Sends to
	// a connection whose queue is full are dropped rather than blocking
	// the broadcast.
	SendBufferSize int `mapstructure:"send_buffer_size" validate:"required,gt=0"`
}
