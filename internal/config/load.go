package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables take
// precedence over file values and use the TASKBOARD_ prefix with
// underscores for nesting (e.g. TASKBOARD_SERVER_PORT).
// Returns a populated Config or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TASKBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults must be bound explicitly or Unmarshal will
	// not see their environment values.
	v.MustBindEnv("database.url")
	v.MustBindEnv("auth.jwt_secret")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; environment variables and
		// defaults carry the configuration in that case.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", 10)
	v.SetDefault("auth.token_lifetime_minutes", 60*24*7)
	v.SetDefault("rate_limit.max_requests", 100)
	v.SetDefault("rate_limit.window_seconds", 60)
	v.SetDefault("realtime.auth_timeout_seconds", 30)
	v.SetDefault("realtime.send_buffer_size", 64)
}
