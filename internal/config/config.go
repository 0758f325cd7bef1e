// Package config loads runtime configuration for cmd/japid: defaults, an
// optional config file, then JAPI_-prefixed environment variables, in
// that order, via viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the japid demo server.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls the japi TCP listener and core options.
type ServerConfig struct {
	Host                  string `mapstructure:"host"`
	Port                  int    `mapstructure:"port"`
	MaxClients            int    `mapstructure:"max_clients"`
	MaxLineSizeBytes      int    `mapstructure:"max_line_size_bytes"`
	IncludeArgsInResponse bool   `mapstructure:"include_args_in_response"`

	Keepalive KeepaliveConfig `mapstructure:"keepalive"`
}

// KeepaliveConfig is the optional TCP keepalive tuple applied by the
// transport to each accepted client socket.
type KeepaliveConfig struct {
	Enable           bool          `mapstructure:"enable"`
	Idle             time.Duration `mapstructure:"idle_seconds"`
	IntervalDuration time.Duration `mapstructure:"interval_seconds"`
	Probes           int           `mapstructure:"probes"`
}

// RateLimitConfig controls the connection-admission token buckets.
type RateLimitConfig struct {
	Enable      bool    `mapstructure:"enable"`
	PerIPRate   float64 `mapstructure:"per_ip_rate"`
	PerIPBurst  int     `mapstructure:"per_ip_burst"`
	GlobalRate  float64 `mapstructure:"global_rate"`
	GlobalBurst int     `mapstructure:"global_burst"`
	IdleTTL     time.Duration `mapstructure:"idle_ttl"`
}

// MetricsConfig controls the side HTTP server exposing /health and /metrics.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
	Endpoint   string `mapstructure:"endpoint"`
}

// LoggingConfig controls zap logger level/encoding.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads configuration from environment variables and an optional
// config file named "japi.{yaml,json,toml,...}" in the working directory
// or ./config.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 7878)
	v.SetDefault("server.max_clients", 0)
	v.SetDefault("server.max_line_size_bytes", 64<<20)
	v.SetDefault("server.include_args_in_response", false)
	v.SetDefault("server.keepalive.enable", false)
	v.SetDefault("server.keepalive.idle_seconds", 60*time.Second)
	v.SetDefault("server.keepalive.interval_seconds", 15*time.Second)
	v.SetDefault("server.keepalive.probes", 3)

	v.SetDefault("ratelimit.enable", false)
	v.SetDefault("ratelimit.per_ip_rate", 2.0)
	v.SetDefault("ratelimit.per_ip_burst", 10)
	v.SetDefault("ratelimit.global_rate", 200.0)
	v.SetDefault("ratelimit.global_burst", 500)
	v.SetDefault("ratelimit.idle_ttl", 5*time.Minute)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen_addr", ":9096")
	v.SetDefault("metrics.endpoint", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)

	v.SetConfigName("japi")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("JAPI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.ReadInConfig() // optional file; defaults + env suffice without it

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config unmarshal: %w", err)
	}

	if cfg.Server.MaxLineSizeBytes <= 0 {
		cfg.Server.MaxLineSizeBytes = 64 << 20
	}

	return cfg, nil
}
