package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the CarePulse backend.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Signaling     SignalingConfig     `mapstructure:"signaling"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Pharmacy      PharmacyConfig      `mapstructure:"pharmacy"`
	Monitoring    MonitoringConfig    `mapstructure:"monitoring"`
	Auth          AuthConfig          `mapstructure:"auth"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// SignalingConfig describes the upstream relay the live channel connects to.
type SignalingConfig struct {
	URL          string        `mapstructure:"url"`
	Token        string        `mapstructure:"token"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// NotificationsConfig controls the in-memory registry and durable history.
type NotificationsConfig struct {
	SweepSchedule        string `mapstructure:"sweep_schedule"`
	HistoryRetentionDays int    `mapstructure:"history_retention_days"`
	AuditRetentionDays   int    `mapstructure:"audit_retention_days"`
}

// PharmacyConfig schedules the background inventory checks.
type PharmacyConfig struct {
	StockCheckSchedule  string `mapstructure:"stock_check_schedule"`
	ExpiryCheckSchedule string `mapstructure:"expiry_check_schedule"`
	ExpiryWindowDays    int    `mapstructure:"expiry_window_days"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// AuthConfig captures token validation settings for the API and hub.
type AuthConfig struct {
	JWT JWTSettings `mapstructure:"jwt"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("CAREPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/carepulse.sqlite")

	v.SetDefault("signaling.url", "")
	v.SetDefault("signaling.token", "")
	v.SetDefault("signaling.ping_interval", "30s")
	v.SetDefault("signaling.max_retries", 5)

	v.SetDefault("notifications.sweep_schedule", "@every 1m")
	v.SetDefault("notifications.history_retention_days", 30)
	v.SetDefault("notifications.audit_retention_days", 90)

	v.SetDefault("pharmacy.stock_check_schedule", "@every 30m")
	v.SetDefault("pharmacy.expiry_check_schedule", "@daily")
	v.SetDefault("pharmacy.expiry_window_days", 30)

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)

	v.SetDefault("auth.jwt.access_token_ttl", "15m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
