package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Realtime   RealtimeConfig   `mapstructure:"realtime"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TargetConfig is one monitored service from the config file.
type TargetConfig struct {
	ID        string `mapstructure:"id"`
	Name      string `mapstructure:"name"`
	URL       string `mapstructure:"url"`
	Protocol  string `mapstructure:"protocol"`
	TimeoutMs int    `mapstructure:"timeout_ms"`
}

type MonitoringConfig struct {
	Interval             time.Duration  `mapstructure:"interval"`
	CheckTimeout         time.Duration  `mapstructure:"check_timeout"`
	HighLatencyThreshold time.Duration  `mapstructure:"high_latency_threshold"`
	CacheFreshness       time.Duration  `mapstructure:"cache_freshness"`
	MaxConcurrentChecks  int            `mapstructure:"max_concurrent_checks"`
	MaxSamplesPerService int            `mapstructure:"max_samples_per_service"`
	Targets              []TargetConfig `mapstructure:"targets"`
}

type RealtimeConfig struct {
	RequestsPerMinute      int `mapstructure:"requests_per_minute"`
	CheckRequestsPerMinute int `mapstructure:"check_requests_per_minute"`
}

type AlertsConfig struct {
	HistorySize  int    `mapstructure:"history_size"`
	WebhookURL   string `mapstructure:"webhook_url"`
	RedisChannel string `mapstructure:"redis_channel"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvPrefix("homepulse")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			slog.Warn("config file not found, using defaults")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	slog.Info("configuration loaded successfully")
	return &config, nil
}

func setDefaults() {
	viper.SetDefault("app.name", "homepulse")
	viper.SetDefault("app.version", "1.0.0")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	viper.SetDefault("database.enabled", true)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "homepulse")
	viper.SetDefault("database.password", "homepulse")
	viper.SetDefault("database.dbname", "homepulse")
	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	viper.SetDefault("monitoring.interval", "30s")
	viper.SetDefault("monitoring.check_timeout", "10s")
	viper.SetDefault("monitoring.high_latency_threshold", "5s")
	viper.SetDefault("monitoring.cache_freshness", "30s")
	viper.SetDefault("monitoring.max_concurrent_checks", 32)
	viper.SetDefault("monitoring.max_samples_per_service", 1000)

	viper.SetDefault("realtime.requests_per_minute", 30)
	viper.SetDefault("realtime.check_requests_per_minute", 5)

	viper.SetDefault("alerts.history_size", 200)
	viper.SetDefault("alerts.webhook_url", "")
	viper.SetDefault("alerts.redis_channel", "homepulse:alerts")
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}

	if cfg.Server.Mode != "debug" && cfg.Server.Mode != "release" {
		return fmt.Errorf("invalid server mode %s", cfg.Server.Mode)
	}

	if cfg.Database.Enabled && cfg.Database.Host == "" {
		return errors.New("database host is required")
	}

	if cfg.Database.Enabled && cfg.Database.DBName == "" {
		return errors.New("database name is required")
	}

	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		return errors.New("redis address is required")
	}

	if cfg.Monitoring.Interval < time.Second {
		return fmt.Errorf("monitoring interval too small: %s", cfg.Monitoring.Interval)
	}

	seen := make(map[string]bool, len(cfg.Monitoring.Targets))
	for _, t := range cfg.Monitoring.Targets {
		if t.ID == "" || t.URL == "" {
			return fmt.Errorf("monitoring target requires id and url (got id=%q url=%q)", t.ID, t.URL)
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate monitoring target id %q", t.ID)
		}
		seen[t.ID] = true
	}

	return nil
}

// GetDSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// GetRedisOptions returns the client options for the Redis connection.
func (r *RedisConfig) GetRedisOptions() *redis.Options {
	return &redis.Options{
		Addr:     r.Addr,
		Password: r.Password,
		DB:       r.DB,
	}
}
