package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validTestConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, Mode: "debug"},
		Database: DatabaseConfig{
			Enabled: true,
			Host:    "localhost",
			Port:    5432,
			User:    "homepulse",
			DBName:  "homepulse",
			SSLMode: "disable",
		},
		Redis:      RedisConfig{Enabled: true, Addr: "localhost:6379"},
		Monitoring: MonitoringConfig{Interval: 30 * time.Second},
	}
}

func TestValidateConfigOK(t *testing.T) {
	assert.NoError(t, validateConfig(validTestConfig()))
}

func TestValidateConfigBadPort(t *testing.T) {
	cfg := validTestConfig()
	cfg.Server.Port = 0
	assert.Error(t, validateConfig(cfg))

	cfg.Server.Port = 70000
	assert.Error(t, validateConfig(cfg))
}

func TestValidateConfigBadMode(t *testing.T) {
	cfg := validTestConfig()
	cfg.Server.Mode = "verbose"
	assert.Error(t, validateConfig(cfg))
}

func TestValidateConfigDatabaseDisabledSkipsChecks(t *testing.T) {
	cfg := validTestConfig()
	cfg.Database = DatabaseConfig{Enabled: false}
	assert.NoError(t, validateConfig(cfg))
}

func TestValidateConfigIntervalTooSmall(t *testing.T) {
	cfg := validTestConfig()
	cfg.Monitoring.Interval = 100 * time.Millisecond
	assert.Error(t, validateConfig(cfg))
}

func TestValidateConfigTargets(t *testing.T) {
	cfg := validTestConfig()
	cfg.Monitoring.Targets = []TargetConfig{
		{ID: "a", Name: "A", URL: "http://a"},
		{ID: "b", Name: "B", URL: "http://b"},
	}
	assert.NoError(t, validateConfig(cfg))

	cfg.Monitoring.Targets = append(cfg.Monitoring.Targets, TargetConfig{ID: "a", URL: "http://dup"})
	assert.ErrorContains(t, validateConfig(cfg), "duplicate")

	cfg.Monitoring.Targets = []TargetConfig{{Name: "no id or url"}}
	assert.ErrorContains(t, validateConfig(cfg), "requires id and url")
}

func TestGetDSN(t *testing.T) {
	cfg := validTestConfig()
	dsn := cfg.Database.GetDSN()
	assert.Equal(t, "host=localhost port=5432 user=homepulse password= dbname=homepulse sslmode=disable", dsn)
}

func TestGetRedisOptions(t *testing.T) {
	cfg := validTestConfig()
	opts := cfg.Redis.GetRedisOptions()
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Zero(t, opts.DB)
}
