package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	// File paths
	AnimalsCSVPath string
	SourcesCSVPath string
	DBPath         string

	// Server settings
	ServerHost string
	ServerPort int
	APIKey     string
	PageSize   int

	// Client settings
	APIURL string

	// Sync settings
	WorkerCount   int
	Interval      time.Duration
	RetentionDays int

	// Log settings
	LogLevel zerolog.Level
}

// DefaultConfig returns an initial configuration with hardcoded defaults.
func DefaultConfig() *Config {
	logLevel, _ := zerolog.ParseLevel(DefaultLogLevel)

	return &Config{
		AnimalsCSVPath: DefaultAnimalsCSVPath,
		SourcesCSVPath: DefaultSourcesCSVPath,
		DBPath:         DefaultDBPath,
		ServerHost:     DefaultServerHost,
		ServerPort:     DefaultServerPort,
		PageSize:       DefaultPageSize,
		APIURL:         DefaultAPIURL,
		WorkerCount:    DefaultWorkerCount,
		Interval:       time.Duration(DefaultInterval) * time.Minute,
		RetentionDays:  DefaultRetentionDays,
		LogLevel:       logLevel,
	}
}

// FromEnv returns DefaultConfig overridden by PETFEED_* environment variables.
func FromEnv() *Config {
	cfg := DefaultConfig()
	cfg.AnimalsCSVPath = GetEnvString(EnvAnimalsCSV, cfg.AnimalsCSVPath)
	cfg.SourcesCSVPath = GetEnvString(EnvSourcesCSV, cfg.SourcesCSVPath)
	cfg.DBPath = GetEnvString(EnvDBPath, cfg.DBPath)
	cfg.ServerHost = GetEnvString(EnvServerHost, cfg.ServerHost)
	cfg.ServerPort = GetEnvInt(EnvServerPort, cfg.ServerPort)
	cfg.APIKey = GetEnvString(EnvAPIKey, cfg.APIKey)
	cfg.PageSize = GetEnvInt(EnvPageSize, cfg.PageSize)
	cfg.APIURL = GetEnvString(EnvAPIURL, cfg.APIURL)
	cfg.WorkerCount = GetEnvInt(EnvWorkerCount, cfg.WorkerCount)
	cfg.Interval = GetEnvDuration(EnvInterval, cfg.Interval)
	cfg.RetentionDays = GetEnvInt(EnvRetentionDays, cfg.RetentionDays)
	cfg.LogLevel = GetEnvLogLevel(EnvLogLevel, cfg.LogLevel)
	return cfg
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server port %d", c.ServerPort)
	}
	if c.PageSize <= 0 || c.PageSize > MaxPageSize {
		return fmt.Errorf("page size must be between 1 and %d, got %d", MaxPageSize, c.PageSize)
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retention days must not be negative")
	}
	return nil
}

// ListenAddr returns the formatted listen address for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}
