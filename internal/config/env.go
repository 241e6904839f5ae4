package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// lookup returns the trimmed value of key and whether it is set and non-empty.
func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// GetEnvString retrieves a string from environment variables or returns the default value.
// An explicitly empty variable is honoured, so PETFEED_HOST="" binds all interfaces.
func GetEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvInt retrieves an integer from environment variables or returns the default value.
func GetEnvInt(key string, defaultValue int) int {
	valStr, ok := lookup(key)
	if !ok {
		return defaultValue
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultValue
	}
	return val
}

// GetEnvBool retrieves a boolean from environment variables or returns the default value.
func GetEnvBool(key string, defaultValue bool) bool {
	valStr, ok := lookup(key)
	if !ok {
		return defaultValue
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		return defaultValue
	}
	return val
}

// GetEnvDuration retrieves a duration from environment variables or returns the default value.
// A bare number is read as minutes; anything else goes through time.ParseDuration.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valStr, ok := lookup(key)
	if !ok {
		return defaultValue
	}
	if minutes, err := strconv.Atoi(valStr); err == nil {
		return time.Duration(minutes) * time.Minute
	}
	val, err := time.ParseDuration(valStr)
	if err != nil {
		return defaultValue
	}
	return val
}

// GetEnvLogLevel retrieves a log level from environment variables or returns the default value.
func GetEnvLogLevel(key string, defaultValue zerolog.Level) zerolog.Level {
	valStr, ok := lookup(key)
	if !ok {
		return defaultValue
	}
	level, err := zerolog.ParseLevel(strings.ToLower(valStr))
	if err != nil {
		return defaultValue
	}
	return level
}
