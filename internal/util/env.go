// Package util provides environment variable parsing helpers shared across components.
package util

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ParseBoolEnv parses a boolean environment variable with a default value.
// Accepts: true/1/yes/on and false/0/no/off (case-insensitive). Invalid values return default.
func ParseBoolEnv(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		slog.Warn("ParseBoolEnv: invalid boolean value, using default", "key", key, "value", val, "default", defaultValue)
		return defaultValue
	}
}

// ParseIntEnv parses an integer environment variable with a default value.
// Invalid values return default.
func ParseIntEnv(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		slog.Warn("ParseIntEnv: invalid integer value, using default", "key", key, "value", val, "default", defaultValue)
		return defaultValue
	}
	return n
}

// ParseSecondsEnv parses an environment variable holding a number of seconds
// into a duration. Non-positive or invalid values return default.
func ParseSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	n := ParseIntEnv(key, 0)
	if n <= 0 {
		return defaultValue
	}
	return time.Duration(n) * time.Second
}

// ParseMinutesEnv parses an environment variable holding a number of minutes
// into a duration. Non-positive or invalid values return default.
func ParseMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	n := ParseIntEnv(key, 0)
	if n <= 0 {
		return defaultValue
	}
	return time.Duration(n) * time.Minute
}
