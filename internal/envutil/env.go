// Package envutil provides environment variable lookup with defaults,
// shared by storage configuration and the integration test gates.
package envutil

import (
	"fmt"
	"os"
	"time"
)

// Get returns the variable's value or the default when unset or empty.
func Get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetInt parses the variable as a decimal integer, falling back on the
// default when unset or malformed.
func GetInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

// GetDuration parses the variable with time.ParseDuration, falling back on
// the default when unset or malformed.
func GetDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
