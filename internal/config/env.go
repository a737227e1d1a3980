package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// LoadEnv loads the first .env file found near the working directory.
// Variables already set in the process environment win.
func LoadEnv(logger logrus.FieldLogger) string {
	envPaths := []string{".env.local", ".env", "../.env", "../../.env"}
	for _, path := range envPaths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			if logger != nil {
				logger.WithError(err).Warnf("Failed to load %s", path)
			}
			continue
		}
		if logger != nil {
			logger.Debugf("Loaded env file: %s", path)
		}
		return path
	}
	if logger != nil {
		logger.Debug("No .env file found, using environment variables")
	}
	return ""
}

// GetEnv gets an environment variable with a default value
func GetEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvBool gets a boolean environment variable with a default value
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetEnvDuration accepts Go durations ("1500ms", "2s") or bare milliseconds.
// Zero is a valid value; negative ones fall back to the default.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil && parsed >= 0 {
		return parsed
	}
	if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
