package config

import (
	"os"
	"path/filepath"
	"time"
)

// AppDirName is the per-user directory holding recordings and the catalog
const AppDirName = "GhostReplay"

// Config holds every tunable of the recorder
type Config struct {
	LiveClientURL     string
	LiveClientTimeout time.Duration

	PresenceInterval time.Duration
	IngestInterval   time.Duration
	RosterTTL        time.Duration
	StopDelay        time.Duration
	AutoRecord       bool

	RecordingsDir string
	CatalogPath   string

	DatabaseURL string // optional PostgreSQL archive
	NATSURL     string // optional lifecycle notifications

	ReviewAddr string

	LogLevel  string
	LogFormat string
}

// Load reads the configuration from the environment
func Load() Config {
	base := defaultDataDir()

	return Config{
		LiveClientURL:     GetEnv("LIVE_CLIENT_URL", "https://127.0.0.1:2999"),
		LiveClientTimeout: positiveDuration("LIVE_CLIENT_TIMEOUT", 3*time.Second),

		PresenceInterval: positiveDuration("PRESENCE_INTERVAL", 2*time.Second),
		IngestInterval:   positiveDuration("INGEST_INTERVAL", time.Second),
		RosterTTL:        positiveDuration("ROSTER_TTL", 30*time.Second),
		StopDelay:        GetEnvDuration("STOP_DELAY", 3*time.Second),
		AutoRecord:       GetEnvBool("AUTO_RECORD", true),

		RecordingsDir: GetEnv("RECORDINGS_DIR", filepath.Join(base, "recordings")),
		CatalogPath:   GetEnv("CATALOG_PATH", filepath.Join(base, "catalog.db")),

		DatabaseURL: GetEnv("DATABASE_URL", ""),
		NATSURL:     GetEnv("NATS_URL", ""),

		ReviewAddr: GetEnv("REVIEW_ADDR", "127.0.0.1:7878"),

		LogLevel:  GetEnv("LOG_LEVEL", "info"),
		LogFormat: GetEnv("LOG_FORMAT", "text"),
	}
}

// positiveDuration is GetEnvDuration for periods that cannot be zero
func positiveDuration(key string, defaultValue time.Duration) time.Duration {
	if d := GetEnvDuration(key, defaultValue); d > 0 {
		return d
	}
	return defaultValue
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, AppDirName)
}
