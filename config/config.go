// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"cargohold/internal/storage"
)

// DefaultBodySizeLimit is the maximum request body size (10MB).
const DefaultBodySizeLimit int64 = 10 * 1024 * 1024

// DefaultPort is the HTTP listen port used when PORT is unset.
const DefaultPort = "8000"

// Config holds the application configuration
type Config struct {
	Server   ServerConfig
	Storage  storage.Config
	Cache    CacheConfig
	Log      LogConfig
	AuditLog AuditLogConfig
	Zones    ZoneConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string
	MasterKey       string
	MetricsEnabled  bool
	MetricsEndpoint string
	BodySizeLimit   int64
}

// CacheConfig holds container-state cache configuration. An empty RedisURL
// selects the in-process cache.
type CacheConfig struct {
	RedisURL string
}

// LogConfig holds application logging configuration
type LogConfig struct {
	// Format is "json" (default) or "pretty" for colorized terminal output.
	Format string
	// Level is "debug", "info", "warn", or "error".
	Level string
}

// AuditLogConfig holds operation log configuration. A non-empty Storage.Type
// sends operation log writes to a dedicated backend instead of the primary
// storage connection.
type AuditLogConfig struct {
	Enabled       bool
	RetentionDays int
	Storage       storage.Config
}

// ZoneConfig holds optional per-zone placement tuning loaded from a YAML file.
type ZoneConfig struct {
	// ZoneBonuses overrides the placement zone bonus per zone name.
	ZoneBonuses map[string]float64 `yaml:"zoneBonuses"`
}

// Load reads configuration from the environment, with an optional .env file.
func Load() (*Config, error) {
	// Load .env if present; real environment variables win.
	_ = godotenv.Load()

	storageCfg, err := storageFromEnv()
	if err != nil {
		return nil, err
	}
	oplogCfg, err := oplogStorageFromEnv()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", DefaultPort),
			MasterKey:       getEnv("CARGOHOLD_MASTER_KEY", ""),
			MetricsEnabled:  getBool("CARGOHOLD_METRICS_ENABLED", true),
			MetricsEndpoint: getEnv("CARGOHOLD_METRICS_ENDPOINT", "/metrics"),
			BodySizeLimit:   getInt64("CARGOHOLD_BODY_SIZE_LIMIT", DefaultBodySizeLimit),
		},
		Storage: storageCfg,
		Cache: CacheConfig{
			RedisURL: getEnv("CARGOHOLD_REDIS_URL", ""),
		},
		Log: LogConfig{
			Format: getEnv("LOG_FORMAT", "json"),
			Level:  getEnv("LOG_LEVEL", "info"),
		},
		AuditLog: AuditLogConfig{
			Enabled:       getBool("CARGOHOLD_AUDIT_LOG_ENABLED", true),
			RetentionDays: int(getInt64("CARGOHOLD_AUDIT_LOG_RETENTION_DAYS", 90)),
			Storage:       oplogCfg,
		},
	}

	if path := getEnv("CARGOHOLD_ZONES_FILE", ""); path != "" {
		zones, err := loadZoneFile(path)
		if err != nil {
			return nil, err
		}
		cfg.Zones = *zones
	}

	return cfg, nil
}

// storageFromEnv derives the primary storage backend from DATABASE_URL, with
// CARGOHOLD_STORAGE as an explicit override. Inventory data is relational, so
// only sqlite and postgresql are accepted here; MongoDB is available for the
// operation log via CARGOHOLD_OPLOG_URL.
func storageFromEnv() (storage.Config, error) {
	cfg := storage.DefaultConfig()
	cfg.SQLite.Path = getEnv("CARGOHOLD_SQLITE_PATH", cfg.SQLite.Path)

	url := getEnv("DATABASE_URL", "")
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		cfg.Type = storage.TypePostgreSQL
		cfg.PostgreSQL.URL = url
	case strings.HasPrefix(url, "mongodb://"), strings.HasPrefix(url, "mongodb+srv://"):
		return cfg, fmt.Errorf("mongodb is not supported as primary storage; set DATABASE_URL to a postgres:// URL (or unset it for sqlite) and use CARGOHOLD_OPLOG_URL=%s to keep the operation log on MongoDB", url)
	}
	cfg.PostgreSQL.MaxConns = int(getInt64("CARGOHOLD_PG_MAX_CONNS", int64(cfg.PostgreSQL.MaxConns)))

	if explicit := getEnv("CARGOHOLD_STORAGE", ""); explicit != "" {
		if explicit == storage.TypeMongoDB {
			return cfg, fmt.Errorf("mongodb is not supported as primary storage; use CARGOHOLD_OPLOG_URL to keep the operation log on MongoDB")
		}
		cfg.Type = explicit
	}
	return cfg, nil
}

// oplogStorageFromEnv derives an optional dedicated operation log backend
// from CARGOHOLD_OPLOG_URL. An empty URL means the operation log shares the
// primary storage connection.
func oplogStorageFromEnv() (storage.Config, error) {
	url := getEnv("CARGOHOLD_OPLOG_URL", "")
	if url == "" {
		return storage.Config{}, nil
	}
	cfg := storage.DefaultConfig()
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		cfg.Type = storage.TypePostgreSQL
		cfg.PostgreSQL.URL = url
		cfg.PostgreSQL.MaxConns = int(getInt64("CARGOHOLD_PG_MAX_CONNS", int64(cfg.PostgreSQL.MaxConns)))
	case strings.HasPrefix(url, "mongodb://"), strings.HasPrefix(url, "mongodb+srv://"):
		cfg.Type = storage.TypeMongoDB
		cfg.MongoDB.URL = url
		cfg.MongoDB.Database = getEnv("CARGOHOLD_MONGODB_DATABASE", cfg.MongoDB.Database)
	default:
		return cfg, fmt.Errorf("CARGOHOLD_OPLOG_URL must be a postgres:// or mongodb:// URL, got %q", url)
	}
	return cfg, nil
}

func loadZoneFile(path string) (*ZoneConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read zones file: %w", err)
	}
	var zones ZoneConfig
	if err := yaml.Unmarshal(raw, &zones); err != nil {
		return nil, fmt.Errorf("parse zones file %s: %w", path, err)
	}
	return &zones, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
