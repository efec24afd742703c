package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cargohold/internal/storage"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "DATABASE_URL", "CARGOHOLD_STORAGE", "CARGOHOLD_OPLOG_URL",
		"CARGOHOLD_MASTER_KEY", "CARGOHOLD_METRICS_ENABLED",
		"CARGOHOLD_ZONES_FILE", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Server.Port)
	}
	if cfg.Storage.Type != storage.TypeSQLite {
		t.Errorf("expected sqlite default storage, got %s", cfg.Storage.Type)
	}
	if !cfg.Server.MetricsEnabled {
		t.Error("expected metrics enabled by default")
	}
	if cfg.Server.BodySizeLimit != DefaultBodySizeLimit {
		t.Errorf("expected default body limit, got %d", cfg.Server.BodySizeLimit)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("expected json log format, got %s", cfg.Log.Format)
	}
	if cfg.AuditLog.RetentionDays != 90 {
		t.Errorf("expected 90 day retention, got %d", cfg.AuditLog.RetentionDays)
	}
}

func TestLoadDatabaseURLSelectsBackend(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://cargo_admin:secret@db:5432/cargo_management")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Storage.Type != storage.TypePostgreSQL {
		t.Errorf("expected postgresql storage, got %s", cfg.Storage.Type)
	}
	if cfg.Storage.PostgreSQL.URL != "postgres://cargo_admin:secret@db:5432/cargo_management" {
		t.Errorf("unexpected postgres URL: %s", cfg.Storage.PostgreSQL.URL)
	}

}

func TestLoadRejectsMongoPrimaryStorage(t *testing.T) {
	t.Setenv("DATABASE_URL", "mongodb://localhost:27017")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for mongodb primary storage")
	}
	if !strings.Contains(err.Error(), "CARGOHOLD_OPLOG_URL") {
		t.Errorf("error should point at CARGOHOLD_OPLOG_URL, got: %v", err)
	}

	t.Setenv("DATABASE_URL", "")
	os.Unsetenv("DATABASE_URL")
	t.Setenv("CARGOHOLD_STORAGE", storage.TypeMongoDB)
	if _, err := Load(); err == nil {
		t.Fatal("expected error for explicit mongodb primary storage")
	}
}

func TestLoadOplogStorage(t *testing.T) {
	t.Setenv("CARGOHOLD_OPLOG_URL", "mongodb://localhost:27017")
	t.Setenv("CARGOHOLD_MONGODB_DATABASE", "station_ops")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Storage.Type != storage.TypeSQLite {
		t.Errorf("primary storage should stay sqlite, got %s", cfg.Storage.Type)
	}
	if cfg.AuditLog.Storage.Type != storage.TypeMongoDB {
		t.Errorf("expected mongodb operation log storage, got %s", cfg.AuditLog.Storage.Type)
	}
	if cfg.AuditLog.Storage.MongoDB.URL != "mongodb://localhost:27017" {
		t.Errorf("unexpected oplog URL: %s", cfg.AuditLog.Storage.MongoDB.URL)
	}
	if cfg.AuditLog.Storage.MongoDB.Database != "station_ops" {
		t.Errorf("unexpected oplog database: %s", cfg.AuditLog.Storage.MongoDB.Database)
	}

	t.Setenv("CARGOHOLD_OPLOG_URL", "postgres://cargo_admin:secret@db:5432/cargo_management")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.AuditLog.Storage.Type != storage.TypePostgreSQL {
		t.Errorf("expected postgresql operation log storage, got %s", cfg.AuditLog.Storage.Type)
	}

	t.Setenv("CARGOHOLD_OPLOG_URL", "redis://localhost:6379")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unsupported oplog URL scheme")
	}
}

func TestLoadOplogStorageUnsetSharesPrimary(t *testing.T) {
	t.Setenv("CARGOHOLD_OPLOG_URL", "")
	os.Unsetenv("CARGOHOLD_OPLOG_URL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.AuditLog.Storage.Type != "" {
		t.Errorf("expected empty oplog storage type, got %s", cfg.AuditLog.Storage.Type)
	}
}

func TestLoadExplicitStorageOverride(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://cargo_admin:secret@db:5432/cargo_management")
	t.Setenv("CARGOHOLD_STORAGE", "sqlite")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Storage.Type != storage.TypeSQLite {
		t.Errorf("expected explicit sqlite override, got %s", cfg.Storage.Type)
	}
}

func TestLoadZoneFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.yaml")
	content := "zoneBonuses:\n  Crew Quarters: 0.8\n  Airlock: 0.2\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write zones file: %v", err)
	}
	t.Setenv("CARGOHOLD_ZONES_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if got := cfg.Zones.ZoneBonuses["Crew Quarters"]; got != 0.8 {
		t.Errorf("expected zone bonus 0.8, got %g", got)
	}
	if got := cfg.Zones.ZoneBonuses["Airlock"]; got != 0.2 {
		t.Errorf("expected zone bonus 0.2, got %g", got)
	}
}

func TestLoadZoneFileMissing(t *testing.T) {
	t.Setenv("CARGOHOLD_ZONES_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing zones file")
	}
}
