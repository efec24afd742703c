// Package app provides the main application struct for centralized dependency
// management and lifecycle control of the cargohold server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"cargohold/config"
	"cargohold/internal/auditlog"
	"cargohold/internal/cache"
	"cargohold/internal/importexport"
	"cargohold/internal/inventory"
	"cargohold/internal/placement"
	"cargohold/internal/rearrangement"
	"cargohold/internal/retrieval"
	"cargohold/internal/server"
	"cargohold/internal/simulation"
	"cargohold/internal/storage"
	"cargohold/internal/waste"
)

// App represents the main application with all its dependencies.
// It provides centralized lifecycle management for all components.
type App struct {
	config    *config.Config
	storage   *storage.Conn
	opStorage *storage.Conn
	cache     cache.Cache
	audit     auditlog.LoggerInterface
	server    *server.Server

	shutdownMu sync.Mutex
	shutdown   bool
}

// New creates a new App with all dependencies initialized.
// The caller must call Shutdown to release resources.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	app := &App{config: cfg}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.storage = store

	invStore, err := inventory.NewStore(store)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to initialize inventory: %w", err), app.closeStorage())
	}

	simStore, err := simulation.NewStore(store)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to initialize simulation store: %w", err), app.closeStorage())
	}

	// Operation log: buffered async logger plus a reader for queries.
	// With CARGOHOLD_OPLOG_URL set the log gets its own backend (for
	// example MongoDB) while inventory stays on the relational store.
	var opLog auditlog.LoggerInterface = &auditlog.NoopLogger{}
	var logReader auditlog.Reader
	if cfg.AuditLog.Enabled {
		logConn := store
		if cfg.AuditLog.Storage.Type != "" {
			logConn, err = storage.New(ctx, cfg.AuditLog.Storage)
			if err != nil {
				return nil, errors.Join(fmt.Errorf("failed to initialize operation log storage: %w", err), app.closeStorage())
			}
			app.opStorage = logConn
		}

		logStore, err := auditlog.NewLogStore(logConn, cfg.AuditLog.RetentionDays)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to initialize operation log: %w", err), app.closeStorage())
		}
		logCfg := auditlog.DefaultConfig()
		logCfg.RetentionDays = cfg.AuditLog.RetentionDays
		opLog = auditlog.NewLogger(logStore, logCfg)

		logReader, err = auditlog.NewReader(logConn)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to initialize log reader: %w", err), opLog.Close(), app.closeStorage())
		}
	}
	app.audit = opLog

	// Container-state cache: redis when configured, in-process otherwise.
	var stateCache cache.Cache
	if cfg.Cache.RedisURL != "" {
		stateCache, err = cache.NewRedisCache(cache.RedisConfig{URL: cfg.Cache.RedisURL})
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to connect to redis: %w", err), opLog.Close(), app.closeStorage())
		}
	} else {
		stateCache = cache.NewLocalCache(cache.DefaultTTL)
	}
	app.cache = stateCache
	states := cache.NewCachingSource(placement.NewStoreSource(invStore), stateCache)

	weights := placement.DefaultWeights()
	if len(cfg.Zones.ZoneBonuses) > 0 {
		weights.ZoneBonusOverrides = cfg.Zones.ZoneBonuses
	}
	placementEngine := placement.NewEngine(states, weights, logger)

	rearrangePlanner := rearrangement.NewPlanner(invStore, states, logger)
	wasteMgr := waste.NewManager(invStore, retrieval.NewPlanner(invStore), logger)
	retrievalSvc := retrieval.NewService(invStore, wasteMgr)
	simEngine := simulation.NewEngine(simStore, invStore, wasteMgr, logger)
	csvSvc := importexport.NewService(invStore, logger)

	serverCfg := &server.Config{
		MasterKey:       cfg.Server.MasterKey,
		MetricsEnabled:  cfg.Server.MetricsEnabled,
		MetricsEndpoint: cfg.Server.MetricsEndpoint,
		BodySizeLimit:   cfg.Server.BodySizeLimit,
	}
	app.server = server.New(server.Deps{
		Store:         invStore,
		Placement:     placementEngine,
		States:        states,
		Rearrangement: rearrangePlanner,
		Retrieval:     retrievalSvc,
		Waste:         wasteMgr,
		Simulation:    simEngine,
		ImportExport:  csvSvc,
		OpLog:         opLog,
		LogReader:     logReader,
		Invalidator:   states,
		Logger:        logger,
	}, serverCfg)

	app.logStartupInfo()

	return app, nil
}

// Server exposes the HTTP server, mainly for tests.
func (a *App) Server() *server.Server {
	return a.server
}

// Start starts the HTTP server on the given address.
// This is a blocking call that returns when the server stops.
func (a *App) Start(addr string) error {
	if a.server == nil {
		return fmt.Errorf("server is not initialized")
	}
	slog.Info("starting server", "address", addr)
	if err := a.server.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
			return nil
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully tears down app components in dependency order:
// HTTP server first, then the cache, then the operation logger (flushes
// pending entries), then the storage connections.
// Shutdown is idempotent; repeated calls are no-ops.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	slog.Info("shutting down application...")

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}

	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			slog.Error("cache close error", "error", err)
			errs = append(errs, fmt.Errorf("cache close: %w", err))
		}
	}

	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			slog.Error("operation logger close error", "error", err)
			errs = append(errs, fmt.Errorf("operation logger close: %w", err))
		}
	}

	if a.opStorage != nil {
		if err := a.opStorage.Close(); err != nil {
			slog.Error("operation log storage close error", "error", err)
			errs = append(errs, fmt.Errorf("operation log storage close: %w", err))
		}
	}

	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			slog.Error("storage close error", "error", err)
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	slog.Info("application shutdown complete")
	return nil
}

func (a *App) closeStorage() error {
	var errs []error
	if a.opStorage != nil {
		errs = append(errs, a.opStorage.Close())
	}
	if a.storage != nil {
		errs = append(errs, a.storage.Close())
	}
	return errors.Join(errs...)
}

// logStartupInfo logs the application configuration on startup.
func (a *App) logStartupInfo() {
	cfg := a.config

	if cfg.Server.MasterKey == "" {
		slog.Warn("SECURITY WARNING: CARGOHOLD_MASTER_KEY not set - server running in UNSAFE MODE",
			"security_risk", "unauthenticated access allowed",
			"recommendation", "set CARGOHOLD_MASTER_KEY environment variable to secure this server")
	} else {
		slog.Info("authentication enabled", "mode", "master_key")
	}

	if cfg.Server.MetricsEnabled {
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Server.MetricsEndpoint)
	} else {
		slog.Info("prometheus metrics disabled")
	}

	slog.Info("storage configured", "type", cfg.Storage.Type)

	if cfg.Cache.RedisURL != "" {
		slog.Info("container-state cache", "backend", "redis")
	} else {
		slog.Info("container-state cache", "backend", "local", "ttl", cache.DefaultTTL)
	}

	if cfg.AuditLog.Enabled {
		backend := cfg.Storage.Type
		if cfg.AuditLog.Storage.Type != "" {
			backend = cfg.AuditLog.Storage.Type
		}
		slog.Info("operation logging enabled", "backend", backend, "retention_days", cfg.AuditLog.RetentionDays)
	} else {
		slog.Info("operation logging disabled")
	}
}

// ShutdownTimeout is how long a graceful shutdown may take before the
// process exits anyway.
const ShutdownTimeout = 30 * time.Second
