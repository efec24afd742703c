package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	_ "modernc.org/sqlite" // pure Go sqlite driver
)

func openSQLite(cfg SQLiteConfig) (*Conn, error) {
	path := cfg.Path
	if path == "" {
		path = "data/cargohold.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	// WAL keeps reads open while a writer holds the single write slot.
	dsn := path + "?_journal=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	return &Conn{typ: TypeSQLite, sqlite: db}, nil
}

func openPostgreSQL(ctx context.Context, cfg PostgreSQLConfig) (*Conn, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("postgresql url is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgresql url: %w", err)
	}
	poolCfg.MaxConns = 10
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgresql pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgresql: %w", err)
	}
	return &Conn{typ: TypePostgreSQL, pg: pool}, nil
}

func openMongoDB(ctx context.Context, cfg MongoDBConfig) (*Conn, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("mongodb url is required")
	}
	name := cfg.Database
	if name == "" {
		name = "cargohold"
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return &Conn{
		typ:         TypeMongoDB,
		mongoClient: client,
		mongoDB:     client.Database(name),
	}, nil
}
