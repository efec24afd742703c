// Package storage opens the database connection shared by the inventory,
// simulation, and operation log stores. Exactly one backend is active per
// process; Conn exposes a typed handle for it and nil for the others.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Backend type names, as accepted by CARGOHOLD_STORAGE.
const (
	TypeSQLite     = "sqlite"
	TypePostgreSQL = "postgresql"
	TypeMongoDB    = "mongodb"
)

// Config selects and parameterizes the storage backend.
type Config struct {
	Type       string
	SQLite     SQLiteConfig
	PostgreSQL PostgreSQLConfig
	MongoDB    MongoDBConfig
}

// SQLiteConfig holds SQLite-specific configuration.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string
}

// PostgreSQLConfig holds PostgreSQL-specific configuration.
// URL arrives through DATABASE_URL in the shipped deployment.
type PostgreSQLConfig struct {
	URL      string
	MaxConns int
}

// MongoDBConfig holds MongoDB-specific configuration.
type MongoDBConfig struct {
	URL      string
	Database string
}

// DefaultConfig returns the sqlite-backed default used when no DATABASE_URL
// is configured.
func DefaultConfig() Config {
	return Config{
		Type:       TypeSQLite,
		SQLite:     SQLiteConfig{Path: "data/cargohold.db"},
		PostgreSQL: PostgreSQLConfig{MaxConns: 10},
		MongoDB:    MongoDBConfig{Database: "cargohold"},
	}
}

// Conn is an open connection to the configured backend. At most one of the
// typed handles is non-nil. Safe for concurrent use; feature stores must not
// close the handles themselves.
type Conn struct {
	typ         string
	sqlite      *sql.DB
	pg          *pgxpool.Pool
	mongoClient *mongo.Client
	mongoDB     *mongo.Database
}

// New opens a connection for the configured backend and verifies it with a
// ping before returning.
func New(ctx context.Context, cfg Config) (*Conn, error) {
	switch cfg.Type {
	case TypeSQLite:
		return openSQLite(cfg.SQLite)
	case TypePostgreSQL:
		return openPostgreSQL(ctx, cfg.PostgreSQL)
	case TypeMongoDB:
		return openMongoDB(ctx, cfg.MongoDB)
	default:
		return nil, fmt.Errorf("unknown storage type: %q (valid: sqlite, postgresql, mongodb)", cfg.Type)
	}
}

// Type returns the active backend name.
func (c *Conn) Type() string {
	return c.typ
}

// SQLite returns the sqlite handle, or nil when another backend is active.
func (c *Conn) SQLite() *sql.DB {
	return c.sqlite
}

// Postgres returns the pgx pool, or nil when another backend is active.
func (c *Conn) Postgres() *pgxpool.Pool {
	return c.pg
}

// Mongo returns the mongo database, or nil when another backend is active.
func (c *Conn) Mongo() *mongo.Database {
	return c.mongoDB
}

// Close releases the active connection.
func (c *Conn) Close() error {
	var errs []error
	if c.sqlite != nil {
		errs = append(errs, c.sqlite.Close())
	}
	if c.pg != nil {
		c.pg.Close()
	}
	if c.mongoClient != nil {
		errs = append(errs, c.mongoClient.Disconnect(context.Background()))
	}
	return errors.Join(errs...)
}
