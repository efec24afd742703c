package auditlog

import (
	"fmt"

	"cargohold/internal/storage"
)

// NewLogStore creates the operation log store for the active storage backend.
func NewLogStore(conn *storage.Conn, retentionDays int) (LogStore, error) {
	switch conn.Type() {
	case storage.TypeSQLite:
		return NewSQLiteStore(conn.SQLite(), retentionDays)
	case storage.TypePostgreSQL:
		return NewPostgreSQLStore(conn.Postgres(), retentionDays)
	case storage.TypeMongoDB:
		return NewMongoDBStore(conn.Mongo(), retentionDays)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", conn.Type())
	}
}

// NewReader creates the operation log reader for the active storage backend.
func NewReader(conn *storage.Conn) (Reader, error) {
	switch conn.Type() {
	case storage.TypeSQLite:
		return NewSQLiteReader(conn.SQLite())
	case storage.TypePostgreSQL:
		return NewPostgreSQLReader(conn.Postgres())
	case storage.TypeMongoDB:
		return NewMongoDBReader(conn.Mongo())
	default:
		return nil, fmt.Errorf("unknown storage type: %s", conn.Type())
	}
}
