package simulation

import (
	"fmt"

	"cargohold/internal/storage"
)

// NewStore creates a simulation store on the shared storage connection.
func NewStore(conn *storage.Conn) (Store, error) {
	switch conn.Type() {
	case storage.TypeSQLite:
		return NewSQLiteStore(conn.SQLite())
	case storage.TypePostgreSQL:
		return NewPostgreSQLStore(conn.Postgres())
	default:
		return nil, fmt.Errorf("unsupported simulation storage type: %s", conn.Type())
	}
}
