package inventory

import (
	"fmt"

	"cargohold/internal/storage"
)

// NewStore creates an inventory store on the shared storage connection.
// MongoDB is not a supported inventory backend: the inventory schema is
// relational (positions reference items and containers) and the operation
// log is the only document-shaped feature.
func NewStore(conn *storage.Conn) (Store, error) {
	switch conn.Type() {
	case storage.TypeSQLite:
		return NewSQLiteStore(conn.SQLite())
	case storage.TypePostgreSQL:
		return NewPostgreSQLStore(conn.Postgres())
	default:
		return nil, fmt.Errorf("unsupported inventory storage type: %s", conn.Type())
	}
}
