package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3" (cgo)
	_ "modernc.org/sqlite"          // registers "sqlite" (pure Go)
)

// SQLite driver names
const (
	SQLiteDriverCgo    = "sqlite3"
	SQLiteDriverPureGo = "sqlite"
)

// SQLiteClient manages the connection to SQLite
type SQLiteClient struct {
	db *sql.DB
}

// NewSQLiteClient creates a new SQLite client. driver is SQLiteDriverCgo
// (the default when empty) or SQLiteDriverPureGo.
func NewSQLiteClient(ctx context.Context, path, driver string) (*SQLiteClient, error) {
	switch driver {
	case "":
		driver = SQLiteDriverCgo
	case SQLiteDriverCgo, SQLiteDriverPureGo:
	default:
		return nil, fmt.Errorf("unknown SQLite driver: %s (must be %s or %s)", driver, SQLiteDriverCgo, SQLiteDriverPureGo)
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteClient{db: db}, nil
}

// Close closes the database connection
func (c *SQLiteClient) Close() error {
	return c.db.Close()
}

// GetDB returns the underlying database connection
func (c *SQLiteClient) GetDB() *sql.DB {
	return c.db
}

// ExecContext executes a statement on the connection
func (c *SQLiteClient) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}
