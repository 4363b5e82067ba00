package fk

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Dialect describes the engine-specific parts of constraint handling.
type Dialect interface {
	// Name returns the engine name, e.g. "postgres".
	Name() string
	// Quote quotes an identifier.
	Quote(ident string) string
	SupportsSetDefault() bool
	SupportsDeferrable() bool
	// SupportsAlterForeignKeys reports whether constraints can be added or
	// dropped after the table exists.
	SupportsAlterForeignKeys() bool
	// EnableStatement returns the statement that turns on constraint
	// enforcement, or "" when the engine enforces them by default.
	EnableStatement() string
	DropForeignKeySQL(table, name string, ifExists bool) string
	// AlterColumnTypeSQL returns "" when the engine cannot change a
	// column in place.
	AlterColumnTypeSQL(table, column, typ string) string
	// MaxIdentifierLength returns 0 when there is no limit.
	MaxIdentifierLength() int
}

// Dialects.
var (
	Postgres Dialect = postgresDialect{}
	MySQL    Dialect = mysqlDialect{}
	SQLite   Dialect = sqliteDialect{}
)

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", name)
	}
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) Quote(ident string) string {
	return pgx.Identifier{ident}.Sanitize()
}

func (postgresDialect) SupportsSetDefault() bool       { return true }
func (postgresDialect) SupportsDeferrable() bool       { return true }
func (postgresDialect) SupportsAlterForeignKeys() bool { return true }
func (postgresDialect) EnableStatement() string        { return "" }
func (postgresDialect) MaxIdentifierLength() int       { return 63 }

func (d postgresDialect) DropForeignKeySQL(table, name string, ifExists bool) string {
	if ifExists {
		return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s", d.Quote(table), d.Quote(name))
	}
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", d.Quote(table), d.Quote(name))
}

func (d postgresDialect) AlterColumnTypeSQL(table, column, typ string) string {
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s", d.Quote(table), d.Quote(column), typ)
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string { return "mysql" }

func (mysqlDialect) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (mysqlDialect) SupportsSetDefault() bool       { return false }
func (mysqlDialect) SupportsDeferrable() bool       { return false }
func (mysqlDialect) SupportsAlterForeignKeys() bool { return true }
func (mysqlDialect) EnableStatement() string        { return "" }
func (mysqlDialect) MaxIdentifierLength() int       { return 64 }

// MySQL has no IF EXISTS form for dropping a foreign key; callers resolve
// existence through the registry first.
func (d mysqlDialect) DropForeignKeySQL(table, name string, _ bool) string {
	return fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s", d.Quote(table), d.Quote(name))
}

// MODIFY replaces the whole definition, so NOT NULL and DEFAULT are reset.
func (d mysqlDialect) AlterColumnTypeSQL(table, column, typ string) string {
	return fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s %s", d.Quote(table), d.Quote(column), typ)
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (sqliteDialect) SupportsSetDefault() bool       { return true }
func (sqliteDialect) SupportsDeferrable() bool       { return true }
func (sqliteDialect) SupportsAlterForeignKeys() bool { return false }
func (sqliteDialect) EnableStatement() string        { return "PRAGMA FOREIGN_KEYS = ON" }
func (sqliteDialect) MaxIdentifierLength() int       { return 0 }

func (sqliteDialect) DropForeignKeySQL(string, string, bool) string {
	return ""
}

func (sqliteDialect) AlterColumnTypeSQL(string, string, string) string {
	return ""
}
