package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/tordrt/fkschema/internal/fk"
	"github.com/tordrt/fkschema/internal/schema"
)

// MySQLExtractor handles schema extraction from MySQL
type MySQLExtractor struct {
	client     *MySQLClient
	schemaName string
}

// NewMySQLExtractor creates a new MySQL schema extractor
func NewMySQLExtractor(client *MySQLClient, schemaName string) *MySQLExtractor {
	return &MySQLExtractor{
		client:     client,
		schemaName: schemaName,
	}
}

// ExtractSchema extracts the complete schema for specified tables
// If tables is empty, extracts all tables in the schema
func (e *MySQLExtractor) ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
	return extract(ctx, e, fk.MySQL, tables)
}

// scanAll runs query with the schema name and, when set, the table name,
// calling scan for every row.
func (e *MySQLExtractor) scanAll(ctx context.Context, query, table string, scan func(*sql.Rows) error) error {
	args := []any{e.schemaName}
	if table != "" {
		args = append(args, table)
	}
	rows, err := e.client.GetDB().QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (e *MySQLExtractor) tableNames(ctx context.Context) ([]string, error) {
	var names []string
	err := e.scanAll(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`, "", func(rows *sql.Rows) error {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		names = append(names, name)
		return nil
	})
	return names, err
}

func (e *MySQLExtractor) columns(ctx context.Context, table string) ([]schema.Column, error) {
	var columns []schema.Column
	err := e.scanAll(ctx, `
		SELECT column_name, column_type, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position
	`, table, func(rows *sql.Rows) error {
		var col schema.Column
		var nullable string
		var def sql.NullString
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &def); err != nil {
			return err
		}
		col.Nullable = nullable == "YES"
		if def.Valid {
			col.DefaultValue = &def.String
		}
		col.EnumValues = mysqlEnumValues(col.Type)
		columns = append(columns, col)
		return nil
	})
	return columns, err
}

// mysqlEnumValues returns the labels of an "enum('a','b')" column type.
func mysqlEnumValues(columnType string) []string {
	inner, ok := strings.CutPrefix(columnType, "enum(")
	if !ok {
		return nil
	}
	inner = strings.TrimSuffix(inner, ")")
	inner = strings.TrimSuffix(strings.TrimPrefix(inner, "'"), "'")

	values := strings.Split(inner, "','")
	for i, v := range values {
		values[i] = strings.ReplaceAll(v, "''", "'")
	}
	return values
}

// keys reads information_schema.statistics, where the primary key is the
// index named PRIMARY. Functional index parts have no column and are
// skipped.
func (e *MySQLExtractor) keys(ctx context.Context, table string) ([]keyRow, error) {
	var keys []keyRow
	err := e.scanAll(ctx, `
		SELECT index_name, non_unique, column_name
		FROM information_schema.statistics
		WHERE table_schema = ? AND table_name = ?
		ORDER BY index_name = 'PRIMARY' DESC, index_name, seq_in_index
	`, table, func(rows *sql.Rows) error {
		var r keyRow
		var nonUnique int
		var column sql.NullString
		if err := rows.Scan(&r.index, &nonUnique, &column); err != nil {
			return err
		}
		if !column.Valid {
			return nil
		}
		r.column = column.String
		r.unique = nonUnique == 0
		r.primary = r.index == "PRIMARY"
		keys = append(keys, r)
		return nil
	})
	return keys, err
}

// foreignKeys joins the column pairs with their referential actions.
// MySQL has no deferrable constraints.
func (e *MySQLExtractor) foreignKeys(ctx context.Context, table string) ([]fkRow, error) {
	var fkRows []fkRow
	err := e.scanAll(ctx, `
		SELECT
			kcu.constraint_name,
			kcu.referenced_table_name,
			kcu.column_name,
			kcu.referenced_column_name,
			rc.update_rule,
			rc.delete_rule
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.referential_constraints rc
			ON rc.constraint_schema = kcu.table_schema
			AND rc.table_name = kcu.table_name
			AND rc.constraint_name = kcu.constraint_name
		WHERE kcu.table_schema = ?
			AND kcu.table_name = ?
			AND kcu.referenced_table_name IS NOT NULL
		ORDER BY kcu.constraint_name, kcu.ordinal_position
	`, table, func(rows *sql.Rows) error {
		var r fkRow
		var updateRule, deleteRule string
		if err := rows.Scan(&r.name, &r.toTable, &r.column, &r.refColumn, &updateRule, &deleteRule); err != nil {
			return err
		}
		r.key = r.name
		r.onUpdate = fk.ActionFromSQL(updateRule)
		r.onDelete = fk.ActionFromSQL(deleteRule)
		fkRows = append(fkRows, r)
		return nil
	})
	return fkRows, err
}
