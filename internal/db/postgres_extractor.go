package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/tordrt/fkschema/internal/fk"
	"github.com/tordrt/fkschema/internal/schema"
)

// Extractor handles schema extraction from PostgreSQL
type Extractor struct {
	client *PostgresClient
	schema string
}

// NewExtractor creates a new schema extractor
func NewExtractor(client *PostgresClient, schemaName string) *Extractor {
	return &Extractor{
		client: client,
		schema: schemaName,
	}
}

// ExtractSchema extracts the complete schema for specified tables
// If tables is empty, extracts all tables in the schema
func (e *Extractor) ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
	return extract(ctx, e, fk.Postgres, tables)
}

func (e *Extractor) query(ctx context.Context, sql, table string) (pgx.Rows, error) {
	if table == "" {
		return e.client.GetConnection().Query(ctx, sql, e.schema)
	}
	return e.client.GetConnection().Query(ctx, sql, e.schema, table)
}

// Partitions are reached through their parent table.
func (e *Extractor) tableNames(ctx context.Context) ([]string, error) {
	rows, err := e.query(ctx, `
		SELECT c.relname
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1
			AND c.relkind IN ('r', 'p')
			AND NOT c.relispartition
		ORDER BY c.relname
	`, "")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// columns reads types as format_type renders them, which is also the
// spelling CREATE TABLE accepts. Enum labels come along in the same row.
func (e *Extractor) columns(ctx context.Context, table string) ([]schema.Column, error) {
	rows, err := e.query(ctx, `
		SELECT
			a.attname,
			format_type(a.atttypid, a.atttypmod),
			NOT a.attnotnull,
			pg_get_expr(d.adbin, d.adrelid),
			COALESCE((
				SELECT array_agg(en.enumlabel ORDER BY en.enumsortorder)
				FROM pg_enum en
				WHERE en.enumtypid = a.atttypid
			), '{}')
		FROM pg_attribute a
		JOIN pg_class t ON t.oid = a.attrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		LEFT JOIN pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
		WHERE n.nspname = $1
			AND t.relname = $2
			AND a.attnum > 0
			AND NOT a.attisdropped
		ORDER BY a.attnum
	`, table)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (schema.Column, error) {
		var col schema.Column
		var enum []string
		if err := row.Scan(&col.Name, &col.Type, &col.Nullable, &col.DefaultValue, &enum); err != nil {
			return col, err
		}
		if len(enum) > 0 {
			col.EnumValues = enum
		}
		return col, nil
	})
}

// keys reads the primary key and every index over plain columns.
// Expression index parts have attnum 0 and drop out of the join.
func (e *Extractor) keys(ctx context.Context, table string) ([]keyRow, error) {
	rows, err := e.query(ctx, `
		SELECT i.relname, ix.indisunique, ix.indisprimary, a.attname
		FROM pg_index ix
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		CROSS JOIN LATERAL unnest(ix.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
		WHERE n.nspname = $1
			AND t.relname = $2
		ORDER BY ix.indisprimary DESC, i.relname, k.ord
	`, table)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (keyRow, error) {
		var r keyRow
		err := row.Scan(&r.index, &r.unique, &r.primary, &r.column)
		return r, err
	})
}

// pgForeignKeyRow is one column pair as the pg_constraint query returns it.
type pgForeignKeyRow struct {
	name, toTable, column, refColumn string
	onUpdate, onDelete               string // confupdtype / confdeltype codes
	deferrable, deferred             bool
}

// postgresActions maps pg_constraint action codes
var postgresActions = map[string]string{
	"a": "NO ACTION",
	"r": "RESTRICT",
	"c": "CASCADE",
	"n": "SET NULL",
	"d": "SET DEFAULT",
}

func (r pgForeignKeyRow) fkRow() fkRow {
	row := fkRow{
		key:       r.name,
		name:      r.name,
		toTable:   r.toTable,
		column:    r.column,
		refColumn: r.refColumn,
		onUpdate:  fk.ActionFromSQL(postgresActions[r.onUpdate]),
		onDelete:  fk.ActionFromSQL(postgresActions[r.onDelete]),
	}
	switch {
	case r.deferred:
		row.deferrable = fk.InitiallyDeferred
	case r.deferrable:
		row.deferrable = fk.DeferrableImmediate
	}
	return row
}

// foreignKeys reads one row per column pair from pg_constraint so
// multi-column keys keep their pairing.
func (e *Extractor) foreignKeys(ctx context.Context, table string) ([]fkRow, error) {
	rows, err := e.query(ctx, `
		SELECT
			con.conname,
			ft.relname,
			a.attname,
			fa.attname,
			con.confupdtype::text,
			con.confdeltype::text,
			con.condeferrable,
			con.condeferred
		FROM pg_constraint con
		JOIN pg_class t ON t.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_class ft ON ft.oid = con.confrelid
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(attnum, fattnum, ord)
		JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
		JOIN pg_attribute fa ON fa.attrelid = con.confrelid AND fa.attnum = k.fattnum
		WHERE con.contype = 'f'
			AND n.nspname = $1
			AND t.relname = $2
		ORDER BY con.conname, k.ord
	`, table)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (fkRow, error) {
		var r pgForeignKeyRow
		err := row.Scan(&r.name, &r.toTable, &r.column, &r.refColumn, &r.onUpdate, &r.onDelete, &r.deferrable, &r.deferred)
		return r.fkRow(), err
	})
}
