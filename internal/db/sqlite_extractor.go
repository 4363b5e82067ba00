package db

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strconv"

	"github.com/tordrt/fkschema/internal/fk"
	"github.com/tordrt/fkschema/internal/schema"
)

// SQLiteExtractor handles schema extraction from SQLite
type SQLiteExtractor struct {
	client *SQLiteClient
}

// NewSQLiteExtractor creates a new SQLite schema extractor
func NewSQLiteExtractor(client *SQLiteClient) *SQLiteExtractor {
	return &SQLiteExtractor{
		client: client,
	}
}

// ExtractSchema extracts the complete schema for specified tables
// If tables is empty, extracts all tables in the database
func (e *SQLiteExtractor) ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
	return extract(ctx, e, fk.SQLite, tables)
}

// scanAll reads every row of query before returning, so callers can run
// nested PRAGMAs on a single connection.
func (e *SQLiteExtractor) scanAll(ctx context.Context, query string, scan func(*sql.Rows) error) error {
	rows, err := e.client.GetDB().QueryContext(ctx, query)
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

func pragma(name, arg string) string {
	return fmt.Sprintf("PRAGMA %s(%s)", name, fk.SQLite.Quote(arg))
}

func (e *SQLiteExtractor) tableNames(ctx context.Context) ([]string, error) {
	var names []string
	err := e.scanAll(ctx, `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`, func(rows *sql.Rows) error {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		names = append(names, name)
		return nil
	})
	return names, err
}

type sqliteColumn struct {
	schema.Column
	// pk is the 1-based position in the primary key, 0 outside it
	pk int
}

func (e *SQLiteExtractor) tableInfo(ctx context.Context, table string) ([]sqliteColumn, error) {
	var columns []sqliteColumn
	err := e.scanAll(ctx, pragma("table_info", table), func(rows *sql.Rows) error {
		var c sqliteColumn
		var cid, notNull int
		var def sql.NullString
		if err := rows.Scan(&cid, &c.Name, &c.Type, &notNull, &def, &c.pk); err != nil {
			return err
		}
		c.Nullable = notNull == 0
		if def.Valid {
			c.DefaultValue = &def.String
		}
		columns = append(columns, c)
		return nil
	})
	return columns, err
}

func (e *SQLiteExtractor) columns(ctx context.Context, table string) ([]schema.Column, error) {
	info, err := e.tableInfo(ctx, table)
	if err != nil {
		return nil, err
	}
	columns := make([]schema.Column, len(info))
	for i, c := range info {
		columns[i] = c.Column
	}
	return columns, nil
}

func (e *SQLiteExtractor) primaryKey(ctx context.Context, table string) ([]string, error) {
	info, err := e.tableInfo(ctx, table)
	if err != nil {
		return nil, err
	}
	info = slices.DeleteFunc(info, func(c sqliteColumn) bool { return c.pk == 0 })
	slices.SortFunc(info, func(a, b sqliteColumn) int { return cmp.Compare(a.pk, b.pk) })

	pk := make([]string, len(info))
	for i, c := range info {
		pk[i] = c.Name
	}
	return pk, nil
}

// keys reads the primary key from table_info and the indexes from
// index_list. Indexes created for PRIMARY KEY are skipped; those created
// for UNIQUE constraints get generated names and are hidden.
func (e *SQLiteExtractor) keys(ctx context.Context, table string) ([]keyRow, error) {
	pk, err := e.primaryKey(ctx, table)
	if err != nil {
		return nil, err
	}
	var keys []keyRow
	for _, col := range pk {
		keys = append(keys, keyRow{column: col, primary: true})
	}

	type index struct {
		name, origin string
		unique       bool
	}
	var list []index
	err = e.scanAll(ctx, pragma("index_list", table), func(rows *sql.Rows) error {
		var idx index
		var seq, unique, partial int
		if err := rows.Scan(&seq, &idx.name, &unique, &idx.origin, &partial); err != nil {
			return err
		}
		idx.unique = unique == 1
		list = append(list, idx)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, idx := range list {
		if idx.origin == "pk" {
			continue
		}
		err := e.scanAll(ctx, pragma("index_info", idx.name), func(rows *sql.Rows) error {
			var seqno, cid int
			var name sql.NullString
			if err := rows.Scan(&seqno, &cid, &name); err != nil {
				return err
			}
			if name.Valid {
				keys = append(keys, keyRow{index: idx.name, column: name.String, unique: idx.unique, hidden: idx.origin == "u"})
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// foreignKeys groups foreign_key_list rows by id, since SQLite does not
// report constraint names.
func (e *SQLiteExtractor) foreignKeys(ctx context.Context, table string) ([]fkRow, error) {
	var fkRows []fkRow
	var implicit []int
	err := e.scanAll(ctx, pragma("foreign_key_list", table), func(rows *sql.Rows) error {
		var id, seq int
		var r fkRow
		var toCol sql.NullString
		var onUpdate, onDelete, match string
		if err := rows.Scan(&id, &seq, &r.toTable, &r.column, &toCol, &onUpdate, &onDelete, &match); err != nil {
			return err
		}
		r.key = strconv.Itoa(id)
		r.refColumn = toCol.String
		r.onUpdate = fk.ActionFromSQL(onUpdate)
		r.onDelete = fk.ActionFromSQL(onDelete)
		if !toCol.Valid {
			implicit = append(implicit, len(fkRows))
		}
		fkRows = append(fkRows, r)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// REFERENCES t without a column list points at t's primary key
	for _, i := range implicit {
		pk, err := e.primaryKey(ctx, fkRows[i].toTable)
		if err != nil {
			return nil, err
		}
		col := fk.DefaultPrimaryKey
		if seq := positionInGroup(fkRows, i); seq < len(pk) {
			col = pk[seq]
		}
		fkRows[i].refColumn = col
	}
	return fkRows, nil
}

// positionInGroup returns the index of row i among the rows of its constraint
func positionInGroup(rows []fkRow, i int) int {
	n := 0
	for j := i - 1; j >= 0 && rows[j].key == rows[i].key; j-- {
		n++
	}
	return n
}
