// Package db reads live database catalogs into schema snapshots and
// executes constraint statements against them.
package db

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/tordrt/fkschema/internal/fk"
	"github.com/tordrt/fkschema/internal/schema"
)

// SchemaExtractor is implemented by every engine extractor
type SchemaExtractor interface {
	ExtractSchema(ctx context.Context, tables []string) (*schema.Schema, error)
}

var (
	_ SchemaExtractor = (*Extractor)(nil)
	_ SchemaExtractor = (*MySQLExtractor)(nil)
	_ SchemaExtractor = (*SQLiteExtractor)(nil)
)

// catalog is the engine-specific half of an extractor: one query per kind
// of row. extract folds the rows the same way for every engine.
type catalog interface {
	tableNames(ctx context.Context) ([]string, error)
	columns(ctx context.Context, table string) ([]schema.Column, error)
	keys(ctx context.Context, table string) ([]keyRow, error)
	foreignKeys(ctx context.Context, table string) ([]fkRow, error)
}

var (
	_ catalog = (*Extractor)(nil)
	_ catalog = (*MySQLExtractor)(nil)
	_ catalog = (*SQLiteExtractor)(nil)
)

// extract reads the named tables, or every table when none are named.
func extract(ctx context.Context, c catalog, d fk.Dialect, tables []string) (*schema.Schema, error) {
	if len(tables) == 0 {
		names, err := c.tableNames(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get table names: %w", err)
		}
		tables = names
	}

	s := &schema.Schema{Dialect: d.Name()}
	for _, name := range tables {
		table, err := extractTable(ctx, c, name)
		if err != nil {
			return nil, fmt.Errorf("failed to extract table %s: %w", name, err)
		}
		s.Tables = append(s.Tables, *table)
	}
	return s, nil
}

func extractTable(ctx context.Context, c catalog, name string) (*schema.Table, error) {
	columns, err := c.columns(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	keys, err := c.keys(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to extract keys: %w", err)
	}
	rows, err := c.foreignKeys(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to extract foreign keys: %w", err)
	}

	pk, indexes, unique := foldKeys(keys)
	for i := range columns {
		columns[i].IsUnique = unique[columns[i].Name]
	}
	fks, err := collectForeignKeys(name, rows)
	if err != nil {
		return nil, err
	}

	return &schema.Table{
		Name:        name,
		Columns:     columns,
		ForeignKeys: fks,
		Indexes:     indexes,
		PrimaryKey:  pk,
	}, nil
}

// keyRow is one column of a primary key or an index, in key order.
type keyRow struct {
	index   string
	column  string
	unique  bool
	primary bool
	// hidden indexes only back a constraint; they mark uniqueness but are
	// not listed.
	hidden bool
}

// foldKeys returns the primary key, the indexes sorted by name, and the
// columns covered alone by a unique index other than the primary key.
func foldKeys(rows []keyRow) (pk []string, indexes []schema.Index, unique map[string]bool) {
	type group struct {
		schema.Index
		hidden bool
	}
	var groups []*group
	byName := make(map[string]*group)

	for _, r := range rows {
		if r.primary {
			pk = append(pk, r.column)
			continue
		}
		g, ok := byName[r.index]
		if !ok {
			g = &group{Index: schema.Index{Name: r.index, IsUnique: r.unique}, hidden: r.hidden}
			byName[r.index] = g
			groups = append(groups, g)
		}
		g.Columns = append(g.Columns, r.column)
	}

	unique = make(map[string]bool)
	for _, g := range groups {
		if g.IsUnique && len(g.Columns) == 1 && !slices.Contains(pk, g.Columns[0]) {
			unique[g.Columns[0]] = true
		}
		if !g.hidden {
			indexes = append(indexes, g.Index)
		}
	}
	slices.SortFunc(indexes, func(a, b schema.Index) int { return strings.Compare(a.Name, b.Name) })
	return pk, indexes, unique
}

// fkRow is one column pair of a foreign key as read from a catalog.
// Rows of the same constraint arrive consecutively, ordered by position.
type fkRow struct {
	key        string // groups rows of one constraint
	name       string
	toTable    string
	column     string
	refColumn  string
	onUpdate   fk.Action
	onDelete   fk.Action
	deferrable fk.Deferrable
}

// collectForeignKeys folds catalog rows into constraints, keeping the
// catalog order. Actions reported as NO ACTION are left unset.
func collectForeignKeys(table string, rows []fkRow) ([]*fk.ForeignKey, error) {
	var (
		out   []*fk.ForeignKey
		opts  = make(map[string]*fk.Options)
		to    = make(map[string]string)
		order []string
	)
	for _, r := range rows {
		o, ok := opts[r.key]
		if !ok {
			o = &fk.Options{
				Name:       r.name,
				OnUpdate:   r.onUpdate,
				OnDelete:   r.onDelete,
				Deferrable: r.deferrable,
			}
			opts[r.key] = o
			to[r.key] = r.toTable
			order = append(order, r.key)
		}
		o.Columns = append(o.Columns, r.column)
		o.PrimaryKey = append(o.PrimaryKey, r.refColumn)
	}

	// The catalog already enforces what the engine supports, so no dialect
	// check here.
	for _, key := range order {
		c, err := fk.New(nil, table, to[key], *opts[key])
		if err != nil {
			return nil, fmt.Errorf("failed to read foreign key %s: %w", key, err)
		}
		out = append(out, c)
	}
	return out, nil
}
