package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/tordrt/fkschema/internal/fk"
)

// ForeignKeyMode controls whether a column gets a constraint.
type ForeignKeyMode int

const (
	// ForeignKeyAuto adds one when References is set, or when the
	// config has AutoCreate and the column looks like a reference.
	ForeignKeyAuto ForeignKeyMode = iota
	// ForeignKeyOn always adds one, deriving the table from the name.
	ForeignKeyOn
	// ForeignKeyOff never adds one.
	ForeignKeyOff
)

// ColumnOptions describes one column of a new table.
type ColumnOptions struct {
	NotNull bool
	Default string

	// References names the referenced table explicitly.
	References string
	ForeignKey ForeignKeyMode
	// Constraint carries name, actions, deferrable and primary key.
	// Its Columns field is ignored.
	Constraint fk.Options
}

// ColumnDefinition is one column added through TableDefinition.Column.
type ColumnDefinition struct {
	Name    string
	Type    string
	Options ColumnOptions
}

type tableForeignKey struct {
	to   string
	opts fk.Options
}

// TableDefinition collects a table before CreateTable renders it.
type TableDefinition struct {
	Name       string
	PrimaryKey []string
	Columns    []ColumnDefinition

	foreignKeys []tableForeignKey
}

// NewTable starts a table with an "id" primary key column.
func NewTable(name string) *TableDefinition {
	t := &TableDefinition{Name: name, PrimaryKey: []string{fk.DefaultPrimaryKey}}
	t.Columns = append(t.Columns, ColumnDefinition{Name: fk.DefaultPrimaryKey, Type: "integer", Options: ColumnOptions{NotNull: true}})
	return t
}

// Column adds a column.
func (t *TableDefinition) Column(name, typ string, opts ColumnOptions) *TableDefinition {
	t.Columns = append(t.Columns, ColumnDefinition{Name: name, Type: typ, Options: opts})
	return t
}

// References adds "<name>_id" referencing the table derived from name.
func (t *TableDefinition) References(name string, opts ColumnOptions) *TableDefinition {
	if opts.ForeignKey == ForeignKeyAuto && opts.References == "" {
		opts.ForeignKey = ForeignKeyOn
	}
	return t.Column(name+"_id", "integer", opts)
}

// ForeignKey adds a table-level constraint, for composite keys.
func (t *TableDefinition) ForeignKey(to string, opts fk.Options) *TableDefinition {
	t.foreignKeys = append(t.foreignKeys, tableForeignKey{to: to, opts: opts})
	return t
}

// ReferencedTable returns the table a column named like "<x>_id"
// references: the table itself for parent_id, otherwise the plural of x.
func ReferencedTable(table, column string) string {
	base := strings.TrimSuffix(column, "_id")
	if base == "parent" {
		return table
	}
	return inflect.Pluralize(base)
}

// ForeignKeyColumn returns the column assumed to reference table: the
// singular of the table name with an "_id" suffix.
func ForeignKeyColumn(table string) string {
	return inflect.Singularize(table) + "_id"
}

// columnTarget returns the referenced table for a column, or "".
func columnTarget(table string, col ColumnDefinition, cfg Config) string {
	opts := col.Options
	switch opts.ForeignKey {
	case ForeignKeyOff:
		return ""
	case ForeignKeyOn:
		if opts.References != "" {
			return opts.References
		}
		return ReferencedTable(table, col.Name)
	}
	if opts.References != "" {
		return opts.References
	}
	if cfg.AutoCreate && strings.HasSuffix(col.Name, "_id") && col.Name != "_id" {
		return ReferencedTable(table, col.Name)
	}
	return ""
}

// columnForeignKey builds the constraint the column shortcuts ask for,
// or returns nil when there is none.
func (m *Migrator) columnForeignKey(table string, col ColumnDefinition, cfg Config) (*fk.ForeignKey, error) {
	to := columnTarget(table, col, cfg)
	if to == "" {
		return nil, nil
	}
	opts := col.Options.Constraint
	opts.Columns = []string{col.Name}
	return m.build(table, to, opts)
}

// CreateTable creates def with its constraints declared inline, which is
// the only form every engine accepts. Nothing stays registered when the
// statement fails.
func (m *Migrator) CreateTable(ctx context.Context, def *TableDefinition) ([]*fk.ForeignKey, error) {
	cfg := m.configFor(def.Name)

	var fks []*fk.ForeignKey
	for _, col := range def.Columns {
		c, err := m.columnForeignKey(def.Name, col, cfg)
		if err != nil {
			return nil, err
		}
		if c != nil {
			fks = append(fks, c)
		}
	}
	for _, tf := range def.foreignKeys {
		c, err := m.build(def.Name, tf.to, tf.opts)
		if err != nil {
			return nil, err
		}
		fks = append(fks, c)
	}

	for i, c := range fks {
		if err := m.registry.Add(c); err != nil {
			m.unregister(fks[:i])
			return nil, err
		}
	}

	if len(fks) > 0 {
		if stmt := m.dialect.EnableStatement(); stmt != "" {
			if err := m.run(ctx, stmt); err != nil {
				m.unregister(fks)
				return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
			}
		}
	}
	if err := m.run(ctx, m.createTableSQL(def, fks)); err != nil {
		m.unregister(fks)
		return nil, fmt.Errorf("failed to create table %s: %w", def.Name, err)
	}
	return fks, nil
}

func (m *Migrator) unregister(fks []*fk.ForeignKey) {
	for _, c := range fks {
		m.registry.Remove(c)
	}
}

func (m *Migrator) createTableSQL(def *TableDefinition, fks []*fk.ForeignKey) string {
	var lines []string
	for _, col := range def.Columns {
		lines = append(lines, m.columnSQL(col))
	}
	if len(def.PrimaryKey) > 0 {
		quoted := make([]string, len(def.PrimaryKey))
		for i, c := range def.PrimaryKey {
			quoted[i] = m.dialect.Quote(c)
		}
		lines = append(lines, "PRIMARY KEY ("+strings.Join(quoted, ", ")+")")
	}
	for _, c := range fks {
		lines = append(lines, c.SQL(m.dialect))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", m.dialect.Quote(def.Name), strings.Join(lines, ",\n  "))
}

func (m *Migrator) columnSQL(col ColumnDefinition) string {
	line := m.dialect.Quote(col.Name) + " " + col.Type
	if col.Options.NotNull {
		line += " NOT NULL"
	}
	if col.Options.Default != "" {
		line += " DEFAULT " + col.Options.Default
	}
	return line
}
