// Package fk models foreign key constraints: construction and validation,
// SQL and dump rendering, matching, and the per-table registry.
package fk

import (
	"fmt"
	"hash/crc32"
	"slices"
	"strings"
)

// DefaultPrimaryKey is the referenced column assumed when none is given.
const DefaultPrimaryKey = "id"

// Options are the fully resolved settings for a new constraint. Default
// actions from configuration are applied by the caller.
type Options struct {
	Columns    []string
	PrimaryKey []string
	Name       string
	OnUpdate   Action
	OnDelete   Action
	Deferrable Deferrable
}

// ForeignKey is one constraint, an edge from FromTable to ToTable.
type ForeignKey struct {
	FromTable         string
	ToTable           string
	Columns           []string
	ReferencedColumns []string
	Name              string
	OnUpdate          Action
	OnDelete          Action
	Deferrable        Deferrable
}

// New validates a constraint request for dialect d. Nothing is
// registered or executed; a failed call has no side effects.
func New(d Dialect, from, to string, opts Options) (*ForeignKey, error) {
	if from == "" {
		return nil, &ValidationError{Table: from, Field: "from_table", Message: "table name is required"}
	}
	if to == "" {
		return nil, &ValidationError{Table: from, Field: "to_table", Message: "referenced table is required"}
	}

	columns, err := normalizeColumns(from, "column", opts.Columns)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, &ValidationError{Table: from, Field: "column", Message: "at least one column is required"}
	}

	refs := opts.PrimaryKey
	if len(refs) == 0 {
		refs = []string{DefaultPrimaryKey}
	}
	refs, err = normalizeColumns(from, "primary_key", refs)
	if err != nil {
		return nil, err
	}
	if len(refs) != len(columns) {
		return nil, &ValidationError{
			Table:   from,
			Field:   "primary_key",
			Message: fmt.Sprintf("%d columns reference %d columns", len(columns), len(refs)),
		}
	}

	if !opts.OnUpdate.Valid() {
		return nil, &ValidationError{Table: from, Field: "on_update", Message: fmt.Sprintf("invalid :on_update action: %q", opts.OnUpdate)}
	}
	if !opts.OnDelete.Valid() {
		return nil, &ValidationError{Table: from, Field: "on_delete", Message: fmt.Sprintf("invalid :on_delete action: %q", opts.OnDelete)}
	}

	if d != nil {
		if !d.SupportsSetDefault() {
			if opts.OnUpdate == ActionSetDefault {
				return nil, &UnsupportedError{Dialect: d.Name(), Feature: "ON UPDATE SET DEFAULT"}
			}
			if opts.OnDelete == ActionSetDefault {
				return nil, &UnsupportedError{Dialect: d.Name(), Feature: "ON DELETE SET DEFAULT"}
			}
		}
		if opts.Deferrable != NotDeferrable && !d.SupportsDeferrable() {
			return nil, &UnsupportedError{Dialect: d.Name(), Feature: "DEFERRABLE constraints"}
		}
	}

	return &ForeignKey{
		FromTable:         from,
		ToTable:           to,
		Columns:           columns,
		ReferencedColumns: refs,
		Name:              opts.Name,
		OnUpdate:          opts.OnUpdate,
		OnDelete:          opts.OnDelete,
		Deferrable:        opts.Deferrable,
	}, nil
}

func normalizeColumns(table, field string, cols []string) ([]string, error) {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		c = strings.TrimSpace(c)
		if c == "" {
			return nil, &ValidationError{Table: table, Field: field, Message: "empty column name"}
		}
		if slices.Contains(out, c) {
			return nil, &ValidationError{Table: table, Field: field, Message: fmt.Sprintf("duplicate column %q", c)}
		}
		out = append(out, c)
	}
	return out, nil
}

// Column returns the first source column.
func (f *ForeignKey) Column() string {
	return f.Columns[0]
}

// SelfReferential reports whether the constraint references its own table.
func (f *ForeignKey) SelfReferential() bool {
	return f.FromTable == f.ToTable
}

// CustomPrimaryKey reports whether the referenced columns differ from
// the engine default.
func (f *ForeignKey) CustomPrimaryKey() bool {
	return !(len(f.ReferencedColumns) == 1 && f.ReferencedColumns[0] == DefaultPrimaryKey)
}

// SQL renders the constraint clause for d, as used inside CREATE TABLE
// or after ALTER TABLE ... ADD.
func (f *ForeignKey) SQL(d Dialect) string {
	return f.constraintPrefix(d) +
		fmt.Sprintf("FOREIGN KEY (%s) ", quoteAll(d, f.Columns)) +
		f.referencesSQL(d)
}

// ColumnSQL renders the column constraint form, appended to a column
// definition in ADD COLUMN. It only covers single-column constraints.
func (f *ForeignKey) ColumnSQL(d Dialect) string {
	return f.constraintPrefix(d) + f.referencesSQL(d)
}

func (f *ForeignKey) constraintPrefix(d Dialect) string {
	if f.Name == "" {
		return ""
	}
	return "CONSTRAINT " + d.Quote(f.Name) + " "
}

func (f *ForeignKey) referencesSQL(d Dialect) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "REFERENCES %s (%s)", d.Quote(f.ToTable), quoteAll(d, f.ReferencedColumns))
	if f.OnUpdate != ActionNone {
		sb.WriteString(" ON UPDATE ")
		sb.WriteString(f.OnUpdate.SQL())
	}
	if f.OnDelete != ActionNone {
		sb.WriteString(" ON DELETE ")
		sb.WriteString(f.OnDelete.SQL())
	}
	if f.Deferrable != NotDeferrable {
		sb.WriteString(" DEFERRABLE")
	}
	if f.Deferrable == InitiallyDeferred {
		sb.WriteString(" INITIALLY DEFERRED")
	}
	return sb.String()
}

func quoteAll(d Dialect, idents []string) string {
	quoted := make([]string, len(idents))
	for i, id := range idents {
		quoted[i] = d.Quote(id)
	}
	return strings.Join(quoted, ", ")
}

// DumpOptions returns the non-default options in dump order.
func (f *ForeignKey) DumpOptions() []Option {
	var opts []Option
	if f.Name != "" {
		opts = append(opts, Option{"name", f.Name})
	}
	if f.OnUpdate != ActionNone {
		opts = append(opts, Option{"on_update", f.OnUpdate})
	}
	if f.OnDelete != ActionNone {
		opts = append(opts, Option{"on_delete", f.OnDelete})
	}
	if f.Deferrable != NotDeferrable {
		opts = append(opts, Option{"deferrable", f.Deferrable})
	}
	if f.CustomPrimaryKey() {
		opts = append(opts, Option{"primary_key", f.ReferencedColumns})
	}
	return opts
}

// InlineOptions returns the options attached to a column definition.
// Composite constraints carry their full column list.
func (f *ForeignKey) InlineOptions() []Option {
	opts := []Option{{"references", f.ToTable}}
	if len(f.Columns) > 1 {
		opts = append(opts, Option{"column", f.Columns})
	}
	return append(opts, f.DumpOptions()...)
}

// DumpStatement renders the re-loadable standalone form:
//
//	add_foreign_key "comments", "posts", column: "post_id", on_delete: :cascade
func (f *ForeignKey) DumpStatement() string {
	opts := append([]Option{{"column", f.Columns}}, f.DumpOptions()...)
	return fmt.Sprintf("add_foreign_key %s, %s, %s",
		FormatValue(f.FromTable), FormatValue(f.ToTable), FormatOptions(opts))
}

// Spec is a partial constraint description used to find an existing
// constraint. Empty fields match anything, except FromTable.
type Spec struct {
	FromTable string
	ToTable   string
	Columns   []string
	Name      string
}

func (s Spec) String() string {
	var parts []string
	if s.ToTable != "" {
		parts = append(parts, fmt.Sprintf("to_table: %q", s.ToTable))
	}
	if len(s.Columns) > 0 {
		parts = append(parts, "column: "+FormatValue(s.Columns))
	}
	if s.Name != "" {
		parts = append(parts, fmt.Sprintf("name: %q", s.Name))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Match reports whether f satisfies spec.
func (f *ForeignKey) Match(spec Spec) bool {
	if f.FromTable != spec.FromTable {
		return false
	}
	if spec.ToTable != "" && spec.ToTable != f.ToTable {
		return false
	}
	if len(spec.Columns) > 0 && strings.Join(spec.Columns, ",") != strings.Join(f.Columns, ",") {
		return false
	}
	if spec.Name != "" && spec.Name != f.Name {
		return false
	}
	return true
}

// DefaultName returns fk_<table>_<columns>, shortened to fit the
// dialect's identifier limit.
func DefaultName(d Dialect, table string, columns []string) string {
	name := "fk_" + table + "_" + strings.Join(columns, "_")
	limit := 0
	if d != nil {
		limit = d.MaxIdentifierLength()
	}
	if limit == 0 || len(name) <= limit {
		return name
	}
	suffix := fmt.Sprintf("_%08x", crc32.ChecksumIEEE([]byte(name)))
	return name[:limit-len(suffix)] + suffix
}
