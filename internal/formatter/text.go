package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/fkschema/internal/fk"
	"github.com/tordrt/fkschema/internal/schema"
)

// TextFormatter formats schema as compact text
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Format writes the schema in compact text format
func (f *TextFormatter) Format(s *schema.Schema) error {
	registry := s.Registry()
	for i, table := range s.Tables {
		if i > 0 {
			_, _ = fmt.Fprintln(f.writer) // Blank line between tables
		}

		if err := f.formatTable(table, registry); err != nil {
			return err
		}
	}
	return nil
}

func (f *TextFormatter) formatTable(table schema.Table, registry *fk.Registry) error {
	// Table header with primary key
	pkStr := ""
	if len(table.PrimaryKey) > 0 {
		pkStr = fmt.Sprintf(" (PK: %s)", strings.Join(table.PrimaryKey, ", "))
	}
	if _, err := fmt.Fprintf(f.writer, "TABLE %s%s\n", table.Name, pkStr); err != nil {
		return err
	}

	// Columns
	for _, col := range table.Columns {
		_, _ = fmt.Fprintf(f.writer, "  %s\n", f.formatColumn(col))
	}

	// Foreign keys
	if len(table.ForeignKeys) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  FOREIGN KEYS:")
		for _, c := range table.ForeignKeys {
			_, _ = fmt.Fprintf(f.writer, "    %s\n", describeForeignKey(c))
		}
	}

	if reverse := registry.ReverseForeignKeys(table.Name); len(reverse) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  REFERENCED BY:")
		for _, c := range reverse {
			_, _ = fmt.Fprintf(f.writer, "    ← %s(%s)\n", c.FromTable, strings.Join(c.Columns, ", "))
		}
	}

	// Indexes
	if len(table.Indexes) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  INDEXES:")
		for _, idx := range table.Indexes {
			unique := ""
			if idx.IsUnique {
				unique = " UNIQUE"
			}
			_, _ = fmt.Fprintf(f.writer, "    %s (%s)%s\n", idx.Name, strings.Join(idx.Columns, ", "), unique)
		}
	}

	return nil
}

func (f *TextFormatter) formatColumn(col schema.Column) string {
	parts := []string{col.Name + ":"}

	// Type with enum values if present
	typeStr := col.Type
	if len(col.EnumValues) > 0 {
		typeStr = fmt.Sprintf("%s (%s)", col.Type, strings.Join(col.EnumValues, "|"))
	}
	parts = append(parts, typeStr)

	// Unique
	if col.IsUnique {
		parts = append(parts, "UNIQUE")
	}

	// Nullable
	if !col.Nullable {
		parts = append(parts, "NOT NULL")
	}

	// Default value
	if col.DefaultValue != nil {
		parts = append(parts, fmt.Sprintf("DEFAULT %s", *col.DefaultValue))
	}

	return strings.Join(parts, " ")
}

// describeForeignKey renders a constraint as
// "name (cols) → table(refs) ON DELETE CASCADE".
func describeForeignKey(c *fk.ForeignKey) string {
	var sb strings.Builder
	if c.Name != "" {
		sb.WriteString(c.Name + " ")
	}
	fmt.Fprintf(&sb, "(%s) → %s(%s)", strings.Join(c.Columns, ", "), c.ToTable, strings.Join(c.ReferencedColumns, ", "))
	if c.OnUpdate != fk.ActionNone {
		sb.WriteString(" ON UPDATE " + c.OnUpdate.SQL())
	}
	if c.OnDelete != fk.ActionNone {
		sb.WriteString(" ON DELETE " + c.OnDelete.SQL())
	}
	switch c.Deferrable {
	case fk.DeferrableImmediate:
		sb.WriteString(" DEFERRABLE")
	case fk.InitiallyDeferred:
		sb.WriteString(" DEFERRABLE INITIALLY DEFERRED")
	}
	return sb.String()
}
