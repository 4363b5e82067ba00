package formatter

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/tordrt/fkschema/internal/fk"
	"github.com/tordrt/fkschema/internal/schema"
)

// MarkdownFormatter formats schema as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the schema in markdown format
func (f *MarkdownFormatter) Format(s *schema.Schema) error {
	if _, err := fmt.Fprintln(f.writer, "# Database Schema"); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(f.writer)

	registry := s.Registry()
	for _, table := range s.Tables {
		if err := f.FormatTable(table, registry); err != nil {
			return err
		}
	}
	return nil
}

// FormatTable formats a single table (exported for use by multifile formatter)
func (f *MarkdownFormatter) FormatTable(table schema.Table, registry *fk.Registry) error {
	// Table header
	if _, err := fmt.Fprintf(f.writer, "## %s\n\n", table.Name); err != nil {
		return err
	}

	f.formatColumns(table)
	f.formatForeignKeys(table.ForeignKeys)
	f.formatReferencedBy(registry.ReverseForeignKeys(table.Name))
	f.formatIndexes(table.Indexes)
	return nil
}

func (f *MarkdownFormatter) formatColumns(table schema.Table) {
	_, _ = fmt.Fprintln(f.writer, "### Columns")
	_, _ = fmt.Fprintln(f.writer)

	for _, col := range table.Columns {
		typeStr := col.Type
		if len(col.EnumValues) > 0 {
			typeStr = fmt.Sprintf("%s (%s)", col.Type, strings.Join(col.EnumValues, "|"))
		}

		constraintStr := f.formatConstraints(col, table)
		if constraintStr != "" {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s, %s\n", col.Name, typeStr, constraintStr)
		} else {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s\n", col.Name, typeStr)
		}
	}
	_, _ = fmt.Fprintln(f.writer)
}

func (f *MarkdownFormatter) formatForeignKeys(fks []*fk.ForeignKey) {
	if len(fks) == 0 {
		return
	}
	_, _ = fmt.Fprintln(f.writer, "### Foreign keys")
	_, _ = fmt.Fprintln(f.writer)
	for _, c := range fks {
		_, _ = fmt.Fprintf(f.writer, "- %s\n", describeForeignKey(c))
	}
	_, _ = fmt.Fprintln(f.writer)
}

func (f *MarkdownFormatter) formatReferencedBy(fks []*fk.ForeignKey) {
	if len(fks) == 0 {
		return
	}
	_, _ = fmt.Fprintln(f.writer, "### Referenced by")
	_, _ = fmt.Fprintln(f.writer)
	for _, c := range fks {
		_, _ = fmt.Fprintf(f.writer, "- %s.%s → %s\n",
			c.FromTable,
			strings.Join(c.Columns, ", "),
			strings.Join(c.ReferencedColumns, ", "))
	}
	_, _ = fmt.Fprintln(f.writer)
}

func (f *MarkdownFormatter) formatIndexes(indexes []schema.Index) {
	if len(indexes) == 0 {
		return
	}
	_, _ = fmt.Fprintln(f.writer, "### Idx")
	_, _ = fmt.Fprintln(f.writer)
	for _, idx := range indexes {
		if idx.IsUnique {
			_, _ = fmt.Fprintf(f.writer, "- %s on (%s), unique\n",
				idx.Name,
				strings.Join(idx.Columns, ", "))
		} else {
			_, _ = fmt.Fprintf(f.writer, "- %s on (%s)\n",
				idx.Name,
				strings.Join(idx.Columns, ", "))
		}
	}
	_, _ = fmt.Fprintln(f.writer)
}

func (f *MarkdownFormatter) formatConstraints(col schema.Column, table schema.Table) string {
	var constraints []string

	if slices.Contains(table.PrimaryKey, col.Name) {
		constraints = append(constraints, "PK")
	}

	for _, c := range table.ForeignKeys {
		if slices.Contains(c.Columns, col.Name) {
			constraints = append(constraints, "FK → "+c.ToTable)
			break
		}
	}

	if col.IsUnique {
		constraints = append(constraints, "UNIQUE")
	}

	if !col.Nullable {
		constraints = append(constraints, "NOT NULL")
	}

	if col.DefaultValue != nil {
		constraints = append(constraints, fmt.Sprintf("DEFAULT %s", *col.DefaultValue))
	}

	return strings.Join(constraints, ", ")
}
