package formatter

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/tordrt/fkschema/internal/dump"
	"github.com/tordrt/fkschema/internal/fk"
	"github.com/tordrt/fkschema/internal/schema"
)

const scriptHeader = `# This file is generated by fkschema from the current database state.
# Tables are ordered so referenced tables come first; foreign keys that
# would close a reference cycle are added after the tables they need.
`

// ScriptFormatter writes the schema as a re-loadable definition script
// with foreign keys inline on their columns.
type ScriptFormatter struct {
	writer io.Writer
	logger *slog.Logger
}

// NewScriptFormatter creates a new script formatter
func NewScriptFormatter(w io.Writer) *ScriptFormatter {
	return &ScriptFormatter{writer: w, logger: slog.Default()}
}

// WithLogger sets the logger passed to the dump planner
func (f *ScriptFormatter) WithLogger(l *slog.Logger) *ScriptFormatter {
	if l != nil {
		f.logger = l
	}
	return f
}

// Format writes the whole script
func (f *ScriptFormatter) Format(s *schema.Schema) error {
	plan := dump.Begin(s.TableNames(), s.ForeignKeys(), f.logger)

	if _, err := io.WriteString(f.writer, scriptHeader); err != nil {
		return err
	}

	if stmt, ok := RenderEnableStatement(s.Dialect, plan); ok {
		_, _ = fmt.Fprintf(f.writer, "\n%s\n", stmt)
	}

	for _, name := range plan.Tables {
		table := s.Table(name)
		if table == nil {
			continue
		}
		if _, err := fmt.Fprintf(f.writer, "\n%s", f.RenderTableClause(*table, plan)); err != nil {
			return err
		}
	}

	if trailer := schemaTrailer(s.Statements); len(trailer) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		for _, stmt := range trailer {
			_, _ = fmt.Fprintln(f.writer, stmt)
		}
	}
	return nil
}

// RenderEnableStatement returns the statement enabling foreign key
// enforcement, for engines that need one and only when the dump has any
// constraint.
func RenderEnableStatement(dialect string, plan *dump.Plan) (string, bool) {
	if !plan.HasForeignKeys() {
		return "", false
	}
	d, err := fk.DialectFor(dialect)
	if err != nil {
		return "", false
	}
	stmt := d.EnableStatement()
	if stmt == "" {
		return "", false
	}
	return stmt + ";", true
}

// RenderTableClause renders one create_table block followed by the
// standalone foreign key statements that belong after it.
func (f *ScriptFormatter) RenderTableClause(table schema.Table, plan *dump.Plan) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "create_table %s", strconv.Quote(table.Name))
	switch len(table.PrimaryKey) {
	case 0:
		sb.WriteString(", id: false")
	default:
		sb.WriteString(", primary_key: " + fk.FormatValue(table.PrimaryKey))
	}
	sb.WriteString(" do |t|\n")

	inline := plan.Inline(table.Name)
	dumped := make(map[*fk.ForeignKey]bool, len(inline))

	for _, col := range table.Columns {
		opts := columnOptions(col)
		for _, c := range inline {
			if !dumped[c] && c.Column() == col.Name {
				opts = append(opts, fk.Option{Key: "foreign_key", Value: c.InlineOptions()})
				dumped[c] = true
				break
			}
		}

		fmt.Fprintf(&sb, "  t.column %s, %s", strconv.Quote(col.Name), strconv.Quote(col.Type))
		if len(opts) > 0 {
			sb.WriteString(", " + fk.FormatOptions(opts))
		}
		if deferred := plan.DeferredFrom(table.Name, col.Name); deferred != nil {
			fmt.Fprintf(&sb, " # foreign key references %s (below)", strconv.Quote(deferred.ToTable))
		}
		sb.WriteString("\n")
	}

	for _, idx := range table.Indexes {
		fmt.Fprintf(&sb, "  t.index %s, name: %s", stringList(idx.Columns), strconv.Quote(idx.Name))
		if idx.IsUnique {
			sb.WriteString(", unique: true")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("end\n")

	var leftover []string
	for _, c := range inline {
		if !dumped[c] {
			leftover = append(leftover, c.DumpStatement())
		}
	}
	sort.Strings(leftover)

	var backrefs []string
	for _, c := range plan.Backrefs(table.Name) {
		backrefs = append(backrefs, c.DumpStatement())
	}
	sort.Strings(backrefs)

	for _, stmt := range append(leftover, backrefs...) {
		sb.WriteString(stmt)
		sb.WriteString("\n")
	}
	return sb.String()
}

func columnOptions(col schema.Column) []fk.Option {
	var opts []fk.Option
	if !col.Nullable {
		opts = append(opts, fk.Option{Key: "null", Value: false})
	}
	if col.DefaultValue != nil {
		opts = append(opts, fk.Option{Key: "default", Value: *col.DefaultValue})
	}
	if col.IsUnique {
		opts = append(opts, fk.Option{Key: "unique", Value: true})
	}
	return opts
}

// schemaTrailer drops foreign key statements, which are always written
// inline or after their tables.
func schemaTrailer(statements []string) []string {
	var out []string
	for _, stmt := range statements {
		if strings.Contains(stmt, "foreign_key") {
			continue
		}
		out = append(out, stmt)
	}
	return out
}

func stringList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = strconv.Quote(item)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
