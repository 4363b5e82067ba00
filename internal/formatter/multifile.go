package formatter

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tordrt/fkschema/internal/dump"
	"github.com/tordrt/fkschema/internal/schema"
)

// MultiFileFormatter writes schema to multiple files in a directory
type MultiFileFormatter struct {
	OutputDir    string
	OutputFormat string // "script", "text" or "markdown"
	Logger       *slog.Logger
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir, format string) *MultiFileFormatter {
	return &MultiFileFormatter{
		OutputDir:    outputDir,
		OutputFormat: format,
		Logger:       slog.Default(),
	}
}

// Format writes the schema to multiple files
func (f *MultiFileFormatter) Format(s *schema.Schema) error {
	if !ValidFormat(f.OutputFormat) {
		return fmt.Errorf("invalid format: %s (must be one of %s)", f.OutputFormat, strings.Join(Formats, ", "))
	}

	// Create output directory if it doesn't exist
	if err := os.MkdirAll(f.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	plan := dump.Begin(s.TableNames(), s.ForeignKeys(), f.Logger)

	// Write overview file
	if err := f.writeOverview(s, plan); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	// Write per-table files
	for _, name := range plan.Tables {
		table := s.Table(name)
		if table == nil {
			continue
		}
		if err := f.writeTableFile(table, s, plan); err != nil {
			return fmt.Errorf("failed to write table file for %s: %w", table.Name, err)
		}
	}

	return nil
}

// writeOverview writes the overview file: emission order and deferred
// constraints
func (f *MultiFileFormatter) writeOverview(s *schema.Schema, plan *dump.Plan) error {
	var buf bytes.Buffer
	ext := f.getFileExtension()

	switch f.OutputFormat {
	case FormatMarkdown:
		_, _ = fmt.Fprintf(&buf, "# Schema Overview\n\n")
		_, _ = fmt.Fprintf(&buf, "Each table has a corresponding file: `<table_name>%s`\n\n", ext)
		_, _ = fmt.Fprintf(&buf, "## Tables (in dependency order)\n\n")
		for i, name := range plan.Tables {
			_, _ = fmt.Fprintf(&buf, "%d. **%s**%s\n", i+1, name, f.referencesSuffix(s, name))
		}
		if deferred := plan.Deferred(); len(deferred) > 0 {
			_, _ = fmt.Fprintf(&buf, "\n## Deferred foreign keys\n\n")
			for _, c := range deferred {
				_, _ = fmt.Fprintf(&buf, "- %s.%s → %s\n", c.FromTable, strings.Join(c.Columns, ", "), c.ToTable)
			}
		}
	case FormatScript:
		_, _ = fmt.Fprintf(&buf, "# Load the table files in this order:\n")
		for _, name := range plan.Tables {
			_, _ = fmt.Fprintf(&buf, "#   %s%s\n", name, ext)
		}
		if stmt, ok := RenderEnableStatement(s.Dialect, plan); ok {
			_, _ = fmt.Fprintf(&buf, "\n%s\n", stmt)
		}
		if trailer := schemaTrailer(s.Statements); len(trailer) > 0 {
			_, _ = fmt.Fprintln(&buf)
			for _, stmt := range trailer {
				_, _ = fmt.Fprintln(&buf, stmt)
			}
		}
	default:
		_, _ = fmt.Fprintf(&buf, "SCHEMA OVERVIEW\n")
		_, _ = fmt.Fprintf(&buf, "Each table has a file: <table_name>%s\n\n", ext)
		for _, name := range plan.Tables {
			_, _ = fmt.Fprintf(&buf, "%s%s\n", name, f.referencesSuffix(s, name))
		}
		if deferred := plan.Deferred(); len(deferred) > 0 {
			_, _ = fmt.Fprintf(&buf, "\nDEFERRED:\n")
			for _, c := range deferred {
				_, _ = fmt.Fprintf(&buf, "%s.%s → %s\n", c.FromTable, strings.Join(c.Columns, ","), c.ToTable)
			}
		}
	}

	return writeFile(filepath.Join(f.OutputDir, "_overview"+ext), &buf)
}

func (f *MultiFileFormatter) referencesSuffix(s *schema.Schema, name string) string {
	table := s.Table(name)
	if table == nil || len(table.ForeignKeys) == 0 {
		return ""
	}
	targets := make([]string, 0, len(table.ForeignKeys))
	for _, c := range table.ForeignKeys {
		targets = append(targets, c.ToTable)
	}
	return fmt.Sprintf(" (references: %s)", strings.Join(targets, ", "))
}

// writeTableFile writes a single table to its own file
func (f *MultiFileFormatter) writeTableFile(table *schema.Table, s *schema.Schema, plan *dump.Plan) error {
	var buf bytes.Buffer

	switch f.OutputFormat {
	case FormatScript:
		sf := NewScriptFormatter(&buf).WithLogger(f.Logger)
		buf.WriteString(sf.RenderTableClause(*table, plan))
	case FormatMarkdown:
		if err := NewMarkdownFormatter(&buf).FormatTable(*table, s.Registry()); err != nil {
			return err
		}
	default:
		if err := NewTextFormatter(&buf).formatTable(*table, s.Registry()); err != nil {
			return err
		}
	}

	return writeFile(filepath.Join(f.OutputDir, table.Name+f.getFileExtension()), &buf)
}

func writeFile(filename string, r io.Reader) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	_, err = io.Copy(file, r)
	return err
}

func (f *MultiFileFormatter) getFileExtension() string {
	switch f.OutputFormat {
	case FormatMarkdown:
		return ".md"
	case FormatScript:
		return ".schema"
	default:
		return ".txt"
	}
}
