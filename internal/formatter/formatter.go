// Package formatter renders a schema snapshot: as a re-loadable
// definition script, compact text, or markdown, to one writer or to one
// file per table.
package formatter

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/tordrt/fkschema/internal/schema"
)

// Output formats.
const (
	FormatScript   = "script"
	FormatText     = "text"
	FormatMarkdown = "markdown"
)

// Formats lists the accepted format names.
var Formats = []string{FormatScript, FormatText, FormatMarkdown}

// Formatter writes a whole schema.
type Formatter interface {
	Format(s *schema.Schema) error
}

// ValidFormat reports whether name is a known format.
func ValidFormat(name string) bool {
	return slices.Contains(Formats, name)
}

// New returns the single-writer formatter for format.
func New(format string, w io.Writer, logger *slog.Logger) (Formatter, error) {
	switch format {
	case FormatScript, "":
		return NewScriptFormatter(w).WithLogger(logger), nil
	case FormatText:
		return NewTextFormatter(w), nil
	case FormatMarkdown:
		return NewMarkdownFormatter(w), nil
	default:
		return nil, fmt.Errorf("invalid format: %s (must be one of %s)", format, strings.Join(Formats, ", "))
	}
}
