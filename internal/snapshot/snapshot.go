// Package snapshot loads a schema from a YAML file, for dumping schemas
// without a live database.
package snapshot

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tordrt/fkschema/internal/fk"
	"github.com/tordrt/fkschema/internal/schema"
)

// File is the on-disk layout.
type File struct {
	Dialect    string   `yaml:"dialect"`
	Tables     []Table  `yaml:"tables"`
	Statements []string `yaml:"statements"`
}

type Table struct {
	Name        string       `yaml:"name"`
	PrimaryKey  StringList   `yaml:"primary_key"`
	Columns     []Column     `yaml:"columns"`
	Indexes     []Index      `yaml:"indexes"`
	ForeignKeys []ForeignKey `yaml:"foreign_keys"`
}

type Column struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"`
	Null    *bool    `yaml:"null"`
	Default *string  `yaml:"default"`
	Unique  bool     `yaml:"unique"`
	Enum    []string `yaml:"enum"`
}

type Index struct {
	Name    string     `yaml:"name"`
	Columns StringList `yaml:"columns"`
	Unique  bool       `yaml:"unique"`
}

type ForeignKey struct {
	ToTable    string     `yaml:"to_table"`
	Column     StringList `yaml:"column"`
	PrimaryKey StringList `yaml:"primary_key"`
	Name       string     `yaml:"name"`
	OnUpdate   string     `yaml:"on_update"`
	OnDelete   string     `yaml:"on_delete"`
	Deferrable string     `yaml:"deferrable"`
}

// StringList accepts a scalar or a sequence.
type StringList []string

func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*l = StringList{value.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list", value.Line)
	}
}

// LoadFile reads and converts a snapshot file.
func LoadFile(path string) (*schema.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}
	return Load(bytes.NewReader(data))
}

// Load decodes a snapshot. Every foreign key is validated against the
// snapshot's dialect.
func Load(r io.Reader) (*schema.Schema, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return f.Schema()
}

// Schema converts the file layout into a snapshot.
func (f *File) Schema() (*schema.Schema, error) {
	if f.Dialect == "" {
		return nil, fmt.Errorf("snapshot dialect is required")
	}
	d, err := fk.DialectFor(f.Dialect)
	if err != nil {
		return nil, err
	}

	s := &schema.Schema{Dialect: d.Name(), Statements: f.Statements}
	seen := make(map[string]bool, len(f.Tables))
	for _, t := range f.Tables {
		if t.Name == "" {
			return nil, fmt.Errorf("table without a name")
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("duplicate table %s", t.Name)
		}
		seen[t.Name] = true

		table, err := convertTable(d, t)
		if err != nil {
			return nil, err
		}
		s.Tables = append(s.Tables, *table)
	}
	return s, nil
}

func convertTable(d fk.Dialect, t Table) (*schema.Table, error) {
	table := &schema.Table{Name: t.Name, PrimaryKey: t.PrimaryKey}

	for _, c := range t.Columns {
		table.Columns = append(table.Columns, schema.Column{
			Name:         c.Name,
			Type:         c.Type,
			Nullable:     c.Null == nil || *c.Null,
			DefaultValue: c.Default,
			IsUnique:     c.Unique,
			EnumValues:   c.Enum,
		})
	}
	for _, idx := range t.Indexes {
		table.Indexes = append(table.Indexes, schema.Index{Name: idx.Name, Columns: idx.Columns, IsUnique: idx.Unique})
	}

	registry := fk.NewRegistry()
	for _, raw := range t.ForeignKeys {
		opts := fk.Options{Columns: raw.Column, PrimaryKey: raw.PrimaryKey, Name: raw.Name}
		var err error
		if opts.OnUpdate, err = fk.ParseAction(raw.OnUpdate); err != nil {
			return nil, fmt.Errorf("table %s: on_update: %w", t.Name, err)
		}
		if opts.OnDelete, err = fk.ParseAction(raw.OnDelete); err != nil {
			return nil, fmt.Errorf("table %s: on_delete: %w", t.Name, err)
		}
		if opts.Deferrable, err = fk.ParseDeferrable(raw.Deferrable); err != nil {
			return nil, fmt.Errorf("table %s: deferrable: %w", t.Name, err)
		}

		c, err := fk.New(d, t.Name, raw.ToTable, opts)
		if err != nil {
			return nil, err
		}
		if err := registry.Add(c); err != nil {
			return nil, err
		}
		table.ForeignKeys = append(table.ForeignKeys, c)
	}
	return table, nil
}
