package schema

import "github.com/tordrt/fkschema/internal/fk"

// Schema represents a complete database schema snapshot
type Schema struct {
	// Dialect is the engine the snapshot was taken from ("postgres", "mysql", "sqlite")
	Dialect string
	Tables  []Table
	// Statements are extra schema-level statements written after all tables
	Statements []string
}

// Table represents a database table
type Table struct {
	Name        string
	Columns     []Column
	ForeignKeys []*fk.ForeignKey
	Indexes     []Index
	PrimaryKey  []string
}

// Column represents a table column
type Column struct {
	Name         string
	Type         string
	Nullable     bool
	DefaultValue *string
	IsUnique     bool
	EnumValues   []string
}

// Index represents a database index
type Index struct {
	Name     string
	Columns  []string
	IsUnique bool
}

// TableNames returns the table names in snapshot order
func (s *Schema) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}

// Table returns the named table, or nil
func (s *Schema) Table(name string) *Table {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	return nil
}

// ForeignKeys returns all constraints in table order
func (s *Schema) ForeignKeys() []*fk.ForeignKey {
	var all []*fk.ForeignKey
	for _, t := range s.Tables {
		all = append(all, t.ForeignKeys...)
	}
	return all
}

// Registry returns a constraint registry over the snapshot
func (s *Schema) Registry() *fk.Registry {
	return fk.NewRegistry(s.ForeignKeys()...)
}
