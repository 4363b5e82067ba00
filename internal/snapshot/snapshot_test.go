package snapshot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/fkschema/internal/fk"
)

const schoolsYAML = `
dialect: postgresql
tables:
  - name: schools
    primary_key: id
    columns:
      - {name: id, type: integer, null: false}
      - {name: name, type: text, default: "'unnamed'"}
  - name: grade_systems
    primary_key: id
    columns:
      - {name: id, type: integer, null: false}
      - {name: school_id, type: integer}
    indexes:
      - {name: index_grade_systems_on_school_id, columns: school_id}
    foreign_keys:
      - {to_table: schools, column: school_id, on_delete: cascade}
  - name: profiles
    primary_key: [id]
    columns:
      - {name: id, type: integer, null: false}
      - {name: school_id, type: integer}
      - {name: mentor_id, type: integer}
    foreign_keys:
      - {to_table: schools, column: school_id, name: fk_profiles_school, deferrable: initially_deferred}
      - {to_table: profiles, column: mentor_id, on_delete: set_null}
statements:
  - create_view "active_profiles", "SELECT * FROM profiles"
`

func TestLoad(t *testing.T) {
	s, err := Load(strings.NewReader(schoolsYAML))
	require.NoError(t, err)

	assert.Equal(t, "postgres", s.Dialect)
	assert.Equal(t, []string{"schools", "grade_systems", "profiles"}, s.TableNames())
	assert.Len(t, s.Statements, 1)

	schools := s.Table("schools")
	require.NotNil(t, schools)
	assert.Equal(t, []string{"id"}, schools.PrimaryKey)
	assert.False(t, schools.Columns[0].Nullable)
	assert.True(t, schools.Columns[1].Nullable)
	require.NotNil(t, schools.Columns[1].DefaultValue)
	assert.Equal(t, "'unnamed'", *schools.Columns[1].DefaultValue)

	grades := s.Table("grade_systems")
	assert.Equal(t, []string{"school_id"}, grades.Indexes[0].Columns)
	require.Len(t, grades.ForeignKeys, 1)
	assert.Equal(t, fk.ActionCascade, grades.ForeignKeys[0].OnDelete)
	assert.Equal(t, []string{"id"}, grades.ForeignKeys[0].ReferencedColumns)

	profiles := s.Table("profiles")
	require.Len(t, profiles.ForeignKeys, 2)
	assert.Equal(t, fk.InitiallyDeferred, profiles.ForeignKeys[0].Deferrable)
	assert.Equal(t, fk.ActionNullify, profiles.ForeignKeys[1].OnDelete)
	assert.True(t, profiles.ForeignKeys[1].SelfReferential())

	assert.Len(t, s.Registry().ReverseForeignKeys("schools"), 2)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		target error
	}{
		{name: "missing dialect", doc: "tables: []"},
		{name: "unknown dialect", doc: "dialect: oracle"},
		{name: "unknown field", doc: "dialect: mysql\ntabels: []"},
		{name: "duplicate table", doc: "dialect: mysql\ntables: [{name: a}, {name: a}]"},
		{
			name:   "unsupported action",
			doc:    "dialect: mysql\ntables: [{name: a, foreign_keys: [{to_table: b, column: b_id, on_delete: set_default}]}]",
			target: fk.ErrUnsupported,
		},
		{
			name:   "missing column",
			doc:    "dialect: mysql\ntables: [{name: a, foreign_keys: [{to_table: b}]}]",
			target: fk.ErrValidation,
		},
		{name: "bad action", doc: "dialect: sqlite\ntables: [{name: a, foreign_keys: [{to_table: b, column: x, on_update: explode}]}]"},
		{name: "bad list", doc: "dialect: sqlite\ntables: [{name: a, primary_key: {x: 1}}]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(schoolsYAML), 0o600))

	s, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, s.Tables, 3)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
