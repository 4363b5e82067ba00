package fkschema

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/fkschema/internal/db"
	"github.com/tordrt/fkschema/internal/fk"
	"github.com/tordrt/fkschema/internal/migrate"
	"github.com/tordrt/fkschema/internal/schema"
)

const cyclicYAML = `
dialect: postgres
tables:
  - name: users
    primary_key: id
    columns:
      - {name: id, type: integer, null: false}
      - {name: best_post_id, type: integer}
    foreign_keys:
      - {to_table: posts, column: best_post_id}
  - name: posts
    primary_key: id
    columns:
      - {name: id, type: integer, null: false}
      - {name: user_id, type: integer}
    foreign_keys:
      - {to_table: users, column: user_id, on_delete: cascade}
  - name: audit_log
    primary_key: id
    columns:
      - {name: id, type: integer, null: false}
      - {name: user_id, type: integer}
    foreign_keys:
      - {to_table: users, column: user_id, name: fk_audit_log_user_id}
`

func writeSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cyclicYAML), 0o644))
	return "yaml://" + path
}

func TestParseDatabaseURL(t *testing.T) {
	tests := []struct {
		url      string
		wantType string
		wantConn string
		wantErr  bool
	}{
		{url: "postgres://u:p@localhost/db", wantType: "postgres", wantConn: "postgres://u:p@localhost/db"},
		{url: "postgresql://localhost/db", wantType: "postgres", wantConn: "postgresql://localhost/db"},
		{url: "mysql://u:p@tcp(localhost:3306)/db", wantType: "mysql", wantConn: "u:p@tcp(localhost:3306)/db"},
		{url: "sqlite://data/app.db", wantType: "sqlite", wantConn: "data/app.db"},
		{url: "yaml://schema.yaml", wantType: "yaml", wantConn: "schema.yaml"},
		{url: "", wantErr: true},
		{url: "oracle://localhost", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			dbType, conn, err := parseDatabaseURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, dbType)
			assert.Equal(t, tt.wantConn, conn)
		})
	}
}

func TestFilterExcludedTables(t *testing.T) {
	toUsers, err := fk.New(fk.Postgres, "posts", "users", fk.Options{Columns: []string{"user_id"}})
	require.NoError(t, err)
	toPosts, err := fk.New(fk.Postgres, "comments", "posts", fk.Options{Columns: []string{"post_id"}})
	require.NoError(t, err)

	tests := []struct {
		name        string
		excludeList []string
		wantTables  []string
		wantFKs     int
	}{
		{name: "exclude no tables", excludeList: nil, wantTables: []string{"users", "posts", "comments"}, wantFKs: 2},
		{name: "exclude leaf table", excludeList: []string{"comments"}, wantTables: []string{"users", "posts"}, wantFKs: 1},
		{name: "exclude referenced table", excludeList: []string{"users"}, wantTables: []string{"posts", "comments"}, wantFKs: 1},
		{name: "exclude non-existent table", excludeList: []string{"products"}, wantTables: []string{"users", "posts", "comments"}, wantFKs: 2},
		{name: "exclude all tables", excludeList: []string{"users", "posts", "comments"}, wantTables: []string{}, wantFKs: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &schema.Schema{
				Tables: []schema.Table{
					{Name: "users"},
					{Name: "posts", ForeignKeys: []*fk.ForeignKey{toUsers}},
					{Name: "comments", ForeignKeys: []*fk.ForeignKey{toPosts}},
				},
			}
			filterExcludedTables(s, tt.excludeList)

			assert.Equal(t, tt.wantTables, s.TableNames())
			assert.Len(t, s.ForeignKeys(), tt.wantFKs)
		})
	}
}

func TestExtractAndDumpSnapshot(t *testing.T) {
	var buf bytes.Buffer
	err := ExtractAndDump(context.Background(), writeSnapshot(t),
		&Options{ExcludeTables: []string{"audit_log"}},
		&OutputOptions{Writer: &buf},
	)
	require.NoError(t, err)

	out := buf.String()
	assert.NotContains(t, out, "audit_log")
	assert.Equal(t, 1, strings.Count(out, "add_foreign_key"))

	stmt := strings.Index(out, "add_foreign_key")
	assert.Greater(t, stmt, strings.Index(out, `create_table "users"`))
	assert.Greater(t, stmt, strings.Index(out, `create_table "posts"`))
}

func TestExtractSchemaSpecificTables(t *testing.T) {
	s, err := ExtractSchema(context.Background(), writeSnapshot(t), &Options{Tables: []string{"posts", "users"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"users", "posts"}, s.TableNames())
	assert.Len(t, s.ForeignKeys(), 2)
}

func TestDumpSchemaToDirectory(t *testing.T) {
	s, err := ExtractSchema(context.Background(), writeSnapshot(t), nil)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "schema")
	require.NoError(t, DumpSchema(s, &OutputOptions{OutputDir: dir, Format: "markdown"}))

	for _, name := range []string{"_overview.md", "users.md", "posts.md", "audit_log.md"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
}

func TestDumpSchemaInvalidFormat(t *testing.T) {
	err := DumpSchema(&schema.Schema{}, &OutputOptions{Writer: &bytes.Buffer{}, Format: "html"})
	assert.ErrorContains(t, err, "invalid format")
}

func TestSnapshotMigrator(t *testing.T) {
	ctx := context.Background()
	database, err := Open(ctx, writeSnapshot(t), nil)
	require.NoError(t, err)
	defer func() { _ = database.Close(ctx) }()

	m, err := database.Migrator(ctx, migrate.Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres", m.Dialect().Name())
	assert.Len(t, m.ReverseForeignKeys("users"), 2)

	require.NoError(t, m.Apply(ctx, `remove_foreign_key "audit_log", "users"`))
	assert.Len(t, m.ReverseForeignKeys("users"), 1)
}

func TestSQLiteCreateAndExtract(t *testing.T) {
	ctx := context.Background()
	url := "sqlite://" + filepath.Join(t.TempDir(), "app.db")
	opts := &Options{SQLiteDriver: db.SQLiteDriverPureGo}

	database, err := Open(ctx, url, opts)
	require.NoError(t, err)
	defer func() { _ = database.Close(ctx) }()

	m, err := database.Migrator(ctx, migrate.Config{OnDelete: fk.ActionCascade}, nil)
	require.NoError(t, err)

	_, err = m.CreateTable(ctx, migrate.NewTable("users"))
	require.NoError(t, err)
	_, err = m.CreateTable(ctx, migrate.NewTable("posts").References("user", migrate.ColumnOptions{}))
	require.NoError(t, err)

	s, err := ExtractSchema(ctx, url, opts)
	require.NoError(t, err)

	posts := s.Table("posts")
	require.NotNil(t, posts)
	require.Len(t, posts.ForeignKeys, 1)
	assert.Equal(t, "users", posts.ForeignKeys[0].ToTable)
	assert.Equal(t, []string{"user_id"}, posts.ForeignKeys[0].Columns)
	assert.Equal(t, fk.ActionCascade, posts.ForeignKeys[0].OnDelete)
}
