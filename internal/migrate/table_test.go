package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/fkschema/internal/fk"
)

func TestReferencedTable(t *testing.T) {
	tests := []struct {
		table, column, want string
	}{
		{"comments", "post_id", "posts"},
		{"posts", "category_id", "categories"},
		{"nodes", "parent_id", "nodes"},
		{"tasks", "person_id", "people"},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			assert.Equal(t, tt.want, ReferencedTable(tt.table, tt.column))
		})
	}
}

func TestCreateTableSQLite(t *testing.T) {
	db, mock := newMock(t)
	m := New(fk.SQLite, nil, Config{AutoCreate: true, OnDelete: fk.ActionCascade}, WithExecer(db))

	def := NewTable("comments").
		Column("post_id", "integer", ColumnOptions{NotNull: true}).
		Column("legacy_id", "integer", ColumnOptions{ForeignKey: ForeignKeyOff}).
		Column("body", "text", ColumnOptions{Default: "''"}).
		References("parent", ColumnOptions{})

	expectExec(mock, `PRAGMA FOREIGN_KEYS = ON`)
	expectExec(mock, `CREATE TABLE "comments" (
  "id" integer NOT NULL,
  "post_id" integer NOT NULL,
  "legacy_id" integer,
  "body" text DEFAULT '',
  "parent_id" integer,
  PRIMARY KEY ("id"),
  CONSTRAINT "fk_comments_post_id" FOREIGN KEY ("post_id") REFERENCES "posts" ("id") ON DELETE CASCADE,
  CONSTRAINT "fk_comments_parent_id" FOREIGN KEY ("parent_id") REFERENCES "comments" ("id") ON DELETE CASCADE
)`)

	fks, err := m.CreateTable(context.Background(), def)
	require.NoError(t, err)
	require.Len(t, fks, 2)
	assert.Equal(t, "posts", fks[0].ToTable)
	assert.True(t, fks[1].SelfReferential())
	assert.Len(t, m.ForeignKeys("comments"), 2)
}

func TestCreateTableWithoutConstraints(t *testing.T) {
	db, mock := newMock(t)
	m := New(fk.SQLite, nil, Config{}, WithExecer(db))

	// Without AutoCreate, _id columns are plain columns.
	def := NewTable("posts").Column("user_id", "integer", ColumnOptions{})
	expectExec(mock, `CREATE TABLE "posts"`)

	fks, err := m.CreateTable(context.Background(), def)
	require.NoError(t, err)
	assert.Empty(t, fks)
}

func TestCreateTableCompositeAndExplicit(t *testing.T) {
	m := New(fk.Postgres, nil, Config{})

	def := NewTable("line_items").
		Column("item_ref", "integer", ColumnOptions{References: "products", Constraint: fk.Options{Name: "fk_item", OnDelete: fk.ActionRestrict}}).
		ForeignKey("orders", fk.Options{Columns: []string{"order_id", "shop_id"}, PrimaryKey: []string{"id", "shop_id"}})

	fks, err := m.CreateTable(context.Background(), def)
	require.NoError(t, err)
	require.Len(t, fks, 2)
	assert.Equal(t, "fk_item", fks[0].Name)
	assert.Equal(t, fk.ActionRestrict, fks[0].OnDelete)
	assert.Equal(t, "fk_line_items_order_id_shop_id", fks[1].Name)
}

func TestCreateTableFailureRegistersNothing(t *testing.T) {
	db, mock := newMock(t)
	m := New(fk.Postgres, nil, Config{}, WithExecer(db))
	mock.ExpectExec(`CREATE TABLE`).WillReturnError(assert.AnError)

	def := NewTable("comments").References("post", ColumnOptions{})
	_, err := m.CreateTable(context.Background(), def)
	require.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, m.Registry().All())
}

func TestCreateTableRejectsUnsupportedAction(t *testing.T) {
	m := New(fk.MySQL, nil, Config{OnUpdate: fk.ActionSetDefault})
	_, err := m.CreateTable(context.Background(), NewTable("comments").References("post", ColumnOptions{}))
	require.ErrorIs(t, err, fk.ErrUnsupported)
	assert.Empty(t, m.Registry().All())
}
