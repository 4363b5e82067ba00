package migrate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/fkschema/internal/fk"
)

func TestParseStatement(t *testing.T) {
	st, err := ParseStatement(`add_foreign_key "comments", "posts", column: ["post_id", "shop_id"], name: "fk_c", on_delete: :cascade, deferrable: true`)
	require.NoError(t, err)

	assert.Equal(t, CallAddForeignKey, st.Call)
	assert.Equal(t, []string{"comments", "posts"}, st.Args)
	assert.Equal(t, []string{"column", "name", "on_delete", "deferrable"}, st.Keys)
	assert.Equal(t, []string{"post_id", "shop_id"}, st.Options["column"])
	assert.Equal(t, Symbol("cascade"), st.Options["on_delete"])
	assert.Equal(t, true, st.Options["deferrable"])

	st, err = ParseStatement(`remove_foreign_key("comments", name: "fk_c", if_exists: true)`)
	require.NoError(t, err)
	assert.Equal(t, []string{"comments"}, st.Args)
	assert.Equal(t, true, st.Options["if_exists"])
}

func TestParseStatementErrors(t *testing.T) {
	for _, line := range []string{
		``,
		`add_foreign_key "a", column: "x", "b"`,
		`add_foreign_key "a", "b", column: `,
		`add_foreign_key "a", "b", column: "x", column: "y"`,
		`add_foreign_key "a", "b", column: ["x" "y"]`,
		`add_foreign_key "a" "b"`,
		`add_foreign_key "a", "b", on_delete: cascade`,
		`add_foreign_key("a", "b"`,
	} {
		t.Run(line, func(t *testing.T) {
			_, err := ParseStatement(line)
			assert.Error(t, err)
		})
	}
}

func TestDumpStatementRoundTrip(t *testing.T) {
	constraints := []*fk.ForeignKey{
		{FromTable: "comments", ToTable: "posts", Columns: []string{"post_id"}, ReferencedColumns: []string{"id"}},
		{FromTable: "comments", ToTable: "posts", Columns: []string{"post_id"}, ReferencedColumns: []string{"id"},
			Name: "fk_comments_post_id", OnUpdate: fk.ActionCascade, OnDelete: fk.ActionNullify, Deferrable: fk.InitiallyDeferred},
		{FromTable: "lines", ToTable: "orders", Columns: []string{"order_id", "shop_id"}, ReferencedColumns: []string{"id", "shop_id"},
			Name: "weird \"name\"", OnDelete: fk.ActionRestrict, Deferrable: fk.DeferrableImmediate},
		{FromTable: "nodes", ToTable: "nodes", Columns: []string{"parent_uuid"}, ReferencedColumns: []string{"uuid"}, OnDelete: fk.ActionSetDefault},
	}

	for _, want := range constraints {
		line := want.DumpStatement()
		t.Run(line, func(t *testing.T) {
			st, err := ParseStatement(line)
			require.NoError(t, err)

			from, to, opts, deprecated, err := st.AddOptions()
			require.NoError(t, err)
			assert.Empty(t, deprecated)

			got, err := fk.New(fk.Postgres, from, to, opts)
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.Equal(t, line, got.DumpStatement())
		})
	}
}

func TestAddOptionsLegacyAction(t *testing.T) {
	st, err := ParseStatement(`add_foreign_key "comments", "posts", column: "post_id", on_delete: :set_null`)
	require.NoError(t, err)

	_, _, opts, deprecated, err := st.AddOptions()
	require.NoError(t, err)
	assert.Equal(t, fk.ActionNullify, opts.OnDelete)
	assert.Equal(t, []string{"on_delete: :set_null"}, deprecated)
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	m := New(fk.Postgres, nil, Config{})

	require.NoError(t, m.Apply(ctx, `add_foreign_key "comments", "posts", column: "post_id", on_delete: :cascade`))
	require.NoError(t, m.Apply(ctx, `add_foreign_key "posts", "users", column: "user_id"`))
	require.Len(t, m.ForeignKeys("comments"), 1)
	assert.Equal(t, "fk_comments_post_id", m.ForeignKeys("comments")[0].Name)

	require.NoError(t, m.Apply(ctx, `rename_table "posts", "articles"`))
	assert.Equal(t, "articles", m.ForeignKeys("comments")[0].ToTable)
	assert.Equal(t, "fk_articles_user_id", m.ForeignKeys("articles")[0].Name)

	require.NoError(t, m.Apply(ctx, `remove_foreign_key "comments", "articles", column: "post_id"`))
	assert.Empty(t, m.ForeignKeys("comments"))

	require.NoError(t, m.Apply(ctx, `remove_foreign_key "comments", column: "post_id", if_exists: true`))
	err := m.Apply(ctx, `remove_foreign_key "comments", column: "post_id"`)
	assert.True(t, fk.IsNotFound(err))
}

func TestApplyDefaultColumn(t *testing.T) {
	ctx := context.Background()
	m := New(fk.Postgres, nil, Config{})

	require.NoError(t, m.Apply(ctx, `add_foreign_key "comments", "categories"`))
	require.Len(t, m.ForeignKeys("comments"), 1)
	c := m.ForeignKeys("comments")[0]
	assert.Equal(t, []string{"category_id"}, c.Columns)
	assert.Equal(t, "fk_comments_category_id", c.Name)

	require.NoError(t, m.Apply(ctx, `add_foreign_key "comments", "users", column: "author_id"`))
	err := m.Apply(ctx, `remove_foreign_key "comments", "users"`)
	assert.True(t, fk.IsNotFound(err), "matches on user_id, not any constraint to users")

	require.NoError(t, m.Apply(ctx, `remove_foreign_key "comments", "categories"`))
	require.Len(t, m.ForeignKeys("comments"), 1)
	assert.Equal(t, "fk_comments_author_id", m.ForeignKeys("comments")[0].Name)

	require.NoError(t, m.Apply(ctx, `remove_foreign_key "comments", "fk_comments_author_id"`))
	assert.Empty(t, m.ForeignKeys("comments"), "constraint name in place of the table still works")
}

func TestApplyRemoveRejectsUnknownOptions(t *testing.T) {
	ctx := context.Background()
	m := New(fk.Postgres, nil, Config{})
	require.NoError(t, m.Apply(ctx, `add_foreign_key "comments", "posts", column: "post_id"`))
	require.NoError(t, m.Apply(ctx, `add_foreign_key "comments", "users", column: "user_id"`))

	tests := []string{
		`remove_foreign_key "comments", colum: "user_id"`,
		`remove_foreign_key "comments", "users", on_delete: :cascade`,
		`remove_foreign_key "comments", column: "user_id", if_exists: "yes"`,
	}
	for _, line := range tests {
		t.Run(line, func(t *testing.T) {
			err := m.Apply(ctx, line)
			require.ErrorIs(t, err, fk.ErrValidation)
			assert.Len(t, m.ForeignKeys("comments"), 2, "nothing removed")
		})
	}

	var verr *fk.ValidationError
	require.True(t, errors.As(m.Apply(ctx, tests[0]), &verr))
	assert.Equal(t, "colum", verr.Field)
}

func TestApplyDropTableAndRemoveColumn(t *testing.T) {
	ctx := context.Background()
	m := New(fk.Postgres, nil, Config{})
	require.NoError(t, m.Apply(ctx, `add_foreign_key "comments", "posts", column: "post_id"`))
	require.NoError(t, m.Apply(ctx, `add_foreign_key "comments", "users", column: "user_id"`))
	require.NoError(t, m.Apply(ctx, `add_foreign_key "posts", "users", column: "user_id"`))

	require.NoError(t, m.Apply(ctx, `remove_column "comments", "user_id"`))
	require.Len(t, m.ForeignKeys("comments"), 1)
	assert.Equal(t, "posts", m.ForeignKeys("comments")[0].ToTable)

	require.NoError(t, m.Apply(ctx, `drop_table "posts"`))
	assert.Empty(t, m.ForeignKeys("posts"))
	assert.Empty(t, m.ForeignKeys("comments"), "constraints referencing the dropped table go too")

	err := m.Apply(ctx, `drop_table "posts", force: true`)
	require.ErrorIs(t, err, fk.ErrValidation)
}

func TestApplyArity(t *testing.T) {
	m := New(fk.Postgres, nil, Config{})

	tests := []struct {
		line string
		want string
		got  int
	}{
		{`add_foreign_key "comments", column: "post_id"`, "2", 1},
		{`add_foreign_key "a", "b", "c"`, "2", 3},
		{`remove_foreign_key "a", "b", "c"`, "1 or 2", 3},
		{`remove_foreign_key`, "1 or 2", 0},
		{`rename_table "a"`, "2", 1},
		{`drop_table "a", "b"`, "1", 2},
		{`remove_column "a"`, "2", 1},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			err := m.Apply(context.Background(), tt.line)
			require.ErrorIs(t, err, fk.ErrArity)

			var arity *fk.ArityError
			require.True(t, errors.As(err, &arity))
			assert.Equal(t, tt.want, arity.Want)
			assert.Equal(t, tt.got, arity.Got)
		})
	}
}

func TestApplyInvalidAndUnsupported(t *testing.T) {
	ctx := context.Background()

	pg := New(fk.Postgres, nil, Config{})
	err := pg.Apply(ctx, `add_foreign_key "comments", "posts", column: "post_id", on_update: :bogus`)
	require.ErrorIs(t, err, fk.ErrValidation)
	assert.Empty(t, pg.ForeignKeys("comments"))

	err = pg.Apply(ctx, `add_foreign_key "comments", "posts", column: "post_id", colour: "red"`)
	require.ErrorIs(t, err, fk.ErrValidation)

	my := New(fk.MySQL, nil, Config{})
	err = my.Apply(ctx, `add_foreign_key "comments", "posts", column: "post_id", on_delete: :set_default`)
	require.ErrorIs(t, err, fk.ErrUnsupported)
	assert.Empty(t, my.ForeignKeys("comments"))

	err = pg.Apply(ctx, `drop_table "comments"`)
	assert.Error(t, err)
}

func TestApplyScript(t *testing.T) {
	m := New(fk.Postgres, nil, Config{})
	script := strings.Join([]string{
		"# generated",
		"",
		`add_foreign_key "comments", "posts", column: "post_id"`,
		`add_foreign_key "posts", "users", column: "user_id"`,
		`add_foreign_key "posts", "users", column: "user_id"`,
	}, "\n")

	n, err := m.ApplyScript(context.Background(), strings.NewReader(script))
	require.ErrorIs(t, err, fk.ErrValidation, "second constraint with the same default name")
	assert.Contains(t, err.Error(), "line 5")
	assert.Equal(t, 2, n)
}
