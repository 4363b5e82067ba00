package dump

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/fkschema/internal/fk"
)

func edge(from, to, col string) *fk.ForeignKey {
	return &fk.ForeignKey{FromTable: from, ToTable: to, Columns: []string{col}, ReferencedColumns: []string{"id"}}
}

func TestBeginAcyclic(t *testing.T) {
	fks := []*fk.ForeignKey{edge("comments", "posts", "post_id")}
	p := Begin([]string{"comments", "posts"}, fks, nil)

	assert.Equal(t, []string{"posts", "comments"}, p.Tables)
	assert.True(t, p.HasForeignKeys())
	assert.Equal(t, fks, p.Inline("comments"))
	assert.Empty(t, p.Inline("posts"))
	assert.Empty(t, p.Deferred())
}

func TestBeginCyclic(t *testing.T) {
	ab := edge("A", "B", "b_id")
	bc := edge("B", "C", "c_id")
	ca := edge("C", "A", "a_id")
	p := Begin([]string{"A", "B", "C"}, []*fk.ForeignKey{ab, bc, ca}, nil)

	assert.Equal(t, []string{"C", "B", "A"}, p.Tables)
	require.Equal(t, []*fk.ForeignKey{ca}, p.Deferred())
	assert.Equal(t, []*fk.ForeignKey{ca}, p.Backrefs("A"))
	assert.Same(t, ca, p.DeferredFrom("C", "a_id"))
	assert.Nil(t, p.DeferredFrom("C", "other"))
	assert.Equal(t, []*fk.ForeignKey{ab}, p.Inline("A"))
	assert.Equal(t, []*fk.ForeignKey{bc}, p.Inline("B"))
	assert.Empty(t, p.Inline("C"))
}

func TestBeginIgnoresForeignKeysOfOtherTables(t *testing.T) {
	p := Begin([]string{"posts"}, []*fk.ForeignKey{edge("comments", "posts", "post_id")}, nil)
	assert.False(t, p.HasForeignKeys())
	assert.Equal(t, []string{"posts"}, p.Tables)
}

func TestBeginKeepsSelfReferenceInline(t *testing.T) {
	self := edge("categories", "categories", "parent_id")
	p := Begin([]string{"categories"}, []*fk.ForeignKey{self}, nil)
	assert.Equal(t, []*fk.ForeignKey{self}, p.Inline("categories"))
	assert.Empty(t, p.Deferred())
}
