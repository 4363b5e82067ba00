package graph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/fkschema/internal/fk"
)

func edge(from, to, col string) *fk.ForeignKey {
	return &fk.ForeignKey{
		FromTable:         from,
		ToTable:           to,
		Columns:           []string{col},
		ReferencedColumns: []string{"id"},
	}
}

// commentsPostsUsers is the cyclic schema used by the dumper tests of the
// original toolkit.
func commentsPostsUsers() ([]string, []*fk.ForeignKey) {
	return []string{"comments", "posts", "users"}, []*fk.ForeignKey{
		edge("comments", "users", "commenter_id"),
		edge("comments", "posts", "post_id"),
		edge("posts", "comments", "first_comment_id"),
		edge("posts", "users", "user_id"),
		edge("users", "posts", "first_post_id"),
	}
}

// schools is a larger schema with one big cycle and a self-reference.
func schools() ([]string, []*fk.ForeignKey) {
	return []string{"academic_years", "buildings", "grade_systems", "profiles", "schools"}, []*fk.ForeignKey{
		edge("schools", "grade_systems", "default_grade_system_id"),
		edge("grade_systems", "schools", "school_id"),
		edge("grade_systems", "grade_systems", "parent_id"),
		edge("grade_systems", "profiles", "profile_id"),
		edge("profiles", "buildings", "building_id"),
		edge("profiles", "schools", "school_id"),
		edge("buildings", "schools", "school_id"),
		edge("academic_years", "schools", "school_id"),
	}
}

func TestStronglyConnectedComponents(t *testing.T) {
	tests := []struct {
		name   string
		tables []string
		edges  []*fk.ForeignKey
		want   [][]string
	}{
		{
			name:   "acyclic chain",
			tables: []string{"posts", "comments", "users"},
			edges:  []*fk.ForeignKey{edge("comments", "posts", "post_id"), edge("posts", "users", "user_id")},
			want:   [][]string{{"users"}, {"posts"}, {"comments"}},
		},
		{
			name:   "triangle",
			tables: []string{"C", "B", "A"},
			edges:  []*fk.ForeignKey{edge("A", "B", "b_id"), edge("B", "C", "c_id"), edge("C", "A", "a_id")},
			want:   [][]string{{"A", "B", "C"}},
		},
		{
			name:   "self reference is trivial",
			tables: []string{"nodes"},
			edges:  []*fk.ForeignKey{edge("nodes", "nodes", "parent_id")},
			want:   [][]string{{"nodes"}},
		},
		{
			name:   "edge to unknown table ignored",
			tables: []string{"posts"},
			edges:  []*fk.ForeignKey{edge("posts", "users", "user_id")},
			want:   [][]string{{"posts"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Build(tt.tables, tt.edges)
			assert.Equal(t, tt.want, g.StronglyConnectedComponents())
		})
	}
}

func TestStronglyConnectedComponentsDeterministic(t *testing.T) {
	tables, edges := schools()
	want := Build(tables, edges).StronglyConnectedComponents()

	reversed := make([]*fk.ForeignKey, len(edges))
	for i, e := range edges {
		reversed[len(edges)-1-i] = e
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, want, Build([]string{"schools", "profiles", "grade_systems", "buildings", "academic_years"}, reversed).StronglyConnectedComponents())
	}
	assert.Contains(t, want, []string{"buildings", "grade_systems", "profiles", "schools"})
}

func TestBreakCyclesTriangle(t *testing.T) {
	edges := []*fk.ForeignKey{edge("A", "B", "b_id"), edge("B", "C", "c_id"), edge("C", "A", "a_id")}
	g := Build([]string{"A", "B", "C"}, edges)

	require.True(t, g.Cyclic())
	assert.Equal(t, 1, g.BreakCycles())
	assert.False(t, g.Cyclic())

	deferred := g.DeferredEdges()
	require.Len(t, deferred, 1)
	assert.Same(t, edges[2], deferred[0])
	assert.Len(t, g.InlineEdges(), 2)
	assert.Equal(t, []string{"C", "B", "A"}, g.TopologicalOrder())
}

func TestBreakCyclesNested(t *testing.T) {
	tables, edges := commentsPostsUsers()
	g := Build(tables, edges)

	assert.Equal(t, 2, g.BreakCycles())

	deferred := g.DeferredEdges()
	require.Len(t, deferred, 2)
	assert.Equal(t, "users", deferred[0].FromTable)
	assert.Equal(t, "posts", deferred[0].ToTable)
	assert.Equal(t, "posts", deferred[1].FromTable)
	assert.Equal(t, "comments", deferred[1].ToTable)

	assert.Equal(t, []string{"users", "posts", "comments"}, g.TopologicalOrder())
}

func TestBreakCyclesProperties(t *testing.T) {
	cases := map[string]func() ([]string, []*fk.ForeignKey){
		"comments posts users": commentsPostsUsers,
		"schools":              schools,
		"two disjoint cycles": func() ([]string, []*fk.ForeignKey) {
			return []string{"a", "b", "c", "d"}, []*fk.ForeignKey{
				edge("a", "b", "b_id"), edge("b", "a", "a_id"),
				edge("c", "d", "d_id"), edge("d", "c", "c_id"),
				edge("d", "d", "parent_id"),
			}
		},
		"complete graph": func() ([]string, []*fk.ForeignKey) {
			tables := []string{"t1", "t2", "t3", "t4"}
			var edges []*fk.ForeignKey
			for _, from := range tables {
				for _, to := range tables {
					edges = append(edges, edge(from, to, fmt.Sprintf("%s_id", to)))
				}
			}
			return tables, edges
		},
	}

	for name, build := range cases {
		t.Run(name, func(t *testing.T) {
			tables, edges := build()
			g := Build(tables, edges)
			g.BreakCycles()

			for _, c := range g.StronglyConnectedComponents() {
				assert.Len(t, c, 1, "inline edges must be acyclic")
			}

			inline := g.InlineEdges()
			deferred := g.DeferredEdges()
			assert.Equal(t, len(edges), len(inline)+len(deferred))
			seen := make(map[*fk.ForeignKey]int)
			for _, e := range append(inline, deferred...) {
				seen[e]++
			}
			for _, e := range edges {
				assert.Equal(t, 1, seen[e], "edge %s->%s", e.FromTable, e.ToTable)
			}

			for _, e := range deferred {
				assert.False(t, e.SelfReferential(), "self-reference deferred")
			}

			order := g.TopologicalOrder()
			assert.ElementsMatch(t, tables, order)
			pos := make(map[string]int)
			for i, table := range order {
				pos[table] = i
			}
			for _, e := range inline {
				if !e.SelfReferential() {
					assert.Less(t, pos[e.ToTable], pos[e.FromTable], "%s must follow %s", e.FromTable, e.ToTable)
				}
			}
		})
	}
}

func TestBreakCyclesAcyclicNoop(t *testing.T) {
	g := Build([]string{"posts", "comments"}, []*fk.ForeignKey{edge("comments", "posts", "post_id")})
	assert.Equal(t, 0, g.BreakCycles())
	assert.Empty(t, g.DeferredEdges())
	assert.Equal(t, []string{"posts", "comments"}, g.TopologicalOrder())
}
