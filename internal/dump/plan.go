// Package dump decides, for one schema dump, which foreign keys are
// written inline with their table and which are deferred to a standalone
// statement, and in which order the tables are written.
package dump

import (
	"log/slog"
	"slices"

	"github.com/tordrt/fkschema/internal/fk"
	"github.com/tordrt/fkschema/internal/graph"
)

// Plan is built once per dump and discarded after rendering.
type Plan struct {
	// Tables is the emission order.
	Tables []string

	inline  map[string][]*fk.ForeignKey
	backref map[string][]*fk.ForeignKey
	// deferred is keyed by owning table, for column comments.
	deferred map[string][]*fk.ForeignKey
	count    int
}

// Begin breaks the reference cycles among tables and returns the plan.
// Inline constraints are keyed by owning table, deferred ones by the
// referenced table, after whose definition they are written.
func Begin(tables []string, fks []*fk.ForeignKey, logger *slog.Logger) *Plan {
	if logger == nil {
		logger = slog.Default()
	}

	known := make(map[string]bool, len(tables))
	for _, t := range tables {
		known[t] = true
	}
	var owned []*fk.ForeignKey
	for _, f := range fks {
		if known[f.FromTable] {
			owned = append(owned, f)
		}
	}

	g := graph.Build(tables, owned).WithLogger(logger)
	if passes := g.BreakCycles(); passes > 0 {
		logger.Debug("broke foreign key cycles",
			slog.Int("passes", passes),
			slog.Int("deferred", len(g.DeferredEdges())),
		)
	}

	p := &Plan{
		Tables:   g.TopologicalOrder(),
		inline:   make(map[string][]*fk.ForeignKey),
		backref:  make(map[string][]*fk.ForeignKey),
		deferred: make(map[string][]*fk.ForeignKey),
		count:    len(owned),
	}
	for _, f := range g.InlineEdges() {
		p.inline[f.FromTable] = append(p.inline[f.FromTable], f)
	}

	pos := make(map[string]int, len(p.Tables))
	for i, t := range p.Tables {
		pos[t] = i
	}
	for _, f := range g.DeferredEdges() {
		// The statement needs both tables to exist.
		at := f.ToTable
		if pos[f.FromTable] > pos[at] {
			at = f.FromTable
		}
		p.backref[at] = append(p.backref[at], f)
		p.deferred[f.FromTable] = append(p.deferred[f.FromTable], f)
	}
	return p
}

// HasForeignKeys reports whether the dump contains any constraint.
func (p *Plan) HasForeignKeys() bool {
	return p.count > 0
}

// Inline returns the constraints written inside table's definition.
func (p *Plan) Inline(table string) []*fk.ForeignKey {
	return slices.Clone(p.inline[table])
}

// Backrefs returns the deferred constraints written after table's
// definition.
func (p *Plan) Backrefs(table string) []*fk.ForeignKey {
	return slices.Clone(p.backref[table])
}

// DeferredFrom returns the deferred constraint owned by table whose
// first column is column, or nil.
func (p *Plan) DeferredFrom(table, column string) *fk.ForeignKey {
	for _, f := range p.deferred[table] {
		if f.Column() == column {
			return f
		}
	}
	return nil
}

// Deferred returns every deferred constraint, in emission order of the
// tables they are written after.
func (p *Plan) Deferred() []*fk.ForeignKey {
	var out []*fk.ForeignKey
	for _, t := range p.Tables {
		out = append(out, p.backref[t]...)
	}
	return out
}
