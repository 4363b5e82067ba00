package graph

import "log/slog"

// BreakCycles defers edges until no component of the inline edge graph
// has more than one member. In each pass the lexically last table of
// every cyclic component is the break point: all of its edges into its
// own component are deferred. Self-references are never deferred.
//
// Each pass removes at least one edge, since a break point always has an
// edge into its component, so the loop ends on any finite graph. It
// returns the number of passes made.
func (g *Graph) BreakCycles() int {
	passes := 0
	for {
		cyclic := cyclicComponents(g.StronglyConnectedComponents())
		if len(cyclic) == 0 {
			return passes
		}
		passes++
		for _, component := range cyclic {
			g.breakComponent(component)
		}
	}
}

func (g *Graph) breakComponent(component []string) {
	breakPoint := component[len(component)-1]
	members := make(map[string]bool, len(component))
	for _, t := range component {
		members[t] = true
	}

	for i, e := range g.edges {
		if !g.inline[i] || e.FromTable != breakPoint || e.SelfReferential() || !members[e.ToTable] {
			continue
		}
		g.inline[i] = false
		g.deferred = append(g.deferred, i)
		g.logger.Debug("deferring foreign key to break reference cycle",
			slog.String("table", e.FromTable),
			slog.String("references", e.ToTable),
			slog.Any("columns", e.Columns),
			slog.String("name", e.Name),
		)
	}
}
