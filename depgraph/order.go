package depgraph

import (
	"fmt"
	"sort"

	"github.com/leaderwolfpipi/mcp-autogen-sub001/config"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/logger"
	"github.com/leaderwolfpipi/mcp-autogen-sub001/types"
)

// MinConfidence is the edge confidence below which the order builder
// ignores an inferred edge.
const MinConfidence = 0.3

// Plan is the computed execution order plus validation findings.
type Plan struct {
	// Order lists node ids in execution order, covering every node.
	Order []string

	// Heuristic is true when a cycle forced the priority-based fallback.
	Heuristic bool

	// Warnings lists ordering violations and cycle notices. Warnings never
	// abort execution.
	Warnings []string
}

// BuildOrder computes the execution order for a pipeline. It keeps edges
// with confidence >= MinConfidence, attempts a topological sort, and falls
// back to the category-priority heuristic on a cycle. The returned order
// always covers every node.
func BuildOrder(spec *types.PipelineSpec, edges []Edge, tables *config.Tables, categoryOf func(toolType string) string) *Plan {
	if categoryOf == nil {
		categoryOf = func(string) string { return config.CategoryOther }
	}

	kept := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if e.Confidence >= MinConfidence {
			kept = append(kept, e)
		}
	}

	plan := &Plan{}
	order, ok := topoSort(spec, kept)
	if ok {
		plan.Order = order
	} else {
		plan.Heuristic = true
		plan.Warnings = append(plan.Warnings, "dependency cycle detected, using heuristic order")
		logger.Warn("Dependency cycle detected, falling back to heuristic order",
			"pipeline", spec.PipelineID)
		plan.Order = heuristicOrder(spec, kept, tables, categoryOf)
	}

	plan.Warnings = append(plan.Warnings, validate(plan.Order, kept)...)
	return plan
}

// topoSort runs a DFS topological sort with cycle detection. Nodes are
// visited in id order so the result is deterministic. Returns false on a
// cycle.
func topoSort(spec *types.PipelineSpec, edges []Edge) ([]string, bool) {
	successors := make(map[string][]string)
	for _, e := range edges {
		successors[e.Source] = append(successors[e.Source], e.Target)
	}
	for _, targets := range successors {
		sort.Strings(targets)
	}

	// Roots are visited in descending id order; the final reversal then
	// yields ascending ids among unordered nodes.
	ids := make([]string, 0, len(spec.Components))
	for _, n := range spec.Components {
		ids = append(ids, n.ID)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(ids))
	var order []string

	var visit func(id string) bool
	visit = func(id string) bool {
		switch state[id] {
		case done:
			return true
		case visiting:
			return false
		}
		state[id] = visiting
		for _, next := range successors[id] {
			if !visit(next) {
				return false
			}
		}
		state[id] = done
		order = append(order, id)
		return true
	}

	for _, id := range ids {
		if !visit(id) {
			return nil, false
		}
	}

	// DFS finishes consumers before producers; reverse for execution order.
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, true
}

// heuristicOrder sorts nodes by (category priority, -in_degree,
// out_degree, id). Data sources run first, storage last, and within a
// tier heavily depended-on nodes go earlier.
func heuristicOrder(spec *types.PipelineSpec, edges []Edge, tables *config.Tables, categoryOf func(string) string) []string {
	inDeg := make(map[string]int)
	outDeg := make(map[string]int)
	for _, e := range edges {
		outDeg[e.Source]++
		inDeg[e.Target]++
	}

	type ranked struct {
		id       string
		priority int
		inDeg    int
		outDeg   int
	}
	nodes := make([]ranked, 0, len(spec.Components))
	for _, n := range spec.Components {
		nodes = append(nodes, ranked{
			id:       n.ID,
			priority: tables.CategoryPriority(categoryOf(n.ToolType)),
			inDeg:    inDeg[n.ID],
			outDeg:   outDeg[n.ID],
		})
	}

	sort.Slice(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		if a.inDeg != b.inDeg {
			return a.inDeg > b.inDeg
		}
		if a.outDeg != b.outDeg {
			return a.outDeg < b.outDeg
		}
		return a.id < b.id
	})

	order := make([]string, len(nodes))
	for i, n := range nodes {
		order[i] = n.id
	}
	return order
}

// validate reports every edge whose source does not precede its target.
func validate(order []string, edges []Edge) []string {
	index := make(map[string]int, len(order))
	for i, id := range order {
		index[id] = i
	}

	var warnings []string
	for _, e := range edges {
		si, sok := index[e.Source]
		ti, tok := index[e.Target]
		if !sok || !tok {
			continue
		}
		if si >= ti {
			warnings = append(warnings, fmt.Sprintf(
				"order violation: %s should precede %s (confidence %.2f)",
				e.Source, e.Target, e.Confidence))
		}
	}
	return warnings
}
