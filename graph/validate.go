package graph

import (
	"strings"

	"github.com/warriorguo/autoflow/types"
)

const (
	white = iota
	gray
	black
)

// Validate checks node types, edge endpoints, the single root trigger and
// acyclicity. The returned error is a *types.GraphValidationError.
func Validate(g *types.WorkflowGraph) error {
	if g == nil || len(g.Nodes) == 0 {
		return types.NewGraphValidationError(types.NoTrigger, "graph has no nodes")
	}
	ids := g.NodeIDs()
	for _, id := range ids {
		if n := g.Nodes[id]; !n.Type.Valid() {
			return types.NewGraphValidationError(types.UnknownNodeType, "node %s has type %q", id, n.Type)
		}
	}

	for _, e := range g.Edges {
		if _, exists := g.Nodes[e.Source]; !exists {
			return types.NewGraphValidationError(types.DanglingEdge, "edge %s source %s does not exist", e.ID, e.Source)
		}
		if _, exists := g.Nodes[e.Target]; !exists {
			return types.NewGraphValidationError(types.DanglingEdge, "edge %s target %s does not exist", e.ID, e.Target)
		}
	}

	t := NewTopology(g)
	if err := checkTrigger(t); err != nil {
		return err
	}
	return checkAcyclic(t)
}

func checkTrigger(t *Topology) error {
	var roots, withIncoming []string
	for _, id := range t.NodeIDs() {
		if t.Node(id).Type != types.NodeTrigger {
			continue
		}
		if len(t.Incoming(id)) == 0 {
			roots = append(roots, id)
		} else {
			withIncoming = append(withIncoming, id)
		}
	}
	switch {
	case len(roots)+len(withIncoming) > 1:
		return types.NewGraphValidationError(types.MultipleTriggers, "found triggers %s",
			strings.Join(append(roots, withIncoming...), ", "))
	case len(withIncoming) == 1:
		return types.NewGraphValidationError(types.NoTrigger, "trigger %s has incoming edges", withIncoming[0])
	case len(roots) == 0:
		return types.NewGraphValidationError(types.NoTrigger, "graph has no trigger node")
	}
	return nil
}

// checkAcyclic colours nodes white/gray/black during a DFS; reaching a gray
// node again closes a cycle.
func checkAcyclic(t *Topology) error {
	colour := make(map[string]int, len(t.NodeIDs()))
	var path []string

	var visit func(id string) error
	visit = func(id string) error {
		colour[id] = gray
		path = append(path, id)
		for _, next := range t.Successors(id) {
			switch colour[next] {
			case gray:
				return types.NewGraphValidationError(types.CycleDetected, "cycle %s -> %s",
					strings.Join(cycleFrom(path, next), " -> "), next)
			case white:
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		colour[id] = black
		return nil
	}

	for _, id := range t.NodeIDs() {
		if colour[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

func cycleFrom(path []string, start string) []string {
	for i, id := range path {
		if id == start {
			return path[i:]
		}
	}
	return path
}
