// Package graph validates workflow graphs and indexes their edges for scheduling.
package graph

import (
	"sort"

	"github.com/warriorguo/autoflow/types"
	"github.com/warriorguo/autoflow/utils"
)

// Topology is a read-only adjacency index over a validated graph.
type Topology struct {
	graph    *types.WorkflowGraph
	order    []string
	incoming map[string][]types.Edge
	outgoing map[string][]types.Edge
}

func NewTopology(g *types.WorkflowGraph) *Topology {
	t := &Topology{
		graph:    g,
		order:    g.NodeIDs(),
		incoming: make(map[string][]types.Edge, len(g.Nodes)),
		outgoing: make(map[string][]types.Edge, len(g.Nodes)),
	}
	for _, e := range g.Edges {
		t.incoming[e.Target] = append(t.incoming[e.Target], e)
		t.outgoing[e.Source] = append(t.outgoing[e.Source], e)
	}
	for _, edges := range t.incoming {
		sortEdges(edges)
	}
	for _, edges := range t.outgoing {
		sortEdges(edges)
	}
	return t
}

func sortEdges(edges []types.Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		if edges[i].Target != edges[j].Target {
			return edges[i].Target < edges[j].Target
		}
		return edges[i].ID < edges[j].ID
	})
}

func (t *Topology) Graph() *types.WorkflowGraph {
	return t.graph
}

// NodeIDs are sorted.
func (t *Topology) NodeIDs() []string {
	return t.order
}

func (t *Topology) Node(id string) *types.Node {
	return t.graph.Nodes[id]
}

func (t *Topology) Incoming(id string) []types.Edge {
	return t.incoming[id]
}

func (t *Topology) Outgoing(id string) []types.Edge {
	return t.outgoing[id]
}

// Successors returns distinct direct successors of a node.
func (t *Topology) Successors(id string) []string {
	out := make([]string, 0, len(t.outgoing[id]))
	for _, e := range t.outgoing[id] {
		out = append(out, e.Target)
	}
	return utils.UniqueSlice(out)
}

// Trigger returns the id of the first trigger node in id order.
func (t *Topology) Trigger() (string, bool) {
	for _, id := range t.order {
		if t.graph.Nodes[id].Type == types.NodeTrigger {
			return id, true
		}
	}
	return "", false
}
