package types

import (
	"context"
	"sort"
)

type NodeType string

const (
	NodeTrigger   NodeType = "trigger"
	NodeAction    NodeType = "action"
	NodeCondition NodeType = "condition"
	NodeTransform NodeType = "transform"
)

func (t NodeType) Valid() bool {
	switch t {
	case NodeTrigger, NodeAction, NodeCondition, NodeTransform:
		return true
	}
	return false
}

type NodeStatus string

const (
	StatusIdle    NodeStatus = "idle"
	StatusRunning NodeStatus = "running"
	StatusSuccess NodeStatus = "success"
	StatusError   NodeStatus = "error"
	StatusSkipped NodeStatus = "skipped"
)

func (s NodeStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusError || s == StatusSkipped
}

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSuccess   RunStatus = "success"
	RunError     RunStatus = "error"
	RunCancelled RunStatus = "cancelled"
)

func (s RunStatus) IsTerminal() bool {
	return s == RunSuccess || s == RunError || s == RunCancelled
}

// Well known config keys.
const (
	ConfigActionType    = "actionType"
	ConfigIntegrationID = "integrationId"
	ConfigCondition     = "condition"
	ConfigRetry         = "retry"
)

type Node struct {
	ID     string   `json:"id"`
	Type   NodeType `json:"type"`
	Label  string   `json:"label,omitempty"`
	Config Data     `json:"config,omitempty"`
}

// ActionType returns config.actionType, empty if unset.
func (n *Node) ActionType() string {
	s, _ := n.Config.GetString(ConfigActionType)
	return s
}

func (n *Node) IntegrationID() string {
	s, _ := n.Config.GetString(ConfigIntegrationID)
	return s
}

type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// GraphSnapshot is the wire shape of a workflow graph.
type GraphSnapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

type WorkflowGraph struct {
	Nodes map[string]*Node
	Edges []Edge
}

// NewWorkflowGraph indexes nodes by id. Node configs are deep copied so the
// graph stays frozen when the caller keeps mutating its own maps.
func NewWorkflowGraph(nodes []Node, edges []Edge) (*WorkflowGraph, error) {
	g := &WorkflowGraph{
		Nodes: make(map[string]*Node, len(nodes)),
		Edges: make([]Edge, len(edges)),
	}
	for i := range nodes {
		n := nodes[i]
		if n.ID == "" {
			return nil, NewGraphValidationError(InvalidNode, "node at index %d has no id", i)
		}
		if _, exists := g.Nodes[n.ID]; exists {
			return nil, NewGraphValidationError(DuplicateNode, "node %s declared twice", n.ID)
		}
		n.Config = n.Config.Clone()
		g.Nodes[n.ID] = &n
	}
	copy(g.Edges, edges)
	return g, nil
}

// NodeIDs returns node ids in sorted order.
func (g *WorkflowGraph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (g *WorkflowGraph) Snapshot() *GraphSnapshot {
	s := &GraphSnapshot{Edges: append([]Edge{}, g.Edges...)}
	for _, id := range g.NodeIDs() {
		s.Nodes = append(s.Nodes, *g.Nodes[id])
	}
	return s
}

type OutputStore map[string]Data

type Credentials map[string]string

type CredentialProvider interface {
	Fetch(ctx context.Context, integrationID string) (Credentials, error)
}

type SnapshotProvider interface {
	Snapshot(ctx context.Context, workflowID string) (*GraphSnapshot, error)
}

// StatusSink receives node status transitions for live display.
type StatusSink interface {
	OnNodeStatus(executionID, nodeID string, status NodeStatus)
}

type StatusSinkFunc func(executionID, nodeID string, status NodeStatus)

func (f StatusSinkFunc) OnNodeStatus(executionID, nodeID string, status NodeStatus) {
	f(executionID, nodeID, status)
}
