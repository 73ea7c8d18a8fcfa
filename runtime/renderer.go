package runtime

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/warriorguo/autoflow/types"
)

func newRunRenderer() *runRenderer {
	return &runRenderer{nil, &strings.Builder{}}
}

type runRenderer struct {
	records map[string]*types.NodeTraceRecord
	sb      *strings.Builder
}

func (d *runRenderer) setRecords(records map[string]*types.NodeTraceRecord) {
	if records == nil {
		records = make(map[string]*types.NodeTraceRecord)
	}
	d.records = records
}

func (d *runRenderer) generateDOT(executionID string, snap *types.GraphSnapshot, records map[string]*types.NodeTraceRecord) string {
	d.setRecords(records)

	nodes := append([]types.Node(nil), snap.Nodes...)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	conditions := make(map[string]bool)

	d.write("digraph D {")
	for _, n := range nodes {
		if n.Type == types.NodeCondition {
			conditions[n.ID] = true
		}
		d.drawNode(n)
	}
	for _, e := range snap.Edges {
		if conditions[e.Source] {
			d.write("%s -> %s [label=\"True\"]", idString(e.Source), idString(e.Target))
			continue
		}
		d.write("%s -> %s", idString(e.Source), idString(e.Target))
	}
	d.write("label=%s", quoteString(executionID))
	d.write("}")
	return d.sb.String()
}

func packToComment(r *types.NodeTraceRecord) string {
	s, _ := json.Marshal(r)
	return formatNL(addSlashes(string(s)))
}

func statusColor(status types.NodeStatus) string {
	switch status {
	case types.StatusSuccess:
		return "green"
	case types.StatusError:
		return "red"
	case types.StatusRunning:
		return "yellow"
	case types.StatusSkipped:
		return "grey"
	default:
		return "white"
	}
}

func (d *runRenderer) calcAttr(nodeID string) string {
	record, exists := d.records[nodeID]
	if !exists {
		return fmt.Sprintf(" style=\"filled\" color=\"%s\"", statusColor(types.StatusIdle))
	}
	return fmt.Sprintf(" style=\"filled\" color=\"%s\" comment=\"%s\"", statusColor(record.Status), packToComment(record))
}

func nodeShape(t types.NodeType) string {
	switch t {
	case types.NodeCondition:
		return "diamond"
	case types.NodeTrigger:
		return "oval"
	default:
		return "record"
	}
}

func (d *runRenderer) drawNode(n types.Node) {
	label := n.Label
	if label == "" {
		label = n.ID
	}
	d.write("%s [label=%s shape=\"%s\"%s]", idString(n.ID), quoteString(label), nodeShape(n.Type), d.calcAttr(n.ID))
}

func (d *runRenderer) write(format string, s ...any) {
	d.sb.WriteString(fmt.Sprintf(format+"\n", s...))
}

var (
	slashesToken = []string{"\\", "\"", "'", " "}
)

func addSlashes(s string) string {
	for _, token := range slashesToken {
		s = strings.ReplaceAll(s, token, "\\"+token)
	}
	return s
}

func formatNL(s string) string {
	return strings.ReplaceAll(s, "\n", "\\n")
}

func quoteString(s string) string {
	return "\"" + strings.ReplaceAll(s, "\"", "\\\"") + "\""
}

var idleChars = []string{" ", "'", "\"", "(", ")", "*", "&", "^", "%", "$", "#", "@", "!", "?", "<", ">", "[", "]", "{", "}", ".", "-", ":"}

func idString(s string) string {
	for _, ch := range idleChars {
		s = strings.ReplaceAll(s, ch, "_")
	}
	return s
}
