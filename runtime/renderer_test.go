package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warriorguo/autoflow/types"
)

func TestRenderRun(t *testing.T) {
	snap := &types.GraphSnapshot{
		Nodes: []types.Node{
			{ID: "t-1", Type: types.NodeTrigger, Label: "Webhook"},
			{ID: "check", Type: types.NodeCondition},
			{ID: "send", Type: types.NodeAction},
			{ID: "fail", Type: types.NodeAction},
			{ID: "todo", Type: types.NodeAction},
		},
		Edges: []types.Edge{
			{ID: "e1", Source: "t-1", Target: "check"},
			{ID: "e2", Source: "check", Target: "send"},
			{ID: "e3", Source: "t-1", Target: "fail"},
			{ID: "e4", Source: "fail", Target: "todo"},
		},
	}
	records := map[string]*types.NodeTraceRecord{
		"t-1":   {NodeID: "t-1", Status: types.StatusSuccess},
		"check": {NodeID: "check", Status: types.StatusSuccess},
		"send":  {NodeID: "send", Status: types.StatusRunning},
		"fail":  {NodeID: "fail", Status: types.StatusError, Error: "it's \"bad\""},
	}

	dot := newRunRenderer().generateDOT("exec.1", snap, records)
	t.Log(dot)

	assert.Contains(t, dot, `t_1 [label="Webhook" shape="oval" style="filled" color="green"`)
	assert.Contains(t, dot, `check [label="check" shape="diamond" style="filled" color="green"`)
	assert.Contains(t, dot, `send [label="send" shape="record" style="filled" color="yellow"`)
	assert.Contains(t, dot, `fail [label="fail" shape="record" style="filled" color="red"`)
	assert.Contains(t, dot, `todo [label="todo" shape="record" style="filled" color="white"]`)
	assert.Contains(t, dot, `t_1 -> check`)
	assert.Contains(t, dot, `check -> send [label="True"]`)
	assert.Contains(t, dot, `fail -> todo`)
	assert.Contains(t, dot, `label="exec.1"`)
	assert.NotContains(t, dot, `it's`)
}
