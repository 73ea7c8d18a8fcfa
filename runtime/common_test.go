package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warriorguo/autoflow/plugin"
	"github.com/warriorguo/autoflow/store"
	"github.com/warriorguo/autoflow/store/mem"
	"github.com/warriorguo/autoflow/types"
)

func newOptions() *types.EngineOptions {
	opts := types.NewEngineOptions()
	opts.MemStore = true
	opts.DefaultRetryDelay = time.Millisecond
	opts.MaxRetryDelay = 10 * time.Millisecond
	return opts
}

func newTestEngine(t *testing.T, s store.Store, opts *types.EngineOptions, descriptors ...plugin.Descriptor) *engine {
	if s == nil {
		s = mem.NewMemStore()
	}
	if opts == nil {
		opts = newOptions()
	}
	registry, err := plugin.NewRegistry(descriptors...)
	assert.Nil(t, err)
	e := newEngine(s, registry, opts)
	t.Cleanup(func() {
		assert.Nil(t, e.Close(context.Background()))
	})
	return e
}

// action counts invocations and fails the first failTimes of them.
type action struct {
	mu        sync.Mutex
	calls     int
	failTimes int
	sleep     time.Duration
	fail      func(attempt int) error
	configs   []types.Data
	keys      []string
	creds     []types.Credentials
}

func (a *action) Invoke(ctx types.StepContext, config types.Data, creds types.Credentials) (types.Data, error) {
	a.mu.Lock()
	a.calls++
	call := a.calls
	a.configs = append(a.configs, config)
	a.keys = append(a.keys, ctx.GetIdempotencyKey())
	a.creds = append(a.creds, creds)
	a.mu.Unlock()

	if a.sleep > 0 {
		time.Sleep(a.sleep)
	}
	if a.fail != nil {
		if err := a.fail(ctx.GetAttempt()); err != nil {
			return nil, err
		}
	}
	if call <= a.failTimes {
		return nil, types.NewRetryErrorf(0, "failure %d", call)
	}
	return types.Data{"call": call, "node": ctx.GetNodeID()}, nil
}

func (a *action) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func desc(actionType string, handler types.ActionHandler, maxRetries int) plugin.Descriptor {
	return plugin.Descriptor{
		ActionType: actionType,
		Handler:    handler,
		Retry:      types.RetryPolicy{MaxRetries: maxRetries, Delay: time.Millisecond},
	}
}

func trigger(id string) types.Node {
	return types.Node{ID: id, Type: types.NodeTrigger}
}

func actionNode(id, actionType string) types.Node {
	return types.Node{ID: id, Type: types.NodeAction, Config: types.Data{types.ConfigActionType: actionType}}
}

func condNode(id, expr string) types.Node {
	return types.Node{ID: id, Type: types.NodeCondition, Config: types.Data{types.ConfigCondition: expr}}
}

func edge(source, target string) types.Edge {
	return types.Edge{ID: source + "->" + target, Source: source, Target: target}
}

type sinkRecorder struct {
	mu     sync.Mutex
	events map[string][]types.NodeStatus
}

func newSinkRecorder() *sinkRecorder {
	return &sinkRecorder{events: make(map[string][]types.NodeStatus)}
}

func (s *sinkRecorder) OnNodeStatus(executionID, nodeID string, status types.NodeStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[nodeID] = append(s.events[nodeID], status)
}

func (s *sinkRecorder) get(nodeID string) []types.NodeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.NodeStatus(nil), s.events[nodeID]...)
}

func assertNoIdle(t *testing.T, statuses map[string]types.NodeStatus) {
	for id, status := range statuses {
		assert.True(t, status.IsTerminal(), "node %s ended %s", id, status)
	}
}
