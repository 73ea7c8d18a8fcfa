package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warriorguo/autoflow/plugin"
	"github.com/warriorguo/autoflow/plugin/builtin"
	"github.com/warriorguo/autoflow/runtime"
	"github.com/warriorguo/autoflow/snapshot"
	"github.com/warriorguo/autoflow/store/mem"
	"github.com/warriorguo/autoflow/types"
)

const chain = `{
	"nodes": [
		{"id": "t", "type": "trigger"},
		{"id": "a", "type": "action", "config": {"actionType": "set", "values": {"echo": "{{t.msg}}"}}}
	],
	"edges": [{"id": "e1", "source": "t", "target": "a"}]
}`

func newTestServer(t *testing.T) *Server {
	s := mem.NewMemStore()
	opts := types.NewEngineOptions()
	opts.MemStore = true
	engine := runtime.NewEngine(s, plugin.MustNewRegistry(builtin.Descriptors()...), opts)
	t.Cleanup(func() { engine.Close(context.Background()) })
	return New(engine, snapshot.NewProvider(s))
}

func do(t *testing.T, srv *Server, method, path, body string, headers ...string) (int, map[string]any) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := srv.App().Test(req)
	assert.Nil(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	assert.Nil(t, err)
	out := map[string]any{}
	if len(b) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		assert.Nil(t, json.Unmarshal(b, &out))
	}
	return resp.StatusCode, out
}

// waitStatus polls the run until it leaves running.
func waitStatus(t *testing.T, srv *Server, executionID string) map[string]any {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		code, run := do(t, srv, http.MethodGet, "/api/runs/"+executionID, "")
		assert.Equal(t, http.StatusOK, code)
		if run["status"] != string(types.RunRunning) {
			return run
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run %s did not finish", executionID)
	return nil
}

func TestHealthz(t *testing.T) {
	code, body := do(t, newTestServer(t), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestTestRun(t *testing.T) {
	srv := newTestServer(t)
	body := strings.Replace(chain, `"edges"`, `"triggerInput": {"msg": "hi"}, "edges"`, 1)

	code, result := do(t, srv, http.MethodPost, "/api/runs/test", body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", result["status"])
	assert.NotEmpty(t, result["executionId"])
	assert.Equal(t, map[string]any{"t": "success", "a": "success"}, result["nodeStatuses"])
	assert.Equal(t, "hi", result["outputs"].(map[string]any)["a"].(map[string]any)["echo"])
}

func TestTestRunInvalidGraph(t *testing.T) {
	srv := newTestServer(t)

	code, result := do(t, srv, http.MethodPost, "/api/runs/test", `{"nodes": [{"id": "a", "type": "action"}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, string(types.NoTrigger), result["code"])

	code, _ = do(t, srv, http.MethodPost, "/api/runs/test", `{not json`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestDurableRunLifecycle(t *testing.T) {
	srv := newTestServer(t)

	code, started := do(t, srv, http.MethodPost, "/api/runs", chain)
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "running", started["status"])
	executionID := started["executionId"].(string)

	run := waitStatus(t, srv, executionID)
	assert.Equal(t, "success", run["status"])
	assert.NotNil(t, run["completedAt"])

	code, records := do(t, srv, http.MethodGet, "/api/runs/"+executionID+"/nodes", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", records["a"].(map[string]any)["status"])

	req := httptest.NewRequest(http.MethodGet, "/api/runs/"+executionID+"/dot", nil)
	resp, err := srv.App().Test(req)
	assert.Nil(t, err)
	dot, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(dot), "digraph D {")

	code, _ = do(t, srv, http.MethodDelete, "/api/runs/"+executionID, "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, srv, http.MethodGet, "/api/runs/missing", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestWebhook(t *testing.T) {
	srv := newTestServer(t)

	code, _ := do(t, srv, http.MethodPost, "/api/webhooks/orders", `{"msg": "x"}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, srv, http.MethodPut, "/api/workflows/orders", chain)
	assert.Equal(t, http.StatusNoContent, code)

	code, started := do(t, srv, http.MethodPost, "/api/webhooks/orders", `{"msg": "order-7"}`, "Idempotency-Key", "hook-1")
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "hook-1", started["executionId"])

	run := waitStatus(t, srv, "hook-1")
	assert.Equal(t, "success", run["status"])
	assert.Equal(t, "orders", run["workflowId"])
	assert.Equal(t, "order-7", run["output"].(map[string]any)["a"].(map[string]any)["echo"])

	code, _ = do(t, srv, http.MethodPost, "/api/webhooks/orders", `{"msg": "again"}`, "Idempotency-Key", "hook-1")
	assert.Equal(t, http.StatusConflict, code)

	// later requests reuse the buffers the first one was parsed from
	code, _ = do(t, srv, http.MethodPost, "/api/webhooks/missing-workflow", `{}`, "Idempotency-Key", "zzzzzz")
	assert.Equal(t, http.StatusNotFound, code)
	code, run = do(t, srv, http.MethodGet, "/api/runs/hook-1", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "hook-1", run["id"])
	assert.Equal(t, "orders", run["workflowId"])
	assert.True(t, srv.App().Config().Immutable)
}

func TestPutInvalidWorkflow(t *testing.T) {
	srv := newTestServer(t)
	code, result := do(t, srv, http.MethodPut, "/api/workflows/bad",
		`{"nodes": [{"id": "t", "type": "trigger"}], "edges": [{"id": "e", "source": "t", "target": "ghost"}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, string(types.DanglingEdge), result["code"])
}
