package runtime

import (
	"context"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/google/uuid"
	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"
	"github.com/warriorguo/autoflow/graph"
	"github.com/warriorguo/autoflow/plugin"
	"github.com/warriorguo/autoflow/store"
	"github.com/warriorguo/autoflow/types"
)

var (
	_ types.Engine = &engine{}
)

func NewEngine(s store.Store, registry *plugin.Registry, opts *types.EngineOptions) types.Engine {
	return newEngine(s, registry, opts)
}

type engine struct {
	ctx    context.Context
	cancel context.CancelFunc

	store   store.Store
	wp      *workerpool.WorkerPool
	invoker *invoker
	sink    types.StatusSink
	runners *runners
}

func newEngine(s store.Store, registry *plugin.Registry, opts *types.EngineOptions) *engine {
	if opts == nil {
		opts = types.NewEngineOptions()
	}
	parent := opts.Ctx
	if parent == nil {
		parent = context.Background()
	}
	concurrency := opts.MaxNodeConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	e := &engine{}
	e.ctx, e.cancel = context.WithCancel(parent)
	e.store = s
	e.wp = workerpool.New(concurrency)
	e.invoker = newInvoker(registry, opts.CredentialProvider, opts)
	e.sink = opts.StatusSink
	e.runners = newRunners()
	return e
}

// prepare freezes and validates the request graph. Nothing runs on failure.
func (e *engine) prepare(req *types.RunRequest) (string, *graph.Topology, error) {
	if req == nil {
		return "", nil, errors.BadRequestf("nil run request")
	}
	g, err := types.NewWorkflowGraph(req.Nodes, req.Edges)
	if err != nil {
		return "", nil, errors.Trace(err)
	}
	if err := graph.Validate(g); err != nil {
		return "", nil, errors.Trace(err)
	}
	executionID := req.ExecutionID
	if executionID == "" {
		executionID = uuid.NewString()
	}
	return executionID, graph.NewTopology(g), nil
}

func (e *engine) notify(executionID string, record *types.NodeTraceRecord) {
	if e.sink != nil {
		e.sink.OnNodeStatus(executionID, record.NodeID, record.Status)
	}
}

// start registers the run and returns the context it is driven with,
// cancelled by CancelRun, by Close, or by parent.
func (e *engine) start(parent context.Context, executionID string) (context.Context, error) {
	runCtx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(e.ctx, cancel)
	if err := e.runners.add(newRunHandle(executionID, func() {
		stop()
		cancel()
	})); err != nil {
		stop()
		cancel()
		return nil, errors.Trace(err)
	}
	return runCtx, nil
}

func (e *engine) finish(executionID string) {
	if h := e.runners.get(executionID); h != nil {
		h.cancel()
	}
	e.runners.remove(executionID)
}

func (e *engine) RunSync(ctx context.Context, req *types.RunRequest) (*types.RunResult, error) {
	executionID, topo, err := e.prepare(req)
	if err != nil {
		return nil, errors.Trace(err)
	}
	runCtx, err := e.start(ctx, executionID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer e.finish(executionID)

	sched := newScheduler(executionID, topo, e.invoker, e.wp, req.TriggerInput, func(record *types.NodeTraceRecord) {
		e.notify(executionID, record)
	})
	status := sched.run(runCtx)

	result := &types.RunResult{
		ExecutionID:  executionID,
		Status:       status,
		NodeStatuses: make(map[string]types.NodeStatus, len(sched.statuses)),
		Outputs:      sched.outputs,
		Error:        sched.runError(status),
	}
	for id, st := range sched.statuses {
		result.NodeStatuses[id] = st
	}
	if errs := sched.nodeErrors(); len(errs) > 0 {
		result.NodeErrors = errs
	}
	return result, nil
}

func (e *engine) RunDurable(ctx context.Context, req *types.RunRequest) (string, error) {
	executionID, topo, err := e.prepare(req)
	if err != nil {
		return "", errors.Trace(err)
	}

	// registered before anything is persisted: a closed engine leaves no
	// row behind and concurrent redeliveries of one id collide here.
	// the request context ends with the caller, the run must not
	runCtx, err := e.start(e.ctx, executionID)
	if err != nil {
		return "", errors.Trace(err)
	}
	run, err := e.persistNewRun(ctx, executionID, req, topo)
	if err != nil {
		e.finish(executionID)
		return "", errors.Trace(err)
	}
	go e.drive(runCtx, run, topo, nil)
	return executionID, nil
}

func (e *engine) persistNewRun(ctx context.Context, executionID string, req *types.RunRequest,
	topo *graph.Topology) (*types.ExecutionRun, error) {
	existing, err := e.store.Get(ctx, store.RunPath, executionID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if existing != nil {
		return nil, errors.AlreadyExistsf("execution %s", executionID)
	}

	run := &types.ExecutionRun{
		ID:         executionID,
		WorkflowID: req.WorkflowID,
		Status:     types.RunRunning,
		Input:      req.TriggerInput,
		StartedAt:  time.Now(),
	}
	if err := e.saveGraph(ctx, executionID, topo.Graph().Snapshot()); err != nil {
		return nil, errors.Trace(err)
	}
	if err := e.saveRun(ctx, run); err != nil {
		return nil, errors.Trace(err)
	}
	return run, nil
}

// drive runs a durable execution to the end and persists every transition.
func (e *engine) drive(ctx context.Context, run *types.ExecutionRun, topo *graph.Topology,
	seed map[string]*types.NodeTraceRecord) {
	defer e.finish(run.ID)

	logger := log.WithField("execution", run.ID)
	persistCtx := context.WithoutCancel(ctx)

	sched := newScheduler(run.ID, topo, e.invoker, e.wp, run.Input, func(record *types.NodeTraceRecord) {
		if err := e.saveRecord(persistCtx, run.ID, record); err != nil {
			logger.Errorf("save record of %s failed: %v", record.NodeID, err)
		}
		e.notify(run.ID, record)
	})
	sched.seed(seed)
	status := sched.run(ctx)

	completedAt := time.Now()
	run.Status = status
	run.Output = sched.outputs
	run.Error = sched.runError(status)
	run.CompletedAt = &completedAt
	if err := e.saveRun(persistCtx, run); err != nil {
		logger.Errorf("save run failed: %v", err)
		return
	}
	logger.Debugf("run finished: %s", status)
}

func (e *engine) GetRun(ctx context.Context, executionID string) (*types.ExecutionRun, error) {
	run, err := e.loadRun(ctx, executionID)
	return run, errors.Trace(err)
}

func (e *engine) ListNodeRecords(ctx context.Context, executionID string) (map[string]*types.NodeTraceRecord, error) {
	if _, err := e.loadRun(ctx, executionID); err != nil {
		return nil, errors.Trace(err)
	}
	return e.loadRecords(ctx, executionID)
}

func (e *engine) CancelRun(ctx context.Context, executionID string) error {
	if h := e.runners.get(executionID); h != nil {
		h.cancel()
		return nil
	}

	run, err := e.loadRun(ctx, executionID)
	if err != nil {
		return errors.Trace(err)
	}
	if run.Status.IsTerminal() {
		return errors.NotValidf("execution %s already %s", executionID, run.Status)
	}

	// persisted as running but not driven here, e.g. not reloaded yet
	completedAt := time.Now()
	run.Status = types.RunCancelled
	run.Error = types.ErrRunCancelled.Error()
	run.CompletedAt = &completedAt
	return errors.Trace(e.saveRun(ctx, run))
}

func (e *engine) RenderRun(ctx context.Context, executionID string) (string, error) {
	snap, err := e.loadGraph(ctx, executionID)
	if err != nil {
		return "", errors.Trace(err)
	}
	records, err := e.loadRecords(ctx, executionID)
	if err != nil {
		return "", errors.Trace(err)
	}
	return newRunRenderer().generateDOT(executionID, snap, records), nil
}

func (e *engine) ReloadRuns(ctx context.Context) (map[string]error, error) {
	var ids []string
	err := e.store.List(ctx, store.RunPath, func(executionID string) bool {
		ids = append(ids, executionID)
		return true
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	errs := make(map[string]error)
	for _, executionID := range ids {
		resumed, err := e.resume(ctx, executionID)
		if err != nil {
			errs[executionID] = errors.Trace(err)
		} else if resumed {
			log.Infof("resumed execution %s", executionID)
		}
	}
	if len(errs) == 0 {
		errs = nil
	}
	return errs, nil
}

func (e *engine) resume(ctx context.Context, executionID string) (bool, error) {
	if e.runners.exists(executionID) {
		return false, errors.AlreadyExistsf("execution already running: %s", executionID)
	}
	run, err := e.loadRun(ctx, executionID)
	if err != nil {
		return false, errors.Trace(err)
	}
	if run.Status != types.RunRunning {
		return false, nil
	}

	snap, err := e.loadGraph(ctx, executionID)
	if err != nil {
		return false, errors.Trace(err)
	}
	g, err := types.NewWorkflowGraph(snap.Nodes, snap.Edges)
	if err != nil {
		return false, errors.Trace(err)
	}
	if err := graph.Validate(g); err != nil {
		return false, errors.Trace(err)
	}
	records, err := e.loadRecords(ctx, executionID)
	if err != nil {
		return false, errors.Trace(err)
	}

	runCtx, err := e.start(e.ctx, executionID)
	if err != nil {
		return false, errors.Trace(err)
	}
	go e.drive(runCtx, run, graph.NewTopology(g), records)
	return true, nil
}

func (e *engine) Close(ctx context.Context) error {
	e.cancel()
	if err := e.runners.stopWait(ctx); err != nil {
		return errors.Trace(err)
	}
	e.wp.StopWait()

	if closer, ok := e.store.(store.Closer); ok {
		return errors.Trace(closer.Close())
	}
	return nil
}
