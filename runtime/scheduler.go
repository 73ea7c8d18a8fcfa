package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	log "github.com/sirupsen/logrus"
	"github.com/warriorguo/autoflow/condition"
	"github.com/warriorguo/autoflow/graph"
	"github.com/warriorguo/autoflow/resolve"
	"github.com/warriorguo/autoflow/types"
)

// scheduler drives one run wave by wave. Only the goroutine calling run
// writes statuses, outputs and records; wave workers read outputs while no
// write happens.
type scheduler struct {
	executionID  string
	topo         *graph.Topology
	invoker      *invoker
	wp           *workerpool.WorkerPool
	triggerInput types.Data
	trigger      string

	statuses map[string]types.NodeStatus
	outputs  types.OutputStore
	records  map[string]*types.NodeTraceRecord

	// onRecord sees every status transition, in order.
	onRecord  func(record *types.NodeTraceRecord)
	cancelled bool
}

type nodeOutcome struct {
	nodeID   string
	success  bool
	input    types.Data
	output   types.Data
	err      string
	attempts int
	warnings []string
}

func newScheduler(executionID string, topo *graph.Topology, iv *invoker, wp *workerpool.WorkerPool,
	triggerInput types.Data, onRecord func(*types.NodeTraceRecord)) *scheduler {
	s := &scheduler{
		executionID:  executionID,
		topo:         topo,
		invoker:      iv,
		wp:           wp,
		triggerInput: triggerInput,
		statuses:     make(map[string]types.NodeStatus, len(topo.NodeIDs())),
		outputs:      make(types.OutputStore),
		records:      make(map[string]*types.NodeTraceRecord),
		onRecord:     onRecord,
	}
	// validated graphs carry exactly one trigger
	s.trigger, _ = topo.Trigger()
	for _, id := range topo.NodeIDs() {
		s.statuses[id] = types.StatusIdle
	}
	return s
}

// seed restores terminal nodes of a resumed run. Nodes recorded as running
// stay idle and are invoked again.
func (s *scheduler) seed(records map[string]*types.NodeTraceRecord) {
	for id, record := range records {
		if _, exists := s.statuses[id]; !exists || !record.Status.IsTerminal() {
			continue
		}
		s.statuses[id] = record.Status
		s.records[id] = record
		if record.Status == types.StatusSuccess {
			s.outputs[id] = record.Output
		}
	}
}

func (s *scheduler) logger() *log.Entry {
	return log.WithField("execution", s.executionID)
}

func (s *scheduler) emit(record *types.NodeTraceRecord) {
	s.records[record.NodeID] = record
	s.statuses[record.NodeID] = record.Status
	if s.onRecord != nil {
		s.onRecord(record)
	}
}

// run returns once no node is ready or skippable, or ctx is done.
func (s *scheduler) run(ctx context.Context) types.RunStatus {
	for wave := 1; ; wave++ {
		if ctx.Err() != nil {
			s.cancelled = true
			break
		}
		s.propagateSkips()

		ready := s.readyNodes()
		if len(ready) == 0 {
			break
		}
		s.logger().Debugf("wave %d: %v", wave, ready)

		for _, id := range ready {
			s.emit(&types.NodeTraceRecord{NodeID: id, Status: types.StatusRunning, StartTime: time.Now()})
		}

		outcomes := s.runWave(ctx, ready)
		if ctx.Err() != nil {
			s.cancelled = true
			break
		}
		for _, o := range outcomes {
			s.apply(o)
		}
	}
	return s.status()
}

func (s *scheduler) status() types.RunStatus {
	if s.cancelled {
		return types.RunCancelled
	}
	for _, st := range s.statuses {
		if st == types.StatusError {
			return types.RunError
		}
	}
	return types.RunSuccess
}

// active reports whether the edge lets its target run.
func (s *scheduler) active(e types.Edge) bool {
	if s.statuses[e.Source] != types.StatusSuccess {
		return false
	}
	if s.topo.Node(e.Source).Type != types.NodeCondition {
		return true
	}
	out := s.outputs[e.Source]
	result, _ := out.GetBool("result")
	return result
}

// settled reports whether every predecessor is terminal and whether at
// least one incoming edge is active.
func (s *scheduler) settled(id string) (allTerminal, anyActive bool) {
	for _, e := range s.topo.Incoming(id) {
		if !s.statuses[e.Source].IsTerminal() {
			return false, false
		}
		if s.active(e) {
			anyActive = true
		}
	}
	return true, anyActive
}

func (s *scheduler) propagateSkips() {
	for changed := true; changed; {
		changed = false
		for _, id := range s.topo.NodeIDs() {
			if s.statuses[id] != types.StatusIdle || id == s.trigger {
				continue
			}
			allTerminal, anyActive := s.settled(id)
			if allTerminal && !anyActive {
				now := time.Now()
				s.emit(&types.NodeTraceRecord{NodeID: id, Status: types.StatusSkipped, StartTime: now, EndTime: now})
				changed = true
			}
		}
	}
}

func (s *scheduler) readyNodes() []string {
	var ready []string
	for _, id := range s.topo.NodeIDs() {
		if s.statuses[id] != types.StatusIdle {
			continue
		}
		if id == s.trigger {
			ready = append(ready, id)
			continue
		}
		if allTerminal, anyActive := s.settled(id); allTerminal && anyActive {
			ready = append(ready, id)
		}
	}
	return ready
}

func (s *scheduler) runWave(ctx context.Context, ready []string) []*nodeOutcome {
	outcomes := make([]*nodeOutcome, len(ready))
	var wg sync.WaitGroup
	for i, id := range ready {
		i, node := i, s.topo.Node(id)
		wg.Add(1)
		s.wp.Submit(func() {
			defer wg.Done()
			outcomes[i] = s.execute(ctx, node)
		})
	}
	wg.Wait()
	return outcomes
}

func (s *scheduler) execute(ctx context.Context, node *types.Node) *nodeOutcome {
	o := &nodeOutcome{nodeID: node.ID}
	logger := s.logger().WithField("node", node.ID)

	switch node.Type {
	case types.NodeTrigger:
		o.success = true
		o.output = s.triggerInput.Clone()
		if o.output == nil {
			o.output = types.Data{}
		}

	case types.NodeCondition:
		res, err := condition.Evaluate(node, s.outputs)
		for _, w := range res.Warnings {
			o.warnings = append(o.warnings, w.String())
		}
		if err != nil {
			logger.Warnf("condition evaluated to false: %v", err)
			o.warnings = append(o.warnings, err.Error())
		}
		o.success = true
		o.input = types.Data{types.ConfigCondition: node.Config[types.ConfigCondition]}
		o.output = types.Data{"result": res.Value, "expression": res.Expression}

	default:
		config, warnings := resolve.Config(node.Config, s.outputs)
		for _, w := range warnings {
			logger.Warnf("template %s", w)
			o.warnings = append(o.warnings, w.String())
		}
		o.input = config

		result := s.invoker.invoke(ctx, s.executionID, node, config)
		o.attempts = result.Attempts
		if result.Success {
			o.success = true
			o.output = result.Data
			if o.output == nil {
				o.output = types.Data{}
			}
		} else {
			o.err = result.Error.Error()
			logger.Warnf("failed after %d attempt(s): %s", result.Attempts, o.err)
		}
	}
	return o
}

func (s *scheduler) apply(o *nodeOutcome) {
	record := &types.NodeTraceRecord{
		NodeID:   o.nodeID,
		Status:   types.StatusError,
		EndTime:  time.Now(),
		Attempts: o.attempts,
		Error:    o.err,
		Input:    o.input,
		Warnings: o.warnings,
	}
	if prev := s.records[o.nodeID]; prev != nil {
		record.StartTime = prev.StartTime
	}
	if o.success {
		record.Status = types.StatusSuccess
		record.Output = o.output
		s.outputs[o.nodeID] = o.output
	}
	s.emit(record)
}

// nodeErrors lists the error message of every failed node.
func (s *scheduler) nodeErrors() map[string]string {
	errs := make(map[string]string)
	for id, record := range s.records {
		if record.Status == types.StatusError {
			errs[id] = record.Error
		}
	}
	return errs
}

// runError summarises the run outcome for ExecutionRun.Error.
func (s *scheduler) runError(status types.RunStatus) string {
	switch status {
	case types.RunCancelled:
		return types.ErrRunCancelled.Error()
	case types.RunError:
		for _, id := range s.topo.NodeIDs() {
			if record := s.records[id]; record != nil && record.Status == types.StatusError {
				return "node " + id + ": " + record.Error
			}
		}
	}
	return ""
}
