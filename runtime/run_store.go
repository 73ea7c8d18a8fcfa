package runtime

import (
	"context"

	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"
	"github.com/warriorguo/autoflow/store"
	"github.com/warriorguo/autoflow/types"
	"github.com/warriorguo/autoflow/utils"
)

func (e *engine) saveRun(ctx context.Context, run *types.ExecutionRun) error {
	b, err := utils.Serialize(run)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(e.store.Set(ctx, store.RunPath, run.ID, b))
}

func (e *engine) loadRun(ctx context.Context, executionID string) (*types.ExecutionRun, error) {
	b, err := e.store.Get(ctx, store.RunPath, executionID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if b == nil {
		return nil, errors.NotFoundf("execution %s", executionID)
	}
	run := &types.ExecutionRun{}
	if err := utils.Unserialize(b, run); err != nil {
		return nil, errors.Annotatef(err, "decode execution %s", executionID)
	}
	return run, nil
}

func (e *engine) saveGraph(ctx context.Context, executionID string, snap *types.GraphSnapshot) error {
	b, err := utils.Serialize(snap)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(e.store.Set(ctx, store.GraphPath, executionID, b))
}

func (e *engine) loadGraph(ctx context.Context, executionID string) (*types.GraphSnapshot, error) {
	b, err := e.store.Get(ctx, store.GraphPath, executionID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if b == nil {
		return nil, errors.NotFoundf("graph of execution %s", executionID)
	}
	snap := &types.GraphSnapshot{}
	if err := utils.Unserialize(b, snap); err != nil {
		return nil, errors.Annotatef(err, "decode graph of execution %s", executionID)
	}
	return snap, nil
}

func (e *engine) saveRecord(ctx context.Context, executionID string, record *types.NodeTraceRecord) error {
	b, err := utils.Serialize(record)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(e.store.Set(ctx, store.RecordPath(executionID), record.NodeID, b))
}

func (e *engine) loadRecords(ctx context.Context, executionID string) (map[string]*types.NodeTraceRecord, error) {
	records := make(map[string]*types.NodeTraceRecord)
	recordPath := store.RecordPath(executionID)
	err := e.store.List(ctx, recordPath, func(nodeID string) bool {
		b, err := e.store.Get(ctx, recordPath, nodeID)
		if err != nil {
			log.Errorf("load %s %s from store failed: %v", recordPath, nodeID, err)
			return true
		}
		if b == nil {
			return true
		}
		record := &types.NodeTraceRecord{}
		if err := utils.Unserialize(b, record); err != nil {
			log.Errorf("unserialize %s %s from store:%s failed: %v", recordPath, nodeID, string(b), err)
			return true
		}
		records[nodeID] = record
		return true
	})
	return records, errors.Trace(err)
}
