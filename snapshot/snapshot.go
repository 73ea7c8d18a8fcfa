// Package snapshot stores the published graph of each workflow so webhooks
// can start runs by workflow id.
package snapshot

import (
	"context"

	"github.com/juju/errors"
	"github.com/warriorguo/autoflow/graph"
	"github.com/warriorguo/autoflow/store"
	"github.com/warriorguo/autoflow/types"
	"github.com/warriorguo/autoflow/utils"
)

var _ types.SnapshotProvider = &Provider{}

type Provider struct {
	store store.Store
}

func NewProvider(s store.Store) *Provider {
	return &Provider{store: s}
}

// Save validates the graph before replacing the stored snapshot.
func (p *Provider) Save(ctx context.Context, workflowID string, snap *types.GraphSnapshot) error {
	if workflowID == "" {
		return errors.BadRequestf("empty workflow id")
	}
	if snap == nil {
		return errors.BadRequestf("nil snapshot")
	}
	g, err := types.NewWorkflowGraph(snap.Nodes, snap.Edges)
	if err != nil {
		return errors.Trace(err)
	}
	if err := graph.Validate(g); err != nil {
		return errors.Trace(err)
	}
	b, err := utils.Serialize(g.Snapshot())
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(p.store.Set(ctx, store.WorkflowPath, workflowID, b))
}

func (p *Provider) Snapshot(ctx context.Context, workflowID string) (*types.GraphSnapshot, error) {
	b, err := p.store.Get(ctx, store.WorkflowPath, workflowID)
	if err != nil {
		return nil, errors.Annotatef(err, "load workflow %s", workflowID)
	}
	if b == nil {
		return nil, errors.NotFoundf("workflow %s", workflowID)
	}
	snap := &types.GraphSnapshot{}
	if err := utils.Unserialize(b, snap); err != nil {
		return nil, errors.Annotatef(err, "decode workflow %s", workflowID)
	}
	return snap, nil
}

func (p *Provider) Remove(ctx context.Context, workflowID string) error {
	return errors.Trace(p.store.Remove(ctx, store.WorkflowPath, workflowID))
}
