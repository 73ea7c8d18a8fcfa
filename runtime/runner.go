package runtime

import (
	"context"
	"sync"

	"github.com/juju/errors"
)

// runHandle belongs to one run driven by this engine.
type runHandle struct {
	executionID string
	cancel      context.CancelFunc
	done        chan struct{}
}

func newRunHandle(executionID string, cancel context.CancelFunc) *runHandle {
	return &runHandle{
		executionID: executionID,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// runners tracks the runs in flight, keyed by execution id.
type runners struct {
	mu      sync.Mutex
	closed  bool
	wg      sync.WaitGroup
	handles map[string]*runHandle
}

func newRunners() *runners {
	return &runners{handles: make(map[string]*runHandle)}
}

func (r *runners) exists(executionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.handles[executionID]
	return exists
}

func (r *runners) get(executionID string) *runHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.handles[executionID]
}

func (r *runners) add(h *runHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.MethodNotAllowedf("engine closed")
	}
	if _, exists := r.handles[h.executionID]; exists {
		return errors.AlreadyExistsf("execution %s", h.executionID)
	}
	r.handles[h.executionID] = h
	r.wg.Add(1)
	return nil
}

func (r *runners) remove(executionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, exists := r.handles[executionID]
	if !exists {
		return
	}
	delete(r.handles, executionID)
	close(h.done)
	r.wg.Done()
}

// stopWait refuses new runs, cancels the ones in flight and waits for them.
func (r *runners) stopWait(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	for _, h := range r.handles {
		h.cancel()
	}
	r.mu.Unlock()

	doneCh := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(doneCh)
	}()
	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return errors.Annotate(ctx.Err(), "waiting for runs")
	}
}

// wait blocks until the run leaves the engine. Unknown runs return at once.
func (r *runners) wait(ctx context.Context, executionID string) error {
	h := r.get(executionID)
	if h == nil {
		return nil
	}
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	}
}
