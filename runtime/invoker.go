package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"
	"github.com/warriorguo/autoflow/plugin"
	"github.com/warriorguo/autoflow/types"
	"github.com/warriorguo/autoflow/utils"
)

var (
	_ types.StepContext = &stepContext{}
)

type stepContext struct {
	context.Context

	executionID string
	nodeID      string
	attempt     int
	maxRetries  int
}

func (s *stepContext) GetExecutionID() string {
	return s.executionID
}

func (s *stepContext) GetNodeID() string {
	return s.nodeID
}

func (s *stepContext) GetAttempt() int {
	return s.attempt
}

func (s *stepContext) GetMaxRetries() int {
	return s.maxRetries
}

func (s *stepContext) GetIdempotencyKey() string {
	return idempotencyKey(s.executionID, s.nodeID)
}

func idempotencyKey(executionID, nodeID string) string {
	return executionID + ":" + nodeID
}

// invoker runs one action or transform node: handler lookup, credential
// injection and the retry loop.
type invoker struct {
	registry     *plugin.Registry
	credentials  types.CredentialProvider
	defaultDelay time.Duration
	maxDelay     time.Duration
}

func newInvoker(registry *plugin.Registry, credentials types.CredentialProvider, opts *types.EngineOptions) *invoker {
	return &invoker{
		registry:     registry,
		credentials:  credentials,
		defaultDelay: opts.DefaultRetryDelay,
		maxDelay:     opts.MaxRetryDelay,
	}
}

func fatalResult(nodeID string, err error) *types.StepResult {
	return &types.StepResult{
		Error: &types.StepExecutionError{NodeID: nodeID, Err: err},
	}
}

// invoke expects config to be resolved already. ctx stops new attempts and
// retry waits; an attempt already handed to its handler is never cancelled
// through it.
func (iv *invoker) invoke(ctx context.Context, executionID string, node *types.Node, config types.Data) *types.StepResult {
	resolved := &types.Node{ID: node.ID, Type: node.Type, Label: node.Label, Config: config}
	actionType := resolved.ActionType()
	if actionType == "" && node.Type == types.NodeTransform {
		return &types.StepResult{Success: true, Data: config}
	}

	desc, exists := iv.registry.GetHandler(actionType)
	if !exists {
		return fatalResult(node.ID, &types.UnknownActionError{NodeID: node.ID, ActionType: actionType})
	}

	var creds types.Credentials
	if integrationID := resolved.IntegrationID(); integrationID != "" {
		var err error
		if creds, err = iv.fetchCredentials(ctx, integrationID); err != nil {
			return fatalResult(node.ID, err)
		}
	}

	policy := desc.Retry
	if retryCfg, ok := config.GetData(types.ConfigRetry); ok {
		policy = policy.Override(retryCfg)
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			break
		}

		attempts++
		output, err := iv.attempt(ctx, desc.Handler, &stepContext{
			executionID: executionID,
			nodeID:      node.ID,
			attempt:     attempt,
			maxRetries:  policy.MaxRetries,
		}, policy.Timeout, config, creds)
		if err == nil {
			return &types.StepResult{Success: true, Data: output, Attempts: attempts}
		}
		lastErr = err

		var fatal *types.FatalError
		if errors.As(err, &fatal) {
			break
		}
		if attempt == policy.MaxRetries {
			break
		}

		wait := utils.Backoff(policy, attempt, iv.defaultDelay, iv.maxDelay)
		var retry *types.RetryError
		if errors.As(err, &retry) && retry.Backoff > 0 {
			wait = retry.Backoff
		}
		log.WithFields(log.Fields{"execution": executionID, "node": node.ID}).
			Debugf("attempt %d failed, retrying in %v: %v", attempt+1, wait, err)

		if !sleepCtx(ctx, wait) {
			break
		}
	}

	return &types.StepResult{
		Attempts: attempts,
		Error:    &types.StepExecutionError{NodeID: node.ID, Attempts: attempts, Err: lastErr},
	}
}

func (iv *invoker) fetchCredentials(ctx context.Context, integrationID string) (types.Credentials, error) {
	if iv.credentials == nil {
		return nil, &types.CredentialMissingError{IntegrationID: integrationID, Reason: "no credential provider"}
	}
	creds, err := iv.credentials.Fetch(ctx, integrationID)
	if err != nil {
		return nil, &types.CredentialMissingError{IntegrationID: integrationID, Reason: err.Error()}
	}
	if len(creds) == 0 {
		return nil, &types.CredentialMissingError{IntegrationID: integrationID, Reason: "empty credentials"}
	}
	return creds, nil
}

func (iv *invoker) attempt(ctx context.Context, handler types.ActionHandler, sc *stepContext,
	timeout time.Duration, config types.Data, creds types.Credentials) (output types.Data, retErr error) {
	defer func() {
		if r := recover(); r != nil {
			retErr = types.NewFatalError(fmt.Errorf("panic on %s: %v", sc.nodeID, r))
		}
	}()

	// a started attempt runs to completion even when the run is cancelled;
	// only the per-attempt timeout can cut it short
	attemptCtx := context.WithoutCancel(ctx)
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(attemptCtx, timeout)
		defer cancel()
	}
	sc.Context = attemptCtx

	// handlers must not mutate what other attempts see
	return handler.Invoke(sc, config.Clone(), creds)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
