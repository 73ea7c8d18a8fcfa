package types

import (
	"context"
	"time"
)

// StepContext is handed to every handler attempt.
type StepContext interface {
	context.Context

	GetExecutionID() string
	GetNodeID() string
	// GetAttempt is zero based.
	GetAttempt() int
	GetMaxRetries() int
	// GetIdempotencyKey is stable across attempts and resumes of the same node.
	GetIdempotencyKey() string
}

type ActionHandler interface {
	Invoke(ctx StepContext, config Data, credentials Credentials) (Data, error)
}

type ActionHandlerFunc func(ctx StepContext, config Data, credentials Credentials) (Data, error)

func (f ActionHandlerFunc) Invoke(ctx StepContext, config Data, credentials Credentials) (Data, error) {
	return f(ctx, config, credentials)
}

type BackoffKind string

const (
	BackoffFixed       BackoffKind = "fixed"
	BackoffExponential BackoffKind = "exponential"
)

type RetryPolicy struct {
	MaxRetries int           `json:"maxRetries,omitempty"`
	Delay      time.Duration `json:"delay,omitempty"`
	Backoff    BackoffKind   `json:"backoff,omitempty"`
	MaxDelay   time.Duration `json:"maxDelay,omitempty"`
	// Timeout bounds a single attempt, zero means none.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Override applies a node level "retry" object on top of the policy.
func (p RetryPolicy) Override(cfg Data) RetryPolicy {
	if cfg == nil {
		return p
	}
	if v, ok := cfg.GetInt("maxRetries"); ok {
		p.MaxRetries = v
	}
	if v, ok := cfg.GetDuration("delay"); ok {
		p.Delay = v
	}
	if v, ok := cfg.GetString("backoff"); ok {
		p.Backoff = BackoffKind(v)
	}
	if v, ok := cfg.GetDuration("maxDelay"); ok {
		p.MaxDelay = v
	}
	if v, ok := cfg.GetDuration("timeout"); ok {
		p.Timeout = v
	}
	return p
}

type StepResult struct {
	Success  bool
	Data     Data
	Error    error
	Attempts int
}
