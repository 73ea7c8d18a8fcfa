package types

import (
	"fmt"
	"time"

	"github.com/juju/errors"
)

var (
	_ error = &RetryError{}
	_ error = &FatalError{}
	_ error = &GraphValidationError{}
	_ error = &ConditionEvaluationError{}
	_ error = &StepExecutionError{}
	_ error = &CredentialMissingError{}
	_ error = &UnknownActionError{}
)

// ErrRunCancelled is recorded on runs that were cancelled while in flight.
var ErrRunCancelled = errors.New("run cancelled")

// NewRetryError lets a handler ask for another attempt after backoff
// instead of the policy delay.
func NewRetryError(otherErr error, backoff time.Duration) error {
	return &RetryError{baseError: newBaseErr(otherErr), Backoff: backoff}
}

func NewRetryErrorf(backoff time.Duration, format string, args ...interface{}) error {
	return NewRetryError(errors.Errorf(format, args...), backoff)
}

// NewFatalError stops the retry loop regardless of the remaining budget.
func NewFatalError(otherErr error) error {
	return &FatalError{baseError: newBaseErr(otherErr)}
}

func NewFatalErrorf(format string, args ...interface{}) error {
	return NewFatalError(errors.Errorf(format, args...))
}

func newBaseErr(otherErr error) *baseError {
	return &baseError{unwrapErr(otherErr)}
}

func unwrapErr(err error) error {
	if err == nil {
		return nil
	}
	if ue, ok := err.(wrappedErr); ok {
		return unwrapErr(ue.UnwrapLocal())
	}
	return err
}

type wrappedErr interface {
	UnwrapLocal() error
}

type baseError struct {
	BaseErr error
}

func (e *baseError) Error() string {
	return e.BaseErr.Error()
}

func (e *baseError) UnwrapLocal() error {
	return e.BaseErr
}

type RetryError struct {
	*baseError
	Backoff time.Duration
}

type FatalError struct {
	*baseError
}

type ValidationCode string

const (
	NoTrigger        ValidationCode = "NoTrigger"
	MultipleTriggers ValidationCode = "MultipleTriggers"
	CycleDetected    ValidationCode = "CycleDetected"
	DanglingEdge     ValidationCode = "DanglingEdge"
	DuplicateNode    ValidationCode = "DuplicateNode"
	UnknownNodeType  ValidationCode = "UnknownNodeType"
	InvalidNode      ValidationCode = "InvalidNode"
)

// GraphValidationError is fatal: a graph failing validation never starts a run.
type GraphValidationError struct {
	Code   ValidationCode
	Detail string
}

func NewGraphValidationError(code ValidationCode, format string, args ...interface{}) error {
	return &GraphValidationError{Code: code, Detail: fmt.Sprintf(format, args...)}
}

func (e *GraphValidationError) Error() string {
	return fmt.Sprintf("graph validation failed (%s): %s", e.Code, e.Detail)
}

// IsGraphValidationError reports whether err carries a validation failure
// and returns it.
func IsGraphValidationError(err error) (*GraphValidationError, bool) {
	var gve *GraphValidationError
	if errors.As(err, &gve) {
		return gve, true
	}
	return nil, false
}

// TemplateResolutionWarning is not an error: the reference resolves to "".
type TemplateResolutionWarning struct {
	Reference string
	Reason    string
}

func (w *TemplateResolutionWarning) String() string {
	return fmt.Sprintf("{{%s}}: %s", w.Reference, w.Reason)
}

// ConditionEvaluationError makes a condition evaluate to false.
type ConditionEvaluationError struct {
	Expression string
	Reason     string
}

func (e *ConditionEvaluationError) Error() string {
	return fmt.Sprintf("condition %q: %s", e.Expression, e.Reason)
}

// StepExecutionError is what a node reports after its retries ran out.
type StepExecutionError struct {
	NodeID   string
	Attempts int
	Err      error
}

func (e *StepExecutionError) Error() string {
	return e.Err.Error()
}

func (e *StepExecutionError) Unwrap() error {
	return e.Err
}

type CredentialMissingError struct {
	IntegrationID string
	Reason        string
}

func (e *CredentialMissingError) Error() string {
	return fmt.Sprintf("credentials for integration %s unavailable: %s", e.IntegrationID, e.Reason)
}

type UnknownActionError struct {
	NodeID     string
	ActionType string
}

func (e *UnknownActionError) Error() string {
	if e.ActionType == "" {
		return fmt.Sprintf("node %s has no actionType", e.NodeID)
	}
	return fmt.Sprintf("node %s: no handler registered for action %q", e.NodeID, e.ActionType)
}
