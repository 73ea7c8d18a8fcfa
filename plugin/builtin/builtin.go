// Package builtin provides the actions every engine ships with.
package builtin

import (
	"time"

	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"
	"github.com/warriorguo/autoflow/plugin"
	"github.com/warriorguo/autoflow/types"
)

const (
	ActionNoop        = "noop"
	ActionLog         = "log"
	ActionSet         = "set"
	ActionDelay       = "delay"
	ActionHTTPRequest = "http-request"
)

// Descriptors lists the builtin actions; pass them to plugin.NewRegistry
// together with any integration descriptors.
func Descriptors() []plugin.Descriptor {
	return []plugin.Descriptor{
		{ActionType: ActionNoop, Description: "does nothing", Handler: types.ActionHandlerFunc(noop)},
		{ActionType: ActionLog, Description: "writes config.message to the engine log", Handler: types.ActionHandlerFunc(logMessage)},
		{ActionType: ActionSet, Description: "outputs config.values", Handler: types.ActionHandlerFunc(set)},
		{ActionType: ActionDelay, Description: "waits config.duration", Handler: types.ActionHandlerFunc(delay)},
		{
			ActionType:  ActionHTTPRequest,
			Description: "sends an HTTP request",
			Handler:     NewHTTPRequest(nil),
			Retry: types.RetryPolicy{
				MaxRetries: 2,
				Delay:      500 * time.Millisecond,
				Backoff:    types.BackoffExponential,
				MaxDelay:   10 * time.Second,
				Timeout:    30 * time.Second,
			},
		},
	}
}

func noop(ctx types.StepContext, config types.Data, _ types.Credentials) (types.Data, error) {
	return types.Data{}, nil
}

func logMessage(ctx types.StepContext, config types.Data, _ types.Credentials) (types.Data, error) {
	msg, _ := config.GetString("message")
	level, _ := config.GetString("level")
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.WithFields(log.Fields{
		"execution": ctx.GetExecutionID(),
		"node":      ctx.GetNodeID(),
	}).Log(lvl, msg)
	return types.Data{"message": msg}, nil
}

func set(ctx types.StepContext, config types.Data, _ types.Credentials) (types.Data, error) {
	values, ok := config.GetData("values")
	if !ok {
		return types.Data{}, nil
	}
	return values, nil
}

func delay(ctx types.StepContext, config types.Data, _ types.Credentials) (types.Data, error) {
	d, ok := config.GetDuration("duration")
	if !ok || d < 0 {
		return nil, types.NewFatalError(errors.NotValidf("duration %v", config["duration"]))
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, errors.Trace(ctx.Err())
	case <-timer.C:
	}
	return types.Data{"waited": d.String()}, nil
}
