// Package plugin holds the immutable action registry. Integrations describe
// themselves with Descriptor values and a single bootstrap call assembles them.
package plugin

import (
	"sort"

	"github.com/juju/errors"
	"github.com/warriorguo/autoflow/types"
)

type Descriptor struct {
	ActionType  string
	Description string
	Handler     types.ActionHandler
	Retry       types.RetryPolicy
}

type Registry struct {
	descriptors map[string]Descriptor
}

// NewRegistry fails on empty action types, nil handlers and duplicates.
func NewRegistry(descriptors ...Descriptor) (*Registry, error) {
	r := &Registry{descriptors: make(map[string]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if d.ActionType == "" {
			return nil, errors.BadRequestf("descriptor without action type")
		}
		if d.Handler == nil {
			return nil, errors.BadRequestf("action %s handler is nil", d.ActionType)
		}
		if d.Retry.MaxRetries < 0 {
			return nil, errors.NotValidf("action %s max retries %d", d.ActionType, d.Retry.MaxRetries)
		}
		if _, exists := r.descriptors[d.ActionType]; exists {
			return nil, errors.AlreadyExistsf("action %s", d.ActionType)
		}
		r.descriptors[d.ActionType] = d
	}
	return r, nil
}

// MustNewRegistry panics on error, for bootstrap code.
func MustNewRegistry(descriptors ...Descriptor) *Registry {
	r, err := NewRegistry(descriptors...)
	if err != nil {
		panic(errors.ErrorStack(err))
	}
	return r
}

func (r *Registry) GetHandler(actionType string) (Descriptor, bool) {
	if r == nil {
		return Descriptor{}, false
	}
	d, exists := r.descriptors[actionType]
	return d, exists
}

// ActionTypes is sorted.
func (r *Registry) ActionTypes() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.descriptors))
	for name := range r.descriptors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
