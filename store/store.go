package store

import "context"

// Key prefixes used by the engine.
const (
	RunPath         = "/run/"
	GraphPath       = "/graph/"
	WorkflowPath    = "/workflow/"
	IntegrationPath = "/integration/"
)

// RecordPath is the prefix holding the node trace records of one run.
func RecordPath(executionID string) string {
	return "/record/" + executionID
}

type Store interface {
	/**
	 * Get returns nil without error for an unexists prefix + key
	 */
	Get(ctx context.Context, prefix, key string) ([]byte, error)
	Set(ctx context.Context, prefix, key string, value []byte) error
	/**
	 * Remove a prefix and key
	 * remove an unexists prefix + key would NOT return error
	 */
	Remove(ctx context.Context, prefix, key string) error

	List(ctx context.Context, prefix string, iterator func(key string) bool) error
}

// Closer is implemented by stores holding connections.
type Closer interface {
	Close() error
}
