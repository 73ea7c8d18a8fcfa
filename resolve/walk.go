// Package resolve substitutes {{...}} references in node configs with values
// taken from earlier node outputs.
package resolve

import "github.com/warriorguo/autoflow/types"

// LeafFunc rewrites a string leaf.
type LeafFunc func(s string) any

// Walk rebuilds value, passing every string leaf through fn. Containers are
// copied, the input is never mutated. Non-string leaves are returned as is.
func Walk(value any, fn LeafFunc) any {
	switch v := value.(type) {
	case string:
		return fn(v)
	case types.Data:
		return types.Data(walkMap(v, fn))
	case map[string]any:
		return walkMap(v, fn)
	case map[string]string:
		out := make(map[string]any, len(v))
		for k, s := range v {
			out[k] = fn(s)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Walk(item, fn)
		}
		return out
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = fn(s)
		}
		return out
	case []map[string]any:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = walkMap(m, fn)
		}
		return out
	}
	return value
}

func walkMap(m map[string]any, fn LeafFunc) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, item := range m {
		out[k] = Walk(item, fn)
	}
	return out
}
