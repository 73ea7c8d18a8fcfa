package resolve

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"github.com/warriorguo/autoflow/types"
)

var placeholder = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// Reference is a parsed placeholder body.
type Reference struct {
	Raw    string
	NodeID string
	Path   []string
}

// ParseReference understands `nodeId.path`, `@nodeId:Label.path` and
// `$nodeId[.path]`. The label is cosmetic and dropped.
func ParseReference(raw string) (Reference, bool) {
	ref := Reference{Raw: raw}
	body := strings.TrimSpace(raw)

	switch {
	case strings.HasPrefix(body, "@"):
		body = body[1:]
		colon := strings.Index(body, ":")
		if colon < 0 {
			return splitPath(ref, body)
		}
		ref.NodeID = body[:colon]
		rest := body[colon+1:]
		if dot := strings.Index(rest, "."); dot >= 0 {
			ref.Path = splitSegments(rest[dot+1:])
		}
		return ref, ref.NodeID != ""

	case strings.HasPrefix(body, "$"):
		body = body[1:]
	}
	return splitPath(ref, body)
}

func splitPath(ref Reference, body string) (Reference, bool) {
	if dot := strings.Index(body, "."); dot >= 0 {
		ref.NodeID = body[:dot]
		ref.Path = splitSegments(body[dot+1:])
	} else {
		ref.NodeID = body
	}
	return ref, ref.NodeID != ""
}

func splitSegments(path string) []string {
	var out []string
	for _, seg := range strings.Split(path, ".") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// Lookup returns the raw value a reference points to.
func Lookup(ref Reference, outputs types.OutputStore) (any, *types.TemplateResolutionWarning) {
	output, exists := outputs[ref.NodeID]
	if !exists {
		return nil, &types.TemplateResolutionWarning{Reference: ref.Raw, Reason: "node " + ref.NodeID + " has no output"}
	}
	var cur any = output
	for _, seg := range ref.Path {
		next, ok := index(cur, seg)
		if !ok {
			return nil, &types.TemplateResolutionWarning{Reference: ref.Raw, Reason: "field " + seg + " not found"}
		}
		cur = next
	}
	return cur, nil
}

func index(cur any, seg string) (any, bool) {
	switch c := cur.(type) {
	case types.Data:
		v, ok := c[seg]
		return v, ok
	case map[string]any:
		v, ok := c[seg]
		return v, ok
	case map[string]string:
		v, ok := c[seg]
		return v, ok
	case []any:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(c) {
			return nil, false
		}
		return c[i], true
	case []string:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(c) {
			return nil, false
		}
		return c[i], true
	case []map[string]any:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(c) {
			return nil, false
		}
		return c[i], true
	}
	return nil, false
}

// SingleReference reports whether s is exactly one placeholder.
func SingleReference(s string) (Reference, bool) {
	trimmed := strings.TrimSpace(s)
	loc := placeholder.FindStringSubmatchIndex(trimmed)
	if loc == nil || loc[0] != 0 || loc[1] != len(trimmed) {
		return Reference{}, false
	}
	return ParseReference(trimmed[loc[2]:loc[3]])
}

// HasPlaceholder reports whether s contains any placeholder.
func HasPlaceholder(s string) bool {
	return placeholder.MatchString(s)
}

// String substitutes every placeholder in s. Unresolvable references become ""
// and are reported as warnings.
//
// Substitution is a single pass: text inserted from an output is never
// scanned again, so a value that itself contains "{{...}}" is kept verbatim.
// Resolving the result a second time is only a no-op when no inserted value
// contains a placeholder; the engine resolves each node config exactly once.
func String(s string, outputs types.OutputStore) (string, []*types.TemplateResolutionWarning) {
	var warnings []*types.TemplateResolutionWarning
	out := placeholder.ReplaceAllStringFunc(s, func(match string) string {
		body := placeholder.FindStringSubmatch(match)[1]
		ref, ok := ParseReference(body)
		if !ok {
			warnings = append(warnings, &types.TemplateResolutionWarning{Reference: body, Reason: "malformed reference"})
			return ""
		}
		v, w := Lookup(ref, outputs)
		if w != nil {
			warnings = append(warnings, w)
			return ""
		}
		return Stringify(v)
	})
	return out, warnings
}

// Resolve walks a config tree and substitutes placeholders in every string leaf.
func Resolve(value any, outputs types.OutputStore) (any, []*types.TemplateResolutionWarning) {
	var warnings []*types.TemplateResolutionWarning
	out := Walk(value, func(s string) any {
		if !HasPlaceholder(s) {
			return s
		}
		resolved, ws := String(s, outputs)
		warnings = append(warnings, ws...)
		return resolved
	})
	return out, warnings
}

// Config is Resolve specialised for node configs.
func Config(cfg types.Data, outputs types.OutputStore) (types.Data, []*types.TemplateResolutionWarning) {
	if cfg == nil {
		return types.Data{}, nil
	}
	out, warnings := Resolve(cfg, outputs)
	return out.(types.Data), warnings
}

// Stringify renders a referenced value for string substitution.
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case types.Data, map[string]any, map[string]string, []any, []string, []map[string]any:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		b, jerr := json.Marshal(v)
		if jerr != nil {
			return ""
		}
		return string(b)
	}
	return s
}
