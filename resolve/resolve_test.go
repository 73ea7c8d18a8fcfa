package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warriorguo/autoflow/types"
)

func outputs() types.OutputStore {
	return types.OutputStore{
		"n1": types.Data{"count": 5},
		"trigger": types.Data{
			"user":  map[string]any{"name": "ada", "tags": []any{"x", "y"}},
			"ok":    true,
			"price": 9.5,
		},
	}
}

func TestLabelledReference(t *testing.T) {
	s, warnings := String("{{@n1:Foo.count}}", outputs())
	assert.Equal(t, "5", s)
	assert.Empty(t, warnings)
}

func TestReferenceForms(t *testing.T) {
	cases := map[string]string{
		"{{n1.count}}":                   "5",
		"{{ n1.count }}":                 "5",
		"hello {{trigger.user.name}}!":   "hello ada!",
		"{{trigger.user.tags.1}}":        "y",
		"{{trigger.ok}}/{{trigger.price}}": "true/9.5",
		"{{$n1}}":                        `{"count":5}`,
		"{{$trigger.user.tags}}":         `["x","y"]`,
		"{{@trigger:My Trigger.user.name}}": "ada",
	}
	for in, want := range cases {
		got, warnings := String(in, outputs())
		assert.Equal(t, want, got, in)
		assert.Empty(t, warnings, in)
	}
}

func TestMissingReferences(t *testing.T) {
	s, warnings := String("a{{ghost.x}}b{{n1.missing}}c{{trigger.user.tags.7}}", outputs())
	assert.Equal(t, "abc", s)
	assert.Len(t, warnings, 3)
	assert.Equal(t, "ghost.x", warnings[0].Reference)
	assert.Contains(t, warnings[1].String(), "missing")
}

func TestIdentityAndIdempotence(t *testing.T) {
	for _, s := range []string{"", "plain text", "{ not a placeholder }", "{{}}"} {
		got, _ := String(s, outputs())
		assert.Equal(t, s, got)
	}

	once, _ := String("count={{n1.count}}", outputs())
	twice, warnings := String(once, outputs())
	assert.Equal(t, once, twice)
	assert.Empty(t, warnings)
}

func TestInsertedPlaceholdersAreNotRescanned(t *testing.T) {
	outs := outputs()
	outs["hook"] = types.Data{"body": "hello {{trigger.ok}}"}

	got, warnings := String("got: {{hook.body}}", outs)
	assert.Equal(t, "got: hello {{trigger.ok}}", got)
	assert.Empty(t, warnings)

	cfg, warnings := Config(types.Data{"text": "{{hook.body}}", "nested": []any{"{{ hook.body }}"}}, outs)
	assert.Empty(t, warnings)
	assert.Equal(t, "hello {{trigger.ok}}", cfg["text"])
	assert.Equal(t, []any{"hello {{trigger.ok}}"}, cfg["nested"])
}

func TestResolveTree(t *testing.T) {
	cfg := types.Data{
		"url":     "https://api/{{trigger.user.name}}",
		"retries": 3,
		"headers": map[string]any{"X-Count": "{{n1.count}}"},
		"list":    []any{"{{trigger.ok}}", 1, map[string]any{"deep": "{{@n1:Counter.count}}"}},
		"names":   []string{"{{trigger.user.name}}"},
	}
	out, warnings := Config(cfg, outputs())
	assert.Empty(t, warnings)

	assert.Equal(t, "https://api/ada", out["url"])
	assert.Equal(t, 3, out["retries"])
	assert.Equal(t, "5", out["headers"].(map[string]any)["X-Count"])
	list := out["list"].([]any)
	assert.Equal(t, "true", list[0])
	assert.Equal(t, 1, list[1])
	assert.Equal(t, "5", list[2].(map[string]any)["deep"])
	assert.Equal(t, []any{"ada"}, out["names"])

	// input untouched
	assert.Equal(t, "{{n1.count}}", cfg["headers"].(map[string]any)["X-Count"])
}

func TestSingleReference(t *testing.T) {
	ref, ok := SingleReference(" {{trigger.user.name}} ")
	assert.True(t, ok)
	assert.Equal(t, "trigger", ref.NodeID)
	assert.Equal(t, []string{"user", "name"}, ref.Path)

	_, ok = SingleReference("x {{trigger.ok}}")
	assert.False(t, ok)
	_, ok = SingleReference("{{a.b}}{{c.d}}")
	assert.False(t, ok)

	v, w := Lookup(ref, outputs())
	assert.Nil(t, w)
	assert.Equal(t, "ada", v)
}

func TestConfigNil(t *testing.T) {
	out, warnings := Config(nil, outputs())
	assert.NotNil(t, out)
	assert.Empty(t, warnings)
}
