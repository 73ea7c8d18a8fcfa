package types_test

import (
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warriorguo/autoflow/types"
)

type testStruct struct {
	Name   string
	Age    int
	IsMale bool
}

func TestData(t *testing.T) {
	data := &types.Data{}

	data.Set("teststruct1", testStruct{"hello", 4, false})
	data.Set("teststruct2", testStruct{"kitty", 5, true})

	hello := &testStruct{}
	kitty := &testStruct{}
	assert.Nil(t, data.GetStruct("teststruct1", hello))
	assert.Nil(t, data.GetStruct("teststruct2", kitty))
	assert.NotNil(t, data.GetStruct("missing", kitty))

	assert.Equal(t, "hello", hello.Name)
	assert.Equal(t, 4, hello.Age)
	assert.Equal(t, false, hello.IsMale)
	assert.Equal(t, "kitty", kitty.Name)
	assert.Equal(t, true, kitty.IsMale)

	data.Set("s1", 1)
	data.Set("s2", "2")
	data.Set("s3", math.Pi)
	data.Set("s4", true)

	_, exists := data.Get("s0")
	assert.False(t, exists)

	s, exists := data.GetString("s1")
	assert.True(t, exists)
	assert.Equal(t, "1", s)
	s, _ = data.GetString("s3")
	assert.Equal(t, strconv.FormatFloat(math.Pi, 'f', -1, 64), s)
	i, _ := data.GetInt("s2")
	assert.Equal(t, 2, i)
	b, _ := data.GetBool("s4")
	assert.True(t, b)
}

func TestDataNilReceiver(t *testing.T) {
	var data types.Data
	_, exists := data.Get("any")
	assert.False(t, exists)

	data.Set("k", "v")
	v, exists := data.GetString("k")
	assert.True(t, exists)
	assert.Equal(t, "v", v)
}

func TestDataDuration(t *testing.T) {
	data := types.Data{"str": "1500ms", "num": 250, "bad": "soon"}

	d, ok := data.GetDuration("str")
	assert.True(t, ok)
	assert.Equal(t, 1500*time.Millisecond, d)

	d, ok = data.GetDuration("num")
	assert.True(t, ok)
	assert.Equal(t, 250*time.Millisecond, d)

	_, ok = data.GetDuration("bad")
	assert.False(t, ok)
	_, ok = data.GetDuration("missing")
	assert.False(t, ok)
}

func TestDataCloneIsDeep(t *testing.T) {
	orig := types.Data{"nested": map[string]any{"count": 1}, "list": []any{"a"}}
	cp := orig.Clone()

	orig["nested"].(map[string]any)["count"] = 2
	orig["list"].([]any)[0] = "b"

	nested, ok := cp.GetData("nested")
	assert.True(t, ok)
	n, _ := nested.GetInt("count")
	assert.Equal(t, 1, n)
	assert.Equal(t, "a", cp["list"].([]any)[0])
	assert.Nil(t, types.Data(nil).Clone())
}
