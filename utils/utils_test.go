package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warriorguo/autoflow/types"
)

func TestUniqueSlice(t *testing.T) {
	assert.Equal(t, []int{1}, UniqueSlice([]int{1, 1, 1}))
	assert.Equal(t, []int{1, 2, 3}, UniqueSlice([]int{1, 2, 2, 3, 3, 3}))
	assert.Equal(t, []string{"b", "a"}, UniqueSlice([]string{"b", "a", "b"}))

	in := []int{3, 3, 1}
	assert.Equal(t, []int{3, 1}, UniqueSlice(in))
	assert.Equal(t, []int{3, 3, 1}, in)
}

func TestCloneMap(t *testing.T) {
	m := map[string]int{"a": 1}
	c := CloneMap(m)
	c["b"] = 2
	assert.Len(t, m, 1)
	assert.Equal(t, 1, c["a"])
	assert.Nil(t, CloneMap[string, int](nil))
}

func TestBackoff(t *testing.T) {
	fixed := types.RetryPolicy{Delay: 100 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, Backoff(fixed, 0, time.Second, time.Minute))
	assert.Equal(t, 100*time.Millisecond, Backoff(fixed, 5, time.Second, time.Minute))

	exp := types.RetryPolicy{Delay: 100 * time.Millisecond, Backoff: types.BackoffExponential, MaxDelay: time.Second}
	assert.Equal(t, 100*time.Millisecond, Backoff(exp, 0, 0, 0))
	assert.Equal(t, 200*time.Millisecond, Backoff(exp, 1, 0, 0))
	assert.Equal(t, 800*time.Millisecond, Backoff(exp, 3, 0, 0))
	assert.Equal(t, time.Second, Backoff(exp, 4, 0, 0))
	assert.Equal(t, time.Second, Backoff(exp, 200, 0, 0))

	assert.Equal(t, 50*time.Millisecond, Backoff(types.RetryPolicy{}, 0, 50*time.Millisecond, time.Second))
}

func TestSerialize(t *testing.T) {
	b, err := Serialize(types.Data{"a": "b"})
	assert.Nil(t, err)

	var d types.Data
	assert.Nil(t, Unserialize(b, &d))
	assert.Equal(t, "b", d["a"])

	_, err = Serialize(func() {})
	assert.NotNil(t, err)
	assert.NotNil(t, Unserialize(nil, &d))
	assert.NotNil(t, Unserialize([]byte("{"), &d))
}
