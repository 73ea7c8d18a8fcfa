package credential

import (
	"context"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/warriorguo/autoflow/store/mem"
	"github.com/warriorguo/autoflow/types"
)

func TestStaticProvider(t *testing.T) {
	ctx := context.Background()
	src := map[string]types.Credentials{"slack": {"API_KEY": "xoxb"}}
	p := NewStaticProvider(src)
	src["slack"]["API_KEY"] = "changed"

	c, err := p.Fetch(ctx, "slack")
	assert.Nil(t, err)
	assert.Equal(t, "xoxb", c["API_KEY"])

	c["API_KEY"] = "mutated"
	c, _ = p.Fetch(ctx, "slack")
	assert.Equal(t, "xoxb", c["API_KEY"])

	_, err = p.Fetch(ctx, "github")
	assert.True(t, errors.Is(err, errors.NotFound))

	p.Put("github", types.Credentials{"API_KEY": "ghp"})
	c, err = p.Fetch(ctx, "github")
	assert.Nil(t, err)
	assert.Equal(t, "ghp", c["API_KEY"])
}

func TestStoreProvider(t *testing.T) {
	ctx := context.Background()
	p := NewStoreProvider(mem.NewMemStore())

	_, err := p.Fetch(ctx, "db")
	assert.True(t, errors.Is(err, errors.NotFound))

	assert.True(t, errors.Is(p.Save(ctx, "", types.Credentials{}), errors.BadRequest))
	assert.Nil(t, p.Save(ctx, "db", types.Credentials{"PASSWORD": "s3cret"}))

	c, err := p.Fetch(ctx, "db")
	assert.Nil(t, err)
	assert.Equal(t, types.Credentials{"PASSWORD": "s3cret"}, c)

	assert.Nil(t, p.Remove(ctx, "db"))
	_, err = p.Fetch(ctx, "db")
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestStoreProviderStoreFailure(t *testing.T) {
	p := NewStoreProvider(mem.NewMemStoreWithErrHandler(func() error {
		return errors.New("disk gone")
	}))
	_, err := p.Fetch(context.Background(), "db")
	assert.NotNil(t, err)
	assert.False(t, errors.Is(err, errors.NotFound))
}
