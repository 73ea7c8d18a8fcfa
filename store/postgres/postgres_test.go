package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/warriorguo/autoflow/store"
)

// AUTOFLOW_TEST_POSTGRES holds a DSN in key=value form; tests needing a
// database are skipped without it.
func skipIfNoPostgres(t *testing.T) store.Store {
	dsn := os.Getenv("AUTOFLOW_TEST_POSTGRES")
	if dsn == "" {
		t.Skip("AUTOFLOW_TEST_POSTGRES not set")
	}
	config, err := ParseDSN(dsn)
	if err != nil {
		t.Skipf("bad AUTOFLOW_TEST_POSTGRES: %v", err)
	}
	s, err := NewPostgresStore(context.Background(), config)
	if err != nil {
		t.Skipf("PostgreSQL not available: %v", err)
	}
	t.Cleanup(func() { s.(store.Closer).Close() })
	return s
}

func TestPostgresStore(t *testing.T) {
	s := skipIfNoPostgres(t)
	ctx := context.Background()
	prefix := "/test-pq/"

	assert.Nil(t, s.Set(ctx, prefix, "b", []byte{0x00, 0xFF}))
	assert.Nil(t, s.Set(ctx, prefix, "a", []byte("v1")))
	assert.Nil(t, s.Set(ctx, prefix, "a", []byte("v2")))

	v, err := s.Get(ctx, prefix, "a")
	assert.Nil(t, err)
	assert.Equal(t, "v2", string(v))

	v, err = s.Get(ctx, prefix, "b")
	assert.Nil(t, err)
	assert.Equal(t, []byte{0x00, 0xFF}, v)

	v, err = s.Get(ctx, prefix, "missing")
	assert.Nil(t, err)
	assert.Nil(t, v)

	var keys []string
	assert.Nil(t, s.List(ctx, prefix, func(key string) bool {
		keys = append(keys, key)
		return true
	}))
	assert.Equal(t, []string{"a", "b"}, keys)

	assert.Nil(t, s.Remove(ctx, prefix, "a"))
	assert.Nil(t, s.Remove(ctx, prefix, "b"))
	assert.Nil(t, s.Remove(ctx, prefix, "b"))
}

func TestValidate(t *testing.T) {
	assert.Nil(t, Validate(DefaultConfig()))

	mutations := []func(c *Config){
		func(c *Config) { c.Host = "" },
		func(c *Config) { c.Port = 0 },
		func(c *Config) { c.Port = 70000 },
		func(c *Config) { c.User = "" },
		func(c *Config) { c.Database = "" },
		func(c *Config) { c.SSLMode = "sometimes" },
	}
	for _, mutate := range mutations {
		c := DefaultConfig()
		mutate(c)
		assert.True(t, errors.Is(Validate(c), errors.NotValid))
	}
	assert.True(t, errors.Is(Validate(nil), errors.NotValid))

	c := DefaultConfig()
	c.SSLMode = ""
	assert.Nil(t, Validate(c))
	assert.Equal(t, "disable", c.SSLMode)
}

func TestDSNRoundTrip(t *testing.T) {
	c := &Config{Host: "db", Port: 5433, User: "u", Password: "p", Database: "flows", SSLMode: "require"}
	dsn := DSN(c)
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=flows sslmode=require", dsn)

	parsed, err := ParseDSN(dsn)
	assert.Nil(t, err)
	assert.Equal(t, c, parsed)

	_, err = ParseDSN("port=abc")
	assert.NotNil(t, err)
}
