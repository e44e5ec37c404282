package graphql

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheAllows(t *testing.T) {
	tests := []struct {
		name    string
		cache   *Cache
		method  string
		allowed bool
	}{
		{"nil cache", nil, "POST", false},
		{"default post", NewCache(time.Minute, DefaultCacheMethods), "POST", true},
		{"lower case", NewCache(time.Minute, []string{"post"}), "POST", true},
		{"method not listed", NewCache(time.Minute, DefaultCacheMethods), "WS", false},
		{"disabled ttl", NewCache(0, DefaultCacheMethods), "POST", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.cache.Allows(tt.method))
		})
	}
}

func TestCacheKeyIsStable(t *testing.T) {
	c := NewCache(time.Minute, DefaultCacheMethods)
	a := &Request{ID: "1", Query: "query Q { a }", Variables: map[string]any{"x": 1, "y": "b"}}
	b := &Request{ID: "2", Query: "query Q { a }", Variables: map[string]any{"y": "b", "x": 1}}
	other := &Request{Query: "query Q { a }", Variables: map[string]any{"x": 2, "y": "b"}}

	assert.Equal(t, c.Key(a), c.Key(b), "request id and key order must not matter")
	assert.NotEqual(t, c.Key(a), c.Key(other))
}

func TestCacheExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache(time.Minute, DefaultCacheMethods)
	c.now = func() time.Time { return now }

	resp := &Response{Data: json.RawMessage(`{"a":1}`)}
	c.Set(1, resp)

	got, ok := c.Get(1)
	require.True(t, ok)
	assert.Same(t, resp, got)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestCachePurge(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache(time.Minute, DefaultCacheMethods)
	c.now = func() time.Time { return now }

	c.Set(1, &Response{})
	now = now.Add(30 * time.Second)
	c.Set(2, &Response{})
	now = now.Add(45 * time.Second)

	assert.Equal(t, 1, c.Purge())
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get(2)
	assert.True(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestCacheJanitorStartStop(t *testing.T) {
	c := NewCache(time.Minute, DefaultCacheMethods)
	require.NoError(t, c.StartJanitor())
	require.NoError(t, c.StartJanitor())
	c.StopJanitor()
	c.StopJanitor()
}
