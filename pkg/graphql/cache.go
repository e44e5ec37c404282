package graphql

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/robfig/cron/v3"
)

// Cache defaults.
const (
	DefaultCacheTTL = 84000 * time.Second
	JanitorSchedule = "@every 1m"
)

// DefaultCacheMethods are the request methods whose responses are cached.
var DefaultCacheMethods = []string{"POST", "GET", "HEAD"}

type cacheEntry struct {
	resp    *Response
	expires time.Time
}

// Cache keeps successful responses for a fixed TTL, keyed by a hash of the
// query and its variables.
type Cache struct {
	mu      sync.RWMutex
	entries map[uint64]cacheEntry
	ttl     time.Duration
	methods map[string]bool
	now     func() time.Time
	janitor *cron.Cron
}

// NewCache creates a cache. A ttl <= 0 disables caching.
func NewCache(ttl time.Duration, methods []string) *Cache {
	allowed := make(map[string]bool, len(methods))
	for _, m := range methods {
		if m = strings.ToUpper(strings.TrimSpace(m)); m != "" {
			allowed[m] = true
		}
	}
	return &Cache{
		entries: make(map[uint64]cacheEntry),
		ttl:     ttl,
		methods: allowed,
		now:     time.Now,
	}
}

// Allows reports whether responses to method are cached.
func (c *Cache) Allows(method string) bool {
	return c != nil && c.ttl > 0 && c.methods[strings.ToUpper(method)]
}

// Key hashes the query text and the variables.
func (c *Cache) Key(req *Request) uint64 {
	return requestKey(req)
}

func requestKey(req *Request) uint64 {
	h := xxhash.New()
	h.WriteString(req.Query)
	h.WriteString("\x00")
	// encoding/json sorts map keys, so equal variables hash equally.
	vars, _ := json.Marshal(req.Variables)
	h.Write(vars)
	return h.Sum64()
}

// Get returns an unexpired response.
func (c *Cache) Get(key uint64) (*Response, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.now().After(e.expires) {
		return nil, false
	}
	return e.resp, true
}

// Set stores resp for the cache TTL.
func (c *Cache) Set(key uint64, resp *Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{resp: resp, expires: c.now().Add(c.ttl)}
}

// Purge drops expired entries and returns how many were dropped.
func (c *Cache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for key, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, key)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]cacheEntry)
}

// StartJanitor purges expired entries on JanitorSchedule.
func (c *Cache) StartJanitor() error {
	if c.janitor != nil {
		return nil
	}
	c.janitor = cron.New()
	if _, err := c.janitor.AddFunc(JanitorSchedule, func() { c.Purge() }); err != nil {
		c.janitor = nil
		return err
	}
	c.janitor.Start()
	return nil
}

// StopJanitor stops the purge schedule and waits for a running purge.
func (c *Cache) StopJanitor() {
	if c.janitor == nil {
		return
	}
	<-c.janitor.Stop().Done()
	c.janitor = nil
}
