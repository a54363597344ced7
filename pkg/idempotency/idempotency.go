package idempotency

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

const Header = "Idempotency-Key"

func Key(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(Header))
}

// Response is a recorded reply that can be served again for a repeated key.
type Response struct {
	Status int
	Body   []byte
}

type entry struct {
	resp    Response
	expires time.Time
}

// Cache remembers responses by key for ttl. Keys are scoped by the caller,
// e.g. prefixed with a session id.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, now: time.Now, entries: map[string]entry{}}
}

func (c *Cache) Get(key string) (Response, bool) {
	if key == "" {
		return Response{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Response{}, false
	}
	if c.now().After(e.expires) {
		delete(c.entries, key)
		return Response{}, false
	}
	return e.resp, true
}

// Put records resp. Server errors are not recorded so the client can retry.
func (c *Cache) Put(key string, resp Response) {
	if key == "" || resp.Status >= 500 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = entry{resp: resp, expires: now.Add(c.ttl)}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
