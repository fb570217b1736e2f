package avatar

import (
	"net/url"
	"strconv"
	"sync"
)

// URLCache memoizes previously constructed avatar route URLs keyed by
// (name, size). It is advisory only: entries are idempotent (recomputing the
// same key yields the same value), nothing is ever invalidated before
// process exit, and no invariant may rely on a hit. Inject a fresh instance
// per test instead of sharing module-level state.
type URLCache struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewURLCache returns an empty cache ready for concurrent use.
func NewURLCache() *URLCache {
	return &URLCache{m: make(map[string]string)}
}

func cacheKey(name string, size int) string {
	return name + "|" + strconv.Itoa(size)
}

// Get returns the memoized URL for (name, size), if any.
func (c *URLCache) Get(name string, size int) (string, bool) {
	c.mu.RLock()
	v, ok := c.m[cacheKey(name, size)]
	c.mu.RUnlock()
	return v, ok
}

// Put stores a URL for (name, size). Duplicate writes are harmless.
func (c *URLCache) Put(name string, size int, u string) {
	c.mu.Lock()
	c.m[cacheKey(name, size)] = u
	c.mu.Unlock()
}

// Len reports the number of memoized entries.
func (c *URLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// RouteURL returns the application's avatar-serving route for a character,
// memoized through cache when one is provided. The route performs resolution
// and redirect/proxy server-side; this merely saves rebuilding the query
// string on every render.
func RouteURL(cache *URLCache, basePath, name string, size int) string {
	if cache != nil {
		if u, ok := cache.Get(name, size); ok {
			return u
		}
	}

	q := url.Values{
		"name":   {name},
		"width":  {strconv.Itoa(size)},
		"height": {strconv.Itoa(size)},
	}
	u := basePath + "/avatar?" + q.Encode()

	if cache != nil {
		cache.Put(name, size, u)
	}
	return u
}
