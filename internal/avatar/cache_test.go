package avatar

import (
	"strings"
	"sync"
	"testing"
)

func TestURLCache_GetPut(t *testing.T) {
	c := NewURLCache()
	if _, ok := c.Get("a", 128); ok {
		t.Fatal("empty cache should miss")
	}
	c.Put("a", 128, "/api/v1/avatar?name=a")
	if v, ok := c.Get("a", 128); !ok || v != "/api/v1/avatar?name=a" {
		t.Fatalf("Get = %q, %v", v, ok)
	}
	// size participates in the key
	if _, ok := c.Get("a", 256); ok {
		t.Fatal("different size must miss")
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d", c.Len())
	}
}

func TestURLCache_ConcurrentIdempotentWrites(t *testing.T) {
	c := NewURLCache()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			RouteURL(c, "/api/v1", "Harry Potter", 128)
		}()
	}
	wg.Wait()

	if c.Len() != 1 {
		t.Fatalf("Len = %d; want 1", c.Len())
	}
}

func TestRouteURL(t *testing.T) {
	u := RouteURL(nil, "/api/v1", "Harry Potter", 128)
	if !strings.HasPrefix(u, "/api/v1/avatar?") {
		t.Fatalf("unexpected route: %s", u)
	}
	if !strings.Contains(u, "name=Harry+Potter") || !strings.Contains(u, "width=128") || !strings.Contains(u, "height=128") {
		t.Fatalf("missing query params: %s", u)
	}

	c := NewURLCache()
	first := RouteURL(c, "/api/v1", "x", 64)
	second := RouteURL(c, "/api/v1", "x", 64)
	if first != second {
		t.Fatalf("memoized call differs: %q vs %q", first, second)
	}
}
