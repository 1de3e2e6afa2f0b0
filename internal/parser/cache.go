package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"shipdecl/internal/domain"
)

// ResponseCache remembers provider answers for identical page content and mode, so a
// re-run over the same documents does not spend calls again.
type ResponseCache struct {
	cache *gocache.Cache
}

// NewResponseCache creates a cache. A zero ttl keeps entries until Flush.
func NewResponseCache(ttl time.Duration) *ResponseCache {
	cleanup := ttl * 2
	if ttl <= 0 {
		cleanup = 0
	}
	return &ResponseCache{cache: gocache.New(ttl, cleanup)}
}

// CacheKey derives the cache key for a page.
func CacheKey(content []byte, mode domain.ExtractionMode) string {
	sum := sha256.Sum256(content)
	return string(mode) + ":" + hex.EncodeToString(sum[:])
}

// Get returns the cached response text.
func (c *ResponseCache) Get(content []byte, mode domain.ExtractionMode) (string, bool) {
	if c == nil {
		return "", false
	}
	if val, found := c.cache.Get(CacheKey(content, mode)); found {
		return val.(string), true
	}
	return "", false
}

// Set stores response text with the default TTL.
func (c *ResponseCache) Set(content []byte, mode domain.ExtractionMode, text string) {
	if c == nil {
		return
	}
	c.cache.SetDefault(CacheKey(content, mode), text)
}

// Len returns the number of cached responses.
func (c *ResponseCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.ItemCount()
}

// Flush drops every entry.
func (c *ResponseCache) Flush() {
	if c == nil {
		return
	}
	c.cache.Flush()
}
