package server

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/maypok86/otter"

	"github.com/alparslanahmed/transcript-parser-go/internal/config"
)

// resultCache maps the SHA-256 of an uploaded PDF to its encoded parse result.
// A nil *resultCache is a disabled cache.
type resultCache struct {
	cache otter.Cache[string, []byte]
}

func newResultCache(cfg config.CacheConfig) (*resultCache, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	cache, err := otter.MustBuilder[string, []byte](cfg.Capacity).
		WithTTL(cfg.TTL).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build result cache: %w", err)
	}
	return &resultCache{cache: cache}, nil
}

func cacheKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (c *resultCache) get(key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	return c.cache.Get(key)
}

func (c *resultCache) set(key string, body []byte) {
	if c == nil {
		return
	}
	c.cache.Set(key, body)
}

func (c *resultCache) close() {
	if c == nil {
		return
	}
	c.cache.Close()
}
