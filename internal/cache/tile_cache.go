package cache

import (
	"fmt"
	"sync/atomic"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Tile is one rendered map tile
type Tile struct {
	ContentType string
	Data        []byte
}

// TileKey builds the cache key for tile z/x/y of an image
func TileKey(imageURL string, z, x, y int) string {
	return fmt.Sprintf("%d:%d:%d:%s", z, x, y, imageURL)
}

// TileCache keeps recently proxied tiles in memory with a TTL
type TileCache struct {
	lru    *expirable.LRU[string, Tile]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewTileCache creates a tile cache sized by cfg, falling back to defaults
func NewTileCache(cfg *Config) *TileCache {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	entries := cfg.MaxTiles
	if entries <= 0 {
		entries = DefaultConfig().MaxTiles
	}
	return &TileCache{
		lru: expirable.NewLRU[string, Tile](entries, nil, cfg.TTL()),
	}
}

// Get returns the cached tile for key
func (c *TileCache) Get(key string) (Tile, bool) {
	tile, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		return Tile{}, false
	}
	c.hits.Add(1)
	return tile, true
}

// Add stores tile under key. Empty tiles are not cached.
func (c *TileCache) Add(key string, tile Tile) {
	if len(tile.Data) == 0 {
		return
	}
	c.lru.Add(key, tile)
}

// Stats returns the current counters
func (c *TileCache) Stats() Stats {
	return Stats{
		Entries: c.lru.Len(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}
