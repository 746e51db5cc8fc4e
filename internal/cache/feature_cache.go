package cache

import (
	"sync/atomic"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"imagery-compare/internal/geo"
	"imagery-compare/internal/stac"
)

// LookupKey identifies one catalog lookup. Coordinates are rounded to display
// precision so clicks on the same spot share an entry.
type LookupKey struct {
	Latitude   float64
	Longitude  float64
	Date       string
	CloudCover int
}

// NewLookupKey builds a key for coord, date and cloud cover threshold
func NewLookupKey(coord geo.Coordinate, date string, cloudCover int) LookupKey {
	return LookupKey{
		Latitude:   geo.Round(coord.Latitude, geo.DisplayPrecision),
		Longitude:  geo.Round(coord.Longitude, geo.DisplayPrecision),
		Date:       date,
		CloudCover: cloudCover,
	}
}

// Stats are cumulative cache counters
type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// FeatureCache keeps recent catalog hits in memory with a TTL. Empty results are not cached.
type FeatureCache struct {
	lru    *expirable.LRU[LookupKey, stac.Feature]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewFeatureCache creates a cache sized by cfg, falling back to defaults
func NewFeatureCache(cfg *Config) *FeatureCache {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &FeatureCache{
		lru: expirable.NewLRU[LookupKey, stac.Feature](cfg.MaxEntries, nil, cfg.TTL()),
	}
}

// Get returns a copy of the cached feature for key
func (c *FeatureCache) Get(key LookupKey) (*stac.Feature, bool) {
	f, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return &f, true
}

// Add stores f under key
func (c *FeatureCache) Add(key LookupKey, f *stac.Feature) {
	if f == nil {
		return
	}
	c.lru.Add(key, *f)
}

// Stats returns the current counters
func (c *FeatureCache) Stats() Stats {
	return Stats{
		Entries: c.lru.Len(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}
