package extract

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/metrics"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/models"
)

// DefaultSniffCacheSize is the number of samples kept.
const DefaultSniffCacheSize = 256

// SniffCache remembers sampled text per (file id, extension) so repeated
// searches do not re-extract the same file.
type SniffCache struct {
	lru *lru.Cache[string, string]
}

// NewSniffCache creates a cache holding up to size samples.
func NewSniffCache(size int) *SniffCache {
	if size <= 0 {
		size = DefaultSniffCacheSize
	}
	c, err := lru.New[string, string](size)
	if err != nil {
		// Only reachable with a non-positive size.
		panic(err)
	}
	return &SniffCache{lru: c}
}

func sniffKey(e models.FileEntry) string {
	return e.ID + "|" + string(e.Extension)
}

// Get returns the cached sample for e.
func (c *SniffCache) Get(e models.FileEntry) (string, bool) {
	text, ok := c.lru.Get(sniffKey(e))
	metrics.RecordSniffCache(ok)
	return text, ok
}

// Put stores a sample for e.
func (c *SniffCache) Put(e models.FileEntry, text string) {
	c.lru.Add(sniffKey(e), text)
}

// Len returns the number of cached samples.
func (c *SniffCache) Len() int {
	return c.lru.Len()
}
