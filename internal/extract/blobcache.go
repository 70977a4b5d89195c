package extract

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"

	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/drive"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/logging"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/metrics"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/models"
)

// downloadTimeout bounds one shared download.
const downloadTimeout = 2 * time.Minute

type blobEntry struct {
	path    string
	size    int64
	lastUse uint64
}

// BlobCache keeps downloaded file bodies on disk, bounded by total size.
// When full, the least recently accessed blob is evicted.
type BlobCache struct {
	dir     string
	maxSize int64
	fetcher drive.Fetcher
	driveID func() string

	mu      sync.Mutex
	entries map[string]*blobEntry
	size    int64
	clock   uint64 // bumped on every access
	group   singleflight.Group
}

// NewBlobCache creates a cache in dir. driveID names the drive downloads
// come from.
func NewBlobCache(dir string, maxSize int64, fetcher drive.Fetcher, driveID func() string) (*BlobCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob cache dir: %w", err)
	}
	return &BlobCache{
		dir:     dir,
		maxSize: maxSize,
		fetcher: fetcher,
		driveID: driveID,
		entries: make(map[string]*blobEntry),
	}, nil
}

// key names a blob by drive, file id and extension.
func key(driveID string, e models.FileEntry) string {
	sum := blake2b.Sum256([]byte(driveID + "\x00" + e.ID))
	return hex.EncodeToString(sum[:16]) + string(e.Extension)
}

// Open returns a reader over the file body, downloading it on first use.
func (c *BlobCache) Open(ctx context.Context, e models.FileEntry) (io.ReadCloser, error) {
	driveID := c.driveID()
	k := key(driveID, e)

	if path, ok := c.get(k); ok {
		f, err := os.Open(path)
		if err == nil {
			return f, nil
		}
		c.evict(k)
	}

	// The download outlives the caller that started it; each caller stops
	// waiting on its own context.
	ch := c.group.DoChan(k, func() (any, error) {
		if path, ok := c.get(k); ok {
			return path, nil
		}
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), downloadTimeout)
		defer cancel()
		rc, size, err := c.fetcher.Download(dctx, driveID, e.ID)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return c.put(k, rc, size)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return os.Open(r.Val.(string))
	}
}

func (c *BlobCache) get(k string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[k]
	if !ok {
		return "", false
	}
	c.clock++
	entry.lastUse = c.clock
	return entry.path, true
}

// put writes r to a temp file and renames it into place.
func (c *BlobCache) put(k string, r io.Reader, size int64) (string, error) {
	localPath := filepath.Join(c.dir, k)
	tempPath := localPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	written, err := io.Copy(f, r)
	f.Close()
	if err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := os.Rename(tempPath, localPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("rename blob: %w", err)
	}
	metrics.RecordBlobDownload(written)

	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.entries[k]; ok {
		c.size -= old.size
	}
	for c.maxSize > 0 && c.size+written > c.maxSize {
		if !c.evictOldest(k) {
			break
		}
	}
	c.clock++
	c.entries[k] = &blobEntry{path: localPath, size: written, lastUse: c.clock}
	c.size += written
	if size > 0 && size != written {
		logging.Debug("blob size mismatch", zap.Int64("expected", size), zap.Int64("written", written))
	}
	return localPath, nil
}

func (c *BlobCache) evict(k string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[k]; ok {
		os.Remove(entry.path)
		c.size -= entry.size
		delete(c.entries, k)
	}
}

// evictOldest removes the least recently used blob other than keep.
// Must be called with lock held.
func (c *BlobCache) evictOldest(keep string) bool {
	var oldest *blobEntry
	var oldestKey string
	for k, entry := range c.entries {
		if k == keep {
			continue
		}
		if oldest == nil || entry.lastUse < oldest.lastUse {
			oldest = entry
			oldestKey = k
		}
	}
	if oldest == nil {
		return false
	}
	os.Remove(oldest.path)
	c.size -= oldest.size
	delete(c.entries, oldestKey)
	return true
}

// Stats returns cache usage.
func (c *BlobCache) Stats() (size, maxSize int64, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size, c.maxSize, len(c.entries)
}
