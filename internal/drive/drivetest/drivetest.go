// Package drivetest provides an in-memory drive for tests.
package drivetest

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/drive"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/models"
)

// Tree is an in-memory drive.Directory and drive.Fetcher.
type Tree struct {
	mu      sync.RWMutex
	drives  []models.Drive
	folders map[string][]models.Item // parent id -> folders
	files   map[string][]models.Item // parent id -> files
	content map[string]string
	search  []models.Item

	// Calls counts every Directory call.
	Calls     atomic.Int64
	Downloads atomic.Int64
}

// New creates a tree with one drive.
func New(driveID string) *Tree {
	t := &Tree{
		folders: make(map[string][]models.Item),
		files:   make(map[string][]models.Item),
		content: make(map[string]string),
	}
	if driveID != "" {
		t.drives = []models.Drive{{ID: driveID}}
	}
	return t
}

// SetDrives replaces the drive list.
func (t *Tree) SetDrives(ids ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.drives = nil
	for _, id := range ids {
		t.drives = append(t.drives, models.Drive{ID: id})
	}
}

// AddFolder adds a folder under parent (drive.RootID for top level).
func (t *Tree) AddFolder(parent, id, name string) *Tree {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.folders[parent] = append(t.folders[parent], models.Item{ID: id, Name: name, Type: models.TypeFolder})
	return t
}

// AddFile adds a file with content under parent.
func (t *Tree) AddFile(parent, id, name, content string) *Tree {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.files[parent] = append(t.files[parent], models.Item{ID: id, Name: name, Type: models.TypeFile})
	t.content[id] = content
	return t
}

// SetSearchResults fixes what SearchInRoot returns.
func (t *Tree) SetSearchResults(items ...models.Item) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.search = items
}

func (t *Tree) ListDrives(ctx context.Context) ([]models.Drive, error) {
	t.Calls.Add(1)
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]models.Drive(nil), t.drives...), nil
}

func (t *Tree) ListFolders(ctx context.Context, driveID, parentID string, page, size int) ([]models.Item, error) {
	t.Calls.Add(1)
	t.mu.RLock()
	defer t.mu.RUnlock()
	return paginate(t.folders[parentID], page, size), nil
}

func (t *Tree) ListFiles(ctx context.Context, driveID, parentID string, page, size int) ([]models.Item, error) {
	t.Calls.Add(1)
	t.mu.RLock()
	defer t.mu.RUnlock()
	return paginate(t.files[parentID], page, size), nil
}

func (t *Tree) SearchInRoot(ctx context.Context, driveID, query string, page, size int) ([]models.Item, error) {
	t.Calls.Add(1)
	t.mu.RLock()
	defer t.mu.RUnlock()
	return paginate(t.search, page, size), nil
}

func (t *Tree) Download(ctx context.Context, driveID, fileID string) (io.ReadCloser, int64, error) {
	t.Downloads.Add(1)
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.content[fileID]
	if !ok {
		return nil, 0, &drive.TransportError{Op: "download", Status: 404, Err: io.ErrUnexpectedEOF}
	}
	return io.NopCloser(strings.NewReader(c)), int64(len(c)), nil
}

func paginate(items []models.Item, page, size int) []models.Item {
	size = drive.ClampPageSize(size)
	start := page * size
	if page < 0 || start >= len(items) {
		return nil
	}
	return append([]models.Item(nil), items[start:min(start+size, len(items))]...)
}

var (
	_ drive.Directory = (*Tree)(nil)
	_ drive.Fetcher   = (*Tree)(nil)
)
