// Package drive defines the remote directory contract and its Dooray REST
// implementation.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/models"
)

// RootID is the parent id that addresses a drive's top level.
const RootID = "root"

// MaxPageSize is the largest page the remote API accepts.
const MaxPageSize = 50

// ErrNoDrive is returned when no personal drive is reachable.
var ErrNoDrive = errors.New("no personal drive available")

// Directory lists and searches a remote folder tree. Every paginated call
// returns an empty page to signal the end of the stream.
type Directory interface {
	ListDrives(ctx context.Context) ([]models.Drive, error)
	ListFolders(ctx context.Context, driveID, parentID string, page, size int) ([]models.Item, error)
	ListFiles(ctx context.Context, driveID, parentID string, page, size int) ([]models.Item, error)
	SearchInRoot(ctx context.Context, driveID, query string, page, size int) ([]models.Item, error)
}

// Fetcher downloads raw file content.
type Fetcher interface {
	Download(ctx context.Context, driveID, fileID string) (io.ReadCloser, int64, error)
}

// TransportError is a remote call that failed after retries were exhausted.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("drive %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("drive %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// PageFunc fetches one page of a listing.
type PageFunc func(ctx context.Context, page, size int) ([]models.Item, error)

// Collect pages through fn until an empty page and returns every item.
// A failing page ends the walk and returns what was gathered with the error.
func Collect(ctx context.Context, size int, fn PageFunc) ([]models.Item, error) {
	var all []models.Item
	for page := 0; ; page++ {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		items, err := fn(ctx, page, size)
		if err != nil {
			return all, err
		}
		if len(items) == 0 {
			return all, nil
		}
		// Only an empty page ends the stream; the server may clamp size.
		all = append(all, items...)
	}
}

// FirstDrive returns the first personal drive, or ErrNoDrive.
func FirstDrive(ctx context.Context, dir Directory) (models.Drive, error) {
	drives, err := dir.ListDrives(ctx)
	if err != nil {
		return models.Drive{}, err
	}
	if len(drives) == 0 || drives[0].ID == "" {
		return models.Drive{}, ErrNoDrive
	}
	return drives[0], nil
}

// TopFolders lists every folder directly under the drive root.
func TopFolders(ctx context.Context, dir Directory, driveID string, size int) ([]models.Item, error) {
	return Collect(ctx, size, func(ctx context.Context, page, size int) ([]models.Item, error) {
		return dir.ListFolders(ctx, driveID, RootID, page, size)
	})
}

// ClampPageSize bounds size to [1, MaxPageSize].
func ClampPageSize(size int) int {
	if size <= 0 || size > MaxPageSize {
		return MaxPageSize
	}
	return size
}
