// Package index keeps an in-memory flattened snapshot of the remote folder
// tree and decides when to rebuild it.
package index

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/drive"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/logging"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/metrics"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/models"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/scope"
)

// Outcome is the result of Ensure.
type Outcome string

const (
	Skip    Outcome = "skip"
	Rebuilt Outcome = "rebuilt"
)

// DefaultTTL is how long a snapshot stays fresh.
const DefaultTTL = time.Hour

// DefaultBuildTimeout bounds one shared rebuild.
const DefaultBuildTimeout = 5 * time.Minute

// Snapshot is an immutable view of the indexed tree. Items are unique by ID.
type Snapshot struct {
	DriveID string
	BuiltAt time.Time
	Roots   scope.Value
	Items   []models.FileEntry
}

// Empty reports whether the snapshot holds no files.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Items) == 0
}

// Stats summarizes a snapshot.
type Stats struct {
	DriveID string      `json:"drive_id"`
	BuiltAt *time.Time  `json:"built_at"`
	Roots   scope.Value `json:"roots"`
	Items   int         `json:"items"`
}

// Config holds cache settings.
type Config struct {
	TTL      time.Duration
	PageSize int
	// BuildTimeout bounds a rebuild. It runs detached from the caller that
	// started it, since other callers may be waiting on the same build.
	BuildTimeout time.Duration
	// Now overrides the clock.
	Now func() time.Time
}

// Cache owns the current snapshot. Readers get the snapshot installed at
// the time of the call; rebuilds swap in a new one.
type Cache struct {
	dir      drive.Directory
	resolver *scope.Resolver
	ttl          time.Duration
	buildTimeout time.Duration
	pageSize     int
	now          func() time.Time

	snap  atomic.Pointer[Snapshot]
	group singleflight.Group
}

// New creates an empty cache over dir.
func New(dir drive.Directory, cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.BuildTimeout <= 0 {
		cfg.BuildTimeout = DefaultBuildTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	pageSize := drive.ClampPageSize(cfg.PageSize)
	return &Cache{
		dir:          dir,
		resolver:     scope.NewResolver(dir, pageSize),
		ttl:          cfg.TTL,
		buildTimeout: cfg.BuildTimeout,
		pageSize:     pageSize,
		now:          cfg.Now,
	}
}

// Snapshot returns the current snapshot, or nil before the first build.
func (c *Cache) Snapshot() *Snapshot {
	return c.snap.Load()
}

// Stats describes the current snapshot.
func (c *Cache) Stats() Stats {
	s := c.snap.Load()
	if s == nil {
		return Stats{}
	}
	built := s.BuiltAt
	return Stats{DriveID: s.DriveID, BuiltAt: &built, Roots: s.Roots, Items: len(s.Items)}
}

// Ensure makes the snapshot fresh for the selection ids, rebuilding when
// forced, expired, or when scope or drive changed or nothing is indexed.
// A rebuild for an explicit selection always replaces the current snapshot.
func (c *Cache) Ensure(ctx context.Context, ids []string, force bool) (Outcome, error) {
	d, err := drive.FirstDrive(ctx, c.dir)
	if err != nil {
		return "", err
	}
	roots, err := c.resolver.Resolve(ctx, d.ID, ids)
	if err != nil {
		return "", err
	}
	return c.ensure(ctx, d.ID, func(*Snapshot) scope.Value { return roots }, force)
}

// Refresh ensures freshness while keeping the recorded scope. Its rebuild
// is installed only if no other snapshot replaced the one it refreshed.
func (c *Cache) Refresh(ctx context.Context) (Outcome, error) {
	d, err := drive.FirstDrive(ctx, c.dir)
	if err != nil {
		return "", err
	}
	return c.ensure(ctx, d.ID, nil, false)
}

// ensure compares the current snapshot against the wanted roots. A nil
// want keeps the roots recorded in that same snapshot.
func (c *Cache) ensure(ctx context.Context, driveID string, want func(*Snapshot) scope.Value, force bool) (Outcome, error) {
	cur := c.snap.Load()
	roots := scope.Unrestricted()
	switch {
	case want != nil:
		roots = want(cur)
	case cur != nil:
		roots = cur.Roots
	}

	// A fresh snapshot already carries these roots, so skip never writes.
	if !force && !c.stale(cur, driveID, roots) {
		metrics.RecordEnsure(string(Skip))
		logging.Debug("index fresh",
			zap.String("drive_id", driveID),
			zap.Stringer("roots", roots),
		)
		return Skip, nil
	}

	mode := "ensure"
	if want == nil {
		mode = "refresh"
	}
	key := mode + "|" + driveID + "|" + roots.String()
	ch := c.group.DoChan(key, func() (any, error) {
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.buildTimeout)
		defer cancel()
		snap := c.Build(bctx, driveID, roots)
		if err := bctx.Err(); err != nil {
			return nil, err
		}
		if want != nil {
			c.snap.Store(snap)
		} else if !c.snap.CompareAndSwap(cur, snap) {
			logging.Debug("refresh superseded", zap.Stringer("roots", roots))
		}
		return nil, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return "", r.Err
		}
	}
	metrics.RecordEnsure(string(Rebuilt))
	return Rebuilt, nil
}

func (c *Cache) stale(cur *Snapshot, driveID string, roots scope.Value) bool {
	switch {
	case cur.Empty():
		return true
	case c.now().Sub(cur.BuiltAt) > c.ttl:
		return true
	case !cur.Roots.Equal(roots):
		return true
	case cur.DriveID != driveID:
		return true
	}
	return false
}

// Build walks the tree under roots breadth-first and returns a new snapshot.
// An unrestricted scope walks every top-level folder. Files already seen
// under an earlier root are skipped, so overlapping roots yield unique
// entries tagged with the first root that reached them. Listing failures
// are logged and treated as empty.
func (c *Cache) Build(ctx context.Context, driveID string, roots scope.Value) *Snapshot {
	start := time.Now()
	log := logging.Named("index")

	rootIDs := roots.IDs()
	if roots.IsUnrestricted() {
		top, err := drive.TopFolders(ctx, c.dir, driveID, c.pageSize)
		if err != nil {
			log.Warn("list top folders failed", zap.String("drive_id", driveID), zap.Error(err))
		}
		for _, f := range top {
			rootIDs = append(rootIDs, f.ID)
		}
	}

	seen := make(map[string]bool)
	var items []models.FileEntry
	for _, rootID := range rootIDs {
		items = c.walk(ctx, driveID, rootID, seen, items)
	}

	snap := &Snapshot{
		DriveID: driveID,
		BuiltAt: c.now(),
		Roots:   roots,
		Items:   items,
	}
	metrics.RecordIndexRebuild(time.Since(start))
	metrics.SetIndexItems(len(items))
	log.Info("index rebuilt",
		zap.String("drive_id", driveID),
		zap.Stringer("roots", roots),
		zap.Int("items", len(items)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return snap
}

type queued struct {
	id   string
	path string
}

func (c *Cache) walk(ctx context.Context, driveID, rootID string, seen map[string]bool, items []models.FileEntry) []models.FileEntry {
	queue := []queued{{id: rootID, path: "/"}}
	for len(queue) > 0 {
		if ctx.Err() != nil {
			return items
		}
		cur := queue[0]
		queue = queue[1:]

		folders, err := drive.Collect(ctx, c.pageSize, func(ctx context.Context, page, size int) ([]models.Item, error) {
			return c.dir.ListFolders(ctx, driveID, cur.id, page, size)
		})
		if err != nil {
			logging.Warn("list folders failed", zap.String("folder_id", cur.id), zap.Error(err))
		}
		for _, f := range folders {
			queue = append(queue, queued{id: f.ID, path: cur.path + f.Name + "/"})
		}

		files, err := drive.Collect(ctx, c.pageSize, func(ctx context.Context, page, size int) ([]models.Item, error) {
			return c.dir.ListFiles(ctx, driveID, cur.id, page, size)
		})
		if err != nil {
			logging.Warn("list files failed", zap.String("folder_id", cur.id), zap.Error(err))
		}
		for _, f := range files {
			if f.ID == "" || seen[f.ID] {
				continue
			}
			seen[f.ID] = true
			items = append(items, models.NewFileEntry(f.ID, f.Name, cur.path, rootID))
		}
	}
	return items
}
