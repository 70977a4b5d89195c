package extract

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/metrics"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/models"
)

// Registry maps extensions to extractors. It is itself an Extractor that
// dispatches on the entry's extension, applies the budget deadline to the
// call context and tags failures with ErrExtraction.
type Registry struct {
	mu         sync.RWMutex
	extractors map[models.Extension]Extractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[models.Extension]Extractor)}
}

// Register installs x for each of exts, replacing earlier registrations.
func (r *Registry) Register(x Extractor, exts ...models.Extension) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range exts {
		r.extractors[ext] = x
	}
}

// Supports reports whether ext has an extractor.
func (r *Registry) Supports(ext models.Extension) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.extractors[ext]
	return ok
}

func (r *Registry) lookup(e models.FileEntry) (Extractor, error) {
	r.mu.RLock()
	x, ok := r.extractors[e.Extension]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnsupportedError{Name: e.Name, Extension: e.Extension}
	}
	return x, nil
}

// Preview implements Extractor.
func (r *Registry) Preview(ctx context.Context, e models.FileEntry) (string, error) {
	return r.run(ctx, "preview", e, time.Time{}, func(ctx context.Context, x Extractor) (string, error) {
		return x.Preview(ctx, e)
	})
}

// Sample implements Extractor.
func (r *Registry) Sample(ctx context.Context, e models.FileEntry, b Budget) (string, error) {
	return r.run(ctx, "sample", e, b.Deadline, func(ctx context.Context, x Extractor) (string, error) {
		return x.Sample(ctx, e, b)
	})
}

// Full implements Extractor.
func (r *Registry) Full(ctx context.Context, e models.FileEntry, b Budget) (string, error) {
	return r.run(ctx, "full", e, b.Deadline, func(ctx context.Context, x Extractor) (string, error) {
		return x.Full(ctx, e, b)
	})
}

func (r *Registry) run(ctx context.Context, kind string, e models.FileEntry, deadline time.Time,
	fn func(context.Context, Extractor) (string, error)) (string, error) {
	x, err := r.lookup(e)
	if err != nil {
		return "", err
	}
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	start := time.Now()
	text, err := fn(ctx, x)
	metrics.RecordExtract(kind, string(e.Extension), time.Since(start))
	if err != nil {
		return "", fmt.Errorf("%w: %s %s: %w", ErrExtraction, kind, e.Name, err)
	}
	return text, nil
}

var _ Extractor = (*Registry)(nil)
