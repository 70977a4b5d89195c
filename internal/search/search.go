// Package search implements the search cascade: name match, remote
// fallback, content sniff, deep extraction and preview of the winner.
package search

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/drive"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/extract"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/format"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/index"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/logging"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/metrics"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/models"
)

// Stage names the cascade step that produced a result.
type Stage string

const (
	StageName       Stage = "name"
	StageRemote     Stage = "remote"
	StageSniff      Stage = "sniff"
	StageDeep       Stage = "deep"
	StageNone       Stage = "none"
	StageNoneScoped Stage = "none_scoped"
)

const (
	msgPreviewFailed = "⚠️ 후보 파일 미리보기 중 오류가 발생했습니다."
	msgUnsupported   = "❓ 지원하지 않는 형식: %s (%s)"
)

// Config tunes the cascade. Zero fields take the defaults from
// DefaultConfig.
type Config struct {
	Budget     time.Duration
	FastBudget time.Duration
	Workers    int

	StrictCaps      Caps
	BroadCaps       Caps
	BroadPDFNameCap int
	DeepCapNoName   int
	DeepCapName     int

	RemoteLimit    int
	NameCandidates int
	NameTop        int
	PageSize       int

	PDFSamplePages int
	OCRSamplePages int
	DeepPages      int
	OCRStride      int
	SampleBytes    int64

	UIHost string
	Now    func() time.Time
}

// DefaultConfig returns the calibrated cascade settings.
func DefaultConfig() Config {
	return Config{
		Budget:          12 * time.Second,
		FastBudget:      3500 * time.Millisecond,
		Workers:         4,
		StrictCaps:      Caps{TXT: 12, HWP: 12, PDF: 16, PPT: 6, XLSX: 4, DOCX: 12},
		BroadCaps:       Caps{TXT: 40, HWP: 40, PDF: 120, PPT: 12, XLSX: 6, DOCX: 40},
		BroadPDFNameCap: 24,
		DeepCapNoName:   8,
		DeepCapName:     4,
		RemoteLimit:     10,
		NameCandidates:  30,
		NameTop:         10,
		PageSize:        drive.MaxPageSize,
		PDFSamplePages:  6,
		OCRSamplePages:  3,
		DeepPages:       12,
		OCRStride:       2,
		SampleBytes:     64 << 10,
		UIHost:          "smhrd.dooray.com",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Budget <= 0 {
		c.Budget = d.Budget
	}
	if c.FastBudget <= 0 {
		c.FastBudget = d.FastBudget
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.StrictCaps == (Caps{}) {
		c.StrictCaps = d.StrictCaps
	}
	if c.BroadCaps == (Caps{}) {
		c.BroadCaps = d.BroadCaps
	}
	if c.BroadPDFNameCap <= 0 {
		c.BroadPDFNameCap = d.BroadPDFNameCap
	}
	if c.DeepCapNoName <= 0 {
		c.DeepCapNoName = d.DeepCapNoName
	}
	if c.DeepCapName <= 0 {
		c.DeepCapName = d.DeepCapName
	}
	if c.RemoteLimit <= 0 {
		c.RemoteLimit = d.RemoteLimit
	}
	if c.NameCandidates <= 0 {
		c.NameCandidates = d.NameCandidates
	}
	if c.NameTop <= 0 {
		c.NameTop = d.NameTop
	}
	c.PageSize = drive.ClampPageSize(c.PageSize)
	if c.PDFSamplePages <= 0 {
		c.PDFSamplePages = d.PDFSamplePages
	}
	if c.OCRSamplePages <= 0 {
		c.OCRSamplePages = d.OCRSamplePages
	}
	if c.DeepPages <= 0 {
		c.DeepPages = d.DeepPages
	}
	if c.OCRStride <= 0 {
		c.OCRStride = d.OCRStride
	}
	if c.SampleBytes <= 0 {
		c.SampleBytes = d.SampleBytes
	}
	if c.UIHost == "" {
		c.UIHost = d.UIHost
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Result is the outcome of one search.
type Result struct {
	Record format.Record
	Stage  Stage
	FileID string
	Score  int
}

// Engine runs searches against the index cache.
type Engine struct {
	index *index.Cache
	dir   drive.Directory
	x     extract.Extractor
	sniff *extract.SniffCache
	cfg   Config
}

// New creates an engine. dir serves the remote fallback; sniff may be nil.
func New(idx *index.Cache, dir drive.Directory, x extract.Extractor, sniff *extract.SniffCache, cfg Config) *Engine {
	return &Engine{
		index: idx,
		dir:   dir,
		x:     x,
		sniff: sniff,
		cfg:   cfg.withDefaults(),
	}
}

// Search runs the cascade with the extension filter named in the query.
func (e *Engine) Search(ctx context.Context, query string) (Result, error) {
	return e.SearchFiltered(ctx, query, ExtFilter(query))
}

// SearchFiltered runs the cascade restricted to exts (nil for no filter).
// Only drive discovery failures are returned as errors; a miss is a
// negative Result.
func (e *Engine) SearchFiltered(ctx context.Context, query string, exts []models.Extension) (Result, error) {
	start := e.cfg.Now()
	if _, err := e.index.Refresh(ctx); err != nil {
		return Result{}, err
	}
	snap := e.index.Snapshot()
	if snap == nil {
		snap = &index.Snapshot{}
	}

	res := e.run(ctx, snap, query, exts)
	elapsed := e.cfg.Now().Sub(start)
	metrics.RecordSearch(string(res.Stage), elapsed)
	logging.WithContext(ctx).Info("search finished",
		zap.String("query", query),
		zap.String("stage", string(res.Stage)),
		zap.String("file_id", res.FileID),
		zap.Int("score", res.Score),
		zap.Duration("elapsed", elapsed),
	)
	return res, nil
}

type candidate struct {
	entry models.FileEntry
	score int
	order int
}

func (e *Engine) run(ctx context.Context, snap *index.Snapshot, query string, exts []models.Extension) Result {
	strict := !snap.Roots.IsUnrestricted()
	terms := Terms(query)

	// Stage A: names.
	nameExts := exts
	if len(nameExts) == 0 {
		nameExts = models.KnownExtensions
	}
	stage := StageName
	hits := e.nameMatches(snap, query, nameExts)
	if len(hits) == 0 && !strict {
		hits = e.remoteMatches(ctx, snap.DriveID, query, nameExts)
		stage = StageRemote
	}
	for _, h := range hits {
		if snap.Roots.Contains(h.RootID) && nameHit(h, terms) {
			return e.top(ctx, candidate{entry: h}, stage)
		}
	}

	if len(terms) == 0 {
		return e.negative(query, false)
	}

	// Stage B: content sniff.
	t0 := e.cfg.Now()
	var ranked []candidate
	for _, it := range snap.Items {
		if !snap.Roots.Contains(it.RootID) {
			continue
		}
		if len(exts) > 0 && !hasExt(exts, it.Extension) {
			continue
		}
		ranked = append(ranked, candidate{entry: it, score: nameScore(it, terms), order: len(ranked)})
	}
	slices.SortStableFunc(ranked, func(a, b candidate) int { return cmp.Compare(b.score, a.score) })
	noNameSignal := len(ranked) == 0 || ranked[0].score == 0

	caps := e.cfg.BroadCaps
	budget := e.cfg.Budget
	allowOCR := true
	if strict && noNameSignal {
		caps = e.cfg.StrictCaps
		budget = e.cfg.FastBudget
		allowOCR = false
	} else if !noNameSignal {
		caps.PDF = e.cfg.BroadPDFNameCap
	}

	entries := make([]models.FileEntry, len(ranked))
	for i, c := range ranked {
		entries[i] = c.entry
	}
	pool := samplePool(entries, caps)
	b := extract.Budget{
		Deadline: t0.Add(budget),
		Pages:    e.cfg.PDFSamplePages,
		OCRPages: e.cfg.OCRSamplePages,
		AllowOCR: allowOCR,
		MaxBytes: e.cfg.SampleBytes,
	}
	scored := e.sniffPool(ctx, pool, terms, b, t0, budget)
	if len(scored) > 0 {
		return e.best(ctx, scored, StageSniff)
	}
	if strict {
		return e.negative(query, true)
	}

	// Stage C: deep extraction of sampled PDFs.
	if e.cfg.Now().Sub(t0) <= e.cfg.Budget {
		limit := e.cfg.DeepCapName
		if noNameSignal {
			limit = e.cfg.DeepCapNoName
		}
		var pdfs []models.FileEntry
		for _, it := range pool {
			if it.Extension == models.ExtPDF && len(pdfs) < limit {
				pdfs = append(pdfs, it)
			}
		}
		if scored := e.deep(ctx, pdfs, terms, t0); len(scored) > 0 {
			return e.best(ctx, scored, StageDeep)
		}
	}
	return e.negative(query, false)
}

// nameMatches ranks snapshot entries whose path or name contains a query
// token. Entries outside exts are skipped.
func (e *Engine) nameMatches(snap *index.Snapshot, query string, exts []models.Extension) []models.FileEntry {
	toks := strings.Fields(collapse(query))
	var ranked []candidate
	for _, it := range snap.Items {
		if !hasExt(exts, it.Extension) {
			continue
		}
		hay := collapse(it.Path + it.Name)
		name := normalize(it.Name)
		score, matched := 0, len(toks) == 0
		for _, tok := range toks {
			if n := strings.Count(hay, tok); n > 0 {
				score += n
				matched = true
			}
			// Flat bonus per token present in the name, unlike nameScore.
			if nt := normalize(tok); nt != "" && strings.Contains(name, nt) {
				score += 2
			}
		}
		if matched {
			ranked = append(ranked, candidate{entry: it, score: score})
		}
	}
	slices.SortStableFunc(ranked, func(a, b candidate) int { return cmp.Compare(b.score, a.score) })
	if len(ranked) > e.cfg.NameCandidates {
		ranked = ranked[:e.cfg.NameCandidates]
	}

	var out []models.FileEntry
	for _, c := range ranked {
		if !snap.Roots.Contains(c.entry.RootID) {
			continue
		}
		out = append(out, c.entry)
		if len(out) == e.cfg.NameTop {
			break
		}
	}
	return out
}

// remoteMatches asks the drive's own search. Files match at the drive
// root; matching folders contribute their direct files.
func (e *Engine) remoteMatches(ctx context.Context, driveID, query string, exts []models.Extension) []models.FileEntry {
	if e.dir == nil || driveID == "" {
		return nil
	}
	log := logging.Named("search")
	hits, err := e.dir.SearchInRoot(ctx, driveID, query, 0, e.cfg.PageSize)
	if err != nil {
		log.Warn("remote search failed", zap.String("drive_id", driveID), zap.Error(err))
		return nil
	}

	var out []models.FileEntry
	for _, h := range hits {
		if len(out) >= e.cfg.RemoteLimit {
			break
		}
		switch h.Type {
		case models.TypeFile:
			if fe := models.NewFileEntry(h.ID, h.Name, "/", ""); hasExt(exts, fe.Extension) {
				out = append(out, fe)
			}
		case models.TypeFolder:
			files, err := drive.Collect(ctx, e.cfg.PageSize, func(ctx context.Context, page, size int) ([]models.Item, error) {
				return e.dir.ListFiles(ctx, driveID, h.ID, page, size)
			})
			if err != nil {
				log.Warn("remote folder listing failed", zap.String("folder_id", h.ID), zap.Error(err))
			}
			for _, f := range files {
				fe := models.NewFileEntry(f.ID, f.Name, "/"+h.Name+"/", "")
				if !hasExt(exts, fe.Extension) {
					continue
				}
				out = append(out, fe)
				if len(out) >= e.cfg.RemoteLimit {
					break
				}
			}
		}
	}
	return out
}

type sniffResult struct {
	order int
	entry models.FileEntry
	text  string
}

// sniffPool samples every pool entry on a bounded worker pool and scores
// results as they arrive until the budget elapses. Workers still running
// at the cutoff finish on their own; entries not yet started are skipped.
func (e *Engine) sniffPool(ctx context.Context, pool []models.FileEntry, terms []string, b extract.Budget, t0 time.Time, budget time.Duration) []candidate {
	if len(pool) == 0 {
		return nil
	}
	results := make(chan sniffResult, len(pool))
	done := make(chan struct{})
	defer close(done)

	wctx := context.WithoutCancel(ctx)
	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)
	go func() {
		defer func() {
			g.Wait()
			close(results)
		}()
		for i, it := range pool {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			default:
			}
			g.Go(func() error {
				select {
				case <-done:
					return nil
				default:
				}
				results <- sniffResult{order: i, entry: it, text: e.sample(wctx, it, b)}
				return nil
			})
		}
	}()

	scored, timedOut := collect(ctx, results, terms, e.cfg.Now, t0, budget)
	if timedOut {
		logging.Named("search").Debug("sniff budget exhausted",
			zap.Int("pool", len(pool)),
			zap.Int("scored", len(scored)),
			zap.Duration("budget", budget),
		)
	}
	return scored
}

// collect scores sniff results until results closes or the elapsed time
// since t0 exceeds budget. It reports whether the budget cut it short.
func collect(ctx context.Context, results <-chan sniffResult, terms []string, now func() time.Time, t0 time.Time, budget time.Duration) ([]candidate, bool) {
	var scored []candidate
	for {
		select {
		case <-ctx.Done():
			return scored, true
		case r, ok := <-results:
			if !ok {
				return scored, false
			}
			if r.text != "" {
				if s := ScoreInText(r.text, terms); s > 0 {
					scored = append(scored, candidate{entry: r.entry, score: s, order: r.order})
				}
			}
			if now().Sub(t0) > budget {
				return scored, true
			}
		}
	}
}

// sample returns cached or freshly extracted sample text. Failures read as
// empty text.
func (e *Engine) sample(ctx context.Context, it models.FileEntry, b extract.Budget) string {
	if e.sniff != nil {
		if text, ok := e.sniff.Get(it); ok {
			return text
		}
	}
	text, err := e.x.Sample(ctx, it, b)
	if err != nil {
		logging.Debug("sample failed", zap.String("file_id", it.ID), zap.Error(err))
		return ""
	}
	if text != "" && e.sniff != nil {
		e.sniff.Put(it, text)
	}
	return text
}

// deep runs full extractions one at a time until the overall budget is
// spent.
func (e *Engine) deep(ctx context.Context, pdfs []models.FileEntry, terms []string, t0 time.Time) []candidate {
	b := extract.Budget{
		Deadline:  t0.Add(e.cfg.Budget),
		Pages:     e.cfg.DeepPages,
		OCRStride: e.cfg.OCRStride,
		AllowOCR:  true,
	}
	var scored []candidate
	for i, it := range pdfs {
		if e.cfg.Now().Sub(t0) > e.cfg.Budget || ctx.Err() != nil {
			break
		}
		text, err := e.x.Full(ctx, it, b)
		if err != nil {
			logging.Debug("full extraction failed", zap.String("file_id", it.ID), zap.Error(err))
			continue
		}
		if s := ScoreInText(text, terms); s > 0 {
			scored = append(scored, candidate{entry: it, score: s, order: i})
		}
	}
	return scored
}

// best orders scored candidates by score, ties by dispatch order, and
// previews the winner.
func (e *Engine) best(ctx context.Context, scored []candidate, stage Stage) Result {
	slices.SortStableFunc(scored, func(a, b candidate) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.order, b.order)
	})
	return e.top(ctx, scored[0], stage)
}

func (e *Engine) top(ctx context.Context, c candidate, stage Stage) Result {
	preview, err := e.x.Preview(ctx, c.entry)
	if err != nil {
		if ue, ok := extract.IsUnsupported(err); ok {
			preview = fmt.Sprintf(msgUnsupported, ue.Extension, ue.Name)
		} else {
			logging.WithContext(ctx).Warn("preview failed", zap.String("file_id", c.entry.ID), zap.Error(err))
			preview = msgPreviewFailed
		}
	}
	return Result{
		Record: format.Record{
			Name:      c.entry.Name,
			Path:      c.entry.Path,
			Extension: string(c.entry.Extension),
			URL:       e.FileURL(c.entry.ID),
			Preview:   preview,
		},
		Stage:  stage,
		FileID: c.entry.ID,
		Score:  c.score,
	}
}

func (e *Engine) negative(query string, scoped bool) Result {
	if scoped {
		return Result{Record: format.NotFoundInScope(query), Stage: StageNoneScoped}
	}
	return Result{Record: format.NotFound(query), Stage: StageNone}
}

// FileURL is the web preview link for a file.
func (e *Engine) FileURL(id string) string {
	return fmt.Sprintf("https://%s/preview-pages/drives/%s", e.cfg.UIHost, id)
}
