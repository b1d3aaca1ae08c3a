// Package viewer implements a paged document viewer. A Viewer loads a
// document by URL, renders one page at a time scaled to the width of its
// Container, and moves between pages with Previous and Next.
//
// Page renders run on their own goroutines. Every render request takes a new
// token; a finished render reaches the container only if its token is still
// the latest and its page is still the current one, so a slow render never
// overwrites the page the user navigated to.
package viewer

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"github.com/wudi/pdfviewer/observability"
	"github.com/wudi/pdfviewer/security"
)

// Config controls a Viewer. The zero value is usable.
type Config struct {
	Logger observability.Logger
	Tracer observability.Tracer

	// MaxSurfacePixels caps the size of one rendered surface; larger pages
	// are scaled down. Default: security.DefaultLimits().MaxSurfacePixels.
	MaxSurfacePixels int

	Guard GuardConfig

	// Scripts runs document-level scripts after a load. Nil disables them.
	Scripts ScriptRunner
	// ScriptTimeout bounds one script run. Default: 2s.
	ScriptTimeout time.Duration
}

// Stats counts render requests over the viewer's lifetime.
type Stats struct {
	Requested uint64
	Committed uint64
	Discarded uint64
	Failed    uint64
}

type Viewer struct {
	container Container
	loader    Loader
	cfg       Config
	guard     *Guard

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu           sync.Mutex
	doc          Document
	url          string
	current      int
	total        int
	token        uint64
	loadSeq      uint64
	cancelRender context.CancelFunc
	cancelLoad   context.CancelFunc
	closed       bool
	stats        Stats
}

// New returns a viewer that renders into c and opens documents with l.
func New(c Container, l Loader, cfg Config) (*Viewer, error) {
	if c == nil || l == nil {
		return nil, fmt.Errorf("viewer: container and loader are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NopTracer()
	}
	if cfg.MaxSurfacePixels <= 0 {
		cfg.MaxSurfacePixels = security.DefaultLimits().MaxSurfacePixels
	}
	if cfg.ScriptTimeout <= 0 {
		cfg.ScriptTimeout = 2 * time.Second
	}
	if cfg.Guard.Logger == nil {
		cfg.Guard.Logger = cfg.Logger
	}
	guard, err := NewGuard(c, cfg.Guard)
	if err != nil {
		return nil, err
	}
	v := &Viewer{container: c, loader: l, cfg: cfg, guard: guard}
	v.base, v.stop = context.WithCancel(context.Background())
	return v, nil
}

// Guard returns the action guard bound to the viewer's container.
func (v *Viewer) Guard() *Guard { return v.guard }

// Load opens url and shows its first page. On failure the previous document
// is gone, the container shows the error and no navigation is attached. A
// load overtaken by a newer call returns ErrSuperseded and changes nothing.
func (v *Viewer) Load(ctx context.Context, url string) error {
	ctx, span := v.cfg.Tracer.StartSpan(ctx, observability.SpanLoad)
	defer span.Finish()
	span.SetTag("url", url)
	start := time.Now()

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	v.loadSeq++
	seq := v.loadSeq
	if v.cancelLoad != nil {
		v.cancelLoad()
	}
	lctx, cancel := context.WithCancel(ctx)
	v.cancelLoad = cancel
	v.mu.Unlock()
	defer cancel()

	doc, err := v.loader.Load(lctx, url)
	if err == nil && doc.NumPages() < 1 {
		doc.Close()
		doc, err = nil, ErrNoPages
	}

	v.mu.Lock()
	if v.closed || seq != v.loadSeq {
		closed := v.closed
		v.mu.Unlock()
		if doc != nil {
			doc.Close()
		}
		if closed {
			return ErrClosed
		}
		return ErrSuperseded
	}
	v.cancelLoad = nil
	old := v.resetLocked()
	v.container.Clear()
	if err != nil {
		lerr := &LoadError{URL: url, Err: err}
		v.container.ShowError(lerr)
		v.mu.Unlock()
		closeDoc(old, v.cfg.Logger)
		span.SetError(lerr)
		v.cfg.Logger.Warn("viewer: load failed",
			observability.String("url", url),
			observability.Error("error", err))
		return lerr
	}
	v.doc, v.url = doc, url
	v.total, v.current = doc.NumPages(), 1
	v.container.AttachNavigation(v)
	v.requestRenderLocked()
	v.mu.Unlock()
	closeDoc(old, v.cfg.Logger)

	span.SetTag("pages", doc.NumPages())
	v.cfg.Logger.Info("viewer: document loaded",
		observability.String("url", url),
		observability.Int(observability.MetricPageCount, doc.NumPages()),
		observability.Int64(observability.MetricLoadTime, time.Since(start).Milliseconds()))

	v.runScripts(ctx, doc)
	return nil
}

// resetLocked forgets the current document and invalidates in-flight renders.
// It returns the old document for the caller to close.
func (v *Viewer) resetLocked() Document {
	old := v.doc
	v.token++
	if v.cancelRender != nil {
		v.cancelRender()
		v.cancelRender = nil
	}
	v.doc, v.url = nil, ""
	v.current, v.total = 0, 0
	return old
}

func closeDoc(doc Document, logger observability.Logger) {
	if doc == nil {
		return
	}
	if err := doc.Close(); err != nil {
		logger.Debug("viewer: close document", observability.Error("error", err))
	}
}

// Next moves to the following page. It returns false and does nothing on the
// last page or before a document is loaded.
func (v *Viewer) Next() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.goToLocked(v.current + 1)
}

// Previous moves to the preceding page. It returns false and does nothing on
// the first page or before a document is loaded.
func (v *Viewer) Previous() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.goToLocked(v.current - 1)
}

// GoTo moves to page n. Out of range pages and the current page are no-ops.
func (v *Viewer) GoTo(n int) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.goToLocked(n)
}

func (v *Viewer) goToLocked(n int) bool {
	if v.closed || v.doc == nil || n < 1 || n > v.total || n == v.current {
		return false
	}
	v.current = n
	v.requestRenderLocked()
	return true
}

func (v *Viewer) CurrentPage() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

func (v *Viewer) TotalPages() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.total
}

// URL returns the address of the loaded document, or "" before a load.
func (v *Viewer) URL() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.url
}

// Rerender renders the current page again, typically after the container
// was resized.
func (v *Viewer) Rerender() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || v.doc == nil {
		return false
	}
	v.requestRenderLocked()
	return true
}

func (v *Viewer) Stats() Stats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stats
}

// Wait blocks until every render requested so far has finished.
func (v *Viewer) Wait() { v.wg.Wait() }

// Close cancels pending work, waits for in-flight renders and closes the
// document. Later calls are no-ops.
func (v *Viewer) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	if v.cancelLoad != nil {
		v.cancelLoad()
		v.cancelLoad = nil
	}
	old := v.resetLocked()
	v.stop()
	v.mu.Unlock()

	v.wg.Wait()
	if old != nil {
		return old.Close()
	}
	return nil
}

type renderRequest struct {
	token uint64
	page  int
	total int
	width int
	doc   Document
}

func (v *Viewer) requestRenderLocked() {
	v.token++
	if v.cancelRender != nil {
		v.cancelRender()
	}
	ctx, cancel := context.WithCancel(v.base)
	v.cancelRender = cancel
	req := renderRequest{
		token: v.token,
		page:  v.current,
		total: v.total,
		width: v.container.Width(),
		doc:   v.doc,
	}
	v.stats.Requested++
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		defer cancel()
		v.render(ctx, req)
	}()
}

func (v *Viewer) render(ctx context.Context, req renderRequest) {
	ctx, span := v.cfg.Tracer.StartSpan(ctx, observability.SpanRender)
	defer span.Finish()
	span.SetTag("page", req.page)
	start := time.Now()

	surface, err := v.paint(ctx, req)

	v.mu.Lock()
	defer v.mu.Unlock()
	if req.token != v.token || req.page != v.current || req.doc != v.doc {
		v.stats.Discarded++
		span.SetTag("discarded", true)
		v.cfg.Logger.Debug("viewer: discarding stale render",
			observability.Int("page", req.page),
			observability.Uint64("token", req.token),
			observability.Uint64(observability.MetricRenderDiscarded, v.stats.Discarded))
		return
	}
	if err != nil {
		perr := &PageDecodeError{Page: req.page, Err: err}
		v.stats.Failed++
		span.SetError(perr)
		v.cfg.Logger.Warn("viewer: page render failed",
			observability.String("url", v.url),
			observability.Int("page", req.page),
			observability.Error("error", perr))
		return
	}
	v.container.ShowSurface(req.page, surface)
	v.container.ShowIndicator(fmt.Sprintf("Page %d of %d", req.page, req.total))
	v.stats.Committed++
	v.cfg.Logger.Debug("viewer: page rendered",
		observability.Int("page", req.page),
		observability.Int("width", surface.Bounds().Dx()),
		observability.Int("height", surface.Bounds().Dy()),
		observability.Int64(observability.MetricRenderTime, time.Since(start).Milliseconds()))
}

// paint fetches and rasterizes one page. Panics from the page are returned
// as errors.
func (v *Viewer) paint(ctx context.Context, req renderRequest) (surface *image.RGBA, err error) {
	defer func() {
		if r := recover(); r != nil {
			surface, err = nil, fmt.Errorf("render panic: %v", r)
		}
	}()
	page, err := req.doc.Page(ctx, req.page)
	if err != nil {
		return nil, err
	}
	iw, ih := page.Size()
	if iw <= 0 || ih <= 0 {
		return nil, fmt.Errorf("page has no area (%gx%g)", iw, ih)
	}
	scale := ScaleToWidth(iw, req.width)
	w, h := surfaceSize(iw, ih, scale, roundUp)
	if limit := v.cfg.MaxSurfacePixels; w*h > limit {
		scale *= math.Sqrt(float64(limit) / float64(w*h))
		w, h = surfaceSize(iw, ih, scale, math.Floor)
	}
	surface = image.NewRGBA(image.Rect(0, 0, w, h))
	if err := page.Render(ctx, surface, scale); err != nil {
		return nil, err
	}
	return surface, nil
}

// ScaleToWidth returns the scale that fits intrinsicWidth into width
// pixels. A container without a width renders at scale 1.
func ScaleToWidth(intrinsicWidth float64, width int) float64 {
	if width <= 0 || intrinsicWidth <= 0 {
		return 1
	}
	return float64(width) / intrinsicWidth
}

// roundUp is math.Ceil that ignores floating point noise from the scale
// division.
func roundUp(x float64) float64 { return math.Ceil(x - 1e-6) }

func surfaceSize(iw, ih, scale float64, round func(float64) float64) (int, int) {
	w := int(round(iw * scale))
	h := int(round(ih * scale))
	return max(w, 1), max(h, 1)
}
