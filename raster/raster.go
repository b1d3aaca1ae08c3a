// Package raster paints page content streams into RGBA bitmaps.
//
// Coverage follows what a document viewer needs for a faithful preview:
// paths, device and indexed colors, simple and composite fonts, images and
// form XObjects. Shadings and patterns are not painted, clipping paths are
// approximated by their bounding boxes and even-odd fills use the nonzero
// rule.
package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	"github.com/wudi/pdfviewer/contentstream"
	"github.com/wudi/pdfviewer/coords"
	"github.com/wudi/pdfviewer/fonts"
	"github.com/wudi/pdfviewer/ir/raw"
	"github.com/wudi/pdfviewer/observability"
	"github.com/wudi/pdfviewer/recovery"
	"github.com/wudi/pdfviewer/security"
)

// Resolver is the object access the renderer needs; parser.ObjectLoader
// satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, obj raw.Object) (raw.Object, error)
	DecodeStream(ctx context.Context, stm *raw.StreamObj) ([]byte, []string, error)
}

type Options struct {
	// Recovery decides whether malformed operators, missing resources and
	// undecodable images abort the page. Nil records them and keeps painting.
	Recovery recovery.Strategy
	Logger   observability.Logger
	// MaxXObjectDepth bounds form XObject nesting.
	MaxXObjectDepth int
	// MaxImagePixels bounds the sample count of a single image.
	MaxImagePixels int
}

// Page is what the renderer needs to know about one page.
type Page struct {
	// Box is the visible region in default user space, usually the CropBox.
	Box       coords.Rect
	Rotate    int
	Resources *raw.DictObj
	Content   []byte
	// Scale is the number of pixels per unit of user space. Zero stretches
	// the box to fill the surface.
	Scale float64
}

type Renderer struct {
	res  Resolver
	opts Options
}

func New(res Resolver, opts Options) *Renderer {
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger{}
	}
	if opts.MaxXObjectDepth <= 0 {
		opts.MaxXObjectDepth = security.DefaultLimits().MaxXObjectDepth
	}
	if opts.MaxImagePixels <= 0 {
		opts.MaxImagePixels = 1 << 26
	}
	return &Renderer{res: res, opts: opts}
}

var ErrEmptyPage = errors.New("raster: empty page box")

// Render paints p into dst, which is cleared to white first. With a Scale
// the page is drawn uniformly from the top-left corner and any slack in dst
// stays white; without one the displayed box fills dst.
func (r *Renderer) Render(ctx context.Context, dst *image.RGBA, p Page) error {
	b := dst.Bounds()
	draw.Draw(dst, b, image.White, image.Point{}, draw.Src)
	if p.Box.Empty() {
		return ErrEmptyPage
	}
	if b.Empty() {
		return nil
	}
	rec := r.opts.Recovery
	if rec == nil {
		rec = recovery.NewLenientStrategy(100)
	}
	ops, err := contentstream.Parse(p.Content, rec)
	if err != nil {
		return fmt.Errorf("parse content: %w", err)
	}
	m := PageMatrix(p.Box, p.Rotate, b.Dx(), b.Dy())
	if p.Scale > 0 {
		m = ScaledPageMatrix(p.Box, p.Rotate, p.Scale)
	}
	base := m.Multiply(coords.Translate(float64(b.Min.X), float64(b.Min.Y)))
	ec := contentstream.NewExecutionContext(base, p.Resources)
	clip := coords.Rect{LLX: float64(b.Min.X), LLY: float64(b.Min.Y), URX: float64(b.Max.X), URY: float64(b.Max.Y)}
	ec.State.Clip = &clip

	pt := newPainter(ctx, r, dst, rec)
	return pt.proc.Process(ctx, ops, ec)
}

// PageMatrix maps default user space of box, shown with the given clockwise
// rotation, onto a w by h pixel surface whose y axis points down.
func PageMatrix(box coords.Rect, rotate, w, h int) coords.Matrix {
	m, dw, dh := orient(box, rotate)
	return m.Multiply(coords.Matrix{float64(w) / dw, 0, 0, -float64(h) / dh, 0, float64(h)})
}

// ScaledPageMatrix is PageMatrix with the same scale on both axes, placing
// the top-left corner of the displayed box at the origin.
func ScaledPageMatrix(box coords.Rect, rotate int, scale float64) coords.Matrix {
	m, _, dh := orient(box, rotate)
	return m.Multiply(coords.Matrix{scale, 0, 0, -scale, 0, dh * scale})
}

// orient moves box to the origin and rotates it; dw and dh are the displayed
// width and height in user space units.
func orient(box coords.Rect, rotate int) (m coords.Matrix, dw, dh float64) {
	bw, bh := box.Width(), box.Height()
	m = coords.Translate(-box.LLX, -box.LLY)
	dw, dh = bw, bh
	switch NormalizeRotation(rotate) {
	case 90:
		m = m.Multiply(coords.Matrix{0, -1, 1, 0, 0, bw})
		dw, dh = bh, bw
	case 180:
		m = m.Multiply(coords.Matrix{-1, 0, 0, -1, bw, bh})
	case 270:
		m = m.Multiply(coords.Matrix{0, 1, -1, 0, bh, 0})
		dw, dh = bh, bw
	}
	return m, dw, dh
}

// NormalizeRotation folds any multiple of 90 into 0, 90, 180 or 270.
func NormalizeRotation(rotate int) int {
	r := ((rotate % 360) + 360) % 360
	return r - r%90
}

// SurfaceSize returns the pixel size of box under rotation at scale.
func SurfaceSize(box coords.Rect, rotate int, scale float64) (w, h int) {
	bw, bh := box.Width(), box.Height()
	if NormalizeRotation(rotate)%180 != 0 {
		bw, bh = bh, bw
	}
	return int(math.Ceil(bw * scale)), int(math.Ceil(bh * scale))
}

// painter holds the per-render state that is not part of the graphics state.
type painter struct {
	ctx      context.Context
	r        *Renderer
	dst      *image.RGBA
	rec      recovery.Strategy
	proc     contentstream.Processor
	raster   *vector.Rasterizer
	fonts    map[*raw.DictObj]*fonts.Face
	profiles map[*raw.StreamObj]*colorSpace
	depth    int

	path        []segment
	start, cur  coords.Point
	pendingClip bool
}

func newPainter(ctx context.Context, r *Renderer, dst *image.RGBA, rec recovery.Strategy) *painter {
	p := &painter{
		ctx:    ctx,
		r:      r,
		dst:    dst,
		rec:    rec,
		proc:   contentstream.NewProcessor(),
		raster: vector.NewRasterizer(1, 1),
		fonts:  make(map[*raw.DictObj]*fonts.Face),

		profiles: make(map[*raw.StreamObj]*colorSpace),
	}
	for _, op := range []string{"m", "l", "c", "v", "y", "h", "re"} {
		p.proc.RegisterHandler(op, contentstream.HandlerFunc(p.construct))
	}
	for _, op := range []string{"f", "F", "f*", "S", "s", "B", "B*", "b", "b*", "n"} {
		p.proc.RegisterHandler(op, contentstream.HandlerFunc(p.paintPath))
	}
	p.proc.RegisterHandler("W", contentstream.HandlerFunc(p.clip))
	p.proc.RegisterHandler("W*", contentstream.HandlerFunc(p.clip))
	p.proc.RegisterHandler("gs", contentstream.HandlerFunc(p.extGState))
	for _, op := range []string{"Tj", "TJ", "'", "\""} {
		p.proc.RegisterHandler(op, contentstream.HandlerFunc(p.showText))
	}
	p.proc.RegisterHandler("Do", contentstream.HandlerFunc(p.xobject))
	p.proc.RegisterHandler("BI", contentstream.HandlerFunc(p.inlineImage))
	return p
}

// problem reports a recoverable failure; a nil return means painting goes on.
func (p *painter) problem(err error, component string) error {
	p.r.opts.Logger.Debug("raster: skipped content",
		observability.String("component", component),
		observability.Error("error", err))
	if p.rec.OnError(p.ctx, err, recovery.Location{Component: component}).Continue() {
		return nil
	}
	return err
}

// resource looks up name in the category sub-dictionary of res.
func (p *painter) resource(res *raw.DictObj, category, name string) (raw.Object, error) {
	if res == nil {
		return nil, fmt.Errorf("no resources for %s /%s", category, name)
	}
	catObj, ok := res.Get(category)
	if !ok {
		return nil, fmt.Errorf("missing /%s resources", category)
	}
	cat, err := p.r.res.Resolve(p.ctx, catObj)
	if err != nil {
		return nil, err
	}
	dict, ok := cat.(*raw.DictObj)
	if !ok {
		return nil, fmt.Errorf("missing /%s resources", category)
	}
	v, ok := dict.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown %s /%s", category, name)
	}
	return p.r.res.Resolve(p.ctx, v)
}

func (p *painter) extGState(ec *contentstream.ExecutionContext, op contentstream.Operation) error {
	obj, err := p.resource(ec.Resources, "ExtGState", contentstream.NameOperand(op.Operands, 0))
	if err != nil {
		return p.problem(err, "extgstate")
	}
	d, ok := obj.(*raw.DictObj)
	if !ok {
		return nil
	}
	gs := ec.State
	if v, ok := d.Number("LW"); ok {
		gs.LineWidth = v
	}
	if v, ok := d.Number("CA"); ok {
		gs.StrokeAlpha = clamp01(v)
	}
	if v, ok := d.Number("ca"); ok {
		gs.FillAlpha = clamp01(v)
	}
	return nil
}

// clipBounds converts a device space clip to whole pixels inside dst.
func (p *painter) clipBounds(c *coords.Rect) image.Rectangle {
	b := p.dst.Bounds()
	if c == nil {
		return b
	}
	cc := c.Intersect(coords.Rect{LLX: float64(b.Min.X), LLY: float64(b.Min.Y), URX: float64(b.Max.X), URY: float64(b.Max.Y)})
	if cc.Empty() {
		return image.Rectangle{}
	}
	c = &cc
	r := image.Rect(int(math.Floor(c.LLX)), int(math.Floor(c.LLY)), int(math.Ceil(c.URX)), int(math.Ceil(c.URY)))
	return r.Intersect(b)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
