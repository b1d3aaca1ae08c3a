// Package pdfdoc opens PDF files for the viewer. It fetches the bytes with a
// source.Fetcher, parses the page tree with parser and paints pages with
// raster. Page content streams are decoded only when a page is rendered.
package pdfdoc

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/wudi/pdfviewer/observability"
	"github.com/wudi/pdfviewer/parser"
	"github.com/wudi/pdfviewer/raster"
	"github.com/wudi/pdfviewer/security"
	"github.com/wudi/pdfviewer/source"
	"github.com/wudi/pdfviewer/viewer"
)

type Config struct {
	// Fetcher defaults to an HTTP fetcher with source.DefaultConfig.
	Fetcher source.Fetcher
	Parser  parser.Config
	Raster  raster.Options
	Logger  observability.Logger
}

// Loader implements viewer.Loader for PDF files.
type Loader struct {
	fetcher source.Fetcher
	parser  *parser.DocumentParser
	cfg     Config
}

func NewLoader(cfg Config) *Loader {
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	if cfg.Fetcher == nil {
		sc := source.DefaultConfig()
		sc.Logger = cfg.Logger
		cfg.Fetcher = source.NewHTTPFetcher(sc)
	}
	if cfg.Raster.Logger == nil {
		cfg.Raster.Logger = cfg.Logger
	}
	if cfg.Raster.Recovery == nil {
		cfg.Raster.Recovery = cfg.Parser.Recovery
	}
	if cfg.Raster.MaxXObjectDepth <= 0 {
		cfg.Raster.MaxXObjectDepth = cfg.Parser.Limits.WithDefaults().MaxXObjectDepth
	}
	return &Loader{fetcher: cfg.Fetcher, parser: parser.NewDocumentParser(cfg.Parser), cfg: cfg}
}

// Load fetches url and opens it.
func (l *Loader) Load(ctx context.Context, url string) (viewer.Document, error) {
	doc, err := l.OpenURL(ctx, url)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// OpenURL is Load returning the concrete document.
func (l *Loader) OpenURL(ctx context.Context, url string) (*Document, error) {
	data, err := l.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	doc, err := l.Open(ctx, data)
	if err != nil {
		return nil, err
	}
	l.cfg.Logger.Debug("pdfdoc: opened",
		observability.String("url", url),
		observability.String("version", doc.pdf.Version),
		observability.String("xref", doc.pdf.XRefType),
		observability.Bool("encrypted", doc.pdf.Encrypted),
		observability.Int(observability.MetricFetchedBytes, len(data)))
	return doc, nil
}

// Open parses a document already in memory.
func (l *Loader) Open(ctx context.Context, data []byte) (*Document, error) {
	pdf, err := l.parser.Parse(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("pdfdoc: %w", err)
	}
	return &Document{
		pdf:      pdf,
		renderer: raster.New(pdf.Loader(), l.cfg.Raster),
		size:     int64(len(data)),
	}, nil
}

// Document is an open PDF file.
type Document struct {
	pdf      *parser.Document
	renderer *raster.Renderer
	size     int64

	mu     sync.Mutex
	closed bool
}

func (d *Document) NumPages() int { return d.pdf.NumPages() }

// Page returns page n. It fails with viewer.ErrClosed once the document is
// closed; pages handed out before that keep working.
func (d *Document) Page(ctx context.Context, n int) (viewer.Page, error) {
	p, err := d.PDFPage(n)
	if err != nil {
		return nil, err
	}
	return &Page{doc: d, p: p}, nil
}

// PDFPage is Page without the viewer interface.
func (d *Document) PDFPage(n int) (*parser.Page, error) {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return nil, viewer.ErrClosed
	}
	return d.pdf.Page(n)
}

func (d *Document) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func (d *Document) Info() parser.Info { return d.pdf.Info }

// Version is the PDF version from the header or the catalog.
func (d *Document) Version() string { return d.pdf.Version }

func (d *Document) Encrypted() bool { return d.pdf.Encrypted }

func (d *Document) Permissions() security.Permissions { return d.pdf.Permissions }

// Size is the file size in bytes.
func (d *Document) Size() int64 { return d.size }

// Loader gives access to the document's objects.
func (d *Document) Loader() parser.ObjectLoader { return d.pdf.Loader() }

// Scripts returns the document-level JavaScript.
func (d *Document) Scripts(ctx context.Context) ([]viewer.Script, error) {
	js, err := d.pdf.JavaScript(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]viewer.Script, 0, len(js))
	for _, s := range js {
		out = append(out, viewer.Script{Name: s.Name, Source: s.Source})
	}
	return out, nil
}

// Page is one page of a Document.
type Page struct {
	doc *Document
	p   *parser.Page
}

func (p *Page) Number() int { return p.p.Number }

func (p *Page) Size() (w, h float64) { return p.p.Size() }

// Render decodes the page content and paints it at scale pixels per point.
// Rounding slack in dst stays white.
func (p *Page) Render(ctx context.Context, dst *image.RGBA, scale float64) error {
	content, err := p.doc.pdf.Contents(ctx, p.p)
	if err != nil {
		return err
	}
	box := p.p.CropBox
	if box.Empty() {
		box = p.p.MediaBox
	}
	return p.doc.renderer.Render(ctx, dst, raster.Page{
		Box:       box,
		Rotate:    p.p.Rotate,
		Resources: p.p.Resources,
		Content:   content,
		Scale:     scale,
	})
}
