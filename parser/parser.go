package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wudi/pdfviewer/coords"
	"github.com/wudi/pdfviewer/ir/raw"
	"github.com/wudi/pdfviewer/recovery"
	"github.com/wudi/pdfviewer/security"
	"github.com/wudi/pdfviewer/xref"
)

var (
	// ErrEncrypted marks documents whose encryption the viewer cannot open.
	ErrEncrypted = errors.New("encrypted document")
	ErrNoPages   = errors.New("document has no pages")
)

// Config controls high-level PDF parsing (xref resolution + object loading).
type Config struct {
	Recovery recovery.Strategy
	Limits   security.Limits
	Cache    Cache
}

// DocumentParser builds a Document from the complete bytes of a file.
type DocumentParser struct {
	cfg Config
}

func NewDocumentParser(cfg Config) *DocumentParser {
	cfg.Limits = cfg.Limits.WithDefaults()
	return &DocumentParser{cfg: cfg}
}

// Info holds the document information dictionary.
type Info struct {
	Title    string
	Author   string
	Subject  string
	Keywords []string
	Creator  string
	Producer string
}

type Document struct {
	Version     string
	Trailer     *raw.DictObj
	Catalog     *raw.DictObj
	Info        Info
	Encrypted   bool
	Permissions security.Permissions
	XRefType    string

	pages  []*Page
	loader ObjectLoader
}

func (d *Document) Loader() ObjectLoader { return d.loader }
func (d *Document) NumPages() int        { return len(d.pages) }

// Page returns the 1-based page n.
func (d *Document) Page(n int) (*Page, error) {
	if n < 1 || n > len(d.pages) {
		return nil, fmt.Errorf("page %d out of range [1,%d]", n, len(d.pages))
	}
	return d.pages[n-1], nil
}

func (p *DocumentParser) Parse(ctx context.Context, data []byte) (*Document, error) {
	resolver := xref.NewResolver(xref.ResolverConfig{Recovery: p.cfg.Recovery, MaxSections: p.cfg.Limits.MaxXRefDepth})
	table, err := resolver.Resolve(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("resolve xref: %w", err)
	}
	trailer := table.Trailer()

	builder := &ObjectLoaderBuilder{
		data:      data,
		xrefTable: table,
		limits:    p.cfg.Limits,
		cache:     p.cfg.Cache,
		recovery:  p.cfg.Recovery,
	}
	sec, err := p.selectSecurity(ctx, builder, trailer)
	if err != nil {
		return nil, err
	}
	builder.security = sec
	loader, err := builder.Build()
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Version:     detectHeaderVersion(data),
		Trailer:     trailer,
		Encrypted:   sec.IsEncrypted(),
		Permissions: sec.Permissions(),
		XRefType:    table.Type(),
		loader:      loader,
	}
	rootObj, _ := trailer.Get("Root")
	root, err := loader.Resolve(ctx, rootObj)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	catalog, ok := root.(*raw.DictObj)
	if !ok {
		return nil, errors.New("document catalog is not a dictionary")
	}
	doc.Catalog = catalog
	if v, err := loader.Resolve(ctx, valueOf(catalog, "Version")); err == nil {
		if n, ok := v.(raw.NameObj); ok && n.Val > doc.Version {
			doc.Version = n.Val
		}
	}

	pages, err := p.walkPages(ctx, loader, catalog)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, ErrNoPages
	}
	doc.pages = pages
	doc.Info = p.readInfo(ctx, loader, trailer)
	return doc, nil
}

func valueOf(d *raw.DictObj, key string) raw.Object {
	v, ok := d.Get(key)
	if !ok {
		return raw.NullObj{}
	}
	return v
}

func (p *DocumentParser) selectSecurity(ctx context.Context, b *ObjectLoaderBuilder, trailer *raw.DictObj) (security.Handler, error) {
	encObj, ok := trailer.Get("Encrypt")
	if !ok {
		return security.NoopHandler(), nil
	}
	var encDict *raw.DictObj
	switch v := encObj.(type) {
	case *raw.DictObj:
		encDict = v
	case raw.RefObj:
		// a private cache keeps undecrypted objects away from the real loader
		plainBuilder := *b
		plainBuilder.cache = NewMapCache()
		plain, err := plainBuilder.Build()
		if err != nil {
			return nil, err
		}
		obj, err := plain.Load(ctx, v.R)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncrypted, err)
		}
		encDict, _ = obj.(*raw.DictObj)
		ref := v.R
		b.encryptRef = &ref
	}
	if encDict == nil {
		return nil, fmt.Errorf("%w: invalid /Encrypt entry", ErrEncrypted)
	}
	handler, err := (&security.HandlerBuilder{}).WithEncryptDict(encDict).WithTrailer(trailer).Build()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncrypted, err)
	}
	return handler, nil
}

func (p *DocumentParser) readInfo(ctx context.Context, loader ObjectLoader, trailer *raw.DictObj) Info {
	obj, err := loader.Resolve(ctx, valueOf(trailer, "Info"))
	if err != nil {
		return Info{}
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return Info{}
	}
	text := func(key string) string {
		v, err := loader.Resolve(ctx, valueOf(dict, key))
		if err != nil {
			return ""
		}
		if s, ok := v.(raw.StringObj); ok {
			return raw.Text(s.Bytes)
		}
		return ""
	}
	info := Info{
		Title:    text("Title"),
		Author:   text("Author"),
		Subject:  text("Subject"),
		Creator:  text("Creator"),
		Producer: text("Producer"),
	}
	if kw := text("Keywords"); kw != "" {
		for _, k := range strings.FieldsFunc(kw, func(r rune) bool { return r == ',' || r == ';' }) {
			if k = strings.TrimSpace(k); k != "" {
				info.Keywords = append(info.Keywords, k)
			}
		}
	}
	return info
}

func detectHeaderVersion(data []byte) string {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	idx := bytes.Index(head, []byte("%PDF-"))
	if idx < 0 || idx+8 > len(head) {
		return ""
	}
	return string(head[idx+5 : idx+8])
}

// Page is one leaf of the page tree with its inheritable attributes resolved.
type Page struct {
	Number    int
	Ref       raw.ObjectRef
	Dict      *raw.DictObj
	MediaBox  coords.Rect
	CropBox   coords.Rect
	Rotate    int
	UserUnit  float64
	Resources *raw.DictObj
}

// Size returns the displayed page size in points, after CropBox, rotation
// and UserUnit are applied.
func (p *Page) Size() (w, h float64) {
	box := p.CropBox
	if box.Empty() {
		box = p.MediaBox
	}
	w, h = box.Width()*p.UserUnit, box.Height()*p.UserUnit
	if p.Rotate%180 != 0 {
		w, h = h, w
	}
	return w, h
}

// Contents returns the page's content streams decoded and joined.
func (d *Document) Contents(ctx context.Context, p *Page) ([]byte, error) {
	obj, err := d.loader.Resolve(ctx, valueOf(p.Dict, "Contents"))
	if err != nil {
		return nil, err
	}
	var streams []raw.Object
	switch v := obj.(type) {
	case *raw.StreamObj:
		streams = append(streams, v)
	case *raw.ArrayObj:
		streams = v.Items
	case raw.NullObj:
		return nil, nil
	default:
		return nil, fmt.Errorf("page %d: invalid /Contents", p.Number)
	}
	var out bytes.Buffer
	for _, item := range streams {
		resolved, err := d.loader.Resolve(ctx, item)
		if err != nil {
			return nil, err
		}
		stm, ok := resolved.(*raw.StreamObj)
		if !ok {
			continue
		}
		data, rest, err := d.loader.DecodeStream(ctx, stm)
		if err != nil {
			return nil, fmt.Errorf("page %d contents: %w", p.Number, err)
		}
		if len(rest) > 0 {
			return nil, fmt.Errorf("page %d contents: unsupported filter %s", p.Number, rest[0])
		}
		out.Write(data)
		out.WriteByte('\n')
	}
	return out.Bytes(), nil
}
