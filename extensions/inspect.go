package extensions

import (
	"context"

	"github.com/wudi/pdfviewer/ir/raw"
	"github.com/wudi/pdfviewer/pdfdoc"
)

// BasicInspector implements a simple document inspector.
type BasicInspector struct{}

func (i *BasicInspector) Name() string { return "BasicInspector" }

func (i *BasicInspector) Inspect(ctx context.Context, doc *pdfdoc.Document) (*InspectionReport, error) {
	report := &InspectionReport{
		PageCount:   doc.NumPages(),
		FileSize:    doc.Size(),
		Version:     doc.Version(),
		Encrypted:   doc.Encrypted(),
		Permissions: doc.Permissions(),
		Metadata:    make(map[string]string),
	}

	info := doc.Info()
	for key, val := range map[string]string{
		"Title":    info.Title,
		"Author":   info.Author,
		"Subject":  info.Subject,
		"Creator":  info.Creator,
		"Producer": info.Producer,
	} {
		if val != "" {
			report.Metadata[key] = val
		}
	}

	// shared resources are counted once
	fonts := make(map[any]struct{})
	images := make(map[any]struct{})
	loader := doc.Loader()
	for n := 1; n <= doc.NumPages(); n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := doc.PDFPage(n)
		if err != nil {
			return nil, err
		}
		w, h := p.Size()
		report.Pages = append(report.Pages, PageReport{Number: n, Width: w, Height: h, Rotate: p.Rotate})
		if p.Resources == nil {
			continue
		}
		each(ctx, loader, p.Resources, "Font", func(key any, _ raw.Object) {
			fonts[key] = struct{}{}
		})
		each(ctx, loader, p.Resources, "XObject", func(key any, obj raw.Object) {
			if st, ok := obj.(*raw.StreamObj); ok && st.Dict.Name("Subtype") == "Image" {
				images[key] = struct{}{}
			}
		})
	}
	report.FontCount = len(fonts)
	report.ImageCount = len(images)

	if scripts, err := doc.Scripts(ctx); err == nil {
		report.ScriptCount = len(scripts)
	}
	return report, nil
}

type resolver interface {
	Resolve(ctx context.Context, obj raw.Object) (raw.Object, error)
}

// each visits the entries of a resource category. Entries are keyed by their
// object reference, or by the object itself when it is direct.
func each(ctx context.Context, r resolver, res *raw.DictObj, category string, visit func(key any, obj raw.Object)) {
	v, _ := res.Get(category)
	obj, err := r.Resolve(ctx, v)
	if err != nil {
		return
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return
	}
	for _, name := range dict.Keys() {
		entry, _ := dict.Get(name)
		resolved, err := r.Resolve(ctx, entry)
		if err != nil {
			continue
		}
		var key any
		if ref, ok := entry.(raw.RefObj); ok {
			key = ref.R
		} else {
			switch resolved.(type) {
			case *raw.DictObj, *raw.StreamObj:
				key = resolved
			default:
				continue
			}
		}
		visit(key, resolved)
	}
}
