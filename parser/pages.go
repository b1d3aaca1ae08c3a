package parser

import (
	"context"
	"errors"
	"fmt"

	"github.com/wudi/pdfviewer/coords"
	"github.com/wudi/pdfviewer/ir/raw"
	"github.com/wudi/pdfviewer/recovery"
)

// letter is the MediaBox assumed when a page tree declares none.
var letter = coords.Rect{URX: 612, URY: 792}

type inherited struct {
	mediaBox  *coords.Rect
	cropBox   *coords.Rect
	rotate    int
	resources *raw.DictObj
}

func (p *DocumentParser) walkPages(ctx context.Context, loader ObjectLoader, catalog *raw.DictObj) ([]*Page, error) {
	var pages []*Page
	visited := make(map[raw.ObjectRef]bool)

	var walk func(obj raw.Object, inh inherited, depth int) error
	walk = func(obj raw.Object, inh inherited, depth int) error {
		if depth > p.cfg.Limits.MaxPageTreeDepth {
			return errors.New("page tree too deep")
		}
		var ref raw.ObjectRef
		if r, ok := obj.(raw.RefObj); ok {
			if visited[r.R] {
				return p.recover(ctx, fmt.Errorf("page tree cycle at %s", r.R), r.R)
			}
			visited[r.R] = true
			ref = r.R
		}
		resolved, err := loader.Resolve(ctx, obj)
		if err != nil {
			return p.recover(ctx, err, ref)
		}
		dict, ok := resolved.(*raw.DictObj)
		if !ok {
			return p.recover(ctx, fmt.Errorf("page tree node %s is not a dictionary", ref), ref)
		}
		inh = inherit(ctx, loader, dict, inh)

		kidsObj, hasKids := dict.Get("Kids")
		if typ := dict.Name("Type"); typ == "Pages" || (typ != "Page" && hasKids) {
			kids, err := loader.Resolve(ctx, kidsObj)
			if err != nil {
				return p.recover(ctx, err, ref)
			}
			arr, ok := kids.(*raw.ArrayObj)
			if !ok {
				return p.recover(ctx, fmt.Errorf("pages node %s has no /Kids array", ref), ref)
			}
			for _, kid := range arr.Items {
				if err := walk(kid, inh, depth+1); err != nil {
					return err
				}
			}
			return nil
		}

		page := &Page{Number: len(pages) + 1, Ref: ref, Dict: dict, UserUnit: 1, Resources: inh.resources}
		page.MediaBox = letter
		if inh.mediaBox != nil {
			page.MediaBox = *inh.mediaBox
		}
		page.CropBox = page.MediaBox
		if inh.cropBox != nil {
			if c := inh.cropBox.Intersect(page.MediaBox); !c.Empty() {
				page.CropBox = c
			}
		}
		page.Rotate = ((inh.rotate/90)*90%360 + 360) % 360
		if u, err := loader.Resolve(ctx, valueOf(dict, "UserUnit")); err == nil {
			if n, ok := u.(raw.NumberObj); ok && n.Float() > 0 {
				page.UserUnit = n.Float()
			}
		}
		if page.Resources == nil {
			page.Resources = raw.Dict()
		}
		pages = append(pages, page)
		return nil
	}

	if err := walk(valueOf(catalog, "Pages"), inherited{}, 0); err != nil {
		return nil, fmt.Errorf("page tree: %w", err)
	}
	return pages, nil
}

func inherit(ctx context.Context, loader ObjectLoader, dict *raw.DictObj, inh inherited) inherited {
	if r, ok := rectOf(ctx, loader, valueOf(dict, "MediaBox")); ok {
		inh.mediaBox = &r
	}
	if r, ok := rectOf(ctx, loader, valueOf(dict, "CropBox")); ok {
		inh.cropBox = &r
	}
	if v, err := loader.Resolve(ctx, valueOf(dict, "Rotate")); err == nil {
		if n, ok := v.(raw.NumberObj); ok {
			inh.rotate = int(n.Int())
		}
	}
	if v, err := loader.Resolve(ctx, valueOf(dict, "Resources")); err == nil {
		if d, ok := v.(*raw.DictObj); ok {
			inh.resources = d
		}
	}
	return inh
}

func rectOf(ctx context.Context, loader ObjectLoader, obj raw.Object) (coords.Rect, bool) {
	v, err := loader.Resolve(ctx, obj)
	if err != nil {
		return coords.Rect{}, false
	}
	arr, ok := v.(*raw.ArrayObj)
	if !ok || arr.Len() != 4 {
		return coords.Rect{}, false
	}
	var n [4]float64
	for i, item := range arr.Items {
		resolved, err := loader.Resolve(ctx, item)
		if err != nil {
			return coords.Rect{}, false
		}
		num, ok := resolved.(raw.NumberObj)
		if !ok {
			return coords.Rect{}, false
		}
		n[i] = num.Float()
	}
	r := coords.NewRect(n[0], n[1], n[2], n[3])
	return r, !r.Empty()
}

func (p *DocumentParser) recover(ctx context.Context, err error, ref raw.ObjectRef) error {
	if p.cfg.Recovery == nil {
		return err
	}
	loc := recovery.Location{ObjectNum: ref.Num, ObjectGen: ref.Gen, Component: "pages"}
	if p.cfg.Recovery.OnError(ctx, err, loc).Continue() {
		return nil
	}
	return err
}
