package parser

import (
	"context"

	"github.com/wudi/pdfviewer/ir/raw"
)

// Script is a document-level JavaScript action.
type Script struct {
	Name   string
	Source string
}

// JavaScript collects the scripts a viewer would run when the document
// opens: the /Names /JavaScript name tree followed by a JavaScript
// /OpenAction.
func (d *Document) JavaScript(ctx context.Context) ([]Script, error) {
	var out []Script
	names, err := d.loader.Resolve(ctx, valueOf(d.Catalog, "Names"))
	if err != nil {
		return nil, err
	}
	if nd, ok := names.(*raw.DictObj); ok {
		tree, err := d.loader.Resolve(ctx, valueOf(nd, "JavaScript"))
		if err != nil {
			return nil, err
		}
		if err := d.walkNameTree(ctx, tree, 0, func(name string, action raw.Object) {
			if src, ok := d.scriptSource(ctx, action); ok {
				out = append(out, Script{Name: name, Source: src})
			}
		}); err != nil {
			return nil, err
		}
	}
	if src, ok := d.scriptSource(ctx, valueOf(d.Catalog, "OpenAction")); ok {
		out = append(out, Script{Name: "OpenAction", Source: src})
	}
	return out, nil
}

func (d *Document) walkNameTree(ctx context.Context, node raw.Object, depth int, visit func(string, raw.Object)) error {
	dict, ok := node.(*raw.DictObj)
	if !ok || depth > 32 {
		return nil
	}
	if v, err := d.loader.Resolve(ctx, valueOf(dict, "Names")); err == nil {
		if arr, ok := v.(*raw.ArrayObj); ok {
			for i := 0; i+1 < len(arr.Items); i += 2 {
				key, _ := d.loader.Resolve(ctx, arr.Items[i])
				name := ""
				if s, ok := key.(raw.StringObj); ok {
					name = raw.Text(s.Bytes)
				}
				visit(name, arr.Items[i+1])
			}
		}
	}
	kids, err := d.loader.Resolve(ctx, valueOf(dict, "Kids"))
	if err != nil {
		return err
	}
	if arr, ok := kids.(*raw.ArrayObj); ok {
		for _, kid := range arr.Items {
			resolved, err := d.loader.Resolve(ctx, kid)
			if err != nil {
				return err
			}
			if err := d.walkNameTree(ctx, resolved, depth+1, visit); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Document) scriptSource(ctx context.Context, action raw.Object) (string, bool) {
	obj, err := d.loader.Resolve(ctx, action)
	if err != nil {
		return "", false
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok || dict.Name("S") != "JavaScript" {
		return "", false
	}
	js, err := d.loader.Resolve(ctx, valueOf(dict, "JS"))
	if err != nil {
		return "", false
	}
	switch v := js.(type) {
	case raw.StringObj:
		return raw.Text(v.Bytes), true
	case *raw.StreamObj:
		data, rest, err := d.loader.DecodeStream(ctx, v)
		if err != nil || len(rest) > 0 {
			return "", false
		}
		return raw.Text(data), true
	}
	return "", false
}
