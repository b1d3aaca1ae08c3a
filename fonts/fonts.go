// Package fonts turns PDF font dictionaries into faces the rasterizer can
// paint: character codes, advance widths and glyph outlines. Embedded
// TrueType and OpenType programs are used directly; everything else falls
// back to the Go fonts.
package fonts

import (
	"context"
	"fmt"
	"strings"
	"sync"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/wudi/pdfviewer/coords"
	"github.com/wudi/pdfviewer/ir/raw"
)

// Resolver is the part of the object loader a face needs.
type Resolver interface {
	Resolve(ctx context.Context, obj raw.Object) (raw.Object, error)
	DecodeStream(ctx context.Context, stm *raw.StreamObj) ([]byte, []string, error)
}

type SegmentOp int

const (
	MoveTo SegmentOp = iota
	LineTo
	QuadTo
	CubeTo
)

// Segment is one outline command in glyph space scaled to a 1 unit em,
// y axis pointing up.
type Segment struct {
	Op   SegmentOp
	Args [3]coords.Point
}

// Glyph is one character code of a shown string.
type Glyph struct {
	Code int
	// Width is the horizontal advance in text space units for a font size of 1.
	Width float64
	// Space is set for the single-byte code 32, which receives word spacing.
	Space bool
}

// Face is a loaded PDF font. A Face is not safe for concurrent use.
type Face struct {
	Name     string
	Subtype  string
	Embedded bool

	font      *sfnt.Font
	buf       sfnt.Buffer
	composite bool
	widths    map[int]float64
	dw        float64
	hasDW     bool
	// widthScale is FontMatrix[0] for Type3 fonts, 0 for the usual 1/1000.
	widthScale float64
	encoding   [256]rune
	toUnicode  *CMap
	cidToGID   []uint16
	outlines   map[int][]Segment
	style      fontStyle
}

// Load reads a font dictionary. Problems with the embedded program are not
// fatal: the face silently uses a fallback font instead.
func Load(ctx context.Context, res Resolver, dict *raw.DictObj) (*Face, error) {
	if dict == nil {
		return nil, fmt.Errorf("font dictionary missing")
	}
	f := &Face{
		Name:     dict.Name("BaseFont"),
		Subtype:  dict.Name("Subtype"),
		widths:   make(map[int]float64),
		outlines: make(map[int][]Segment),
	}
	if tu, err := resolveStream(ctx, res, valueOf(dict, "ToUnicode")); err == nil && tu != nil {
		if data, _, err := res.DecodeStream(ctx, tu); err == nil {
			f.toUnicode = ParseCMap(data)
		}
	}

	descriptorOwner := dict
	if f.Subtype == "Type0" {
		f.composite = true
		desc, err := res.Resolve(ctx, valueOf(dict, "DescendantFonts"))
		if err != nil {
			return nil, err
		}
		arr, ok := desc.(*raw.ArrayObj)
		if !ok || arr.Len() == 0 {
			return nil, fmt.Errorf("font %s: missing descendant font", f.Name)
		}
		obj, err := res.Resolve(ctx, arr.Items[0])
		if err != nil {
			return nil, err
		}
		cid, ok := obj.(*raw.DictObj)
		if !ok {
			return nil, fmt.Errorf("font %s: invalid descendant font", f.Name)
		}
		descriptorOwner = cid
		f.loadCIDWidths(ctx, res, cid)
		f.loadCIDToGID(ctx, res, cid)
	} else {
		f.loadSimpleWidths(ctx, res, dict)
		f.encoding = simpleEncoding(ctx, res, dict, isSymbolic(f.Name))
		if f.Subtype == "Type3" {
			if m, err := res.Resolve(ctx, valueOf(dict, "FontMatrix")); err == nil {
				if arr, ok := m.(*raw.ArrayObj); ok {
					if nums, err := raw.Numbers(arr); err == nil && len(nums) == 6 {
						f.widthScale = nums[0]
					}
				}
			}
		}
	}

	if fd, err := res.Resolve(ctx, valueOf(descriptorOwner, "FontDescriptor")); err == nil {
		if fd, ok := fd.(*raw.DictObj); ok {
			f.style = f.style.merge(descriptorStyle(fd))
			f.loadProgram(ctx, res, fd)
			if !f.composite {
				if mw, ok := fd.Number("MissingWidth"); ok {
					f.dw, f.hasDW = mw, true
				}
			}
		}
	}
	if f.font == nil {
		f.font = fallback(f.style.merge(styleOf(f.Name)))
	}
	return f, nil
}

func (f *Face) loadProgram(ctx context.Context, res Resolver, fd *raw.DictObj) {
	for _, key := range []string{"FontFile", "FontFile2", "FontFile3"} {
		stm, err := resolveStream(ctx, res, valueOf(fd, key))
		if err != nil || stm == nil {
			continue
		}
		data, _, err := res.DecodeStream(ctx, stm)
		if err != nil {
			continue
		}
		if key == "FontFile" {
			if info, err := parseType1(data, int(stm.Dict.Int("Length1", 0))); err == nil {
				f.style = f.style.merge(info.style())
			}
			continue
		}
		if key == "FontFile3" {
			switch stm.Dict.Name("Subtype") {
			case "Type1C", "CIDFontType0C":
				if info, err := parseCFF(data); err == nil {
					f.style = f.style.merge(info.style())
				}
				continue
			case "OpenType":
			default:
				continue
			}
		}
		parsed, err := sfnt.Parse(data)
		if err != nil || parsed.UnitsPerEm() == 0 {
			continue
		}
		f.font = parsed
		f.Embedded = true
		return
	}
}

func (f *Face) loadSimpleWidths(ctx context.Context, res Resolver, dict *raw.DictObj) {
	first := int(dict.Int("FirstChar", 0))
	obj, err := res.Resolve(ctx, valueOf(dict, "Widths"))
	if err != nil {
		return
	}
	arr, ok := obj.(*raw.ArrayObj)
	if !ok {
		return
	}
	for i, it := range arr.Items {
		it, err := res.Resolve(ctx, it)
		if err != nil {
			continue
		}
		if n, ok := it.(raw.NumberObj); ok {
			f.widths[first+i] = n.Float()
		}
	}
}

// loadCIDWidths reads /DW and the /W array, whose entries are either
// "c [w1 w2 ...]" or "cFirst cLast w".
func (f *Face) loadCIDWidths(ctx context.Context, res Resolver, cid *raw.DictObj) {
	f.dw, f.hasDW = 1000, true
	if dw, ok := cid.Number("DW"); ok {
		f.dw = dw
	}
	obj, err := res.Resolve(ctx, valueOf(cid, "W"))
	if err != nil {
		return
	}
	arr, ok := obj.(*raw.ArrayObj)
	if !ok {
		return
	}
	items := arr.Items
	for i := 0; i < len(items); {
		start, ok := items[i].(raw.NumberObj)
		if !ok || i+1 >= len(items) {
			return
		}
		next, err := res.Resolve(ctx, items[i+1])
		if err != nil {
			return
		}
		if list, ok := next.(*raw.ArrayObj); ok {
			for j, w := range list.Items {
				if n, ok := w.(raw.NumberObj); ok {
					f.widths[int(start.Int())+j] = n.Float()
				}
			}
			i += 2
			continue
		}
		if i+2 >= len(items) {
			return
		}
		last, ok1 := next.(raw.NumberObj)
		w, ok2 := items[i+2].(raw.NumberObj)
		if !ok1 || !ok2 || last.Int()-start.Int() > 0xFFFF {
			return
		}
		for c := start.Int(); c <= last.Int(); c++ {
			f.widths[int(c)] = w.Float()
		}
		i += 3
	}
}

func (f *Face) loadCIDToGID(ctx context.Context, res Resolver, cid *raw.DictObj) {
	stm, err := resolveStream(ctx, res, valueOf(cid, "CIDToGIDMap"))
	if err != nil || stm == nil {
		return
	}
	data, _, err := res.DecodeStream(ctx, stm)
	if err != nil {
		return
	}
	f.cidToGID = make([]uint16, len(data)/2)
	for i := range f.cidToGID {
		f.cidToGID[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
}

// Decode splits a shown string into glyphs. Composite fonts are read with
// two-byte codes (Identity-H), simple fonts with one byte per code.
func (f *Face) Decode(s []byte) []Glyph {
	var out []Glyph
	if f.composite {
		out = make([]Glyph, 0, len(s)/2)
		for i := 0; i+1 < len(s); i += 2 {
			code := int(s[i])<<8 | int(s[i+1])
			out = append(out, Glyph{Code: code, Width: f.width(code)})
		}
		return out
	}
	out = make([]Glyph, 0, len(s))
	for _, b := range s {
		out = append(out, Glyph{Code: int(b), Width: f.width(int(b)), Space: b == ' '})
	}
	return out
}

// scaleWidth converts glyph space widths to text space.
func (f *Face) scaleWidth(w float64) float64 {
	if f.widthScale != 0 {
		return w * f.widthScale
	}
	return w / 1000
}

func (f *Face) width(code int) float64 {
	if w, ok := f.widths[code]; ok {
		return f.scaleWidth(w)
	}
	if f.hasDW && (f.composite || f.dw != 0) {
		return f.scaleWidth(f.dw)
	}
	if f.Subtype == "Type3" {
		return 0
	}
	gid, ok := f.glyphIndex(code)
	if !ok {
		return 0
	}
	upem := f.font.UnitsPerEm()
	adv, err := f.font.GlyphAdvance(&f.buf, gid, fixed.Int26_6(upem)<<6, xfont.HintingNone)
	if err != nil {
		return 0
	}
	return float64(adv) / 64 / float64(upem)
}

// Unicode returns the text a code stands for, if known.
func (f *Face) Unicode(code int) (string, bool) {
	if f.toUnicode != nil {
		if s, ok := f.toUnicode.Lookup(code); ok {
			return s, true
		}
	}
	if !f.composite && code >= 0 && code < 256 && f.encoding[code] != 0 {
		return string(f.encoding[code]), true
	}
	return "", false
}

func (f *Face) glyphIndex(code int) (sfnt.GlyphIndex, bool) {
	if f.Subtype == "Type3" {
		return 0, false
	}
	if f.Embedded && f.composite {
		if f.cidToGID != nil {
			if code < len(f.cidToGID) {
				return sfnt.GlyphIndex(f.cidToGID[code]), true
			}
			return 0, false
		}
		return sfnt.GlyphIndex(code), code < f.font.NumGlyphs()
	}
	if f.Embedded {
		candidates := []rune{rune(0xF000 | code), rune(code)}
		if code < 256 && f.encoding[code] != 0 {
			candidates = append([]rune{f.encoding[code]}, candidates...)
		}
		for _, r := range candidates {
			if gid, err := f.font.GlyphIndex(&f.buf, r); err == nil && gid != 0 {
				return gid, true
			}
		}
		return 0, false
	}
	s, ok := f.Unicode(code)
	if !ok || s == "" {
		return 0, false
	}
	gid, err := f.font.GlyphIndex(&f.buf, []rune(s)[0])
	if err != nil || gid == 0 {
		return 0, false
	}
	return gid, true
}

// Outline returns the glyph outline for code, nil when the face has no
// drawable glyph for it.
func (f *Face) Outline(code int) ([]Segment, error) {
	if segs, ok := f.outlines[code]; ok {
		return segs, nil
	}
	gid, ok := f.glyphIndex(code)
	if !ok {
		f.outlines[code] = nil
		return nil, nil
	}
	upem := f.font.UnitsPerEm()
	loaded, err := f.font.LoadGlyph(&f.buf, gid, fixed.Int26_6(upem)<<6, nil)
	if err != nil {
		f.outlines[code] = nil
		return nil, fmt.Errorf("glyph %d of %s: %w", gid, f.Name, err)
	}
	scale := 1 / (64 * float64(upem))
	segs := make([]Segment, len(loaded))
	for i, s := range loaded {
		seg := Segment{}
		switch s.Op {
		case sfnt.SegmentOpMoveTo:
			seg.Op = MoveTo
		case sfnt.SegmentOpLineTo:
			seg.Op = LineTo
		case sfnt.SegmentOpQuadTo:
			seg.Op = QuadTo
		case sfnt.SegmentOpCubeTo:
			seg.Op = CubeTo
		}
		for j, p := range s.Args {
			seg.Args[j] = coords.Point{X: float64(p.X) * scale, Y: -float64(p.Y) * scale}
		}
		segs[i] = seg
	}
	f.outlines[code] = segs
	return segs, nil
}

var (
	fallbackOnce sync.Once
	fallbacks    map[string]*sfnt.Font
)

type fontStyle struct {
	bold, italic, mono bool
}

func (s fontStyle) merge(o fontStyle) fontStyle {
	return fontStyle{bold: s.bold || o.bold, italic: s.italic || o.italic, mono: s.mono || o.mono}
}

// styleOf guesses the style from a base font name such as
// "ABCDEF+Helvetica-BoldOblique".
func styleOf(name string) fontStyle {
	lower := strings.ToLower(name)
	return fontStyle{
		bold:   strings.Contains(lower, "bold") || strings.Contains(lower, "black"),
		italic: strings.Contains(lower, "italic") || strings.Contains(lower, "oblique"),
		mono:   strings.Contains(lower, "courier") || strings.Contains(lower, "mono"),
	}
}

// descriptorStyle reads the FontDescriptor flags (FixedPitch, Italic,
// ForceBold) and FontWeight.
func descriptorStyle(fd *raw.DictObj) fontStyle {
	var st fontStyle
	if flags, ok := fd.Number("Flags"); ok {
		bits := int64(flags)
		st.mono = bits&(1<<0) != 0
		st.italic = bits&(1<<6) != 0
		st.bold = bits&(1<<18) != 0
	}
	if w, ok := fd.Number("FontWeight"); ok && w >= 600 {
		st.bold = true
	}
	return st
}

// fallback picks the Go font closest to st.
func fallback(st fontStyle) *sfnt.Font {
	fallbackOnce.Do(func() {
		fallbacks = make(map[string]*sfnt.Font)
		for key, ttf := range map[string][]byte{
			"regular":    goregular.TTF,
			"bold":       gobold.TTF,
			"italic":     goitalic.TTF,
			"bolditalic": gobolditalic.TTF,
			"mono":       gomono.TTF,
		} {
			if f, err := sfnt.Parse(ttf); err == nil {
				fallbacks[key] = f
			}
		}
	})
	switch {
	case st.mono:
		return fallbacks["mono"]
	case st.bold && st.italic:
		return fallbacks["bolditalic"]
	case st.bold:
		return fallbacks["bold"]
	case st.italic:
		return fallbacks["italic"]
	}
	return fallbacks["regular"]
}

func isSymbolic(name string) bool {
	return strings.Contains(name, "Symbol") || strings.Contains(name, "Dingbats")
}

func valueOf(d *raw.DictObj, key string) raw.Object {
	v, ok := d.Get(key)
	if !ok {
		return raw.NullObj{}
	}
	return v
}

func resolveStream(ctx context.Context, res Resolver, obj raw.Object) (*raw.StreamObj, error) {
	v, err := res.Resolve(ctx, obj)
	if err != nil {
		return nil, err
	}
	stm, _ := v.(*raw.StreamObj)
	return stm, nil
}
