package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/wudi/pdfviewer/contentstream"
	"github.com/wudi/pdfviewer/coords"
	"github.com/wudi/pdfviewer/ir/raw"
)

// inlineKeys expands the abbreviations allowed in inline image dictionaries.
var inlineKeys = map[string]string{
	"BPC": "BitsPerComponent",
	"CS":  "ColorSpace",
	"D":   "Decode",
	"DP":  "DecodeParms",
	"F":   "Filter",
	"H":   "Height",
	"IM":  "ImageMask",
	"I":   "Interpolate",
	"W":   "Width",
}

func (p *painter) xobject(ec *contentstream.ExecutionContext, op contentstream.Operation) error {
	name := contentstream.NameOperand(op.Operands, 0)
	obj, err := p.resource(ec.Resources, "XObject", name)
	if err != nil {
		return p.problem(err, "xobject")
	}
	stm, ok := obj.(*raw.StreamObj)
	if !ok {
		return p.problem(fmt.Errorf("xobject /%s is not a stream", name), "xobject")
	}
	switch stm.Dict.Name("Subtype") {
	case "Image":
		data, rest, err := p.r.res.DecodeStream(p.ctx, stm)
		if err != nil {
			return p.problem(fmt.Errorf("image /%s: %w", name, err), "image")
		}
		img, err := p.decodeImage(ec, stm.Dict, data, rest)
		if err != nil {
			return p.problem(fmt.Errorf("image /%s: %w", name, err), "image")
		}
		p.paintImage(ec.State, img)
	case "Form":
		return p.form(ec, stm)
	}
	return nil
}

func (p *painter) inlineImage(ec *contentstream.ExecutionContext, op contentstream.Operation) error {
	if len(op.Operands) == 0 {
		return nil
	}
	abbrev, ok := op.Operands[0].(*raw.DictObj)
	if !ok {
		return nil
	}
	dict := raw.Dict()
	for _, k := range abbrev.Keys() {
		v, _ := abbrev.Get(k)
		if full, ok := inlineKeys[k]; ok {
			k = full
		}
		dict.Set(k, v)
	}
	data, rest, err := p.r.res.DecodeStream(p.ctx, raw.NewStream(dict, op.InlineData))
	if err != nil {
		return p.problem(fmt.Errorf("inline image: %w", err), "image")
	}
	img, err := p.decodeImage(ec, dict, data, rest)
	if err != nil {
		return p.problem(fmt.Errorf("inline image: %w", err), "image")
	}
	p.paintImage(ec.State, img)
	return nil
}

func (p *painter) form(ec *contentstream.ExecutionContext, stm *raw.StreamObj) error {
	if p.depth >= p.r.opts.MaxXObjectDepth {
		return p.problem(fmt.Errorf("form XObjects nested deeper than %d", p.r.opts.MaxXObjectDepth), "form")
	}
	data, _, err := p.r.res.DecodeStream(p.ctx, stm)
	if err != nil {
		return p.problem(fmt.Errorf("form: %w", err), "form")
	}
	ops, err := contentstream.Parse(data, p.rec)
	if err != nil {
		return p.problem(fmt.Errorf("form: %w", err), "form")
	}
	st := ec.State.Clone()
	if m, ok := p.numbers(stm.Dict, "Matrix"); ok && len(m) == 6 {
		st.CTM = coords.Matrix{m[0], m[1], m[2], m[3], m[4], m[5]}.Multiply(st.CTM)
	}
	if bb, ok := p.numbers(stm.Dict, "BBox"); ok && len(bb) == 4 {
		box := st.CTM.Bounds(coords.NewRect(bb[0], bb[1], bb[2], bb[3]))
		if st.Clip != nil {
			box = st.Clip.Intersect(box)
		}
		st.Clip = &box
	}
	res := ec.Resources
	if v, ok := stm.Dict.Get("Resources"); ok {
		if r, err := p.r.res.Resolve(p.ctx, v); err == nil {
			if d, ok := r.(*raw.DictObj); ok {
				res = d
			}
		}
	}

	savedPath, savedClip := p.path, p.pendingClip
	p.path, p.pendingClip = nil, false
	p.depth++
	defer func() {
		p.depth--
		p.path, p.pendingClip = savedPath, savedClip
	}()
	return p.proc.Process(p.ctx, ops, &contentstream.ExecutionContext{State: st, Resources: res})
}

func (p *painter) numbers(d *raw.DictObj, key string) ([]float64, bool) {
	v, ok := d.Get(key)
	if !ok {
		return nil, false
	}
	obj, err := p.r.res.Resolve(p.ctx, v)
	if err != nil {
		return nil, false
	}
	arr, ok := obj.(*raw.ArrayObj)
	if !ok {
		return nil, false
	}
	nums := make([]float64, 0, arr.Len())
	for _, it := range arr.Items {
		it, err := p.r.res.Resolve(p.ctx, it)
		if err != nil {
			return nil, false
		}
		n, ok := it.(raw.NumberObj)
		if !ok {
			return nil, false
		}
		nums = append(nums, n.Float())
	}
	return nums, true
}

func (p *painter) intValue(d *raw.DictObj, key string, def int) int {
	v, ok := d.Get(key)
	if !ok {
		return def
	}
	obj, err := p.r.res.Resolve(p.ctx, v)
	if err != nil {
		return def
	}
	if n, ok := obj.(raw.NumberObj); ok {
		return int(n.Int())
	}
	return def
}

func (p *painter) boolValue(d *raw.DictObj, key string) bool {
	v, _ := d.Get(key)
	b, _ := v.(raw.BoolObj)
	return b.V
}

// decodeImage turns image samples into an NRGBA bitmap. rest holds the image
// codecs the filter pipeline left for us.
func (p *painter) decodeImage(ec *contentstream.ExecutionContext, dict *raw.DictObj, data []byte, rest []string) (image.Image, error) {
	w, h := p.intValue(dict, "Width", 0), p.intValue(dict, "Height", 0)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid size %dx%d", w, h)
	}
	if w*h > p.r.opts.MaxImagePixels || w*h/w != h {
		return nil, fmt.Errorf("%dx%d exceeds the image size limit", w, h)
	}
	var out *image.NRGBA
	if len(rest) > 0 {
		switch rest[0] {
		case "DCTDecode", "DCT":
			img, err := jpeg.Decode(bytes.NewReader(data))
			if err != nil {
				return nil, fmt.Errorf("jpeg: %w", err)
			}
			out = toNRGBA(img)
		default:
			return nil, fmt.Errorf("unsupported image codec %s", rest[0])
		}
	} else if p.boolValue(dict, "ImageMask") {
		return p.stencil(ec, dict, data, w, h)
	} else {
		csObj, _ := dict.Get("ColorSpace")
		cs, err := p.colorSpace(ec.Resources, csObj, 0)
		if err != nil {
			return nil, err
		}
		bpc := p.intValue(dict, "BitsPerComponent", 8)
		if out, err = p.samples(dict, data, w, h, bpc, cs); err != nil {
			return nil, err
		}
	}
	if v, ok := dict.Get("SMask"); ok {
		if obj, err := p.r.res.Resolve(p.ctx, v); err == nil {
			if sm, ok := obj.(*raw.StreamObj); ok {
				p.applySoftMask(out, sm)
			}
		}
	}
	return out, nil
}

// samples unpacks raw component data of 1 to 16 bits per component.
func (p *painter) samples(dict *raw.DictObj, data []byte, w, h, bpc int, cs *colorSpace) (*image.NRGBA, error) {
	switch bpc {
	case 1, 2, 4, 8, 16:
	default:
		return nil, fmt.Errorf("unsupported BitsPerComponent %d", bpc)
	}
	n := cs.n
	stride := (w*n*bpc + 7) / 8
	if len(data) < stride*h {
		// short streams are common; pad with zero samples
		data = append(data, make([]byte, stride*h-len(data))...)
	}
	maxv := float64(int(1)<<bpc - 1)
	decode, ok := p.numbers(dict, "Decode")
	if !ok || len(decode) < 2*n {
		decode = make([]float64, 2*n)
		for i := 0; i < n; i++ {
			decode[2*i+1] = 1
			if cs.family == "Indexed" {
				decode[2*i+1] = maxv
			}
		}
		if cs.family == "Lab" {
			decode = []float64{0, 100, cs.rng[0], cs.rng[1], cs.rng[2], cs.rng[3]}
		}
	}
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	comps := make([]float64, n)
	for y := 0; y < h; y++ {
		row := data[y*stride : (y+1)*stride]
		bit := 0
		for x := 0; x < w; x++ {
			for i := 0; i < n; i++ {
				s := float64(readSample(row, bit, bpc))
				bit += bpc
				comps[i] = decode[2*i] + s*(decode[2*i+1]-decode[2*i])/maxv
			}
			r, g, b := cs.rgb(comps)
			off := out.PixOffset(x, y)
			out.Pix[off], out.Pix[off+1], out.Pix[off+2], out.Pix[off+3] = to8(r), to8(g), to8(b), 255
		}
	}
	return out, nil
}

func readSample(row []byte, bit, bpc int) int {
	switch bpc {
	case 8:
		return int(row[bit/8])
	case 16:
		return int(row[bit/8])<<8 | int(row[bit/8+1])
	}
	b := row[bit/8]
	shift := 8 - bpc - bit%8
	return int(b>>shift) & (1<<bpc - 1)
}

// stencil paints the fill color where the mask samples select it.
func (p *painter) stencil(ec *contentstream.ExecutionContext, dict *raw.DictObj, data []byte, w, h int) (image.Image, error) {
	fill, ok := p.colorOf(ec, ec.State.FillColor, ec.State.FillAlpha)
	if !ok {
		return nil, fmt.Errorf("stencil mask with unpainted fill color")
	}
	paint := 0
	if d, ok := p.numbers(dict, "Decode"); ok && len(d) == 2 && d[0] == 1 {
		paint = 1
	}
	c := color.NRGBAModel.Convert(fill).(color.NRGBA)
	stride := (w + 7) / 8
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h && (y+1)*stride <= len(data); y++ {
		row := data[y*stride:]
		for x := 0; x < w; x++ {
			if readSample(row, x, 1) == paint {
				out.SetNRGBA(x, y, c)
			}
		}
	}
	return out, nil
}

// applySoftMask copies the gray samples of the mask into the alpha channel,
// sampling nearest neighbour when sizes differ.
func (p *painter) applySoftMask(img *image.NRGBA, sm *raw.StreamObj) {
	data, rest, err := p.r.res.DecodeStream(p.ctx, sm)
	if err != nil || len(rest) > 0 {
		return
	}
	mw, mh := p.intValue(sm.Dict, "Width", 0), p.intValue(sm.Dict, "Height", 0)
	if mw <= 0 || mh <= 0 || mw*mh > p.r.opts.MaxImagePixels {
		return
	}
	mask, err := p.samples(sm.Dict, data, mw, mh, p.intValue(sm.Dict, "BitsPerComponent", 8), spaceGray)
	if err != nil {
		return
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		my := (y - b.Min.Y) * mh / b.Dy()
		for x := b.Min.X; x < b.Max.X; x++ {
			mx := (x - b.Min.X) * mw / b.Dx()
			img.Pix[img.PixOffset(x, y)+3] = mask.Pix[mask.PixOffset(mx, my)]
		}
	}
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Copy(out, image.Point{}, img, b, xdraw.Src, nil)
	return out
}

// paintImage maps the image onto the unit square of the CTM; image row 0 is
// the top edge of the square.
func (p *painter) paintImage(gs *contentstream.GraphicsState, img image.Image) {
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	m := coords.Translate(-float64(b.Min.X), -float64(b.Min.Y)).
		Multiply(coords.Matrix{1 / w, 0, 0, -1 / h, 0, 1}).
		Multiply(gs.CTM)
	if det := m[0]*m[3] - m[1]*m[2]; math.Abs(det) < 1e-12 || math.IsNaN(det) {
		return
	}
	clip := p.clipBounds(gs.Clip)
	if clip.Empty() {
		return
	}
	dst := p.dst.SubImage(clip).(*image.RGBA)
	s2d := f64.Aff3{m[0], m[2], m[4], m[1], m[3], m[5]}
	xdraw.BiLinear.Transform(dst, s2d, img, b, xdraw.Over, nil)
}
