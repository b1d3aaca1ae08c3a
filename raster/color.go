package raster

import (
	"fmt"
	"image/color"
	"math"

	"github.com/wudi/pdfviewer/cmm"
	"github.com/wudi/pdfviewer/contentstream"
	"github.com/wudi/pdfviewer/ir/raw"
	"github.com/wudi/pdfviewer/observability"
)

// colorSpace converts component values to RGB. Components are in [0,1],
// except for Indexed (an index) and Lab (L* in 0..100, a* and b* in rng).
type colorSpace struct {
	family string
	n      int
	base   *colorSpace
	hival  int
	lookup []byte
	icc    *cmm.Profile
	rng    [4]float64 // Lab a* and b* bounds
}

var (
	spaceGray = &colorSpace{family: "DeviceGray", n: 1}
	spaceRGB  = &colorSpace{family: "DeviceRGB", n: 3}
	spaceCMYK = &colorSpace{family: "DeviceCMYK", n: 4}
)

func deviceSpace(name string) *colorSpace {
	switch name {
	case "DeviceGray", "CalGray", "G":
		return spaceGray
	case "DeviceRGB", "CalRGB", "RGB":
		return spaceRGB
	case "DeviceCMYK", "CMYK":
		return spaceCMYK
	}
	return nil
}

func (cs *colorSpace) rgb(c []float64) (r, g, b float64) {
	at := func(i int) float64 {
		if i < len(c) {
			return clamp01(c[i])
		}
		return 0
	}
	switch cs.family {
	case "DeviceGray":
		v := at(0)
		return v, v, v
	case "DeviceRGB":
		return at(0), at(1), at(2)
	case "DeviceCMYK":
		k := at(3)
		return (1 - at(0)) * (1 - k), (1 - at(1)) * (1 - k), (1 - at(2)) * (1 - k)
	case "ICCBased":
		return cs.icc.SRGB(c)
	case "Lab":
		comp := func(i int, lo, hi float64) float64 {
			if i >= len(c) {
				return 0
			}
			return math.Min(math.Max(c[i], lo), hi)
		}
		return cmm.XYZToSRGB(cmm.LabToXYZ(comp(0, 0, 100), comp(1, cs.rng[0], cs.rng[1]), comp(2, cs.rng[2], cs.rng[3])))
	case "Separation", "DeviceN":
		ink := 0.0
		for i := range c {
			ink = math.Max(ink, at(i))
		}
		return 1 - ink, 1 - ink, 1 - ink
	case "Indexed":
		idx := 0
		if len(c) > 0 {
			idx = int(c[0])
		}
		if idx < 0 {
			idx = 0
		}
		if idx > cs.hival {
			idx = cs.hival
		}
		n := cs.base.n
		comps := make([]float64, n)
		for i := 0; i < n; i++ {
			if off := idx*n + i; off < len(cs.lookup) {
				comps[i] = float64(cs.lookup[off]) / 255
			}
		}
		if cs.base.family == "Lab" && n == 3 {
			rng := cs.base.rng
			comps[0] *= 100
			comps[1] = rng[0] + comps[1]*(rng[1]-rng[0])
			comps[2] = rng[2] + comps[2]*(rng[3]-rng[2])
		}
		return cs.base.rgb(comps)
	}
	return 0, 0, 0
}

// colorSpace resolves a color space operand or image /ColorSpace value.
func (p *painter) colorSpace(res *raw.DictObj, obj raw.Object, depth int) (*colorSpace, error) {
	if depth > 4 {
		return nil, fmt.Errorf("color space nesting too deep")
	}
	obj, err := p.r.res.Resolve(p.ctx, obj)
	if err != nil {
		return nil, err
	}
	switch v := obj.(type) {
	case raw.NameObj:
		if cs := deviceSpace(v.Val); cs != nil {
			return cs, nil
		}
		named, err := p.resource(res, "ColorSpace", v.Val)
		if err != nil {
			return nil, err
		}
		return p.colorSpace(res, named, depth+1)
	case *raw.ArrayObj:
		if v.Len() == 0 {
			break
		}
		family, _ := v.Items[0].(raw.NameObj)
		arg := func(i int) raw.Object {
			if i < v.Len() {
				return v.Items[i]
			}
			return raw.NullObj{}
		}
		switch family.Val {
		case "DeviceGray", "CalGray", "DeviceRGB", "CalRGB", "DeviceCMYK":
			return deviceSpace(family.Val), nil
		case "Lab":
			cs := &colorSpace{family: "Lab", n: 3, rng: [4]float64{-100, 100, -100, 100}}
			if dict, err := p.r.res.Resolve(p.ctx, arg(1)); err == nil {
				if d, ok := dict.(*raw.DictObj); ok {
					if r, ok := p.numbers(d, "Range"); ok && len(r) == 4 {
						copy(cs.rng[:], r)
					}
				}
			}
			return cs, nil
		case "ICCBased":
			stmObj, err := p.r.res.Resolve(p.ctx, arg(1))
			if err != nil {
				return nil, err
			}
			stm, ok := stmObj.(*raw.StreamObj)
			if !ok {
				return nil, fmt.Errorf("ICCBased without profile stream")
			}
			return p.iccSpace(stm), nil
		case "Indexed", "I":
			base, err := p.colorSpace(res, arg(1), depth+1)
			if err != nil {
				return nil, err
			}
			hiObj, err := p.r.res.Resolve(p.ctx, arg(2))
			if err != nil {
				return nil, err
			}
			hi, _ := hiObj.(raw.NumberObj)
			table, err := p.r.res.Resolve(p.ctx, arg(3))
			if err != nil {
				return nil, err
			}
			var lookup []byte
			switch t := table.(type) {
			case raw.StringObj:
				lookup = t.Bytes
			case *raw.StreamObj:
				if lookup, _, err = p.r.res.DecodeStream(p.ctx, t); err != nil {
					return nil, err
				}
			}
			return &colorSpace{family: "Indexed", n: 1, base: base, hival: int(hi.Int()), lookup: lookup}, nil
		case "Separation":
			return &colorSpace{family: "Separation", n: 1}, nil
		case "DeviceN":
			names, _ := p.r.res.Resolve(p.ctx, arg(1))
			n := 1
			if arr, ok := names.(*raw.ArrayObj); ok && arr.Len() > 0 {
				n = arr.Len()
			}
			return &colorSpace{family: "DeviceN", n: n}, nil
		}
		return nil, fmt.Errorf("unsupported color space %s", family.Val)
	}
	return nil, fmt.Errorf("invalid color space %v", obj)
}

// iccSpace builds the color space of an ICC profile stream. Profiles the
// cmm package cannot evaluate fall back to the device space with N
// components.
func (p *painter) iccSpace(stm *raw.StreamObj) *colorSpace {
	if cs, ok := p.profiles[stm]; ok {
		return cs
	}
	// an undecodable stream leaves data empty and ends in the device space
	data, _, _ := p.r.res.DecodeStream(p.ctx, stm)
	n := int(stm.Dict.Int("N", 0))
	if n == 0 {
		// N is required, but the profile header also knows
		if c, err := cmm.Components(data); err == nil {
			n = c
		}
	}
	var cs *colorSpace
	switch n {
	case 1:
		cs = spaceGray
	case 4:
		cs = spaceCMYK
	default:
		n, cs = 3, spaceRGB
	}
	prof, err := cmm.Parse(data)
	switch {
	case err != nil:
		p.r.opts.Logger.Debug("raster: icc profile ignored", observability.Error("error", err))
	case prof.Channels == n:
		cs = &colorSpace{family: "ICCBased", n: n, icc: prof}
	}
	p.profiles[stm] = cs
	return cs
}

// colorOf converts a graphics state color; ok is false for colors that are
// not painted, such as patterns.
func (p *painter) colorOf(ec *contentstream.ExecutionContext, c contentstream.Color, alpha float64) (color.Color, bool) {
	if c.Pattern != "" || c.Space == "Pattern" {
		return nil, false
	}
	cs := deviceSpace(c.Space)
	if cs == nil {
		var err error
		if cs, err = p.colorSpace(ec.Resources, raw.NameLiteral(c.Space), 0); err != nil {
			switch len(c.Components) {
			case 1:
				cs = spaceGray
			case 3:
				cs = spaceRGB
			case 4:
				cs = spaceCMYK
			default:
				return nil, false
			}
		}
	}
	r, g, b := cs.rgb(c.Components)
	return color.NRGBA{R: to8(r), G: to8(g), B: to8(b), A: to8(alpha)}, true
}

func to8(v float64) uint8 {
	return uint8(math.Round(clamp01(v) * 255))
}
