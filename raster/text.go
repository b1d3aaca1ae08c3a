package raster

import (
	"fmt"

	"github.com/wudi/pdfviewer/contentstream"
	"github.com/wudi/pdfviewer/coords"
	"github.com/wudi/pdfviewer/fonts"
	"github.com/wudi/pdfviewer/ir/raw"
)

func (p *painter) showText(ec *contentstream.ExecutionContext, op contentstream.Operation) error {
	var arg raw.Object
	switch op.Operator {
	case "Tj", "'", "TJ":
		if len(op.Operands) > 0 {
			arg = op.Operands[0]
		}
	case "\"":
		if len(op.Operands) == 3 {
			arg = op.Operands[2]
		}
	}
	face, err := p.face(ec)
	if err != nil {
		return p.problem(err, "font")
	}
	switch v := arg.(type) {
	case raw.StringObj:
		p.showString(ec, face, v.Bytes)
	case *raw.ArrayObj:
		ts := &ec.State.Text
		for _, it := range v.Items {
			switch e := it.(type) {
			case raw.StringObj:
				p.showString(ec, face, e.Bytes)
			case raw.NumberObj:
				tx := -e.Float() / 1000 * ts.FontSize * ts.HorizontalScaling / 100
				ts.Matrix = coords.Translate(tx, 0).Multiply(ts.Matrix)
			}
		}
	}
	return nil
}

// face returns the loaded font selected by Tf.
func (p *painter) face(ec *contentstream.ExecutionContext) (*fonts.Face, error) {
	name := ec.State.Text.Font
	if name == "" {
		return nil, fmt.Errorf("text shown without a font")
	}
	obj, err := p.resource(ec.Resources, "Font", name)
	if err != nil {
		return nil, err
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return nil, fmt.Errorf("font /%s is not a dictionary", name)
	}
	if f, ok := p.fonts[dict]; ok {
		return f, nil
	}
	f, err := fonts.Load(p.ctx, p.r.res, dict)
	if err != nil {
		return nil, err
	}
	p.fonts[dict] = f
	return f, nil
}

// showString paints each glyph at the text rendering matrix
// [fs*Th 0 0 fs 0 rise] × Tm × CTM and advances Tm.
func (p *painter) showString(ec *contentstream.ExecutionContext, face *fonts.Face, s []byte) {
	gs := ec.State
	ts := &gs.Text
	th := ts.HorizontalScaling / 100
	fill, fillOK := p.colorOf(ec, gs.FillColor, gs.FillAlpha)
	strokeC, strokeOK := p.colorOf(ec, gs.StrokeColor, gs.StrokeAlpha)
	paintFill := ts.RenderMode.Fills() && fillOK
	paintStroke := ts.RenderMode.Strokes() && strokeOK
	for _, g := range face.Decode(s) {
		if paintFill || paintStroke {
			trm := coords.Matrix{ts.FontSize * th, 0, 0, ts.FontSize, 0, ts.Rise}.Multiply(ts.Matrix).Multiply(gs.CTM)
			if segs := p.glyphPath(face, g.Code, trm); len(segs) > 0 {
				if paintFill {
					p.fill(segs, fill, gs.Clip)
				}
				if paintStroke {
					p.stroke(segs, lineWidth(gs), strokeC, gs.Clip)
				}
			}
		}
		tx := g.Width*ts.FontSize + ts.CharSpacing
		if g.Space {
			tx += ts.WordSpacing
		}
		ts.Matrix = coords.Translate(tx*th, 0).Multiply(ts.Matrix)
	}
}

func (p *painter) glyphPath(face *fonts.Face, code int, trm coords.Matrix) []segment {
	// glyphs smaller than a pixel are not worth outlining
	if trm.ExpansionFactor() < 0.5 {
		return nil
	}
	outline, err := face.Outline(code)
	if err != nil || len(outline) == 0 {
		return nil
	}
	segs := make([]segment, 0, len(outline)+1)
	for _, o := range outline {
		s := segment{}
		switch o.Op {
		case fonts.MoveTo:
			s.op = opMove
		case fonts.LineTo:
			s.op = opLine
		case fonts.QuadTo:
			s.op = opQuad
		case fonts.CubeTo:
			s.op = opCube
		}
		for i := 0; i < s.op.points(); i++ {
			s.pts[i] = trm.Transform(o.Args[i])
		}
		segs = append(segs, s)
	}
	return segs
}
