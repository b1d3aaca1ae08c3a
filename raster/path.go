package raster

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/wudi/pdfviewer/contentstream"
	"github.com/wudi/pdfviewer/coords"
)

type pathOp int

const (
	opMove pathOp = iota
	opLine
	opQuad
	opCube
	opClose
)

// segment is a path command in device space.
type segment struct {
	op  pathOp
	pts [3]coords.Point
}

func (p *painter) construct(ec *contentstream.ExecutionContext, op contentstream.Operation) error {
	nums, ok := contentstream.Numbers(op.Operands)
	if !ok {
		return nil
	}
	ctm := ec.State.CTM
	pt := func(i int) coords.Point { return ctm.Transform(coords.Point{X: nums[i], Y: nums[i+1]}) }
	switch op.Operator {
	case "m":
		if len(nums) != 2 {
			return nil
		}
		p.start = pt(0)
		p.cur = p.start
		p.path = append(p.path, segment{op: opMove, pts: [3]coords.Point{p.cur}})
	case "l":
		if len(nums) != 2 {
			return nil
		}
		p.cur = pt(0)
		p.path = append(p.path, segment{op: opLine, pts: [3]coords.Point{p.cur}})
	case "c":
		if len(nums) != 6 {
			return nil
		}
		p.path = append(p.path, segment{op: opCube, pts: [3]coords.Point{pt(0), pt(2), pt(4)}})
		p.cur = pt(4)
	case "v":
		if len(nums) != 4 {
			return nil
		}
		p.path = append(p.path, segment{op: opCube, pts: [3]coords.Point{p.cur, pt(0), pt(2)}})
		p.cur = pt(2)
	case "y":
		if len(nums) != 4 {
			return nil
		}
		p.path = append(p.path, segment{op: opCube, pts: [3]coords.Point{pt(0), pt(2), pt(2)}})
		p.cur = pt(2)
	case "h":
		p.path = append(p.path, segment{op: opClose})
		p.cur = p.start
	case "re":
		if len(nums) != 4 {
			return nil
		}
		x, y, w, h := nums[0], nums[1], nums[2], nums[3]
		corners := [4]coords.Point{{X: x, Y: y}, {X: x + w, Y: y}, {X: x + w, Y: y + h}, {X: x, Y: y + h}}
		for i, c := range corners {
			o := opLine
			if i == 0 {
				o = opMove
			}
			p.path = append(p.path, segment{op: o, pts: [3]coords.Point{ctm.Transform(c)}})
		}
		p.path = append(p.path, segment{op: opClose})
		p.start = ctm.Transform(corners[0])
		p.cur = p.start
	}
	return nil
}

func (p *painter) clip(ec *contentstream.ExecutionContext, op contentstream.Operation) error {
	p.pendingClip = true
	return nil
}

func (p *painter) paintPath(ec *contentstream.ExecutionContext, op contentstream.Operation) error {
	defer func() {
		p.path = p.path[:0]
		p.pendingClip = false
	}()
	gs := ec.State
	segs := p.path
	switch op.Operator {
	case "s", "b", "b*":
		segs = append(segs, segment{op: opClose})
	}
	switch op.Operator {
	case "f", "F", "f*", "B", "B*", "b", "b*":
		if c, ok := p.colorOf(ec, gs.FillColor, gs.FillAlpha); ok {
			p.fill(segs, c, gs.Clip)
		}
	}
	switch op.Operator {
	case "S", "s", "B", "B*", "b", "b*":
		if c, ok := p.colorOf(ec, gs.StrokeColor, gs.StrokeAlpha); ok {
			p.stroke(segs, lineWidth(gs), c, gs.Clip)
		}
	}
	if p.pendingClip {
		bb, ok := pathBounds(segs)
		if !ok {
			bb = coords.Rect{}
		}
		next := bb
		if gs.Clip != nil {
			next = gs.Clip.Intersect(bb)
		}
		gs.Clip = &next
	}
	return nil
}

// lineWidth is the device width of a stroke, never thinner than a pixel.
func lineWidth(gs *contentstream.GraphicsState) float64 {
	w := gs.LineWidth * gs.CTM.ExpansionFactor()
	if w < 1 {
		w = 1
	}
	return w
}

// pathBounds is the box around every point of the path, control points
// included. ok is false for an empty path or non-finite coordinates.
func pathBounds(segs []segment) (coords.Rect, bool) {
	r := coords.Rect{LLX: math.Inf(1), LLY: math.Inf(1), URX: math.Inf(-1), URY: math.Inf(-1)}
	n := 0
	for _, s := range segs {
		for _, pt := range s.pts[:s.op.points()] {
			if math.IsNaN(pt.X) || math.IsNaN(pt.Y) || math.IsInf(pt.X, 0) || math.IsInf(pt.Y, 0) {
				return coords.Rect{}, false
			}
			r.LLX, r.URX = math.Min(r.LLX, pt.X), math.Max(r.URX, pt.X)
			r.LLY, r.URY = math.Min(r.LLY, pt.Y), math.Max(r.URY, pt.Y)
			n++
		}
	}
	return r, n > 0
}

func (o pathOp) points() int {
	switch o {
	case opMove, opLine:
		return 1
	case opQuad:
		return 2
	case opCube:
		return 3
	}
	return 0
}

// fill rasterizes the path with the nonzero rule, limited to the path's
// own bounds so small shapes stay cheap on large surfaces.
func (p *painter) fill(segs []segment, c color.Color, clip *coords.Rect) {
	bb, ok := pathBounds(segs)
	if !ok {
		return
	}
	bb.URX++
	bb.URY++
	if clip != nil {
		bb = clip.Intersect(bb)
	}
	r := p.clipBounds(&bb).Intersect(p.clipBounds(clip))
	if r.Empty() {
		return
	}
	z := p.raster
	z.Reset(r.Dx(), r.Dy())
	ox, oy := float64(r.Min.X), float64(r.Min.Y)
	at := func(pt coords.Point) (float32, float32) { return float32(pt.X - ox), float32(pt.Y - oy) }
	open := false
	for _, s := range segs {
		switch s.op {
		case opMove:
			if open {
				z.ClosePath()
			}
			z.MoveTo(at(s.pts[0]))
			open = true
		case opLine:
			if !open {
				z.MoveTo(at(s.pts[0]))
				open = true
				continue
			}
			z.LineTo(at(s.pts[0]))
		case opQuad:
			if !open {
				continue
			}
			x1, y1 := at(s.pts[0])
			x2, y2 := at(s.pts[1])
			z.QuadTo(x1, y1, x2, y2)
		case opCube:
			if !open {
				continue
			}
			x1, y1 := at(s.pts[0])
			x2, y2 := at(s.pts[1])
			x3, y3 := at(s.pts[2])
			z.CubeTo(x1, y1, x2, y2, x3, y3)
		case opClose:
			if open {
				z.ClosePath()
			}
		}
	}
	if open {
		z.ClosePath()
	}
	z.DrawOp = draw.Over
	z.Draw(p.dst, r, image.NewUniform(c), image.Point{})
}

// stroke outlines every flattened segment with a quad of the line width and
// caps interior vertices with small octagons for the joins. All polygons are
// wound the same way so overlaps never cancel under the nonzero rule.
func (p *painter) stroke(segs []segment, width float64, c color.Color, clip *coords.Rect) {
	half := width / 2
	var polys []segment
	for _, line := range flatten(segs) {
		for i := 1; i < len(line); i++ {
			a, b := line[i-1], line[i]
			dx, dy := b.X-a.X, b.Y-a.Y
			l := math.Hypot(dx, dy)
			if l == 0 {
				continue
			}
			nx, ny := -dy/l*half, dx/l*half
			polys = appendPolygon(polys, []coords.Point{
				{X: a.X + nx, Y: a.Y + ny}, {X: b.X + nx, Y: b.Y + ny},
				{X: b.X - nx, Y: b.Y - ny}, {X: a.X - nx, Y: a.Y - ny},
			})
			if half >= 1.5 && i < len(line)-1 {
				polys = appendPolygon(polys, octagon(b, half))
			}
		}
	}
	if len(polys) > 0 {
		p.fill(polys, c, clip)
	}
}

func octagon(c coords.Point, r float64) []coords.Point {
	pts := make([]coords.Point, 8)
	for i := range pts {
		a := float64(i) * math.Pi / 4
		pts[i] = coords.Point{X: c.X + r*math.Cos(a), Y: c.Y + r*math.Sin(a)}
	}
	return pts
}

// appendPolygon adds a closed polygon with positive signed area.
func appendPolygon(dst []segment, pts []coords.Point) []segment {
	area := 0.0
	for i := range pts {
		j := (i + 1) % len(pts)
		area += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	if area < 0 {
		for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
			pts[i], pts[j] = pts[j], pts[i]
		}
	}
	dst = append(dst, segment{op: opMove, pts: [3]coords.Point{pts[0]}})
	for _, pt := range pts[1:] {
		dst = append(dst, segment{op: opLine, pts: [3]coords.Point{pt}})
	}
	return append(dst, segment{op: opClose})
}

// flatten turns the path into polylines, approximating curves with line
// segments of a few pixels.
func flatten(segs []segment) [][]coords.Point {
	var (
		out   [][]coords.Point
		line  []coords.Point
		start coords.Point
	)
	flush := func() {
		if len(line) > 1 {
			out = append(out, line)
		}
		line = nil
	}
	for _, s := range segs {
		switch s.op {
		case opMove:
			flush()
			start = s.pts[0]
			line = []coords.Point{start}
		case opLine:
			if line == nil {
				start = s.pts[0]
			}
			line = append(line, s.pts[0])
		case opQuad, opCube:
			if line == nil {
				continue
			}
			p0 := line[len(line)-1]
			c1, c2, end := s.pts[0], s.pts[1], s.pts[2]
			if s.op == opQuad {
				q1, q2 := s.pts[0], s.pts[1]
				c1 = coords.Point{X: p0.X + 2.0/3*(q1.X-p0.X), Y: p0.Y + 2.0/3*(q1.Y-p0.Y)}
				c2 = coords.Point{X: q2.X + 2.0/3*(q1.X-q2.X), Y: q2.Y + 2.0/3*(q1.Y-q2.Y)}
				end = q2
			}
			n := curveSteps(p0, c1, c2, end)
			for i := 1; i <= n; i++ {
				line = append(line, cubicAt(p0, c1, c2, end, float64(i)/float64(n)))
			}
		case opClose:
			if line != nil {
				line = append(line, start)
				flush()
				line = []coords.Point{start}
			}
		}
	}
	flush()
	return out
}

func curveSteps(p0, p1, p2, p3 coords.Point) int {
	l := math.Hypot(p1.X-p0.X, p1.Y-p0.Y) + math.Hypot(p2.X-p1.X, p2.Y-p1.Y) + math.Hypot(p3.X-p2.X, p3.Y-p2.Y)
	n := int(math.Ceil(l / 4))
	if n < 2 {
		return 2
	}
	if n > 64 {
		return 64
	}
	return n
}

func cubicAt(p0, p1, p2, p3 coords.Point, t float64) coords.Point {
	u := 1 - t
	a, b, c, d := u*u*u, 3*u*u*t, 3*u*t*t, t*t*t
	return coords.Point{
		X: a*p0.X + b*p1.X + c*p2.X + d*p3.X,
		Y: a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
	}
}
