package cmm

import (
	"encoding/binary"
	"fmt"
	"math"
)

// curve is a tone reproduction curve: a gamma, a sampled table or an ICC
// parametric function.
type curve struct {
	kind   int // -1 table, 0-4 parametric function type
	table  []float64
	params [7]float64 // g a b c d e f
}

func readCurve(tag []byte) (curve, error) {
	if len(tag) < 12 {
		return curve{}, fmt.Errorf("missing curve")
	}
	switch string(tag[:4]) {
	case "curv":
		n := int(binary.BigEndian.Uint32(tag[8:12]))
		switch {
		case n == 0:
			return curve{params: [7]float64{1}}, nil
		case n == 1 && len(tag) >= 14:
			return curve{params: [7]float64{float64(binary.BigEndian.Uint16(tag[12:14])) / 256}}, nil
		case n > 1 && len(tag) >= 12+2*n:
			c := curve{kind: -1, table: make([]float64, n)}
			for i := range c.table {
				c.table[i] = float64(binary.BigEndian.Uint16(tag[12+2*i:])) / 65535
			}
			return c, nil
		}
	case "para":
		fn := int(binary.BigEndian.Uint16(tag[8:10]))
		count := [...]int{1, 3, 4, 5, 7}
		if fn >= len(count) || len(tag) < 12+4*count[fn] {
			break
		}
		c := curve{kind: fn}
		for i := 0; i < count[fn]; i++ {
			c.params[i] = s15Fixed16(tag[12+4*i:])
		}
		return c, nil
	}
	return curve{}, fmt.Errorf("unsupported curve %q", tag[:4])
}

func (c curve) eval(x float64) float64 {
	if c.kind < 0 {
		pos := x * float64(len(c.table)-1)
		i := int(pos)
		if i >= len(c.table)-1 {
			return c.table[len(c.table)-1]
		}
		frac := pos - float64(i)
		return c.table[i]*(1-frac) + c.table[i+1]*frac
	}
	g, a, b, cc, d, e, f := c.params[0], c.params[1], c.params[2], c.params[3], c.params[4], c.params[5], c.params[6]
	pow := func(v float64) float64 {
		if v <= 0 {
			return 0
		}
		return math.Pow(v, g)
	}
	switch c.kind {
	case 1:
		if a != 0 && x >= -b/a {
			return pow(a*x + b)
		}
		return 0
	case 2:
		if a != 0 && x >= -b/a {
			return pow(a*x+b) + cc
		}
		return cc
	case 3:
		if x >= d {
			return pow(a*x + b)
		}
		return cc * x
	case 4:
		if x >= d {
			return pow(a*x+b) + e
		}
		return cc*x + f
	}
	return pow(x)
}
