package fonts

import (
	"sort"
	"unicode/utf16"

	"github.com/wudi/pdfviewer/contentstream"
	"github.com/wudi/pdfviewer/ir/raw"
	"github.com/wudi/pdfviewer/recovery"
)

// CMap is the code to text mapping of a ToUnicode stream.
type CMap struct {
	CodeLength int
	chars      map[int]string
	ranges     []bfRange
}

type bfRange struct {
	lo, hi int
	base   []rune
	list   []string
}

// ParseCMap reads bfchar and bfrange sections. Unparseable input yields an
// empty map rather than an error.
func ParseCMap(data []byte) *CMap {
	c := &CMap{CodeLength: 1, chars: make(map[int]string)}
	ops, _ := contentstream.Parse(data, recovery.NewLenientStrategy(0))
	for _, op := range ops {
		switch op.Operator {
		case "endcodespacerange":
			if len(op.Operands) > 0 {
				if s, ok := op.Operands[0].(raw.StringObj); ok && len(s.Bytes) > 0 {
					c.CodeLength = len(s.Bytes)
				}
			}
		case "endbfchar":
			for i := 0; i+1 < len(op.Operands); i += 2 {
				src, ok1 := op.Operands[i].(raw.StringObj)
				dst, ok2 := op.Operands[i+1].(raw.StringObj)
				if ok1 && ok2 {
					c.chars[codeOf(src.Bytes)] = utf16Text(dst.Bytes)
				}
			}
		case "endbfrange":
			for i := 0; i+2 < len(op.Operands); i += 3 {
				lo, ok1 := op.Operands[i].(raw.StringObj)
				hi, ok2 := op.Operands[i+1].(raw.StringObj)
				if !ok1 || !ok2 {
					continue
				}
				r := bfRange{lo: codeOf(lo.Bytes), hi: codeOf(hi.Bytes)}
				switch dst := op.Operands[i+2].(type) {
				case raw.StringObj:
					r.base = []rune(utf16Text(dst.Bytes))
				case *raw.ArrayObj:
					for _, it := range dst.Items {
						if s, ok := it.(raw.StringObj); ok {
							r.list = append(r.list, utf16Text(s.Bytes))
						}
					}
				}
				if r.hi >= r.lo {
					c.ranges = append(c.ranges, r)
				}
			}
		}
	}
	sort.Slice(c.ranges, func(i, j int) bool { return c.ranges[i].lo < c.ranges[j].lo })
	return c
}

func (c *CMap) Lookup(code int) (string, bool) {
	if s, ok := c.chars[code]; ok {
		return s, true
	}
	i := sort.Search(len(c.ranges), func(i int) bool { return c.ranges[i].hi >= code })
	for ; i < len(c.ranges) && c.ranges[i].lo <= code; i++ {
		r := c.ranges[i]
		if code > r.hi {
			continue
		}
		off := code - r.lo
		if r.list != nil {
			if off < len(r.list) {
				return r.list[off], true
			}
			continue
		}
		if len(r.base) == 0 {
			continue
		}
		out := append([]rune(nil), r.base...)
		out[len(out)-1] += rune(off)
		return string(out), true
	}
	return "", false
}

func codeOf(b []byte) int {
	v := 0
	for _, x := range b {
		v = v<<8 | int(x)
	}
	return v
}

func utf16Text(b []byte) string {
	u := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		u = append(u, uint16(b[i])<<8|uint16(b[i+1]))
	}
	if len(b)%2 == 1 {
		u = append(u, uint16(b[len(b)-1]))
	}
	return string(utf16.Decode(u))
}
