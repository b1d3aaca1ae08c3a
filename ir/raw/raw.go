package raw

import (
	"fmt"
	"sort"
	"strconv"
)

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
}

type NullObj struct{}

func (NullObj) Type() string { return "null" }

type BoolObj struct{ V bool }

func (BoolObj) Type() string { return "boolean" }

// NumberObj holds either an integer (IsInt) or a real.
type NumberObj struct {
	I     int64
	F     float64
	IsInt bool
}

func (NumberObj) Type() string { return "number" }

func (n NumberObj) Int() int64 {
	if n.IsInt {
		return n.I
	}
	return int64(n.F)
}

func (n NumberObj) Float() float64 {
	if n.IsInt {
		return float64(n.I)
	}
	return n.F
}

func (n NumberObj) String() string {
	if n.IsInt {
		return strconv.FormatInt(n.I, 10)
	}
	return strconv.FormatFloat(n.F, 'f', -1, 64)
}

func NumberInt(v int64) NumberObj     { return NumberObj{I: v, IsInt: true} }
func NumberReal(v float64) NumberObj  { return NumberObj{F: v} }
func NameLiteral(v string) NameObj    { return NameObj{Val: v} }
func StringLiteral(v string) StringObj { return StringObj{Bytes: []byte(v)} }

type NameObj struct{ Val string }

func (NameObj) Type() string { return "name" }

type StringObj struct{ Bytes []byte }

func (StringObj) Type() string    { return "string" }
func (s StringObj) Value() []byte { return s.Bytes }

type RefObj struct{ R ObjectRef }

func (RefObj) Type() string { return "reference" }

type ArrayObj struct{ Items []Object }

func (*ArrayObj) Type() string { return "array" }

func (a *ArrayObj) Len() int {
	if a == nil {
		return 0
	}
	return len(a.Items)
}

func (a *ArrayObj) Append(obj Object) { a.Items = append(a.Items, obj) }

func NewArray(items ...Object) *ArrayObj { return &ArrayObj{Items: items} }

type DictObj struct{ KV map[string]Object }

func (*DictObj) Type() string { return "dictionary" }

func Dict() *DictObj { return &DictObj{KV: make(map[string]Object)} }

func (d *DictObj) Get(key string) (Object, bool) {
	if d == nil {
		return nil, false
	}
	v, ok := d.KV[key]
	return v, ok
}

func (d *DictObj) Set(key string, value Object) {
	if d.KV == nil {
		d.KV = make(map[string]Object)
	}
	d.KV[key] = value
}

func (d *DictObj) Len() int {
	if d == nil {
		return 0
	}
	return len(d.KV)
}

// Keys returns the dictionary keys in sorted order.
func (d *DictObj) Keys() []string {
	if d == nil {
		return nil
	}
	keys := make([]string, 0, len(d.KV))
	for k := range d.KV {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Name returns the name stored under key, or "" when absent or not a name.
func (d *DictObj) Name(key string) string {
	v, _ := d.Get(key)
	if n, ok := v.(NameObj); ok {
		return n.Val
	}
	return ""
}

// Number returns the numeric value under key when it is a direct number.
func (d *DictObj) Number(key string) (float64, bool) {
	v, _ := d.Get(key)
	if n, ok := v.(NumberObj); ok {
		return n.Float(), true
	}
	return 0, false
}

// Int returns the direct integer under key, or def when absent.
func (d *DictObj) Int(key string, def int64) int64 {
	v, _ := d.Get(key)
	if n, ok := v.(NumberObj); ok {
		return n.Int()
	}
	return def
}

// StreamObj is a dictionary followed by its raw (still encoded) payload.
type StreamObj struct {
	Dict *DictObj
	Data []byte
}

func (*StreamObj) Type() string { return "stream" }

func NewStream(dict *DictObj, data []byte) *StreamObj {
	if dict == nil {
		dict = Dict()
	}
	return &StreamObj{Dict: dict, Data: data}
}

// Resolver dereferences indirect objects; direct objects are returned as is.
type Resolver interface {
	Resolve(obj Object) (Object, error)
}

// Numbers converts an array of numbers, failing on any other element.
func Numbers(arr *ArrayObj) ([]float64, error) {
	out := make([]float64, 0, arr.Len())
	for _, it := range arr.Items {
		n, ok := it.(NumberObj)
		if !ok {
			return nil, fmt.Errorf("expected number, got %s", it.Type())
		}
		out = append(out, n.Float())
	}
	return out, nil
}

// Text decodes a PDF text string (UTF-16BE with BOM or PDFDocEncoding,
// approximated as Latin-1).
func Text(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		runes := make([]rune, 0, (len(b)-2)/2)
		for i := 2; i+1 < len(b); i += 2 {
			r := rune(b[i])<<8 | rune(b[i+1])
			if r >= 0xD800 && r < 0xDC00 && i+3 < len(b) {
				lo := rune(b[i+2])<<8 | rune(b[i+3])
				r = (r-0xD800)<<10 + (lo - 0xDC00) + 0x10000
				i += 2
			}
			runes = append(runes, r)
		}
		return string(runes)
	}
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}
