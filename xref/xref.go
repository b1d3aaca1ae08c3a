package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/wudi/pdfviewer/filters"
	"github.com/wudi/pdfviewer/ir/raw"
	"github.com/wudi/pdfviewer/recovery"
	"github.com/wudi/pdfviewer/scanner"
)

type EntryKind int

const (
	EntryFree EntryKind = iota
	EntryInUse
	EntryCompressed
)

// Entry locates one object. InUse entries carry a byte Offset; Compressed
// entries name the object stream and the index within it.
type Entry struct {
	Kind   EntryKind
	Offset int64
	Gen    int
	Stream int
	Index  int
}

// Table represents a merged cross-reference table and its trailer.
type Table interface {
	Lookup(objNum int) (Entry, bool)
	Objects() []int
	Trailer() *raw.DictObj
	// Type reports how the table was obtained: "table", "stream" or "repair".
	Type() string
}

// Resolver locates and parses the cross-reference data of a document.
type Resolver interface {
	Resolve(ctx context.Context, data []byte) (Table, error)
}

type ResolverConfig struct {
	Recovery recovery.Strategy
	Filters  *filters.Pipeline
	// MaxSections bounds the /Prev chain (0 means 64).
	MaxSections int
}

// NewResolver returns a resolver that follows startxref and the /Prev chain
// and falls back to a full-file scan when that fails.
func NewResolver(cfg ResolverConfig) Resolver {
	if cfg.Filters == nil {
		cfg.Filters = filters.NewDefault(filters.Limits{})
	}
	if cfg.MaxSections <= 0 {
		cfg.MaxSections = 64
	}
	return &tableResolver{cfg: cfg}
}

type tableResolver struct{ cfg ResolverConfig }

func (t *tableResolver) Resolve(ctx context.Context, data []byte) (Table, error) {
	tbl, err := t.resolveChain(ctx, data)
	if err == nil {
		if _, ok := tbl.trailer.Get("Root"); ok {
			return tbl, nil
		}
		err = errors.New("trailer has no /Root")
	}
	if t.cfg.Recovery == nil {
		return nil, err
	}
	if !t.cfg.Recovery.OnError(ctx, fmt.Errorf("xref: %w", err), recovery.Location{Component: "xref"}).Continue() {
		return nil, err
	}
	return repair(ctx, data, t.cfg)
}

func (t *tableResolver) resolveChain(ctx context.Context, data []byte) (*table, error) {
	start, err := findStartXRef(data)
	if err != nil {
		return nil, err
	}
	tbl := &table{entries: make(map[int]Entry), trailer: raw.Dict()}
	visited := make(map[int64]bool)
	offset := start
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i >= t.cfg.MaxSections {
			return nil, errors.New("too many xref sections")
		}
		if visited[offset] {
			break
		}
		visited[offset] = true
		if offset < 0 || offset >= int64(len(data)) {
			return nil, fmt.Errorf("xref offset %d out of range", offset)
		}
		trailer, kind, err := t.readSection(ctx, data, offset, tbl)
		if err != nil {
			return nil, err
		}
		if tbl.kind == "" {
			tbl.kind = kind
		}
		// hybrid files point at an additional xref stream
		if stm, ok := trailer.Get("XRefStm"); ok {
			if n, ok := stm.(raw.NumberObj); ok && !visited[n.Int()] {
				visited[n.Int()] = true
				if _, _, err := t.readSection(ctx, data, n.Int(), tbl); err != nil {
					return nil, err
				}
			}
		}
		for _, k := range trailer.Keys() {
			if _, ok := tbl.trailer.Get(k); !ok {
				v, _ := trailer.Get(k)
				tbl.trailer.Set(k, v)
			}
		}
		prev, ok := trailer.Get("Prev")
		if !ok {
			break
		}
		n, ok := prev.(raw.NumberObj)
		if !ok {
			break
		}
		offset = n.Int()
	}
	delete(tbl.trailer.KV, "Prev")
	delete(tbl.trailer.KV, "XRefStm")
	return tbl, nil
}

func (t *tableResolver) readSection(ctx context.Context, data []byte, offset int64, tbl *table) (*raw.DictObj, string, error) {
	s := scanner.New(data, scanner.Config{Recovery: t.cfg.Recovery})
	if err := s.SeekTo(offset); err != nil {
		return nil, "", err
	}
	tok, err := s.Next()
	if err != nil {
		return nil, "", err
	}
	if tok.Type == scanner.TokenKeyword && tok.Str == "xref" {
		trailer, err := readClassic(s, t.cfg.Recovery, tbl)
		return trailer, "table", err
	}
	if err := s.SeekTo(offset); err != nil {
		return nil, "", err
	}
	_, obj, err := raw.ReadIndirect(s, t.cfg.Recovery, directLength)
	if err != nil {
		return nil, "", fmt.Errorf("xref at %d: %w", offset, err)
	}
	stm, ok := obj.(*raw.StreamObj)
	if !ok || stm.Dict.Name("Type") != "XRef" {
		return nil, "", fmt.Errorf("xref at %d: not an xref stream", offset)
	}
	if err := readStream(ctx, stm, t.cfg.Filters, tbl); err != nil {
		return nil, "", err
	}
	return stm.Dict, "stream", nil
}

func directLength(o raw.Object) (int64, bool) {
	if n, ok := o.(raw.NumberObj); ok && n.IsInt {
		return n.I, true
	}
	return 0, false
}

// findStartXRef reads the offset following the last startxref keyword.
func findStartXRef(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, errors.New("startxref not found")
	}
	rest := bytes.TrimLeft(data[idx+len("startxref"):], " \t\r\n")
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, errors.New("startxref has no offset")
	}
	return strconv.ParseInt(string(rest[:end]), 10, 64)
}

func readClassic(s *scanner.Scanner, rec recovery.Strategy, tbl *table) (*raw.DictObj, error) {
	rd := raw.NewReader(s, rec)
	for {
		tok, err := rd.Next()
		if err != nil {
			return nil, fmt.Errorf("xref table: %w", err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "trailer" {
			break
		}
		countTok, err := rd.Next()
		if err != nil {
			return nil, err
		}
		if tok.Type != scanner.TokenNumber || countTok.Type != scanner.TokenNumber {
			return nil, fmt.Errorf("malformed xref subsection at %d", tok.Pos)
		}
		first, count := int(tok.Int), int(countTok.Int)
		for i := 0; i < count; i++ {
			off, err1 := rd.Next()
			gen, err2 := rd.Next()
			kind, err3 := rd.Next()
			if err := errors.Join(err1, err2, err3); err != nil {
				return nil, err
			}
			if kind.Type != scanner.TokenKeyword || (kind.Str != "n" && kind.Str != "f") {
				return nil, fmt.Errorf("malformed xref entry at %d", off.Pos)
			}
			num := first + i
			if _, seen := tbl.entries[num]; seen {
				continue
			}
			e := Entry{Kind: EntryFree, Gen: int(gen.Int)}
			if kind.Str == "n" {
				e.Kind = EntryInUse
				e.Offset = off.Int
			}
			tbl.entries[num] = e
		}
	}
	obj, err := rd.ReadObject()
	if err != nil {
		return nil, fmt.Errorf("trailer: %w", err)
	}
	trailer, ok := obj.(*raw.DictObj)
	if !ok {
		return nil, errors.New("trailer is not a dictionary")
	}
	return trailer, nil
}

func readStream(ctx context.Context, stm *raw.StreamObj, pipe *filters.Pipeline, tbl *table) error {
	names, params := filters.StreamFilters(stm.Dict)
	data, rest, err := pipe.Decode(ctx, stm.Data, names, params)
	if err != nil {
		return fmt.Errorf("xref stream: %w", err)
	}
	if len(rest) > 0 {
		return fmt.Errorf("xref stream: unsupported filter %s", rest[0])
	}
	wObj, _ := stm.Dict.Get("W")
	wArr, _ := wObj.(*raw.ArrayObj)
	ws, err := raw.Numbers(wArr)
	if err != nil || len(ws) != 3 {
		return errors.New("xref stream: invalid /W")
	}
	w := [3]int{int(ws[0]), int(ws[1]), int(ws[2])}
	rowLen := w[0] + w[1] + w[2]
	if rowLen <= 0 {
		return errors.New("xref stream: empty /W")
	}
	var index []float64
	if idx, ok := stm.Dict.Get("Index"); ok {
		arr, _ := idx.(*raw.ArrayObj)
		index, _ = raw.Numbers(arr)
	}
	if len(index) < 2 {
		index = []float64{0, float64(stm.Dict.Int("Size", 0))}
	}
	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		first, count := int(index[i]), int(index[i+1])
		for j := 0; j < count; j++ {
			if pos+rowLen > len(data) {
				return nil
			}
			row := data[pos : pos+rowLen]
			pos += rowLen
			typ := int64(1)
			if w[0] > 0 {
				typ = field(row[:w[0]])
			}
			f2 := field(row[w[0] : w[0]+w[1]])
			f3 := field(row[w[0]+w[1]:])
			num := first + j
			if _, seen := tbl.entries[num]; seen {
				continue
			}
			switch typ {
			case 0:
				tbl.entries[num] = Entry{Kind: EntryFree, Gen: int(f3)}
			case 1:
				tbl.entries[num] = Entry{Kind: EntryInUse, Offset: f2, Gen: int(f3)}
			case 2:
				tbl.entries[num] = Entry{Kind: EntryCompressed, Stream: int(f2), Index: int(f3)}
			}
		}
	}
	return nil
}

func field(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

type table struct {
	entries map[int]Entry
	trailer *raw.DictObj
	kind    string
}

func (t *table) Lookup(objNum int) (Entry, bool) {
	e, ok := t.entries[objNum]
	if !ok || e.Kind == EntryFree {
		return Entry{}, false
	}
	return e, true
}

func (t *table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for num, e := range t.entries {
		if e.Kind != EntryFree {
			out = append(out, num)
		}
	}
	sort.Ints(out)
	return out
}

func (t *table) Trailer() *raw.DictObj { return t.trailer }
func (t *table) Type() string          { return t.kind }
