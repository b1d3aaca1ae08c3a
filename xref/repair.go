package xref

import (
	"bytes"
	"context"
	"errors"

	"github.com/wudi/pdfviewer/filters"
	"github.com/wudi/pdfviewer/ir/raw"
	"github.com/wudi/pdfviewer/scanner"
)

// repair scans the entire file to reconstruct the xref table.
// It looks for "<num> <gen> obj" headers, the last trailer dictionary and,
// when no usable trailer exists, the document catalog.
func repair(ctx context.Context, data []byte, cfg ResolverConfig) (Table, error) {
	tbl := &table{entries: make(map[int]Entry), kind: "repair"}
	var headers []int64
	for i, n := 0, 0; ; n++ {
		idx := bytes.Index(data[i:], []byte("obj"))
		if idx < 0 {
			break
		}
		pos := i + idx
		i = pos + 3
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if i < len(data) && !isDelim(data[i]) {
			continue
		}
		start, num, gen, ok := headerBefore(data, pos)
		if !ok {
			continue
		}
		// later definitions belong to incremental updates and win
		tbl.entries[num] = Entry{Kind: EntryInUse, Offset: start, Gen: gen}
		headers = append(headers, start)
	}
	if len(tbl.entries) == 0 {
		return nil, errors.New("repair failed: no objects found")
	}

	s := scanner.New(data, scanner.Config{Recovery: cfg.Recovery})
	if idx := bytes.LastIndex(data, []byte("trailer")); idx >= 0 {
		if err := s.SeekTo(int64(idx + len("trailer"))); err == nil {
			if obj, err := raw.NewReader(s, cfg.Recovery).ReadObject(); err == nil {
				if d, ok := obj.(*raw.DictObj); ok {
					tbl.trailer = d
				}
			}
		}
	}

	var catalog raw.Object
	for _, off := range headers {
		if err := s.SeekTo(off); err != nil {
			continue
		}
		ref, obj, err := raw.ReadIndirect(s, cfg.Recovery, nil)
		if err != nil {
			continue
		}
		if e, ok := tbl.entries[ref.Num]; !ok || e.Offset != off {
			continue
		}
		switch o := obj.(type) {
		case *raw.DictObj:
			if o.Name("Type") == "Catalog" {
				catalog = raw.RefObj{R: ref}
			}
		case *raw.StreamObj:
			switch o.Dict.Name("Type") {
			case "ObjStm":
				registerObjStm(ctx, ref.Num, o, cfg, tbl)
			case "XRef":
				if tbl.trailer == nil {
					tbl.trailer = o.Dict
				}
			}
		}
	}

	if tbl.trailer == nil {
		tbl.trailer = raw.Dict()
		tbl.trailer.Set("Size", raw.NumberInt(int64(len(tbl.entries))))
	}
	if _, ok := tbl.trailer.Get("Root"); !ok {
		if catalog == nil {
			return nil, errors.New("repair failed: no document catalog")
		}
		tbl.trailer.Set("Root", catalog)
	}
	return tbl, nil
}

// registerObjStm records the objects packed in an object stream unless a
// direct definition was already found.
func registerObjStm(ctx context.Context, streamNum int, stm *raw.StreamObj, cfg ResolverConfig, tbl *table) {
	names, params := filters.StreamFilters(stm.Dict)
	data, rest, err := cfg.Filters.Decode(ctx, stm.Data, names, params)
	if err != nil || len(rest) > 0 {
		return
	}
	n := int(stm.Dict.Int("N", 0))
	s := scanner.New(data, scanner.Config{})
	for i := 0; i < n; i++ {
		numTok, err1 := s.Next()
		offTok, err2 := s.Next()
		if err1 != nil || err2 != nil || numTok.Type != scanner.TokenNumber || offTok.Type != scanner.TokenNumber {
			return
		}
		if _, exists := tbl.entries[int(numTok.Int)]; !exists {
			tbl.entries[int(numTok.Int)] = Entry{Kind: EntryCompressed, Stream: streamNum, Index: i}
		}
	}
}

// headerBefore walks back from an "obj" keyword over "<num> <gen> ".
func headerBefore(data []byte, objPos int) (start int64, num, gen int, ok bool) {
	i := objPos - 1
	skipWS := func() bool {
		n := 0
		for i >= 0 && isSpace(data[i]) {
			i--
			n++
		}
		return n > 0
	}
	digits := func() (int, bool) {
		end := i
		for i >= 0 && data[i] >= '0' && data[i] <= '9' {
			i--
		}
		if i == end || end-i > 10 {
			return 0, false
		}
		v := 0
		for _, c := range data[i+1 : end+1] {
			v = v*10 + int(c-'0')
		}
		return v, true
	}
	if !skipWS() {
		return 0, 0, 0, false
	}
	if gen, ok = digits(); !ok {
		return 0, 0, 0, false
	}
	if !skipWS() {
		return 0, 0, 0, false
	}
	if num, ok = digits(); !ok || num == 0 {
		return 0, 0, 0, false
	}
	if i >= 0 && !isDelim(data[i]) {
		return 0, 0, 0, false
	}
	return int64(i + 1), num, gen, true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return isSpace(c)
}
