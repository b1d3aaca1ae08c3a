package parser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wudi/pdfviewer/filters"
	"github.com/wudi/pdfviewer/ir/raw"
	"github.com/wudi/pdfviewer/recovery"
	"github.com/wudi/pdfviewer/scanner"
	"github.com/wudi/pdfviewer/security"
	"github.com/wudi/pdfviewer/xref"
)

type Cache interface {
	Get(ref raw.ObjectRef) (raw.Object, bool)
	Put(ref raw.ObjectRef, obj raw.Object)
}

// NewMapCache returns an unbounded, concurrency-safe object cache.
func NewMapCache() Cache { return &mapCache{m: make(map[raw.ObjectRef]raw.Object)} }

type mapCache struct {
	mu sync.RWMutex
	m  map[raw.ObjectRef]raw.Object
}

func (c *mapCache) Get(ref raw.ObjectRef) (raw.Object, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.m[ref]
	return o, ok
}

func (c *mapCache) Put(ref raw.ObjectRef, obj raw.Object) {
	c.mu.Lock()
	c.m[ref] = obj
	c.mu.Unlock()
}

// ObjectLoader loads indirect objects lazily. Implementations are safe for
// concurrent use so several pages can decode at once.
type ObjectLoader interface {
	Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error)
	// Resolve follows references until a direct object is reached.
	Resolve(ctx context.Context, obj raw.Object) (raw.Object, error)
	// DecodeStream applies the stream's filters. Image codecs are not
	// applied; their names are returned so the caller can decode them.
	DecodeStream(ctx context.Context, stm *raw.StreamObj) ([]byte, []string, error)
}

type ObjectLoaderBuilder struct {
	data       []byte
	xrefTable  xref.Table
	security   security.Handler
	limits     security.Limits
	cache      Cache
	recovery   recovery.Strategy
	encryptRef *raw.ObjectRef
}

func (b *ObjectLoaderBuilder) WithXRef(table xref.Table) *ObjectLoaderBuilder {
	b.xrefTable = table
	return b
}
func (b *ObjectLoaderBuilder) WithData(data []byte) *ObjectLoaderBuilder {
	b.data = data
	return b
}
func (b *ObjectLoaderBuilder) WithSecurity(h security.Handler) *ObjectLoaderBuilder {
	b.security = h
	return b
}
func (b *ObjectLoaderBuilder) WithLimits(l security.Limits) *ObjectLoaderBuilder {
	b.limits = l
	return b
}
func (b *ObjectLoaderBuilder) WithCache(c Cache) *ObjectLoaderBuilder { b.cache = c; return b }
func (b *ObjectLoaderBuilder) WithRecovery(r recovery.Strategy) *ObjectLoaderBuilder {
	b.recovery = r
	return b
}

func (b *ObjectLoaderBuilder) Build() (ObjectLoader, error) {
	if b.data == nil || b.xrefTable == nil {
		return nil, errors.New("data and xrefTable required")
	}
	sec := b.security
	if sec == nil {
		sec = security.NoopHandler()
	}
	cache := b.cache
	if cache == nil {
		cache = NewMapCache()
	}
	limits := b.limits.WithDefaults()
	return &objectLoader{
		data:       b.data,
		xrefTable:  b.xrefTable,
		security:   sec,
		limits:     limits,
		cache:      cache,
		recovery:   b.recovery,
		encryptRef: b.encryptRef,
		pipeline: filters.NewDefault(filters.Limits{
			MaxDecompressedSize: limits.MaxDecompressedSize,
			MaxDecodeTime:       limits.MaxDecodeTime,
		}),
		objstm: make(map[int]*objectStream),
	}, nil
}

type objectLoader struct {
	data       []byte
	xrefTable  xref.Table
	security   security.Handler
	limits     security.Limits
	cache      Cache
	recovery   recovery.Strategy
	encryptRef *raw.ObjectRef
	pipeline   *filters.Pipeline

	mu     sync.Mutex
	objstm map[int]*objectStream
}

type objectStream struct {
	body    []byte
	offsets []int
}

func (o *objectLoader) scannerConfig() scanner.Config {
	return scanner.Config{
		Recovery:        o.recovery,
		MaxStringLength: o.limits.MaxStringLength,
		MaxArrayDepth:   o.limits.MaxIndirectDepth,
		MaxDictDepth:    o.limits.MaxIndirectDepth,
		MaxStreamLength: o.limits.MaxStreamLength,
	}
}

func (o *objectLoader) Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	return o.load(ctx, ref, 0)
}

func (o *objectLoader) load(ctx context.Context, ref raw.ObjectRef, depth int) (raw.Object, error) {
	if depth > o.limits.MaxIndirectDepth {
		return nil, errors.New("max indirect depth exceeded")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if obj, ok := o.cache.Get(ref); ok {
		return obj, nil
	}
	entry, ok := o.xrefTable.Lookup(ref.Num)
	if !ok {
		// a reference to a missing object is treated as null
		return raw.NullObj{}, nil
	}
	var (
		obj raw.Object
		err error
	)
	switch entry.Kind {
	case xref.EntryCompressed:
		obj, err = o.loadFromObjectStream(ctx, ref, entry.Stream, entry.Index, depth)
	default:
		obj, err = o.loadAtOffset(ctx, ref, entry.Offset, depth)
	}
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", ref, err)
	}
	o.cache.Put(ref, obj)
	return obj, nil
}

func (o *objectLoader) loadAtOffset(ctx context.Context, ref raw.ObjectRef, offset int64, depth int) (raw.Object, error) {
	s := scanner.New(o.data, o.scannerConfig())
	if err := s.SeekTo(offset); err != nil {
		return nil, err
	}
	s.SetRecoveryLocation(recovery.Location{ByteOffset: offset, ObjectNum: ref.Num, ObjectGen: ref.Gen})
	length := func(v raw.Object) (int64, bool) {
		if r, ok := v.(raw.RefObj); ok {
			resolved, err := o.load(ctx, r.R, depth+1)
			if err != nil {
				return 0, false
			}
			v = resolved
		}
		if n, ok := v.(raw.NumberObj); ok && n.Int() >= 0 {
			return n.Int(), true
		}
		return 0, false
	}
	got, obj, err := raw.ReadIndirect(s, o.recovery, length)
	if err != nil {
		return nil, err
	}
	if got.Num != ref.Num {
		if err := o.recoverErr(ctx, fmt.Errorf("xref points at object %d", got.Num), offset, ref); err != nil {
			return nil, err
		}
	}
	if o.encryptRef != nil && *o.encryptRef == ref {
		return obj, nil
	}
	return o.decryptObject(ref, obj)
}

func (o *objectLoader) recoverErr(ctx context.Context, err error, offset int64, ref raw.ObjectRef) error {
	if o.recovery == nil {
		return err
	}
	loc := recovery.Location{ByteOffset: offset, ObjectNum: ref.Num, ObjectGen: ref.Gen, Component: "loader"}
	if o.recovery.OnError(ctx, err, loc).Continue() {
		return nil
	}
	return err
}

func (o *objectLoader) loadFromObjectStream(ctx context.Context, ref raw.ObjectRef, streamNum, idx int, depth int) (raw.Object, error) {
	os, err := o.objectStream(ctx, streamNum, depth)
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(os.offsets) {
		return nil, fmt.Errorf("index %d outside object stream %d", idx, streamNum)
	}
	off := os.offsets[idx]
	if off < 0 || off > len(os.body) {
		return nil, errors.New("object stream offset out of range")
	}
	s := scanner.New(os.body[off:], o.scannerConfig())
	rd := raw.NewReader(s, o.recovery)
	rd.SetLocation(recovery.Location{ObjectNum: ref.Num, Component: "objstm"})
	rd.SetMaxItems(o.limits.MaxCollectionSize)
	return rd.ReadObject()
}

func (o *objectLoader) objectStream(ctx context.Context, streamNum int, depth int) (*objectStream, error) {
	o.mu.Lock()
	cached, ok := o.objstm[streamNum]
	o.mu.Unlock()
	if ok {
		return cached, nil
	}
	obj, err := o.load(ctx, raw.ObjectRef{Num: streamNum}, depth+1)
	if err != nil {
		return nil, err
	}
	st, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, fmt.Errorf("object %d is not an object stream", streamNum)
	}
	data, _, err := o.DecodeStream(ctx, st)
	if err != nil {
		return nil, err
	}
	n := int(st.Dict.Int("N", 0))
	first := int(st.Dict.Int("First", 0))
	if first < 0 || first > len(data) {
		return nil, errors.New("object stream First exceeds length")
	}
	s := scanner.New(data[:first], scanner.Config{})
	os := &objectStream{body: data[first:]}
	for i := 0; i < n; i++ {
		_, err1 := s.Next()
		offTok, err2 := s.Next()
		if err1 != nil || err2 != nil {
			break
		}
		os.offsets = append(os.offsets, int(offTok.Int))
	}
	o.mu.Lock()
	o.objstm[streamNum] = os
	o.mu.Unlock()
	return os, nil
}

func (o *objectLoader) Resolve(ctx context.Context, obj raw.Object) (raw.Object, error) {
	for depth := 0; ; depth++ {
		ref, ok := obj.(raw.RefObj)
		if !ok {
			return obj, nil
		}
		if depth > o.limits.MaxIndirectDepth {
			return nil, errors.New("reference chain too long")
		}
		var err error
		if obj, err = o.load(ctx, ref.R, 0); err != nil {
			return nil, err
		}
	}
}

func (o *objectLoader) DecodeStream(ctx context.Context, stm *raw.StreamObj) ([]byte, []string, error) {
	dict := stm.Dict
	// Filter and DecodeParms may themselves be indirect
	for _, key := range []string{"Filter", "DecodeParms"} {
		if v, ok := dict.Get(key); ok {
			if _, isRef := v.(raw.RefObj); isRef {
				resolved, err := o.Resolve(ctx, v)
				if err != nil {
					return nil, nil, err
				}
				clone := raw.Dict()
				for _, k := range dict.Keys() {
					val, _ := dict.Get(k)
					clone.Set(k, val)
				}
				clone.Set(key, resolved)
				dict = clone
			}
		}
	}
	names, params := filters.StreamFilters(dict)
	// decryption already happened at load time
	if len(names) > 0 && names[0] == "Crypt" {
		names = names[1:]
		if len(params) > 0 {
			params = params[1:]
		}
	}
	return o.pipeline.Decode(ctx, stm.Data, names, params)
}

func (o *objectLoader) decryptObject(ref raw.ObjectRef, obj raw.Object) (raw.Object, error) {
	if !o.security.IsEncrypted() {
		return obj, nil
	}
	switch v := obj.(type) {
	case raw.StringObj:
		dec, err := o.security.Decrypt(ref.Num, ref.Gen, v.Value(), security.DataClassString)
		if err != nil {
			return nil, err
		}
		return raw.StringObj{Bytes: dec}, nil
	case *raw.ArrayObj:
		for i, item := range v.Items {
			dec, err := o.decryptObject(ref, item)
			if err != nil {
				return nil, err
			}
			v.Items[i] = dec
		}
		return v, nil
	case *raw.DictObj:
		for key, item := range v.KV {
			dec, err := o.decryptObject(ref, item)
			if err != nil {
				return nil, err
			}
			v.KV[key] = dec
		}
		return v, nil
	case *raw.StreamObj:
		if _, err := o.decryptObject(ref, v.Dict); err != nil {
			return nil, err
		}
		if v.Dict.Name("Type") == "XRef" {
			return v, nil
		}
		class := security.DataClassStream
		if v.Dict.Name("Type") == "Metadata" {
			class = security.DataClassMetadataStream
		}
		dec, err := o.security.DecryptWithFilter(ref.Num, ref.Gen, v.Data, class, cryptFilterName(v.Dict))
		if err != nil {
			return nil, err
		}
		v.Data = dec
		return v, nil
	default:
		return obj, nil
	}
}

// cryptFilterName returns the /Name of a leading Crypt filter, if any.
func cryptFilterName(d *raw.DictObj) string {
	names, params := filters.StreamFilters(d)
	if len(names) == 0 || names[0] != "Crypt" {
		return ""
	}
	if len(params) > 0 && params[0] != nil {
		if n := params[0].Name("Name"); n != "" {
			return n
		}
	}
	return "Identity"
}
