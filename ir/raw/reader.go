package raw

import (
	"context"
	"errors"
	"fmt"

	"github.com/wudi/pdfviewer/recovery"
	"github.com/wudi/pdfviewer/scanner"
)

// TokenSource is the subset of *scanner.Scanner the object reader needs.
type TokenSource interface {
	Next() (scanner.Token, error)
}

// Reader assembles scanner tokens into objects, with a one-slot pushback
// stack so callers can look ahead.
type Reader struct {
	src      TokenSource
	buf      []scanner.Token
	recovery recovery.Strategy
	loc      recovery.Location
	maxItems int
}

func NewReader(src TokenSource, rec recovery.Strategy) *Reader {
	return &Reader{src: src, recovery: rec}
}

// SetLocation records which object is being read for recovery reports.
func (r *Reader) SetLocation(loc recovery.Location) { r.loc = loc }

// SetMaxItems bounds array and dictionary sizes (0 means unbounded).
func (r *Reader) SetMaxItems(n int) { r.maxItems = n }

func (r *Reader) Next() (scanner.Token, error) {
	if l := len(r.buf); l > 0 {
		t := r.buf[l-1]
		r.buf = r.buf[:l-1]
		return t, nil
	}
	return r.src.Next()
}

func (r *Reader) Unread(tok scanner.Token) { r.buf = append(r.buf, tok) }

// ReadObject reads one complete object. Keywords other than the structural
// ones are returned as an error so callers can detect operators.
func (r *Reader) ReadObject() (Object, error) {
	tok, err := r.Next()
	if err != nil {
		return nil, err
	}
	return r.objectFrom(tok)
}

func (r *Reader) objectFrom(tok scanner.Token) (Object, error) {
	switch tok.Type {
	case scanner.TokenName:
		return NameObj{Val: tok.Str}, nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return NumberObj{I: tok.Int, IsInt: true}, nil
		}
		return NumberObj{F: tok.Float}, nil
	case scanner.TokenBoolean:
		return BoolObj{V: tok.Bool}, nil
	case scanner.TokenNull:
		return NullObj{}, nil
	case scanner.TokenString:
		return StringObj{Bytes: tok.Bytes}, nil
	case scanner.TokenRef:
		return RefObj{R: ObjectRef{Num: int(tok.Int), Gen: tok.Gen}}, nil
	case scanner.TokenArray:
		return r.readArray()
	case scanner.TokenDict:
		return r.readDict()
	}
	return nil, &UnexpectedTokenError{Token: tok}
}

// UnexpectedTokenError is returned when a keyword appears where an object was expected.
type UnexpectedTokenError struct{ Token scanner.Token }

func (e *UnexpectedTokenError) Error() string {
	return fmt.Sprintf("unexpected token %q at offset %d", e.Token.Str, e.Token.Pos)
}

func (r *Reader) readArray() (Object, error) {
	arr := &ArrayObj{}
	for {
		tok, err := r.Next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "]" {
			return arr, nil
		}
		if tok.Type == scanner.TokenKeyword && (tok.Str == "endobj" || tok.Str == ">>") {
			if err := r.recover(errors.New("unterminated array"), tok.Pos); err != nil {
				return nil, err
			}
			r.Unread(tok)
			return arr, nil
		}
		item, err := r.objectFrom(tok)
		if err != nil {
			return nil, err
		}
		arr.Append(item)
		if r.maxItems > 0 && len(arr.Items) > r.maxItems {
			return nil, errors.New("array size exceeded")
		}
	}
}

func (r *Reader) readDict() (Object, error) {
	d := Dict()
	for {
		tok, err := r.Next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == ">>" {
			return d, nil
		}
		if tok.Type != scanner.TokenName {
			if tok.Type == scanner.TokenKeyword && (tok.Str == "endobj" || tok.Str == "stream") {
				if err := r.recover(errors.New("unterminated dictionary (missing >>?)"), tok.Pos); err != nil {
					return nil, err
				}
				r.Unread(tok)
				return d, nil
			}
			if err := r.recover(fmt.Errorf("expected name in dictionary, got %q", tok.Str), tok.Pos); err != nil {
				return nil, err
			}
			continue
		}
		val, err := r.ReadObject()
		if err != nil {
			return nil, err
		}
		// a null value is equivalent to an absent key
		if _, isNull := val.(NullObj); !isNull {
			d.Set(tok.Str, val)
		}
		if r.maxItems > 0 && d.Len() > r.maxItems {
			return nil, errors.New("dictionary size exceeded")
		}
	}
}

func (r *Reader) recover(err error, offset int64) error {
	if r.recovery == nil {
		return err
	}
	loc := r.loc
	loc.ByteOffset = offset
	if loc.Component == "" {
		loc.Component = "reader"
	}
	if r.recovery.OnError(context.Background(), err, loc).Continue() {
		return nil
	}
	return err
}

// ReadIndirect reads an indirect object definition ("num gen obj ... endobj")
// starting at the scanner's current position. length, when non-nil, resolves
// a stream dictionary's /Length so the payload can be sliced without
// searching for endstream.
func ReadIndirect(s *scanner.Scanner, rec recovery.Strategy, length func(Object) (int64, bool)) (ObjectRef, Object, error) {
	var hdr [3]scanner.Token
	for i := range hdr {
		tok, err := s.Next()
		if err != nil {
			return ObjectRef{}, nil, err
		}
		hdr[i] = tok
	}
	if hdr[0].Type != scanner.TokenNumber || !hdr[0].IsInt || hdr[1].Type != scanner.TokenNumber || !hdr[1].IsInt ||
		hdr[2].Type != scanner.TokenKeyword || hdr[2].Str != "obj" {
		return ObjectRef{}, nil, fmt.Errorf("no object header at offset %d", hdr[0].Pos)
	}
	ref := ObjectRef{Num: int(hdr[0].Int), Gen: int(hdr[1].Int)}
	rd := NewReader(s, rec)
	rd.SetLocation(recovery.Location{ByteOffset: hdr[0].Pos, ObjectNum: ref.Num, ObjectGen: ref.Gen, Component: "object"})
	obj, err := rd.ReadObject()
	if err != nil {
		var ut *UnexpectedTokenError
		if errors.As(err, &ut) && ut.Token.Str == "endobj" {
			return ref, NullObj{}, nil
		}
		return ref, nil, err
	}
	dict, ok := obj.(*DictObj)
	if !ok {
		return ref, obj, nil
	}
	if length != nil {
		if v, ok := dict.Get("Length"); ok {
			if n, ok := length(v); ok {
				s.SetNextStreamLength(n)
			}
		}
	}
	tok, err := rd.Next()
	s.SetNextStreamLength(-1)
	if err != nil || tok.Type != scanner.TokenStream {
		return ref, dict, nil
	}
	return ref, &StreamObj{Dict: dict, Data: tok.Bytes}, nil
}
