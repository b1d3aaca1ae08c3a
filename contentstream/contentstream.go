// Package contentstream parses page content streams into operations and
// runs them through a handler-dispatching processor that tracks the
// graphics state.
package contentstream

import (
	"context"
	"errors"
	"io"

	"github.com/wudi/pdfviewer/ir/raw"
	"github.com/wudi/pdfviewer/recovery"
	"github.com/wudi/pdfviewer/scanner"
)

// Operation is one operator with its operands. Inline images are reported as
// a single "BI" operation whose first operand is the image dictionary and
// whose InlineData holds the bytes between ID and EI.
type Operation struct {
	Operator   string
	Operands   []raw.Object
	InlineData []byte
	Pos        int64
}

// Parse splits a content stream into operations.
func Parse(data []byte, rec recovery.Strategy) ([]Operation, error) {
	s := scanner.New(data, scanner.Config{Recovery: rec, MaxArrayDepth: 64, MaxDictDepth: 64})
	s.SetRecoveryLocation(recovery.Location{Component: "content"})
	rd := raw.NewReader(s, rec)
	var (
		ops      []Operation
		operands []raw.Object
	)
	for {
		obj, err := rd.ReadObject()
		if err == nil {
			operands = append(operands, obj)
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		var ut *raw.UnexpectedTokenError
		if !errors.As(err, &ut) {
			if rec == nil || !rec.OnError(context.Background(), err, recovery.Location{ByteOffset: s.Position(), Component: "content"}).Continue() {
				return ops, err
			}
			break
		}
		tok := ut.Token
		if tok.Type != scanner.TokenKeyword {
			// stray stream or inline image data
			operands = operands[:0]
			continue
		}
		switch tok.Str {
		case "]", ">>", "}", "{", ">":
			continue
		case "BI":
			op, err := readInlineImage(rd, tok.Pos)
			if err != nil {
				return ops, err
			}
			ops = append(ops, op)
			operands = nil
			continue
		}
		ops = append(ops, Operation{Operator: tok.Str, Operands: operands, Pos: tok.Pos})
		operands = nil
	}
	return ops, nil
}

func readInlineImage(rd *raw.Reader, pos int64) (Operation, error) {
	dict := raw.Dict()
	for {
		tok, err := rd.Next()
		if err != nil {
			return Operation{}, err
		}
		if tok.Type == scanner.TokenInlineImage {
			return Operation{Operator: "BI", Operands: []raw.Object{dict}, InlineData: tok.Bytes, Pos: pos}, nil
		}
		if tok.Type != scanner.TokenName {
			return Operation{}, errors.New("malformed inline image dictionary")
		}
		val, err := rd.ReadObject()
		if err != nil {
			return Operation{}, err
		}
		dict.Set(tok.Str, val)
	}
}

// Numbers returns the operands as floats; ok is false when any is not a number.
func Numbers(operands []raw.Object) (out []float64, ok bool) {
	out = make([]float64, len(operands))
	for i, o := range operands {
		n, isNum := o.(raw.NumberObj)
		if !isNum {
			return nil, false
		}
		out[i] = n.Float()
	}
	return out, true
}

// NameOperand returns the name value of operand i, or "".
func NameOperand(operands []raw.Object, i int) string {
	if i < len(operands) {
		if n, ok := operands[i].(raw.NameObj); ok {
			return n.Val
		}
	}
	return ""
}
