package filters

import (
	"context"
	"errors"

	"github.com/wudi/pdfviewer/ir/raw"
)

// lzwDecoder implements LZWDecode with PDF's EarlyChange semantics, which
// compress/lzw does not support.
type lzwDecoder struct{}

func (lzwDecoder) Name() string { return "LZWDecode" }
func NewLZWDecoder() Decoder    { return lzwDecoder{} }

func (lzwDecoder) Decode(ctx context.Context, in []byte, params *raw.DictObj) ([]byte, error) {
	early := params.Int("EarlyChange", 1)
	const (
		clearCode = 256
		eodCode   = 257
	)
	var (
		table   [][]byte
		out     []byte
		prev    []byte
		bits    uint32
		nbits   uint
		width   uint = 9
		readPos int
	)
	reset := func() {
		table = table[:0]
		for i := 0; i < 256; i++ {
			table = append(table, []byte{byte(i)})
		}
		table = append(table, nil, nil)
		width = 9
		prev = nil
	}
	reset()
	for {
		for nbits < width && readPos < len(in) {
			bits = bits<<8 | uint32(in[readPos])
			nbits += 8
			readPos++
		}
		if nbits < width {
			return out, nil
		}
		code := int((bits >> (nbits - width)) & (1<<width - 1))
		nbits -= width
		switch {
		case code == clearCode:
			reset()
			continue
		case code == eodCode:
			return out, nil
		}
		var entry []byte
		switch {
		case code < len(table) && table[code] != nil:
			entry = table[code]
		case code == len(table) && prev != nil:
			entry = append(append([]byte(nil), prev...), prev[0])
		default:
			return nil, errors.New("invalid LZW code")
		}
		out = append(out, entry...)
		if prev != nil {
			table = append(table, append(append([]byte(nil), prev...), entry[0]))
		}
		prev = entry
		next := len(table) + int(early)
		switch {
		case next >= 2048:
			width = 12
		case next >= 1024:
			width = 11
		case next >= 512:
			width = 10
		}
	}
}
