package filters

import (
	"bytes"
	"compress/flate"
	"compress/lzw"
	"compress/zlib"
	"context"
	"errors"
	"testing"

	"github.com/wudi/pdfviewer/ir/raw"
)

func zlibBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("write: %v", err)
	}
	w.Close()
	return buf.Bytes()
}

func TestFlateDecode(t *testing.T) {
	dec := NewFlateDecoder(0)
	out, err := dec.Decode(context.Background(), zlibBytes(t, []byte("hello world")), nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "hello world" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFlateDecodeRawDeflate(t *testing.T) {
	var buf bytes.Buffer
	w, _ := flate.NewWriter(&buf, flate.BestSpeed)
	w.Write([]byte("no header"))
	w.Close()

	out, err := NewFlateDecoder(0).Decode(context.Background(), buf.Bytes(), nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "no header" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFlateDecodeWithPredictor(t *testing.T) {
	// two PNG rows: Sub then Up
	comp := zlibBytes(t, []byte{1, 10, 2, 10, 2, 1, 1, 1})

	params := raw.Dict()
	params.Set("Predictor", raw.NumberInt(12))
	params.Set("Colors", raw.NumberInt(1))
	params.Set("BitsPerComponent", raw.NumberInt(8))
	params.Set("Columns", raw.NumberInt(3))

	out, err := NewFlateDecoder(0).Decode(context.Background(), comp, params)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	want := []byte{10, 12, 22, 11, 13, 23}
	if !bytes.Equal(out, want) {
		t.Fatalf("predictor output mismatch: got %v want %v", out, want)
	}
}

func TestFlateDecodeLimit(t *testing.T) {
	comp := zlibBytes(t, bytes.Repeat([]byte("a"), 4096))
	_, err := NewFlateDecoder(100).Decode(context.Background(), comp, nil)
	if !errors.Is(err, ErrLimit) {
		t.Fatalf("expected ErrLimit, got %v", err)
	}
}

func TestTIFFPredictor(t *testing.T) {
	params := raw.Dict()
	params.Set("Predictor", raw.NumberInt(2))
	params.Set("Columns", raw.NumberInt(4))
	out, err := applyPredictor([]byte{5, 1, 1, 1}, params)
	if err != nil {
		t.Fatalf("predictor: %v", err)
	}
	if !bytes.Equal(out, []byte{5, 6, 7, 8}) {
		t.Fatalf("got %v", out)
	}
}

func TestLZWDecode(t *testing.T) {
	var buf bytes.Buffer
	w := lzw.NewWriter(&buf, lzw.MSB, 8)
	input := []byte("hello hello hello")
	if _, err := w.Write(input); err != nil {
		t.Fatalf("write: %v", err)
	}
	w.Close()

	out, err := NewLZWDecoder().Decode(context.Background(), buf.Bytes(), nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !bytes.Equal(out, input) {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestLZWDecodeSampleFromReference(t *testing.T) {
	// Example from the PDF reference: "-----A---B" encoded with EarlyChange 1.
	in := []byte{0x80, 0x0B, 0x60, 0x50, 0x22, 0x0C, 0x0C, 0x85, 0x01}
	out, err := NewLZWDecoder().Decode(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "-----A---B" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestASCIIFilters(t *testing.T) {
	ctx := context.Background()
	out, err := NewASCIIHexDecoder().Decode(ctx, []byte("48 65 6c6C 6>"), nil)
	if err != nil || string(out) != "Hell`" {
		t.Fatalf("hex: %q %v", out, err)
	}
	out, err = NewASCII85Decoder().Decode(ctx, []byte("<~87cURDZ~>"), nil)
	if err != nil || string(out) != "Hello" {
		t.Fatalf("a85: %q %v", out, err)
	}
}

func TestRunLengthDecode(t *testing.T) {
	in := []byte{2, 'a', 'b', 'c', 254, 'z', 128, 'x'}
	out, err := NewRunLengthDecoder().Decode(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(out) != "abczzz" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestPipelineChainsAndStopsAtImageCodec(t *testing.T) {
	p := NewDefault(Limits{})
	hexOfFlate := []byte{}
	for _, b := range zlibBytes(t, []byte("jpegish")) {
		hexOfFlate = append(hexOfFlate, "0123456789abcdef"[b>>4], "0123456789abcdef"[b&0xF])
	}
	out, rest, err := p.Decode(context.Background(), hexOfFlate, []string{"AHx", "FlateDecode", "DCTDecode"}, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(out) != "jpegish" {
		t.Fatalf("unexpected output: %q", out)
	}
	if len(rest) != 1 || rest[0] != "DCTDecode" {
		t.Fatalf("remaining filters: %v", rest)
	}

	if _, _, err := p.Decode(context.Background(), nil, []string{"Bogus"}, nil); err == nil {
		t.Fatalf("expected unknown filter error")
	}
}

func TestStreamFilters(t *testing.T) {
	d := raw.Dict()
	d.Set("Filter", raw.NewArray(raw.NameLiteral("ASCII85Decode"), raw.NameLiteral("FlateDecode")))
	parms := raw.Dict()
	parms.Set("Predictor", raw.NumberInt(12))
	d.Set("DecodeParms", raw.NewArray(raw.NullObj{}, parms))

	names, params := StreamFilters(d)
	if len(names) != 2 || names[1] != "FlateDecode" {
		t.Fatalf("names: %v", names)
	}
	if len(params) != 2 || params[0] != nil || params[1] != parms {
		t.Fatalf("params: %v", params)
	}
}
