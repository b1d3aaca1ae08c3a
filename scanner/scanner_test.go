package scanner

import (
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfviewer/recovery"
)

func collect(t *testing.T, src string, cfg Config) []Token {
	t.Helper()
	s := New([]byte(src), cfg)
	var out []Token
	for {
		tok, err := s.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		out = append(out, tok)
	}
}

func TestScannerBasicTokens(t *testing.T) {
	toks := collect(t, "<< /Type /Page /Count 3 /Scale -1.5 /Ok true /Nil null /Kids [4 0 R] >>", Config{})
	want := []TokenType{TokenDict, TokenName, TokenName, TokenName, TokenNumber, TokenName, TokenNumber,
		TokenName, TokenBoolean, TokenName, TokenNull, TokenName, TokenArray, TokenRef, TokenKeyword, TokenKeyword}
	var got []TokenType
	for _, tok := range toks {
		got = append(got, tok.Type)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("token types mismatch (-want +got):\n%s", diff)
	}
	if toks[6].IsInt || toks[6].Float != -1.5 {
		t.Fatalf("expected real -1.5, got %+v", toks[6])
	}
	if toks[13].Int != 4 || toks[13].Gen != 0 {
		t.Fatalf("expected ref 4 0, got %+v", toks[13])
	}
}

func TestScannerStrings(t *testing.T) {
	toks := collect(t, `(a\(b\)c\n\101) <48 65 6C6C 6F> (nested (parens) ok) /A#20B`, Config{})
	if got := string(toks[0].Bytes); got != "a(b)c\nA" {
		t.Fatalf("literal: got %q", got)
	}
	if got := string(toks[1].Bytes); got != "Hello" {
		t.Fatalf("hex: got %q", got)
	}
	if got := string(toks[2].Bytes); got != "nested (parens) ok" {
		t.Fatalf("nested: got %q", got)
	}
	if toks[3].Str != "A B" {
		t.Fatalf("name escape: got %q", toks[3].Str)
	}
}

func TestScannerOperatorsAreNotRefs(t *testing.T) {
	toks := collect(t, "1 0 0 RG 0 0 612 792 re f", Config{})
	if toks[3].Type != TokenKeyword || toks[3].Str != "RG" {
		t.Fatalf("expected RG keyword, got %+v", toks[3])
	}
	if toks[0].Type != TokenNumber || toks[1].Type != TokenNumber {
		t.Fatalf("expected numbers before RG")
	}
}

func TestScannerStreamWithLengthHint(t *testing.T) {
	// the payload itself contains the word endstream; only the hint finds the real end
	s := New([]byte("stream\nabc endstream\nendstream"), Config{})
	s.SetNextStreamLength(13)
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if tok.Type != TokenStream || string(tok.Bytes) != "abc endstream" {
		t.Fatalf("unexpected stream payload %q", tok.Bytes)
	}
	if _, err := s.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after stream, got %v", err)
	}
}

func TestScannerStreamWithoutHint(t *testing.T) {
	s := New([]byte("stream\r\nq 1 0 0 1 0 0 cm Q\r\nendstream endobj"), Config{})
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if string(tok.Bytes) != "q 1 0 0 1 0 0 cm Q" {
		t.Fatalf("unexpected payload %q", tok.Bytes)
	}
	next, err := s.Next()
	if err != nil || next.Str != "endobj" {
		t.Fatalf("expected endobj after stream, got %+v %v", next, err)
	}
}

func TestScannerInlineImage(t *testing.T) {
	toks := collect(t, "BI /W 2 /H 1 /BPC 8 /CS /G ID \x00\xff EI Q", Config{})
	var img *Token
	for i := range toks {
		if toks[i].Type == TokenInlineImage {
			img = &toks[i]
		}
	}
	if img == nil {
		t.Fatalf("inline image token missing")
	}
	if diff := cmp.Diff([]byte{0x00, 0xff}, img.Bytes); diff != "" {
		t.Fatalf("inline data mismatch:\n%s", diff)
	}
	if last := toks[len(toks)-1]; last.Str != "Q" {
		t.Fatalf("expected Q after EI, got %+v", last)
	}
}

func TestScannerRecovery(t *testing.T) {
	if _, err := New([]byte("(never closed"), Config{}).Next(); err == nil {
		t.Fatalf("expected error without recovery")
	}
	rec := recovery.NewLenientStrategy(0)
	tok, err := New([]byte("(never closed"), Config{Recovery: rec}).Next()
	if err != nil {
		t.Fatalf("lenient recovery should not fail: %v", err)
	}
	if string(tok.Bytes) != "never closed" {
		t.Fatalf("unexpected recovered payload %q", tok.Bytes)
	}
	if len(rec.Errors()) != 1 {
		t.Fatalf("expected one recorded error, got %d", len(rec.Errors()))
	}
}
