package xref_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/wudi/pdfviewer/ir/raw"
	"github.com/wudi/pdfviewer/recovery"
	"github.com/wudi/pdfviewer/xref"
)

func buildSimplePDF() ([]byte, map[int]int64) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")

	offsets := make(map[int]int64)

	offsets[1] = int64(buf.Len())
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	offsets[2] = int64(buf.Len())
	buf.WriteString("2 0 obj\n<< /Type /Pages /Count 0 /Kids [] >>\nendobj\n")

	xrefOffset := buf.Len()
	buf.WriteString("xref\n0 3\n")
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= 2; i++ {
		buf.WriteString(fmt.Sprintf("%010d 00000 n \n", offsets[i]))
	}
	buf.WriteString("trailer\n<< /Size 3 /Root 1 0 R >>\n")
	buf.WriteString("startxref\n")
	buf.WriteString(fmt.Sprintf("%d\n", xrefOffset))
	buf.WriteString("%%EOF\n")

	return buf.Bytes(), offsets
}

func TestResolverParsesXRefTable(t *testing.T) {
	pdf, offsets := buildSimplePDF()

	table, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), pdf)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if table.Type() != "table" {
		t.Fatalf("unexpected table type %q", table.Type())
	}
	for num, want := range offsets {
		e, ok := table.Lookup(num)
		if !ok || e.Offset != want || e.Kind != xref.EntryInUse {
			t.Fatalf("object %d: got %+v ok=%v, want offset %d", num, e, ok, want)
		}
	}
	if _, ok := table.Lookup(0); ok {
		t.Fatalf("free entry must not resolve")
	}
	root, _ := table.Trailer().Get("Root")
	if root != (raw.RefObj{R: raw.ObjectRef{Num: 1}}) {
		t.Fatalf("unexpected root %v", root)
	}
}

func TestResolverFollowsPrevChain(t *testing.T) {
	pdf, _ := buildSimplePDF()
	buf := bytes.NewBuffer(append([]byte(nil), pdf...))
	firstXRef := bytes.LastIndex(pdf, []byte("xref\n0 3"))

	newOffset := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Count 0 /Kids [] /Updated true >>\nendobj\n")
	xrefOffset := buf.Len()
	buf.WriteString("xref\n2 1\n")
	buf.WriteString(fmt.Sprintf("%010d 00000 n \n", newOffset))
	buf.WriteString(fmt.Sprintf("trailer\n<< /Size 3 /Prev %d >>\nstartxref\n%d\n%%%%EOF\n", firstXRef, xrefOffset))

	table, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), buf.Bytes())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	e, _ := table.Lookup(2)
	if e.Offset != int64(newOffset) {
		t.Fatalf("newest definition should win: got %d want %d", e.Offset, newOffset)
	}
	if _, ok := table.Trailer().Get("Root"); !ok {
		t.Fatalf("root should be inherited from the older trailer")
	}
	if _, ok := table.Trailer().Get("Prev"); ok {
		t.Fatalf("Prev should not leak into the merged trailer")
	}
}

func TestResolverParsesXRefStream(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.5\n")
	off1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	off3 := buf.Len()

	rows := []byte{
		0, 0, 0, 255,
		1, byte(off1 >> 8), byte(off1), 0,
		2, 0, 5, 3,
		1, byte(off3 >> 8), byte(off3), 0,
	}
	fmt.Fprintf(buf, "3 0 obj\n<< /Type /XRef /Size 4 /W [1 2 1] /Root 1 0 R /Length %d >>\nstream\n", len(rows))
	buf.Write(rows)
	buf.WriteString("\nendstream\nendobj\n")
	fmt.Fprintf(buf, "startxref\n%d\n%%%%EOF\n", off3)

	table, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), buf.Bytes())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if table.Type() != "stream" {
		t.Fatalf("unexpected table type %q", table.Type())
	}
	if e, ok := table.Lookup(1); !ok || e.Offset != int64(off1) {
		t.Fatalf("object 1: %+v", e)
	}
	e, ok := table.Lookup(2)
	if !ok || e.Kind != xref.EntryCompressed || e.Stream != 5 || e.Index != 3 {
		t.Fatalf("object 2: %+v", e)
	}
}

func TestResolverRepairsBrokenOffsets(t *testing.T) {
	pdf, offsets := buildSimplePDF()
	broken := bytes.Replace(pdf, []byte("startxref\n"), []byte("startxref\n9"), 1)

	if _, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(context.Background(), broken); err == nil {
		t.Fatalf("expected error without a recovery strategy")
	}
	if _, err := xref.NewResolver(xref.ResolverConfig{Recovery: recovery.NewStrictStrategy()}).Resolve(context.Background(), broken); err == nil {
		t.Fatalf("expected error with strict recovery")
	}

	lenient := recovery.NewLenientStrategy(0)
	table, err := xref.NewResolver(xref.ResolverConfig{Recovery: lenient}).Resolve(context.Background(), broken)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if table.Type() != "repair" {
		t.Fatalf("unexpected table type %q", table.Type())
	}
	for num, want := range offsets {
		if e, ok := table.Lookup(num); !ok || e.Offset != want {
			t.Fatalf("object %d: got %+v want %d", num, e, want)
		}
	}
	if len(lenient.Errors()) == 0 {
		t.Fatalf("repair should be reported to the recovery strategy")
	}
}

func TestRepairFindsCatalogWithoutTrailer(t *testing.T) {
	pdf := []byte("%PDF-1.4\n4 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n7 0 obj\n<< /Type /Catalog /Pages 4 0 R >>\nendobj\n")
	table, err := xref.NewResolver(xref.ResolverConfig{Recovery: recovery.NewLenientStrategy(0)}).Resolve(context.Background(), pdf)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	root, _ := table.Trailer().Get("Root")
	if root != (raw.RefObj{R: raw.ObjectRef{Num: 7}}) {
		t.Fatalf("unexpected root %v", root)
	}
	if got := table.Objects(); len(got) != 2 || got[0] != 4 || got[1] != 7 {
		t.Fatalf("objects: %v", got)
	}
}
