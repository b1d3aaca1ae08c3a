package raw

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfviewer/recovery"
	"github.com/wudi/pdfviewer/scanner"
)

func read(t *testing.T, src string, rec recovery.Strategy) Object {
	t.Helper()
	r := NewReader(scanner.New([]byte(src), scanner.Config{}), rec)
	obj, err := r.ReadObject()
	if err != nil {
		t.Fatalf("read %q: %v", src, err)
	}
	return obj
}

func TestReaderDictionary(t *testing.T) {
	obj := read(t, "<< /Type /Page /MediaBox [0 0 612.5 792] /Parent 2 0 R /Gone null >>", nil)
	d, ok := obj.(*DictObj)
	if !ok {
		t.Fatalf("expected dict, got %T", obj)
	}
	if d.Name("Type") != "Page" {
		t.Fatalf("type: %q", d.Name("Type"))
	}
	box, _ := d.Get("MediaBox")
	nums, err := Numbers(box.(*ArrayObj))
	if err != nil {
		t.Fatalf("numbers: %v", err)
	}
	if diff := cmp.Diff([]float64{0, 0, 612.5, 792}, nums); diff != "" {
		t.Fatalf("mediabox mismatch:\n%s", diff)
	}
	if parent, _ := d.Get("Parent"); parent != (RefObj{R: ObjectRef{Num: 2}}) {
		t.Fatalf("parent: %#v", parent)
	}
	if _, ok := d.Get("Gone"); ok {
		t.Fatalf("null entries must be dropped")
	}
	if diff := cmp.Diff([]string{"MediaBox", "Parent", "Type"}, d.Keys()); diff != "" {
		t.Fatalf("keys mismatch:\n%s", diff)
	}
}

func TestReaderRecoversMissingDictEnd(t *testing.T) {
	src := "<< /Type /Catalog /Pages 2 0 R\nendobj"
	if _, err := NewReader(scanner.New([]byte(src), scanner.Config{}), recovery.NewStrictStrategy()).ReadObject(); err == nil {
		t.Fatalf("strict strategy should fail")
	}
	obj := read(t, src, recovery.NewLenientStrategy(0))
	if obj.(*DictObj).Name("Type") != "Catalog" {
		t.Fatalf("recovered dict lost entries")
	}
}

func TestText(t *testing.T) {
	if got := Text([]byte{0xFE, 0xFF, 0x00, 'H', 0x00, 'i'}); got != "Hi" {
		t.Fatalf("utf16: %q", got)
	}
	if got := Text([]byte("caf\xe9")); got != "café" {
		t.Fatalf("latin1: %q", got)
	}
}
