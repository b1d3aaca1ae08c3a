package pdfdoc

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfviewer/internal/pdftest"
	"github.com/wudi/pdfviewer/source"
	"github.com/wudi/pdfviewer/viewer"
)

var pageColors = []string{"1 0 0", "0 1 0", "0 0 1"}

func threePages() []byte {
	return pdftest.Document(3, 200, 100, func(i int) string {
		return pageColors[i-1] + " rg 0 0 200 100 re f"
	})
}

func serve(t *testing.T, files map[string][]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestViewerOverHTTP(t *testing.T) {
	srv := serve(t, map[string][]byte{"/three.pdf": threePages()})
	c := viewer.NewHeadless(100, viewer.Rect{W: 100, H: 50})
	v, err := viewer.New(c, NewLoader(Config{}), viewer.Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer v.Close()

	if err := v.Load(context.Background(), srv.URL+"/three.pdf"); err != nil {
		t.Fatalf("load: %v", err)
	}
	v.Wait()
	if v.TotalPages() != 3 {
		t.Fatalf("total pages %d", v.TotalPages())
	}
	check := func(page int, r, g, b uint8) {
		t.Helper()
		shown, surface := c.Frame()
		if shown != page {
			t.Fatalf("shown page %d, want %d", shown, page)
		}
		if sz := surface.Bounds().Size(); sz != (image.Point{X: 100, Y: 50}) {
			t.Fatalf("surface size %v", sz)
		}
		px := surface.RGBAAt(50, 25)
		if px.R != r || px.G != g || px.B != b {
			t.Fatalf("page %d pixel %v", page, px)
		}
	}
	check(1, 255, 0, 0)
	v.Next()
	v.Wait()
	check(2, 0, 255, 0)
	v.GoTo(3)
	v.Wait()
	check(3, 0, 0, 255)
	if c.Indicator() != "Page 3 of 3" {
		t.Fatalf("indicator %q", c.Indicator())
	}
}

func TestLoadErrors(t *testing.T) {
	srv := serve(t, map[string][]byte{
		"/page.html":   []byte("<html><body>not a document</body></html>"),
		"/corrupt.pdf": []byte("%PDF-1.7\ngarbage without objects\n"),
	})
	l := NewLoader(Config{})
	cases := []struct {
		path string
		want func(error) bool
	}{
		{"/page.html", func(err error) bool { return errors.Is(err, source.ErrNotPDF) }},
		{"/missing.pdf", func(err error) bool {
			var se *source.StatusError
			return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
		}},
		{"/corrupt.pdf", func(err error) bool { return err != nil }},
	}
	for _, tc := range cases {
		c := viewer.NewHeadless(100, viewer.Rect{})
		v, _ := viewer.New(c, l, viewer.Config{})
		err := v.Load(context.Background(), srv.URL+tc.path)
		var lerr *viewer.LoadError
		if !errors.As(err, &lerr) || !tc.want(err) {
			t.Fatalf("%s: unexpected error %v", tc.path, err)
		}
		if c.Err() == nil || c.Navigation() != nil || v.TotalPages() != 0 {
			t.Fatalf("%s: viewer not left in the error state", tc.path)
		}
		v.Close()
	}
}

func TestRotatedPageSize(t *testing.T) {
	b := pdftest.New()
	cat := b.Reserve()
	pages := b.Reserve()
	content := b.Stream("", []byte("0 0 1 rg 0 0 50 100 re f"))
	page := b.Add(fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 200 100] /Rotate 90 /Contents %d 0 R >>", pages, content))
	b.Set(pages, fmt.Sprintf("<< /Type /Pages /Kids [%d 0 R] /Count 1 >>", page))
	b.Set(cat, fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pages))

	doc, err := NewLoader(Config{}).Open(context.Background(), b.Bytes(cat))
	if err != nil {
		t.Fatal(err)
	}
	p, err := doc.Page(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if w, h := p.Size(); w != 100 || h != 200 {
		t.Fatalf("rotated size %gx%g", w, h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, 100, 200))
	if err := p.Render(context.Background(), dst, 1); err != nil {
		t.Fatal(err)
	}
	// the left quarter of the unrotated page ends up along the top
	if px := dst.RGBAAt(50, 10); px.B != 255 || px.R != 0 {
		t.Fatalf("top pixel %v", px)
	}
	if px := dst.RGBAAt(50, 190); px.R != 255 || px.G != 255 {
		t.Fatalf("bottom pixel %v", px)
	}
}

func TestRenderKeepsAspectRatio(t *testing.T) {
	doc, err := NewLoader(Config{}).Open(context.Background(), threePages())
	if err != nil {
		t.Fatal(err)
	}
	defer doc.Close()
	p, err := doc.Page(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	// a 200x100 page at 0.1 covers 20x10 pixels of the larger surface
	dst := image.NewRGBA(image.Rect(0, 0, 40, 40))
	if err := p.Render(context.Background(), dst, 0.1); err != nil {
		t.Fatal(err)
	}
	if px := dst.RGBAAt(10, 5); px.R != 255 || px.G != 0 {
		t.Fatalf("page pixel %v", px)
	}
	if px := dst.RGBAAt(10, 30); px.R != 255 || px.G != 255 || px.B != 255 {
		t.Fatalf("pixel below the page %v", px)
	}
}

func TestClosedDocument(t *testing.T) {
	doc, err := NewLoader(Config{}).Open(context.Background(), threePages())
	if err != nil {
		t.Fatal(err)
	}
	p, err := doc.Page(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	doc.Close()
	if _, err := doc.Page(context.Background(), 1); !errors.Is(err, viewer.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	// a page obtained before Close still renders
	if err := p.Render(context.Background(), image.NewRGBA(image.Rect(0, 0, 20, 10)), 0.1); err != nil {
		t.Fatalf("render after close: %v", err)
	}
}

func TestDocumentScripts(t *testing.T) {
	b := pdftest.New()
	cat := b.Reserve()
	pages := b.Reserve()
	page := b.Add(fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 10 10] >>", pages))
	b.Set(pages, fmt.Sprintf("<< /Type /Pages /Kids [%d 0 R] /Count 1 >>", page))
	b.Set(cat, fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R /OpenAction << /S /JavaScript /JS (this.print\\(\\)) >> >>", pages))

	doc, err := NewLoader(Config{}).Open(context.Background(), b.Bytes(cat))
	if err != nil {
		t.Fatal(err)
	}
	var _ viewer.ScriptSource = doc
	scripts, err := doc.Scripts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]viewer.Script{{Name: "OpenAction", Source: "this.print()"}}, scripts); diff != "" {
		t.Fatalf("scripts (-want +got):\n%s", diff)
	}
}
