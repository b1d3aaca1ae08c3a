package main

import (
	"bytes"
	"encoding/json"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfviewer/extensions"
	"github.com/wudi/pdfviewer/internal/pdftest"
)

// execute runs the root command with fresh flag values.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	renderPage, renderWidth, renderOut, renderAll = 1, 0, "-", false
	infoJSON, mountsBase, mountsTickets = false, "", false
	ticketTTL, ticketLink, serveAddr = 0, "", ""
	verbose = false

	var out, errOut bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	args = append(args, "--config", filepath.Join(t.TempDir(), "missing.yml"))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeDoc(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	data := pdftest.Document(3, 200, 100, func(i int) string {
		return []string{"1 0 0", "0 1 0", "0 0 1"}[i-1] + " rg 0 0 200 100 re f"
	})
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	if err != nil {
		t.Fatal(err)
	}
	if out != "pdfview dev\n" {
		t.Fatalf("version output %q", out)
	}
}

func TestRenderPage(t *testing.T) {
	doc := writeDoc(t)
	dst := filepath.Join(t.TempDir(), "page.png")
	if _, err := execute(t, "", "render", doc, "--page", "2", "--width", "100", "--out", dst); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(dst)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Fatalf("size %v", b)
	}
	if r, g, _, _ := img.At(50, 25).RGBA(); r != 0 || g>>8 != 255 {
		t.Fatalf("page 2 is not green")
	}
}

func TestRenderToStdout(t *testing.T) {
	doc := writeDoc(t)
	out, err := execute(t, "", "render", doc, "--width", "40")
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(strings.NewReader(out))
	if err != nil {
		t.Fatalf("stdout is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 20 {
		t.Fatalf("size %v", b)
	}
}

func TestRenderPageOutOfRange(t *testing.T) {
	doc := writeDoc(t)
	if _, err := execute(t, "", "render", doc, "--page", "4"); err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("expected a range error, got %v", err)
	}
}

func TestRenderAll(t *testing.T) {
	doc := writeDoc(t)
	dir := filepath.Join(t.TempDir(), "pages")
	if _, err := execute(t, "", "render", doc, "--all", "--width", "20", "--out", dir); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if diff := cmp.Diff([]string{"page-001.png", "page-002.png", "page-003.png"}, names); diff != "" {
		t.Fatalf("files (-want +got):\n%s", diff)
	}
}

func TestInfoJSON(t *testing.T) {
	doc := writeDoc(t)
	out, err := execute(t, "", "info", doc, "--json")
	if err != nil {
		t.Fatal(err)
	}
	var report extensions.InspectionReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if report.PageCount != 3 || len(report.Pages) != 3 || report.FontCount != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if p := report.Pages[0]; p.Width != 200 || p.Height != 100 {
		t.Fatalf("page geometry %+v", p)
	}
}

func TestInfoText(t *testing.T) {
	doc := writeDoc(t)
	out, err := execute(t, "", "info", doc)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Pages:", "3", "Encrypted:", "false"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestMountsFromStdin(t *testing.T) {
	page := `<html><body>
		<div id="report" data-pdf-url="/files/report.pdf" data-pdf-width="640"></div>
		<section data-pdf-url="https://cdn.example.com/a.pdf"></section>
	</body></html>`
	out, err := execute(t, page, "mounts", "-", "--base", "https://example.com/docs/")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and two mounts:\n%s", out)
	}
	if f := strings.Fields(lines[1]); !cmp.Equal(f, []string{"div", "report", "640", "https://example.com/files/report.pdf"}) {
		t.Fatalf("first mount %q", f)
	}
	if f := strings.Fields(lines[2]); !cmp.Equal(f, []string{"section", "-", "-", "https://cdn.example.com/a.pdf"}) {
		t.Fatalf("second mount %q", f)
	}
}

func TestTicketNeedsSecret(t *testing.T) {
	t.Setenv("PDFVIEW_SERVER_TICKET_SECRET", "")
	if _, err := execute(t, "", "ticket", "https://example.com/a.pdf"); err == nil {
		t.Fatalf("ticket minted without a secret")
	}
}

func TestTicketLink(t *testing.T) {
	t.Setenv("PDFVIEW_SERVER_TICKET_SECRET", "0123456789abcdef0123456789abcdef")
	out, err := execute(t, "", "ticket", "https://example.com/a.pdf", "--link", "http://localhost:8080/")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "http://localhost:8080/?ticket=") {
		t.Fatalf("link %q", out)
	}
}
