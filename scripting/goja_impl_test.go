package scripting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestGojaEngine_ContextCancellation(t *testing.T) {
	engine := NewEngine()

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	if _, err := engine.Execute(ctx, "while (true) {}"); err == nil || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline error, got %v", err)
	}

	if _, err := engine.Execute(context.Background(), "1 + 1"); err != nil {
		t.Fatalf("engine should recover after cancellation, got %v", err)
	}
}

func TestGojaEngine_ImmediateCancel(t *testing.T) {
	engine := NewEngine()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.Execute(ctx, "42"); err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled error, got %v", err)
	}
}

type fakeDOM struct {
	page, pages int
	alerts      []string
	requests    []string
}

func (d *fakeDOM) PageNum() int  { return d.page }
func (d *fakeDOM) NumPages() int { return d.pages }

func (d *fakeDOM) SetPageNum(n int) bool {
	if n < 0 || n >= d.pages {
		return false
	}
	d.page = n
	return true
}

func (d *fakeDOM) Alert(message string) { d.alerts = append(d.alerts, message) }

func (d *fakeDOM) Request(action string) bool {
	d.requests = append(d.requests, action)
	return true
}

func TestGojaEngine_DocumentObject(t *testing.T) {
	dom := &fakeDOM{pages: 4}
	engine := NewEngine()
	if err := engine.RegisterDOM(dom); err != nil {
		t.Fatalf("RegisterDOM: %v", err)
	}

	got, err := engine.Execute(context.Background(), "this.numPages * 10 + this.pageNum")
	if err != nil {
		t.Fatal(err)
	}
	if got != int64(40) {
		t.Fatalf("numPages/pageNum = %v", got)
	}

	if _, err := engine.Execute(context.Background(), "this.pageNum = this.numPages - 1; pageNum = 99"); err != nil {
		t.Fatal(err)
	}
	if dom.page != 3 {
		t.Fatalf("page = %d, want 3", dom.page)
	}

	script := `
		app.alert("Welcome");
		this.print({bUI: false});
		saveAs("/c/copy.pdf");
		app.execMenuItem("Print");
		app.execMenuItem("SaveAs");
		app.execMenuItem("ZoomViewIn");
		exportAsText();
	`
	if _, err := engine.Execute(context.Background(), script); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Welcome"}, dom.alerts); diff != "" {
		t.Fatalf("alerts (-want +got):\n%s", diff)
	}
	want := []string{ActionPrint, ActionSaveAs, ActionPrint, ActionSaveAs, ActionExportAsText}
	if diff := cmp.Diff(want, dom.requests); diff != "" {
		t.Fatalf("requests (-want +got):\n%s", diff)
	}
}

func TestGojaEngine_ScriptErrors(t *testing.T) {
	engine := NewEngine()
	if _, err := engine.Execute(context.Background(), "throw new Error('boom')"); err == nil {
		t.Fatalf("expected the thrown error")
	}
	if _, err := engine.Execute(context.Background(), "this.("); err == nil {
		t.Fatalf("expected a syntax error")
	}
}
