package extensions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/pdfviewer/scripting"
	"github.com/wudi/pdfviewer/viewer"
)

type mockEngine struct {
	executedScripts []string
	dom             scripting.PDFDOM
	fail            map[string]error
}

func (m *mockEngine) Execute(ctx context.Context, script string) (interface{}, error) {
	m.executedScripts = append(m.executedScripts, script)
	return nil, m.fail[script]
}

func (m *mockEngine) RegisterDOM(dom scripting.PDFDOM) error {
	m.dom = dom
	return nil
}

type fakeHost struct {
	page, pages int
	alerts      []string
	blocked     []string
}

func (h *fakeHost) CurrentPage() int { return h.page }
func (h *fakeHost) TotalPages() int  { return h.pages }

func (h *fakeHost) GoTo(n int) bool {
	if n < 1 || n > h.pages || n == h.page {
		return false
	}
	h.page = n
	return true
}

func (h *fakeHost) Alert(message string) { h.alerts = append(h.alerts, message) }

func (h *fakeHost) Blocked(action string) bool {
	h.blocked = append(h.blocked, action)
	return true
}

func TestJavaScriptRunner_RunsAllScripts(t *testing.T) {
	engine := &mockEngine{fail: map[string]error{"broken()": errors.New("ReferenceError: broken is not defined")}}
	runner := NewJavaScriptRunner(func() scripting.Engine { return engine }, nil)

	scripts := []viewer.Script{
		{Name: "Init", Source: "console.println('Init')"},
		{Name: "Broken", Source: "broken()"},
		{Name: "OpenAction", Source: "app.alert('Open')"},
	}
	err := runner.Run(context.Background(), scripts, &fakeHost{page: 1, pages: 1})
	if err == nil {
		t.Fatalf("expected the failing script to be reported")
	}
	want := []string{"console.println('Init')", "broken()", "app.alert('Open')"}
	if diff := cmp.Diff(want, engine.executedScripts); diff != "" {
		t.Fatalf("executed (-want +got):\n%s", diff)
	}
	if engine.dom == nil {
		t.Fatalf("document object not registered")
	}
}

func TestJavaScriptRunner_Goja(t *testing.T) {
	host := &fakeHost{page: 1, pages: 5}
	runner := NewJavaScriptRunner(nil, nil)
	scripts := []viewer.Script{
		{Name: "jump", Source: "if (this.numPages > 3) this.pageNum = 3;"},
		{Name: "OpenAction", Source: "app.alert('page ' + (pageNum + 1)); this.print(); app.execMenuItem('SaveAs');"},
	}
	if err := runner.Run(context.Background(), scripts, host); err != nil {
		t.Fatalf("run: %v", err)
	}
	if host.page != 4 {
		t.Fatalf("page = %d, want 4", host.page)
	}
	if diff := cmp.Diff([]string{"page 4"}, host.alerts); diff != "" {
		t.Fatalf("alerts (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"print", "saveAs"}, host.blocked); diff != "" {
		t.Fatalf("blocked (-want +got):\n%s", diff)
	}
}

func TestJavaScriptRunner_Timeout(t *testing.T) {
	host := &fakeHost{page: 1, pages: 1}
	runner := NewJavaScriptRunner(nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()
	scripts := []viewer.Script{
		{Name: "spin", Source: "while (true) {}"},
		{Name: "after", Source: "app.alert('unreachable')"},
	}
	err := runner.Run(ctx, scripts, host)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if len(host.alerts) != 0 {
		t.Fatalf("script after the timeout ran")
	}
}

func TestJavaScriptRunner_SeparateGlobals(t *testing.T) {
	runner := NewJavaScriptRunner(nil, nil)
	host := &fakeHost{page: 1, pages: 1}
	if err := runner.Run(context.Background(), []viewer.Script{{Name: "a", Source: "var leaked = 1;"}}, host); err != nil {
		t.Fatal(err)
	}
	err := runner.Run(context.Background(), []viewer.Script{{Name: "b", Source: "leaked + 1"}}, host)
	if err == nil {
		t.Fatalf("global from an earlier document was visible")
	}
}
