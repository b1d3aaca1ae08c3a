package viewer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type fakePage struct {
	n       int
	w, h    float64
	release chan struct{}
	err     error
	panics  bool
}

func (p *fakePage) Size() (float64, float64) { return p.w, p.h }

func (p *fakePage) Render(ctx context.Context, dst *image.RGBA, scale float64) error {
	if p.release != nil {
		// ignores ctx so a superseded render can finish late
		<-p.release
	}
	if p.panics {
		panic("corrupt page")
	}
	if p.err != nil {
		return p.err
	}
	dst.SetRGBA(0, 0, color.RGBA{uint8(p.n), 0, 0, 255})
	return nil
}

type fakeDoc struct {
	pages  int
	w, h   float64
	gates  map[int]chan struct{}
	fail   map[int]error
	panics map[int]bool

	mu      sync.Mutex
	fetched []int
	closed  bool
}

func newDoc(pages int) *fakeDoc {
	return &fakeDoc{pages: pages, w: 600, h: 800, gates: map[int]chan struct{}{}}
}

func (d *fakeDoc) NumPages() int { return d.pages }

func (d *fakeDoc) Page(ctx context.Context, n int) (Page, error) {
	d.mu.Lock()
	d.fetched = append(d.fetched, n)
	d.mu.Unlock()
	return &fakePage{n: n, w: d.w, h: d.h, release: d.gates[n], err: d.fail[n], panics: d.panics[n]}, nil
}

func (d *fakeDoc) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func (d *fakeDoc) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *fakeDoc) fetchedPages() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.fetched...)
}

var errUnreachable = errors.New("dial tcp: connection refused")

type fakeLoader struct {
	docs    map[string]Document
	gates   map[string]chan struct{}
	entered map[string]chan struct{}
}

func (l *fakeLoader) Load(ctx context.Context, url string) (Document, error) {
	if e := l.entered[url]; e != nil {
		close(e)
	}
	if g := l.gates[url]; g != nil {
		<-g
	}
	if d, ok := l.docs[url]; ok {
		return d, nil
	}
	return nil, errUnreachable
}

func setup(t *testing.T, docs map[string]Document, cfg Config) (*Viewer, *Headless) {
	t.Helper()
	c := NewHeadless(300, Rect{X: 10, Y: 20, W: 300, H: 400})
	v, err := New(c, &fakeLoader{docs: docs}, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { v.Close() })
	return v, c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestLoadShowsFirstPage(t *testing.T) {
	for _, pages := range []int{1, 2, 7} {
		doc := newDoc(pages)
		v, c := setup(t, map[string]Document{"a.pdf": doc}, Config{})
		if err := v.Load(context.Background(), "a.pdf"); err != nil {
			t.Fatalf("load: %v", err)
		}
		v.Wait()
		if v.CurrentPage() != 1 || v.TotalPages() != pages {
			t.Fatalf("after load: page %d of %d", v.CurrentPage(), v.TotalPages())
		}
		page, surface := c.Frame()
		if page != 1 || surface == nil {
			t.Fatalf("first page not shown: %d %v", page, surface)
		}
		// 600pt wide page in a 300px container
		if b := surface.Bounds(); b.Dx() != 300 || b.Dy() != 400 {
			t.Fatalf("surface %v", b)
		}
		if got, want := c.Indicator(), fmt.Sprintf("Page 1 of %d", pages); got != want {
			t.Fatalf("indicator %q", got)
		}
		if c.Navigation() == nil {
			t.Fatalf("navigation not attached")
		}
		if v.URL() != "a.pdf" {
			t.Fatalf("url %q", v.URL())
		}
	}
}

func TestLoadResetsToFirstPage(t *testing.T) {
	a, b := newDoc(5), newDoc(3)
	v, _ := setup(t, map[string]Document{"a": a, "b": b}, Config{})
	v.Load(context.Background(), "a")
	v.GoTo(4)
	if err := v.Load(context.Background(), "b"); err != nil {
		t.Fatalf("load: %v", err)
	}
	v.Wait()
	if v.CurrentPage() != 1 || v.TotalPages() != 3 {
		t.Fatalf("after reload: page %d of %d", v.CurrentPage(), v.TotalPages())
	}
	if !a.isClosed() {
		t.Fatalf("previous document left open")
	}
}

func TestNavigationStaysInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, pages := range []int{1, 2, 5, 9} {
		v, _ := setup(t, map[string]Document{"d": newDoc(pages)}, Config{})
		if err := v.Load(context.Background(), "d"); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 200; i++ {
			before := v.CurrentPage()
			requested := v.Stats().Requested
			var moved bool
			if rng.Intn(2) == 0 {
				moved = v.Next()
			} else {
				moved = v.Previous()
			}
			cur := v.CurrentPage()
			if cur < 1 || cur > pages {
				t.Fatalf("%d pages: current page %d out of range", pages, cur)
			}
			if moved != (cur != before) {
				t.Fatalf("Next/Previous returned %v but page went %d -> %d", moved, before, cur)
			}
			want := requested
			if moved {
				want++
			}
			if got := v.Stats().Requested; got != want {
				t.Fatalf("render requests %d, want %d", got, want)
			}
		}
		v.Wait()
	}
}

func TestPreviousOnFirstPageIsNoop(t *testing.T) {
	doc := newDoc(5)
	v, c := setup(t, map[string]Document{"d": doc}, Config{})
	v.Load(context.Background(), "d")
	v.Wait()
	if v.Previous() {
		t.Fatalf("Previous on page 1 reported a move")
	}
	v.Wait()
	if v.CurrentPage() != 1 {
		t.Fatalf("current page %d", v.CurrentPage())
	}
	if got := v.Stats().Requested; got != 1 {
		t.Fatalf("render requests = %d, want only the initial one", got)
	}
	if diff := cmp.Diff([]int{1}, doc.fetchedPages()); diff != "" {
		t.Fatalf("pages fetched (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1}, c.History()); diff != "" {
		t.Fatalf("pages shown (-want +got):\n%s", diff)
	}
}

func TestNextStopsAtLastPage(t *testing.T) {
	v, c := setup(t, map[string]Document{"d": newDoc(5)}, Config{})
	v.Load(context.Background(), "d")
	var moved []bool
	for i := 0; i < 5; i++ {
		moved = append(moved, v.Next())
	}
	v.Wait()
	if diff := cmp.Diff([]bool{true, true, true, true, false}, moved); diff != "" {
		t.Fatalf("Next results (-want +got):\n%s", diff)
	}
	if v.CurrentPage() != 5 {
		t.Fatalf("current page %d", v.CurrentPage())
	}
	requested := v.Stats().Requested
	if v.Next() {
		t.Fatalf("Next past the last page reported a move")
	}
	v.Wait()
	if v.CurrentPage() != 5 || v.Stats().Requested != requested {
		t.Fatalf("no-op Next changed state: page %d, requests %d", v.CurrentPage(), v.Stats().Requested)
	}
	if page, _ := c.Frame(); page != 5 {
		t.Fatalf("shown page %d", page)
	}
	if c.Indicator() != "Page 5 of 5" {
		t.Fatalf("indicator %q", c.Indicator())
	}
}

func TestStaleRenderIsDiscarded(t *testing.T) {
	doc := newDoc(5)
	slow2, slow3 := make(chan struct{}), make(chan struct{})
	doc.gates[2], doc.gates[3] = slow2, slow3
	v, c := setup(t, map[string]Document{"d": doc}, Config{})
	v.Load(context.Background(), "d")
	v.Wait()

	v.Next()
	v.Next()
	close(slow3)
	waitFor(t, "page 3", func() bool { p, _ := c.Frame(); return p == 3 })
	close(slow2)
	v.Wait()

	if page, surface := c.Frame(); page != 3 || surface.RGBAAt(0, 0).R != 3 {
		t.Fatalf("shown page %d", page)
	}
	if diff := cmp.Diff([]int{1, 3}, c.History()); diff != "" {
		t.Fatalf("pages shown (-want +got):\n%s", diff)
	}
	if s := v.Stats(); s.Discarded != 1 || s.Committed != 2 {
		t.Fatalf("stats %+v", s)
	}
}

func TestRenderForLeftPageIsDiscarded(t *testing.T) {
	doc := newDoc(5)
	slow := make(chan struct{})
	doc.gates[2] = slow
	v, c := setup(t, map[string]Document{"d": doc}, Config{})
	v.Load(context.Background(), "d")
	v.Wait()

	v.Next()
	v.Previous()
	waitFor(t, "page 1 again", func() bool { return len(c.History()) == 2 })
	close(slow)
	v.Wait()
	if diff := cmp.Diff([]int{1, 1}, c.History()); diff != "" {
		t.Fatalf("pages shown (-want +got):\n%s", diff)
	}
}

func TestLoadFailure(t *testing.T) {
	v, c := setup(t, nil, Config{})
	err := v.Load(context.Background(), "https://unreachable.invalid/a.pdf")
	var lerr *LoadError
	if !errors.As(err, &lerr) || !errors.Is(err, errUnreachable) {
		t.Fatalf("expected LoadError wrapping the fetch error, got %v", err)
	}
	if v.CurrentPage() != 0 || v.TotalPages() != 0 {
		t.Fatalf("state after failure: page %d of %d", v.CurrentPage(), v.TotalPages())
	}
	if c.Navigation() != nil {
		t.Fatalf("navigation attached after a failed load")
	}
	if !errors.As(c.Err(), &lerr) {
		t.Fatalf("container error %v", c.Err())
	}
	if v.Next() || v.Previous() || v.GoTo(1) {
		t.Fatalf("navigation accepted without a document")
	}
	if v.Stats().Requested != 0 {
		t.Fatalf("render requested without a document")
	}
}

func TestLoadFailureDropsPreviousDocument(t *testing.T) {
	doc := newDoc(3)
	v, c := setup(t, map[string]Document{"good": doc}, Config{})
	v.Load(context.Background(), "good")
	v.Wait()
	if err := v.Load(context.Background(), "bad"); err == nil {
		t.Fatalf("expected failure")
	}
	if v.TotalPages() != 0 || c.Navigation() != nil || !doc.isClosed() {
		t.Fatalf("previous document survived a failed load")
	}
	if page, _ := c.Frame(); page != 0 {
		t.Fatalf("stale frame %d still shown", page)
	}
}

func TestEmptyDocumentIsLoadError(t *testing.T) {
	doc := newDoc(0)
	v, _ := setup(t, map[string]Document{"e": doc}, Config{})
	err := v.Load(context.Background(), "e")
	if !errors.Is(err, ErrNoPages) {
		t.Fatalf("expected ErrNoPages, got %v", err)
	}
	if !doc.isClosed() {
		t.Fatalf("empty document left open")
	}
}

func TestSupersededLoad(t *testing.T) {
	first, second := newDoc(2), newDoc(4)
	gate, entered := make(chan struct{}), make(chan struct{})
	loader := &fakeLoader{
		docs:    map[string]Document{"first": first, "second": second},
		gates:   map[string]chan struct{}{"first": gate},
		entered: map[string]chan struct{}{"first": entered},
	}
	c := NewHeadless(300, Rect{W: 300, H: 400})
	v, err := New(c, loader, Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer v.Close()

	done := make(chan error, 1)
	go func() { done <- v.Load(context.Background(), "first") }()
	<-entered
	if err := v.Load(context.Background(), "second"); err != nil {
		t.Fatalf("second load: %v", err)
	}
	close(gate)
	if err := <-done; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("first load: expected ErrSuperseded, got %v", err)
	}
	v.Wait()
	if v.TotalPages() != 4 || v.URL() != "second" {
		t.Fatalf("viewer shows %q with %d pages", v.URL(), v.TotalPages())
	}
	if !first.isClosed() || second.isClosed() {
		t.Fatalf("wrong document closed")
	}
}

func TestPageFailureKeepsPreviousFrame(t *testing.T) {
	doc := newDoc(3)
	doc.fail = map[int]error{2: errors.New("bad content stream")}
	doc.panics = map[int]bool{3: true}
	v, c := setup(t, map[string]Document{"d": doc}, Config{})
	v.Load(context.Background(), "d")
	v.Wait()

	v.Next()
	v.Wait()
	if page, _ := c.Frame(); page != 1 {
		t.Fatalf("failed render replaced the frame with page %d", page)
	}
	if v.CurrentPage() != 2 {
		t.Fatalf("current page %d", v.CurrentPage())
	}
	v.Next()
	v.Wait()
	if page, _ := c.Frame(); page != 1 {
		t.Fatalf("panicking render replaced the frame with page %d", page)
	}
	if s := v.Stats(); s.Failed != 2 {
		t.Fatalf("stats %+v", s)
	}
}

func TestSurfaceScaling(t *testing.T) {
	doc := newDoc(1)
	v, c := setup(t, map[string]Document{"d": doc}, Config{})
	c.SetWidth(0)
	v.Load(context.Background(), "d")
	v.Wait()
	if _, s := c.Frame(); s.Bounds().Dx() != 600 || s.Bounds().Dy() != 800 {
		t.Fatalf("zero width should render at scale 1, got %v", s.Bounds())
	}

	c.SetWidth(200)
	v.Rerender()
	v.Wait()
	// 800 * 200/600 = 266.67, rounded up
	if _, s := c.Frame(); s.Bounds().Dx() != 200 || s.Bounds().Dy() != 267 {
		t.Fatalf("resized surface %v", s.Bounds())
	}
}

func TestSurfacePixelCap(t *testing.T) {
	v, c := setup(t, map[string]Document{"d": newDoc(1)}, Config{MaxSurfacePixels: 10000})
	c.SetWidth(6000)
	v.Load(context.Background(), "d")
	v.Wait()
	_, s := c.Frame()
	if s == nil {
		t.Fatalf("nothing shown")
	}
	if b := s.Bounds(); b.Dx()*b.Dy() > 10000 {
		t.Fatalf("surface %v exceeds the pixel cap", b)
	}
}

func TestCloseStopsViewer(t *testing.T) {
	doc := newDoc(3)
	v, _ := setup(t, map[string]Document{"d": doc}, Config{})
	v.Load(context.Background(), "d")
	if err := v.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !doc.isClosed() {
		t.Fatalf("document left open")
	}
	if v.Next() {
		t.Fatalf("navigation after close")
	}
	if err := v.Load(context.Background(), "d"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

type scriptDoc struct {
	*fakeDoc
	scripts []Script
}

func (d *scriptDoc) Scripts(context.Context) ([]Script, error) { return d.scripts, nil }

type recordingRunner struct {
	ran     []string
	blocked bool
}

func (r *recordingRunner) Run(ctx context.Context, scripts []Script, host ScriptHost) error {
	for _, s := range scripts {
		r.ran = append(r.ran, s.Name)
	}
	host.GoTo(host.TotalPages())
	host.Alert("welcome")
	r.blocked = host.Blocked("print")
	return nil
}

func TestDocumentScriptsRunAfterLoad(t *testing.T) {
	doc := &scriptDoc{fakeDoc: newDoc(4), scripts: []Script{{Name: "init", Source: "this.pageNum = 3"}}}
	runner := &recordingRunner{}
	v, c := setup(t, map[string]Document{"d": doc}, Config{Scripts: runner})
	if err := v.Load(context.Background(), "d"); err != nil {
		t.Fatal(err)
	}
	v.Wait()
	if diff := cmp.Diff([]string{"init"}, runner.ran); diff != "" {
		t.Fatalf("scripts run (-want +got):\n%s", diff)
	}
	if v.CurrentPage() != 4 {
		t.Fatalf("script navigation ignored, page %d", v.CurrentPage())
	}
	if diff := cmp.Diff([]string{"welcome"}, c.Alerts()); diff != "" {
		t.Fatalf("alerts (-want +got):\n%s", diff)
	}
	if !runner.blocked || v.Guard().Suppressed() != 1 {
		t.Fatalf("script print request was not suppressed")
	}
}
