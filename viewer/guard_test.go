package viewer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestIsWithinViewerFollowsResize(t *testing.T) {
	c := NewHeadless(100, Rect{X: 10, Y: 10, W: 100, H: 50})
	g, err := NewGuard(c, GuardConfig{})
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		x, y float64
		want bool
	}{
		{50, 30, true},
		{10, 10, true},
		{110, 60, true},
		{9, 30, false},
		{50, 61, false},
		{200, 200, false},
	}
	for _, tc := range cases {
		if got := g.IsWithinViewer(tc.x, tc.y); got != tc.want {
			t.Fatalf("(%g,%g) = %v, want %v", tc.x, tc.y, got, tc.want)
		}
	}

	// scrolled and grown
	c.SetBounds(Rect{X: 150, Y: 0, W: 100, H: 300})
	if g.IsWithinViewer(50, 30) {
		t.Fatalf("old rectangle still used after resize")
	}
	if !g.IsWithinViewer(200, 250) {
		t.Fatalf("new rectangle not used after resize")
	}
}

func TestInterceptOnlyInsideViewer(t *testing.T) {
	c := NewHeadless(100, Rect{W: 100, H: 100})
	g, _ := NewGuard(c, GuardConfig{})
	in, out := Event{X: 50, Y: 50}, Event{X: 150, Y: 50}

	for _, kind := range []EventKind{ContextMenu, DragStart} {
		in.Kind, out.Kind = kind, kind
		if !g.Intercept(in) {
			t.Fatalf("%v inside not suppressed", kind)
		}
		if g.Intercept(out) {
			t.Fatalf("%v outside suppressed", kind)
		}
	}
	if g.Suppressed() != 2 {
		t.Fatalf("suppressed count %d", g.Suppressed())
	}
}

func TestBlockedKeyCombinations(t *testing.T) {
	c := NewHeadless(100, Rect{W: 100, H: 100})
	g, _ := NewGuard(c, GuardConfig{})
	key := func(k string, mods ...string) Event {
		e := Event{Kind: KeyDown, Key: k, X: 1, Y: 1}
		for _, m := range mods {
			switch m {
			case "ctrl":
				e.Ctrl = true
			case "meta":
				e.Meta = true
			case "shift":
				e.Shift = true
			case "alt":
				e.Alt = true
			}
		}
		return e
	}
	blocked := []Event{
		key("p", "ctrl"),
		key("P", "meta"),
		key("s", "ctrl"),
		key("S", "ctrl", "shift"),
		key("e", "meta"),
		key("PrintScreen"),
	}
	for _, e := range blocked {
		if !g.Intercept(e) {
			t.Fatalf("%+v not suppressed", e)
		}
	}
	allowed := []Event{
		key("p"),
		key("c", "ctrl"),
		key("p", "ctrl", "alt"),
		key("ArrowRight"),
		{Kind: 0, Key: "p", Ctrl: true, X: 1, Y: 1},
	}
	for _, e := range allowed {
		if g.Intercept(e) {
			t.Fatalf("%+v suppressed", e)
		}
	}
}

func TestCustomBlockedKeys(t *testing.T) {
	c := NewHeadless(100, Rect{W: 100, H: 100})
	g, err := NewGuard(c, GuardConfig{BlockedKeys: []string{"Cmd+Alt+C"}})
	if err != nil {
		t.Fatal(err)
	}
	if !g.Intercept(Event{Kind: KeyDown, Key: "c", Meta: true, Alt: true}) {
		t.Fatalf("custom combination not suppressed")
	}
	if g.Intercept(Event{Kind: KeyDown, Key: "p", Ctrl: true}) {
		t.Fatalf("defaults still active with a custom list")
	}
	keys := g.BlockedKeys()
	if diff := cmp.Diff([]KeyCombo{{Key: "C", Ctrl: true, Alt: true}}, keys); diff != "" {
		t.Fatalf("blocked keys (-want +got):\n%s", diff)
	}
	keys[0].Key = "x"
	if g.BlockedKeys()[0].Key != "C" {
		t.Fatalf("BlockedKeys shares the guard's list")
	}
	if _, err := NewGuard(c, GuardConfig{BlockedKeys: []string{"Hyper+X"}}); err == nil {
		t.Fatalf("unknown modifier accepted")
	}
}

func TestParseKeyCombo(t *testing.T) {
	got, err := ParseKeyCombo("ctrl + shift + s")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(KeyCombo{Key: "s", Ctrl: true, Shift: true}, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if got.String() != "Ctrl+Shift+s" {
		t.Fatalf("String() = %q", got.String())
	}
	if _, err := ParseKeyCombo("Ctrl+"); err == nil {
		t.Fatalf("combination without key accepted")
	}
}

func TestScriptActionsAlwaysSuppressed(t *testing.T) {
	g, _ := NewGuard(NewHeadless(0, Rect{}), GuardConfig{})
	for _, action := range []string{"print", "saveAs", "exportAsText"} {
		if !g.InterceptScript(action) {
			t.Fatalf("%s allowed", action)
		}
	}
}

func TestParseEventKind(t *testing.T) {
	for _, k := range []EventKind{ContextMenu, KeyDown, DragStart} {
		got, ok := ParseEventKind(k.String())
		if !ok || got != k {
			t.Fatalf("round trip of %v gave %v", k, got)
		}
	}
	if _, ok := ParseEventKind("click"); ok {
		t.Fatalf("click accepted")
	}
}
