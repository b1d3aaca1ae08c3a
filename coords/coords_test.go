package coords

import (
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestMultiplyAppliesLeftFirst(t *testing.T) {
	m := Scale(2, 2).Multiply(Translate(10, 0))
	p := m.Transform(Point{1, 1})
	if !near(p.X, 12) || !near(p.Y, 2) {
		t.Fatalf("got %+v", p)
	}
}

func TestInverse(t *testing.T) {
	m := Matrix{2, 1, -1, 3, 5, 7}
	inv, err := m.Inverse()
	if err != nil {
		t.Fatalf("inverse: %v", err)
	}
	p := inv.Transform(m.Transform(Point{3, -4}))
	if !near(p.X, 3) || !near(p.Y, -4) {
		t.Fatalf("round trip: %+v", p)
	}
	if _, err := (Matrix{1, 2, 2, 4, 0, 0}).Inverse(); err == nil {
		t.Fatalf("expected singular matrix error")
	}
}

func TestBoundsOfRotatedRect(t *testing.T) {
	b := Rotate(math.Pi / 2).Bounds(Rect{0, 0, 10, 20})
	if !near(b.LLX, -20) || !near(b.URX, 0) || !near(b.LLY, 0) || !near(b.URY, 10) {
		t.Fatalf("bounds: %+v", b)
	}
	if got := NewRect(5, 5, 0, 0).Intersect(Rect{10, 10, 20, 20}); !got.Empty() {
		t.Fatalf("disjoint rects should not intersect: %+v", got)
	}
}
