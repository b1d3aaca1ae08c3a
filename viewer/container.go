package viewer

import (
	"context"
	"image"
)

// Rect is a screen rectangle in container coordinates.
type Rect struct {
	X, Y, W, H float64
}

// Contains reports whether (x, y) lies inside r. Edges are inclusive.
func (r Rect) Contains(x, y float64) bool {
	if r.W < 0 || r.H < 0 {
		return false
	}
	return x >= r.X && x <= r.X+r.W && y >= r.Y && y <= r.Y+r.H
}

// Document is a loaded, paginated document. Page numbers are 1-based.
// Close may be called while pages obtained from the document are still
// rendering; those renders are discarded by the viewer.
type Document interface {
	NumPages() int
	Page(ctx context.Context, n int) (Page, error)
	Close() error
}

// Page is one page of a Document.
type Page interface {
	// Size returns the displayed width and height at scale 1, with the page
	// rotation applied.
	Size() (w, h float64)
	// Render paints the page into dst, which is sized for scale.
	Render(ctx context.Context, dst *image.RGBA, scale float64) error
}

// Loader opens documents by URL.
type Loader interface {
	Load(ctx context.Context, url string) (Document, error)
}

// Navigator is the control surface attached to a container after a
// successful load.
type Navigator interface {
	Next() bool
	Previous() bool
	GoTo(n int) bool
	CurrentPage() int
	TotalPages() int
}

// Container hosts a viewer. The viewer calls these methods with its state
// lock held, so implementations must not call back into the viewer
// synchronously.
type Container interface {
	// Width is the current width available to the page surface, in pixels.
	Width() int
	// Bounds is the container's current screen rectangle.
	Bounds() Rect
	ShowSurface(page int, surface *image.RGBA)
	ShowIndicator(text string)
	AttachNavigation(nav Navigator)
	ShowError(err error)
	// Clear removes the surface, indicator, navigation and error banner.
	Clear()
}

// Alerter is implemented by containers that can display script alerts.
type Alerter interface {
	ShowAlert(message string)
}
