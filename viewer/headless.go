package viewer

import (
	"image"
	"sync"
)

// Headless is an in-memory Container. It keeps the last frame and the
// history of shown pages and is safe for concurrent use.
type Headless struct {
	mu        sync.Mutex
	width     int
	bounds    Rect
	page      int
	surface   *image.RGBA
	indicator string
	nav       Navigator
	err       error
	shown     []int
	alerts    []string
}

func NewHeadless(width int, bounds Rect) *Headless {
	return &Headless{width: width, bounds: bounds}
}

func (h *Headless) Width() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.width
}

func (h *Headless) SetWidth(width int) {
	h.mu.Lock()
	h.width = width
	h.mu.Unlock()
}

func (h *Headless) Bounds() Rect {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bounds
}

func (h *Headless) SetBounds(r Rect) {
	h.mu.Lock()
	h.bounds = r
	h.mu.Unlock()
}

func (h *Headless) ShowSurface(page int, surface *image.RGBA) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.page, h.surface = page, surface
	h.shown = append(h.shown, page)
}

func (h *Headless) ShowIndicator(text string) {
	h.mu.Lock()
	h.indicator = text
	h.mu.Unlock()
}

func (h *Headless) AttachNavigation(nav Navigator) {
	h.mu.Lock()
	h.nav = nav
	h.mu.Unlock()
}

func (h *Headless) ShowError(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
}

func (h *Headless) ShowAlert(message string) {
	h.mu.Lock()
	h.alerts = append(h.alerts, message)
	h.mu.Unlock()
}

func (h *Headless) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.page, h.surface = 0, nil
	h.indicator = ""
	h.nav = nil
	h.err = nil
}

// Frame returns the page and surface currently shown.
func (h *Headless) Frame() (int, *image.RGBA) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.page, h.surface
}

func (h *Headless) Indicator() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.indicator
}

func (h *Headless) Navigation() Navigator {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nav
}

func (h *Headless) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// History lists every page shown, in order.
func (h *Headless) History() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int(nil), h.shown...)
}

func (h *Headless) Alerts() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.alerts...)
}
