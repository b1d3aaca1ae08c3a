package server

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"sync"

	"github.com/wudi/pdfviewer/viewer"
)

// outgoing is a queued message. Surfaces are PNG-encoded by the writer, not
// by the viewer goroutine that produced them.
type outgoing struct {
	resp    response
	surface *image.RGBA
}

// remote is a viewer.Container whose display lives in a browser. The viewer
// calls it with its own lock held, so every method only records state or
// queues a message and returns.
type remote struct {
	mu     sync.Mutex
	width  int
	bounds viewer.Rect
	nav    viewer.Navigator
	queue  []outgoing
	closed bool

	notify chan struct{}
}

func newRemote() *remote {
	return &remote{notify: make(chan struct{}, 1)}
}

func (r *remote) Width() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width
}

func (r *remote) Bounds() viewer.Rect {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bounds
}

// resize records the browser's layout. A zero width keeps the old one.
func (r *remote) resize(width int, bounds *rect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if width > 0 {
		r.width = width
	}
	if bounds != nil {
		r.bounds = bounds.viewer()
	}
}

func (r *remote) ShowSurface(page int, surface *image.RGBA) {
	b := surface.Bounds()
	r.push(outgoing{
		resp:    response{Type: msgSurface, Page: page, Width: b.Dx(), Height: b.Dy()},
		surface: surface,
	})
}

func (r *remote) ShowIndicator(text string) {
	r.push(outgoing{resp: response{Type: msgIndicator, Text: text}})
}

func (r *remote) AttachNavigation(nav viewer.Navigator) {
	r.mu.Lock()
	r.nav = nav
	r.mu.Unlock()
}

func (r *remote) navigation() viewer.Navigator {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nav
}

// ShowError reports err to the browser. Load errors carry the document URL,
// which the browser never sees, so they are replaced by a generic message.
func (r *remote) ShowError(err error) {
	msg := err.Error()
	var lerr *viewer.LoadError
	if errors.As(err, &lerr) {
		msg = "document could not be loaded"
	}
	r.send(response{Type: msgError, Message: msg})
}

func (r *remote) ShowAlert(message string) {
	r.send(response{Type: msgAlert, Message: message})
}

func (r *remote) Clear() {
	r.mu.Lock()
	r.nav = nil
	r.mu.Unlock()
	r.send(response{Type: msgClear})
}

func (r *remote) send(resp response) { r.push(outgoing{resp: resp}) }

func (r *remote) push(m outgoing) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if m.surface != nil {
		// only the newest frame is worth encoding
		kept := r.queue[:0]
		for _, q := range r.queue {
			if q.surface == nil {
				kept = append(kept, q)
			}
		}
		r.queue = kept
	}
	r.queue = append(r.queue, m)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// drain takes every queued message.
func (r *remote) drain() []outgoing {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := r.queue
	r.queue = nil
	return q
}

func (r *remote) close() {
	r.mu.Lock()
	r.closed = true
	r.queue = nil
	r.mu.Unlock()
}

// encode fills in the PNG payload of a surface message.
func (m outgoing) encode() (response, error) {
	if m.surface == nil {
		return m.resp, nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, m.surface); err != nil {
		return response{}, err
	}
	resp := m.resp
	resp.PNG = base64.StdEncoding.EncodeToString(buf.Bytes())
	return resp, nil
}
